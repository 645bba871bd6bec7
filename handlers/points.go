package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mw "github.com/takigawalab/indexapi/middleware"
	"github.com/takigawalab/indexapi/payment"
)

// Packages returns the fixed point package table.
func (h *Handler) Packages(c echo.Context) error {
	return c.JSON(http.StatusOK, payment.Packages())
}

type checkoutRequest struct {
	PackageID string `json:"packageId"`
}

// Checkout starts a point purchase and returns the gateway redirect.
func (h *Handler) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	co, err := h.payment.Checkout(c.Request().Context(), mw.UserID(c), req.PackageID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, co)
}

type webhookDelivery struct {
	ID string `json:"id"`
}

// PaymentWebhook receives gateway charge events. The delivery body is only
// trusted for its event id; the event itself is re-fetched from the gateway
// before any points are credited. Replays are acknowledged with 200.
func (h *Handler) PaymentWebhook(c echo.Context) error {
	var d webhookDelivery
	if err := c.Bind(&d); err != nil || d.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing event id")
	}

	if err := h.payment.HandleChargeEvent(c.Request().Context(), d.ID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

// PointHistory returns the caller's ledger transactions, newest first.
func (h *Handler) PointHistory(c echo.Context) error {
	txs, err := h.ledger.History(c.Request().Context(), mw.UserID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, txs)
}

// ViewHistory returns the caller's unlocked races, newest first.
func (h *Handler) ViewHistory(c echo.Context) error {
	entries, err := h.unlock.History(c.Request().Context(), mw.UserID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// FriendBonus credits the one-time LINE friend bonus to the caller.
func (h *Handler) FriendBonus(c echo.Context) error {
	tx, err := h.ledger.GrantFriendBonus(c.Request().Context(), mw.UserID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tx)
}
