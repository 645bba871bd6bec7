package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Notices lists published notices, optionally filtered by type.
func (h *Handler) Notices(c echo.Context) error {
	notices, err := h.catalog.ListNotices(c.Request().Context(), true, c.QueryParam("type"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notices)
}

// Features lists published feature blurbs in display order.
func (h *Handler) Features(c echo.Context) error {
	features, err := h.catalog.ListFeatures(c.Request().Context(), true)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, features)
}
