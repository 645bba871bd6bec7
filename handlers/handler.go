package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/takigawalab/indexapi/catalog"
	"github.com/takigawalab/indexapi/intake"
	"github.com/takigawalab/indexapi/ledger"
	"github.com/takigawalab/indexapi/payment"
	"github.com/takigawalab/indexapi/store"
	"github.com/takigawalab/indexapi/unlock"
)

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	store    store.Store
	ledger   *ledger.Service
	catalog  *catalog.Service
	unlock   *unlock.Service
	payment  *payment.Service
	analyzer intake.Analyzer
	JWTKey   []byte
}

// New creates a Handler wired to all services.
func New(st store.Store, lg *ledger.Service, cat *catalog.Service, ul *unlock.Service, pay *payment.Service, an intake.Analyzer, jwtKey []byte) *Handler {
	return &Handler{
		store:    st,
		ledger:   lg,
		catalog:  cat,
		unlock:   ul,
		payment:  pay,
		analyzer: an,
		JWTKey:   jwtKey,
	}
}

// httpError maps service errors onto HTTP responses. Every failure in the
// taxonomy has a user-recoverable status; nothing here is fatal.
func httpError(err error) error {
	var ve *catalog.ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"message": "validation failed",
			"fields":  ve.Fields,
		})
	}
	var ae *intake.AnalysisError
	if errors.As(err, &ae) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"message":   ae.Error(),
			"retryable": true,
		})
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return echo.NewHTTPError(http.StatusPaymentRequired, "insufficient point balance")
	case errors.Is(err, ledger.ErrInvalidAmount):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrBonusAlreadyGranted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrRaceUnlocked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, payment.ErrUnknownPackage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
