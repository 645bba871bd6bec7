package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/takigawalab/indexapi/models"
)

func noticeID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid notice id")
	}
	return id, nil
}

// AdminNotices lists all notices, unpublished included.
func (h *Handler) AdminNotices(c echo.Context) error {
	notices, err := h.catalog.ListNotices(c.Request().Context(), false, c.QueryParam("type"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notices)
}

// AdminCreateNotice creates a notice.
func (h *Handler) AdminCreateNotice(c echo.Context) error {
	var n models.Notice
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.catalog.CreateNotice(c.Request().Context(), &n)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

// AdminUpdateNotice updates a notice.
func (h *Handler) AdminUpdateNotice(c echo.Context) error {
	id, err := noticeID(c)
	if err != nil {
		return err
	}
	var n models.Notice
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n.ID = id
	if err := h.catalog.UpdateNotice(c.Request().Context(), &n); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

// AdminDeleteNotice deletes a notice.
func (h *Handler) AdminDeleteNotice(c echo.Context) error {
	id, err := noticeID(c)
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteNotice(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

// AdminToggleNoticePublished flips the publish flag and returns the notice.
func (h *Handler) AdminToggleNoticePublished(c echo.Context) error {
	id, err := noticeID(c)
	if err != nil {
		return err
	}
	n, err := h.catalog.ToggleNoticePublished(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, n)
}

// AdminToggleNoticeNew flips the "new" badge and returns the notice.
func (h *Handler) AdminToggleNoticeNew(c echo.Context) error {
	id, err := noticeID(c)
	if err != nil {
		return err
	}
	n, err := h.catalog.ToggleNoticeNew(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, n)
}
