package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/takigawalab/indexapi/models"
)

func featureID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid feature id")
	}
	return id, nil
}

// AdminFeatures lists all features in display order, unpublished included.
func (h *Handler) AdminFeatures(c echo.Context) error {
	features, err := h.catalog.ListFeatures(c.Request().Context(), false)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, features)
}

// AdminCreateFeature creates a feature at the end of the ordering.
func (h *Handler) AdminCreateFeature(c echo.Context) error {
	var f models.Feature
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.catalog.CreateFeature(c.Request().Context(), &f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

// AdminUpdateFeature updates a feature's content; its position is unchanged.
func (h *Handler) AdminUpdateFeature(c echo.Context) error {
	id, err := featureID(c)
	if err != nil {
		return err
	}
	var f models.Feature
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f.ID = id
	if err := h.catalog.UpdateFeature(c.Request().Context(), &f); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

// AdminDeleteFeature deletes a feature and closes the ordering gap.
func (h *Handler) AdminDeleteFeature(c echo.Context) error {
	id, err := featureID(c)
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteFeature(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

// AdminToggleFeaturePublished flips the publish flag and returns the feature.
func (h *Handler) AdminToggleFeaturePublished(c echo.Context) error {
	id, err := featureID(c)
	if err != nil {
		return err
	}
	f, err := h.catalog.ToggleFeaturePublished(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f)
}

type reorderRequest struct {
	IDs []int64 `json:"ids"`
}

// AdminReorderFeatures applies a full explicit ordering. The id list must
// match the existing feature set exactly.
func (h *Handler) AdminReorderFeatures(c echo.Context) error {
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.catalog.ReorderFeatures(c.Request().Context(), req.IDs); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

type moveRequest struct {
	Direction string `json:"direction"` // "up" | "down"
}

// AdminMoveFeature swaps a feature with its neighbor.
func (h *Handler) AdminMoveFeature(c echo.Context) error {
	id, err := featureID(c)
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	dir := 0
	switch req.Direction {
	case "up":
		dir = -1
	case "down":
		dir = 1
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "direction must be up or down")
	}

	if err := h.catalog.MoveFeature(c.Request().Context(), id, dir); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}
