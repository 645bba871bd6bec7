package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/takigawalab/indexapi/catalog"
	"github.com/takigawalab/indexapi/models"
)

func raceID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid race id")
	}
	return id, nil
}

type raceWrite struct {
	models.Race
	Horses []*models.Horse `json:"horses"`
}

// AdminRaces lists all races for the back office, unpublished included.
func (h *Handler) AdminRaces(c echo.Context) error {
	races, err := h.catalog.ListRaces(c.Request().Context(), catalog.ListFilter{
		Category: c.QueryParam("category"),
		Date:     c.QueryParam("date"),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, races)
}

// AdminRaceDetail returns one race with horses regardless of publish state.
func (h *Handler) AdminRaceDetail(c echo.Context) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	race, err := h.catalog.GetRace(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, race)
}

// AdminCreateRace creates a race, with its horse list when provided.
func (h *Handler) AdminCreateRace(c echo.Context) error {
	var req raceWrite
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()

	race, err := h.catalog.CreateRace(ctx, &req.Race)
	if err != nil {
		return httpError(err)
	}
	if len(req.Horses) > 0 {
		if err := h.catalog.ReplaceHorses(ctx, race.ID, req.Horses); err != nil {
			return httpError(err)
		}
	}

	full, err := h.catalog.GetRace(ctx, race.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, full)
}

// AdminUpdateRace updates race fields; the horse list is managed separately.
func (h *Handler) AdminUpdateRace(c echo.Context) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	var req raceWrite
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Race.ID = id

	if err := h.catalog.UpdateRace(c.Request().Context(), &req.Race); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

// AdminDeleteRace deletes a race that no one has paid for; races with unlock
// records are refused and should be unpublished instead.
func (h *Handler) AdminDeleteRace(c echo.Context) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteRace(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

// AdminReplaceHorses swaps a race's full horse list; index scores are
// recomputed on write.
func (h *Handler) AdminReplaceHorses(c echo.Context) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	var horses []*models.Horse
	if err := c.Bind(&horses); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.catalog.ReplaceHorses(c.Request().Context(), id, horses); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

type publishRequest struct {
	IsPublished bool `json:"isPublished"`
}

// AdminPublishRace sets the publish flag. No cascades: horses stay intact
// and the race simply vanishes from the public surface when unpublished.
func (h *Handler) AdminPublishRace(c echo.Context) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.catalog.SetPublished(c.Request().Context(), id, req.IsPublished); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

type showOnTopRequest struct {
	ShowOnTop bool `json:"showOnTop"`
}

// AdminShowOnTop adds or removes the race from the top page rotation.
func (h *Handler) AdminShowOnTop(c echo.Context) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	var req showOnTopRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.catalog.SetShowOnTop(c.Request().Context(), id, req.ShowOnTop); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

type topOrderRequest struct {
	Order int `json:"order"`
}

// AdminTopOrder moves a top-page race to the requested position; the rest
// shift down so the ordering stays 1..N.
func (h *Handler) AdminTopOrder(c echo.Context) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	var req topOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.catalog.SetTopOrder(c.Request().Context(), id, req.Order); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}
