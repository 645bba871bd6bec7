package handlers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/takigawalab/indexapi/catalog"
	mw "github.com/takigawalab/indexapi/middleware"
	"github.com/takigawalab/indexapi/models"
)

type raceSummary struct {
	ID          int64   `json:"id"`
	RaceDate    string  `json:"raceDate"`
	Venue       string  `json:"venue"`
	RaceNumber  int     `json:"raceNumber"`
	RaceName    string  `json:"raceName"`
	RaceType    string  `json:"raceType"`
	Distance    int     `json:"distance"`
	PostTime    string  `json:"postTime"`
	GradeClass  *string `json:"gradeClass,omitempty"`
	NoteURL     *string `json:"noteUrl,omitempty"`
	PointCost   int     `json:"pointCost"`
	IsFree      bool    `json:"isFree"`
	HorsesCount int     `json:"horsesCount"`
}

type raceDetail struct {
	raceSummary
	Weather        *string         `json:"weather,omitempty"`
	TrackCondition *string         `json:"trackCondition,omitempty"`
	PrizeFirst     *int            `json:"prizeFirst,omitempty"`
	HasAccess      bool            `json:"hasAccess"`
	Horses         []*models.Horse `json:"horses,omitempty"`
}

func summarize(r *models.Race, horsesCount int) raceSummary {
	return raceSummary{
		ID:          r.ID,
		RaceDate:    r.RaceDate,
		Venue:       r.Venue,
		RaceNumber:  r.RaceNumber,
		RaceName:    r.RaceName,
		RaceType:    r.RaceType,
		Distance:    r.Distance,
		PostTime:    r.PostTime,
		GradeClass:  r.GradeClass,
		NoteURL:     r.NoteURL,
		PointCost:   r.PointCost,
		IsFree:      r.IsFree,
		HorsesCount: horsesCount,
	}
}

// Races lists published races, optionally narrowed by category and date.
func (h *Handler) Races(c echo.Context) error {
	f := catalog.ListFilter{
		Category:      c.QueryParam("category"),
		Date:          c.QueryParam("date"),
		PublishedOnly: true,
	}
	races, err := h.catalog.ListRaces(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}

	out := make([]raceSummary, 0, len(races))
	for i := range races {
		horses, err := h.store.HorsesByRace(c.Request().Context(), races[i].ID)
		if err != nil {
			return httpError(err)
		}
		out = append(out, summarize(&races[i], len(horses)))
	}
	return c.JSON(http.StatusOK, out)
}

// TopRaces lists races flagged for the top page, in display order.
func (h *Handler) TopRaces(c echo.Context) error {
	races, err := h.catalog.TopRaces(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	out := make([]raceSummary, 0, len(races))
	for i := range races {
		horses, err := h.store.HorsesByRace(c.Request().Context(), races[i].ID)
		if err != nil {
			return httpError(err)
		}
		out = append(out, summarize(&races[i], len(horses)))
	}
	return c.JSON(http.StatusOK, out)
}

// RaceDetail returns a race for the public page. Visitors without access get
// the teaser: race facts and the horse count, never the index table.
// Unpublished races 404 for everyone.
func (h *Handler) RaceDetail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid race id")
	}
	ctx := c.Request().Context()

	race, err := h.catalog.PublicRace(ctx, id)
	if err != nil {
		return httpError(err)
	}

	userID := mw.UserID(c)
	access, err := h.unlock.HasAccess(ctx, userID, id)
	if err != nil {
		return httpError(err)
	}

	detail := raceDetail{
		raceSummary:    summarize(race, len(race.Horses)),
		Weather:        race.Weather,
		TrackCondition: race.TrackCondition,
		PrizeFirst:     race.PrizeFirst,
		HasAccess:      access,
	}
	if access {
		horses := race.Horses
		sort.Slice(horses, func(i, j int) bool { return horses[i].Index > horses[j].Index })
		detail.Horses = horses
	}
	return c.JSON(http.StatusOK, detail)
}

// UnlockRace spends points to open a race's index table for the caller.
func (h *Handler) UnlockRace(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid race id")
	}

	record, err := h.unlock.Unlock(c.Request().Context(), mw.UserID(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, record)
}
