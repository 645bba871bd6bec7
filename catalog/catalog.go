// Package catalog owns races, horses, notices and features: validation on
// writes, the public list filters, the derived index score, and the ordering
// rules for top-page races and feature blurbs.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/takigawalab/indexapi/models"
	"github.com/takigawalab/indexapi/store"
)

// ErrRaceUnlocked is returned by DeleteRace when unlock records reference the
// race. Unpublish instead of deleting so purchased access survives.
var ErrRaceUnlocked = errors.New("race has unlock records; unpublish instead of deleting")

// ValidationError lists the offending fields of a rejected write.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// centralVenues is the fixed JRA track allow-list. Anything else is a local
// track.
var centralVenues = []string{
	"中山", "東京", "阪神", "京都", "中京", "新潟", "福島", "札幌", "函館", "小倉",
}

// List categories accepted by the public surface.
const (
	CategoryCentral = "central"
	CategoryLocal   = "local"
	CategoryG1      = "g1"
	CategoryG2G3    = "g2g3"
	CategoryFree    = "free"
)

// Service is the content catalog.
type Service struct {
	store store.Store
}

// New creates a catalog service over the given store.
func New(st store.Store) *Service {
	return &Service{store: st}
}

func validateRace(r *models.Race) error {
	var bad []string
	if strings.TrimSpace(r.Venue) == "" {
		bad = append(bad, "venue")
	}
	if strings.TrimSpace(r.RaceName) == "" {
		bad = append(bad, "raceName")
	}
	if strings.TrimSpace(r.RaceDate) == "" {
		bad = append(bad, "raceDate")
	}
	if strings.TrimSpace(r.PostTime) == "" {
		bad = append(bad, "postTime")
	}
	if r.RaceNumber <= 0 {
		bad = append(bad, "raceNumber")
	}
	if r.Distance <= 0 {
		bad = append(bad, "distance")
	}
	if r.IsFree && r.PointCost != 0 {
		bad = append(bad, "pointCost")
	}
	if !r.IsFree && r.PointCost <= 0 {
		bad = append(bad, "pointCost")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

// CreateRace validates and stores a new race.
func (s *Service) CreateRace(ctx context.Context, r *models.Race) (*models.Race, error) {
	if err := validateRace(r); err != nil {
		return nil, err
	}
	if err := s.store.CreateRace(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateRace validates and stores changes to an existing race. Top-page
// placement is managed by SetShowOnTop/SetTopOrder and is preserved here,
// so a plain update cannot leave the top ordering duplicated.
func (s *Service) UpdateRace(ctx context.Context, r *models.Race) error {
	if err := validateRace(r); err != nil {
		return err
	}
	cur, err := s.store.GetRace(ctx, r.ID)
	if err != nil {
		return err
	}
	r.ShowOnTop = cur.ShowOnTop
	r.TopOrder = cur.TopOrder
	return s.store.UpdateRace(ctx, r)
}

// GetRace returns a race with its horses, regardless of publish state.
// Admin surface only.
func (s *Service) GetRace(ctx context.Context, id int64) (*models.Race, error) {
	r, err := s.store.GetRace(ctx, id)
	if err != nil {
		return nil, err
	}
	horses, err := s.store.HorsesByRace(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Horses = make([]*models.Horse, len(horses))
	for i := range horses {
		r.Horses[i] = &horses[i]
	}
	return r, nil
}

// PublicRace returns a published race with its horses. An unpublished race is
// reported as store.ErrNotFound so the public surface cannot tell it from a
// race that never existed.
func (s *Service) PublicRace(ctx context.Context, id int64) (*models.Race, error) {
	r, err := s.GetRace(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.IsPublished {
		return nil, store.ErrNotFound
	}
	return r, nil
}

// DeleteRace removes a race and its horses. Races referenced by unlock
// records cannot be deleted.
func (s *Service) DeleteRace(ctx context.Context, id int64) error {
	referenced, err := s.store.RaceHasUnlocks(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return ErrRaceUnlocked
	}
	return s.store.DeleteRace(ctx, id)
}

// ListFilter narrows the race list.
type ListFilter struct {
	Category      string // central | local | g1 | g2g3 | free | ""
	Date          string
	PublishedOnly bool
}

// ListRaces returns races matching the filter, ordered by race date then post
// time.
func (s *Service) ListRaces(ctx context.Context, f ListFilter) ([]models.Race, error) {
	q := store.RaceQuery{
		Date:          f.Date,
		PublishedOnly: f.PublishedOnly,
	}
	switch f.Category {
	case "":
	case CategoryCentral:
		q.Venues = centralVenues
	case CategoryLocal:
		q.ExcludeVenues = centralVenues
	case CategoryG1:
		q.Grades = []string{models.GradeG1}
	case CategoryG2G3:
		q.Grades = []string{models.GradeG2, models.GradeG3}
	case CategoryFree:
		q.FreeOnly = true
	default:
		return nil, &ValidationError{Fields: []string{"category"}}
	}
	return s.store.ListRaces(ctx, q)
}

// TopRaces returns published races flagged for the top page in topOrder.
func (s *Service) TopRaces(ctx context.Context) ([]models.Race, error) {
	return s.store.ListRaces(ctx, store.RaceQuery{PublishedOnly: true, OnTopOnly: true})
}

// SetPublished flips the race publish flag. No cascading effects.
func (s *Service) SetPublished(ctx context.Context, id int64, published bool) error {
	r, err := s.store.GetRace(ctx, id)
	if err != nil {
		return err
	}
	r.IsPublished = published
	return s.store.UpdateRace(ctx, r)
}

// SetShowOnTop adds or removes a race from the top page. Added races go to
// the end of the ordering; removals resequence the rest to 1..N.
func (s *Service) SetShowOnTop(ctx context.Context, id int64, show bool) error {
	return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		r, err := tx.GetRace(ctx, id)
		if err != nil {
			return err
		}
		if r.ShowOnTop == show {
			return nil
		}

		top, err := tx.ListRaces(ctx, store.RaceQuery{OnTopOnly: true})
		if err != nil {
			return err
		}

		if show {
			r.ShowOnTop = true
			n := len(top) + 1
			r.TopOrder = &n
			return tx.UpdateRace(ctx, r)
		}

		r.ShowOnTop = false
		r.TopOrder = nil
		if err := tx.UpdateRace(ctx, r); err != nil {
			return err
		}
		return resequenceTop(ctx, tx, top, id)
	})
}

// SetTopOrder moves a top-page race to the given position. The remaining
// races shift down so topOrder stays the contiguous unique set 1..N.
func (s *Service) SetTopOrder(ctx context.Context, id int64, order int) error {
	if order <= 0 {
		return &ValidationError{Fields: []string{"order"}}
	}
	return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		top, err := tx.ListRaces(ctx, store.RaceQuery{OnTopOnly: true})
		if err != nil {
			return err
		}

		idx := -1
		for i := range top {
			if top[i].ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return store.ErrNotFound
		}

		target := top[idx]
		rest := append(append([]models.Race{}, top[:idx]...), top[idx+1:]...)
		if order > len(top) {
			order = len(top)
		}
		seq := append([]models.Race{}, rest[:order-1]...)
		seq = append(seq, target)
		seq = append(seq, rest[order-1:]...)

		for i := range seq {
			o := i + 1
			r := seq[i]
			r.TopOrder = &o
			if err := tx.UpdateRace(ctx, &r); err != nil {
				return err
			}
		}
		return nil
	})
}

func resequenceTop(ctx context.Context, tx store.Store, top []models.Race, skipID int64) error {
	o := 0
	for i := range top {
		if top[i].ID == skipID {
			continue
		}
		o++
		r := top[i]
		r.TopOrder = &o
		if err := tx.UpdateRace(ctx, &r); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceHorses swaps the full horse list of a race. Horse numbers must be
// positive and unique within the race; the index score is recomputed for
// every entry.
func (s *Service) ReplaceHorses(ctx context.Context, raceID int64, horses []*models.Horse) error {
	if _, err := s.store.GetRace(ctx, raceID); err != nil {
		return err
	}

	seen := map[int]bool{}
	var bad []string
	for i, h := range horses {
		if h.HorseNumber <= 0 || seen[h.HorseNumber] {
			bad = append(bad, fmt.Sprintf("horses[%d].horseNumber", i))
		}
		seen[h.HorseNumber] = true
		if strings.TrimSpace(h.HorseName) == "" {
			bad = append(bad, fmt.Sprintf("horses[%d].horseName", i))
		}
		if h.Age <= 0 {
			bad = append(bad, fmt.Sprintf("horses[%d].age", i))
		}
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}

	for _, h := range horses {
		h.Index = ComputeIndex(h)
	}
	return s.store.ReplaceHorses(ctx, raceID, horses)
}

// ComputeIndex derives the display ranking score for a horse. It is a pure
// function of the entry: identical inputs always give the identical score.
// Values usually land in [0,100] but the range is not clamped.
func ComputeIndex(h *models.Horse) float64 {
	score := 50.0
	if h.Odds != nil && *h.Odds > 0 {
		score += 35 / math.Sqrt(*h.Odds)
	}
	if h.Popularity != nil && *h.Popularity > 0 {
		score += float64(18-*h.Popularity) * 0.8
	}
	if h.WeightChange != nil {
		score -= math.Abs(float64(*h.WeightChange)) * 0.5
	}
	return math.Round(score*10) / 10
}

// --- Notices ---

func validateNotice(n *models.Notice) error {
	var bad []string
	if strings.TrimSpace(n.Title) == "" {
		bad = append(bad, "title")
	}
	if strings.TrimSpace(n.Content) == "" {
		bad = append(bad, "content")
	}
	switch n.Type {
	case models.NoticeCampaign, models.NoticeMaintenance, models.NoticeUpdate:
	default:
		bad = append(bad, "type")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

func (s *Service) CreateNotice(ctx context.Context, n *models.Notice) (*models.Notice, error) {
	if err := validateNotice(n); err != nil {
		return nil, err
	}
	if err := s.store.CreateNotice(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) UpdateNotice(ctx context.Context, n *models.Notice) error {
	if err := validateNotice(n); err != nil {
		return err
	}
	return s.store.UpdateNotice(ctx, n)
}

func (s *Service) GetNotice(ctx context.Context, id int64) (*models.Notice, error) {
	return s.store.GetNotice(ctx, id)
}

func (s *Service) DeleteNotice(ctx context.Context, id int64) error {
	return s.store.DeleteNotice(ctx, id)
}

// ListNotices returns notices, newest first. typ filters by notice type when
// non-empty.
func (s *Service) ListNotices(ctx context.Context, publishedOnly bool, typ string) ([]models.Notice, error) {
	if typ != "" {
		switch typ {
		case models.NoticeCampaign, models.NoticeMaintenance, models.NoticeUpdate:
		default:
			return nil, &ValidationError{Fields: []string{"type"}}
		}
	}
	return s.store.ListNotices(ctx, publishedOnly, typ)
}

// ToggleNoticePublished flips the publish flag.
func (s *Service) ToggleNoticePublished(ctx context.Context, id int64) (*models.Notice, error) {
	n, err := s.store.GetNotice(ctx, id)
	if err != nil {
		return nil, err
	}
	n.IsPublished = !n.IsPublished
	if err := s.store.UpdateNotice(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// ToggleNoticeNew flips the "new" badge.
func (s *Service) ToggleNoticeNew(ctx context.Context, id int64) (*models.Notice, error) {
	n, err := s.store.GetNotice(ctx, id)
	if err != nil {
		return nil, err
	}
	n.IsNew = !n.IsNew
	if err := s.store.UpdateNotice(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// --- Features ---

func validateFeature(f *models.Feature) error {
	var bad []string
	if strings.TrimSpace(f.Icon) == "" {
		bad = append(bad, "icon")
	}
	if strings.TrimSpace(f.Title) == "" {
		bad = append(bad, "title")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

// CreateFeature appends a feature at the end of the ordering.
func (s *Service) CreateFeature(ctx context.Context, f *models.Feature) (*models.Feature, error) {
	if err := validateFeature(f); err != nil {
		return nil, err
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		all, err := tx.ListFeatures(ctx, false)
		if err != nil {
			return err
		}
		f.Order = len(all) + 1
		return tx.CreateFeature(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateFeature changes a feature's content. The order field is managed by
// ReorderFeatures/MoveFeature and is preserved here.
func (s *Service) UpdateFeature(ctx context.Context, f *models.Feature) error {
	if err := validateFeature(f); err != nil {
		return err
	}
	cur, err := s.store.GetFeature(ctx, f.ID)
	if err != nil {
		return err
	}
	f.Order = cur.Order
	return s.store.UpdateFeature(ctx, f)
}

func (s *Service) GetFeature(ctx context.Context, id int64) (*models.Feature, error) {
	return s.store.GetFeature(ctx, id)
}

// DeleteFeature removes a feature and closes the gap in the ordering.
func (s *Service) DeleteFeature(ctx context.Context, id int64) error {
	return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.DeleteFeature(ctx, id); err != nil {
			return err
		}
		all, err := tx.ListFeatures(ctx, false)
		if err != nil {
			return err
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Order < all[j].Order })
		for i := range all {
			if all[i].Order == i+1 {
				continue
			}
			all[i].Order = i + 1
			if err := tx.UpdateFeature(ctx, &all[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListFeatures returns features ordered by display order.
func (s *Service) ListFeatures(ctx context.Context, publishedOnly bool) ([]models.Feature, error) {
	return s.store.ListFeatures(ctx, publishedOnly)
}

// ToggleFeaturePublished flips the publish flag.
func (s *Service) ToggleFeaturePublished(ctx context.Context, id int64) (*models.Feature, error) {
	f, err := s.store.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	f.IsPublished = !f.IsPublished
	if err := s.store.UpdateFeature(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// ReorderFeatures assigns order 1..N following idsInOrder, which must match
// the existing feature id set exactly.
func (s *Service) ReorderFeatures(ctx context.Context, idsInOrder []int64) error {
	return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		all, err := tx.ListFeatures(ctx, false)
		if err != nil {
			return err
		}
		if len(all) != len(idsInOrder) {
			return &ValidationError{Fields: []string{"ids"}}
		}
		byID := map[int64]*models.Feature{}
		for i := range all {
			byID[all[i].ID] = &all[i]
		}
		seen := map[int64]bool{}
		for _, id := range idsInOrder {
			if byID[id] == nil || seen[id] {
				return &ValidationError{Fields: []string{"ids"}}
			}
			seen[id] = true
		}
		for i, id := range idsInOrder {
			f := byID[id]
			f.Order = i + 1
			if err := tx.UpdateFeature(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// MoveFeature swaps a feature with its neighbor. dir is -1 (up) or +1 (down);
// moving past either end is a no-op.
func (s *Service) MoveFeature(ctx context.Context, id int64, dir int) error {
	if dir != -1 && dir != 1 {
		return &ValidationError{Fields: []string{"direction"}}
	}
	return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		all, err := tx.ListFeatures(ctx, false)
		if err != nil {
			return err
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Order < all[j].Order })

		idx := -1
		for i := range all {
			if all[i].ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return store.ErrNotFound
		}
		other := idx + dir
		if other < 0 || other >= len(all) {
			return nil
		}

		all[idx].Order, all[other].Order = all[other].Order, all[idx].Order
		if err := tx.UpdateFeature(ctx, &all[idx]); err != nil {
			return err
		}
		return tx.UpdateFeature(ctx, &all[other])
	})
}
