package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/takigawalab/indexapi/models"
)

// Postgres implements Store on top of bun. The same type serves both plain
// connections and transactions: RunInTx hands fn a Postgres wrapping bun.Tx.
type Postgres struct {
	db bun.IDB
}

// NewPostgres wraps an open bun connection.
func NewPostgres(db *bun.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	bdb, ok := s.db.(*bun.DB)
	if !ok {
		// Already transactional, run fn against the same view.
		return fn(ctx, s)
	}
	return bdb.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Postgres{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- Users ---

func (s *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.NewInsert().Model(u).Exec(ctx)
	return err
}

func (s *Postgres) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	if err := s.db.NewSelect().Model(u).Where("u.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *Postgres) GetUserByLineID(ctx context.Context, lineID string) (*models.User, error) {
	u := &models.User{}
	if err := s.db.NewSelect().Model(u).Where("u.line_id = ?", lineID).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// UserForUpdate reads the user row with FOR UPDATE so a concurrent debit for
// the same user blocks until this transaction ends.
func (s *Postgres) UserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	if err := s.db.NewSelect().Model(u).Where("u.id = ?", id).For("UPDATE").Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *Postgres) UpdateUser(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().Model(u).
		WherePK().
		ExcludeColumn("created_at").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Postgres) SetUserPoints(ctx context.Context, id int64, points int) error {
	res, err := s.db.NewUpdate().Model((*models.User)(nil)).
		Set("points = ?", points).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Point ledger ---

func (s *Postgres) AppendTransaction(ctx context.Context, tx *models.PointTransaction) error {
	_, err := s.db.NewInsert().Model(tx).Exec(ctx)
	return err
}

func (s *Postgres) TransactionsByUser(ctx context.Context, userID int64) ([]models.PointTransaction, error) {
	var txs []models.PointTransaction
	err := s.db.NewSelect().Model(&txs).
		Where("pt.user_id = ?", userID).
		OrderExpr("pt.created_at DESC, pt.id DESC").
		Scan(ctx)
	return txs, err
}

// --- Races ---

func (s *Postgres) CreateRace(ctx context.Context, r *models.Race) error {
	_, err := s.db.NewInsert().Model(r).Exec(ctx)
	return err
}

func (s *Postgres) GetRace(ctx context.Context, id int64) (*models.Race, error) {
	r := &models.Race{}
	if err := s.db.NewSelect().Model(r).Where("rc.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (s *Postgres) UpdateRace(ctx context.Context, r *models.Race) error {
	r.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().Model(r).
		WherePK().
		ExcludeColumn("created_at").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Postgres) DeleteRace(ctx context.Context, id int64) error {
	if _, err := s.db.NewDelete().Model((*models.Horse)(nil)).Where("race_id = ?", id).Exec(ctx); err != nil {
		return err
	}
	res, err := s.db.NewDelete().Model((*models.Race)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Postgres) ListRaces(ctx context.Context, q RaceQuery) ([]models.Race, error) {
	var races []models.Race
	sel := s.db.NewSelect().Model(&races)

	if q.Date != "" {
		sel = sel.Where("rc.race_date = ?", q.Date)
	}
	if len(q.Venues) > 0 {
		sel = sel.Where("rc.venue IN (?)", bun.In(q.Venues))
	}
	if len(q.ExcludeVenues) > 0 {
		sel = sel.Where("rc.venue NOT IN (?)", bun.In(q.ExcludeVenues))
	}
	if len(q.Grades) > 0 {
		sel = sel.Where("rc.grade_class IN (?)", bun.In(q.Grades))
	}
	if q.FreeOnly {
		sel = sel.Where("rc.is_free")
	}
	if q.PublishedOnly {
		sel = sel.Where("rc.is_published")
	}
	if q.OnTopOnly {
		sel = sel.Where("rc.show_on_top").OrderExpr("rc.top_order ASC")
	} else {
		sel = sel.OrderExpr("rc.race_date ASC, rc.post_time ASC, rc.race_number ASC")
	}

	if err := sel.Scan(ctx); err != nil {
		return nil, err
	}
	return races, nil
}

// --- Horses ---

func (s *Postgres) ReplaceHorses(ctx context.Context, raceID int64, horses []*models.Horse) error {
	if _, err := s.db.NewDelete().Model((*models.Horse)(nil)).Where("race_id = ?", raceID).Exec(ctx); err != nil {
		return err
	}
	if len(horses) == 0 {
		return nil
	}
	for _, h := range horses {
		h.RaceID = raceID
	}
	_, err := s.db.NewInsert().Model(&horses).Exec(ctx)
	return err
}

func (s *Postgres) HorsesByRace(ctx context.Context, raceID int64) ([]models.Horse, error) {
	var horses []models.Horse
	err := s.db.NewSelect().Model(&horses).
		Where("h.race_id = ?", raceID).
		OrderExpr("h.horse_number ASC").
		Scan(ctx)
	return horses, err
}

// --- Notices ---

func (s *Postgres) CreateNotice(ctx context.Context, n *models.Notice) error {
	_, err := s.db.NewInsert().Model(n).Exec(ctx)
	return err
}

func (s *Postgres) GetNotice(ctx context.Context, id int64) (*models.Notice, error) {
	n := &models.Notice{}
	if err := s.db.NewSelect().Model(n).Where("n.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return n, nil
}

func (s *Postgres) UpdateNotice(ctx context.Context, n *models.Notice) error {
	n.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().Model(n).
		WherePK().
		ExcludeColumn("created_at").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Postgres) DeleteNotice(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*models.Notice)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Postgres) ListNotices(ctx context.Context, publishedOnly bool, typ string) ([]models.Notice, error) {
	var notices []models.Notice
	sel := s.db.NewSelect().Model(&notices).OrderExpr("n.created_at DESC, n.id DESC")
	if publishedOnly {
		sel = sel.Where("n.is_published")
	}
	if typ != "" {
		sel = sel.Where("n.type = ?", typ)
	}
	err := sel.Scan(ctx)
	return notices, err
}

// --- Features ---

func (s *Postgres) CreateFeature(ctx context.Context, f *models.Feature) error {
	_, err := s.db.NewInsert().Model(f).Exec(ctx)
	return err
}

func (s *Postgres) GetFeature(ctx context.Context, id int64) (*models.Feature, error) {
	f := &models.Feature{}
	if err := s.db.NewSelect().Model(f).Where("f.id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

func (s *Postgres) UpdateFeature(ctx context.Context, f *models.Feature) error {
	f.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().Model(f).
		WherePK().
		ExcludeColumn("created_at").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Postgres) DeleteFeature(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().Model((*models.Feature)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Postgres) ListFeatures(ctx context.Context, publishedOnly bool) ([]models.Feature, error) {
	var features []models.Feature
	sel := s.db.NewSelect().Model(&features).OrderExpr("f.display_order ASC")
	if publishedOnly {
		sel = sel.Where("f.is_published")
	}
	err := sel.Scan(ctx)
	return features, err
}

// --- Unlock records ---

func (s *Postgres) CreateUnlock(ctx context.Context, ur *models.UnlockRecord) error {
	_, err := s.db.NewInsert().Model(ur).Exec(ctx)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate key value") {
		return ErrDuplicateUnlock
	}
	return err
}

func (s *Postgres) GetUnlock(ctx context.Context, userID, raceID int64) (*models.UnlockRecord, error) {
	ur := &models.UnlockRecord{}
	err := s.db.NewSelect().Model(ur).
		Where("ur.user_id = ?", userID).
		Where("ur.race_id = ?", raceID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return ur, nil
}

func (s *Postgres) UnlocksByUser(ctx context.Context, userID int64) ([]models.UnlockRecord, error) {
	var urs []models.UnlockRecord
	err := s.db.NewSelect().Model(&urs).
		Where("ur.user_id = ?", userID).
		OrderExpr("ur.unlocked_at DESC, ur.id DESC").
		Scan(ctx)
	return urs, err
}

func (s *Postgres) RaceHasUnlocks(ctx context.Context, raceID int64) (bool, error) {
	return s.db.NewSelect().Model((*models.UnlockRecord)(nil)).
		Where("race_id = ?", raceID).
		Exists(ctx)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
