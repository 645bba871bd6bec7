package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/takigawalab/indexapi/models"
)

// Memory is a mutex-protected in-memory Store backing the test suites.
//
// RunInTx serializes transactions with a dedicated lock and hands fn a view
// that journals every write; when fn fails the journal is replayed in reverse,
// undoing only the transaction's own writes. Writes committed outside a
// transaction while it runs are untouched by the rollback.
type Memory struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextID map[string]int64

	users    map[int64]models.User
	races    map[int64]models.Race
	horses   map[int64]models.Horse
	notices  map[int64]models.Notice
	features map[int64]models.Feature
	unlocks  map[int64]models.UnlockRecord
	ledger   []models.PointTransaction
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:   map[string]int64{},
		users:    map[int64]models.User{},
		races:    map[int64]models.Race{},
		horses:   map[int64]models.Horse{},
		notices:  map[int64]models.Notice{},
		features: map[int64]models.Feature{},
		unlocks:  map[int64]models.UnlockRecord{},
	}
}

func (s *Memory) id(kind string) int64 {
	s.nextID[kind]++
	return s.nextID[kind]
}

func (s *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{Memory: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memoryTx wraps Memory with a write journal. Reads pass straight through;
// each write first records an undo step so rollback can put back exactly the
// entries this transaction touched.
type memoryTx struct {
	*Memory
	undo []func()
}

// Nested transactions join the enclosing one.
func (t *memoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, t)
}

func (t *memoryTx) rollback() {
	t.Memory.mu.Lock()
	defer t.Memory.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// priorEntry captures the current value of m[id]; the returned step restores
// it (or deletes the entry if it did not exist). Steps run under mem.mu.
func priorEntry[V any](mem *Memory, m map[int64]V, id int64) func() {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	if prev, ok := m[id]; ok {
		return func() { m[id] = prev }
	}
	return func() { delete(m, id) }
}

func (t *memoryTx) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID != 0 {
		t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.users, u.ID))
		return t.Memory.CreateUser(ctx, u)
	}
	if err := t.Memory.CreateUser(ctx, u); err != nil {
		return err
	}
	id := u.ID
	t.undo = append(t.undo, func() { delete(t.Memory.users, id) })
	return nil
}

func (t *memoryTx) UpdateUser(ctx context.Context, u *models.User) error {
	t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.users, u.ID))
	return t.Memory.UpdateUser(ctx, u)
}

func (t *memoryTx) SetUserPoints(ctx context.Context, id int64, points int) error {
	t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.users, id))
	return t.Memory.SetUserPoints(ctx, id, points)
}

func (t *memoryTx) AppendTransaction(ctx context.Context, tx *models.PointTransaction) error {
	if err := t.Memory.AppendTransaction(ctx, tx); err != nil {
		return err
	}
	id := tx.ID
	t.undo = append(t.undo, func() {
		for i := range t.Memory.ledger {
			if t.Memory.ledger[i].ID == id {
				t.Memory.ledger = append(t.Memory.ledger[:i], t.Memory.ledger[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (t *memoryTx) CreateRace(ctx context.Context, r *models.Race) error {
	if r.ID != 0 {
		t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.races, r.ID))
		return t.Memory.CreateRace(ctx, r)
	}
	if err := t.Memory.CreateRace(ctx, r); err != nil {
		return err
	}
	id := r.ID
	t.undo = append(t.undo, func() { delete(t.Memory.races, id) })
	return nil
}

func (t *memoryTx) UpdateRace(ctx context.Context, r *models.Race) error {
	t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.races, r.ID))
	return t.Memory.UpdateRace(ctx, r)
}

func (t *memoryTx) DeleteRace(ctx context.Context, id int64) error {
	t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.races, id))
	t.undo = append(t.undo, t.priorHorses(id))
	return t.Memory.DeleteRace(ctx, id)
}

func (t *memoryTx) ReplaceHorses(ctx context.Context, raceID int64, horses []*models.Horse) error {
	t.undo = append(t.undo, t.priorHorses(raceID))
	return t.Memory.ReplaceHorses(ctx, raceID, horses)
}

// priorHorses captures every horse of a race so a rollback can restore the
// full set after a delete or replace.
func (t *memoryTx) priorHorses(raceID int64) func() {
	m := t.Memory
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := map[int64]models.Horse{}
	for hid, h := range m.horses {
		if h.RaceID == raceID {
			prev[hid] = h
		}
	}
	return func() {
		for hid, h := range m.horses {
			if h.RaceID == raceID {
				delete(m.horses, hid)
			}
		}
		for hid, h := range prev {
			m.horses[hid] = h
		}
	}
}

func (t *memoryTx) CreateNotice(ctx context.Context, n *models.Notice) error {
	if n.ID != 0 {
		t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.notices, n.ID))
		return t.Memory.CreateNotice(ctx, n)
	}
	if err := t.Memory.CreateNotice(ctx, n); err != nil {
		return err
	}
	id := n.ID
	t.undo = append(t.undo, func() { delete(t.Memory.notices, id) })
	return nil
}

func (t *memoryTx) UpdateNotice(ctx context.Context, n *models.Notice) error {
	t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.notices, n.ID))
	return t.Memory.UpdateNotice(ctx, n)
}

func (t *memoryTx) DeleteNotice(ctx context.Context, id int64) error {
	t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.notices, id))
	return t.Memory.DeleteNotice(ctx, id)
}

func (t *memoryTx) CreateFeature(ctx context.Context, f *models.Feature) error {
	if f.ID != 0 {
		t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.features, f.ID))
		return t.Memory.CreateFeature(ctx, f)
	}
	if err := t.Memory.CreateFeature(ctx, f); err != nil {
		return err
	}
	id := f.ID
	t.undo = append(t.undo, func() { delete(t.Memory.features, id) })
	return nil
}

func (t *memoryTx) UpdateFeature(ctx context.Context, f *models.Feature) error {
	t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.features, f.ID))
	return t.Memory.UpdateFeature(ctx, f)
}

func (t *memoryTx) DeleteFeature(ctx context.Context, id int64) error {
	t.undo = append(t.undo, priorEntry(t.Memory, t.Memory.features, id))
	return t.Memory.DeleteFeature(ctx, id)
}

func (t *memoryTx) CreateUnlock(ctx context.Context, ur *models.UnlockRecord) error {
	if err := t.Memory.CreateUnlock(ctx, ur); err != nil {
		return err
	}
	id := ur.ID
	t.undo = append(t.undo, func() { delete(t.Memory.unlocks, id) })
	return nil
}

// --- Users ---

func (s *Memory) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id("user")
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	return nil
}

func (s *Memory) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *Memory) GetUserByLineID(ctx context.Context, lineID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.LineID == lineID {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// UserForUpdate behaves like GetUser; the transaction lock already serializes
// writers here.
func (s *Memory) UserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	return s.GetUser(ctx, id)
}

func (s *Memory) UpdateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = time.Now()
	s.users[u.ID] = *u
	return nil
}

func (s *Memory) SetUserPoints(ctx context.Context, id int64, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Points = points
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return nil
}

// --- Point ledger ---

func (s *Memory) AppendTransaction(ctx context.Context, tx *models.PointTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = s.id("tx")
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	s.ledger = append(s.ledger, *tx)
	return nil
}

func (s *Memory) TransactionsByUser(ctx context.Context, userID int64) ([]models.PointTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PointTransaction
	for _, tx := range s.ledger {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// --- Races ---

func (s *Memory) CreateRace(ctx context.Context, r *models.Race) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.id("race")
	}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	s.races[r.ID] = *r
	return nil
}

func (s *Memory) GetRace(ctx context.Context, id int64) (*models.Race, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.races[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.Horses = nil
	return &r, nil
}

func (s *Memory) UpdateRace(ctx context.Context, r *models.Race) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.races[r.ID]
	if !ok {
		return ErrNotFound
	}
	r.CreatedAt = cur.CreatedAt
	r.UpdatedAt = time.Now()
	cp := *r
	cp.Horses = nil
	s.races[r.ID] = cp
	return nil
}

func (s *Memory) DeleteRace(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.races[id]; !ok {
		return ErrNotFound
	}
	delete(s.races, id)
	for hid, h := range s.horses {
		if h.RaceID == id {
			delete(s.horses, hid)
		}
	}
	return nil
}

func (s *Memory) ListRaces(ctx context.Context, q RaceQuery) ([]models.Race, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Race
	for _, r := range s.races {
		if q.Date != "" && r.RaceDate != q.Date {
			continue
		}
		if len(q.Venues) > 0 && !contains(q.Venues, r.Venue) {
			continue
		}
		if len(q.ExcludeVenues) > 0 && contains(q.ExcludeVenues, r.Venue) {
			continue
		}
		if len(q.Grades) > 0 && (r.GradeClass == nil || !contains(q.Grades, *r.GradeClass)) {
			continue
		}
		if q.FreeOnly && !r.IsFree {
			continue
		}
		if q.PublishedOnly && !r.IsPublished {
			continue
		}
		if q.OnTopOnly && !r.ShowOnTop {
			continue
		}
		r.Horses = nil
		out = append(out, r)
	}

	if q.OnTopOnly {
		sort.Slice(out, func(i, j int) bool {
			return orderOf(out[i].TopOrder) < orderOf(out[j].TopOrder)
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.RaceDate != b.RaceDate {
				return a.RaceDate < b.RaceDate
			}
			if a.PostTime != b.PostTime {
				return a.PostTime < b.PostTime
			}
			return a.RaceNumber < b.RaceNumber
		})
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func orderOf(p *int) int {
	if p == nil {
		return 1 << 30
	}
	return *p
}

// --- Horses ---

func (s *Memory) ReplaceHorses(ctx context.Context, raceID int64, horses []*models.Horse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hid, h := range s.horses {
		if h.RaceID == raceID {
			delete(s.horses, hid)
		}
	}
	now := time.Now()
	for _, h := range horses {
		h.ID = s.id("horse")
		h.RaceID = raceID
		h.CreatedAt, h.UpdatedAt = now, now
		s.horses[h.ID] = *h
	}
	return nil
}

func (s *Memory) HorsesByRace(ctx context.Context, raceID int64) ([]models.Horse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Horse
	for _, h := range s.horses {
		if h.RaceID == raceID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HorseNumber < out[j].HorseNumber })
	return out, nil
}

// --- Notices ---

func (s *Memory) CreateNotice(ctx context.Context, n *models.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == 0 {
		n.ID = s.id("notice")
	}
	now := time.Now()
	n.CreatedAt, n.UpdatedAt = now, now
	s.notices[n.ID] = *n
	return nil
}

func (s *Memory) GetNotice(ctx context.Context, id int64) (*models.Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (s *Memory) UpdateNotice(ctx context.Context, n *models.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.notices[n.ID]
	if !ok {
		return ErrNotFound
	}
	n.CreatedAt = cur.CreatedAt
	n.UpdatedAt = time.Now()
	s.notices[n.ID] = *n
	return nil
}

func (s *Memory) DeleteNotice(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notices[id]; !ok {
		return ErrNotFound
	}
	delete(s.notices, id)
	return nil
}

func (s *Memory) ListNotices(ctx context.Context, publishedOnly bool, typ string) ([]models.Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notice
	for _, n := range s.notices {
		if publishedOnly && !n.IsPublished {
			continue
		}
		if typ != "" && n.Type != typ {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// --- Features ---

func (s *Memory) CreateFeature(ctx context.Context, f *models.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		f.ID = s.id("feature")
	}
	now := time.Now()
	f.CreatedAt, f.UpdatedAt = now, now
	s.features[f.ID] = *f
	return nil
}

func (s *Memory) GetFeature(ctx context.Context, id int64) (*models.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.features[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (s *Memory) UpdateFeature(ctx context.Context, f *models.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.features[f.ID]
	if !ok {
		return ErrNotFound
	}
	f.CreatedAt = cur.CreatedAt
	f.UpdatedAt = time.Now()
	s.features[f.ID] = *f
	return nil
}

func (s *Memory) DeleteFeature(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.features[id]; !ok {
		return ErrNotFound
	}
	delete(s.features, id)
	return nil
}

func (s *Memory) ListFeatures(ctx context.Context, publishedOnly bool) ([]models.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Feature
	for _, f := range s.features {
		if publishedOnly && !f.IsPublished {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// --- Unlock records ---

func (s *Memory) CreateUnlock(ctx context.Context, ur *models.UnlockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.unlocks {
		if cur.UserID == ur.UserID && cur.RaceID == ur.RaceID {
			return ErrDuplicateUnlock
		}
	}
	ur.ID = s.id("unlock")
	if ur.UnlockedAt.IsZero() {
		ur.UnlockedAt = time.Now()
	}
	s.unlocks[ur.ID] = *ur
	return nil
}

func (s *Memory) GetUnlock(ctx context.Context, userID, raceID int64) (*models.UnlockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ur := range s.unlocks {
		if ur.UserID == userID && ur.RaceID == raceID {
			ur := ur
			return &ur, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) UnlocksByUser(ctx context.Context, userID int64) ([]models.UnlockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UnlockRecord
	for _, ur := range s.unlocks {
		if ur.UserID == userID {
			out = append(out, ur)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Memory) RaceHasUnlocks(ctx context.Context, raceID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ur := range s.unlocks {
		if ur.RaceID == raceID {
			return true, nil
		}
	}
	return false, nil
}
