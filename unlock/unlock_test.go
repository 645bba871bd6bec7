package unlock_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/takigawalab/indexapi/ledger"
	"github.com/takigawalab/indexapi/models"
	"github.com/takigawalab/indexapi/store"
	"github.com/takigawalab/indexapi/unlock"
)

type fixture struct {
	store  *store.Memory
	ledger *ledger.Service
	unlock *unlock.Service
}

func newFixture() *fixture {
	st := store.NewMemory()
	lg := ledger.New(st)
	return &fixture{store: st, ledger: lg, unlock: unlock.New(st, lg)}
}

func (f *fixture) user(t *testing.T, points int) *models.User {
	t.Helper()
	u := &models.User{LineID: "U-test", Name: "テスト", Points: points}
	if err := f.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func (f *fixture) race(t *testing.T, cost int, free, published bool) *models.Race {
	t.Helper()
	r := &models.Race{
		RaceDate:    "2024-06-23",
		Venue:       "東京",
		RaceNumber:  11,
		RaceName:    "テストステークス",
		RaceType:    "芝",
		Distance:    2000,
		PostTime:    "15:40",
		PointCost:   cost,
		IsFree:      free,
		IsPublished: published,
	}
	if err := f.store.CreateRace(context.Background(), r); err != nil {
		t.Fatalf("CreateRace: %v", err)
	}
	return r
}

func TestUnlockDebitsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	u := f.user(t, 1000)
	r := f.race(t, 500, false, true)

	ur, err := f.unlock.Unlock(ctx, u.ID, r.ID)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if ur.PointsUsed != 500 {
		t.Errorf("PointsUsed = %d, want 500", ur.PointsUsed)
	}

	again, err := f.unlock.Unlock(ctx, u.ID, r.ID)
	if err != nil {
		t.Fatalf("second Unlock: %v", err)
	}
	if again.ID != ur.ID {
		t.Errorf("second unlock returned record %d, want existing %d", again.ID, ur.ID)
	}

	bal, err := f.ledger.BalanceOf(ctx, u.ID)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != 500 {
		t.Errorf("balance = %d, want 500 (single debit)", bal)
	}
}

func TestUnlockConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	u := f.user(t, 1000)
	r := f.race(t, 500, false, true)

	const goroutines = 8
	var wg sync.WaitGroup
	wg.Add(goroutines)
	errCh := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.unlock.Unlock(ctx, u.ID, r.ID); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent Unlock error: %v", err)
	}

	bal, err := f.ledger.BalanceOf(ctx, u.ID)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != 500 {
		t.Errorf("balance = %d, want 500 (debited exactly once)", bal)
	}
	urs, err := f.store.UnlocksByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("UnlocksByUser: %v", err)
	}
	if len(urs) != 1 {
		t.Errorf("unlock records = %d, want 1", len(urs))
	}
}

func TestFreeRaceNeverDebits(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	u := f.user(t, 0)
	r := f.race(t, 0, true, true)

	ur, err := f.unlock.Unlock(ctx, u.ID, r.ID)
	if err != nil {
		t.Fatalf("Unlock free race with zero balance: %v", err)
	}
	if ur.PointsUsed != 0 {
		t.Errorf("PointsUsed = %d, want 0", ur.PointsUsed)
	}
	txs, err := f.ledger.History(ctx, u.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("free unlock wrote %d transactions, want 0", len(txs))
	}
}

func TestInsufficientBalanceLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	u := f.user(t, 100)
	r := f.race(t, 500, false, true)

	_, err := f.unlock.Unlock(ctx, u.ID, r.ID)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("Unlock err = %v, want ErrInsufficientBalance", err)
	}

	if _, err := f.store.GetUnlock(ctx, u.ID, r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetUnlock err = %v, want ErrNotFound (no record)", err)
	}
	bal, err := f.ledger.BalanceOf(ctx, u.ID)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != 100 {
		t.Errorf("balance = %d, want 100 unchanged", bal)
	}
}

func TestUnpublishedRaceHidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	u := f.user(t, 1000)
	r := f.race(t, 500, false, false)

	if _, err := f.unlock.Unlock(ctx, u.ID, r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Unlock err = %v, want ErrNotFound", err)
	}
	if _, err := f.unlock.HasAccess(ctx, u.ID, r.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("HasAccess err = %v, want ErrNotFound", err)
	}
}

func TestHasAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	u := f.user(t, 1000)
	paid := f.race(t, 500, false, true)
	free := f.race(t, 0, true, true)

	ok, err := f.unlock.HasAccess(ctx, u.ID, paid.ID)
	if err != nil || ok {
		t.Errorf("HasAccess before unlock = %v, %v; want false, nil", ok, err)
	}
	ok, err = f.unlock.HasAccess(ctx, 0, free.ID)
	if err != nil || !ok {
		t.Errorf("anonymous HasAccess on free race = %v, %v; want true, nil", ok, err)
	}
	ok, err = f.unlock.HasAccess(ctx, 0, paid.ID)
	if err != nil || ok {
		t.Errorf("anonymous HasAccess on paid race = %v, %v; want false, nil", ok, err)
	}

	if _, err := f.unlock.Unlock(ctx, u.ID, paid.ID); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	ok, err = f.unlock.HasAccess(ctx, u.ID, paid.ID)
	if err != nil || !ok {
		t.Errorf("HasAccess after unlock = %v, %v; want true, nil", ok, err)
	}
}

// TestPurchaseThenUnlockFlow walks the core user journey: an empty wallet
// cannot unlock, a purchase credits it, the unlock debits it, and repeating
// the unlock is free.
func TestPurchaseThenUnlockFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	u := f.user(t, 0)
	r := f.race(t, 500, false, true)

	if _, err := f.unlock.Unlock(ctx, u.ID, r.ID); !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("Unlock with empty wallet err = %v, want ErrInsufficientBalance", err)
	}

	if _, err := f.ledger.Credit(ctx, u.ID, 1000, models.TxPurchase, "スタンダードパック (1000pt)", nil); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	ur, err := f.unlock.Unlock(ctx, u.ID, r.ID)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	bal, err := f.ledger.BalanceOf(ctx, u.ID)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != 500 {
		t.Errorf("balance = %d, want 500", bal)
	}

	again, err := f.unlock.Unlock(ctx, u.ID, r.ID)
	if err != nil {
		t.Fatalf("repeat Unlock: %v", err)
	}
	if again.ID != ur.ID {
		t.Errorf("repeat unlock record = %d, want %d", again.ID, ur.ID)
	}
	if bal2, _ := f.ledger.BalanceOf(ctx, u.ID); bal2 != 500 {
		t.Errorf("balance after repeat = %d, want 500", bal2)
	}
}

func TestHistoryJoinsRaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	u := f.user(t, 1000)
	r := f.race(t, 300, false, true)

	if _, err := f.unlock.Unlock(ctx, u.ID, r.ID); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	entries, err := f.unlock.History(ctx, u.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Race == nil || entries[0].Race.ID != r.ID {
		t.Errorf("entry race = %+v, want race %d", entries[0].Race, r.ID)
	}
}
