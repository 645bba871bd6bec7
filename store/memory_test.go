package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/takigawalab/indexapi/models"
	"github.com/takigawalab/indexapi/store"
)

func TestMemoryUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	u := &models.User{LineID: "U123", Name: "テスト", Points: 100}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("id not assigned")
	}

	got, err := st.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.LineID != "U123" || got.Points != 100 {
		t.Errorf("got = %+v", got)
	}

	byLine, err := st.GetUserByLineID(ctx, "U123")
	if err != nil {
		t.Fatalf("GetUserByLineID: %v", err)
	}
	if byLine.ID != u.ID {
		t.Errorf("lookup by line id returned user %d, want %d", byLine.ID, u.ID)
	}

	if _, err := st.GetUser(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing user err = %v, want ErrNotFound", err)
	}

	if err := st.SetUserPoints(ctx, u.ID, 250); err != nil {
		t.Fatalf("SetUserPoints: %v", err)
	}
	got, _ = st.GetUser(ctx, u.ID)
	if got.Points != 250 {
		t.Errorf("points = %d, want 250", got.Points)
	}
}

func TestMemoryDuplicateUnlock(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	first := &models.UnlockRecord{UserID: 1, RaceID: 2, PointsUsed: 500}
	if err := st.CreateUnlock(ctx, first); err != nil {
		t.Fatalf("CreateUnlock: %v", err)
	}
	dup := &models.UnlockRecord{UserID: 1, RaceID: 2, PointsUsed: 500}
	if err := st.CreateUnlock(ctx, dup); !errors.Is(err, store.ErrDuplicateUnlock) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateUnlock", err)
	}

	other := &models.UnlockRecord{UserID: 1, RaceID: 3}
	if err := st.CreateUnlock(ctx, other); err != nil {
		t.Fatalf("other race unlock: %v", err)
	}
}

func TestMemoryRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	u := &models.User{LineID: "U1", Points: 100}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	boom := errors.New("boom")
	err := st.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.SetUserPoints(ctx, u.ID, 0); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &models.PointTransaction{UserID: u.ID, Amount: -100, Type: models.TxView}); err != nil {
			return err
		}
		if err := tx.CreateUnlock(ctx, &models.UnlockRecord{UserID: u.ID, RaceID: 7}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx err = %v, want boom", err)
	}

	got, err := st.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Points != 100 {
		t.Errorf("points = %d, want 100 (rolled back)", got.Points)
	}
	txs, _ := st.TransactionsByUser(ctx, u.ID)
	if len(txs) != 0 {
		t.Errorf("transactions = %d, want 0 (rolled back)", len(txs))
	}
	if _, err := st.GetUnlock(ctx, u.ID, 7); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unlock survived rollback: err = %v", err)
	}
}

func TestMemoryRollbackKeepsOutsideWrites(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	boom := errors.New("boom")
	inTx := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- st.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
			if err := tx.CreateUnlock(ctx, &models.UnlockRecord{UserID: 1, RaceID: 1}); err != nil {
				return err
			}
			close(inTx)
			<-release
			return boom
		})
	}()

	// Commit a race outside the transaction while it is still open.
	<-inTx
	r := &models.Race{RaceDate: "2024-06-23", Venue: "東京", RaceNumber: 11, RaceName: "安田記念", RaceType: "芝", Distance: 1600, PostTime: "15:40"}
	if err := st.CreateRace(ctx, r); err != nil {
		t.Fatalf("CreateRace: %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, boom) {
		t.Fatalf("RunInTx err = %v, want boom", err)
	}

	if _, err := st.GetRace(ctx, r.ID); err != nil {
		t.Errorf("race committed during the transaction was lost: %v", err)
	}
	if _, err := st.GetUnlock(ctx, 1, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("transaction's own unlock survived rollback: err = %v", err)
	}
}

func TestMemoryListRacesFilters(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	mk := func(date, venue string, grade *string, published, free, onTop bool, topOrder *int) int64 {
		r := &models.Race{
			RaceDate: date, Venue: venue, RaceNumber: 1, RaceName: "r",
			RaceType: "芝", Distance: 1600, PostTime: "12:00",
			GradeClass: grade, IsPublished: published, IsFree: free,
			ShowOnTop: onTop, TopOrder: topOrder,
		}
		if err := st.CreateRace(ctx, r); err != nil {
			t.Fatalf("CreateRace: %v", err)
		}
		return r.ID
	}
	g1 := "G1"
	two := 2
	one := 1

	tokyo := mk("2024-06-23", "東京", &g1, true, false, true, &two)
	oi := mk("2024-06-23", "大井", nil, true, false, false, nil)
	draft := mk("2024-06-23", "中山", nil, false, false, false, nil)
	hanshin := mk("2024-06-30", "阪神", nil, true, true, true, &one)

	got, err := st.ListRaces(ctx, store.RaceQuery{Date: "2024-06-23", PublishedOnly: true})
	if err != nil {
		t.Fatalf("ListRaces: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("date filter returned %d races, want 2", len(got))
	}

	got, _ = st.ListRaces(ctx, store.RaceQuery{Venues: []string{"東京", "中山"}, PublishedOnly: true})
	if len(got) != 1 || got[0].ID != tokyo {
		t.Errorf("venue filter = %+v, want race %d", got, tokyo)
	}

	got, _ = st.ListRaces(ctx, store.RaceQuery{ExcludeVenues: []string{"東京", "阪神"}, PublishedOnly: true})
	if len(got) != 1 || got[0].ID != oi {
		t.Errorf("exclude filter = %+v, want race %d", got, oi)
	}

	got, _ = st.ListRaces(ctx, store.RaceQuery{Grades: []string{"G1"}})
	if len(got) != 1 || got[0].ID != tokyo {
		t.Errorf("grade filter = %+v, want race %d", got, tokyo)
	}

	got, _ = st.ListRaces(ctx, store.RaceQuery{FreeOnly: true})
	if len(got) != 1 || got[0].ID != hanshin {
		t.Errorf("free filter = %+v, want race %d", got, hanshin)
	}

	got, _ = st.ListRaces(ctx, store.RaceQuery{})
	if len(got) != 4 {
		t.Errorf("unfiltered = %d races, want 4 (includes draft %d)", len(got), draft)
	}

	// OnTopOnly orders by topOrder, not by date.
	got, _ = st.ListRaces(ctx, store.RaceQuery{OnTopOnly: true})
	if len(got) != 2 || got[0].ID != hanshin || got[1].ID != tokyo {
		t.Errorf("top ordering = %+v, want [%d %d]", got, hanshin, tokyo)
	}
}

func TestMemoryReplaceHorses(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	r := &models.Race{RaceDate: "2024-06-23", Venue: "東京", RaceNumber: 1, RaceName: "r", RaceType: "芝", Distance: 1600, PostTime: "12:00"}
	if err := st.CreateRace(ctx, r); err != nil {
		t.Fatalf("CreateRace: %v", err)
	}

	first := []*models.Horse{
		{HorseNumber: 2, HorseName: "B", Age: 4},
		{HorseNumber: 1, HorseName: "A", Age: 4},
	}
	if err := st.ReplaceHorses(ctx, r.ID, first); err != nil {
		t.Fatalf("ReplaceHorses: %v", err)
	}
	got, err := st.HorsesByRace(ctx, r.ID)
	if err != nil {
		t.Fatalf("HorsesByRace: %v", err)
	}
	if len(got) != 2 || got[0].HorseNumber != 1 || got[1].HorseNumber != 2 {
		t.Errorf("horses = %+v, want sorted by number", got)
	}

	second := []*models.Horse{{HorseNumber: 5, HorseName: "C", Age: 3}}
	if err := st.ReplaceHorses(ctx, r.ID, second); err != nil {
		t.Fatalf("second ReplaceHorses: %v", err)
	}
	got, _ = st.HorsesByRace(ctx, r.ID)
	if len(got) != 1 || got[0].HorseNumber != 5 {
		t.Errorf("horses after replace = %+v, want only number 5", got)
	}
}
