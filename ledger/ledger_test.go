package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/takigawalab/indexapi/ledger"
	"github.com/takigawalab/indexapi/models"
	"github.com/takigawalab/indexapi/store"
)

func newUser(t *testing.T, st store.Store, points int) *models.User {
	t.Helper()
	u := &models.User{LineID: "U-test", Name: "テスト", Points: points}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

// sumTransactions asserts the cached balance equals the sum of the log.
func sumTransactions(t *testing.T, st store.Store, userID int64) int {
	t.Helper()
	txs, err := st.TransactionsByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("TransactionsByUser: %v", err)
	}
	sum := 0
	for _, tx := range txs {
		sum += tx.Amount
	}
	return sum
}

func TestCreditAndDebit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	lg := ledger.New(st)
	u := newUser(t, st, 0)

	if _, err := lg.Credit(ctx, u.ID, 1000, models.TxPurchase, "スタンダードパック (1000pt)", nil); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if _, err := lg.Debit(ctx, u.ID, 300, models.TxView, "東京 11R", nil); err != nil {
		t.Fatalf("Debit: %v", err)
	}

	bal, err := lg.BalanceOf(ctx, u.ID)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != 700 {
		t.Errorf("balance = %d, want 700", bal)
	}
	if sum := sumTransactions(t, st, u.ID); sum != bal {
		t.Errorf("transaction sum = %d, cached balance = %d", sum, bal)
	}
}

func TestDebitNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	lg := ledger.New(st)
	u := newUser(t, st, 200)

	_, err := lg.Debit(ctx, u.ID, 300, models.TxView, "阪神 10R", nil)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("Debit err = %v, want ErrInsufficientBalance", err)
	}

	bal, err := lg.BalanceOf(ctx, u.ID)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != 200 {
		t.Errorf("balance after failed debit = %d, want 200", bal)
	}
	txs, err := lg.History(ctx, u.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("failed debit wrote %d transactions, want 0", len(txs))
	}
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	lg := ledger.New(st)
	u := newUser(t, st, 100)

	for _, amount := range []int{0, -50} {
		if _, err := lg.Credit(ctx, u.ID, amount, models.TxPurchase, "x", nil); !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Errorf("Credit(%d) err = %v, want ErrInvalidAmount", amount, err)
		}
		if _, err := lg.Debit(ctx, u.ID, amount, models.TxView, "x", nil); !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Errorf("Debit(%d) err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	lg := ledger.New(st)
	u := newUser(t, st, 1000)

	const goroutines = 8
	const iterations = 25 // 200 attempts of 10pt against a 1000pt balance

	var wg sync.WaitGroup
	wg.Add(goroutines)
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				_, err := lg.Debit(ctx, u.ID, 10, models.TxView, "stress", nil)
				switch {
				case err == nil:
					mu.Lock()
					succeeded++
					mu.Unlock()
				case errors.Is(err, ledger.ErrInsufficientBalance):
				default:
					t.Errorf("Debit: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if succeeded != 100 {
		t.Errorf("succeeded debits = %d, want exactly 100", succeeded)
	}
	bal, err := lg.BalanceOf(ctx, u.ID)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != 0 {
		t.Errorf("final balance = %d, want 0", bal)
	}
	// Only debits went through the ledger; the opening balance was seeded.
	if sum := sumTransactions(t, st, u.ID); sum != -1000 {
		t.Errorf("transaction sum = %d, want -1000", sum)
	}
}

func TestFriendBonusGrantedOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	lg := ledger.New(st)
	u := newUser(t, st, 0)

	pt, err := lg.GrantFriendBonus(ctx, u.ID)
	if err != nil {
		t.Fatalf("GrantFriendBonus: %v", err)
	}
	if pt.Amount != ledger.FriendBonusPoints || pt.Type != models.TxBonus {
		t.Errorf("bonus tx = %+v", pt)
	}

	if _, err := lg.GrantFriendBonus(ctx, u.ID); !errors.Is(err, ledger.ErrBonusAlreadyGranted) {
		t.Fatalf("second grant err = %v, want ErrBonusAlreadyGranted", err)
	}

	bal, err := lg.BalanceOf(ctx, u.ID)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != ledger.FriendBonusPoints {
		t.Errorf("balance = %d, want %d", bal, ledger.FriendBonusPoints)
	}

	got, err := st.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !got.IsLineFriend || !got.FriendBonusGiven {
		t.Errorf("flags = friend:%v given:%v, want both true", got.IsLineFriend, got.FriendBonusGiven)
	}
}
