package payment_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/takigawalab/indexapi/ledger"
	"github.com/takigawalab/indexapi/models"
	"github.com/takigawalab/indexapi/payment"
	"github.com/takigawalab/indexapi/store"
)

// fakeSource returns canned charge events keyed by event id.
type fakeSource struct {
	events map[string]*payment.ChargeEvent
}

func (f *fakeSource) RetrieveChargeEvent(ctx context.Context, eventID string) (*payment.ChargeEvent, error) {
	ev, ok := f.events[eventID]
	if !ok {
		return nil, errors.New("event not found")
	}
	return ev, nil
}

type fixture struct {
	store   *store.Memory
	ledger  *ledger.Service
	source  *fakeSource
	payment *payment.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	lg := ledger.New(st)

	events, err := payment.OpenEventStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("OpenEventStore: %v", err)
	}
	t.Cleanup(func() { events.Close() })

	src := &fakeSource{events: map[string]*payment.ChargeEvent{}}
	return &fixture{
		store:   st,
		ledger:  lg,
		source:  src,
		payment: payment.New(payment.StubProvider{}, src, events, lg),
	}
}

func (f *fixture) user(t *testing.T) *models.User {
	t.Helper()
	u := &models.User{LineID: "U-test", Name: "テスト"}
	if err := f.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)

	co, err := f.payment.Checkout(ctx, u.ID, "pkg-1000")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if co.ID == "" || !strings.HasPrefix(co.RedirectURL, "https://") {
		t.Errorf("checkout = %+v", co)
	}

	if _, err := f.payment.Checkout(ctx, u.ID, "pkg-bogus"); !errors.Is(err, payment.ErrUnknownPackage) {
		t.Errorf("unknown package err = %v, want ErrUnknownPackage", err)
	}
}

func TestWebhookCreditsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)

	f.source.events["evt_1"] = &payment.ChargeEvent{
		EventID: "evt_1", ChargeID: "chrg_1", Succeeded: true,
		UserID: u.ID, PackageID: "pkg-3000",
	}

	if err := f.payment.HandleChargeEvent(ctx, "evt_1"); err != nil {
		t.Fatalf("HandleChargeEvent: %v", err)
	}
	bal, err := f.ledger.BalanceOf(ctx, u.ID)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != 3000 {
		t.Errorf("balance = %d, want 3000", bal)
	}

	// The gateway redelivers; the replay must not credit again.
	for i := 0; i < 3; i++ {
		if err := f.payment.HandleChargeEvent(ctx, "evt_1"); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}
	bal, _ = f.ledger.BalanceOf(ctx, u.ID)
	if bal != 3000 {
		t.Errorf("balance after replays = %d, want 3000", bal)
	}
	txs, _ := f.ledger.History(ctx, u.ID)
	if len(txs) != 1 {
		t.Errorf("transactions = %d, want 1", len(txs))
	}
	if len(txs) == 1 && txs[0].Type != models.TxPurchase {
		t.Errorf("transaction type = %q, want %q", txs[0].Type, models.TxPurchase)
	}
}

func TestWebhookIgnoresFailedCharges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t)

	f.source.events["evt_fail"] = &payment.ChargeEvent{
		EventID: "evt_fail", ChargeID: "chrg_2", Succeeded: false,
		UserID: u.ID, PackageID: "pkg-500",
	}
	if err := f.payment.HandleChargeEvent(ctx, "evt_fail"); err != nil {
		t.Fatalf("HandleChargeEvent: %v", err)
	}
	bal, _ := f.ledger.BalanceOf(ctx, u.ID)
	if bal != 0 {
		t.Errorf("failed charge credited %d points", bal)
	}
}

func TestWebhookReleasesClaimOnCreditFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Points to a user that does not exist, so the credit fails.
	f.source.events["evt_ghost"] = &payment.ChargeEvent{
		EventID: "evt_ghost", ChargeID: "chrg_3", Succeeded: true,
		UserID: 9999, PackageID: "pkg-500",
	}
	if err := f.payment.HandleChargeEvent(ctx, "evt_ghost"); err == nil {
		t.Fatal("credit to missing user succeeded")
	}

	// The claim was released; once the user exists the redelivery credits.
	u := &models.User{ID: 9999, LineID: "U-late"}
	if err := f.store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := f.payment.HandleChargeEvent(ctx, "evt_ghost"); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	bal, _ := f.ledger.BalanceOf(ctx, 9999)
	if bal != 500 {
		t.Errorf("balance = %d, want 500", bal)
	}
}

func TestPackageTable(t *testing.T) {
	pkgs := payment.Packages()
	if len(pkgs) != 5 {
		t.Fatalf("packages = %d, want 5", len(pkgs))
	}
	for _, p := range pkgs {
		if p.Points != p.Price {
			t.Errorf("package %s: %d points for %d yen, want 1pt = 1 yen", p.ID, p.Points, p.Price)
		}
	}

	pkg, err := payment.PackageByID("pkg-10000")
	if err != nil {
		t.Fatalf("PackageByID: %v", err)
	}
	if pkg.Points != 10000 {
		t.Errorf("points = %d, want 10000", pkg.Points)
	}
	if _, err := payment.PackageByID("nope"); !errors.Is(err, payment.ErrUnknownPackage) {
		t.Errorf("err = %v, want ErrUnknownPackage", err)
	}
}

func TestEventStoreClaims(t *testing.T) {
	events, err := payment.OpenEventStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("OpenEventStore: %v", err)
	}
	defer events.Close()

	claimed, err := events.MarkProcessed("evt_a")
	if err != nil || !claimed {
		t.Fatalf("first claim = %v, %v; want true, nil", claimed, err)
	}
	claimed, err = events.MarkProcessed("evt_a")
	if err != nil || claimed {
		t.Fatalf("replay claim = %v, %v; want false, nil", claimed, err)
	}

	if err := events.Unmark("evt_a"); err != nil {
		t.Fatalf("Unmark: %v", err)
	}
	claimed, err = events.MarkProcessed("evt_a")
	if err != nil || !claimed {
		t.Fatalf("claim after release = %v, %v; want true, nil", claimed, err)
	}
}
