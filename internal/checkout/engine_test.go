package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront-checkout/internal/dlocal"
	"storefront-checkout/internal/events"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/shopify"
)

// === fakes ===

type fakeGateway struct {
	mu        sync.Mutex
	statuses  []model.PaymentStatus // consumed one per poll; last repeats
	errsFirst int                   // number of leading polls that fail
	createErr error
	lastReq   *dlocal.PaymentRequest
	polls     int
}

func (g *fakeGateway) CreatePayment(ctx context.Context, req *dlocal.PaymentRequest) (*model.PaymentSession, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.mu.Lock()
	g.lastReq = req
	g.mu.Unlock()
	return &model.PaymentSession{
		ID:          "PAY-1",
		RedirectURL: "https://pay.example/PAY-1",
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (g *fakeGateway) GetStatus(ctx context.Context, paymentID string) (model.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polls++
	if g.polls <= g.errsFirst {
		return "", fmt.Errorf("gateway unavailable")
	}
	i := g.polls - g.errsFirst - 1
	if i >= len(g.statuses) {
		i = len(g.statuses) - 1
	}
	return g.statuses[i], nil
}

func (g *fakeGateway) pollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.polls
}

type fakePlatform struct {
	mu          sync.Mutex
	created     []*shopify.Order
	createErr   error
	markErr     error
	markCalls   int
	markedOrder int64
	scanResult  *model.PendingOrder
}

func (p *fakePlatform) CreateOrder(ctx context.Context, order *shopify.Order) (*model.PendingOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created = append(p.created, order)
	return &model.PendingOrder{ID: 42, Name: "#1001", OrderNumber: 1001, FinancialStatus: model.FinancialPending}, nil
}

func (p *fakePlatform) MarkOrderPaid(ctx context.Context, orderID int64, paymentID, method string) (*model.PendingOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markCalls++
	p.markedOrder = orderID
	if p.markErr != nil {
		return nil, p.markErr
	}
	return &model.PendingOrder{ID: orderID, Name: "#1001", FinancialStatus: model.FinancialPaid}, nil
}

func (p *fakePlatform) setMarkErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markErr = err
}

func (p *fakePlatform) FindOrderByPaymentRef(ctx context.Context, paymentID string) (*model.PendingOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scanResult == nil {
		return nil, model.NewNotFoundError("order for payment", paymentID)
	}
	return p.scanResult, nil
}

func (p *fakePlatform) marked() (int, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.markCalls, p.markedOrder
}

type fakeJournal struct {
	mu      sync.Mutex
	entries map[string]int64
	paid    map[string]bool
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{entries: make(map[string]int64), paid: make(map[string]bool)}
}

func (j *fakeJournal) Record(ctx context.Context, paymentID string, orderID int64, attemptID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.entries[paymentID]; !ok {
		j.entries[paymentID] = orderID
	}
	return nil
}

func (j *fakeJournal) LookupOrder(ctx context.Context, paymentID string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	id, ok := j.entries[paymentID]
	if !ok {
		return 0, model.NewNotFoundError("journal entry", paymentID)
	}
	return id, nil
}

func (j *fakeJournal) MarkPaid(ctx context.Context, paymentID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.paid[paymentID] = true
	return nil
}

func (j *fakeJournal) IsPaid(ctx context.Context, paymentID string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.entries[paymentID]; !ok {
		return false, model.NewNotFoundError("journal entry", paymentID)
	}
	return j.paid[paymentID], nil
}

func (j *fakeJournal) isPaid(paymentID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.paid[paymentID]
}

type fakeSink struct {
	mu     sync.Mutex
	events []*events.PurchaseEvent
	err    error
}

func (s *fakeSink) Purchase(ctx context.Context, e *events.PurchaseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// === helpers ===

func testOptions() Options {
	return Options{
		PollInterval: 2 * time.Millisecond,
		MaxPolls:     8,
		GracePolls:   3,
	}
}

func validRequest() *model.CheckoutRequest {
	return &model.CheckoutRequest{
		Lines: []model.CartLine{{
			ProductID: "prod-1",
			Name:      "Home Jersey",
			Size:      "M",
			Quantity:  1,
			UnitPrice: 59900,
			Variants:  []model.Variant{{ID: "gid://shopify/ProductVariant/222", Title: "M"}},
		}},
		Shipping: model.ShippingInfo{
			FirstName: "Juan", LastName: "Pérez",
			Email: "juan@example.com", Document: "12345678",
			Address1: "Av. Corrientes 1234", City: "Buenos Aires",
			Province: "CABA", Zip: "C1043", Country: "AR",
		},
		PromotionalTotal: 44900,
		ShippingCost:     5000,
	}
}

func waitTerminal(t *testing.T, e *Engine, attemptID string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := e.Get(attemptID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("attempt never reached a terminal state")
	return Snapshot{}
}

// === tests ===

func TestBegin_CreatesSessionAndOrder(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending}}
	platform := &fakePlatform{}
	journal := newFakeJournal()
	engine := New(gateway, platform, journal, nil, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer engine.Cancel(snap.ID)

	if snap.RedirectURL != "https://pay.example/PAY-1" {
		t.Errorf("RedirectURL = %s", snap.RedirectURL)
	}
	if snap.OrderID != 42 || snap.OrderName != "#1001" {
		t.Errorf("order = %d %s", snap.OrderID, snap.OrderName)
	}
	if snap.Status.Terminal() {
		t.Errorf("Status = %s, want non-terminal", snap.Status)
	}
	if len(platform.created) != 1 {
		t.Fatalf("orders created = %d, want 1", len(platform.created))
	}
	if platform.created[0].FinancialStatus != model.FinancialPending {
		t.Error("order must be created pending, before payment")
	}
	if id, _ := journal.LookupOrder(context.Background(), "PAY-1"); id != 42 {
		t.Errorf("journal order = %d, want 42", id)
	}
}

func TestAttempt_Success(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending, model.PaymentPaid}}
	platform := &fakePlatform{}
	journal := newFakeJournal()
	sink := &fakeSink{}
	engine := New(gateway, platform, journal, sink, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	final := waitTerminal(t, engine, snap.ID)
	if final.Status != model.StatusSuccess {
		t.Fatalf("Status = %s, want success", final.Status)
	}

	calls, orderID := platform.marked()
	if calls != 1 || orderID != 42 {
		t.Errorf("MarkOrderPaid calls = %d (order %d), want exactly 1 on order 42", calls, orderID)
	}
	if sink.count() != 1 {
		t.Errorf("purchase events = %d, want 1", sink.count())
	}
	if !journal.isPaid("PAY-1") {
		t.Error("journal entry not marked paid")
	}
}

func TestAttempt_AuthorizedCountsAsPaid(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentAuthorized}}
	platform := &fakePlatform{}
	engine := New(gateway, platform, newFakeJournal(), nil, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	final := waitTerminal(t, engine, snap.ID)
	if final.Status != model.StatusSuccess {
		t.Errorf("Status = %s, want success", final.Status)
	}
}

func TestAttempt_CommitExactlyOnce(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPaid}}
	platform := &fakePlatform{}
	engine := New(gateway, platform, newFakeJournal(), nil, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	waitTerminal(t, engine, snap.ID)

	// A webhook for the same payment after the poller already committed.
	if err := engine.ConfirmPayment(context.Background(), "PAY-1", "CARD"); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	calls, _ := platform.marked()
	if calls != 1 {
		t.Errorf("MarkOrderPaid calls = %d, want exactly 1", calls)
	}
}

func TestAttempt_Rejected(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending, model.PaymentRejected}}
	platform := &fakePlatform{}
	sink := &fakeSink{}
	engine := New(gateway, platform, newFakeJournal(), sink, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	final := waitTerminal(t, engine, snap.ID)
	if final.Status != model.StatusFailed || final.Reason != ReasonRejected {
		t.Errorf("final = %s/%s, want failed/%s", final.Status, final.Reason, ReasonRejected)
	}
	if calls, _ := platform.marked(); calls != 0 {
		t.Errorf("MarkOrderPaid calls = %d, want 0", calls)
	}
	if sink.count() != 0 {
		t.Errorf("purchase events = %d, want 0", sink.count())
	}
}

func TestAttempt_PollTimeoutIsPendingNotFailed(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending}}
	engine := New(gateway, &fakePlatform{}, newFakeJournal(), nil, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	final := waitTerminal(t, engine, snap.ID)
	if final.Status != model.StatusPendingConfirmation {
		t.Errorf("Status = %s, want pending_confirmation", final.Status)
	}
	if final.Reason != ReasonPollTimeout {
		t.Errorf("Reason = %s, want %s", final.Reason, ReasonPollTimeout)
	}
	if final.PollCount != testOptions().MaxPolls {
		t.Errorf("PollCount = %d, want %d", final.PollCount, testOptions().MaxPolls)
	}
}

func TestAttempt_WindowClosedGrace(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending}}
	opts := testOptions()
	opts.MaxPolls = 500 // grace, not the cap, must end this attempt
	engine := New(gateway, &fakePlatform{}, newFakeJournal(), nil, nil, opts)

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if _, err := engine.WindowClosed(snap.ID); err != nil {
		t.Fatalf("WindowClosed() error = %v", err)
	}

	final := waitTerminal(t, engine, snap.ID)
	if final.Status != model.StatusPendingConfirmation || final.Reason != ReasonWindowClosed {
		t.Errorf("final = %s/%s, want pending_confirmation/%s", final.Status, final.Reason, ReasonWindowClosed)
	}
	if final.PollCount >= opts.MaxPolls {
		t.Errorf("PollCount = %d, want fewer than %d", final.PollCount, opts.MaxPolls)
	}
}

func TestAttempt_WindowClosedThenPaid(t *testing.T) {
	// Confirmation lands inside the grace period.
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending, model.PaymentPaid}}
	engine := New(gateway, &fakePlatform{}, newFakeJournal(), nil, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	engine.WindowClosed(snap.ID)

	final := waitTerminal(t, engine, snap.ID)
	if final.Status != model.StatusSuccess {
		t.Errorf("Status = %s, want success", final.Status)
	}
}

func TestAttempt_WindowBlocked(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending}}
	platform := &fakePlatform{}
	engine := New(gateway, platform, newFakeJournal(), nil, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	blocked, err := engine.WindowBlocked(snap.ID)
	if err != nil {
		t.Fatalf("WindowBlocked() error = %v", err)
	}
	if blocked.Status != model.StatusFailed || blocked.Reason != ReasonWindowBlocked {
		t.Errorf("final = %s/%s, want failed/%s", blocked.Status, blocked.Reason, ReasonWindowBlocked)
	}
	if calls, _ := platform.marked(); calls != 0 {
		t.Errorf("MarkOrderPaid calls = %d, want 0", calls)
	}
}

func TestAttempt_CommitFailureIsPendingConfirmation(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPaid}}
	platform := &fakePlatform{markErr: errors.New("platform down")}
	sink := &fakeSink{}
	engine := New(gateway, platform, newFakeJournal(), sink, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	final := waitTerminal(t, engine, snap.ID)
	if final.Status != model.StatusPendingConfirmation || final.Reason != ReasonCommitFailed {
		t.Errorf("final = %s/%s, want pending_confirmation/%s", final.Status, final.Reason, ReasonCommitFailed)
	}
	if sink.count() != 0 {
		t.Error("purchase event emitted despite failed commit")
	}
}

func TestAttempt_PollErrorsSwallowed(t *testing.T) {
	gateway := &fakeGateway{
		errsFirst: 2,
		statuses:  []model.PaymentStatus{model.PaymentPaid},
	}
	engine := New(gateway, &fakePlatform{}, newFakeJournal(), nil, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	final := waitTerminal(t, engine, snap.ID)
	if final.Status != model.StatusSuccess {
		t.Errorf("Status = %s, want success after transient errors", final.Status)
	}
	if gateway.pollCount() < 3 {
		t.Errorf("polls = %d, want at least 3", gateway.pollCount())
	}
}

func TestAttempt_EventFailureDoesNotFailCheckout(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPaid}}
	sink := &fakeSink{err: errors.New("collector down")}
	engine := New(gateway, &fakePlatform{}, newFakeJournal(), sink, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	final := waitTerminal(t, engine, snap.ID)
	if final.Status != model.StatusSuccess {
		t.Errorf("Status = %s, want success despite event failure", final.Status)
	}
}

func TestCancel(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending}}
	engine := New(gateway, &fakePlatform{}, newFakeJournal(), nil, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	cancelled, err := engine.Cancel(snap.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("Status = %s, want cancelled", cancelled.Status)
	}
}

func TestBegin_InvalidCartHasNoSideEffects(t *testing.T) {
	gateway := &fakeGateway{}
	platform := &fakePlatform{}
	engine := New(gateway, platform, newFakeJournal(), nil, nil, testOptions())

	req := validRequest()
	req.PromotionalTotal = 0

	_, err := engine.Begin(context.Background(), req)
	if !errors.Is(err, model.ErrInvalidCartState) {
		t.Fatalf("Begin() error = %v, want ErrInvalidCartState", err)
	}
	if len(platform.created) != 0 {
		t.Error("order created despite invalid cart")
	}
}

func TestBegin_OrderCreationFailureAborts(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending}}
	platform := &fakePlatform{createErr: errors.New("platform down")}
	engine := New(gateway, platform, newFakeJournal(), nil, nil, testOptions())

	_, err := engine.Begin(context.Background(), validRequest())
	if err == nil {
		t.Fatal("Begin() should fail when the order cannot be created")
	}
}

func TestConfirmPayment_RecoversFromJournal(t *testing.T) {
	platform := &fakePlatform{}
	journal := newFakeJournal()
	journal.Record(context.Background(), "PAY-OLD", 77, "gone-attempt")
	engine := New(&fakeGateway{}, platform, journal, nil, nil, testOptions())

	if err := engine.ConfirmPayment(context.Background(), "PAY-OLD", "CARD"); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	calls, orderID := platform.marked()
	if calls != 1 || orderID != 77 {
		t.Errorf("MarkOrderPaid = %d calls on order %d, want 1 on 77", calls, orderID)
	}
	if !journal.isPaid("PAY-OLD") {
		t.Error("journal entry not marked paid")
	}
}

func TestConfirmPayment_FallsBackToOrderScan(t *testing.T) {
	platform := &fakePlatform{scanResult: &model.PendingOrder{ID: 88, Name: "#1008"}}
	engine := New(&fakeGateway{}, platform, newFakeJournal(), nil, nil, testOptions())

	if err := engine.ConfirmPayment(context.Background(), "PAY-UNKNOWN", ""); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	calls, orderID := platform.marked()
	if calls != 1 || orderID != 88 {
		t.Errorf("MarkOrderPaid = %d calls on order %d, want 1 on 88", calls, orderID)
	}
}

func TestConfirmPayment_UnknownPayment(t *testing.T) {
	engine := New(&fakeGateway{}, &fakePlatform{}, newFakeJournal(), nil, nil, testOptions())

	err := engine.ConfirmPayment(context.Background(), "PAY-NONE", "")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ConfirmPayment() error = %v, want ErrNotFound", err)
	}
}

func TestConfirmPayment_ResolvesParkedAttempt(t *testing.T) {
	// The poller gives up, then the gateway notification arrives. The
	// parked attempt must still be settled, not silently acknowledged.
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending}}
	platform := &fakePlatform{}
	journal := newFakeJournal()
	engine := New(gateway, platform, journal, nil, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	parked := waitTerminal(t, engine, snap.ID)
	if parked.Status != model.StatusPendingConfirmation {
		t.Fatalf("Status = %s, want pending_confirmation", parked.Status)
	}

	if err := engine.ConfirmPayment(context.Background(), "PAY-1", "CARD"); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	calls, orderID := platform.marked()
	if calls != 1 || orderID != 42 {
		t.Errorf("MarkOrderPaid = %d calls on order %d, want 1 on 42", calls, orderID)
	}
	if !journal.isPaid("PAY-1") {
		t.Error("journal entry not marked paid")
	}

	settled, err := engine.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if settled.Status != model.StatusSuccess {
		t.Errorf("Status = %s, want success after confirmation", settled.Status)
	}
}

func TestConfirmPayment_RetriesFailedCommit(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPaid}}
	platform := &fakePlatform{markErr: errors.New("platform down")}
	engine := New(gateway, platform, newFakeJournal(), nil, nil, testOptions())

	snap, err := engine.Begin(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	parked := waitTerminal(t, engine, snap.ID)
	if parked.Status != model.StatusPendingConfirmation || parked.Reason != ReasonCommitFailed {
		t.Fatalf("final = %s/%s, want pending_confirmation/%s", parked.Status, parked.Reason, ReasonCommitFailed)
	}

	// Platform comes back; the webhook retry must update the order.
	platform.setMarkErr(nil)
	if err := engine.ConfirmPayment(context.Background(), "PAY-1", "CARD"); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	calls, orderID := platform.marked()
	if calls != 2 || orderID != 42 {
		t.Errorf("MarkOrderPaid = %d calls on order %d, want 2 (one failed, one retried) on 42", calls, orderID)
	}

	settled, _ := engine.Get(snap.ID)
	if settled.Status != model.StatusSuccess {
		t.Errorf("Status = %s, want success after retried commit", settled.Status)
	}
}

func TestConfirmPayment_SkipsAlreadyPaid(t *testing.T) {
	platform := &fakePlatform{}
	journal := newFakeJournal()
	journal.Record(context.Background(), "PAY-OLD", 77, "gone-attempt")
	journal.MarkPaid(context.Background(), "PAY-OLD")
	engine := New(&fakeGateway{}, platform, journal, nil, nil, testOptions())

	if err := engine.ConfirmPayment(context.Background(), "PAY-OLD", "CARD"); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if calls, _ := platform.marked(); calls != 0 {
		t.Errorf("MarkOrderPaid calls = %d, want 0 for an already-settled payment", calls)
	}
}

func TestBegin_PaymentRequestDetail(t *testing.T) {
	gateway := &fakeGateway{statuses: []model.PaymentStatus{model.PaymentPending}}
	engine := New(gateway, &fakePlatform{}, newFakeJournal(), nil, nil, testOptions())

	req := validRequest()
	req.HasBundle = true
	req.PromotionalSavings = 15000
	req.ShippingMethod = model.ShippingExpress
	req.Tracking = &model.TrackingContext{SessionID: "sess-9", UTMSource: "instagram"}

	snap, err := engine.Begin(context.Background(), req)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer engine.Cancel(snap.ID)

	gateway.mu.Lock()
	pr := gateway.lastReq
	gateway.mu.Unlock()
	if pr == nil {
		t.Fatal("no payment request captured")
	}

	if pr.Description != "Compra de 1 producto(s) - Pack promocional (Ahorro: AR$ 150)" {
		t.Errorf("Description = %q", pr.Description)
	}
	want := map[string]string{
		"source":          "storefront_checkout",
		"item_count":      "1",
		"has_bundle":      "true",
		"shipping_method": "express",
		"shipping_cost":   "50.00",
		"subtotal":        "449.00",
		"total":           "499.00",
		"session_id":      "sess-9",
		"utm_source":      "instagram",
	}
	for key, value := range want {
		if pr.Metadata[key] != value {
			t.Errorf("Metadata[%q] = %q, want %q", key, pr.Metadata[key], value)
		}
	}
}

func TestGet_UnknownAttempt(t *testing.T) {
	engine := New(&fakeGateway{}, &fakePlatform{}, newFakeJournal(), nil, nil, testOptions())

	_, err := engine.Get("no-such-attempt")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
