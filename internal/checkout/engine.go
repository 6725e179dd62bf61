// Package checkout runs the payment reconciliation engine. An attempt
// creates a gateway session and a durable pending order, then polls the
// gateway until the payment resolves, committing the order exactly once.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-checkout/internal/dlocal"
	"storefront-checkout/internal/events"
	"storefront-checkout/internal/mapping"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/shopify"
)

// Gateway is the payment-side dependency of the engine.
type Gateway interface {
	CreatePayment(ctx context.Context, req *dlocal.PaymentRequest) (*model.PaymentSession, error)
	GetStatus(ctx context.Context, paymentID string) (model.PaymentStatus, error)
}

// Platform is the commerce-side dependency of the engine.
type Platform interface {
	CreateOrder(ctx context.Context, order *shopify.Order) (*model.PendingOrder, error)
	MarkOrderPaid(ctx context.Context, orderID int64, paymentID, paymentMethod string) (*model.PendingOrder, error)
	FindOrderByPaymentRef(ctx context.Context, paymentID string) (*model.PendingOrder, error)
}

// Recorder is the durable payment-to-order index.
type Recorder interface {
	Record(ctx context.Context, paymentID string, orderID int64, attemptID string) error
	LookupOrder(ctx context.Context, paymentID string) (int64, error)
	MarkPaid(ctx context.Context, paymentID string) error
	IsPaid(ctx context.Context, paymentID string) (bool, error)
}

// Options tune the poll loop and the gateway session parameters.
type Options struct {
	PollInterval time.Duration // default 3s
	MaxPolls     int           // hard cap on polls per attempt, default 100
	GracePolls   int           // polls allowed after the payment window closes, default 10

	Currency string // default ARS
	Country  string // default AR

	NotificationURL string
	SuccessURL      string
	BackURL         string
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 100
	}
	if opts.GracePolls <= 0 {
		opts.GracePolls = 10
	}
	if opts.Currency == "" {
		opts.Currency = "ARS"
	}
	if opts.Country == "" {
		opts.Country = "AR"
	}
	return opts
}

// retention is how long terminal attempts stay queryable in the registry.
const retention = time.Hour

// Engine owns the attempt registry and the per-attempt poll loops.
type Engine struct {
	gateway  Gateway
	platform Platform
	journal  Recorder
	events   events.Sink
	logger   *slog.Logger
	opts     Options

	mu        sync.RWMutex
	attempts  map[string]*Attempt
	byPayment map[string]string // payment ID -> attempt ID
}

// New creates an engine. A nil sink drops purchase events.
func New(gateway Gateway, platform Platform, journal Recorder, sink events.Sink, logger *slog.Logger, opts Options) *Engine {
	if sink == nil {
		sink = events.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		gateway:   gateway,
		platform:  platform,
		journal:   journal,
		events:    sink,
		logger:    logger,
		opts:      opts.withDefaults(),
		attempts:  make(map[string]*Attempt),
		byPayment: make(map[string]string),
	}
}

// Begin starts a checkout attempt: price allocation, variant mapping,
// gateway session, pending order, then the poll loop. The pending order is
// created before the buyer sees the payment page, so a lost session can
// always be recovered from the order record.
func (e *Engine) Begin(ctx context.Context, req *model.CheckoutRequest) (Snapshot, error) {
	allocs, err := pricing.Allocate(req.Lines, req.PromotionalTotal)
	if err != nil {
		return Snapshot{}, err
	}

	mapped, err := mapping.MapLines(allocs, mapping.Bundle{
		Active:           req.HasBundle,
		Savings:          req.PromotionalSavings,
		ShippingIncluded: req.HasBundle,
	})
	if err != nil {
		return Snapshot{}, err
	}

	if req.Shipping.Email == "" {
		return Snapshot{}, model.NewValidationError("shipping.email", "email is required")
	}

	attempt := newAttempt(uuid.NewString(), req)

	session, err := e.gateway.CreatePayment(ctx, e.paymentRequest(attempt.id, req))
	if err != nil {
		return Snapshot{}, err
	}
	attempt.setSession(session)

	order, err := e.platform.CreateOrder(ctx, shopify.BuildOrder(shopify.OrderParams{
		Request:   req,
		Lines:     mapped,
		PaymentID: session.ID,
	}))
	if err != nil {
		// The session exists but no order backs it. Refuse the attempt:
		// without the durable record a paid session would be unrecoverable.
		return Snapshot{}, err
	}
	attempt.setOrder(order)

	if err := e.journal.Record(ctx, session.ID, order.ID, attempt.id); err != nil {
		e.logger.Warn("journal record failed",
			slog.String("attempt_id", attempt.id),
			slog.String("payment_id", session.ID),
			slog.Any("error", err))
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	attempt.cancel = cancel

	e.register(attempt)
	attempt.transition(model.StatusOpeningPayment)
	go e.run(pollCtx, attempt)

	e.logger.Info("checkout attempt started",
		slog.String("attempt_id", attempt.id),
		slog.String("payment_id", session.ID),
		slog.Int64("order_id", order.ID),
		slog.String("order_name", order.Name))

	return attempt.Snapshot(), nil
}

// Get returns the current view of an attempt.
func (e *Engine) Get(attemptID string) (Snapshot, error) {
	attempt, err := e.lookup(attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	return attempt.Snapshot(), nil
}

// WindowClosed records that the buyer closed the payment window. Polling
// continues for a short grace period: confirmations routinely land after
// the window is gone.
func (e *Engine) WindowClosed(attemptID string) (Snapshot, error) {
	attempt, err := e.lookup(attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	attempt.armGrace(e.opts.GracePolls)
	return attempt.Snapshot(), nil
}

// WindowBlocked records that the payment window never opened. The attempt
// fails immediately; no money can have moved.
func (e *Engine) WindowBlocked(attemptID string) (Snapshot, error) {
	attempt, err := e.lookup(attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	if attempt.finish(model.StatusFailed, ReasonWindowBlocked) {
		e.stop(attempt)
	}
	return attempt.Snapshot(), nil
}

// Cancel abandons an attempt at the buyer's request.
func (e *Engine) Cancel(attemptID string) (Snapshot, error) {
	attempt, err := e.lookup(attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	if attempt.finish(model.StatusCancelled, "") {
		e.stop(attempt)
	}
	return attempt.Snapshot(), nil
}

// ConfirmPayment applies a confirmed payment, whether the attempt is still
// live in this process or not. Webhook deliveries land here.
func (e *Engine) ConfirmPayment(ctx context.Context, paymentID, paymentMethod string) error {
	if attempt := e.byPaymentID(paymentID); attempt != nil {
		if !attempt.needsRecovery() {
			e.commit(ctx, attempt, paymentMethod)
			return nil
		}
		// The attempt parked in pending_confirmation (or failed) before
		// the confirmation arrived: poll timeout, window grace, or a
		// failed order update. Its order record still settles it.
		if paid, err := e.journal.IsPaid(ctx, paymentID); err == nil && paid {
			return nil
		}
		order := attempt.orderRecord()
		updated, err := e.platform.MarkOrderPaid(ctx, order.ID, paymentID, paymentMethod)
		if err != nil {
			return err
		}
		e.markJournalPaid(ctx, paymentID)
		attempt.resolve(updated)
		e.logger.Info("parked attempt settled by confirmation",
			slog.String("attempt_id", attempt.id),
			slog.String("payment_id", paymentID),
			slog.Int64("order_id", updated.ID))
		return nil
	}

	// Attempt not in memory: restart, or pruned from the registry.
	if paid, err := e.journal.IsPaid(ctx, paymentID); err == nil && paid {
		return nil
	}
	orderID, err := e.journal.LookupOrder(ctx, paymentID)
	if err == nil {
		if _, err := e.platform.MarkOrderPaid(ctx, orderID, paymentID, paymentMethod); err != nil {
			return err
		}
		e.markJournalPaid(ctx, paymentID)
		return nil
	}

	order, err := e.platform.FindOrderByPaymentRef(ctx, paymentID)
	if err != nil {
		return err
	}
	if _, err := e.platform.MarkOrderPaid(ctx, order.ID, paymentID, paymentMethod); err != nil {
		return err
	}
	e.markJournalPaid(ctx, paymentID)
	return nil
}

func (e *Engine) markJournalPaid(ctx context.Context, paymentID string) {
	if err := e.journal.MarkPaid(ctx, paymentID); err != nil {
		e.logger.Warn("journal mark-paid failed",
			slog.String("payment_id", paymentID), slog.Any("error", err))
	}
}

// run is the poll loop: one goroutine per live attempt.
func (e *Engine) run(ctx context.Context, attempt *Attempt) {
	defer close(attempt.done)

	attempt.transition(model.StatusPolling)

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			attempt.finish(model.StatusCancelled, "")
			return
		case <-ticker.C:
		}

		if attempt.terminal() {
			return
		}

		polls, grace := attempt.tick()

		status, err := e.gateway.GetStatus(ctx, attempt.paymentID())
		if err != nil {
			// Transient poll failures are expected; the tick still counts
			// against the cap so a dead gateway cannot poll forever.
			e.logger.Warn("payment status poll failed",
				slog.String("attempt_id", attempt.id),
				slog.Int("poll", polls),
				slog.Any("error", err))
		} else {
			switch {
			case status.Successful():
				ticker.Stop()
				e.commit(ctx, attempt, "")
				return
			case status == model.PaymentRejected:
				attempt.finish(model.StatusFailed, ReasonRejected)
				e.logger.Info("payment rejected", slog.String("attempt_id", attempt.id))
				return
			case status == model.PaymentCancelled:
				attempt.finish(model.StatusFailed, ReasonCancelledByGateway)
				e.logger.Info("payment cancelled", slog.String("attempt_id", attempt.id))
				return
			}
		}

		// Still pending. The window-close grace and the hard cap both end
		// in pending_confirmation, never failed: the buyer may have paid.
		if grace == 0 {
			attempt.finish(model.StatusPendingConfirmation, ReasonWindowClosed)
			e.logger.Info("confirmation pending after window close",
				slog.String("attempt_id", attempt.id), slog.Int("polls", polls))
			return
		}
		if polls >= e.opts.MaxPolls {
			attempt.finish(model.StatusPendingConfirmation, ReasonPollTimeout)
			e.logger.Info("confirmation polling timed out",
				slog.String("attempt_id", attempt.id), slog.Int("polls", polls))
			return
		}
	}
}

// commit flips the pending order to paid and emits the purchase event,
// exactly once per attempt. A failed order update parks the attempt in
// pending_confirmation: the money moved, only the record is behind.
func (e *Engine) commit(ctx context.Context, attempt *Attempt, paymentMethod string) {
	if !attempt.beginCommit() {
		return
	}

	order := attempt.orderRecord()
	paymentID := attempt.paymentID()

	updated, err := e.platform.MarkOrderPaid(ctx, order.ID, paymentID, paymentMethod)
	if err != nil {
		e.logger.Error("order update after payment failed",
			slog.String("attempt_id", attempt.id),
			slog.String("payment_id", paymentID),
			slog.Int64("order_id", order.ID),
			slog.Any("error", err))
		attempt.finish(model.StatusPendingConfirmation, ReasonCommitFailed)
		return
	}
	attempt.setOrder(updated)

	e.markJournalPaid(ctx, paymentID)

	event := &events.PurchaseEvent{
		OrderID:   updated.ID,
		OrderName: updated.Name,
		PaymentID: paymentID,
		Value:     attempt.request.Total(),
		Currency:  e.opts.Currency,
		Email:     attempt.request.Shipping.Email,
		Tracking:  attempt.request.Tracking,
	}
	if err := e.events.Purchase(ctx, event); err != nil {
		// Analytics must never fail a paid checkout.
		e.logger.Warn("purchase event delivery failed",
			slog.String("payment_id", paymentID), slog.Any("error", err))
	}

	attempt.finish(model.StatusSuccess, "")
	e.logger.Info("checkout confirmed",
		slog.String("attempt_id", attempt.id),
		slog.String("payment_id", paymentID),
		slog.String("order_name", updated.Name))
}

// paymentRequest builds the gateway session payload for an attempt. The
// description and metadata mirror the order annotations, so a payment seen
// in the gateway dashboard is legible without the order at hand.
func (e *Engine) paymentRequest(attemptID string, req *model.CheckoutRequest) *dlocal.PaymentRequest {
	s := req.Shipping
	itemCount := len(req.Lines)

	description := fmt.Sprintf("Compra de %d producto(s)", itemCount)
	if req.HasBundle {
		description += fmt.Sprintf(" - Pack promocional (Ahorro: AR$ %d)",
			model.MajorUnits(req.PromotionalSavings))
	}

	metadata := map[string]string{
		"source":          "storefront_checkout",
		"attempt_id":      attemptID,
		"item_count":      strconv.Itoa(itemCount),
		"has_bundle":      strconv.FormatBool(req.HasBundle),
		"shipping_method": string(req.Method()),
		"shipping_cost":   model.FormatCents(req.ShippingCost),
		"subtotal":        model.FormatCents(req.PromotionalTotal),
		"total":           model.FormatCents(req.Total()),
	}
	if t := req.Tracking; t != nil {
		for key, value := range map[string]string{
			"session_id":   t.SessionID,
			"utm_source":   t.UTMSource,
			"utm_medium":   t.UTMMedium,
			"utm_campaign": t.UTMCampaign,
		} {
			if value != "" {
				metadata[key] = value
			}
		}
	}

	return &dlocal.PaymentRequest{
		Amount:      model.MajorUnits(req.Total()),
		Currency:    e.opts.Currency,
		Country:     e.opts.Country,
		OrderID:     "CHK-" + attemptID,
		Description: description,
		Payer: &dlocal.Payer{
			Name:     s.FullName(),
			Email:    s.Email,
			Document: s.Document,
			Address: &dlocal.PayerAddress{
				State:       s.Province,
				City:        s.City,
				ZipCode:     s.Zip,
				FullAddress: s.Address1,
			},
		},
		NotificationURL: e.opts.NotificationURL,
		SuccessURL:      e.opts.SuccessURL,
		BackURL:         e.opts.BackURL,
		Metadata:        metadata,
	}
}

// === registry ===

func (e *Engine) register(attempt *Attempt) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prune()
	e.attempts[attempt.id] = attempt
	if id := attempt.paymentID(); id != "" {
		e.byPayment[id] = attempt.id
	}
}

func (e *Engine) lookup(attemptID string) (*Attempt, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	attempt, ok := e.attempts[attemptID]
	if !ok {
		return nil, model.NewNotFoundError("checkout attempt", attemptID)
	}
	return attempt, nil
}

func (e *Engine) byPaymentID(paymentID string) *Attempt {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.byPayment[paymentID]
	if !ok {
		return nil
	}
	return e.attempts[id]
}

// stop cancels an attempt's poll loop.
func (e *Engine) stop(attempt *Attempt) {
	if attempt.cancel != nil {
		attempt.cancel()
	}
}

// prune drops terminal attempts past retention. Caller holds e.mu.
func (e *Engine) prune() {
	cutoff := time.Now().UTC().Add(-retention)
	for id, attempt := range e.attempts {
		s := attempt.Snapshot()
		if s.Status.Terminal() && s.UpdatedAt.Before(cutoff) {
			delete(e.attempts, id)
			delete(e.byPayment, s.PaymentID)
		}
	}
}
