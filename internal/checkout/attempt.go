package checkout

import (
	"sync"
	"time"

	"storefront-checkout/internal/model"
)

// Failure reasons surfaced to the storefront. pending_confirmation states
// carry a reason too, so support can tell a poll timeout from a failed
// order update.
const (
	ReasonRejected           = "payment_rejected"
	ReasonCancelledByGateway = "payment_cancelled"
	ReasonWindowBlocked      = "window_blocked"
	ReasonWindowClosed       = "window_closed_unconfirmed"
	ReasonPollTimeout        = "confirmation_timeout"
	ReasonCommitFailed       = "order_update_failed"
)

// Attempt is one press of the pay button: a payment session, its pending
// order, and the poll loop reconciling the two. All mutation goes through
// the methods below; the state machine only moves forward.
type Attempt struct {
	mu sync.Mutex

	id      string
	status  model.AttemptStatus
	request *model.CheckoutRequest
	session *model.PaymentSession
	order   *model.PendingOrder

	reason         string
	pollCount      int
	graceRemaining int // -1 until the payment window closes
	committed      bool

	createdAt time.Time
	updatedAt time.Time

	cancel func()
	done   chan struct{}
}

// Snapshot is the read-only view of an attempt returned to callers.
type Snapshot struct {
	ID          string              `json:"attempt_id"`
	Status      model.AttemptStatus `json:"status"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	PaymentID   string              `json:"payment_id,omitempty"`
	OrderID     int64               `json:"order_id,omitempty"`
	OrderName   string              `json:"order_name,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	PollCount   int                 `json:"poll_count"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func newAttempt(id string, req *model.CheckoutRequest) *Attempt {
	now := time.Now().UTC()
	return &Attempt{
		id:             id,
		status:         model.StatusCreatingOrder,
		request:        req,
		graceRemaining: -1,
		createdAt:      now,
		updatedAt:      now,
		done:           make(chan struct{}),
	}
}

// Snapshot returns a consistent copy of the attempt's visible state.
func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		ID:        a.id,
		Status:    a.status,
		Reason:    a.reason,
		PollCount: a.pollCount,
		CreatedAt: a.createdAt,
		UpdatedAt: a.updatedAt,
	}
	if a.session != nil {
		s.RedirectURL = a.session.RedirectURL
		s.PaymentID = a.session.ID
	}
	if a.order != nil {
		s.OrderID = a.order.ID
		s.OrderName = a.order.Name
	}
	return s
}

func (a *Attempt) terminal() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status.Terminal()
}

// tick counts one poll and burns one grace tick if the window has closed.
// Returns the poll count and remaining grace (-1 when grace is not armed).
func (a *Attempt) tick() (polls, grace int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pollCount++
	if a.graceRemaining > 0 {
		a.graceRemaining--
	}
	a.updatedAt = time.Now().UTC()
	return a.pollCount, a.graceRemaining
}

// armGrace starts the post-close countdown. Re-arming never extends it.
func (a *Attempt) armGrace(ticks int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.graceRemaining < 0 && !a.status.Terminal() {
		a.graceRemaining = ticks
	}
}

// transition moves to a non-terminal status. No-op once terminal.
func (a *Attempt) transition(status model.AttemptStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.Terminal() {
		return
	}
	a.status = status
	a.updatedAt = time.Now().UTC()
}

// finish moves to a terminal status with a reason. First writer wins.
func (a *Attempt) finish(status model.AttemptStatus, reason string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.Terminal() {
		return false
	}
	a.status = status
	a.reason = reason
	a.updatedAt = time.Now().UTC()
	return true
}

// beginCommit claims the exactly-once commit. Only the first caller gets
// true; everyone else backs off.
func (a *Attempt) beginCommit() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.committed || a.status.Terminal() {
		return false
	}
	a.committed = true
	a.status = model.StatusUpdatingOrder
	a.updatedAt = time.Now().UTC()
	return true
}

// needsRecovery reports whether the attempt ended without a confirmed
// order: parked terminal in anything but success. A confirmation arriving
// now must settle it through the durable order record, not the in-memory
// commit, which refuses terminal attempts.
func (a *Attempt) needsRecovery() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status.Terminal() && a.status != model.StatusSuccess
}

// resolve upgrades a parked attempt to success after an out-of-band
// confirmation settled its order.
func (a *Attempt) resolve(order *model.PendingOrder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == model.StatusSuccess {
		return
	}
	a.committed = true
	a.status = model.StatusSuccess
	a.reason = ""
	if order != nil {
		a.order = order
	}
	a.updatedAt = time.Now().UTC()
}

func (a *Attempt) setSession(s *model.PaymentSession) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = s
}

func (a *Attempt) setOrder(o *model.PendingOrder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.order = o
}

func (a *Attempt) paymentID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return ""
	}
	return a.session.ID
}

func (a *Attempt) orderRecord() *model.PendingOrder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.order
}
