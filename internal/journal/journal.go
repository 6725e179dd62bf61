// Package journal keeps a local index from payment reference to platform
// order ID. Webhooks can arrive after a restart, when the in-memory attempt
// registry is gone; the journal answers the lookup without scanning the
// platform's order list.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"storefront-checkout/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_orders (
	payment_id TEXT PRIMARY KEY,
	order_id   INTEGER NOT NULL,
	attempt_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	paid_at    TEXT
);
`

// Journal is the durable payment-to-order index.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// The driver is single-writer; serialize access instead of surfacing
	// SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores the payment-to-order link for an attempt. Recording the
// same payment twice is a no-op.
func (j *Journal) Record(ctx context.Context, paymentID string, orderID int64, attemptID string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO payment_orders (payment_id, order_id, attempt_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (payment_id) DO NOTHING`,
		paymentID, orderID, attemptID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording payment %s: %w", paymentID, err)
	}
	return nil
}

// LookupOrder returns the order linked to a payment reference.
func (j *Journal) LookupOrder(ctx context.Context, paymentID string) (int64, error) {
	var orderID int64
	err := j.db.QueryRowContext(ctx,
		`SELECT order_id FROM payment_orders WHERE payment_id = ?`, paymentID,
	).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.NewNotFoundError("journal entry", paymentID)
	}
	if err != nil {
		return 0, fmt.Errorf("looking up payment %s: %w", paymentID, err)
	}
	return orderID, nil
}

// MarkPaid stamps the entry once the payment is confirmed. Idempotent.
func (j *Journal) MarkPaid(ctx context.Context, paymentID string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE payment_orders SET paid_at = ? WHERE payment_id = ? AND paid_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), paymentID,
	)
	if err != nil {
		return fmt.Errorf("marking payment %s paid: %w", paymentID, err)
	}
	return nil
}

// IsPaid reports whether the payment has already been confirmed.
func (j *Journal) IsPaid(ctx context.Context, paymentID string) (bool, error) {
	var paidAt sql.NullString
	err := j.db.QueryRowContext(ctx,
		`SELECT paid_at FROM payment_orders WHERE payment_id = ?`, paymentID,
	).Scan(&paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, model.NewNotFoundError("journal entry", paymentID)
	}
	if err != nil {
		return false, fmt.Errorf("checking payment %s: %w", paymentID, err)
	}
	return paidAt.Valid, nil
}
