package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/commercekit/btcpay-reconciler/internal/domain"
)

// OrderStore implements ports.OrderStore on PostgreSQL. Concurrent webhook
// deliveries for the same order are serialized by row locking inside
// MarkPaymentComplete and SetStatus, not by the callers.
type OrderStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewOrderStore creates a PostgreSQL-backed order store
func NewOrderStore(pool *pgxpool.Pool, logger *zap.Logger) *OrderStore {
	return &OrderStore{pool: pool, logger: logger}
}

// FindByInvoiceID returns every order whose stored invoice ID matches.
// Multiple rows are possible when metadata was copied between orders; the
// caller treats that as ambiguous.
func (s *OrderStore) FindByInvoiceID(ctx context.Context, invoiceID string) ([]domain.OrderRef, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.payment_method, o.status
		FROM orders o
		JOIN order_meta m ON m.order_id = o.id
		WHERE m.key = $1 AND m.value = $2
		ORDER BY o.id`,
		domain.MetaInvoiceID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query orders by invoice id: %w", err)
	}
	defer rows.Close()

	var refs []domain.OrderRef
	for rows.Next() {
		var ref domain.OrderRef
		if err := rows.Scan(&ref.ID, &ref.PaymentMethod, &ref.Status); err != nil {
			return nil, fmt.Errorf("scan order ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order refs: %w", err)
	}
	return refs, nil
}

// GetOrder loads the full order view
func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var (
		order       domain.Order
		total       string
		taxIncluded string
		billingJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, number, status, payment_method, currency,
		       total::text, tax_included::text, item_quantity, edit_url, billing
		FROM orders
		WHERE id = $1`,
		orderID).Scan(
		&order.ID, &order.Number, &order.Status, &order.PaymentMethod, &order.Currency,
		&total, &taxIncluded, &order.ItemQuantity, &order.EditURL, &billingJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound.WithDetail("order_id", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse order total: %w", err)
	}
	if order.TaxIncluded, err = decimal.NewFromString(taxIncluded); err != nil {
		return nil, fmt.Errorf("parse order tax: %w", err)
	}
	if len(billingJSON) > 0 {
		var billing domain.BillingInfo
		if err := json.Unmarshal(billingJSON, &billing); err != nil {
			return nil, fmt.Errorf("decode billing info: %w", err)
		}
		order.Billing = &billing
	}
	return &order, nil
}

// GetStatus returns the current order status
func (s *OrderStore) GetStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	var status domain.OrderStatus
	err := s.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrOrderNotFound.WithDetail("order_id", orderID)
	}
	if err != nil {
		return "", fmt.Errorf("get order status: %w", err)
	}
	return status, nil
}

// SetStatus updates the order status
func (s *OrderStore) SetStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		orderID, status)
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound.WithDetail("order_id", orderID)
	}
	return nil
}

// AppendNote attaches a note to the order
func (s *OrderStore) AppendNote(ctx context.Context, orderID, note string, customerVisible bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO order_notes (id, order_id, note, customer_visible, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		uuid.New(), orderID, note, customerVisible)
	if err != nil {
		return fmt.Errorf("append order note: %w", err)
	}
	return nil
}

// GetMeta returns a metadata value, empty string when the key is absent
func (s *OrderStore) GetMeta(ctx context.Context, orderID, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM order_meta WHERE order_id = $1 AND key = $2`,
		orderID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get order meta: %w", err)
	}
	return value, nil
}

// SetMeta upserts a metadata value
func (s *OrderStore) SetMeta(ctx context.Context, orderID, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO order_meta (order_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, key) DO UPDATE SET value = EXCLUDED.value`,
		orderID, key, value)
	if err != nil {
		return fmt.Errorf("set order meta: %w", err)
	}
	return nil
}

// MarkPaymentComplete records that the order's payment is final. Orders with
// nothing left to fulfill go straight to completed; the rest move to
// processing. Already-complete orders are left untouched, which makes
// redelivered settlement webhooks harmless.
func (s *OrderStore) MarkPaymentComplete(ctx context.Context, orderID string) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			paymentComplete bool
			needsProcessing bool
		)
		err := tx.QueryRow(ctx,
			`SELECT payment_complete, needs_processing FROM orders WHERE id = $1 FOR UPDATE`,
			orderID).Scan(&paymentComplete, &needsProcessing)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrOrderNotFound.WithDetail("order_id", orderID)
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		if paymentComplete {
			s.logger.Debug("Order payment already complete", zap.String("order_id", orderID))
			return nil
		}

		status := domain.OrderStatusCompleted
		if needsProcessing {
			status = domain.OrderStatusProcessing
		}

		_, err = tx.Exec(ctx, `
			UPDATE orders
			SET payment_complete = TRUE, status = $2, paid_at = now(), updated_at = now()
			WHERE id = $1`,
			orderID, status)
		if err != nil {
			return fmt.Errorf("mark payment complete: %w", err)
		}
		return nil
	})
}

// Commit bumps the order's modification timestamp. Individual writes are
// applied immediately; this marks the end of a logical unit of work so
// downstream consumers polling updated_at see one change, not several.
func (s *OrderStore) Commit(ctx context.Context, orderID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE orders SET updated_at = now() WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error or panic
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
