package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/crmguard/pkg/storage"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

const paymentColumns = `
	pm.id, pm.workspace_id, pm.subscription_id, pm.amount_cents, pm.currency, pm.provider,
	pm.status, pm.transaction_id, pm.paid_at, pm.created_at, pm.updated_at, p.name
`

const paymentFrom = `
	FROM payments pm
	JOIN subscriptions s ON s.id = pm.subscription_id
	JOIN plans p ON p.id = s.plan_id
`

// CreatePayment records a pending payment against a subscription of the same workspace
func (s *Store) CreatePayment(ctx context.Context, input CreatePaymentInput) (*Payment, error) {
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	input.Provider = strings.TrimSpace(input.Provider)
	input.TransactionID = strings.TrimSpace(input.TransactionID)

	var v validation.Collector
	v.RequiredID("Workspace", input.WorkspaceID)
	v.RequiredID("Subscription", input.SubscriptionID)
	v.Check(input.AmountCents > 0, "Amount must be greater than 0")
	if v.Required("Currency", input.Currency) {
		v.Check(len(input.Currency) == 3, "Currency must be a 3-letter ISO code")
	}
	if v.Required("Provider", input.Provider) {
		v.MaxLength("Provider", input.Provider, 50)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var transactionID sql.NullString
	if input.TransactionID != "" {
		transactionID = sql.NullString{String: input.TransactionID, Valid: true}
	}

	var id int64
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var owner int64
		err := tx.QueryRowContext(ctx, `SELECT workspace_id FROM subscriptions WHERE id = $1`, input.SubscriptionID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to create payment: %w", ErrUnknownReference)
		}
		if err != nil {
			return fmt.Errorf("failed to check subscription: %w", err)
		}
		if owner != input.WorkspaceID {
			return fmt.Errorf("failed to create payment: subscription %d does not belong to workspace %d: %w",
				input.SubscriptionID, input.WorkspaceID, ErrUnknownReference)
		}

		query := `
			INSERT INTO payments (workspace_id, subscription_id, amount_cents, currency, provider, status, transaction_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		err = tx.QueryRowContext(ctx, query,
			input.WorkspaceID, input.SubscriptionID, input.AmountCents, input.Currency, input.Provider,
			string(PaymentStatusPending), transactionID, now, now,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetPayment(ctx, id, input.WorkspaceID)
}

// GetPayment retrieves a payment scoped to its workspace
func (s *Store) GetPayment(ctx context.Context, id, workspaceID int64) (*Payment, error) {
	query := `SELECT ` + paymentColumns + paymentFrom + `WHERE pm.id = $1 AND pm.workspace_id = $2`

	payment, err := scanPayment(s.db.QueryRowContext(ctx, query, id, workspaceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// ListPayments returns the payments of a workspace with their plan name, newest first
func (s *Store) ListPayments(ctx context.Context, workspaceID int64) ([]*Payment, error) {
	query := `SELECT ` + paymentColumns + paymentFrom + `
		WHERE pm.workspace_id = $1
		ORDER BY pm.created_at DESC, pm.id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}

// UpdatePaymentStatus settles a pending payment as success or failed. A
// successful payment gets paid_at stamped. Settled payments are immutable.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id, workspaceID int64, status PaymentStatus, transactionID string) (*Payment, error) {
	if status != PaymentStatusSuccess && status != PaymentStatusFailed {
		return nil, validation.Errors{"Status must be success or failed"}
	}

	now := time.Now().UTC()
	var paidAt sql.NullTime
	if status == PaymentStatusSuccess {
		paidAt = sql.NullTime{Time: now, Valid: true}
	}
	var txID sql.NullString
	if transactionID = strings.TrimSpace(transactionID); transactionID != "" {
		txID = sql.NullString{String: transactionID, Valid: true}
	}

	query := `
		UPDATE payments
		SET status = $1, transaction_id = COALESCE($2, transaction_id), paid_at = $3, updated_at = $4
		WHERE id = $5 AND workspace_id = $6 AND status = 'pending'
	`
	result, err := s.db.ExecContext(ctx, query, string(status), txID, paidAt, now, id, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Either the payment does not exist in this workspace or it is already settled.
		if _, err := s.GetPayment(ctx, id, workspaceID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidPaymentTransition
	}

	return s.GetPayment(ctx, id, workspaceID)
}

func scanPayment(row rowScanner) (*Payment, error) {
	var (
		p             Payment
		status        string
		transactionID sql.NullString
		paidAt        sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.WorkspaceID,
		&p.SubscriptionID,
		&p.AmountCents,
		&p.Currency,
		&p.Provider,
		&status,
		&transactionID,
		&paidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.PlanName,
	)
	if err != nil {
		return nil, err
	}

	p.Status = PaymentStatus(status)
	if transactionID.Valid {
		p.TransactionID = &transactionID.String
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}
