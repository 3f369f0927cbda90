package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/crmguard/pkg/storage"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

const subscriptionColumns = `
	s.id, s.workspace_id, s.plan_id, s.status, s.billing_cycle,
	s.start_date, s.end_date, s.trial_ends_at, s.created_at, s.updated_at,
	p.name, p.max_users, p.max_properties
`

const openStatuses = `('trial', 'active')`

func validateSubscription(input CreateSubscriptionInput) error {
	var v validation.Collector
	v.RequiredID("Workspace", input.WorkspaceID)
	v.RequiredID("Plan", input.PlanID)
	v.Check(input.Status.Valid(), "Status must be one of trial, active, expired or cancelled")
	v.Check(input.BillingCycle.Valid(), "Billing cycle must be monthly or yearly")
	v.Check(!input.StartDate.IsZero(), "Start date is required")
	v.Check(!input.EndDate.IsZero(), "End date is required")
	if !input.StartDate.IsZero() && !input.EndDate.IsZero() {
		v.Check(input.EndDate.After(input.StartDate), "End date must be after start date")
	}
	return v.Err()
}

// CreateSubscription opens a subscription for a workspace. A workspace holds at
// most one trial or active subscription at a time.
func (s *Store) CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*Subscription, error) {
	if input.Status == "" {
		input.Status = SubscriptionStatusTrial
	}
	if err := validateSubscription(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &Subscription{
		WorkspaceID:  input.WorkspaceID,
		PlanID:       input.PlanID,
		Status:       input.Status,
		BillingCycle: input.BillingCycle,
		StartDate:    input.StartDate.UTC(),
		EndDate:      input.EndDate.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var trialEndsAt sql.NullTime
	if input.TrialEndsAt != nil {
		t := input.TrialEndsAt.UTC()
		sub.TrialEndsAt = &t
		trialEndsAt = sql.NullTime{Time: t, Valid: true}
	}

	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if sub.Status.Open() {
			if err := checkNoOpenSubscription(ctx, tx, sub.WorkspaceID, 0); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO subscriptions (workspace_id, plan_id, status, billing_cycle, start_date, end_date, trial_ends_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		err := tx.QueryRowContext(ctx, query,
			sub.WorkspaceID, sub.PlanID, string(sub.Status), string(sub.BillingCycle),
			sub.StartDate, sub.EndDate, trialEndsAt, now, now,
		).Scan(&sub.ID)
		switch {
		case storage.IsUniqueViolation(err):
			return ErrActiveSubscriptionExists
		case storage.IsForeignKeyViolation(err):
			return fmt.Errorf("failed to create subscription: %w", ErrUnknownReference)
		case err != nil:
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetSubscription(ctx, sub.ID)
}

// checkNoOpenSubscription fails when the workspace already has an open
// subscription other than exceptID.
func checkNoOpenSubscription(ctx context.Context, q storage.DBTX, workspaceID, exceptID int64) error {
	query := `
		SELECT COUNT(*) FROM subscriptions
		WHERE workspace_id = $1 AND id <> $2 AND status IN ` + openStatuses

	var count int
	if err := q.QueryRowContext(ctx, query, workspaceID, exceptID).Scan(&count); err != nil {
		return fmt.Errorf("failed to check open subscriptions: %w", err)
	}
	if count > 0 {
		return ErrActiveSubscriptionExists
	}
	return nil
}

// GetSubscription retrieves a subscription with its plan limits
func (s *Store) GetSubscription(ctx context.Context, id int64) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.id = $1
	`

	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// ListSubscriptions returns the subscription history of a workspace, newest first
func (s *Store) ListSubscriptions(ctx context.Context, workspaceID int64) ([]*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.workspace_id = $1
		ORDER BY s.created_at DESC, s.id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

// FindActive returns the single trial or active subscription of a workspace.
// It returns ErrNoActiveSubscription when there is none and
// ErrAmbiguousSubscription when the store holds more than one.
func (s *Store) FindActive(ctx context.Context, workspaceID int64) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.workspace_id = $1 AND s.status IN ` + openStatuses + `
		ORDER BY s.id
		LIMIT 2
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active subscription: %w", err)
	}
	defer rows.Close()

	var found []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		found = append(found, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, ErrNoActiveSubscription
	case 1:
		return found[0], nil
	default:
		return nil, ErrAmbiguousSubscription
	}
}

// UpdateSubscriptionStatus moves a subscription to status. Reopening a
// subscription fails while another one is open for the same workspace.
func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id int64, status SubscriptionStatus) (*Subscription, error) {
	if !status.Valid() {
		return nil, validation.Errors{"Status must be one of trial, active, expired or cancelled"}
	}

	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var workspaceID int64
		err := tx.QueryRowContext(ctx, `SELECT workspace_id FROM subscriptions WHERE id = $1`, id).Scan(&workspaceID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSubscriptionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get subscription: %w", err)
		}

		if status.Open() {
			if err := checkNoOpenSubscription(ctx, tx, workspaceID, id); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE subscriptions SET status = $1, updated_at = $2 WHERE id = $3`,
			string(status), time.Now().UTC(), id,
		)
		if storage.IsUniqueViolation(err) {
			return ErrActiveSubscriptionExists
		}
		if err != nil {
			return fmt.Errorf("failed to update subscription status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetSubscription(ctx, id)
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var (
		sub         Subscription
		status      string
		cycle       string
		trialEndsAt sql.NullTime
	)
	err := row.Scan(
		&sub.ID,
		&sub.WorkspaceID,
		&sub.PlanID,
		&status,
		&cycle,
		&sub.StartDate,
		&sub.EndDate,
		&trialEndsAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
		&sub.Limits.PlanName,
		&sub.Limits.MaxUsers,
		&sub.Limits.MaxProperties,
	)
	if err != nil {
		return nil, err
	}

	sub.Status = SubscriptionStatus(status)
	sub.BillingCycle = BillingCycle(cycle)
	sub.Limits.PlanID = sub.PlanID
	if trialEndsAt.Valid {
		t := trialEndsAt.Time
		sub.TrialEndsAt = &t
	}
	return &sub, nil
}
