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

// Store persists plans, subscriptions and payments
type Store struct {
	db *sql.DB
}

// NewStore creates a new billing store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func validatePlan(input PlanInput) error {
	var v validation.Collector
	if v.Required("Plan name", input.Name) {
		v.MaxLength("Plan name", input.Name, 100)
	}
	v.Check(input.PriceMonthlyCents >= 0, "Monthly price must not be negative")
	v.Check(input.PriceYearlyCents >= 0, "Yearly price must not be negative")
	v.Check(input.MaxUsers > 0, "Max users must be greater than 0")
	v.Check(input.MaxProperties > 0, "Max properties must be greater than 0")
	return v.Err()
}

// CreatePlan creates a plan
func (s *Store) CreatePlan(ctx context.Context, input PlanInput) (*Plan, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validatePlan(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	plan := &Plan{
		Name:              input.Name,
		PriceMonthlyCents: input.PriceMonthlyCents,
		PriceYearlyCents:  input.PriceYearlyCents,
		MaxUsers:          input.MaxUsers,
		MaxProperties:     input.MaxProperties,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	query := `
		INSERT INTO plans (name, price_monthly_cents, price_yearly_cents, max_users, max_properties, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		plan.Name, plan.PriceMonthlyCents, plan.PriceYearlyCents, plan.MaxUsers, plan.MaxProperties, now, now,
	).Scan(&plan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	return plan, nil
}

// GetPlan retrieves a plan by ID
func (s *Store) GetPlan(ctx context.Context, id int64) (*Plan, error) {
	query := `
		SELECT id, name, price_monthly_cents, price_yearly_cents, max_users, max_properties, created_at, updated_at
		FROM plans
		WHERE id = $1
	`

	plan, err := scanPlan(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

// ListPlans returns every plan ordered by monthly price
func (s *Store) ListPlans(ctx context.Context) ([]*Plan, error) {
	query := `
		SELECT id, name, price_monthly_cents, price_yearly_cents, max_users, max_properties, created_at, updated_at
		FROM plans
		ORDER BY price_monthly_cents, id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}
	return plans, nil
}

// UpdatePlan replaces the writable fields of a plan
func (s *Store) UpdatePlan(ctx context.Context, id int64, input PlanInput) (*Plan, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := validatePlan(input); err != nil {
		return nil, err
	}

	query := `
		UPDATE plans
		SET name = $1, price_monthly_cents = $2, price_yearly_cents = $3, max_users = $4, max_properties = $5, updated_at = $6
		WHERE id = $7
	`
	result, err := s.db.ExecContext(ctx, query,
		input.Name, input.PriceMonthlyCents, input.PriceYearlyCents, input.MaxUsers, input.MaxProperties, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPlanNotFound
	}

	return s.GetPlan(ctx, id)
}

// DeletePlan deletes a plan that no subscription references
func (s *Store) DeletePlan(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if storage.IsForeignKeyViolation(err) {
		return ErrPlanInUse
	}
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	ok, err := storage.RowsAffected(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPlanNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(row rowScanner) (*Plan, error) {
	var p Plan
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.PriceMonthlyCents,
		&p.PriceYearlyCents,
		&p.MaxUsers,
		&p.MaxProperties,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
