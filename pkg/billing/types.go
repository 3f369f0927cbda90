package billing

import (
	"errors"
	"time"
)

var (
	ErrPlanNotFound             = errors.New("plan not found")
	ErrPlanInUse                = errors.New("plan is referenced by subscriptions")
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrNoActiveSubscription     = errors.New("workspace has no trial or active subscription")
	ErrAmbiguousSubscription    = errors.New("workspace has more than one trial or active subscription")
	ErrActiveSubscriptionExists = errors.New("workspace already has a trial or active subscription")
	ErrPaymentNotFound          = errors.New("payment not found")
	ErrInvalidPaymentTransition = errors.New("payment status can only move from pending to success or failed")
	ErrUnknownReference         = errors.New("referenced workspace, plan or subscription does not exist")
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusCancelled:
		return true
	}
	return false
}

// Open reports whether s is non-terminal (trial or active)
func (s SubscriptionStatus) Open() bool {
	return s == SubscriptionStatusTrial || s == SubscriptionStatusActive
}

// BillingCycle is how often a subscription is charged
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// Valid reports whether c is a known cycle
func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleYearly
}

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Plan is a priced tier carrying entitlement ceilings
type Plan struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	PriceMonthlyCents int64     `json:"price_monthly_cents"`
	PriceYearlyCents  int64     `json:"price_yearly_cents"`
	MaxUsers          int       `json:"max_users"`
	MaxProperties     int       `json:"max_properties"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PlanInput holds the writable fields of a plan
type PlanInput struct {
	Name              string `json:"name" yaml:"name"`
	PriceMonthlyCents int64  `json:"price_monthly_cents" yaml:"price_monthly_cents"`
	PriceYearlyCents  int64  `json:"price_yearly_cents" yaml:"price_yearly_cents"`
	MaxUsers          int    `json:"max_users" yaml:"max_users"`
	MaxProperties     int    `json:"max_properties" yaml:"max_properties"`
}

// PlanLimits are the read-only ceilings of the plan behind a subscription.
// Enforcing them is left to callers.
type PlanLimits struct {
	PlanID        int64  `json:"plan_id"`
	PlanName      string `json:"plan_name"`
	MaxUsers      int    `json:"max_users"`
	MaxProperties int    `json:"max_properties"`
}

// Subscription binds a workspace to a plan for a period
type Subscription struct {
	ID           int64              `json:"id"`
	WorkspaceID  int64              `json:"workspace_id"`
	PlanID       int64              `json:"plan_id"`
	Status       SubscriptionStatus `json:"status"`
	BillingCycle BillingCycle       `json:"billing_cycle"`
	StartDate    time.Time          `json:"start_date"`
	EndDate      time.Time          `json:"end_date"`
	TrialEndsAt  *time.Time         `json:"trial_ends_at,omitempty"`
	Limits       PlanLimits         `json:"limits"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// CreateSubscriptionInput is the request to open a subscription. Status defaults to trial.
type CreateSubscriptionInput struct {
	WorkspaceID  int64              `json:"workspace_id"`
	PlanID       int64              `json:"plan_id"`
	Status       SubscriptionStatus `json:"status,omitempty"`
	BillingCycle BillingCycle       `json:"billing_cycle"`
	StartDate    time.Time          `json:"start_date"`
	EndDate      time.Time          `json:"end_date"`
	TrialEndsAt  *time.Time         `json:"trial_ends_at,omitempty"`
}

// Payment records a charge reported by a payment provider
type Payment struct {
	ID             int64         `json:"id"`
	WorkspaceID    int64         `json:"workspace_id"`
	SubscriptionID int64         `json:"subscription_id"`
	AmountCents    int64         `json:"amount_cents"`
	Currency       string        `json:"currency"`
	Provider       string        `json:"provider"`
	Status         PaymentStatus `json:"status"`
	TransactionID  *string       `json:"transaction_id,omitempty"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	PlanName       string        `json:"plan_name,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CreatePaymentInput is the request to record a new pending payment
type CreatePaymentInput struct {
	WorkspaceID    int64  `json:"workspace_id"`
	SubscriptionID int64  `json:"subscription_id"`
	AmountCents    int64  `json:"amount_cents"`
	Currency       string `json:"currency"`
	Provider       string `json:"provider"`
	TransactionID  string `json:"transaction_id,omitempty"`
}
