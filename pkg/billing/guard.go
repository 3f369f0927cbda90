package billing

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/crmguard/pkg/observability"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

var guardTracer = otel.Tracer("crmguard/billing")

// EntitlementReason explains an entitlement decision
type EntitlementReason string

const (
	ReasonEntitled              EntitlementReason = "entitled"
	ReasonNoSubscription        EntitlementReason = "no_subscription"
	ReasonTrialExpired          EntitlementReason = "trial_expired"
	ReasonSubscriptionExpired   EntitlementReason = "subscription_expired"
	ReasonAmbiguousSubscription EntitlementReason = "ambiguous_subscription"
	ReasonStatusNotEntitling    EntitlementReason = "status_not_entitling"
)

// Entitlement is the outcome of an entitlement check
type Entitlement struct {
	Entitled     bool              `json:"entitled"`
	Reason       EntitlementReason `json:"reason"`
	Subscription *Subscription     `json:"subscription,omitempty"`
}

// SubscriptionFinder looks up the open subscription of a workspace
type SubscriptionFinder interface {
	FindActive(ctx context.Context, workspaceID int64) (*Subscription, error)
}

// Guard decides whether a workspace may use the product right now
type Guard struct {
	finder  SubscriptionFinder
	now     func() time.Time
	logger  *observability.Logger
	metrics *observability.Metrics
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithClock overrides the time source
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithGuardLogger sets the logger used for denied decisions
func WithGuardLogger(logger *observability.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardMetrics sets the collectors decisions are counted in
func WithGuardMetrics(metrics *observability.Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = metrics
	}
}

// NewGuard creates an entitlement guard
func NewGuard(finder SubscriptionFinder, opts ...GuardOption) *Guard {
	g := &Guard{
		finder: finder,
		now:    time.Now,
		logger: observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsEntitled reports whether the workspace currently holds a valid trial or
// active subscription. Store failures are returned as errors, never as false.
func (g *Guard) IsEntitled(ctx context.Context, workspaceID int64) (bool, error) {
	e, err := g.Decide(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	return e.Entitled, nil
}

// Decide evaluates entitlement and reports the reason
func (g *Guard) Decide(ctx context.Context, workspaceID int64) (Entitlement, error) {
	ctx, span := guardTracer.Start(ctx, "Guard.Decide",
		trace.WithAttributes(attribute.Int64("workspace_id", workspaceID)),
	)
	defer span.End()

	start := time.Now()
	e, err := g.decide(ctx, workspaceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "entitlement check failed")
		g.metrics.RecordDecisionError(observability.ComponentGuard)
		return Entitlement{}, err
	}

	span.SetAttributes(
		attribute.Bool("entitled", e.Entitled),
		attribute.String("reason", string(e.Reason)),
	)
	g.metrics.RecordDecision(observability.ComponentGuard, e.Entitled, string(e.Reason), time.Since(start))

	if !e.Entitled {
		observability.WithTraceContext(ctx, g.logger).WithFields(map[string]interface{}{
			"workspace_id": workspaceID,
			"reason":       string(e.Reason),
		}).Debug("workspace not entitled")
	}
	return e, nil
}

func (g *Guard) decide(ctx context.Context, workspaceID int64) (Entitlement, error) {
	if workspaceID <= 0 {
		return Entitlement{}, validation.Malformed("workspace id is required")
	}

	sub, err := g.finder.FindActive(ctx, workspaceID)
	switch {
	case errors.Is(err, ErrNoActiveSubscription):
		return Entitlement{Reason: ReasonNoSubscription}, nil
	case errors.Is(err, ErrAmbiguousSubscription):
		return Entitlement{Reason: ReasonAmbiguousSubscription}, nil
	case err != nil:
		return Entitlement{}, err
	}

	return Evaluate(sub, g.now()), nil
}

// Evaluate applies the temporal rules to a subscription at instant now.
// A trial entitles until trial_ends_at (forever when unset); an active
// subscription entitles until end_date. Both bounds are exclusive.
func Evaluate(sub *Subscription, now time.Time) Entitlement {
	if sub == nil {
		return Entitlement{Reason: ReasonNoSubscription}
	}

	switch sub.Status {
	case SubscriptionStatusTrial:
		if sub.TrialEndsAt == nil || sub.TrialEndsAt.After(now) {
			return Entitlement{Entitled: true, Reason: ReasonEntitled, Subscription: sub}
		}
		return Entitlement{Reason: ReasonTrialExpired, Subscription: sub}
	case SubscriptionStatusActive:
		if sub.EndDate.After(now) {
			return Entitlement{Entitled: true, Reason: ReasonEntitled, Subscription: sub}
		}
		return Entitlement{Reason: ReasonSubscriptionExpired, Subscription: sub}
	default:
		return Entitlement{Reason: ReasonStatusNotEntitling, Subscription: sub}
	}
}

// Limits returns the plan ceilings of the workspace's open subscription
func (g *Guard) Limits(ctx context.Context, workspaceID int64) (*PlanLimits, error) {
	if workspaceID <= 0 {
		return nil, validation.Malformed("workspace id is required")
	}
	sub, err := g.finder.FindActive(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	limits := sub.Limits
	return &limits, nil
}
