package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/crmguard/pkg/observability"
	"github.com/platinummonkey/crmguard/pkg/storage"
)

var resolverTracer = otel.Tracer("crmguard/rbac")

// Resolver answers "can role R do action A on module M". It is a pure read with
// no cache: every call consults the store.
type Resolver struct {
	db          *sql.DB
	permissions *PermissionStore
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger used for denied decisions
func WithResolverLogger(logger *observability.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverMetrics sets the collectors decisions are counted in
func WithResolverMetrics(metrics *observability.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// NewResolver creates a new permission resolver
func NewResolver(db *sql.DB, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		db:          db,
		permissions: NewPermissionStore(db),
		logger:      observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Can reports whether roleID may perform action on moduleName. It is false for
// unknown roles, unknown modules, missing grant rows and unset flags.
func (r *Resolver) Can(ctx context.Context, roleID int64, moduleName string, action Action) (bool, error) {
	decision, err := r.Decide(ctx, roleID, moduleName, action)
	if err != nil {
		return false, err
	}
	return decision.Granted, nil
}

// Decide evaluates a permission and reports why it was granted or denied.
// Errors are returned only for malformed input and store failures.
func (r *Resolver) Decide(ctx context.Context, roleID int64, moduleName string, action Action) (Decision, error) {
	ctx, span := resolverTracer.Start(ctx, "Resolver.Decide",
		trace.WithAttributes(
			attribute.Int64("role_id", roleID),
			attribute.String("module", moduleName),
			attribute.String("action", string(action)),
		),
	)
	defer span.End()

	start := time.Now()
	decision, err := r.decide(ctx, roleID, moduleName, action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "permission check failed")
		r.metrics.RecordDecisionError(observability.ComponentResolver)
		return Decision{}, err
	}

	span.SetAttributes(
		attribute.Bool("granted", decision.Granted),
		attribute.String("reason", string(decision.Reason)),
	)
	r.metrics.RecordDecision(observability.ComponentResolver, decision.Granted, string(decision.Reason), time.Since(start))

	if !decision.Granted {
		observability.WithTraceContext(ctx, r.logger).WithFields(map[string]interface{}{
			"role_id": roleID,
			"module":  moduleName,
			"action":  string(action),
			"reason":  string(decision.Reason),
		}).Debug("permission denied")
	}

	return decision, nil
}

func (r *Resolver) decide(ctx context.Context, roleID int64, moduleName string, action Action) (Decision, error) {
	if err := checkRequest(roleID, action); err != nil {
		return Decision{}, err
	}

	flags, found, err := r.permissions.lookup(ctx, roleID, moduleName)
	if err != nil {
		return Decision{}, err
	}
	if found {
		if flags.Allows(action) {
			return granted(), nil
		}
		return denied(ReasonFlagFalse), nil
	}

	// No grant row: find out which part of the triple was missing.
	roleExists, err := r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID)
	if err != nil {
		return Decision{}, err
	}
	if !roleExists {
		return denied(ReasonUnknownRole), nil
	}

	moduleExists, err := r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM modules WHERE name = $1)`, moduleName)
	if err != nil {
		return Decision{}, err
	}
	if !moduleExists {
		return denied(ReasonUnknownModule), nil
	}

	return denied(ReasonNoGrant), nil
}

func (r *Resolver) exists(ctx context.Context, query string, arg interface{}) (bool, error) {
	var found storage.Flag
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to resolve permission: %w", err)
	}
	return found.Bool(), nil
}
