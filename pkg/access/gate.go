package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/crmguard/pkg/billing"
	"github.com/platinummonkey/crmguard/pkg/observability"
	"github.com/platinummonkey/crmguard/pkg/rbac"
	"github.com/platinummonkey/crmguard/pkg/users"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

var tracer = otel.Tracer("crmguard/access")

// Reason explains a gate decision. It is meant for logs and tests, never for
// the requester.
type Reason string

const (
	ReasonSuperAdmin        Reason = "super_admin"
	ReasonInactivePrincipal Reason = "inactive_principal"
	ReasonCrossTenant       Reason = "cross_tenant"
	ReasonWorkspaceInactive Reason = "workspace_inactive"
	ReasonNotEntitled       Reason = "not_entitled"
)

// Principal is the authenticated caller as supplied by the identity layer
type Principal struct {
	UserID       int64
	RoleID       int64
	WorkspaceID  *int64
	IsSuperAdmin bool
	IsActive     bool
}

// PrincipalFromUser builds a Principal from an identity record
func PrincipalFromUser(u *users.User) Principal {
	return Principal{
		UserID:       u.ID,
		RoleID:       u.RoleID,
		WorkspaceID:  u.WorkspaceID,
		IsSuperAdmin: u.IsSuperAdmin,
		IsActive:     u.IsActive,
	}
}

// Request is one inbound action against a workspace
type Request struct {
	Principal   Principal
	WorkspaceID int64
	Module      string
	Action      rbac.Action
}

// Decision is the outcome of Authorize
type Decision struct {
	Allowed bool
	Reason  Reason
}

// PermissionDecider resolves role grants
type PermissionDecider interface {
	Decide(ctx context.Context, roleID int64, moduleName string, action rbac.Action) (rbac.Decision, error)
}

// EntitlementDecider resolves workspace entitlement
type EntitlementDecider interface {
	Decide(ctx context.Context, workspaceID int64) (billing.Entitlement, error)
}

// WorkspaceChecker reports whether a workspace is active
type WorkspaceChecker interface {
	IsActive(ctx context.Context, workspaceID int64) (bool, error)
}

// Gate runs the checks every workspace action must pass, in order: the
// principal is active and belongs to the workspace, the workspace is active
// and entitled, and the principal's role grants the action. Super-admins skip
// only the last step.
type Gate struct {
	permissions  PermissionDecider
	entitlements EntitlementDecider
	workspaces   WorkspaceChecker
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// Option configures a Gate
type Option func(*Gate)

// WithLogger sets the logger used for denied decisions
func WithLogger(logger *observability.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the collectors decisions are counted in
func WithMetrics(metrics *observability.Metrics) Option {
	return func(g *Gate) {
		g.metrics = metrics
	}
}

// NewGate creates an access gate
func NewGate(permissions PermissionDecider, entitlements EntitlementDecider, workspaces WorkspaceChecker, opts ...Option) *Gate {
	g := &Gate{
		permissions:  permissions,
		entitlements: entitlements,
		workspaces:   workspaces,
		logger:       observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allowed collapses Authorize to a boolean
func (g *Gate) Allowed(ctx context.Context, req Request) (bool, error) {
	d, err := g.Authorize(ctx, req)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Authorize decides whether req may proceed. Errors are returned for malformed
// requests and store failures only; every other outcome is a Decision.
func (g *Gate) Authorize(ctx context.Context, req Request) (Decision, error) {
	requestID := observability.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = observability.WithRequestID(ctx, requestID)
	}

	ctx, span := tracer.Start(ctx, "Gate.Authorize",
		trace.WithAttributes(
			attribute.String("request_id", requestID),
			attribute.Int64("user_id", req.Principal.UserID),
			attribute.Int64("workspace_id", req.WorkspaceID),
			attribute.String("module", req.Module),
			attribute.String("action", string(req.Action)),
		),
	)
	defer span.End()

	start := time.Now()
	decision, err := g.authorize(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization failed")
		g.metrics.RecordDecisionError(observability.ComponentGate)
		return Decision{}, err
	}

	span.SetAttributes(
		attribute.Bool("allowed", decision.Allowed),
		attribute.String("reason", string(decision.Reason)),
	)
	g.metrics.RecordDecision(observability.ComponentGate, decision.Allowed, string(decision.Reason), time.Since(start))

	if !decision.Allowed {
		observability.WithTraceContext(ctx, g.logger).WithFields(map[string]interface{}{
			"request_id":   requestID,
			"user_id":      req.Principal.UserID,
			"workspace_id": req.WorkspaceID,
			"module":       req.Module,
			"action":       string(req.Action),
			"reason":       string(decision.Reason),
		}).Info("access denied")
	}

	return decision, nil
}

func checkRequest(req Request) error {
	if req.WorkspaceID <= 0 {
		return validation.Malformed("workspace id is required")
	}
	if strings.TrimSpace(req.Module) == "" {
		return validation.Malformed("module is required")
	}
	if !req.Action.Valid() {
		return validation.Malformed("unknown action %q", req.Action)
	}
	if !req.Principal.IsSuperAdmin && req.Principal.RoleID <= 0 {
		return validation.Malformed("role id is required")
	}
	return nil
}

func (g *Gate) authorize(ctx context.Context, req Request) (Decision, error) {
	if err := checkRequest(req); err != nil {
		return Decision{}, err
	}

	p := req.Principal
	if !p.IsActive {
		return Decision{Reason: ReasonInactivePrincipal}, nil
	}
	if p.WorkspaceID != nil && *p.WorkspaceID != req.WorkspaceID {
		return Decision{Reason: ReasonCrossTenant}, nil
	}

	var (
		active      bool
		entitlement billing.Entitlement
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		active, err = g.workspaces.IsActive(egCtx, req.WorkspaceID)
		if err != nil {
			return fmt.Errorf("failed to check workspace: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		entitlement, err = g.entitlements.Decide(egCtx, req.WorkspaceID)
		if err != nil {
			return fmt.Errorf("failed to check entitlement: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return Decision{}, err
	}

	if !active {
		return Decision{Reason: ReasonWorkspaceInactive}, nil
	}
	if !entitlement.Entitled {
		return Decision{Reason: ReasonNotEntitled}, nil
	}

	if p.IsSuperAdmin {
		return Decision{Allowed: true, Reason: ReasonSuperAdmin}, nil
	}

	perm, err := g.permissions.Decide(ctx, p.RoleID, req.Module, req.Action)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: perm.Granted, Reason: Reason(perm.Reason)}, nil
}
