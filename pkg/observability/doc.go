// Package observability provides structured logging and Prometheus metrics for crmguard.
//
// Logger is a JSON logger over log/slog with field helpers and request-scoped
// context propagation:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).WithField("module", "leads").Debug("permission denied")
//
// Metrics counts access decisions per component and reason, observes decision
// latency and counts audit entries. A nil *Metrics records nothing.
//
// HealthChecker pings the database and runs registered dependency checks,
// folding them into one healthy, degraded or unhealthy status.
package observability
