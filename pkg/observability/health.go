package observability

import (
	"context"
	"database/sql"
	"sort"
	"time"
)

// HealthChecker reports on the database and any registered dependency checks
type HealthChecker struct {
	db     *sql.DB
	checks []namedCheck
	now    func() time.Time
}

type namedCheck struct {
	name     string
	critical bool
	fn       func(ctx context.Context) error
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB) *HealthChecker {
	return &HealthChecker{db: db, now: time.Now}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Register adds a named check. A failing critical check makes the overall
// status unhealthy; any other failure only degrades it.
func (h *HealthChecker) Register(name string, critical bool, fn func(ctx context.Context) error) {
	h.checks = append(h.checks, namedCheck{name: name, critical: critical, fn: fn})
}

// Check performs a comprehensive health check
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    h.now(),
		Dependencies: make(map[string]DependencyStatus),
	}

	if h.db != nil {
		dbStatus := h.checkDatabase(ctx)
		status.Dependencies["database"] = dbStatus
		status.Status = worst(status.Status, dbStatus.Status)
		if dbStatus.Status == StatusUnhealthy {
			return status
		}
	}

	for _, c := range h.checks {
		dep := h.run(ctx, c)
		status.Dependencies[c.name] = dep
		status.Status = worst(status.Status, dep.Status)
	}

	return status
}

// Names lists the dependencies Check reports on, in a stable order
func (s HealthStatus) Names() []string {
	names := make([]string, 0, len(s.Dependencies))
	for name := range s.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *HealthChecker) run(ctx context.Context, c namedCheck) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{Status: StatusHealthy, Timestamp: h.now()}

	err := c.fn(ctx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Status = StatusDegraded
		if c.critical {
			status.Status = StatusUnhealthy
		}
		status.Message = err.Error()
	}
	return status
}

// checkDatabase pings the pool and runs a trivial query
func (h *HealthChecker) checkDatabase(ctx context.Context) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: h.now(),
	}

	err := h.db.PingContext(ctx)
	status.Latency = time.Since(start)

	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
		return status
	}

	var one int
	err = h.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = "query failed: " + err.Error()
		return status
	}

	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		status.Status = StatusDegraded
		status.Message = "connection pool exhausted"
	}

	return status
}

func worst(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
