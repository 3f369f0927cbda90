package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestHealthChecker_NoDependencies(t *testing.T) {
	checker := NewHealthChecker(nil)

	status := checker.Check(context.Background())
	if status.Status != StatusHealthy {
		t.Errorf("Expected status %s, got %s", StatusHealthy, status.Status)
	}
	if len(status.Dependencies) != 0 {
		t.Errorf("Expected no dependencies, got %d", len(status.Dependencies))
	}
	if status.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestHealthChecker_Database(t *testing.T) {
	t.Run("healthy database", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create mock db: %v", err)
		}
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		status := NewHealthChecker(db).Check(context.Background())
		if status.Status != StatusHealthy {
			t.Errorf("Expected status %s, got %s", StatusHealthy, status.Status)
		}
		if status.Dependencies["database"].Status != StatusHealthy {
			t.Errorf("Expected database healthy, got %+v", status.Dependencies["database"])
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unfulfilled expectations: %v", err)
		}
	})

	t.Run("ping failure", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create mock db: %v", err)
		}
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection failed"))

		checker := NewHealthChecker(db)
		called := false
		checker.Register("schema", true, func(ctx context.Context) error {
			called = true
			return nil
		})

		status := checker.Check(context.Background())
		if status.Status != StatusUnhealthy {
			t.Errorf("Expected status %s, got %s", StatusUnhealthy, status.Status)
		}
		if got := status.Dependencies["database"].Message; got != "connection failed" {
			t.Errorf("Expected ping error message, got %q", got)
		}
		if called {
			t.Error("Expected registered checks to be skipped when the database is down")
		}
	})

	t.Run("query failure", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("Failed to create mock db: %v", err)
		}
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("boom"))

		status := NewHealthChecker(db).Check(context.Background())
		if status.Status != StatusUnhealthy {
			t.Errorf("Expected status %s, got %s", StatusUnhealthy, status.Status)
		}
		if got := status.Dependencies["database"].Message; got != "query failed: boom" {
			t.Errorf("Unexpected message %q", got)
		}
	})
}

func TestHealthChecker_RegisteredChecks(t *testing.T) {
	tests := []struct {
		name     string
		critical bool
		err      error
		want     string
	}{
		{"passing check", true, nil, StatusHealthy},
		{"failing optional check", false, errors.New("stale"), StatusDegraded},
		{"failing critical check", true, errors.New("missing"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker(nil)
			checker.Register("schema", tt.critical, func(ctx context.Context) error { return tt.err })

			status := checker.Check(context.Background())
			if status.Status != tt.want {
				t.Errorf("Expected status %s, got %s", tt.want, status.Status)
			}
			dep := status.Dependencies["schema"]
			if dep.Status != tt.want {
				t.Errorf("Expected schema status %s, got %s", tt.want, dep.Status)
			}
			if tt.err != nil && dep.Message != tt.err.Error() {
				t.Errorf("Expected message %q, got %q", tt.err.Error(), dep.Message)
			}
		})
	}
}

func TestHealthStatus_Names(t *testing.T) {
	checker := NewHealthChecker(nil)
	checker.Register("schema", true, func(ctx context.Context) error { return nil })
	checker.Register("catalogue", false, func(ctx context.Context) error { return nil })

	names := checker.Check(context.Background()).Names()
	if len(names) != 2 || names[0] != "catalogue" || names[1] != "schema" {
		t.Errorf("Unexpected names %v", names)
	}
}
