package rbac

import (
	"context"
	"fmt"
	"testing"

	"github.com/platinummonkey/crmguard/pkg/storage/storagetest"
)

func benchmarkResolver(b *testing.B, modules int) (*Resolver, int64) {
	b.Helper()
	db := storagetest.NewSQLiteDB(b)
	store := NewStore(db)
	ctx := context.Background()

	role, err := store.CreatePlatformRole(ctx, "Agent")
	if err != nil {
		b.Fatalf("Failed to create role: %v", err)
	}
	for i := 0; i < modules; i++ {
		m, err := store.CreateModule(ctx, fmt.Sprintf("module-%d", i))
		if err != nil {
			b.Fatalf("Failed to create module: %v", err)
		}
		if _, err := store.Permissions().Upsert(ctx, role.ID, m.ID, Flags{CanView: true}); err != nil {
			b.Fatalf("Failed to grant module: %v", err)
		}
	}
	return NewResolver(db), role.ID
}

// BenchmarkResolverDecide measures a granted lookup against a populated matrix
func BenchmarkResolverDecide(b *testing.B) {
	resolver, roleID := benchmarkResolver(b, 50)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d, err := resolver.Decide(ctx, roleID, "module-25", ActionView)
		if err != nil {
			b.Fatalf("Decide failed: %v", err)
		}
		if !d.Granted {
			b.Fatalf("Expected grant, got %s", d.Reason)
		}
	}
}

// BenchmarkResolverDecideDenied measures the slower unknown-module path
func BenchmarkResolverDecideDenied(b *testing.B) {
	resolver, roleID := benchmarkResolver(b, 50)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := resolver.Decide(ctx, roleID, "invoices", ActionView); err != nil {
			b.Fatalf("Decide failed: %v", err)
		}
	}
}
