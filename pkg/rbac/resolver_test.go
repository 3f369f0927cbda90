package rbac

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crmguard/pkg/observability"
	"github.com/platinummonkey/crmguard/pkg/storage/storagetest"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

func TestResolver_Decide(t *testing.T) {
	db := storagetest.NewSQLiteDB(t)
	store := NewStore(db)
	ctx := context.Background()

	r1, err := store.CreatePlatformRole(ctx, "R1")
	require.NoError(t, err)
	leads, err := store.CreateModule(ctx, "leads")
	require.NoError(t, err)
	_, err = store.CreateModule(ctx, "deals")
	require.NoError(t, err)
	_, err = store.Permissions().Upsert(ctx, r1.ID, leads.ID, Flags{CanView: true, CanCreate: true})
	require.NoError(t, err)

	resolver := NewResolver(db)

	tests := []struct {
		name   string
		roleID int64
		module string
		action Action
		want   Decision
	}{
		{name: "granted", roleID: r1.ID, module: "leads", action: ActionView, want: Decision{Granted: true, Reason: ReasonGranted}},
		{name: "flag false", roleID: r1.ID, module: "leads", action: ActionEdit, want: Decision{Reason: ReasonFlagFalse}},
		{name: "no grant row", roleID: r1.ID, module: "deals", action: ActionView, want: Decision{Reason: ReasonNoGrant}},
		{name: "unknown module", roleID: r1.ID, module: "invoices", action: ActionView, want: Decision{Reason: ReasonUnknownModule}},
		{name: "unknown role", roleID: 999, module: "leads", action: ActionView, want: Decision{Reason: ReasonUnknownRole}},
		{name: "unknown role and module", roleID: 999, module: "invoices", action: ActionDelete, want: Decision{Reason: ReasonUnknownRole}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Decide(ctx, tt.roleID, tt.module, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			can, err := resolver.Can(ctx, tt.roleID, tt.module, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Granted, can)
		})
	}
}

func TestResolver_LeadsScenario(t *testing.T) {
	db := storagetest.NewSQLiteDB(t)
	store := NewStore(db)
	ctx := context.Background()

	r1, err := store.CreatePlatformRole(ctx, "R1")
	require.NoError(t, err)
	leads, err := store.CreateModule(ctx, "leads")
	require.NoError(t, err)
	_, err = store.Permissions().Upsert(ctx, r1.ID, leads.ID, Flags{CanView: true, CanCreate: true})
	require.NoError(t, err)

	resolver := NewResolver(db)

	canEdit, err := resolver.Can(ctx, r1.ID, "leads", ActionEdit)
	require.NoError(t, err)
	assert.False(t, canEdit)

	canView, err := resolver.Can(ctx, r1.ID, "leads", ActionView)
	require.NoError(t, err)
	assert.True(t, canView)
}

func TestResolver_MalformedInput(t *testing.T) {
	resolver := NewResolver(storagetest.NewSQLiteDB(t))
	ctx := context.Background()

	_, err := resolver.Decide(ctx, 0, "leads", ActionView)
	assert.ErrorIs(t, err, validation.ErrMalformed)

	_, err = resolver.Can(ctx, -1, "leads", ActionView)
	assert.ErrorIs(t, err, validation.ErrMalformed)

	_, err = resolver.Can(ctx, 1, "leads", Action("archive"))
	assert.ErrorIs(t, err, validation.ErrMalformed)
	assert.Contains(t, err.Error(), `unknown action "archive"`)
}

func TestResolver_StoreErrorPropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	resolver := NewResolver(db, WithResolverMetrics(metrics))

	unavailable := errors.New("connection refused")
	mock.ExpectQuery("SELECT rp.can_view").WithArgs(int64(1), "leads").WillReturnError(unavailable)

	granted, err := resolver.Can(context.Background(), 1, "leads", ActionView)
	assert.False(t, granted)
	assert.ErrorIs(t, err, unavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DecisionErrors.WithLabelValues(observability.ComponentResolver)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolver_DenialLoggedAndCounted(t *testing.T) {
	db := storagetest.NewSQLiteDB(t)
	store := NewStore(db)
	ctx := context.Background()

	role, err := store.CreatePlatformRole(ctx, "Viewer")
	require.NoError(t, err)

	var buf bytes.Buffer
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	resolver := NewResolver(db,
		WithResolverLogger(observability.NewLogger(observability.DebugLevel, &buf)),
		WithResolverMetrics(metrics),
	)

	granted, err := resolver.Can(ctx, role.ID, "leads", ActionView)
	require.NoError(t, err)
	assert.False(t, granted)

	assert.Contains(t, buf.String(), `"reason":"unknown_module"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		metrics.DecisionsTotal.WithLabelValues(observability.ComponentResolver, "denied", string(ReasonUnknownModule)),
	))
}
