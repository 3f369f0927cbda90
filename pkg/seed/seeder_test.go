package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crmguard/pkg/billing"
	"github.com/platinummonkey/crmguard/pkg/rbac"
	"github.com/platinummonkey/crmguard/pkg/storage/storagetest"
)

func newSeeder(t *testing.T) (*Seeder, *rbac.Store, *billing.Store) {
	t.Helper()
	db := storagetest.NewSQLiteDB(t)
	roles := rbac.NewStore(db)
	plans := billing.NewStore(db)
	return NewSeeder(roles, plans, nil), roles, plans
}

func TestSeeder_ApplyDefault(t *testing.T) {
	ctx := context.Background()
	seeder, roles, plans := newSeeder(t)

	c, err := Default()
	require.NoError(t, err)

	result, err := seeder.Apply(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, len(c.Modules), result.ModulesCreated)
	assert.Equal(t, len(c.PlatformRoles), result.RolesCreated)
	assert.Equal(t, len(c.Plans), result.PlansCreated)
	assert.Zero(t, result.PlansUpdated)

	grants := 0
	for _, role := range c.PlatformRoles {
		grants += len(role.Grants)
	}
	assert.Equal(t, grants, result.GrantsWritten)

	platform, err := roles.ListPlatformRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, platform, len(c.PlatformRoles))

	stored, err := plans.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, len(c.Plans))
}

func TestSeeder_ApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	seeder, roles, plans := newSeeder(t)

	c, err := Default()
	require.NoError(t, err)

	_, err = seeder.Apply(ctx, c)
	require.NoError(t, err)

	result, err := seeder.Apply(ctx, c)
	require.NoError(t, err)
	assert.Zero(t, result.ModulesCreated)
	assert.Zero(t, result.RolesCreated)
	assert.Zero(t, result.PlansCreated)
	assert.Zero(t, result.PlansUpdated)

	modules, err := roles.ListModules(ctx)
	require.NoError(t, err)
	assert.Len(t, modules, len(c.Modules))

	platform, err := roles.ListPlatformRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, platform, len(c.PlatformRoles))

	stored, err := plans.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, len(c.Plans))
}

func TestSeeder_ApplyOverwritesGrantsAndPlans(t *testing.T) {
	ctx := context.Background()
	seeder, roles, plans := newSeeder(t)

	first, err := Parse([]byte(`
modules: [leads]
platform_roles:
  - name: Agent
    grants:
      leads: {view: true, create: true, edit: true, delete: true}
plans:
  - {name: Solo, price_monthly_cents: 500, price_yearly_cents: 5000, max_users: 1, max_properties: 10}
`))
	require.NoError(t, err)
	_, err = seeder.Apply(ctx, first)
	require.NoError(t, err)

	second, err := Parse([]byte(`
platform_roles:
  - name: Agent
    grants:
      leads: {view: true}
plans:
  - {name: Solo, price_monthly_cents: 700, price_yearly_cents: 7000, max_users: 2, max_properties: 10}
`))
	require.NoError(t, err)
	result, err := seeder.Apply(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PlansUpdated)
	assert.Equal(t, 1, result.GrantsWritten)

	platform, err := roles.ListPlatformRoles(ctx)
	require.NoError(t, err)
	require.Len(t, platform, 1)

	can, err := roles.Permissions().Can(ctx, platform[0].ID, "leads", rbac.ActionDelete)
	require.NoError(t, err)
	assert.False(t, can)
	can, err = roles.Permissions().Can(ctx, platform[0].ID, "leads", rbac.ActionView)
	require.NoError(t, err)
	assert.True(t, can)

	stored, err := plans.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(700), stored[0].PriceMonthlyCents)
	assert.Equal(t, 2, stored[0].MaxUsers)
}

func TestSeeder_ApplyUnknownModuleGrant(t *testing.T) {
	ctx := context.Background()
	seeder, _, _ := newSeeder(t)

	c, err := Parse([]byte(`
platform_roles:
  - name: Agent
    grants:
      invoices: {view: true}
`))
	require.NoError(t, err)

	_, err = seeder.Apply(ctx, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `role "Agent" grants unknown module "invoices"`)
}

func TestSeeder_ApplyInvalidPlan(t *testing.T) {
	ctx := context.Background()
	seeder, _, _ := newSeeder(t)

	c, err := Parse([]byte(`
plans:
  - {name: Broken, price_monthly_cents: 100, price_yearly_cents: 1000, max_users: 0, max_properties: 1}
`))
	require.NoError(t, err)

	_, err = seeder.Apply(ctx, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Max users must be greater than 0")
}
