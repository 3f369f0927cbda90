package seed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/crmguard/pkg/billing"
	"github.com/platinummonkey/crmguard/pkg/observability"
	"github.com/platinummonkey/crmguard/pkg/rbac"
)

// Result counts what Apply changed
type Result struct {
	ModulesCreated int `json:"modules_created"`
	RolesCreated   int `json:"roles_created"`
	GrantsWritten  int `json:"grants_written"`
	PlansCreated   int `json:"plans_created"`
	PlansUpdated   int `json:"plans_updated"`
}

// Seeder applies a catalogue to the store
type Seeder struct {
	roles  *rbac.Store
	plans  *billing.Store
	logger *observability.Logger
}

// NewSeeder creates a seeder. A nil logger discards output.
func NewSeeder(roles *rbac.Store, plans *billing.Store, logger *observability.Logger) *Seeder {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Seeder{roles: roles, plans: plans, logger: logger}
}

// Apply creates missing modules, platform roles and plans, and overwrites the
// grants and plan fields named in the catalogue. Applying the same catalogue
// twice leaves the store unchanged.
func (s *Seeder) Apply(ctx context.Context, c *Catalogue) (*Result, error) {
	result := &Result{}

	for _, name := range c.Modules {
		created, err := s.ensureModule(ctx, strings.TrimSpace(name))
		if err != nil {
			return result, err
		}
		if created {
			result.ModulesCreated++
		}
	}

	existing, err := s.roles.ListPlatformRoles(ctx)
	if err != nil {
		return result, err
	}
	byName := make(map[string]*rbac.Role, len(existing))
	for _, role := range existing {
		byName[role.Name] = role
	}

	for _, spec := range c.PlatformRoles {
		name := strings.TrimSpace(spec.Name)
		role, ok := byName[name]
		if !ok {
			role, err = s.roles.CreatePlatformRole(ctx, name)
			if err != nil {
				return result, fmt.Errorf("failed to seed role %q: %w", name, err)
			}
			byName[name] = role
			result.RolesCreated++
			s.logger.WithField("role", name).Info("created platform role")
		}

		written, err := s.applyGrants(ctx, role, spec.Grants)
		result.GrantsWritten += written
		if err != nil {
			return result, err
		}
	}

	if err := s.applyPlans(ctx, c.Plans, result); err != nil {
		return result, err
	}

	s.logger.WithFields(map[string]interface{}{
		"modules_created": result.ModulesCreated,
		"roles_created":   result.RolesCreated,
		"grants_written":  result.GrantsWritten,
		"plans_created":   result.PlansCreated,
		"plans_updated":   result.PlansUpdated,
	}).Info("seed catalogue applied")

	return result, nil
}

func (s *Seeder) ensureModule(ctx context.Context, name string) (bool, error) {
	_, err := s.roles.GetModuleByName(ctx, name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, rbac.ErrModuleNotFound) {
		return false, err
	}

	if _, err := s.roles.CreateModule(ctx, name); err != nil {
		return false, fmt.Errorf("failed to seed module %q: %w", name, err)
	}
	s.logger.WithField("module", name).Info("created module")
	return true, nil
}

// applyGrants writes grants in module name order so runs are deterministic
func (s *Seeder) applyGrants(ctx context.Context, role *rbac.Role, grants map[string]rbac.Flags) (int, error) {
	modules := make([]string, 0, len(grants))
	for name := range grants {
		modules = append(modules, name)
	}
	sort.Strings(modules)

	written := 0
	for _, name := range modules {
		module, err := s.roles.GetModuleByName(ctx, name)
		if errors.Is(err, rbac.ErrModuleNotFound) {
			return written, fmt.Errorf("role %q grants unknown module %q", role.Name, name)
		}
		if err != nil {
			return written, err
		}

		if _, err := s.roles.Permissions().Upsert(ctx, role.ID, module.ID, grants[name]); err != nil {
			return written, fmt.Errorf("failed to seed grant %s/%s: %w", role.Name, name, err)
		}
		written++
	}
	return written, nil
}

func (s *Seeder) applyPlans(ctx context.Context, plans []billing.PlanInput, result *Result) error {
	if len(plans) == 0 {
		return nil
	}

	existing, err := s.plans.ListPlans(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]*billing.Plan, len(existing))
	for _, plan := range existing {
		byName[plan.Name] = plan
	}

	for _, input := range plans {
		input.Name = strings.TrimSpace(input.Name)
		current, ok := byName[input.Name]
		if !ok {
			if _, err := s.plans.CreatePlan(ctx, input); err != nil {
				return fmt.Errorf("failed to seed plan %q: %w", input.Name, err)
			}
			result.PlansCreated++
			continue
		}

		if samePlan(current, input) {
			continue
		}
		if _, err := s.plans.UpdatePlan(ctx, current.ID, input); err != nil {
			return fmt.Errorf("failed to update plan %q: %w", input.Name, err)
		}
		result.PlansUpdated++
	}
	return nil
}

func samePlan(p *billing.Plan, in billing.PlanInput) bool {
	return p.PriceMonthlyCents == in.PriceMonthlyCents &&
		p.PriceYearlyCents == in.PriceYearlyCents &&
		p.MaxUsers == in.MaxUsers &&
		p.MaxProperties == in.MaxProperties
}
