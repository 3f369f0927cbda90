package seed

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/crmguard/pkg/billing"
	"github.com/platinummonkey/crmguard/pkg/rbac"
	"github.com/platinummonkey/crmguard/pkg/validation"
)

//go:embed default.yaml
var defaultCatalogue []byte

// Catalogue is the platform-wide data every deployment starts with
type Catalogue struct {
	Modules       []string            `yaml:"modules"`
	PlatformRoles []RoleSpec          `yaml:"platform_roles"`
	Plans         []billing.PlanInput `yaml:"plans"`
}

// RoleSpec is a platform role and its grants keyed by module name
type RoleSpec struct {
	Name   string                `yaml:"name"`
	Grants map[string]rbac.Flags `yaml:"grants"`
}

// Default returns the built-in catalogue
func Default() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// Load reads and parses a catalogue file
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalogue and checks it for internal consistency
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse seed catalogue: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports duplicate or blank names. Grants may reference modules that
// already exist in the store, so they are checked when the catalogue is applied.
func (c *Catalogue) Validate() error {
	var v validation.Collector

	modules := make(map[string]bool, len(c.Modules))
	for i, name := range c.Modules {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			v.Addf("modules[%d]: name is required", i)
		case modules[name]:
			v.Addf("modules[%d]: duplicate module %q", i, name)
		}
		modules[name] = true
	}

	roles := make(map[string]bool, len(c.PlatformRoles))
	for i, role := range c.PlatformRoles {
		name := strings.TrimSpace(role.Name)
		switch {
		case name == "":
			v.Addf("platform_roles[%d]: name is required", i)
		case roles[name]:
			v.Addf("platform_roles[%d]: duplicate role %q", i, name)
		}
		roles[name] = true
	}

	plans := make(map[string]bool, len(c.Plans))
	for i, plan := range c.Plans {
		name := strings.TrimSpace(plan.Name)
		switch {
		case name == "":
			v.Addf("plans[%d]: name is required", i)
		case plans[name]:
			v.Addf("plans[%d]: duplicate plan %q", i, name)
		}
		plans[name] = true
	}

	return v.Err()
}
