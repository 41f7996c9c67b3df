package model

import (
	"fmt"
	"sort"
)

// ConfigError reports an internally inconsistent roles configuration.
// It is raised at construction time and is not recoverable.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "roles config: " + e.Reason
}

// RolesConfig is the static role taxonomy for a coordinated deployment:
// which worker roles exist, which aliases expand to sets of roles, and what
// a minimal and a recommended deployment look like.
type RolesConfig struct {
	// Roles is the full set of concrete worker roles.
	Roles []string `json:"roles" yaml:"roles"`
	// MetaRoles maps an alias to the set of roles it expands to.
	MetaRoles map[string][]string `json:"meta_roles" yaml:"meta_roles"`
	// MinimalDeployment lists the roles that must be covered for the
	// cluster to be coherent.
	MinimalDeployment []string `json:"minimal_deployment" yaml:"minimal_deployment"`
	// RecommendedDeployment maps a role to the minimum worker count of a
	// recommended deployment. Empty means no recommended criterion.
	RecommendedDeployment map[string]int `json:"recommended_deployment" yaml:"recommended_deployment"`
}

// Validate checks that every role referenced by meta-roles, the minimal
// deployment and the recommended deployment is a declared role. It must run
// once at startup, before anything else reads the config.
func (c *RolesConfig) Validate() error {
	roles := make(map[string]bool, len(c.Roles))
	for _, r := range c.Roles {
		roles[r] = true
	}

	for alias, members := range c.MetaRoles {
		if !roles[alias] {
			return &ConfigError{Reason: fmt.Sprintf("meta-role %q is not a declared role", alias)}
		}
		for _, m := range members {
			if !roles[m] {
				return &ConfigError{Reason: fmt.Sprintf("meta-role %q member %q is not a declared role", alias, m)}
			}
		}
	}
	for _, r := range c.MinimalDeployment {
		if !roles[r] {
			return &ConfigError{Reason: fmt.Sprintf("minimal deployment role %q is not a declared role", r)}
		}
	}
	for r := range c.RecommendedDeployment {
		if !roles[r] {
			return &ConfigError{Reason: fmt.Sprintf("recommended deployment role %q is not a declared role", r)}
		}
	}
	return nil
}

// ExpandRoles resolves a set of declared roles against the meta-role table.
// A meta-role alias is replaced by its expansion set and does not count as a
// role itself; any other name passes through unchanged. The result is sorted
// and duplicate-free.
func (c *RolesConfig) ExpandRoles(declared []string) []string {
	out := make(map[string]bool)
	for _, r := range declared {
		if members, ok := c.MetaRoles[r]; ok {
			for _, m := range members {
				out[m] = true
			}
			continue
		}
		out[r] = true
	}

	expanded := make([]string, 0, len(out))
	for r := range out {
		expanded = append(expanded, r)
	}
	sort.Strings(expanded)
	return expanded
}
