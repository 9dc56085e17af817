package auth

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var casbinModelContent string

// RoleEnforcer holds the endpoint grants of loaded roles. A grant is a
// (role, "METHOD:uri") policy; anything not granted is denied.
type RoleEnforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer creates a RoleEnforcer with an empty in-memory policy.
func NewEnforcer() (*RoleEnforcer, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	return &RoleEnforcer{enforcer: enforcer}, nil
}

// Grant adds the allowed keys of permissions for role.
func (e *RoleEnforcer) Grant(role string, permissions map[string]bool) error {
	var rules [][]string
	for key, allowed := range permissions {
		if allowed {
			rules = append(rules, []string{role, key})
		}
	}
	if len(rules) == 0 {
		return nil
	}
	if _, err := e.enforcer.AddPolicies(rules); err != nil {
		return fmt.Errorf("grant policies for role %s: %w", role, err)
	}
	return nil
}

// Revoke removes every grant of role.
func (e *RoleEnforcer) Revoke(role string) error {
	if _, err := e.enforcer.RemoveFilteredPolicy(0, role); err != nil {
		return fmt.Errorf("revoke policies for role %s: %w", role, err)
	}
	return nil
}

// Allowed reports whether role has been granted key.
func (e *RoleEnforcer) Allowed(role, key string) (bool, error) {
	ok, err := e.enforcer.Enforce(role, key)
	if err != nil {
		return false, fmt.Errorf("enforce %s for role %s: %w", key, role, err)
	}
	return ok, nil
}

// Grants lists the keys granted to role, sorted.
func (e *RoleEnforcer) Grants(role string) ([]string, error) {
	policies, err := e.enforcer.GetFilteredPolicy(0, role)
	if err != nil {
		return nil, fmt.Errorf("list policies for role %s: %w", role, err)
	}
	keys := make([]string, 0, len(policies))
	for _, p := range policies {
		keys = append(keys, p[1])
	}
	sort.Strings(keys)
	return keys, nil
}
