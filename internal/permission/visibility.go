package permission

import (
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/zap"
)

// Capability is a directory-level claim controlling which tickets an actor
// may list or read regardless of participation.
type Capability string

const (
	CapabilityViewAll          Capability = "view_all"
	CapabilityViewSubordinates Capability = "view_subordinates"
	CapabilityViewAssigned     Capability = "view_assigned"
	// CapabilityViewOwn is the fallback: only tickets the actor created.
	CapabilityViewOwn Capability = "view_own"
)

const ticketsResource = "tickets"

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// DefaultPolicies maps lower-cased directory role names to capabilities.
var DefaultPolicies = [][]string{
	{"admin", ticketsResource, string(CapabilityViewAll)},
	{"administrator", ticketsResource, string(CapabilityViewAll)},
	{"manager", ticketsResource, string(CapabilityViewSubordinates)},
	{"technician", ticketsResource, string(CapabilityViewAssigned)},
}

// roleKeywords maps fragments of directory role names onto the policy role
// they stand for. They are tried in order, and only when the role name has no
// policy of its own, so "IT Administrator" and "Gerente de TI" resolve through
// "admin" and "manager" while an explicit policy for them still wins.
var roleKeywords = []struct {
	fragment string
	role     string
}{
	{"admin", "admin"},
	{"gerente", "manager"},
	{"manager", "manager"},
	{"técnic", "technician"},
	{"tecnic", "technician"},
	{"technic", "technician"},
}

// precedence lists capabilities from broadest to narrowest.
var precedence = []Capability{CapabilityViewAll, CapabilityViewSubordinates, CapabilityViewAssigned}

// CapabilityResolver resolves the broadest ticket visibility capability of a role.
type CapabilityResolver struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	logger   *zap.Logger
}

// NewCapabilityResolver builds a resolver. When policyPath is empty the
// built-in DefaultPolicies are loaded; otherwise the CSV policy file is used.
func NewCapabilityResolver(policyPath string, logger *zap.Logger) (*CapabilityResolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load visibility model: %w", err)
	}

	var enforcer *casbin.Enforcer
	if policyPath != "" {
		enforcer, err = casbin.NewEnforcer(m, policyPath)
	} else {
		enforcer, err = casbin.NewEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("create visibility enforcer: %w", err)
	}

	if policyPath == "" {
		if _, err := enforcer.AddPolicies(DefaultPolicies); err != nil {
			return nil, fmt.Errorf("add default visibility policies: %w", err)
		}
	}
	logger.Info("visibility policy loaded", zap.String("source", policySource(policyPath)))
	return &CapabilityResolver{enforcer: enforcer, logger: logger}, nil
}

// Grant adds a capability to a role key.
func (r *CapabilityResolver) Grant(role string, capability Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.enforcer.AddPolicy(roleKey(role), ticketsResource, string(capability))
	return err
}

// Alias makes role inherit every capability of parent.
func (r *CapabilityResolver) Alias(role, parent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.enforcer.AddGroupingPolicy(roleKey(role), roleKey(parent))
	return err
}

// Resolve returns the broadest capability held by roleName. A role without
// a policy of its own is matched against roleKeywords. Unknown roles and
// enforcement errors fall back to CapabilityViewOwn.
func (r *CapabilityResolver) Resolve(roleName string) Capability {
	if r == nil {
		return CapabilityViewOwn
	}
	key := roleKey(roleName)
	if key == "" {
		return CapabilityViewOwn
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if capability, ok := r.enforce(key); ok {
		return capability
	}
	for _, kw := range roleKeywords {
		if kw.role != key && strings.Contains(key, kw.fragment) {
			if capability, ok := r.enforce(kw.role); ok {
				return capability
			}
		}
	}
	return CapabilityViewOwn
}

// enforce reports the broadest capability granted to key, if any.
func (r *CapabilityResolver) enforce(key string) (Capability, bool) {
	for _, capability := range precedence {
		ok, err := r.enforcer.Enforce(key, ticketsResource, string(capability))
		if err != nil {
			r.logger.Warn("visibility enforcement failed", zap.String("role", key), zap.Error(err))
			return CapabilityViewOwn, false
		}
		if ok {
			return capability, true
		}
	}
	return CapabilityViewOwn, false
}

func roleKey(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func policySource(path string) string {
	if path == "" {
		return "builtin"
	}
	return path
}
