package rbac

import (
	"errors"
	"sort"
	"strings"

	"github.com/constructa/propostas/internal/shared"
)

// ErrUnknownRole indicates a role outside the grant table.
var ErrUnknownRole = errors.New("rbac: unknown role")

// Service resolves permissions from the static role table.
type Service struct{}

// NewService constructs a Service.
func NewService() *Service {
	return &Service{}
}

// EffectivePermissions returns the sorted permissions granted to role.
func (s *Service) EffectivePermissions(role string) ([]string, error) {
	perms, ok := rolePermissions[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return nil, ErrUnknownRole
	}
	out := append([]string(nil), perms...)
	sort.Strings(out)
	return out, nil
}

// Can reports whether the principal holds perm.
func (s *Service) Can(p shared.Principal, perm string) bool {
	granted, err := s.EffectivePermissions(p.Role)
	if err != nil {
		return false
	}
	return hasAnyPermission(granted, []string{strings.ToLower(perm)})
}

// Matrix returns the role to permission table, used by clients to toggle UI.
func (s *Service) Matrix() map[string][]string {
	out := make(map[string][]string, len(rolePermissions))
	for _, role := range Roles() {
		out[role], _ = s.EffectivePermissions(role)
	}
	return out
}
