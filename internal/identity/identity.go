package identity

import (
	"context"
	"strings"

	"github.com/mauv0809/clubledger/internal/apperr"
)

type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleReferee Role = "Referee"
	RoleMember  Role = "Member"
)

// Principal is an authenticated caller as resolved by the gateway.
type Principal struct {
	MemberID string
	Roles    []Role
}

// Has reports whether the principal carries any of roles.
func (p Principal) Has(roles ...Role) bool {
	for _, have := range p.Roles {
		for _, want := range roles {
			if strings.EqualFold(string(have), string(want)) {
				return true
			}
		}
	}
	return false
}

// Require fails with apperr.ErrForbiddenRole unless the principal has one of roles.
func (p Principal) Require(roles ...Role) error {
	if p.Has(roles...) {
		return nil
	}
	return apperr.ErrForbiddenRole
}

// ParseRoles splits a comma separated role header.
func ParseRoles(header string) []Role {
	var roles []Role
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			roles = append(roles, Role(part))
		}
	}
	return roles
}

type contextKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok && p.MemberID != ""
}
