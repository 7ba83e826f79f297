// Package auth implements the gateway's token verifier and the
// role-based authorization middleware layered on top of it.
package auth

import (
	"context"
	"time"
)

// Roles supported by the RBAC system, in ascending privilege order.
const (
	RolePublic   = "public"
	RoleCustomer = "customer"
	RoleVIP      = "vip"
	RoleAdmin    = "admin"
)

// roleLevel maps roles to a numeric privilege level for RequireMinRole.
var roleLevel = map[string]int{
	RolePublic:   10,
	RoleCustomer: 20,
	RoleVIP:      30,
	RoleAdmin:    40,
}

// ValidRoles lists all known roles in descending privilege order.
var ValidRoles = []string{RoleAdmin, RoleVIP, RoleCustomer, RolePublic}

// IsValidRole reports whether role is a recognised RBAC role.
func IsValidRole(role string) bool {
	_, ok := roleLevel[role]
	return ok
}

// Identity represents the authenticated caller for the current request, per
// the data model's Identity entity.
type Identity struct {
	Subject          string
	Role             string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	TokenFingerprint string
}

// Expired reports whether the identity's token has expired as of now.
func (id *Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.After(now)
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

// NewContext stores the identity in the context.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the context. Returns nil if no
// identity is set (i.e. the request hit a public route).
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}
