package domain

import (
	"context"
	"errors"
)

// Role represents a caller's access level
type Role string

const (
	// RoleCustomer owns accounts and submits requests against them
	RoleCustomer Role = "customer"

	// RoleManager decides on accounts and transactions of one bank
	RoleManager Role = "manager"
)

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return r == RoleCustomer || r == RoleManager
}

// Identity is the verified caller of an operation, supplied by the
// identity provider and carried in the request context.
type Identity struct {
	UserID string
	Role   Role
	BankID string
}

// IsManager reports whether the caller acts as a bank manager.
func (i Identity) IsManager() bool {
	return i.Role == RoleManager
}

// CanAccess reports whether the caller may see or act on the account.
func (i Identity) CanAccess(a *Account) bool {
	if i.IsManager() {
		return i.BankID == "" || i.BankID == a.BankID
	}
	return i.UserID == a.OwnerID
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)

type identityKey struct{}

// ContextWithIdentity returns a copy of ctx carrying the caller identity.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext extracts the caller identity set by the auth layer.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// ActorID returns the caller's user id, or "system" for background work.
func ActorID(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok && id.UserID != "" {
		return id.UserID
	}
	return "system"
}
