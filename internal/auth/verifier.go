package auth

import (
	"context"
	"errors"
	"strings"
)

// Verifier checks submitted credentials against the store. The only
// failures it surfaces are ErrInvalidCredentials, ErrAccountDisabled and
// ErrUnavailable; unknown-email and wrong-password both map to
// ErrInvalidCredentials and cost the same amount of work, so the caller
// cannot enumerate accounts.
type Verifier struct {
	store Store
}

// NewVerifier constructs a Verifier bound to the store.
func NewVerifier(store Store) (*Verifier, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &Verifier{store: store}, nil
}

// Verify authenticates the email/password pair and returns the credential
// record plus the identity derived from the account's current role and
// tenant status.
func (v *Verifier) Verify(ctx context.Context, email, password string) (*User, Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") || password == "" {
		return nil, Identity{}, ErrInvalidCredentials
	}

	user, err := v.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn a hash comparison so this path is not cheaper than a
			// wrong password against a real account.
			_ = VerifyPassword(dummyHash, password)
			return nil, Identity{}, ErrInvalidCredentials
		}
		return nil, Identity{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, Identity{}, ErrInvalidCredentials
	}

	identity, err := v.identityFor(ctx, user)
	if err != nil {
		return nil, Identity{}, err
	}
	if user.Role != RoleAdmin && !identity.TenantActive {
		return nil, Identity{}, ErrAccountDisabled
	}
	return user, identity, nil
}

// IdentityFor rebuilds the identity for an already-known account from its
// current role and tenant status. Refresh uses this so role changes and
// tenant deactivation take effect within one refresh cycle.
func (v *Verifier) IdentityFor(ctx context.Context, userID string) (*User, Identity, error) {
	user, err := v.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return nil, Identity{}, err
	}
	identity, err := v.identityFor(ctx, user)
	if err != nil {
		return nil, Identity{}, err
	}
	return user, identity, nil
}

func (v *Verifier) identityFor(ctx context.Context, user *User) (Identity, error) {
	identity := Identity{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		TenantID:    user.TenantID,
	}
	if user.Role == RoleAdmin {
		// Admins carry no tenant binding.
		identity.TenantID = ""
		identity.TenantActive = true
		return identity, nil
	}
	tenant, err := v.store.Tenants(ctx).Find(ctx, user.TenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// A tenant-scoped account without a tenant is treated as
			// suspended rather than leaking store state to the caller.
			identity.TenantActive = false
			return identity, nil
		}
		return Identity{}, err
	}
	identity.TenantActive = tenant.Active()
	return identity, nil
}
