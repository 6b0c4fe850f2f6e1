package auth

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role is the portal role class. It is a closed set: switch statements over
// Role list every constant explicitly so a new role cannot slip past the
// policy unnoticed.
type Role uint8

const (
	// RoleAdmin is the platform operator. Admins carry no tenant binding
	// and are exempt from tenant scoping.
	RoleAdmin Role = iota
	// RoleClientOwner manages a single tenant and everything inside it.
	RoleClientOwner
	// RoleUser is an end-user scoped to a tenant and to its own records.
	RoleUser
)

const (
	roleAdminName       = "admin"
	roleClientOwnerName = "client_owner"
	roleUserName        = "user"
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return roleAdminName
	case RoleClientOwner:
		return roleClientOwnerName
	case RoleUser:
		return roleUserName
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole maps a wire name onto a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case roleAdminName:
		return RoleAdmin, nil
	case roleClientOwnerName:
		return RoleClientOwner, nil
	case roleUserName:
		return RoleUser, nil
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// MarshalJSON encodes the role as its wire name.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes the role from its wire name.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Tenant statuses.
const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)

// Tenant is a client organization. Every client_owner and user identity is
// scoped under exactly one tenant.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the tenant may be acted upon.
func (t Tenant) Active() bool { return t.Status == TenantStatusActive }

// User is a credential record as persisted in the store. TokenSeq is the
// per-account sequence number embedded in every issued token; bumping it
// invalidates all previously issued tokens for the account.
type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id,omitempty"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	TokenSeq     int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the verified caller as seen by the rest of the application.
// It is immutable for the lifetime of a session; refresh rebuilds it from
// the store so role or tenant changes take effect within one refresh cycle.
type Identity struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	Role         Role   `json:"role"`
	TenantID     string `json:"tenant_id,omitempty"`
	TenantActive bool   `json:"tenant_active"`
}

// TokenPair is the issued credential set for one session.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// RefreshTokenRecord is the server-side row backing one refresh token.
// The token itself is a signed JWT; the record exists so rotation can
// consume it exactly once.
type RefreshTokenRecord struct {
	ID        string    `json:"id"` // jti of the refresh token
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `json:"revoked"`
}

// ResourceRef describes a protected entity for authorization purposes.
// The payload behind the reference is opaque to this package.
type ResourceRef struct {
	TenantID string
	// OwnerID is the user that owns the entity, empty for tenant-level
	// entities that have no per-user owner.
	OwnerID string
	// Addressees are additional users the entity is directed at, e.g. the
	// recipient of a message. An addressee has the same reach as the owner.
	Addressees []string
}

// Action is the kind of access requested against a resource.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)
