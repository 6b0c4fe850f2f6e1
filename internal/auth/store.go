package auth

import "context"

// Store describes persistence required by the session subsystem.
// Implementations must translate their native timeout/outage errors into
// ErrUnavailable so callers can distinguish retryable failures.
type Store interface {
	Tenants(ctx context.Context) TenantStore
	Users(ctx context.Context) UserStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
}

// TenantStore manages client organizations.
type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	Find(ctx context.Context, id string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	SetStatus(ctx context.Context, id, status string) error
}

// UserStore manages credential records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	// FindByEmail matches case-insensitively on the exact address.
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	// BumpTokenSeq atomically increments the account sequence number and
	// returns the new value. Every token issued before the bump becomes
	// invalid on its next validation.
	BumpTokenSeq(ctx context.Context, userID string) (int64, error)
}

// RefreshTokenStore manages the server-side refresh token records.
type RefreshTokenStore interface {
	Create(ctx context.Context, rec *RefreshTokenRecord) error
	Find(ctx context.Context, id string) (*RefreshTokenRecord, error)
	// Consume marks the record revoked if and only if it is still live.
	// An already-revoked record yields ErrTokenRevoked and a missing one
	// ErrNotFound, which is what makes rotation single-use under
	// concurrent refresh.
	Consume(ctx context.Context, id string) error
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
}
