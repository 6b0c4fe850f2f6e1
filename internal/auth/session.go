package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultRetryBackoff = 250 * time.Millisecond

// SessionService orchestrates login, refresh and logout. It owns the
// access/refresh pairing, rotation and sequence-number invalidation.
type SessionService struct {
	store    Store
	verifier *Verifier
	codec    *Codec
	now      func() time.Time

	// refreshGroup shares one in-flight rotation per refresh token so two
	// near-simultaneous refreshes of the same token cannot both rotate it.
	refreshGroup singleflight.Group
	retryBackoff time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithSessionClock overrides the time source (tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(s *SessionService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithRetryBackoff configures the pause before the single retry of a
// refresh that failed with ErrUnavailable.
func WithRetryBackoff(d time.Duration) SessionOption {
	return func(s *SessionService) {
		if d >= 0 {
			s.retryBackoff = d
		}
	}
}

// NewSessionService constructs the session manager.
func NewSessionService(store Store, codec *Codec, opts ...SessionOption) (*SessionService, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	verifier, err := NewVerifier(store)
	if err != nil {
		return nil, err
	}
	s := &SessionService{
		store:        store,
		verifier:     verifier,
		codec:        codec,
		now:          time.Now,
		retryBackoff: defaultRetryBackoff,
		sleep:        sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login verifies credentials and issues a fresh token pair bound to the
// account's current sequence number. Failures surface as
// ErrInvalidCredentials, ErrAccountDisabled or ErrUnavailable only.
func (s *SessionService) Login(ctx context.Context, email, password string) (TokenPair, Identity, error) {
	user, identity, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	pair, err := s.mint(ctx, identity, user.TokenSeq)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

// VerifyPassword checks credentials without issuing tokens. Used by flows
// that require password re-confirmation on an already authenticated
// session.
func (s *SessionService) VerifyPassword(ctx context.Context, email, password string) error {
	_, _, err := s.verifier.Verify(ctx, email, password)
	return err
}

// Refresh validates the refresh token, re-reads the account's current
// role/tenant/status and rotates the pair. The previous refresh token is
// consumed; reusing it yields ErrTokenRevoked. Concurrent refreshes of the
// same token share one rotation result. An ErrUnavailable outcome is
// retried once after a short backoff; login never retries so transient
// outages cannot mask bad credentials.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (TokenPair, Identity, error) {
	claims, err := s.codec.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}

	type rotation struct {
		pair     TokenPair
		identity Identity
	}
	v, err, _ := s.refreshGroup.Do(claims.ID, func() (any, error) {
		pair, identity, err := s.rotate(ctx, claims)
		if errors.Is(err, ErrUnavailable) {
			if serr := s.sleep(ctx, s.retryBackoff); serr != nil {
				return nil, err
			}
			pair, identity, err = s.rotate(ctx, claims)
		}
		if err != nil {
			return nil, err
		}
		return rotation{pair: pair, identity: identity}, nil
	})
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	rot := v.(rotation)
	return rot.pair, rot.identity, nil
}

func (s *SessionService) rotate(ctx context.Context, claims *Claims) (TokenPair, Identity, error) {
	user, identity, err := s.verifier.IdentityFor(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Identity{}, ErrTokenRevoked
		}
		return TokenPair{}, Identity{}, err
	}
	if claims.Seq != user.TokenSeq {
		return TokenPair{}, Identity{}, ErrTokenRevoked
	}
	// Single-use consume: exactly one caller may flip the record from live
	// to revoked, everyone else sees ErrTokenRevoked.
	if err := s.store.RefreshTokens(ctx).Consume(ctx, claims.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Identity{}, ErrTokenRevoked
		}
		return TokenPair{}, Identity{}, err
	}
	pair, err := s.mint(ctx, identity, user.TokenSeq)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

// Logout consumes the presented refresh token. It is idempotent: unknown,
// expired or already-revoked tokens are treated as success.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.codec.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	err = s.store.RefreshTokens(ctx).MarkRevoked(ctx, claims.ID)
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrTokenRevoked) {
		return err
	}
	return nil
}

// Authenticate validates an access token for a protected request. The
// identity comes from the signed claims; the only store read is the
// sequence-number comparison that implements bulk invalidation.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := s.codec.ParseAccess(accessToken)
	if err != nil {
		return Identity{}, err
	}
	user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrTokenRevoked
		}
		return Identity{}, err
	}
	if claims.Seq != user.TokenSeq {
		return Identity{}, ErrTokenRevoked
	}
	return claims.Identity()
}

// RevokeSessions bumps the account sequence number and revokes every
// stored refresh token, invalidating all previously issued credentials.
func (s *SessionService) RevokeSessions(ctx context.Context, userID string) error {
	if _, err := s.store.Users(ctx).BumpTokenSeq(ctx, userID); err != nil {
		return err
	}
	return s.store.RefreshTokens(ctx).MarkRevokedByUser(ctx, userID)
}

// ChangePassword replaces the account password and revokes all sessions
// issued under the old one.
func (s *SessionService) ChangePassword(ctx context.Context, userID, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.Users(ctx).UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.RevokeSessions(ctx, userID)
}

func (s *SessionService) mint(ctx context.Context, identity Identity, seq int64) (TokenPair, error) {
	access, accessExp, err := s.codec.IssueAccess(identity, seq)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, jti, refreshExp, err := s.codec.IssueRefresh(identity.UserID, seq)
	if err != nil {
		return TokenPair{}, err
	}
	rec := &RefreshTokenRecord{
		ID:        jti,
		UserID:    identity.UserID,
		ExpiresAt: refreshExp,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
