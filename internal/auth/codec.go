package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind discriminates the two halves of a token pair.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
	// clockLeeway absorbs drift between issuer and verifier when comparing
	// numeric time claims.
	clockLeeway = 30 * time.Second
)

// Claims is the signed payload of a portal token. Access tokens carry the
// full identity so routine authorization never needs a store round trip.
// Refresh tokens carry only the subject, sequence number and discriminator;
// a decoded refresh token on its own authorizes nothing.
type Claims struct {
	TokenType    string `json:"token_type"`
	Seq          int64  `json:"seq"`
	Role         string `json:"role,omitempty"`
	TenantID     string `json:"tenant,omitempty"`
	TenantActive bool   `json:"tenant_active,omitempty"`
	Email        string `json:"email,omitempty"`
	DisplayName  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Codec creates and parses signed tokens. Signing is HS256 with a
// server-held secret; the signature is verified before any claim is
// trusted.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		if s := strings.TrimSpace(issuer); s != "" {
			c.issuer = s
		}
	}
}

// WithAccessTTL configures the access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

// WithCodecClock overrides the time source (tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. The secret must be non-empty.
func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	c := &Codec{
		secret:     secret,
		issuer:     "trusted-file-link",
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess signs an access token for the identity at the given account
// sequence number.
func (c *Codec) IssueAccess(identity Identity, seq int64) (token string, expiresAt time.Time, err error) {
	now := c.now().UTC()
	expiresAt = now.Add(c.accessTTL)
	claims := Claims{
		TokenType:    string(TokenKindAccess),
		Seq:          seq,
		Role:         identity.Role.String(),
		TenantID:     identity.TenantID,
		TenantActive: identity.TenantActive,
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	return token, expiresAt, err
}

// IssueRefresh signs a refresh token for the user. The jti is returned so
// the caller can persist the matching server-side record.
func (c *Codec) IssueRefresh(userID string, seq int64) (token, jti string, expiresAt time.Time, err error) {
	now := c.now().UTC()
	expiresAt = now.Add(c.refreshTTL)
	jti = uuid.NewString()
	claims := Claims{
		TokenType: string(TokenKindRefresh),
		Seq:       seq,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	return token, jti, expiresAt, err
}

// Parse verifies the signature and registered claims, then enforces the
// token-type discriminator. An unsigned or mis-signed token is rejected
// before any claim is read.
func (c *Codec) Parse(token string, kind TokenKind) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithLeeway(clockLeeway),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != string(kind) {
		return nil, ErrWrongTokenType
	}
	if kind == TokenKindAccess {
		if _, err := ParseRole(claims.Role); err != nil {
			return nil, ErrTokenMalformed
		}
	}
	return claims, nil
}

// ParseAccess is shorthand for Parse with the access discriminator.
func (c *Codec) ParseAccess(token string) (*Claims, error) {
	return c.Parse(token, TokenKindAccess)
}

// ParseRefresh is shorthand for Parse with the refresh discriminator.
func (c *Codec) ParseRefresh(token string) (*Claims, error) {
	return c.Parse(token, TokenKindRefresh)
}

// Identity rebuilds the caller identity from validated access claims.
func (cl *Claims) Identity() (Identity, error) {
	role, err := ParseRole(cl.Role)
	if err != nil {
		return Identity{}, ErrTokenMalformed
	}
	return Identity{
		UserID:       cl.Subject,
		Email:        cl.Email,
		DisplayName:  cl.DisplayName,
		Role:         role,
		TenantID:     cl.TenantID,
		TenantActive: cl.TenantActive,
	}, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrTokenMalformed
	default:
		return ErrTokenMalformed
	}
}
