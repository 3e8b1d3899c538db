package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/softflow/deskpro/internal/deskprosrv/config"
)

const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"

	issuer = "deskpro"
)

// Claims is the identity carried by access and refresh tokens.
type Claims struct {
	UserID     string `json:"user_id"`
	TenantSlug string `json:"tenant_slug"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	TokenUse   string `json:"token_use"`
	jwt.RegisteredClaims
}

// Decoder turns a bearer credential into verified claims.
type Decoder interface {
	Decode(token string) (*Claims, error)
}

// TokenService signs and verifies HS256 tokens with one shared secret.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ Decoder = (*TokenService)(nil)

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, ErrAuth.Msg("jwt secret is not configured")
	}
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func NewTokenServiceFromConfig(c *config.ConfigParam) (*TokenService, error) {
	return NewTokenService(c.JWTSecretKey, c.AccessTokenTTL(), c.RefreshTokenTTL())
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// Identity is the subject of a token pair.
type Identity struct {
	UserID     string
	TenantSlug string
	Email      string
	FullName   string
}

func (s *TokenService) IssueAccess(id Identity) (string, error) {
	return s.issue(id, TokenUseAccess, s.accessTTL)
}

func (s *TokenService) IssueRefresh(id Identity) (string, error) {
	return s.issue(id, TokenUseRefresh, s.refreshTTL)
}

func (s *TokenService) issue(id Identity, use string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:     id.UserID,
		TenantSlug: id.TenantSlug,
		Email:      id.Email,
		FullName:   id.FullName,
		TokenUse:   use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", ErrTokenGeneration.Err(err)
	}
	return signed, nil
}

// Decode verifies signature, expiry and issuer of an access token. A token
// without a tenant is still returned; callers decide whether the tenant is
// required.
func (s *TokenService) Decode(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken.Err(err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != TokenUseAccess {
		return nil, ErrInvalidToken.Msg("not an access token")
	}
	return claims, nil
}
