// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/config"
	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
	"github.com/HTTPauloGoncalves/EncrypCoin/internal/middleware"
)

const (
	claimEmail    = "email"
	claimUsername = "username"
	claimRole     = "role"
)

// JWTManager signs and verifies HS256 access tokens and mints opaque refresh
// tokens.
type JWTManager struct {
	key    jwk.Key
	config config.JWTConfig
	now    func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("jwt manager: %w", err)
	}

	key, err := jwk.Import([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	keyID := uuid.New().String()[:8]
	if setErr := key.Set(jwk.KeyIDKey, keyID); setErr != nil {
		return nil, fmt.Errorf("set key id: %w", setErr)
	}

	return &JWTManager{
		key:    key,
		config: cfg,
		now:    time.Now,
	}, nil
}

type AccessTokenClaims struct {
	UserID   string
	Email    string
	Username string
	Role     string
}

func (m *JWTManager) CreateAccessToken(
	claims AccessTokenClaims,
) (string, error) {
	signed, _, err := m.IssueAccessToken(claims)
	return signed, err
}

// IssueAccessToken signs a new access token and returns the expiry written
// into its exp claim, truncated to the second as it appears on the wire.
func (m *JWTManager) IssueAccessToken(
	claims AccessTokenClaims,
) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.config.AccessTokenExpire()).Truncate(time.Second)

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		Expiration(exp).
		Claim(claimEmail, claims.Email).
		Claim(claimUsername, claims.Username).
		Claim(claimRole, claims.Role).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), m.key))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), exp.UTC(), nil
}

// VerifyAccessToken is the strict check used on authenticated requests.
func (m *JWTManager) VerifyAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	return m.ParseAccessToken(tokenString, false)
}

// ParseAccessToken verifies the signature, algorithm, issuer and audience of
// tokenString. Expiry is enforced only when allowExpired is false.
func (m *JWTManager) ParseAccessToken(
	tokenString string,
	allowExpired bool,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), m.key),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	if iss, ok := token.Issuer(); !ok || iss != m.config.Issuer {
		return nil, fmt.Errorf("verify token: issuer mismatch: %w", core.ErrTokenInvalid)
	}

	if aud, ok := token.Audience(); !ok || !slices.Contains(aud, m.config.Audience) {
		return nil, fmt.Errorf("verify token: audience mismatch: %w", core.ErrTokenInvalid)
	}

	exp, ok := token.Expiration()
	if !ok {
		return nil, fmt.Errorf("verify token: missing exp: %w", core.ErrTokenInvalid)
	}

	if !allowExpired && !m.now().Before(exp) {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	claims := &middleware.AccessTokenClaims{
		UserID:    subject,
		Email:     stringClaim(token, claimEmail),
		Username:  stringClaim(token, claimUsername),
		Role:      stringClaim(token, claimRole),
		ExpiresAt: exp,
	}

	if jti, ok := token.JwtID(); ok {
		claims.TokenID = jti
	}

	if iat, ok := token.IssuedAt(); ok {
		claims.IssuedAt = iat
	}

	return claims, nil
}

func stringClaim(token jwt.Token, name string) string {
	var value string
	if err := token.Get(name, &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func (m *JWTManager) GetKeyID() string {
	var kid string
	//nolint:errcheck // key ID always set during NewJWTManager init
	_ = m.key.Get(jwk.KeyIDKey, &kid)
	return kid
}

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenExpire()
}

func (m *JWTManager) RefreshTokenTTL() time.Duration {
	return m.config.RefreshTokenExpire
}

func (m *JWTManager) CreateRefreshToken() (string, error) {
	token, err := core.GenerateRefreshToken()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return token, nil
}
