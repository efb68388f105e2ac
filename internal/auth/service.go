// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
)

const tokenTypeBearer = "Bearer"

var (
	ErrInvalidCredentials = fmt.Errorf(
		"%w: invalid credentials",
		core.ErrAuthentication,
	)
	ErrRefreshRejected = fmt.Errorf(
		"%w: refresh token invalid or expired",
		core.ErrAuthentication,
	)
)

// Account is the slice of a user record the token lifecycle needs.
type Account struct {
	ID                 string
	Email              string
	Username           string
	PasswordHash       string
	Role               string
	IsActive           bool
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// AccountStore persists accounts and their single refresh token. Lookups
// return core.ErrNotFound when nothing matches.
type AccountStore interface {
	FindByCredentials(
		ctx context.Context,
		email, passwordHash string,
	) (*Account, error)
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	SetRefreshToken(
		ctx context.Context,
		id, token string,
		expiry time.Time,
	) error
	// RotateRefreshToken replaces oldToken with newToken only if oldToken is
	// still the stored token and has not expired at now. It reports whether
	// the swap happened.
	RotateRefreshToken(
		ctx context.Context,
		id, oldToken, newToken string,
		newExpiry, now time.Time,
	) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
}

type PasswordHasher interface {
	Hash(password string) string
}

type Service struct {
	store  AccountStore
	jwt    *JWTManager
	hasher PasswordHasher
	now    func() time.Time
}

func NewService(
	store AccountStore,
	jwt *JWTManager,
	hasher PasswordHasher,
) *Service {
	return &Service{
		store:  store,
		jwt:    jwt,
		hasher: hasher,
		now:    time.Now,
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf(
			"login: email and password are required: %w",
			core.ErrValidation,
		)
	}

	account, err := s.store.FindByCredentials(
		ctx,
		email,
		s.hasher.Hash(req.Password),
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.InfoContext(ctx, "login rejected", "email", email)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	tokens, err := s.issueTokens(account)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetRefreshToken(
		ctx,
		account.ID,
		tokens.RefreshToken,
		s.now().Add(s.jwt.RefreshTokenTTL()),
	); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	core.AddSpanEvent(ctx, "auth.login",
		attribute.String("user.id", account.ID),
	)
	slog.InfoContext(ctx, "user logged in", "user_id", account.ID)

	return &AuthResponse{
		TokenResponse: *tokens,
		Username:      account.Username,
		Email:         account.Email,
	}, nil
}

// Refresh exchanges a possibly expired access token and the current refresh
// token for a new pair. The presented refresh token is consumed.
func (s *Service) Refresh(
	ctx context.Context,
	req RefreshRequest,
) (*TokenResponse, error) {
	if strings.TrimSpace(req.AccessToken) == "" ||
		strings.TrimSpace(req.RefreshToken) == "" {
		return nil, fmt.Errorf(
			"refresh: access and refresh tokens are required: %w",
			core.ErrValidation,
		)
	}

	claims, err := s.jwt.ParseAccessToken(req.AccessToken, true)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	if claims.Email == "" {
		return nil, fmt.Errorf(
			"refresh: token has no email claim: %w",
			core.ErrTokenInvalid,
		)
	}

	account, err := s.store.GetAccountByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrRefreshRejected
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	now := s.now()
	if account.ID != claims.UserID ||
		account.RefreshToken == "" ||
		!core.CompareTokens(account.RefreshToken, req.RefreshToken) ||
		!now.Before(account.RefreshTokenExpiry) {
		slog.InfoContext(ctx, "refresh rejected", "user_id", account.ID)
		return nil, ErrRefreshRejected
	}

	tokens, err := s.issueTokens(account)
	if err != nil {
		return nil, err
	}

	rotated, err := s.store.RotateRefreshToken(
		ctx,
		account.ID,
		req.RefreshToken,
		tokens.RefreshToken,
		now.Add(s.jwt.RefreshTokenTTL()),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	if !rotated {
		slog.WarnContext(ctx, "refresh token already consumed",
			"user_id", account.ID,
		)
		return nil, ErrRefreshRejected
	}

	return tokens, nil
}

// Logout drops the stored refresh token. Calling it again is a no-op.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	if err := s.store.ClearRefreshToken(ctx, accountID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	slog.InfoContext(ctx, "user logged out", "user_id", accountID)
	return nil
}

func (s *Service) Me(ctx context.Context, accountID string) (*MeResponse, error) {
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	return &MeResponse{
		ID:       account.ID,
		Email:    account.Email,
		Username: account.Username,
		Role:     account.Role,
		IsActive: account.IsActive,
	}, nil
}

func (s *Service) issueTokens(account *Account) (*TokenResponse, error) {
	accessToken, expiresAt, err := s.jwt.IssueAccessToken(AccessTokenClaims{
		UserID:   account.ID,
		Email:    account.Email,
		Username: account.Username,
		Role:     account.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshToken, err := s.jwt.CreateRefreshToken()
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
		ExpiresAt:    expiresAt,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
