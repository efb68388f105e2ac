// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/auth"
	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
	"github.com/HTTPauloGoncalves/EncrypCoin/internal/middleware"
)

type PasswordHasher interface {
	Hash(password string) string
	Verify(password, encodedHash string) bool
}

type Service struct {
	repo   Repository
	hasher PasswordHasher
}

func NewService(repo Repository, hasher PasswordHasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

func (s *Service) Register(
	ctx context.Context,
	req CreateUserRequest,
) (*User, error) {
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return nil, fmt.Errorf(
			"register: username, email and password are required: %w",
			core.ErrValidation,
		)
	}

	if err := s.ensureAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: s.hasher.Hash(req.Password),
		Role:         RoleUser,
		IsActive:     true,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	if err := checkID("get user", id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

func (s *Service) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	return s.repo.GetByUsername(ctx, strings.TrimSpace(username))
}

func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, normalizeEmail(email))
}

func (s *Service) UsernameExists(
	ctx context.Context,
	username string,
) (bool, error) {
	return s.repo.ExistsByUsername(ctx, strings.TrimSpace(username))
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.AdminUpdate(ctx, userID, AdminUpdateUserRequest{
		Username: req.Username,
		Email:    req.Email,
	})
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID string,
	req UpdatePasswordRequest,
) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		return fmt.Errorf("update password: %w", auth.ErrInvalidCredentials)
	}

	if err := s.repo.UpdatePassword(
		ctx,
		userID,
		s.hasher.Hash(req.NewPassword),
	); err != nil {
		return err
	}

	slog.InfoContext(ctx, "password changed", "user_id", userID)
	return nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) AdminUpdate(
	ctx context.Context,
	id string,
	req AdminUpdateUserRequest,
) (*User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var email, username string
	if req.Email != nil {
		email = normalizeEmail(*req.Email)
		if email == "" {
			return nil, fmt.Errorf("update user: empty email: %w", core.ErrValidation)
		}
		if email == user.Email {
			email = ""
		}
	}
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		if username == "" {
			return nil, fmt.Errorf("update user: empty username: %w", core.ErrValidation)
		}
		if username == user.Username {
			username = ""
		}
	}

	if err := s.ensureAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	if email != "" {
		user.Email = email
	}
	if username != "" {
		user.Username = username
	}
	if req.Role != nil {
		if *req.Role != RoleUser && *req.Role != RoleAdmin {
			return nil, fmt.Errorf(
				"update user: invalid role %q: %w",
				*req.Role,
				core.ErrValidation,
			)
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	err = s.repo.InTx(ctx, func(repo Repository) error {
		if err := repo.Update(ctx, user); err != nil {
			return err
		}
		if req.Password == nil {
			return nil
		}
		return repo.UpdatePassword(ctx, user.ID, s.hasher.Hash(*req.Password))
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// SetActive flips the activation flag. Issued tokens stay untouched; the
// activation gate rejects them on their next use.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	if err := checkID("set active", id); err != nil {
		return err
	}

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}

	slog.InfoContext(ctx, "account activation changed",
		"user_id", id,
		"active", active,
	)
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := checkID("delete user", id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// ensureAvailable checks the values a caller wants to claim. Empty values
// are skipped.
func (s *Service) ensureAvailable(
	ctx context.Context,
	email, username string,
) error {
	if email != "" {
		taken, err := s.repo.ExistsByEmail(ctx, email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
	}

	if username != "" {
		taken, err := s.repo.ExistsByUsername(ctx, username)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
	}

	return nil
}

func (s *Service) CountAccounts(ctx context.Context) (int, int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) IsAccountActive(ctx context.Context, id string) (bool, error) {
	return s.repo.IsActive(ctx, id)
}

func (s *Service) FindByCredentials(
	ctx context.Context,
	email, passwordHash string,
) (*auth.Account, error) {
	user, err := s.repo.FindByCredentials(ctx, normalizeEmail(email), passwordHash)
	if err != nil {
		return nil, err
	}
	return toAccount(user), nil
}

func (s *Service) GetAccountByID(
	ctx context.Context,
	id string,
) (*auth.Account, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toAccount(user), nil
}

func (s *Service) GetAccountByEmail(
	ctx context.Context,
	email string,
) (*auth.Account, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return toAccount(user), nil
}

func (s *Service) SetRefreshToken(
	ctx context.Context,
	id, token string,
	expiry time.Time,
) error {
	return s.repo.SetRefreshToken(ctx, id, token, expiry)
}

func (s *Service) RotateRefreshToken(
	ctx context.Context,
	id, oldToken, newToken string,
	newExpiry, now time.Time,
) (bool, error) {
	return s.repo.RotateRefreshToken(ctx, id, oldToken, newToken, newExpiry, now)
}

func (s *Service) ClearRefreshToken(ctx context.Context, id string) error {
	if err := checkID("clear refresh token", id); err != nil {
		return err
	}
	return s.repo.ClearRefreshToken(ctx, id)
}

// checkID maps ids that cannot exist to core.ErrNotFound before they reach
// the uuid column.
func checkID(op, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func toAccount(u *User) *auth.Account {
	return &auth.Account{
		ID:                 u.ID,
		Email:              u.Email,
		Username:           u.Username,
		PasswordHash:       u.PasswordHash,
		Role:               u.Role,
		IsActive:           u.IsActive,
		RefreshToken:       u.RefreshToken,
		RefreshTokenExpiry: u.RefreshTokenExpiry,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var (
	_ auth.AccountStore              = (*Service)(nil)
	_ middleware.AccountStatusReader = (*Service)(nil)
)
