// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
)

const (
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"
)

var (
	ErrEmailTaken    = fmt.Errorf("email: %w", core.ErrDuplicateKey)
	ErrUsernameTaken = fmt.Errorf("username: %w", core.ErrDuplicateKey)
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	FindByCredentials(ctx context.Context, email, passwordHash string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetRefreshToken(ctx context.Context, id, token string, expiry time.Time) error
	RotateRefreshToken(
		ctx context.Context,
		id, oldToken, newToken string,
		newExpiry, now time.Time,
	) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	IsActive(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Count(ctx context.Context) (total, active int, err error)
	// InTx runs fn against a Repository bound to one transaction. Nested
	// calls reuse the outer transaction.
	InTx(ctx context.Context, fn func(repo Repository) error) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) InTx(ctx context.Context, fn func(repo Repository) error) error {
	db, ok := r.db.(*sqlx.DB)
	if !ok {
		return fn(r)
	}

	return core.InTx(ctx, db, func(tx *sqlx.Tx) error {
		return fn(&repository{db: tx})
	})
}

const selectUser = `
		SELECT id, username, email, password_hash, role, is_active,
		       refresh_token, refresh_token_expiry,
		       created_at, updated_at, last_login_at
		FROM users`

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING refresh_token_expiry, created_at, updated_at`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
	)
	if err != nil {
		if dupErr := duplicateKeyError(err); dupErr != nil {
			return fmt.Errorf("create user: %w", dupErr)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "get user", selectUser+` WHERE id = $1`, id)
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	return r.getOne(ctx, "get user by email", selectUser+` WHERE email = $1`, email)
}

func (r *repository) GetByUsername(
	ctx context.Context,
	username string,
) (*User, error) {
	return r.getOne(
		ctx,
		"get user by username",
		selectUser+` WHERE username = $1`,
		username,
	)
}

func (r *repository) FindByCredentials(
	ctx context.Context,
	email, passwordHash string,
) (*User, error) {
	return r.getOne(
		ctx,
		"find by credentials",
		selectUser+` WHERE email = $1 AND password_hash = $2`,
		email,
		passwordHash,
	)
}

func (r *repository) getOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, role = $4, is_active = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.Username,
		user.Email,
		user.Role,
		user.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		if dupErr := duplicateKeyError(err); dupErr != nil {
			return fmt.Errorf("update user: %w", dupErr)
		}
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

// UpdatePassword stores a new hash and drops the refresh token so every other
// session has to log in again.
func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, refresh_token = '',
		    refresh_token_expiry = 'epoch', updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

// SetRefreshToken is called on login, so it also stamps last_login_at.
func (r *repository) SetRefreshToken(
	ctx context.Context,
	id, token string,
	expiry time.Time,
) error {
	query := `
		UPDATE users
		SET refresh_token = $2, refresh_token_expiry = $3,
		    last_login_at = NOW(), updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "set refresh token", query, id, token, expiry)
}

func (r *repository) RotateRefreshToken(
	ctx context.Context,
	id, oldToken, newToken string,
	newExpiry, now time.Time,
) (bool, error) {
	query := `
		UPDATE users
		SET refresh_token = $3, refresh_token_expiry = $4, updated_at = NOW()
		WHERE id = $1
		  AND refresh_token = $2
		  AND refresh_token <> ''
		  AND refresh_token_expiry > $5`

	result, err := r.db.ExecContext(ctx, query, id, oldToken, newToken, newExpiry, now)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) ClearRefreshToken(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET refresh_token = '', refresh_token_expiry = 'epoch',
		    updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "clear refresh token", query, id)
}

func (r *repository) SetActive(
	ctx context.Context,
	id string,
	active bool,
) error {
	query := `
		UPDATE users
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "set active", query, id, active)
}

func (r *repository) IsActive(ctx context.Context, id string) (bool, error) {
	query := `SELECT is_active FROM users WHERE id = $1`

	var active bool
	err := r.db.GetContext(ctx, &active, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check active: %w", core.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("check active: %w", err)
	}

	return active, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR username ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *params.Active)
		argIdx++
	}

	whereClause := "TRUE"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`%s
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		selectUser, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	return r.exists(ctx, "check email exists", "email", email)
}

func (r *repository) ExistsByUsername(
	ctx context.Context,
	username string,
) (bool, error) {
	return r.exists(ctx, "check username exists", "username", username)
}

func (r *repository) exists(
	ctx context.Context,
	op, column, value string,
) (bool, error) {
	query := fmt.Sprintf(
		`SELECT EXISTS(SELECT 1 FROM users WHERE %s = $1)`,
		column,
	)

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, value); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (r *repository) Count(ctx context.Context) (int, int, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE is_active) AS active
		FROM users`

	var counts struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return 0, 0, fmt.Errorf("count users: %w", err)
	}

	return counts.Total, counts.Active, nil
}

func duplicateKeyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}

	switch pgErr.ConstraintName {
	case emailConstraint:
		return ErrEmailTaken
	case usernameConstraint:
		return ErrUsernameTaken
	default:
		return core.ErrDuplicateKey
	}
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
