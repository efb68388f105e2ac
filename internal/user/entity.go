// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/middleware"
)

type User struct {
	ID                 string     `db:"id"`
	Username           string     `db:"username"`
	Email              string     `db:"email"`
	PasswordHash       string     `db:"password_hash"`
	Role               string     `db:"role"`
	IsActive           bool       `db:"is_active"`
	RefreshToken       string     `db:"refresh_token"`
	RefreshTokenExpiry time.Time  `db:"refresh_token_expiry"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	LastLoginAt        *time.Time `db:"last_login_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	RoleUser  = "User"
	RoleAdmin = middleware.RoleAdmin
)
