// AngelaMos | 2026
// active.go

package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
)

// AccountStatusReader reports whether an account may still use the API.
// It returns core.ErrNotFound when no account has the given id.
type AccountStatusReader interface {
	IsAccountActive(ctx context.Context, id string) (bool, error)
}

// CheckActivation decides whether the account behind userID may proceed.
// A nil error means the request continues.
func CheckActivation(
	ctx context.Context,
	reader AccountStatusReader,
	userID string,
) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("account id %q: %w", userID, core.ErrTokenInvalid)
	}

	active, err := reader.IsAccountActive(ctx, userID)
	if err != nil {
		return fmt.Errorf("check account status: %w", err)
	}

	if !active {
		return core.ErrAccountInactive
	}

	return nil
}

// ActiveAccount rejects requests from deactivated or deleted accounts.
// Requests without an authenticated identity pass through untouched.
func ActiveAccount(reader AccountStatusReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			err := CheckActivation(r.Context(), reader, userID)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, core.ErrTokenInvalid):
				core.JSONError(w, core.UnauthorizedError("invalid token subject"))
			case errors.Is(err, core.ErrNotFound):
				core.JSONError(w, core.NotFoundError("user"))
			case errors.Is(err, core.ErrAccountInactive):
				slog.WarnContext(r.Context(), "inactive account rejected",
					"user_id", userID,
				)
				core.JSONError(w, core.AccountInactiveError())
			default:
				core.InternalServerError(w, err)
			}
		})
	}
}
