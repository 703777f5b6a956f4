package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-dapur/internal/common"
	"github.com/noah-isme/backend-dapur/internal/db"
)

// RoleAdmin grants access to the authoring endpoints.
const RoleAdmin = "admin"

// ErrUserNotFound is returned when the token subject has no active account.
var ErrUserNotFound = errors.New("auth: user not found")

// RoleLookup resolves a user's role.
type RoleLookup interface {
	Role(ctx context.Context, userID int64) (string, error)
}

// RoleStore reads roles from the users table.
type RoleStore struct {
	db db.DBTX
}

// NewRoleStore constructs a RoleStore.
func NewRoleStore(conn db.DBTX) *RoleStore {
	return &RoleStore{db: conn}
}

// Role implements RoleLookup. Inactive users are reported as missing.
func (s *RoleStore) Role(ctx context.Context, userID int64) (string, error) {
	var role string
	err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 AND is_active`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return role, err
}

// RequireRole rejects authenticated requests whose user lacks role.
func RequireRole(lookup RoleLookup, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if lookup == nil {
				common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "role validator not configured", nil)
				return
			}
			userID, ok := common.UserID(r.Context())
			if !ok {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			got, err := lookup.Role(r.Context(), userID)
			if err != nil {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			if got != role {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
