package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/kilcode/kilcode/pkg/utils"
)

type ContextKey string

const (
	UserIDKey  ContextKey = "userID"
	RoleKey    ContextKey = "role"
	CountryKey ContextKey = "country"
)

func AuthMiddleware(jwtService JWTServiceInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, RoleKey, claims.Role)
			ctx = context.WithValue(ctx, CountryKey, claims.Country)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware sits behind AuthMiddleware and rejects non-admin tokens.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(RoleKey).(string)
		if role != RoleAdmin {
			utils.RespondWithError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFromContext extracts the authenticated user, zero when absent.
func UserIDFromContext(ctx context.Context) int {
	id, _ := ctx.Value(UserIDKey).(int)
	return id
}

// CountryFromContext extracts the token country, empty when absent.
func CountryFromContext(ctx context.Context) string {
	country, _ := ctx.Value(CountryKey).(string)
	return country
}
