package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleStaff   Role = "staff"
)

// Identity is the caller extracted from the bearer token.
type Identity struct {
	Subject uuid.UUID
	Role    Role
}

const identityKey contextKey = "identity"

// AuthMiddleware validates HMAC-signed bearer tokens carrying `sub`
// (patient or staff id) and `role` claims, and puts the Identity on the
// request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, "missing_authorization", "Authorization header is required")
				return
			}
			parts := strings.Fields(auth)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid_authorization", "want Bearer <token>")
				return
			}

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
				return
			}

			sub, _ := claims["sub"].(string)
			subject, err := uuid.Parse(sub)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", "sub claim must be a UUID")
				return
			}

			roleStr, _ := claims["role"].(string)
			var role Role
			switch Role(strings.ToLower(roleStr)) {
			case RolePatient:
				role = RolePatient
			case RoleStaff:
				role = RoleStaff
			default:
				writeError(w, http.StatusUnauthorized, "invalid_token", "role claim must be patient or staff")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, Identity{Subject: subject, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff rejects non-staff callers. Must run after AuthMiddleware.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFrom(r.Context())
		if !ok || ident.Role != RoleStaff {
			writeError(w, http.StatusForbidden, "staff_only", "this endpoint requires a staff token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFrom retrieves the caller identity from context.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey).(Identity)
	return ident, ok
}
