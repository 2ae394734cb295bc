package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/auth"
)

// Headers carrying a trusted identity when token auth is disabled.
const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"
	BankIDHeader   = "X-Bank-ID"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}

// Authenticate resolves the caller identity and stores it in the request
// context. With a verifier it requires a valid bearer token; with nil it
// trusts the identity headers set by an upstream gateway.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				id  domain.Identity
				err error
			)
			if verifier != nil {
				id, err = identityFromToken(verifier, r)
			} else {
				id, err = identityFromHeaders(r)
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}

			ctx := domain.ContextWithIdentity(r.Context(), id)
			l := log.Ctx(ctx).With().Str("user_id", id.UserID).Str("role", string(id.Role)).Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(ctx)))
		})
	}
}

func identityFromToken(verifier TokenVerifier, r *http.Request) (domain.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return domain.Identity{}, errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return domain.Identity{}, errors.New("invalid authorization header format")
	}

	claims, err := verifier.Verify(parts[1])
	if err != nil {
		return domain.Identity{}, err
	}
	return claims.Identity(), nil
}

func identityFromHeaders(r *http.Request) (domain.Identity, error) {
	id := domain.Identity{
		UserID: strings.TrimSpace(r.Header.Get(UserIDHeader)),
		Role:   domain.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(UserRoleHeader)))),
		BankID: strings.TrimSpace(r.Header.Get(BankIDHeader)),
	}
	if id.UserID == "" {
		return domain.Identity{}, errors.New("missing " + UserIDHeader + " header")
	}
	if id.Role == "" {
		id.Role = domain.RoleCustomer
	}
	if !id.Role.IsValid() {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return id, nil
}

// RequireRole rejects callers whose identity does not carry role.
func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := domain.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", domain.ErrUnauthorized.Error())
				return
			}
			if id.Role != role {
				writeError(w, http.StatusForbidden, "forbidden", domain.ErrInsufficientRole.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
