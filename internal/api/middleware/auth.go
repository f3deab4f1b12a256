package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/cloo-solutions/podseek/internal/api"
	"github.com/cloo-solutions/podseek/internal/domain"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// AdminPrincipal names the caller authenticated with the static admin key
const AdminPrincipal = "admin"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// StaticKeyValidator accepts exactly one configured key
type StaticKeyValidator struct {
	key []byte
}

func NewStaticKeyValidator(key string) *StaticKeyValidator {
	return &StaticKeyValidator{key: []byte(key)}
}

func (v *StaticKeyValidator) ValidateAPIKey(_ context.Context, token string) (string, error) {
	if len(v.key) == 0 || subtle.ConstantTimeCompare(v.key, []byte(token)) != 1 {
		return "", domain.NewDomainError(domain.ErrCodeUnauthorized, "invalid api key")
	}
	return AdminPrincipal, nil
}

func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			principal, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetTag("principal", principal)
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetPrincipal(ctx context.Context) string {
	principal, _ := ctx.Value(PrincipalKey).(string)
	return principal
}
