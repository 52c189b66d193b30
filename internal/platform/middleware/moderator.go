package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "fairdraw/pkg/domain-errors"
)

// ModeratorClaims are the claims carried by moderator bearer tokens.
type ModeratorClaims struct {
	ModeratorID string `json:"moderator_id"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// ModeratorValidator validates moderator bearer tokens.
type ModeratorValidator struct {
	signingKey []byte
}

func NewModeratorValidator(signingKey string) *ModeratorValidator {
	return &ModeratorValidator{signingKey: []byte(signingKey)}
}

// Validate parses and verifies a moderator token.
func (v *ModeratorValidator) Validate(tokenString string) (*ModeratorClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &ModeratorClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeForbidden, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeForbidden, "invalid token")
	}
	claims, ok := parsed.Claims.(*ModeratorClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeForbidden, "invalid token claims")
	}
	if claims.Role != "moderator" {
		return nil, dErrors.New(dErrors.CodeForbidden, "moderator role required")
	}
	return claims, nil
}

// RequireModerator gates moderator-only routes on a valid bearer token with
// the moderator role.
func RequireModerator(v *ModeratorValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				writeForbidden(w, "missing bearer token")
				return
			}
			claims, err := v.Validate(token)
			if err != nil {
				log.Warn("moderator auth rejected",
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
					"error", err,
				)
				writeForbidden(w, "moderator access required")
				return
			}
			ctx := context.WithValue(r.Context(), moderatorIDKey, claims.ModeratorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetModeratorID returns the authenticated moderator id, or "".
func GetModeratorID(ctx context.Context) string {
	id, _ := ctx.Value(moderatorIDKey).(string)
	return id
}

func writeForbidden(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    string(dErrors.CodeForbidden),
		"message": msg,
	})
}
