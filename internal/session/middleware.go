package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Middleware authenticates the bearer token of every request. Requests without a valid,
// unrevoked token are rejected with 401.
func Middleware(tm *TokenManager, revoker Revoker, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				reject(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := tm.Validate(token)
			if err != nil {
				log.Debug("token rejected", zap.Error(err))
				reject(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			if revoker != nil {
				revoked, err := revoker.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					// fail closed
					log.Error("revocation check failed", zap.Error(err))
					reject(w, http.StatusServiceUnavailable, "unavailable", "session check unavailable")
					return
				}
				if revoked {
					reject(w, http.StatusUnauthorized, "unauthorized", ErrRevoked.Error())
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), claims)))
		})
	}
}

// RequireCustomer admits sessions bound to a customer record.
func RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok {
			reject(w, http.StatusUnauthorized, "unauthorized", ErrNoSession.Error())
			return
		}
		if s.CustomerID == 0 {
			reject(w, http.StatusForbidden, "forbidden", "session has no customer")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok {
			reject(w, http.StatusUnauthorized, "unauthorized", ErrNoSession.Error())
			return
		}
		if !s.IsAdmin {
			reject(w, http.StatusForbidden, "forbidden", "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func reject(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, Code: code})
}

// IsAuthError reports whether err came from token validation.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrRevoked) || errors.Is(err, ErrNoSession)
}
