package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/ReviewPulse/pkg/httputil"
)

type contextKeyType string

const userIDKey contextKeyType = "user_id"

// UserIDHeader is set by the API gateway once it has authenticated the caller.
const UserIDHeader = "X-User-ID"

// Claims represents the identity extracted from a bearer token.
type Claims struct {
	UserID string
	Role   string
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

var errMissingSubject = errors.New("token carries neither user_id nor sub")

// NewHMACValidator returns a TokenValidator for HS256/384/512 signed JWTs.
// The user is taken from the user_id claim, falling back to sub.
func NewHMACValidator(secret string) TokenValidator {
	key := []byte(secret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	)

	return func(tokenString string) (*Claims, error) {
		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil {
			return nil, err
		}

		userID, _ := claims["user_id"].(string)
		if userID == "" {
			userID, _ = claims["sub"].(string)
		}
		if userID == "" {
			return nil, errMissingSubject
		}
		role, _ := claims["role"].(string)
		return &Claims{UserID: userID, Role: role}, nil
	}
}

// Identity resolves the calling user and stores it in the request context.
//
// With a validator the caller must present "Authorization: Bearer <jwt>".
// Without one the service trusts the gateway-injected X-User-ID header.
// Either way a request without an identity is rejected with 401 AUTH_REQUIRED.
func Identity(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string

			if validate != nil {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					writeAuthError(w, r, "missing authorization header")
					return
				}
				scheme, token, ok := strings.Cut(authHeader, " ")
				if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
					writeAuthError(w, r, "invalid authorization header format")
					return
				}
				claims, err := validate(token)
				if err != nil {
					writeAuthError(w, r, "invalid or expired token")
					return
				}
				userID = claims.UserID
			} else {
				userID = strings.TrimSpace(r.Header.Get(UserIDHeader))
			}

			if userID == "" {
				writeAuthError(w, r, "missing user identity")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:      "AUTH_REQUIRED",
			Message:   message,
			RequestID: correlationID(r),
		},
	})
}
