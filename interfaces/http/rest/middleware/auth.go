package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"bfdb/pkg/auth"
	"bfdb/pkg/common"
	pkgerrors "bfdb/pkg/errors"
)

// Authenticate validates the bearer token, puts the viewer it names on the
// request context and applies the per-viewer rate limit
func Authenticate(
	validator *auth.JWTValidator,
	limiter *auth.ViewerRateLimiter,
	errs *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				errs.Handle(w, r, unauthorized("missing authentication token", auth.ErrMissingToken))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				errs.Handle(w, r, unauthorized(tokenMessage(err), err))
				return
			}

			viewer, err := claims.Viewer()
			if err != nil {
				errs.Handle(w, r, unauthorized("token does not name a viewer", err))
				return
			}

			allowed, err := limiter.Allow(r.Context(), viewer.OrgBfOid.String(), viewer.PersonBfGid.String())
			if err != nil {
				errs.Handle(w, r, pkgerrors.NewInternalError("rate limiter failed").WithCause(err))
				return
			}
			if !allowed {
				errs.Handle(w, r, pkgerrors.NewRateLimitError(limiter.Limit(), "1m"))
				return
			}

			logger.Debug("Request authenticated",
				zap.String("viewer", viewer.String()),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)

			ctx := common.WithViewer(r.Context(), viewer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(message string, cause error) error {
	return pkgerrors.NewUnauthorizedError(message).
		WithCode(pkgerrors.CodeInvalidToken).
		WithCause(cause)
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "invalid token signature"
	default:
		return "invalid token"
	}
}

// extractToken reads the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return authHeader
}
