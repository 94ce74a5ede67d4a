package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"qr-wallet/internal/core/ports"
	"qr-wallet/internal/service"
	"qr-wallet/pkg/apperror"
	"qr-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxWalletID    = "wallet_id"
	CtxTokenClaims = "token_claims"
)

// SessionAuth validates the bearer token, rejects revoked tokens, and loads
// the token's wallet into a fresh Session carried by the request context.
func SessionAuth(
	tokenSvc ports.TokenService,
	denylist ports.TokenDenylist,
	wallets ports.WalletService,
	log zerolog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		revoked, err := denylist.IsRevoked(c.Request.Context(), claims.TokenID)
		if err != nil {
			log.Error().Err(err).Msg("token denylist unavailable")
			response.Error(c, apperror.ErrStorage(fmt.Errorf("check revoked token: %w", err)))
			c.Abort()
			return
		}
		if revoked {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		ctx := service.WithSession(c.Request.Context(), service.NewSession())
		if _, err := wallets.RestoreSession(ctx, claims.WalletID); err != nil {
			if apperror.CodeOf(err) == "AUTH_001" {
				err = apperror.ErrInvalidToken()
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Set(CtxWalletID, claims.WalletID)
		c.Set(CtxTokenClaims, claims)
		c.Next()
	}
}

// RequestID propagates or assigns a correlation ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(response.RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(response.RequestIDKey)).
			Str("wallet_id", c.GetString(CtxWalletID)).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.InternalError(fmt.Errorf("panic: %v", r)))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// MaxBodySize rejects requests whose declared length exceeds maxBytes and
// caps the read of bodies sent without one.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, apperror.Validation(fmt.Sprintf("Request body exceeds %d bytes", maxBytes)))
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
