package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qr-wallet/internal/core/domain"
	"qr-wallet/internal/core/ports"
	"qr-wallet/internal/core/ports/mocks"
	"qr-wallet/internal/service"
	"qr-wallet/pkg/apperror"
	"qr-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type authMocks struct {
	tokens   *mocks.MockTokenService
	denylist *mocks.MockTokenDenylist
	wallets  *mocks.MockWalletService
}

func newAuthRouter(t *testing.T, handler gin.HandlerFunc) (*gin.Engine, authMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := authMocks{
		tokens:   mocks.NewMockTokenService(ctrl),
		denylist: mocks.NewMockTokenDenylist(ctrl),
		wallets:  mocks.NewMockWalletService(ctrl),
	}

	router := gin.New()
	router.GET("/test", SessionAuth(m.tokens, m.denylist, m.wallets, zerolog.Nop()), handler)
	return router, m
}

func serve(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func okHandler(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }

func TestSessionAuth_MissingHeader(t *testing.T) {
	router, _ := newAuthRouter(t, okHandler)

	for _, header := range []string{"", "Basic abc", "Bearer "} {
		w := serve(router, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		assert.Equal(t, "AUTH_004", errorCode(t, w))
	}
}

func TestSessionAuth_InvalidToken(t *testing.T) {
	router, m := newAuthRouter(t, okHandler)
	m.tokens.EXPECT().Validate("bad").Return(nil, errors.New("signature is invalid"))

	w := serve(router, "Bearer bad")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_004", errorCode(t, w))
}

func TestSessionAuth_RevokedToken(t *testing.T) {
	router, m := newAuthRouter(t, okHandler)
	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{WalletID: "W000000000001", TokenID: "jti-1"}, nil)
	m.denylist.EXPECT().IsRevoked(gomock.Any(), "jti-1").Return(true, nil)

	w := serve(router, "Bearer tok")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_004", errorCode(t, w))
}

func TestSessionAuth_DenylistDown(t *testing.T) {
	router, m := newAuthRouter(t, okHandler)
	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{WalletID: "W000000000001", TokenID: "jti-1"}, nil)
	m.denylist.EXPECT().IsRevoked(gomock.Any(), "jti-1").Return(false, errors.New("connection refused"))

	w := serve(router, "Bearer tok")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_001", errorCode(t, w))
}

func TestSessionAuth_WalletGone(t *testing.T) {
	router, m := newAuthRouter(t, okHandler)
	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{WalletID: "W000000000001", TokenID: "jti-1"}, nil)
	m.denylist.EXPECT().IsRevoked(gomock.Any(), "jti-1").Return(false, nil)
	m.wallets.EXPECT().RestoreSession(gomock.Any(), "W000000000001").Return(nil, apperror.ErrWalletNotFound())

	w := serve(router, "Bearer tok")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_004", errorCode(t, w))
}

func TestSessionAuth_Success(t *testing.T) {
	identity := &domain.Identity{WalletID: "W000000000001"}

	var active *domain.Identity
	var walletID string
	router, m := newAuthRouter(t, func(c *gin.Context) {
		sess, ok := service.SessionFrom(c.Request.Context())
		require.True(t, ok)
		active, _ = sess.Active()
		walletID = c.GetString(CtxWalletID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{WalletID: "W000000000001", TokenID: "jti-1"}, nil)
	m.denylist.EXPECT().IsRevoked(gomock.Any(), "jti-1").Return(false, nil)
	m.wallets.EXPECT().RestoreSession(gomock.Any(), "W000000000001").DoAndReturn(
		func(ctx context.Context, id string) (*domain.Identity, error) {
			sess, ok := service.SessionFrom(ctx)
			require.True(t, ok)
			sess.Set(identity)
			return identity, nil
		},
	)

	w := serve(router, "Bearer tok")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "W000000000001", walletID)
	assert.Equal(t, identity, active)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(response.RequestIDKey))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-123", w.Body.String())
}

func TestRecovery_PanicRecovered(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SYS_003", errorCode(t, w))
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger(zerolog.Nop()))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestMaxBodySize(t *testing.T) {
	router := gin.New()
	router.Use(MaxBodySize(16))
	router.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, apperror.Validation("Invalid request body"))
			return
		}
		c.JSON(http.StatusOK, body)
	})

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`)))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("declared length too large", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"0123456789abcdef"}`)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VAL_001", errorCode(t, w))
	})

	t.Run("unknown length capped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"0123456789abcdef"}`))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
