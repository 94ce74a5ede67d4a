package handler

import (
	"qr-wallet/internal/adapter/http/middleware"
	redisStore "qr-wallet/internal/adapter/storage/redis"
	"qr-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	PaymentSvc     ports.PaymentService
	CashInSvc      ports.CashInService
	TokenSvc       ports.TokenService
	TokenDenylist  ports.TokenDenylist
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	var counter middleware.AttemptCounter
	if deps.RateLimitStore != nil {
		counter = deps.RateLimitStore
	}
	rl := middleware.NewRateLimiter(counter, middleware.DefaultRateLimitRules(), deps.Logger).Limit

	auth := middleware.SessionAuth(deps.TokenSvc, deps.TokenDenylist, deps.WalletSvc, deps.Logger)

	sessionHandler := NewSessionHandler(deps.WalletSvc, deps.TokenSvc, deps.TokenDenylist, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.TokenSvc)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	cashInHandler := NewCashInHandler(deps.CashInSvc)

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	v1.POST("/wallets", rl("wallets_create"), walletHandler.CreateWallet)
	v1.POST("/sessions", rl("sessions"), sessionHandler.Login)

	// --- Session-authenticated routes ---
	v1.DELETE("/sessions", auth, sessionHandler.Logout)

	wallets := v1.Group("/wallets/me", auth)
	{
		wallets.GET("/balance", walletHandler.GetBalance)
		wallets.POST("/sync", walletHandler.Sync)
	}

	payments := v1.Group("/payments", auth)
	{
		payments.POST("/qr", rl("payments"), paymentHandler.GenerateQR)
		payments.POST("/scan", rl("payments"), paymentHandler.Scan)
		payments.GET("/history", paymentHandler.History)
	}

	cashIns := v1.Group("/cashins", auth)
	{
		cashIns.POST("", rl("cashins"), cashInHandler.Create)
		cashIns.GET("", cashInHandler.List)
		cashIns.POST("/:id/process", rl("cashins"), cashInHandler.Process)
		cashIns.POST("/:id/complete", rl("cashins"), cashInHandler.Complete)
		cashIns.GET("/agents", cashInHandler.Agents)
		cashIns.GET("/vouchers", cashInHandler.Vouchers)
		cashIns.POST("/vouchers/validate", cashInHandler.ValidateVoucher)
		cashIns.GET("/bank-accounts", cashInHandler.BankAccounts)
	}

	return r
}
