package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qr-wallet/config"
	httpHandler "qr-wallet/internal/adapter/http/handler"
	memStorage "qr-wallet/internal/adapter/storage/memory"
	pgStorage "qr-wallet/internal/adapter/storage/postgres"
	redisStorage "qr-wallet/internal/adapter/storage/redis"
	"qr-wallet/internal/core/ports"
	"qr-wallet/internal/service"
	"qr-wallet/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// repositories is the storage driver's set of port implementations.
type repositories struct {
	users        ports.UserRepository
	transactions ports.TransactionRepository
	instruments  ports.InstrumentRepository
	cashIns      ports.CashInRepository
	audit        ports.AuditRepository
	transactor   ports.DBTransactor
	health       ports.HealthChecker
	close        func()
}

func main() {
	// A missing .env is fine; the environment and config file still apply.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("QRW_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting QR wallet")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	nonceStore := redisStorage.NewNonceStore(rdb)
	voucherLock := redisStorage.NewVoucherLock(rdb, cfg.CashIn.VoucherLock, cfg.CashIn.VoucherLock)
	denylist := redisStorage.NewTokenDenylist(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	fees, err := service.NewFeeSchedule(cfg.CashIn.Fees)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid fee configuration")
	}
	cryptoSvc := service.NewEd25519CryptoService()
	pinHasher := service.NewArgon2PINHasher(cfg.Wallet.Argon2)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(repos.audit, logger.Component(log, "audit"))

	// Business services
	walletSvc := service.NewWalletService(repos.users, cryptoSvc, pinHasher, encSvc, auditSvc, cfg.Wallet, logger.Component(log, "wallet"))
	ledgerSvc := service.NewLedgerService(repos.users, repos.transactions, repos.transactor, cryptoSvc, nonceStore, auditSvc, cfg.Payment, logger.Component(log, "ledger"))
	paymentSvc := service.NewPaymentService(ledgerSvc, cryptoSvc, encSvc, logger.Component(log, "payment"))
	cashInLog := logger.Component(log, "cashin")
	cashInSvc := service.NewCashInService(service.CashInDeps{
		CashIns:     repos.cashIns,
		Instruments: repos.instruments,
		Transactor:  repos.transactor,
		Ledger:      ledgerSvc,
		Crypto:      cryptoSvc,
		Encryption:  encSvc,
		Agents:      service.NewSimulatedAgentNetwork(cfg.CashIn.AgentDelay, cashInLog),
		Banks:       service.NewSimulatedBankNetwork(cfg.CashIn.BankDelay, cashInLog),
		Locks:       voucherLock,
		Audit:       auditSvc,
		Fees:        fees,
	}, cfg.CashIn, cashInLog)

	sweeper := service.NewExpirySweeper(repos.cashIns, auditSvc, cfg.CashIn.SweepInterval, logger.Component(log, "sweeper"))
	go sweeper.Run(ctx)

	gin.SetMode(cfg.Server.Mode)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		PaymentSvc:     paymentSvc,
		CashInSvc:      cashInSvc,
		TokenSvc:       tokenSvc,
		TokenDenylist:  denylist,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{repos.health, redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.Storage.Driver == "memory" {
		store := memStorage.New()
		instruments := memStorage.NewInstrumentRepo(store)
		memStorage.SeedDemo(instruments, time.Now())
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		return &repositories{
			users:        memStorage.NewUserRepo(store),
			transactions: memStorage.NewTransactionRepo(store),
			instruments:  instruments,
			cashIns:      memStorage.NewCashInRepo(store),
			audit:        memStorage.NewAuditRepo(store),
			transactor:   memStorage.NewTransactor(store),
			health:       memStorage.NewHealthCheck(),
			close:        func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("PostgreSQL connected")
	return &repositories{
		users:        pgStorage.NewUserRepo(pool),
		transactions: pgStorage.NewTransactionRepo(pool),
		instruments:  pgStorage.NewInstrumentRepo(pool),
		cashIns:      pgStorage.NewCashInRepo(pool),
		audit:        pgStorage.NewAuditRepo(pool),
		transactor:   pgStorage.NewTransactor(pool),
		health:       pgStorage.NewHealthCheck(pool),
		close:        pool.Close,
	}, nil
}
