package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"wallet-ledger.backend/internal/config"
	"wallet-ledger.backend/internal/domain/entities"
	"wallet-ledger.backend/internal/infrastructure/blockchain"
	"wallet-ledger.backend/internal/infrastructure/bus"
	"wallet-ledger.backend/internal/infrastructure/exchange"
	"wallet-ledger.backend/internal/infrastructure/jobs"
	"wallet-ledger.backend/internal/infrastructure/repositories"
	"wallet-ledger.backend/internal/interfaces/http/handlers"
	"wallet-ledger.backend/internal/interfaces/http/middleware"
	"wallet-ledger.backend/internal/usecases"
	"wallet-ledger.backend/pkg/logger"
	"wallet-ledger.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	newPublisher = func(cfg *config.BusConfig) (bus.Publisher, error) {
		return bus.NewKafkaPublisher(cfg)
	}
	newEVMGateway = func(rpcURL string, signer *blockchain.SignerClient, currency entities.Currency) (blockchain.Gateway, error) {
		return blockchain.NewEVMGateway(rpcURL, signer, currency)
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := loadCfg()

	// Initialize Logger
	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Initialize Redis
	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	// Set Gin mode
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database using GORM
	dsn := cfg.Database.URL()
	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("⚠️ Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("✅ Connected to PostgreSQL via GORM")
	}

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	txGroupRepo := repositories.NewTxGroupRepository(db)
	blockchainTxRepo := repositories.NewBlockchainTxRepository(db)
	pendingTxRepo := repositories.NewPendingBlockchainTxRepository(db)
	strangeTxRepo := repositories.NewStrangeBlockchainTxRepository(db)
	seenHashRepo := repositories.NewSeenHashRepository(db)
	kvRepo := repositories.NewKeyValueRepository(db)
	uow := repositories.NewUnitOfWork(db)

	// Initialize blockchain gateways. ETH reads go to a node over RPC;
	// BTC and all submissions go through the custody signer.
	signerClient := blockchain.NewSignerClient(cfg.Ledger.SignerURL)
	gateways := blockchain.NewRegistry()
	for _, cur := range cfg.Ledger.SupportedCurrencies {
		currency := entities.Currency(cur)
		rpcURL := cfg.Ledger.RPCEndpoints[cur]
		if currency == entities.CurrencyETH && rpcURL != "" {
			gateway, err := newEVMGateway(rpcURL, signerClient, currency)
			if err != nil {
				return fmt.Errorf("failed to dial %s node: %w", cur, err)
			}
			gateways.Register(currency, gateway)
			continue
		}
		gateways.Register(currency, blockchain.NewSignerGateway(signerClient))
	}

	// Initialize exchange desk client with the redis market-rate cache
	exchangeClient := exchange.NewCachedRates(
		exchange.NewHTTPClient(cfg.Ledger.ExchangeURL),
		cfg.Ledger.QuoteTTL,
	)

	// Initialize event bus publisher
	publisher, err := newPublisher(&cfg.Bus)
	if err != nil {
		return fmt.Errorf("failed to connect to kafka: %w", err)
	}
	defer publisher.Close()

	// Initialize usecases
	systemAccounts := usecases.NewSystemAccounts(&cfg.Ledger)
	ledgerUsecase := usecases.NewLedgerUsecase(uow, accountRepo, transactionRepo, txGroupRepo, pendingTxRepo, kvRepo, gateways, exchangeClient, publisher, systemAccounts, &cfg.Ledger)
	reconcilerUsecase := usecases.NewReconcilerUsecase(uow, ledgerUsecase, accountRepo, txGroupRepo, blockchainTxRepo, pendingTxRepo, strangeTxRepo, seenHashRepo, exchangeClient, publisher)
	deferredUsecase := usecases.NewDeferredUsecase(kvRepo, accountRepo, transactionRepo, ledgerUsecase)

	// Initialize handlers
	accountHandler := handlers.NewAccountHandler(ledgerUsecase, accountRepo, transactionRepo)
	groupHandler := handlers.NewGroupHandler(ledgerUsecase, txGroupRepo)
	deferredHandler := handlers.NewDeferredHandler(deferredUsecase)
	observationHandler := handlers.NewObservationHandler(reconcilerUsecase)
	opsHandler := handlers.NewOpsHandler(strangeTxRepo, kvRepo, ledgerUsecase)

	// Start background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedulerJob := jobs.NewDeferredSchedulerJob(deferredUsecase, cfg.Ledger.SchedulerTick)
	liquidityJob := jobs.NewLiquidityMonitorJob(accountRepo, kvRepo, publisher, systemAccounts, &cfg.Ledger)
	auditorJob := jobs.NewInvariantAuditorJob(accountRepo, transactionRepo, txGroupRepo, kvRepo, gateways, publisher, &cfg.Ledger)
	go schedulerJob.Start(ctx)
	go liquidityJob.Start(ctx)
	go auditorJob.Start(ctx)

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	registerHealthRoute(r)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		accountHandler:     accountHandler,
		groupHandler:       groupHandler,
		deferredHandler:    deferredHandler,
		observationHandler: observationHandler,
		opsHandler:         opsHandler,
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		schedulerJob.Stop()
		liquidityJob.Stop()
		auditorJob.Stop()
		cancel()
	}()

	// Start server
	log.Printf("🚀 Wallet Ledger starting on port %s", cfg.Server.Port)
	log.Printf("📚 API: http://localhost:%s/api/v1", cfg.Server.Port)
	log.Printf("❤️ Health: http://localhost:%s/health", cfg.Server.Port)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
