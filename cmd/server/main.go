package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DustGate/dustgate/internal/chain"
	"github.com/DustGate/dustgate/internal/config"
	"github.com/DustGate/dustgate/internal/engine"
	"github.com/DustGate/dustgate/internal/handler"
	"github.com/DustGate/dustgate/internal/middleware"
	"github.com/DustGate/dustgate/internal/pkg/logger"
	"github.com/DustGate/dustgate/internal/pricefeed"
	"github.com/DustGate/dustgate/internal/repository"
	"github.com/DustGate/dustgate/internal/service"
	"github.com/DustGate/dustgate/internal/stream"
	"github.com/DustGate/dustgate/internal/token"
	"github.com/DustGate/dustgate/internal/venue/evm"
	"github.com/DustGate/dustgate/internal/venue/memory"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence
	// Replay + idempotency (Redis > Memory)
	var replayStore service.ReplayStore
	var idemStore middleware.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg.Redis)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			replayStore = repository.NewRedisReplayStore(redisClient, time.Duration(cfg.Redis.ReplayTTLSeconds)*time.Second)
			idemStore = repository.NewRedisIdempotencyStore(redisClient, time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
		}
	}
	if replayStore == nil {
		replayStore = repository.NewInMemReplayStore(time.Duration(cfg.Redis.ReplayTTLSeconds) * time.Second)
	}
	if idemStore == nil {
		idemStore = middleware.NewInMemIdempotencyStore()
	}

	// Records + metadata + destinations (Postgres > Memory)
	var recordStore service.RecordStore
	var metaStore token.SnapshotStore
	var destStore service.DestinationStore
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			recordStore = repository.NewPGRecordStore(db)
			metaStore = repository.NewPGMetadataStore(db)
			destStore = repository.NewPGDestinationStore(db)
		} else {
			logger.Error("⚠️ Failed to connect to DB, records will not survive restarts", "error", err)
		}
	}
	if recordStore == nil {
		recordStore = repository.NewInMemRecordStore()
	}

	// 3. Initialize Core Components
	caller, err := chain.NewCaller(cfg.Chain.RPCURL,
		time.Duration(cfg.Chain.ProbeTimeoutMs)*time.Millisecond, cfg.Chain.ProbeRetries)
	if err != nil {
		log.Fatalf("Failed to initialize chain caller: %v", err)
	}

	tokenCache := token.NewCache(caller, metaStore)
	if metaStore != nil {
		warmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := tokenCache.WarmFromStore(warmCtx); err != nil {
			logger.Warn("failed to warm token metadata cache", "error", err.Error())
		}
		cancel()
	}

	verifier, err := pricefeed.NewVerifier(cfg.Feed.ChainID, pricefeed.RequestTypeDustSweep, cfg.Engine.TrustedSigners)
	if err != nil {
		log.Fatalf("Failed to initialize packet verifier: %v", err)
	}

	paramsMgr, err := service.NewParamsManager(cfg.Engine)
	if err != nil {
		log.Fatalf("Failed to initialize engine parameters: %v", err)
	}
	if cfg.Server.Frozen {
		paramsMgr.SetFrozen(true)
		logger.Warn("Booting frozen; unfreeze over the admin API to accept settlements")
	}

	destBook := service.NewDestinationBook(destStore)
	if destStore != nil {
		warmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := destBook.WarmFromStore(warmCtx); err != nil {
			logger.Warn("failed to warm destination overrides", "error", err.Error())
		}
		cancel()
	}

	callerBook, err := service.NewCallerBook(cfg)
	if err != nil {
		log.Fatalf("Failed to load callers: %v", err)
	}

	// 4. Assemble the Settlement Path
	// One guard and one gate cover every value-moving entry point.
	operator := paramsMgr.Snapshot().Operator
	ledger := memory.NewLedger(operator)
	guard := &engine.Guard{}
	var gate sync.Mutex

	settleEngine := engine.New(verifier, tokenCache, ledger, destBook, guard)
	previewEngine := settleEngine
	if cfg.Chain.RPCURL != "" {
		previewEngine = engine.New(verifier, tokenCache, evm.NewVenue(caller, operator), destBook, guard)
		logger.Info("Previews read live chain state", "rpc", cfg.Chain.RPCURL)
	}

	hub := stream.NewHub()
	treasury := service.NewTreasury(ledger, guard, &gate, paramsMgr, recordStore)
	settlementSvc := service.NewSettlementService(settleEngine, previewEngine, verifier, paramsMgr, &gate,
		recordStore, replayStore, treasury, hub)
	adminSvc := service.NewAdminService(paramsMgr, tokenCache, verifier, treasury)

	// 5. Initialize Handlers
	settlementHandler := handler.NewSettlementHandler(settlementSvc)
	makerHandler := handler.NewMakerHandler(destBook)
	treasuryHandler := handler.NewTreasuryHandler(treasury)
	adminHandler := handler.NewAdminHandler(adminSvc)
	ledgerHandler := handler.NewLedgerHandler(ledger)

	// 6. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RequestMetrics())

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "dustgate"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.Freeze(paramsMgr))
	v1.Use(middleware.CallerAuth(cfg, callerBook))
	v1.Use(middleware.RateLimit(callerBook))
	v1.Use(middleware.Idempotency(idemStore))
	{
		v1.POST("/settlements", settlementHandler.Settle)
		v1.POST("/settlements/preview", settlementHandler.Preview)
		v1.GET("/settlements", settlementHandler.List)
		v1.PUT("/makers/destination", makerHandler.SetDestination)
		v1.GET("/makers/:address/destination", makerHandler.GetDestination)
		v1.GET("/stream", hub.HandleWS)
	}

	// Admin Routes
	admin := r.Group("/v1/admin")
	admin.Use(middleware.AdminOnly(cfg))
	{
		admin.GET("/params", adminHandler.GetParams)
		admin.PUT("/fee", adminHandler.SetFee)
		admin.PUT("/split", adminHandler.SetSplit)
		admin.PUT("/wallets", adminHandler.SetWallets)
		admin.PUT("/tiers", adminHandler.SetTierDiscount)
		admin.PUT("/tokens/tier", adminHandler.AssignTier)
		admin.PUT("/tokens/decimals", adminHandler.OverrideDecimals)
		admin.GET("/tokens", adminHandler.ListTokens)
		admin.PUT("/whitelist", adminHandler.SetWhitelist)
		admin.PUT("/whitelist/enabled", adminHandler.SetWhitelistEnabled)
		admin.PUT("/freeze", adminHandler.SetFrozen)
		admin.POST("/signers", adminHandler.TrustSigner)
		admin.DELETE("/signers/:address", adminHandler.RevokeSigner)
		admin.POST("/ledger/credit", ledgerHandler.Credit)
		admin.GET("/ledger/:address", ledgerHandler.Balance)
	}

	// Treasury Routes (admin-gated; payouts move real value)
	tr := r.Group("/v1/treasury")
	tr.Use(middleware.AdminOnly(cfg))
	{
		tr.GET("", treasuryHandler.Retained)
		tr.POST("/payout", treasuryHandler.Payout)
	}

	// 7. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 DustGate started", "port", cfg.Server.Port, "chain_id", cfg.Feed.ChainID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}
