package main

import (
	"fmt"
	"net/http"
	"os"

	"coreledger/internal/config"
	"coreledger/internal/database"
	"coreledger/internal/handlers"
	"coreledger/internal/logger"
	"coreledger/internal/middleware"
	"coreledger/internal/services"
	"coreledger/internal/validator"

	"github.com/gin-gonic/gin"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Initialize services. The registry and ledger share one lock table so
	// hierarchy changes and postings serialize on the same account locks.
	db := dbManager.DB()
	locks := services.NewLockTable()
	auditService := services.NewAuditService(db)
	registryService := services.NewRegistryService(db, locks, appConfig.LockTimeout)
	ledgerService := services.NewLedgerService(db, locks, auditService, appConfig.LockTimeout)
	balanceService := services.NewBalanceService(db, locks, auditService, appConfig.LockTimeout)

	accountHandler := handlers.NewAccountHandler(registryService, balanceService)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService, balanceService, auditService)

	validator.Register()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	accounts := v1.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.ListAccounts)
	accounts.GET("/:id", accountHandler.GetAccount)
	accounts.PUT("/:id", accountHandler.UpdateAccount)
	accounts.PUT("/:id/parent", accountHandler.Reparent)
	accounts.POST("/:id/deactivate", accountHandler.Deactivate)
	accounts.GET("/:id/balance", accountHandler.BalanceAsOf)

	entries := v1.Group("/entries")
	entries.POST("", ledgerHandler.PostEntry)
	entries.GET("/:id", ledgerHandler.GetEntry)
	entries.POST("/:id/reverse", ledgerHandler.ReverseEntry)

	audit := v1.Group("/audit")
	audit.GET("/records", ledgerHandler.RecordsSince)
	audit.POST("/rebuild", ledgerHandler.Rebuild)

	log.Infof("Starting coreledger server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
