// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/alerts"
	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/costing"
	"stockledger/internal/domain/documents/bill"
	"stockledger/internal/domain/documents/correction"
	"stockledger/internal/domain/documents/invoice"
	"stockledger/internal/domain/documents/sale"
	"stockledger/internal/domain/guard"
	"stockledger/internal/domain/registers/cash"
	"stockledger/internal/domain/registers/stock"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/auth_repo"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/document_repo"
	"stockledger/internal/infrastructure/storage/postgres/register_repo"
	"stockledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	JWTService *auth.JWTService
	AuthConfig auth.ServiceConfig

	// Rules flags accounts in listing responses.
	Rules *alerts.RuleSet

	Version string
}

// NewRouter wires repositories, services and handlers into the Gin
// router. Every guarded mutation shares one protocol instance so all
// documents follow the same check, warn and force semantics.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints, no auth
	healthHandler := handlers.NewHealthHandler(cfg.Pool.Pool, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Storage layer
	txm := postgres.NewTxManager(cfg.Pool)
	stockRepo := register_repo.NewStockRepo(txm)
	cashRepo := register_repo.NewCashRepo(txm)
	itemRepo := catalog_repo.NewItemRepo(txm)
	saleRepo := document_repo.NewSaleRepo(txm)
	invoiceRepo := document_repo.NewInvoiceRepo(txm)
	billRepo := document_repo.NewBillRepo(txm)
	userRepo := auth_repo.NewUserRepo(txm)
	tokenRepo := auth_repo.NewTokenRepo(txm)

	// Domain layer
	stockService := stock.NewService(stockRepo)
	costingEngine := costing.NewEngine(stockRepo)
	cashService := cash.NewService(cashRepo, billRepo)
	itemService := item.NewService(itemRepo, stockService)

	audit, err := postgres.NewOverrideAudit(txm)
	if err != nil {
		// zstd encoder construction fails only on invalid options.
		panic(err)
	}
	protocol := guard.NewProtocol(txm, stockService, cashService, itemService, audit)

	saleService := sale.NewService(saleRepo, protocol, stockService, itemService)
	billService := bill.NewService(billRepo, protocol)
	invoiceService := invoice.NewService(invoiceRepo, protocol, stockService, cashService, billService)
	correctionService := correction.NewService(protocol)
	authService := auth.NewService(userRepo, tokenRepo, cfg.JWTService, cfg.AuthConfig)

	base := handlers.NewBaseHandler()

	// API v1
	api := router.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(base, authService)
		publicAuth := api.Group("/auth")
		protectedAuth := api.Group("/auth")
		protectedAuth.Use(middleware.Auth(cfg.JWTService))
		authHandler.RegisterRoutes(publicAuth, protectedAuth)

		protected := api.Group("")
		protected.Use(middleware.Auth(cfg.JWTService))

		handlers.NewItemHandler(base, itemService).
			RegisterRoutes(protected.Group("/catalog/items"))

		handlers.NewStockHandler(base, stockService, costingEngine, cfg.Rules).
			RegisterRoutes(protected.Group("/registers/stock"))
		handlers.NewCashHandler(base, cashService, cfg.Rules).
			RegisterRoutes(protected.Group("/registers/cash"))

		handlers.NewSaleHandler(base, saleService).
			RegisterRoutes(protected.Group("/documents/sales"))
		handlers.NewInvoiceHandler(base, invoiceService).
			RegisterRoutes(protected.Group("/documents/invoices"))
		handlers.NewBillHandler(base, billService).
			RegisterRoutes(protected.Group("/documents/bills"))
		handlers.NewCorrectionHandler(base, correctionService).
			RegisterRoutes(protected.Group("/documents/corrections"))
	}

	return router
}
