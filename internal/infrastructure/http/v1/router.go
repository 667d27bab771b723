// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"tradeledger/internal/domain/inventory"
	"tradeledger/internal/domain/order"
	"tradeledger/internal/domain/payment"
	"tradeledger/internal/domain/settlement"
	"tradeledger/internal/domain/transfer"
	"tradeledger/internal/infrastructure/http/v1/handlers"
	"tradeledger/internal/infrastructure/http/v1/middleware"
	"tradeledger/internal/infrastructure/metrics"
	"tradeledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// JWTValidator guards /api/v1. Nil disables authentication (local development only).
	JWTValidator middleware.JWTValidator

	// Metrics serves /metrics and records requests. Optional.
	Metrics *metrics.Metrics

	// DB is pinged by the readiness probe. Nil when running in memory.
	DB      handlers.Pinger
	Version string

	Settlement *settlement.Engine
	Payments   *payment.Engine
	Transfers  *transfer.Engine
	Inventory  *inventory.Ledger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	var (
		requests   middleware.RequestRecorder
		operations handlers.OperationRecorder
	)
	if cfg.Metrics != nil {
		requests = cfg.Metrics
		operations = cfg.Metrics
	}

	router := gin.New()

	// ErrorHandler wraps Recovery so a recovered panic still gets a JSON body.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger, requests))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version)
	router.GET("/health", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)
	router.GET("/health/ready", healthHandler.Ready)

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := router.Group("/api/v1")
	if cfg.JWTValidator != nil {
		api.Use(middleware.Auth(cfg.JWTValidator))
	}

	base := handlers.NewBaseHandler(operations)
	registerOrderRoutes(api, base, cfg.Settlement)
	registerPaymentRoutes(api, base, cfg.Payments)
	registerTransferRoutes(api, base, cfg.Transfers)
	registerInventoryRoutes(api, base, cfg.Inventory)

	return router
}

func registerOrderRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, engine *settlement.Engine) {
	if engine == nil {
		return
	}
	for _, kind := range []order.Kind{order.KindSale, order.KindPurchase} {
		h := handlers.NewOrderHandler(base, engine, kind)
		plural := "/" + string(kind) + "s"

		rg.POST("/stores/:store_id"+plural, h.Create)
		rg.GET("/stores/:store_id"+plural, h.List)
		rg.GET("/stores/:store_id/"+string(order.DirectionOf(kind).ObligationKind())+"s", h.Obligations)
		group := rg.Group(plural)
		group.GET("/:id", h.Get)
		group.PUT("/:id", h.Update)
		group.DELETE("/:id", h.Delete)
	}
}

func registerPaymentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, engine *payment.Engine) {
	if engine == nil {
		return
	}
	h := handlers.NewPaymentHandler(base, engine)
	group := rg.Group("/payments")
	group.POST("", h.Apply)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)

	rg.GET("/stores/:store_id/payments-in", h.ListByStore(order.PaymentIn))
	rg.GET("/stores/:store_id/payments-out", h.ListByStore(order.PaymentOut))
	rg.GET("/sales/:id/payments", h.ListByOrder(order.KindSale))
	rg.GET("/purchases/:id/payments", h.ListByOrder(order.KindPurchase))
}

func registerTransferRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, engine *transfer.Engine) {
	if engine == nil {
		return
	}
	h := handlers.NewTransferHandler(base, engine)
	group := rg.Group("/stores/:store_id/transfers")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Cancel)
}

func registerInventoryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, ledger *inventory.Ledger) {
	if ledger == nil {
		return
	}
	h := handlers.NewInventoryHandler(base, ledger)
	group := rg.Group("/stores/:store_id/inventory")
	group.GET("", h.List)
	group.GET("/:product_id", h.Get)
	group.PUT("/:product_id/threshold", h.SetThreshold)
}
