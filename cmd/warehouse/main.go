package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/config"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/erp"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/hacienda"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/middleware"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/shared/mailer"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/shared/storage"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/handler"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/schema"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/service"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting warehouse service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to open database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.Location{},
		&entity.ItemLocation{},
		&entity.InventoryUnit{},
		&entity.Movement{},
		&entity.ConfigEntry{},
		&entity.DispatchLog{},
		&entity.DispatchContainer{},
		&entity.DispatchAssignment{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	if err := schema.Audit(db); err != nil {
		zapLogger.Fatal("Schema audit failed", zap.Error(err))
	}

	repos := repository.NewRepositories(db)

	ctx := context.Background()
	if err := repos.Config.SeedDefaults(ctx, map[string]string{
		entity.ConfigKeyUnitPrefix:  cfg.Warehouse.UnitCodePrefix,
		entity.ConfigKeyUnitCounter: "1",
		entity.ConfigKeyStrictScan:  strconv.FormatBool(cfg.Warehouse.StrictScanMode),
	}); err != nil {
		zapLogger.Fatal("Seeding defaults failed", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = initRedis(cfg.Redis)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zapLogger.Warn("Redis unreachable, caching disabled", zap.Error(err))
			redisClient = nil
		}
	}

	var docs *storage.DocumentStore
	if cfg.MinIO.Enabled {
		docs, err = storage.New(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		if err != nil {
			zapLogger.Warn("MinIO unreachable, document archive disabled", zap.Error(err))
			docs = nil
		}
	}

	erpClient := erp.NewClient(cfg.ERP.BaseURL, cfg.ERP.APIKey, cfg.ERP.Timeout)

	var haciendaClient *hacienda.Client
	if cfg.Hacienda.BaseURL != "" {
		haciendaClient = hacienda.NewClient(
			cfg.Hacienda.BaseURL,
			cfg.Hacienda.ExchangeRateURL,
			cfg.Hacienda.Timeout,
			cfg.Hacienda.CacheTTL,
			redisClient,
			zapLogger,
		)
	}

	var mail mailer.Sender
	if m := mailer.New(cfg.Mail.SendgridKey, cfg.Mail.FromName, cfg.Mail.FromAddress); m != nil {
		mail = m
	}

	services := service.NewServices(
		repos,
		erpClient,
		erpClient,
		mail,
		docs,
		service.SSENotifier{},
		service.Options{
			PathSeparator:  cfg.Warehouse.PathSeparator,
			UnitCodePrefix: cfg.Warehouse.UnitCodePrefix,
			StrictScanMode: cfg.Warehouse.StrictScanMode,
		},
		zapLogger,
	)

	handlers := handler.NewHandlers(services, haciendaClient)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL keeps readers unblocked during dispatch finalize writes.
	dsn := cfg.Path() + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWT.Secret))

	// SSE stream (token rides on the query string)
	api.GET("/sse/events", h.SSE.Stream)

	locations := api.Group("/locations")
	{
		locations.GET("", h.Location.List)
		locations.POST("", middleware.RequirePermission("warehouse:locations:write"), h.Location.Create)
		locations.POST("/racks", middleware.RequirePermission("warehouse:locations:write"), h.Location.CreateRack)
		locations.POST("/racks/clone", middleware.RequirePermission("warehouse:locations:write"), h.Location.CloneRack)
		locations.POST("/lock", h.Location.Lock)
		locations.POST("/release", h.Location.Release)
		locations.GET("/:id", h.Location.Get)
		locations.GET("/:id/children", h.Location.Children)
		locations.GET("/:id/path", h.Location.Path)
		locations.GET("/:id/units", h.Location.Units)
		locations.DELETE("/:id", middleware.RequirePermission("warehouse:locations:write"), h.Location.Delete)
		locations.POST("/:id/force-release", middleware.RequireRole("warehouse_admin"), h.Location.ForceRelease)
	}

	units := api.Group("/units")
	{
		units.POST("", middleware.RequirePermission("warehouse:units:write"), h.Inventory.CreateUnit)
		units.GET("/lookup", h.Inventory.Lookup)
		units.GET("/:id/label", h.Inventory.Label)
		units.POST("/:id/move", middleware.RequirePermission("warehouse:units:write"), h.Inventory.Move)
		units.DELETE("/:id", middleware.RequirePermission("warehouse:units:write"), h.Inventory.Delete)
	}

	api.POST("/item-locations", middleware.RequirePermission("warehouse:locations:write"), h.Inventory.Assign)
	api.DELETE("/item-locations/:id", middleware.RequirePermission("warehouse:locations:write"), h.Inventory.Unassign)
	api.GET("/items/:id/suggestions", h.Inventory.Suggestions)

	dispatch := api.Group("/dispatch")
	dispatch.Use(middleware.RequirePermission("warehouse:dispatch"))
	{
		dispatch.GET("/documents", h.Dispatch.SearchDocuments)
		dispatch.GET("/documents/:id/history", h.Dispatch.History)

		dispatch.POST("/session", h.Dispatch.StartSession)
		dispatch.GET("/session", h.Dispatch.GetSession)
		dispatch.DELETE("/session", h.Dispatch.AbandonSession)
		dispatch.POST("/session/scan", h.Dispatch.Scan)
		dispatch.POST("/session/confirm-all", h.Dispatch.ConfirmAll)
		dispatch.POST("/session/quantity", h.Dispatch.SetQuantity)
		dispatch.POST("/session/finalize", h.Dispatch.Finalize)
		dispatch.POST("/session/move", h.Dispatch.MoveToContainer)

		dispatch.POST("/containers", h.Dispatch.CreateContainer)
		dispatch.GET("/containers", h.Dispatch.ListContainers)
		dispatch.GET("/containers/:id", h.Dispatch.GetContainer)
		dispatch.GET("/containers/:id/progress", h.Dispatch.ContainerProgress)
		dispatch.DELETE("/containers/:id", h.Dispatch.DeleteContainer)
		dispatch.POST("/containers/:id/lock", h.Dispatch.LockContainer)
		dispatch.POST("/containers/:id/unlock", h.Dispatch.UnlockContainer)
		dispatch.POST("/containers/:id/force-unlock", middleware.RequireRole("warehouse_admin"), h.Dispatch.ForceUnlockContainer)
		dispatch.POST("/containers/:id/documents", h.Dispatch.AddDocument)

		dispatch.GET("/logs", h.Dispatch.ListLogs)
		dispatch.GET("/logs/export", h.Dispatch.ExportLogs)
	}

	receiving := api.Group("/receiving")
	receiving.Use(middleware.RequirePermission("warehouse:receiving"))
	{
		receiving.POST("/wizard", h.Receiving.Start)
		receiving.GET("/wizard", h.Receiving.State)
		receiving.DELETE("/wizard", h.Receiving.Cancel)
		receiving.POST("/wizard/product", h.Receiving.SelectProduct)
		receiving.POST("/wizard/location", h.Receiving.SelectLocation)
		receiving.POST("/wizard/save-default", h.Receiving.SetSaveAsDefault)
		receiving.POST("/wizard/confirm", h.Receiving.Confirm)
		receiving.POST("/wizard/back", h.Receiving.GoBack)
		receiving.GET("/wizard/label", h.Receiving.Label)
	}

	if h.Hacienda != nil {
		hac := api.Group("/hacienda")
		{
			hac.GET("/contribuyentes/:id", h.Hacienda.TaxStatus)
			hac.GET("/exoneraciones/:authNumber", h.Hacienda.Exemption)
			hac.GET("/tipo-cambio", h.Hacienda.ExchangeRate)
		}
	}
}
