package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/protean-labs/protean/internal/handlers"
	"github.com/protean-labs/protean/internal/infrastructure/config"
	"github.com/protean-labs/protean/internal/infrastructure/database"
	"github.com/protean-labs/protean/internal/infrastructure/logging"
	"github.com/protean-labs/protean/internal/registry"
	"github.com/protean-labs/protean/internal/repositories/postgres"
	"github.com/protean-labs/protean/internal/services"
	"github.com/protean-labs/protean/internal/services/ddl"
	"github.com/protean-labs/protean/internal/services/relations"
	"github.com/protean-labs/protean/internal/services/routes"
	"github.com/protean-labs/protean/internal/services/schema"
	"github.com/protean-labs/protean/pkg/cache"
	"github.com/protean-labs/protean/pkg/cache/memorycache"
)

const (
	defaultEnv           = "dev"
	migrationsPathSuffix = "internal/infrastructure/database/migrations/postgres"
)

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	logger := logging.New(env)

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize config")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Connect to database
	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pg.Close()

	logger.Info().
		Str("user", cfg.Database.User).
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("connected to database")

	// Apply pending catalog migrations
	if path, err := migrationsPath(); err == nil {
		if err := pg.RunMigrations(path); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
	} else {
		logger.Warn().Err(err).Msg("skipping migrations")
	}

	// Initialize repositories
	definitionRepo := postgres.NewPostgresDefinitionRepository(pg.DB)
	routeRepo := postgres.NewPostgresRouteRepository(pg.DB)

	// Definition snapshot cache
	var snapshots cache.Cache
	if cfg.Cache.Enabled {
		snapshots, err = memorycache.New(&memorycache.Config{
			MaxSizeBytes:  int64(cfg.Cache.MaxSizeMB) * 1024 * 1024,
			DefaultTTL:    time.Duration(cfg.Cache.TTLHours) * time.Hour,
			EnableMetrics: true,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create snapshot cache")
		}
		defer snapshots.Close()
	}

	// Initialize services
	validator := schema.NewValidator(definitionRepo)
	resolver := relations.NewResolver(definitionRepo, logger)
	synchronizer := ddl.NewSynchronizer(logger)
	registrar := routes.NewRegistrar(routeRepo)
	typeRegistry := registry.New()

	entityService := services.NewEntityService(
		pg.DB,
		definitionRepo,
		validator,
		resolver,
		synchronizer,
		registrar,
		typeRegistry,
		snapshots,
		logger,
	)

	// HTTP surface
	recordHandler := handlers.NewRecordHandler()
	dispatcher := handlers.NewDispatcher(routeRepo, typeRegistry, recordHandler, logger)
	entityService.SetReloadNotifier(dispatcher)
	definitionHandler := handlers.NewDefinitionHandler(entityService)

	if env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestLogger(logger))

	router.GET("/up", func(c *gin.Context) {
		if err := pg.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "up"})
	})
	definitionHandler.Register(router)
	router.NoRoute(dispatcher.Handler())

	// Rebuild the type registry and route snapshot from the catalog so
	// previously generated entities are servable before the first request.
	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	if err := entityService.LoadAll(bootCtx); err != nil {
		cancelBoot()
		logger.Fatal().Err(err).Msg("failed to load type registry")
	}
	if err := dispatcher.Reload(bootCtx); err != nil {
		cancelBoot()
		logger.Fatal().Err(err).Msg("failed to load dynamic routes")
	}
	cancelBoot()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	logger.Info().Str("addr", addr).Msg("HTTP server listening")

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		logger.Fatal().Err(err).Msg("server error")
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown timeout exceeded, forcing stop")
			_ = server.Close()
		}

		if err := pg.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing database connection")
		}

		logger.Info().Msg("shutdown complete")
	}
}

func migrationsPath() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, migrationsPathSuffix), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
