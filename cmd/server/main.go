package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/weddingphotos/server/docs"
	"github.com/weddingphotos/server/internal/config"
	"github.com/weddingphotos/server/internal/handlers"
	"github.com/weddingphotos/server/internal/medialibrary"
	custommw "github.com/weddingphotos/server/internal/middleware"
	"github.com/weddingphotos/server/internal/observability"
	"github.com/weddingphotos/server/internal/repository"
	"github.com/weddingphotos/server/internal/services"
)

// @title Wedding Photos API
// @version 1.0
// @description Guests upload photos and videos straight to a shared media library album.
// @BasePath /
// @securityDefinitions.apikey SessionAuth
// @in cookie
// @name session_token
func main() {
	logger := observability.GetLogger().WithField("component", "main")

	if err := run(); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	logger := observability.GetLogger().WithField("component", "main")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.Initialize(ctx, observability.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: handlers.Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		return err
	}

	var db *sql.DB
	system := "sqlite"
	if cfg.UsePostgres() {
		logger.Info("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
		system = "postgresql"
	} else {
		logger.Infof("Using SQLite database at %s", cfg.DatabasePath)
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	traced, err := observability.NewTraceDB(db, system)
	if err != nil {
		return err
	}

	businessMetrics, err := observability.NewBusinessMetrics()
	if err != nil {
		logger.WithError(err).Warnf("Business metrics disabled")
		businessMetrics = nil
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		return err
	}

	// Repositories
	userRepo := repository.NewUserRepository(traced)
	albumRepo := repository.NewAlbumRepository(traced)
	itemRepo := repository.NewMediaItemRepository(traced)
	linkRepo := repository.NewMagicLinkRepository(traced)
	sessionRepo := repository.NewWebSessionRepository(traced)

	library := medialibrary.NewClient(ctx, cfg.MediaLibrary)

	hub := services.NewWebSocketHub()
	go hub.Run(ctx)

	// Services
	authService := services.NewAuthService(userRepo, linkRepo, sessionRepo,
		services.NewSMTPService(cfg.SMTP), cfg.Auth, businessMetrics)
	go authService.RunCleanup(ctx, time.Hour)

	albumService := services.NewAlbumService(albumRepo, library, businessMetrics)
	mirror := services.NewMirrorSync(itemRepo, albumRepo, hub, businessMetrics, cfg.Upload.SyncTimeout())
	uploadService := services.NewUploadService(services.NewUploadValidator(cfg.Upload),
		albumService, albumRepo, library, mirror, hub, businessMetrics)
	galleryService := services.NewGalleryService(albumRepo, itemRepo, library, mirror, businessMetrics)

	authLimiter := custommw.NewIPRateLimiter(10*time.Second, 5)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := authLimiter.Prune(); n > 0 {
					logger.Debugf("Pruned %d idle rate limiters", n)
				}
			}
		}
	}()

	router := &handlers.Router{
		Health:      handlers.NewHealthHandler(db),
		Auth:        handlers.NewAuthHandler(authService, cfg.Auth),
		Uploads:     handlers.NewUploadHandler(uploadService),
		Gallery:     handlers.NewGalleryHandler(galleryService),
		WebSocket:   handlers.NewWebSocketHandler(hub),
		Sessions:    authService,
		CookieName:  cfg.Auth.CookieName,
		AuthLimiter: authLimiter,
		Middleware: []func(http.Handler) http.Handler{
			observability.TracingMiddleware(),
			observability.MetricsMiddleware(httpMetrics),
		},
	}

	srv := &http.Server{
		Addr:        cfg.ServerAddress,
		Handler:     router.Handler(),
		ReadTimeout: 30 * time.Second,
		// image proxying streams provider renditions
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Wedding photos server %s starting on %s", handlers.Version, cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warnf("Server forced to shutdown")
	}
	// finish mirror writes before the database closes
	mirror.Wait()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warnf("Telemetry shutdown failed")
	}

	logger.Info("Server stopped")
	return nil
}
