package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftware/driftbox/internal/cleanup"
	"github.com/driftware/driftbox/internal/config"
	"github.com/driftware/driftbox/internal/database"
	"github.com/driftware/driftbox/internal/errorlog"
	"github.com/driftware/driftbox/internal/handlers"
	"github.com/driftware/driftbox/internal/mailer"
	"github.com/driftware/driftbox/internal/metrics"
	"github.com/driftware/driftbox/internal/middleware"
	"github.com/driftware/driftbox/internal/ratelimit"
	"github.com/driftware/driftbox/internal/static"
	"github.com/driftware/driftbox/internal/storage"
	"github.com/driftware/driftbox/internal/storage/filesystem"
	"github.com/driftware/driftbox/internal/storage/s3"
)

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting driftbox",
		"port", cfg.Port,
		"storage_backend", cfg.StorageBackend,
		"max_file_size", cfg.MaxFileSize,
		"admin_enabled", cfg.AdminUsername != "",
		"email_enabled", cfg.EmailConfigured(),
	)

	db, err := database.Initialize(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("database initialized", "path", cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store storage.Backend
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		store, err = s3.NewS3Storage(ctx, s3.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			PathStyle:       cfg.S3PathStyle,
		})
	default:
		store, err = filesystem.NewFilesystemStorage(cfg.UploadDir, cfg.PublicURL, cfg.StorageSecret)
	}
	if err != nil {
		slog.Error("failed to initialize storage backend", "error", err)
		os.Exit(1)
	}

	errLog := errorlog.New(db)
	limiter := ratelimit.New(db,
		cfg.RateLimitUploads,
		time.Duration(cfg.RateLimitWindowHrs)*time.Hour,
		time.Duration(cfg.TempBanDays)*24*time.Hour,
	)
	sweeper := cleanup.NewSweeper(db, store, errLog)
	mail := mailer.New(cfg.ResendAPIKey, cfg.EmailFrom)

	prometheus.MustRegister(metrics.NewDatabaseMetricsCollector(db))

	startTime := time.Now()
	mux := http.NewServeMux()

	ipBan := middleware.IPBanMiddleware(db)
	optionalAuth := middleware.OptionalAuth(db)
	requireAuth := middleware.RequireAuth(db)
	requireAdmin := middleware.RequireAdmin(db, cfg.AdminUsername)

	// Upload flow: ban check on the way in, session optional
	mux.Handle("/api/files/get-upload-url",
		ipBan(optionalAuth(handlers.GetUploadURLHandler(db, cfg, store, limiter, errLog))))
	mux.Handle("/api/files/finalize-upload",
		ipBan(optionalAuth(handlers.FinalizeUploadHandler(db, cfg, store, limiter, errLog))))

	// Info, download, owner delete
	mux.Handle("/api/files/", optionalAuth(handlers.FilesHandler(db, cfg, store, errLog)))

	// Direct object PUT, only meaningful with the filesystem backend
	if cfg.StorageBackend == config.StorageBackendFilesystem {
		mux.Handle("/api/storage/upload/", ipBan(handlers.StorageUploadHandler(cfg, store)))
	}

	// Accounts
	mux.HandleFunc("/api/auth/signup", handlers.SignupHandler(db, cfg, mail))
	mux.HandleFunc("/api/auth/signin", handlers.SigninHandler(db, cfg))
	mux.HandleFunc("/api/auth/signout", handlers.SignoutHandler(db))
	mux.Handle("/api/auth/me", requireAuth(handlers.MeHandler()))
	mux.Handle("/api/auth/verify", requireAuth(handlers.VerifyEmailHandler(db)))
	mux.Handle("/api/auth/resend-code", requireAuth(handlers.ResendCodeHandler(db, cfg, mail)))
	mux.HandleFunc("/api/auth/request-reset", handlers.RequestResetHandler(db, cfg, mail))
	mux.HandleFunc("/api/auth/reset-password", handlers.ResetPasswordHandler(db))
	mux.Handle("/api/auth/change-password", requireAuth(handlers.ChangePasswordHandler(db)))
	mux.Handle("/api/auth/change-email", requireAuth(handlers.ChangeEmailHandler(db, mail)))
	mux.Handle("/api/auth/account", requireAuth(handlers.DeleteAccountHandler(db, store, errLog)))

	mux.Handle("/api/user/files", requireAuth(handlers.UserFilesHandler(db, cfg)))

	// Admin
	mux.Handle("/api/admin/users", requireAdmin(handlers.AdminUsersHandler(db, store)))
	mux.Handle("/api/admin/users/", requireAdmin(handlers.AdminUsersHandler(db, store)))
	mux.Handle("/api/admin/files", requireAdmin(handlers.AdminFilesHandler(db, store)))
	mux.Handle("/api/admin/files/", requireAdmin(handlers.AdminFilesHandler(db, store)))
	mux.Handle("/api/admin/ban", requireAdmin(handlers.AdminBanHandler(db)))
	mux.Handle("/api/admin/errors", requireAdmin(handlers.AdminErrorsHandler(db)))
	mux.Handle("/api/admin/errors/", requireAdmin(handlers.AdminErrorsHandler(db)))

	// Operational surface
	mux.HandleFunc("/api/ban-status", handlers.BanStatusHandler(db))
	mux.HandleFunc("/api/stats", handlers.StatsHandler(db))
	mux.HandleFunc("/api/cleanup", handlers.CleanupHandler(cfg, sweeper))
	mux.HandleFunc("/health", handlers.HealthHandler(db, store, startTime))
	mux.Handle("/metrics", promhttp.Handler())

	// Web UI and share-link landing pages
	mux.Handle("/", handlers.ShareHandler(db, cfg, static.Handler()))

	// Middleware order: Recovery -> Logging -> Security -> Metrics -> handlers
	handler := middleware.RecoveryMiddleware(errLog)(
		middleware.LoggingMiddleware(
			middleware.SecurityHeadersMiddleware(
				metrics.Middleware(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Expired sessions are swept in the background; everything else is
	// reclaimed by the externally scheduled cleanup trigger.
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := database.CleanupExpiredSessions(db); err != nil {
					slog.Error("failed to cleanup expired sessions", "error", err)
				}
			}
		}
	}()

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		slog.Info("server shutdown complete")
	}
}
