package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tmercer/authpulse/internal/auth"
	"github.com/tmercer/authpulse/internal/background"
	"github.com/tmercer/authpulse/internal/config"
	"github.com/tmercer/authpulse/internal/database"
	"github.com/tmercer/authpulse/internal/handlers"
	middlewareCustom "github.com/tmercer/authpulse/internal/middleware"
	"github.com/tmercer/authpulse/internal/models"
	"github.com/tmercer/authpulse/internal/repositories"
	"github.com/tmercer/authpulse/internal/routes"
	"github.com/tmercer/authpulse/internal/services"
	pkgauth "github.com/tmercer/authpulse/pkg/auth"
	pkghttp "github.com/tmercer/authpulse/pkg/http"
	pkglogger "github.com/tmercer/authpulse/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	eventRepo := repositories.NewLoginEventRepository(db)
	revokeRepo := repositories.NewTokenRevocationRepository(db)
	tokenRepo := repositories.NewVerificationTokenRepository(db)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Login event recorder and counter reconciliation
	recorder := services.NewRecorderService(db, eventRepo, userRepo, logger)
	reconcileManager := background.NewReconcileManager(
		userRepo, eventRepo, revokeRepo, tokenRepo, logger, cfg.Analytics.ReconcileInterval)

	// Rate limiting over the recorded login events
	rateLimitService := services.NewRateLimitService(eventRepo, services.RateLimitConfig{
		MaxFailedPerIdentifier: cfg.Auth.MaxFailedPerIdentifier,
		MaxFailedPerIP:         cfg.Auth.MaxFailedPerIP,
		LookbackWindow:         cfg.Auth.FailedAttemptWindow,
	}, logger)

	// Email delivery: SES when enabled, log-only otherwise
	var emailService services.EmailService
	if cfg.Email.Enabled {
		emailService, err = services.NewAWSSESEmailService(
			cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.BaseURL, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		emailService = services.NewLogEmailService(logger)
	}

	emailVerificationService := services.NewEmailVerificationService(
		tokenRepo, userRepo, emailService, logger, cfg.Email.TokenExpiry)
	passwordResetService := services.NewPasswordResetService(
		tokenRepo, userRepo, emailService, logger, auditLogger, time.Hour)

	// Initialize services
	userService := services.NewUserService(userRepo, logger)
	authService := services.NewAuthService(
		userRepo, tokenManager, revokeRepo, recorder, rateLimitService,
		logger, auditLogger, cfg.Email.Enabled)
	dashboardService := services.NewDashboardService(userRepo, eventRepo, logger)
	chartService := services.NewChartService(userRepo, eventRepo, logger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{}
	authHandler := handlers.NewAuthHandler(authService, emailVerificationService, passwordResetService, ipConfig)
	userHandler := handlers.NewUserHandler(userService, userRepo)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, userRepo)
	chartHandler := handlers.NewChartHandler(chartService, userRepo)

	// Bootstrap first admin user if configured
	bootstrapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootstrapCtx, userRepo, &cfg.Auth, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	corsConfig := middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, userHandler, dashboardHandler, chartHandler,
		tokenManager, userRepo, revokeRepo)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start background reconciliation
	reconcileCtx, reconcileCancel := context.WithCancel(context.Background())
	defer reconcileCancel()

	go reconcileManager.Start(reconcileCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	reconcileCancel()
	reconcileManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first staff user if admin credentials are configured
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, cfg *config.AuthConfig, logger *slog.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		logger.Info("no admin credentials configured, skipping admin bootstrap")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	username := cfg.AdminUsername
	if username == "" {
		username = "admin"
	}

	admin := &models.User{
		Username:      username,
		Email:         cfg.AdminEmail,
		PasswordHash:  hashedPassword,
		IsActive:      true,
		IsStaff:       true,
		IsSuperuser:   true,
		EmailVerified: true,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", cfg.AdminEmail))
	return nil
}
