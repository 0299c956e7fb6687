package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/tmercer/authpulse/internal/auth"
	"github.com/tmercer/authpulse/internal/handlers"
	"github.com/tmercer/authpulse/internal/middleware"
	"github.com/tmercer/authpulse/internal/repositories"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	dashboardHandler *handlers.DashboardHandler,
	chartHandler *handlers.ChartHandler,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
	revokeRepo *repositories.TokenRevocationRepository,
) {
	// Rate limiting config for auth endpoints
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)
		r.Post("/auth/verify-email", authHandler.VerifyEmail)
		r.Post("/auth/resend-verification", authHandler.ResendVerification)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/reset-password", authHandler.ResetPassword)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddlewareWithRevocation(tokenManager, revokeRepo))

		r.Post("/auth/logout", authHandler.Logout)

		// Profile and per-user resources; resource-level access control
		// (self or staff) happens inside the handlers
		r.Get("/users/me", userHandler.Me)
		r.Get("/users/{id}", userHandler.GetUser)
		r.Put("/users/{id}", userHandler.UpdateUser)
		r.Delete("/users/{id}", userHandler.DeleteUser)

		// Analytics: per-user statistics and history
		r.Get("/users/{id}/stats", dashboardHandler.UserStats)
		r.Get("/users/{id}/activity", dashboardHandler.UserActivity)

		// Charts; cohort filters are validated against the requester's
		// role by the chart service
		r.Get("/charts/login-trends", chartHandler.LoginTrends)
		r.Get("/charts/login-comparison", chartHandler.LoginComparison)
		r.Get("/charts/login-distribution", chartHandler.LoginDistribution)

		// Batch statistics; non-elevated filters (self) work for any user
		r.Get("/dashboard/stats", dashboardHandler.BatchStats)

		// Staff-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireStaff(userRepo))
			r.Get("/users", userHandler.ListUsers)
			r.Post("/users", userHandler.CreateUser)
			r.Get("/dashboard", dashboardHandler.AdminDashboard)
			r.Get("/charts/admin", chartHandler.AdminCharts)
		})
	})
}
