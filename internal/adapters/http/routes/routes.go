package routes

import (
	"pledge-desk/internal/adapters/http/handlers"
	"pledge-desk/internal/adapters/http/middleware"
	"pledge-desk/internal/adapters/persistence/repositories"
	"pledge-desk/internal/config"
	"pledge-desk/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Repositories is the storage the sandbox ledger runs on
type Repositories struct {
	Users   repositories.UserRepository
	Pledges repositories.PledgeRepository
}

// NewApp builds the fiber application with middleware and routes
func NewApp(cfg *config.Config, repos Repositories, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Pledge Ledger Sandbox",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	middleware.Setup(app, cfg)
	Setup(app, cfg, repos, log)
	return app
}

// Setup configures all routes for the application
func Setup(app *fiber.App, cfg *config.Config, repos Repositories, log *zap.Logger) {
	// Initialize services
	authService := services.NewAuthService(repos.Users, cfg.JWT.Secret, cfg.JWT.AccessTokenMins, log)
	userService := services.NewUserService(repos.Users, log)
	interestService := services.NewInterestService(repos.Pledges, log)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg)
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	interestHandler := handlers.NewInterestHandler(interestService, log)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1 group
	apiV1 := app.Group("/api/v1", middleware.NoCacheHeaders())
	setupAPIV1Routes(apiV1, healthHandler, authHandler, userHandler, interestHandler, cfg)
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(
	router fiber.Router,
	healthHandler *handlers.HealthHandler,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	interestHandler *handlers.InterestHandler,
	cfg *config.Config,
) {
	// API Info
	router.Get("/", healthHandler.APIInfo)

	// Auth routes
	authRoutes := router.Group("/auth")
	setupAuthRoutes(authRoutes, authHandler, cfg)

	auth := middleware.AuthMiddleware(cfg.JWT.Secret)

	// Staff management (manager only)
	userRoutes := router.Group("/users", auth, middleware.ManagerOnly())
	setupUserRoutes(userRoutes, userHandler)

	// Own profile
	router.Put("/profile/password", auth, userHandler.ChangePassword)

	// Interest ledger routes (protected)
	interestRoutes := router.Group("/interests", auth)
	setupInterestRoutes(interestRoutes, interestHandler)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, h *handlers.AuthHandler, cfg *config.Config) {
	router.Post("/login", middleware.AuthRateLimiter(), h.Login)

	auth := middleware.AuthMiddleware(cfg.JWT.Secret)
	router.Get("/me", auth, h.Me)
	router.Post("/users", auth, middleware.ManagerOnly(), h.CreateUser)
}

// setupUserRoutes configures staff management routes
func setupUserRoutes(router fiber.Router, h *handlers.UserHandler) {
	router.Get("/", h.ListUsers)
	router.Get("/:id", h.GetUser)
	router.Put("/:id", h.UpdateUser)
}

// setupInterestRoutes configures the per-pledge ledger routes
func setupInterestRoutes(router fiber.Router, h *handlers.InterestHandler) {
	// Reads
	router.Get("/:id/summary", h.GetSummary)
	router.Get("/:id/contract", h.GetContract)
	router.Get("/:id/details", h.GetPeriodDetails)
	router.Get("/:id/payment-history", h.GetPaymentHistory)
	router.Get("/:id/one-time-fees", h.GetOneTimeFees)
	router.Get("/:id/export/:tab", h.Export)

	// Mutations
	router.Post("/:id/settle", h.Settle)
	router.Post("/:id/extend", h.ExtendTerm)
	router.Post("/:id/partial-principal", h.PartialPrincipal)
	router.Post("/:id/additional-loan", h.AdditionalLoan)
	router.Post("/:id/pay-interest", h.PayInterest)
}
