package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pledge-desk/internal/adapters/http/routes"
	"pledge-desk/internal/adapters/persistence/models"
	"pledge-desk/internal/adapters/persistence/repositories"
	"pledge-desk/internal/config"
	"pledge-desk/internal/core/services"
	"pledge-desk/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// @title Pledge Ledger Sandbox API
// @version 1.0
// @description Interest ledger the pledge desk talks to: summaries, schedules, history, fees and the five ledger mutations.

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	zl := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer zl.Sync() //nolint:errcheck

	if !cfg.EnvFileLoaded {
		zl.Info("⚠️ No .env file found, using environment variables")
	}

	repos, err := openStore(cfg, zl)
	if err != nil {
		zl.Fatal("❌ Failed to open ledger store", zap.String("store", cfg.Store), zap.Error(err))
	}
	defer config.CloseDatabase() //nolint:errcheck

	if cfg.Seed {
		if err := config.NewSeeder(repos.Users, repos.Pledges, zl).Run(context.Background()); err != nil {
			zl.Warn("⚠️ Failed to seed demo data", zap.Error(err))
		}
	}

	// Mark overdue periods daily
	overdue := services.NewOverdueService(repos.Pledges, cfg.Interest.PenaltyPerMillePerDay, zl)
	if err := overdue.Start(cfg.Cron.OverdueSpec); err != nil {
		zl.Fatal("❌ Failed to schedule overdue job", zap.String("spec", cfg.Cron.OverdueSpec), zap.Error(err))
	}
	defer overdue.Stop()

	app := routes.NewApp(cfg, repos, zl)

	// Graceful shutdown
	go gracefulShutdown(app, zl)

	zl.Info("🚀 Server starting",
		zap.String("port", cfg.Port),
		zap.String("mode", cfg.AppMode),
		zap.String("store", cfg.Store),
	)
	if err := app.Listen(":" + cfg.Port); err != nil {
		zl.Fatal("❌ Failed to start server", zap.Error(err))
	}
}

// openStore picks the repositories behind the sandbox
func openStore(cfg *config.Config, zl *zap.Logger) (routes.Repositories, error) {
	if cfg.UsesMemoryStore() {
		zl.Info("🧪 Using in-memory ledger store")
		return routes.Repositories{
			Users:   repositories.NewMemoryUserRepository(),
			Pledges: repositories.NewMemoryPledgeRepository(),
		}, nil
	}

	db, err := config.ConnectDatabase(cfg, zl)
	if err != nil {
		return routes.Repositories{}, err
	}

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		return routes.Repositories{}, err
	}
	zl.Info("✅ Database migration completed")

	return routes.Repositories{
		Users:   repositories.NewUserRepository(db),
		Pledges: repositories.NewPledgeRepository(db),
	}, nil
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App, zl *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		zl.Error("❌ Error during shutdown", zap.Error(err))
	}
	zl.Info("✅ Server stopped gracefully")
}
