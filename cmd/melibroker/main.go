package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/ucanapp/melibroker/internal/pkg/cache"
	"github.com/ucanapp/melibroker/internal/pkg/database"
	"github.com/ucanapp/melibroker/internal/pkg/env"
	"github.com/ucanapp/melibroker/internal/pkg/logging"
	"github.com/ucanapp/melibroker/internal/pkg/router"
)

func main() {
	app := NewApplication()

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logging.GetLogger().Info("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.ShutdownWithContext(ctx)
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()

	zlog := logging.Setup()
	defer zlog.Sync()

	// OAuth credentials and the persistence connection are required; a
	// broker that cannot exchange or store tokens must not come up.
	env.MustGetEnv("CLIENT_ID")
	env.MustGetEnv("CLIENT_SECRET")
	env.MustGetEnv("REDIRECT_URI")
	env.MustGetEnv("FRONTEND_URL")

	database.SetupDatabase()
	cache.SetupCache()

	app := fiber.New(fiber.Config{
		AppName: "melibroker",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":     "Internal server error",
				"message":   err.Error(),
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		},
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app)

	zlog.Info("application initialized",
		zap.String("env", env.GetEnv("APP_ENV", "prod")),
		zap.String("frontend_url", env.GetEnv("FRONTEND_URL", "")),
	)

	return app
}
