package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gateway "github.com/goliatone/go-auth-gateway"
	"github.com/goliatone/go-auth-gateway/provider/credentials"
	"github.com/goliatone/go-auth-gateway/storage"
)

func main() {
	log := gateway.DefaultLogger()

	cfg, err := gateway.LoadConfig()
	if err != nil {
		log.Error("configuration error: %s", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBURL)
	if err != nil {
		log.Error("database error: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Error("database unreachable: %s", err)
		os.Exit(1)
	}

	if err := storage.Migrate(cfg.DBURL); err != nil {
		log.Error("migration error: %s", err)
		os.Exit(1)
	}

	if cfg.SigningKey == "" {
		log.Warn("GATEWAY_SIGNING_KEY not set, using an ephemeral key; pending verification tokens will not survive a restart")
	}

	provider := credentials.New(
		db,
		[]byte(cfg.SigningKey),
		cfg.VerifyTokenTTL,
		credentials.WithLogger(log),
		credentials.WithSessionTTL(cfg.SessionTTL),
	)

	registry := prometheus.NewRegistry()
	metrics := gateway.NewCollector(registry)

	app := fiber.New(fiber.Config{
		AppName: "go-auth-gateway",
		// Unknown failures answer with a generic 5xx: no stack traces, no
		// provider internals. Known failures never reach this handler.
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) && fiberErr.Code < fiber.StatusInternalServerError {
				return c.Status(fiberErr.Code).JSON(fiber.Map{
					"message": fiberErr.Message,
				})
			}

			log.Error("unhandled error", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Internal Server Error",
			})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.CORSOrigins, ","),
		AllowCredentials: true,
	}))

	app.Use(gateway.SessionResolver(provider,
		gateway.WithResolverLogger(log),
		gateway.WithResolverMetrics(metrics),
	))

	controller := gateway.NewController(provider,
		gateway.WithLogger(log),
		gateway.WithMetrics(metrics),
		gateway.WithDebug(cfg.Debug),
		gateway.WithVerifyRedirect(cfg.VerifyRedirect),
	)

	api := app.Group(cfg.BasePath)
	gateway.RegisterRoutes(api, controller)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("shutdown error: %s", err)
		}
	}()

	log.Info("gateway listening", "addr", cfg.Addr, "base_path", cfg.BasePath)
	if err := app.Listen(cfg.Addr); err != nil {
		log.Error("server error: %s", err)
		os.Exit(1)
	}
}
