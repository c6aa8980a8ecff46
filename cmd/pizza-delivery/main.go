package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bhavik262/pizza-delivery/internal/admin"
	"github.com/bhavik262/pizza-delivery/internal/auth"
	"github.com/bhavik262/pizza-delivery/internal/catalog"
	"github.com/bhavik262/pizza-delivery/internal/config"
	"github.com/bhavik262/pizza-delivery/internal/db"
	httpHandler "github.com/bhavik262/pizza-delivery/internal/handler/http"
	"github.com/bhavik262/pizza-delivery/internal/inventory"
	"github.com/bhavik262/pizza-delivery/internal/notify"
	"github.com/bhavik262/pizza-delivery/internal/order"
	"github.com/bhavik262/pizza-delivery/internal/payment"
	"github.com/bhavik262/pizza-delivery/internal/pricing"
	"github.com/bhavik262/pizza-delivery/internal/realtime"
	"github.com/bhavik262/pizza-delivery/internal/seed"
	"github.com/bhavik262/pizza-delivery/internal/user"
)

const shutdownTimeout = 15 * time.Second

func setupLogger(cfg config.AppConfig) {
	zerolog.TimeFieldFormat = time.RFC3339
	var logger zerolog.Logger
	if cfg.Production() {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = logger.With().Timestamp().Str("service", "pizza-delivery").Logger()
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.App)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("pizza-delivery stopped with error")
	}
	log.Info().Msg("pizza-delivery stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		return err
	}
	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	sender, err := notify.NewSender(cfg.SMTP)
	if err != nil {
		return err
	}
	mailer := notify.NewDispatcher(sender, nil, cfg.Admin.Email, cfg.App.FrontendURL)
	defer mailer.Wait()

	hub := realtime.NewHub(cfg.App.FrontendURL)

	tokens := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	limiter := auth.NewLimiter(cfg.RateLimit.PasswordResetAttempts, cfg.RateLimit.PasswordResetWindow)
	userSvc := user.NewService(user.NewRepository(pg.Pool), tokens, limiter, mailer)
	mailer.SetUsers(userSvc)

	catalogRepo := catalog.NewRepository(pg.Pool)
	catalogSvc := catalog.NewService(catalogRepo)
	inventorySvc := inventory.NewService(inventory.NewRepository(pg.Pool), mailer, hub)
	engine := pricing.NewEngine(cfg.Pricing.TaxRate, cfg.Pricing.DeliveryFee)

	gateway := payment.NewRazorpay(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	if !gateway.Configured() {
		log.Warn().Msg("Razorpay keys not configured, online payments are disabled")
	}

	orderSvc := order.NewService(order.NewRepository(pg.Pool), order.Deps{
		Catalog:     catalogSvc,
		Pricing:     engine,
		Gateway:     gateway,
		Stock:       inventorySvc,
		Notifier:    mailer,
		Broadcaster: hub,
		Currency:    cfg.Pricing.Currency,
	})
	dashboard := admin.NewService(orderSvc, inventorySvc, catalogSvc)

	if err := userSvc.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return err
	}
	if cfg.App.SeedFile != "" {
		if err := seedCatalog(ctx, cfg.App.SeedFile, catalogSvc, inventorySvc); err != nil {
			log.Warn().Err(err).Str("file", cfg.App.SeedFile).Msg("Failed to seed catalog")
		}
	}

	router := httpHandler.NewRouter(httpHandler.RouterDeps{
		Users:       userSvc,
		Catalog:     catalogSvc,
		Pricing:     engine,
		Orders:      orderSvc,
		Inventory:   inventorySvc,
		Dashboard:   dashboard,
		Hub:         hub,
		FrontendURL: cfg.App.FrontendURL,
		Production:  cfg.App.Production(),
		TrustProxy:  cfg.App.TrustProxy,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return limiter.Run(gctx, cfg.RateLimit.SweepInterval)
	})
	g.Go(func() error {
		return inventory.RunScanner(gctx, inventorySvc, cfg.Inventory.LowStockScanInterval)
	})
	g.Go(func() error {
		return hub.Run(gctx)
	})

	return g.Wait()
}

func seedCatalog(ctx context.Context, path string, cat catalog.Service, inv inventory.Service) error {
	data, err := seed.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("file", path).Msg("No seed file, skipping")
			return nil
		}
		return err
	}
	_, err = seed.Apply(ctx, data, cat, inv)
	return err
}
