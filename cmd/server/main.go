package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/auth"
	"github.com/iliyamo/movie-reservation/internal/availability"
	"github.com/iliyamo/movie-reservation/internal/catalog"
	"github.com/iliyamo/movie-reservation/internal/config"
	"github.com/iliyamo/movie-reservation/internal/handler"
	"github.com/iliyamo/movie-reservation/internal/logger"
	"github.com/iliyamo/movie-reservation/internal/middleware"
	"github.com/iliyamo/movie-reservation/internal/payment"
	"github.com/iliyamo/movie-reservation/internal/reservation"
	"github.com/iliyamo/movie-reservation/internal/response"
	"github.com/iliyamo/movie-reservation/internal/router"
	"github.com/iliyamo/movie-reservation/internal/sweep"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}
	cfg := config.Load() // Load environment config

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("storage", zap.Error(err))
	}
	defer st.close()

	infra := connectInfra(ctx, zl)
	defer infra.close()

	authSvc := auth.NewService(st.users, st.tokens, auth.Config{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, zl)
	if err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		zl.Fatal("seed admin", zap.Error(err))
	}

	seats := availability.New(st.ledger, st.showtimes, infra.cache, infra.cacheCfg.SeatMapTTL, zl)
	booking := reservation.NewService(st.ledger, st.showtimes, infra.invalidator, zl)
	cat := catalog.NewService(catalog.Deps{
		Movies:    st.movies,
		Showtimes: st.showtimes,
		Theaters:  st.theaters,
		Ledger:    st.ledger,
	}, infra.cache, infra.invalidator, infra.cacheCfg.ListTTL, zl)

	payCfg := config.LoadPaymentConfig()
	gateway, err := newGateway(payCfg, zl)
	if err != nil {
		zl.Fatal("payment gateway", zap.Error(err))
	}
	notifier := buildNotifier(ctx, zl)
	defer notifier.close()
	payments := payment.NewReconciler(gateway, st.payments, st.ledger, st.users, notifier.Notifier, payCfg.Currency, zl)

	sweeper := sweep.New(booking, st.tokens, sweep.Config{HoldExpiry: cfg.HoldExpiry, Interval: cfg.SweepInterval}, zl)
	if err := sweeper.Start(); err != nil {
		zl.Fatal("sweeper", zap.Error(err))
	}
	defer func() {
		if err := sweeper.Stop(); err != nil {
			zl.Warn("sweeper stop", zap.Error(err))
		}
	}()

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HTTPErrorHandler = response.HTTPErrorHandler
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(zl))
	e.Use(middleware.OptionalJWT(cfg.JWTSecret))
	if rl := infra.rateCfg; rl.Enabled {
		e.Use(middleware.RateLimit(rl, infra.limiter))
	}

	router.Register(e, router.Handlers{
		Health:       handler.NewHealthHandler(healthChecks(st, infra)),
		Auth:         handler.NewAuthHandler(authSvc, cfg.RequestTimeout),
		Reservations: handler.NewReservationHandler(booking, seats, cfg.RequestTimeout),
		Payments:     handler.NewPaymentHandler(payments, cfg.RequestTimeout),
		Catalog:      handler.NewCatalogHandler(cat, seats, cfg.RequestTimeout),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("storage", cfg.StorageDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
}
