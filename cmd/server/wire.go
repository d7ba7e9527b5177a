package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/movie-reservation/internal/cache"
	"github.com/iliyamo/movie-reservation/internal/config"
	"github.com/iliyamo/movie-reservation/internal/database"
	"github.com/iliyamo/movie-reservation/internal/handler"
	"github.com/iliyamo/movie-reservation/internal/notify"
	"github.com/iliyamo/movie-reservation/internal/payment"
	"github.com/iliyamo/movie-reservation/internal/queue"
	"github.com/iliyamo/movie-reservation/internal/ratelimit"
	"github.com/iliyamo/movie-reservation/internal/repository"
	"github.com/iliyamo/movie-reservation/internal/repository/memory"
)

// stores groups the persistence layer behind its interfaces.
type stores struct {
	db        *sql.DB // nil for the memory driver
	ledger    repository.ReservationLedger
	payments  repository.PaymentStore
	showtimes repository.ShowtimeStore
	movies    repository.MovieStore
	theaters  repository.TheaterStore
	users     repository.UserStore
	tokens    repository.TokenStore
}

func (s *stores) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (*stores, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		m := memory.New()
		return &stores{ledger: m, payments: m, showtimes: m, movies: m, theaters: m, users: m, tokens: m}, nil
	}
	db, err := database.Open(database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &stores{
		db:        db,
		ledger:    repository.NewReservationRepo(db),
		payments:  repository.NewPaymentRepo(db),
		showtimes: repository.NewShowtimeRepo(db),
		movies:    repository.NewMovieRepo(db),
		theaters:  repository.NewTheaterRepo(db),
		users:     repository.NewUserRepo(db),
		tokens:    repository.NewTokenRepo(db),
	}, nil
}

// infra holds the Redis-backed cache and rate limiter, or their in-process
// fallbacks when Redis is unreachable.
type infra struct {
	redis       *redis.Client
	cache       cache.Cache
	invalidator *cache.Invalidator
	cacheCfg    config.CacheConfig
	limiter     ratelimit.Limiter
	rateCfg     config.RateLimitConfig
}

func (i *infra) close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
}

func connectInfra(ctx context.Context, log *zap.Logger) *infra {
	i := &infra{cacheCfg: config.LoadCacheConfig(), rateCfg: config.LoadRateLimitConfig()}
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable, using in-process cache and limiter", zap.Error(err))
	} else {
		i.redis = rdb
	}

	params := ratelimit.Params{
		Capacity:       i.rateCfg.Capacity,
		RefillTokens:   i.rateCfg.RefillTokens,
		RefillInterval: i.rateCfg.RefillInterval,
		TTL:            i.rateCfg.TTL,
	}
	if i.redis != nil {
		i.limiter = ratelimit.NewRedisLimiter(i.redis, params)
	} else {
		i.limiter = ratelimit.NewMemoryLimiter(params)
	}

	switch {
	case !i.cacheCfg.Enabled:
	case i.redis != nil:
		i.cache = cache.NewRedisCache(i.redis, i.cacheCfg.Prefix)
	case i.cacheCfg.FallbackMemory:
		i.cache = cache.NewMemoryCache()
	}
	i.invalidator = cache.NewInvalidator(i.cache, log)
	return i
}

func newGateway(cfg config.PaymentConfig, log *zap.Logger) (payment.Gateway, error) {
	switch cfg.Gateway {
	case config.GatewayStripe:
		return payment.NewStripeGateway(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		})
	case config.GatewayFake:
		if cfg.StripeWebhookSecret == "" {
			return nil, errors.New("fake payment gateway requires STRIPE_WEBHOOK_SECRET")
		}
		log.Warn("using the fake payment gateway")
		return payment.NewFakeGateway(cfg.StripeWebhookSecret), nil
	}
	return nil, fmt.Errorf("unknown PAYMENT_GATEWAY %q", cfg.Gateway)
}

// notifier is the configured payment notifier plus whatever must be
// drained on shutdown.
type notifier struct {
	notify.Notifier
	async     *notify.Async
	publisher *queue.Publisher
	cancel    context.CancelFunc
	done      chan struct{}
}

func (n *notifier) close() {
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
	if n.async != nil {
		n.async.Wait()
	}
	if n.publisher != nil {
		_ = n.publisher.Close()
	}
}

func buildNotifier(ctx context.Context, log *zap.Logger) *notifier {
	mc := config.LoadMailConfig()
	var deliver notify.Notifier = notify.LogNotifier{Log: log}
	if mc.Configured() {
		deliver = notify.NewMailer(notify.MailConfig{
			Host:     mc.Host,
			Port:     mc.Port,
			Username: mc.Username,
			Password: mc.Password,
			From:     mc.From,
		}, log)
	}

	switch config.NotifyDriver(mc) {
	case config.NotifyQueue:
		qc := config.LoadQueueConfig()
		n := &notifier{publisher: queue.NewPublisher(qc.URL, qc.Queue, log)}
		n.async = notify.NewAsync(notify.QueueNotifier{Publisher: n.publisher}, 0, log)
		n.Notifier = n.async
		if qc.Consumer {
			cctx, cancel := context.WithCancel(ctx)
			n.cancel, n.done = cancel, make(chan struct{})
			go func() {
				defer close(n.done)
				_ = queue.Consume(cctx, qc.URL, qc.Queue, deliver.Notify, log)
			}()
		}
		return n
	case config.NotifyMail:
		a := notify.NewAsync(deliver, 0, log)
		return &notifier{Notifier: a, async: a}
	}
	return &notifier{Notifier: deliver}
}

func healthChecks(st *stores, i *infra) map[string]handler.Check {
	checks := map[string]handler.Check{}
	if st.db != nil {
		checks["mysql"] = st.db.PingContext
	}
	if i.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return i.redis.Ping(ctx).Err() }
	}
	return checks
}
