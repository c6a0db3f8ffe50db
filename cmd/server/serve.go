package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/patient-records/internal/breach"
	"github.com/iliyamo/patient-records/internal/config"
	"github.com/iliyamo/patient-records/internal/handler"
	"github.com/iliyamo/patient-records/internal/queue"
	"github.com/iliyamo/patient-records/internal/router"
	"github.com/iliyamo/patient-records/internal/service"
	"github.com/iliyamo/patient-records/internal/utils"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the audit consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

// redisPinger adapts the Redis client to handler.Pinger.
type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func runServer(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb == nil {
		logger.Warn().Str("addr", cfg.Redis.Addr).Msg("redis unavailable, rate limiting and breach cache disabled")
	} else {
		defer rdb.Close()
	}

	hasher, err := utils.NewPasswordHasher(cfg.AuthSalt)
	if err != nil {
		return err
	}
	tokens := utils.NewTokenIssuer(cfg.JWTKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	leaks := breach.NewChecker(breach.Options{
		BaseURL: cfg.BreachAPIURL,
		Timeout: cfg.BreachTimeout,
		Enabled: cfg.BreachCheckEnabled,
	}, breach.NewRedisCache(rdb, cfg.BreachCacheTTL, logger), logger)

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.AuditEnabled {
		events = queue.NewPublisher(cfg.RabbitMQURL, logger)
	}

	decider := service.NewDecider(st.users, tokens)
	refresh := service.NewRefreshTokenStore(st.refresh, cfg.RefreshTTL())
	creds := service.NewCredentialService(service.CredentialDeps{
		Users:   st.users,
		Decider: decider,
		Hasher:  hasher,
		Tokens:  tokens,
		Refresh: refresh,
		Policy:  service.PasswordPolicy{MinLength: cfg.AuthPasswordMinLength, Leaks: leaks},
		Events:  events,
		Log:     logger,
	})
	users := service.NewUserService(st.users, decider, hasher, refresh, cfg.AuthPasswordMinLength, events, logger)
	patients := service.NewPatientService(st.patients, decider, events, logger)
	metrics := service.NewMetricService(st.patients, st.metrics, decider, events, logger)

	ready := map[string]handler.Pinger{}
	if st.db != nil {
		ready["mysql"] = st.db
	}
	if rdb != nil {
		ready["redis"] = redisPinger{rdb}
	}

	e := router.New(router.Deps{
		Tokens:    tokens,
		Auth:      handler.NewAuthHandler(creds, users),
		Users:     handler.NewUserHandler(users),
		Patients:  handler.NewPatientHandler(patients, metrics),
		Ready:     ready,
		Redis:     rdb,
		RateLimit: cfg.RateLimit,
		Log:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.AuditEnabled {
		consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.AuditLogDir, logger)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
