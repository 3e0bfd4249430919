package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerly/ledgerly/backend/go-services/handlers"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/auth"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/config"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/database"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/sessions"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/tokens"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/users"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/logger"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/metrics"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: env=%s mongo=%v redis=%v verify_url=%v fail_open=%v",
		cfg.Server.Environment, cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Gate.VerifyURL != "", cfg.Gate.FailOpen)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	probes := map[string]handlers.Probe{}

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			defer func() { _ = rdb.Close() }()
			logger.Infof("connected to Redis %s:%s", cfg.Redis.Host, cfg.Redis.Port)
			probes["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	var userRepo users.UserRepository
	var revRepo sessions.Repository
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Fatalf("MongoDB unavailable: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		probes["mongo"] = database.Ping(client)

		db := client.Database(cfg.MongoDB.Database)
		mu := users.NewMongoUserRepository(db.Collection("users"))
		if err := mu.EnsureIndexes(ctx); err != nil {
			logger.Warnf("users: ensure indexes: %v", err)
		}
		userRepo = mu
		if rdb == nil {
			mr := sessions.NewMongoRepository(db.Collection("revoked_tokens"))
			if err := mr.EnsureIndexes(ctx); err != nil {
				logger.Warnf("revocations: ensure indexes: %v", err)
			}
			revRepo = mr
		}
	} else {
		if cfg.IsProduction() {
			logger.Fatalf("MONGODB_URI is required in production")
		}
		logger.Warnf("MONGODB_URI not set; users are kept in memory and lost on restart")
		userRepo = users.NewMemoryUserRepository()
	}
	switch {
	case rdb != nil:
		revRepo = sessions.NewRedisRepository(rdb, "")
		logger.Infof("revocations stored in Redis")
	case revRepo == nil:
		revRepo = sessions.NewMemoryRepository()
		logger.Warnf("revocations kept in memory")
	}

	userSvc := users.NewService(userRepo)
	revocations := sessions.NewService(revRepo, cfg.JWT.SessionMaxAge)
	codec := tokens.NewCodec(cfg.JWT.Secret)
	authn := auth.NewAuthenticator(codec, userSvc, auth.Options{
		CookieName:  cfg.Cookie.Name,
		MaxAge:      cfg.JWT.SessionMaxAge,
		Revocations: revocations,
	})

	deps := handlers.Deps{
		Users:       userSvc,
		Codec:       codec,
		Authn:       authn,
		Revocations: revocations,
		Probes:      probes,
	}
	if cfg.Gate.VerifyURL != "" {
		deps.Verifier = middleware.NewHTTPSessionVerifier(middleware.HTTPVerifierConfig{
			URL:         cfg.Gate.VerifyURL,
			Timeout:     cfg.Gate.VerifyTimeout,
			MaxFailures: cfg.Gate.BreakerFailures,
			OpenTimeout: cfg.Gate.BreakerTimeout,
		})
		logger.Infof("gate verifies sessions via %s", cfg.Gate.VerifyURL)
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			deps.RateLimit = middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			deps.RateLimit = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)
	deps.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handlers.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting ledgerly api on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
