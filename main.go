package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fleximart/catalog-service/handlers"
	"github.com/fleximart/catalog-service/internal/catalog/handler"
	"github.com/fleximart/catalog-service/internal/catalog/repository"
	"github.com/fleximart/catalog-service/internal/catalog/service"
	"github.com/fleximart/catalog-service/internal/config"
	"github.com/fleximart/catalog-service/internal/oidc"
	"github.com/fleximart/catalog-service/internal/tokens"
	"github.com/fleximart/catalog-service/pkg/logger"
	"github.com/fleximart/catalog-service/pkg/metrics"
	"github.com/fleximart/catalog-service/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v keycloak=%v jwt_secret_set=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Keycloak.URL != "", cfg.JWT.Secret != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Dev CORS: the catalog is read from browser dashboards.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	// Redis backs the shared rate limiter only; catalog data is never cached.
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
		defer rdb.Close()
	}
	useRedisLimiter := cfg.RateLimit.Enabled && cfg.RateLimit.UseRedis && rdb != nil
	if cfg.RateLimit.Enabled {
		if useRedisLimiter {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	store, closeStore, err := repository.Open(ctx, cfg.MongoDB)
	if err != nil {
		logger.Fatalf("catalog store: %v", err)
	}
	defer closeStore(context.Background())
	svc := service.NewService(store, service.Options{
		MinAvgRating: &cfg.Catalog.MinAvgRating,
		QueryTimeout: cfg.Catalog.QueryTimeout,
	})

	verifier, authRequired := buildVerifier(ctx, cfg)
	var writeGuard []gin.HandlerFunc
	if verifier != nil {
		writeGuard = append(writeGuard, middleware.AuthMiddleware(verifier))
	} else if authRequired {
		// identity provider configured but unreachable: refuse writes rather than accept them unauthenticated
		writeGuard = append(writeGuard, func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "token verifier unavailable"})
		})
	} else {
		logger.Warnf("no JWT_SECRET or Keycloak configured: review writes are unauthenticated")
	}

	handler.RegisterCatalogRoutes(r, svc, writeGuard...)
	handlers.RegisterSwagger(r)
	handlers.RegisterHealth(r, handlers.Readiness{
		Store:        svc,
		Redis:        rdb,
		RequireRedis: useRedisLimiter,
		AuthRequired: authRequired,
		AuthReady:    verifier != nil,
	}, startTime)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting catalog service on %s (db=%s collection=%s)", addr, cfg.MongoDB.Database, cfg.MongoDB.Collection)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// buildVerifier picks the token verifier guarding review writes: an HS256
// shared secret, then Keycloak OIDC, then (opt-in) the insecure claims reader.
// authRequired reports whether an identity provider was configured at all.
func buildVerifier(ctx context.Context, cfg *config.Config) (middleware.Verifier, bool) {
	if cfg.JWT.Secret != "" {
		v, err := tokens.NewVerifier(cfg.JWT.Secret)
		if err != nil {
			logger.Warnf("failed to initialize JWT verifier: %v", err)
			return nil, true
		}
		return v, true
	}
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		issuer := cfg.Keycloak.URL
		if cfg.Keycloak.Realm != "" {
			issuer = oidc.KeycloakIssuer(cfg.Keycloak.URL, cfg.Keycloak.Realm)
		}
		v, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
			return nil, true
		}
		return v, true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
		logger.Warnf("enabling insecure token verifier (local mode)")
		return oidc.NewInsecureVerifier(), false
	}
	return nil, false
}
