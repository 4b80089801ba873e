package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/coursepilot/go-services/handlers"
	"github.com/coursepilot/go-services/internal/config"
	"github.com/coursepilot/go-services/internal/document/handler"
	"github.com/coursepilot/go-services/internal/document/service"
	"github.com/coursepilot/go-services/internal/document/store"
	"github.com/coursepilot/go-services/internal/extract"
	"github.com/coursepilot/go-services/internal/oidc"
	"github.com/coursepilot/go-services/internal/recommend"
	"github.com/coursepilot/go-services/internal/storage"
	"github.com/coursepilot/go-services/pkg/logger"
	"github.com/coursepilot/go-services/pkg/metrics"
	"github.com/coursepilot/go-services/pkg/middleware"
)

var startTime = time.Now()

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())
	logger.Infof("config loaded: store=%s keycloak=%v redis=%v minio=%v", cfg.Store.Engine, cfg.Keycloak.URL != "", cfg.Redis.Host != "", cfg.MinIO.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The store is opened once and shared by every request. A failure here
	// is fatal: nothing is repaired or recreated.
	st, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		logger.Fatalf("failed to open document store: %v", err)
	}
	logger.Infof("document store opened: engine=%s", st.Engine())

	docs, err := service.New(st, service.WithCacheSize(cfg.Store.CacheSize))
	if err != nil {
		logger.Fatalf("failed to create document service: %v", err)
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), gin.Logger(), gin.Recovery())

	// Lightweight CORS for the browser frontend.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" && cfg.RateLimit.UseRedis {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis ping failed (%s), rate limiter falls back to memory: %v", addr, err)
			_ = rdb.Close()
			rdb = nil
		}
	}
	// The limiter runs inside the API group after auth so callers are keyed
	// by token subject when one is present.
	var limiter gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			limiter = middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
			logger.Infof("rate limiter enabled (redis)")
		} else {
			limiter = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
			logger.Infof("rate limiter enabled (memory)")
		}
	}

	var verifier middleware.Verifier
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.Keycloak.Issuer(), cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil && cfg.Keycloak.AllowInsecure {
		logger.Warn("enabling insecure token verifier (integration mode)")
		verifier = oidc.NewInsecureVerifier()
	}

	var opts []handler.Option
	opts = append(opts, handler.WithMaxUpload(cfg.Server.UploadMaxBytes))
	if cfg.MinIO.Enabled() {
		archive, err := storage.NewArchive(ctx, &cfg.MinIO)
		if err != nil {
			logger.Warnf("upload archive disabled: %v", err)
		} else {
			opts = append(opts, handler.WithArchive(archive))
			logger.Infof("upload archive enabled: bucket=%s", cfg.MinIO.Bucket)
		}
	}
	if cfg.OpenAI.APIKey == "" {
		logger.Warnf("OPENAI_API_KEY is not set; /recommend will fail upstream")
	}
	rec := recommend.New(recommend.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model))

	var guard []gin.HandlerFunc
	if verifier != nil {
		guard = append(guard, middleware.AuthMiddleware(verifier))
	}
	if limiter != nil {
		guard = append(guard, limiter)
	}
	handler.New(docs, extract.NewPDF(), rec, opts...).Register(r, guard...)

	checks := map[string]handlers.Check{"store": docs.Ping}
	if cfg.Keycloak.URL != "" {
		checks["oidc"] = func(context.Context) error {
			if verifier == nil {
				return errors.New("verifier unavailable")
			}
			return nil
		}
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	handlers.RegisterHealth(r, startTime, checks)
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting advisor service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	if err := st.Close(); err != nil {
		logger.Errorf("closing document store: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
