package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wikipulse/core/internal/config"
	"github.com/wikipulse/core/internal/middleware"
	"github.com/wikipulse/core/internal/modules/archive"
	"github.com/wikipulse/core/internal/modules/views"
	"github.com/wikipulse/core/internal/pkg/cache"
	pkgcron "github.com/wikipulse/core/internal/pkg/cron"
	pkgredis "github.com/wikipulse/core/internal/pkg/redis"
	"github.com/wikipulse/core/internal/pkg/s3store"
	"go.uber.org/zap"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	cache  *cache.Cache
	sched  *pkgcron.Scheduler
	rc     *pkgredis.Client
	logger *zap.Logger
	cancel context.CancelFunc
}

// New initializes the application: config → cache → storage → routes →
// scheduler. The cache and scheduler are constructed here once and injected
// into every consumer; nothing hangs off package globals.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	metricsCache := cache.New(cfg.CacheTTL(), cache.WithLogger(logger))

	var rc *pkgredis.Client
	if cfg.RedisURL != "" {
		var err error
		rc, err = pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
			rc = nil
		}
	}

	// Missing storage credentials must not block startup; the archive job
	// reports the misconfiguration when it actually fires.
	var store archive.ObjectStore
	if st, err := s3store.New(s3store.Options{
		Region:          cfg.S3.Region,
		Bucket:          cfg.S3.Bucket,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Endpoint:        cfg.S3.Endpoint,
		Prefix:          cfg.S3.Prefix,
	}); err != nil {
		logger.Warn("object storage not configured, archive uploads will fail until it is", zap.Error(err))
	} else {
		store = st
	}

	viewsSvc := views.NewService(metricsCache, cfg, views.WithLogger(logger))
	archiveSvc := archive.NewService(metricsCache, store, archive.WithLogger(logger))

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	if rc != nil {
		router.Use(middleware.RateLimit(rc.Raw()))
	}

	sched := pkgcron.New(logger)
	registerCronJobs(sched, archiveSvc, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Start(ctx)

	app := &App{
		cfg:    cfg,
		router: router,
		cache:  metricsCache,
		sched:  sched,
		rc:     rc,
		logger: logger,
		cancel: cancel,
	}
	app.registerRoutes(viewsSvc, archiveSvc)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops the scheduler and the cache sweeper.
func (a *App) Shutdown() {
	a.cancel()
	a.cache.Close()
	if a.rc != nil {
		_ = a.rc.Close()
	}
}
