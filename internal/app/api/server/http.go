package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/renewal/docs"
	"github.com/fatflowers/renewal/internal/app/api/handlers"
	mw "github.com/fatflowers/renewal/internal/app/api/middleware"
	"github.com/fatflowers/renewal/internal/app/service/feed"
	"github.com/fatflowers/renewal/internal/app/service/intake"
	"github.com/fatflowers/renewal/internal/app/service/paymentlog"
	"github.com/fatflowers/renewal/internal/app/service/planchange"
	subsvc "github.com/fatflowers/renewal/internal/app/service/subscription"
	cfgpkg "github.com/fatflowers/renewal/pkg/config"
	metrics "github.com/fatflowers/renewal/pkg/metrics"
)

type routeDeps struct {
	fx.In

	Log       *zap.SugaredLogger
	Cfg       *cfgpkg.Config
	DB        *gorm.DB
	Redis     goredis.UniversalClient
	Registry  *subsvc.Service
	Scheduler *planchange.Service
	Feed      *feed.Service
	Intake    *intake.Service
	Logs      *paymentlog.Service
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Request logger and access log are attached per group in registerRoutes.
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	log := d.Log
	if d.Cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(d.Cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", d.Cfg.MetricsAddr)
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub, healthChecks(d.DB, d.Redis))
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))

	handlers.RegisterSubscriptionRoutes(apiV1.Group("/subscription"), d.Registry, d.Scheduler, log)

	executor := apiV1.Group("/executor")
	executor.Use(mw.ExecutorAuthMiddleware(d.Cfg, log))
	handlers.RegisterExecutorRoutes(executor, d.Feed, d.Intake, log)

	// Admin reads share the executor credential.
	admin := apiV1.Group("/admin")
	admin.Use(mw.ExecutorAuthMiddleware(d.Cfg, log))
	handlers.RegisterAdminRoutes(admin, d.Logs, d.Feed, log)
}

func healthChecks(db *gorm.DB, rdb goredis.UniversalClient) map[string]handlers.Pinger {
	return map[string]handlers.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
