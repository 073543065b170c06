package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/config"
	coursedomain "github.com/smallbiznis/entitlement/internal/course/domain"
	"github.com/smallbiznis/entitlement/internal/observability"
	obsmiddleware "github.com/smallbiznis/entitlement/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/entitlement/internal/observability/metrics"
	obstracing "github.com/smallbiznis/entitlement/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/entitlement/internal/payment/domain"
	purchasedomain "github.com/smallbiznis/entitlement/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/entitlement/internal/subscription/domain"
	userdomain "github.com/smallbiznis/entitlement/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
	Gatherer    prometheus.Gatherer     `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           p.ObsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(p.HTTPMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	db       *gorm.DB
	clock    clock.Clock
	log      *zap.Logger
	payments paymentdomain.Service

	users         userdomain.Repository
	subscriptions subscriptiondomain.Repository
	purchases     purchasedomain.Repository
	courses       coursedomain.Repository
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Clock      clock.Clock
	Log        *zap.Logger
	PaymentSvc paymentdomain.Service

	Users         userdomain.Repository
	Subscriptions subscriptiondomain.Repository
	Purchases     purchasedomain.Repository
	Courses       coursedomain.Repository
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		clock:         p.Clock,
		log:           p.Log.Named("http.server"),
		payments:      p.PaymentSvc,
		users:         p.Users,
		subscriptions: p.Subscriptions,
		purchases:     p.Purchases,
		courses:       p.Courses,
	}

	svc.registerWebhookRoutes()
	svc.registerDebugRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhook", s.HandlePaymentWebhook)
	s.engine.GET("/webhook", s.WebhookProbe)
}

func (s *Server) registerDebugRoutes() {
	debug := s.engine.Group("/debug")
	debug.GET("/snapshot", s.DebugSnapshot)
}
