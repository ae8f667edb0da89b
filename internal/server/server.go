package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/loopcrm/edgegate/internal/broker"
	"github.com/loopcrm/edgegate/internal/config"
	"github.com/loopcrm/edgegate/internal/gateway"
	"github.com/loopcrm/edgegate/internal/observability"
	obslogger "github.com/loopcrm/edgegate/internal/observability/logger"
	obsmetrics "github.com/loopcrm/edgegate/internal/observability/metrics"
	obstracing "github.com/loopcrm/edgegate/internal/observability/tracing"
)

var Module = fx.Module("server",
	fx.Provide(
		NewEngine,
		NewBootstrap,
	),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Server wires the edge surfaces onto the engine: the API proxy, the
// bootstrap endpoint, and the page gateway as the catch-all.
type Server struct {
	engine    *gin.Engine
	gateway   *gateway.Gateway
	broker    *broker.Broker
	bootstrap *Bootstrap
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Gateway   *gateway.Gateway
	Broker    *broker.Broker
	Bootstrap *Bootstrap
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:    p.Gin,
		gateway:   p.Gateway,
		broker:    p.Broker,
		bootstrap: p.Bootstrap,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.Any("/api/*path", s.broker.Handle)
	s.engine.GET("/bff/config", s.bootstrap.Handle)

	// Every other path is a page request; the gateway decides whether to
	// serve the shell or redirect.
	s.engine.NoRoute(s.gateway.Handle)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("listening", zap.String("addr", cfg.ListenAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
