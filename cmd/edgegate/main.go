package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/loopcrm/edgegate/internal/broker"
	"github.com/loopcrm/edgegate/internal/cache"
	"github.com/loopcrm/edgegate/internal/config"
	"github.com/loopcrm/edgegate/internal/gateway"
	"github.com/loopcrm/edgegate/internal/observability"
	"github.com/loopcrm/edgegate/internal/ratelimit"
	"github.com/loopcrm/edgegate/internal/routing"
	"github.com/loopcrm/edgegate/internal/server"
	"github.com/loopcrm/edgegate/internal/session"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Invoke(validateConfig),

		// Edge components
		session.Module,
		routing.Module,
		cache.Module,
		ratelimit.Module,
		gateway.Module,
		broker.Module,
		server.Module,
	)
	app.Run()
}

// validateConfig fails startup on an unusable configuration; production
// never runs on the development signing key or without an upstream.
func validateConfig(cfg config.Config, log *zap.Logger) error {
	return cfg.Validate(log)
}
