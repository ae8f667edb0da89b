package session

import (
	"github.com/loopcrm/edgegate/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("session",
	fx.Provide(
		NewManager,
		func(cfg config.Config) *Codec {
			return NewCodec(cfg.SessionSecret, cfg.SessionTTL)
		},
	),
)
