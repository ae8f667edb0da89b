package routing

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Holder serves the active routing table and hot-reloads it when
// routes.yml changes. Readers get a consistent snapshot via atomic.Value.
type Holder struct {
	current atomic.Value // holds Table
}

// NewHolder loads routes.yml if present (volume mount, /etc, or cwd) and
// falls back to the built-in defaults otherwise.
func NewHolder(log *zap.Logger) (*Holder, error) {
	v := viper.New()

	v.SetConfigName("routes")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/edgegate/config")
	v.AddConfigPath("/etc/edgegate")
	v.AddConfigPath(".")

	v.SetEnvPrefix("EDGEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &Holder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultTable())
		return holder, nil
	}

	table, err := unmarshalTable(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(table)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalTable(v)
		if err != nil {
			if log != nil {
				log.Warn("invalid routes config ignored", zap.Error(err), zap.String("file", e.Name))
			}
			return
		}
		holder.current.Store(updated)
		if log != nil {
			log.Info("routes config reloaded", zap.String("file", e.Name))
		}
	})

	return holder, nil
}

// NewStaticHolder wraps a fixed table, used in tests and as an fx fallback.
func NewStaticHolder(table Table) *Holder {
	h := &Holder{}
	h.current.Store(table)
	return h
}

func (h *Holder) Get() Table {
	return h.current.Load().(Table)
}

func unmarshalTable(v *viper.Viper) (Table, error) {
	table := DefaultTable()
	if err := v.UnmarshalKey("routes", &table); err != nil {
		return Table{}, err
	}
	if err := validateTable(table); err != nil {
		return Table{}, err
	}
	return table, nil
}

func validateTable(t Table) error {
	if len(t.Protected) == 0 {
		return errors.New("routes.protected cannot be empty")
	}
	if strings.TrimSpace(t.LoginPath) == "" {
		return errors.New("routes.loginPath cannot be empty")
	}
	if strings.TrimSpace(t.DefaultAppPath) == "" {
		return errors.New("routes.defaultAppPath cannot be empty")
	}
	return nil
}
