package queue

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/infrastructure/config"
)

// Factory creates queue backends based on configuration
type Factory struct {
	redisConfig   config.RedisConfig
	logger        *zap.Logger
	allowFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithMemoryFallback controls whether to fall back to the in-memory queue when
// Redis is unavailable. Default is true.
func WithMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowFallback = allow
	}
}

// NewFactory creates a new queue factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:   cfg,
		logger:        zap.NewNop(),
		allowFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create returns a queue backed by Redis when reachable. When Redis is down or
// unconfigured it falls back to the in-memory queue if fallback is allowed.
// The returned io.Closer must be closed on shutdown.
func (f *Factory) Create() (pipeline.Queue, io.Closer, error) {
	if f.redisConfig.Host != "" {
		q, err := NewRedisQueue(f.redisConfig)
		if err == nil {
			f.logger.Info("using Redis queue", zap.String("addr", f.redisConfig.Addr()))
			return q, q, nil
		}

		if !f.allowFallback {
			return nil, nil, fmt.Errorf("Redis required for queue but unavailable: %w", err)
		}

		f.logger.Warn("Redis unavailable, falling back to in-memory queue. "+
			"Queued events will not survive a restart and will not be shared across instances.",
			zap.Error(err),
		)
	} else if !f.allowFallback {
		return nil, nil, fmt.Errorf("Redis required for queue but no host configured")
	}

	q := NewMemoryQueue()
	return q, q, nil
}
