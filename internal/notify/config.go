package notify

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config defines configuration for a Hub.
type Config struct {
	// DeliveryTimeout bounds a single delivery to a single subscriber.
	DeliveryTimeout time.Duration
	// MaxParallel bounds the number of concurrent deliveries of one broadcast.
	MaxParallel int

	Logger *slog.Logger
	// Registerer receives the hub metrics. Nil disables registration.
	Registerer prometheus.Registerer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DeliveryTimeout: 2 * time.Second,
		MaxParallel:     32,
		Logger:          slog.Default(),
	}
}

// Merge overrides c with the non-zero fields of source.
func (c *Config) Merge(source *Config) {
	if source.DeliveryTimeout > 0 {
		c.DeliveryTimeout = source.DeliveryTimeout
	}

	if source.MaxParallel > 0 {
		c.MaxParallel = source.MaxParallel
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}

	if source.Registerer != nil {
		c.Registerer = source.Registerer
	}
}
