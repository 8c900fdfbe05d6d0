package module

import (
	"time"

	"warcdex/internal/platform/config"
	"warcdex/internal/platform/validate"
	"warcdex/internal/services/relay/service"
)

// Options holds configuration for the batch relay
type Options struct {
	Endpoint       string        `env:"CORE_RELAY_ENDPOINT" validate:"required,url"`
	BatchSize      int           `env:"CORE_RELAY_BATCH_SIZE" validate:"gt=0"`
	RetryDelay     time.Duration `env:"CORE_RELAY_RETRY_DELAY" validate:"gte=0"`
	FatalThreshold int           `env:"CORE_RELAY_FATAL_THRESHOLD" validate:"gt=0"`
	ContentType    string        `env:"CORE_RELAY_CONTENT_TYPE" validate:"required"`
	Timeout        time.Duration `env:"CORE_RELAY_TIMEOUT" validate:"gte=0"`
}

// FromConfig reads the relay options with the CORE_RELAY_ prefix
func FromConfig(cfg config.Conf) Options {
	rc := cfg.Prefix("CORE_RELAY_")
	return Options{
		Endpoint:       rc.MayString("ENDPOINT", ""),
		BatchSize:      rc.MayInt("BATCH_SIZE", 10000),
		RetryDelay:     rc.MayDuration("RETRY_DELAY", 30*time.Second),
		FatalThreshold: rc.MayInt("FATAL_THRESHOLD", 10),
		ContentType:    rc.MayEnum("CONTENT_TYPE", service.DefaultContentType, service.DefaultContentType, "text/plain"),
		Timeout:        rc.MayDuration("TIMEOUT", 2*time.Minute),
	}
}

// Validate checks the options
func (o Options) Validate() error { return validate.Struct(o) }
