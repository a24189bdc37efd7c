package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_READ_TIMEOUT is the relay's per-connection read window
	ReadTimeout time.Duration `envconfig:"E2E_READ_TIMEOUT" default:"500ms"`
	// E2E_WORKERS sizes the relay's connection worker pool
	Workers int `envconfig:"E2E_WORKERS" default:"4"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
