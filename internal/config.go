package internal

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"

	"msgboard/errors"
)

// Profile selects a set of defaults before the environment is read.
type Profile string

const (
	Development Profile = "development"
	Production  Profile = "production"
	Testing     Profile = "testing"
)

// ProfileFromEnv reads ENVIRONMENT. Anything unrecognized falls back
// to the development profile.
func ProfileFromEnv() Profile {
	switch Profile(strings.ToLower(os.Getenv("ENVIRONMENT"))) {
	case Production:
		return Production
	case Testing:
		return Testing
	default:
		return Development
	}
}

// RelayConfig is the immutable configuration of the relay process.
// Values resolve in two layers: profile defaults first, then
// environment overrides. Validation happens once, before anything
// binds.
type RelayConfig struct {
	Host            string        `env:"SOCKET_HOST" validate:"required"`
	Port            int           `env:"SOCKET_PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `env:"SOCKET_TIMEOUT" validate:"gt=0"`
	Backlog         int           `env:"SOCKET_BACKLOG" validate:"gt=0"`
	BufferSize      int           `env:"SOCKET_BUFFER_SIZE" validate:"gt=0"`
	Workers         int           `env:"WORKER_POOL_SIZE" validate:"gt=0"`
	GracePeriod     time.Duration `env:"GRACE_PERIOD" validate:"gt=0"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL" validate:"gt=0"`

	StoreBackend   string `env:"STORE_BACKEND" validate:"oneof=mongo badger"`
	MongoURI       string `env:"MONGO_URI" validate:"required_if=StoreBackend mongo"`
	Database       string `env:"DB_NAME" validate:"required"`
	Collection     string `env:"COLLECTION_NAME" validate:"required"`
	BadgerFilepath string `env:"BADGER_FILEPATH" validate:"required_if=StoreBackend badger"`

	MinPoolSize      int           `env:"MIN_POOL_SIZE" validate:"min=0"`
	MaxPoolSize      int           `env:"MAX_POOL_SIZE" validate:"min=1,gtefield=MinPoolSize"`
	MaxIdleTime      time.Duration `env:"MAX_IDLE_TIME" validate:"gt=0"`
	WaitQueueTimeout time.Duration `env:"WAIT_QUEUE_TIMEOUT" validate:"gt=0"`

	LogLevel string `env:"LOG_LEVEL" validate:"required"`
}

// WebConfig is the immutable configuration of the web process. The
// relay address shares its variable names with the relay process so a
// single environment configures both.
type WebConfig struct {
	Host         string        `env:"HTTP_HOST" validate:"required"`
	Port         int           `env:"HTTP_PORT" validate:"min=1,max=65535"`
	RelayHost    string        `env:"SOCKET_HOST" validate:"required"`
	RelayPort    int           `env:"SOCKET_PORT" validate:"min=1,max=65535"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" validate:"gt=0"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" validate:"gt=0"`
	GracePeriod  time.Duration `env:"GRACE_PERIOD" validate:"gt=0"`
	LogLevel     string        `env:"LOG_LEVEL" validate:"required"`
}

// ViewerConfig drives the read-only board inspector.
type ViewerConfig struct {
	BadgerFilepath string `env:"BADGER_FILEPATH" validate:"required"`
	DebugPort      int    `env:"DEBUG_PORT" validate:"min=1,max=65535"`
	LogLevel       string `env:"LOG_LEVEL" validate:"required"`
}

// DefaultRelayConfig returns the relay defaults for a profile.
// Production runs against mongo with a bigger pool and quieter logs;
// development and testing run on the embedded store.
func DefaultRelayConfig(profile Profile) RelayConfig {
	cfg := RelayConfig{
		Host:             "0.0.0.0",
		Port:             5000,
		ReadTimeout:      30 * time.Second,
		Backlog:          10,
		BufferSize:       1024,
		Workers:          10,
		GracePeriod:      10 * time.Second,
		MetricInterval:   30 * time.Second,
		RestartInterval:  200 * time.Millisecond,
		StoreBackend:     "badger",
		MongoURI:         "mongodb://mongodb:27017/",
		Database:         "messages_db",
		Collection:       "messages",
		BadgerFilepath:   "./data/board",
		MinPoolSize:      5,
		MaxPoolSize:      50,
		MaxIdleTime:      30 * time.Second,
		WaitQueueTimeout: 5 * time.Second,
		LogLevel:         "DEBUG",
	}

	switch profile {
	case Production:
		cfg.Workers = 20
		cfg.MaxPoolSize = 100
		cfg.StoreBackend = "mongo"
		cfg.LogLevel = "WARN"
	case Testing:
		cfg.Database = "test_messages_db"
		cfg.MaxPoolSize = 10
	}
	return cfg
}

// DefaultWebConfig returns the web defaults for a profile.
func DefaultWebConfig(profile Profile) WebConfig {
	cfg := WebConfig{
		Host:         "0.0.0.0",
		Port:         3000,
		RelayHost:    "127.0.0.1",
		RelayPort:    5000,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		GracePeriod:  10 * time.Second,
		LogLevel:     "DEBUG",
	}
	if profile == Production {
		cfg.LogLevel = "WARN"
	}
	return cfg
}

// LoadRelayConfig resolves and validates the relay configuration.
func LoadRelayConfig() (RelayConfig, error) {
	cfg := DefaultRelayConfig(ProfileFromEnv())
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWebConfig resolves and validates the web configuration.
func LoadWebConfig() (WebConfig, error) {
	cfg := DefaultWebConfig(ProfileFromEnv())
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadViewerConfig resolves and validates the viewer configuration.
func LoadViewerConfig() (ViewerConfig, error) {
	cfg := ViewerConfig{
		BadgerFilepath: "./data/board",
		DebugPort:      8088,
		LogLevel:       "DEBUG",
	}
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks a resolved configuration. It never mutates and never
// reads the environment, so the same struct always yields the same
// verdict.
func Validate(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	return nil
}

func (c RelayConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c WebConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RelayAddr is the address the forwarder dials.
func (c WebConfig) RelayAddr() string {
	return net.JoinHostPort(c.RelayHost, strconv.Itoa(c.RelayPort))
}
