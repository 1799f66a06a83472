// Package config loads the mempoolverify settings from the environment.
//
// Values are read from MEMPOOLVERIFY_* variables, optionally seeded from a
// .env file, and serve as the defaults of the command-line flags.
package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/gabapcia/mempoolverify/internal/pkg/validator"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix of every setting.
const Prefix = "MEMPOOLVERIFY"

// Config holds every setting of a verification run.
//
// The flag tag names the command-line flag that overrides each field and is
// used in validation messages.
type Config struct {
	CLIPath          string        `envconfig:"CLI" default:"./build/bin/bitcoin-cli" validate:"required" flag:"cli"`
	CLIArgs          []string      `envconfig:"CLI_ARGS" flag:"cli-arg"`
	CLITimeout       time.Duration `envconfig:"CLI_TIMEOUT" default:"120s" validate:"gt=0" flag:"cli-timeout"`
	VerifyURL        string        `envconfig:"VERIFY_URL" default:"http://127.0.0.1:8080/verify" validate:"required,http_url" flag:"verify-url"`
	TimeoutSeconds   int           `envconfig:"TIMEOUT" default:"30" validate:"gt=0" flag:"timeout"`
	Limit            int           `envconfig:"LIMIT" default:"0" flag:"limit"`
	Verbose          bool          `envconfig:"VERBOSE" default:"false" flag:"verbose"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"warn" validate:"oneof=debug info warn error" flag:"log-level"`
	TelemetryEnabled bool          `envconfig:"TELEMETRY_ENABLED" default:"false" flag:"telemetry"`
	ServiceName      string        `envconfig:"SERVICE_NAME" default:"mempoolverify" validate:"required" flag:"service-name"`
}

// VerifyTimeout returns the per-verification-call timeout.
func (c Config) VerifyTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks the settings against their validation tags.
func (c Config) Validate() error {
	return validator.Validate(c)
}

// Load reads the configuration from the environment. The given dotenv files
// (".env" when none are given) are loaded first; missing files are ignored and
// variables already present in the environment take precedence.
//
// Load does not validate the result since command-line flags may still
// override it; call Validate once the final values are known.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
