package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gabapcia/mempoolverify/internal/config"
	"github.com/gabapcia/mempoolverify/internal/mempoolaudit"
	"github.com/gabapcia/mempoolverify/internal/pkg/logger"
	"github.com/gabapcia/mempoolverify/internal/pkg/telemetry"

	"github.com/urfave/cli/v3"
)

// telemetryShutdownTimeout bounds how long exporters may take to flush on exit.
const telemetryShutdownTimeout = 5 * time.Second

// serviceFactory builds the verification service for a run.
type serviceFactory func(cfg config.Config, reporter mempoolaudit.Reporter) mempoolaudit.Service

// verifyFlags returns the command-line flags, using cfg for their defaults.
func verifyFlags(cfg config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "cli",
			Usage: "Path to bitcoin-cli",
			Value: cfg.CLIPath,
		},
		&cli.StringSliceFlag{
			Name:  "cli-arg",
			Usage: "Extra leading argument for bitcoin-cli, repeatable (e.g. -regtest)",
			Value: cfg.CLIArgs,
		},
		&cli.DurationFlag{
			Name:  "cli-timeout",
			Usage: "Timeout of each bitcoin-cli invocation",
			Value: cfg.CLITimeout,
		},
		&cli.StringFlag{
			Name:  "verify-url",
			Usage: "Verification endpoint URL",
			Value: cfg.VerifyURL,
		},
		&cli.IntFlag{
			Name:  "timeout",
			Usage: "HTTP timeout seconds per verify call",
			Value: cfg.TimeoutSeconds,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "If >0, only process this many txids (useful for quick tests)",
			Value: cfg.Limit,
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Print progress",
			Value: cfg.Verbose,
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Minimum level of the JSON logs written to stderr (debug, info, warn, error)",
			Value: cfg.LogLevel,
		},
		&cli.BoolFlag{
			Name:  "telemetry",
			Usage: "Export traces, metrics and logs over OTLP gRPC (configured via OTEL_EXPORTER_OTLP_*)",
			Value: cfg.TelemetryEnabled,
		},
		&cli.StringFlag{
			Name:  "service-name",
			Usage: "Service name reported to the telemetry backend",
			Value: cfg.ServiceName,
		},
	}
}

// configFromFlags returns base with every flag value applied.
func configFromFlags(base config.Config, c *cli.Command) config.Config {
	cfg := base
	cfg.CLIPath = c.String("cli")
	cfg.CLIArgs = c.StringSlice("cli-arg")
	cfg.CLITimeout = c.Duration("cli-timeout")
	cfg.VerifyURL = c.String("verify-url")
	cfg.TimeoutSeconds = c.Int("timeout")
	cfg.Limit = c.Int("limit")
	cfg.Verbose = c.Bool("verbose")
	cfg.LogLevel = c.String("log-level")
	cfg.TelemetryEnabled = c.Bool("telemetry")
	cfg.ServiceName = c.String("service-name")
	return cfg
}

// verifyAction returns the action that performs one verification run and
// prints its outcome.
//
// Usage example:
//
//	mempoolverify --cli ./build/bin/bitcoin-cli --verify-url http://127.0.0.1:8080/verify --limit 10 --verbose
func verifyAction(base config.Config, stdout, stderr io.Writer, build serviceFactory) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg := configFromFlags(base, c)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "[ERROR] Invalid configuration:\n%v\n", err)
			return err
		}

		if cfg.TelemetryEnabled {
			shutdown, err := telemetry.Init(ctx, cfg.ServiceName)
			if err != nil {
				fmt.Fprintf(stderr, "[ERROR] Telemetry setup failed: %v\n", err)
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					fmt.Fprintf(stderr, "[ERROR] Telemetry shutdown failed: %v\n", err)
				}
			}()
		}

		if err := logger.Init(logger.WithLevel(cfg.LogLevel), logger.WithOutput(stderr)); err != nil {
			fmt.Fprintf(stderr, "[ERROR] Logger setup failed: %v\n", err)
			return err
		}
		defer func() { _ = logger.Sync() }()

		reporter := newConsoleReporter(stdout, cfg.Verbose)
		result := build(cfg, reporter).Run(ctx)
		reporter.Result(stderr, result)

		return result.Err()
	}
}
