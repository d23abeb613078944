// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"github.com/coderAhmedHamood/pipefy/pkg/config"
	cli "github.com/urfave/cli/v3"
)

// Flag names shared by the binaries.
const (
	FlagConfig       = "config"
	FlagDatabaseURL  = "database-url"
	FlagEventBus     = "event-bus"
	FlagKafkaBrokers = "kafka-brokers"
	FlagLogLevel     = "log-level"
	FlagLogFormat    = "log-format"
	FlagOtel         = "otel"
)

// CommonFlags are accepted by every binary. Defaults live in config.Default so
// that a value from the config file is only overridden by an explicit flag.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagConfig,
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			Sources: cli.EnvVars("PIPEFY_CONFIG"),
		},
		&cli.StringFlag{
			Name:    FlagDatabaseURL,
			Usage:   "Persistence URL (file://path or postgres://...); a file store may be shared by processes on one host only",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    FlagEventBus,
			Usage:   "Event bus type (gochannel, kafka)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    FlagKafkaBrokers,
			Usage:   "Comma-separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    FlagLogLevel,
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    FlagLogFormat,
			Usage:   "Log format (text, json)",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:    FlagOtel,
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}

// LoadConfig reads the --config file and applies every flag that was set.
func LoadConfig(command *cli.Command) (config.Config, error) {
	cfg, err := config.Load(command.String(FlagConfig))
	if err != nil {
		return config.Config{}, err
	}

	setString := func(name string, target *string) {
		if command.IsSet(name) {
			*target = command.String(name)
		}
	}

	setString(FlagDatabaseURL, &cfg.DatabaseURL)
	setString(FlagEventBus, &cfg.EventBus)
	setString(FlagKafkaBrokers, &cfg.KafkaBrokers)
	setString(FlagLogLevel, &cfg.LogLevel)
	setString(FlagLogFormat, &cfg.LogFormat)
	setString("redis-url", &cfg.RedisURL)
	setString("sweep-spec", &cfg.SweepSpec)

	if command.IsSet("port") {
		cfg.Port = command.Int("port")
	}

	if command.IsSet("claim-lease") {
		cfg.ClaimLease = command.Duration("claim-lease")
	}

	if command.IsSet(FlagOtel) {
		cfg.Otel = command.Bool(FlagOtel)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}
