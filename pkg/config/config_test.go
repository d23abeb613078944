package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pipefy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
port: 8080
database_url: postgres://pipefy@localhost/pipefy
event_bus: kafka
kafka_brokers: kafka-1:9092,kafka-2:9092
claim_lease: 30s
log_format: json
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres://pipefy@localhost/pipefy", cfg.DatabaseURL)
	assert.Equal(t, config.EventBusKafka, cfg.EventBus)
	assert.Equal(t, 30*time.Second, cfg.ClaimLease)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "@every 1m", cfg.SweepSpec, "unset keys keep their default")
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = config.Load(writeConfig(t, "port: [not a number"))
	assert.ErrorContains(t, err, "failed to parse YAML config")
}

func TestLoad_EmptyPath(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{name: "zero port", mutate: func(cfg *config.Config) { cfg.Port = 0 }, wantErr: "Port"},
		{name: "unknown bus", mutate: func(cfg *config.Config) { cfg.EventBus = "rabbitmq" }, wantErr: "EventBus"},
		{name: "kafka without brokers", mutate: func(cfg *config.Config) { cfg.EventBus = config.EventBusKafka }, wantErr: "KafkaBrokers"},
		{name: "short lease", mutate: func(cfg *config.Config) { cfg.ClaimLease = time.Millisecond }, wantErr: "ClaimLease"},
		{name: "unknown format", mutate: func(cfg *config.Config) { cfg.LogFormat = "xml" }, wantErr: "LogFormat"},
		{name: "no database", mutate: func(cfg *config.Config) { cfg.DatabaseURL = "" }, wantErr: "DatabaseURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			tt.mutate(&cfg)

			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
