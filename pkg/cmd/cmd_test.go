package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coderAhmedHamood/pipefy/pkg/config"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence/file"
	"github.com/coderAhmedHamood/pipefy/pkg/scheduler"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParsePersistenceProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{url: "file://./data", want: "file"},
		{url: "./data", want: "file"},
		{url: "postgres://user@localhost/pipefy", want: "postgres"},
		{url: "postgresql://user@localhost/pipefy", want: "postgresql"},
		{url: "mysql://user@localhost/pipefy", want: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, parsePersistenceProvider(tt.url))
		})
	}
}

func TestNewPersistence_File(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	p, err := NewPersistence(ctx, testLogger(), "file://"+t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, p.HealthCheck(ctx))
	assert.NoError(t, p.Close(ctx))
}

func TestNewEventBus(t *testing.T) {
	t.Parallel()

	bus, err := NewEventBus(config.Default(), "pipefy-test", testLogger())
	require.NoError(t, err)
	assert.NoError(t, bus.Close())

	_, err = NewEventBus(config.Config{EventBus: "rabbitmq"}, "pipefy-test", testLogger())
	assert.ErrorContains(t, err, "unsupported event bus provider")

	_, err = NewEventBus(config.Config{EventBus: config.EventBusKafka}, "pipefy-test", testLogger())
	assert.Error(t, err, "kafka needs brokers")
}

func TestNewLocker_Repository(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())

	locker, closeLocker, err := NewLocker(context.Background(), testLogger(), "", store.RuleRepository(), clockwork.NewRealClock())
	require.NoError(t, err)

	assert.IsType(t, &scheduler.RepositoryLocker{}, locker)
	assert.NoError(t, closeLocker())

	_, _, err = NewLocker(context.Background(), testLogger(), "not a url", store.RuleRepository(), clockwork.NewRealClock())
	assert.Error(t, err)
}

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, shutdown, err := NewTracer(context.Background(), false, "pipefy-test")
	require.NoError(t, err)
	require.NotNil(t, tracer)
	assert.NoError(t, shutdown(context.Background()))
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipefy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 8080\nlog_level: debug\nclaim_lease: 30s\n"), 0o600))

	var loaded config.Config

	command := &cli.Command{
		Name: "pipefy-test",
		Flags: append(CommonFlags(),
			&cli.IntFlag{Name: "port"},
			&cli.DurationFlag{Name: "claim-lease"},
		),
		Action: func(_ context.Context, command *cli.Command) error {
			var err error
			loaded, err = LoadConfig(command)

			return err
		},
	}

	err := command.Run(context.Background(), []string{"pipefy-test", "--config", path, "--log-level", "warn", "--claim-lease", "45s"})
	require.NoError(t, err)

	assert.Equal(t, 8080, loaded.Port, "file value kept")
	assert.Equal(t, "warn", loaded.LogLevel, "flag wins over file")
	assert.Equal(t, 45*time.Second, loaded.ClaimLease)
	assert.Equal(t, config.EventBusGoChannel, loaded.EventBus, "default kept")
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	command := &cli.Command{
		Name:  "pipefy-test",
		Flags: CommonFlags(),
		Action: func(_ context.Context, command *cli.Command) error {
			_, err := LoadConfig(command)

			return err
		},
	}

	err := command.Run(context.Background(), []string{"pipefy-test", "--log-format", "xml"})
	assert.ErrorContains(t, err, "LogFormat")
}
