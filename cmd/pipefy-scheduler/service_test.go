package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/coderAhmedHamood/pipefy/pkg/config"
	"github.com/coderAhmedHamood/pipefy/pkg/metrics"
	"github.com/coderAhmedHamood/pipefy/pkg/mocks"
	"github.com/coderAhmedHamood/pipefy/pkg/otelhelper"
	"github.com/coderAhmedHamood/pipefy/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, cfg config.Config) *Service {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return NewService(
		logger,
		file.NewPersistence(t.TempDir()),
		&mocks.MockNotifier{},
		nil,
		metrics.NewCollector(),
		otelhelper.NoopTracer(),
		cfg,
	)
}

func TestService_Probes(t *testing.T) {
	t.Parallel()

	app := newTestService(t, config.Default()).App()

	for _, path := range []string{"/livez", "/readyz", "/metrics"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.NotEmpty(t, body, path)
	}
}

func TestService_RunRejectsInvalidSweepSpec(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.SweepSpec = "every now and then"

	err := newTestService(t, cfg).Run(t.Context())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sweep schedule")
}

func TestService_SweepWithoutRules(t *testing.T) {
	t.Parallel()

	created, err := newTestService(t, config.Default()).scheduler.Sweep(t.Context())

	require.NoError(t, err)
	assert.Zero(t, created)
}
