package observability

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTracingConfig_Defaults(t *testing.T) {
	for _, key := range []string{"ENCOUNTER_OTEL_ENDPOINT", "ENCOUNTER_OTEL_ENABLED", "ENCOUNTER_OTEL_SAMPLE_RATIO"} {
		// Setenv registers the restore; Unsetenv makes the variable absent.
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := LoadTracingConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Endpoint)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestLoadTracingConfig_RejectsBadRatio(t *testing.T) {
	t.Setenv("ENCOUNTER_OTEL_SAMPLE_RATIO", "1.5")
	_, err := LoadTracingConfig()
	assert.Error(t, err)
}

func TestLoadTracingConfig_RejectsUnparseable(t *testing.T) {
	t.Setenv("ENCOUNTER_OTEL_ENABLED", "maybe")
	_, err := LoadTracingConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestSetupTracing_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{Enabled: true}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_NoopWhenDisabled(t *testing.T) {
	cfg := TracingConfig{Endpoint: "http://localhost:4318", Enabled: false, SampleRatio: 1}
	shutdown, err := SetupTracing(context.Background(), cfg, "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestSetupTracing_CreatesProvider(t *testing.T) {
	// Non-routable address: nothing is exported and shutdown has nothing queued.
	cfg := TracingConfig{Endpoint: "http://192.0.2.1:4318", Enabled: true, SampleRatio: 1}
	shutdown, err := SetupTracing(context.Background(), cfg, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
