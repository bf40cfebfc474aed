package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/common"
)

func TestNew_WiresComponents(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Workers.AsyncConcurrency = 2

	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.JobService)
	assert.NotNil(t, a.JobHandler)
	assert.NotNil(t, a.StatusHandler)
	assert.NotNil(t, a.MetricsHandler)
	assert.Nil(t, a.Bus)

	assert.NoError(t, a.Shutdown(context.Background()))
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Metrics.Enabled = false

	a, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.MetricsHandler)
	assert.NoError(t, a.Shutdown(context.Background()))
}

func TestNew_UnreachableNATS(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.NATS.URL = "nats://127.0.0.1:1"

	_, err := New(cfg, arbor.NewLogger())
	assert.Error(t, err)
}
