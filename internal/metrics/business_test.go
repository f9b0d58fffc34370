package metrics_test

import (
	"testing"

	"github.com/d9705996/licenca/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_NilIsNoop(t *testing.T) {
	require.NoError(t, metrics.Register(nil))
}

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	metrics.ObserveResolution("profile")
	metrics.ObserveSwitch(false)
	metrics.ObserveProfileSyncFailure("write")
	metrics.ObserveSeed("seeded")
	metrics.SetDeadlines("org-1", "atrasado", 3)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["licenca_org_resolutions_total"])
	assert.True(t, names["licenca_org_switches_total"])
	assert.True(t, names["licenca_profile_sync_failures_total"])
	assert.True(t, names["licenca_catalog_seeds_total"])
	assert.True(t, names["licenca_process_deadlines"])

	metrics.ResetDeadlines()
	families, err = reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.NotEqual(t, "licenca_process_deadlines", f.GetName())
	}
}

func TestRegister_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	require.Error(t, metrics.Register(reg))
}
