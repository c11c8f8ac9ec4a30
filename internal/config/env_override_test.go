package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 70, cfg.Memory.Tier1Capacity)
	assert.Equal(t, 60000, cfg.RequestDeadlineMS)
	assert.Equal(t, [4]int{60, 90, 120, 180}, cfg.Learning.DecayDays)
}

func TestEnvOverridesWinOverDefaults(t *testing.T) {
	t.Setenv("CORTEX_BRAIN_DIR", "/tmp/brain-override")
	t.Setenv("CORTEX_CAPACITY_TIER1", "12")
	t.Setenv("CORTEX_DECAY_DAYS", "30,60,90,120")
	t.Setenv("CORTEX_REQUEST_DEADLINE_MS", "1500")
	t.Setenv("CORTEX_LEARNING_THRESHOLD", "25")
	t.Setenv("CORTEX_TOKEN_BUDGET", "300")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/brain-override", cfg.BrainDir)
	assert.Equal(t, 12, cfg.Memory.Tier1Capacity)
	assert.Equal(t, [4]int{30, 60, 90, 120}, cfg.Learning.DecayDays)
	assert.Equal(t, 1500, cfg.RequestDeadlineMS)
	assert.Equal(t, 25, cfg.Learning.EventCountThreshold)
	assert.Equal(t, 300, cfg.Router.TokenBudget)
}

func TestMalformedEnvValuesAreIgnored(t *testing.T) {
	t.Setenv("CORTEX_CAPACITY_TIER1", "not-a-number")
	t.Setenv("CORTEX_DECAY_DAYS", "60,90")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 70, cfg.Memory.Tier1Capacity)
	assert.Equal(t, [4]int{60, 90, 120, 180}, cfg.Learning.DecayDays)
}

func TestValidateRejectsZeroCapacity(t *testing.T) {
	cfg := Default()
	cfg.Memory.Tier1Capacity = 0
	assert.Error(t, cfg.Validate())
}
