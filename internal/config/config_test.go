package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooh/expcontrol/internal/ir"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"EXPCTL_SUBJECT": "s01",
		"EXPCTL_CONTEXT": "run1",
	})
	require.NoError(t, err)

	assert.Equal(t, "s01", cfg.Subject)
	assert.Equal(t, "run1", cfg.Context)
	assert.Equal(t, ".", cfg.Design)
	assert.Equal(t, "expcontrol.db", cfg.DB)
	assert.Equal(t, 60.0, cfg.FrameRate)
	assert.Equal(t, "escape", cfg.AbortKey)
	assert.Empty(t, cfg.Order)
	assert.False(t, cfg.Pulse.Enabled())
	assert.Equal(t, 0.1, cfg.Pulse.Tolerance)
	assert.Equal(t, 0.01, cfg.Pulse.Duration)
	assert.Equal(t, 20.0, cfg.Pulse.Timeout)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"EXPCTL_SUBJECT":       "s02",
		"EXPCTL_CONTEXT":       "run2",
		"EXPCTL_ORDER":         "faces,houses,faces",
		"EXPCTL_TIMING":        "rel",
		"EXPCTL_KEYS":          "f,j",
		"EXPCTL_FRAME_RATE":    "120",
		"EXPCTL_PULSE_KEY":     "5",
		"EXPCTL_PULSE_PERIOD":  "2",
		"EXPCTL_PULSE_DUMMIES": "3",
		"EXPCTL_PULSE_EMULATE": "true",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"faces", "houses", "faces"}, cfg.Order)
	assert.Equal(t, "rel", cfg.Timing)
	assert.Equal(t, []string{"f", "j"}, cfg.Keys)
	assert.Equal(t, 120.0, cfg.FrameRate)
	assert.True(t, cfg.Pulse.Enabled())
	assert.Equal(t, 2.0, cfg.Pulse.Period)
	assert.Equal(t, 3, cfg.Pulse.Dummies)
	assert.True(t, cfg.Pulse.Emulate)
}

func TestLoadFrom_RequiredFields(t *testing.T) {
	_, err := LoadFrom(map[string]string{"EXPCTL_CONTEXT": "run1"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"EXPCTL_SUBJECT": "s01"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := map[string]string{"EXPCTL_SUBJECT": "s01", "EXPCTL_CONTEXT": "run1"}
	with := func(k, v string) map[string]string {
		m := map[string]string{k: v}
		for bk, bv := range base {
			m[bk] = bv
		}
		return m
	}

	tests := []struct {
		name    string
		environ map[string]string
	}{
		{"zero frame rate", with("EXPCTL_FRAME_RATE", "0")},
		{"pulse key without period", with("EXPCTL_PULSE_KEY", "5")},
		{"pulse key equals abort key", map[string]string{
			"EXPCTL_SUBJECT":      "s01",
			"EXPCTL_CONTEXT":      "run1",
			"EXPCTL_PULSE_KEY":    "escape",
			"EXPCTL_PULSE_PERIOD": "2",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.environ)
			require.Error(t, err)
			assert.True(t, ir.IsConfigurationError(err))
		})
	}
}
