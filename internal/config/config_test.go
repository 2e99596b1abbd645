package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerDefaults(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	c := m.GetConfig()
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "EUR", c.Guidelines.Population)
	assert.Equal(t, "sqlite", c.Store.Driver)

	// Scoring defaults.
	assert.InDelta(t, 95.0, c.Scoring.SeverityBase.Critical, 1e-9)
	assert.InDelta(t, 10.0, c.Scoring.PhenotypeModifier.PM, 1e-9)
	assert.InDelta(t, -5.0, c.Scoring.PhenotypeModifier.Indeterminate, 1e-9)
	assert.InDelta(t, 0.70, c.Scoring.ConfidenceFloor, 1e-9)

	// Confidence defaults.
	assert.InDelta(t, 0.8, c.Confidence.UncoveredPositionFactor, 1e-9)
	assert.InDelta(t, 0.50, c.Confidence.PhenotypeUnresolvedCap, 1e-9)
	assert.InDelta(t, 0.70, c.Confidence.AutomationBlockedCap, 1e-9)

	// Learner defaults.
	assert.InDelta(t, 0.1, c.Learning.Alpha, 1e-9)
	assert.InDelta(t, 0.95, c.Learning.Decay, 1e-9)
	assert.InDelta(t, 0.80, c.Learning.LowerBound, 1e-9)
	assert.InDelta(t, 1.50, c.Learning.UpperBound, 1e-9)

	// Calibration defaults.
	assert.Equal(t, 10, c.Calibration.Bins)
	assert.InDelta(t, 2.0, c.Calibration.DriftZThreshold, 1e-9)
}

func TestValidate(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle" }},
		{"sqlite without path", func(c *Config) { c.Store.SQLitePath = "" }},
		{"inverted prior bounds", func(c *Config) { c.Learning.LowerBound = 2.0 }},
		{"alpha out of range", func(c *Config) { c.Learning.Alpha = 1.5 }},
		{"zero bins", func(c *Config) { c.Calibration.Bins = 0 }},
		{"no workers", func(c *Config) { c.Pipeline.Workers = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh, err := NewManager()
			require.NoError(t, err)
			tt.mutate(fresh.GetConfig())
			assert.Error(t, fresh.Validate())
		})
	}
}
