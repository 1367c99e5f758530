package scene

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalTolerantFields(t *testing.T) {
	var s Snapshot
	payload := `{
		"obstacles": [{"distance": 0.3}, {"distance": "2.5"}, {"distance": "far"}, {}],
		"temperature": "32°C",
		"lighting": "昏暗",
		"safety_status": "安全",
		"area": "客厅",
		"speed": "fast"
	}`
	require.NoError(t, json.Unmarshal([]byte(payload), &s))

	require.Len(t, s.Obstacles, 4)
	nearest, ok := s.NearestObstacle()
	require.True(t, ok)
	assert.InDelta(t, 0.3, nearest, 1e-9)
	assert.Nil(t, s.Obstacles[2].Distance)

	_, ok = s.SpeedValue()
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"speed", "obstacles.distance"}, s.Malformed)

	temp, ok := s.TemperatureCelsius()
	require.True(t, ok)
	assert.Equal(t, 32.0, temp)

	level, ok := s.LightingLevel()
	require.True(t, ok)
	assert.Equal(t, LightingDim, level)
	assert.False(t, s.ReportsDanger())
}

func TestNumericSpeed(t *testing.T) {
	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"speed": 3}`), &s))
	v, ok := s.SpeedValue()
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
	assert.Empty(t, s.Malformed)
}

func TestTemperatureParsing(t *testing.T) {
	cases := map[string]struct {
		value float64
		ok    bool
	}{
		"25°C":  {25, true},
		"-3℃":   {-3, true},
		"12.5C": {12.5, true},
		"18":    {18, true},
		"warm":  {0, false},
		"":      {0, false},
	}
	for input, want := range cases {
		s := &Snapshot{Temperature: input}
		got, ok := s.TemperatureCelsius()
		assert.Equal(t, want.ok, ok, input)
		if want.ok {
			assert.Equal(t, want.value, got, input)
		}
	}
}

func TestNilSnapshotIsNeutral(t *testing.T) {
	var s *Snapshot
	assert.False(t, s.HasObstacles())
	assert.False(t, s.ReportsDanger())
	_, ok := s.NearestObstacle()
	assert.False(t, ok)
	_, ok = s.TemperatureCelsius()
	assert.False(t, ok)
}

func TestReportsDanger(t *testing.T) {
	assert.True(t, (&Snapshot{SafetyStatus: "危险"}).ReportsDanger())
	assert.True(t, (&Snapshot{SafetyStatus: "hazard"}).ReportsDanger())
	assert.False(t, (&Snapshot{SafetyStatus: "SAFE"}).ReportsDanger())
}
