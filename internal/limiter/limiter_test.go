package limiter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Ratio:       1.0,
		ThresholdDB: -1.0,
		KneeWidthDB: 4.0,
		Attack:      0.005,
		Release:     0.1,
		SampleRate:  44100,
		Channels:    2,
	}
}

func TestSilenceIsUnityGain(t *testing.T) {
	l := New(testConfig())
	samples := make([]float32, 2*1000)
	l.Process(samples)
	for _, s := range samples {
		require.Equal(t, float32(0), s)
	}
}

func TestLoudSignalIsBounded(t *testing.T) {
	l := New(testConfig())
	samples := make([]float32, 2*4410) // 50ms stereo at 44.1kHz
	for i := range samples {
		samples[i] = 2.0 // well above 0dBFS
	}
	l.Process(samples)
	for _, s := range samples {
		require.LessOrEqual(t, math.Abs(float64(s)), 1.05)
	}
}

func TestResetZeroesState(t *testing.T) {
	l := New(testConfig())
	samples := make([]float32, 2*4410)
	for i := range samples {
		samples[i] = 2.0
	}
	l.Process(samples)
	require.NotZero(t, l.integrator[0])

	l.Reset()
	require.Zero(t, l.integrator[0])
	require.Zero(t, l.smoothed[0])
	require.Zero(t, l.pos)
}
