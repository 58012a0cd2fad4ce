// Package limiter implements a feedforward, per-channel-envelope,
// channel-coupled loudness limiter wrapping an interleaved float32 sample
// source, grounded on the same per-sample processing idiom the upstream
// player's audio/effects chain (beep/effects.Volume) wraps a streamer in.
package limiter

import (
	"math"
)

// Config configures a Limiter.
type Config struct {
	Ratio      float64 // fixed pre-gain applied before limiting
	ThresholdDB float64
	KneeWidthDB float64
	Attack      float64 // seconds
	Release     float64 // seconds
	SampleRate  int
	Channels    int
}

// Limiter wraps an interleaved float32 sample source and emits the same
// shape stream with at-most-unity peaks for the configured threshold.
type Limiter struct {
	cfg Config

	attackCoef  float64
	releaseCoef float64

	integrator []float64 // I_c per channel
	smoothed   []float64 // P_c per channel
	pos        int64
}

// New builds a Limiter from cfg.
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:        cfg,
		integrator: make([]float64, cfg.Channels),
		smoothed:   make([]float64, cfg.Channels),
	}
	l.attackCoef = coef(cfg.Attack, cfg.SampleRate)
	l.releaseCoef = coef(cfg.Release, cfg.SampleRate)
	return l
}

func coef(durationSeconds float64, sampleRate int) float64 {
	if durationSeconds <= 0 || sampleRate <= 0 {
		return 0
	}
	return math.Exp(-1.0 / (durationSeconds * float64(sampleRate)))
}

// Reset zeroes both envelope vectors and the position counter, as happens
// on a seek.
func (l *Limiter) Reset() {
	for i := range l.integrator {
		l.integrator[i] = 0
		l.smoothed[i] = 0
	}
	l.pos = 0
}

// Process applies the limiter in place to an interleaved buffer of
// samples, channel index c = position mod channels.
func (l *Limiter) Process(samples []float32) {
	channels := l.cfg.Channels
	if channels <= 0 {
		return
	}
	for i, s := range samples {
		c := int(l.pos % int64(channels))
		samples[i] = l.processSample(s, c)
		l.pos++
	}
}

func (l *Limiter) processSample(s float32, c int) float32 {
	scaled := float64(s) * l.cfg.Ratio

	var limiterDB float64
	if !isNormalFloat(scaled) {
		limiterDB = 0
	} else {
		bias := 20*math.Log10(math.Abs(scaled)) - l.cfg.ThresholdDB
		kb := 2 * bias
		knee := l.cfg.KneeWidthDB
		switch {
		case kb < -knee:
			limiterDB = 0
		case math.Abs(kb) <= knee:
			limiterDB = (kb + knee) * (kb + knee) / (8 * knee)
		default:
			limiterDB = bias
		}
	}

	l.integrator[c] = math.Max(limiterDB, l.releaseCoef*l.integrator[c]+(1-l.releaseCoef)*limiterDB)
	l.smoothed[c] = l.attackCoef*l.smoothed[c] + (1-l.attackCoef)*l.integrator[c]

	maxPeak := l.smoothed[0]
	for i := 1; i < len(l.smoothed); i++ {
		if l.smoothed[i] > maxPeak {
			maxPeak = l.smoothed[i]
		}
	}

	gain := math.Pow(10, -maxPeak/20)
	return float32(scaled * gain)
}

// isNormalFloat reports whether f is finite, non-NaN, and non-subnormal
// (matches Rust's f32::is_normal, which the spec's "not a normal float"
// check is written against).
func isNormalFloat(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	if f == 0 {
		return false
	}
	abs := math.Abs(f)
	return abs >= math.SmallestNonzeroFloat32*(1<<23) // smallest normal float32 magnitude, in float64
}
