package player

import (
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"

	"github.com/halcyon-audio/spindle/internal/decode"
	"github.com/halcyon-audio/spindle/internal/limiter"
)

// decoderStreamer adapts a decode.Decoder (optionally wrapped with a
// pre-gain ratio and a limiter.Limiter) into a beep.Streamer, the same
// role the teacher's beep.StreamSeekCloser plays directly against
// beep/mp3 — here the decode/limiter packages replace beep's own codec
// and effects chain so every format and the loudness normalization stay
// under spindle's control.
type decoderStreamer struct {
	dec        *decode.Decoder
	lim        *limiter.Limiter
	gain       float64 // pre-gain ratio; 1.0 when normalization is off
	channels   int
	sampleRate int
	done       bool

	framesEmitted int64 // atomic; read by Position from another goroutine
	baseFrames    int64 // atomic; offset added after a seek
}

func newDecoderStreamer(dec *decode.Decoder, lim *limiter.Limiter, gain float64) *decoderStreamer {
	return &decoderStreamer{dec: dec, lim: lim, gain: gain, channels: dec.Channels(), sampleRate: dec.SampleRate()}
}

// Position reports elapsed playback time based on frames actually pulled
// through Stream plus any base offset set by a prior seek, independent of
// the sink's own resampled clock.
func (s *decoderStreamer) Position() time.Duration {
	frames := atomic.LoadInt64(&s.baseFrames) + atomic.LoadInt64(&s.framesEmitted)
	if s.sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(s.sampleRate)
}

// SetBase re-anchors Position after a seek to at, resetting the
// emitted-frame counter so subsequent Stream calls count from at.
func (s *decoderStreamer) SetBase(at time.Duration) {
	frames := int64(at.Seconds() * float64(s.sampleRate))
	atomic.StoreInt64(&s.baseFrames, frames)
	atomic.StoreInt64(&s.framesEmitted, 0)
	s.done = false
}

// ResetLimiter zeroes the limiter's envelope state, if one is attached.
// Called alongside SetBase on every seek so the limiter never carries
// stale envelope state across a seek boundary.
func (s *decoderStreamer) ResetLimiter() {
	if s.lim != nil {
		s.lim.Reset()
	}
}

// Stream fills samples with stereo float64 frames, pulling from the
// decoder one interleaved sample at a time, applying pre-gain and the
// limiter over a per-call scratch buffer, then downmixing/upmixing to
// stereo.
func (s *decoderStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.done {
		return 0, false
	}

	n := 0
	frame := make([]float32, s.channels)
	for n < len(samples) {
		ok := true
		for c := 0; c < s.channels; c++ {
			v, has := s.dec.Next()
			if !has {
				ok = false
				break
			}
			frame[c] = v
		}
		if !ok {
			s.done = true
			break
		}

		if s.gain != 1.0 {
			for c := range frame {
				frame[c] = float32(float64(frame[c]) * s.gain)
			}
		}
		if s.lim != nil {
			s.lim.Process(frame)
		}

		switch s.channels {
		case 1:
			samples[n][0] = float64(frame[0])
			samples[n][1] = float64(frame[0])
		case 2:
			samples[n][0] = float64(frame[0])
			samples[n][1] = float64(frame[1])
		default:
			var sum float64
			for _, f := range frame {
				sum += float64(f)
			}
			avg := sum / float64(len(frame))
			samples[n][0] = avg
			samples[n][1] = avg
		}
		n++
	}

	if n > 0 {
		atomic.AddInt64(&s.framesEmitted, int64(n))
	}
	return n, n > 0
}

func (s *decoderStreamer) Err() error { return nil }

var _ beep.Streamer = (*decoderStreamer)(nil)
