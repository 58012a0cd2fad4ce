package player

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"

	"github.com/halcyon-audio/spindle/internal/errs"
)

var (
	speakerOnce      sync.Once
	speakerInitErr   error
	globalSampleRate beep.SampleRate
)

// initSpeaker brings up the process-wide speaker output exactly once,
// matching the teacher's speakerOnce.Do(speaker.Init) idiom — every
// sink shares the same output device and sample rate for the life of
// the process.
func initSpeaker(sampleRate int) error {
	speakerOnce.Do(func() {
		globalSampleRate = beep.SampleRate(sampleRate)
		buf := globalSampleRate.N(200 * time.Millisecond)
		speakerInitErr = speaker.Init(globalSampleRate, buf)
	})
	return speakerInitErr
}

// sourceHandle is one entry of the two-slot sources queue: the original
// (pre-resample) decoder streamer, for position queries, plus the
// signal channel closed when it reaches end-of-stream.
type sourceHandle struct {
	source *decoderStreamer
	done   chan struct{}
}

// sink is the single output: a beep.Ctrl gates play/pause, an
// effects.Volume applies the linear volume control, and appendWithSignal
// sequences sources one after another the way the manager's "sources
// queue" expects — a source finishing signals its done channel and the
// sink automatically begins the next appended source.
type sink struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	ctrl       *beep.Ctrl
	volume     *effects.Volume
}

func newSink(sampleRate int) (*sink, error) {
	if err := initSpeaker(sampleRate); err != nil {
		return nil, errs.New(errs.Unavailable, "player: sink init", err)
	}
	s := &sink{sampleRate: globalSampleRate}
	s.ctrl = &beep.Ctrl{Streamer: beep.Silence(-1), Paused: false}
	s.volume = s.mkVolume(1.0)
	speaker.Clear()
	speaker.Play(s.volume)
	return s, nil
}

// mkVolume mirrors the teacher's logarithmic volume mapping: vol<=0 is
// fully silent, otherwise Volume = (vol-1)*5 against a base-2 exponent.
func (s *sink) mkVolume(vol float64) *effects.Volume {
	v := &effects.Volume{Streamer: s.ctrl, Base: 2}
	if vol <= 0 {
		v.Silent = true
	} else {
		v.Volume = (vol - 1) * 5
		v.Silent = false
	}
	return v
}

// SetVolume updates the linear volume control in place under the
// speaker lock.
func (s *sink) SetVolume(vol float64) {
	speaker.Lock()
	if vol <= 0 {
		s.volume.Silent = true
	} else {
		s.volume.Silent = false
		s.volume.Volume = (vol - 1) * 5
	}
	speaker.Unlock()
}

// SetPaused toggles the ctrl's Paused flag under the speaker lock.
func (s *sink) SetPaused(paused bool) {
	speaker.Lock()
	s.ctrl.Paused = paused
	speaker.Unlock()
}

// appendWithSignal installs src (already resampled to the sink's rate)
// as the active streamer and returns a channel closed when src ends.
// Unlike the teacher's single-track replace-on-Play model, this builds
// the signal channel the manager's tick loop polls for promotion.
func (s *sink) appendWithSignal(src *decoderStreamer, srcRate int) *sourceHandle {
	resampled := beep.Streamer(src)
	if srcRate > 0 && beep.SampleRate(srcRate) != s.sampleRate {
		resampled = beep.Resample(4, beep.SampleRate(srcRate), s.sampleRate, src)
	}

	done := make(chan struct{})
	wrapped := beep.Seq(resampled, beep.Callback(func() { close(done) }))

	speaker.Lock()
	s.ctrl.Streamer = wrapped
	s.ctrl.Paused = false
	speaker.Unlock()

	return &sourceHandle{source: src, done: done}
}

// Clear empties the sink back to silence, used when the queue is reset.
func (s *sink) Clear() {
	speaker.Lock()
	s.ctrl.Streamer = beep.Silence(-1)
	speaker.Unlock()
}

// Close tears down the speaker output.
func (s *sink) Close() {
	speaker.Clear()
}
