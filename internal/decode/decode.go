// Package decode turns a seekable encrypted-free media byte stream into a
// lazy sequence of interleaved float32 samples, dispatching to a
// per-format demuxer/decoder backend the way unlock-music's algo/qmc.go
// registers decoders by file extension and probes when the format isn't
// already known (common.RegisterDecoder).
package decode

import (
	"io"
	"time"

	"github.com/halcyon-audio/spindle/internal/errs"
	"github.com/halcyon-audio/spindle/internal/model"
)

// MaxRetries bounds how many consecutive DecodeError packets a Decoder
// tolerates before giving up on the stream.
const MaxRetries = 3

// MediaSource is a seekable byte stream with optionally known length.
type MediaSource interface {
	io.Reader
	io.Seeker
	Len() (size int64, known bool)
}

// packetErrKind classifies what a backend's NextPacket call reported, so
// the Decoder's retry loop can decide whether to skip-and-count, reset,
// or stop.
type packetErrKind int

const (
	packetOK packetErrKind = iota
	packetDecodeError
	packetResetRequired
	packetEOF
	packetIOError
)

// backend is the per-codec implementation a Format constructs.
type backend interface {
	Channels() int
	SampleRate() int
	BitsPerSample() int
	TotalDuration() time.Duration // 0 if unknown
	ReplayGainDB() (float32, bool)
	ConstantBitrate() bool
	NextPacket() ([]float32, packetErrKind, error)
	// Reset seeks the backend to at. coarse is true iff the source has a
	// known byte length and the codec is constant-bitrate, in which case a
	// backend may use a cheap byte-offset estimate instead of an exact
	// decode-forward seek.
	Reset(at time.Duration, coarse bool) error
}

// Format binds a Codec to a probe function and a constructor.
type Format struct {
	Codec       model.Codec
	Probe       func(src MediaSource) bool
	New         func(src MediaSource, kind model.ContentKind) (backend, error)
}

var registry = map[model.Codec]Format{}

// RegisterFormat adds f to the format registry; called from each backend's
// init().
func RegisterFormat(f Format) { registry[f.Codec] = f }

// defaultChannels returns the content-kind-specific channel count used
// when a codec doesn't report one.
func defaultChannels(kind model.ContentKind) int {
	switch kind {
	case model.ContentLivestream:
		return 2
	default:
		return 2 // stereo for songs and episodes
	}
}

const defaultSampleRate = 44100

// Decoder is a lazy, finite sequence of interleaved float32 samples with
// a reusable packet buffer and bounded decode-error retry budget.
type Decoder struct {
	src     MediaSource
	kind    model.ContentKind
	backend backend

	buf    []float32
	bufPos int

	retries int
	done    bool
}

// New selects a backend for track.Codec directly (the metadata is known)
// and constructs a Decoder over src.
func New(src MediaSource, track *model.Track) (*Decoder, error) {
	fmtEntry, ok := registry[track.Codec]
	if !ok {
		return nil, errs.New(errs.Unimplemented, "decode: new", errUnknownCodec)
	}
	b, err := fmtEntry.New(src, track.Kind)
	if err != nil {
		return nil, errs.New(errs.FailedPrecondition, "decode: new", err)
	}
	return &Decoder{src: src, kind: track.Kind, backend: b}, nil
}

// Probe tries every registered format in turn and constructs a Decoder
// from the first one whose Probe function accepts src. Used when the
// codec isn't known from metadata.
func Probe(src MediaSource, kind model.ContentKind) (*Decoder, error) {
	for _, f := range registry {
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return nil, errs.New(errs.Unavailable, "decode: probe", err)
		}
		if f.Probe(src) {
			if _, err := src.Seek(0, io.SeekStart); err != nil {
				return nil, errs.New(errs.Unavailable, "decode: probe", err)
			}
			b, err := f.New(src, kind)
			if err != nil {
				continue
			}
			return &Decoder{src: src, kind: kind, backend: b}, nil
		}
	}
	return nil, errs.New(errs.Unimplemented, "decode: probe", errNoMatchingFormat)
}

// Channels returns the stream's channel count, defaulted per content kind.
func (d *Decoder) Channels() int {
	if c := d.backend.Channels(); c > 0 {
		return c
	}
	return defaultChannels(d.kind)
}

// SampleRate returns the stream's sample rate, defaulted to 44.1kHz.
func (d *Decoder) SampleRate() int {
	if r := d.backend.SampleRate(); r > 0 {
		return r
	}
	return defaultSampleRate
}

func (d *Decoder) BitsPerSample() int       { return d.backend.BitsPerSample() }
func (d *Decoder) TotalDuration() time.Duration { return d.backend.TotalDuration() }

// ReplayGain returns the track's ReplayGainTrackGain value, if present.
func (d *Decoder) ReplayGain() (float32, bool) { return d.backend.ReplayGainDB() }

// TrySeek seeks to the given position, choosing coarse mode iff the
// source has a known length and the codec is constant-bitrate, accurate
// mode otherwise. A livestream has no seekable timeline at all, so it
// always reports Unimplemented regardless of backend. The backend is
// reset on success to discard any in-flight frame.
func (d *Decoder) TrySeek(at time.Duration) error {
	if d.kind == model.ContentLivestream {
		return errs.New(errs.Unimplemented, "decode: seek", errLivestreamNotSeekable)
	}

	_, known := d.src.Len()
	coarse := known && d.backend.ConstantBitrate()

	if err := d.backend.Reset(at, coarse); err != nil {
		return errs.New(errs.FailedPrecondition, "decode: seek", err)
	}
	d.buf = nil
	d.bufPos = 0
	d.retries = 0
	d.done = false
	return nil
}

// Next returns the next interleaved sample, or (0, false) at clean end of
// stream.
func (d *Decoder) Next() (float32, bool) {
	if d.done {
		return 0, false
	}

	for {
		if d.bufPos < len(d.buf) {
			s := d.buf[d.bufPos]
			d.bufPos++
			return s, true
		}

		pkt, kind, err := d.backend.NextPacket()
		switch kind {
		case packetOK:
			d.buf = pkt
			d.bufPos = 0
			d.retries = 0
			continue
		case packetDecodeError:
			d.retries++
			if d.retries >= MaxRetries {
				d.done = true
				return 0, false
			}
			continue
		case packetResetRequired:
			d.buf = nil
			d.bufPos = 0
			continue
		case packetEOF:
			d.done = true
			return 0, false
		default:
			_ = err
			d.done = true
			return 0, false
		}
	}
}

var (
	errUnknownCodec          = simpleErr("decode: no format registered for codec")
	errNoMatchingFormat      = simpleErr("decode: no registered format matched the stream")
	errLivestreamNotSeekable = simpleErr("decode: livestream has no seekable timeline")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
