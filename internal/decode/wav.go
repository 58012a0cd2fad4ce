package decode

import (
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/halcyon-audio/spindle/internal/model"
)

func init() {
	RegisterFormat(Format{
		Codec: model.CodecWAV,
		Probe: probeWAV,
		New:   newWAVBackend,
	})
}

func probeWAV(src MediaSource) bool {
	var hdr [12]byte
	if _, err := io.ReadFull(src, hdr[:]); err != nil {
		return false
	}
	return string(hdr[0:4]) == "RIFF" && string(hdr[8:12]) == "WAVE"
}

type wavBackend struct {
	dec        *wav.Decoder
	sampleRate int
	channels   int
	bitDepth   int
	totalFrames int64
}

func newWAVBackend(src MediaSource, kind model.ContentKind) (backend, error) {
	rs, ok := src.(io.ReadSeeker)
	if !ok {
		return nil, errNotSeekable
	}
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, errNotWAV
	}
	dec.ReadInfo()

	dur, _ := dec.Duration()
	b := &wavBackend{
		dec:        dec,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		bitDepth:   int(dec.BitDepth),
	}
	if dur > 0 && b.sampleRate > 0 {
		b.totalFrames = int64(dur.Seconds() * float64(b.sampleRate))
	}
	return b, nil
}

func (b *wavBackend) Channels() int         { return b.channels }
func (b *wavBackend) SampleRate() int       { return b.sampleRate }
func (b *wavBackend) BitsPerSample() int    { return b.bitDepth }
func (b *wavBackend) ConstantBitrate() bool { return true }

func (b *wavBackend) TotalDuration() time.Duration {
	if b.sampleRate == 0 {
		return 0
	}
	return time.Duration(b.totalFrames) * time.Second / time.Duration(b.sampleRate)
}

func (b *wavBackend) ReplayGainDB() (float32, bool) { return 0, false }

// Reset seeks to the PCM frame matching at; WAV's frame index is exact
// regardless of coarse, since there is no frame-boundary ambiguity to
// approximate around.
func (b *wavBackend) Reset(at time.Duration, coarse bool) error {
	frame := int64(at.Seconds() * float64(b.sampleRate))
	return b.dec.SeekFrame(frame, io.SeekStart)
}

func (b *wavBackend) NextPacket() ([]float32, packetErrKind, error) {
	buf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: b.sampleRate, NumChannels: b.channels},
		Data:   make([]int, 4096*b.channels),
	}
	n, err := b.dec.PCMBuffer(buf)
	if err != nil && err != io.EOF {
		return nil, packetIOError, err
	}
	if n == 0 {
		return nil, packetEOF, nil
	}
	scale := float32(int64(1) << uint(b.bitDepth-1))
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(buf.Data[i]) / scale
	}
	return out, packetOK, nil
}

var (
	errNotWAV        = simpleErr("decode: not a WAV file")
	errNotSeekable = simpleErr("decode: wav backend requires a seekable source")
)
