package decode

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/spindle/internal/model"
)

type fakeSource struct {
	known bool
	size  int64
}

func (f *fakeSource) Read(p []byte) (int, error)             { return 0, io.EOF }
func (f *fakeSource) Seek(o int64, whence int) (int64, error) { return 0, nil }
func (f *fakeSource) Len() (int64, bool)                      { return f.size, f.known }

type fakeBackend struct {
	cbr         bool
	lastAt      time.Duration
	lastCoarse  bool
	resetCalled bool
}

func (b *fakeBackend) Channels() int                  { return 2 }
func (b *fakeBackend) SampleRate() int                 { return 44100 }
func (b *fakeBackend) BitsPerSample() int              { return 16 }
func (b *fakeBackend) TotalDuration() time.Duration    { return 30 * time.Second }
func (b *fakeBackend) ReplayGainDB() (float32, bool)   { return 0, false }
func (b *fakeBackend) ConstantBitrate() bool           { return b.cbr }
func (b *fakeBackend) NextPacket() ([]float32, packetErrKind, error) {
	return nil, packetEOF, nil
}
func (b *fakeBackend) Reset(at time.Duration, coarse bool) error {
	b.resetCalled = true
	b.lastAt = at
	b.lastCoarse = coarse
	return nil
}

func TestTrySeekChoosesCoarseOnlyWhenKnownLengthAndCBR(t *testing.T) {
	b := &fakeBackend{cbr: true}
	d := &Decoder{src: &fakeSource{known: true, size: 1000}, kind: model.ContentSong, backend: b}
	require.NoError(t, d.TrySeek(10*time.Second))
	require.True(t, b.resetCalled)
	require.True(t, b.lastCoarse)

	b2 := &fakeBackend{cbr: false}
	d2 := &Decoder{src: &fakeSource{known: true, size: 1000}, kind: model.ContentSong, backend: b2}
	require.NoError(t, d2.TrySeek(10*time.Second))
	require.False(t, b2.lastCoarse)

	b3 := &fakeBackend{cbr: true}
	d3 := &Decoder{src: &fakeSource{known: false}, kind: model.ContentSong, backend: b3}
	require.NoError(t, d3.TrySeek(10*time.Second))
	require.False(t, b3.lastCoarse)
}

func TestTrySeekRejectsLivestream(t *testing.T) {
	b := &fakeBackend{cbr: true}
	d := &Decoder{src: &fakeSource{known: true, size: 1000}, kind: model.ContentLivestream, backend: b}
	err := d.TrySeek(5 * time.Second)
	require.Error(t, err)
	require.False(t, b.resetCalled)
}
