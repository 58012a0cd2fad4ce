package decode

import (
	"io"
	"time"

	"github.com/llehouerou/go-faad2"

	"github.com/halcyon-audio/spindle/internal/model"
)

func init() {
	RegisterFormat(Format{
		Codec: model.CodecADTS,
		Probe: probeADTS,
		New:   newADTSBackend,
	})
}

// probeADTS looks for the 12-bit ADTS sync word (0xFFF).
func probeADTS(src MediaSource) bool {
	var hdr [2]byte
	if _, err := io.ReadFull(src, hdr[:]); err != nil {
		return false
	}
	return hdr[0] == 0xFF && hdr[1]&0xF0 == 0xF0
}

type adtsBackend struct {
	src        io.Reader
	dec        *faad2.Decoder
	sampleRate int
	channels   int
}

func newADTSBackend(src MediaSource, kind model.ContentKind) (backend, error) {
	dec := faad2.NewDecoder()
	hdr := make([]byte, 9)
	if _, err := io.ReadFull(src, hdr); err != nil {
		return nil, err
	}
	sampleRate, channels, err := dec.InitADTS(hdr)
	if err != nil {
		return nil, err
	}
	return &adtsBackend{
		src:        io.MultiReader(newPushbackReader(hdr), src),
		dec:        dec,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

func (b *adtsBackend) Channels() int         { return b.channels }
func (b *adtsBackend) SampleRate() int       { return b.sampleRate }
func (b *adtsBackend) BitsPerSample() int    { return 16 }
func (b *adtsBackend) ConstantBitrate() bool { return false }
func (b *adtsBackend) TotalDuration() time.Duration { return 0 } // unknown without a full scan
func (b *adtsBackend) ReplayGainDB() (float32, bool) { return 0, false }

func (b *adtsBackend) Reset(at time.Duration, coarse bool) error {
	return errADTSNotSeekable
}

func (b *adtsBackend) NextPacket() ([]float32, packetErrKind, error) {
	frame := make([]byte, 4096)
	n, err := b.src.Read(frame)
	if n == 0 {
		if err == io.EOF {
			return nil, packetEOF, nil
		}
		return nil, packetIOError, err
	}
	pcm, decErr := b.dec.Decode(frame[:n])
	if decErr != nil {
		return nil, packetDecodeError, decErr
	}
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out, packetOK, nil
}

type pushbackReader struct {
	buf []byte
}

func newPushbackReader(buf []byte) *pushbackReader { return &pushbackReader{buf: buf} }

func (p *pushbackReader) Read(out []byte) (int, error) {
	if len(p.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(out, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

var errADTSNotSeekable = simpleErr("decode: ADTS streams are not seekable without a full scan")
