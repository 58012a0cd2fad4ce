package decode

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/halcyon-audio/spindle/internal/model"
)

func init() {
	RegisterFormat(Format{
		Codec: model.CodecMP3,
		Probe: probeMP3,
		New:   newMP3Backend,
	})
}

// probeMP3 looks for an MPEG audio frame sync (0xFFE..) within the first
// few KiB, tolerating a leading ID3v2 tag.
func probeMP3(src MediaSource) bool {
	buf := make([]byte, 8192)
	n, _ := io.ReadFull(src, buf)
	buf = buf[:n]

	start := 0
	if n >= 10 && string(buf[0:3]) == "ID3" {
		size := int(buf[6]&0x7f)<<21 | int(buf[7]&0x7f)<<14 | int(buf[8]&0x7f)<<7 | int(buf[9]&0x7f)
		start = 10 + size
	}
	for i := start; i+1 < len(buf); i++ {
		if buf[i] == 0xFF && buf[i+1]&0xE0 == 0xE0 {
			return true
		}
	}
	return false
}

type mp3Backend struct {
	src        MediaSource
	dec        *mp3.Decoder
	sampleRate int
	replayGain *float32
	cbr        bool
	totalBytes int64 // -1 if unknown
}

func newMP3Backend(src MediaSource, kind model.ContentKind) (backend, error) {
	dec, err := mp3.NewDecoder(src)
	if err != nil {
		return nil, err
	}
	size, known := src.Len()
	total := int64(-1)
	if known {
		total = size
	}
	return &mp3Backend{
		src:        src,
		dec:        dec,
		sampleRate: dec.SampleRate(),
		cbr:        true, // go-mp3 assumes CBR for its length estimate
		totalBytes: total,
	}, nil
}

func (b *mp3Backend) Channels() int       { return 2 }
func (b *mp3Backend) SampleRate() int     { return b.sampleRate }
func (b *mp3Backend) BitsPerSample() int  { return 16 }
func (b *mp3Backend) ConstantBitrate() bool { return b.cbr }

func (b *mp3Backend) TotalDuration() time.Duration {
	length := b.dec.Length()
	if length <= 0 || b.sampleRate <= 0 {
		return 0
	}
	// 16-bit stereo PCM: 4 bytes per sample frame.
	frames := length / 4
	return time.Duration(frames) * time.Second / time.Duration(b.sampleRate)
}

func (b *mp3Backend) ReplayGainDB() (float32, bool) {
	if b.replayGain == nil {
		return 0, false
	}
	return *b.replayGain, true
}

// Reset seeks to at. In accurate mode it uses go-mp3's own Seek, which
// decodes forward from the nearest frame to land on the exact requested
// PCM sample. In coarse mode (known byte length, assumed CBR) it instead
// estimates a raw file byte offset from the target's fraction of the
// total duration and reopens the decoder there directly, trading a
// pinpoint-exact landing position for an O(1) seek instead of decoding
// through everything before it.
func (b *mp3Backend) Reset(at time.Duration, coarse bool) error {
	if b.sampleRate <= 0 {
		return nil
	}

	if coarse && b.totalBytes > 0 {
		total := b.TotalDuration()
		if total > 0 {
			frac := at.Seconds() / total.Seconds()
			if frac < 0 {
				frac = 0
			}
			if frac > 1 {
				frac = 1
			}
			offset := int64(frac * float64(b.totalBytes))
			if _, err := b.src.Seek(offset, io.SeekStart); err != nil {
				return err
			}
			dec, err := mp3.NewDecoder(b.src)
			if err != nil {
				return err
			}
			b.dec = dec
			return nil
		}
	}

	frame := int64(at.Seconds() * float64(b.sampleRate))
	_, err := b.dec.Seek(frame*4, io.SeekStart)
	return err
}

func (b *mp3Backend) NextPacket() ([]float32, packetErrKind, error) {
	raw := make([]byte, 4*4096) // 4096 stereo frames of 16-bit samples
	n, err := b.dec.Read(raw)
	if n == 0 {
		if err == io.EOF {
			return nil, packetEOF, nil
		}
		if err != nil {
			return nil, packetIOError, err
		}
	}
	raw = raw[:n-n%4]
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	if err == io.EOF && len(samples) == 0 {
		return nil, packetEOF, nil
	}
	return samples, packetOK, nil
}
