package decode

import (
	"io"
	"time"

	"github.com/llehouerou/go-faad2"
	"github.com/llehouerou/go-m4a"

	"github.com/halcyon-audio/spindle/internal/model"
)

func init() {
	RegisterFormat(Format{
		Codec: model.CodecMP4,
		Probe: probeMP4,
		New:   newMP4Backend,
	})
}

func probeMP4(src MediaSource) bool {
	var hdr [12]byte
	if _, err := io.ReadFull(src, hdr[:]); err != nil {
		return false
	}
	return string(hdr[4:8]) == "ftyp"
}

type mp4Backend struct {
	demux      *m4a.Demuxer
	dec        *faad2.Decoder
	sampleRate int
	channels   int
	duration   time.Duration
}

func newMP4Backend(src MediaSource, kind model.ContentKind) (backend, error) {
	rs, ok := src.(io.ReadSeeker)
	if !ok {
		return nil, errNotSeekable
	}
	demux, err := m4a.NewDemuxer(rs)
	if err != nil {
		return nil, err
	}
	track := demux.AudioTrack()
	if track == nil {
		return nil, errNoAudioTrack
	}

	dec := faad2.NewDecoder()
	if _, _, err := dec.InitRaw(track.DecoderConfig, track.SampleRate, track.Channels); err != nil {
		return nil, err
	}

	return &mp4Backend{
		demux:      demux,
		dec:        dec,
		sampleRate: track.SampleRate,
		channels:   track.Channels,
		duration:   track.Duration,
	}, nil
}

func (b *mp4Backend) Channels() int         { return b.channels }
func (b *mp4Backend) SampleRate() int       { return b.sampleRate }
func (b *mp4Backend) BitsPerSample() int    { return 16 }
func (b *mp4Backend) ConstantBitrate() bool { return false }
func (b *mp4Backend) TotalDuration() time.Duration { return b.duration }
func (b *mp4Backend) ReplayGainDB() (float32, bool) { return 0, false }

func (b *mp4Backend) Reset(at time.Duration, coarse bool) error {
	return b.demux.SeekTime(at)
}

func (b *mp4Backend) NextPacket() ([]float32, packetErrKind, error) {
	packet, err := b.demux.ReadPacket()
	if err == io.EOF {
		return nil, packetEOF, nil
	}
	if err != nil {
		return nil, packetIOError, err
	}
	pcm, decErr := b.dec.Decode(packet)
	if decErr != nil {
		return nil, packetDecodeError, decErr
	}
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out, packetOK, nil
}

var errNoAudioTrack = simpleErr("decode: mp4 container has no audio track")
