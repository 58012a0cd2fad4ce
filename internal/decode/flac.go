package decode

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"

	"github.com/halcyon-audio/spindle/internal/model"
)

func init() {
	RegisterFormat(Format{
		Codec: model.CodecFLAC,
		Probe: probeFLAC,
		New:   newFLACBackend,
	})
}

func probeFLAC(src MediaSource) bool {
	var magic [4]byte
	if _, err := io.ReadFull(src, magic[:]); err != nil {
		return false
	}
	return string(magic[:]) == "fLaC"
}

type flacBackend struct {
	stream     *flac.Stream
	replayGain *float32
}

func newFLACBackend(src MediaSource, kind model.ContentKind) (backend, error) {
	rs, ok := src.(io.ReadSeeker)
	var stream *flac.Stream
	var err error
	if ok {
		stream, err = flac.NewSeek(rs)
	} else {
		stream, err = flac.New(src)
	}
	if err != nil {
		return nil, err
	}

	b := &flacBackend{stream: stream}
	for _, block := range stream.MetaBlocks {
		if vc, ok := block.Body.(*meta.VorbisComment); ok {
			if gain, ok := replayGainFromVorbis(vc); ok {
				b.replayGain = &gain
			}
		}
	}
	return b, nil
}

func replayGainFromVorbis(vc *meta.VorbisComment) (float32, bool) {
	for _, tag := range vc.Tags {
		if len(tag) == 2 && tag[0] == "REPLAYGAIN_TRACK_GAIN" {
			s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(tag[1]), "dB"))
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 32); err == nil {
				g := float32(f)
				return g, true
			}
		}
	}
	return 0, false
}

func (b *flacBackend) Channels() int   { return int(b.stream.Info.NChannels) }
func (b *flacBackend) SampleRate() int { return int(b.stream.Info.SampleRate) }
func (b *flacBackend) BitsPerSample() int { return int(b.stream.Info.BitsPerSample) }
func (b *flacBackend) ConstantBitrate() bool { return false }

func (b *flacBackend) TotalDuration() time.Duration {
	if b.stream.Info.SampleRate == 0 {
		return 0
	}
	return time.Duration(b.stream.Info.NSamples) * time.Second / time.Duration(b.stream.Info.SampleRate)
}

func (b *flacBackend) ReplayGainDB() (float32, bool) {
	if b.replayGain == nil {
		return 0, false
	}
	return *b.replayGain, true
}

func (b *flacBackend) Reset(at time.Duration, coarse bool) error {
	sampleNum := uint64(at.Seconds() * float64(b.stream.Info.SampleRate))
	_, err := b.stream.Seek(sampleNum)
	return err
}

func (b *flacBackend) NextPacket() ([]float32, packetErrKind, error) {
	f, err := b.stream.ParseNext()
	if err == io.EOF {
		return nil, packetEOF, nil
	}
	if err != nil {
		return nil, packetDecodeError, err
	}

	nch := len(f.Subframes)
	nsamp := f.BlockSize
	bps := f.Subframes[0].BitsPerSample
	scale := float32(int64(1) << uint(bps-1))

	out := make([]float32, int(nsamp)*nch)
	for i := 0; i < int(nsamp); i++ {
		for c := 0; c < nch; c++ {
			out[i*nch+c] = float32(f.Subframes[c].Samples[i]) / scale
		}
	}
	return out, packetOK, nil
}
