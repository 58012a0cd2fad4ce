// Package model holds the wire-independent data types shared by the
// decrypt, decode, protocol, connect, and player packages: tracks, queues,
// channels, and the small value types (Percentage, RepeatMode) that travel
// between them.
package model

import "time"

// ContentKind distinguishes the three kinds of playable content.
type ContentKind int

const (
	ContentSong ContentKind = iota
	ContentEpisode
	ContentLivestream
)

// Codec is the human-level audio format the decoder dispatches on; this
// enum is never serialized directly. The gateway names media formats by
// its own string codes (see gateway.HTTPGateway.ResolveMedia) and does not
// fill in Track.Codec.
type Codec int

const (
	CodecADTS Codec = iota
	CodecFLAC
	CodecMP3
	CodecMP4
	CodecWAV
)

func (c Codec) String() string {
	switch c {
	case CodecADTS:
		return "ADTS"
	case CodecFLAC:
		return "FLAC"
	case CodecMP3:
		return "MP3"
	case CodecMP4:
		return "MP4"
	case CodecWAV:
		return "WAV"
	default:
		return "unknown"
	}
}

// Cipher names the encryption applied to a track's media body.
type Cipher int

const (
	CipherNone Cipher = iota
	CipherBlowfishCbcStripe
)

// DownloadState tracks the lifecycle of a track's media body.
type DownloadState int

const (
	DownloadPending DownloadState = iota
	DownloadStarting
	DownloadBuffered
	DownloadComplete
)

// AudioQuality is the reported playback quality tier, surfaced in
// PlaybackProgress and configured with Player.SetAudioQuality.
type AudioQuality int

const (
	QualityBasic AudioQuality = iota
	QualityStandard
	QualityHigh
	QualityLossless
)

func (q AudioQuality) String() string {
	switch q {
	case QualityBasic:
		return "basic"
	case QualityHigh:
		return "high"
	case QualityLossless:
		return "lossless"
	default:
		return "standard"
	}
}

// Int returns the wire-numeric value of q (matches the gateway's own
// quality tier numbering).
func (q AudioQuality) Int() int { return int(q) }

// AudioQualityFromInt maps a wire-numeric quality tier back to an
// AudioQuality, defaulting to Standard for unrecognized values.
func AudioQualityFromInt(n int) AudioQuality {
	switch n {
	case int(QualityBasic):
		return QualityBasic
	case int(QualityHigh):
		return QualityHigh
	case int(QualityLossless):
		return QualityLossless
	default:
		return QualityStandard
	}
}

// TrackID is signed: positive values identify catalog tracks, negative
// values identify user uploads. It participates in key derivation for
// BlowfishCbcStripe, so it must never be zero for an encrypted track.
type TrackID int64

// Track is a single queueable item with everything the decrypt/decode/
// player pipeline needs to fetch, decrypt, decode, and report on it.
type Track struct {
	ID     TrackID
	Kind   ContentKind
	Title  string
	Artist string
	Cover  string

	Duration    time.Duration // zero means unknown/unbounded (livestream)
	ReplayGain  *float32      // dB; nil means no replay-gain metadata
	Codec       Codec
	Cipher      Cipher
	Token       string
	TokenExpiry time.Time

	MediaURL     string
	NotBefore    time.Time
	MediaExpiry  time.Time
	FileSize     *int64 // nil when unknown
	DownloadState DownloadState
}

// Seekable reports whether the track supports seeking at all: livestreams
// never do, per the invariant in spec.md §3.
func (t *Track) Seekable() bool {
	return t.Kind != ContentLivestream
}

// Validate enforces the §3 invariant: an encrypted track must carry a
// valid (non-zero) TrackID because key derivation needs it, and a
// livestream may never claim encryption, a duration, or seekability.
func (t *Track) Validate() error {
	if t.Cipher == CipherBlowfishCbcStripe && t.ID == 0 {
		return errTrackIDRequired
	}
	if t.Kind == ContentLivestream {
		if t.Cipher != CipherNone {
			return errLivestreamCipher
		}
		if t.Duration != 0 {
			return errLivestreamDuration
		}
	}
	return nil
}

var (
	errTrackIDRequired     = simpleErr("track: BlowfishCbcStripe cipher requires a non-zero track id")
	errLivestreamCipher    = simpleErr("track: livestream must not be encrypted")
	errLivestreamDuration  = simpleErr("track: livestream must not declare a duration")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
