// Package player is the queue manager and audio pipeline: it owns the
// two-slot sources queue (current/preload), drives a single output sink,
// and exposes the full queue/playback control surface the connect engine
// calls into — structured after the teacher's Player (internal/audio/
// player.go), generalized from a single fyne-bound track to a shuffled,
// repeat-aware, protocol-addressable queue.
package player

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-audio/spindle/internal/config"
	"github.com/halcyon-audio/spindle/internal/decode"
	"github.com/halcyon-audio/spindle/internal/decrypt"
	"github.com/halcyon-audio/spindle/internal/events"
	"github.com/halcyon-audio/spindle/internal/gateway"
	"github.com/halcyon-audio/spindle/internal/httpx"
	"github.com/halcyon-audio/spindle/internal/limiter"
	"github.com/halcyon-audio/spindle/internal/logging"
	"github.com/halcyon-audio/spindle/internal/model"
)

// seekEps is the "close enough to 1.0" tolerance set_progress uses to
// treat a seek as "advance to next" instead of an in-track seek.
const seekEps = 1e-6

// slot holds one loaded source: the track it belongs to, its decoder
// (for seeking), and its sink handle (for the done signal and live
// position).
type slot struct {
	track  *model.Track
	dec    *decode.Decoder
	handle *sourceHandle
}

// Player is the queue manager. All public methods are safe for
// concurrent use; the tick loop runs on whatever goroutine calls Tick,
// normally the session supervisor's single orchestration task.
type Player struct {
	cfg    *config.Config
	gw     gateway.Gateway
	client *httpx.Client
	salt   config.DecryptSalt
	bus    *events.Bus
	log    *logging.Logger

	mu   sync.Mutex
	rng  *rand.Rand
	sink *sink

	queue *model.Queue

	playing      bool
	volume       model.Percentage
	normalize    bool
	gainTargetDB float64
	quality      model.AudioQuality
	licenseToken string

	current *slot
	preload *slot
	loading bool

	// pendingSeekFrac holds a seek fraction requested before a decoder
	// existed to apply it to; resolved against the track's duration once
	// startLoad constructs the next "current" decoder.
	pendingSeekFrac *float64
}

// New constructs a Player with its own output sink. sampleRate is the
// sink's fixed output rate (cfg.Audio.SampleRate).
func New(cfg *config.Config, gw gateway.Gateway, client *httpx.Client, salt config.DecryptSalt, bus *events.Bus, log *logging.Logger) (*Player, error) {
	sk, err := newSink(cfg.Audio.SampleRate)
	if err != nil {
		return nil, err
	}
	p := &Player{
		cfg:          cfg,
		gw:           gw,
		client:       client,
		salt:         salt,
		bus:          bus,
		log:          log,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		sink:         sk,
		queue:        model.NewQueue(uuid.Nil, nil),
		volume:       model.Percentage(cfg.Audio.DefaultVolume),
		normalize:    cfg.Audio.Normalize,
		gainTargetDB: cfg.Audio.GainTargetDB,
		quality:      audioQualityFromString(cfg.Audio.Quality),
	}
	sk.SetVolume(float64(p.volume))
	return p, nil
}

func audioQualityFromString(s string) model.AudioQuality {
	switch s {
	case "basic":
		return model.QualityBasic
	case "high":
		return model.QualityHigh
	case "lossless":
		return model.QualityLossless
	default:
		return model.QualityStandard
	}
}

// SetQueue replaces the whole queue and resets both source slots, the
// way a fresh queue.List publish always starts play-out from scratch.
func (p *Player) SetQueue(q *model.Queue) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = nil
	p.preload = nil
	p.sink.Clear()
	p.queue = q
	p.bus.Publish(events.Event{Kind: events.QueueChanged})
}

// SetPosition jumps to pos in queue order, discarding whatever is
// currently loaded so the next Tick loads the new track fresh.
func (p *Player) SetPosition(pos int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queue == nil || pos < 0 || pos >= p.queue.Len() {
		return
	}
	p.queue.Position = pos
	p.current = nil
	p.preload = nil
	p.sink.Clear()
	p.bus.Publish(events.Event{Kind: events.TrackChanged})
}

// SetShuffle toggles shuffle, regenerating queue_order while preserving
// the current logical track, per §4.G.
func (p *Player) SetShuffle(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queue == nil {
		return
	}
	p.queue.SetShuffle(on, p.rng)
	p.bus.Publish(events.Event{Kind: events.ShuffleChanged})
}

// SetRepeatMode updates the queue's repeat rule.
func (p *Player) SetRepeatMode(mode model.RepeatMode) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queue == nil {
		return
	}
	p.queue.Repeat = mode
	p.bus.Publish(events.Event{Kind: events.RepeatModeChanged})
}

// SetVolume applies a new linear volume in [0, 1] to the sink
// immediately.
func (p *Player) SetVolume(vol model.Percentage) {
	p.mu.Lock()
	p.volume = vol.Clamp()
	p.mu.Unlock()

	p.sink.SetVolume(float64(vol.Clamp()))
	p.bus.Publish(events.Event{Kind: events.VolumeChanged})
}

// SetPlaying pauses or resumes the sink in place.
func (p *Player) SetPlaying(playing bool) {
	p.mu.Lock()
	p.playing = playing
	p.mu.Unlock()

	p.sink.SetPaused(!playing)
	if playing {
		p.bus.Publish(events.Event{Kind: events.Play})
	} else {
		p.bus.Publish(events.Event{Kind: events.Pause})
	}
}

// SetLicenseToken updates the token used to authorize media resolution.
func (p *Player) SetLicenseToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.licenseToken = token
}

// SetAudioQuality updates the quality tier reported in PlaybackProgress.
// Media resolution does not use it: the gateway request always asks for
// the same format.
func (p *Player) SetAudioQuality(q model.AudioQuality) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quality = q
}

// SetNormalization toggles replay-gain based pre-scaling and limiting.
// It only takes effect for sources loaded after the call.
func (p *Player) SetNormalization(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.normalize = on
}

// SetGainTargetDB updates the normalization target level.
func (p *Player) SetGainTargetDB(target float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gainTargetDB = target
}

// SetProgress implements the §4.G seek contract: a fraction within
// seekEps of 1.0 advances to the next track, 0 seeks to the start,
// anything else seeks to duration*p. If the decoder isn't ready yet, the
// position is deferred and applied once it is.
func (p *Player) SetProgress(frac model.Percentage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if math.Abs(float64(frac)-1.0) <= seekEps {
		p.advanceLocked()
		return
	}

	if p.current != nil && !p.current.track.Seekable() {
		return
	}

	if p.current == nil || p.current.dec == nil {
		f := float64(frac.Clamp())
		p.pendingSeekFrac = &f
		return
	}

	track := p.current.track
	var at time.Duration
	if frac != 0 {
		at = time.Duration(float64(track.Duration) * float64(frac.Clamp()))
	}

	if err := p.current.dec.TrySeek(at); err != nil {
		f := float64(frac.Clamp())
		p.pendingSeekFrac = &f
		return
	}
	p.current.handle.source.SetBase(at)
	p.current.handle.source.ResetLimiter()
	p.bus.Publish(events.Event{Kind: events.ProgressChanged})
}

// advanceLocked applies the queue's repeat-aware advance rule. Called
// with mu held.
func (p *Player) advanceLocked() {
	if p.queue == nil {
		return
	}
	if p.queue.Repeat == model.RepeatOne {
		if p.current != nil && p.current.track.Seekable() {
			_ = p.current.dec.TrySeek(0)
			p.current.handle.source.SetBase(0)
			p.current.handle.source.ResetLimiter()
		}
		return
	}
	pause := p.queue.Advance()
	p.current = nil
	p.preload = nil
	p.sink.Clear()
	if pause {
		p.playing = false
	}
	p.bus.Publish(events.Event{Kind: events.TrackChanged})
}

// Track returns the currently playing track, or nil.
func (p *Player) Track() *model.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	return p.current.track
}

// Progress returns the current playback position.
func (p *Player) Progress() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.handle == nil {
		return 0
	}
	return p.current.handle.source.Position()
}

// Volume returns the current linear volume.
func (p *Player) Volume() model.Percentage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// IsPlaying reports whether the sink is unpaused.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// AudioQuality returns the configured playback quality tier.
func (p *Player) AudioQuality() model.AudioQuality {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quality
}

// Duration returns the current track's total duration, zero if unknown
// or nothing is loaded.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0
	}
	return p.current.track.Duration
}

// Position returns the queue's current position index.
func (p *Player) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue == nil {
		return 0
	}
	return p.queue.Position
}

// Shuffle reports whether shuffle is enabled.
func (p *Player) Shuffle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue != nil && p.queue.Shuffle
}

// CurrentQueueItem addresses the currently playing track within the
// queue, for PlaybackProgress reporting; nil if nothing is loaded.
func (p *Player) CurrentQueueItem() *model.QueueItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue == nil || p.current == nil {
		return nil
	}
	return &model.QueueItem{
		QueueUUID: p.queue.UUID,
		TrackID:   p.current.track.ID,
		Position:  p.queue.Position,
	}
}

// RepeatMode returns the queue's repeat mode.
func (p *Player) RepeatMode() model.RepeatMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue == nil {
		return model.RepeatNone
	}
	return p.queue.Repeat
}

// Tick runs one iteration of the §4.G pipeline loop: promote a finished
// preload, start loading a preload, or start loading the current track,
// in that priority order.
func (p *Player) Tick(ctx context.Context) {
	p.mu.Lock()

	if p.current != nil {
		select {
		case <-p.current.handle.done:
			if p.preload != nil {
				p.current = p.preload
				p.preload = nil
			} else {
				p.current = nil
			}
			pause := false
			if p.queue != nil {
				pause = p.queue.Advance()
			}
			if pause {
				p.playing = false
				p.sink.SetPaused(true)
			}
			p.bus.Publish(events.Event{Kind: events.Play})
			p.mu.Unlock()
			return
		default:
		}
	}

	if p.preload == nil && !p.loading && p.currentFullyLoadedLocked() &&
		p.queue != nil && p.queue.Repeat != model.RepeatOne && p.hasNextLocked() {
		p.loading = true
		nextPos := p.nextPositionLocked()
		track := p.queue.TrackAt(nextPos)
		p.mu.Unlock()
		p.startLoad(ctx, track, true)
		return
	}

	if p.current == nil && !p.loading && p.queue != nil {
		track := p.queue.Current()
		if track != nil {
			p.loading = true
			p.mu.Unlock()
			p.startLoad(ctx, track, false)
			return
		}
	}

	p.mu.Unlock()
}

func (p *Player) currentFullyLoadedLocked() bool {
	return p.current != nil && p.current.track.DownloadState == model.DownloadComplete
}

func (p *Player) hasNextLocked() bool {
	if p.queue == nil || p.queue.Len() == 0 {
		return false
	}
	next := p.nextPositionLocked()
	return p.queue.TrackAt(next) != nil
}

func (p *Player) nextPositionLocked() int {
	pos := p.queue.Position + 1
	if pos >= p.queue.Len() {
		pos = 0
	}
	return pos
}

// startLoad resolves media, decrypts, decodes, and appends track to the
// sink, installing it as current or preload depending on asPreload.
func (p *Player) startLoad(ctx context.Context, track *model.Track, asPreload bool) {
	defer func() {
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
	}()

	if track == nil {
		return
	}

	if track.MediaURL == "" {
		p.mu.Lock()
		token := p.licenseToken
		p.mu.Unlock()
		if err := p.gw.ResolveMedia(ctx, token, []*model.Track{track}); err != nil {
			p.log.Warnf("player: resolve media for track %d: %v", track.ID, err)
			return
		}
	}

	dl, err := p.client.Get(ctx, track.MediaURL)
	if err != nil {
		p.log.Warnf("player: fetch track %d: %v", track.ID, err)
		return
	}

	var src decode.MediaSource
	if track.Cipher != model.CipherNone {
		size, _ := dl.Len()
		stream, err := decrypt.New(dl, track.Cipher, track.ID, [16]byte(p.salt), size)
		if err != nil {
			p.log.Warnf("player: decrypt track %d: %v", track.ID, err)
			return
		}
		src = stream
	} else {
		src = mediaSourceAdapter{dl}
	}

	dec, err := decode.New(src, track)
	if err != nil {
		dec, err = decode.Probe(src, track.Kind)
		if err != nil {
			p.log.Warnf("player: decode track %d: %v", track.ID, err)
			return
		}
	}

	p.mu.Lock()
	var seekAt *time.Duration
	if p.pendingSeekFrac != nil && !asPreload {
		frac := *p.pendingSeekFrac
		p.pendingSeekFrac = nil
		at := time.Duration(float64(track.Duration) * frac)
		seekAt = &at
	}
	p.mu.Unlock()

	if seekAt != nil {
		_ = dec.TrySeek(*seekAt)
	}

	p.mu.Lock()
	var gainRatio float64 = 1.0
	var lim *limiter.Limiter
	if p.normalize && track.ReplayGain != nil {
		gainRatio = math.Pow(10, (p.gainTargetDB-float64(*track.ReplayGain))/20.0)
		lim = limiter.New(limiter.Config{
			Ratio:       1.0, // the pre-gain is applied by decoderStreamer
			ThresholdDB: p.cfg.Limiter.ThresholdDB,
			KneeWidthDB: p.cfg.Limiter.KneeDB,
			Attack:      p.cfg.Limiter.AttackMs / 1000.0,
			Release:     p.cfg.Limiter.ReleaseMs / 1000.0,
			SampleRate:  dec.SampleRate(),
			Channels:    dec.Channels(),
		})
	}
	p.mu.Unlock()

	streamer := newDecoderStreamer(dec, lim, gainRatio)
	if seekAt != nil {
		streamer.SetBase(*seekAt)
	}
	handle := p.sink.appendWithSignal(streamer, dec.SampleRate())
	track.DownloadState = model.DownloadBuffered

	newSlot := &slot{track: track, dec: dec, handle: handle}

	p.mu.Lock()
	if asPreload {
		p.preload = newSlot
	} else {
		p.current = newSlot
		if p.playing {
			p.sink.SetPaused(false)
		}
	}
	p.mu.Unlock()

	p.bus.Publish(events.Event{Kind: events.TrackChanged})
}

// mediaSourceAdapter wraps an httpx.BufferedDownload (which already
// implements Read/Seek/Len) as a decode.MediaSource for unencrypted
// tracks, where no decrypt.Stream sits in between.
type mediaSourceAdapter struct {
	*httpx.BufferedDownload
}

var _ decode.MediaSource = mediaSourceAdapter{}

// Close releases the player's output device; call once at shutdown.
func (p *Player) Close() error {
	p.sink.Close()
	return nil
}
