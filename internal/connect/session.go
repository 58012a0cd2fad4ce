package connect

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/halcyon-audio/spindle/internal/errs"
	"github.com/halcyon-audio/spindle/internal/gateway"
	"github.com/halcyon-audio/spindle/internal/model"
	"github.com/halcyon-audio/spindle/internal/protocol"
)

// session is one connected websocket's lifetime: it owns the peer
// adoption state and every send/receive for that connection. A fresh
// session is built per reconnect attempt by Engine.runSession.
type session struct {
	engine *Engine
	conn   *websocket.Conn
	user   model.User

	peer *model.DeviceID
}

// run drains frames until the context is cancelled, the token expires,
// or the connection errors, emitting PlaybackProgress on its own ticker
// and on every player state-change event in the meantime.
func (s *session) run(ctx context.Context, tokenExpiry time.Time) error {
	readCh := make(chan []byte)
	errCh := make(chan error, 1)
	go func() {
		for {
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case readCh <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	progressTicker := time.NewTicker(progressInterval)
	defer progressTicker.Stop()

	ttl := time.Until(tokenExpiry)
	if ttl < 0 {
		ttl = 0
	}
	expiryTimer := time.NewTimer(ttl)
	defer expiryTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-expiryTimer.C:
			s.engine.gw.FlushUserToken()
			return errTokenExpired

		case <-progressTicker.C:
			s.emitProgress()

		case <-s.engine.bus.Events():
			s.emitProgress()

		case err := <-errCh:
			return errs.New(errs.Unavailable, "connect: read", err)

		case raw := <-readCh:
			msg, err := protocol.Parse(raw)
			if err != nil {
				s.engine.log.Warnf("connect: parse frame: %v", err)
				continue
			}
			s.handle(ctx, msg)
		}
	}
}

// handle dispatches one parsed frame: app-carrying bodies are routed by
// kind, and any non-ack body addressed to this device on a peer-bound
// channel is acknowledged.
func (s *session) handle(ctx context.Context, msg protocol.Message) {
	if !msg.HasApp {
		return
	}

	switch msg.Body.Kind {
	case protocol.BodyDiscoveryRequest:
		s.handleDiscoveryRequest(msg)
	case protocol.BodyConnect:
		s.handleConnect(ctx, msg)
	case protocol.BodyPublishQueue:
		s.handlePublishQueue(ctx, msg)
	case protocol.BodySkip:
		s.handleSkip(msg)
	}

	if msg.Body.Kind != protocol.BodyAcknowledgement && s.addressedOnPeerChannel(msg) {
		s.sendAck(msg)
	}
}

// addressedOnPeerChannel reports whether msg arrived on one of the three
// per-peer channels (RemoteCommand, RemoteQueue, UserFeed) addressed to
// this device specifically.
func (s *session) addressedOnPeerChannel(msg protocol.Message) bool {
	if msg.Destination == nil || msg.Destination.String() != s.engine.deviceID.String() {
		return false
	}
	switch msg.Channel.Event.Kind {
	case model.EventRemoteCommand, model.EventRemoteQueue, model.EventUserFeed:
		return true
	default:
		return false
	}
}

func (s *session) handleDiscoveryRequest(msg protocol.Message) {
	offer := protocol.ConnectionOfferBody{
		From:                     s.engine.deviceID,
		DeviceName:               s.engine.cfg.Device.Name,
		SupportedControlVersions: supportedControlVersions,
	}
	from := msg.From
	if err := s.sendApp(protocol.StanzaSend, msg.Channel, &from, protocol.Body{Kind: protocol.BodyConnectionOffer, ConnectionOffer: &offer}); err != nil {
		s.engine.log.Warnf("connect: send connection offer: %v", err)
	}
}

// handleConnect adopts msg.From as the controlling peer when
// interruptions are allowed or no peer is yet bound, subscribing to the
// three per-peer channels and announcing Ready. A false gatekeeping bit
// from the gateway's user data refuses the takeover with PermissionDenied
// instead of adopting.
func (s *session) handleConnect(ctx context.Context, msg protocol.Message) {
	if s.peer != nil && s.engine.cfg.NoInterruptions {
		return
	}

	if allowed, err := s.engine.gw.RemoteControlAllowed(ctx); err != nil {
		if errors.Is(err, gateway.ErrTooManyDevices) {
			s.engine.log.Warnf("connect: refusing takeover: device limit reached")
		} else {
			s.engine.log.Warnf("connect: check remote control gate: %v", err)
		}
		s.sendStatus(msg, protocol.StatusErr)
		return
	} else if !allowed {
		s.engine.log.Warnf("connect: refusing takeover: %v", errs.New(errs.PermissionDenied, "connect: remote_control", nil))
		s.sendStatus(msg, protocol.StatusErr)
		return
	}

	peer := msg.Body.Connect.From
	s.peer = &peer

	discover := model.Channel{From: s.user, To: s.user, Event: model.Event{Kind: model.EventRemoteDiscover}}
	command := model.Channel{From: s.user, To: s.user, Event: model.Event{Kind: model.EventRemoteCommand}}
	queue := model.Channel{From: s.user, To: s.user, Event: model.Event{Kind: model.EventRemoteQueue}}
	feed := model.Channel{From: s.user, To: s.user, Event: model.Event{Kind: model.EventUserFeed, User: s.user}}

	for _, ch := range []model.Channel{command, queue, feed} {
		if err := s.subscribe(ch); err != nil {
			s.engine.log.Warnf("connect: subscribe %s: %v", ch, err)
		}
	}
	if err := s.unsubscribe(discover); err != nil {
		s.engine.log.Warnf("connect: unsubscribe %s: %v", discover, err)
	}

	s.engine.setState(StateControlled)

	if err := s.sendApp(protocol.StanzaSend, command, &peer, protocol.Body{Kind: protocol.BodyReady}); err != nil {
		s.engine.log.Warnf("connect: send ready: %v", err)
	}
}

func (s *session) handlePublishQueue(ctx context.Context, msg protocol.Message) {
	status := protocol.StatusOK
	queue, err := s.engine.gw.ListToQueue(ctx, msg.Body.PublishQueue.Queue)
	if err != nil {
		s.engine.log.Warnf("connect: publish queue: %v", err)
		status = protocol.StatusErr
	} else {
		if queue.Shuffle {
			s.engine.log.Warnf("connect: peer published queue with shuffled=true; local shuffle state is authoritative")
		}
		queue.Shuffle = s.engine.player.Shuffle()
		s.engine.player.SetQueue(queue)
	}
	s.sendStatus(msg, status)
}

// handleSkip translates the option set into player calls in the fixed
// order repeat_mode -> shuffle -> volume -> queue position -> progress
// -> playing, logging each applied field.
func (s *session) handleSkip(msg protocol.Message) {
	skip := msg.Body.Skip
	p := s.engine.player

	if skip.SetRepeatMode != nil {
		p.SetRepeatMode(*skip.SetRepeatMode)
		s.engine.log.Debugf("skip: repeat_mode -> %d", skip.SetRepeatMode.Int())
	}
	if skip.SetShuffle != nil {
		p.SetShuffle(*skip.SetShuffle)
		s.engine.log.Debugf("skip: shuffle -> %v", *skip.SetShuffle)
	}
	if skip.SetVolume != nil {
		p.SetVolume(*skip.SetVolume)
		s.engine.log.Debugf("skip: volume -> %v", *skip.SetVolume)
	}
	if skip.Track != nil {
		p.SetPosition(skip.Track.Position)
		s.engine.log.Debugf("skip: queue position -> %d", skip.Track.Position)
	}
	if skip.Progress != nil {
		p.SetProgress(*skip.Progress)
		s.engine.log.Debugf("skip: progress -> %v", *skip.Progress)
	}
	if skip.ShouldPlay != nil {
		p.SetPlaying(*skip.ShouldPlay)
		s.engine.log.Debugf("skip: playing -> %v", *skip.ShouldPlay)
	}

	s.sendStatus(msg, protocol.StatusOK)
}

// emitProgress sends the current player state as a PlaybackProgress on
// RemoteCommand, a no-op until a peer is adopted.
func (s *session) emitProgress() {
	if s.peer == nil {
		return
	}
	p := s.engine.player

	// A livestream has no duration to report a fraction against, so its
	// progress is reported as absent rather than a meaningless 0 or 1.
	var progress *model.Percentage
	if track := p.Track(); track == nil || track.Seekable() {
		if d := p.Duration(); d > 0 {
			v := model.Percentage(p.Progress().Seconds() / d.Seconds()).Clamp()
			progress = &v
		}
	}

	body := protocol.PlaybackProgressBody{
		Track:      p.CurrentQueueItem(),
		Duration:   p.Duration(),
		Buffered:   p.Progress(),
		Progress:   progress,
		Volume:     p.Volume(),
		Quality:    p.AudioQuality(),
		IsPlaying:  p.IsPlaying(),
		IsShuffle:  p.Shuffle(),
		RepeatMode: p.RepeatMode(),
	}

	command := model.Channel{From: s.user, To: s.user, Event: model.Event{Kind: model.EventRemoteCommand}}
	if err := s.sendApp(protocol.StanzaSend, command, s.peer, protocol.Body{Kind: protocol.BodyPlaybackProgress, PlaybackProgress: &body}); err != nil {
		s.engine.log.Warnf("connect: send playback progress: %v", err)
	}
}

func (s *session) sendAck(msg protocol.Message) {
	ack := protocol.AcknowledgementBody{AckID: msg.MessageID}
	if err := s.sendApp(protocol.StanzaSend, msg.Channel, &msg.From, protocol.Body{Kind: protocol.BodyAcknowledgement, Acknowledgement: &ack}); err != nil {
		s.engine.log.Warnf("connect: send ack: %v", err)
	}
}

func (s *session) sendStatus(msg protocol.Message, code protocol.StatusCode) {
	status := protocol.StatusBody{CommandID: msg.MessageID, Status: code}
	if err := s.sendApp(protocol.StanzaSend, msg.Channel, &msg.From, protocol.Body{Kind: protocol.BodyStatus, Status: &status}); err != nil {
		s.engine.log.Warnf("connect: send status: %v", err)
	}
}

// subscribe/unsubscribe send the bodyless 2-element sub/unsub frames.
func (s *session) subscribe(ch model.Channel) error {
	return s.sendEnvelope(protocol.StanzaSub, ch)
}

func (s *session) unsubscribe(ch model.Channel) error {
	return s.sendEnvelope(protocol.StanzaUnsub, ch)
}

func (s *session) sendEnvelope(stanza protocol.Stanza, ch model.Channel) error {
	raw, err := protocol.Emit(protocol.Message{Stanza: stanza, Channel: ch})
	if err != nil {
		return errs.New(errs.InvalidArgument, "connect: emit", err)
	}
	return s.write(raw)
}

// sendApp sends a 3-element send/msg frame carrying body, addressed to
// dest.
func (s *session) sendApp(stanza protocol.Stanza, ch model.Channel, dest *model.DeviceID, body protocol.Body) error {
	raw, err := protocol.Emit(protocol.Message{
		Stanza:      stanza,
		Channel:     ch,
		HasApp:      true,
		From:        s.engine.deviceID,
		Destination: dest,
		MessageID:   uuid.NewString(),
		Body:        body,
	})
	if err != nil {
		return errs.New(errs.InvalidArgument, "connect: emit", err)
	}
	return s.write(raw)
}

func (s *session) write(raw []byte) error {
	if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return errs.New(errs.Unavailable, "connect: write", err)
	}
	return nil
}

var errTokenExpired = simpleErr("connect: user token expired")
