package connect

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/halcyon-audio/spindle/internal/config"
	"github.com/halcyon-audio/spindle/internal/errs"
	"github.com/halcyon-audio/spindle/internal/events"
	"github.com/halcyon-audio/spindle/internal/gateway"
	"github.com/halcyon-audio/spindle/internal/logging"
	"github.com/halcyon-audio/spindle/internal/model"
	"github.com/halcyon-audio/spindle/internal/player"
	"github.com/halcyon-audio/spindle/internal/protocol"
)

// progressInterval is how often PlaybackProgress is emitted absent any
// player state-change event.
const progressInterval = 5 * time.Second

// reconnectBaseMs/reconnectJitterMs bound the uniform jittered backoff
// applied after a session ends, 5,000-6,000ms per §4.E.
const (
	reconnectBaseMs   = 5000
	reconnectJitterMs = 1000
)

// supportedControlVersions is advertised verbatim in every ConnectionOffer.
var supportedControlVersions = []string{
	protocol.DiscoveryVersion,
	protocol.CommandVersion,
	protocol.QueueVersion,
}

// Engine drives one device's remote-control session: acquiring a token,
// opening the websocket, advertising discoverability, and adopting a
// controlling peer, reconnecting with jittered backoff whenever the
// connection drops — structured after the upstream player's single
// long-lived session loop, generalized into an explicit state machine
// since a headless daemon has no UI thread to fall back on for recovery.
type Engine struct {
	cfg    *config.Config
	gw     gateway.Gateway
	player *player.Player
	bus    *events.Bus
	log    *logging.Logger

	deviceID model.DeviceID
	rng      *rand.Rand

	mu    sync.Mutex
	state State
}

// New builds an Engine. cfg.Device.ID must already be resolved (see
// config.Config.ResolveDeviceID) before the engine starts.
func New(cfg *config.Config, gw gateway.Gateway, p *player.Player, bus *events.Bus, log *logging.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		gw:       gw,
		player:   p,
		bus:      bus,
		log:      log,
		deviceID: model.NewDeviceID(cfg.Device.ID),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		state:    StateStart,
	}
}

// State reports the engine's current state machine stage.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.log.Debugf("state -> %s", s)
}

// Run drives sessions back-to-back until ctx is cancelled. Each session
// failure (dial error, read error, token expiry) is followed by a
// jittered reconnect sleep; ctx cancellation is the only path to
// StateTerminal.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			e.setState(StateTerminal)
			return ctx.Err()
		}

		if err := e.runSession(ctx); err != nil && ctx.Err() == nil {
			e.log.Warnf("connect: session ended: %v", err)
		}

		if ctx.Err() != nil {
			e.setState(StateTerminal)
			return ctx.Err()
		}

		e.setState(StateReconnecting)
		wait := time.Duration(reconnectBaseMs+e.rng.Intn(reconnectJitterMs+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			e.setState(StateTerminal)
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// runSession carries one session from AwaitingToken through to whatever
// error or context cancellation ends it.
func (e *Engine) runSession(ctx context.Context) error {
	e.setState(StateAwaitingToken)
	token, user, expiry, err := e.gw.UserToken(ctx)
	if err != nil {
		return errs.New(errs.Unavailable, "connect: user token", err)
	}
	if err := token.Validate(); err != nil {
		return errs.New(errs.InvalidArgument, "connect: user token", err)
	}

	dialURL, err := e.buildDialURL(token)
	if err != nil {
		return err
	}

	e.setState(StateConnecting)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return errs.New(errs.Unavailable, "connect: dial", err)
	}
	defer conn.Close()

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	sess := &session{engine: e, conn: conn, user: user}

	e.setState(StateSubscribed)
	discoverChannel := model.Channel{From: user, To: user, Event: model.Event{Kind: model.EventRemoteDiscover}}
	if err := sess.subscribe(discoverChannel); err != nil {
		return err
	}
	e.setState(StateDiscoverable)

	return sess.run(ctx, expiry)
}

// buildDialURL constructs {wss|ws}://<host>/ws/{token}?version={V}, V
// being the app version with dots stripped; a non-digit V is a
// configuration error.
func (e *Engine) buildDialURL(token config.UserToken) (string, error) {
	version := strings.ReplaceAll(e.cfg.Device.AppVersion, ".", "")
	for _, r := range version {
		if r < '0' || r > '9' {
			return "", errs.New(errs.InvalidArgument, "connect: app_version", errBadAppVersion)
		}
	}

	base, err := url.Parse(e.cfg.Network.BaseURL)
	if err != nil {
		return "", errs.New(errs.InvalidArgument, "connect: base_url", err)
	}
	scheme := "ws"
	if base.Scheme == "https" {
		scheme = "wss"
	}

	return fmt.Sprintf("%s://%s/ws/%s?version=%s", scheme, base.Host, string(token), version), nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

var errBadAppVersion = simpleErr("connect: device.app_version must contain only digits once dots are stripped")
