// Package supervisor owns the outer run loop: it loads secrets, wires
// every component together, and drives the connect engine through
// shutdown and reload, grounded on the upstream player's
// setupGracefulShutdown signal-handling idiom (cmd/desktop/main.go),
// extended with Unix SIGHUP for a session restart (same config, fresh
// connect engine) that preserves the audio sink.
package supervisor

import (
	"context"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halcyon-audio/spindle/internal/config"
	"github.com/halcyon-audio/spindle/internal/connect"
	"github.com/halcyon-audio/spindle/internal/events"
	"github.com/halcyon-audio/spindle/internal/gateway"
	"github.com/halcyon-audio/spindle/internal/httpx"
	"github.com/halcyon-audio/spindle/internal/logging"
	"github.com/halcyon-audio/spindle/internal/player"
)

// Options carries the command-line surface specified in §6: the
// secrets file location, device name override, and logging verbosity,
// plus the config file path.
type Options struct {
	ConfigPath   string
	SecretsPath  string
	DeviceName   string
	NoInterrupt  bool
	Verbosity    string
	ClientID     string
}

// Supervisor owns the process lifetime: one player, one gateway, and a
// connect engine that gets rebuilt on every reload without tearing down
// the audio sink underneath it.
type Supervisor struct {
	cfg    *config.Config
	log    *logging.Logger
	player *player.Player
	gw     gateway.Gateway
	bus    *events.Bus
}

// New loads configuration and secrets and wires every component.
func New(opts Options) (*Supervisor, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DeviceName != "" {
		cfg.Device.Name = opts.DeviceName
	} else if cfg.Device.Name == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Device.Name = host
		} else {
			cfg.Device.Name = "spindle"
		}
	}
	if opts.NoInterrupt {
		cfg.NoInterruptions = true
	}
	if opts.Verbosity != "" {
		cfg.Verbosity = opts.Verbosity
	}

	if _, err := cfg.ResolveDeviceID(); err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.Verbosity)
	log := logging.New("SUPERVISOR", level)

	arl, err := config.LoadARL(opts.SecretsPath)
	if err != nil {
		return nil, err
	}
	salt, err := config.LoadDecryptSalt(opts.SecretsPath)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := httpx.New(httpx.Config{
		RequestsPerWindow: cfg.Network.RequestsPerWindow,
		WindowSeconds:     cfg.Network.WindowSeconds,
		BurstSize:         cfg.Network.BurstSize,
		ConnectTimeout:    time.Duration(cfg.Network.ConnectTimeoutMs) * time.Millisecond,
		ReadTimeout:       time.Duration(cfg.Network.ReadTimeoutMs) * time.Millisecond,
		KeepAlive:         time.Duration(cfg.Network.KeepAliveSeconds) * time.Second,
		Retries:           cfg.Network.Retries,
		UserAgent:         cfg.Network.UserAgent,
	}, jar, logging.New("HTTP", level))

	gw := gateway.New(client, hostOf(cfg.Network.BaseURL), arl, opts.ClientID, logging.New("GATEWAY", level))

	bus := events.NewBus(16)
	p, err := player.New(cfg, gw, client, salt, bus, logging.New("PLAYER", level))
	if err != nil {
		return nil, err
	}

	return &Supervisor{cfg: cfg, log: log, player: p, gw: gw, bus: bus}, nil
}

// hostOf extracts the host from a full origin (e.g.
// "https://connect.example.invalid"); the gateway only ever needs the
// host part, not the scheme the connect engine separately derives
// ws/wss from.
func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}

// signalKind classifies an os.Signal into the three cases §4.H names.
type signalKind int

const (
	signalNone signalKind = iota
	signalShutdown
	signalReload
)

func classify(sig os.Signal) signalKind {
	switch sig {
	case os.Interrupt, syscall.SIGTERM:
		return signalShutdown
	case syscall.SIGHUP:
		return signalReload
	default:
		return signalNone
	}
}

// Run drives the connect engine until a shutdown signal arrives,
// rebuilding (but never recreating the player/sink) on every SIGHUP.
// Returns the exit code 0 once shut down; startup errors are reported by
// New, before Run is reached.
func (s *Supervisor) Run(ctx context.Context) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		runCtx, cancel := context.WithCancel(ctx)
		engine := connect.New(s.cfg, s.gw, s.player, s.bus, logging.New("CONNECT", logging.ParseLevel(s.cfg.Verbosity)))

		done := make(chan error, 1)
		go func() { done <- engine.Run(runCtx) }()

		select {
		case sig := <-sigCh:
			switch classify(sig) {
			case signalShutdown:
				s.log.Debugf("shutdown signal received: %v", sig)
				cancel()
				<-done
				_ = s.player.Close()
				return 0
			case signalReload:
				s.log.Debugf("reload signal received: %v", sig)
				cancel()
				<-done
				// loop: a fresh engine is built against the same player,
				// preserving the audio sink across the restart.
				continue
			}

		case <-done:
			cancel()
			if ctx.Err() != nil {
				_ = s.player.Close()
				return 0
			}
			// engine.Run only returns early on its own ctx's cancellation;
			// reaching here with runCtx still live is unexpected, so
			// restart rather than spin.

		case <-ctx.Done():
			cancel()
			<-done
			_ = s.player.Close()
			return 0
		}
	}
}
