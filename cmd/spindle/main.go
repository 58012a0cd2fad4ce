// Command spindle is the headless remote-controllable player daemon:
// thin flag wiring over internal/supervisor, in the same
// flag.String/flag.Parse style as the upstream player's cmd/desktop
// entrypoint.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/halcyon-audio/spindle/internal/supervisor"
)

var (
	configPath  = flag.String("config", "", "path to configuration file")
	secretsPath = flag.String("secrets", "", "path to the TOML secrets file (arl, decrypt_salt)")
	deviceName  = flag.String("device-name", "", "device name presented to peers (defaults to hostname)")
	noInterrupt = flag.Bool("no-interruptions", false, "refuse takeover while a peer is bound")
	quiet       = flag.Bool("quiet", false, "log level: warn only")
	verbose     = flag.Int("verbose", 0, "log level: 1=debug, 2=trace")
	clientID    = flag.String("client-id", "", "gateway client id")
)

func main() {
	flag.Parse()

	if *secretsPath == "" {
		log.Fatalf("[MAIN] -secrets is required")
	}

	verbosity := "warn"
	switch {
	case *quiet:
		verbosity = "quiet"
	case *verbose >= 2:
		verbosity = "trace"
	case *verbose == 1:
		verbosity = "debug"
	}

	sup, err := supervisor.New(supervisor.Options{
		ConfigPath:  *configPath,
		SecretsPath: *secretsPath,
		DeviceName:  *deviceName,
		NoInterrupt: *noInterrupt,
		Verbosity:   verbosity,
		ClientID:    *clientID,
	})
	if err != nil {
		log.Fatalf("[MAIN] failed to start: %v", err)
	}

	os.Exit(sup.Run(context.Background()))
}
