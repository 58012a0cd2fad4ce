package connect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/spindle/internal/config"
)

func testEngine(t *testing.T, appVersion, baseURL string) *Engine {
	t.Helper()
	cfg := &config.Config{}
	cfg.Device.AppVersion = appVersion
	cfg.Device.ID = "device-1"
	cfg.Network.BaseURL = baseURL
	return &Engine{cfg: cfg}
}

func TestBuildDialURLStripsDotsAndPicksScheme(t *testing.T) {
	e := testEngine(t, "1.2.3", "https://connect.example.invalid")
	url, err := e.buildDialURL(config.UserToken("tok"))
	require.NoError(t, err)
	require.Equal(t, "wss://connect.example.invalid/ws/tok?version=123", url)
}

func TestBuildDialURLPlainWS(t *testing.T) {
	e := testEngine(t, "2.0.0", "http://localhost:8080")
	url, err := e.buildDialURL(config.UserToken("tok"))
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/ws/tok?version=200", url)
}

func TestBuildDialURLRejectsNonDigitVersion(t *testing.T) {
	e := testEngine(t, "1.2.3-beta", "https://connect.example.invalid")
	_, err := e.buildDialURL(config.UserToken("tok"))
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "awaiting_token", StateAwaitingToken.String())
	require.Equal(t, "controlled", StateControlled.String())
	require.Equal(t, "unknown", State(99).String())
}
