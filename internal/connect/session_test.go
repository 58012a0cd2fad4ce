package connect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/spindle/internal/config"
	"github.com/halcyon-audio/spindle/internal/model"
	"github.com/halcyon-audio/spindle/internal/protocol"
)

func testSession(t *testing.T) *session {
	t.Helper()
	cfg := &config.Config{}
	cfg.Device.ID = "this-device"
	e := &Engine{cfg: cfg, deviceID: model.NewDeviceID("this-device")}
	return &session{engine: e, user: model.UserID(1)}
}

func TestAddressedOnPeerChannelRequiresDestinationMatch(t *testing.T) {
	s := testSession(t)
	other := model.NewDeviceID("other-device")
	msg := protocol.Message{
		Destination: &other,
		Channel:     model.Channel{Event: model.Event{Kind: model.EventRemoteCommand}},
	}
	require.False(t, s.addressedOnPeerChannel(msg))

	mine := model.NewDeviceID("this-device")
	msg.Destination = &mine
	require.True(t, s.addressedOnPeerChannel(msg))
}

func TestAddressedOnPeerChannelExcludesDiscover(t *testing.T) {
	s := testSession(t)
	mine := model.NewDeviceID("this-device")
	msg := protocol.Message{
		Destination: &mine,
		Channel:     model.Channel{Event: model.Event{Kind: model.EventRemoteDiscover}},
	}
	require.False(t, s.addressedOnPeerChannel(msg))
}

func TestAddressedOnPeerChannelRequiresDestination(t *testing.T) {
	s := testSession(t)
	msg := protocol.Message{Channel: model.Channel{Event: model.Event{Kind: model.EventRemoteCommand}}}
	require.False(t, s.addressedOnPeerChannel(msg))
}
