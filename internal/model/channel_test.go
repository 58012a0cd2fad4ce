package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelRoundTrip(t *testing.T) {
	cases := []Channel{
		{From: UnspecifiedUser, To: UserID(42), Event: Event{Kind: EventRemoteCommand}},
		{From: UserID(1), To: UserID(2), Event: Event{Kind: EventRemoteDiscover}},
		{From: UserID(1), To: UnspecifiedUser, Event: Event{Kind: EventRemoteQueue}},
		{From: UserID(7), To: UserID(8), Event: Event{Kind: EventUserFeed, User: UserID(9)}},
		{From: UserID(7), To: UserID(8), Event: Event{Kind: EventUserFeed, User: UnspecifiedUser}},
	}

	for _, c := range cases {
		wire := c.String()
		got, err := ParseChannel(wire)
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
}

func TestUserUnspecifiedWireForm(t *testing.T) {
	require.Equal(t, "-1", UnspecifiedUser.String())
	u, err := ParseUser("-1")
	require.NoError(t, err)
	require.True(t, u.IsUnspecified())
}

func TestQueueItemRoundTripNegativeTrackID(t *testing.T) {
	item := QueueItem{
		QueueUUID: mustUUID(t, "550e8400-e29b-41d4-a716-446655440000"),
		TrackID:   -123,
		Position:  4,
	}
	wire := item.String()
	require.Equal(t, "550e8400-e29b-41d4-a716-446655440000--123-4", wire)

	got, err := ParseQueueItem(wire)
	require.NoError(t, err)
	require.Equal(t, item, got)
}

func TestQueueItemRoundTripPositiveTrackID(t *testing.T) {
	item := QueueItem{
		QueueUUID: mustUUID(t, "550e8400-e29b-41d4-a716-446655440000"),
		TrackID:   123456789,
		Position:  0,
	}
	wire := item.String()
	got, err := ParseQueueItem(wire)
	require.NoError(t, err)
	require.Equal(t, item, got)
}
