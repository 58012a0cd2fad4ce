package protocol

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-audio/spindle/internal/model"
)

func testChannel() model.Channel {
	return model.Channel{
		From:  model.UserID(1),
		To:    model.UserID(2),
		Event: model.Event{Kind: model.EventRemoteCommand},
	}
}

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	wire, err := Emit(m)
	require.NoError(t, err)

	got, err := Parse(wire)
	require.NoError(t, err)
	return got
}

func TestSubEnvelopeTwoElements(t *testing.T) {
	m := Message{Stanza: StanzaSub, Channel: testChannel()}
	got := roundTrip(t, m)
	require.Equal(t, m.Stanza, got.Stanza)
	require.Equal(t, m.Channel, got.Channel)
	require.False(t, got.HasApp)
}

func TestPingRoundTrip(t *testing.T) {
	m := Message{
		Stanza:    StanzaMsg,
		Channel:   testChannel(),
		HasApp:    true,
		From:      model.NewDeviceID("device-a"),
		MessageID: "msg-1",
		Body:      Body{Kind: BodyPing},
	}
	got := roundTrip(t, m)
	require.Equal(t, BodyPing, got.Body.Kind)
	require.Equal(t, "msg-1", got.MessageID)
	require.Equal(t, "device-a", got.From.String())
}

func TestAcknowledgementRoundTrip(t *testing.T) {
	m := Message{
		Stanza:    StanzaSend,
		Channel:   testChannel(),
		HasApp:    true,
		From:      model.NewDeviceID("device-a"),
		MessageID: "msg-2",
		Body:      Body{Kind: BodyAcknowledgement, Acknowledgement: &AcknowledgementBody{AckID: "msg-1"}},
	}
	got := roundTrip(t, m)
	require.Equal(t, BodyAcknowledgement, got.Body.Kind)
	require.Equal(t, "msg-1", got.Body.Acknowledgement.AckID)
}

func TestPlaybackProgressRoundTrip(t *testing.T) {
	item := model.QueueItem{QueueUUID: uuid.New(), TrackID: 111, Position: 0}
	progress := model.Percentage(0.25)
	m := Message{
		Stanza:    StanzaSend,
		Channel:   testChannel(),
		HasApp:    true,
		From:      model.NewDeviceID("device-a"),
		MessageID: "msg-3",
		Body: Body{
			Kind: BodyPlaybackProgress,
			PlaybackProgress: &PlaybackProgressBody{
				Track:      &item,
				Duration:   30 * time.Second,
				Buffered:   10 * time.Second,
				Progress:   &progress,
				Volume:     1.0,
				Quality:    model.QualityStandard,
				IsPlaying:  true,
				IsShuffle:  false,
				RepeatMode: model.RepeatNone,
			},
		},
	}
	got := roundTrip(t, m)
	require.Equal(t, BodyPlaybackProgress, got.Body.Kind)
	pp := got.Body.PlaybackProgress
	require.Equal(t, item, *pp.Track)
	require.Equal(t, 30*time.Second, pp.Duration)
	require.True(t, pp.IsPlaying)
	require.Equal(t, model.QualityStandard, pp.Quality)
	require.Equal(t, progress, *pp.Progress)
}

// A livestream's progress is carried as an absent field on the wire, not
// a zero value, since there is no duration to report a fraction against.
func TestPlaybackProgressLivestreamOmitsProgress(t *testing.T) {
	m := Message{
		Stanza:    StanzaSend,
		Channel:   testChannel(),
		HasApp:    true,
		From:      model.NewDeviceID("device-a"),
		MessageID: "msg-4",
		Body: Body{
			Kind: BodyPlaybackProgress,
			PlaybackProgress: &PlaybackProgressBody{
				Duration:  0,
				Quality:   model.QualityStandard,
				IsPlaying: true,
			},
		},
	}
	raw, err := payloadJSON(m.Body)
	require.NoError(t, err)
	require.NotContains(t, string(raw), `"progress"`)

	got := roundTrip(t, m)
	require.Nil(t, got.Body.PlaybackProgress.Progress)
}

func TestSkipRoundTrip(t *testing.T) {
	shouldPlay := true
	repeat := model.RepeatAll
	vol := model.Percentage(0.5)
	m := Message{
		Stanza:    StanzaSend,
		Channel:   testChannel(),
		HasApp:    true,
		From:      model.NewDeviceID("device-a"),
		MessageID: "msg-4",
		Body: Body{
			Kind: BodySkip,
			Skip: &SkipBody{
				ShouldPlay:    &shouldPlay,
				SetRepeatMode: &repeat,
				SetVolume:     &vol,
			},
		},
	}
	got := roundTrip(t, m)
	require.Equal(t, BodySkip, got.Body.Kind)
	require.True(t, *got.Body.Skip.ShouldPlay)
	require.Equal(t, model.RepeatAll, *got.Body.Skip.SetRepeatMode)
	require.Equal(t, model.Percentage(0.5), *got.Body.Skip.SetVolume)
}

func TestPublishQueueRoundTrip(t *testing.T) {
	queue := &model.Queue{
		UUID:       uuid.New(),
		Tracks:     []*model.Track{{ID: 1}, {ID: -2}, {ID: 3}},
		QueueOrder: []int{2, 0, 1},
		Position:   1,
		Shuffle:    true,
		Repeat:     model.RepeatOne,
	}
	m := Message{
		Stanza:    StanzaSend,
		Channel:   testChannel(),
		HasApp:    true,
		From:      model.NewDeviceID("device-a"),
		MessageID: "msg-5",
		Body:      Body{Kind: BodyPublishQueue, PublishQueue: &PublishQueueBody{Queue: queue}},
	}
	got := roundTrip(t, m)
	require.Equal(t, BodyPublishQueue, got.Body.Kind)
	gq := got.Body.PublishQueue.Queue
	require.Equal(t, queue.UUID, gq.UUID)
	require.Equal(t, queue.QueueOrder, gq.QueueOrder)
	require.Equal(t, queue.Shuffle, gq.Shuffle)
	require.Equal(t, queue.Repeat, gq.Repeat)
	require.Len(t, gq.Tracks, 3)
	require.Equal(t, model.TrackID(1), gq.Tracks[0].ID)
	require.Equal(t, model.TrackID(-2), gq.Tracks[1].ID)
}

func TestStatusRoundTrip(t *testing.T) {
	m := Message{
		Stanza:    StanzaSend,
		Channel:   testChannel(),
		HasApp:    true,
		From:      model.NewDeviceID("device-a"),
		MessageID: "msg-6",
		Body:      Body{Kind: BodyStatus, Status: &StatusBody{CommandID: "cmd-1", Status: StatusErr}},
	}
	got := roundTrip(t, m)
	require.Equal(t, StatusErr, got.Body.Status.Status)
	require.Equal(t, "cmd-1", got.Body.Status.CommandID)
}

func TestProtocolVersionSelection(t *testing.T) {
	require.Equal(t, CommandVersion, BodyPing.protocolVersion())
	require.Equal(t, DiscoveryVersion, BodyConnect.protocolVersion())
	require.Equal(t, DiscoveryVersion, BodyConnectionOffer.protocolVersion())
	require.Equal(t, DiscoveryVersion, BodyDiscoveryRequest.protocolVersion())
	require.Equal(t, QueueVersion, BodyPublishQueue.protocolVersion())
}
