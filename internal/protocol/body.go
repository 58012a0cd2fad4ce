package protocol

import (
	"time"

	"github.com/halcyon-audio/spindle/internal/model"
)

// BodyKind tags which variant a Body holds — a sum type expressed as a
// discriminant plus per-variant pointer fields, rather than an interface
// with dynamic dispatch, so every call site that needs to branch on the
// variant does so with a single switch instead of a type assertion.
type BodyKind int

const (
	BodyAcknowledgement BodyKind = iota
	BodyClose
	BodyConnect
	BodyConnectionOffer
	BodyDiscoveryRequest
	BodyPing
	BodyPlaybackProgress
	BodyPublishQueue
	BodyReady
	BodyRefreshQueue
	BodySkip
	BodyStatus
	BodyStop
)

func (k BodyKind) messageType() string {
	switch k {
	case BodyAcknowledgement:
		return "ack"
	case BodyClose:
		return "close"
	case BodyConnect:
		return "connect"
	case BodyConnectionOffer:
		return "connectionOffer"
	case BodyDiscoveryRequest:
		return "discoveryRequest"
	case BodyPing:
		return "ping"
	case BodyPlaybackProgress:
		return "playbackProgress"
	case BodyPublishQueue:
		return "publishQueue"
	case BodyReady:
		return "ready"
	case BodyRefreshQueue:
		return "refreshQueue"
	case BodySkip:
		return "skip"
	case BodyStatus:
		return "status"
	case BodyStop:
		return "stop"
	default:
		return ""
	}
}

func messageTypeToKind(mt string) (BodyKind, bool) {
	switch mt {
	case "ack":
		return BodyAcknowledgement, true
	case "close":
		return BodyClose, true
	case "connect":
		return BodyConnect, true
	case "connectionOffer":
		return BodyConnectionOffer, true
	case "discoveryRequest":
		return BodyDiscoveryRequest, true
	case "ping":
		return BodyPing, true
	case "playbackProgress":
		return BodyPlaybackProgress, true
	case "publishQueue":
		return BodyPublishQueue, true
	case "ready":
		return BodyReady, true
	case "refreshQueue":
		return BodyRefreshQueue, true
	case "skip":
		return BodySkip, true
	case "status":
		return BodyStatus, true
	case "stop":
		return BodyStop, true
	default:
		return 0, false
	}
}

// StatusCode is the Status body's result field.
type StatusCode int

const (
	StatusOK  StatusCode = 0
	StatusErr StatusCode = 1
)

type AcknowledgementBody struct {
	AckID string
}

type ConnectBody struct {
	From    model.DeviceID
	OfferID string
}

type ConnectionOfferBody struct {
	From                     model.DeviceID
	DeviceName               string
	SupportedControlVersions []string
}

type DiscoveryRequestBody struct {
	From    model.DeviceID
	Session string
}

type PlaybackProgressBody struct {
	Track    *model.QueueItem
	Duration time.Duration
	Buffered time.Duration
	// Progress is nil for a livestream, which has no seekable timeline
	// to report a fraction-complete against (§8 scenario 5).
	Progress   *model.Percentage
	Volume     model.Percentage
	Quality    model.AudioQuality
	IsPlaying  bool
	IsShuffle  bool
	RepeatMode model.RepeatMode
}

type PublishQueueBody struct {
	Queue *model.Queue
}

type SkipBody struct {
	QueueID       *string
	Track         *model.QueueItem
	Progress      *model.Percentage
	ShouldPlay    *bool
	SetRepeatMode *model.RepeatMode
	SetShuffle    *bool
	SetVolume     *model.Percentage
}

type StatusBody struct {
	CommandID string
	Status    StatusCode
}

// Body is the sum type of every body variant; only the field matching
// Kind is populated.
type Body struct {
	Kind BodyKind

	Acknowledgement  *AcknowledgementBody
	Connect          *ConnectBody
	ConnectionOffer  *ConnectionOfferBody
	DiscoveryRequest *DiscoveryRequestBody
	PlaybackProgress *PlaybackProgressBody
	PublishQueue     *PublishQueueBody
	Skip             *SkipBody
	Status           *StatusBody
}
