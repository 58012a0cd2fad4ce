package protocol

import (
	"encoding/json"
	"time"

	"github.com/halcyon-audio/spindle/internal/model"
)

// isNoParamsKind reports the variants that carry no parameters; both ""
// and "{}" payloads decode to them.
func isNoParamsKind(k BodyKind) bool {
	switch k {
	case BodyClose, BodyPing, BodyReady, BodyRefreshQueue, BodyStop:
		return true
	default:
		return false
	}
}

type wireAcknowledgement struct {
	AcknowledgementID string `json:"acknowledgementId"`
}

type wireConnect struct {
	From    string `json:"from"`
	OfferID string `json:"offerId"`
}

type wireConnectionOffer struct {
	From                     string   `json:"from"`
	DeviceName               string   `json:"deviceName"`
	SupportedControlVersions []string `json:"supportedControlVersions"`
}

type wireDiscoveryRequest struct {
	From    string `json:"from"`
	Session string `json:"session"`
}

type wirePlaybackProgress struct {
	Track      string   `json:"track"`
	Duration   int64    `json:"duration"`
	Buffered   int64    `json:"buffered"`
	Progress   *float64 `json:"progress,omitempty"`
	Volume     float64  `json:"volume"`
	Quality    int      `json:"quality"`
	IsPlaying  bool     `json:"isPlaying"`
	IsShuffle  bool     `json:"isShuffle"`
	RepeatMode int      `json:"repeatMode"`
}

type wireSkip struct {
	QueueID       *string  `json:"queueId,omitempty"`
	Track         *string  `json:"track,omitempty"`
	Progress      *float64 `json:"progress,omitempty"`
	ShouldPlay    *bool    `json:"shouldPlay,omitempty"`
	SetRepeatMode *int     `json:"setRepeatMode,omitempty"`
	SetShuffle    *bool    `json:"setShuffle,omitempty"`
	SetVolume     *float64 `json:"setVolume,omitempty"`
}

type wireStatus struct {
	CommandID string `json:"commandId"`
	Status    int    `json:"status"`
}

func payloadJSON(b Body) ([]byte, error) {
	switch b.Kind {
	case BodyAcknowledgement:
		return json.Marshal(wireAcknowledgement{AcknowledgementID: b.Acknowledgement.AckID})
	case BodyConnect:
		return json.Marshal(wireConnect{From: b.Connect.From.String(), OfferID: b.Connect.OfferID})
	case BodyConnectionOffer:
		return json.Marshal(wireConnectionOffer{
			From:                     b.ConnectionOffer.From.String(),
			DeviceName:               b.ConnectionOffer.DeviceName,
			SupportedControlVersions: b.ConnectionOffer.SupportedControlVersions,
		})
	case BodyDiscoveryRequest:
		return json.Marshal(wireDiscoveryRequest{From: b.DiscoveryRequest.From.String(), Session: b.DiscoveryRequest.Session})
	case BodyPlaybackProgress:
		p := b.PlaybackProgress
		track := ""
		if p.Track != nil {
			track = p.Track.String()
		}
		var progress *float64
		if p.Progress != nil {
			v := float64(*p.Progress)
			progress = &v
		}
		return json.Marshal(wirePlaybackProgress{
			Track:      track,
			Duration:   int64(p.Duration.Seconds()),
			Buffered:   int64(p.Buffered.Seconds()),
			Progress:   progress,
			Volume:     float64(p.Volume),
			Quality:    p.Quality.Int(),
			IsPlaying:  p.IsPlaying,
			IsShuffle:  p.IsShuffle,
			RepeatMode: p.RepeatMode.Int(),
		})
	case BodySkip:
		s := b.Skip
		w := wireSkip{QueueID: s.QueueID, ShouldPlay: s.ShouldPlay, SetShuffle: s.SetShuffle}
		if s.Track != nil {
			ts := s.Track.String()
			w.Track = &ts
		}
		if s.Progress != nil {
			v := float64(*s.Progress)
			w.Progress = &v
		}
		if s.SetRepeatMode != nil {
			v := s.SetRepeatMode.Int()
			w.SetRepeatMode = &v
		}
		if s.SetVolume != nil {
			v := float64(*s.SetVolume)
			w.SetVolume = &v
		}
		return json.Marshal(w)
	case BodyStatus:
		return json.Marshal(wireStatus{CommandID: b.Status.CommandID, Status: int(b.Status.Status)})
	default:
		// no-params variants serialize to an empty object.
		return []byte("{}"), nil
	}
}

func payloadFromJSON(kind BodyKind, raw []byte) (Body, error) {
	if isNoParamsKind(kind) {
		return Body{Kind: kind}, nil
	}

	switch kind {
	case BodyAcknowledgement:
		var w wireAcknowledgement
		if err := json.Unmarshal(raw, &w); err != nil {
			return Body{}, err
		}
		return Body{Kind: kind, Acknowledgement: &AcknowledgementBody{AckID: w.AcknowledgementID}}, nil

	case BodyConnect:
		var w wireConnect
		if err := json.Unmarshal(raw, &w); err != nil {
			return Body{}, err
		}
		return Body{Kind: kind, Connect: &ConnectBody{From: model.NewDeviceID(w.From), OfferID: w.OfferID}}, nil

	case BodyConnectionOffer:
		var w wireConnectionOffer
		if err := json.Unmarshal(raw, &w); err != nil {
			return Body{}, err
		}
		return Body{Kind: kind, ConnectionOffer: &ConnectionOfferBody{
			From:                     model.NewDeviceID(w.From),
			DeviceName:               w.DeviceName,
			SupportedControlVersions: w.SupportedControlVersions,
		}}, nil

	case BodyDiscoveryRequest:
		var w wireDiscoveryRequest
		if err := json.Unmarshal(raw, &w); err != nil {
			return Body{}, err
		}
		return Body{Kind: kind, DiscoveryRequest: &DiscoveryRequestBody{From: model.NewDeviceID(w.From), Session: w.Session}}, nil

	case BodyPlaybackProgress:
		var w wirePlaybackProgress
		if err := json.Unmarshal(raw, &w); err != nil {
			return Body{}, err
		}
		p := &PlaybackProgressBody{
			Duration:   secondsToDuration(w.Duration),
			Buffered:   secondsToDuration(w.Buffered),
			Volume:     model.Percentage(w.Volume),
			Quality:    model.AudioQualityFromInt(w.Quality),
			IsPlaying:  w.IsPlaying,
			IsShuffle:  w.IsShuffle,
			RepeatMode: model.RepeatModeFromInt(w.RepeatMode),
		}
		if w.Progress != nil {
			v := model.Percentage(*w.Progress)
			p.Progress = &v
		}
		if w.Track != "" {
			qi, err := model.ParseQueueItem(w.Track)
			if err != nil {
				return Body{}, err
			}
			p.Track = &qi
		}
		return Body{Kind: kind, PlaybackProgress: p}, nil

	case BodySkip:
		var w wireSkip
		if err := json.Unmarshal(raw, &w); err != nil {
			return Body{}, err
		}
		s := &SkipBody{QueueID: w.QueueID, ShouldPlay: w.ShouldPlay, SetShuffle: w.SetShuffle}
		if w.Track != nil && *w.Track != "" {
			qi, err := model.ParseQueueItem(*w.Track)
			if err != nil {
				return Body{}, err
			}
			s.Track = &qi
		}
		if w.Progress != nil {
			v := model.Percentage(*w.Progress)
			s.Progress = &v
		}
		if w.SetRepeatMode != nil {
			v := model.RepeatModeFromInt(*w.SetRepeatMode)
			s.SetRepeatMode = &v
		}
		if w.SetVolume != nil {
			v := model.Percentage(*w.SetVolume)
			s.SetVolume = &v
		}
		return Body{Kind: kind, Skip: s}, nil

	case BodyStatus:
		var w wireStatus
		if err := json.Unmarshal(raw, &w); err != nil {
			return Body{}, err
		}
		return Body{Kind: kind, Status: &StatusBody{CommandID: w.CommandID, Status: StatusCode(w.Status)}}, nil

	default:
		return Body{Kind: kind}, nil
	}
}

func secondsToDuration(s int64) time.Duration { return time.Duration(s) * time.Second }
