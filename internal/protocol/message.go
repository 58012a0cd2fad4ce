package protocol

import (
	"encoding/base64"
	"encoding/json"
	"log"

	"github.com/halcyon-audio/spindle/internal/errs"
	"github.com/halcyon-audio/spindle/internal/model"
)

// Protocol version constants for the three known families.
const (
	CommandVersion   = "net.spindle.remote.command.proto1"
	DiscoveryVersion = "net.spindle.remote.discovery.proto1"
	QueueVersion     = "net.spindle.remote.queue.proto1"
)

func (k BodyKind) protocolVersion() string {
	switch k {
	case BodyConnect, BodyConnectionOffer, BodyDiscoveryRequest:
		return DiscoveryVersion
	case BodyPublishQueue:
		return QueueVersion
	default:
		return CommandVersion
	}
}

// appIdent is the outer frame's fixed "APP" identifier.
const appIdent = "CONNECT"

// Message is the fully-typed form of one websocket frame.
type Message struct {
	Stanza  Stanza
	Channel model.Channel

	// App is present iff the outer array has 3 elements.
	HasApp      bool
	From        model.DeviceID
	Destination *model.DeviceID
	MessageID   string
	Body        Body
}

type wireHeaders struct {
	From        string  `json:"from"`
	Destination *string `json:"destination"`
}

type wireApp struct {
	Ident   string      `json:"APP"`
	Headers wireHeaders `json:"headers"`
	Body    string      `json:"body"`
}

type wireBody struct {
	MessageID       string                 `json:"messageId"`
	MessageType     string                 `json:"messageType"`
	ProtocolVersion string                 `json:"protocolVersion"`
	Payload         string                 `json:"payload"`
	Clock           map[string]interface{} `json:"clock"`
}

// Emit serializes m into its outer JSON array wire form.
func Emit(m Message) ([]byte, error) {
	arr := make([]interface{}, 0, 3)
	arr = append(arr, m.Stanza.String(), m.Channel.String())

	if m.HasApp {
		payload, err := encodePayload(m.Body)
		if err != nil {
			return nil, errs.New(errs.InvalidArgument, "protocol: emit", err)
		}

		wb := wireBody{
			MessageID:       m.MessageID,
			MessageType:     m.Body.Kind.messageType(),
			ProtocolVersion: m.Body.Kind.protocolVersion(),
			Payload:         payload,
			Clock:           map[string]interface{}{},
		}
		bodyJSON, err := json.Marshal(wb)
		if err != nil {
			return nil, errs.New(errs.InvalidArgument, "protocol: emit", err)
		}

		var dest *string
		if m.Destination != nil {
			s := m.Destination.String()
			dest = &s
		}

		app := wireApp{
			Ident: appIdent,
			Headers: wireHeaders{
				From:        m.From.String(),
				Destination: dest,
			},
			Body: string(bodyJSON),
		}
		arr = append(arr, app)
	}

	return json.Marshal(arr)
}

// Parse deserializes the outer JSON array wire form into a Message.
func Parse(data []byte) (Message, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, errs.New(errs.InvalidArgument, "protocol: parse", err)
	}
	if len(raw) != 2 && len(raw) != 3 {
		return Message{}, errs.New(errs.InvalidArgument, "protocol: parse", errBadEnvelope)
	}

	var stanzaStr, channelStr string
	if err := json.Unmarshal(raw[0], &stanzaStr); err != nil {
		return Message{}, errs.New(errs.InvalidArgument, "protocol: parse stanza", err)
	}
	if err := json.Unmarshal(raw[1], &channelStr); err != nil {
		return Message{}, errs.New(errs.InvalidArgument, "protocol: parse channel", err)
	}

	stanza, err := ParseStanza(stanzaStr)
	if err != nil {
		return Message{}, err
	}
	channel, err := model.ParseChannel(channelStr)
	if err != nil {
		return Message{}, errs.New(errs.InvalidArgument, "protocol: parse channel", err)
	}

	m := Message{Stanza: stanza, Channel: channel}
	if len(raw) == 2 {
		return m, nil
	}

	var app wireApp
	if err := json.Unmarshal(raw[2], &app); err != nil {
		return Message{}, errs.New(errs.InvalidArgument, "protocol: parse app", err)
	}

	var wb wireBody
	if err := json.Unmarshal([]byte(app.Body), &wb); err != nil {
		return Message{}, errs.New(errs.InvalidArgument, "protocol: parse body", err)
	}
	if !isKnownVersion(wb.ProtocolVersion) {
		log.Printf("[PROTOCOL] unknown protocolVersion %q", wb.ProtocolVersion)
	}

	kind, ok := messageTypeToKind(wb.MessageType)
	if !ok {
		return Message{}, errs.New(errs.InvalidArgument, "protocol: parse body", errUnknownMessageType)
	}

	body, err := decodePayload(kind, wb.Payload)
	if err != nil {
		return Message{}, errs.New(errs.InvalidArgument, "protocol: parse payload", err)
	}

	m.HasApp = true
	m.From = model.NewDeviceID(app.Headers.From)
	if app.Headers.Destination != nil {
		d := model.NewDeviceID(*app.Headers.Destination)
		m.Destination = &d
	}
	m.MessageID = wb.MessageID
	m.Body = body
	return m, nil
}

func isKnownVersion(v string) bool {
	return v == CommandVersion || v == DiscoveryVersion || v == QueueVersion
}

func encodePayload(b Body) (string, error) {
	if b.Kind == BodyPublishQueue {
		raw, err := encodeQueuePayload(b.PublishQueue.Queue)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	}

	v, err := payloadJSON(b)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(v), nil
}

func decodePayload(kind BodyKind, payload string) (Body, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Body{}, err
	}

	if kind == BodyPublishQueue {
		queue, err := decodeQueuePayload(raw)
		if err != nil {
			return Body{}, err
		}
		return Body{Kind: BodyPublishQueue, PublishQueue: &PublishQueueBody{Queue: queue}}, nil
	}

	return payloadFromJSON(kind, raw)
}

var (
	errBadEnvelope        = simpleErr("protocol: outer envelope must have 2 or 3 elements")
	errUnknownMessageType = simpleErr("protocol: unknown messageType")
)
