// Package protocol implements the invertible translation between a typed
// Message and a JSON-over-text websocket frame, following the same
// envelope/pump idiom the pack's server-side websocket handler
// (internal/server/websocket.go's WSMessage{Type, Payload}) uses, extended
// to the three-element outer array and nested JSON-string body this
// protocol requires.
package protocol

import (
	"strings"

	"github.com/halcyon-audio/spindle/internal/errs"
)

// Stanza is the outer envelope's first element.
type Stanza int

const (
	StanzaSend Stanza = iota
	StanzaMsg
	StanzaSub
	StanzaUnsub
)

func (s Stanza) String() string {
	switch s {
	case StanzaSend:
		return "send"
	case StanzaMsg:
		return "msg"
	case StanzaSub:
		return "sub"
	case StanzaUnsub:
		return "unsub"
	default:
		return "unknown"
	}
}

// ParseStanza parses a stanza string case-insensitively.
func ParseStanza(s string) (Stanza, error) {
	switch strings.ToLower(s) {
	case "send":
		return StanzaSend, nil
	case "msg":
		return StanzaMsg, nil
	case "sub":
		return StanzaSub, nil
	case "unsub":
		return StanzaUnsub, nil
	default:
		return 0, errs.New(errs.InvalidArgument, "protocol: parse stanza", simpleErr("protocol: unknown stanza "+s))
	}
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
