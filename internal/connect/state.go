// Package connect implements the remote-control session: the websocket
// state machine that authenticates with the gateway, advertises this
// device to a controller, adopts a controlling peer, and translates its
// commands into player.Player calls — grounded on the pack's client-side
// websocket dialing idiom (other_examples' legacy client: DefaultDialer,
// WriteMessage/ReadMessage) generalized to the connect protocol's
// sub/unsub/send/msg envelope.
package connect

// State enumerates the session state machine's stages, in the order a
// healthy session passes through them.
type State int

const (
	StateStart State = iota
	StateAwaitingToken
	StateConnecting
	StateSubscribed
	StateDiscoverable
	StateControlled
	StateReconnecting
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAwaitingToken:
		return "awaiting_token"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDiscoverable:
		return "discoverable"
	case StateControlled:
		return "controlled"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}
