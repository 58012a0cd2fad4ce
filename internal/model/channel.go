package model

import (
	"fmt"
	"strconv"
	"strings"
)

// User is either a concrete account id or Unspecified (wire value "-1").
type User struct {
	id          uint64
	unspecified bool
}

// UnspecifiedUser is the zero-ish User whose wire form is "-1".
var UnspecifiedUser = User{unspecified: true}

// UserID builds a concrete User.
func UserID(id uint64) User { return User{id: id} }

// IsUnspecified reports whether u is the Unspecified sentinel.
func (u User) IsUnspecified() bool { return u.unspecified }

// ID returns the numeric id; only meaningful when !IsUnspecified().
func (u User) ID() uint64 { return u.id }

func (u User) String() string {
	if u.unspecified {
		return "-1"
	}
	return strconv.FormatUint(u.id, 10)
}

// ParseUser parses the wire form of a User ("-1" or a decimal uint64).
func ParseUser(s string) (User, error) {
	if s == "-1" {
		return UnspecifiedUser, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return User{}, fmt.Errorf("user: %w", err)
	}
	return UserID(n), nil
}

// EventKind enumerates the Connect channel event types.
type EventKind int

const (
	EventRemoteCommand EventKind = iota
	EventRemoteDiscover
	EventRemoteQueue
	EventUserFeed
)

// Event pairs an EventKind with the optional User payload that
// UserFeed(User) carries.
type Event struct {
	Kind EventKind
	User User // only meaningful when Kind == EventUserFeed
}

func (e Event) wireName() string {
	switch e.Kind {
	case EventRemoteCommand:
		return "REMOTE_COMMAND"
	case EventRemoteDiscover:
		return "REMOTE_DISCOVER"
	case EventRemoteQueue:
		return "REMOTE_QUEUE"
	case EventUserFeed:
		return "USER_FEED"
	default:
		return "UNKNOWN"
	}
}

// Channel is the (from, to, event) tuple addressing a Connect message.
// Wire form: "from_to_EVENT[_id]".
type Channel struct {
	From  User
	To    User
	Event Event
}

func (c Channel) String() string {
	base := fmt.Sprintf("%s_%s_%s", c.From, c.To, c.Event.wireName())
	if c.Event.Kind == EventUserFeed {
		return base + "_" + c.Event.User.String()
	}
	return base
}

// ParseChannel parses the "from_to_EVENT[_id]" wire form.
func ParseChannel(s string) (Channel, error) {
	parts := strings.Split(s, "_")
	if len(parts) < 3 {
		return Channel{}, fmt.Errorf("channel: malformed %q", s)
	}
	from, err := ParseUser(parts[0])
	if err != nil {
		return Channel{}, fmt.Errorf("channel: from: %w", err)
	}
	to, err := ParseUser(parts[1])
	if err != nil {
		return Channel{}, fmt.Errorf("channel: to: %w", err)
	}

	var ev Event
	switch parts[2] {
	case "REMOTE_COMMAND":
		ev.Kind = EventRemoteCommand
	case "REMOTE_DISCOVER":
		ev.Kind = EventRemoteDiscover
	case "REMOTE_QUEUE":
		ev.Kind = EventRemoteQueue
	case "USER_FEED":
		ev.Kind = EventUserFeed
		if len(parts) < 4 {
			return Channel{}, fmt.Errorf("channel: USER_FEED missing id in %q", s)
		}
		u, err := ParseUser(parts[3])
		if err != nil {
			return Channel{}, fmt.Errorf("channel: USER_FEED id: %w", err)
		}
		ev.User = u
	default:
		return Channel{}, fmt.Errorf("channel: unknown event %q", parts[2])
	}

	return Channel{From: from, To: to, Event: ev}, nil
}

// DeviceID is either a 128-bit UUID or an opaque string, mirroring the
// wire contract where device ids from peers may be either shape.
type DeviceID struct {
	raw string
}

func NewDeviceID(raw string) DeviceID { return DeviceID{raw: raw} }

func (d DeviceID) String() string { return d.raw }
