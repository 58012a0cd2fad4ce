package model

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Percentage is a fraction in [0.0, 1.0], serialized as its fractional
// value and displayed ×100 by callers.
type Percentage float64

// Clamp folds p into [0, 1].
func (p Percentage) Clamp() Percentage {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// RepeatMode is the queue's repeat behavior.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatAll
	RepeatOne
)

// Int returns the wire-numeric value of m.
func (m RepeatMode) Int() int { return int(m) }

// RepeatModeFromInt maps a wire-numeric repeat mode back to a RepeatMode,
// defaulting to RepeatNone for unrecognized values (including the
// upstream protocol's -1 "Unrecognized" sentinel).
func RepeatModeFromInt(n int) RepeatMode {
	switch n {
	case int(RepeatAll):
		return RepeatAll
	case int(RepeatOne):
		return RepeatOne
	default:
		return RepeatNone
	}
}

// QueueItem addresses a single row of a queue: the wire form is
// "uuid-track_id-position", where a negative track id serializes as an
// empty field followed by its positive magnitude (the separator is "-").
type QueueItem struct {
	QueueUUID uuid.UUID
	TrackID   TrackID
	Position  int
}

// String renders the wire form of a QueueItem.
func (qi QueueItem) String() string {
	if qi.TrackID < 0 {
		return fmt.Sprintf("%s--%d-%d", qi.QueueUUID.String(), -qi.TrackID, qi.Position)
	}
	return fmt.Sprintf("%s-%d-%d", qi.QueueUUID.String(), qi.TrackID, qi.Position)
}

// ParseQueueItem parses the "uuid-track_id-position" wire form, including
// the negative-track-id case where the middle field is empty.
func ParseQueueItem(s string) (QueueItem, error) {
	// A canonical UUID has 4 internal hyphens, so the first 5 fields
	// (joined by the first 4 hyphens) are the UUID; what remains is
	// "track_id-position", possibly with an empty track_id field when
	// the id is negative (producing "-track_id-position" -> split gives
	// an extra leading empty string).
	parts := strings.Split(s, "-")
	if len(parts) < 7 {
		return QueueItem{}, fmt.Errorf("queue item: malformed %q", s)
	}
	rawUUID := strings.Join(parts[:5], "-")
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return QueueItem{}, fmt.Errorf("queue item: uuid: %w", err)
	}

	rest := parts[5:]
	var trackID TrackID
	var posStr string
	if len(rest) == 3 && rest[0] == "" {
		// negative track id: "" , magnitude, position
		mag, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return QueueItem{}, fmt.Errorf("queue item: track id: %w", err)
		}
		trackID = TrackID(-mag)
		posStr = rest[2]
	} else if len(rest) == 2 {
		n, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return QueueItem{}, fmt.Errorf("queue item: track id: %w", err)
		}
		trackID = TrackID(n)
		posStr = rest[1]
	} else {
		return QueueItem{}, fmt.Errorf("queue item: malformed tail %q", s)
	}

	pos, err := strconv.Atoi(posStr)
	if err != nil {
		return QueueItem{}, fmt.Errorf("queue item: position: %w", err)
	}

	return QueueItem{QueueUUID: id, TrackID: trackID, Position: pos}, nil
}

// Queue is an ordered sequence of tracks plus a permutation (queue_order)
// used for shuffle. queue_order is the identity permutation when shuffle
// is off.
type Queue struct {
	UUID       uuid.UUID
	Tracks     []*Track
	QueueOrder []int
	Position   int
	Shuffle    bool
	Repeat     RepeatMode
}

// NewQueue builds a Queue with the identity permutation.
func NewQueue(id uuid.UUID, tracks []*Track) *Queue {
	order := make([]int, len(tracks))
	for i := range order {
		order[i] = i
	}
	return &Queue{UUID: id, Tracks: tracks, QueueOrder: order}
}

// Len is the number of tracks in the queue.
func (q *Queue) Len() int { return len(q.Tracks) }

// Current returns the track at the current position, or nil if position is
// out of range (e.g. a pending queue load).
func (q *Queue) Current() *Track {
	if q.Position < 0 || q.Position >= len(q.QueueOrder) {
		return nil
	}
	idx := q.QueueOrder[q.Position]
	if idx < 0 || idx >= len(q.Tracks) {
		return nil
	}
	return q.Tracks[idx]
}

// TrackAt returns the track at a given queue_order index, or nil.
func (q *Queue) TrackAt(pos int) *Track {
	if pos < 0 || pos >= len(q.QueueOrder) {
		return nil
	}
	idx := q.QueueOrder[pos]
	if idx < 0 || idx >= len(q.Tracks) {
		return nil
	}
	return q.Tracks[idx]
}

// SetShuffle regenerates queue_order via Fisher-Yates (when enabling) or
// resets to identity order (when disabling), and recomputes Position so
// the same logical track remains current across the toggle.
func (q *Queue) SetShuffle(on bool, rng *rand.Rand) {
	if on == q.Shuffle {
		return
	}
	current := q.Current()

	if on {
		order := make([]int, len(q.Tracks))
		for i := range order {
			order[i] = i
		}
		for i := len(order) - 1; i > 0; i-- {
			j := rng.Intn(i + 1)
			order[i], order[j] = order[j], order[i]
		}
		q.QueueOrder = order
	} else {
		order := make([]int, len(q.Tracks))
		for i := range order {
			order[i] = i
		}
		q.QueueOrder = order
	}
	q.Shuffle = on

	if current != nil {
		for pos, idx := range q.QueueOrder {
			if q.Tracks[idx] == current {
				q.Position = pos
				break
			}
		}
	}
}

// Advance applies the repeat rule to move to the next position. It
// returns whether playback should now be paused (ran off the end with no
// wraparound repeat).
func (q *Queue) Advance() (pause bool) {
	if q.Repeat == RepeatOne {
		return false
	}
	q.Position++
	if q.Position >= len(q.QueueOrder) {
		q.Position = 0
		if q.Repeat != RepeatAll {
			return true
		}
	}
	return false
}
