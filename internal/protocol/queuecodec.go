package protocol

import (
	"bytes"
	"compress/flate"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/google/uuid"

	"github.com/halcyon-audio/spindle/internal/errs"
	"github.com/halcyon-audio/spindle/internal/model"
)

// queue.List field numbers. Track IDs, ordering, and shuffle are the
// fields the spec names explicitly; queue_uuid, repeat_mode, and position
// are carried too so a PublishQueue round-trips a complete model.Queue.
const (
	fieldTrackIDs  = 1
	fieldOrdering  = 2
	fieldShuffle   = 3
	fieldQueueUUID = 4
	fieldRepeat    = 5
	fieldPosition  = 6
)

// encodeQueuePayload protobuf-encodes queue as a queue.List message, then
// deflates it at the fastest compression level (the inner payload
// encoding this body variant alone uses).
func encodeQueuePayload(queue *model.Queue) ([]byte, error) {
	var b []byte

	ids := make([]byte, 0, len(queue.Tracks)*2)
	for _, t := range queue.Tracks {
		ids = protowire.AppendVarint(ids, protowire.EncodeZigZag(int64(t.ID)))
	}
	b = protowire.AppendTag(b, fieldTrackIDs, protowire.BytesType)
	b = protowire.AppendBytes(b, ids)

	order := make([]byte, 0, len(queue.QueueOrder)*2)
	for _, idx := range queue.QueueOrder {
		order = protowire.AppendVarint(order, uint64(idx))
	}
	b = protowire.AppendTag(b, fieldOrdering, protowire.BytesType)
	b = protowire.AppendBytes(b, order)

	b = protowire.AppendTag(b, fieldShuffle, protowire.VarintType)
	b = protowire.AppendVarint(b, boolToVarint(queue.Shuffle))

	b = protowire.AppendTag(b, fieldQueueUUID, protowire.BytesType)
	idBytes, _ := queue.UUID.MarshalBinary()
	b = protowire.AppendBytes(b, idBytes)

	b = protowire.AppendTag(b, fieldRepeat, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(queue.Repeat.Int()))

	b = protowire.AppendTag(b, fieldPosition, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(queue.Position)))

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, errs.New(errs.Unknown, "protocol: encode queue", err)
	}
	if _, err := w.Write(b); err != nil {
		return nil, errs.New(errs.Unknown, "protocol: encode queue", err)
	}
	if err := w.Close(); err != nil {
		return nil, errs.New(errs.Unknown, "protocol: encode queue", err)
	}
	return buf.Bytes(), nil
}

// decodeQueuePayload inflates raw and protobuf-decodes the result into a
// model.Queue.
func decodeQueuePayload(raw []byte) (*model.Queue, error) {
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", err)
	}

	var trackIDs []model.TrackID
	var order []int
	var shuffle bool
	var id uuid.UUID
	var repeat model.RepeatMode
	var position int

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldTrackIDs:
			data, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", protowire.ParseError(n))
			}
			b = b[n:]
			for len(data) > 0 {
				v, m := protowire.ConsumeVarint(data)
				if m < 0 {
					return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", protowire.ParseError(m))
				}
				trackIDs = append(trackIDs, model.TrackID(protowire.DecodeZigZag(v)))
				data = data[m:]
			}
		case fieldOrdering:
			data, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", protowire.ParseError(n))
			}
			b = b[n:]
			for len(data) > 0 {
				v, m := protowire.ConsumeVarint(data)
				if m < 0 {
					return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", protowire.ParseError(m))
				}
				order = append(order, int(v))
				data = data[m:]
			}
		case fieldShuffle:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", protowire.ParseError(n))
			}
			b = b[n:]
			shuffle = v != 0
		case fieldQueueUUID:
			data, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", protowire.ParseError(n))
			}
			b = b[n:]
			_ = id.UnmarshalBinary(data)
		case fieldRepeat:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", protowire.ParseError(n))
			}
			b = b[n:]
			repeat = model.RepeatModeFromInt(int(v))
		case fieldPosition:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", protowire.ParseError(n))
			}
			b = b[n:]
			position = int(protowire.DecodeZigZag(v))
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errs.New(errs.InvalidArgument, "protocol: decode queue", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	tracks := make([]*model.Track, len(trackIDs))
	for i, id := range trackIDs {
		tracks[i] = &model.Track{ID: id}
	}

	queue := &model.Queue{
		UUID:       id,
		Tracks:     tracks,
		QueueOrder: order,
		Position:   position,
		Shuffle:    shuffle,
		Repeat:     repeat,
	}
	// tracks_order is only authoritative when present with a length equal
	// to tracks; any other length (including absent) falls back to
	// insertion order (§9).
	if len(queue.QueueOrder) != len(tracks) {
		queue.QueueOrder = make([]int, len(tracks))
		for i := range queue.QueueOrder {
			queue.QueueOrder[i] = i
		}
	}
	return queue, nil
}

func boolToVarint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
