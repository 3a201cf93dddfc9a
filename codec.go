package centrifuge

import (
	"bytes"
	"fmt"
	"sync"

	json "github.com/segmentio/encoding/json"
)

// encodeBufferPool reuses bytes.Buffer across command encodes, mirroring
// the teacher's util.go buffer-pool idiom.
var encodeBufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func getEncodeBuffer() *bytes.Buffer {
	buf := encodeBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putEncodeBuffer(buf *bytes.Buffer) {
	encodeBufferPool.Put(buf)
}

// pingFrame is the wire representation of a ping/pong heartbeat.
var pingFrame = []byte("{}")

// isPingFrame reports whether line is an empty JSON object, ignoring
// surrounding whitespace.
func isPingFrame(line []byte) bool {
	return bytes.Equal(bytes.TrimSpace(line), pingFrame)
}

// encodeCommand renders a Command to its wire JSON form: {"id":..,"<tag>":{...}}.
// An id of 0 is left off the wire, so Send commands (which use the
// fire-and-forget id 0) carry no id. The pong frame is not encoded here.
func encodeCommand(cmd Command) ([]byte, error) {
	buf := getEncodeBuffer()
	defer putEncodeBuffer(buf)

	body, err := json.Marshal(cmd.Request)
	if err != nil {
		return nil, fmt.Errorf("centrifuge: encode %s request: %w", cmd.Request.requestTag(), err)
	}

	buf.WriteByte('{')
	if cmd.ID != 0 {
		fmt.Fprintf(buf, `"id":%d,`, cmd.ID)
	}
	fmt.Fprintf(buf, `"%s":`, cmd.Request.requestTag())
	buf.Write(body)
	buf.WriteByte('}')

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// encodePong renders the bare pong frame.
func encodePong() []byte {
	return pingFrame
}

// wireReply is the raw shape of an incoming Reply before its result
// variant has been resolved.
type wireReply struct {
	ID          uint32           `json:"id,omitempty"`
	Connect     *ConnectResult   `json:"connect,omitempty"`
	Subscribe   *SubscribeResult `json:"subscribe,omitempty"`
	Unsubscribe *struct{}        `json:"unsubscribe,omitempty"`
	Publish     *struct{}        `json:"publish,omitempty"`
	Refresh     *RefreshResult   `json:"refresh,omitempty"`
	Push        *wirePush        `json:"push,omitempty"`
	Error       *ErrorReply      `json:"error,omitempty"`
}

type wirePush struct {
	Channel    string          `json:"channel"`
	Pub        *Publication    `json:"pub,omitempty"`
	Sub        json.RawMessage `json:"sub,omitempty"`
	Unsub      json.RawMessage `json:"unsub,omitempty"`
	Join       json.RawMessage `json:"join,omitempty"`
	Leave      json.RawMessage `json:"leave,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
	Disconnect json.RawMessage `json:"disconnect,omitempty"`
}

// decodeReply parses a single wire line into a Reply. An empty-object
// line is not a valid Reply and must be checked with isPingFrame first.
func decodeReply(line []byte) (Reply, error) {
	var wr wireReply
	if err := json.Unmarshal(line, &wr); err != nil {
		return Reply{}, fmt.Errorf("centrifuge: decode reply: %w", err)
	}

	switch {
	case wr.Connect != nil:
		return Reply{ID: wr.ID, Result: *wr.Connect}, nil
	case wr.Subscribe != nil:
		return Reply{ID: wr.ID, Result: *wr.Subscribe}, nil
	case wr.Unsubscribe != nil:
		return Reply{ID: wr.ID, Result: UnsubscribeResult{}}, nil
	case wr.Publish != nil:
		return Reply{ID: wr.ID, Result: PublishResult{}}, nil
	case wr.Refresh != nil:
		return Reply{ID: wr.ID, Result: *wr.Refresh}, nil
	case wr.Push != nil:
		push := Push{Channel: wr.Push.Channel, Raw: line}
		switch {
		case wr.Push.Pub != nil:
			push.Kind = pushKindPublication
			push.Pub = wr.Push.Pub
		case wr.Push.Sub != nil:
			push.Kind = pushKindSubscribe
		case wr.Push.Unsub != nil:
			push.Kind = pushKindUnsubscribe
		case wr.Push.Join != nil:
			push.Kind = pushKindJoin
		case wr.Push.Leave != nil:
			push.Kind = pushKindLeave
		case wr.Push.Message != nil:
			push.Kind = pushKindMessage
		case wr.Push.Disconnect != nil:
			push.Kind = pushKindDisconnect
		}
		return Reply{ID: 0, Result: push}, nil
	case wr.Error != nil:
		return Reply{ID: wr.ID, Result: *wr.Error}, nil
	default:
		return Reply{}, fmt.Errorf("centrifuge: decode reply: no known result key")
	}
}

// splitFrame splits a WebSocket text frame into its constituent lines,
// skipping blank ones, tolerating both one-object-per-frame and several
// newline-joined objects in one frame.
func splitFrame(frame []byte) [][]byte {
	var lines [][]byte
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// uniqueByOffset de-duplicates a slice of Publications by Offset,
// keeping the first occurrence of each offset and preserving order.
// Adapted from the teacher's internal/recovery.UniquePublications, whose
// Seq/Gen composite key collapses to plain Offset for this wire protocol.
func uniqueByOffset(pubs []Publication) []Publication {
	if len(pubs) < 2 {
		return pubs
	}
	seen := make(map[uint64]struct{}, len(pubs))
	out := make([]Publication, 0, len(pubs))
	for _, p := range pubs {
		if _, ok := seen[p.Offset]; ok {
			continue
		}
		seen[p.Offset] = struct{}{}
		out = append(out, p)
	}
	return out
}
