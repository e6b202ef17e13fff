package agentstream

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"

	"github.com/GregMSThompson/agent-bridge/internal/errs"
)

// Wire layout of one frame:
//
//	[total length uint32][headers length uint32][prelude crc uint32]
//	[headers][payload][message crc uint32]
const (
	preludeLen     = 12
	messageCRCLen  = 4
	minFrameLen    = preludeLen + messageCRCLen
	maxFrameLenDef = 16 << 20
)

const (
	headerMessageType   = ":message-type"
	headerEventType     = ":event-type"
	headerExceptionType = ":exception-type"
	headerErrorCode     = ":error-code"
)

const (
	KindChunk     = "chunk"
	KindTrace     = "trace"
	KindException = "exception"
	KindError     = "error"
	KindUnknown   = "unknown"
)

// Frame is one decoded event-stream message. Err is set when the frame was
// delimited correctly but its contents were rejected.
type Frame struct {
	Index       int
	Kind        string
	MessageType string
	Headers     map[string]string
	Payload     []byte
	Err         error
}

// hasPrelude reports whether b starts with a plausible frame prelude whose
// checksum matches.
func hasPrelude(b []byte, maxLen uint32) bool {
	if len(b) < minFrameLen {
		return false
	}
	total := binary.BigEndian.Uint32(b[0:4])
	headers := binary.BigEndian.Uint32(b[4:8])
	if total < minFrameLen || total > maxLen || uint64(total) > uint64(len(b)) {
		return false
	}
	if headers > total-minFrameLen {
		return false
	}
	return crc32.ChecksumIEEE(b[0:8]) == binary.BigEndian.Uint32(b[8:12])
}

// readFrames walks length-prefixed frames. A frame whose headers or message
// checksum are bad is kept with Err set and skipped over using its (verified)
// prelude length. A bad prelude ends the walk, since nothing after it can be
// delimited; the frames read so far are returned with the error.
func readFrames(body []byte, maxLen uint32) ([]Frame, error) {
	dec := eventstream.NewDecoder()

	var frames []Frame
	for off := 0; off < len(body); {
		idx := len(frames)
		rest := body[off:]
		if !hasPrelude(rest, maxLen) {
			return frames, fmt.Errorf("invalid prelude at offset %d (%d bytes left)", off, len(rest))
		}

		total := int(binary.BigEndian.Uint32(rest[0:4]))
		msg, err := dec.Decode(bytes.NewReader(rest[:total]), nil)
		off += total
		if err != nil {
			frames = append(frames, Frame{
				Index: idx,
				Kind:  KindUnknown,
				Err:   errs.NewDecodeError(idx, "frame rejected", err),
			})
			continue
		}
		frames = append(frames, newFrame(idx, msg))
	}
	return frames, nil
}

func newFrame(idx int, msg eventstream.Message) Frame {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Name] = headerString(h.Value)
	}

	f := Frame{
		Index:       idx,
		MessageType: headers[headerMessageType],
		Headers:     headers,
		Payload:     msg.Payload,
	}
	switch f.MessageType {
	case "exception":
		f.Kind = KindException
	case "error":
		f.Kind = KindError
	default:
		f.Kind = headers[headerEventType]
		if f.Kind == "" {
			f.Kind = KindUnknown
		}
	}
	return f
}

func headerString(v eventstream.Value) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(eventstream.StringValue); ok {
		return string(s)
	}
	return v.String()
}
