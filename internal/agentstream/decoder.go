// Package agentstream turns the raw response body of an agent invocation
// into a diagnostic trace and a single answer string.
//
// Bodies that start with a valid event-stream prelude are read frame by
// frame. Anything else is treated as text and split on the message-type
// marker, which is how the body looks once it has been passed through a
// lossy string conversion.
package agentstream

import (
	"fmt"
	"strings"
)

type Mode string

const (
	ModeFramed Mode = "framed"
	ModeMarker Mode = "marker"
)

// Source records where the answer came from.
type Source string

const (
	SourceChunk  Source = "chunk"
	SourceTrace  Source = "trace"
	SourceMarker Source = "final_response"
	SourceNone   Source = "none"
)

const segmentMarker = ":message-type"

type FrameReport struct {
	Index          int
	Kind           string
	PayloadBearing bool
	Err            error
}

type Result struct {
	Trace  []string
	Answer string
	Mode   Mode
	Source Source
	Frames []FrameReport
}

// Failed returns the number of payload frames that could not be decoded.
func (r Result) Failed() int {
	n := 0
	for _, f := range r.Frames {
		if f.Err != nil {
			n++
		}
	}
	return n
}

func (r *Result) tracef(format string, args ...any) {
	r.Trace = append(r.Trace, fmt.Sprintf(format, args...))
}

// Decoder is immutable once built and safe for concurrent use.
type Decoder struct {
	concat      bool
	maxFrameLen uint32
}

type Option func(*Decoder)

// WithConcatenatedChunks joins every decoded chunk in order instead of
// keeping only the last one.
func WithConcatenatedChunks() Option {
	return func(d *Decoder) { d.concat = true }
}

// WithMaxFrameLength caps the total length a single frame may declare.
func WithMaxFrameLength(n uint32) Option {
	return func(d *Decoder) {
		if n >= minFrameLen {
			d.maxFrameLen = n
		}
	}
}

func New(opts ...Option) *Decoder {
	d := &Decoder{maxFrameLen: maxFrameLenDef}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode runs a default Decoder over body.
func Decode(body []byte) Result {
	return New().Decode(body)
}

// Decode never fails: a body it cannot make sense of yields an empty answer
// and a trace describing what was seen.
func (d *Decoder) Decode(body []byte) (res Result) {
	res.Source = SourceNone
	defer func() {
		if r := recover(); r != nil {
			res.Answer = ""
			res.Source = SourceNone
			res.tracef("decode aborted: %v", r)
		}
	}()

	res.tracef("raw body (%d bytes): %q", len(body), body)

	var texts, traceAnswers []string
	if hasPrelude(body, d.maxFrameLen) {
		res.Mode = ModeFramed
		texts, traceAnswers = d.decodeFrames(body, &res)
	} else {
		res.Mode = ModeMarker
		texts = d.decodeSegments(string(body), &res)
	}

	var raw string
	switch {
	case len(texts) > 0:
		res.Source = SourceChunk
		if d.concat {
			raw = strings.Join(texts, "")
		} else {
			raw = texts[len(texts)-1]
		}
	case len(traceAnswers) > 0:
		res.Source = SourceTrace
		raw = traceAnswers[len(traceAnswers)-1]
	default:
		if text, ok := finalResponseFromText(string(body)); ok {
			res.Source = SourceMarker
			raw = text
		}
	}

	res.Answer = Normalize(raw)
	res.tracef("answer source=%s length=%d", res.Source, len(res.Answer))
	return res
}

func (d *Decoder) decodeFrames(body []byte, res *Result) (texts, traceAnswers []string) {
	frames, stopErr := readFrames(body, d.maxFrameLen)
	for _, f := range frames {
		report := FrameReport{Index: f.Index, Kind: f.Kind}
		if f.Err != nil {
			report.Err = f.Err
			res.tracef("frame %d: %v", f.Index, f.Err)
			res.Frames = append(res.Frames, report)
			continue
		}

		res.tracef("frame %d: kind=%s message-type=%s payload=%q", f.Index, f.Kind, f.MessageType, f.Payload)
		report.PayloadBearing = isPayloadFrame(f)
		res.tracef("frame %d: bytes=%t", f.Index, report.PayloadBearing)

		switch {
		case report.PayloadBearing:
			text, err := chunkTextFromJSON(f.Payload)
			if err != nil {
				report.Err = decodeErr(f.Index, err)
				res.tracef("frame %d: %v", f.Index, report.Err)
				break
			}
			texts = append(texts, text)
		case f.Kind == KindException || f.Kind == KindError:
			res.tracef("frame %d: %s", f.Index, exceptionSummary(f))
		default:
			if text, ok := finalResponseFromTrace(f.Payload); ok {
				traceAnswers = append(traceAnswers, text)
			}
		}
		res.Frames = append(res.Frames, report)
	}
	if stopErr != nil {
		res.tracef("framing stopped: %v", stopErr)
	}
	return texts, traceAnswers
}

func (d *Decoder) decodeSegments(text string, res *Result) []string {
	var texts []string
	for i, seg := range strings.Split(text, segmentMarker) {
		report := FrameReport{Index: i, Kind: segmentKind(seg)}
		res.tracef("segment %d: %q", i, seg)
		report.PayloadBearing = strings.Contains(seg, bytesField)
		res.tracef("segment %d: bytes=%t", i, report.PayloadBearing)

		if report.PayloadBearing {
			chunk, err := chunkTextFromSegment(seg)
			if err != nil {
				report.Err = decodeErr(i, err)
				res.tracef("segment %d: %v", i, report.Err)
			} else {
				texts = append(texts, chunk)
			}
		}
		res.Frames = append(res.Frames, report)
	}
	return texts
}

func segmentKind(seg string) string {
	switch {
	case strings.Contains(seg, bytesField):
		return KindChunk
	case strings.Contains(seg, `"trace"`):
		return KindTrace
	case strings.Contains(seg, "exception"):
		return KindException
	default:
		return KindUnknown
	}
}
