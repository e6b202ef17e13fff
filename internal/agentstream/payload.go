package agentstream

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/GregMSThompson/agent-bridge/internal/errs"
)

const (
	bytesField          = "bytes"
	finalResponseMarker = `finalResponse":`
	traceFinalPath      = "trace.orchestrationTrace.observation.finalResponse.text"
)

var (
	// "bytes": "<json string>" inside a segment
	keyedBytes = regexp.MustCompile(`"bytes"\s*:\s*"(?:[^"\\]|\\.)*"`)
	// First double-quoted base64 run after a bare bytes marker.
	quotedBase64 = regexp.MustCompile(`"([A-Za-z0-9+/]+={0,2})"`)
)

var errNoBytesField = errors.New("payload has no bytes field")

// isPayloadFrame reports whether a framed message should carry answer text.
func isPayloadFrame(f Frame) bool {
	if f.Err != nil {
		return false
	}
	return f.Kind == KindChunk || gjson.GetBytes(f.Payload, bytesField).Exists()
}

func chunkTextFromJSON(payload []byte) (string, error) {
	v := gjson.GetBytes(payload, bytesField)
	if !v.Exists() {
		return "", errNoBytesField
	}
	if v.Type != gjson.String {
		return "", fmt.Errorf("bytes field is %s, not a string", v.Type)
	}
	return decodeText(v.Str)
}

func chunkTextFromSegment(seg string) (string, error) {
	if kv := keyedBytes.FindString(seg); kv != "" {
		return chunkTextFromJSON([]byte("{" + kv + "}"))
	}

	i := strings.Index(seg, bytesField)
	if i < 0 {
		return "", errNoBytesField
	}
	m := quotedBase64.FindStringSubmatch(seg[i+len(bytesField):])
	if m == nil {
		return "", errors.New("no quoted base64 value after bytes marker")
	}
	return decodeText(m[1])
}

func decodeErr(idx int, err error) error {
	return errs.NewDecodeError(idx, "payload not decoded", err)
}

func decodeText(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", errors.New("decoded payload is not valid UTF-8")
	}
	return string(raw), nil
}

// exceptionSummary renders an exception or error frame for the trace.
func exceptionSummary(f Frame) string {
	name := f.Headers[headerExceptionType]
	if name == "" {
		name = f.Headers[headerErrorCode]
	}
	msg := gjson.GetBytes(f.Payload, "message").String()
	if msg == "" {
		msg = string(f.Payload)
	}
	return fmt.Sprintf("%s: %s", name, msg)
}

func finalResponseFromTrace(payload []byte) (string, bool) {
	v := gjson.GetBytes(payload, traceFinalPath)
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}

// finalResponseFromText scans raw text for the finalResponse marker and
// returns the text of the last occurrence that parses.
func finalResponseFromText(text string) (string, bool) {
	answer, found := "", false
	rest := text
	for {
		i := strings.Index(rest, finalResponseMarker)
		if i < 0 {
			break
		}
		rest = rest[i+len(finalResponseMarker):]
		if s, ok := parseFinalResponse(rest); ok {
			answer, found = s, true
		}
	}
	return answer, found
}

// parseFinalResponse accepts an object ({"text":...}), a JSON string holding
// such an object, or the loosely quoted "{"text":"..."}" form found in
// trace dumps.
func parseFinalResponse(s string) (string, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	switch {
	case strings.HasPrefix(s, "{"):
		return textField(s)
	case strings.HasPrefix(s, `"`):
		if lit := gjson.Parse(s); lit.Type == gjson.String {
			if text, ok := textField(lit.Str); ok {
				return text, true
			}
		}
		end := strings.Index(s[1:], `"}`)
		if end < 0 {
			return "", false
		}
		doc := s[1 : 1+end+2]
		if !gjson.Valid(doc) {
			return "", false
		}
		return textField(doc)
	}
	return "", false
}

func textField(doc string) (string, bool) {
	v := gjson.Get(doc, "text")
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}
