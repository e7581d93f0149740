// Package types provides shared type definitions for the application.
package types

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the connection/session state.
type Status string

const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnected    Status = "CONNECTED"
	StatusListening    Status = "LISTENING"
)

// Command is an out-of-band text command sent to the backend.
type Command string

// CommandCopyResponse asks for the active suggested response to be copied.
const CommandCopyResponse Command = "COPY_RESPONSE"

// ─────────────────────────────────────────────────────────────────────────────
// Signals
// ─────────────────────────────────────────────────────────────────────────────

// SignalType classifies a backend signal. Unknown values are kept verbatim.
type SignalType string

const (
	SignalDecisionPoint  SignalType = "DECISION_POINT"
	SignalRiskDetected   SignalType = "RISK_DETECTED"
	SignalInputRequired  SignalType = "INPUT_REQUIRED"
	SignalContradiction  SignalType = "CONTRADICTION"
	SignalCodeGenerated  SignalType = "CODE_GENERATED"
	SignalImageGenerated SignalType = "IMAGE_GENERATED"
	SignalIdle           SignalType = "IDLE"
)

// Known reports whether t is one of the signal types the backend documents.
func (t SignalType) Known() bool {
	switch t {
	case SignalDecisionPoint, SignalRiskDetected, SignalInputRequired, SignalContradiction,
		SignalCodeGenerated, SignalImageGenerated, SignalIdle:
		return true
	}
	return false
}

// Signal is one event produced by the analysis backend.
// A Signal is never modified after it has been appended to the history.
type Signal struct {
	ID                string       `json:"id,omitempty"` // Assigned locally on arrival
	Type              SignalType   `json:"type"`
	Timestamp         Timestamp    `json:"timestamp"`
	Confidence        float64      `json:"confidence"` // 0-1
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	SuggestedResponse string       `json:"suggestedResponse,omitempty"`
	CodeSnippets      CodeSnippets `json:"codeSnippets,omitempty"`
	ImageBase64       string       `json:"imageBase64,omitempty"`
	ReceivedAt        time.Time    `json:"receivedAt"`
}

// HasSuggestedResponse reports whether the signal carries text worth copying.
func (s Signal) HasSuggestedResponse() bool {
	return strings.TrimSpace(s.SuggestedResponse) != ""
}

// HasImage reports whether the signal carries an encoded image.
func (s Signal) HasImage() bool {
	return s.ImageBase64 != ""
}

// Image decodes the attached image. A data URL prefix is accepted.
func (s Signal) Image() ([]byte, error) {
	if s.ImageBase64 == "" {
		return nil, errors.New("signal has no image")
	}
	raw := s.ImageBase64
	if strings.HasPrefix(raw, "data:") {
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return data, nil
}

// Display is the resolved record for the foregrounded history entry.
// For an image signal, Primary is the signal it decorates and Image is the
// image signal itself.
type Display struct {
	Index   int     `json:"index"`
	Primary Signal  `json:"primary"`
	Image   *Signal `json:"image,omitempty"`
}

// Entry returns the history entry at Index itself, before pairing.
func (d Display) Entry() Signal {
	if d.Image != nil {
		return *d.Image
	}
	return d.Primary
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire helpers
// ─────────────────────────────────────────────────────────────────────────────

// Timestamp is a signal time. It decodes from epoch milliseconds, a numeric
// string, or a date string in one of timestampLayouts, and encodes as epoch
// milliseconds.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if ms, err := strconv.ParseFloat(s, 64); err == nil {
			t.Time = time.UnixMilli(int64(ms))
			return nil
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return fmt.Errorf("parse timestamp: unrecognized layout %q", s)
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	t.Time = time.UnixMilli(int64(ms))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UnixMilli())
}

// CodeSnippet is one generated code sample.
type CodeSnippet struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// CodeSnippets is an ordered list of code samples. It decodes from either a
// language->code object (key order preserved) or an array of CodeSnippet.
// Object entries whose value is not a string are skipped.
type CodeSnippets []CodeSnippet

// UnmarshalJSON implements json.Unmarshaler.
func (c *CodeSnippets) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = nil
		return nil
	}

	if data[0] == '[' {
		var list []CodeSnippet
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*c = list
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("code snippets: unexpected token %v", tok)
	}

	var out CodeSnippets
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		lang, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("code snippets[%s]: %w", lang, err)
		}
		var code string
		if err := json.Unmarshal(value, &code); err != nil {
			continue
		}
		out = append(out, CodeSnippet{Language: lang, Code: code})
	}
	*c = out
	return nil
}
