// Package feed turns the backend's inbound message stream into an ordered
// signal history and tracks which entry is foregrounded.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go.aimuz.me/signal/internal/types"
)

// ErrMissingType is returned for messages without a type discriminator.
var ErrMissingType = errors.New("signal message has no type")

// ParseSignal decodes one inbound text message. Only input that is not a
// JSON object, or that lacks a string type, is rejected. Fields with an
// unexpected shape are left at their zero value.
func ParseSignal(data []byte) (types.Signal, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return types.Signal{}, fmt.Errorf("decode signal: %w", err)
	}

	var s types.Signal
	if raw, ok := fields["type"]; ok {
		_ = json.Unmarshal(raw, &s.Type)
	}
	if s.Type == "" {
		return types.Signal{}, ErrMissingType
	}

	decodeField(fields, "timestamp", &s.Timestamp)
	decodeField(fields, "title", &s.Title)
	decodeField(fields, "description", &s.Description)
	decodeField(fields, "suggestedResponse", &s.SuggestedResponse)
	decodeField(fields, "codeSnippets", &s.CodeSnippets)
	decodeField(fields, "imageBase64", &s.ImageBase64)
	if raw, ok := fields["confidence"]; ok {
		c, err := parseConfidence(raw)
		if err != nil {
			slog.Debug("ignore signal field", "type", s.Type, "field", "confidence", "error", err)
		}
		s.Confidence = c
	}
	return s, nil
}

func decodeField(fields map[string]json.RawMessage, key string, dst any) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Debug("ignore signal field", "field", key, "error", err)
	}
}

// parseConfidence accepts a JSON number or a numeric string.
func parseConfidence(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse confidence: %w", err)
		}
		return f, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse confidence: %w", err)
	}
	return f, nil
}
