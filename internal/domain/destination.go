package domain

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidDestination is returned by ParseDestination when chat_id is
// missing or not an integer.
var ErrInvalidDestination = errors.New("domain: chat_id must be an integer")

// Destination identifies where a chat message lands: a chat and, for
// chats that support threads, an optional thread within it.
type Destination struct {
	ChatID   int64
	ThreadID int64 // 0 means "no thread"
}

// HasThread reports whether d targets a specific thread.
func (d Destination) HasThread() bool {
	return d.ThreadID != 0
}

// MarshalJSON renders the wire shape {"chat_id": <int>, "thread_id": <int?>}.
// A zero ThreadID marshals as "no thread" (field omitted) rather than 0,
// matching ParseDestination's "0 or absent both mean no thread" rule.
func (d Destination) MarshalJSON() ([]byte, error) {
	out := struct {
		ChatID   int64  `json:"chat_id"`
		ThreadID *int64 `json:"thread_id,omitempty"`
	}{ChatID: d.ChatID}
	if d.ThreadID != 0 {
		out.ThreadID = &d.ThreadID
	}
	return json.Marshal(out)
}

// destinationJSON is the on-wire shape: {"chat_id": <int|string>, "thread_id": <int?>}.
type destinationJSON struct {
	ChatID   json.RawMessage `json:"chat_id"`
	ThreadID *int64          `json:"thread_id"`
}

// ParseDestination builds a Destination from the untyped JSON blob found in
// routing/escalation config. chat_id may be an integer or an integer
// encoded as a string; thread_id of 0 or absent normalizes to "no thread".
// Returns ErrInvalidDestination for anything else, including an empty
// object (used on the wire to mean "no destination configured").
func ParseDestination(raw json.RawMessage) (Destination, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Destination{}, ErrInvalidDestination
	}

	var d destinationJSON
	if err := json.Unmarshal(raw, &d); err != nil {
		return Destination{}, ErrInvalidDestination
	}

	chatID, ok := parseChatID(d.ChatID)
	if !ok {
		return Destination{}, ErrInvalidDestination
	}

	dest := Destination{ChatID: chatID}
	if d.ThreadID != nil {
		dest.ThreadID = *d.ThreadID
	}
	return dest, nil
}

func parseChatID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var asInt int64
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt, true
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		s := strings.TrimSpace(asString)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}

	return 0, false
}
