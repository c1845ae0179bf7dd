// Package statestore holds the small pieces of state the bridge needs to
// survive a restart without losing its place: the escalation engine's
// per-ticket timers. The poller's last-seen ticket snapshot and the
// observability probes' rate-limit windows are kept in memory and are not
// stored here. Everything is stored as JSON blobs under well-known keys.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by GetJSON when a key has no value.
var ErrNotFound = errors.New("statestore: key not found")

// Store is the interface every component in this module depends on for
// durable state. It is intentionally narrow: a handful of JSON blobs keyed
// by string, plus a way to tell whether the backend is currently reachable.
type Store interface {
	// GetJSON loads the value stored at key and unmarshals it into dest.
	// Returns ErrNotFound if the key does not exist.
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// SetJSON marshals value as JSON and stores it at key. Keys have no
	// expiration; the bridge owns its own data lifecycle and overwrites
	// them in place.
	SetJSON(ctx context.Context, key string, value interface{}) error

	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error

	// LastOK returns the time of the most recent successful Ping,
	// GetJSON, or SetJSON call, and whether any call has ever succeeded.
	LastOK() (time.Time, bool)
}

func marshalJSON(value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal state value: %w", err)
	}
	return data, nil
}
