package domain

import (
	"encoding/json"
	"strings"
)

// EventlogEntry is one infrastructure event log item: a flat set of
// named string fields (the page's "label -> value" pairs), keyed however
// the upstream happens to label them. Unlike Ticket, there is no fixed
// id/name shape — eventlog filters bind directly to field names.
type EventlogEntry struct {
	ID     int64
	Fields map[string]string
}

// EventlogMatchContains and EventlogMatchRegex are the two supported
// match kinds for an EventlogFilter. An unrecognized or empty match kind
// is treated as EventlogMatchContains.
const (
	EventlogMatchContains = "contains"
	EventlogMatchRegex    = "regex"
)

// EventlogFilter is one rule in the eventlog route set: a single field to
// inspect, a pattern to test it against, and the match kind that governs
// how the pattern is applied.
type EventlogFilter struct {
	ID        int64
	Field     string
	Pattern   string
	MatchKind string
	Dest      Destination
	Enabled   bool
}

// NormalizedMatchKind returns Field's effective match kind, defaulting an
// empty or unrecognized value to EventlogMatchContains.
func (f EventlogFilter) NormalizedMatchKind() string {
	kind := strings.ToLower(strings.TrimSpace(f.MatchKind))
	if kind == EventlogMatchRegex {
		return EventlogMatchRegex
	}
	return EventlogMatchContains
}

// EventlogRouteSet is the parsed eventlog section of the runtime
// configuration: an independent, ordered rule list that reuses
// Destination but matches against EventlogEntry rather than Ticket.
type EventlogRouteSet struct {
	Filters []EventlogFilter
}

type eventlogFilterJSON struct {
	ID        int64           `json:"id"`
	Field     string          `json:"field"`
	Pattern   string          `json:"pattern"`
	MatchKind string          `json:"match_kind"`
	Dest      json.RawMessage `json:"dest"`
	Enabled   *bool           `json:"enabled"`
}

type eventlogRouteSetJSON struct {
	Filters []eventlogFilterJSON `json:"filters"`
}

// ParseEventlogRouteSet parses the eventlog section of a configuration.
// A filter with an empty pattern or an invalid destination is dropped
// rather than failing the whole config, matching ParseRules' tolerance
// for bad entries. enabled defaults to true when the field is absent.
func ParseEventlogRouteSet(raw json.RawMessage) EventlogRouteSet {
	var rj eventlogRouteSetJSON
	_ = json.Unmarshal(raw, &rj)

	var set EventlogRouteSet
	for _, fj := range rj.Filters {
		if fj.Pattern == "" {
			continue
		}
		dest, err := ParseDestination(fj.Dest)
		if err != nil {
			continue
		}
		enabled := true
		if fj.Enabled != nil {
			enabled = *fj.Enabled
		}
		set.Filters = append(set.Filters, EventlogFilter{
			ID:        fj.ID,
			Field:     fj.Field,
			Pattern:   fj.Pattern,
			MatchKind: fj.MatchKind,
			Dest:      dest,
			Enabled:   enabled,
		})
	}
	return set
}

// MarshalJSON renders the eventlog route set back to the wire shape.
func (c EventlogRouteSet) MarshalJSON() ([]byte, error) {
	type filterOut struct {
		ID        int64       `json:"id"`
		Field     string      `json:"field"`
		Pattern   string      `json:"pattern"`
		MatchKind string      `json:"match_kind"`
		Dest      Destination `json:"dest"`
		Enabled   bool        `json:"enabled"`
	}

	out := struct {
		Filters []filterOut `json:"filters"`
	}{Filters: make([]filterOut, 0, len(c.Filters))}

	for _, f := range c.Filters {
		out.Filters = append(out.Filters, filterOut{
			ID:        f.ID,
			Field:     f.Field,
			Pattern:   f.Pattern,
			MatchKind: f.NormalizedMatchKind(),
			Dest:      f.Dest,
			Enabled:   f.Enabled,
		})
	}
	return json.Marshal(out)
}
