// Package domain holds the bridge's core types: tickets, chat destinations,
// routing/escalation rules, and the runtime configuration shape they are
// parsed from.
package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Ticket is the open-queue item as returned by the SD proxy. Only a fixed
// set of fields are given first-class names; everything else a rule might
// match on (service id, customer id, creator id, creator company id) is
// read out of Fields by a configurable field name, since SD's schema names
// those columns differently across deployments.
type Ticket struct {
	ID     int64                  `json:"id"`
	Name   string                 `json:"name"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// FieldInt reads field name out of the ticket's opaque field bag and parses
// it as an integer. Returns ok=false for a missing or non-integer value;
// such values are treated as "unknown" and never match an id-based rule.
func (t Ticket) FieldInt(field string) (int64, bool) {
	if field == "" || t.Fields == nil {
		return 0, false
	}
	return toInt64(t.Fields[field])
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case string:
		s := strings.TrimSpace(n)
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
