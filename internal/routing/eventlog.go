package routing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

// MatchEventlogDestinations is the eventlog route set's analogue of
// MatchDestinations: the ordered, deduplicated set of destinations whose
// filter matches entry. Disabled filters never match. An invalid regex
// pattern collapses to "no match" rather than an error, since a
// misconfigured filter should drop silently, not break the whole route
// set.
func MatchEventlogDestinations(entry domain.EventlogEntry, filters []domain.EventlogFilter) []domain.Destination {
	seen := make(map[domain.Destination]struct{}, len(filters))
	out := make([]domain.Destination, 0, len(filters))

	for _, f := range filters {
		if !f.Enabled {
			continue
		}
		if _, reason := matchEventlogFilter(entry, f); reason == "" {
			continue
		}
		if _, dup := seen[f.Dest]; dup {
			continue
		}
		seen[f.Dest] = struct{}{}
		out = append(out, f.Dest)
	}

	return out
}

// EventlogMatchExplanation is one filter's match outcome against a single
// entry, used by the eventlog's own diagnostics.
type EventlogMatchExplanation struct {
	FilterID int64
	Matched  bool
	Reason   string
}

// ExplainEventlogMatches reports, for every filter, whether it matched
// entry and why; a disabled filter is reported as not matched with an
// empty reason.
func ExplainEventlogMatches(entry domain.EventlogEntry, filters []domain.EventlogFilter) []EventlogMatchExplanation {
	out := make([]EventlogMatchExplanation, 0, len(filters))
	for _, f := range filters {
		exp := EventlogMatchExplanation{FilterID: f.ID}
		if f.Enabled {
			matched, reason := matchEventlogFilter(entry, f)
			exp.Matched = matched
			exp.Reason = reason
		}
		out = append(out, exp)
	}
	return out
}

// matchEventlogFilter reports whether f matches entry, and if so a
// diagnostic reason string. contains is a case-sensitive substring test,
// matching original_source/bot/services/eventlog_filter_store.py's
// `pattern in target`; regex compiles Pattern fresh on each call since
// rules come from runtime config, not from source, and a bad pattern must
// never propagate as an error.
func matchEventlogFilter(entry domain.EventlogEntry, f domain.EventlogFilter) (bool, string) {
	if f.Pattern == "" {
		return false, ""
	}

	target := resolveEventlogTarget(entry, f.Field)

	switch f.NormalizedMatchKind() {
	case domain.EventlogMatchRegex:
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return false, ""
		}
		if re.MatchString(target) {
			return true, fmt.Sprintf("regex:%s", f.Pattern)
		}
		return false, ""
	default:
		if strings.Contains(target, f.Pattern) {
			return true, fmt.Sprintf("contains:%s", f.Pattern)
		}
		return false, ""
	}
}

// resolveEventlogTarget reads the field a filter inspects out of entry.
// "any"/"*" search every field's value joined with spaces.
func resolveEventlogTarget(entry domain.EventlogEntry, field string) string {
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "any" || field == "*" {
		values := make([]string, 0, len(entry.Fields))
		for _, v := range entry.Fields {
			values = append(values, v)
		}
		return strings.Join(values, " ")
	}
	return entry.Fields[field]
}
