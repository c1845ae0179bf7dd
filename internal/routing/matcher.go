// Package routing implements the pure ticket-to-destination matching used
// by both the main notification path and the eventlog route set. It has no
// I/O and no notion of time: given the same tickets and rules it always
// returns the same destinations (P1, routing purity).
package routing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

// MatchDestinations returns the ordered, deduplicated set of destinations
// that at least one rule matches for at least one ticket. A rule matches a
// ticket if any of its non-empty criteria match (OR across criteria); the
// output preserves rule order across rules and first-seen order within
// that.
func MatchDestinations(items []domain.Ticket, rules []domain.Rule, fields domain.FieldBindings) []domain.Destination {
	seen := make(map[domain.Destination]struct{}, len(rules))
	out := make([]domain.Destination, 0, len(rules))

	for _, rule := range rules {
		matched := false
		for _, item := range items {
			if _, reason := matchFilter(item, rule.Filt, fields); reason != "" {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if _, dup := seen[rule.Dest]; dup {
			continue
		}
		seen[rule.Dest] = struct{}{}
		out = append(out, rule.Dest)
	}

	return out
}

// PickDestinations applies the default-destination fallback: if
// MatchDestinations is non-empty it is returned unchanged; otherwise, if
// defaultDest is configured, the singleton {defaultDest} is returned; else
// the result is empty and the caller must invoke the no-destination
// observability path.
func PickDestinations(items []domain.Ticket, rules []domain.Rule, defaultDest *domain.Destination, fields domain.FieldBindings) []domain.Destination {
	matched := MatchDestinations(items, rules, fields)
	if len(matched) > 0 {
		return matched
	}
	if defaultDest != nil {
		return []domain.Destination{*defaultDest}
	}
	return nil
}

// MatchExplanation is one ticket's match outcome, used by diagnostics
// endpoints to show operators why a ticket did or didn't route.
type MatchExplanation struct {
	TicketID int64
	Matched  bool
	Reason   string
}

// ExplainMatches reports, for each ticket, whether any rule matched and the
// first matching criterion's reason string (e.g. "keyword:vip",
// "service_id:101").
func ExplainMatches(items []domain.Ticket, rules []domain.Rule, fields domain.FieldBindings) []MatchExplanation {
	out := make([]MatchExplanation, 0, len(items))
	for _, item := range items {
		exp := MatchExplanation{TicketID: item.ID}
		for _, rule := range rules {
			if _, reason := matchFilter(item, rule.Filt, fields); reason != "" {
				exp.Matched = true
				exp.Reason = reason
				break
			}
		}
		out = append(out, exp)
	}
	return out
}

// matchFilter reports whether item matches flt, and if so the first
// matching criterion's diagnostic reason. An empty filter never matches
// here — routing rules with an empty filter are dropped at parse time, and
// the escalation engine's "empty filter matches everything" semantics are
// handled by its own caller, not this function.
func matchFilter(item domain.Ticket, flt domain.Filter, fields domain.FieldBindings) (bool, string) {
	if len(flt.Keywords) > 0 {
		name := domain.NormalizeKeyword(item.Name)
		for _, kw := range flt.Keywords {
			if kw != "" && strings.Contains(name, kw) {
				return true, "keyword:" + kw
			}
		}
	}

	if reason, ok := matchIDs(item, fields.ServiceIDField, "service_id", flt.ServiceIDs); ok {
		return true, reason
	}
	if reason, ok := matchIDs(item, fields.CustomerIDField, "customer_id", flt.CustomerIDs); ok {
		return true, reason
	}
	if reason, ok := matchIDs(item, fields.CreatorIDField, "creator_id", flt.CreatorIDs); ok {
		return true, reason
	}
	if reason, ok := matchIDs(item, fields.CreatorCompanyIDField, "creator_company_id", flt.CreatorCompanyIDs); ok {
		return true, reason
	}

	return false, ""
}

func matchIDs(item domain.Ticket, field, label string, ids []int64) (string, bool) {
	if len(ids) == 0 || field == "" {
		return "", false
	}
	val, ok := item.FieldInt(field)
	if !ok {
		return "", false
	}
	for _, id := range ids {
		if val == id {
			return fmt.Sprintf("%s:%s", label, strconv.FormatInt(id, 10)), true
		}
	}
	return "", false
}
