package domain

import (
	"encoding/json"
	"strings"
)

// Filter is the five-criterion predicate shared by routing rules and
// escalation rules: a ticket matches a filter if any non-empty criterion
// matches (OR across criteria). An empty filter matches everything.
type Filter struct {
	Keywords          []string
	ServiceIDs        []int64
	CustomerIDs       []int64
	CreatorIDs        []int64
	CreatorCompanyIDs []int64
}

// Empty reports whether the filter has no criteria at all.
func (f Filter) Empty() bool {
	return len(f.Keywords) == 0 && len(f.ServiceIDs) == 0 && len(f.CustomerIDs) == 0 &&
		len(f.CreatorIDs) == 0 && len(f.CreatorCompanyIDs) == 0
}

// FieldBindings names the ticket fields that id-based criteria are read
// from; SD deployments differ on what these columns are called.
type FieldBindings struct {
	ServiceIDField        string
	CustomerIDField       string
	CreatorIDField        string
	CreatorCompanyIDField string
}

// Rule binds a Destination to a Filter. A rule with an empty filter is
// invalid for routing (it would match every ticket unconditionally) and is
// dropped at parse time; escalation rules are allowed an empty filter,
// meaning "escalate anything that dwells long enough".
type Rule struct {
	Dest Destination
	Filt Filter
}

type ruleJSON struct {
	Dest              json.RawMessage `json:"dest"`
	Keywords          []string        `json:"keywords"`
	ServiceIDs        []int64         `json:"service_ids"`
	CustomerIDs       []int64         `json:"customer_ids"`
	CreatorIDs        []int64         `json:"creator_ids"`
	CreatorCompanyIDs []int64         `json:"creator_company_ids"`
}

// NormalizeKeyword casefolds and strips a keyword so that matching is
// case- and whitespace-insensitive.
func NormalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeKeywords(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, k := range in {
		if n := NormalizeKeyword(k); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ParseRule parses one routing rule from its JSON form. It is total:
// malformed or criterion-less rules return ok=false instead of an error,
// since the caller (parsing a whole rule list) drops and reports bad rules
// rather than failing the entire config.
func ParseRule(raw json.RawMessage) (Rule, bool) {
	var rj ruleJSON
	if err := json.Unmarshal(raw, &rj); err != nil {
		return Rule{}, false
	}

	dest, err := ParseDestination(rj.Dest)
	if err != nil {
		return Rule{}, false
	}

	filt := Filter{
		Keywords:          normalizeKeywords(rj.Keywords),
		ServiceIDs:        rj.ServiceIDs,
		CustomerIDs:       rj.CustomerIDs,
		CreatorIDs:        rj.CreatorIDs,
		CreatorCompanyIDs: rj.CreatorCompanyIDs,
	}
	if filt.Empty() {
		return Rule{}, false
	}

	return Rule{Dest: dest, Filt: filt}, true
}

// ParseRules parses a list of rule JSON blobs, silently dropping any that
// fail ParseRule (logging is the caller's responsibility — this function
// stays pure). Order is preserved; it is what routing match order depends
// on.
func ParseRules(raw []json.RawMessage) []Rule {
	rules := make([]Rule, 0, len(raw))
	for _, r := range raw {
		if rule, ok := ParseRule(r); ok {
			rules = append(rules, rule)
		}
	}
	return rules
}
