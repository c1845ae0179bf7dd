package domain

import "encoding/json"

// EscalationRule binds a destination and a mention string to a filter: when
// a ticket matches the filter and has dwelled past the threshold, one
// action is emitted per matching rule.
type EscalationRule struct {
	Dest    Destination
	Mention string
	Filt    Filter
}

// EscalationConfig is the parsed escalation section of the runtime
// configuration.
type EscalationConfig struct {
	Enabled bool
	AfterS  int
	Rules   []EscalationRule
	Fields  FieldBindings
}

type escalationRuleJSON struct {
	Dest    json.RawMessage `json:"dest"`
	Mention string          `json:"mention"`
	Filter  json.RawMessage `json:"filter"`
}

type escalationFilterJSON struct {
	Keywords          []string `json:"keywords"`
	ServiceIDs        []int64  `json:"service_ids"`
	CustomerIDs       []int64  `json:"customer_ids"`
	CreatorIDs        []int64  `json:"creator_ids"`
	CreatorCompanyIDs []int64  `json:"creator_company_ids"`
}

type escalationConfigJSON struct {
	Enabled               bool                 `json:"enabled"`
	AfterS                int                  `json:"after_s"`
	Rules                 []escalationRuleJSON `json:"rules"`
	ServiceIDField        string               `json:"service_id_field"`
	CustomerIDField       string               `json:"customer_id_field"`
	CreatorIDField        string               `json:"creator_id_field"`
	CreatorCompanyIDField string               `json:"creator_company_id_field"`
}

// ParseEscalationConfig parses the escalation section. Unlike routing
// rules, an escalation rule's filter may be empty (it matches every open
// ticket), so a parse failure only drops rules with an invalid
// destination.
func ParseEscalationConfig(raw json.RawMessage) EscalationConfig {
	var ej escalationConfigJSON
	_ = json.Unmarshal(raw, &ej)

	cfg := EscalationConfig{
		Enabled: ej.Enabled,
		AfterS:  ej.AfterS,
		Fields: FieldBindings{
			ServiceIDField:        ej.ServiceIDField,
			CustomerIDField:       ej.CustomerIDField,
			CreatorIDField:        ej.CreatorIDField,
			CreatorCompanyIDField: ej.CreatorCompanyIDField,
		},
	}

	for _, rj := range ej.Rules {
		dest, err := ParseDestination(rj.Dest)
		if err != nil {
			continue
		}
		var fj escalationFilterJSON
		_ = json.Unmarshal(rj.Filter, &fj)
		cfg.Rules = append(cfg.Rules, EscalationRule{
			Dest:    dest,
			Mention: rj.Mention,
			Filt: Filter{
				Keywords:          normalizeKeywords(fj.Keywords),
				ServiceIDs:        fj.ServiceIDs,
				CustomerIDs:       fj.CustomerIDs,
				CreatorIDs:        fj.CreatorIDs,
				CreatorCompanyIDs: fj.CreatorCompanyIDs,
			},
		})
	}

	return cfg
}

// MarshalJSON renders the escalation config back to the wire shape.
func (c EscalationConfig) MarshalJSON() ([]byte, error) {
	type filterOut struct {
		Keywords          []string `json:"keywords,omitempty"`
		ServiceIDs        []int64  `json:"service_ids,omitempty"`
		CustomerIDs       []int64  `json:"customer_ids,omitempty"`
		CreatorIDs        []int64  `json:"creator_ids,omitempty"`
		CreatorCompanyIDs []int64  `json:"creator_company_ids,omitempty"`
	}
	type ruleOut struct {
		Dest    Destination `json:"dest"`
		Mention string      `json:"mention,omitempty"`
		Filter  filterOut   `json:"filter"`
	}

	out := struct {
		Enabled               bool      `json:"enabled"`
		AfterS                int       `json:"after_s"`
		Rules                 []ruleOut `json:"rules"`
		ServiceIDField        string    `json:"service_id_field"`
		CustomerIDField       string    `json:"customer_id_field"`
		CreatorIDField        string    `json:"creator_id_field"`
		CreatorCompanyIDField string    `json:"creator_company_id_field"`
	}{
		Enabled:               c.Enabled,
		AfterS:                c.AfterS,
		Rules:                 make([]ruleOut, 0, len(c.Rules)),
		ServiceIDField:        c.Fields.ServiceIDField,
		CustomerIDField:       c.Fields.CustomerIDField,
		CreatorIDField:        c.Fields.CreatorIDField,
		CreatorCompanyIDField: c.Fields.CreatorCompanyIDField,
	}
	for _, r := range c.Rules {
		out.Rules = append(out.Rules, ruleOut{
			Dest:    r.Dest,
			Mention: r.Mention,
			Filter: filterOut{
				Keywords:          r.Filt.Keywords,
				ServiceIDs:        r.Filt.ServiceIDs,
				CustomerIDs:       r.Filt.CustomerIDs,
				CreatorIDs:        r.Filt.CreatorIDs,
				CreatorCompanyIDs: r.Filt.CreatorCompanyIDs,
			},
		})
	}
	return json.Marshal(out)
}
