package domain

import "encoding/json"

// RoutingConfig is the parsed routing section of the runtime configuration:
// an ordered rule list, an optional default destination, and the field
// bindings id-based criteria read from.
type RoutingConfig struct {
	Rules       []Rule
	DefaultDest *Destination
	Fields      FieldBindings
}

type routingConfigJSON struct {
	Rules                 []json.RawMessage `json:"rules"`
	DefaultDest           json.RawMessage   `json:"default_dest"`
	ServiceIDField        string            `json:"service_id_field"`
	CustomerIDField       string            `json:"customer_id_field"`
	CreatorIDField        string            `json:"creator_id_field"`
	CreatorCompanyIDField string            `json:"creator_company_id_field"`
}

// ParseRoutingConfig parses the routing section of a configuration. The
// default destination is optional: an empty object ({}) or invalid
// destination both mean "no default", never an error — the validator (C8)
// is responsible for rejecting configs before they reach here.
func ParseRoutingConfig(raw json.RawMessage) RoutingConfig {
	var rj routingConfigJSON
	_ = json.Unmarshal(raw, &rj)

	cfg := RoutingConfig{
		Rules: ParseRules(rj.Rules),
		Fields: FieldBindings{
			ServiceIDField:        rj.ServiceIDField,
			CustomerIDField:       rj.CustomerIDField,
			CreatorIDField:        rj.CreatorIDField,
			CreatorCompanyIDField: rj.CreatorCompanyIDField,
		},
	}

	if dest, err := ParseDestination(rj.DefaultDest); err == nil {
		cfg.DefaultDest = &dest
	}

	return cfg
}

// MarshalJSON renders the routing config back to the wire shape, used when
// the server re-serializes a validated config for storage. A nil
// DefaultDest renders as {} ("no default").
func (c RoutingConfig) MarshalJSON() ([]byte, error) {
	type ruleOut struct {
		Dest              Destination `json:"dest"`
		Keywords          []string    `json:"keywords,omitempty"`
		ServiceIDs        []int64     `json:"service_ids,omitempty"`
		CustomerIDs       []int64     `json:"customer_ids,omitempty"`
		CreatorIDs        []int64     `json:"creator_ids,omitempty"`
		CreatorCompanyIDs []int64     `json:"creator_company_ids,omitempty"`
	}

	out := struct {
		Rules                 []ruleOut `json:"rules"`
		DefaultDest           any       `json:"default_dest"`
		ServiceIDField        string    `json:"service_id_field"`
		CustomerIDField       string    `json:"customer_id_field"`
		CreatorIDField        string    `json:"creator_id_field"`
		CreatorCompanyIDField string    `json:"creator_company_id_field"`
	}{
		Rules:                 make([]ruleOut, 0, len(c.Rules)),
		DefaultDest:           struct{}{},
		ServiceIDField:        c.Fields.ServiceIDField,
		CustomerIDField:       c.Fields.CustomerIDField,
		CreatorIDField:        c.Fields.CreatorIDField,
		CreatorCompanyIDField: c.Fields.CreatorCompanyIDField,
	}
	if c.DefaultDest != nil {
		out.DefaultDest = *c.DefaultDest
	}
	for _, r := range c.Rules {
		out.Rules = append(out.Rules, ruleOut{
			Dest:              r.Dest,
			Keywords:          r.Filt.Keywords,
			ServiceIDs:        r.Filt.ServiceIDs,
			CustomerIDs:       r.Filt.CustomerIDs,
			CreatorIDs:        r.Filt.CreatorIDs,
			CreatorCompanyIDs: r.Filt.CreatorCompanyIDs,
		})
	}
	return json.Marshal(out)
}
