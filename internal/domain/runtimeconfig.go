package domain

import (
	"encoding/json"
	"strconv"
)

// RuntimeConfig is the fully parsed, in-memory form of the versioned
// configuration: a closed sum of typed records built once from the
// untyped wire JSON (per the design note on replacing dynamic config
// dictionaries with typed snapshots).
type RuntimeConfig struct {
	Version    int64
	Routing    RoutingConfig
	Escalation EscalationConfig
	Eventlog   EventlogRouteSet
}

type runtimeConfigJSON struct {
	Routing    json.RawMessage `json:"routing"`
	Escalation json.RawMessage `json:"escalation"`
	Eventlog   json.RawMessage `json:"eventlog"`
}

// ParseRuntimeConfig parses the config_json body stored by the config
// store into a typed RuntimeConfig. Version is supplied separately since
// it lives in the storage row, not the JSON body.
func ParseRuntimeConfig(version int64, body []byte) RuntimeConfig {
	var rj runtimeConfigJSON
	_ = json.Unmarshal(body, &rj)

	return RuntimeConfig{
		Version:    version,
		Routing:    ParseRoutingConfig(rj.Routing),
		Escalation: ParseEscalationConfig(rj.Escalation),
		Eventlog:   ParseEventlogRouteSet(rj.Eventlog),
	}
}

// MarshalBody renders the config_json body (without the version, which is
// carried alongside it in storage) for persistence or HTTP responses.
func (c RuntimeConfig) MarshalBody() ([]byte, error) {
	routing, err := c.Routing.MarshalJSON()
	if err != nil {
		return nil, err
	}
	escalation, err := c.Escalation.MarshalJSON()
	if err != nil {
		return nil, err
	}
	eventlog, err := c.Eventlog.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out := struct {
		Routing    json.RawMessage `json:"routing"`
		Escalation json.RawMessage `json:"escalation"`
		Eventlog   json.RawMessage `json:"eventlog"`
	}{Routing: routing, Escalation: escalation, Eventlog: eventlog}
	return json.Marshal(out)
}

// MarshalJSON renders the whole config including its version, matching the
// bit-exact wire shape clients fetch over GET /config.
func (c RuntimeConfig) MarshalJSON() ([]byte, error) {
	body, err := c.MarshalBody()
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["version"] = json.RawMessage(strconv.FormatInt(c.Version, 10))
	return json.Marshal(fields)
}
