// Package configvalidator rejects malformed runtime configuration bodies
// before they ever reach configstore's transaction. It layers
// structural checks from go-playground/validator against hand-written
// semantic checks a generic struct validator cannot express (rule
// criterion presence, escalation threshold positivity).
package configvalidator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

// MaxStringBytes bounds any single string field in the configuration.
const MaxStringBytes = 4 * 1024

// FieldError is one rejected field, with a path and human-readable
// message.
type FieldError struct {
	Field   string
	Message string
	Code    string
}

// Error implements error for a single FieldError used standalone.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates every rejected field from one Validate call.
// Writes that fail validation never touch the database — configstore
// returns before opening a transaction whenever Validate returns an error.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configvalidator: invalid configuration"
	}
	return fmt.Sprintf("configvalidator: %d validation error(s), first: %s", len(e.Errors), e.Errors[0].Error())
}

// Validator wraps go-playground/validator for the structural checks and
// layers on the domain-specific ones a generic struct validator cannot
// express.
type Validator struct {
	v *validator.Validate
}

// New constructs a Validator.
func New() *Validator {
	return &Validator{v: validator.New()}
}

// Validate parses body as a configuration body (routing + escalation +
// eventlog, no version — matching configstore's storage row shape) and
// reports every violation found. A non-nil error is always a
// *ValidationError.
func (vd *Validator) Validate(body []byte) error {
	if len(body) > 64*MaxStringBytes {
		return &ValidationError{Errors: []FieldError{{
			Field: "$", Message: "configuration body exceeds maximum size", Code: "too_large",
		}}}
	}

	var raw struct {
		Routing struct {
			Rules                 []json.RawMessage `json:"rules"`
			DefaultDest           json.RawMessage   `json:"default_dest"`
			ServiceIDField        string            `json:"service_id_field"`
			CustomerIDField       string            `json:"customer_id_field"`
			CreatorIDField        string            `json:"creator_id_field"`
			CreatorCompanyIDField string            `json:"creator_company_id_field"`
		} `json:"routing"`
		Escalation struct {
			Enabled *bool             `json:"enabled"`
			AfterS  int64             `json:"after_s"`
			Rules   []json.RawMessage `json:"rules"`
		} `json:"escalation"`
		Eventlog struct {
			Filters []struct {
				Field     string          `json:"field"`
				Pattern   string          `json:"pattern"`
				MatchKind string          `json:"match_kind"`
				Dest      json.RawMessage `json:"dest"`
			} `json:"filters"`
		} `json:"eventlog"`
	}

	if err := json.Unmarshal(body, &raw); err != nil {
		return &ValidationError{Errors: []FieldError{{
			Field: "$", Message: fmt.Sprintf("not valid JSON: %v", err), Code: "malformed",
		}}}
	}

	var errs []FieldError

	if raw.Routing.Rules == nil {
		errs = append(errs, FieldError{Field: "routing.rules", Message: "must be present (possibly an empty list)", Code: "required"})
	}
	for i, rawRule := range raw.Routing.Rules {
		if _, ok := domain.ParseRule(rawRule); !ok {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("routing.rules[%d]", i),
				Message: "rule is not parseable or has no matching criterion",
				Code:    "invalid_rule",
			})
		}
	}
	if len(raw.Routing.DefaultDest) > 0 && string(raw.Routing.DefaultDest) != "{}" && string(raw.Routing.DefaultDest) != "null" {
		if _, err := domain.ParseDestination(raw.Routing.DefaultDest); err != nil {
			errs = append(errs, FieldError{Field: "routing.default_dest", Message: err.Error(), Code: "invalid_destination"})
		}
	}
	errs = append(errs, vd.checkFieldBindingNonEmpty("routing.service_id_field", raw.Routing.ServiceIDField)...)
	errs = append(errs, vd.checkFieldBindingNonEmpty("routing.customer_id_field", raw.Routing.CustomerIDField)...)
	errs = append(errs, vd.checkFieldBindingNonEmpty("routing.creator_id_field", raw.Routing.CreatorIDField)...)
	errs = append(errs, vd.checkFieldBindingNonEmpty("routing.creator_company_id_field", raw.Routing.CreatorCompanyIDField)...)

	if raw.Escalation.Enabled == nil {
		errs = append(errs, FieldError{Field: "escalation.enabled", Message: "must be present", Code: "required"})
	} else if *raw.Escalation.Enabled {
		if err := vd.v.Var(raw.Escalation.AfterS, "required,gt=0"); err != nil {
			errs = append(errs, FieldError{Field: "escalation.after_s", Message: "must be a positive integer when escalation is enabled", Code: "invalid_value"})
		}
		if len(raw.Escalation.Rules) == 0 {
			errs = append(errs, FieldError{Field: "escalation.rules", Message: "at least one rule must exist when escalation is enabled", Code: "required"})
		}
	}

	for i, f := range raw.Eventlog.Filters {
		path := fmt.Sprintf("eventlog.filters[%d]", i)
		if f.Pattern == "" {
			errs = append(errs, FieldError{Field: path + ".pattern", Message: "must be a non-empty string", Code: "required"})
		}
		kind := strings.ToLower(strings.TrimSpace(f.MatchKind))
		if kind != "" && kind != domain.EventlogMatchContains && kind != domain.EventlogMatchRegex {
			errs = append(errs, FieldError{Field: path + ".match_kind", Message: `must be "contains" or "regex"`, Code: "invalid_value"})
		}
		if kind == domain.EventlogMatchRegex && f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				errs = append(errs, FieldError{Field: path + ".pattern", Message: "not a valid regular expression", Code: "invalid_regex"})
			}
		}
		if _, err := domain.ParseDestination(f.Dest); err != nil {
			errs = append(errs, FieldError{Field: path + ".dest", Message: err.Error(), Code: "invalid_destination"})
		}
	}

	errs = append(errs, checkStringBounds("$", body)...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// checkFieldBindingNonEmpty enforces "field-name bindings are non-empty
// strings". A binding left unset (empty string) is treated as invalid
// rather than silently-disabled, since a rule referencing that criterion
// would then never match anything.
func (vd *Validator) checkFieldBindingNonEmpty(path, value string) []FieldError {
	if err := vd.v.Var(value, "required,max=4096"); err != nil {
		return []FieldError{{Field: path, Message: "field binding must be a non-empty, bounded string", Code: "required"}}
	}
	return nil
}

// checkStringBounds walks the decoded JSON value tree looking for any
// string leaf exceeding MaxStringBytes. This is a coarse, generic safety
// net in addition to the field-specific checks above.
func checkStringBounds(path string, body []byte) []FieldError {
	var generic interface{}
	if err := json.Unmarshal(body, &generic); err != nil {
		return nil
	}
	var errs []FieldError
	walkStrings(path, generic, &errs)
	return errs
}

func walkStrings(path string, v interface{}, errs *[]FieldError) {
	switch val := v.(type) {
	case string:
		if len(val) > MaxStringBytes {
			*errs = append(*errs, FieldError{Field: path, Message: "string field exceeds 4KiB bound", Code: "too_large"})
		}
	case map[string]interface{}:
		for k, child := range val {
			walkStrings(path+"."+k, child, errs)
		}
	case []interface{}:
		for i, child := range val {
			walkStrings(fmt.Sprintf("%s[%d]", path, i), child, errs)
		}
	}
}
