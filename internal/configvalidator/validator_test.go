package configvalidator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFieldBindings = `
	"service_id_field": "ServiceId", "customer_id_field": "CustomerId",
	"creator_id_field": "CreatorId", "creator_company_id_field": "CreatorCompanyId"`

func TestValidate_AcceptsMinimalValidConfig(t *testing.T) {
	v := New()
	body := []byte(`{
		"routing": {"rules": [], "default_dest": {}, ` + validFieldBindings + `},
		"escalation": {"enabled": false, "after_s": 0, "rules": []}
	}`)
	assert.NoError(t, v.Validate(body))
}

func TestValidate_RejectsMalformedJSON(t *testing.T) {
	v := New()
	err := v.Validate([]byte(`not json`))
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidate_RejectsMissingRoutingRules(t *testing.T) {
	v := New()
	body := []byte(`{"routing": {"default_dest": {}, ` + validFieldBindings + `},
		"escalation": {"enabled": false, "after_s": 0, "rules": []}}`)
	err := v.Validate(body)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assertHasField(t, verr, "routing.rules")
}

func TestValidate_RejectsEmptyFieldBinding(t *testing.T) {
	v := New()
	body := []byte(`{"routing": {"rules": [], "default_dest": {},
		"service_id_field": "", "customer_id_field": "CustomerId",
		"creator_id_field": "CreatorId", "creator_company_id_field": "CreatorCompanyId"},
		"escalation": {"enabled": false, "after_s": 0, "rules": []}}`)
	err := v.Validate(body)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assertHasField(t, verr, "routing.service_id_field")
}

func TestValidate_RejectsEscalationEnabledWithoutAfterS(t *testing.T) {
	v := New()
	body := []byte(`{"routing": {"rules": [], "default_dest": {}, ` + validFieldBindings + `},
		"escalation": {"enabled": true, "after_s": 0, "rules": [{"dest":{"chat_id":1},"mention":"@x"}]}}`)
	err := v.Validate(body)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assertHasField(t, verr, "escalation.after_s")
}

func TestValidate_RejectsEscalationEnabledWithoutRules(t *testing.T) {
	v := New()
	body := []byte(`{"routing": {"rules": [], "default_dest": {}, ` + validFieldBindings + `},
		"escalation": {"enabled": true, "after_s": 300, "rules": []}}`)
	err := v.Validate(body)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assertHasField(t, verr, "escalation.rules")
}

func TestValidate_RejectsOversizedString(t *testing.T) {
	v := New()
	long := strings.Repeat("x", MaxStringBytes+1)
	body := []byte(`{"routing": {"rules": [], "default_dest": {},
		"service_id_field": "` + long + `", "customer_id_field": "CustomerId",
		"creator_id_field": "CreatorId", "creator_company_id_field": "CreatorCompanyId"},
		"escalation": {"enabled": false, "after_s": 0, "rules": []}}`)
	err := v.Validate(body)
	require.Error(t, err)
}

func TestValidate_RejectsInvalidRuleWithNoCriterion(t *testing.T) {
	v := New()
	body := []byte(`{"routing": {"rules": [{"dest": {"chat_id": 1}}], "default_dest": {}, ` + validFieldBindings + `},
		"escalation": {"enabled": false, "after_s": 0, "rules": []}}`)
	err := v.Validate(body)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assertHasField(t, verr, "routing.rules[0]")
}

func TestValidate_AcceptsValidEventlogFilters(t *testing.T) {
	v := New()
	body := []byte(`{
		"routing": {"rules": [], "default_dest": {}, ` + validFieldBindings + `},
		"escalation": {"enabled": false, "after_s": 0, "rules": []},
		"eventlog": {"filters": [
			{"field": "description", "pattern": "disk full", "match_kind": "contains", "dest": {"chat_id": 1}},
			{"field": "any", "pattern": "^oom", "match_kind": "regex", "dest": {"chat_id": 2}}
		]}
	}`)
	assert.NoError(t, v.Validate(body))
}

func TestValidate_RejectsEventlogFilterWithEmptyPattern(t *testing.T) {
	v := New()
	body := []byte(`{
		"routing": {"rules": [], "default_dest": {}, ` + validFieldBindings + `},
		"escalation": {"enabled": false, "after_s": 0, "rules": []},
		"eventlog": {"filters": [{"field": "description", "pattern": "", "dest": {"chat_id": 1}}]}
	}`)
	err := v.Validate(body)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assertHasField(t, verr, "eventlog.filters[0].pattern")
}

func TestValidate_RejectsEventlogFilterWithBadMatchKind(t *testing.T) {
	v := New()
	body := []byte(`{
		"routing": {"rules": [], "default_dest": {}, ` + validFieldBindings + `},
		"escalation": {"enabled": false, "after_s": 0, "rules": []},
		"eventlog": {"filters": [{"field": "description", "pattern": "x", "match_kind": "fuzzy", "dest": {"chat_id": 1}}]}
	}`)
	err := v.Validate(body)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assertHasField(t, verr, "eventlog.filters[0].match_kind")
}

func TestValidate_RejectsEventlogFilterWithInvalidRegex(t *testing.T) {
	v := New()
	body := []byte(`{
		"routing": {"rules": [], "default_dest": {}, ` + validFieldBindings + `},
		"escalation": {"enabled": false, "after_s": 0, "rules": []},
		"eventlog": {"filters": [{"field": "description", "pattern": "(unclosed", "match_kind": "regex", "dest": {"chat_id": 1}}]}
	}`)
	err := v.Validate(body)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assertHasField(t, verr, "eventlog.filters[0].pattern")
}

func TestValidate_RejectsEventlogFilterWithBadDestination(t *testing.T) {
	v := New()
	body := []byte(`{
		"routing": {"rules": [], "default_dest": {}, ` + validFieldBindings + `},
		"escalation": {"enabled": false, "after_s": 0, "rules": []},
		"eventlog": {"filters": [{"field": "description", "pattern": "x", "dest": {}}]}
	}`)
	err := v.Validate(body)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assertHasField(t, verr, "eventlog.filters[0].dest")
}

func assertHasField(t *testing.T, verr *ValidationError, field string) {
	t.Helper()
	for _, e := range verr.Errors {
		if e.Field == field {
			return
		}
	}
	t.Fatalf("expected a validation error for field %q, got %+v", field, verr.Errors)
}
