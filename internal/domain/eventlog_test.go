package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventlogRouteSet_ParsesFiltersAndDefaultsEnabled(t *testing.T) {
	raw := json.RawMessage(`{"filters":[
		{"id":1,"field":"description","pattern":"disk full","dest":{"chat_id":10}},
		{"id":2,"field":"type","pattern":"crit.*","match_kind":"regex","dest":{"chat_id":11},"enabled":false}
	]}`)

	set := ParseEventlogRouteSet(raw)
	require.Len(t, set.Filters, 2)

	assert.Equal(t, "description", set.Filters[0].Field)
	assert.Equal(t, "disk full", set.Filters[0].Pattern)
	assert.True(t, set.Filters[0].Enabled)
	assert.Equal(t, EventlogMatchContains, set.Filters[0].NormalizedMatchKind())

	assert.False(t, set.Filters[1].Enabled)
	assert.Equal(t, EventlogMatchRegex, set.Filters[1].NormalizedMatchKind())
}

func TestParseEventlogRouteSet_DropsFiltersWithNoPatternOrBadDest(t *testing.T) {
	raw := json.RawMessage(`{"filters":[
		{"id":1,"field":"description","pattern":"","dest":{"chat_id":10}},
		{"id":2,"field":"description","pattern":"x","dest":{"chat_id":"not-a-number"}}
	]}`)

	set := ParseEventlogRouteSet(raw)
	assert.Empty(t, set.Filters)
}

func TestEventlogFilter_NormalizedMatchKind_DefaultsToContains(t *testing.T) {
	f := EventlogFilter{MatchKind: ""}
	assert.Equal(t, EventlogMatchContains, f.NormalizedMatchKind())

	f.MatchKind = "REGEX"
	assert.Equal(t, EventlogMatchRegex, f.NormalizedMatchKind())

	f.MatchKind = "nonsense"
	assert.Equal(t, EventlogMatchContains, f.NormalizedMatchKind())
}

func TestEventlogRouteSet_MarshalJSON_RoundTrips(t *testing.T) {
	set := EventlogRouteSet{Filters: []EventlogFilter{
		{ID: 1, Field: "description", Pattern: "disk full", Dest: Destination{ChatID: 10}, Enabled: true},
	}}
	body, err := set.MarshalJSON()
	require.NoError(t, err)

	roundTripped := ParseEventlogRouteSet(body)
	require.Len(t, roundTripped.Filters, 1)
	assert.Equal(t, set.Filters[0].Pattern, roundTripped.Filters[0].Pattern)
	assert.Equal(t, EventlogMatchContains, roundTripped.Filters[0].NormalizedMatchKind())
}
