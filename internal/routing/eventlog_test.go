package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

func TestMatchEventlogDestinations_ContainsMatch(t *testing.T) {
	entry := domain.EventlogEntry{ID: 1, Fields: map[string]string{"description": "disk full on host-9"}}
	filters := []domain.EventlogFilter{
		{ID: 1, Field: "description", Pattern: "disk full", Dest: domain.Destination{ChatID: 10}, Enabled: true},
	}

	dests := MatchEventlogDestinations(entry, filters)
	require.Len(t, dests, 1)
	assert.Equal(t, domain.Destination{ChatID: 10}, dests[0])
}

func TestMatchEventlogDestinations_RegexMatch(t *testing.T) {
	entry := domain.EventlogEntry{Fields: map[string]string{"type": "CRITICAL"}}
	filters := []domain.EventlogFilter{
		{ID: 1, Field: "type", Pattern: "(?i)crit.*", MatchKind: domain.EventlogMatchRegex, Dest: domain.Destination{ChatID: 20}, Enabled: true},
	}

	dests := MatchEventlogDestinations(entry, filters)
	require.Len(t, dests, 1)
	assert.Equal(t, domain.Destination{ChatID: 20}, dests[0])
}

func TestMatchEventlogDestinations_InvalidRegexNeverMatches(t *testing.T) {
	entry := domain.EventlogEntry{Fields: map[string]string{"type": "anything"}}
	filters := []domain.EventlogFilter{
		{ID: 1, Field: "type", Pattern: "(unterminated", MatchKind: domain.EventlogMatchRegex, Dest: domain.Destination{ChatID: 30}, Enabled: true},
	}

	assert.Empty(t, MatchEventlogDestinations(entry, filters))
}

func TestMatchEventlogDestinations_DisabledFilterNeverMatches(t *testing.T) {
	entry := domain.EventlogEntry{Fields: map[string]string{"description": "disk full"}}
	filters := []domain.EventlogFilter{
		{ID: 1, Field: "description", Pattern: "disk full", Dest: domain.Destination{ChatID: 10}, Enabled: false},
	}

	assert.Empty(t, MatchEventlogDestinations(entry, filters))
}

func TestMatchEventlogDestinations_DeduplicatesDestinations(t *testing.T) {
	entry := domain.EventlogEntry{Fields: map[string]string{"description": "disk full", "type": "critical"}}
	filters := []domain.EventlogFilter{
		{ID: 1, Field: "description", Pattern: "disk", Dest: domain.Destination{ChatID: 10}, Enabled: true},
		{ID: 2, Field: "type", Pattern: "crit", Dest: domain.Destination{ChatID: 10}, Enabled: true},
	}

	assert.Len(t, MatchEventlogDestinations(entry, filters), 1)
}

func TestMatchEventlogDestinations_AnyFieldSearchesAllValues(t *testing.T) {
	entry := domain.EventlogEntry{Fields: map[string]string{"name": "host-9", "description": "disk full"}}
	filters := []domain.EventlogFilter{
		{ID: 1, Field: "any", Pattern: "host-9", Dest: domain.Destination{ChatID: 40}, Enabled: true},
	}

	assert.Len(t, MatchEventlogDestinations(entry, filters), 1)
}

func TestExplainEventlogMatches_ReportsPerFilterOutcome(t *testing.T) {
	entry := domain.EventlogEntry{Fields: map[string]string{"description": "disk full"}}
	filters := []domain.EventlogFilter{
		{ID: 1, Field: "description", Pattern: "disk full", Dest: domain.Destination{ChatID: 10}, Enabled: true},
		{ID: 2, Field: "description", Pattern: "nope", Dest: domain.Destination{ChatID: 11}, Enabled: true},
		{ID: 3, Field: "description", Pattern: "disk full", Dest: domain.Destination{ChatID: 12}, Enabled: false},
	}

	explanations := ExplainEventlogMatches(entry, filters)
	require.Len(t, explanations, 3)
	assert.True(t, explanations[0].Matched)
	assert.Equal(t, "contains:disk full", explanations[0].Reason)
	assert.False(t, explanations[1].Matched)
	assert.False(t, explanations[2].Matched)
}
