package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/sd-bridge/internal/statestore"
)

func envLookup(present map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := present[key]
		return v, ok
	}
}

func TestReadinessChecker_StrictModeFailsOnMissingRequiredEnv(t *testing.T) {
	checker := NewReadinessChecker(true, envLookup(nil), nil, nil)

	ok, reason := checker.Ready(context.Background())

	assert.False(t, ok)
	assert.Contains(t, reason, "SERVICEDESK_BASE_URL")
}

func TestReadinessChecker_NonStrictModeToleratesMissingEnv(t *testing.T) {
	checker := NewReadinessChecker(false, envLookup(nil), nil, nil)

	ok, _ := checker.Ready(context.Background())

	assert.True(t, ok)
}

func TestReadinessChecker_ReadyWhenAllRequiredEnvPresentAndNoDependenciesWired(t *testing.T) {
	present := map[string]string{
		"SERVICEDESK_BASE_URL":  "https://sd.internal",
		"SERVICEDESK_API_TOKEN": "tok",
		"DATABASE_URL":          "postgres://localhost/sdbridge",
	}
	checker := NewReadinessChecker(true, envLookup(present), nil, nil)

	ok, reason := checker.Ready(context.Background())

	require.True(t, ok)
	assert.Empty(t, reason)
}

func TestReadinessChecker_PingsWiredStateStore(t *testing.T) {
	present := map[string]string{
		"SERVICEDESK_BASE_URL":  "https://sd.internal",
		"SERVICEDESK_API_TOKEN": "tok",
		"DATABASE_URL":          "postgres://localhost/sdbridge",
	}
	store := statestore.NewMemoryStore()
	checker := NewReadinessChecker(true, envLookup(present), nil, store)

	ok, _ := checker.Ready(context.Background())

	assert.True(t, ok)
}
