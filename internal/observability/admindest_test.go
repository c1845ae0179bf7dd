package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestResolveAdminDestination_PrefersDedicatedAdminAlert(t *testing.T) {
	lookup := envMap(map[string]string{
		"ADMIN_ALERT_CHAT_ID": "100",
		"ALERT_CHAT_ID":       "200",
	})

	dest := ResolveAdminDestination(lookup)

	require.NotNil(t, dest)
	assert.Equal(t, int64(100), dest.ChatID)
}

func TestResolveAdminDestination_FallsBackToGeneralAlert(t *testing.T) {
	lookup := envMap(map[string]string{
		"ALERT_CHAT_ID":   "200",
		"ALERT_THREAD_ID": "9",
	})

	dest := ResolveAdminDestination(lookup)

	require.NotNil(t, dest)
	assert.Equal(t, int64(200), dest.ChatID)
	assert.Equal(t, int64(9), dest.ThreadID)
}

func TestResolveAdminDestination_NilWhenNeitherConfigured(t *testing.T) {
	dest := ResolveAdminDestination(envMap(nil))
	assert.Nil(t, dest)
}

func TestResolveAdminDestination_IgnoresMalformedChatID(t *testing.T) {
	lookup := envMap(map[string]string{"ADMIN_ALERT_CHAT_ID": "not-a-number"})
	dest := ResolveAdminDestination(lookup)
	assert.Nil(t, dest)
}
