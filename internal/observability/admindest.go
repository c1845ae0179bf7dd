package observability

import (
	"strconv"
	"strings"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

// LookupEnv matches os.LookupEnv's signature; a plain function value so
// tests can substitute a fixed map instead of mutating process env.
type LookupEnv func(key string) (string, bool)

// ResolveAdminDestination implements the admin-destination priority order:
// a dedicated ADMIN_ALERT_CHAT_ID/ADMIN_ALERT_THREAD_ID pair, falling
// back to the general ALERT_CHAT_ID/ALERT_THREAD_ID pair used for routine
// notifications, and nil if neither is configured. Thread ID is optional
// in both cases.
func ResolveAdminDestination(lookup LookupEnv) *domain.Destination {
	if dest, ok := destFromEnvPrefix(lookup, "ADMIN_ALERT"); ok {
		return &dest
	}
	if dest, ok := destFromEnvPrefix(lookup, "ALERT"); ok {
		return &dest
	}
	return nil
}

func destFromEnvPrefix(lookup LookupEnv, prefix string) (domain.Destination, bool) {
	chatIDRaw, ok := lookup(prefix + "_CHAT_ID")
	if !ok || strings.TrimSpace(chatIDRaw) == "" {
		return domain.Destination{}, false
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(chatIDRaw), 10, 64)
	if err != nil {
		return domain.Destination{}, false
	}

	dest := domain.Destination{ChatID: chatID}
	if threadRaw, ok := lookup(prefix + "_THREAD_ID"); ok && strings.TrimSpace(threadRaw) != "" {
		if threadID, err := strconv.ParseInt(strings.TrimSpace(threadRaw), 10, 64); err == nil {
			dest.ThreadID = threadID
		}
	}
	return dest, true
}
