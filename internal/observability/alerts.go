package observability

import (
	"fmt"
	"strings"
	"time"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// buildNoDestinationAlertText mirrors build_no_destination_alert_text:
// enough to diagnose a misconfigured routing table without leaking the
// full ticket payload into the admin chat.
func buildNoDestinationAlertText(ticket *domain.Ticket, rulesCount int, defaultDestPresent bool,
	serviceIDField, customerIDField string, configVersion int64) string {

	lines := []string{
		"Ticket without destination",
		"",
		"Ticket:",
	}
	if ticket != nil {
		lines = append(lines, fmt.Sprintf("- id: %d", ticket.ID))
		lines = append(lines, fmt.Sprintf("- name: %s", ticket.Name))
		lines = append(lines, fmt.Sprintf("- %s: %s", serviceIDField, fieldOrDash(ticket, serviceIDField)))
		lines = append(lines, fmt.Sprintf("- %s: %s", customerIDField, fieldOrDash(ticket, customerIDField)))
	} else {
		lines = append(lines, "- (no ticket in batch)")
	}

	lines = append(lines,
		"",
		"Routing:",
		fmt.Sprintf("- rules_count: %d", rulesCount),
		fmt.Sprintf("- default_dest_present: %s", yesNo(defaultDestPresent)),
		fmt.Sprintf("- config_version: %d", configVersion),
		"",
		"Action: check the routing configuration (rules/default_dest).",
	)
	return strings.Join(lines, "\n")
}

func fieldOrDash(t *domain.Ticket, field string) string {
	if field == "" {
		return "-"
	}
	if v, ok := t.Fields[field]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return "-"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// buildWebDegradedAlertText mirrors build_web_degraded_alert_text.
func buildWebDegradedAlertText(healthOK, readyOK bool, healthStatus, readyStatus string, attempts int) string {
	lines := []string{
		"Web service degraded",
		"",
		fmt.Sprintf("- health: ok=%s status=%s", yesNo(healthOK), healthStatus),
		fmt.Sprintf("- ready: ok=%s status=%s", yesNo(readyOK), readyStatus),
		fmt.Sprintf("- attempts: %d", attempts),
	}
	return strings.Join(lines, "\n")
}

// buildRedisDegradedAlertText mirrors build_redis_degraded_alert_text.
func buildRedisDegradedAlertText(errText string, lastOK time.Time, hadOK bool) string {
	lines := []string{
		"State store degraded",
		"",
		fmt.Sprintf("- error: %s", errText),
	}
	if hadOK {
		lines = append(lines, fmt.Sprintf("- last_ok_at: %s", formatTimestamp(lastOK)))
	} else {
		lines = append(lines, "- last_ok_at: never")
	}
	return strings.Join(lines, "\n")
}

// buildRollbacksAlertText mirrors build_rollbacks_alert_text.
func buildRollbacksAlertText(count int, window time.Duration, lastAt time.Time) string {
	lines := []string{
		"Frequent configuration rollbacks",
		"",
		fmt.Sprintf("- count: %d", count),
		fmt.Sprintf("- window: %s", window),
		fmt.Sprintf("- last_rollback_at: %s", formatTimestamp(lastAt)),
	}
	return strings.Join(lines, "\n")
}
