package poller

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

// NamedTicket is the minimal per-ticket shape rendered into notification
// text: id, display name, and a deep link built from the base URL.
type NamedTicket struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Creator string `json:"creator,omitempty"`
	URL     string `json:"url"`
}

// Snapshot is the id-sorted, deduplicated view of an open-queue fetch used
// both to build notification text and to detect composition changes.
type Snapshot struct {
	Hash    string
	IDs     []int64
	Tickets []NamedTicket
}

// BuildSnapshot normalizes a fetch result into a stable snapshot: invalid
// (non-positive) ids are dropped, ids are deduplicated and sorted
// ascending, and a sha256 over the sorted id list gives a composition
// fingerprint independent of fetch order.
func BuildSnapshot(items []domain.Ticket, baseURL string) Snapshot {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	tickets := make(map[int64]domain.Ticket, len(items))

	for _, item := range items {
		if item.ID <= 0 {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		ids = append(ids, item.ID)
		tickets[item.ID] = item
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	named := make([]NamedTicket, 0, len(ids))
	for _, id := range ids {
		t := tickets[id]
		named = append(named, NamedTicket{
			ID:      id,
			Name:    t.Name,
			Creator: creatorName(t),
			URL:     ticketURL(baseURL, id),
		})
	}

	return Snapshot{
		Hash:    hashIDs(ids),
		IDs:     ids,
		Tickets: named,
	}
}

func creatorName(t domain.Ticket) string {
	if t.Fields == nil {
		return ""
	}
	if v, ok := t.Fields["Creator"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func ticketURL(baseURL string, id int64) string {
	if baseURL == "" {
		return ""
	}
	return baseURL + "/task/view/" + strconv.FormatInt(id, 10)
}

// RenderOpenQueueText builds the full, id-sorted, currently-open ticket
// list sent on a composition change. Names shown are the current names at
// send time, not historical ones, per the poller's coarse diff semantics.
func RenderOpenQueueText(snap Snapshot) string {
	if len(snap.Tickets) == 0 {
		return "Open queue is empty."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Open tickets (%d):\n", len(snap.Tickets))
	for _, t := range snap.Tickets {
		if t.URL != "" {
			fmt.Fprintf(&b, "#%d %s - %s\n", t.ID, t.Name, t.URL)
		} else {
			fmt.Fprintf(&b, "#%d %s\n", t.ID, t.Name)
		}
	}
	return b.String()
}

// hashIDs mirrors the reference implementation's snapshot fingerprint: a
// compact, deterministic JSON encoding of the sorted id list, hashed with
// sha256. Any reordering of the same id set produces the same hash.
func hashIDs(sortedIDs []int64) string {
	buf, _ := json.Marshal(sortedIDs)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
