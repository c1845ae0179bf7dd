package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

func TestBuildSnapshot_DedupesAndSortsIDs(t *testing.T) {
	items := []domain.Ticket{
		{ID: 3, Name: "three"},
		{ID: 1, Name: "one"},
		{ID: 3, Name: "three duplicate"},
		{ID: 0, Name: "invalid"},
	}
	snap := BuildSnapshot(items, "")
	assert.Equal(t, []int64{1, 3}, snap.IDs)
	assert.Len(t, snap.Tickets, 2)
}

func TestBuildSnapshot_HashIsOrderIndependent(t *testing.T) {
	a := BuildSnapshot([]domain.Ticket{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, "")
	b := BuildSnapshot([]domain.Ticket{{ID: 2, Name: "b"}, {ID: 1, Name: "a"}}, "")
	assert.Equal(t, a.Hash, b.Hash)
}

func TestBuildSnapshot_HashChangesWithIDSetNotNames(t *testing.T) {
	a := BuildSnapshot([]domain.Ticket{{ID: 1, Name: "original name"}}, "")
	renamed := BuildSnapshot([]domain.Ticket{{ID: 1, Name: "renamed"}}, "")
	assert.Equal(t, a.Hash, renamed.Hash, "renaming without changing the id set must not change the snapshot hash")

	added := BuildSnapshot([]domain.Ticket{{ID: 1, Name: "original name"}, {ID: 2, Name: "new"}}, "")
	assert.NotEqual(t, a.Hash, added.Hash)
}

func TestBuildSnapshot_URLUsesBaseAndID(t *testing.T) {
	snap := BuildSnapshot([]domain.Ticket{{ID: 42, Name: "t"}}, "https://sd.example.com")
	assert.Equal(t, "https://sd.example.com/task/view/42", snap.Tickets[0].URL)
}

func TestRenderOpenQueueText_EmptyQueue(t *testing.T) {
	text := RenderOpenQueueText(Snapshot{})
	assert.Contains(t, text, "empty")
}

func TestRenderOpenQueueText_ListsCurrentNames(t *testing.T) {
	snap := BuildSnapshot([]domain.Ticket{{ID: 1, Name: "renamed now"}}, "")
	text := RenderOpenQueueText(snap)
	assert.Contains(t, text, "renamed now")
	assert.Contains(t, text, "#1")
}
