package syncpanel

import (
	"fmt"
	"strings"

	"github.com/kastheco/opsdash/internal/planner"
)

// InSync is the digest of a sync that changed nothing.
const InSync = "Everything is in sync"

// Digest summarizes a manual sync. Only non-zero counters are mentioned.
func Digest(r planner.SyncResult) string {
	var parts []string
	add := func(n int, what string) {
		if n != 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(r.Created, "tasks created")
	add(r.Updated, "tasks updated")
	add(r.InboundUpdated, "assignments updated from Planner")
	add(r.InboundDeleted, "assignments removed (deleted in Planner)")
	if len(parts) == 0 {
		return InSync
	}
	return strings.Join(parts, ", ")
}
