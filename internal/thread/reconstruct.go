// Package thread rebuilds conversation structure from a flat message list.
package thread

import (
	"sort"
	"time"

	"agora/api/internal/store"
)

// Placeholder identity used for synthesized roots standing in for deleted
// parents.
const (
	PlaceholderAuthor  = "Deleted message"
	PlaceholderContent = "Message has been deleted."
)

// Root is a top-level message together with its direct replies.
type Root struct {
	Message     store.Message
	Placeholder bool
	Replies     []store.Message
}

// View is the reconstructed conversation: the primary thread plus the
// remaining threads in chronological order.
type View struct {
	Primary *Root
	Others  []Root
}

// Reconstruct builds the two-level thread view from a flat message slice.
// Messages are ordered by creation time (insertion order breaks ties),
// replies attach to their parent, and replies whose parent is absent from
// the input are grouped under a synthesized placeholder root timestamped
// one second before the earliest such reply. The earliest root becomes the
// primary thread. The input slice is not modified.
func Reconstruct(messages []store.Message) View {
	ordered := make([]store.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	present := make(map[string]struct{}, len(ordered))
	for _, m := range ordered {
		present[m.ID] = struct{}{}
	}

	childrenByParent := make(map[string][]store.Message)
	roots := make([]Root, 0, len(ordered))
	missingOrder := make([]string, 0)

	for _, m := range ordered {
		if m.ParentID == nil {
			roots = append(roots, Root{Message: m})
			continue
		}
		parentID := *m.ParentID
		if _, ok := present[parentID]; !ok {
			if _, seen := childrenByParent[parentID]; !seen {
				missingOrder = append(missingOrder, parentID)
			}
		}
		childrenByParent[parentID] = append(childrenByParent[parentID], m)
	}

	for _, parentID := range missingOrder {
		orphans := childrenByParent[parentID]
		earliest := orphans[0].CreatedAt
		for _, child := range orphans[1:] {
			if child.CreatedAt.Before(earliest) {
				earliest = child.CreatedAt
			}
		}
		roots = append(roots, Root{
			Message: store.Message{
				ID:         "missing_" + parentID,
				ChannelID:  orphans[0].ChannelID,
				AuthorName: PlaceholderAuthor,
				Content:    PlaceholderContent,
				IsOrphaned: true,
				CreatedAt:  earliest.Add(-1 * time.Second),
			},
			Placeholder: true,
		})
	}

	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].Message.CreatedAt.Before(roots[j].Message.CreatedAt)
	})

	for i := range roots {
		parentKey := roots[i].Message.ID
		if roots[i].Placeholder {
			parentKey = parentKey[len("missing_"):]
		}
		roots[i].Replies = childrenByParent[parentKey]
	}

	if len(roots) == 0 {
		return View{Others: []Root{}}
	}
	return View{Primary: &roots[0], Others: roots[1:]}
}
