package ranking

import (
	"sort"
)

// FeedbackEntry is one aggregated feedback item in the feedback snapshot.
type FeedbackEntry struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Description string            `json:"description"`
	UserID      string            `json:"userId"`
	Context     map[string]string `json:"context,omitempty"`
	Timestamp   int64             `json:"timestamp"`
	Votes       int               `json:"votes"`
	Status      string            `json:"status"`
}

// FeedbackDoc is the published feedback snapshot, independent of the
// leaderboard snapshot.
type FeedbackDoc struct {
	Version   int             `json:"version"`
	Generated int64           `json:"generated"` // unix ms
	Items     []FeedbackEntry `json:"items"`
}

// BuildFeedback merges previous items with newly drained ones, applies
// vote counts, and orders by votes descending then newest first.
// Duplicated IDs keep their first occurrence.
func BuildFeedback(previous, incoming []FeedbackEntry, votes map[string]int, generated int64) FeedbackDoc {
	merged := make([]FeedbackEntry, 0, len(previous)+len(incoming))
	seen := make(map[string]struct{}, len(previous)+len(incoming))
	for _, item := range append(append([]FeedbackEntry(nil), previous...), incoming...) {
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		if item.Status == "" {
			item.Status = "open"
		}
		merged = append(merged, item)
	}

	for i := range merged {
		if n, ok := votes[merged[i].ID]; ok {
			merged[i].Votes = n
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Votes != merged[j].Votes {
			return merged[i].Votes > merged[j].Votes
		}
		return merged[i].Timestamp > merged[j].Timestamp
	})

	return FeedbackDoc{
		Version:   DocVersion,
		Generated: generated,
		Items:     merged,
	}
}
