// Package ranking assembles the published leaderboard and feedback
// snapshots. Snapshots are immutable documents, superseded wholesale by
// the next reconciliation cycle and never patched in place.
package ranking

import (
	"sort"
)

// DocVersion is the schema version stamped on published documents.
const DocVersion = 1

// VoteCounts are the aggregated tallies for one target.
type VoteCounts struct {
	Up    int `json:"up"`
	Flags int `json:"flags"`
}

// ScoreEntry is one ranked row in the leaderboard snapshot.
type ScoreEntry struct {
	Rank        int        `json:"rank"`
	SessionHash string     `json:"sessionHash"`
	UserID      string     `json:"userId"`
	Initials    string     `json:"initials"`
	WPM         float64    `json:"wpm"`
	Accuracy    float64    `json:"accuracy"`
	Stage       int        `json:"stage"`
	Timestamp   int64      `json:"timestamp"`
	Votes       VoteCounts `json:"votes"`
	Hidden      bool       `json:"hidden,omitempty"`

	// HiddenOverride pins the hidden state regardless of flag counts.
	// Set by moderation tooling; nil means flag-derived visibility.
	HiddenOverride *bool `json:"hiddenOverride,omitempty"`

	ReplayURL string `json:"replayUrl"`
}

// LeaderboardDoc is the published leaderboard snapshot.
type LeaderboardDoc struct {
	Version    int          `json:"version"`
	Generated  int64        `json:"generated"` // unix ms
	TopDefault int          `json:"topDefault"`
	Scores     []ScoreEntry `json:"scores"`
}

// Hashes returns the session hashes present in the snapshot.
func (d LeaderboardDoc) Hashes() []string {
	hashes := make([]string, len(d.Scores))
	for i, s := range d.Scores {
		hashes[i] = s.SessionHash
	}
	return hashes
}

// BuildOptions bound and shape a leaderboard build.
type BuildOptions struct {
	MaxScores     int // retained entries
	TopDefault    int // shown by default
	FlagThreshold int // flags at or above hide an entry from default display
}

// BuildLeaderboard merges the previous snapshot with newly verified
// entries and produces the next snapshot. Existing entries win duplicate
// hashes (first occurrence is kept). Ordering is WPM descending with
// earlier submission timestamps breaking ties; ranks are dense from 1.
// Entries whose flag count crosses the threshold stay retained but are
// marked hidden; flagging excludes from display, it never deletes. A
// moderation HiddenOverride wins over the flag-derived state.
func BuildLeaderboard(previous, incoming []ScoreEntry, tallies map[string]VoteCounts, generated int64, opts BuildOptions) LeaderboardDoc {
	merged := make([]ScoreEntry, 0, len(previous)+len(incoming))
	seen := make(map[string]struct{}, len(previous)+len(incoming))
	for _, s := range append(append([]ScoreEntry(nil), previous...), incoming...) {
		if s.SessionHash == "" {
			continue
		}
		if _, dup := seen[s.SessionHash]; dup {
			continue
		}
		seen[s.SessionHash] = struct{}{}
		merged = append(merged, s)
	}

	for i := range merged {
		if counts, ok := tallies[merged[i].SessionHash]; ok {
			merged[i].Votes = counts
		}
		merged[i].Hidden = opts.FlagThreshold > 0 && merged[i].Votes.Flags >= opts.FlagThreshold
		if merged[i].HiddenOverride != nil {
			merged[i].Hidden = *merged[i].HiddenOverride
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].WPM != merged[j].WPM {
			return merged[i].WPM > merged[j].WPM
		}
		return merged[i].Timestamp < merged[j].Timestamp
	})

	if opts.MaxScores > 0 && len(merged) > opts.MaxScores {
		merged = merged[:opts.MaxScores]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}

	return LeaderboardDoc{
		Version:    DocVersion,
		Generated:  generated,
		TopDefault: opts.TopDefault,
		Scores:     merged,
	}
}

// Visible returns the entries shown by default: the top slice with
// hidden entries filtered out.
func (d LeaderboardDoc) Visible() []ScoreEntry {
	limit := d.TopDefault
	if limit <= 0 || limit > len(d.Scores) {
		limit = len(d.Scores)
	}
	visible := make([]ScoreEntry, 0, limit)
	for _, s := range d.Scores {
		if len(visible) == limit {
			break
		}
		if !s.Hidden {
			visible = append(visible, s)
		}
	}
	return visible
}
