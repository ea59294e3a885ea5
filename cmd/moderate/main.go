// Command moderate edits the published documents in place: listing,
// hiding, unhiding and deleting leaderboard entries, and closing
// feedback items. Edits go through the same atomic publisher the
// reconciler uses, so a running service never sees a partial document.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wordfall/leaderboard/internal/domain/ranking"
	"github.com/wordfall/leaderboard/internal/reconciler"
)

func main() {
	var (
		dataDir   = flag.String("data", "data", "Data directory holding the published documents")
		list      = flag.Bool("list", false, "List leaderboard entries with vote counts")
		threshold = flag.Int("threshold", 0, "With -list, only show entries with at least this many flags")
		hide      = flag.String("hide", "", "Hide the entry with this session hash")
		unhide    = flag.String("unhide", "", "Unhide the entry with this session hash")
		del       = flag.String("delete", "", "Delete the entry and replay artifact for this session hash")
		closeFb   = flag.String("close-feedback", "", "Mark this feedback item closed")
	)
	flag.Parse()

	pub, err := reconciler.NewPublisher(*dataDir)
	if err != nil {
		fail("open data dir: %v", err)
	}

	switch {
	case *list:
		listEntries(pub, *threshold)
	case *hide != "":
		setHidden(pub, *hide, true)
	case *unhide != "":
		setHidden(pub, *unhide, false)
	case *del != "":
		deleteEntry(pub, *del)
	case *closeFb != "":
		closeFeedback(pub, *closeFb)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func listEntries(pub *reconciler.Publisher, minFlags int) {
	doc, err := pub.LoadLeaderboard()
	if err != nil {
		fail("load leaderboard: %v", err)
	}
	shown := 0
	for _, s := range doc.Scores {
		if s.Votes.Flags < minFlags {
			continue
		}
		shown++
		state := ""
		if s.Hidden {
			state = " [hidden]"
		}
		fmt.Printf("%3d  %s  %s  wpm=%.0f acc=%.2f stage=%d up=%d flags=%d%s\n",
			s.Rank, s.SessionHash, s.Initials, s.WPM, s.Accuracy, s.Stage,
			s.Votes.Up, s.Votes.Flags, state)
	}
	if shown == 0 {
		fmt.Println("no matching entries")
	}
}

// setHidden pins the hidden state for one entry. The override is stored
// on the entry so reconciliation rebuilds keep it instead of recomputing
// visibility from flag counts.
func setHidden(pub *reconciler.Publisher, hash string, hidden bool) {
	doc, err := pub.LoadLeaderboard()
	if err != nil {
		fail("load leaderboard: %v", err)
	}
	found := false
	for i := range doc.Scores {
		if doc.Scores[i].SessionHash == hash {
			override := hidden
			doc.Scores[i].Hidden = hidden
			doc.Scores[i].HiddenOverride = &override
			found = true
			break
		}
	}
	if !found {
		fail("no entry with hash %s", hash)
	}
	doc.Generated = time.Now().UnixMilli()
	if err := pub.PublishLeaderboard(doc); err != nil {
		fail("publish leaderboard: %v", err)
	}
	fmt.Printf("entry %s hidden=%v\n", hash, hidden)
}

// deleteEntry removes an entry outright, re-ranks the remainder and
// deletes its replay artifact.
func deleteEntry(pub *reconciler.Publisher, hash string) {
	doc, err := pub.LoadLeaderboard()
	if err != nil {
		fail("load leaderboard: %v", err)
	}
	kept := make([]ranking.ScoreEntry, 0, len(doc.Scores))
	found := false
	for _, s := range doc.Scores {
		if s.SessionHash == hash {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		fail("no entry with hash %s", hash)
	}
	for i := range kept {
		kept[i].Rank = i + 1
	}
	doc.Scores = kept
	doc.Generated = time.Now().UnixMilli()

	if err := pub.PublishLeaderboard(doc); err != nil {
		fail("publish leaderboard: %v", err)
	}
	if err := pub.DeleteReplay(hash); err != nil {
		fail("delete replay artifact: %v", err)
	}
	fmt.Printf("deleted entry %s and its replay artifact\n", hash)
}

func closeFeedback(pub *reconciler.Publisher, id string) {
	doc, err := pub.LoadFeedback()
	if err != nil {
		fail("load feedback: %v", err)
	}
	found := false
	for i := range doc.Items {
		if doc.Items[i].ID == id {
			doc.Items[i].Status = "closed"
			found = true
			break
		}
	}
	if !found {
		fail("no feedback item with id %s", id)
	}
	doc.Generated = time.Now().UnixMilli()
	if err := pub.PublishFeedback(doc); err != nil {
		fail("publish feedback: %v", err)
	}
	fmt.Printf("feedback %s closed\n", id)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
