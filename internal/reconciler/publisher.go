package reconciler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/wordfall/leaderboard/internal/domain/ranking"
	"github.com/wordfall/leaderboard/internal/domain/session"
)

// Artifact file names under the publisher's data directory.
const (
	leaderboardFile = "leaderboard.json"
	feedbackFile    = "feedback.json"
	replaysDir      = "replays"
)

var replayHashRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ReplayMetadata summarizes a verified session for its replay artifact.
type ReplayMetadata struct {
	UserID     string  `json:"userId"`
	Initials   string  `json:"initials"`
	WPM        float64 `json:"wpm"`
	Accuracy   float64 `json:"accuracy"`
	Stage      int     `json:"stage"`
	DurationMs int64   `json:"durationMs"`
	Timestamp  int64   `json:"timestamp"`
}

// ReplayArtifact is the published per-session replay document. Created on
// first successful verification; only its vote counts change afterwards.
type ReplayArtifact struct {
	SessionHash string             `json:"sessionHash"`
	Version     int                `json:"version"`
	Metadata    ReplayMetadata     `json:"metadata"`
	Record      session.Record     `json:"record"`
	Votes       ranking.VoteCounts `json:"votes"`
}

// Publisher owns the output directory of the reconciliation pipeline.
// Every document is replaced atomically (write temp, then rename), so
// concurrent readers never observe a half-written artifact.
type Publisher struct {
	dataDir string
}

// NewPublisher creates a Publisher rooted at dataDir, creating the
// directory layout if needed.
func NewPublisher(dataDir string) (*Publisher, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, replaysDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Publisher{dataDir: dataDir}, nil
}

// LeaderboardPath returns the published leaderboard document path.
func (p *Publisher) LeaderboardPath() string {
	return filepath.Join(p.dataDir, leaderboardFile)
}

// FeedbackPath returns the published feedback document path.
func (p *Publisher) FeedbackPath() string {
	return filepath.Join(p.dataDir, feedbackFile)
}

// ReplayPath returns the artifact path for a session hash, or an error
// for anything that is not a canonical hash (keeps file paths closed
// under the hash alphabet).
func (p *Publisher) ReplayPath(sessionHash string) (string, error) {
	if !replayHashRe.MatchString(sessionHash) {
		return "", fmt.Errorf("%w: %q", ErrBadArtifactRef, sessionHash)
	}
	return filepath.Join(p.dataDir, replaysDir, sessionHash+".json"), nil
}

// LoadLeaderboard reads the current snapshot. A missing file yields an
// empty document, not an error: the first pass starts from nothing.
func (p *Publisher) LoadLeaderboard() (ranking.LeaderboardDoc, error) {
	doc := ranking.LeaderboardDoc{Version: ranking.DocVersion}
	if err := p.loadDoc(p.LeaderboardPath(), &doc); err != nil {
		return ranking.LeaderboardDoc{Version: ranking.DocVersion}, err
	}
	return doc, nil
}

// LoadFeedback reads the current feedback snapshot, empty when absent.
func (p *Publisher) LoadFeedback() (ranking.FeedbackDoc, error) {
	doc := ranking.FeedbackDoc{Version: ranking.DocVersion}
	if err := p.loadDoc(p.FeedbackPath(), &doc); err != nil {
		return ranking.FeedbackDoc{Version: ranking.DocVersion}, err
	}
	return doc, nil
}

// HasLeaderboard reports whether a leaderboard snapshot is published.
func (p *Publisher) HasLeaderboard() bool {
	_, err := os.Stat(p.LeaderboardPath())
	return err == nil
}

// HasFeedback reports whether a feedback snapshot is published.
func (p *Publisher) HasFeedback() bool {
	_, err := os.Stat(p.FeedbackPath())
	return err == nil
}

// HasReplay reports whether an artifact exists for the session hash.
func (p *Publisher) HasReplay(sessionHash string) bool {
	path, err := p.ReplayPath(sessionHash)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// LoadReplay reads an existing replay artifact.
func (p *Publisher) LoadReplay(sessionHash string) (ReplayArtifact, error) {
	path, err := p.ReplayPath(sessionHash)
	if err != nil {
		return ReplayArtifact{}, err
	}
	var artifact ReplayArtifact
	raw, err := os.ReadFile(path)
	if err != nil {
		return ReplayArtifact{}, fmt.Errorf("read replay artifact: %w", err)
	}
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return ReplayArtifact{}, fmt.Errorf("decode replay artifact: %w", err)
	}
	return artifact, nil
}

// PublishLeaderboard atomically replaces the leaderboard snapshot.
func (p *Publisher) PublishLeaderboard(doc ranking.LeaderboardDoc) error {
	return p.writeDoc(p.LeaderboardPath(), doc)
}

// PublishFeedback atomically replaces the feedback snapshot.
func (p *Publisher) PublishFeedback(doc ranking.FeedbackDoc) error {
	return p.writeDoc(p.FeedbackPath(), doc)
}

// PublishReplay atomically writes one replay artifact.
func (p *Publisher) PublishReplay(artifact ReplayArtifact) error {
	path, err := p.ReplayPath(artifact.SessionHash)
	if err != nil {
		return err
	}
	return p.writeDoc(path, artifact)
}

// DeleteReplay removes an artifact, used by moderation tooling.
func (p *Publisher) DeleteReplay(sessionHash string) error {
	path, err := p.ReplayPath(sessionHash)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete replay artifact: %w", err)
	}
	return nil
}

// loadDoc reads and decodes a JSON document into out. A missing file
// leaves out untouched and returns nil.
func (p *Publisher) loadDoc(path string, out any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeDoc writes v to path via a temp file in the same directory and an
// atomic rename.
func (p *Publisher) writeDoc(path string, v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("swap %s: %w", filepath.Base(path), err)
	}
	return nil
}
