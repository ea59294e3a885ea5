// Package session reconstructs recorded gameplay sessions. Given a seed,
// a corpus version and a keystroke log, Replay regenerates the exact word
// spawn sequence, per-keystroke outcomes and derived stats, and computes
// the content hash used to detect tampering. The same reconstruction
// drives visual playback; playback performs no validation of its own.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"
)

// Outcome of a single keystroke against the current word progress.
type Outcome string

// Keystroke outcomes.
const (
	OutcomeHit  Outcome = "hit"
	OutcomeMiss Outcome = "miss"
)

// Keystroke is one recorded input event. TimeMs is relative to session
// start and must be strictly increasing across the log.
type Keystroke struct {
	TimeMs    int64   `json:"timeMs"`
	Key       string  `json:"key"`
	WordIndex int     `json:"wordIndex"`
	Outcome   Outcome `json:"outcome"`
}

// Stats are the derived final statistics of a session.
type Stats struct {
	WPM            float64 `json:"wpm"`
	Accuracy       float64 `json:"accuracy"`
	WordsCompleted int     `json:"wordsCompleted"`
	DurationMs     int64   `json:"durationMs"`
}

// Record is a complete recorded session as supplied by the gameplay layer.
type Record struct {
	RNGSeed       uint64      `json:"rngSeed"`
	CorpusVersion string      `json:"corpusVersion"`
	Stage         int         `json:"stage"`
	Keystrokes    []Keystroke `json:"keystrokes"`
	Stats         Stats       `json:"stats"`
}

// EventType tags entries in a playback trace.
type EventType string

// Trace event types.
const (
	EventSpawn    EventType = "spawn"
	EventKey      EventType = "key"
	EventComplete EventType = "complete"
)

// TraceEvent is one entry in the reconstructed timeline.
type TraceEvent struct {
	TimeMs    int64     `json:"timeMs"`
	Type      EventType `json:"type"`
	WordIndex int       `json:"wordIndex"`
	Word      string    `json:"word,omitempty"`
	Key       string    `json:"key,omitempty"`
	Outcome   Outcome   `json:"outcome,omitempty"`
}

// Trace is the full reconstructed gameplay timeline, suitable for direct
// projection onto a renderer.
type Trace struct {
	Words  []string     `json:"words"`
	Events []TraceEvent `json:"events"`
	Stats  Stats        `json:"stats"`
}

// Result bundles the reconstruction outputs.
type Result struct {
	Trace Trace
	Stats Stats
	Hash  string
}

// Spawn cadence: words fall faster on later stages, floored so high
// stages stay playable.
const (
	baseSpawnIntervalMs = 2000
	spawnIntervalStepMs = 150
	minSpawnIntervalMs  = 600
	charsPerWord        = 5 // standard WPM definition
)

// spawnInterval returns the per-stage spawn cadence in milliseconds.
func spawnInterval(stage int) int64 {
	if stage < 1 {
		stage = 1
	}
	interval := int64(baseSpawnIntervalMs - (stage-1)*spawnIntervalStepMs)
	if interval < minSpawnIntervalMs {
		return minSpawnIntervalMs
	}
	return interval
}

// Replay deterministically reconstructs the session trace. Keystroke
// outcomes and stats are recomputed from scratch; the recorded values in
// rec play no part, so a tampered log cannot vouch for itself.
func Replay(rec Record) (Result, error) {
	words, err := Words(rec.CorpusVersion)
	if err != nil {
		return Result{}, err
	}
	if len(rec.Keystrokes) == 0 {
		return Result{}, ErrMalformedRecord
	}

	// The spawn schedule covers every word the log references.
	spawnCount := 0
	for _, k := range rec.Keystrokes {
		if k.WordIndex < 0 {
			return Result{}, ErrMalformedRecord
		}
		if k.WordIndex+1 > spawnCount {
			spawnCount = k.WordIndex + 1
		}
	}

	rng := NewRNG(rec.RNGSeed)
	interval := spawnInterval(rec.Stage)
	spawned := make([]string, spawnCount)
	events := make([]TraceEvent, 0, spawnCount+2*len(rec.Keystrokes))
	for i := range spawned {
		spawned[i] = words[rng.Intn(len(words))]
		events = append(events, TraceEvent{
			TimeMs:    int64(i) * interval,
			Type:      EventSpawn,
			WordIndex: i,
			Word:      spawned[i],
		})
	}

	progress := make([]int, spawnCount)
	replayed := make([]Keystroke, len(rec.Keystrokes))
	var prevTime int64 = -1
	hits := 0
	completed := 0
	for i, k := range rec.Keystrokes {
		if k.TimeMs <= prevTime || k.Key == "" {
			return Result{}, ErrMalformedRecord
		}
		prevTime = k.TimeMs

		word := spawned[k.WordIndex]
		outcome := OutcomeMiss
		if p := progress[k.WordIndex]; p < len(word) && strings.HasPrefix(word[p:], k.Key) {
			outcome = OutcomeHit
			progress[k.WordIndex] = p + len(k.Key)
			hits++
		}
		replayed[i] = Keystroke{TimeMs: k.TimeMs, Key: k.Key, WordIndex: k.WordIndex, Outcome: outcome}
		events = append(events, TraceEvent{
			TimeMs:    k.TimeMs,
			Type:      EventKey,
			WordIndex: k.WordIndex,
			Key:       k.Key,
			Outcome:   outcome,
		})
		if outcome == OutcomeHit && progress[k.WordIndex] == len(word) {
			completed++
			events = append(events, TraceEvent{
				TimeMs:    k.TimeMs,
				Type:      EventComplete,
				WordIndex: k.WordIndex,
				Word:      word,
			})
		}
	}

	stats := deriveStats(replayed, hits, completed)
	trace := Trace{Words: spawned, Events: events, Stats: stats}
	hash := contentHash(rec.RNGSeed, rec.CorpusVersion, rec.Stage, replayed, stats)
	return Result{Trace: trace, Stats: stats, Hash: hash}, nil
}

// deriveStats computes the final statistics from the replayed log. The
// arithmetic is fixed: rounding here is part of the hash contract.
func deriveStats(keystrokes []Keystroke, hits, completed int) Stats {
	duration := keystrokes[len(keystrokes)-1].TimeMs
	accuracy := 0.0
	if len(keystrokes) > 0 {
		accuracy = math.Round(float64(hits)*100/float64(len(keystrokes))*100) / 100
	}
	wpm := 0.0
	if duration > 0 {
		minutes := float64(duration) / 60000
		wpm = math.Round(float64(hits) / charsPerWord / minutes)
	}
	return Stats{
		WPM:            wpm,
		Accuracy:       accuracy,
		WordsCompleted: completed,
		DurationMs:     duration,
	}
}

// hashPayload fixes the canonical field order for the content hash.
type hashPayload struct {
	Seed          uint64      `json:"seed"`
	CorpusVersion string      `json:"corpusVersion"`
	Stage         int         `json:"stage"`
	Keystrokes    []Keystroke `json:"keystrokes"`
	Stats         Stats       `json:"stats"`
}

// contentHash digests (seed, corpus version, ordered keystrokes, derived
// stats) as compact JSON. Struct field order pins the byte layout.
func contentHash(seed uint64, version string, stage int, keystrokes []Keystroke, stats Stats) string {
	payload, err := json.Marshal(hashPayload{
		Seed:          seed,
		CorpusVersion: version,
		Stage:         stage,
		Keystrokes:    keystrokes,
		Stats:         stats,
	})
	if err != nil {
		// Marshaling fixed struct types cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Verify replays rec and checks it against the claimed hash. It succeeds
// only when the recomputed hash equals claimedHash and the derived stats
// equal the recorded stats exactly; any drift is treated as tampering.
func Verify(rec Record, claimedHash string) (Result, error) {
	res, err := Replay(rec)
	if err != nil {
		return Result{}, err
	}
	if !strings.EqualFold(res.Hash, claimedHash) {
		return Result{}, ErrHashMismatch
	}
	if res.Stats != rec.Stats {
		return Result{}, ErrHashMismatch
	}
	return res, nil
}
