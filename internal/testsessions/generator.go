package testsessions

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/wordfall/leaderboard/internal/domain/session"
)

// Generation bounds.
const (
	minWords        = 4
	maxWords        = 12
	minKeyGapMs     = 90
	keyGapJitterMs  = 160
	missEveryNth    = 7 // every nth keystroke is a deliberate miss
	initialsLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GeneratedSession is one submission-ready payload.
type GeneratedSession struct {
	UserID      string         `json:"userId"`
	Initials    string         `json:"initials"`
	SessionHash string         `json:"sessionHash"`
	Session     session.Record `json:"sessionData"`
}

// randUint64 draws a crypto-random seed.
func randUint64() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint64(b[:])
}

// randIntn draws a crypto-random int in [0, n).
func randIntn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(randUint64() % uint64(n))
}

// Generate builds one valid session record. The word sequence is
// reproduced from the engine's RNG for the chosen seed, keystrokes type
// those words with occasional deliberate misses, and the final stats and
// hash come from an actual replay.
func Generate(maxStage int) (GeneratedSession, error) {
	seed := randUint64()
	if maxStage < 1 {
		maxStage = 1
	}
	stage := 1 + randIntn(maxStage)

	words, err := session.Words(session.CorpusV1)
	if err != nil {
		return GeneratedSession{}, fmt.Errorf("load corpus: %w", err)
	}
	wordCount := minWords + randIntn(maxWords-minWords+1)

	// Same draw order as the engine: word i is the i-th RNG pick.
	rng := session.NewRNG(seed)
	spawned := make([]string, wordCount)
	for i := range spawned {
		spawned[i] = words[rng.Intn(len(words))]
	}

	var keystrokes []session.Keystroke
	timeMs := int64(0)
	total := 0
	for i, word := range spawned {
		for _, r := range word {
			timeMs += int64(minKeyGapMs + randIntn(keyGapJitterMs))
			total++
			if total%missEveryNth == 0 {
				// A key that can never match word progress.
				keystrokes = append(keystrokes, session.Keystroke{
					TimeMs: timeMs, Key: "0", WordIndex: i,
				})
				timeMs += int64(minKeyGapMs + randIntn(keyGapJitterMs))
			}
			keystrokes = append(keystrokes, session.Keystroke{
				TimeMs: timeMs, Key: string(r), WordIndex: i,
			})
		}
	}

	rec := session.Record{
		RNGSeed:       seed,
		CorpusVersion: session.CorpusV1,
		Stage:         stage,
		Keystrokes:    keystrokes,
	}
	res, err := session.Replay(rec)
	if err != nil {
		return GeneratedSession{}, fmt.Errorf("replay generated session: %w", err)
	}
	rec.Stats = res.Stats

	return GeneratedSession{
		UserID:      uuid.NewString(),
		Initials:    randomInitials(),
		SessionHash: res.Hash,
		Session:     rec,
	}, nil
}

// GenerateBatch builds n valid sessions.
func GenerateBatch(n, maxStage int) ([]GeneratedSession, error) {
	sessions := make([]GeneratedSession, 0, n)
	for i := 0; i < n; i++ {
		s, err := Generate(maxStage)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func randomInitials() string {
	b := make([]byte, 3)
	for i := range b {
		b[i] = initialsLetters[randIntn(len(initialsLetters))]
	}
	return string(b)
}
