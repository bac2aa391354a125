package transcript

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one hash-chained transcript record. PrevHash of entry 0 is the
// initial-state hash; for every later entry it is
// chainHash(prevHash_{i-1}, entry_{i-1}).
type Entry struct {
	Sequence  int             `json:"sequence"`
	Player    string          `json:"player"`
	Action    json.RawMessage `json:"action"`
	StateHash string          `json:"stateHash"`
	PrevHash  string          `json:"prevHash"`
	Timestamp int64           `json:"timestamp"`
}

// Builder accumulates the hash-chained move log for one match. It is not
// goroutine-safe; callers hold the match lock.
type Builder struct {
	MatchID string
	GameID  string

	entries     []Entry
	currentHash string
	now         func() time.Time
}

// NewBuilder starts a transcript rooted at the hash of the initial state
func NewBuilder(matchID, gameID string, initialState interface{}) (*Builder, error) {
	h, err := HashState(initialState)
	if err != nil {
		return nil, fmt.Errorf("transcript: hash initial state: %w", err)
	}
	return &Builder{
		MatchID:     matchID,
		GameID:      gameID,
		currentHash: h,
		now:         time.Now,
	}, nil
}

// AddEntry appends a move and advances the rolling hash
func (b *Builder) AddEntry(player string, action json.RawMessage, newState interface{}) (Entry, error) {
	stateHash, err := HashState(newState)
	if err != nil {
		return Entry{}, fmt.Errorf("transcript: hash state: %w", err)
	}

	entry := Entry{
		Sequence:  len(b.entries),
		Player:    player,
		Action:    action,
		StateHash: stateHash,
		PrevHash:  b.currentHash,
		Timestamp: b.now().UnixMilli(),
	}

	next, err := ChainHash(entry.PrevHash, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("transcript: chain hash: %w", err)
	}
	b.currentHash = next
	b.entries = append(b.entries, entry)
	return entry, nil
}

// Root returns the rolling hash after the last entry — the commitment
// submitted to settlement
func (b *Builder) Root() string {
	return b.currentHash
}

// Entries returns a copy of the recorded entries
func (b *Builder) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *Builder) Len() int {
	return len(b.entries)
}

// VerifyChain re-derives the hash chain from initialHash over entries and
// reports the resulting root. It fails on the first broken link.
func VerifyChain(initialHash string, entries []Entry) (string, error) {
	current := initialHash
	for i, e := range entries {
		if e.Sequence != i {
			return "", fmt.Errorf("transcript: entry %d has sequence %d", i, e.Sequence)
		}
		if e.PrevHash != current {
			return "", fmt.Errorf("transcript: entry %d prevHash mismatch", i)
		}
		next, err := ChainHash(e.PrevHash, e)
		if err != nil {
			return "", err
		}
		current = next
	}
	return current, nil
}
