package game

import (
	"sync"
	"time"
)

const pendingMatchResultTTL = 30 * time.Minute

// PendingMatchResult is a finished match's stat snapshot retained per
// participating persistent id so a late reconnect still sees results.
type PendingMatchResult struct {
	RoomCode string
	Players  []PlayerResult
	EndedAt  time.Time
	ExpireAt time.Time
	acked    bool
}

// MatchResultBuffer is the Pending Match Result Buffer: persistent id ->
// pending result, expired entries pruned lazily on access; acknowledged
// entries stay in place, marked as acked.
type MatchResultBuffer struct {
	mu      sync.Mutex
	results map[string]*PendingMatchResult
}

// NewMatchResultBuffer creates an empty buffer.
func NewMatchResultBuffer() *MatchResultBuffer {
	return &MatchResultBuffer{results: make(map[string]*PendingMatchResult)}
}

// Store records a fresh pending result for each of players, replacing
// any existing pending result for the same persistent id.
func (b *MatchResultBuffer) Store(roomCode string, players []PlayerResult, endedAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, pr := range players {
		b.results[pr.PersistentID] = &PendingMatchResult{
			RoomCode: roomCode,
			Players:  players,
			EndedAt:  endedAt,
			ExpireAt: endedAt.Add(pendingMatchResultTTL),
		}
	}
}

// Get returns persistentID's pending result if one exists and has not
// expired, or nil otherwise. Expired entries are pruned on access.
func (b *MatchResultBuffer) Get(persistentID string, now time.Time) *PendingMatchResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.results[persistentID]
	if !ok {
		return nil
	}
	if now.After(r.ExpireAt) {
		delete(b.results, persistentID)
		return nil
	}
	return r
}

// Ack marks persistentID's pending result as acknowledged. A double ack
// is a no-op; acknowledging an absent or already-expired result is also
// a no-op.
func (b *MatchResultBuffer) Ack(persistentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.results[persistentID]; ok {
		r.acked = true
	}
}

// Acked reports whether persistentID's pending result has been
// acknowledged, for callers deciding whether to redeliver it.
func (b *MatchResultBuffer) Acked(persistentID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.results[persistentID]
	return ok && r.acked
}
