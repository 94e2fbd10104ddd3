package game

import (
	"sync"
	"time"
)

// RewardFlag is a single persistent id's pending-instant-respawn state.
type RewardFlag struct {
	Pending   bool
	UpdatedAt time.Time
}

// RewardStore is the Reward Flag Store: per-persistent-id pending flags
// consulted at startGame and restored at match end if unconsumed.
type RewardStore struct {
	mu    sync.Mutex
	flags map[string]*RewardFlag
}

// NewRewardStore creates an empty store.
func NewRewardStore() *RewardStore {
	return &RewardStore{flags: make(map[string]*RewardFlag)}
}

// SetPending marks persistentID as having a reward pending.
func (s *RewardStore) SetPending(persistentID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[persistentID] = &RewardFlag{Pending: true, UpdatedAt: now}
}

// PendingSet returns a snapshot of which of the given persistent ids
// currently have a reward pending, for ResetForNewMatch to consult.
func (s *RewardStore) PendingSet(persistentIDs []string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(persistentIDs))
	for _, id := range persistentIDs {
		if f, ok := s.flags[id]; ok && f.Pending {
			out[id] = true
		}
	}
	return out
}

// Consume clears the pending flag for persistentID, called once the
// charges it grants have been handed to a fresh match.
func (s *RewardStore) Consume(persistentID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.flags[persistentID]; ok {
		f.Pending = false
		f.UpdatedAt = now
	}
}

// Restore re-sets the pending flag for persistentID, used at match end
// when a granted charge went unconsumed (the player never died).
func (s *RewardStore) Restore(persistentID string, now time.Time) {
	s.SetPending(persistentID, now)
}

// FinalizeMatch applies the end-of-match reward rule for one player who
// was granted grantedCharges instant-respawn charges at start: if none
// of them were consumed (remaining still equals granted, and at least
// one was granted), the pending flag is restored; otherwise it stays
// cleared.
func (s *RewardStore) FinalizeMatch(persistentID string, grantedCharges, remainingCharges int, now time.Time) {
	if grantedCharges > 0 && remainingCharges == grantedCharges {
		s.Restore(persistentID, now)
	}
}
