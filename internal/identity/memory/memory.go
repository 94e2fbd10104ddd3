// Package memory is the default Identity-Store implementation: a
// process-local map, wired into cmd/server/main.go unless DATABASE_URL
// is set. It proves the identity.Store interface needs nothing beyond
// what a plain map + mutex can offer, the same per-key-map shape as the
// teacher's chat.RateLimiter.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"fightclub/internal/identity"
)

type account struct {
	accountID    string
	profileID    string
	email        string
	username     string
	passwordHash string
	verified     bool
	suspended    bool
}

type pendingVerification struct {
	accountID string
	code      string
	expiresAt time.Time
	attempts  int
	lastSent  time.Time
	sentCount int
	windowAt  time.Time
}

type profile struct {
	snapshot identity.ProfileSnapshot
}

type friendEdge struct {
	requestID string
	from      string
	to        string
	createdAt time.Time
	accepted  bool
}

// Store is an in-memory identity.Store. All state is lost on restart;
// that is the intended behavior for the default guest-profile substrate.
type Store struct {
	mu sync.RWMutex

	profilesByID   map[string]*profile
	deviceToProfile map[string]string
	accountsByEmail map[string]*account
	accountsByUser  map[string]*account
	pendingByEmail  map[string]*pendingVerification
	friendRequests  map[string]*friendEdge
}

// New builds an empty in-memory Store.
func New() *Store {
	return &Store{
		profilesByID:    make(map[string]*profile),
		deviceToProfile: make(map[string]string),
		accountsByEmail: make(map[string]*account),
		accountsByUser:  make(map[string]*account),
		pendingByEmail:  make(map[string]*pendingVerification),
		friendRequests:  make(map[string]*friendEdge),
	}
}

func randomID(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return prefix + "_" + hex.EncodeToString(b)
}

func friendCode() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}

func (s *Store) EnsureGuestProfile(ctx context.Context, persistentID, nickname string) (identity.ProfileSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pid, ok := s.deviceToProfile[persistentID]; ok {
		if pr, ok := s.profilesByID[pid]; ok {
			return pr.snapshot, nil
		}
	}

	snap := identity.ProfileSnapshot{
		ProfileID:  randomID("profile"),
		Nickname:   nickname,
		FriendCode: friendCode(),
		IsGuest:    true,
	}
	s.profilesByID[snap.ProfileID] = &profile{snapshot: snap}
	s.deviceToProfile[persistentID] = snap.ProfileID
	return snap, nil
}

func (s *Store) SetActiveProfileForDevice(ctx context.Context, persistentID, profileID string) (identity.ProfileSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.profilesByID[profileID]
	if !ok {
		return identity.ProfileSnapshot{}, identity.ErrProfileNotFound
	}
	s.deviceToProfile[persistentID] = profileID
	return pr.snapshot, nil
}

func (s *Store) SwitchToGuestProfileForDevice(ctx context.Context, persistentID, fallbackNickname string) (identity.ProfileSnapshot, error) {
	s.mu.Lock()
	delete(s.deviceToProfile, persistentID)
	s.mu.Unlock()
	return s.EnsureGuestProfile(ctx, persistentID, fallbackNickname)
}

func (s *Store) GetProfileSnapshotByID(ctx context.Context, profileID string) (identity.ProfileSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pr, ok := s.profilesByID[profileID]
	if !ok {
		return identity.ProfileSnapshot{}, identity.ErrProfileNotFound
	}
	return pr.snapshot, nil
}

func (s *Store) CreatePendingLinkedAccount(ctx context.Context, profileID, email, username, passwordHash string, codeTTL time.Duration) (identity.PendingLinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pr, ok := s.profilesByID[profileID]
	if !ok {
		return identity.PendingLinkedAccount{}, identity.ErrProfileNotFound
	}
	if !pr.snapshot.IsGuest {
		return identity.PendingLinkedAccount{}, identity.ErrProfileAlreadyLinked
	}
	if _, exists := s.accountsByEmail[email]; exists {
		return identity.PendingLinkedAccount{}, identity.ErrEmailAlreadyUsed
	}
	if _, exists := s.accountsByUser[username]; exists {
		return identity.PendingLinkedAccount{}, identity.ErrUsernameTaken
	}

	acc := &account{
		accountID:    randomID("acct"),
		profileID:    profileID,
		email:        email,
		username:     username,
		passwordHash: passwordHash,
	}
	s.accountsByEmail[email] = acc
	s.accountsByUser[username] = acc

	code := fmt.Sprintf("%06d", randUint32()%1_000_000)
	now := time.Now()
	s.pendingByEmail[email] = &pendingVerification{
		accountID: acc.accountID,
		code:      code,
		expiresAt: now.Add(codeTTL),
		windowAt:  now,
	}

	return identity.PendingLinkedAccount{
		AccountID:        acc.accountID,
		VerificationCode: code,
		ExpiresAt:        now.Add(codeTTL),
	}, nil
}

func randUint32() uint32 {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (s *Store) ResendVerification(ctx context.Context, email string, codeTTL, cooldown time.Duration, perHourCap int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pend, ok := s.pendingByEmail[email]
	if !ok {
		return identity.ErrProfileNotFound
	}

	now := time.Now()
	if now.Sub(pend.lastSent) < cooldown {
		return &identity.RateLimitError{Err: identity.ErrVerificationRateLimited, RetryAfter: cooldown - now.Sub(pend.lastSent)}
	}
	if now.Sub(pend.windowAt) > time.Hour {
		pend.windowAt = now
		pend.sentCount = 0
	}
	if pend.sentCount >= perHourCap {
		return &identity.RateLimitError{Err: identity.ErrVerificationRateLimited, RetryAfter: time.Hour - now.Sub(pend.windowAt)}
	}

	pend.code = fmt.Sprintf("%06d", randUint32()%1_000_000)
	pend.expiresAt = now.Add(codeTTL)
	pend.attempts = 0
	pend.lastSent = now
	pend.sentCount++
	return nil
}

func (s *Store) VerifyEmailCode(ctx context.Context, email, otp string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pend, ok := s.pendingByEmail[email]
	if !ok {
		return identity.ErrInvalidVerificationCode
	}
	if time.Now().After(pend.expiresAt) {
		return identity.ErrVerificationCodeExpired
	}
	if pend.attempts >= maxAttempts {
		return identity.ErrInvalidVerificationCode
	}
	pend.attempts++
	if pend.code != otp {
		return identity.ErrInvalidVerificationCode
	}

	acc, ok := s.accountsByEmail[email]
	if !ok {
		return identity.ErrInvalidVerificationCode
	}
	acc.verified = true

	pr, ok := s.profilesByID[acc.profileID]
	if ok {
		pr.snapshot.IsGuest = false
		pr.snapshot.Username = acc.username
	}
	delete(s.pendingByEmail, email)
	return nil
}

func (s *Store) FindAccountByLogin(ctx context.Context, emailOrUsername string) (identity.AccountRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accountsByEmail[emailOrUsername]
	if !ok {
		acc, ok = s.accountsByUser[emailOrUsername]
	}
	if !ok {
		return identity.AccountRow{}, identity.ErrProfileNotFound
	}
	return identity.AccountRow{
		AccountID:    acc.accountID,
		ProfileID:    acc.profileID,
		Email:        acc.email,
		Username:     acc.username,
		PasswordHash: acc.passwordHash,
		Verified:     acc.verified,
		Suspended:    acc.suspended,
	}, nil
}

func (s *Store) GetFriendsState(ctx context.Context, profileID string) (identity.FriendsState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var state identity.FriendsState
	for _, edge := range s.friendRequests {
		switch {
		case edge.accepted && edge.from == profileID:
			if pr, ok := s.profilesByID[edge.to]; ok {
				state.Friends = append(state.Friends, pr.snapshot)
			}
		case edge.accepted && edge.to == profileID:
			if pr, ok := s.profilesByID[edge.from]; ok {
				state.Friends = append(state.Friends, pr.snapshot)
			}
		case !edge.accepted && edge.to == profileID:
			state.Incoming = append(state.Incoming, identity.FriendRequest{
				RequestID: edge.requestID, FromProfileID: edge.from, ToProfileID: edge.to, CreatedAt: edge.createdAt,
			})
		case !edge.accepted && edge.from == profileID:
			state.Outgoing = append(state.Outgoing, identity.FriendRequest{
				RequestID: edge.requestID, FromProfileID: edge.from, ToProfileID: edge.to, CreatedAt: edge.createdAt,
			})
		}
	}
	return state, nil
}

func (s *Store) SearchFriendProfiles(ctx context.Context, profileID, query string, limit int) ([]identity.ProfileSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)
	results := make([]identity.ProfileSnapshot, 0, limit)
	for id, pr := range s.profilesByID {
		if id == profileID || len(results) >= limit {
			continue
		}
		if strings.Contains(strings.ToLower(pr.snapshot.Nickname), query) ||
			strings.Contains(strings.ToLower(pr.snapshot.Username), query) ||
			strings.EqualFold(pr.snapshot.FriendCode, query) {
			results = append(results, pr.snapshot)
		}
	}
	return results, nil
}

func (s *Store) SendFriendRequest(ctx context.Context, fromProfileID, toProfileID string) (identity.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profilesByID[toProfileID]; !ok {
		return identity.FriendRequest{}, identity.ErrProfileNotFound
	}
	for _, edge := range s.friendRequests {
		if edge.accepted && ((edge.from == fromProfileID && edge.to == toProfileID) || (edge.from == toProfileID && edge.to == fromProfileID)) {
			return identity.FriendRequest{}, identity.ErrAlreadyFriends
		}
		if !edge.accepted && edge.from == fromProfileID && edge.to == toProfileID {
			return identity.FriendRequest{}, identity.ErrFriendRequestExists
		}
	}

	now := time.Now()
	req := &friendEdge{requestID: randomID("freq"), from: fromProfileID, to: toProfileID, createdAt: now}
	s.friendRequests[req.requestID] = req
	return identity.FriendRequest{RequestID: req.requestID, FromProfileID: fromProfileID, ToProfileID: toProfileID, CreatedAt: now}, nil
}

func (s *Store) RespondFriendRequest(ctx context.Context, profileID, requestID string, accept bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.friendRequests[requestID]
	if !ok || edge.to != profileID || edge.accepted {
		return identity.ErrFriendRequestNotFound
	}
	if !accept {
		delete(s.friendRequests, requestID)
		return nil
	}
	edge.accepted = true
	return nil
}

var _ identity.Store = (*Store)(nil)
