// Package identity defines the Identity-Store Adapter the core calls for
// profile, account-linking, and friends/party operations. The core never
// assumes a storage substrate: it depends only on the Store interface
// below, so a process-local map and a relational implementation are
// interchangeable behind it (see identity/memory and identity/pg).
package identity

import (
	"context"
	"errors"
	"time"
)

// ProfileSnapshot is the read-only view of a profile the core carries in
// session tokens and lobby broadcasts.
type ProfileSnapshot struct {
	ProfileID  string
	Nickname   string
	FriendCode string
	Username   string
	IsGuest    bool
}

// PendingLinkedAccount is returned once createPendingLinkedAccount issues
// a verification code for an email/password upgrade from a guest profile.
type PendingLinkedAccount struct {
	AccountID        string
	VerificationCode string
	ExpiresAt        time.Time
}

// AccountRow is the row findAccountByLogin resolves, carrying enough to
// verify a password and attach the matching profile.
type AccountRow struct {
	AccountID    string
	ProfileID    string
	Email        string
	Username     string
	PasswordHash string
	Verified     bool
	Suspended    bool
}

// FriendRequest is one outstanding friend request between two profiles.
type FriendRequest struct {
	RequestID       string
	FromProfileID   string
	ToProfileID     string
	CreatedAt       time.Time
}

// FriendsState is the full friends/requests view for one profile.
type FriendsState struct {
	Friends  []ProfileSnapshot
	Incoming []FriendRequest
	Outgoing []FriendRequest
}

// Errors the Store implementations return; the transport boundary maps
// these to apperr codes before they reach a client.
var (
	ErrEmailAlreadyUsed       = errors.New("email already used")
	ErrUsernameTaken          = errors.New("username taken")
	ErrProfileAlreadyLinked   = errors.New("profile already linked")
	ErrProfileNotFound        = errors.New("profile not found")
	ErrVerificationRateLimited = errors.New("verification rate limited")
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrVerificationCodeExpired = errors.New("verification code expired")
	ErrFriendRequestExists     = errors.New("friend request already exists")
	ErrAlreadyFriends          = errors.New("already friends")
	ErrFriendRequestNotFound   = errors.New("friend request not found")
)

// RateLimitError wraps ErrVerificationRateLimited with a RetryAfter
// duration the caller can read to build a retryAfter hint.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// Store is the full collaborator surface the core calls into from the
// socket-event path (never from the tick). Every method takes a context
// so a relational implementation can carry deadlines/cancellation;
// identity/memory ignores it.
type Store interface {
	EnsureGuestProfile(ctx context.Context, persistentID, nickname string) (ProfileSnapshot, error)
	SetActiveProfileForDevice(ctx context.Context, persistentID, profileID string) (ProfileSnapshot, error)
	SwitchToGuestProfileForDevice(ctx context.Context, persistentID, fallbackNickname string) (ProfileSnapshot, error)
	GetProfileSnapshotByID(ctx context.Context, profileID string) (ProfileSnapshot, error)

	CreatePendingLinkedAccount(ctx context.Context, profileID, email, username, passwordHash string, codeTTL time.Duration) (PendingLinkedAccount, error)
	ResendVerification(ctx context.Context, email string, codeTTL, cooldown time.Duration, perHourCap int) error
	VerifyEmailCode(ctx context.Context, email, otp string, maxAttempts int) error
	FindAccountByLogin(ctx context.Context, emailOrUsername string) (AccountRow, error)

	GetFriendsState(ctx context.Context, profileID string) (FriendsState, error)
	SearchFriendProfiles(ctx context.Context, profileID, query string, limit int) ([]ProfileSnapshot, error)
	SendFriendRequest(ctx context.Context, fromProfileID, toProfileID string) (FriendRequest, error)
	RespondFriendRequest(ctx context.Context, profileID, requestID string, accept bool) error
}
