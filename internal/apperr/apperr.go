// Package apperr defines the stable string error codes surfaced to
// clients and the small Error type that carries one. Nothing below the
// transport boundary should construct a host-specific error type; every
// failure the core produces is mapped to one of these codes before it
// reaches a socket handler.
package apperr

import "errors"

// Code is a stable, wire-safe error identifier. Clients match on the
// string value, never on Go type, so these must never be renamed once
// shipped.
type Code string

// Auth codes.
const (
	CodeAuthRequired        Code = "AUTH_REQUIRED"
	CodeAuthContextRequired Code = "AUTH_CONTEXT_REQUIRED"
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeEmailNotVerified    Code = "EMAIL_NOT_VERIFIED"
	CodeAccountSuspended    Code = "ACCOUNT_SUSPENDED"
)

// Lobby/match codes.
const (
	CodeRoomNotFound       Code = "ROOM_NOT_FOUND"
	CodeRoomFull           Code = "ROOM_FULL"
	CodeGameAlreadyStarted Code = "GAME_ALREADY_STARTED"
	CodeNotLeader          Code = "NOT_LEADER"
	CodeNotAllReady        Code = "NOT_ALL_READY"
	CodeInvalidKickTarget  Code = "INVALID_KICK_TARGET"
	CodeActiveMatchLock    Code = "ACTIVE_MATCH_LOCK"
)

// Party/friends codes.
const (
	CodeProfileNotFound           Code = "PROFILE_NOT_FOUND"
	CodeFriendRequestAlreadyExist Code = "FRIEND_REQUEST_ALREADY_EXISTS"
	CodeAlreadyFriends            Code = "ALREADY_FRIENDS"
	CodeFriendRequestNotFound     Code = "FRIEND_REQUEST_NOT_FOUND"
	CodePartyInviteNotAllowed     Code = "PARTY_INVITE_NOT_ALLOWED"
	CodePartyInviteExpired        Code = "PARTY_INVITE_EXPIRED"
	CodeTargetNotOnline           Code = "TARGET_NOT_ONLINE"
	CodeTargetAlreadyInParty      Code = "TARGET_ALREADY_IN_PARTY"
)

// Rate/abuse codes.
const (
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeReconnectLimited Code = "RECONNECT_LIMITED"
)

// Reward codes.
const (
	CodeInMatch             Code = "IN_MATCH"
	CodeNotAllowedWhileReady Code = "NOT_ALLOWED_WHILE_READY"
	CodeInvalidRewardType    Code = "INVALID_REWARD_TYPE"
)

// Error is the single error type the core returns. It carries a stable
// Code plus an optional human-readable detail never shown to players,
// only logged.
type Error struct {
	code   Code
	detail string
}

// New builds an *Error for code with an empty detail.
func New(code Code) *Error {
	return &Error{code: code}
}

// Newf builds an *Error for code with a log-only detail string.
func Newf(code Code, detail string) *Error {
	return &Error{code: code, detail: detail}
}

// Error implements the error interface. The returned string is meant for
// server logs, not for the wire — the wire only ever carries Code().
func (e *Error) Error() string {
	if e.detail == "" {
		return string(e.code)
	}
	return string(e.code) + ": " + e.detail
}

// Code returns the stable wire code.
func (e *Error) Code() Code {
	return e.code
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error,
// otherwise returns ok=false. Handlers use this at the transport
// boundary to decide whether to emit a typed error event or fall back
// to a generic one.
func CodeOf(err error) (Code, bool) {
	if err == nil {
		return "", false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.code, true
	}
	return "", false
}

// Is reports whether err is an *Error carrying code. Sentinel errors
// below reuse this via errors.Is-style comparisons in callers that
// prefer not to unwrap manually.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Sentinel errors for the most frequently checked codes, declared as
// package-level vars of the *Error type above.
var (
	ErrRoomNotFound       = New(CodeRoomNotFound)
	ErrRoomFull           = New(CodeRoomFull)
	ErrGameAlreadyStarted = New(CodeGameAlreadyStarted)
	ErrNotLeader          = New(CodeNotLeader)
	ErrNotAllReady        = New(CodeNotAllReady)
	ErrInvalidKickTarget  = New(CodeInvalidKickTarget)
	ErrActiveMatchLock    = New(CodeActiveMatchLock)
	ErrRateLimited        = New(CodeRateLimited)
	ErrReconnectLimited   = New(CodeReconnectLimited)
)
