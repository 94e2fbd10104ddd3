package transport

import "fightclub/internal/apperr"

// errorPayload is the wire shape of every typed error event.
type errorPayload struct {
	Code       apperr.Code `json:"code"`
	RetryAfter int         `json:"retryAfterMs,omitempty"`
}

// outboundEventFor maps an apperr.Code to the outbound event name §6.1
// groups it under: auth codes get authError, lobby/match codes get
// joinError, friends codes get friends:error, party codes get
// party:inviteError, everything else the generic error event.
func outboundEventFor(code apperr.Code) string {
	switch code {
	case apperr.CodeAuthRequired, apperr.CodeAuthContextRequired, apperr.CodeInvalidCredentials,
		apperr.CodeEmailNotVerified, apperr.CodeAccountSuspended:
		return OutAuthError
	case apperr.CodeRoomNotFound, apperr.CodeRoomFull, apperr.CodeGameAlreadyStarted,
		apperr.CodeNotLeader, apperr.CodeNotAllReady, apperr.CodeInvalidKickTarget, apperr.CodeActiveMatchLock:
		return OutJoinError
	case apperr.CodeProfileNotFound, apperr.CodeFriendRequestAlreadyExist, apperr.CodeAlreadyFriends,
		apperr.CodeFriendRequestNotFound:
		return OutFriendsError
	case apperr.CodePartyInviteNotAllowed, apperr.CodePartyInviteExpired,
		apperr.CodeTargetNotOnline, apperr.CodeTargetAlreadyInParty:
		return OutPartyInviteError
	case apperr.CodeReconnectLimited:
		return OutReconnectLimited
	default:
		return OutError
	}
}

// emitError sends err to c as a typed error event, falling back to the
// RATE_LIMITED code (sent on the generic error event) if err isn't an
// *apperr.Error.
func (d *Dispatcher) emitError(c *Connection, ackID string, err error) {
	code, ok := apperr.CodeOf(err)
	if !ok {
		code = apperr.CodeRateLimited
	}
	_ = c.sendAck(outboundEventFor(code), errorPayload{Code: code}, ackID)
}
