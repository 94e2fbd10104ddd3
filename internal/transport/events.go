package transport

import "encoding/json"

// Inbound event names, exactly as named on the wire (§6.1).
const (
	evtRegisterPlayer      = "registerPlayer"
	evtUpdateName          = "updateName"
	evtFriendsGetList      = "friends:getList"
	evtFriendsSearch       = "friends:search"
	evtFriendsSendRequest  = "friends:sendRequest"
	evtFriendsRespond      = "friends:respondRequest"
	evtPartyInviteFriend   = "party:inviteFriend"
	evtPartyInviteRespond  = "party:inviteRespond"
	evtPong                = "pong"
	evtClientPing          = "clientPing"
	evtAdsGetState         = "ads:getState"
	evtAdsRewardedComplete = "ads:rewardedCompleted"
	evtCreateRoom          = "createRoom"
	evtJoinRoom            = "joinRoom"
	evtPlayerReady         = "playerReady"
	evtToggleReady         = "toggleReady"
	evtStartGame           = "startGame"
	evtPlayerInput         = "playerInput"
	evtFireProjectile      = "fireProjectile"
	evtLeaveRoom           = "leaveRoom"
	evtRequestLobbyState   = "requestLobbyState"
	evtReturnToLobby       = "returnToLobby"
	evtAckMatchResults     = "ackMatchResults"
	evtKickPlayer          = "kickPlayer"
)

// Outbound event names (§6.1).
const (
	OutSessionToken         = "sessionToken"
	OutHeartbeat            = "heartbeat"
	OutClientPong           = "clientPong"
	OutServerPong           = "serverPong"
	OutRoomCreated          = "roomCreated"
	OutPlayerJoined         = "playerJoined"
	OutPlayerLeft           = "playerLeft"
	OutLobbyUpdate          = "lobbyUpdate"
	OutPartyLobbyState      = "party:lobbyState"
	OutLobbySnapshot        = "lobbySnapshot"
	OutUpdatePlayers        = "updatePlayers"
	OutPlayerReadyUpdate    = "playerReadyUpdate"
	OutNewLeader            = "newLeader"
	OutGameStarting         = "gameStarting"
	OutGameStarted          = "gameStarted"
	OutCountdownStart       = "countdownStart"
	OutGameStart            = "gameStart"
	OutStateUpdate          = "stateUpdate"
	OutProjectileFired      = "projectileFired"
	OutHitEffect            = "hitEffect"
	OutShieldBreak          = "shieldBreak"
	OutPlayerKilled         = "playerKilled"
	OutPlayerRespawn        = "playerRespawn"
	OutBuffPickup           = "buffPickup"
	OutBuffRespawn          = "buffRespawn"
	OutInstantRespawnUsed   = "instantRespawnUsed"
	OutGameEnd              = "gameEnd"
	OutMatchResultsPending  = "matchResultsPending"
	OutKickedFromParty      = "kickedFromParty"
	OutReconnectedToGame    = "reconnectedToGame"
	OutReconnectLimited     = "reconnectLimited"
	OutAntiCheatAction      = "antiCheatAction"
	OutAuthError            = "authError"
	OutJoinError            = "joinError"
	OutError                = "error"
	OutFriendsListUpdated   = "friends:listUpdated"
	OutFriendsIncoming      = "friends:incomingRequest"
	OutFriendsRequestSent   = "friends:requestSent"
	OutFriendsResponded     = "friends:requestResponded"
	OutFriendsSearchResult  = "friends:searchResult"
	OutFriendsError         = "friends:error"
	OutPartyInviteSent      = "party:inviteSent"
	OutPartyInviteReceived  = "party:inviteReceived"
	OutPartyInviteResponded = "party:inviteResponded"
	OutPartyInviteExpired   = "party:inviteExpired"
	OutPartyInviteError     = "party:inviteError"
	OutAdsState             = "ads:state"
	OutProfileNicknameUpdated = "profile:nicknameUpdated"
)

// envelope is the wire shape for every message in both directions: an
// event name, a JSON payload, and — for request/response events the
// client acks — an echoed ackId the caller supplied.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ackId,omitempty"`
}

func marshalEnvelope(event string, data any, ackID string) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: raw, AckID: ackID})
}
