package game

import (
	"time"

	"fightclub/internal/apperr"
)

// LobbyEvent is the outcome of a lobby protocol handler: the event name
// to broadcast (and to whom) plus whatever payload the transport layer
// needs to serialize. The handlers below return Go values; it is the
// transport adapter's job to shape them onto the wire events named in
// the outbound event catalogue.
type LobbyEvent string

const (
	EventRoomCreated     LobbyEvent = "roomCreated"
	EventPlayerJoined    LobbyEvent = "playerJoined"
	EventPlayerLeft      LobbyEvent = "playerLeft"
	EventLobbyUpdate     LobbyEvent = "lobbyUpdate"
	EventNewLeader       LobbyEvent = "newLeader"
	EventGameStarting    LobbyEvent = "gameStarting"
	EventGameStarted     LobbyEvent = "gameStarted"
	EventPlayerReady     LobbyEvent = "playerReadyUpdate"
)

// CreateRoom allocates a room for persistentID and seats it as leader
// with ready=true.
func CreateRoom(store *RoomStore, persistentID, connID, displayName string) (*Room, *Player) {
	room := store.CreateRoom()
	leader := room.AddPlayer(connID, persistentID, displayName)
	leader.Ready = true
	room.LeaderKey = leader.Key
	store.BindPersistent(persistentID, room.Code)
	return room, leader
}

// JoinRoom inserts persistentID into the room at code as a not-ready
// member, rejecting per the §4.4 join rules.
func JoinRoom(store *RoomStore, code, persistentID, connID, displayName string) (*Room, *Player, error) {
	room := store.Get(code)
	if room == nil {
		return nil, nil, apperr.ErrRoomNotFound
	}
	if room.State != RoomLobby {
		return nil, nil, apperr.ErrGameAlreadyStarted
	}
	if len(room.Players) >= MaxPlayersPerRoom {
		return nil, nil, apperr.ErrRoomFull
	}

	p := room.AddPlayer(connID, persistentID, displayName)
	store.BindPersistent(persistentID, code)
	return room, p, nil
}

// ToggleReady flips the ready flag for a non-leader member. The leader
// is always ready and cannot change it.
func ToggleReady(room *Room, key int) error {
	p, ok := room.Players[key]
	if !ok {
		return apperr.New(apperr.CodeRoomNotFound)
	}
	if key == room.LeaderKey {
		return nil
	}
	p.Ready = !p.Ready
	return nil
}

// StartGameResult carries what the caller needs to finish the
// gameStarting/gameStarted broadcast pair.
type StartGameResult struct {
	Map        MapKey
	StartingAt time.Time
}

// StartGame validates and executes the leader's startGame request: all
// non-leader connected members ready, nobody disconnected, then resets
// the room into the starting state with a freshly chosen map.
func StartGame(room *Room, requesterKey int, catalog *Catalog, mapKey MapKey, rewardPending map[string]bool, now time.Time) (StartGameResult, error) {
	if requesterKey != room.LeaderKey {
		return StartGameResult{}, apperr.ErrNotLeader
	}
	if !room.AllNonLeaderReady() {
		return StartGameResult{}, apperr.ErrNotAllReady
	}
	if room.HasDisconnectedMember() {
		return StartGameResult{}, apperr.ErrNotAllReady
	}

	def := catalog.Get(mapKey)
	room.ResetForNewMatch(def, mapKey, rewardPending)
	room.StartingAt = now

	return StartGameResult{Map: mapKey, StartingAt: now}, nil
}

// AdvanceStarting transitions a starting room to playing once its
// countdown delay has elapsed, stamping the match-start timestamp.
func AdvanceStarting(room *Room, now time.Time) bool {
	if !room.ReadyForPlaying(now) {
		return false
	}
	room.State = RoomPlaying
	room.MatchStartAt = now
	return true
}

// LeaveResult reports what the caller must additionally broadcast after
// a leave/disconnect: whether a new leader was elected and whether the
// room is now empty and should be torn down.
type LeaveResult struct {
	NewLeaderKey int
	RoomEmpty    bool
}

// LeaveRoom removes key's record entirely — the lobby-only variant of
// departure, used for leaveRoom and for disconnect while state=lobby.
func LeaveRoom(store *RoomStore, room *Room, key int) LeaveResult {
	p, ok := room.Players[key]
	if !ok {
		return LeaveResult{}
	}
	store.UnbindPersistent(p.PersistentID)
	room.RemovePlayer(key)
	return finishDeparture(store, room, key)
}

// DisconnectInMatch marks key's record disconnected=true without
// removing it, for disconnect events while state ≠ lobby.
func DisconnectInMatch(room *Room, key int) {
	if p, ok := room.Players[key]; ok {
		p.Disconnected = true
	}
}

func finishDeparture(store *RoomStore, room *Room, departedKey int) LeaveResult {
	if room.Empty() {
		store.DeleteIfEmpty(room.Code)
		return LeaveResult{RoomEmpty: true}
	}
	if departedKey == room.LeaderKey {
		newLeaderKey := room.ElectNewLeader(departedKey)
		if newLeaderKey != 0 {
			room.LeaderKey = newLeaderKey
			if p, ok := room.Players[newLeaderKey]; ok {
				p.Ready = true
			}
		}
		return LeaveResult{NewLeaderKey: newLeaderKey}
	}
	return LeaveResult{}
}

// KickPlayer removes targetKey from room, leader only, lobby only, and
// the target must not be the leader itself.
func KickPlayer(store *RoomStore, room *Room, requesterKey, targetKey int) (LeaveResult, error) {
	if requesterKey != room.LeaderKey {
		return LeaveResult{}, apperr.ErrNotLeader
	}
	if room.State != RoomLobby {
		return LeaveResult{}, apperr.ErrGameAlreadyStarted
	}
	target, ok := room.Players[targetKey]
	if !ok || targetKey == room.LeaderKey {
		return LeaveResult{}, apperr.ErrInvalidKickTarget
	}

	store.UnbindPersistent(target.PersistentID)
	room.RemovePlayer(targetKey)
	return finishDeparture(store, room, targetKey), nil
}
