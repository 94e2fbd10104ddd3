package game

import (
	"math/rand"
	"testing"
	"time"

	"fightclub/internal/apperr"
)

func newTestStore() *RoomStore {
	return NewRoomStore(rand.New(rand.NewSource(1)))
}

func TestCreateRoomSeatsLeaderReady(t *testing.T) {
	store := newTestStore()
	room, leader := CreateRoom(store, "device-1", "conn-1", "Leader")

	if !leader.Ready {
		t.Error("expected leader seated ready=true")
	}
	if room.LeaderKey != leader.Key {
		t.Error("expected room leader key set to the creator")
	}
	if store.RoomForPersistent("device-1") != room {
		t.Error("expected persistent id bound to the created room")
	}
}

func TestJoinRoomRejectsFullRoom(t *testing.T) {
	store := newTestStore()
	room, _ := CreateRoom(store, "device-1", "conn-1", "Leader")
	for i := 2; i <= MaxPlayersPerRoom; i++ {
		room.AddPlayer("conn-x", "device-x", "X")
	}

	_, _, err := JoinRoom(store, room.Code, "device-new", "conn-new", "New")
	if !apperr.Is(err, apperr.CodeRoomFull) {
		t.Errorf("expected ROOM_FULL, got %v", err)
	}
}

func TestJoinRoomRejectsUnknownCode(t *testing.T) {
	store := newTestStore()
	_, _, err := JoinRoom(store, "99999", "device-1", "conn-1", "P")
	if !apperr.Is(err, apperr.CodeRoomNotFound) {
		t.Errorf("expected ROOM_NOT_FOUND, got %v", err)
	}
}

func TestToggleReadyLeaderIsNoop(t *testing.T) {
	store := newTestStore()
	room, leader := CreateRoom(store, "device-1", "conn-1", "Leader")

	ToggleReady(room, leader.Key)
	if !leader.Ready {
		t.Error("expected leader to remain ready regardless of toggle")
	}
}

func TestToggleReadyNonLeaderFlips(t *testing.T) {
	store := newTestStore()
	room, _ := CreateRoom(store, "device-1", "conn-1", "Leader")
	member := room.AddPlayer("conn-2", "device-2", "M")

	ToggleReady(room, member.Key)
	if !member.Ready {
		t.Error("expected member ready flipped true")
	}
	ToggleReady(room, member.Key)
	if member.Ready {
		t.Error("expected member ready flipped back false")
	}
}

func TestStartGameRejectsWhenNotAllReady(t *testing.T) {
	store := newTestStore()
	room, leader := CreateRoom(store, "device-1", "conn-1", "Leader")
	room.AddPlayer("conn-2", "device-2", "M")
	cat, _ := LoadEmbeddedCatalog()

	_, err := StartGame(room, leader.Key, cat, MapForest, nil, time.Now())
	if !apperr.Is(err, apperr.CodeNotAllReady) {
		t.Errorf("expected NOT_ALL_READY, got %v", err)
	}
}

func TestStartGameRejectsNonLeader(t *testing.T) {
	store := newTestStore()
	room, _ := CreateRoom(store, "device-1", "conn-1", "Leader")
	member := room.AddPlayer("conn-2", "device-2", "M")
	cat, _ := LoadEmbeddedCatalog()

	_, err := StartGame(room, member.Key, cat, MapForest, nil, time.Now())
	if !apperr.Is(err, apperr.CodeNotLeader) {
		t.Errorf("expected NOT_LEADER, got %v", err)
	}
}

func TestStartGameSucceedsWhenAllReady(t *testing.T) {
	store := newTestStore()
	room, leader := CreateRoom(store, "device-1", "conn-1", "Leader")
	member := room.AddPlayer("conn-2", "device-2", "M")
	member.Ready = true
	cat, _ := LoadEmbeddedCatalog()
	now := time.Now()

	result, err := StartGame(room, leader.Key, cat, MapForest, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Map != MapForest {
		t.Errorf("expected chosen map forest, got %s", result.Map)
	}
	if room.State != RoomStarting {
		t.Errorf("expected state starting, got %s", room.State)
	}
}

func TestAdvanceStartingTransitionsAfterDelay(t *testing.T) {
	room := newTestRoom()
	room.State = RoomStarting
	now := time.Now()
	room.StartingAt = now

	if AdvanceStarting(room, now.Add(time.Second)) {
		t.Error("expected no transition before the delay elapses")
	}
	if !AdvanceStarting(room, now.Add(startingToCountdownDelay+time.Millisecond)) {
		t.Error("expected transition once the delay elapses")
	}
	if room.State != RoomPlaying {
		t.Errorf("expected state playing, got %s", room.State)
	}
}

func TestLeaveRoomElectsNewLeader(t *testing.T) {
	store := newTestStore()
	room, leader := CreateRoom(store, "device-1", "conn-1", "Leader")
	member := room.AddPlayer("conn-2", "device-2", "M")

	result := LeaveRoom(store, room, leader.Key)

	if result.NewLeaderKey != member.Key {
		t.Errorf("expected member elected leader, got key %d", result.NewLeaderKey)
	}
	if !member.Ready {
		t.Error("expected newly elected leader to be ready")
	}
}

func TestLeaveRoomLastMemberDeletesRoom(t *testing.T) {
	store := newTestStore()
	room, leader := CreateRoom(store, "device-1", "conn-1", "Leader")

	result := LeaveRoom(store, room, leader.Key)

	if !result.RoomEmpty {
		t.Error("expected the room reported empty")
	}
	if store.Get(room.Code) != nil {
		t.Error("expected the empty room deleted from the store")
	}
}

func TestKickPlayerRejectsNonLeaderRequester(t *testing.T) {
	store := newTestStore()
	room, _ := CreateRoom(store, "device-1", "conn-1", "Leader")
	member := room.AddPlayer("conn-2", "device-2", "M")
	other := room.AddPlayer("conn-3", "device-3", "O")

	_, err := KickPlayer(store, room, member.Key, other.Key)
	if !apperr.Is(err, apperr.CodeNotLeader) {
		t.Errorf("expected NOT_LEADER, got %v", err)
	}
}

func TestKickPlayerRejectsKickingLeader(t *testing.T) {
	store := newTestStore()
	room, leader := CreateRoom(store, "device-1", "conn-1", "Leader")

	_, err := KickPlayer(store, room, leader.Key, leader.Key)
	if !apperr.Is(err, apperr.CodeInvalidKickTarget) {
		t.Errorf("expected INVALID_KICK_TARGET, got %v", err)
	}
}

func TestKickPlayerRemovesTarget(t *testing.T) {
	store := newTestStore()
	room, leader := CreateRoom(store, "device-1", "conn-1", "Leader")
	target := room.AddPlayer("conn-2", "device-2", "T")

	_, err := KickPlayer(store, room, leader.Key, target.Key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := room.Players[target.Key]; ok {
		t.Error("expected kicked player removed from room")
	}
}
