package transport

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"fightclub/internal/anticheat"
	"fightclub/internal/apperr"
	"fightclub/internal/game"
	"fightclub/internal/identity"
	"fightclub/internal/session"

	"github.com/google/uuid"
)

// Dispatcher routes one decoded inbound envelope to the game/identity/
// session layers and emits whatever outbound events the operation
// produces, generalizing the teacher's inline "Parse message … handle
// commands" block in websocket.go into one handler per named event.
type Dispatcher struct {
	Hub       *Hub
	Engine    *game.Engine
	Rooms     *game.RoomStore
	Catalog   *game.Catalog
	Sessions  *session.Manager
	Identity  identity.Store
	Reconnect *game.ReconnectGuard
	limiter   *eventLimiter
	rng       *rand.Rand

	invitesMu sync.Mutex
	invites   map[string]*partyInvite
}

// partyInvite is an ephemeral party invite, kept in the Dispatcher's
// map until it is answered and honoured for partyInviteTTL, per §6.1's
// party:invite* event pair — there is no persistent party/session state
// in this design, only the invite handshake itself.
type partyInvite struct {
	FromProfileID string
	ToProfileID   string
	ExpiresAt     time.Time
}

const partyInviteTTL = 30 * time.Second

// NewDispatcher wires a Dispatcher; all dependencies must already be
// constructed by the caller (cmd/server).
func NewDispatcher(hub *Hub, engine *game.Engine, rooms *game.RoomStore, catalog *game.Catalog, sessions *session.Manager, store identity.Store, reconnect *game.ReconnectGuard, rng *rand.Rand) *Dispatcher {
	return &Dispatcher{
		Hub: hub, Engine: engine, Rooms: rooms, Catalog: catalog,
		Sessions: sessions, Identity: store, Reconnect: reconnect,
		limiter: newEventLimiter(), rng: rng,
		invites: make(map[string]*partyInvite),
	}
}

func (d *Dispatcher) handle(c *Connection, env envelope) {
	if !d.limiter.allow(c.ID(), env.Event) {
		_ = c.sendAck(OutError, errorPayload{Code: apperr.CodeRateLimited}, env.AckID)
		return
	}

	switch env.Event {
	case evtRegisterPlayer:
		d.handleRegisterPlayer(c, env)
	case evtUpdateName:
		d.handleUpdateName(c, env)
	case evtCreateRoom:
		d.handleCreateRoom(c, env)
	case evtJoinRoom:
		d.handleJoinRoom(c, env)
	case evtPlayerReady, evtToggleReady:
		d.handleToggleReady(c, env)
	case evtStartGame:
		d.handleStartGame(c, env)
	case evtPlayerInput:
		d.handlePlayerInput(c, env)
	case evtFireProjectile:
		d.handleFireProjectile(c, env)
	case evtLeaveRoom:
		d.handleLeaveRoom(c, env)
	case evtRequestLobbyState:
		d.handleRequestLobbyState(c, env)
	case evtReturnToLobby:
		d.handleReturnToLobby(c, env)
	case evtAckMatchResults:
		d.handleAckMatchResults(c, env)
	case evtKickPlayer:
		d.handleKickPlayer(c, env)
	case evtPong, evtClientPing:
		d.handlePing(c, env)
	case evtFriendsGetList:
		d.handleFriendsGetList(c, env)
	case evtFriendsSearch:
		d.handleFriendsSearch(c, env)
	case evtFriendsSendRequest:
		d.handleFriendsSendRequest(c, env)
	case evtFriendsRespond:
		d.handleFriendsRespond(c, env)
	case evtAdsGetState, evtAdsRewardedComplete:
		d.handleAds(c, env)
	case evtPartyInviteFriend:
		d.handlePartyInviteFriend(c, env)
	case evtPartyInviteRespond:
		d.handlePartyInviteRespond(c, env)
	default:
		log.Printf("📡 unrecognized event %q from %s", env.Event, c.ID())
	}
}

func decode[T any](env envelope) T {
	var v T
	_ = json.Unmarshal(env.Data, &v)
	return v
}

// --- identity / session --------------------------------------------

type registerPlayerPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

func (d *Dispatcher) handleRegisterPlayer(c *Connection, env envelope) {
	in := decode[registerPlayerPayload](env)
	now := time.Now()

	persistentID := in.ID
	displayName := in.Name
	var profileID, friendCode, username string

	if in.Token != "" {
		if payload, err := d.Sessions.Verify(in.Token, now); err == nil {
			persistentID = payload.PersistentID
			if displayName == "" {
				displayName = payload.DisplayName
			}
			profileID, friendCode, username = payload.ProfileID, payload.FriendCode, payload.Username
		}
	}
	if persistentID == "" {
		d.emitError(c, env.AckID, apperr.New(apperr.CodeAuthRequired))
		return
	}

	ctx := context.Background()
	if profileID == "" {
		snap, err := d.Identity.EnsureGuestProfile(ctx, persistentID, displayName)
		if err == nil {
			profileID, friendCode, username = snap.ProfileID, snap.FriendCode, snap.Username
			if displayName == "" {
				displayName = snap.Nickname
			}
		}
	}

	token, err := d.Sessions.Issue(persistentID, displayName, now, session.IssueOptions{
		ProfileID: profileID, FriendCode: friendCode, Username: username,
	})
	if err != nil {
		d.emitError(c, env.AckID, apperr.New(apperr.CodeAuthRequired))
		return
	}

	c.setIdentity(persistentID, profileID)
	_ = c.sendAck(OutSessionToken, map[string]string{"token": token, "persistentId": persistentID}, env.AckID)

	if room := d.Rooms.RoomForPersistent(persistentID); room != nil {
		if !d.Reconnect.Allow(persistentID, now) {
			d.emitError(c, env.AckID, apperr.ErrReconnectLimited)
			return
		}
		if result, ok := game.Rebind(room, persistentID, c.ID()); ok {
			if result.OldConnID != "" {
				if old, ok := d.Hub.byConnID(result.OldConnID); ok {
					d.Hub.LeaveRoom(old)
				}
			}
			if p := room.PlayerByPersistentID(persistentID); p != nil {
				d.Hub.JoinRoom(c, room.Code, p.Key)
			}
			_ = c.send(OutReconnectedToGame, map[string]string{"roomCode": room.Code})
		}
	}
}

type updateNamePayload struct {
	NewName string `json:"newName"`
}

func (d *Dispatcher) handleUpdateName(c *Connection, env envelope) {
	in := decode[updateNamePayload](env)
	room, p := d.roomAndPlayer(c)
	if p != nil {
		p.DisplayName = in.NewName
	}
	_ = c.sendAck(OutProfileNicknameUpdated, map[string]string{"newName": in.NewName}, env.AckID)
	if room != nil {
		d.Hub.BroadcastRoom(room.Code, OutLobbyUpdate, lobbySnapshotOf(room))
	}
}

// --- lobby -----------------------------------------------------------

type createRoomPayload struct {
	PlayerName string `json:"playerName"`
}

func (d *Dispatcher) handleCreateRoom(c *Connection, env envelope) {
	in := decode[createRoomPayload](env)
	snap := c.Snapshot()
	if snap.PersistentID == "" {
		d.emitError(c, env.AckID, apperr.New(apperr.CodeAuthRequired))
		return
	}

	room, leader := game.CreateRoom(d.Rooms, snap.PersistentID, c.ID(), in.PlayerName)
	d.Hub.JoinRoom(c, room.Code, leader.Key)
	_ = c.sendAck(OutRoomCreated, map[string]any{"roomCode": room.Code, "playerKey": leader.Key}, env.AckID)
	d.Hub.BroadcastRoom(room.Code, OutLobbyUpdate, lobbySnapshotOf(room))
}

type joinRoomPayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

func (d *Dispatcher) handleJoinRoom(c *Connection, env envelope) {
	in := decode[joinRoomPayload](env)
	snap := c.Snapshot()
	if snap.PersistentID == "" {
		d.emitError(c, env.AckID, apperr.New(apperr.CodeAuthRequired))
		return
	}

	room, p, err := game.JoinRoom(d.Rooms, in.RoomCode, snap.PersistentID, c.ID(), in.PlayerName)
	if err != nil {
		d.emitError(c, env.AckID, err)
		return
	}

	d.Hub.JoinRoom(c, room.Code, p.Key)
	_ = c.sendAck(OutRoomCreated, map[string]any{"roomCode": room.Code, "playerKey": p.Key}, env.AckID)
	d.Hub.BroadcastRoomExcept(room.Code, c.ID(), OutPlayerJoined, playerJoinedPayload(p))
	d.Hub.BroadcastRoom(room.Code, OutLobbyUpdate, lobbySnapshotOf(room))
}

func (d *Dispatcher) handleToggleReady(c *Connection, env envelope) {
	room, p := d.roomAndPlayer(c)
	if room == nil || p == nil {
		return
	}
	_ = game.ToggleReady(room, p.Key)
	d.Hub.BroadcastRoom(room.Code, OutPlayerReadyUpdate, map[string]any{"playerKey": p.Key, "ready": p.Ready})
	d.Hub.BroadcastRoom(room.Code, OutLobbyUpdate, lobbySnapshotOf(room))
}

func (d *Dispatcher) handleStartGame(c *Connection, env envelope) {
	room, p := d.roomAndPlayer(c)
	if room == nil || p == nil {
		return
	}

	mapKey := game.RandomMapKey(d.rng)
	ids := make([]string, 0, len(room.Players))
	for _, member := range room.Players {
		ids = append(ids, member.PersistentID)
	}
	pending := d.Engine.Rewards.PendingSet(ids)

	result, err := game.StartGame(room, p.Key, d.Catalog, mapKey, pending, time.Now())
	if err != nil {
		d.emitError(c, env.AckID, err)
		return
	}

	for _, member := range room.Players {
		d.Engine.Rewards.Consume(member.PersistentID, time.Now())
	}

	d.Hub.BroadcastRoom(room.Code, OutGameStarting, map[string]any{"map": result.Map, "startingAt": result.StartingAt})
}

// --- gameplay ----------------------------------------------------------

type playerInputPayload struct {
	W, A, S, D bool
	Angle      float64
	Charging   bool
	Seq        int64
}

func (d *Dispatcher) handlePlayerInput(c *Connection, env envelope) {
	in := decode[playerInputPayload](env)
	_, p := d.roomAndPlayer(c)
	if p == nil {
		return
	}
	now := time.Now()
	if enforceInputs, _ := anticheat.Blocked(&p.Strikes, d.Engine.AntiCheatCfg, now); enforceInputs {
		return
	}
	result := d.Engine.ApplyPlayerInput(p, game.InputState{W: in.W, A: in.A, S: in.S, D: in.D, Angle: in.Angle, Charging: in.Charging, Seq: in.Seq}, now)
	d.emitAntiCheatAction(c, result.Escalation)
}

type fireProjectilePayload struct {
	Angle float64 `json:"angle"`
}

func (d *Dispatcher) handleFireProjectile(c *Connection, env envelope) {
	in := decode[fireProjectilePayload](env)
	room, p := d.roomAndPlayer(c)
	if room == nil || p == nil {
		return
	}
	now := time.Now()
	if enforceInputs, enforceFireOnly := anticheat.Blocked(&p.Strikes, d.Engine.AntiCheatCfg, now); enforceInputs || enforceFireOnly {
		return
	}
	def := d.Catalog.Get(room.SelectedMap)
	pr, result := d.Engine.FireProjectile(room, def, p, in.Angle, now)
	d.emitAntiCheatAction(c, result.Escalation)
	if !result.Accepted {
		return
	}
	d.Hub.BroadcastRoom(room.Code, OutProjectileFired, map[string]any{"id": pr.ID, "ownerKey": p.Key, "x": pr.X, "y": pr.Y, "angle": in.Angle})
}

// emitAntiCheatAction pushes the antiCheatAction event to the affected
// connection and mirrors the escalation into the bounded prometheus
// counter, once per threshold crossing (§4.7, §6.1).
func (d *Dispatcher) emitAntiCheatAction(c *Connection, esc anticheat.Escalation) {
	if !esc.Crossed {
		return
	}
	recordStrikeMetric(esc.Level)
	level := "warn"
	switch esc.Level {
	case anticheat.BlockSoft:
		level = "soft"
	case anticheat.BlockHard:
		level = "hard"
	}
	_ = c.send(OutAntiCheatAction, map[string]any{"level": level, "blockUntil": esc.BlockUntil})
}

// --- departure ---------------------------------------------------------

func (d *Dispatcher) handleLeaveRoom(c *Connection, env envelope) {
	room, p := d.roomAndPlayer(c)
	if room == nil || p == nil {
		return
	}
	result := game.LeaveRoom(d.Rooms, room, p.Key)
	d.Hub.LeaveRoom(c)
	if !result.RoomEmpty {
		d.Hub.BroadcastRoom(room.Code, OutPlayerLeft, map[string]int{"playerKey": p.Key})
		if result.NewLeaderKey != 0 {
			d.Hub.BroadcastRoom(room.Code, OutNewLeader, map[string]int{"playerKey": result.NewLeaderKey})
		}
		d.Hub.BroadcastRoom(room.Code, OutLobbyUpdate, lobbySnapshotOf(room))
	}
}

type kickPlayerPayload struct {
	PlayerKey int    `json:"playerKey"`
	PlayerID  string `json:"playerId"`
}

func (d *Dispatcher) handleKickPlayer(c *Connection, env envelope) {
	in := decode[kickPlayerPayload](env)
	room, p := d.roomAndPlayer(c)
	if room == nil || p == nil {
		return
	}

	targetKey := in.PlayerKey
	if targetKey == 0 && in.PlayerID != "" {
		if target := room.PlayerByPersistentID(in.PlayerID); target != nil {
			targetKey = target.Key
		}
	}
	var targetConnID string
	if target, ok := room.Players[targetKey]; ok {
		targetConnID = target.ConnID
	}

	result, err := game.KickPlayer(d.Rooms, room, p.Key, targetKey)
	if err != nil {
		d.emitError(c, env.AckID, err)
		return
	}
	if target, ok := d.Hub.byConnID(targetConnID); ok {
		d.Hub.LeaveRoom(target)
		_ = target.send(OutKickedFromParty, nil)
	}
	d.Hub.BroadcastRoom(room.Code, OutPlayerLeft, map[string]int{"playerKey": targetKey})
	if result.NewLeaderKey != 0 {
		d.Hub.BroadcastRoom(room.Code, OutNewLeader, map[string]int{"playerKey": result.NewLeaderKey})
	}
	d.Hub.BroadcastRoom(room.Code, OutLobbyUpdate, lobbySnapshotOf(room))
}

// --- lobby state / results ----------------------------------------------

type roomCodePayload struct {
	RoomCode string `json:"roomCode"`
}

func (d *Dispatcher) handleRequestLobbyState(c *Connection, env envelope) {
	in := decode[roomCodePayload](env)
	room := d.resolveRoom(c, in.RoomCode)
	if room == nil {
		return
	}
	_ = c.sendAck(OutLobbySnapshot, lobbySnapshotOf(room), env.AckID)
}

func (d *Dispatcher) handleReturnToLobby(c *Connection, env envelope) {
	in := decode[roomCodePayload](env)
	room := d.resolveRoom(c, in.RoomCode)
	if room == nil {
		return
	}
	_ = c.sendAck(OutLobbyUpdate, lobbySnapshotOf(room), env.AckID)
}

func (d *Dispatcher) handleAckMatchResults(c *Connection, env envelope) {
	snap := c.Snapshot()
	if snap.PersistentID == "" {
		return
	}
	d.Engine.Results.Ack(snap.PersistentID)
}

func (d *Dispatcher) handlePing(c *Connection, env envelope) {
	if env.Event == evtClientPing {
		_ = c.sendAck(OutServerPong, map[string]int64{"t": time.Now().UnixMilli()}, env.AckID)
		return
	}
	_ = c.send(OutClientPong, nil)
}

// --- friends -------------------------------------------------------------

func (d *Dispatcher) handleFriendsGetList(c *Connection, env envelope) {
	snap := c.Snapshot()
	state, err := d.Identity.GetFriendsState(context.Background(), snap.ProfileID)
	if err != nil {
		d.emitError(c, env.AckID, apperr.Newf(apperr.CodeProfileNotFound, err.Error()))
		return
	}
	_ = c.sendAck(OutFriendsListUpdated, state, env.AckID)
}

type friendsSearchPayload struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (d *Dispatcher) handleFriendsSearch(c *Connection, env envelope) {
	in := decode[friendsSearchPayload](env)
	if in.Limit <= 0 {
		in.Limit = 10
	}
	snap := c.Snapshot()
	results, err := d.Identity.SearchFriendProfiles(context.Background(), snap.ProfileID, in.Query, in.Limit)
	if err != nil {
		d.emitError(c, env.AckID, apperr.Newf(apperr.CodeProfileNotFound, err.Error()))
		return
	}
	_ = c.sendAck(OutFriendsSearchResult, results, env.AckID)
}

type friendsSendRequestPayload struct {
	TargetProfileID string `json:"targetProfileId"`
}

func (d *Dispatcher) handleFriendsSendRequest(c *Connection, env envelope) {
	in := decode[friendsSendRequestPayload](env)
	snap := c.Snapshot()
	req, err := d.Identity.SendFriendRequest(context.Background(), snap.ProfileID, in.TargetProfileID)
	if err != nil {
		d.emitError(c, env.AckID, identityErrToAppErr(err))
		return
	}
	_ = c.sendAck(OutFriendsRequestSent, req, env.AckID)
}

type friendsRespondPayload struct {
	RequestID string `json:"requestId"`
	Accept    bool   `json:"accept"`
}

func (d *Dispatcher) handleFriendsRespond(c *Connection, env envelope) {
	in := decode[friendsRespondPayload](env)
	snap := c.Snapshot()
	if err := d.Identity.RespondFriendRequest(context.Background(), snap.ProfileID, in.RequestID, in.Accept); err != nil {
		d.emitError(c, env.AckID, identityErrToAppErr(err))
		return
	}
	_ = c.sendAck(OutFriendsResponded, map[string]any{"requestId": in.RequestID, "accepted": in.Accept}, env.AckID)
}

func identityErrToAppErr(err error) error {
	switch err {
	case identity.ErrProfileNotFound:
		return apperr.New(apperr.CodeProfileNotFound)
	case identity.ErrFriendRequestExists:
		return apperr.New(apperr.CodeFriendRequestAlreadyExist)
	case identity.ErrAlreadyFriends:
		return apperr.New(apperr.CodeAlreadyFriends)
	case identity.ErrFriendRequestNotFound:
		return apperr.New(apperr.CodeFriendRequestNotFound)
	default:
		return apperr.Newf(apperr.CodeProfileNotFound, err.Error())
	}
}

// --- party invites -------------------------------------------------------

type partyInviteFriendPayload struct {
	TargetProfileID string `json:"targetProfileId"`
}

func (d *Dispatcher) handlePartyInviteFriend(c *Connection, env envelope) {
	in := decode[partyInviteFriendPayload](env)
	snap := c.Snapshot()
	if snap.ProfileID == "" {
		d.emitError(c, env.AckID, apperr.New(apperr.CodeAuthRequired))
		return
	}
	if in.TargetProfileID == snap.ProfileID {
		d.emitError(c, env.AckID, apperr.New(apperr.CodePartyInviteNotAllowed))
		return
	}

	target, online := d.Hub.byProfileID(in.TargetProfileID)
	if !online {
		d.emitError(c, env.AckID, apperr.New(apperr.CodeTargetNotOnline))
		return
	}
	if target.Snapshot().RoomCode != "" {
		d.emitError(c, env.AckID, apperr.New(apperr.CodeTargetAlreadyInParty))
		return
	}

	id := uuid.NewString()
	d.invitesMu.Lock()
	d.invites[id] = &partyInvite{FromProfileID: snap.ProfileID, ToProfileID: in.TargetProfileID, ExpiresAt: time.Now().Add(partyInviteTTL)}
	d.invitesMu.Unlock()

	_ = c.sendAck(OutPartyInviteSent, map[string]string{"inviteId": id}, env.AckID)
	_ = target.send(OutPartyInviteReceived, map[string]string{"inviteId": id, "fromProfileId": snap.ProfileID})
}

type partyInviteRespondPayload struct {
	InviteID string `json:"inviteId"`
	Accept   bool   `json:"accept"`
}

func (d *Dispatcher) handlePartyInviteRespond(c *Connection, env envelope) {
	in := decode[partyInviteRespondPayload](env)

	d.invitesMu.Lock()
	invite, ok := d.invites[in.InviteID]
	if ok {
		delete(d.invites, in.InviteID)
	}
	d.invitesMu.Unlock()

	if !ok {
		d.emitError(c, env.AckID, apperr.New(apperr.CodePartyInviteExpired))
		return
	}
	if time.Now().After(invite.ExpiresAt) {
		d.emitError(c, env.AckID, apperr.New(apperr.CodePartyInviteExpired))
		return
	}

	_ = c.sendAck(OutPartyInviteResponded, map[string]bool{"accepted": in.Accept}, env.AckID)
	if inviter, online := d.Hub.byProfileID(invite.FromProfileID); online {
		_ = inviter.send(OutPartyInviteResponded, map[string]any{"inviteId": in.InviteID, "accepted": in.Accept})
	}
}

// --- ads (stub surface; no monetization backend in this spec) ----------

func (d *Dispatcher) handleAds(c *Connection, env envelope) {
	_ = c.sendAck(OutAdsState, map[string]bool{"available": false}, env.AckID)
}

// --- helpers -------------------------------------------------------------

func (d *Dispatcher) roomAndPlayer(c *Connection) (*game.Room, *game.Player) {
	snap := c.Snapshot()
	if snap.RoomCode == "" {
		return nil, nil
	}
	room := d.Rooms.Get(snap.RoomCode)
	if room == nil {
		return nil, nil
	}
	p, ok := room.Players[snap.PlayerKey]
	if !ok {
		return room, nil
	}
	return room, p
}

func (d *Dispatcher) resolveRoom(c *Connection, explicitCode string) *game.Room {
	if explicitCode != "" {
		return d.Rooms.Get(explicitCode)
	}
	room, _ := d.roomAndPlayer(c)
	return room
}

func playerJoinedPayload(p *game.Player) map[string]any {
	return map[string]any{"playerKey": p.Key, "displayName": p.DisplayName, "ready": p.Ready}
}

type lobbyMemberView struct {
	PlayerKey   int    `json:"playerKey"`
	DisplayName string `json:"displayName"`
	Ready       bool   `json:"ready"`
}

type lobbySnapshot struct {
	RoomCode  string            `json:"roomCode"`
	LeaderKey int               `json:"leaderKey"`
	State     game.RoomState    `json:"state"`
	Members   []lobbyMemberView `json:"members"`
}

func lobbySnapshotOf(room *game.Room) lobbySnapshot {
	members := make([]lobbyMemberView, 0, len(room.Players))
	for _, p := range room.Players {
		members = append(members, lobbyMemberView{PlayerKey: p.Key, DisplayName: p.DisplayName, Ready: p.Ready})
	}
	return lobbySnapshot{RoomCode: room.Code, LeaderKey: room.LeaderKey, State: room.State, Members: members}
}

// recordStrikeMetric mirrors an anti-cheat escalation into the bounded
// prometheus counter; called from emitAntiCheatAction whenever a
// playerInput/fireProjectile strike crosses a new threshold.
func recordStrikeMetric(level anticheat.BlockLevel) {
	switch level {
	case anticheat.BlockSoft:
		recordAntiCheatAction("soft")
	case anticheat.BlockHard:
		recordAntiCheatAction("hard")
	default:
		recordAntiCheatAction("warn")
	}
}
