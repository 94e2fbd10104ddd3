package transport

import (
	"context"
	"log"
	"net/http"
	"time"

	"fightclub/internal/game"
)

// Server is the top-level process wrapper: an HTTP server serving the
// WebSocket/telemetry router plus the single goroutine driving the
// simulation tick, generalizing the teacher's cmd/server main loop into
// a reusable type cmd/server can construct and shut down.
type Server struct {
	http   *http.Server
	hub    *Hub
	engine *game.Engine

	tickRate int
	stopTick chan struct{}
	tickDone chan struct{}
}

// NewServer builds a Server bound to addr, wiring router with hub.
func NewServer(addr string, hub *Hub, engine *game.Engine, tickRate int) *Server {
	router := NewRouter(RouterConfig{Hub: hub})
	return &Server{
		http:     &http.Server{Addr: addr, Handler: router},
		hub:      hub,
		engine:   engine,
		tickRate: tickRate,
		stopTick: make(chan struct{}),
		tickDone: make(chan struct{}),
	}
}

// Run starts the tick loop and serves HTTP until the listener errors or
// is closed by Shutdown.
func (s *Server) Run() error {
	go s.tickLoop()
	log.Printf("🎮 fightclub server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the tick loop and drains the HTTP server within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopTick)
	<-s.tickDone
	return s.http.Shutdown(ctx)
}

func (s *Server) tickLoop() {
	defer close(s.tickDone)
	interval := time.Second / time.Duration(s.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopTick:
			return
		case now := <-ticker.C:
			start := time.Now()
			outcomes := s.engine.Tick(now)
			for _, outcome := range outcomes {
				s.broadcastOutcome(outcome)
			}
			recordTick(time.Since(start))
			updateRoomCount(len(s.engine.Rooms.AllRooms()))
		}
	}
}

func (s *Server) broadcastOutcome(outcome game.TickOutcome) {
	room := outcome.Room

	if outcome.JustStarted {
		s.hub.BroadcastRoom(room.Code, OutCountdownStart, map[string]any{"map": room.SelectedMap, "startingAt": room.StartingAt})
		return
	}

	s.hub.BroadcastRoom(room.Code, OutStateUpdate, outcome.Frame)

	for _, hit := range outcome.MapHitPoints {
		s.hub.BroadcastRoom(room.Code, OutHitEffect, map[string]float64{"x": hit.X, "y": hit.Y})
	}

	for _, ke := range outcome.Kills {
		s.hub.BroadcastRoom(room.Code, OutPlayerKilled, map[string]any{
			"killerKey": ke.KillerKey, "victimKey": ke.VictimKey,
			"chainCount": ke.ChainCount, "tier": ke.Tier,
		})
		if ke.InstantRespawn {
			s.hub.BroadcastRoom(room.Code, OutInstantRespawnUsed, map[string]any{
				"playerKey": ke.VictimKey, "remainingCharges": ke.RemainingCharges,
			})
		}
	}

	for _, key := range outcome.Respawns {
		s.hub.BroadcastRoom(room.Code, OutPlayerRespawn, map[string]int{"playerKey": key})
	}

	for _, b := range outcome.BuffRespawns {
		s.hub.BroadcastRoom(room.Code, OutBuffRespawn, map[string]any{"id": b.ID, "x": b.X, "y": b.Y, "type": b.Type})
	}

	if outcome.MatchEnded {
		s.hub.BroadcastRoom(room.Code, OutGameEnd, map[string]any{"results": outcome.MatchResults})
		s.hub.BroadcastRoom(room.Code, OutMatchResultsPending, map[string]any{"roomCode": room.Code})
	}
}
