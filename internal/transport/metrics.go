package transport

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carry bounded cardinality only — no per-player or per-room
// labels — matching the teacher's observability.go comment and design.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fightclub_tick_duration_seconds",
		Help:    "Time spent running one simulation tick across all rooms",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	roomCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fightclub_room_count",
		Help: "Current number of live rooms",
	})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fightclub_player_count",
		Help: "Current number of seated players across all rooms",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fightclub_connection_rejected_total",
		Help: "WebSocket connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // bounded: "origin", "total_limit", "ip_limit"

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fightclub_websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fightclub_websocket_messages_total",
		Help: "Total inbound WebSocket messages processed",
	})

	antiCheatActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fightclub_anticheat_actions_total",
		Help: "Anti-abuse strike escalations by level",
	}, []string{"level"}) // bounded: "warn", "soft", "hard"
)

func recordTick(d time.Duration)          { tickDuration.Observe(d.Seconds()) }
func updateRoomCount(n int)               { roomCount.Set(float64(n)) }
func updatePlayerCount(n int)             { playerCount.Set(float64(n)) }
func recordConnectionRejected(reason string) { connectionRejected.WithLabelValues(reason).Inc() }
func updateWSConnections(n int)           { wsConnectionsActive.Set(float64(n)) }
func incrementWSMessages()                { wsMessagesTotal.Inc() }
func recordAntiCheatAction(level string)  { antiCheatActionsTotal.WithLabelValues(level).Inc() }

// HealthHandler is the plain liveness probe the admin router exposes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
