package transport

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ipConnLimiter caps concurrent WebSocket connections per IP, the same
// atomic-counter idiom as the teacher's WebSocketRateLimiter.
type ipConnLimiter struct {
	connections sync.Map // map[string]*int32
	maxPerIP    int
}

func newIPConnLimiter(maxPerIP int) *ipConnLimiter {
	return &ipConnLimiter{maxPerIP: maxPerIP}
}

func (l *ipConnLimiter) allow(ip string) bool {
	actual, _ := l.connections.LoadOrStore(ip, new(int32))
	counter := actual.(*int32)
	for {
		current := atomic.LoadInt32(counter)
		if int(current) >= l.maxPerIP {
			return false
		}
		if atomic.CompareAndSwapInt32(counter, current, current+1) {
			return true
		}
	}
}

func (l *ipConnLimiter) release(ip string) {
	if val, ok := l.connections.Load(ip); ok {
		atomic.AddInt32(val.(*int32), -1)
	}
}

// eventBucketConfig is the per-event-type token bucket budget, §4.7's
// named limits.
var eventBucketConfig = map[string]struct {
	rate  rate.Limit
	burst int
}{
	evtRegisterPlayer:     {rate: rate.Every(10 * time.Second / 12), burst: 12},
	evtCreateRoom:         {rate: rate.Every(10 * time.Second / 4), burst: 4},
	evtJoinRoom:           {rate: rate.Every(10 * time.Second / 6), burst: 6},
	evtUpdateName:         {rate: rate.Every(10 * time.Second / 3), burst: 3},
	evtFriendsSendRequest: {rate: rate.Every(10 * time.Second / 5), burst: 5},
	evtFriendsSearch:      {rate: rate.Every(10 * time.Second / 5), burst: 5},
	evtPartyInviteFriend:  {rate: rate.Every(10 * time.Second / 5), burst: 5},
	evtKickPlayer:         {rate: rate.Every(10 * time.Second / 8), burst: 8},
	evtPlayerReady:        {rate: rate.Every(10 * time.Second / 20), burst: 20},
	evtToggleReady:        {rate: rate.Every(10 * time.Second / 20), burst: 20},
	evtStartGame:          {rate: rate.Every(10 * time.Second / 8), burst: 8},
	evtLeaveRoom:          {rate: rate.Every(10 * time.Second / 12), burst: 12},
	evtRequestLobbyState:  {rate: rate.Every(10 * time.Second / 20), burst: 20},
	evtReturnToLobby:      {rate: rate.Every(10 * time.Second / 20), burst: 20},
	evtPlayerInput:        {rate: rate.Every(time.Second / 90), burst: 90},
	evtFireProjectile:     {rate: rate.Every(time.Second / 18), burst: 18},
}

// defaultEventBucket governs any inbound event not named above — a
// generous ceiling so an unbounded event type can't be used to flood
// the dispatcher.
var defaultEventBucket = struct {
	rate  rate.Limit
	burst int
}{rate: rate.Every(time.Second / 20), burst: 30}

// eventLimiter buckets per (connection id, event name), generalizing the
// teacher's per-IP rate.Limiter map to per-event-per-connection budgets.
type eventLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newEventLimiter() *eventLimiter {
	return &eventLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (e *eventLimiter) allow(connID, event string) bool {
	key := connID + "|" + event
	e.mu.Lock()
	limiter, ok := e.limiters[key]
	if !ok {
		cfg, named := eventBucketConfig[event]
		if !named {
			cfg = defaultEventBucket
		}
		limiter = rate.NewLimiter(cfg.rate, cfg.burst)
		e.limiters[key] = limiter
	}
	e.mu.Unlock()
	return limiter.Allow()
}

func (e *eventLimiter) forget(connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	prefix := connID + "|"
	for key := range e.limiters {
		if strings.HasPrefix(key, prefix) {
			delete(e.limiters, key)
		}
	}
}

// clientIP extracts the request's source IP, honoring X-Forwarded-For
// and X-Real-IP the way the teacher's GetClientIP does for requests
// behind a trusted proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// allowedOrigins mirrors the teacher's origin allowlist, generalized off
// the Kick.com-specific entries since this spec has no streaming platform.
var allowedOrigins = []string{
	"http://localhost",
	"http://localhost:3000",
	"http://localhost:8080",
}

func isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	if strings.HasPrefix(origin, "http://localhost") {
		return true
	}
	for _, allowed := range allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
