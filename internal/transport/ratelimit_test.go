package transport

import (
	"net/http"
	"testing"
)

func TestIPConnLimiterCapsPerIP(t *testing.T) {
	l := newIPConnLimiter(2)
	if !l.allow("1.2.3.4") || !l.allow("1.2.3.4") {
		t.Fatal("expected first two connections from same IP to be allowed")
	}
	if l.allow("1.2.3.4") {
		t.Fatal("expected third connection from same IP to be rejected")
	}
	l.release("1.2.3.4")
	if !l.allow("1.2.3.4") {
		t.Fatal("expected a slot to free up after release")
	}
}

func TestIPConnLimiterIndependentPerIP(t *testing.T) {
	l := newIPConnLimiter(1)
	if !l.allow("1.1.1.1") || !l.allow("2.2.2.2") {
		t.Fatal("distinct IPs should not share a budget")
	}
}

func TestEventLimiterNamedBucketBurst(t *testing.T) {
	e := newEventLimiter()
	for i := 0; i < 4; i++ {
		if !e.allow("conn1", evtCreateRoom) {
			t.Fatalf("expected createRoom call %d within burst to be allowed", i)
		}
	}
	if e.allow("conn1", evtCreateRoom) {
		t.Fatal("expected createRoom burst of 4 to be exhausted")
	}
}

func TestEventLimiterPerConnectionIsolated(t *testing.T) {
	e := newEventLimiter()
	for i := 0; i < 4; i++ {
		e.allow("connA", evtCreateRoom)
	}
	if !e.allow("connB", evtCreateRoom) {
		t.Fatal("a different connection should have its own bucket")
	}
}

func TestEventLimiterForgetClearsBuckets(t *testing.T) {
	e := newEventLimiter()
	for i := 0; i < 4; i++ {
		e.allow("connX", evtCreateRoom)
	}
	e.forget("connX")
	if _, ok := e.limiters["connX|"+evtCreateRoom]; ok {
		t.Fatal("expected forget to remove the connection's buckets")
	}
}

func TestEventLimiterFireProjectileBurstMatchesSpec(t *testing.T) {
	e := newEventLimiter()
	for i := 0; i < 18; i++ {
		if !e.allow("conn1", evtFireProjectile) {
			t.Fatalf("expected fireProjectile call %d within the 18/1s burst to be allowed", i)
		}
	}
	if e.allow("conn1", evtFireProjectile) {
		t.Fatal("expected fireProjectile burst of 18 to be exhausted")
	}
}

func TestEventLimiterPlayerInputBurstMatchesSpec(t *testing.T) {
	e := newEventLimiter()
	for i := 0; i < 90; i++ {
		if !e.allow("conn1", evtPlayerInput) {
			t.Fatalf("expected playerInput call %d within the 90/1s burst to be allowed", i)
		}
	}
	if e.allow("conn1", evtPlayerInput) {
		t.Fatal("expected playerInput burst of 90 to be exhausted")
	}
}

func TestEventLimiterUnnamedEventUsesDefaultBucket(t *testing.T) {
	e := newEventLimiter()
	if !e.allow("conn1", "someUnlistedEvent") {
		t.Fatal("expected first call on an unnamed event to be allowed via default bucket")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "10.0.0.1:9999"
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := clientIP(r); got != "203.0.113.5" {
		t.Fatalf("expected first X-Forwarded-For hop, got %q", got)
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "192.168.1.5:1234"
	if got := clientIP(r); got != "192.168.1.5" {
		t.Fatalf("expected host parsed from RemoteAddr, got %q", got)
	}
}

func TestIsAllowedOriginLocalhostAndEmpty(t *testing.T) {
	if isAllowedOrigin("") {
		t.Fatal("empty origin must never be allowed")
	}
	if !isAllowedOrigin("http://localhost:5173") {
		t.Fatal("any localhost origin should be allowed")
	}
	if isAllowedOrigin("http://evil.example.com") {
		t.Fatal("unlisted origin must be rejected")
	}
}
