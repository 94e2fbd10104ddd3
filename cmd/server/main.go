package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"fightclub/internal/anticheat"
	"fightclub/internal/config"
	"fightclub/internal/game"
	"fightclub/internal/identity"
	"fightclub/internal/identity/memory"
	"fightclub/internal/identity/pg"
	"fightclub/internal/session"
	"fightclub/internal/transport"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  FIGHT CLUB ARENA - GO ENGINE")
	log.Println("🎮 ================================")

	appConfig := config.Load()

	log.Printf("🎮 Config: %d TPS, %ds match, %dms countdown, anti-cheat mode=%s",
		appConfig.Sim.TickRate, appConfig.Sim.MatchDurationSeconds, appConfig.Sim.CountdownMs, appConfig.AntiCheat.Mode)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	rooms := game.NewRoomStore(rng)
	catalog, err := game.LoadEmbeddedCatalog()
	if err != nil {
		log.Fatalf("❌ failed to load map catalog: %v", err)
	}
	rewards := game.NewRewardStore()
	results := game.NewMatchResultBuffer()
	reconnect := game.NewReconnectGuard()

	auditDir := getEnvWithDefault("ANTI_CHEAT_AUDIT_DIR", "audit")
	auditLog := anticheat.NewAuditLog(auditDir)

	engine := game.NewEngine(rooms, catalog, rewards, results, auditLog, appConfig.AntiCheat, appConfig.Sim, rng)

	sessionTTL := time.Duration(appConfig.Session.TTLDays) * 24 * time.Hour
	sessions := session.NewManager(appConfig.Session.Secret, sessionTTL)

	identityStore := newIdentityStore()

	hub := transport.NewHub()
	hub.Dispatcher = transport.NewDispatcher(hub, engine, rooms, catalog, sessions, identityStore, reconnect, rng)

	port := appConfig.Server.Port
	addr := ":" + strconv.Itoa(port)
	srv := transport.NewServer(addr, hub, engine, appConfig.Sim.TickRate)

	go func() {
		log.Printf("🌐 fightclub listening on http://localhost%s (ws: /ws)", addr)
		if err := srv.Run(); err != nil {
			log.Fatalf("❌ server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️ shutdown error: %v", err)
	}
	if closer, ok := identityStore.(interface{ Close() }); ok {
		closer.Close()
	}
	log.Println("👋 Goodbye!")
}

// newIdentityStore picks the relational Identity-Store when DATABASE_URL
// is set, the in-memory one otherwise — the two are interchangeable
// behind identity.Store so this is the only place that decides.
func newIdentityStore() identity.Store {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Println("💡 DATABASE_URL not set, using in-memory identity store")
		return memory.New()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := pg.Open(ctx, dbURL)
	if err != nil {
		log.Fatalf("❌ failed to open identity store: %v", err)
	}
	log.Println("✅ Connected to relational identity store")
	return store
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
