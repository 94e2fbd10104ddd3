// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all server settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds tick-loop and broadcast timing settings.
type SimConfig struct {
	TickRate               int // Simulation ticks per second
	FullSnapshotIntervalMs int // Loaded from env only; the game broadcaster does not read it and forces a full snapshot every 1000ms
	MatchDurationSeconds   int // Length of a match once playing starts
	CountdownMs            int // starting -> playing delay
	RespawnDelayMs         int // death -> respawn delay (absent an instant-respawn charge)
	BuffRespawnMs          int // inactive buff -> active again delay
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:               30,
		FullSnapshotIntervalMs: 1000,
		MatchDurationSeconds:   110,
		CountdownMs:            3000,
		RespawnDelayMs:         3000,
		BuffRespawnMs:          6000,
	}
}

// SimFromEnv returns simulation configuration with environment overrides,
// clamping TICK_RATE and STATE_FULL_SNAPSHOT_INTERVAL_MS to their documented ranges.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		if tr < 10 {
			tr = 10
		}
		if tr > 60 {
			tr = 60
		}
		cfg.TickRate = tr
	}

	if ms := getEnvInt("STATE_FULL_SNAPSHOT_INTERVAL_MS", 0); ms > 0 {
		if ms < 250 {
			ms = 250
		}
		if ms > 5000 {
			ms = 5000
		}
		cfg.FullSnapshotIntervalMs = ms
	}

	return cfg
}

// =============================================================================
// SESSION CONFIGURATION
// =============================================================================

// SessionConfig holds the signing secret and token lifetime.
type SessionConfig struct {
	Secret  string
	TTLDays int
}

// DefaultSession returns development-safe defaults. Production deployments
// must set SESSION_SECRET.
func DefaultSession() SessionConfig {
	return SessionConfig{
		Secret:  "dev-insecure-session-secret-change-me",
		TTLDays: 14,
	}
}

// SessionFromEnv returns session configuration with environment overrides.
func SessionFromEnv() SessionConfig {
	cfg := DefaultSession()
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		cfg.Secret = s
	}
	return cfg
}

// =============================================================================
// ANTI-CHEAT CONFIGURATION
// =============================================================================

// AntiCheatMode selects whether escalations affect gameplay.
type AntiCheatMode string

const (
	AntiCheatObserve AntiCheatMode = "observe"
	AntiCheatEnforce AntiCheatMode = "enforce"
)

// AntiCheatConfig holds strike thresholds and block durations.
type AntiCheatConfig struct {
	Mode AntiCheatMode

	WarnThreshold int
	SoftThreshold int
	HardThreshold int

	SoftBlockMs int
	HardBlockMs int

	WindowMs      int // rolling strike window
	LogCooldownMs int // per-block audit log cooldown
}

// DefaultAntiCheat returns the spec's default thresholds and durations.
func DefaultAntiCheat() AntiCheatConfig {
	return AntiCheatConfig{
		Mode:          AntiCheatObserve,
		WarnThreshold: 3,
		SoftThreshold: 6,
		HardThreshold: 10,
		SoftBlockMs:   3000,
		HardBlockMs:   8000,
		WindowMs:      15000,
		LogCooldownMs: 1200,
	}
}

// AntiCheatFromEnv returns anti-cheat configuration with environment overrides.
func AntiCheatFromEnv() AntiCheatConfig {
	cfg := DefaultAntiCheat()

	if m := strings.ToLower(os.Getenv("ANTI_CHEAT_MODE")); m == string(AntiCheatEnforce) {
		cfg.Mode = AntiCheatEnforce
	}
	if v := getEnvInt("ANTI_CHEAT_WARN_THRESHOLD", 0); v > 0 {
		cfg.WarnThreshold = v
	}
	if v := getEnvInt("ANTI_CHEAT_SOFT_THRESHOLD", 0); v > 0 {
		cfg.SoftThreshold = v
	}
	if v := getEnvInt("ANTI_CHEAT_HARD_THRESHOLD", 0); v > 0 {
		cfg.HardThreshold = v
	}
	if v := getEnvInt("ANTI_CHEAT_SOFT_BLOCK_MS", 0); v > 0 {
		cfg.SoftBlockMs = v
	}
	if v := getEnvInt("ANTI_CHEAT_HARD_BLOCK_MS", 0); v > 0 {
		cfg.HardBlockMs = v
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP/WebSocket server settings.
type ServerConfig struct {
	Port int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{Port: 8080}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim       SimConfig
	Session   SessionConfig
	AntiCheat AntiCheatConfig
	Server    ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Sim:       SimFromEnv(),
		Session:   SessionFromEnv(),
		AntiCheat: AntiCheatFromEnv(),
		Server:    ServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
