// Package session issues and verifies the signed tokens that bind a
// WebSocket connection to a persistent device id across reconnects.
// The token format follows the same HMAC-over-base64 shape the teacher
// uses for its admin session cookie, generalized to carry the full
// payload instead of a bare opaque session id.
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fightclub/internal/apperr"
)

// Payload is the data carried inside a session token: `base64url(JSON{pid,
// name, exp, nonce, uid?, fc?, un?})`.
type Payload struct {
	PersistentID string    `json:"pid"`
	DisplayName  string    `json:"name"`
	ExpiresAt    time.Time `json:"exp"`
	Nonce        string    `json:"nonce"`
	ProfileID    string    `json:"uid,omitempty"`
	FriendCode   string    `json:"fc,omitempty"`
	Username     string    `json:"un,omitempty"`
}

// Expired reports whether the payload's expiry has passed as of now.
func (p Payload) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// IssueOptions carries the optional profile fields a token may bind, set
// once the Identity-Store has resolved or linked an account.
type IssueOptions struct {
	ProfileID  string
	FriendCode string
	Username   string
}

// Manager issues and verifies session tokens signed with a single
// server-wide secret. It is stateless beyond the secret — no session
// table is kept, since the payload itself carries everything a
// reconnect needs to verify.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager builds a Manager from a secret and token lifetime.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// Issue creates a fresh, signed token for persistentID with TTL from now.
func (m *Manager) Issue(persistentID, displayName string, now time.Time, opts IssueOptions) (string, error) {
	nonce, err := randomNonce()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	payload := Payload{
		PersistentID: persistentID,
		DisplayName:  displayName,
		ExpiresAt:    now.Add(m.ttl),
		Nonce:        nonce,
		ProfileID:    opts.ProfileID,
		FriendCode:   opts.FriendCode,
		Username:     opts.Username,
	}
	return m.encode(payload)
}

// Verify decodes and authenticates token, returning its payload. It
// fails with apperr.CodeAuthRequired if the signature is invalid,
// malformed, or the payload has expired.
func (m *Manager) Verify(token string, now time.Time) (Payload, error) {
	var payload Payload

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return payload, apperr.Newf(apperr.CodeAuthRequired, "malformed token")
	}

	rawPayload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return payload, apperr.Newf(apperr.CodeAuthRequired, "invalid payload encoding")
	}
	providedSig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return payload, apperr.Newf(apperr.CodeAuthRequired, "invalid signature encoding")
	}

	expectedSig := m.sign(rawPayload)
	if !hmac.Equal(providedSig, expectedSig) {
		return payload, apperr.Newf(apperr.CodeAuthRequired, "signature mismatch")
	}

	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return payload, apperr.Newf(apperr.CodeAuthRequired, "invalid payload json")
	}

	if payload.Expired(now) {
		return payload, apperr.Newf(apperr.CodeAuthRequired, "token expired")
	}

	return payload, nil
}

func (m *Manager) encode(payload Payload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	sig := m.sign(raw)
	return base64.RawURLEncoding.EncodeToString(raw) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func (m *Manager) sign(raw []byte) []byte {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write(raw)
	return mac.Sum(nil)
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
