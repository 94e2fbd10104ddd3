// Package pg is the relational Identity-Store implementation, proving
// identity.Store is interchangeable with identity/memory. It is wired
// into cmd/server/main.go only when DATABASE_URL is set.
package pg

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"fightclub/internal/identity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is a jackc/pgx/v5-backed identity.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and runs pending goose migrations before
// returning the Store.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect identity database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping identity database: %w", err)
	}

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	db, err := goose.OpenDBWithDriver("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open migration driver: %w", err)
	}
	defer db.Close()
	if err := goose.Up(db, "migrations"); err != nil {
		return nil, fmt.Errorf("run identity migrations: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func randomID(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return prefix + "_" + hex.EncodeToString(b)
}

func friendCode() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}

func randCode6() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return fmt.Sprintf("%06d", n%1_000_000)
}

func (s *Store) EnsureGuestProfile(ctx context.Context, persistentID, nickname string) (identity.ProfileSnapshot, error) {
	var snap identity.ProfileSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT p.profile_id, p.nickname, p.friend_code, COALESCE(p.username, ''), p.is_guest
		FROM devices d JOIN profiles p ON p.profile_id = d.profile_id
		WHERE d.persistent_id = $1`, persistentID,
	).Scan(&snap.ProfileID, &snap.Nickname, &snap.FriendCode, &snap.Username, &snap.IsGuest)
	if err == nil {
		return snap, nil
	}
	if err != pgx.ErrNoRows {
		return identity.ProfileSnapshot{}, fmt.Errorf("lookup device profile: %w", err)
	}

	snap = identity.ProfileSnapshot{
		ProfileID:  randomID("profile"),
		Nickname:   nickname,
		FriendCode: friendCode(),
		IsGuest:    true,
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return identity.ProfileSnapshot{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO profiles (profile_id, nickname, friend_code, is_guest) VALUES ($1,$2,$3,true)`,
		snap.ProfileID, snap.Nickname, snap.FriendCode); err != nil {
		return identity.ProfileSnapshot{}, fmt.Errorf("insert profile: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO devices (persistent_id, profile_id) VALUES ($1,$2)`, persistentID, snap.ProfileID); err != nil {
		return identity.ProfileSnapshot{}, fmt.Errorf("bind device: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return identity.ProfileSnapshot{}, fmt.Errorf("commit tx: %w", err)
	}
	return snap, nil
}

func (s *Store) SetActiveProfileForDevice(ctx context.Context, persistentID, profileID string) (identity.ProfileSnapshot, error) {
	snap, err := s.GetProfileSnapshotByID(ctx, profileID)
	if err != nil {
		return identity.ProfileSnapshot{}, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO devices (persistent_id, profile_id) VALUES ($1,$2)
		ON CONFLICT (persistent_id) DO UPDATE SET profile_id = EXCLUDED.profile_id`, persistentID, profileID)
	if err != nil {
		return identity.ProfileSnapshot{}, fmt.Errorf("rebind device: %w", err)
	}
	return snap, nil
}

func (s *Store) SwitchToGuestProfileForDevice(ctx context.Context, persistentID, fallbackNickname string) (identity.ProfileSnapshot, error) {
	if _, err := s.pool.Exec(ctx, `DELETE FROM devices WHERE persistent_id = $1`, persistentID); err != nil {
		return identity.ProfileSnapshot{}, fmt.Errorf("unbind device: %w", err)
	}
	return s.EnsureGuestProfile(ctx, persistentID, fallbackNickname)
}

func (s *Store) GetProfileSnapshotByID(ctx context.Context, profileID string) (identity.ProfileSnapshot, error) {
	var snap identity.ProfileSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT profile_id, nickname, friend_code, COALESCE(username, ''), is_guest
		FROM profiles WHERE profile_id = $1`, profileID,
	).Scan(&snap.ProfileID, &snap.Nickname, &snap.FriendCode, &snap.Username, &snap.IsGuest)
	if err == pgx.ErrNoRows {
		return identity.ProfileSnapshot{}, identity.ErrProfileNotFound
	}
	if err != nil {
		return identity.ProfileSnapshot{}, fmt.Errorf("lookup profile: %w", err)
	}
	return snap, nil
}

func (s *Store) CreatePendingLinkedAccount(ctx context.Context, profileID, email, username, passwordHash string, codeTTL time.Duration) (identity.PendingLinkedAccount, error) {
	snap, err := s.GetProfileSnapshotByID(ctx, profileID)
	if err != nil {
		return identity.PendingLinkedAccount{}, err
	}
	if !snap.IsGuest {
		return identity.PendingLinkedAccount{}, identity.ErrProfileAlreadyLinked
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`, email).Scan(&exists); err != nil {
		return identity.PendingLinkedAccount{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return identity.PendingLinkedAccount{}, identity.ErrEmailAlreadyUsed
	}
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1)`, username).Scan(&exists); err != nil {
		return identity.PendingLinkedAccount{}, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return identity.PendingLinkedAccount{}, identity.ErrUsernameTaken
	}

	accountID := randomID("acct")
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (account_id, profile_id, email, username, password_hash)
		VALUES ($1,$2,$3,$4,$5)`, accountID, profileID, email, username, passwordHash); err != nil {
		return identity.PendingLinkedAccount{}, fmt.Errorf("insert account: %w", err)
	}

	now := time.Now()
	code := randCode6()
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO pending_verifications (email, code, window_at, last_sent, expires_at)
		VALUES ($1,$2,$3,$3,$4)`, email, code, now, now.Add(codeTTL)); err != nil {
		return identity.PendingLinkedAccount{}, fmt.Errorf("insert pending verification: %w", err)
	}

	return identity.PendingLinkedAccount{AccountID: accountID, VerificationCode: code, ExpiresAt: now.Add(codeTTL)}, nil
}

func (s *Store) ResendVerification(ctx context.Context, email string, codeTTL, cooldown time.Duration, perHourCap int) error {
	var lastSent, windowAt time.Time
	var sentCount int
	err := s.pool.QueryRow(ctx, `SELECT last_sent, window_at, sent_count FROM pending_verifications WHERE email = $1`, email).
		Scan(&lastSent, &windowAt, &sentCount)
	if err == pgx.ErrNoRows {
		return identity.ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup pending verification: %w", err)
	}

	now := time.Now()
	if now.Sub(lastSent) < cooldown {
		return &identity.RateLimitError{Err: identity.ErrVerificationRateLimited, RetryAfter: cooldown - now.Sub(lastSent)}
	}
	if now.Sub(windowAt) > time.Hour {
		windowAt = now
		sentCount = 0
	}
	if sentCount >= perHourCap {
		return &identity.RateLimitError{Err: identity.ErrVerificationRateLimited, RetryAfter: time.Hour - now.Sub(windowAt)}
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE pending_verifications
		SET code = $2, expires_at = $3, attempts = 0, last_sent = $4, sent_count = $5, window_at = $6
		WHERE email = $1`, email, randCode6(), now.Add(codeTTL), now, sentCount+1, windowAt)
	if err != nil {
		return fmt.Errorf("update pending verification: %w", err)
	}
	return nil
}

func (s *Store) VerifyEmailCode(ctx context.Context, email, otp string, maxAttempts int) error {
	var code string
	var attempts int
	var expiresAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT code, attempts, expires_at FROM pending_verifications WHERE email = $1`, email).
		Scan(&code, &attempts, &expiresAt)
	if err == pgx.ErrNoRows {
		return identity.ErrInvalidVerificationCode
	}
	if err != nil {
		return fmt.Errorf("lookup pending verification: %w", err)
	}
	if time.Now().After(expiresAt) {
		return identity.ErrVerificationCodeExpired
	}
	if attempts >= maxAttempts {
		return identity.ErrInvalidVerificationCode
	}
	if _, err := s.pool.Exec(ctx, `UPDATE pending_verifications SET attempts = attempts + 1 WHERE email = $1`, email); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if code != otp {
		return identity.ErrInvalidVerificationCode
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var profileID, username string
	if err := tx.QueryRow(ctx, `UPDATE accounts SET verified = true WHERE email = $1 RETURNING profile_id, username`, email).
		Scan(&profileID, &username); err != nil {
		return fmt.Errorf("mark account verified: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE profiles SET is_guest = false, username = $2 WHERE profile_id = $1`, profileID, username); err != nil {
		return fmt.Errorf("clear guest flag: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pending_verifications WHERE email = $1`, email); err != nil {
		return fmt.Errorf("clear pending verification: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) FindAccountByLogin(ctx context.Context, emailOrUsername string) (identity.AccountRow, error) {
	var row identity.AccountRow
	err := s.pool.QueryRow(ctx, `
		SELECT account_id, profile_id, email, username, password_hash, verified, suspended
		FROM accounts WHERE email = $1 OR username = $1`, emailOrUsername,
	).Scan(&row.AccountID, &row.ProfileID, &row.Email, &row.Username, &row.PasswordHash, &row.Verified, &row.Suspended)
	if err == pgx.ErrNoRows {
		return identity.AccountRow{}, identity.ErrProfileNotFound
	}
	if err != nil {
		return identity.AccountRow{}, fmt.Errorf("lookup account: %w", err)
	}
	return row, nil
}

func (s *Store) GetFriendsState(ctx context.Context, profileID string) (identity.FriendsState, error) {
	var state identity.FriendsState

	rows, err := s.pool.Query(ctx, `
		SELECT p.profile_id, p.nickname, p.friend_code, COALESCE(p.username, ''), p.is_guest
		FROM friend_requests f
		JOIN profiles p ON p.profile_id = CASE WHEN f.from_profile = $1 THEN f.to_profile ELSE f.from_profile END
		WHERE f.accepted AND (f.from_profile = $1 OR f.to_profile = $1)`, profileID)
	if err != nil {
		return state, fmt.Errorf("query friends: %w", err)
	}
	for rows.Next() {
		var snap identity.ProfileSnapshot
		if err := rows.Scan(&snap.ProfileID, &snap.Nickname, &snap.FriendCode, &snap.Username, &snap.IsGuest); err != nil {
			rows.Close()
			return state, fmt.Errorf("scan friend: %w", err)
		}
		state.Friends = append(state.Friends, snap)
	}
	rows.Close()

	incoming, err := s.pool.Query(ctx, `SELECT request_id, from_profile, to_profile, created_at FROM friend_requests WHERE NOT accepted AND to_profile = $1`, profileID)
	if err != nil {
		return state, fmt.Errorf("query incoming requests: %w", err)
	}
	for incoming.Next() {
		var fr identity.FriendRequest
		if err := incoming.Scan(&fr.RequestID, &fr.FromProfileID, &fr.ToProfileID, &fr.CreatedAt); err != nil {
			incoming.Close()
			return state, fmt.Errorf("scan incoming request: %w", err)
		}
		state.Incoming = append(state.Incoming, fr)
	}
	incoming.Close()

	outgoing, err := s.pool.Query(ctx, `SELECT request_id, from_profile, to_profile, created_at FROM friend_requests WHERE NOT accepted AND from_profile = $1`, profileID)
	if err != nil {
		return state, fmt.Errorf("query outgoing requests: %w", err)
	}
	for outgoing.Next() {
		var fr identity.FriendRequest
		if err := outgoing.Scan(&fr.RequestID, &fr.FromProfileID, &fr.ToProfileID, &fr.CreatedAt); err != nil {
			outgoing.Close()
			return state, fmt.Errorf("scan outgoing request: %w", err)
		}
		state.Outgoing = append(state.Outgoing, fr)
	}
	outgoing.Close()

	return state, nil
}

func (s *Store) SearchFriendProfiles(ctx context.Context, profileID, query string, limit int) ([]identity.ProfileSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT profile_id, nickname, friend_code, COALESCE(username, ''), is_guest
		FROM profiles
		WHERE profile_id != $1 AND (nickname ILIKE '%' || $2 || '%' OR username ILIKE '%' || $2 || '%' OR friend_code ILIKE $2)
		LIMIT $3`, profileID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	defer rows.Close()

	var results []identity.ProfileSnapshot
	for rows.Next() {
		var snap identity.ProfileSnapshot
		if err := rows.Scan(&snap.ProfileID, &snap.Nickname, &snap.FriendCode, &snap.Username, &snap.IsGuest); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, snap)
	}
	return results, nil
}

func (s *Store) SendFriendRequest(ctx context.Context, fromProfileID, toProfileID string) (identity.FriendRequest, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE accepted AND ((from_profile = $1 AND to_profile = $2) OR (from_profile = $2 AND to_profile = $1))
		)`, fromProfileID, toProfileID).Scan(&exists)
	if err != nil {
		return identity.FriendRequest{}, fmt.Errorf("check existing friendship: %w", err)
	}
	if exists {
		return identity.FriendRequest{}, identity.ErrAlreadyFriends
	}

	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM friend_requests WHERE NOT accepted AND from_profile = $1 AND to_profile = $2)`,
		fromProfileID, toProfileID).Scan(&exists)
	if err != nil {
		return identity.FriendRequest{}, fmt.Errorf("check pending request: %w", err)
	}
	if exists {
		return identity.FriendRequest{}, identity.ErrFriendRequestExists
	}

	requestID := randomID("freq")
	now := time.Now()
	if _, err := s.pool.Exec(ctx, `INSERT INTO friend_requests (request_id, from_profile, to_profile, created_at) VALUES ($1,$2,$3,$4)`,
		requestID, fromProfileID, toProfileID, now); err != nil {
		return identity.FriendRequest{}, fmt.Errorf("insert friend request: %w", err)
	}
	return identity.FriendRequest{RequestID: requestID, FromProfileID: fromProfileID, ToProfileID: toProfileID, CreatedAt: now}, nil
}

func (s *Store) RespondFriendRequest(ctx context.Context, profileID, requestID string, accept bool) error {
	if !accept {
		tag, err := s.pool.Exec(ctx, `DELETE FROM friend_requests WHERE request_id = $1 AND to_profile = $2 AND NOT accepted`, requestID, profileID)
		if err != nil {
			return fmt.Errorf("decline friend request: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return identity.ErrFriendRequestNotFound
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx, `UPDATE friend_requests SET accepted = true WHERE request_id = $1 AND to_profile = $2 AND NOT accepted`, requestID, profileID)
	if err != nil {
		return fmt.Errorf("accept friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrFriendRequestNotFound
	}
	return nil
}

var _ identity.Store = (*Store)(nil)
