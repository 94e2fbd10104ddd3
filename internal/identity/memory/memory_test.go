package memory

import (
	"context"
	"testing"
	"time"

	"fightclub/internal/identity"
)

func TestEnsureGuestProfileIsIdempotentPerDevice(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.EnsureGuestProfile(ctx, "device-1", "Nick")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.EnsureGuestProfile(ctx, "device-1", "Nick")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ProfileID != second.ProfileID {
		t.Error("expected the same profile id on repeated calls for one device")
	}
	if !first.IsGuest {
		t.Error("expected a freshly created profile to be a guest")
	}
}

func TestCreatePendingLinkedAccountRejectsDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	p, _ := s.EnsureGuestProfile(ctx, "device-1", "A")
	other, _ := s.EnsureGuestProfile(ctx, "device-2", "B")

	if _, err := s.CreatePendingLinkedAccount(ctx, p.ProfileID, "a@example.com", "alice", "hash", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.CreatePendingLinkedAccount(ctx, other.ProfileID, "a@example.com", "bob", "hash", time.Minute); err != identity.ErrEmailAlreadyUsed {
		t.Errorf("expected ErrEmailAlreadyUsed, got %v", err)
	}
}

func TestVerifyEmailCodeClearsGuestFlag(t *testing.T) {
	s := New()
	ctx := context.Background()
	p, _ := s.EnsureGuestProfile(ctx, "device-1", "A")
	pending, err := s.CreatePendingLinkedAccount(ctx, p.ProfileID, "a@example.com", "alice", "hash", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.VerifyEmailCode(ctx, "a@example.com", pending.VerificationCode, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := s.GetProfileSnapshotByID(ctx, p.ProfileID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.IsGuest {
		t.Error("expected profile no longer guest after verification")
	}
}

func TestVerifyEmailCodeRejectsWrongOTP(t *testing.T) {
	s := New()
	ctx := context.Background()
	p, _ := s.EnsureGuestProfile(ctx, "device-1", "A")
	s.CreatePendingLinkedAccount(ctx, p.ProfileID, "a@example.com", "alice", "hash", time.Minute)

	if err := s.VerifyEmailCode(ctx, "a@example.com", "000000", 5); err != identity.ErrInvalidVerificationCode {
		t.Errorf("expected ErrInvalidVerificationCode, got %v", err)
	}
}

func TestSendFriendRequestRejectsDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, _ := s.EnsureGuestProfile(ctx, "device-1", "A")
	b, _ := s.EnsureGuestProfile(ctx, "device-2", "B")

	if _, err := s.SendFriendRequest(ctx, a.ProfileID, b.ProfileID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.SendFriendRequest(ctx, a.ProfileID, b.ProfileID); err != identity.ErrFriendRequestExists {
		t.Errorf("expected ErrFriendRequestExists, got %v", err)
	}
}

func TestRespondFriendRequestAcceptMakesFriends(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, _ := s.EnsureGuestProfile(ctx, "device-1", "A")
	b, _ := s.EnsureGuestProfile(ctx, "device-2", "B")
	req, _ := s.SendFriendRequest(ctx, a.ProfileID, b.ProfileID)

	if err := s.RespondFriendRequest(ctx, b.ProfileID, req.RequestID, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err := s.GetFriendsState(ctx, a.ProfileID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.Friends) != 1 || state.Friends[0].ProfileID != b.ProfileID {
		t.Errorf("expected a to have b as a friend, got %+v", state.Friends)
	}
}

func TestRespondFriendRequestDeclineRemovesRequest(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, _ := s.EnsureGuestProfile(ctx, "device-1", "A")
	b, _ := s.EnsureGuestProfile(ctx, "device-2", "B")
	req, _ := s.SendFriendRequest(ctx, a.ProfileID, b.ProfileID)

	if err := s.RespondFriendRequest(ctx, b.ProfileID, req.RequestID, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.SendFriendRequest(ctx, a.ProfileID, b.ProfileID); err != nil {
		t.Errorf("expected a fresh request allowed after decline, got %v", err)
	}
}
