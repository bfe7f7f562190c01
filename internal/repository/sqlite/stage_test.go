package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/runclub/internal/apperror"
	"github.com/sakif/runclub/internal/model"
)

func addTestSignup(t *testing.T, db *DB, stage int, userID, userName string, guest bool) *model.StageSignup {
	t.Helper()
	signup := &model.StageSignup{
		UserID:     userID,
		UserName:   userName,
		IsGuest:    guest,
		IsVerified: !guest,
	}
	if err := db.AddSignup(context.Background(), stage, signup); err != nil {
		t.Fatalf("failed to add test signup: %v", err)
	}
	return signup
}

func TestAddSignup_AndList(t *testing.T) {
	db := newTestDB(t)

	first := addTestSignup(t, db, 3, "fb-1", "Kari", false)
	second := addTestSignup(t, db, 3, "guest-abc", "Ola", true)
	addTestSignup(t, db, 7, "fb-2", "Per", false) // different stage

	signups, err := db.ListSignups(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListSignups() error = %v", err)
	}
	if len(signups) != 2 {
		t.Fatalf("ListSignups() returned %d signups, want 2", len(signups))
	}
	if signups[0].ID != first.ID || signups[1].ID != second.ID {
		t.Errorf("signup order = [%s %s], want [%s %s]",
			signups[0].ID, signups[1].ID, first.ID, second.ID)
	}
	if signups[0].IsGuest || !signups[1].IsGuest {
		t.Error("guest flags did not round-trip")
	}
	if !signups[0].IsVerified || signups[1].IsVerified {
		t.Error("verified flags did not round-trip")
	}
}

func TestListAllSignups_GroupedByStage(t *testing.T) {
	db := newTestDB(t)

	addTestSignup(t, db, 1, "fb-1", "Kari", false)
	addTestSignup(t, db, 1, "fb-2", "Ola", false)
	addTestSignup(t, db, 15, "fb-3", "Per", false)

	all, err := db.ListAllSignups(context.Background())
	if err != nil {
		t.Fatalf("ListAllSignups() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d stages with signups, want 2", len(all))
	}
	if len(all[1]) != 2 {
		t.Errorf("stage 1 has %d signups, want 2", len(all[1]))
	}
	if len(all[15]) != 1 {
		t.Errorf("stage 15 has %d signups, want 1", len(all[15]))
	}
}

func TestSetVerified(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	guest := addTestSignup(t, db, 5, "guest-abc", "Ola", true)

	if err := db.SetVerified(ctx, 5, guest.ID); err != nil {
		t.Fatalf("SetVerified() error = %v", err)
	}

	found, err := db.GetSignup(ctx, 5, guest.ID)
	if err != nil {
		t.Fatalf("GetSignup() error = %v", err)
	}
	if !found.IsVerified {
		t.Error("signup still unverified after SetVerified()")
	}
}

func TestSetVerified_WrongStage(t *testing.T) {
	db := newTestDB(t)
	guest := addTestSignup(t, db, 5, "guest-abc", "Ola", true)

	// The signup exists, but on another stage — must not be matched.
	err := db.SetVerified(context.Background(), 6, guest.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("SetVerified() wrong stage: error = %v, want ErrNotFound", err)
	}
}

func TestDeleteSignup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	signup := addTestSignup(t, db, 2, "fb-1", "Kari", false)

	if err := db.DeleteSignup(ctx, 2, signup.ID); err != nil {
		t.Fatalf("DeleteSignup() error = %v", err)
	}

	_, err := db.GetSignup(ctx, 2, signup.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSignup() after delete: error = %v, want ErrNotFound", err)
	}
}

func TestStageState_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// A stage nobody touched is unlocked and unpaid.
	lockedIn, paid, err := db.StageState(ctx, 4)
	if err != nil {
		t.Fatalf("StageState() error = %v", err)
	}
	if lockedIn != "" || paid {
		t.Errorf("fresh stage: lockedIn=%q paid=%v, want empty/false", lockedIn, paid)
	}

	signup := addTestSignup(t, db, 4, "fb-1", "Kari", false)
	if err := db.SetLockedIn(ctx, 4, signup.ID); err != nil {
		t.Fatalf("SetLockedIn() error = %v", err)
	}
	if err := db.SetPaymentReceived(ctx, 4, true); err != nil {
		t.Fatalf("SetPaymentReceived() error = %v", err)
	}

	lockedIn, paid, err = db.StageState(ctx, 4)
	if err != nil {
		t.Fatalf("StageState() after lock: %v", err)
	}
	if lockedIn != signup.ID {
		t.Errorf("lockedIn = %q, want %q", lockedIn, signup.ID)
	}
	if !paid {
		t.Error("payment flag not set")
	}

	// Unlocking clears both the runner and the payment flag.
	if err := db.ClearLockedIn(ctx, 4); err != nil {
		t.Fatalf("ClearLockedIn() error = %v", err)
	}
	lockedIn, paid, err = db.StageState(ctx, 4)
	if err != nil {
		t.Fatalf("StageState() after unlock: %v", err)
	}
	if lockedIn != "" || paid {
		t.Errorf("after unlock: lockedIn=%q paid=%v, want empty/false", lockedIn, paid)
	}
}
