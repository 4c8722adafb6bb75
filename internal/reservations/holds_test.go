package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pitchpoint/pitchpoint-backend/pkg/db/models"
	"github.com/pitchpoint/pitchpoint-backend/pkg/enums"
)

func TestHoldGuardedTransitionSingleWinner(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewHoldRepository(db)

	siteID := uuid.New()
	in := date(2026, 7, 1)
	out := date(2026, 7, 3)
	hold := &models.Hold{
		Kind:       enums.HoldKindSiteWindow,
		GuestID:    uuid.New(),
		TargetType: enums.PaymentTargetBooking,
		TargetID:   uuid.New(),
		SiteID:     &siteID,
		CheckIn:    &in,
		CheckOut:   &out,
		Units:      1,
		ExpiresAt:  time.Now().Add(30 * time.Minute),
	}
	if err := repo.Create(ctx, hold); err != nil {
		t.Fatalf("create hold: %v", err)
	}
	if hold.Status != enums.HoldStatusPending {
		t.Fatalf("expected pending default, got %s", hold.Status)
	}

	now := time.Now().UTC()
	won, err := repo.MarkConfirmed(ctx, hold.ID, now)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !won {
		t.Fatal("expected confirmation to win")
	}

	// The racing expiry must lose once the hold is confirmed.
	won, err = repo.MarkExpired(ctx, hold.ID, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if won {
		t.Fatal("expected expiry to lose against confirmed hold")
	}

	stored, err := repo.FindByID(ctx, hold.ID)
	if err != nil {
		t.Fatalf("load hold: %v", err)
	}
	if stored.Status != enums.HoldStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", stored.Status)
	}
	if stored.ConfirmedAt == nil {
		t.Fatal("expected confirmed_at to be set")
	}
}

func TestHoldExpiryWinsAgainstLateConfirmation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewHoldRepository(db)

	productID := uuid.New()
	hold := &models.Hold{
		Kind:       enums.HoldKindProductStock,
		GuestID:    uuid.New(),
		TargetType: enums.PaymentTargetOrder,
		TargetID:   uuid.New(),
		ProductID:  &productID,
		Qty:        2,
		ExpiresAt:  time.Now().Add(-time.Minute),
	}
	if err := repo.Create(ctx, hold); err != nil {
		t.Fatalf("create hold: %v", err)
	}

	now := time.Now().UTC()
	won, err := repo.MarkExpired(ctx, hold.ID, now)
	if err != nil || !won {
		t.Fatalf("expected expiry to win: won=%v err=%v", won, err)
	}

	won, err = repo.MarkConfirmed(ctx, hold.ID, now)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if won {
		t.Fatal("expected late confirmation to lose")
	}
}

func TestFindExpiredPending(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewHoldRepository(db)

	mk := func(expiresAt time.Time, status enums.HoldStatus) *models.Hold {
		productID := uuid.New()
		hold := &models.Hold{
			Kind:       enums.HoldKindProductStock,
			Status:     status,
			GuestID:    uuid.New(),
			TargetType: enums.PaymentTargetOrder,
			TargetID:   uuid.New(),
			ProductID:  &productID,
			Qty:        1,
			ExpiresAt:  expiresAt,
		}
		if err := repo.Create(ctx, hold); err != nil {
			t.Fatalf("create hold: %v", err)
		}
		return hold
	}

	now := time.Now().UTC()
	overdue := mk(now.Add(-time.Hour), enums.HoldStatusPending)
	mk(now.Add(time.Hour), enums.HoldStatusPending)
	mk(now.Add(-time.Hour), enums.HoldStatusConfirmed)

	due, err := repo.FindExpiredPending(ctx, now, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(due) != 1 || due[0].ID != overdue.ID {
		t.Fatalf("expected only the overdue pending hold, got %d", len(due))
	}
}
