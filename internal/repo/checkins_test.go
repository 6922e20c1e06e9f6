package repo

import (
	"context"
	"testing"

	"github.com/tbourn/go-habit-mail/internal/domain"
)

func TestUpsertCheckin_Accumulates(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	u := mustUser(t, db, "a@example.com")
	h, _ := CreateHabit(ctx, db, u.ID, "water", ptrS("glasses"), ptrF(8))

	cases := []struct {
		name      string
		in        domain.Checkin
		wantValue *float64
		wantDone  bool
		wantNote  *string
	}{
		{"first insert", domain.Checkin{Value: ptrF(2), Status: "full", Done: true}, ptrF(2), true, nil},
		{"sums numeric", domain.Checkin{Value: ptrF(3), Status: "partial", Done: true, Note: ptrS("late")}, ptrF(5), true, ptrS("late")},
		{"null keeps existing", domain.Checkin{Status: "skip"}, ptrF(5), false, nil},
	}
	for _, tc := range cases {
		c := tc.in
		c.UserID, c.HabitID, c.Date = u.ID, h.ID, "2025-01-02"
		got, err := UpsertCheckin(ctx, db, &c)
		if err != nil {
			t.Fatalf("%s: UpsertCheckin: %v", tc.name, err)
		}
		if (got.Value == nil) != (tc.wantValue == nil) || (got.Value != nil && *got.Value != *tc.wantValue) {
			t.Fatalf("%s: value=%v want %v", tc.name, got.Value, tc.wantValue)
		}
		if got.Status != tc.in.Status || got.Done != tc.wantDone {
			t.Fatalf("%s: status=%s done=%v", tc.name, got.Status, got.Done)
		}
		if (got.Note == nil) != (tc.wantNote == nil) {
			t.Fatalf("%s: note=%v want %v", tc.name, got.Note, tc.wantNote)
		}
	}

	var n int64
	db.Model(&domain.Checkin{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected one row per day, got %d", n)
	}
}

func TestUpsertCheckin_NullThenValue(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	u := mustUser(t, db, "a@example.com")
	h, _ := CreateHabit(ctx, db, u.ID, "vitamins", nil, nil)

	if _, err := UpsertCheckin(ctx, db, &domain.Checkin{UserID: u.ID, HabitID: h.ID, Date: "2025-01-02", Status: "full", Done: true}); err != nil {
		t.Fatalf("first: %v", err)
	}
	got, err := UpsertCheckin(ctx, db, &domain.Checkin{UserID: u.ID, HabitID: h.ID, Date: "2025-01-02", Value: ptrF(1), Status: "full", Done: true})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if got.Value == nil || *got.Value != 1 {
		t.Fatalf("value=%v want 1", got.Value)
	}
}

func TestCheckinReads(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	u := mustUser(t, db, "a@example.com")
	water, _ := CreateHabit(ctx, db, u.ID, "water", ptrS("glasses"), ptrF(8))
	yoga, _ := CreateHabit(ctx, db, u.ID, "yoga", nil, nil)

	if d, err := FirstCheckinDate(ctx, db, u.ID); err != nil || d != "" {
		t.Fatalf("FirstCheckinDate on empty: %q err=%v", d, err)
	}

	for _, c := range []domain.Checkin{
		{HabitID: water.ID, Date: "2025-01-06", Value: ptrF(6), Status: "full", Done: true},
		{HabitID: water.ID, Date: "2025-01-07", Value: ptrF(9), Status: "full", Done: true},
		{HabitID: yoga.ID, Date: "2025-01-07", Status: "skip"},
		{HabitID: yoga.ID, Date: "2025-01-09", Status: "full", Done: true},
	} {
		c.UserID = u.ID
		if _, err := UpsertCheckin(ctx, db, &c); err != nil {
			t.Fatalf("UpsertCheckin: %v", err)
		}
	}

	today, err := CheckinsOn(ctx, db, u.ID, "2025-01-07")
	if err != nil || len(today) != 2 {
		t.Fatalf("CheckinsOn: n=%d err=%v", len(today), err)
	}
	if today[0].HabitName != "water" || today[0].Unit == nil || *today[0].Unit != "glasses" || today[0].Goal == nil {
		t.Fatalf("joined habit fields missing: %+v", today[0])
	}
	if today[1].HabitName != "yoga" || today[1].Done || today[1].Value != nil {
		t.Fatalf("unexpected skip row: %+v", today[1])
	}

	week, err := CheckinsBetween(ctx, db, u.ID, "2025-01-06", "2025-01-08")
	if err != nil || len(week) != 3 {
		t.Fatalf("CheckinsBetween: n=%d err=%v", len(week), err)
	}
	if week[0].Date != "2025-01-06" {
		t.Fatalf("expected oldest first, got %s", week[0].Date)
	}

	if d, _ := FirstCheckinDate(ctx, db, u.ID); d != "2025-01-06" {
		t.Fatalf("FirstCheckinDate = %q", d)
	}
	if n, _ := CountCheckinsOn(ctx, db, u.ID, "2025-01-09"); n != 1 {
		t.Fatalf("CountCheckinsOn = %d", n)
	}
}
