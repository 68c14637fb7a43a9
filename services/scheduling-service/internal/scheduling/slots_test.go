package scheduling

import (
	"testing"
	"time"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
)

func booking(start, end time.Time) model.Appointment {
	return model.Appointment{StartTime: start, EndTime: end, Status: model.StatusScheduled}
}

func TestNextSlot_EmptyDay(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)

	slot, ok := NextSlot(nil, start, day, 30*time.Minute, 8)
	if !ok {
		t.Fatal("expected a slot")
	}
	if !slot.Start.Equal(start) || !slot.End.Equal(start.Add(30*time.Minute)) {
		t.Fatalf("expected 09:00-09:30, got %s-%s", slot.Start, slot.End)
	}
}

func TestNextSlot_FitsInGap(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bookings := []model.Appointment{
		booking(day.Add(9*time.Hour), day.Add(10*time.Hour)),
		booking(day.Add(10*time.Hour+30*time.Minute), day.Add(11*time.Hour)),
	}

	slot, ok := NextSlot(bookings, day.Add(9*time.Hour), day, 30*time.Minute, 8)
	if !ok {
		t.Fatal("expected a slot")
	}
	if !slot.Start.Equal(day.Add(10 * time.Hour)) {
		t.Fatalf("expected slot at 10:00, got %s", slot.Start)
	}
}

func TestNextSlot_GapTooSmall(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bookings := []model.Appointment{
		booking(day.Add(9*time.Hour), day.Add(10*time.Hour)),
		booking(day.Add(10*time.Hour+15*time.Minute), day.Add(11*time.Hour)),
	}

	// 15 minute gap cannot hold 30 minutes; slot lands after the second
	// booking.
	slot, ok := NextSlot(bookings, day.Add(9*time.Hour), day, 30*time.Minute, 8)
	if !ok {
		t.Fatal("expected a slot")
	}
	if !slot.Start.Equal(day.Add(11 * time.Hour)) {
		t.Fatalf("expected slot at 11:00, got %s", slot.Start)
	}
}

func TestNextSlot_AtCapacity(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bookings := []model.Appointment{
		booking(day.Add(9*time.Hour), day.Add(10*time.Hour)),
		booking(day.Add(10*time.Hour), day.Add(11*time.Hour)),
	}

	if _, ok := NextSlot(bookings, day.Add(9*time.Hour), day, 30*time.Minute, 2); ok {
		t.Fatal("expected no slot when day is at capacity")
	}
}

func TestNextSlot_NoRoomBeforeMidnight(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := day.Add(23*time.Hour + 45*time.Minute)

	if _, ok := NextSlot(nil, start, day, 30*time.Minute, 8); ok {
		t.Fatal("expected no slot crossing midnight")
	}

	slot, ok := NextSlot(nil, day.Add(23*time.Hour+30*time.Minute), day, 30*time.Minute, 8)
	if !ok {
		t.Fatal("expected the last slot of the day to fit")
	}
	if !slot.End.Equal(day.Add(24 * time.Hour)) {
		t.Fatalf("expected slot ending at midnight, got %s", slot.End)
	}
}

func TestNextSlot_ClampsToNow(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := day.Add(14 * time.Hour)

	slot, ok := NextSlot(nil, day.Add(9*time.Hour), now, 30*time.Minute, 8)
	if !ok {
		t.Fatal("expected a slot")
	}
	if !slot.Start.Equal(now) {
		t.Fatalf("expected slot clamped to now (14:00), got %s", slot.Start)
	}
}
