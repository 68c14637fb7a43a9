package scheduling_test

import (
	"context"
	"testing"
	"time"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/directory"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/scheduling"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/storage/memory"
)

const owner = "11111111-1111-1111-1111-111111111111"

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func seedStaff(db *memory.DB, id, name, serviceType, status string, capacity int, createdAt time.Time) {
	db.PutStaff(directory.Staff{
		ID:                 id,
		OwnerID:            owner,
		Name:               name,
		ServiceType:        serviceType,
		DailyCapacity:      capacity,
		AvailabilityStatus: status,
		CreatedAt:          createdAt,
	})
}

func seedScheduled(t *testing.T, db *memory.DB, id, staffID string, start, end time.Time) {
	t.Helper()
	ctx := context.Background()
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	staffCopy := staffID
	err = tx.CreateAppointment(ctx, &model.Appointment{
		ID:           id,
		OwnerID:      owner,
		CustomerName: "seed",
		StartTime:    start,
		EndTime:      end,
		Status:       model.StatusScheduled,
		ServiceID:    "svc",
		StaffID:      &staffCopy,
		CreatedAt:    start,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func evaluate(t *testing.T, db *memory.DB, staffID, requiredType string, start, end time.Time) scheduling.Evaluation {
	t.Helper()
	ctx := context.Background()
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	eval, err := scheduling.EvaluateStaff(ctx, tx, owner, staffID, requiredType, start, end, "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return eval
}

func TestEvaluateStaff_Pass(t *testing.T) {
	db := memory.New()
	seedStaff(db, "s1", "Alice", "barber", model.StaffAvailable, 8, day)

	eval := evaluate(t, db, "s1", "barber", day.Add(9*time.Hour), day.Add(10*time.Hour))
	if !eval.OK {
		t.Fatalf("expected pass, got reason %q", eval.Reason)
	}
	if eval.DayCount != 0 {
		t.Fatalf("expected day count 0, got %d", eval.DayCount)
	}
}

func TestEvaluateStaff_NotFound(t *testing.T) {
	db := memory.New()
	eval := evaluate(t, db, "missing", "barber", day.Add(9*time.Hour), day.Add(10*time.Hour))
	if eval.OK || eval.Reason != "Staff not found" {
		t.Fatalf("expected staff-not-found, got %+v", eval)
	}
}

func TestEvaluateStaff_OnLeave(t *testing.T) {
	db := memory.New()
	seedStaff(db, "s1", "Alice", "barber", model.StaffOnLeave, 8, day)

	eval := evaluate(t, db, "s1", "barber", day.Add(9*time.Hour), day.Add(10*time.Hour))
	if eval.OK || eval.Reason != "Staff is on leave" {
		t.Fatalf("expected on-leave, got %+v", eval)
	}
}

func TestEvaluateStaff_TypeMismatch(t *testing.T) {
	db := memory.New()
	seedStaff(db, "s1", "Alice", "stylist", model.StaffAvailable, 8, day)

	eval := evaluate(t, db, "s1", "barber", day.Add(9*time.Hour), day.Add(10*time.Hour))
	if eval.OK || eval.Reason != "Staff service type mismatch" {
		t.Fatalf("expected type mismatch, got %+v", eval)
	}
}

func TestEvaluateStaff_AtDailyCapacity(t *testing.T) {
	db := memory.New()
	seedStaff(db, "s1", "Alice", "barber", model.StaffAvailable, 2, day)
	seedScheduled(t, db, "a1", "s1", day.Add(9*time.Hour), day.Add(10*time.Hour))
	seedScheduled(t, db, "a2", "s1", day.Add(10*time.Hour), day.Add(11*time.Hour))

	eval := evaluate(t, db, "s1", "barber", day.Add(12*time.Hour), day.Add(13*time.Hour))
	if eval.OK {
		t.Fatal("expected capacity failure")
	}
	if eval.Reason != "Alice already has 2 appointments today." {
		t.Fatalf("unexpected reason %q", eval.Reason)
	}
}

func TestEvaluateStaff_CapacityCountsOnlyThatDay(t *testing.T) {
	db := memory.New()
	seedStaff(db, "s1", "Alice", "barber", model.StaffAvailable, 1, day)
	nextDay := day.Add(24 * time.Hour)
	seedScheduled(t, db, "a1", "s1", nextDay.Add(9*time.Hour), nextDay.Add(10*time.Hour))

	eval := evaluate(t, db, "s1", "barber", day.Add(9*time.Hour), day.Add(10*time.Hour))
	if !eval.OK {
		t.Fatalf("bookings on other days should not count, got %q", eval.Reason)
	}
}

func TestEvaluateStaff_Overlap(t *testing.T) {
	db := memory.New()
	seedStaff(db, "s1", "Alice", "barber", model.StaffAvailable, 8, day)
	seedScheduled(t, db, "a1", "s1", day.Add(9*time.Hour), day.Add(10*time.Hour))

	eval := evaluate(t, db, "s1", "barber", day.Add(9*time.Hour+30*time.Minute), day.Add(10*time.Hour+30*time.Minute))
	if eval.OK || eval.Reason != "This staff member already has an appointment at this time." {
		t.Fatalf("expected overlap failure, got %+v", eval)
	}
}

func TestEvaluateStaff_AdjacentIntervalsDoNotOverlap(t *testing.T) {
	db := memory.New()
	seedStaff(db, "s1", "Alice", "barber", model.StaffAvailable, 8, day)
	seedScheduled(t, db, "a1", "s1", day.Add(9*time.Hour), day.Add(10*time.Hour))

	// Half-open intervals: back-to-back bookings are legal.
	eval := evaluate(t, db, "s1", "barber", day.Add(10*time.Hour), day.Add(11*time.Hour))
	if !eval.OK {
		t.Fatalf("adjacent interval rejected: %q", eval.Reason)
	}
}

func TestEvaluateStaff_ExcludeSkipsOwnAppointment(t *testing.T) {
	db := memory.New()
	seedStaff(db, "s1", "Alice", "barber", model.StaffAvailable, 8, day)
	seedScheduled(t, db, "a1", "s1", day.Add(9*time.Hour), day.Add(10*time.Hour))

	ctx := context.Background()
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eval, err := scheduling.EvaluateStaff(ctx, tx, owner, "s1", "barber",
		day.Add(9*time.Hour+15*time.Minute), day.Add(10*time.Hour+15*time.Minute), "a1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.OK {
		t.Fatalf("edit colliding only with itself should pass, got %q", eval.Reason)
	}
}
