package appointments

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/directory"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/scheduling"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/storage/memory"
)

const owner = "11111111-1111-1111-1111-111111111111"

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type sinkRecorder struct {
	events []AuditEvent
}

func (s *sinkRecorder) Record(_ context.Context, e AuditEvent) {
	s.events = append(s.events, e)
}

func (s *sinkRecorder) last(t *testing.T) AuditEvent {
	t.Helper()
	if len(s.events) == 0 {
		t.Fatal("no audit events recorded")
	}
	return s.events[len(s.events)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// steppingClock advances one second per read so created_at tie-breaks
// are deterministic.
func steppingClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func newTestService(db *memory.DB) (*Service, *sinkRecorder) {
	sink := &sinkRecorder{}
	svc := NewService(db, sink, discardLogger()).WithClock(steppingClock(day))
	return svc, sink
}

func seedDirectory(db *memory.DB) {
	db.PutService(directory.Service{
		ID:              "svc-cut",
		OwnerID:         owner,
		Name:            "Haircut",
		DurationMinutes: 60,
		StaffType:       "barber",
	})
	db.PutStaff(directory.Staff{
		ID:                 "staff-a",
		OwnerID:            owner,
		Name:               "Alice",
		ServiceType:        "barber",
		DailyCapacity:      8,
		AvailabilityStatus: model.StaffAvailable,
		CreatedAt:          day,
	})
	db.PutStaff(directory.Staff{
		ID:                 "staff-b",
		OwnerID:            owner,
		Name:               "Bob",
		ServiceType:        "barber",
		DailyCapacity:      8,
		AvailabilityStatus: model.StaffAvailable,
		CreatedAt:          day.Add(time.Minute),
	})
}

// lockTrackingDB wraps the memory store and records, per transaction,
// the order of owner-lock acquisitions and appointment writes.
type lockTrackingDB struct {
	inner *memory.DB
	seqs  [][]string
}

func (d *lockTrackingDB) Begin(ctx context.Context) (scheduling.Tx, error) {
	tx, err := d.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	d.seqs = append(d.seqs, nil)
	return &lockTrackingTx{Tx: tx, db: d, idx: len(d.seqs) - 1}, nil
}

type lockTrackingTx struct {
	scheduling.Tx
	db  *lockTrackingDB
	idx int
}

func (t *lockTrackingTx) note(op string) {
	t.db.seqs[t.idx] = append(t.db.seqs[t.idx], op)
}

func (t *lockTrackingTx) LockOwner(ctx context.Context, ownerID string) error {
	t.note("lock:" + ownerID)
	return t.Tx.LockOwner(ctx, ownerID)
}

func (t *lockTrackingTx) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	t.note("create")
	return t.Tx.CreateAppointment(ctx, a)
}

func (t *lockTrackingTx) UpdateAppointment(ctx context.Context, a model.Appointment) error {
	t.note("update")
	return t.Tx.UpdateAppointment(ctx, a)
}

func TestCreate_SchedulesWithRequestedStaff(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, sink := newTestService(db)

	res, err := svc.Create(context.Background(), owner, CreateInput{
		CustomerName: "Carol",
		ServiceID:    "svc-cut",
		StartTime:    day.Add(9 * time.Hour),
		StaffID:      "staff-a",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a := res.Appointment
	if a.Status != model.StatusScheduled {
		t.Fatalf("expected SCHEDULED, got %s", a.Status)
	}
	if a.StaffID == nil || *a.StaffID != "staff-a" {
		t.Fatalf("expected staff-a, got %v", a.StaffID)
	}
	if !a.EndTime.Equal(day.Add(10 * time.Hour)) {
		t.Fatalf("expected end 10:00 from service duration, got %s", a.EndTime)
	}
	if res.Message != "Appointment scheduled successfully" {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if evt := sink.last(t); evt.Action != "APPOINTMENT_CREATED" || evt.StaffID != "staff-a" {
		t.Fatalf("unexpected audit event %+v", evt)
	}
}

func TestCreate_UnknownServiceNotFound(t *testing.T) {
	db := memory.New()
	svc, _ := newTestService(db)

	_, err := svc.Create(context.Background(), owner, CreateInput{
		CustomerName: "Carol",
		ServiceID:    "nope",
		StartTime:    day.Add(9 * time.Hour),
	})
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreate_WaitsWhenStaffOnLeave(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	db.PutStaff(directory.Staff{
		ID:                 "staff-leave",
		OwnerID:            owner,
		Name:               "Dan",
		ServiceType:        "barber",
		DailyCapacity:      8,
		AvailabilityStatus: model.StaffOnLeave,
		CreatedAt:          day,
	})
	svc, _ := newTestService(db)

	res, err := svc.Create(context.Background(), owner, CreateInput{
		CustomerName: "Carol",
		ServiceID:    "svc-cut",
		StartTime:    day.Add(9 * time.Hour),
		StaffID:      "staff-leave",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a := res.Appointment
	if a.Status != model.StatusWaiting {
		t.Fatalf("expected WAITING, got %s", a.Status)
	}
	if a.StaffID != nil {
		t.Fatalf("waiting appointment must have no staff, got %v", *a.StaffID)
	}
	if a.QueuePosition == nil || *a.QueuePosition != 1 {
		t.Fatalf("expected queue position 1, got %v", a.QueuePosition)
	}
	if res.Message != "Staff is on leave" {
		t.Fatalf("expected the evaluator's reason, got %q", res.Message)
	}
}

func TestCreate_AutoSelectsLeastLoaded(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, _ := newTestService(db)
	ctx := context.Background()

	// Load Alice with one booking; Bob should win the next auto-pick.
	if _, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "First", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour), StaffID: "staff-a",
	}); err != nil {
		t.Fatalf("seed create: %v", err)
	}

	res, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Second", ServiceID: "svc-cut", StartTime: day.Add(14 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Appointment.StaffID == nil || *res.Appointment.StaffID != "staff-b" {
		t.Fatalf("expected staff-b, got %v", res.Appointment.StaffID)
	}
}

func TestCreate_QueuesWhenNoStaffAvailable(t *testing.T) {
	db := memory.New()
	db.PutService(directory.Service{
		ID: "svc-cut", OwnerID: owner, Name: "Haircut", DurationMinutes: 60, StaffType: "barber",
	})
	svc, _ := newTestService(db)

	res, err := svc.Create(context.Background(), owner, CreateInput{
		CustomerName: "Carol",
		ServiceID:    "svc-cut",
		StartTime:    day.Add(9 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Appointment.Status != model.StatusWaiting {
		t.Fatalf("expected WAITING, got %s", res.Appointment.Status)
	}
	if res.Message != "No staff available, added to waiting queue" {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestCreate_OverlapRoutesToQueue(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, _ := newTestService(db)
	ctx := context.Background()

	// Alice is busy 9-10; a second request for her at 9:30 cannot be
	// scheduled and joins the queue carrying the overlap reason.
	if _, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Blocker", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour), StaffID: "staff-a",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Carol", ServiceID: "svc-cut", StartTime: day.Add(9*time.Hour + 30*time.Minute), StaffID: "staff-a",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a := res.Appointment
	if a.Status != model.StatusWaiting {
		t.Fatalf("expected WAITING, got %s", a.Status)
	}
	if a.QueuePosition == nil || *a.QueuePosition != 1 {
		t.Fatalf("expected queue position 1, got %v", a.QueuePosition)
	}
	if res.Message != "This staff member already has an appointment at this time." {
		t.Fatalf("expected the overlap reason, got %q", res.Message)
	}
}

func TestQueue_OrderedByStartTime(t *testing.T) {
	db := memory.New()
	db.PutService(directory.Service{
		ID: "svc-cut", OwnerID: owner, Name: "Haircut", DurationMinutes: 60, StaffType: "barber",
	})
	svc, _ := newTestService(db)
	ctx := context.Background()

	late, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Late", ServiceID: "svc-cut", StartTime: day.Add(15 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	early, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Early", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The earlier start takes position 1 even though it was created
	// second.
	if early.Appointment.QueuePosition == nil || *early.Appointment.QueuePosition != 1 {
		t.Fatalf("expected early at position 1, got %v", early.Appointment.QueuePosition)
	}

	waiting, err := svc.ListWaiting(ctx, owner)
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	if len(waiting) != 2 || waiting[0].ID != early.Appointment.ID || waiting[1].ID != late.Appointment.ID {
		t.Fatalf("unexpected queue order: %+v", waiting)
	}
}

func TestCancel_WaitingRenumbersQueue(t *testing.T) {
	db := memory.New()
	db.PutService(directory.Service{
		ID: "svc-cut", OwnerID: owner, Name: "Haircut", DurationMinutes: 60, StaffType: "barber",
	})
	svc, sink := newTestService(db)
	ctx := context.Background()

	first, _ := svc.Create(ctx, owner, CreateInput{
		CustomerName: "A", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour),
	})
	second, _ := svc.Create(ctx, owner, CreateInput{
		CustomerName: "B", ServiceID: "svc-cut", StartTime: day.Add(10 * time.Hour),
	})

	res, err := svc.Cancel(ctx, owner, first.Appointment.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.Appointment.Status != model.StatusCancelled || res.Appointment.QueuePosition != nil {
		t.Fatalf("cancelled appointment should hold no position: %+v", res.Appointment)
	}
	if evt := sink.last(t); evt.Action != "APPOINTMENT_CANCELLED" {
		t.Fatalf("unexpected audit action %q", evt.Action)
	}

	got, err := svc.Get(ctx, owner, second.Appointment.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QueuePosition == nil || *got.QueuePosition != 1 {
		t.Fatalf("expected survivor promoted to 1, got %v", got.QueuePosition)
	}
}

func TestCancel_ScheduledLeavesQueueUntouched(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, _ := newTestService(db)
	ctx := context.Background()

	// Seed waiting rows with deliberately non-dense positions. If
	// cancelling a SCHEDULED appointment ran the renumbering, the gap
	// would close and the positions would change.
	seedWaiting := func(id string, start time.Time, pos int) {
		t.Helper()
		tx, err := db.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		p := pos
		if err := tx.CreateAppointment(ctx, &model.Appointment{
			ID: id, OwnerID: owner, CustomerName: "seed",
			StartTime: start, EndTime: start.Add(time.Hour),
			Status: model.StatusWaiting, QueuePosition: &p,
			ServiceID: "svc-cut", CreatedAt: day,
		}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	seedWaiting("w-a", day.Add(13*time.Hour), 2)
	seedWaiting("w-b", day.Add(14*time.Hour), 5)

	res, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Carol", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour), StaffID: "staff-a",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Cancel(ctx, owner, res.Appointment.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for id, want := range map[string]int{"w-a": 2, "w-b": 5} {
		got, err := svc.Get(ctx, owner, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.QueuePosition == nil || *got.QueuePosition != want {
			t.Fatalf("expected %s to keep position %d, got %v", id, want, got.QueuePosition)
		}
	}
}

func TestCancel_TerminalRejected(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, _ := newTestService(db)
	ctx := context.Background()

	res, _ := svc.Create(ctx, owner, CreateInput{
		CustomerName: "A", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour), StaffID: "staff-a",
	})
	if _, err := svc.Cancel(ctx, owner, res.Appointment.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	_, err := svc.Cancel(ctx, owner, res.Appointment.ID)
	if KindOf(err) != KindBadRequest {
		t.Fatalf("expected bad request on double cancel, got %v", err)
	}
}

func TestComplete_RequiresScheduled(t *testing.T) {
	db := memory.New()
	db.PutService(directory.Service{
		ID: "svc-cut", OwnerID: owner, Name: "Haircut", DurationMinutes: 60, StaffType: "barber",
	})
	svc, _ := newTestService(db)
	ctx := context.Background()

	res, _ := svc.Create(ctx, owner, CreateInput{
		CustomerName: "A", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour),
	})
	_, err := svc.Complete(ctx, owner, res.Appointment.ID)
	if KindOf(err) != KindBadRequest {
		t.Fatalf("expected bad request completing a WAITING appointment, got %v", err)
	}
	if err.Error() != "Only scheduled appointments can be marked as completed" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestComplete_Scheduled(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, sink := newTestService(db)
	ctx := context.Background()

	res, _ := svc.Create(ctx, owner, CreateInput{
		CustomerName: "A", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour), StaffID: "staff-a",
	})
	done, err := svc.Complete(ctx, owner, res.Appointment.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Appointment.Status != model.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", done.Appointment.Status)
	}
	if evt := sink.last(t); evt.Action != "APPOINTMENT_COMPLETED" {
		t.Fatalf("unexpected audit action %q", evt.Action)
	}
}

func TestUpdate_ReassignConflicts(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, _ := newTestService(db)
	ctx := context.Background()

	// Alice is busy 9-10; moving Carol's 9:00 appointment onto Alice must
	// fail.
	if _, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Blocker", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour), StaffID: "staff-a",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Carol", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour), StaffID: "staff-b",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	target := "staff-a"
	_, err = svc.Update(ctx, owner, res.Appointment.ID, UpdateInput{StaffID: &target})
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err.Error() != "This staff member already has an appointment at this time." {
		t.Fatalf("unexpected reason %q", err.Error())
	}
}

func TestUpdate_ClearStaffMovesToQueue(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, _ := newTestService(db)
	ctx := context.Background()

	res, _ := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Carol", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour), StaffID: "staff-a",
	})

	empty := ""
	updated, err := svc.Update(ctx, owner, res.Appointment.ID, UpdateInput{StaffID: &empty})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	a := updated.Appointment
	if a.Status != model.StatusWaiting || a.StaffID != nil {
		t.Fatalf("expected unassigned WAITING, got %+v", a)
	}
	if a.QueuePosition == nil || *a.QueuePosition != 1 {
		t.Fatalf("expected position 1, got %v", a.QueuePosition)
	}
}

func TestUpdate_InvalidStatus(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, _ := newTestService(db)

	bogus := "ARCHIVED"
	_, err := svc.Update(context.Background(), owner, "whatever", UpdateInput{Status: &bogus})
	if KindOf(err) != KindBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestAssignFromQueue_AssignsEarliestEligible(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	db.PutService(directory.Service{
		ID: "svc-color", OwnerID: owner, Name: "Coloring", DurationMinutes: 90, StaffType: "stylist",
	})
	svc, sink := newTestService(db)
	ctx := context.Background()

	db.PutStaff(directory.Staff{
		ID: "staff-dan", OwnerID: owner, Name: "Dan", ServiceType: "barber",
		DailyCapacity: 8, AvailabilityStatus: model.StaffOnLeave, CreatedAt: day,
	})

	// A stylist request sits at the head of the queue; a barber request
	// follows. Assigning to Alice (barber) must skip the head.
	head, _ := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Stylist Job", ServiceID: "svc-color", StartTime: day.Add(9 * time.Hour),
	})
	tail, _ := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Barber Job", ServiceID: "svc-cut", StartTime: day.Add(10 * time.Hour), StaffID: "staff-dan",
	})
	if tail.Appointment.Status != model.StatusWaiting {
		t.Fatalf("expected barber job waiting, got %s", tail.Appointment.Status)
	}

	res, err := svc.AssignFromQueue(ctx, owner, "staff-a")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	a := res.Appointment
	if a.ID != tail.Appointment.ID {
		t.Fatalf("expected the barber job assigned, got %s", a.ID)
	}
	if a.Status != model.StatusScheduled || a.StaffID == nil || *a.StaffID != "staff-a" {
		t.Fatalf("unexpected assignment %+v", a)
	}
	if !a.StartTime.Equal(day.Add(10 * time.Hour)) {
		t.Fatalf("expected slot at requested start, got %s", a.StartTime)
	}
	if evt := sink.last(t); evt.Action != "QUEUE_ASSIGNED" || evt.StaffID != "staff-a" {
		t.Fatalf("unexpected audit event %+v", evt)
	}

	// The skipped head keeps the queue and is renumbered to 1.
	got, err := svc.Get(ctx, owner, head.Appointment.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusWaiting || got.QueuePosition == nil || *got.QueuePosition != 1 {
		t.Fatalf("expected head still waiting at 1, got %+v", got)
	}
}

func TestAssignFromQueue_SlotShiftsPastExistingBooking(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, _ := newTestService(db)
	ctx := context.Background()

	// Alice is booked 10-11. The waiting request asks for 10:00 and must
	// land at 11:00.
	if _, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Blocker", ServiceID: "svc-cut", StartTime: day.Add(10 * time.Hour), StaffID: "staff-a",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	waitingRes, _ := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Carol", ServiceID: "svc-cut", StartTime: day.Add(10 * time.Hour), StaffID: "staff-a",
	})
	if waitingRes.Appointment.Status != model.StatusWaiting {
		t.Fatalf("expected WAITING seed, got %s", waitingRes.Appointment.Status)
	}

	res, err := svc.AssignFromQueue(ctx, owner, "staff-a")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !res.Appointment.StartTime.Equal(day.Add(11 * time.Hour)) {
		t.Fatalf("expected slot shifted to 11:00, got %s", res.Appointment.StartTime)
	}
}

func TestAssignFromQueue_StaffOnLeave(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	db.PutStaff(directory.Staff{
		ID: "staff-leave", OwnerID: owner, Name: "Dan", ServiceType: "barber",
		DailyCapacity: 8, AvailabilityStatus: model.StaffOnLeave, CreatedAt: day,
	})
	svc, _ := newTestService(db)

	_, err := svc.AssignFromQueue(context.Background(), owner, "staff-leave")
	if KindOf(err) != KindConflict || err.Error() != "Staff is not available" {
		t.Fatalf("expected availability conflict, got %v", err)
	}
}

func TestAssignFromQueue_EmptyQueue(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, _ := newTestService(db)

	_, err := svc.AssignFromQueue(context.Background(), owner, "staff-a")
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict on empty queue, got %v", err)
	}
	if err.Error() != "No eligible waiting appointment for this staff" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestMutationsLockOwnerBeforeWriting(t *testing.T) {
	mem := memory.New()
	seedDirectory(mem)
	db := &lockTrackingDB{inner: mem}
	svc := NewService(db, &sinkRecorder{}, discardLogger()).WithClock(steppingClock(day))
	ctx := context.Background()

	res, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "Carol", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour), StaffID: "staff-a",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Cancel(ctx, owner, res.Appointment.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Every transaction that writes must acquire the per-owner lock as
	// its first store call; otherwise two creates racing into the queue
	// could both claim position 1.
	wrote := 0
	for i, seq := range db.seqs {
		writes := false
		for _, op := range seq {
			if op == "create" || op == "update" {
				writes = true
			}
		}
		if !writes {
			continue
		}
		wrote++
		if seq[0] != "lock:"+owner {
			t.Fatalf("transaction %d wrote before taking the owner lock: %v", i, seq)
		}
	}
	if wrote != 2 {
		t.Fatalf("expected 2 writing transactions, got %d", wrote)
	}
}

func TestAvailableStaffWithLoad(t *testing.T) {
	db := memory.New()
	seedDirectory(db)
	svc, _ := newTestService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, owner, CreateInput{
		CustomerName: "A", ServiceID: "svc-cut", StartTime: day.Add(9 * time.Hour), StaffID: "staff-a",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	date := day.Add(12 * time.Hour)
	loads, err := svc.AvailableStaffWithLoad(ctx, owner, "svc-cut", &date)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loads) != 2 {
		t.Fatalf("expected 2 staff, got %d", len(loads))
	}
	if loads[0].ID != "staff-a" || loads[0].CurrentLoad != 1 || loads[0].AvailableSlots != 7 {
		t.Fatalf("unexpected load for staff-a: %+v", loads[0])
	}
	if loads[1].ID != "staff-b" || loads[1].CurrentLoad != 0 || loads[1].IsAtCapacity {
		t.Fatalf("unexpected load for staff-b: %+v", loads[1])
	}
}
