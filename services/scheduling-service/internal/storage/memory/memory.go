// Package memory provides an in-memory scheduling.DB for tests and
// local development. A single mutex is held from Begin to Commit or
// Rollback, which gives the same serialization the Postgres store gets
// from its per-owner advisory lock: no two check-then-write sequences
// interleave.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/directory"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/scheduling"
)

type DB struct {
	mu       sync.Mutex
	staff    map[string]directory.Staff
	services map[string]directory.Service
	appts    map[string]model.Appointment
}

func New() *DB {
	return &DB{
		staff:    make(map[string]directory.Staff),
		services: make(map[string]directory.Service),
		appts:    make(map[string]model.Appointment),
	}
}

// PutStaff and PutService seed directory records. The scheduling core
// treats these as read-only; in production they belong to
// directory-service.
func (d *DB) PutStaff(s directory.Staff) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staff[s.ID] = s
}

func (d *DB) PutService(s directory.Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[s.ID] = s
}

// Begin locks the store and returns a transaction working on a copy of
// the appointment set. Commit swaps the copy in; Rollback discards it.
func (d *DB) Begin(_ context.Context) (scheduling.Tx, error) {
	d.mu.Lock()
	appts := make(map[string]model.Appointment, len(d.appts))
	for id, a := range d.appts {
		appts[id] = a
	}
	return &tx{db: d, appts: appts}, nil
}

type tx struct {
	db    *DB
	appts map[string]model.Appointment
	done  bool
}

func (t *tx) Commit(context.Context) error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	t.db.appts = t.appts
	t.db.mu.Unlock()
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.db.mu.Unlock()
	return nil
}

// LockOwner is a no-op: Begin already holds the store mutex, so memory
// transactions never run concurrently.
func (t *tx) LockOwner(context.Context, string) error { return nil }

func (t *tx) GetService(_ context.Context, ownerID, serviceID string) (directory.Service, bool, error) {
	s, ok := t.db.services[serviceID]
	if !ok || s.OwnerID != ownerID {
		return directory.Service{}, false, nil
	}
	return s, true, nil
}

func (t *tx) GetStaff(_ context.Context, ownerID, staffID string) (directory.Staff, bool, error) {
	s, ok := t.db.staff[staffID]
	if !ok || s.OwnerID != ownerID {
		return directory.Staff{}, false, nil
	}
	return s, true, nil
}

func (t *tx) ListAvailableStaff(_ context.Context, ownerID, serviceType string) ([]directory.Staff, error) {
	var out []directory.Staff
	for _, s := range t.db.staff {
		if s.OwnerID == ownerID && s.ServiceType == serviceType && s.AvailabilityStatus == model.StaffAvailable {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) GetAppointment(_ context.Context, ownerID, id string) (model.Appointment, bool, error) {
	a, ok := t.appts[id]
	if !ok || a.OwnerID != ownerID {
		return model.Appointment{}, false, nil
	}
	return a, true, nil
}

func (t *tx) ListAppointments(_ context.Context, ownerID string, f scheduling.ListFilter) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range t.appts {
		if a.OwnerID != ownerID {
			continue
		}
		if f.StaffID != "" && (a.StaffID == nil || *a.StaffID != f.StaffID) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Day != nil {
			dayStart, dayEnd := model.DayRange(*f.Day)
			if a.StartTime.Before(dayStart) || !a.StartTime.Before(dayEnd) {
				continue
			}
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (t *tx) CountScheduled(_ context.Context, ownerID, staffID string, from, to time.Time) (int, error) {
	n := 0
	for _, a := range t.appts {
		if a.OwnerID == ownerID && a.Status == model.StatusScheduled &&
			a.StaffID != nil && *a.StaffID == staffID &&
			!a.StartTime.Before(from) && a.StartTime.Before(to) {
			n++
		}
	}
	return n, nil
}

func (t *tx) ScheduledOverlapExists(_ context.Context, ownerID, staffID string, start, end time.Time, excludeID string) (bool, error) {
	for _, a := range t.appts {
		if a.OwnerID != ownerID || a.Status != model.StatusScheduled {
			continue
		}
		if a.StaffID == nil || *a.StaffID != staffID {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		// Half-open overlap: [start,end) meets [a.Start,a.End).
		if a.StartTime.Before(end) && a.EndTime.After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) ListScheduledForStaff(_ context.Context, ownerID, staffID string, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range t.appts {
		if a.OwnerID == ownerID && a.Status == model.StatusScheduled &&
			a.StaffID != nil && *a.StaffID == staffID &&
			!a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (t *tx) ListWaitingForRenumber(_ context.Context, ownerID string) ([]model.Appointment, error) {
	out := t.waiting(ownerID)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *tx) ListWaitingByPosition(_ context.Context, ownerID string) ([]model.Appointment, error) {
	out := t.waiting(ownerID)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := posOrMax(out[i]), posOrMax(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (t *tx) waiting(ownerID string) []model.Appointment {
	var out []model.Appointment
	for _, a := range t.appts {
		if a.OwnerID == ownerID && a.Status == model.StatusWaiting {
			out = append(out, a)
		}
	}
	return out
}

func posOrMax(a model.Appointment) int {
	if a.QueuePosition == nil {
		return int(^uint(0) >> 1)
	}
	return *a.QueuePosition
}

func (t *tx) CreateAppointment(_ context.Context, appt *model.Appointment) error {
	if _, exists := t.appts[appt.ID]; exists {
		return errors.New("appointment id already exists")
	}
	t.appts[appt.ID] = *appt
	return nil
}

func (t *tx) UpdateAppointment(_ context.Context, appt model.Appointment) error {
	if _, exists := t.appts[appt.ID]; !exists {
		return errors.New("appointment not found")
	}
	t.appts[appt.ID] = appt
	return nil
}

func (t *tx) SetQueuePosition(_ context.Context, id string, pos *int) error {
	a, exists := t.appts[id]
	if !exists {
		return errors.New("appointment not found")
	}
	if pos == nil {
		a.QueuePosition = nil
	} else {
		p := *pos
		a.QueuePosition = &p
	}
	t.appts[id] = a
	return nil
}
