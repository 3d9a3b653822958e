// Package memory holds in-process stores with the same contracts as the
// Postgres ones. Each store is safe for concurrent use.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/appointment"
	"github.com/google/uuid"
)

type dayKey struct {
	doctorID uuid.UUID
	date     time.Time
}

// AppointmentRepository keeps appointments in a map guarded by mu. Guarded
// writes for one doctor and date are serialised by a per-day mutex held across
// the conflict check and the write, so two writers for the same calendar day
// cannot both pass the check.
type AppointmentRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*appointment.Appointment

	locksMu  sync.Mutex
	dayLocks map[dayKey]*sync.Mutex

	now func() time.Time
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{
		byID:     make(map[uuid.UUID]*appointment.Appointment),
		dayLocks: make(map[dayKey]*sync.Mutex),
		now:      time.Now,
	}
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return clone(a), nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	matched := make([]*appointment.Appointment, 0, len(r.byID))
	for _, a := range r.byID {
		if matches(a, q) {
			matched = append(matched, clone(a))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, newestFirst)

	page, size := max(q.Page, 1), q.PageSize
	if size <= 0 {
		size = len(matched) + 1
	}
	total := len(matched)
	from := min((page-1)*size, total)
	to := min(from+size, total)

	return &appointment.PagedAppointments{
		Appointments: matched[from:to],
		TotalCount:   int64(total),
		Page:         page,
		PageSize:     size,
		TotalPages:   (total + size - 1) / size,
	}, nil
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*appointment.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*appointment.Appointment, 0)
	for _, a := range r.byID {
		if a.PatientID == patientID {
			out = append(out, clone(a))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, newestFirst)
	return out, nil
}

func (r *AppointmentRepository) FindActive(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*appointment.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeLocked(doctorID, appointment.NormalizeDate(date)), nil
}

func (r *AppointmentRepository) InsertIfNoConflict(ctx context.Context, a *appointment.Appointment) error {
	unlock := r.lockDay(a.DoctorID, a.AppointmentDate)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if appointment.Conflicts(r.snapshotActive(a.DoctorID, a.AppointmentDate), a, nil) {
		return appointment.ErrAppointmentConflict
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := r.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.Version = 1
	a.AppointmentDate = appointment.NormalizeDate(a.AppointmentDate)

	r.mu.Lock()
	r.byID[a.ID] = clone(a)
	r.mu.Unlock()
	return nil
}

func (r *AppointmentRepository) UpdateIfNoConflict(ctx context.Context, a *appointment.Appointment) error {
	unlock := r.lockDay(a.DoctorID, a.AppointmentDate)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.currentLocked(a)
	if err != nil {
		return err
	}
	if appointment.Conflicts(r.activeLocked(a.DoctorID, appointment.NormalizeDate(a.AppointmentDate)), a, &a.ID) {
		return appointment.ErrAppointmentConflict
	}

	a.AppointmentDate = appointment.NormalizeDate(a.AppointmentDate)
	r.storeLocked(current, a)
	return nil
}

func (r *AppointmentRepository) UpdateInactive(ctx context.Context, a *appointment.Appointment) error {
	if a.IsActive() {
		return appointment.ErrStillActive
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.currentLocked(a)
	if err != nil {
		return err
	}
	r.storeLocked(current, a)
	return nil
}

// currentLocked returns the stored row for a, provided it is still at the
// version a was read at. Expects r.mu to be held for writing.
func (r *AppointmentRepository) currentLocked(a *appointment.Appointment) (*appointment.Appointment, error) {
	current, ok := r.byID[a.ID]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if current.Version != a.Version {
		return nil, appointment.ErrStaleAppointment
	}
	return current, nil
}

func (r *AppointmentRepository) storeLocked(current, a *appointment.Appointment) {
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = r.now().UTC()
	a.Version = current.Version + 1
	r.byID[a.ID] = clone(a)
}

// snapshotActive reads the day's active appointments. Callers hold the day
// lock, so no other guarded write can add to the day until they release it.
func (r *AppointmentRepository) snapshotActive(doctorID uuid.UUID, date time.Time) []*appointment.Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeLocked(doctorID, appointment.NormalizeDate(date))
}

// lockDay takes the guard for one doctor's calendar day and returns its release.
func (r *AppointmentRepository) lockDay(doctorID uuid.UUID, date time.Time) func() {
	key := dayKey{doctorID: doctorID, date: appointment.NormalizeDate(date)}

	r.locksMu.Lock()
	m, ok := r.dayLocks[key]
	if !ok {
		m = &sync.Mutex{}
		r.dayLocks[key] = m
	}
	r.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

// activeLocked expects r.mu to be held.
func (r *AppointmentRepository) activeLocked(doctorID uuid.UUID, day time.Time) []*appointment.Appointment {
	out := make([]*appointment.Appointment, 0)
	for _, a := range r.byID {
		if a.DoctorID == doctorID && a.AppointmentDate.Equal(day) && a.IsActive() {
			out = append(out, clone(a))
		}
	}
	slices.SortFunc(out, func(x, y *appointment.Appointment) int {
		switch {
		case x.StartTime < y.StartTime:
			return -1
		case x.StartTime > y.StartTime:
			return 1
		}
		return 0
	})
	return out
}

func matches(a *appointment.Appointment, q *appointment.ListAppointmentsQuery) bool {
	if q.PatientID != nil && a.PatientID != *q.PatientID {
		return false
	}
	if q.DoctorID != nil && a.DoctorID != *q.DoctorID {
		return false
	}
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, a.Status) {
		return false
	}
	if q.Date != nil && !a.AppointmentDate.Equal(appointment.NormalizeDate(*q.Date)) {
		return false
	}
	return true
}

func newestFirst(x, y *appointment.Appointment) int {
	if c := y.AppointmentDate.Compare(x.AppointmentDate); c != 0 {
		return c
	}
	switch {
	case x.StartTime > y.StartTime:
		return -1
	case x.StartTime < y.StartTime:
		return 1
	}
	return 0
}

func clone(a *appointment.Appointment) *appointment.Appointment {
	c := *a
	if a.FollowUpForRecordID != nil {
		id := *a.FollowUpForRecordID
		c.FollowUpForRecordID = &id
	}
	return &c
}
