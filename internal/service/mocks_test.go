package service

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockPatientRepo struct{ mock.Mock }

func (m *mockPatientRepo) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*patient.Patient)
	return p, args.Error(1)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) ListActiveByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	args := m.Called(ctx, role)
	us, _ := args.Get(0).([]*domain.User)
	return us, args.Error(1)
}

func (m *mockUserRepo) UpdateLoginState(ctx context.Context, id uuid.UUID, failedCount int, lockedUntil, lastLoginAt *time.Time) error {
	return m.Called(ctx, id, failedCount, lockedUntil, lastLoginAt).Error(0)
}

type mockAuditor struct{ mock.Mock }

func (m *mockAuditor) LogAsync(ctx context.Context, entry AuditEntry) {
	m.Called(ctx, entry)
}

type mockAuditSink struct{ mock.Mock }

func (m *mockAuditSink) Name() string { return "mock" }

func (m *mockAuditSink) Write(ctx context.Context, entry *domain.AuditLog) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockAuditSink) List(ctx context.Context, q *domain.ListAuditLogsQuery) (*domain.PagedAuditLogs, error) {
	args := m.Called(ctx, q)
	p, _ := args.Get(0).(*domain.PagedAuditLogs)
	return p, args.Error(1)
}

// mockAppointmentRepo is used where the in-memory store cannot produce the
// failure under test.
type mockAppointmentRepo struct{ mock.Mock }

func (m *mockAppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*appointment.Appointment)
	return a, args.Error(1)
}

func (m *mockAppointmentRepo) List(ctx context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	args := m.Called(ctx, q)
	p, _ := args.Get(0).(*appointment.PagedAppointments)
	return p, args.Error(1)
}

func (m *mockAppointmentRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*appointment.Appointment, error) {
	args := m.Called(ctx, patientID)
	as, _ := args.Get(0).([]*appointment.Appointment)
	return as, args.Error(1)
}

func (m *mockAppointmentRepo) FindActive(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*appointment.Appointment, error) {
	args := m.Called(ctx, doctorID, date)
	as, _ := args.Get(0).([]*appointment.Appointment)
	return as, args.Error(1)
}

func (m *mockAppointmentRepo) InsertIfNoConflict(ctx context.Context, a *appointment.Appointment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAppointmentRepo) UpdateIfNoConflict(ctx context.Context, a *appointment.Appointment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockAppointmentRepo) UpdateInactive(ctx context.Context, a *appointment.Appointment) error {
	return m.Called(ctx, a).Error(0)
}

// recordingCache is a minimal AvailabilityCache that remembers invalidations
// and honours day generations like the Redis cache does.
type recordingCache struct {
	entries     map[string]*appointment.Availability
	generations map[string]int64
	invalidated []string
	dropped     int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		entries:     map[string]*appointment.Availability{},
		generations: map[string]int64{},
	}
}

func cacheKey(doctorID uuid.UUID, date time.Time) string {
	return doctorID.String() + "/" + date.Format(appointment.DateLayout)
}

func (c *recordingCache) Get(_ context.Context, doctorID uuid.UUID, date time.Time, slotMinutes int) (*appointment.Availability, bool) {
	av, ok := c.entries[cacheKey(doctorID, date)]
	if !ok || av.SlotMinutes != slotMinutes {
		return nil, false
	}
	return av, true
}

func (c *recordingCache) Generation(_ context.Context, doctorID uuid.UUID, date time.Time) (int64, bool) {
	return c.generations[cacheKey(doctorID, date)], true
}

func (c *recordingCache) Set(_ context.Context, av *appointment.Availability, gen int64) {
	key := cacheKey(av.DoctorID, av.Date)
	if c.generations[key] != gen {
		c.dropped++
		return
	}
	c.entries[key] = av
}

func (c *recordingCache) Invalidate(_ context.Context, doctorID uuid.UUID, date time.Time) {
	key := cacheKey(doctorID, date)
	delete(c.entries, key)
	c.generations[key]++
	c.invalidated = append(c.invalidated, key)
}

// hookedRepo runs a one-shot hook right after a read returns, so a test can
// commit a competing write between the read and the caller's own write.
type hookedRepo struct {
	*memory.AppointmentRepository

	afterGet        func()
	afterFindActive func()
}

func (r *hookedRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := r.AppointmentRepository.GetByID(ctx, id)
	if hook := r.afterGet; hook != nil {
		r.afterGet = nil
		hook()
	}
	return a, err
}

func (r *hookedRepo) FindActive(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*appointment.Appointment, error) {
	as, err := r.AppointmentRepository.FindActive(ctx, doctorID, date)
	if hook := r.afterFindActive; hook != nil {
		r.afterFindActive = nil
		hook()
	}
	return as, err
}
