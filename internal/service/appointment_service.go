package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DoctorRepository resolves the users appointments are booked against.
type DoctorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListActiveByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)
}

// AvailabilityCache is advisory. A miss or a failure falls back to the store,
// and entries are invalidated on every write touching the doctor and date.
//
// Every Invalidate advances the day's generation. Set is given the generation
// read before the calendar was loaded and drops the entry if it has moved, so
// a result computed before a booking can never be cached after it.
type AvailabilityCache interface {
	Get(ctx context.Context, doctorID uuid.UUID, date time.Time, slotMinutes int) (*appointment.Availability, bool)
	Generation(ctx context.Context, doctorID uuid.UUID, date time.Time) (gen int64, ok bool)
	Set(ctx context.Context, av *appointment.Availability, gen int64)
	Invalidate(ctx context.Context, doctorID uuid.UUID, date time.Time)
}

type noopAvailabilityCache struct{}

func (noopAvailabilityCache) Get(context.Context, uuid.UUID, time.Time, int) (*appointment.Availability, bool) {
	return nil, false
}

func (noopAvailabilityCache) Generation(context.Context, uuid.UUID, time.Time) (int64, bool) {
	return 0, false
}

func (noopAvailabilityCache) Set(context.Context, *appointment.Availability, int64) {}

func (noopAvailabilityCache) Invalidate(context.Context, uuid.UUID, time.Time) {}

// SchedulingOptions are the clinic-level settings the service runs with.
type SchedulingOptions struct {
	WorkHours    appointment.WorkHours
	SlotMinutes  int
	StoreTimeout time.Duration
}

type AppointmentService struct {
	repo     appointment.Repository
	patients patient.Repository
	doctors  DoctorRepository
	checker  *ConflictChecker
	cache    AvailabilityCache
	audit    Auditor
	opts     SchedulingOptions
	metrics  *metrics.Collector
	log      *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewAppointmentService(
	repo appointment.Repository,
	patients patient.Repository,
	doctors DoctorRepository,
	audit Auditor,
	cache AvailabilityCache,
	opts SchedulingOptions,
	m *metrics.Collector,
	log *zap.Logger,
) *AppointmentService {
	if cache == nil {
		cache = noopAvailabilityCache{}
	}
	if opts.WorkHours == (appointment.WorkHours{}) {
		opts.WorkHours = appointment.DefaultWorkHours
	}
	if opts.SlotMinutes <= 0 {
		opts.SlotMinutes = appointment.DefaultSlotMinutes
	}
	return &AppointmentService{
		repo:     repo,
		patients: patients,
		doctors:  doctors,
		checker:  NewConflictChecker(repo, opts.StoreTimeout, m, log),
		cache:    cache,
		audit:    audit,
		opts:     opts,
		metrics:  m,
		log:      log,
		tracer:   otel.Tracer("medidoc/service/appointment"),
		now:      time.Now,
	}
}

// BookAppointment validates the request, pre-checks the doctor's calendar and
// then persists through the guarded insert, which re-checks atomically. Any
// failure leaves nothing behind.
func (s *AppointmentService) BookAppointment(ctx context.Context, caller Caller, cmd *appointment.CreateAppointmentCommand) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.BookAppointment", trace.WithAttributes(
		attribute.String("doctor.id", cmd.DoctorID.String()),
		attribute.String("appointment.date", cmd.AppointmentDate.Format(appointment.DateLayout)),
	))
	defer span.End()

	a, err := s.bookingCandidate(caller, cmd)
	if err != nil {
		s.metrics.BookingsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if !canBook(caller, cmd.DoctorID) {
		s.metrics.BookingsTotal.WithLabelValues("forbidden").Inc()
		return nil, ErrForbidden
	}

	if err := s.verifyParticipants(ctx, cmd.DoctorID, cmd.PatientID); err != nil {
		s.metrics.BookingsTotal.WithLabelValues(outcomeFor(err)).Inc()
		return nil, err
	}

	if s.checker.HasConflict(ctx, a, nil) {
		s.metrics.BookingsTotal.WithLabelValues("conflict").Inc()
		span.SetStatus(codes.Error, "conflict")
		return nil, appointment.ErrAppointmentConflict
	}

	if err := s.guardedWrite(ctx, "insert", func(ctx context.Context) error {
		return s.repo.InsertIfNoConflict(ctx, a)
	}); err != nil {
		if errors.Is(err, appointment.ErrAppointmentConflict) {
			s.metrics.BookingsTotal.WithLabelValues("conflict").Inc()
			s.log.Info("appointment conflict at write",
				zap.String("doctor_id", a.DoctorID.String()),
				zap.String("date", a.AppointmentDate.Format(appointment.DateLayout)),
				zap.String("requested", a.StartTime.String()+"-"+a.EndTime.String()),
			)
			span.SetStatus(codes.Error, "conflict")
			return nil, err
		}
		s.metrics.BookingsTotal.WithLabelValues("error").Inc()
		s.log.Error("failed to book appointment", zap.String("doctor_id", a.DoctorID.String()), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		return nil, fmt.Errorf("booking appointment: %w", err)
	}

	s.metrics.BookingsTotal.WithLabelValues("booked").Inc()
	s.cache.Invalidate(ctx, a.DoctorID, a.AppointmentDate)
	s.audit.LogAsync(ctx, AuditEntry{
		Caller:     caller,
		Action:     domain.ActionAppointmentCreate,
		TargetType: domain.TargetAppointment,
		TargetID:   a.ID.String(),
		After:      a,
	})

	s.log.Info("appointment booked",
		zap.String("appointment_id", a.ID.String()),
		zap.String("doctor_id", a.DoctorID.String()),
		zap.String("date", a.AppointmentDate.Format(appointment.DateLayout)),
		zap.String("slot", a.StartTime.String()+"-"+a.EndTime.String()),
	)
	return a, nil
}

// UpdateAppointment applies a partial update. Every result that is still in
// the active family is written through the conflict guard with the
// appointment's own id excluded; moves out of the family are plain writes.
func (s *AppointmentService) UpdateAppointment(ctx context.Context, caller Caller, id uuid.UUID, cmd *appointment.UpdateAppointmentCommand) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.UpdateAppointment", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
	))
	defer span.End()

	if err := validateUpdate(cmd); err != nil {
		s.metrics.AppointmentUpdatesTotal.WithLabelValues("update", "invalid").Inc()
		return nil, err
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(caller, a) {
		s.metrics.AppointmentUpdatesTotal.WithLabelValues("update", "forbidden").Inc()
		return nil, ErrForbidden
	}

	before := *a

	if cmd.Reason != nil {
		a.Reason = strings.TrimSpace(*cmd.Reason)
	}
	if cmd.Notes != nil {
		a.Notes = strings.TrimSpace(*cmd.Notes)
	}
	if cmd.Priority != nil {
		a.Priority = *cmd.Priority
	}
	if cmd.Status != nil {
		if err := a.TransitionTo(*cmd.Status); err != nil {
			s.metrics.AppointmentUpdatesTotal.WithLabelValues("update", "invalid").Inc()
			return nil, err
		}
	}
	if cmd.HasScheduleChange() {
		if err := s.applySchedule(a, cmd); err != nil {
			s.metrics.AppointmentUpdatesTotal.WithLabelValues("update", "invalid").Inc()
			return nil, err
		}
	}

	if err := s.persistUpdate(ctx, &before, a); err != nil {
		if errors.Is(err, appointment.ErrAppointmentConflict) {
			s.metrics.AppointmentUpdatesTotal.WithLabelValues("update", "conflict").Inc()
			span.SetStatus(codes.Error, "conflict")
			return nil, err
		}
		if errors.Is(err, appointment.ErrStaleAppointment) {
			s.metrics.AppointmentUpdatesTotal.WithLabelValues("update", "stale").Inc()
			span.SetStatus(codes.Error, "stale")
			return nil, err
		}
		s.metrics.AppointmentUpdatesTotal.WithLabelValues("update", "error").Inc()
		span.RecordError(err)
		s.log.Error("failed to update appointment", zap.String("appointment_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("updating appointment: %w", err)
	}

	s.metrics.AppointmentUpdatesTotal.WithLabelValues("update", "ok").Inc()
	s.invalidate(ctx, &before, a)
	s.audit.LogAsync(ctx, AuditEntry{
		Caller:     caller,
		Action:     domain.ActionAppointmentUpdate,
		TargetType: domain.TargetAppointment,
		TargetID:   a.ID.String(),
		Before:     &before,
		After:      a,
	})
	return a, nil
}

// Reschedule moves an active appointment to a new date and time window.
func (s *AppointmentService) Reschedule(ctx context.Context, caller Caller, id uuid.UUID, date time.Time, start, end string) (*appointment.Appointment, error) {
	return s.UpdateAppointment(ctx, caller, id, &appointment.UpdateAppointmentCommand{
		AppointmentDate: &date,
		StartTime:       &start,
		EndTime:         &end,
	})
}

func (s *AppointmentService) ChangeStatus(ctx context.Context, caller Caller, id uuid.UUID, status appointment.Status) (*appointment.Appointment, error) {
	return s.UpdateAppointment(ctx, caller, id, &appointment.UpdateAppointmentCommand{Status: &status})
}

// maxCancelAttempts bounds how often CancelAppointment re-reads a row that
// another request changed between its read and its write.
const maxCancelAttempts = 5

// CancelAppointment soft-deletes from any status. Cancelling an already
// cancelled appointment succeeds without writing.
func (s *AppointmentService) CancelAppointment(ctx context.Context, caller Caller, id uuid.UUID) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.CancelAppointment", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
	))
	defer span.End()

	var (
		a, before *appointment.Appointment
		err       error
	)
	for attempt := 1; ; attempt++ {
		a, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !canManage(caller, a) {
			s.metrics.AppointmentUpdatesTotal.WithLabelValues("cancel", "forbidden").Inc()
			return nil, ErrForbidden
		}
		if a.Status == appointment.StatusCancelled {
			return a, nil
		}

		prev := *a
		before = &prev
		a.Cancel()

		err = s.repo.UpdateInactive(ctx, a)
		if err == nil {
			break
		}
		if errors.Is(err, appointment.ErrStaleAppointment) && attempt < maxCancelAttempts {
			s.log.Debug("appointment changed during cancel, retrying",
				zap.String("appointment_id", id.String()), zap.Int("attempt", attempt))
			continue
		}
		s.metrics.AppointmentUpdatesTotal.WithLabelValues("cancel", "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("cancelling appointment: %w", err)
	}

	s.metrics.AppointmentUpdatesTotal.WithLabelValues("cancel", "ok").Inc()
	s.cache.Invalidate(ctx, a.DoctorID, a.AppointmentDate)
	s.audit.LogAsync(ctx, AuditEntry{
		Caller:     caller,
		Action:     domain.ActionAppointmentCancel,
		TargetType: domain.TargetAppointment,
		TargetID:   a.ID.String(),
		Before:     before,
		After:      a,
	})
	return a, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, caller Caller, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, a) {
		return nil, ErrForbidden
	}
	return a, nil
}

// ListAppointments narrows the query to what the caller may see: doctors get
// their own calendar, patients their own bookings, receptionists only the
// active family.
func (s *AppointmentService) ListAppointments(ctx context.Context, caller Caller, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	for _, st := range q.Statuses {
		if !st.IsValid() {
			return nil, &ValidationError{Fields: []string{"status: " + appointment.ErrInvalidStatus.Error()}}
		}
	}

	switch caller.Role {
	case domain.RoleDoctor:
		q.DoctorID = &caller.UserID
	case domain.RolePatient:
		if caller.PatientID == nil {
			return nil, ErrForbidden
		}
		q.PatientID = caller.PatientID
	case domain.RoleReceptionist:
		if len(q.Statuses) == 0 {
			q.Statuses = slices.Clone(appointment.ActiveStatuses)
		} else {
			q.Statuses = slices.DeleteFunc(q.Statuses, func(st appointment.Status) bool { return !st.IsActive() })
			if len(q.Statuses) == 0 {
				return emptyPage(q), nil
			}
		}
	case domain.RoleAdmin, domain.RoleNurse:
	default:
		return nil, ErrForbidden
	}

	if q.Date != nil {
		d := appointment.NormalizeDate(*q.Date)
		q.Date = &d
	}
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	return s.repo.List(ctx, q)
}

// ListPatientAppointments returns a patient's history, newest first. Doctors
// see only the visits booked with them.
func (s *AppointmentService) ListPatientAppointments(ctx context.Context, caller Caller, patientID uuid.UUID) ([]*appointment.Appointment, error) {
	switch caller.Role {
	case domain.RolePatient:
		if caller.PatientID == nil || *caller.PatientID != patientID {
			return nil, ErrForbidden
		}
	case domain.RoleAdmin, domain.RoleNurse, domain.RoleReceptionist, domain.RoleDoctor:
	default:
		return nil, ErrForbidden
	}

	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}

	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("listing patient appointments: %w", err)
	}
	if caller.Role == domain.RoleDoctor {
		appts = slices.DeleteFunc(appts, func(a *appointment.Appointment) bool { return a.DoctorID != caller.UserID })
	}
	return appts, nil
}

// GetDoctorSchedule returns the doctor's active appointments for the date
// (today when date is nil), earliest first.
func (s *AppointmentService) GetDoctorSchedule(ctx context.Context, caller Caller, doctorID uuid.UUID, date *time.Time) ([]*appointment.Appointment, error) {
	if !canViewSchedule(caller, doctorID) {
		return nil, ErrForbidden
	}
	day := s.now()
	if date != nil {
		day = *date
	}
	appts, err := s.repo.FindActive(ctx, doctorID, appointment.NormalizeDate(day))
	if err != nil {
		return nil, fmt.Errorf("loading doctor schedule: %w", err)
	}
	return appts, nil
}

// GetDoctorAvailability reports busy intervals and free slots within clinic
// hours. The result is advisory; only BookAppointment admits a booking.
func (s *AppointmentService) GetDoctorAvailability(ctx context.Context, doctorID uuid.UUID, date time.Time, slotMinutes int) (*appointment.Availability, error) {
	ctx, span := s.tracer.Start(ctx, "AppointmentService.GetDoctorAvailability", trace.WithAttributes(
		attribute.String("doctor.id", doctorID.String()),
	))
	defer span.End()

	if slotMinutes == 0 {
		slotMinutes = s.opts.SlotMinutes
	}
	if slotMinutes < appointment.MinDurationMinutes || slotMinutes > appointment.MaxDurationMinutes {
		return nil, &ValidationError{Fields: []string{
			fmt.Sprintf("duration: must be between %d and %d minutes", appointment.MinDurationMinutes, appointment.MaxDurationMinutes),
		}}
	}
	day := appointment.NormalizeDate(date)

	if av, ok := s.cache.Get(ctx, doctorID, day, slotMinutes); ok {
		s.metrics.AvailabilityCacheTotal.WithLabelValues("hit").Inc()
		return av, nil
	}
	s.metrics.AvailabilityCacheTotal.WithLabelValues("miss").Inc()

	if err := s.verifyDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	gen, cacheable := s.cache.Generation(ctx, doctorID, day)
	appts, err := s.repo.FindActive(ctx, doctorID, day)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading doctor calendar: %w", err)
	}

	busy := appointment.BusyIntervals(appts)
	av := &appointment.Availability{
		DoctorID:       doctorID,
		Date:           day,
		WorkHours:      s.opts.WorkHours,
		SlotMinutes:    slotMinutes,
		BusySlots:      busy,
		AvailableSlots: appointment.AvailableSlots(s.opts.WorkHours, busy, slotMinutes),
	}
	if cacheable {
		s.cache.Set(ctx, av, gen)
	}
	return av, nil
}

// ListDoctors returns the active doctors, sorted by first name.
func (s *AppointmentService) ListDoctors(ctx context.Context) ([]*domain.User, error) {
	doctors, err := s.doctors.ListActiveByRole(ctx, domain.RoleDoctor)
	if err != nil {
		return nil, fmt.Errorf("listing doctors: %w", err)
	}
	slices.SortStableFunc(doctors, func(a, b *domain.User) int {
		return strings.Compare(a.FirstName, b.FirstName)
	})
	return doctors, nil
}

// bookingCandidate validates cmd before any store access and builds the
// appointment to insert.
func (s *AppointmentService) bookingCandidate(caller Caller, cmd *appointment.CreateAppointmentCommand) (*appointment.Appointment, error) {
	verr := &ValidationError{}

	if cmd.PatientID == uuid.Nil {
		verr.add("patientId", "is required")
	}
	if cmd.DoctorID == uuid.Nil {
		verr.add("doctorId", "is required")
	}
	if cmd.AppointmentDate.IsZero() {
		verr.add("appointmentDate", "is required")
	}

	window, ok := validateWindow(verr, cmd.StartTime, cmd.EndTime)

	reason := strings.TrimSpace(cmd.Reason)
	validateReason(verr, reason)

	notes := strings.TrimSpace(cmd.Notes)
	validateNotes(verr, notes)

	priority := cmd.Priority
	if priority == "" {
		priority = appointment.PriorityRoutine
	}
	if !priority.IsValid() {
		verr.add("priority", appointment.ErrInvalidPriority.Error())
	}

	if err := verr.orNil(); err != nil || !ok {
		return nil, verr
	}

	return &appointment.Appointment{
		PatientID:           cmd.PatientID,
		DoctorID:            cmd.DoctorID,
		CreatedByID:         caller.UserID,
		AppointmentDate:     appointment.NormalizeDate(cmd.AppointmentDate),
		StartTime:           window.Start,
		EndTime:             window.End,
		DurationMinutes:     window.DurationMinutes(),
		Reason:              reason,
		Status:              appointment.StatusScheduled,
		Priority:            priority,
		Notes:               notes,
		FollowUpForRecordID: cmd.FollowUpForRecordID,
	}, nil
}

// validateWindow records time problems on verr. ok is false when no window
// could be built.
func validateWindow(verr *ValidationError, start, end string) (appointment.Interval, bool) {
	window, err := appointment.NewInterval(start, end)
	switch {
	case errors.Is(err, appointment.ErrInvalidTimeFormat):
		if _, serr := appointment.ParseClock(start); serr != nil {
			verr.add("startTime", appointment.ErrInvalidTimeFormat.Error())
		}
		if _, eerr := appointment.ParseClock(end); eerr != nil {
			verr.add("endTime", appointment.ErrInvalidTimeFormat.Error())
		}
		return window, false
	case errors.Is(err, appointment.ErrEndBeforeStart):
		verr.add("endTime", err.Error())
		return window, false
	}

	d := window.DurationMinutes()
	if d < appointment.MinDurationMinutes || d > appointment.MaxDurationMinutes {
		verr.add("duration", appointment.ErrInvalidDuration.Error())
		return window, false
	}
	return window, true
}

func validateReason(verr *ValidationError, reason string) {
	n := utf8.RuneCountInString(reason)
	if n < appointment.MinReasonLength || n > appointment.MaxReasonLength {
		verr.add("reason", fmt.Sprintf("must be between %d and %d characters", appointment.MinReasonLength, appointment.MaxReasonLength))
	}
}

func validateNotes(verr *ValidationError, notes string) {
	if utf8.RuneCountInString(notes) > appointment.MaxNotesLength {
		verr.add("notes", fmt.Sprintf("cannot exceed %d characters", appointment.MaxNotesLength))
	}
}

func validateUpdate(cmd *appointment.UpdateAppointmentCommand) error {
	verr := &ValidationError{}

	if cmd.StartTime != nil {
		if _, err := appointment.ParseClock(*cmd.StartTime); err != nil {
			verr.add("startTime", appointment.ErrInvalidTimeFormat.Error())
		}
	}
	if cmd.EndTime != nil {
		if _, err := appointment.ParseClock(*cmd.EndTime); err != nil {
			verr.add("endTime", appointment.ErrInvalidTimeFormat.Error())
		}
	}
	if cmd.Reason != nil {
		validateReason(verr, strings.TrimSpace(*cmd.Reason))
	}
	if cmd.Notes != nil {
		validateNotes(verr, strings.TrimSpace(*cmd.Notes))
	}
	if cmd.Priority != nil && !cmd.Priority.IsValid() {
		verr.add("priority", appointment.ErrInvalidPriority.Error())
	}
	if cmd.Status != nil && !cmd.Status.IsValid() {
		verr.add("status", appointment.ErrInvalidStatus.Error())
	}
	return verr.orNil()
}

// applySchedule merges the schedule fields of cmd over a's current slot and
// reschedules a. The resulting window is validated like a new booking.
func (s *AppointmentService) applySchedule(a *appointment.Appointment, cmd *appointment.UpdateAppointmentCommand) error {
	date := a.AppointmentDate
	if cmd.AppointmentDate != nil {
		date = *cmd.AppointmentDate
	}
	start, end := a.StartTime.String(), a.EndTime.String()
	if cmd.StartTime != nil {
		start = *cmd.StartTime
	}
	if cmd.EndTime != nil {
		end = *cmd.EndTime
	}

	verr := &ValidationError{}
	window, ok := validateWindow(verr, start, end)
	if !ok {
		return verr
	}
	return a.Reschedule(date, window)
}

func (s *AppointmentService) persistUpdate(ctx context.Context, before, after *appointment.Appointment) error {
	if !after.IsActive() {
		return s.repo.UpdateInactive(ctx, after)
	}

	slotChanged := !before.IsActive() ||
		!before.AppointmentDate.Equal(after.AppointmentDate) ||
		before.StartTime != after.StartTime ||
		before.EndTime != after.EndTime
	if slotChanged && s.checker.HasConflict(ctx, after, &after.ID) {
		return appointment.ErrAppointmentConflict
	}

	return s.guardedWrite(ctx, "update", func(ctx context.Context) error {
		return s.repo.UpdateIfNoConflict(ctx, after)
	})
}

// guardedWrite runs a conflict-guarded store call under the store timeout.
func (s *AppointmentService) guardedWrite(ctx context.Context, op string, fn func(context.Context) error) error {
	if s.opts.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.StoreTimeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	s.metrics.GuardedWriteDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return err
}

func (s *AppointmentService) verifyParticipants(ctx context.Context, doctorID, patientID uuid.UUID) error {
	if err := s.verifyDoctor(ctx, doctorID); err != nil {
		return err
	}

	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, patient.ErrPatientNotFound) {
			return err
		}
		return fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive() {
		return patient.ErrPatientInactive
	}
	return nil
}

func (s *AppointmentService) verifyDoctor(ctx context.Context, doctorID uuid.UUID) error {
	doc, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("verifying doctor: %w", err)
	}
	if err != nil || !doc.IsBookableDoctor() {
		return &ValidationError{Fields: []string{"doctorId: invalid doctor selected"}}
	}
	return nil
}

func (s *AppointmentService) invalidate(ctx context.Context, before, after *appointment.Appointment) {
	s.cache.Invalidate(ctx, after.DoctorID, after.AppointmentDate)
	if !before.AppointmentDate.Equal(after.AppointmentDate) || before.DoctorID != after.DoctorID {
		s.cache.Invalidate(ctx, before.DoctorID, before.AppointmentDate)
	}
}

func outcomeFor(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, patient.ErrPatientNotFound), errors.Is(err, patient.ErrPatientInactive):
		return "invalid"
	case errors.Is(err, appointment.ErrAppointmentConflict):
		return "conflict"
	}
	return "error"
}

func emptyPage(q *appointment.ListAppointmentsQuery) *appointment.PagedAppointments {
	page, size := normalizePage(q.Page, q.PageSize)
	return &appointment.PagedAppointments{
		Appointments: []*appointment.Appointment{},
		Page:         page,
		PageSize:     size,
	}
}
