package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, q *ListAppointmentsQuery) (*PagedAppointments, error)

	// ListByPatient returns a patient's full history, newest date first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)

	// FindActive returns the doctor's active-family appointments for the date,
	// ordered by start time.
	FindActive(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Appointment, error)

	// InsertIfNoConflict persists a new appointment. The conflict check and the
	// insert are atomic with respect to other guarded writes for the same doctor
	// and date. Returns ErrAppointmentConflict when an active appointment overlaps.
	InsertIfNoConflict(ctx context.Context, a *Appointment) error

	// UpdateIfNoConflict persists every field of an existing appointment under
	// the same guarantee as InsertIfNoConflict, ignoring a's own row.
	// The write only applies if the stored row is still at a.Version; otherwise
	// it returns ErrStaleAppointment. On success a.Version is incremented.
	UpdateIfNoConflict(ctx context.Context, a *Appointment) error

	// UpdateInactive persists an appointment that is outside the active family
	// without taking the conflict guard; such a write can only shrink a doctor's
	// calendar. Returns ErrStillActive if a is in the active family. Versioning
	// follows UpdateIfNoConflict.
	UpdateInactive(ctx context.Context, a *Appointment) error
}
