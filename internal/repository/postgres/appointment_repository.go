// Package postgres implements the domain repositories on gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/appointment"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appointment.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("getting appointment %s: %w", id, err)
	}
	return &a, nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	tx := r.db.WithContext(ctx).Model(&appointment.Appointment{})

	if q.PatientID != nil {
		tx = tx.Where("patient_id = ?", *q.PatientID)
	}
	if q.DoctorID != nil {
		tx = tx.Where("doctor_id = ?", *q.DoctorID)
	}
	if len(q.Statuses) > 0 {
		tx = tx.Where("status IN ?", q.Statuses)
	}
	if q.Date != nil {
		tx = tx.Where("appointment_date = ?", appointment.NormalizeDate(*q.Date))
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting appointments: %w", err)
	}

	var rows []*appointment.Appointment
	err := tx.Order("appointment_date DESC, start_time DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}

	return &appointment.PagedAppointments{
		Appointments: rows,
		TotalCount:   total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   totalPages(total, q.PageSize),
	}, nil
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*appointment.Appointment, error) {
	var rows []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("appointment_date DESC, start_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing appointments for patient %s: %w", patientID, err)
	}
	return rows, nil
}

func (r *AppointmentRepository) FindActive(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*appointment.Appointment, error) {
	rows, err := findActive(r.db.WithContext(ctx), doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("finding active appointments: %w", err)
	}
	return rows, nil
}

func (r *AppointmentRepository) InsertIfNoConflict(ctx context.Context, a *appointment.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.AppointmentDate = appointment.NormalizeDate(a.AppointmentDate)
	a.Version = 1

	return r.guarded(ctx, a, nil, func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("inserting appointment: %w", err)
		}
		return nil
	})
}

func (r *AppointmentRepository) UpdateIfNoConflict(ctx context.Context, a *appointment.Appointment) error {
	a.AppointmentDate = appointment.NormalizeDate(a.AppointmentDate)

	return r.guarded(ctx, a, &a.ID, func(tx *gorm.DB) error {
		return updateAll(tx, a)
	})
}

func (r *AppointmentRepository) UpdateInactive(ctx context.Context, a *appointment.Appointment) error {
	if a.IsActive() {
		return appointment.ErrStillActive
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateAll(tx, a)
	})
}

// guarded runs write inside a transaction that holds the advisory lock for
// a's doctor and day. The lock is released at commit or rollback, and every
// guarded write for the same day takes it before reading the calendar.
func (r *AppointmentRepository) guarded(ctx context.Context, a *appointment.Appointment, excludeID *uuid.UUID, write func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", dayLockKey(a.DoctorID, a.AppointmentDate)).Error; err != nil {
			return fmt.Errorf("acquiring calendar lock: %w", err)
		}

		existing, err := findActive(tx, a.DoctorID, a.AppointmentDate)
		if err != nil {
			return fmt.Errorf("re-reading calendar: %w", err)
		}
		if appointment.Conflicts(existing, a, excludeID) {
			return appointment.ErrAppointmentConflict
		}

		return write(tx)
	})
}

func findActive(tx *gorm.DB, doctorID uuid.UUID, date time.Time) ([]*appointment.Appointment, error) {
	var rows []*appointment.Appointment
	err := tx.
		Where("doctor_id = ? AND appointment_date = ? AND status IN ?",
			doctorID, appointment.NormalizeDate(date), appointment.ActiveStatuses).
		Order("start_time ASC").
		Find(&rows).Error
	return rows, err
}

// updateAll writes every column of a, provided the row is still at a.Version.
// It must run inside a transaction so the not-found/stale distinction is read
// from the same snapshot as the failed update.
func updateAll(tx *gorm.DB, a *appointment.Appointment) error {
	expected := a.Version
	a.Version = expected + 1

	res := tx.Model(&appointment.Appointment{}).
		Where("id = ? AND version = ?", a.ID, expected).
		Select("*").
		Omit("id", "created_at").
		Updates(a)
	if res.Error != nil {
		a.Version = expected
		return fmt.Errorf("updating appointment %s: %w", a.ID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	a.Version = expected
	var n int64
	if err := tx.Model(&appointment.Appointment{}).Where("id = ?", a.ID).Count(&n).Error; err != nil {
		return fmt.Errorf("checking appointment %s: %w", a.ID, err)
	}
	if n == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return appointment.ErrStaleAppointment
}

func dayLockKey(doctorID uuid.UUID, date time.Time) string {
	return "appointments:" + doctorID.String() + ":" + appointment.NormalizeDate(date).Format(appointment.DateLayout)
}

func totalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
