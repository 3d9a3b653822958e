package service

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConflictChecker answers whether a candidate overlaps an active appointment
// already on the doctor's calendar for that date.
//
// It fails closed: when the store cannot be read the answer is "conflict",
// never "free".
type ConflictChecker struct {
	repo    appointment.Repository
	timeout time.Duration
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewConflictChecker(repo appointment.Repository, timeout time.Duration, m *metrics.Collector, log *zap.Logger) *ConflictChecker {
	return &ConflictChecker{repo: repo, timeout: timeout, metrics: m, log: log}
}

// HasConflict is read-only. excludeID names an appointment to ignore, normally
// the one being rescheduled.
func (c *ConflictChecker) HasConflict(ctx context.Context, candidate *appointment.Appointment, excludeID *uuid.UUID) bool {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	existing, err := c.repo.FindActive(ctx, candidate.DoctorID, candidate.AppointmentDate)
	if err != nil {
		c.metrics.ConflictChecksTotal.WithLabelValues("store_error").Inc()
		c.log.Error("conflict check failed, treating slot as taken",
			zap.String("doctor_id", candidate.DoctorID.String()),
			zap.String("date", candidate.AppointmentDate.Format(appointment.DateLayout)),
			zap.String("start", candidate.StartTime.String()),
			zap.String("end", candidate.EndTime.String()),
			zap.Error(err),
		)
		return true
	}

	if clash := appointment.FirstConflict(existing, candidate, excludeID); clash != nil {
		c.metrics.ConflictChecksTotal.WithLabelValues("conflict").Inc()
		c.log.Info("appointment conflict",
			zap.String("doctor_id", candidate.DoctorID.String()),
			zap.String("date", candidate.AppointmentDate.Format(appointment.DateLayout)),
			zap.String("requested", candidate.StartTime.String()+"-"+candidate.EndTime.String()),
			zap.String("conflicts_with", clash.ID.String()),
		)
		return true
	}

	c.metrics.ConflictChecksTotal.WithLabelValues("clear").Inc()
	return false
}
