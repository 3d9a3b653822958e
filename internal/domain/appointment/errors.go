package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAppointmentConflict     = errors.New("this time slot is already booked")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrNotReschedulable        = errors.New("only scheduled, confirmed or in-progress appointments can be rescheduled")
	ErrInvalidTimeFormat       = errors.New("time must be in HH:MM format")
	ErrEndBeforeStart          = errors.New("end time must be after start time")
	ErrInvalidDuration         = errors.New("appointment duration must be between 15 and 480 minutes")
	ErrInvalidPriority         = errors.New("invalid appointment priority")
	ErrInvalidStatus           = errors.New("invalid appointment status")
	ErrStillActive             = errors.New("active appointments must be written through the conflict guard")
	ErrStaleAppointment        = errors.New("appointment was changed by another request, reload and retry")
)
