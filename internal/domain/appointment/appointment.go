package appointment

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480

	MinReasonLength = 5
	MaxReasonLength = 500
	MaxNotesLength  = 1000

	// DateLayout is the wire format of AppointmentDate.
	DateLayout = "2006-01-02"
)

type Priority string

const (
	PriorityRoutine   Priority = "routine"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityRoutine, PriorityUrgent, PriorityEmergency:
		return true
	}
	return false
}

// State transitions possibilities:
//
//	scheduled → confirmed → in-progress → completed
//	scheduled | confirmed → cancelled
//	scheduled | confirmed → no-show (if patient doesn't arrive)
//	cancelled → scheduled (reinstated, re-validated against the calendar)
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// ActiveStatuses is the set of statuses that occupy a doctor's calendar.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed, StatusInProgress}

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// IsActive reports whether s belongs to the active family. Only active
// appointments take part in conflict detection and availability.
func (s Status) IsActive() bool {
	return slices.Contains(ActiveStatuses, s)
}

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {StatusScheduled},
	StatusNoShow:     {},
}

type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// Version increases by one on every write. Updates only apply to the
	// version they were read at.
	Version int64 `gorm:"column:version;not null;default:1" json:"version"`

	PatientID   uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patientId"`
	DoctorID    uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index" json:"doctorId"`
	CreatedByID uuid.UUID `gorm:"column:created_by_id;type:uuid;not null" json:"createdById"`

	// Calendar date only; the time-of-day part is always midnight UTC.
	AppointmentDate time.Time `gorm:"column:appointment_date;type:date;not null;index" json:"appointmentDate"`
	StartTime       Clock     `gorm:"column:start_time;type:varchar(5);not null" json:"startTime"`
	EndTime         Clock     `gorm:"column:end_time;type:varchar(5);not null" json:"endTime"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null" json:"durationMinutes"`

	Reason   string   `gorm:"column:reason;type:varchar(500);not null" json:"reason"`
	Status   Status   `gorm:"column:status;type:varchar(20);not null;default:'scheduled';index" json:"status"`
	Priority Priority `gorm:"column:priority;type:varchar(20);not null;default:'routine'" json:"priority"`
	Notes    string   `gorm:"column:notes;type:text" json:"notes,omitempty"`

	FollowUpForRecordID *uuid.UUID `gorm:"column:follow_up_for_record_id;type:uuid" json:"followUpForRecordId,omitempty"`
}

func (Appointment) TableName() string {
	return "clinical.appointments"
}

func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

// IsActive reports whether the appointment currently occupies the doctor's calendar.
func (a *Appointment) IsActive() bool {
	return a.Status.IsActive()
}

func (a *Appointment) CanTransitionTo(newStatus Status) bool {
	return slices.Contains(transitions[a.Status], newStatus)
}

// TransitionTo moves the appointment to newStatus if the state machine allows it.
// Setting the current status again is a no-op.
func (a *Appointment) TransitionTo(newStatus Status) error {
	if !newStatus.IsValid() {
		return ErrInvalidStatus
	}
	if a.Status == newStatus {
		return nil
	}
	if !a.CanTransitionTo(newStatus) {
		return ErrInvalidStatusTransition
	}
	a.Status = newStatus
	return nil
}

// Cancel soft-deletes the appointment from any status. It bypasses the
// transition table and cancelling twice is a no-op.
func (a *Appointment) Cancel() {
	a.Status = StatusCancelled
}

// Reschedule moves the appointment to a new date and time window and
// recomputes its duration. Only active appointments can be rescheduled.
func (a *Appointment) Reschedule(date time.Time, window Interval) error {
	if !a.IsActive() {
		return ErrNotReschedulable
	}
	a.AppointmentDate = NormalizeDate(date)
	a.StartTime = window.Start
	a.EndTime = window.End
	a.DurationMinutes = window.DurationMinutes()
	return nil
}

// Conflicts reports whether candidate overlaps any active appointment in
// existing for the same doctor and date. The appointment named by excludeID
// is ignored so an appointment never conflicts with its own prior slot.
func Conflicts(existing []*Appointment, candidate *Appointment, excludeID *uuid.UUID) bool {
	return FirstConflict(existing, candidate, excludeID) != nil
}

// FirstConflict returns the first appointment that makes Conflicts true, or nil.
func FirstConflict(existing []*Appointment, candidate *Appointment, excludeID *uuid.UUID) *Appointment {
	window := candidate.Interval()
	day := NormalizeDate(candidate.AppointmentDate)

	for _, other := range existing {
		if excludeID != nil && other.ID == *excludeID {
			continue
		}
		if other.DoctorID != candidate.DoctorID || !NormalizeDate(other.AppointmentDate).Equal(day) {
			continue
		}
		if !other.IsActive() {
			continue
		}
		if other.Interval().Overlaps(window) {
			return other
		}
	}
	return nil
}

// NormalizeDate drops the time-of-day part, keeping the calendar date as seen
// in t's own location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts "2006-01-02" or a full RFC 3339 timestamp and returns the
// calendar date.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeDate(t), nil
}

type CreateAppointmentCommand struct {
	PatientID           uuid.UUID
	DoctorID            uuid.UUID
	AppointmentDate     time.Time
	StartTime           string
	EndTime             string
	Reason              string
	Priority            Priority
	Notes               string
	FollowUpForRecordID *uuid.UUID
}

// UpdateAppointmentCommand is a partial update; nil fields are left unchanged.
type UpdateAppointmentCommand struct {
	AppointmentDate *time.Time
	StartTime       *string
	EndTime         *string
	Reason          *string
	Priority        *Priority
	Status          *Status
	Notes           *string
}

// HasScheduleChange reports whether the command touches date or time.
func (c *UpdateAppointmentCommand) HasScheduleChange() bool {
	return c.AppointmentDate != nil || c.StartTime != nil || c.EndTime != nil
}

type ListAppointmentsQuery struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Statuses  []Status
	Date      *time.Time
	Page      int
	PageSize  int
}

type PagedAppointments struct {
	Appointments []*Appointment
	TotalCount   int64
	Page         int
	PageSize     int
	TotalPages   int
}
