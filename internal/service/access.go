package service

import (
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/appointment"
	"github.com/google/uuid"
)

// Front-desk and nursing staff manage every doctor's calendar.
func managesAnyCalendar(r domain.Role) bool {
	switch r {
	case domain.RoleAdmin, domain.RoleNurse, domain.RoleReceptionist:
		return true
	}
	return false
}

func canBook(c Caller, doctorID uuid.UUID) bool {
	if managesAnyCalendar(c.Role) {
		return true
	}
	return c.Role == domain.RoleDoctor && c.UserID == doctorID
}

func canManage(c Caller, a *appointment.Appointment) bool {
	return canBook(c, a.DoctorID)
}

func canView(c Caller, a *appointment.Appointment) bool {
	if c.Role == domain.RolePatient {
		return c.PatientID != nil && *c.PatientID == a.PatientID
	}
	return canManage(c, a)
}

func canViewSchedule(c Caller, doctorID uuid.UUID) bool {
	return canBook(c, doctorID)
}
