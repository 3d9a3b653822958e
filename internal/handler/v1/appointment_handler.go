package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/handler/middleware"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AppointmentHandler struct {
	svc *service.AppointmentService
}

func NewAppointmentHandler(svc *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type createAppointmentRequest struct {
	PatientID           string `json:"patientId"`
	DoctorID            string `json:"doctorId"`
	AppointmentDate     string `json:"appointmentDate"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	Reason              string `json:"reason"`
	Priority            string `json:"priority"`
	Notes               string `json:"notes"`
	FollowUpForRecordID string `json:"followUpForRecordId"`
}

// updateAppointmentRequest uses pointers so absent fields stay unchanged.
type updateAppointmentRequest struct {
	AppointmentDate *string `json:"appointmentDate"`
	StartTime       *string `json:"startTime"`
	EndTime         *string `json:"endTime"`
	Reason          *string `json:"reason"`
	Priority        *string `json:"priority"`
	Status          *string `json:"status"`
	Notes           *string `json:"notes"`
}

type doctorResponse struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Specialization string    `json:"specialization,omitempty"`
	Phone          string    `json:"phone,omitempty"`
}

type appointmentListResponse struct {
	Appointments []*appointment.Appointment `json:"appointments"`
	Pagination   Pagination                 `json:"pagination"`
}

type availabilityResponse struct {
	DoctorID       uuid.UUID              `json:"doctorId"`
	Date           string                 `json:"date"`
	WorkHours      appointment.WorkHours  `json:"workHours"`
	SlotMinutes    int                    `json:"slotMinutes"`
	BusySlots      []appointment.Interval `json:"busySlots"`
	AvailableSlots []appointment.Slot     `json:"availableSlots"`
}

func (h *AppointmentHandler) Create(c *gin.Context) {
	var req createAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	var fields []string
	cmd := &appointment.CreateAppointmentCommand{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		Priority:  appointment.Priority(req.Priority),
		Notes:     req.Notes,
	}
	cmd.PatientID, fields = requiredUUID(fields, "patientId", req.PatientID)
	cmd.DoctorID, fields = requiredUUID(fields, "doctorId", req.DoctorID)
	if req.AppointmentDate != "" {
		d, err := appointment.ParseDate(req.AppointmentDate)
		if err != nil {
			fields = append(fields, "appointmentDate: expected YYYY-MM-DD")
		}
		cmd.AppointmentDate = d
	}
	if req.FollowUpForRecordID != "" {
		id, err := uuid.Parse(req.FollowUpForRecordID)
		if err != nil {
			fields = append(fields, "followUpForRecordId: must be a valid UUID")
		} else {
			cmd.FollowUpForRecordID = &id
		}
	}
	if len(fields) > 0 {
		respondServiceError(c, &service.ValidationError{Fields: fields})
		return
	}

	a, err := h.svc.BookAppointment(c.Request.Context(), middleware.CallerFrom(c), cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, a, "Appointment scheduled successfully")
}

func (h *AppointmentHandler) Update(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req updateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &appointment.UpdateAppointmentCommand{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		Notes:     req.Notes,
	}
	if req.AppointmentDate != nil {
		d, err := appointment.ParseDate(*req.AppointmentDate)
		if err != nil {
			respondServiceError(c, &service.ValidationError{Fields: []string{"appointmentDate: expected YYYY-MM-DD"}})
			return
		}
		cmd.AppointmentDate = &d
	}
	if req.Priority != nil {
		p := appointment.Priority(*req.Priority)
		cmd.Priority = &p
	}
	if req.Status != nil {
		s := appointment.Status(*req.Status)
		cmd.Status = &s
	}

	a, err := h.svc.UpdateAppointment(c.Request.Context(), middleware.CallerFrom(c), id, cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.svc.CancelAppointment(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse[any]{Data: a, Message: "Appointment cancelled successfully"})
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.svc.GetAppointment(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AppointmentHandler) List(c *gin.Context) {
	q := &appointment.ListAppointmentsQuery{
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "limit", 20),
	}
	var ok bool
	if q.DoctorID, ok = parseOptionalUUID(c, "doctorId"); !ok {
		return
	}
	if q.PatientID, ok = parseOptionalUUID(c, "patientId"); !ok {
		return
	}
	if q.Date, ok = parseOptionalDate(c, "date"); !ok {
		return
	}
	if status := c.Query("status"); status != "" {
		q.Statuses = []appointment.Status{appointment.Status(status)}
	}

	page, err := h.svc.ListAppointments(c.Request.Context(), middleware.CallerFrom(c), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, appointmentListResponse{
		Appointments: page.Appointments,
		Pagination: Pagination{
			Page:  page.Page,
			Limit: page.PageSize,
			Total: page.TotalCount,
			Pages: page.TotalPages,
		},
	})
}

func (h *AppointmentHandler) ListForPatient(c *gin.Context) {
	patientID, ok := parseUUID(c, "patientId")
	if !ok {
		return
	}

	appts, err := h.svc.ListPatientAppointments(c.Request.Context(), middleware.CallerFrom(c), patientID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"appointments": appts})
}

func (h *AppointmentHandler) DoctorSchedule(c *gin.Context) {
	doctorID, ok := parseUUID(c, "doctorId")
	if !ok {
		return
	}
	date, ok := parseOptionalDate(c, "date")
	if !ok {
		return
	}

	appts, err := h.svc.GetDoctorSchedule(c.Request.Context(), middleware.CallerFrom(c), doctorID, date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"appointments": appts})
}

func (h *AppointmentHandler) Availability(c *gin.Context) {
	doctorID, ok := parseUUID(c, "doctorId")
	if !ok {
		return
	}
	if c.Query("date") == "" {
		respondError(c, http.StatusBadRequest, "date is required")
		return
	}
	date, ok := parseOptionalDate(c, "date")
	if !ok {
		return
	}
	slotMinutes, ok := parseOptionalPositiveInt(c, "slotMinutes")
	if !ok {
		return
	}

	av, err := h.svc.GetDoctorAvailability(c.Request.Context(), doctorID, *date, slotMinutes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, availabilityResponse{
		DoctorID:       av.DoctorID,
		Date:           av.Date.Format(appointment.DateLayout),
		WorkHours:      av.WorkHours,
		SlotMinutes:    av.SlotMinutes,
		BusySlots:      nonNil(av.BusySlots),
		AvailableSlots: nonNil(av.AvailableSlots),
	})
}

func (h *AppointmentHandler) Doctors(c *gin.Context) {
	doctors, err := h.svc.ListDoctors(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]doctorResponse, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, toDoctorResponse(d))
	}
	respondOK(c, gin.H{"doctors": out})
}

func toDoctorResponse(u *domain.User) doctorResponse {
	return doctorResponse{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Specialization: u.Specialization,
		Phone:          u.Phone,
	}
}

func requiredUUID(fields []string, name, raw string) (uuid.UUID, []string) {
	if raw == "" {
		return uuid.Nil, append(fields, name+": is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, append(fields, name+": must be a valid UUID")
	}
	return id, fields
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
