package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/repository/memory"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/service"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeUsers struct {
	byID map[uuid.UUID]*domain.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUsers) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (f *fakeUsers) ListActiveByRole(_ context.Context, role domain.Role) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range f.byID {
		if u.Role == role && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) UpdateLoginState(context.Context, uuid.UUID, int, *time.Time, *time.Time) error {
	return nil
}

type fakePatients map[uuid.UUID]*patient.Patient

func (f fakePatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, patient.ErrPatientNotFound
}

type discardAuditRepo struct{}

func (discardAuditRepo) Name() string { return "discard" }

func (discardAuditRepo) Write(context.Context, *domain.AuditLog) error { return nil }

func (discardAuditRepo) List(_ context.Context, q *domain.ListAuditLogsQuery) (*domain.PagedAuditLogs, error) {
	return &domain.PagedAuditLogs{Logs: []*domain.AuditLog{}, Page: q.Page, PageSize: q.PageSize}, nil
}

type testServer struct {
	router    *gin.Engine
	jwt       *auth.JWTManager
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("test", reg)

	doctorID, patientID := uuid.New(), uuid.New()
	users := &fakeUsers{byID: map[uuid.UUID]*domain.User{
		doctorID: {ID: doctorID, FirstName: "Amara", LastName: "Osei", Role: domain.RoleDoctor, IsActive: true, PasswordHash: "secret-hash"},
	}}
	patients := fakePatients{patientID: {ID: patientID, FirstName: "Lena", LastName: "Park", Status: patient.StatusActive}}

	cfg := &config.Config{
		App: config.AppConfig{Name: "medidoc-test", Environment: "test", Version: "test"},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         time.Hour,
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000, AuthRequestsPerMinute: 600},
	}
	jwt := auth.NewJWTManager(config.JWTConfig{
		Secret:          "router-test-secret-0123456789abcdefghij",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "medidoc-test",
	})

	auditSvc := service.NewAuditService(discardAuditRepo{}, 64, m, log)
	t.Cleanup(auditSvc.Shutdown)

	appts := service.NewAppointmentService(memory.NewAppointmentRepository(), patients, users, auditSvc, nil,
		service.SchedulingOptions{StoreTimeout: time.Second}, m, log)

	router, err := NewRouter(RouterDeps{
		Config:       cfg,
		Log:          log,
		Metrics:      m,
		Gatherer:     reg,
		JWT:          jwt,
		Appointments: appts,
		Auth:         service.NewAuthService(users, jwt, auditSvc, log),
		Audit:        auditSvc,
	})
	require.NoError(t, err)

	return &testServer{router: router, jwt: jwt, doctorID: doctorID, patientID: patientID}
}

func (s *testServer) token(t *testing.T, role domain.Role) string {
	t.Helper()
	claims := &domain.Claims{UserID: uuid.New(), Role: role}
	if role == domain.RolePatient {
		claims.PatientID = &s.patientID
	}
	pair, err := s.jwt.GenerateTokenPair(claims)
	require.NoError(t, err)
	return pair.AccessToken
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) booking(start, end string) map[string]string {
	return map[string]string{
		"patientId":       s.patientID.String(),
		"doctorId":        s.doctorID.String(),
		"appointmentDate": "2030-01-15",
		"startTime":       start,
		"endTime":         end,
		"reason":          "Follow-up consultation",
	}
}

func TestBookingOverHTTP(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, domain.RoleReceptionist)

	w := s.do(t, http.MethodPost, "/api/v1/appointments", tok, s.booking("10:00", "10:30"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			StartTime string `json:"startTime"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "scheduled", created.Data.Status)
	assert.Equal(t, "10:00", created.Data.StartTime)

	w = s.do(t, http.MethodPost, "/api/v1/appointments", tok, s.booking("10:15", "10:45"))
	assert.Equal(t, http.StatusConflict, w.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "This time slot is already booked", errResp.Error)

	w = s.do(t, http.MethodPost, "/api/v1/appointments", tok, s.booking("10:30", "11:00"))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/appointments/"+created.Data.ID, tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/appointments/"+created.Data.ID, tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/appointments", tok, s.booking("10:00", "10:30"))
	assert.Equal(t, http.StatusCreated, w.Code, "a cancelled slot is free again")
}

func TestBookingValidationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, domain.RoleNurse)

	body := s.booking("25:00", "09:30")
	body["patientId"] = "not-a-uuid"
	w := s.do(t, http.MethodPost, "/api/v1/appointments", tok, body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ValidationErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "patientId: must be a valid UUID")

	w = s.do(t, http.MethodPost, "/api/v1/appointments", tok, s.booking("25:00", "09:30"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "startTime: time must be in HH:MM format")

	w = s.do(t, http.MethodPut, "/api/v1/appointments/nope", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/appointments", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/v1/appointments", "", s.booking("10:00", "10:30")).Code)
	assert.Equal(t, http.StatusForbidden,
		s.do(t, http.MethodPost, "/api/v1/appointments", s.token(t, domain.RolePatient), s.booking("10:00", "10:30")).Code)
}

func TestAvailabilityOverHTTP(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, domain.RoleReceptionist)

	path := "/api/v1/appointments/availability/" + s.doctorID.String()
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, path, tok, nil).Code)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/appointments", tok, s.booking("10:00", "10:30")).Code)

	w := s.do(t, http.MethodGet, path+"?date=2030-01-15", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Date           string `json:"date"`
			BusySlots      []any  `json:"busySlots"`
			AvailableSlots []struct {
				Start string `json:"start"`
				End   string `json:"end"`
			} `json:"availableSlots"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2030-01-15", resp.Data.Date)
	assert.Len(t, resp.Data.BusySlots, 1)
	assert.Len(t, resp.Data.AvailableSlots, 15)
	for _, slot := range resp.Data.AvailableSlots {
		assert.NotEqual(t, "10:00", slot.Start)
	}

	w = s.do(t, http.MethodGet, path+"?date=2030-01-15&slotMinutes=5", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityRejectsMalformedSlotMinutes(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, domain.RoleReceptionist)
	path := "/api/v1/appointments/availability/" + s.doctorID.String() + "?date=2030-01-15"

	for _, raw := range []string{"abc", "-30", "0", "30m"} {
		w := s.do(t, http.MethodGet, path+"&slotMinutes="+raw, tok, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
		assert.Contains(t, w.Body.String(), "slotMinutes", raw)
	}

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/appointments", tok, s.booking("10:00", "10:30")).Code)

	w := s.do(t, http.MethodGet, path+"&slotMinutes=60", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			SlotMinutes    int   `json:"slotMinutes"`
			AvailableSlots []any `json:"availableSlots"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 60, resp.Data.SlotMinutes)
	assert.Len(t, resp.Data.AvailableSlots, 7)
}

func TestDoctorsDoNotExposeCredentials(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/appointments/doctors", s.token(t, domain.RolePatient), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Amara")
	assert.NotContains(t, w.Body.String(), "secret-hash")
}

func TestAuditsAreAdminOnly(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/v1/audits", s.token(t, domain.RoleDoctor), nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/audits?limit=5", s.token(t, domain.RoleAdmin), nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/audits?from=yesterday", s.token(t, domain.RoleAdmin), nil).Code)
}

func TestNewRouter_RejectsMalformedTrustedProxy(t *testing.T) {
	_, err := NewRouter(RouterDeps{Config: &config.Config{
		Server: config.ServerConfig{TrustedProxies: []string{"10.0.0.0/33"}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_TRUSTED_PROXIES")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil).Code)

	s.do(t, http.MethodGet, "/healthz", "", nil)
	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestLoginWithUnknownUser(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ghost@clinic.test", "password": "whatever"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
