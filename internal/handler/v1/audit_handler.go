package v1

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/handler/middleware"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/service"
	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

type auditListResponse struct {
	Logs       []*domain.AuditLog `json:"logs"`
	Pagination Pagination         `json:"pagination"`
}

func (h *AuditHandler) List(c *gin.Context) {
	q := &domain.ListAuditLogsQuery{
		TargetID: c.Query("targetId"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "limit", 20),
	}

	var ok bool
	if q.UserID, ok = parseOptionalUUID(c, "userId"); !ok {
		return
	}
	if v := c.Query("targetType"); v != "" {
		t := domain.AuditTarget(v)
		q.TargetType = &t
	}
	if v := c.Query("action"); v != "" {
		a := domain.AuditAction(v)
		q.Action = &a
	}
	if q.From, ok = parseOptionalTime(c, "from"); !ok {
		return
	}
	if q.To, ok = parseOptionalTime(c, "to"); !ok {
		return
	}

	page, err := h.svc.ListAuditLogs(c.Request.Context(), middleware.CallerFrom(c), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, auditListResponse{
		Logs: page.Logs,
		Pagination: Pagination{
			Page:  page.Page,
			Limit: page.PageSize,
			Total: page.TotalCount,
			Pages: page.TotalPages,
		},
	})
}

// parseOptionalTime accepts RFC 3339 or a bare date (midnight UTC).
func parseOptionalTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	return parseOptionalDate(c, key)
}
