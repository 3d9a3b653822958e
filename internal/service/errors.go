package service

import (
	"errors"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/google/uuid"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, field+": "+msg)
}

// orNil lets callers build a ValidationError unconditionally and return it
// only when something was recorded.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Caller identifies who is acting on a request and from where. Handlers build
// it from the verified token and the incoming request.
type Caller struct {
	UserID    uuid.UUID
	Role      domain.Role
	PatientID *uuid.UUID
	IPAddress string
	UserAgent string
	RequestID string
}

type AuditEntry struct {
	Caller     Caller
	Action     domain.AuditAction
	TargetType domain.AuditTarget
	TargetID   string
	Before     any
	After      any
	Meta       map[string]any
}
