package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
	RolePatient      Role = "patient"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist, RolePatient:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	Email          string `gorm:"column:email;type:varchar(255);uniqueIndex;not null"`
	PasswordHash   string `gorm:"column:password_hash;type:varchar(255);not null"`
	FirstName      string `gorm:"column:first_name;type:varchar(100);not null"`
	LastName       string `gorm:"column:last_name;type:varchar(100);not null"`
	Role           Role   `gorm:"column:role;type:varchar(30);not null;index"`
	Specialization string `gorm:"column:specialization;type:varchar(100)"`
	Phone          string `gorm:"column:phone;type:varchar(20)"`

	// For patient role, links to their patient record
	PatientID *uuid.UUID `gorm:"column:patient_id;type:uuid;index"`

	IsActive         bool       `gorm:"column:is_active;default:true;index"`
	FailedLoginCount int        `gorm:"column:failed_login_count;default:0"`
	LockedUntil      *time.Time `gorm:"column:locked_until"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
}

func (User) TableName() string {
	return "auth.users"
}

// IsLocked returns true if the account is temporarily locked due to failed logins.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

// IsBookableDoctor reports whether appointments may be booked against this user.
func (u *User) IsBookableDoctor() bool {
	return u.Role == RoleDoctor && u.IsActive && u.DeletedAt == nil
}

type AuditAction string

const (
	ActionAppointmentCreate AuditAction = "APPOINTMENT_CREATE"
	ActionAppointmentUpdate AuditAction = "APPOINTMENT_UPDATE"
	ActionAppointmentCancel AuditAction = "APPOINTMENT_CANCEL"
	ActionLogin             AuditAction = "LOGIN"
)

type AuditTarget string

const (
	TargetPatient     AuditTarget = "patient"
	TargetRecord      AuditTarget = "record"
	TargetAppointment AuditTarget = "appointment"
	TargetAuth        AuditTarget = "auth"
	TargetSystem      AuditTarget = "system"
)

type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OccurredAt time.Time `gorm:"column:occurred_at;index" json:"occurredAt"`

	// Who
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;index" json:"userId,omitempty"`
	UserRole  Role       `gorm:"column:user_role;type:varchar(30)" json:"userRole,omitempty"`
	IPAddress string     `gorm:"column:ip_address;type:varchar(45)" json:"ipAddress,omitempty"` // Supports IPv6
	UserAgent string     `gorm:"column:user_agent;type:text" json:"userAgent,omitempty"`
	RequestID string     `gorm:"column:request_id;type:varchar(50);index" json:"requestId,omitempty"`

	// What
	Action     AuditAction `gorm:"column:action;type:varchar(40);not null;index" json:"action"`
	TargetType AuditTarget `gorm:"column:target_type;type:varchar(20);not null;index:idx_audit_target" json:"targetType"`
	TargetID   string      `gorm:"column:target_id;type:varchar(50);index:idx_audit_target" json:"targetId,omitempty"`

	// JSON object: {"before": {...}, "after": {...}, ...}
	Meta string `gorm:"column:meta;type:jsonb" json:"meta,omitempty"`
}

func (AuditLog) TableName() string {
	return "audit.logs"
}

type ListAuditLogsQuery struct {
	UserID     *uuid.UUID
	TargetType *AuditTarget
	TargetID   string
	Action     *AuditAction
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

type PagedAuditLogs struct {
	Logs       []*AuditLog
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"` // Always "Bearer"
}

type Claims struct {
	UserID    uuid.UUID  `json:"sub"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
}
