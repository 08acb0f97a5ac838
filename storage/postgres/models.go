// Package postgres persists customers, issued-license metadata, audit
// entries, and API credentials. The verification engine itself never touches
// this package; it exists for the service around it.
package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LicenseStatus tracks the server-side lifecycle of an issued license. The
// token itself is immutable; status changes live only here.
type LicenseStatus string

const (
	StatusActive    LicenseStatus = "active"
	StatusExpired   LicenseStatus = "expired"
	StatusRevoked   LicenseStatus = "revoked"
	StatusSuspended LicenseStatus = "suspended"
)

// Customer is a licensee record. The engine only ever sees the id/name pair.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID       string `bun:"id,pk" json:"id"`
	Name     string `bun:"name,notnull" json:"name"`
	Email    string `bun:"email,nullzero" json:"email,omitempty"`
	Company  string `bun:"company,nullzero" json:"company,omitempty"`
	Phone    string `bun:"phone,nullzero" json:"phone,omitempty"`
	Address  string `bun:"address,nullzero" json:"address,omitempty"`
	Notes    string `bun:"notes,nullzero" json:"notes,omitempty"`
	IsActive bool   `bun:"is_active,notnull,default:true" json:"is_active"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// License is the stored record of one issued token.
type License struct {
	bun.BaseModel `bun:"table:licenses,alias:l"`

	ID         uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	CustomerID string    `bun:"customer_id,notnull" json:"customer_id"`

	ModuleName           string   `bun:"module_name,notnull" json:"module_name"`
	LicenseType          string   `bun:"license_type,notnull" json:"license_type"`
	AllowedMajorVersions []string `bun:"allowed_major_versions,array" json:"allowed_major_versions"`

	IssuedAt  time.Time  `bun:"issued_at,notnull" json:"issued_at"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`

	Status        LicenseStatus `bun:"status,notnull,default:'active'" json:"status"`
	RevokedAt     *time.Time    `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	RevokedReason string        `bun:"revoked_reason,nullzero" json:"revoked_reason,omitempty"`

	InstanceFingerprint string `bun:"instance_fingerprint,nullzero" json:"instance_fingerprint,omitempty"`

	// Token is the signed JWT exactly as issued.
	Token string `bun:"token,notnull" json:"token"`
	// KeyID records which signing key produced the token, for rotation
	// bookkeeping and key-retirement decisions.
	KeyID string `bun:"key_id,notnull" json:"key_id"`

	Notes     string    `bun:"notes,nullzero" json:"notes,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Customer *Customer `bun:"rel:belongs-to,join:customer_id=id" json:"customer,omitempty"`
}

// AuditLog records a license-related event for compliance review.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID        int64      `bun:"id,pk,autoincrement" json:"id"`
	LicenseID *uuid.UUID `bun:"license_id,nullzero,type:uuid" json:"license_id,omitempty"`

	EventType  string `bun:"event_type,notnull" json:"event_type"`
	EventData  string `bun:"event_data,nullzero" json:"event_data,omitempty"`
	CustomerID string `bun:"customer_id,nullzero" json:"customer_id,omitempty"`
	ModuleName string `bun:"module_name,nullzero" json:"module_name,omitempty"`

	IPAddress string `bun:"ip_address,nullzero" json:"ip_address,omitempty"`
	UserAgent string `bun:"user_agent,nullzero" json:"user_agent,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Audit event types.
const (
	EventIssued    = "issued"
	EventValidated = "validated"
	EventRevoked   = "revoked"
	EventExpired   = "expired"
	EventKeyRotate = "key_rotated"
)

// APIKey is a server-to-server credential. Only the bcrypt hash of the key
// is stored.
type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	KeyHash     string `bun:"key_hash,notnull,unique" json:"-"`
	Name        string `bun:"name,notnull" json:"name"`
	Description string `bun:"description,nullzero" json:"description,omitempty"`

	CanIssueLicenses  bool `bun:"can_issue_licenses,notnull,default:true" json:"can_issue_licenses"`
	CanRevokeLicenses bool `bun:"can_revoke_licenses,notnull,default:false" json:"can_revoke_licenses"`
	CanViewCustomers  bool `bun:"can_view_customers,notnull,default:true" json:"can_view_customers"`

	IsActive   bool       `bun:"is_active,notnull,default:true" json:"is_active"`
	LastUsedAt *time.Time `bun:"last_used_at,nullzero" json:"last_used_at,omitempty"`
	UsageCount int64      `bun:"usage_count,notnull,default:0" json:"usage_count"`
	ExpiresAt  *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	CreatedBy string    `bun:"created_by,nullzero" json:"created_by,omitempty"`
}

// Valid reports whether the credential is currently usable.
func (k *APIKey) Valid(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	if k.ExpiresAt != nil && now.After(*k.ExpiresAt) {
		return false
	}
	return true
}
