package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditDocument is an uploaded document to be checked against the
// organization's compliance rules.
type AuditDocument struct {
	ID             uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrganizationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"organization_id"`
	Organization   *Organization `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrganizationID;references:ID" json:"-"`

	Filename    string `gorm:"type:varchar(255);not null" json:"filename"`
	StoragePath string `gorm:"type:varchar(512);not null" json:"storage_path"`
	Status      string `gorm:"type:varchar(50);default:processing" json:"status"`
	FileSize    int64  `gorm:"column:file_size" json:"file_size"`

	UploadDate time.Time `gorm:"not null;default:now()" json:"upload_date"`
}

// Violation is a detected breach of a ComplianceRule inside an audit
// document. Remediation starts null and is filled in later, in place, by the
// remediation service. Audit chunks are not persisted, so ChunkID stays nil
// (the traceability gap is accepted; see DESIGN.md).
type Violation struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AuditDocumentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"audit_document_id"`
	AuditDocument   *AuditDocument  `gorm:"constraint:OnDelete:CASCADE;foreignKey:AuditDocumentID;references:ID" json:"-"`
	RuleID          uuid.UUID       `gorm:"type:uuid;not null" json:"rule_id"`
	Rule            *ComplianceRule `gorm:"constraint:OnDelete:CASCADE;foreignKey:RuleID;references:ID" json:"-"`

	ChunkID *uuid.UUID `gorm:"type:uuid" json:"chunk_id,omitempty"`

	Severity    string  `gorm:"type:varchar(20);index" json:"severity"`
	Explanation string  `gorm:"type:text" json:"explanation"`
	Remediation *string `gorm:"type:text" json:"remediation,omitempty"`

	DetectedAt time.Time `gorm:"not null;default:now()" json:"detected_at"`
}
