package domain

import (
	"time"

	"github.com/google/uuid"
)

// ComplianceRule is a candidate rule mined from a policy chunk by the rule
// extractor. Immutable once created; re-extraction adds new rows. Deleting
// the source chunk nullifies SourceChunkID instead of cascading.
type ComplianceRule struct {
	ID             uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrganizationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"organization_id"`
	Organization   *Organization `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrganizationID;references:ID" json:"-"`
	PolicyID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"policy_id"`
	Policy         *Policy       `gorm:"constraint:OnDelete:CASCADE;foreignKey:PolicyID;references:ID" json:"-"`

	RuleText string `gorm:"type:text;not null" json:"rule_text"`
	Category string `gorm:"type:varchar(100)" json:"category"`
	Severity string `gorm:"type:varchar(20)" json:"severity"`

	SourceChunkID *uuid.UUID   `gorm:"type:uuid" json:"source_chunk_id,omitempty"`
	SourceChunk   *PolicyChunk `gorm:"constraint:OnDelete:SET NULL;foreignKey:SourceChunkID;references:ID" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}
