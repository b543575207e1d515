package domain

import (
	"time"

	"github.com/google/uuid"
)

// Policy is an uploaded policy document. The original bytes live in object
// storage at StoragePath; derived chunks and rules cascade on delete.
type Policy struct {
	ID             uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrganizationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"organization_id"`
	Organization   *Organization `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrganizationID;references:ID" json:"-"`

	Filename    string `gorm:"type:varchar(255);not null" json:"filename"`
	StoragePath string `gorm:"type:varchar(512);not null" json:"storage_path"`
	Status      string `gorm:"type:varchar(50);default:processing" json:"status"`
	FileSize    int64  `gorm:"column:file_size" json:"file_size"`

	UploadDate time.Time `gorm:"not null;default:now()" json:"upload_date"`
}

// PolicyChunk is one token-bounded window of a policy's extracted text.
// ChunkIndex values are contiguous from 0 per policy; reprocessing replaces
// the full set, never merges.
type PolicyChunk struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PolicyID uuid.UUID `gorm:"type:uuid;not null;index" json:"policy_id"`
	Policy   *Policy   `gorm:"constraint:OnDelete:CASCADE;foreignKey:PolicyID;references:ID" json:"-"`

	ChunkIndex int    `gorm:"column:chunk_index;not null" json:"chunk_index"`
	Content    string `gorm:"type:text;not null" json:"content"`
	TokenCount int    `gorm:"column:token_count" json:"token_count"`
}
