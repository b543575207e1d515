package domain

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant boundary. Every document, rule and violation
// belongs to exactly one organization and queries are always scoped to it.
type Organization struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}
