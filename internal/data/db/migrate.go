package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/verityops/compliance-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Organization{},

		// Policies + derived chunks/rules
		&domain.Policy{},
		&domain.PolicyChunk{},
		&domain.ComplianceRule{},

		// Audits + detected violations
		&domain.AuditDocument{},
		&domain.Violation{},
	)
}

func EnsureIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_policy_chunks_policy_order ON policy_chunks(policy_id, chunk_index);`).Error; err != nil {
		return fmt.Errorf("create idx_policy_chunks_policy_order: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_compliance_rules_source_chunk ON compliance_rules(source_chunk_id);`).Error; err != nil {
		return fmt.Errorf("create idx_compliance_rules_source_chunk: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_violations_rule ON violations(rule_id);`).Error; err != nil {
		return fmt.Errorf("create idx_violations_rule: %w", err)
	}
	return nil
}
