package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

type ComplianceRuleRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, rules []*domain.ComplianceRule) ([]*domain.ComplianceRule, error)
	GetByIDForOrg(ctx context.Context, tx *gorm.DB, id, orgID uuid.UUID) (*domain.ComplianceRule, error)
	// GetBySourceChunkIDs returns the rules derived from any of the given
	// policy chunks, scoped to the organization. This is the lookup that
	// keeps violation detection inside the tenant boundary.
	GetBySourceChunkIDs(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, chunkIDs []uuid.UUID) ([]*domain.ComplianceRule, error)
	ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, policyID *uuid.UUID) ([]*domain.ComplianceRule, error)
	DeleteByPolicy(ctx context.Context, tx *gorm.DB, policyID uuid.UUID) error
}

type complianceRuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComplianceRuleRepo(db *gorm.DB, baseLog *logger.Logger) ComplianceRuleRepo {
	return &complianceRuleRepo{db: db, log: baseLog.With("repo", "ComplianceRuleRepo")}
}

func (r *complianceRuleRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *complianceRuleRepo) CreateBatch(ctx context.Context, tx *gorm.DB, rules []*domain.ComplianceRule) ([]*domain.ComplianceRule, error) {
	if len(rules) == 0 {
		return []*domain.ComplianceRule{}, nil
	}
	if err := r.conn(tx).WithContext(ctx).CreateInBatches(rules, 100).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *complianceRuleRepo) GetByIDForOrg(ctx context.Context, tx *gorm.DB, id, orgID uuid.UUID) (*domain.ComplianceRule, error) {
	var out domain.ComplianceRule
	err := r.conn(tx).WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *complianceRuleRepo) GetBySourceChunkIDs(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, chunkIDs []uuid.UUID) ([]*domain.ComplianceRule, error) {
	var out []*domain.ComplianceRule
	if len(chunkIDs) == 0 {
		return out, nil
	}
	if err := r.conn(tx).WithContext(ctx).
		Where("source_chunk_id IN ? AND organization_id = ?", chunkIDs, orgID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *complianceRuleRepo) ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID, policyID *uuid.UUID) ([]*domain.ComplianceRule, error) {
	q := r.conn(tx).WithContext(ctx).Where("organization_id = ?", orgID)
	if policyID != nil {
		q = q.Where("policy_id = ?", *policyID)
	}
	var out []*domain.ComplianceRule
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *complianceRuleRepo) DeleteByPolicy(ctx context.Context, tx *gorm.DB, policyID uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).
		Where("policy_id = ?", policyID).
		Delete(&domain.ComplianceRule{}).Error
}
