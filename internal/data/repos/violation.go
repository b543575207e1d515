package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

type ViolationRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, violations []*domain.Violation) ([]*domain.Violation, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Violation, error)
	ListByAudit(ctx context.Context, tx *gorm.DB, auditID uuid.UUID) ([]*domain.Violation, error)
	UpdateRemediation(ctx context.Context, tx *gorm.DB, id uuid.UUID, remediation string) error
}

type violationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewViolationRepo(db *gorm.DB, baseLog *logger.Logger) ViolationRepo {
	return &violationRepo{db: db, log: baseLog.With("repo", "ViolationRepo")}
}

func (r *violationRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *violationRepo) CreateBatch(ctx context.Context, tx *gorm.DB, violations []*domain.Violation) ([]*domain.Violation, error) {
	if len(violations) == 0 {
		return []*domain.Violation{}, nil
	}
	if err := r.conn(tx).WithContext(ctx).CreateInBatches(violations, 100).Error; err != nil {
		return nil, err
	}
	return violations, nil
}

func (r *violationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Violation, error) {
	var out domain.Violation
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *violationRepo) ListByAudit(ctx context.Context, tx *gorm.DB, auditID uuid.UUID) ([]*domain.Violation, error) {
	var out []*domain.Violation
	if err := r.conn(tx).WithContext(ctx).
		Where("audit_document_id = ?", auditID).
		Order("detected_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *violationRepo) UpdateRemediation(ctx context.Context, tx *gorm.DB, id uuid.UUID, remediation string) error {
	return r.conn(tx).WithContext(ctx).
		Model(&domain.Violation{}).
		Where("id = ?", id).
		Update("remediation", remediation).Error
}
