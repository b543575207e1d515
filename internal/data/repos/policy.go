package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

type PolicyRepo interface {
	Create(ctx context.Context, tx *gorm.DB, policy *domain.Policy) (*domain.Policy, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Policy, error)
	GetByIDForOrg(ctx context.Context, tx *gorm.DB, id, orgID uuid.UUID) (*domain.Policy, error)
	ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*domain.Policy, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type policyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPolicyRepo(db *gorm.DB, baseLog *logger.Logger) PolicyRepo {
	return &policyRepo{db: db, log: baseLog.With("repo", "PolicyRepo")}
}

func (r *policyRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *policyRepo) Create(ctx context.Context, tx *gorm.DB, policy *domain.Policy) (*domain.Policy, error) {
	if err := r.conn(tx).WithContext(ctx).Create(policy).Error; err != nil {
		return nil, err
	}
	return policy, nil
}

func (r *policyRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Policy, error) {
	var out domain.Policy
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *policyRepo) GetByIDForOrg(ctx context.Context, tx *gorm.DB, id, orgID uuid.UUID) (*domain.Policy, error) {
	var out domain.Policy
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

func (r *policyRepo) ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*domain.Policy, error) {
	var out []*domain.Policy
	if err := r.conn(tx).WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("upload_date DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *policyRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	return r.conn(tx).WithContext(ctx).
		Model(&domain.Policy{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *policyRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Policy{}).Error
}
