package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

type AuditDocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, audit *domain.AuditDocument) (*domain.AuditDocument, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.AuditDocument, error)
	GetByIDForOrg(ctx context.Context, tx *gorm.DB, id, orgID uuid.UUID) (*domain.AuditDocument, error)
	ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*domain.AuditDocument, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type auditDocumentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditDocumentRepo(db *gorm.DB, baseLog *logger.Logger) AuditDocumentRepo {
	return &auditDocumentRepo{db: db, log: baseLog.With("repo", "AuditDocumentRepo")}
}

func (r *auditDocumentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *auditDocumentRepo) Create(ctx context.Context, tx *gorm.DB, audit *domain.AuditDocument) (*domain.AuditDocument, error) {
	if err := r.conn(tx).WithContext(ctx).Create(audit).Error; err != nil {
		return nil, err
	}
	return audit, nil
}

func (r *auditDocumentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.AuditDocument, error) {
	var out domain.AuditDocument
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *auditDocumentRepo) GetByIDForOrg(ctx context.Context, tx *gorm.DB, id, orgID uuid.UUID) (*domain.AuditDocument, error) {
	var out domain.AuditDocument
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

func (r *auditDocumentRepo) ListByOrg(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*domain.AuditDocument, error) {
	var out []*domain.AuditDocument
	if err := r.conn(tx).WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("upload_date DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *auditDocumentRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	return r.conn(tx).WithContext(ctx).
		Model(&domain.AuditDocument{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *auditDocumentRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.AuditDocument{}).Error
}
