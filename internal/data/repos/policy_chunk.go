package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

type PolicyChunkRepo interface {
	// ReplaceForPolicy deletes any existing chunks for the policy and inserts
	// the new set in one transaction. Used by (re)processing.
	ReplaceForPolicy(ctx context.Context, tx *gorm.DB, policyID uuid.UUID, chunks []*domain.PolicyChunk) error
	GetByPolicyID(ctx context.Context, tx *gorm.DB, policyID uuid.UUID) ([]*domain.PolicyChunk, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.PolicyChunk, error)
	CountByPolicy(ctx context.Context, tx *gorm.DB, policyID uuid.UUID) (int64, error)
}

type policyChunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPolicyChunkRepo(db *gorm.DB, baseLog *logger.Logger) PolicyChunkRepo {
	return &policyChunkRepo{db: db, log: baseLog.With("repo", "PolicyChunkRepo")}
}

func (r *policyChunkRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *policyChunkRepo) ReplaceForPolicy(ctx context.Context, tx *gorm.DB, policyID uuid.UUID, chunks []*domain.PolicyChunk) error {
	// Keep batches small because Content is large.
	const batchSize = 100

	run := func(conn *gorm.DB) error {
		if err := conn.Where("policy_id = ?", policyID).
			Delete(&domain.PolicyChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return conn.CreateInBatches(chunks, batchSize).Error
	}

	if tx != nil {
		return run(tx.WithContext(ctx))
	}
	return r.db.WithContext(ctx).Transaction(func(conn *gorm.DB) error {
		return run(conn)
	})
}

func (r *policyChunkRepo) GetByPolicyID(ctx context.Context, tx *gorm.DB, policyID uuid.UUID) ([]*domain.PolicyChunk, error) {
	var out []*domain.PolicyChunk
	if err := r.conn(tx).WithContext(ctx).
		Where("policy_id = ?", policyID).
		Order("chunk_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *policyChunkRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.PolicyChunk, error) {
	var out []*domain.PolicyChunk
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.conn(tx).WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *policyChunkRepo) CountByPolicy(ctx context.Context, tx *gorm.DB, policyID uuid.UUID) (int64, error) {
	var n int64
	if err := r.conn(tx).WithContext(ctx).
		Model(&domain.PolicyChunk{}).
		Where("policy_id = ?", policyID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
