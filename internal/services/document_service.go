package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/clients/gcp"
	"github.com/verityops/compliance-backend/internal/clients/pinecone"
	"github.com/verityops/compliance-backend/internal/data/repos"
	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

const pdfContentType = "application/pdf"

// DocumentService owns the lifecycle of uploaded policy and audit documents:
// object storage, metadata rows, and the cleanup fan-out on delete.
type DocumentService struct {
	log      *logger.Logger
	policies repos.PolicyRepo
	audits   repos.AuditDocumentRepo
	bucket   gcp.BucketService
	vectors  pinecone.VectorStore
}

func NewDocumentService(
	log *logger.Logger,
	policies repos.PolicyRepo,
	audits repos.AuditDocumentRepo,
	bucket gcp.BucketService,
	vectors pinecone.VectorStore,
) *DocumentService {
	return &DocumentService{
		log:      log.With("service", "DocumentService"),
		policies: policies,
		audits:   audits,
		bucket:   bucket,
		vectors:  vectors,
	}
}

// UploadPolicy stores the file bytes first, then the metadata row. If the
// row insert fails the object is deleted again so storage never holds
// orphans the database does not know about.
func (s *DocumentService) UploadPolicy(ctx context.Context, orgID uuid.UUID, filename string, data []byte) (*domain.Policy, error) {
	id := uuid.New()
	key := gcp.ObjectKey(orgID.String(), string(gcp.DocumentKindPolicy), id.String(), "pdf")

	if err := s.bucket.Upload(ctx, key, data, pdfContentType); err != nil {
		return nil, err
	}

	policy := &domain.Policy{
		ID:             id,
		OrganizationID: orgID,
		Filename:       filename,
		StoragePath:    key,
		Status:         domain.StatusProcessing,
		FileSize:       int64(len(data)),
		UploadDate:     time.Now().UTC(),
	}
	if _, err := s.policies.Create(ctx, nil, policy); err != nil {
		s.compensateUpload(ctx, key)
		return nil, err
	}

	s.log.Info("Policy uploaded",
		"policy_id", policy.ID,
		"org_id", orgID,
		"filename", filename,
		"file_size", policy.FileSize,
	)
	return policy, nil
}

func (s *DocumentService) UploadAudit(ctx context.Context, orgID uuid.UUID, filename string, data []byte) (*domain.AuditDocument, error) {
	id := uuid.New()
	key := gcp.ObjectKey(orgID.String(), string(gcp.DocumentKindAudit), id.String(), "pdf")

	if err := s.bucket.Upload(ctx, key, data, pdfContentType); err != nil {
		return nil, err
	}

	audit := &domain.AuditDocument{
		ID:             id,
		OrganizationID: orgID,
		Filename:       filename,
		StoragePath:    key,
		Status:         domain.StatusProcessing,
		FileSize:       int64(len(data)),
		UploadDate:     time.Now().UTC(),
	}
	if _, err := s.audits.Create(ctx, nil, audit); err != nil {
		s.compensateUpload(ctx, key)
		return nil, err
	}

	s.log.Info("Audit document uploaded",
		"audit_id", audit.ID,
		"org_id", orgID,
		"filename", filename,
		"file_size", audit.FileSize,
	)
	return audit, nil
}

func (s *DocumentService) GetPolicy(ctx context.Context, orgID, policyID uuid.UUID) (*domain.Policy, error) {
	policy, err := s.policies.GetByIDForOrg(ctx, nil, policyID, orgID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, ErrNotFound
	}
	return policy, nil
}

func (s *DocumentService) ListPolicies(ctx context.Context, orgID uuid.UUID) ([]*domain.Policy, error) {
	return s.policies.ListByOrg(ctx, nil, orgID)
}

func (s *DocumentService) GetAudit(ctx context.Context, orgID, auditID uuid.UUID) (*domain.AuditDocument, error) {
	audit, err := s.audits.GetByIDForOrg(ctx, nil, auditID, orgID)
	if err != nil {
		return nil, err
	}
	if audit == nil {
		return nil, ErrNotFound
	}
	return audit, nil
}

func (s *DocumentService) ListAudits(ctx context.Context, orgID uuid.UUID) ([]*domain.AuditDocument, error) {
	return s.audits.ListByOrg(ctx, nil, orgID)
}

// DeletePolicy removes the row (chunks and rules cascade), the vector
// records, and the stored object. Vector and object cleanup are best effort;
// the row delete is the authoritative one.
func (s *DocumentService) DeletePolicy(ctx context.Context, orgID, policyID uuid.UUID) error {
	policy, err := s.policies.GetByIDForOrg(ctx, nil, policyID, orgID)
	if err != nil {
		return err
	}
	if policy == nil {
		return ErrNotFound
	}

	if err := s.policies.Delete(ctx, nil, policy.ID); err != nil {
		return err
	}

	if err := s.vectors.DeleteByPolicy(ctx, orgID, policy.ID); err != nil {
		s.log.Warn("Vector cleanup failed after policy delete",
			"policy_id", policy.ID,
			"error", err.Error(),
		)
	}
	if err := s.bucket.Delete(ctx, policy.StoragePath); err != nil {
		s.log.Warn("Object cleanup failed after policy delete",
			"policy_id", policy.ID,
			"key", policy.StoragePath,
			"error", err.Error(),
		)
	}

	s.log.Info("Policy deleted", "policy_id", policy.ID, "org_id", orgID)
	return nil
}

func (s *DocumentService) DeleteAudit(ctx context.Context, orgID, auditID uuid.UUID) error {
	audit, err := s.audits.GetByIDForOrg(ctx, nil, auditID, orgID)
	if err != nil {
		return err
	}
	if audit == nil {
		return ErrNotFound
	}

	if err := s.audits.Delete(ctx, nil, audit.ID); err != nil {
		return err
	}

	if err := s.bucket.Delete(ctx, audit.StoragePath); err != nil {
		s.log.Warn("Object cleanup failed after audit delete",
			"audit_id", audit.ID,
			"key", audit.StoragePath,
			"error", err.Error(),
		)
	}

	s.log.Info("Audit document deleted", "audit_id", audit.ID, "org_id", orgID)
	return nil
}

func (s *DocumentService) compensateUpload(ctx context.Context, key string) {
	if err := s.bucket.Delete(ctx, key); err != nil {
		s.log.Error("Compensating object delete failed",
			"key", key,
			"error", err.Error(),
		)
	}
}
