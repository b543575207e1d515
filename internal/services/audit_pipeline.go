package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/clients/gcp"
	"github.com/verityops/compliance-backend/internal/clients/pinecone"
	"github.com/verityops/compliance-backend/internal/data/repos"
	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/ingestion/chunker"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

// auditRetrievalTopK bounds how many similar policy chunks seed the rule
// lookup for each audit chunk.
const auditRetrievalTopK = 5

// AuditPipeline checks an uploaded audit document against the organization's
// compliance rules. Audit chunks are embedded for retrieval but never
// persisted or indexed; only the detected violations are stored.
type AuditPipeline struct {
	log        *logger.Logger
	audits     repos.AuditDocumentRepo
	rules      repos.ComplianceRuleRepo
	violations repos.ViolationRepo
	bucket     gcp.BucketService
	extract    TextExtractor
	chunk      TextChunker
	embedder   EmbeddingService
	vectors    pinecone.VectorStore
	detector   ViolationDetector
}

func NewAuditPipeline(
	log *logger.Logger,
	audits repos.AuditDocumentRepo,
	rules repos.ComplianceRuleRepo,
	violations repos.ViolationRepo,
	bucket gcp.BucketService,
	extract TextExtractor,
	chunk TextChunker,
	embedder EmbeddingService,
	vectors pinecone.VectorStore,
	detector ViolationDetector,
) *AuditPipeline {
	return &AuditPipeline{
		log:        log.With("service", "AuditPipeline"),
		audits:     audits,
		rules:      rules,
		violations: violations,
		bucket:     bucket,
		extract:    extract,
		chunk:      chunk,
		embedder:   embedder,
		vectors:    vectors,
		detector:   detector,
	}
}

func (p *AuditPipeline) ProcessAudit(ctx context.Context, auditID uuid.UUID) error {
	audit, err := p.audits.GetByID(ctx, nil, auditID)
	if err != nil {
		return err
	}
	if audit == nil {
		return fmt.Errorf("audit document %s not found", auditID)
	}

	p.log.Info("Audit processing started",
		"audit_id", audit.ID,
		"filename", audit.Filename,
		"org_id", audit.OrganizationID,
	)

	if err := p.audits.UpdateStatus(ctx, nil, audit.ID, domain.StatusProcessing); err != nil {
		return err
	}

	totalViolations, err := p.run(ctx, audit)
	if err != nil {
		p.markAuditFailed(ctx, audit.ID, err)
		return err
	}

	if err := p.audits.UpdateStatus(ctx, nil, audit.ID, domain.StatusCompleted); err != nil {
		return err
	}

	p.log.Info("Audit processing completed",
		"audit_id", audit.ID,
		"violations_found", totalViolations,
	)
	return nil
}

// ReprocessAudit reruns violation detection for an existing audit document.
// Previously detected violations are kept; a rerun appends.
func (p *AuditPipeline) ReprocessAudit(ctx context.Context, auditID uuid.UUID) error {
	p.log.Info("Reprocessing audit", "audit_id", auditID)
	return p.ProcessAudit(ctx, auditID)
}

func (p *AuditPipeline) run(ctx context.Context, audit *domain.AuditDocument) (int, error) {
	fileBytes, err := p.bucket.Download(ctx, audit.StoragePath)
	if err != nil {
		return 0, err
	}

	text, err := p.extract.ExtractText(fileBytes, audit.Filename)
	if err != nil {
		return 0, err
	}

	textChunks := p.chunk.ChunkText(text)
	if len(textChunks) == 0 {
		return 0, fmt.Errorf("no chunks produced from %s", audit.Filename)
	}

	stats := chunker.Statistics(textChunks)
	p.log.Info("Audit document chunked",
		"audit_id", audit.ID,
		"total_chunks", stats.TotalChunks,
		"total_tokens", stats.TotalTokens,
	)

	texts := make([]string, len(textChunks))
	for i, ch := range textChunks {
		texts[i] = ch.Content
	}
	embeddings, err := p.embedder.GenerateEmbeddings(ctx, texts, 0)
	if err != nil {
		return 0, err
	}
	if len(embeddings) != len(textChunks) {
		return 0, fmt.Errorf("embedding count mismatch: %d for %d chunks", len(embeddings), len(textChunks))
	}

	totalViolations := 0
	for i, ch := range textChunks {
		matches, err := p.vectors.QuerySimilar(ctx, audit.OrganizationID, embeddings[i], auditRetrievalTopK, nil)
		if err != nil {
			return totalViolations, err
		}

		chunkIDs := make([]uuid.UUID, 0, len(matches))
		for _, m := range matches {
			chunkIDs = append(chunkIDs, m.ChunkID)
		}
		if len(chunkIDs) == 0 {
			p.log.Debug("No similar policy chunks", "audit_id", audit.ID, "chunk_index", i)
			continue
		}

		candidateRules, err := p.rules.GetBySourceChunkIDs(ctx, nil, audit.OrganizationID, chunkIDs)
		if err != nil {
			return totalViolations, err
		}
		if len(candidateRules) == 0 {
			p.log.Debug("No rules for similar chunks", "audit_id", audit.ID, "chunk_index", i)
			continue
		}

		// Detection failures stay local to the chunk; the sweep keeps going
		// and the audit still completes with whatever was found elsewhere.
		detected, err := p.detector.DetectViolations(ctx, ch.Content, candidateRules)
		if err != nil {
			p.log.Error("Violation detection failed for chunk, skipping",
				"audit_id", audit.ID,
				"chunk_index", i,
				"error", err.Error(),
			)
			continue
		}
		if len(detected) == 0 {
			continue
		}

		rows := make([]*domain.Violation, 0, len(detected))
		for _, d := range detected {
			rows = append(rows, &domain.Violation{
				AuditDocumentID: audit.ID,
				RuleID:          d.RuleID,
				Severity:        d.Severity,
				Explanation:     d.Explanation,
			})
		}
		// Commit per chunk so a late failure keeps earlier findings.
		if _, err := p.violations.CreateBatch(ctx, nil, rows); err != nil {
			return totalViolations, err
		}
		totalViolations += len(rows)
	}

	return totalViolations, nil
}

func (p *AuditPipeline) markAuditFailed(ctx context.Context, auditID uuid.UUID, cause error) {
	p.log.Error("Audit processing failed",
		"audit_id", auditID,
		"error", cause.Error(),
	)
	if err := p.audits.UpdateStatus(ctx, nil, auditID, domain.StatusFailed); err != nil {
		p.log.Error("Failed to update audit status",
			"audit_id", auditID,
			"error", err.Error(),
		)
	}
}
