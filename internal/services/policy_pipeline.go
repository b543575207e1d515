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

// PolicyPipeline runs the full ingestion for an uploaded policy: download,
// extract, chunk, persist chunks, then embed and index. Embedding failure
// does not fail the document; the chunks are authoritative and indexing can
// be re-run later.
type PolicyPipeline struct {
	log      *logger.Logger
	policies repos.PolicyRepo
	chunks   repos.PolicyChunkRepo
	bucket   gcp.BucketService
	extract  TextExtractor
	chunk    TextChunker
	embedder EmbeddingService
	vectors  pinecone.VectorStore
}

func NewPolicyPipeline(
	log *logger.Logger,
	policies repos.PolicyRepo,
	chunks repos.PolicyChunkRepo,
	bucket gcp.BucketService,
	extract TextExtractor,
	chunk TextChunker,
	embedder EmbeddingService,
	vectors pinecone.VectorStore,
) *PolicyPipeline {
	return &PolicyPipeline{
		log:      log.With("service", "PolicyPipeline"),
		policies: policies,
		chunks:   chunks,
		bucket:   bucket,
		extract:  extract,
		chunk:    chunk,
		embedder: embedder,
		vectors:  vectors,
	}
}

func (p *PolicyPipeline) ProcessPolicy(ctx context.Context, policyID uuid.UUID) error {
	policy, err := p.policies.GetByID(ctx, nil, policyID)
	if err != nil {
		return err
	}
	if policy == nil {
		return fmt.Errorf("policy %s not found", policyID)
	}

	p.log.Info("Policy processing started",
		"policy_id", policy.ID,
		"filename", policy.Filename,
		"org_id", policy.OrganizationID,
	)

	if err := p.policies.UpdateStatus(ctx, nil, policy.ID, domain.StatusProcessing); err != nil {
		return err
	}

	textChunks, err := p.prepareChunks(ctx, policy.StoragePath, policy.Filename)
	if err != nil {
		p.markPolicyFailed(ctx, policy.ID, err)
		return err
	}

	rows := make([]*domain.PolicyChunk, 0, len(textChunks))
	for _, ch := range textChunks {
		rows = append(rows, &domain.PolicyChunk{
			PolicyID:   policy.ID,
			ChunkIndex: ch.ChunkIndex,
			Content:    ch.Content,
			TokenCount: ch.TokenCount,
		})
	}
	if err := p.chunks.ReplaceForPolicy(ctx, nil, policy.ID, rows); err != nil {
		p.markPolicyFailed(ctx, policy.ID, err)
		return err
	}

	if err := p.policies.UpdateStatus(ctx, nil, policy.ID, domain.StatusCompleted); err != nil {
		return err
	}

	stats := chunker.Statistics(textChunks)
	p.log.Info("Policy processing completed",
		"policy_id", policy.ID,
		"chunks_stored", stats.TotalChunks,
		"total_tokens", stats.TotalTokens,
	)

	// Indexing is best effort: the policy stays completed even when the
	// embedding provider is down.
	if err := p.IndexPolicyEmbeddings(ctx, policy.ID); err != nil {
		p.log.Warn("Embedding indexing failed, policy remains completed",
			"policy_id", policy.ID,
			"error", err.Error(),
		)
	}

	return nil
}

// ReprocessPolicy reruns the full pipeline for an existing policy. Chunks are
// replaced wholesale, and the vector index is refreshed by the upsert.
func (p *PolicyPipeline) ReprocessPolicy(ctx context.Context, policyID uuid.UUID) error {
	p.log.Info("Reprocessing policy", "policy_id", policyID)
	return p.ProcessPolicy(ctx, policyID)
}

// IndexPolicyEmbeddings embeds every stored chunk of the policy and upserts
// the vectors into the organization's namespace.
func (p *PolicyPipeline) IndexPolicyEmbeddings(ctx context.Context, policyID uuid.UUID) error {
	policy, err := p.policies.GetByID(ctx, nil, policyID)
	if err != nil {
		return err
	}
	if policy == nil {
		return fmt.Errorf("policy %s not found", policyID)
	}

	rows, err := p.chunks.GetByPolicyID(ctx, nil, policy.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("policy %s has no chunks to index", policy.ID)
	}

	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Content
	}

	vectors, err := p.embedder.GenerateEmbeddings(ctx, texts, 0)
	if err != nil {
		return err
	}

	records := make([]pinecone.ChunkRecord, len(rows))
	for i, row := range rows {
		records[i] = pinecone.ChunkRecord{
			ChunkID:    row.ID,
			PolicyID:   policy.ID,
			ChunkIndex: row.ChunkIndex,
			TokenCount: row.TokenCount,
			Content:    row.Content,
			Vector:     vectors[i],
		}
	}

	if err := p.vectors.UpsertChunks(ctx, policy.OrganizationID, records); err != nil {
		return err
	}

	p.log.Info("Policy embeddings indexed",
		"policy_id", policy.ID,
		"org_id", policy.OrganizationID,
		"count", len(records),
	)
	return nil
}

// prepareChunks downloads, extracts and chunks a stored document.
func (p *PolicyPipeline) prepareChunks(ctx context.Context, storagePath, filename string) ([]chunker.TextChunk, error) {
	fileBytes, err := p.bucket.Download(ctx, storagePath)
	if err != nil {
		return nil, err
	}

	text, err := p.extract.ExtractText(fileBytes, filename)
	if err != nil {
		return nil, err
	}

	textChunks := p.chunk.ChunkText(text)
	if len(textChunks) == 0 {
		return nil, fmt.Errorf("no chunks produced from %s", filename)
	}
	return textChunks, nil
}

// markPolicyFailed is the second-chance status write. Its own failure is
// logged, never retried.
func (p *PolicyPipeline) markPolicyFailed(ctx context.Context, policyID uuid.UUID, cause error) {
	p.log.Error("Policy processing failed",
		"policy_id", policyID,
		"error", cause.Error(),
	)
	if err := p.policies.UpdateStatus(ctx, nil, policyID, domain.StatusFailed); err != nil {
		p.log.Error("Failed to update policy status",
			"policy_id", policyID,
			"error", err.Error(),
		)
	}
}
