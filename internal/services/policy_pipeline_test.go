package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/ingestion/chunker"
)

func samplePolicy(orgID uuid.UUID) *domain.Policy {
	return &domain.Policy{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Filename:       "policy.pdf",
		StoragePath:    "org/policies/policy.pdf",
		Status:         domain.StatusProcessing,
	}
}

func sampleTextChunks(n int) []chunker.TextChunk {
	chunks := make([]chunker.TextChunk, n)
	for i := range chunks {
		chunks[i] = chunker.TextChunk{
			Content:    "chunk content",
			ChunkIndex: i,
			TokenCount: 10,
		}
	}
	return chunks
}

type policyPipelineFixture struct {
	pipeline *PolicyPipeline
	policies *fakePolicyRepo
	chunks   *fakeChunkRepo
	bucket   *fakeBucket
	embedder *fakeEmbedder
	vectors  *fakeVectorStore
	policy   *domain.Policy
}

func newPolicyPipelineFixture(t *testing.T, textChunks []chunker.TextChunk) *policyPipelineFixture {
	t.Helper()

	policy := samplePolicy(uuid.New())
	policies := newFakePolicyRepo(policy)
	chunks := newFakeChunkRepo()
	bucket := newFakeBucket()
	bucket.objects[policy.StoragePath] = []byte("pdf bytes")
	embedder := &fakeEmbedder{}
	vectors := &fakeVectorStore{}

	pipeline := NewPolicyPipeline(
		testLogger(t),
		policies,
		chunks,
		bucket,
		&fakeExtractor{text: "extracted text"},
		&fakeChunker{chunks: textChunks},
		embedder,
		vectors,
	)

	return &policyPipelineFixture{
		pipeline: pipeline,
		policies: policies,
		chunks:   chunks,
		bucket:   bucket,
		embedder: embedder,
		vectors:  vectors,
		policy:   policy,
	}
}

func TestProcessPolicyHappyPath(t *testing.T) {
	f := newPolicyPipelineFixture(t, sampleTextChunks(3))

	if err := f.pipeline.ProcessPolicy(context.Background(), f.policy.ID); err != nil {
		t.Fatalf("ProcessPolicy: %v", err)
	}
	if got := f.policies.lastStatus(f.policy.ID); got != domain.StatusCompleted {
		t.Fatalf("status = %q, want completed", got)
	}
	stored := f.chunks.byPolicy[f.policy.ID]
	if len(stored) != 3 {
		t.Fatalf("stored %d chunks, want 3", len(stored))
	}
	for i, ch := range stored {
		if ch.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, ch.ChunkIndex)
		}
	}
	if f.vectors.upserts != 1 {
		t.Fatalf("expected 1 upsert, got %d", f.vectors.upserts)
	}
	if len(f.vectors.upsertRecords) != 3 {
		t.Fatalf("expected 3 records upserted, got %d", len(f.vectors.upsertRecords))
	}
}

func TestProcessPolicyUnknownID(t *testing.T) {
	f := newPolicyPipelineFixture(t, sampleTextChunks(1))
	if err := f.pipeline.ProcessPolicy(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestProcessPolicyNoChunksFails(t *testing.T) {
	f := newPolicyPipelineFixture(t, nil)

	if err := f.pipeline.ProcessPolicy(context.Background(), f.policy.ID); err == nil {
		t.Fatal("expected error when chunking produces nothing")
	}
	if got := f.policies.lastStatus(f.policy.ID); got != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", got)
	}
}

func TestProcessPolicyDownloadFailureFails(t *testing.T) {
	f := newPolicyPipelineFixture(t, sampleTextChunks(1))
	f.bucket.downloadErr = errors.New("object missing")

	if err := f.pipeline.ProcessPolicy(context.Background(), f.policy.ID); err == nil {
		t.Fatal("expected download error to propagate")
	}
	if got := f.policies.lastStatus(f.policy.ID); got != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", got)
	}
}

func TestProcessPolicyCompletedDespiteEmbeddingFailure(t *testing.T) {
	f := newPolicyPipelineFixture(t, sampleTextChunks(2))
	f.embedder.fn = func([]string) ([][]float32, error) {
		return nil, errors.New("embedding provider down")
	}

	if err := f.pipeline.ProcessPolicy(context.Background(), f.policy.ID); err != nil {
		t.Fatalf("embedding failure must not fail the policy: %v", err)
	}
	if got := f.policies.lastStatus(f.policy.ID); got != domain.StatusCompleted {
		t.Fatalf("status = %q, want completed", got)
	}
	if f.vectors.upserts != 0 {
		t.Fatalf("no upsert expected when embedding fails, got %d", f.vectors.upserts)
	}
}

func TestIndexPolicyEmbeddingsNoChunks(t *testing.T) {
	f := newPolicyPipelineFixture(t, nil)
	if err := f.pipeline.IndexPolicyEmbeddings(context.Background(), f.policy.ID); err == nil {
		t.Fatal("expected error when the policy has no stored chunks")
	}
}

func TestIndexPolicyEmbeddingsRecords(t *testing.T) {
	f := newPolicyPipelineFixture(t, sampleTextChunks(2))
	f.chunks.byPolicy[f.policy.ID] = []*domain.PolicyChunk{
		{ID: uuid.New(), PolicyID: f.policy.ID, ChunkIndex: 0, Content: "first", TokenCount: 5},
		{ID: uuid.New(), PolicyID: f.policy.ID, ChunkIndex: 1, Content: "second", TokenCount: 6},
	}

	if err := f.pipeline.IndexPolicyEmbeddings(context.Background(), f.policy.ID); err != nil {
		t.Fatalf("IndexPolicyEmbeddings: %v", err)
	}
	if len(f.vectors.upsertRecords) != 2 {
		t.Fatalf("expected 2 records, got %d", len(f.vectors.upsertRecords))
	}
	rec := f.vectors.upsertRecords[0]
	if rec.PolicyID != f.policy.ID || rec.Content != "first" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
