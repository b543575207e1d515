package pinecone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/platform/apperr"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

type fakeClient struct {
	describeFn func(indexName string) (*IndexDescription, error)

	upserts  []UpsertRequest
	queries  []QueryRequest
	deletes  []DeleteRequest
	queryFn  func(req QueryRequest) (*QueryResponse, error)
	upsertFn func(req UpsertRequest) (*UpsertResponse, error)
	statsFn  func() (*IndexStats, error)
}

func (f *fakeClient) DescribeIndex(_ context.Context, indexName string) (*IndexDescription, error) {
	if f.describeFn != nil {
		return f.describeFn(indexName)
	}
	return &IndexDescription{Name: indexName, Host: "resolved-host.pinecone.io"}, nil
}

func (f *fakeClient) UpsertVectors(_ context.Context, _ string, req UpsertRequest) (*UpsertResponse, error) {
	f.upserts = append(f.upserts, req)
	if f.upsertFn != nil {
		return f.upsertFn(req)
	}
	return &UpsertResponse{UpsertedCount: int64(len(req.Vectors))}, nil
}

func (f *fakeClient) Query(_ context.Context, _ string, req QueryRequest) (*QueryResponse, error) {
	f.queries = append(f.queries, req)
	if f.queryFn != nil {
		return f.queryFn(req)
	}
	return &QueryResponse{}, nil
}

func (f *fakeClient) DeleteVectors(_ context.Context, _ string, req DeleteRequest) error {
	f.deletes = append(f.deletes, req)
	return nil
}

func (f *fakeClient) DescribeIndexStats(_ context.Context, _ string) (*IndexStats, error) {
	if f.statsFn != nil {
		return f.statsFn()
	}
	return &IndexStats{}, nil
}

func newTestStore(t *testing.T, pc Client) VectorStore {
	t.Helper()
	t.Setenv("PINECONE_INDEX_NAME", "compliance-test")
	t.Setenv("PINECONE_INDEX_HOST", "test-host.pinecone.io")
	t.Setenv("PINECONE_NAMESPACE_PREFIX", "")

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	store, err := NewVectorStore(log, pc)
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	return store
}

func TestNewVectorStoreRequiresIndexName(t *testing.T) {
	t.Setenv("PINECONE_INDEX_NAME", "")
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	if _, err := NewVectorStore(log, &fakeClient{}); err == nil {
		t.Fatal("expected error without PINECONE_INDEX_NAME")
	}
}

func TestNewVectorStoreResolvesHost(t *testing.T) {
	t.Setenv("PINECONE_INDEX_NAME", "compliance-test")
	t.Setenv("PINECONE_INDEX_HOST", "")
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	pc := &fakeClient{}
	store, err := NewVectorStore(log, pc)
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	if host := store.(*vectorStore).indexHost; host != "resolved-host.pinecone.io" {
		t.Fatalf("host = %q", host)
	}
}

func TestNamespaceIsolatesOrganizations(t *testing.T) {
	pc := &fakeClient{}
	store := newTestStore(t, pc)

	orgA := uuid.New()
	orgB := uuid.New()
	vector := []float32{0.1, 0.2}

	if _, err := store.QuerySimilar(context.Background(), orgA, vector, 5, nil); err != nil {
		t.Fatalf("QuerySimilar: %v", err)
	}
	if _, err := store.QuerySimilar(context.Background(), orgB, vector, 5, nil); err != nil {
		t.Fatalf("QuerySimilar: %v", err)
	}

	if len(pc.queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(pc.queries))
	}
	nsA, nsB := pc.queries[0].Namespace, pc.queries[1].Namespace
	if nsA == nsB {
		t.Fatalf("organizations share namespace %q", nsA)
	}
	if want := fmt.Sprintf("ca_org_%s", orgA); nsA != want {
		t.Fatalf("namespace = %q, want %q", nsA, want)
	}
}

func TestUpsertChunksMetadata(t *testing.T) {
	pc := &fakeClient{}
	store := newTestStore(t, pc)

	chunkID := uuid.New()
	policyID := uuid.New()
	longContent := strings.Repeat("x", 500)

	err := store.UpsertChunks(context.Background(), uuid.New(), []ChunkRecord{{
		ChunkID:    chunkID,
		PolicyID:   policyID,
		ChunkIndex: 4,
		TokenCount: 120,
		Content:    longContent,
		Vector:     []float32{0.1},
	}})
	if err != nil {
		t.Fatalf("UpsertChunks: %v", err)
	}

	if len(pc.upserts) != 1 || len(pc.upserts[0].Vectors) != 1 {
		t.Fatalf("unexpected upserts: %+v", pc.upserts)
	}
	v := pc.upserts[0].Vectors[0]
	if v.ID != "chunk_"+chunkID.String() {
		t.Fatalf("vector id = %q", v.ID)
	}
	if v.Metadata["policy_id"] != policyID.String() {
		t.Fatalf("policy_id metadata = %v", v.Metadata["policy_id"])
	}
	preview, _ := v.Metadata["content_preview"].(string)
	if len(preview) != 200 {
		t.Fatalf("preview length = %d, want 200", len(preview))
	}
	if v.Metadata["text"] != longContent {
		t.Fatal("full text metadata missing")
	}
}

func TestUpsertChunksEmptyNoCall(t *testing.T) {
	pc := &fakeClient{}
	store := newTestStore(t, pc)

	if err := store.UpsertChunks(context.Background(), uuid.New(), nil); err != nil {
		t.Fatalf("UpsertChunks: %v", err)
	}
	if len(pc.upserts) != 0 {
		t.Fatalf("expected no upsert call, got %d", len(pc.upserts))
	}
}

func TestQuerySimilarPolicyFilter(t *testing.T) {
	pc := &fakeClient{}
	store := newTestStore(t, pc)
	policyID := uuid.New()

	if _, err := store.QuerySimilar(context.Background(), uuid.New(), []float32{0.1}, 3, &policyID); err != nil {
		t.Fatalf("QuerySimilar: %v", err)
	}
	filter := pc.queries[0].Filter
	eq, ok := filter["policy_id"].(map[string]any)
	if !ok || eq["$eq"] != policyID.String() {
		t.Fatalf("unexpected filter: %v", filter)
	}
}

func TestQuerySimilarParsesMatches(t *testing.T) {
	chunkID := uuid.New()
	policyID := uuid.New()
	pc := &fakeClient{
		queryFn: func(QueryRequest) (*QueryResponse, error) {
			return &QueryResponse{Matches: []QueryMatch{
				{
					ID:    "chunk_" + chunkID.String(),
					Score: 0.87,
					Metadata: map[string]any{
						"chunk_id":    chunkID.String(),
						"policy_id":   policyID.String(),
						"chunk_index": float64(3),
						"text":        "chunk body",
					},
				},
				{ID: "chunk_not-a-uuid", Score: 0.5, Metadata: map[string]any{}},
			}}, nil
		},
	}
	store := newTestStore(t, pc)

	matches, err := store.QuerySimilar(context.Background(), uuid.New(), []float32{0.1}, 5, nil)
	if err != nil {
		t.Fatalf("QuerySimilar: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 parseable match, got %d", len(matches))
	}
	m := matches[0]
	if m.ChunkID != chunkID || m.PolicyID != policyID || m.ChunkIndex != 3 || m.Content != "chunk body" || m.Score != 0.87 {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestDeleteByPolicyUsesFilter(t *testing.T) {
	pc := &fakeClient{}
	store := newTestStore(t, pc)
	orgID := uuid.New()
	policyID := uuid.New()

	if err := store.DeleteByPolicy(context.Background(), orgID, policyID); err != nil {
		t.Fatalf("DeleteByPolicy: %v", err)
	}
	req := pc.deletes[0]
	if req.Namespace != fmt.Sprintf("ca_org_%s", orgID) {
		t.Fatalf("namespace = %q", req.Namespace)
	}
	eq := req.Filter["policy_id"].(map[string]any)
	if eq["$eq"] != policyID.String() {
		t.Fatalf("filter = %v", req.Filter)
	}
}

func TestCountMissingNamespaceZero(t *testing.T) {
	pc := &fakeClient{
		statsFn: func() (*IndexStats, error) {
			return &IndexStats{TotalVectorCount: 99}, nil
		},
	}
	store := newTestStore(t, pc)

	n, err := store.Count(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("count = %d, want 0 for missing namespace", n)
	}
}

func TestUpsertChunksWrapsClientError(t *testing.T) {
	pc := &fakeClient{
		upsertFn: func(UpsertRequest) (*UpsertResponse, error) {
			return nil, errors.New("http 503")
		},
	}
	store := newTestStore(t, pc)

	err := store.UpsertChunks(context.Background(), uuid.New(), []ChunkRecord{{ChunkID: uuid.New(), Vector: []float32{0.1}}})
	if !apperr.IsVectorIndex(err) {
		t.Fatalf("expected VectorIndexError, got %v", err)
	}
}
