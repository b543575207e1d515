package pinecone

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/platform/apperr"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

const chunkIDPrefix = "chunk_"

// ChunkRecord is one embedded policy chunk headed for the index.
type ChunkRecord struct {
	ChunkID    uuid.UUID
	PolicyID   uuid.UUID
	ChunkIndex int
	TokenCount int
	Content    string
	Vector     []float32
}

// Match is a ranked query result, best score first.
type Match struct {
	ChunkID    uuid.UUID
	PolicyID   uuid.UUID
	ChunkIndex int
	Content    string
	Score      float64
}

// VectorStore is the organization-scoped nearest-neighbor store. Every call
// carries the organization ID; namespaces are derived from it so a query can
// never cross the tenant boundary.
type VectorStore interface {
	UpsertChunks(ctx context.Context, orgID uuid.UUID, records []ChunkRecord) error
	QuerySimilar(ctx context.Context, orgID uuid.UUID, vector []float32, topK int, policyID *uuid.UUID) ([]Match, error)
	DeleteByPolicy(ctx context.Context, orgID, policyID uuid.UUID) error
	Count(ctx context.Context, orgID uuid.UUID) (int64, error)
}

type vectorStore struct {
	log       *logger.Logger
	pc        Client
	indexName string
	indexHost string
	nsPrefix  string
}

func NewVectorStore(log *logger.Logger, pc Client) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}

	indexName := strings.TrimSpace(os.Getenv("PINECONE_INDEX_NAME"))
	if indexName == "" {
		return nil, fmt.Errorf("missing PINECONE_INDEX_NAME")
	}

	host := strings.TrimSpace(os.Getenv("PINECONE_INDEX_HOST"))

	nsPrefix := strings.TrimSpace(os.Getenv("PINECONE_NAMESPACE_PREFIX"))
	if nsPrefix == "" {
		nsPrefix = "ca"
	}

	// If host missing, bootstrap via describe_index (fine for local/dev).
	if host == "" {
		desc, err := pc.DescribeIndex(context.Background(), indexName)
		if err != nil {
			return nil, fmt.Errorf("pinecone describe_index failed: %w", err)
		}
		host = strings.TrimSpace(desc.Host)
		log.Warn("PINECONE_INDEX_HOST not set; resolved via describe_index",
			"index_name", indexName,
			"index_host", host,
		)
	}

	return &vectorStore{
		log:       log.With("service", "PineconeVectorStore"),
		pc:        pc,
		indexName: indexName,
		indexHost: host,
		nsPrefix:  nsPrefix,
	}, nil
}

// Namespace derivation is the tenant isolation boundary: deterministic from
// the organization ID and nothing else.
func (s *vectorStore) namespace(orgID uuid.UUID) string {
	return fmt.Sprintf("%s_org_%s", s.nsPrefix, orgID)
}

func (s *vectorStore) UpsertChunks(ctx context.Context, orgID uuid.UUID, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	vectors := make([]Vector, 0, len(records))
	for _, rec := range records {
		preview := rec.Content
		if len(preview) > 200 {
			preview = preview[:200]
		}
		vectors = append(vectors, Vector{
			ID:     chunkIDPrefix + rec.ChunkID.String(),
			Values: rec.Vector,
			Metadata: map[string]any{
				"chunk_id":        rec.ChunkID.String(),
				"policy_id":       rec.PolicyID.String(),
				"chunk_index":     rec.ChunkIndex,
				"token_count":     rec.TokenCount,
				"content_preview": preview,
				"text":            rec.Content,
			},
		})
	}

	_, err := s.pc.UpsertVectors(ctx, s.indexHost, UpsertRequest{
		Namespace: s.namespace(orgID),
		Vectors:   vectors,
	})
	if err != nil {
		return &apperr.VectorIndexError{Msg: "upsert failed", Err: err}
	}
	return nil
}

func (s *vectorStore) QuerySimilar(ctx context.Context, orgID uuid.UUID, vector []float32, topK int, policyID *uuid.UUID) ([]Match, error) {
	var filter map[string]any
	if policyID != nil {
		filter = map[string]any{"policy_id": map[string]any{"$eq": policyID.String()}}
	}

	resp, err := s.pc.Query(ctx, s.indexHost, QueryRequest{
		Namespace:       s.namespace(orgID),
		Vector:          vector,
		TopK:            topK,
		Filter:          filter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, &apperr.VectorIndexError{Msg: "query failed", Err: err}
	}

	out := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		match := Match{Score: m.Score}

		rawChunkID, _ := m.Metadata["chunk_id"].(string)
		if rawChunkID == "" {
			rawChunkID = strings.TrimPrefix(m.ID, chunkIDPrefix)
		}
		chunkID, err := uuid.Parse(rawChunkID)
		if err != nil {
			s.log.Warn("Skipping match with unparseable chunk id", "id", m.ID)
			continue
		}
		match.ChunkID = chunkID

		if rawPolicyID, ok := m.Metadata["policy_id"].(string); ok {
			if pid, err := uuid.Parse(rawPolicyID); err == nil {
				match.PolicyID = pid
			}
		}
		if idx, ok := m.Metadata["chunk_index"].(float64); ok {
			match.ChunkIndex = int(idx)
		}
		if text, ok := m.Metadata["text"].(string); ok {
			match.Content = text
		}
		out = append(out, match)
	}
	return out, nil
}

func (s *vectorStore) DeleteByPolicy(ctx context.Context, orgID, policyID uuid.UUID) error {
	err := s.pc.DeleteVectors(ctx, s.indexHost, DeleteRequest{
		Namespace: s.namespace(orgID),
		Filter:    map[string]any{"policy_id": map[string]any{"$eq": policyID.String()}},
	})
	if err != nil {
		return &apperr.VectorIndexError{Msg: "delete by policy failed", Err: err}
	}
	return nil
}

func (s *vectorStore) Count(ctx context.Context, orgID uuid.UUID) (int64, error) {
	stats, err := s.pc.DescribeIndexStats(ctx, s.indexHost)
	if err != nil {
		return 0, &apperr.VectorIndexError{Msg: "describe_index_stats failed", Err: err}
	}
	ns, ok := stats.Namespaces[s.namespace(orgID)]
	if !ok {
		return 0, nil
	}
	return ns.VectorCount, nil
}
