package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/clients/pinecone"
	"github.com/verityops/compliance-backend/internal/data/repos"
	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

const (
	// ruleContextTopK is how many similar chunks are fetched per chunk; the
	// chunk itself usually comes back as its own best match.
	ruleContextTopK = 3
	// ruleContextUsed is how many of those feed the extraction prompt.
	ruleContextUsed = 2
)

// RuleExtractionService sweeps every chunk of a processed policy through the
// rule extractor, using similar chunks from the vector index as context.
// Extraction is additive across runs; pass clear to drop the policy's
// existing rules first.
type RuleExtractionService struct {
	log       *logger.Logger
	policies  repos.PolicyRepo
	chunks    repos.PolicyChunkRepo
	rules     repos.ComplianceRuleRepo
	embedder  EmbeddingService
	vectors   pinecone.VectorStore
	extractor RuleExtractor
}

func NewRuleExtractionService(
	log *logger.Logger,
	policies repos.PolicyRepo,
	chunks repos.PolicyChunkRepo,
	rules repos.ComplianceRuleRepo,
	embedder EmbeddingService,
	vectors pinecone.VectorStore,
	ruleExtractor RuleExtractor,
) *RuleExtractionService {
	return &RuleExtractionService{
		log:       log.With("service", "RuleExtractionService"),
		policies:  policies,
		chunks:    chunks,
		rules:     rules,
		embedder:  embedder,
		vectors:   vectors,
		extractor: ruleExtractor,
	}
}

// ExtractRulesForPolicy returns whether the sweep ran at all and how many
// rules it created. A missing policy or a policy without chunks does not run.
// Per-chunk failures are logged and skipped; the sweep keeps going.
func (s *RuleExtractionService) ExtractRulesForPolicy(ctx context.Context, policyID uuid.UUID, clear bool) (bool, int, error) {
	policy, err := s.policies.GetByID(ctx, nil, policyID)
	if err != nil {
		return false, 0, err
	}
	if policy == nil {
		s.log.Error("Policy not found for rule extraction", "policy_id", policyID)
		return false, 0, nil
	}

	rows, err := s.chunks.GetByPolicyID(ctx, nil, policy.ID)
	if err != nil {
		return false, 0, err
	}
	if len(rows) == 0 {
		s.log.Warn("No chunks found for rule extraction", "policy_id", policy.ID)
		return false, 0, nil
	}

	if clear {
		if err := s.rules.DeleteByPolicy(ctx, nil, policy.ID); err != nil {
			return false, 0, err
		}
		s.log.Info("Cleared existing rules before extraction", "policy_id", policy.ID)
	}

	s.log.Info("Rule extraction started",
		"policy_id", policy.ID,
		"chunk_count", len(rows),
	)

	rulesCreated := 0
	for _, row := range rows {
		created, err := s.extractForChunk(ctx, policy, row)
		if err != nil {
			s.log.Error("Chunk rule extraction failed, skipping",
				"policy_id", policy.ID,
				"chunk_id", row.ID,
				"error", err.Error(),
			)
			continue
		}
		rulesCreated += created
	}

	s.log.Info("Rule extraction completed",
		"policy_id", policy.ID,
		"total_rules_extracted", rulesCreated,
	)
	return true, rulesCreated, nil
}

func (s *RuleExtractionService) extractForChunk(ctx context.Context, policy *domain.Policy, chunk *domain.PolicyChunk) (int, error) {
	vector, err := s.embedder.GenerateSingleEmbedding(ctx, chunk.Content)
	if err != nil {
		return 0, err
	}

	matches, err := s.vectors.QuerySimilar(ctx, policy.OrganizationID, vector, ruleContextTopK, nil)
	if err != nil {
		return 0, err
	}

	var contextParts []string
	for _, m := range matches {
		if m.ChunkID == chunk.ID || m.Content == "" {
			continue
		}
		contextParts = append(contextParts, m.Content)
		if len(contextParts) == ruleContextUsed {
			break
		}
	}

	extracted, err := s.extractor.ExtractRules(ctx, chunk.Content, strings.Join(contextParts, "\n\n"))
	if err != nil {
		return 0, err
	}
	if len(extracted) == 0 {
		return 0, nil
	}

	sourceChunkID := chunk.ID
	rows := make([]*domain.ComplianceRule, 0, len(extracted))
	for _, r := range extracted {
		rows = append(rows, &domain.ComplianceRule{
			OrganizationID: policy.OrganizationID,
			PolicyID:       policy.ID,
			RuleText:       r.RuleText,
			Category:       r.Category,
			Severity:       r.Severity,
			SourceChunkID:  &sourceChunkID,
		})
	}
	if _, err := s.rules.CreateBatch(ctx, nil, rows); err != nil {
		return 0, err
	}

	s.log.Debug("Chunk processed",
		"policy_id", policy.ID,
		"chunk_id", chunk.ID,
		"rules_found", len(rows),
	)
	return len(rows), nil
}
