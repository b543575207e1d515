package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/clients/pinecone"
	"github.com/verityops/compliance-backend/internal/domain"
)

type ruleExtractionFixture struct {
	svc       *RuleExtractionService
	policies  *fakePolicyRepo
	chunks    *fakeChunkRepo
	rules     *fakeRuleRepo
	embedder  *fakeEmbedder
	vectors   *fakeVectorStore
	extractor *fakeRuleExtractor
	policy    *domain.Policy
}

func newRuleExtractionFixture(t *testing.T, chunkContents ...string) *ruleExtractionFixture {
	t.Helper()

	policy := samplePolicy(uuid.New())
	policy.Status = domain.StatusCompleted
	policies := newFakePolicyRepo(policy)

	chunks := newFakeChunkRepo()
	rows := make([]*domain.PolicyChunk, len(chunkContents))
	for i, content := range chunkContents {
		rows[i] = &domain.PolicyChunk{
			ID:         uuid.New(),
			PolicyID:   policy.ID,
			ChunkIndex: i,
			Content:    content,
			TokenCount: 10,
		}
	}
	chunks.byPolicy[policy.ID] = rows

	rules := &fakeRuleRepo{}
	embedder := &fakeEmbedder{}
	vectors := &fakeVectorStore{}
	extractor := &fakeRuleExtractor{}

	svc := NewRuleExtractionService(testLogger(t), policies, chunks, rules, embedder, vectors, extractor)

	return &ruleExtractionFixture{
		svc:       svc,
		policies:  policies,
		chunks:    chunks,
		rules:     rules,
		embedder:  embedder,
		vectors:   vectors,
		extractor: extractor,
		policy:    policy,
	}
}

func TestExtractRulesForPolicyMissingPolicy(t *testing.T) {
	f := newRuleExtractionFixture(t, "chunk")

	ran, created, err := f.svc.ExtractRulesForPolicy(context.Background(), uuid.New(), false)
	if err != nil {
		t.Fatalf("ExtractRulesForPolicy: %v", err)
	}
	if ran || created != 0 {
		t.Fatalf("missing policy must not run, got ran=%v created=%d", ran, created)
	}
}

func TestExtractRulesForPolicyNoChunks(t *testing.T) {
	f := newRuleExtractionFixture(t)

	ran, created, err := f.svc.ExtractRulesForPolicy(context.Background(), f.policy.ID, false)
	if err != nil {
		t.Fatalf("ExtractRulesForPolicy: %v", err)
	}
	if ran || created != 0 {
		t.Fatalf("unprocessed policy must not run, got ran=%v created=%d", ran, created)
	}
}

func TestExtractRulesForPolicyCreatesRules(t *testing.T) {
	f := newRuleExtractionFixture(t, "first chunk", "second chunk")
	f.extractor.fn = func(policyText, _ string) ([]ExtractedRule, error) {
		return []ExtractedRule{{RuleText: "rule from " + policyText, Category: "security", Severity: "high"}}, nil
	}

	ran, created, err := f.svc.ExtractRulesForPolicy(context.Background(), f.policy.ID, false)
	if err != nil {
		t.Fatalf("ExtractRulesForPolicy: %v", err)
	}
	if !ran || created != 2 {
		t.Fatalf("got ran=%v created=%d, want ran=true created=2", ran, created)
	}
	if len(f.rules.rules) != 2 {
		t.Fatalf("expected 2 persisted rules, got %d", len(f.rules.rules))
	}
	for _, rule := range f.rules.rules {
		if rule.OrganizationID != f.policy.OrganizationID || rule.PolicyID != f.policy.ID {
			t.Fatalf("rule not scoped to policy: %+v", rule)
		}
		if rule.SourceChunkID == nil {
			t.Fatal("rule missing source chunk id")
		}
	}
	if len(f.rules.deletedPolicy) != 0 {
		t.Fatal("clear=false must not delete existing rules")
	}
}

func TestExtractRulesForPolicyClearFlag(t *testing.T) {
	f := newRuleExtractionFixture(t, "chunk")
	f.rules.rules = []*domain.ComplianceRule{{
		ID:       uuid.New(),
		PolicyID: f.policy.ID,
		RuleText: "stale rule",
	}}

	ran, _, err := f.svc.ExtractRulesForPolicy(context.Background(), f.policy.ID, true)
	if err != nil {
		t.Fatalf("ExtractRulesForPolicy: %v", err)
	}
	if !ran {
		t.Fatal("expected the sweep to run")
	}
	if len(f.rules.deletedPolicy) != 1 || f.rules.deletedPolicy[0] != f.policy.ID {
		t.Fatalf("expected one delete for the policy, got %v", f.rules.deletedPolicy)
	}
}

func TestExtractRulesForPolicySkipsFailedChunks(t *testing.T) {
	f := newRuleExtractionFixture(t, "bad chunk", "good chunk")
	f.extractor.fn = func(policyText, _ string) ([]ExtractedRule, error) {
		if policyText == "bad chunk" {
			return nil, errors.New("provider down")
		}
		return []ExtractedRule{{RuleText: "keep records", Category: "legal", Severity: "low"}}, nil
	}

	ran, created, err := f.svc.ExtractRulesForPolicy(context.Background(), f.policy.ID, false)
	if err != nil {
		t.Fatalf("per-chunk failures must not fail the sweep: %v", err)
	}
	if !ran || created != 1 {
		t.Fatalf("got ran=%v created=%d, want ran=true created=1", ran, created)
	}
}

func TestExtractRulesForPolicyContextExcludesSelf(t *testing.T) {
	f := newRuleExtractionFixture(t, "the chunk")
	self := f.chunks.byPolicy[f.policy.ID][0]

	f.vectors.queryFn = func(_ uuid.UUID, topK int, _ *uuid.UUID) ([]pinecone.Match, error) {
		if topK != 3 {
			t.Fatalf("topK = %d, want 3", topK)
		}
		return []pinecone.Match{
			{ChunkID: self.ID, Content: "the chunk", Score: 1.0},
			{ChunkID: uuid.New(), Content: "neighbor one", Score: 0.8},
			{ChunkID: uuid.New(), Content: "neighbor two", Score: 0.7},
		}, nil
	}
	f.extractor.fn = func(_, contextText string) ([]ExtractedRule, error) {
		if contextText != "neighbor one\n\nneighbor two" {
			t.Fatalf("unexpected context: %q", contextText)
		}
		return nil, nil
	}

	if _, _, err := f.svc.ExtractRulesForPolicy(context.Background(), f.policy.ID, false); err != nil {
		t.Fatalf("ExtractRulesForPolicy: %v", err)
	}
	if f.extractor.calls != 1 {
		t.Fatalf("expected 1 extraction call, got %d", f.extractor.calls)
	}
}
