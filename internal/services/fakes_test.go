package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verityops/compliance-backend/internal/clients/openai"
	"github.com/verityops/compliance-backend/internal/clients/pinecone"
	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/ingestion/chunker"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// ---- openai.Client ----

type fakeAI struct {
	embedCalls int
	embedFn    func(inputs []string) ([][]float32, error)

	genCalls int
	genFn    func(call int, system, user string, opts openai.GenerateOptions) (string, error)
}

func (f *fakeAI) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.embedCalls++
	if f.embedFn != nil {
		return f.embedFn(inputs)
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (f *fakeAI) GenerateText(_ context.Context, system, user string, opts openai.GenerateOptions) (string, error) {
	f.genCalls++
	if f.genFn != nil {
		return f.genFn(f.genCalls, system, user, opts)
	}
	return "[]", nil
}

// ---- EmbeddingService ----

type fakeEmbedder struct {
	calls  int
	single int
	fn     func(texts []string) ([][]float32, error)
}

func (f *fakeEmbedder) GenerateEmbeddings(_ context.Context, texts []string, _ int) ([][]float32, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.5}
	}
	return out, nil
}

func (f *fakeEmbedder) GenerateSingleEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.single++
	vecs, err := f.GenerateEmbeddings(ctx, []string{text}, 0)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// ---- pinecone.VectorStore ----

type fakeVectorStore struct {
	upserts       int
	upsertRecords []pinecone.ChunkRecord
	upsertErr     error

	queryCalls int
	queryFn    func(orgID uuid.UUID, topK int, policyID *uuid.UUID) ([]pinecone.Match, error)

	deleteCalls int
	deleteErr   error
}

func (f *fakeVectorStore) UpsertChunks(_ context.Context, _ uuid.UUID, records []pinecone.ChunkRecord) error {
	f.upserts++
	f.upsertRecords = append(f.upsertRecords, records...)
	return f.upsertErr
}

func (f *fakeVectorStore) QuerySimilar(_ context.Context, orgID uuid.UUID, _ []float32, topK int, policyID *uuid.UUID) ([]pinecone.Match, error) {
	f.queryCalls++
	if f.queryFn != nil {
		return f.queryFn(orgID, topK, policyID)
	}
	return nil, nil
}

func (f *fakeVectorStore) DeleteByPolicy(_ context.Context, _, _ uuid.UUID) error {
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeVectorStore) Count(_ context.Context, _ uuid.UUID) (int64, error) {
	return 0, nil
}

// ---- gcp.BucketService ----

type fakeBucket struct {
	objects map[string][]byte

	uploadErr   error
	downloadErr error

	uploads   int
	downloads int
	deletes   []string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (f *fakeBucket) Upload(_ context.Context, key string, data []byte, _ string) error {
	f.uploads++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBucket) Download(_ context.Context, key string) ([]byte, error) {
	f.downloads++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.objects[key], nil
}

func (f *fakeBucket) Delete(_ context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}

// ---- repos ----

type fakePolicyRepo struct {
	policies map[uuid.UUID]*domain.Policy
	statuses map[uuid.UUID][]string

	createErr error
	updateErr error
	deletes   int
}

func newFakePolicyRepo(policies ...*domain.Policy) *fakePolicyRepo {
	r := &fakePolicyRepo{
		policies: map[uuid.UUID]*domain.Policy{},
		statuses: map[uuid.UUID][]string{},
	}
	for _, p := range policies {
		r.policies[p.ID] = p
	}
	return r
}

func (r *fakePolicyRepo) Create(_ context.Context, _ *gorm.DB, p *domain.Policy) (*domain.Policy, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.policies[p.ID] = p
	return p, nil
}

func (r *fakePolicyRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*domain.Policy, error) {
	return r.policies[id], nil
}

func (r *fakePolicyRepo) GetByIDForOrg(_ context.Context, _ *gorm.DB, id, orgID uuid.UUID) (*domain.Policy, error) {
	p := r.policies[id]
	if p == nil || p.OrganizationID != orgID {
		return nil, nil
	}
	return p, nil
}

func (r *fakePolicyRepo) ListByOrg(_ context.Context, _ *gorm.DB, orgID uuid.UUID) ([]*domain.Policy, error) {
	var out []*domain.Policy
	for _, p := range r.policies {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePolicyRepo) UpdateStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, status string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.statuses[id] = append(r.statuses[id], status)
	if p := r.policies[id]; p != nil {
		p.Status = status
	}
	return nil
}

func (r *fakePolicyRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.deletes++
	delete(r.policies, id)
	return nil
}

func (r *fakePolicyRepo) lastStatus(id uuid.UUID) string {
	s := r.statuses[id]
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

type fakeChunkRepo struct {
	byPolicy map[uuid.UUID][]*domain.PolicyChunk

	replaceCalls int
	replaceErr   error
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{byPolicy: map[uuid.UUID][]*domain.PolicyChunk{}}
}

func (r *fakeChunkRepo) ReplaceForPolicy(_ context.Context, _ *gorm.DB, policyID uuid.UUID, chunks []*domain.PolicyChunk) error {
	r.replaceCalls++
	if r.replaceErr != nil {
		return r.replaceErr
	}
	for _, ch := range chunks {
		if ch.ID == uuid.Nil {
			ch.ID = uuid.New()
		}
	}
	r.byPolicy[policyID] = chunks
	return nil
}

func (r *fakeChunkRepo) GetByPolicyID(_ context.Context, _ *gorm.DB, policyID uuid.UUID) ([]*domain.PolicyChunk, error) {
	return r.byPolicy[policyID], nil
}

func (r *fakeChunkRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*domain.PolicyChunk, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*domain.PolicyChunk
	for _, chunks := range r.byPolicy {
		for _, ch := range chunks {
			if want[ch.ID] {
				out = append(out, ch)
			}
		}
	}
	return out, nil
}

func (r *fakeChunkRepo) CountByPolicy(_ context.Context, _ *gorm.DB, policyID uuid.UUID) (int64, error) {
	return int64(len(r.byPolicy[policyID])), nil
}

type fakeRuleRepo struct {
	rules []*domain.ComplianceRule

	createCalls   int
	createErr     error
	deletedPolicy []uuid.UUID
}

func (r *fakeRuleRepo) CreateBatch(_ context.Context, _ *gorm.DB, rules []*domain.ComplianceRule) ([]*domain.ComplianceRule, error) {
	r.createCalls++
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, rule := range rules {
		if rule.ID == uuid.Nil {
			rule.ID = uuid.New()
		}
	}
	r.rules = append(r.rules, rules...)
	return rules, nil
}

func (r *fakeRuleRepo) GetByIDForOrg(_ context.Context, _ *gorm.DB, id, orgID uuid.UUID) (*domain.ComplianceRule, error) {
	for _, rule := range r.rules {
		if rule.ID == id && rule.OrganizationID == orgID {
			return rule, nil
		}
	}
	return nil, nil
}

func (r *fakeRuleRepo) GetBySourceChunkIDs(_ context.Context, _ *gorm.DB, orgID uuid.UUID, chunkIDs []uuid.UUID) ([]*domain.ComplianceRule, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range chunkIDs {
		want[id] = true
	}
	var out []*domain.ComplianceRule
	for _, rule := range r.rules {
		if rule.OrganizationID == orgID && rule.SourceChunkID != nil && want[*rule.SourceChunkID] {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) ListByOrg(_ context.Context, _ *gorm.DB, orgID uuid.UUID, policyID *uuid.UUID) ([]*domain.ComplianceRule, error) {
	var out []*domain.ComplianceRule
	for _, rule := range r.rules {
		if rule.OrganizationID != orgID {
			continue
		}
		if policyID != nil && rule.PolicyID != *policyID {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *fakeRuleRepo) DeleteByPolicy(_ context.Context, _ *gorm.DB, policyID uuid.UUID) error {
	r.deletedPolicy = append(r.deletedPolicy, policyID)
	kept := r.rules[:0]
	for _, rule := range r.rules {
		if rule.PolicyID != policyID {
			kept = append(kept, rule)
		}
	}
	r.rules = kept
	return nil
}

type fakeAuditRepo struct {
	audits   map[uuid.UUID]*domain.AuditDocument
	statuses map[uuid.UUID][]string
}

func newFakeAuditRepo(audits ...*domain.AuditDocument) *fakeAuditRepo {
	r := &fakeAuditRepo{
		audits:   map[uuid.UUID]*domain.AuditDocument{},
		statuses: map[uuid.UUID][]string{},
	}
	for _, a := range audits {
		r.audits[a.ID] = a
	}
	return r
}

func (r *fakeAuditRepo) Create(_ context.Context, _ *gorm.DB, a *domain.AuditDocument) (*domain.AuditDocument, error) {
	r.audits[a.ID] = a
	return a, nil
}

func (r *fakeAuditRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*domain.AuditDocument, error) {
	return r.audits[id], nil
}

func (r *fakeAuditRepo) GetByIDForOrg(_ context.Context, _ *gorm.DB, id, orgID uuid.UUID) (*domain.AuditDocument, error) {
	a := r.audits[id]
	if a == nil || a.OrganizationID != orgID {
		return nil, nil
	}
	return a, nil
}

func (r *fakeAuditRepo) ListByOrg(_ context.Context, _ *gorm.DB, orgID uuid.UUID) ([]*domain.AuditDocument, error) {
	var out []*domain.AuditDocument
	for _, a := range r.audits {
		if a.OrganizationID == orgID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) UpdateStatus(_ context.Context, _ *gorm.DB, id uuid.UUID, status string) error {
	r.statuses[id] = append(r.statuses[id], status)
	if a := r.audits[id]; a != nil {
		a.Status = status
	}
	return nil
}

func (r *fakeAuditRepo) Delete(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	delete(r.audits, id)
	return nil
}

func (r *fakeAuditRepo) lastStatus(id uuid.UUID) string {
	s := r.statuses[id]
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

type fakeViolationRepo struct {
	violations []*domain.Violation

	createCalls  int
	remediations map[uuid.UUID]string
}

func newFakeViolationRepo(violations ...*domain.Violation) *fakeViolationRepo {
	return &fakeViolationRepo{
		violations:   violations,
		remediations: map[uuid.UUID]string{},
	}
}

func (r *fakeViolationRepo) CreateBatch(_ context.Context, _ *gorm.DB, violations []*domain.Violation) ([]*domain.Violation, error) {
	r.createCalls++
	for _, v := range violations {
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
	}
	r.violations = append(r.violations, violations...)
	return violations, nil
}

func (r *fakeViolationRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*domain.Violation, error) {
	for _, v := range r.violations {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, nil
}

func (r *fakeViolationRepo) ListByAudit(_ context.Context, _ *gorm.DB, auditID uuid.UUID) ([]*domain.Violation, error) {
	var out []*domain.Violation
	for _, v := range r.violations {
		if v.AuditDocumentID == auditID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeViolationRepo) UpdateRemediation(_ context.Context, _ *gorm.DB, id uuid.UUID, remediation string) error {
	r.remediations[id] = remediation
	return nil
}

// ---- ingestion ----

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(_ []byte, _ string) (string, error) {
	return f.text, f.err
}

type fakeChunker struct {
	chunks []chunker.TextChunk
}

func (f *fakeChunker) ChunkText(_ string) []chunker.TextChunk {
	return f.chunks
}

// ---- LLM services ----

type fakeDetector struct {
	calls int
	fn    func(excerpt string, rules []*domain.ComplianceRule) ([]DetectedViolation, error)
}

func (f *fakeDetector) DetectViolations(_ context.Context, excerpt string, rules []*domain.ComplianceRule) ([]DetectedViolation, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(excerpt, rules)
	}
	return nil, nil
}

type fakeRuleExtractor struct {
	calls int
	fn    func(policyText, contextText string) ([]ExtractedRule, error)
}

func (f *fakeRuleExtractor) ExtractRules(_ context.Context, policyText, contextText string) ([]ExtractedRule, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(policyText, contextText)
	}
	return nil, nil
}
