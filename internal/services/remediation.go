package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/clients/openai"
	"github.com/verityops/compliance-backend/internal/data/repos"
	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/platform/httpx"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

const remediationSystemPrompt = "You are a compliance consultant that provides clear, actionable remediation steps for compliance violations."

const missingExcerptPlaceholder = "(source policy excerpt is no longer available)"

var errEmptyRemediation = errors.New("empty remediation response")

// RemediationService generates actionable remediation steps for detected
// violations. Generation never fails outward: after exhausted retries it
// falls back to a deterministic template keyed on the violation severity.
type RemediationService interface {
	GenerateSuggestion(ctx context.Context, violation *domain.Violation, rule *domain.ComplianceRule, excerpt string) string
	// GenerateForViolation loads the violation and its rule within the
	// organization, generates a suggestion and persists it in place.
	GenerateForViolation(ctx context.Context, orgID, violationID uuid.UUID) (*domain.Violation, error)
}

type remediationService struct {
	log        *logger.Logger
	ai         openai.Client
	violations repos.ViolationRepo
	rules      repos.ComplianceRuleRepo
	chunks     repos.PolicyChunkRepo
	retry      httpx.RetryPolicy
}

func NewRemediationService(
	log *logger.Logger,
	ai openai.Client,
	violations repos.ViolationRepo,
	rules repos.ComplianceRuleRepo,
	chunks repos.PolicyChunkRepo,
) RemediationService {
	return &remediationService{
		log:        log.With("service", "RemediationService"),
		ai:         ai,
		violations: violations,
		rules:      rules,
		chunks:     chunks,
		retry:      httpx.DefaultRetryPolicy(),
	}
}

func (s *remediationService) GenerateSuggestion(ctx context.Context, violation *domain.Violation, rule *domain.ComplianceRule, excerpt string) string {
	prompt := buildRemediationPrompt(rule, violation, excerpt)

	s.log.Debug("Generating remediation",
		"violation_id", violation.ID,
		"rule_id", rule.ID,
		"severity", violation.Severity,
	)

	var remediation string
	err := s.retry.Do(ctx, func(err error) bool {
		return errors.Is(err, errEmptyRemediation)
	}, func(attempt int) error {
		content, err := s.ai.GenerateText(ctx, remediationSystemPrompt, prompt, openai.GenerateOptions{
			Temperature: 0.3,
			MaxTokens:   1000,
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(content) == "" {
			s.log.Warn("Empty remediation response", "attempt", attempt+1)
			return errEmptyRemediation
		}
		remediation = strings.TrimSpace(content)
		return nil
	})
	if err != nil {
		s.log.Error("Remediation generation failed, using template",
			"violation_id", violation.ID,
			"error", err.Error(),
		)
		return genericRemediationTemplate(rule, violation)
	}

	s.log.Info("Remediation generated",
		"violation_id", violation.ID,
		"remediation_length", len(remediation),
	)
	return remediation
}

func (s *remediationService) GenerateForViolation(ctx context.Context, orgID, violationID uuid.UUID) (*domain.Violation, error) {
	violation, err := s.violations.GetByID(ctx, nil, violationID)
	if err != nil {
		return nil, err
	}
	if violation == nil {
		return nil, ErrNotFound
	}

	// The rule lookup is org-scoped, which also verifies the caller may see
	// this violation at all.
	rule, err := s.rules.GetByIDForOrg(ctx, nil, violation.RuleID, orgID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, ErrNotFound
	}

	excerpt := missingExcerptPlaceholder
	if rule.SourceChunkID != nil {
		chunks, err := s.chunks.GetByIDs(ctx, nil, []uuid.UUID{*rule.SourceChunkID})
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 {
			excerpt = chunks[0].Content
		}
	}

	remediation := s.GenerateSuggestion(ctx, violation, rule, excerpt)

	if err := s.violations.UpdateRemediation(ctx, nil, violation.ID, remediation); err != nil {
		return nil, err
	}
	violation.Remediation = &remediation
	return violation, nil
}

func buildRemediationPrompt(rule *domain.ComplianceRule, violation *domain.Violation, excerpt string) string {
	return fmt.Sprintf(`You are a compliance consultant. Provide actionable remediation steps for the following compliance violation.

Violation Details:
- Rule: %s
- Category: %s
- Severity: %s
- Explanation: %s

Document Excerpt:
%s

Provide 3-5 specific, actionable steps to remediate this violation. Each step should be:
1. Clear and specific
2. Directly address the violation
3. Practical and implementable
4. Focused on compliance resolution

Format your response as a numbered list of remediation steps. Be concise but thorough.
Do not include any preamble or conclusion, just the numbered steps.`,
		rule.RuleText, rule.Category, rule.Severity, violation.Explanation, excerpt)
}

func genericRemediationTemplate(rule *domain.ComplianceRule, violation *domain.Violation) string {
	severityActions := map[string]string{
		domain.SeverityCritical: "immediate action and escalation to senior management",
		domain.SeverityHigh:     "prompt action and review by compliance team",
		domain.SeverityMedium:   "timely review and corrective measures",
		domain.SeverityLow:      "review and documentation of corrective actions",
	}

	actionLevel, ok := severityActions[strings.ToLower(violation.Severity)]
	if !ok {
		actionLevel = "appropriate corrective action"
	}

	return fmt.Sprintf(`Generic Remediation Steps:

1. Review the compliance rule: %s

2. Identify the specific content or practice that violates this rule in your document or process.

3. Consult with your compliance team or legal counsel to understand the full implications of this violation.

4. Develop a corrective action plan that addresses the violation and ensures future compliance with the rule.

5. Implement the corrective actions and document all changes made.

6. Conduct a follow-up review to verify that the violation has been fully remediated.

Note: This violation has been classified as %s severity and requires %s.`,
		rule.RuleText, violation.Severity, actionLevel)
}
