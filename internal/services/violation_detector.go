package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/clients/openai"
	"github.com/verityops/compliance-backend/internal/domain"
	"github.com/verityops/compliance-backend/internal/platform/apperr"
	"github.com/verityops/compliance-backend/internal/platform/httpx"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

const violationDetectionSystemPrompt = "You are a compliance auditor that detects violations in documents. Always respond with valid JSON."

// DetectedViolation is one confirmed breach reported by the model. RuleID is
// always one of the candidate rules that were offered for checking.
type DetectedViolation struct {
	RuleID      uuid.UUID
	Severity    string
	Explanation string
}

// ViolationDetector checks an audit document excerpt against a set of
// compliance rules.
type ViolationDetector interface {
	DetectViolations(ctx context.Context, excerpt string, rules []*domain.ComplianceRule) ([]DetectedViolation, error)
}

type violationDetector struct {
	log   *logger.Logger
	ai    openai.Client
	retry httpx.RetryPolicy
}

func NewViolationDetector(log *logger.Logger, ai openai.Client) ViolationDetector {
	return &violationDetector{
		log:   log.With("service", "ViolationDetector"),
		ai:    ai,
		retry: httpx.DefaultRetryPolicy(),
	}
}

func (s *violationDetector) DetectViolations(ctx context.Context, excerpt string, rules []*domain.ComplianceRule) ([]DetectedViolation, error) {
	if len(rules) == 0 {
		return []DetectedViolation{}, nil
	}

	candidates := make(map[uuid.UUID]bool, len(rules))
	for _, rule := range rules {
		candidates[rule.ID] = true
	}

	prompt := buildViolationDetectionPrompt(excerpt, rules)

	s.log.Debug("Detecting violations",
		"excerpt_length", len(excerpt),
		"rules_count", len(rules),
	)

	var detected []DetectedViolation
	err := s.retry.Do(ctx, apperr.IsMalformedResponse, func(attempt int) error {
		content, err := s.ai.GenerateText(ctx, violationDetectionSystemPrompt, prompt, openai.GenerateOptions{})
		if err != nil {
			return err
		}

		items, err := decodeObjectArray(content)
		if err != nil {
			s.log.Warn("Violation detection response unparseable, retrying",
				"attempt", attempt+1,
				"error", err.Error(),
			)
			return err
		}

		detected = detected[:0]
		for _, item := range items {
			if !boolField(item, "violated") {
				continue
			}
			ruleID, parseErr := uuid.Parse(stringField(item, "rule_id", ""))
			if parseErr != nil || !candidates[ruleID] {
				s.log.Warn("Dropping violation with unknown rule id",
					"rule_id", stringField(item, "rule_id", ""),
				)
				continue
			}
			detected = append(detected, DetectedViolation{
				RuleID:      ruleID,
				Severity:    stringField(item, "severity", domain.SeverityMedium),
				Explanation: stringField(item, "explanation", ""),
			})
		}
		return nil
	})
	if err != nil {
		if apperr.IsMalformedResponse(err) {
			s.log.Error("Violation detection gave up on malformed responses", "error", err.Error())
			return []DetectedViolation{}, nil
		}
		return nil, err
	}

	s.log.Info("Violations detected",
		"rules_checked", len(rules),
		"violations_found", len(detected),
	)
	return detected, nil
}

func buildViolationDetectionPrompt(excerpt string, rules []*domain.ComplianceRule) string {
	var rulesText strings.Builder
	for i, rule := range rules {
		fmt.Fprintf(&rulesText, "\n%d. [ID: %s] %s\n", i+1, rule.ID, rule.RuleText)
		fmt.Fprintf(&rulesText, "   Category: %s, Severity: %s\n", rule.Category, rule.Severity)
	}

	return fmt.Sprintf(`You are a compliance auditor. Determine if the following document excerpt violates any of the provided compliance rules.

Document Excerpt:
%s

Compliance Rules to Check:
%s

For each rule, determine:
1. Whether the document excerpt violates the rule
2. If violated, provide a clear explanation of how it violates the rule
3. Assess the severity of the violation (use the rule's severity or adjust if needed)

Guidelines:
- Only flag violations if there is clear evidence in the document excerpt
- Be specific about what in the document violates the rule
- Consider context and intent, not just keywords
- If unsure, do not flag as a violation

Return ONLY a valid JSON array with this exact structure:
[
  {
    "rule_id": "uuid-of-rule",
    "violated": true,
    "explanation": "specific explanation of how the rule is violated",
    "severity": "low|medium|high|critical"
  }
]

Only include rules that are violated. If no violations are found, return an empty array: []

Do not include any explanation or text outside the JSON array.`, excerpt, rulesText.String())
}
