package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/verityops/compliance-backend/internal/clients/openai"
	"github.com/verityops/compliance-backend/internal/platform/apperr"
	"github.com/verityops/compliance-backend/internal/platform/httpx"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

const ruleExtractionSystemPrompt = "You are a compliance expert that extracts structured compliance rules from policy documents. Always respond with valid JSON."

// ExtractedRule is one candidate rule mined from a policy chunk, before it
// is persisted.
type ExtractedRule struct {
	RuleText string
	Category string
	Severity string
}

// RuleExtractor mines actionable compliance rules out of policy text.
type RuleExtractor interface {
	// ExtractRules analyzes policyText, optionally with related context from
	// similar chunks. A malformed model response, after retries, degrades to
	// an empty slice; a provider error propagates.
	ExtractRules(ctx context.Context, policyText, contextText string) ([]ExtractedRule, error)
}

type ruleExtractor struct {
	log   *logger.Logger
	ai    openai.Client
	retry httpx.RetryPolicy
}

func NewRuleExtractor(log *logger.Logger, ai openai.Client) RuleExtractor {
	return &ruleExtractor{
		log:   log.With("service", "RuleExtractor"),
		ai:    ai,
		retry: httpx.DefaultRetryPolicy(),
	}
}

func (s *ruleExtractor) ExtractRules(ctx context.Context, policyText, contextText string) ([]ExtractedRule, error) {
	prompt := buildRuleExtractionPrompt(policyText, contextText)

	s.log.Debug("Extracting rules",
		"text_length", len(policyText),
		"has_context", contextText != "",
	)

	var rules []ExtractedRule
	err := s.retry.Do(ctx, apperr.IsMalformedResponse, func(attempt int) error {
		content, err := s.ai.GenerateText(ctx, ruleExtractionSystemPrompt, prompt, openai.GenerateOptions{})
		if err != nil {
			return err
		}

		items, err := decodeObjectArray(content)
		if err != nil {
			s.log.Warn("Rule extraction response unparseable, retrying",
				"attempt", attempt+1,
				"error", err.Error(),
			)
			return err
		}

		rules = rules[:0]
		for _, item := range items {
			ruleText := stringField(item, "rule_text", "")
			if ruleText == "" {
				continue
			}
			rules = append(rules, ExtractedRule{
				RuleText: ruleText,
				Category: stringField(item, "category", "general"),
				Severity: stringField(item, "severity", "medium"),
			})
		}
		return nil
	})
	if err != nil {
		if apperr.IsMalformedResponse(err) {
			s.log.Error("Rule extraction gave up on malformed responses", "error", err.Error())
			return []ExtractedRule{}, nil
		}
		return nil, err
	}

	s.log.Info("Rules extracted", "count", len(rules))
	return rules, nil
}

func buildRuleExtractionPrompt(policyText, contextText string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are a compliance expert. Extract specific, actionable compliance rules from the following policy text.

Policy Text:
%s
`, policyText)

	if contextText != "" {
		fmt.Fprintf(&b, `
Related Context:
%s
`, contextText)
	}

	b.WriteString(`
For each rule you identify, provide:
1. Rule description (clear, specific requirement that can be checked)
2. Category (e.g., data_privacy, financial, hr, security, operational, legal)
3. Severity (low, medium, high, critical)

Guidelines:
- Only extract explicit, actionable rules that can be verified
- Focus on requirements, prohibitions, and obligations
- Ignore general statements or background information
- Each rule should be specific enough to check compliance against
- If no clear rules are present, return an empty array

Return ONLY a valid JSON array with this exact structure:
[
  {
    "rule_text": "specific requirement or prohibition",
    "category": "category_name",
    "severity": "low|medium|high|critical"
  }
]

Do not include any explanation or text outside the JSON array.`)

	return b.String()
}
