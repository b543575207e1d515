package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/data/repos"
	"github.com/verityops/compliance-backend/internal/http/response"
	"github.com/verityops/compliance-backend/internal/jobs"
	"github.com/verityops/compliance-backend/internal/platform/logger"
	"github.com/verityops/compliance-backend/internal/services"
)

type RuleHandler struct {
	log        *logger.Logger
	rules      repos.ComplianceRuleRepo
	chunks     repos.PolicyChunkRepo
	docs       *services.DocumentService
	extraction *services.RuleExtractionService
	dispatcher *jobs.Dispatcher
}

func NewRuleHandler(
	log *logger.Logger,
	rules repos.ComplianceRuleRepo,
	chunks repos.PolicyChunkRepo,
	docs *services.DocumentService,
	extraction *services.RuleExtractionService,
	dispatcher *jobs.Dispatcher,
) *RuleHandler {
	return &RuleHandler{
		log:        log.With("handler", "RuleHandler"),
		rules:      rules,
		chunks:     chunks,
		docs:       docs,
		extraction: extraction,
		dispatcher: dispatcher,
	}
}

// ListRules returns the organization's compliance rules, optionally
// filtered by policy.
func (h *RuleHandler) ListRules(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}

	var policyID *uuid.UUID
	if raw := c.Query("policy_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_policy_id", err)
			return
		}
		policyID = &id
	}

	rules, err := h.rules.ListByOrg(c.Request.Context(), nil, orgID, policyID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"rules": rules, "total": len(rules)})
}

func (h *RuleHandler) GetRule(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	ruleID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	rule, err := h.rules.GetByIDForOrg(c.Request.Context(), nil, ruleID, orgID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	if rule == nil {
		response.RespondError(c, http.StatusNotFound, "rule_not_found",
			fmt.Errorf("compliance rule not found"))
		return
	}
	response.RespondOK(c, rule)
}

// ExtractRules queues the rule extraction sweep for a processed policy.
// Extraction is additive; pass clear=true to drop the policy's existing
// rules first.
func (h *RuleHandler) ExtractRules(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	policyID, ok := uuidParam(c, "policy_id")
	if !ok {
		return
	}
	clear := c.Query("clear") == "true"

	if _, err := h.docs.GetPolicy(c.Request.Context(), orgID, policyID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "policy_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "extract_failed", err)
		return
	}

	chunkCount, err := h.chunks.CountByPolicy(c.Request.Context(), nil, policyID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "extract_failed", err)
		return
	}
	if chunkCount == 0 {
		response.RespondError(c, http.StatusBadRequest, "policy_not_processed",
			fmt.Errorf("policy has not been processed yet"))
		return
	}

	if err := h.dispatcher.Enqueue(fmt.Sprintf("rule-extract:%s", policyID), func(ctx context.Context) error {
		_, _, err := h.extraction.ExtractRulesForPolicy(ctx, policyID, clear)
		return err
	}); err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "queue_full", err)
		return
	}

	h.log.Info("Rule extraction triggered", "policy_id", policyID, "org_id", orgID, "clear", clear)
	response.RespondAccepted(c, gin.H{
		"policy_id": policyID,
		"status":    "processing",
		"message":   "rule extraction started in background",
	})
}
