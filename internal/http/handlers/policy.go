package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/verityops/compliance-backend/internal/data/repos"
	"github.com/verityops/compliance-backend/internal/http/response"
	"github.com/verityops/compliance-backend/internal/jobs"
	"github.com/verityops/compliance-backend/internal/platform/logger"
	"github.com/verityops/compliance-backend/internal/services"
)

type PolicyHandler struct {
	log        *logger.Logger
	docs       *services.DocumentService
	chunks     repos.PolicyChunkRepo
	pipeline   *services.PolicyPipeline
	dispatcher *jobs.Dispatcher
}

func NewPolicyHandler(
	log *logger.Logger,
	docs *services.DocumentService,
	chunks repos.PolicyChunkRepo,
	pipeline *services.PolicyPipeline,
	dispatcher *jobs.Dispatcher,
) *PolicyHandler {
	return &PolicyHandler{
		log:        log.With("handler", "PolicyHandler"),
		docs:       docs,
		chunks:     chunks,
		pipeline:   pipeline,
		dispatcher: dispatcher,
	}
}

// UploadPolicy accepts a PDF, stores it and queues the ingestion pipeline.
// The response is the metadata row in its initial processing state.
func (h *PolicyHandler) UploadPolicy(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	filename, data, ok := readUploadedPDF(c)
	if !ok {
		return
	}

	policy, err := h.docs.UploadPolicy(c.Request.Context(), orgID, filename, data)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}

	policyID := policy.ID
	if err := h.dispatcher.Enqueue(fmt.Sprintf("policy:%s", policyID), func(ctx context.Context) error {
		return h.pipeline.ProcessPolicy(ctx, policyID)
	}); err != nil {
		h.log.Error("Failed to enqueue policy pipeline", "policy_id", policyID, "error", err.Error())
	}

	response.RespondCreated(c, policy)
}

func (h *PolicyHandler) ListPolicies(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}

	policies, err := h.docs.ListPolicies(c.Request.Context(), orgID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"policies": policies, "total": len(policies)})
}

func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	policyID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	policy, err := h.docs.GetPolicy(c.Request.Context(), orgID, policyID)
	if errors.Is(err, services.ErrNotFound) {
		response.RespondError(c, http.StatusNotFound, "policy_not_found", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}

	chunkCount, err := h.chunks.CountByPolicy(c.Request.Context(), nil, policy.ID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"policy": policy, "chunk_count": chunkCount})
}

func (h *PolicyHandler) GetPolicyChunks(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	policyID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.docs.GetPolicy(c.Request.Context(), orgID, policyID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "policy_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}

	rows, err := h.chunks.GetByPolicyID(c.Request.Context(), nil, policyID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"chunks": rows, "total": len(rows)})
}

func (h *PolicyHandler) DeletePolicy(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	policyID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	err := h.docs.DeletePolicy(c.Request.Context(), orgID, policyID)
	if errors.Is(err, services.ErrNotFound) {
		response.RespondError(c, http.StatusNotFound, "policy_not_found", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "policy deleted"})
}

// ReprocessPolicy requeues the full pipeline for an existing policy.
func (h *PolicyHandler) ReprocessPolicy(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	policyID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	policy, err := h.docs.GetPolicy(c.Request.Context(), orgID, policyID)
	if errors.Is(err, services.ErrNotFound) {
		response.RespondError(c, http.StatusNotFound, "policy_not_found", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "reprocess_failed", err)
		return
	}

	id := policy.ID
	if err := h.dispatcher.Enqueue(fmt.Sprintf("policy-reprocess:%s", id), func(ctx context.Context) error {
		return h.pipeline.ReprocessPolicy(ctx, id)
	}); err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "queue_full", err)
		return
	}
	response.RespondAccepted(c, gin.H{"policy_id": id, "status": "processing"})
}
