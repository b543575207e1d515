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

type AuditHandler struct {
	log        *logger.Logger
	docs       *services.DocumentService
	violations repos.ViolationRepo
	pipeline   *services.AuditPipeline
	dispatcher *jobs.Dispatcher
}

func NewAuditHandler(
	log *logger.Logger,
	docs *services.DocumentService,
	violations repos.ViolationRepo,
	pipeline *services.AuditPipeline,
	dispatcher *jobs.Dispatcher,
) *AuditHandler {
	return &AuditHandler{
		log:        log.With("handler", "AuditHandler"),
		docs:       docs,
		violations: violations,
		pipeline:   pipeline,
		dispatcher: dispatcher,
	}
}

// UploadAudit accepts a PDF to check against the organization's rules and
// queues violation detection.
func (h *AuditHandler) UploadAudit(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	filename, data, ok := readUploadedPDF(c)
	if !ok {
		return
	}

	audit, err := h.docs.UploadAudit(c.Request.Context(), orgID, filename, data)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}

	auditID := audit.ID
	if err := h.dispatcher.Enqueue(fmt.Sprintf("audit:%s", auditID), func(ctx context.Context) error {
		return h.pipeline.ProcessAudit(ctx, auditID)
	}); err != nil {
		h.log.Error("Failed to enqueue audit pipeline", "audit_id", auditID, "error", err.Error())
	}

	response.RespondCreated(c, audit)
}

func (h *AuditHandler) ListAudits(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}

	audits, err := h.docs.ListAudits(c.Request.Context(), orgID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"audits": audits, "total": len(audits)})
}

func (h *AuditHandler) GetAudit(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	auditID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	audit, err := h.docs.GetAudit(c.Request.Context(), orgID, auditID)
	if errors.Is(err, services.ErrNotFound) {
		response.RespondError(c, http.StatusNotFound, "audit_not_found", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	response.RespondOK(c, audit)
}

// ListAuditViolations returns all violations detected in one audit document.
func (h *AuditHandler) ListAuditViolations(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	auditID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	// The org-scoped audit lookup is the tenant check for its violations.
	if _, err := h.docs.GetAudit(c.Request.Context(), orgID, auditID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "audit_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}

	rows, err := h.violations.ListByAudit(c.Request.Context(), nil, auditID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"violations": rows, "total": len(rows)})
}

func (h *AuditHandler) DeleteAudit(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	auditID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	err := h.docs.DeleteAudit(c.Request.Context(), orgID, auditID)
	if errors.Is(err, services.ErrNotFound) {
		response.RespondError(c, http.StatusNotFound, "audit_not_found", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "audit document deleted"})
}

// ReprocessAudit requeues violation detection for an existing audit.
func (h *AuditHandler) ReprocessAudit(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	auditID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	audit, err := h.docs.GetAudit(c.Request.Context(), orgID, auditID)
	if errors.Is(err, services.ErrNotFound) {
		response.RespondError(c, http.StatusNotFound, "audit_not_found", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "reprocess_failed", err)
		return
	}

	id := audit.ID
	if err := h.dispatcher.Enqueue(fmt.Sprintf("audit-reprocess:%s", id), func(ctx context.Context) error {
		return h.pipeline.ReprocessAudit(ctx, id)
	}); err != nil {
		response.RespondError(c, http.StatusServiceUnavailable, "queue_full", err)
		return
	}
	response.RespondAccepted(c, gin.H{"audit_id": id, "status": "processing"})
}
