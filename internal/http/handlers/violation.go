package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/verityops/compliance-backend/internal/http/response"
	"github.com/verityops/compliance-backend/internal/platform/logger"
	"github.com/verityops/compliance-backend/internal/services"
)

type ViolationHandler struct {
	log         *logger.Logger
	remediation services.RemediationService
}

func NewViolationHandler(log *logger.Logger, remediation services.RemediationService) *ViolationHandler {
	return &ViolationHandler{
		log:         log.With("handler", "ViolationHandler"),
		remediation: remediation,
	}
}

// GenerateRemediation synchronously generates and persists remediation steps
// for one violation. Safe to call again; the suggestion is regenerated and
// overwritten.
func (h *ViolationHandler) GenerateRemediation(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}
	violationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	violation, err := h.remediation.GenerateForViolation(c.Request.Context(), orgID, violationID)
	if errors.Is(err, services.ErrNotFound) {
		response.RespondError(c, http.StatusNotFound, "violation_not_found", err)
		return
	}
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "remediation_failed", err)
		return
	}
	response.RespondOK(c, violation)
}
