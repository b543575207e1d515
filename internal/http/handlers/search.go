package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/verityops/compliance-backend/internal/http/response"
	"github.com/verityops/compliance-backend/internal/platform/logger"
	"github.com/verityops/compliance-backend/internal/services"
)

type SearchHandler struct {
	log    *logger.Logger
	search *services.SearchService
}

func NewSearchHandler(log *logger.Logger, search *services.SearchService) *SearchHandler {
	return &SearchHandler{
		log:    log.With("handler", "SearchHandler"),
		search: search,
	}
}

type searchRequest struct {
	Query    string     `json:"query"`
	NResults int        `json:"n_results"`
	PolicyID *uuid.UUID `json:"policy_id"`
}

// Search runs semantic search across the organization's indexed policy
// chunks.
func (h *SearchHandler) Search(c *gin.Context) {
	orgID, ok := requestOrg(c)
	if !ok {
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_query",
			fmt.Errorf("query is required"))
		return
	}

	results, err := h.search.SearchSimilar(c.Request.Context(), orgID, req.Query, req.NResults, req.PolicyID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"query":   req.Query,
		"results": results,
		"count":   len(results),
	})
}
