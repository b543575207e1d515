package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/verityops/compliance-backend/internal/http/handlers"
	httpMW "github.com/verityops/compliance-backend/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware *httpMW.AuthMiddleware

	PolicyHandler    *httpH.PolicyHandler
	AuditHandler     *httpH.AuditHandler
	RuleHandler      *httpH.RuleHandler
	ViolationHandler *httpH.ViolationHandler
	SearchHandler    *httpH.SearchHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())

	// Health (public)
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Policies
	if cfg.PolicyHandler != nil {
		api.POST("/policies/upload", cfg.PolicyHandler.UploadPolicy)
		api.GET("/policies", cfg.PolicyHandler.ListPolicies)
		api.GET("/policies/:id", cfg.PolicyHandler.GetPolicy)
		api.GET("/policies/:id/chunks", cfg.PolicyHandler.GetPolicyChunks)
		api.DELETE("/policies/:id", cfg.PolicyHandler.DeletePolicy)
		api.POST("/policies/:id/reprocess", cfg.PolicyHandler.ReprocessPolicy)
	}

	// Audit documents
	if cfg.AuditHandler != nil {
		api.POST("/audits/upload", cfg.AuditHandler.UploadAudit)
		api.GET("/audits", cfg.AuditHandler.ListAudits)
		api.GET("/audits/:id", cfg.AuditHandler.GetAudit)
		api.GET("/audits/:id/violations", cfg.AuditHandler.ListAuditViolations)
		api.DELETE("/audits/:id", cfg.AuditHandler.DeleteAudit)
		api.POST("/audits/:id/reprocess", cfg.AuditHandler.ReprocessAudit)
	}

	// Compliance rules
	if cfg.RuleHandler != nil {
		api.GET("/rules", cfg.RuleHandler.ListRules)
		api.GET("/rules/:id", cfg.RuleHandler.GetRule)
		api.POST("/rules/extract/:policy_id", cfg.RuleHandler.ExtractRules)
	}

	// Violations
	if cfg.ViolationHandler != nil {
		api.POST("/violations/:id/remediation", cfg.ViolationHandler.GenerateRemediation)
	}

	// Semantic search
	if cfg.SearchHandler != nil {
		api.POST("/search", cfg.SearchHandler.Search)
	}

	return r
}
