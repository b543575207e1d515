package domain

// Document processing status. Transitions are monotonic forward; a document
// only re-enters StatusProcessing on an explicit reprocess request.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Rule / violation severities. Advisory, not strictly enforced.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)
