package reqctx

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// RequestData carries the authenticated identity through a request. The
// organization ID is the tenant scope every repo call runs under.
type RequestData struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, contextKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	rd, _ := ctx.Value(contextKey{}).(*RequestData)
	return rd
}
