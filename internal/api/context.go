package api

import (
	"context"

	"authgate/internal/observability"
)

func appendRequestID(ctx context.Context, attrs []any) []any {
	if rid := observability.RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, "request_id", rid)
	}
	return attrs
}
