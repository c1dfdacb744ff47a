package workflow

import (
	"context"

	"intake/internal/queue"
	"intake/internal/services"
)

func withStageContext(ctx context.Context, stageName string, item *queue.Item, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if item != nil {
		ctx = services.WithItemID(ctx, item.ID)
	}
	ctx = services.WithStage(ctx, stageName)
	ctx = services.WithRequestID(ctx, requestID)
	return ctx
}
