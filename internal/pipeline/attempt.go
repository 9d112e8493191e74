package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// attempt runs a recoverable enrichment stage for one candidate. A failure
// is logged and absorbed: the candidate keeps whatever was gathered so far
// and the run continues. Only the discovery stage bypasses this wrapper.
func attempt[T any](ctx context.Context, stage, candidate string, fn func(ctx context.Context) (T, error)) (T, bool) {
	val, err := fn(ctx)
	if err != nil {
		zap.L().Warn("enrichment stage failed",
			zap.String("stage", stage),
			zap.String("candidate", candidate),
			zap.Error(err),
		)
		var zero T
		return zero, false
	}
	return val, true
}
