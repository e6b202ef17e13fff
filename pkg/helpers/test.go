package helpers

import (
	"context"

	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

// TestCtx returns a context carrying a discarding logger.
func TestCtx() context.Context {
	return logger.ToContext(context.Background(), logger.NewTestLogger())
}
