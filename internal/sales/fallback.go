package sales

import (
	"context"

	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/models"
)

// DefaultFallbackMessage is used when no fallback text is configured.
const DefaultFallbackMessage = "Our personal loans come with quick approval and flexible tenures. Shall we check your eligibility? Just type your 10-digit registered phone number."

// Agent is anything that can produce a sales reply.
type Agent interface {
	Reply(ctx context.Context, history []models.Message) (string, error)
}

type fallbackAgent struct {
	next    Agent
	message string
	logger  logger.Logger
}

// WithFallback answers with a canned pitch when next fails.
func WithFallback(next Agent, message string, log logger.Logger) Agent {
	if message == "" {
		message = DefaultFallbackMessage
	}
	return &fallbackAgent{next: next, message: message, logger: logger.ForComponent(log, "sales.fallback")}
}

func (f *fallbackAgent) Reply(ctx context.Context, history []models.Message) (string, error) {
	text, err := f.next.Reply(ctx, history)
	if err != nil {
		f.logger.Warn("sales agent failed, using fallback pitch", map[string]interface{}{"error": err.Error()})
		return f.message, nil
	}
	return text, nil
}
