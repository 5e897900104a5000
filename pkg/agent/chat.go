package agent

import (
	"context"
	"fmt"

	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/ports"
)

// Chat answers conversational requests directly from the full history.
type Chat struct {
	completer ports.Completer
}

// NewChat creates the chat node.
func NewChat(completer ports.Completer) *Chat {
	return &Chat{completer: completer}
}

// Node implements the chat step.
func (c *Chat) Node(ctx context.Context, state *domain.State) (domain.Update, error) {
	reply, err := c.completer.Complete(ctx, state.Messages)
	if err != nil {
		return domain.Update{AppendMessages: []domain.Message{
			domain.SystemMessage(fmt.Sprintf("Error answering request: %v", err)),
		}}, nil
	}
	return domain.Update{AppendMessages: []domain.Message{
		domain.AssistantMessage(reply),
	}}, nil
}
