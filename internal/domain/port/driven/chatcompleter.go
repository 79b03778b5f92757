package driven

import (
	"context"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// ChatCompleter defines the driven port for a chat-completion endpoint.
// Complete returns the content of the first choice. Any non-success status,
// transport failure or context expiry is returned as an error.
type ChatCompleter interface {
	Complete(ctx context.Context, req model.ChatRequest) (string, error)
}
