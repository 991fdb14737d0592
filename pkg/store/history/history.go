// Package history caches the in-flight transcript of live
// conversations. Durable persistence lives in the main store; this
// cache serves the hot path when assembling model context each turn.
package history

import (
	"context"

	"github.com/journalbuddy/backend/pkg/core/types"
)

// Store holds the running transcript of a conversation.
type Store interface {
	// Append adds one turn to the conversation's transcript.
	Append(ctx context.Context, conversationID string, turn types.Turn) error

	// List returns the transcript in chronological order.
	List(ctx context.Context, conversationID string) ([]types.Turn, error)

	// Clear drops the transcript once the conversation ends.
	Clear(ctx context.Context, conversationID string) error
}
