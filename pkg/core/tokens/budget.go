package tokens

import (
	"github.com/journalbuddy/backend/pkg/core/types"
)

// Context window sizes per model. Models not listed fall back to
// DefaultContextWindow.
var modelContextWindows = map[string]int{
	"llama-3.3-70b-versatile": 131_072,
	"llama-3.1-8b-instant":    131_072,
	"openai/gpt-oss-120b":     131_072,
	"mixtral-8x7b-32768":      32_768,
	"gemma2-9b-it":            8_192,
	"gemini-2.0-flash":        1_048_576,
}

// DefaultContextWindow is used for unknown models.
const DefaultContextWindow = 131_072

const (
	// DefaultResponseReserve is held back from the window for the model's
	// own output.
	DefaultResponseReserve = 4_000

	// perMessageOverhead approximates the framing cost the provider adds
	// per chat message.
	perMessageOverhead = 4

	// minUsableContext is the floor below which retrieved context is
	// dropped entirely rather than split into useless slivers.
	minUsableContext = 1_000
)

// Category ceilings for retrieved context.
const (
	capEntryContext   = 4_000
	capSimilarEntries = 8_000
	capGoals          = 1_000
	capRecentEntries  = 4_000
)

// Allocation is the per-category token budget for one turn. It is derived
// fresh each turn and never persisted.
type Allocation struct {
	Available      int
	EntryContext   int
	SimilarEntries int
	Goals          int
	RecentEntries  int
}

// Budgeter apportions a fixed context window across system prompt, history,
// and retrieved context.
type Budgeter struct {
	counter Counter
	window  int
	reserve int
}

// NewBudgeter creates a Budgeter for the given model.
func NewBudgeter(counter Counter, model string, responseReserve int) *Budgeter {
	window, ok := modelContextWindows[model]
	if !ok {
		window = DefaultContextWindow
	}
	if responseReserve <= 0 {
		responseReserve = DefaultResponseReserve
	}
	return &Budgeter{counter: counter, window: window, reserve: responseReserve}
}

// Window returns the model's context window size.
func (b *Budgeter) Window() int { return b.window }

// Count returns the token count of text.
func (b *Budgeter) Count(text string) int {
	return b.counter.Count(text)
}

// CountMessage returns the token cost of one chat message including framing
// overhead.
func (b *Budgeter) CountMessage(m types.Message) int {
	return b.counter.Count(m.Role) + b.counter.Count(m.Content) + perMessageOverhead
}

// CountMessages returns the total token cost of a message list.
func (b *Budgeter) CountMessages(msgs []types.Message) int {
	total := 0
	for _, m := range msgs {
		total += b.CountMessage(m)
	}
	return total
}

// HistoryBudget returns the token budget left for history once the system
// prompt and current turn are accounted for. If the system prompt alone
// exceeds the window minus the response reserve, the budget is zero and the
// caller sends system-only context.
func (b *Budgeter) HistoryBudget(systemTokens, currentTokens int) int {
	budget := b.window - b.reserve - systemTokens - currentTokens
	if budget < 0 {
		return 0
	}
	return budget
}

// Allocate partitions the tokens left after the fixed parts of the prompt
// across the retrieved-context categories, using fixed weights capped by
// per-category ceilings. If the weighted sum still exceeds what is
// available, every category is scaled down proportionally.
func (b *Budgeter) Allocate(systemTokens, historyTokens, currentTokens int) Allocation {
	used := systemTokens + historyTokens + currentTokens
	available := b.window - b.reserve - used
	if available < minUsableContext {
		return Allocation{Available: max(available, 0)}
	}

	alloc := Allocation{
		Available:      available,
		EntryContext:   min(capEntryContext, available*20/100),
		SimilarEntries: min(capSimilarEntries, available*40/100),
		Goals:          min(capGoals, available*10/100),
		RecentEntries:  min(capRecentEntries, available*30/100),
	}

	total := alloc.EntryContext + alloc.SimilarEntries + alloc.Goals + alloc.RecentEntries
	if total > available {
		alloc.EntryContext = alloc.EntryContext * available / total
		alloc.SimilarEntries = alloc.SimilarEntries * available / total
		alloc.Goals = alloc.Goals * available / total
		alloc.RecentEntries = alloc.RecentEntries * available / total
	}
	return alloc
}

// TrimHistory walks history newest-to-oldest accumulating per-message cost
// and stops before the running total would exceed budget. The returned
// subset preserves chronological order. Trimming an already-trimmed history
// against the same budget returns the same subset.
func (b *Budgeter) TrimHistory(history []types.Message, budget int) []types.Message {
	if budget <= 0 || len(history) == 0 {
		return nil
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := b.CountMessage(history[i])
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}
	if start == len(history) {
		return nil
	}

	out := make([]types.Message, len(history)-start)
	copy(out, history[start:])
	return out
}

// TruncateText cuts text to at most maxTokens tokens, appending suffix when
// anything was removed.
func (b *Budgeter) TruncateText(text string, maxTokens int, suffix string) string {
	if b.counter.Count(text) <= maxTokens {
		return text
	}
	keep := maxTokens - b.counter.Count(suffix)
	if keep <= 0 {
		return suffix
	}
	return b.counter.Truncate(text, keep) + suffix
}
