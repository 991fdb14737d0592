package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/journalbuddy/backend/pkg/core/llm"
	"github.com/journalbuddy/backend/pkg/core/tokens"
	"github.com/journalbuddy/backend/pkg/core/types"
	"github.com/journalbuddy/backend/pkg/search"
	"github.com/journalbuddy/backend/pkg/store"
)

// maxIterations bounds the model-call loop for one user utterance.
// A well-behaved turn needs at most two or three.
const maxIterations = 5

// Tool dispatch phases reported through Events.OnToolCall.
const (
	ToolCallStarted   = "started"
	ToolCallCompleted = "completed"
)

// similarEntryLimit is how many related past entries are retrieved per
// utterance.
const similarEntryLimit = 2

// recentEntryLimit is how many recent entries feed the context.
const recentEntryLimit = 5

// Events receive loop side effects as they happen, so audio and UI
// updates start before the turn completes.
type Events struct {
	// OnText receives assistant text fragments in speaking order.
	OnText func(fragment string)

	// OnToolCall fires around each tool dispatch with the phase it is
	// entering, ToolCallStarted then ToolCallCompleted.
	OnToolCall func(name, status string)

	// OnEmotion fires when a journal entry establishes the user's mood.
	OnEmotion func(mood store.Mood)
}

func (e Events) text(fragment string) {
	if e.OnText != nil && fragment != "" {
		e.OnText(fragment)
	}
}

func (e Events) toolCall(name, status string) {
	if e.OnToolCall != nil {
		e.OnToolCall(name, status)
	}
}

func (e Events) emotion(mood store.Mood) {
	if e.OnEmotion != nil && mood != "" {
		e.OnEmotion(mood)
	}
}

// Outcome is the result of one loop run.
type Outcome struct {
	// Text is the full assistant reply, for persistence.
	Text string

	// Ended is set when the model called end_conversation.
	Ended    bool
	Farewell string
}

// Loop drives the tool-calling model for one utterance at a time.
type Loop struct {
	client   llm.Client
	model    string
	runtime  *ToolRuntime
	store    store.Store
	searcher search.Searcher
	budgeter *tokens.Budgeter
	logger   *slog.Logger
}

// NewLoop wires an agent loop. searcher may be nil.
func NewLoop(client llm.Client, model string, runtime *ToolRuntime, st store.Store, searcher search.Searcher, budgeter *tokens.Budgeter, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		client:   client,
		model:    model,
		runtime:  runtime,
		store:    st,
		searcher: searcher,
		budgeter: budgeter,
		logger:   logger,
	}
}

// Respond runs the loop for one user utterance. History is the
// conversation so far, oldest first, not including the utterance.
func (l *Loop) Respond(ctx context.Context, sc *SessionContext, history []types.Turn, utterance string, ev Events) (*Outcome, error) {
	messages, tools := l.buildContext(ctx, sc, history, utterance)

	outcome := &Outcome{}
	var spoken []string

	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := l.invoke(ctx, messages, tools)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.logger.Error("model invocation failed", "error", err)
			ev.text(FallbackReply)
			outcome.Text = FallbackReply
			return outcome, nil
		}

		if len(resp.ToolCalls) == 0 {
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				// Degenerate empty response. Speak a filler on the
				// first round only; later rounds already said
				// something through tool results.
				if iteration == 0 {
					ev.text(FillerReply)
					outcome.Text = FillerReply
				}
				return outcome, nil
			}
			ev.text(text)
			spoken = append(spoken, text)
			outcome.Text = strings.Join(spoken, " ")
			return outcome, nil
		}

		// Tool round: dispatch sequentially in model order, appending
		// each call/result pair contiguously.
		messages = append(messages, types.Message{Role: types.RoleAssistant, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			ev.toolCall(call.Name, ToolCallStarted)
			res := l.runtime.Dispatch(ctx, sc, call)
			ev.toolCall(call.Name, ToolCallCompleted)
			messages = append(messages, types.ToolResult(call.ID, res.Output))
			l.logger.Info("tool dispatched", "tool", call.Name)

			if res.Mood != "" {
				ev.emotion(res.Mood)
			}
			if res.Ended {
				outcome.Ended = true
				outcome.Farewell = res.Farewell
			}
		}

		if outcome.Ended {
			if outcome.Farewell != "" {
				ev.text(outcome.Farewell)
				spoken = append(spoken, outcome.Farewell)
			}
			outcome.Text = strings.Join(spoken, " ")
			return outcome, nil
		}
	}

	l.logger.Warn("model exceeded tool iteration limit", "limit", maxIterations)
	ev.text(FallbackReply)
	spoken = append(spoken, FallbackReply)
	outcome.Text = strings.Join(spoken, " ")
	return outcome, nil
}

// invoke calls the model, retrying once on transient failure.
func (l *Loop) invoke(ctx context.Context, messages []types.Message, tools []types.Tool) (*llm.Response, error) {
	req := &llm.Request{Model: l.model, Messages: messages, Tools: tools}
	resp, err := l.client.Invoke(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	l.logger.Warn("model invocation retrying", "error", err)
	return l.client.Invoke(ctx, req)
}

// buildContext assembles the system prompt, retrieved context under the
// token budget, trimmed history, and the current utterance.
func (l *Loop) buildContext(ctx context.Context, sc *SessionContext, history []types.Turn, utterance string) ([]types.Message, []types.Tool) {
	system := PersonaPrompt(sc.Mode)
	tools := Definitions(sc.Mode)

	contextText := l.retrieveContext(ctx, sc, utterance, l.budgeter.Count(system))
	if contextText != "" {
		system = system + "\n\nContext about this user:\n" + contextText
	}

	systemTokens := l.budgeter.Count(system)
	currentTokens := l.budgeter.Count(utterance)
	historyBudget := l.budgeter.HistoryBudget(systemTokens, currentTokens)
	trimmed := l.budgeter.TrimHistory(types.HistoryMessages(history), historyBudget)

	messages := make([]types.Message, 0, len(trimmed)+2)
	messages = append(messages, types.System(system))
	messages = append(messages, trimmed...)
	messages = append(messages, types.User(utterance))
	return messages, tools
}

// retrieveContext gathers goals, similar entries, and recent entries,
// each truncated to its budget share. Retrieval failures degrade to a
// smaller context rather than failing the turn.
func (l *Loop) retrieveContext(ctx context.Context, sc *SessionContext, utterance string, systemTokens int) string {
	alloc := l.budgeter.Allocate(systemTokens, 0, l.budgeter.Count(utterance))
	var parts []string

	if goalsText := GoalsContext(sc.Goals()); goalsText != "" && alloc.Goals > 0 {
		parts = append(parts, l.budgeter.TruncateText(goalsText, alloc.Goals, "..."))
	}

	if l.searcher != nil && alloc.SimilarEntries > 0 {
		results, err := l.searcher.Search(ctx, sc.UserID, utterance, similarEntryLimit)
		if err != nil {
			l.logger.Warn("similar entry retrieval failed", "error", err)
		} else if len(results) > 0 {
			parts = append(parts, l.budgeter.TruncateText(search.Digest(results), alloc.SimilarEntries, "..."))
		}
	}

	if alloc.RecentEntries > 0 {
		entries, err := l.store.RecentEntries(ctx, sc.UserID, recentEntryLimit)
		if err != nil {
			l.logger.Warn("recent entry retrieval failed", "error", err)
		} else if text := RecentEntriesContext(entries); text != "" {
			parts = append(parts, l.budgeter.TruncateText(text, alloc.RecentEntries, "..."))
		}
	}

	return strings.Join(parts, "\n\n")
}
