package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/journalbuddy/backend/pkg/core/types"
	"github.com/journalbuddy/backend/pkg/search"
	"github.com/journalbuddy/backend/pkg/store"
)

// ToolKind is the closed set of tools the model may call.
type ToolKind string

const (
	ToolUpdateGoalProgress ToolKind = "update_goal_progress"
	ToolRecallMemory       ToolKind = "recall_memory"
	ToolCreateJournalEntry ToolKind = "create_journal_entry"
	ToolSaveSessionSummary ToolKind = "save_session_summary"
	ToolEndConversation    ToolKind = "end_conversation"
)

const recallNotFound = "I couldn't find anything about that in your past entries."

// entryRewardPoints is granted when a conversation produces an entry.
const entryRewardPoints = 10

// ToolOutcome is the result of one tool dispatch. Output always holds
// the string fed back to the model; validation failures become output,
// never errors.
type ToolOutcome struct {
	Output string

	// Ended is set by end_conversation.
	Ended    bool
	Farewell string

	// Mood is set when create_journal_entry establishes one.
	Mood store.Mood
}

// ToolRuntime executes tool calls against the session's collaborators.
type ToolRuntime struct {
	store    store.Store
	searcher search.Searcher
	indexer  search.Indexer
	logger   *slog.Logger
}

// NewToolRuntime wires a tool runtime. searcher and indexer may be nil
// when similarity search is not configured.
func NewToolRuntime(st store.Store, searcher search.Searcher, indexer search.Indexer, logger *slog.Logger) *ToolRuntime {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolRuntime{store: st, searcher: searcher, indexer: indexer, logger: logger}
}

// Definitions returns the tool set offered to the model for a mode.
// Journal sessions get entry creation; check-ins get goal tracking.
func Definitions(mode store.JournalMode) []types.Tool {
	recall := types.NewTool(string(ToolRecallMemory),
		"Look up what the user wrote about a topic in their past journal entries.",
		types.ObjectSchema(map[string]types.JSONSchema{
			"query": types.StringSchema("What to look for in past entries"),
		}, []string{"query"}))

	endConv := types.NewTool(string(ToolEndConversation),
		"End the conversation with a farewell message. Use this when the user is done talking.",
		types.ObjectSchema(map[string]types.JSONSchema{
			"farewell_message": types.StringSchema("A brief, warm goodbye message"),
		}, []string{"farewell_message"}))

	if mode.IsJournal() {
		createEntry := types.NewTool(string(ToolCreateJournalEntry),
			"Create a journal entry from the conversation.",
			types.ObjectSchema(map[string]types.JSONSchema{
				"title":   types.StringSchema("A meaningful title that captures the essence of their reflection (3-8 words)"),
				"content": types.StringSchema("A flowing summary of what the user shared during the conversation"),
				"mood":    types.StringSchema("The user's mood - must be one of: great, good, okay, bad, terrible"),
			}, []string{"title", "content", "mood"}))
		return []types.Tool{createEntry, recall, endConv}
	}

	updateGoal := types.NewTool(string(ToolUpdateGoalProgress),
		"Update the progress percentage for a user's goal.",
		types.ObjectSchema(map[string]types.JSONSchema{
			"goal_title":   types.StringSchema("The name/title of the goal to update"),
			"new_progress": types.IntSchema("New progress percentage (0-100)", 0, 100),
			"notes":        types.StringSchema("Optional notes about the progress"),
		}, []string{"goal_title", "new_progress"}))

	saveSummary := types.NewTool(string(ToolSaveSessionSummary),
		"Save a summary of this conversation for future reference.",
		types.ObjectSchema(map[string]types.JSONSchema{
			"summary":      types.StringSchema("Brief summary of what was discussed"),
			"key_topics":   types.StringSchema("Main topics covered (comma-separated)"),
			"goal_updates": types.StringSchema("Any goal progress updates made (comma-separated)"),
		}, []string{"summary", "key_topics", "goal_updates"}))

	return []types.Tool{updateGoal, recall, saveSummary, endConv}
}

// Dispatch executes one tool call. The returned outcome always carries
// a model-readable output string; Dispatch never returns an error for
// tool-level failures.
func (r *ToolRuntime) Dispatch(ctx context.Context, sc *SessionContext, call types.ToolCall) ToolOutcome {
	switch ToolKind(call.Name) {
	case ToolUpdateGoalProgress:
		return r.updateGoalProgress(ctx, sc, call.Arguments)
	case ToolRecallMemory:
		return r.recallMemory(ctx, sc, call.Arguments)
	case ToolCreateJournalEntry:
		return r.createJournalEntry(ctx, sc, call.Arguments)
	case ToolSaveSessionSummary:
		return r.saveSessionSummary(ctx, sc, call.Arguments)
	case ToolEndConversation:
		return r.endConversation(call.Arguments)
	default:
		return ToolOutcome{Output: fmt.Sprintf("Unknown tool '%s'", call.Name)}
	}
}

func (r *ToolRuntime) updateGoalProgress(ctx context.Context, sc *SessionContext, args json.RawMessage) ToolOutcome {
	var in struct {
		GoalTitle   string `json:"goal_title"`
		NewProgress int    `json:"new_progress"`
		Notes       string `json:"notes"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return ToolOutcome{Output: fmt.Sprintf("Invalid arguments: %v", err)}
	}
	if in.NewProgress < 0 || in.NewProgress > 100 {
		return ToolOutcome{Output: "Progress must be between 0 and 100"}
	}

	goal, ok := sc.FindGoal(in.GoalTitle)
	if !ok {
		return ToolOutcome{Output: fmt.Sprintf("Could not find goal matching '%s'", in.GoalTitle)}
	}

	if err := r.store.UpdateGoalProgress(ctx, goal.ID, sc.ConversationID, in.NewProgress, in.Notes); err != nil {
		r.logger.Error("goal progress update failed", "goal_id", goal.ID, "error", err)
		return ToolOutcome{Output: fmt.Sprintf("Failed to update '%s'", goal.Description)}
	}

	previous := goal.Progress
	sc.SetGoalProgress(goal.ID, in.NewProgress)
	r.logger.Info("goal progress updated",
		"goal_id", goal.ID, "from", previous, "to", in.NewProgress)
	return ToolOutcome{Output: fmt.Sprintf("Updated '%s' progress from %d%% to %d%%", goal.Description, previous, in.NewProgress)}
}

func (r *ToolRuntime) recallMemory(ctx context.Context, sc *SessionContext, args json.RawMessage) ToolOutcome {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil || strings.TrimSpace(in.Query) == "" {
		return ToolOutcome{Output: recallNotFound}
	}
	if r.searcher == nil {
		return ToolOutcome{Output: recallNotFound}
	}

	results, err := r.searcher.Search(ctx, sc.UserID, in.Query, 3)
	if err != nil {
		r.logger.Error("memory recall failed", "error", err)
		return ToolOutcome{Output: recallNotFound}
	}
	if len(results) == 0 {
		return ToolOutcome{Output: recallNotFound}
	}
	return ToolOutcome{Output: search.Digest(results)}
}

func (r *ToolRuntime) createJournalEntry(ctx context.Context, sc *SessionContext, args json.RawMessage) ToolOutcome {
	var in struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Mood    string `json:"mood"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return ToolOutcome{Output: fmt.Sprintf("Invalid arguments: %v", err)}
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return ToolOutcome{Output: "A journal entry needs both a title and content"}
	}

	mood := store.ParseMood(strings.ToLower(in.Mood))
	entry := &store.Entry{
		UserID:         sc.UserID,
		ConversationID: sc.ConversationID,
		Title:          in.Title,
		Content:        in.Content,
		Mood:           mood,
	}
	if err := r.store.CreateEntry(ctx, entry); err != nil {
		r.logger.Error("entry creation failed", "error", err)
		return ToolOutcome{Output: fmt.Sprintf("Failed to create journal entry: %v", err)}
	}
	sc.MarkEntryCreated(mood)
	r.logger.Info("journal entry created", "entry_id", entry.ID, "title", in.Title)

	// Reward and index side effects are best-effort; the entry is
	// already durable.
	if err := r.store.RecordReward(ctx, sc.UserID, "journal_entry", entryRewardPoints); err != nil {
		r.logger.Warn("reward grant failed", "entry_id", entry.ID, "error", err)
	}
	if r.indexer != nil {
		if err := r.indexer.Index(ctx, search.IndexedEntry{
			EntryID:   entry.ID,
			UserID:    entry.UserID,
			Title:     entry.Title,
			Content:   entry.Content,
			CreatedAt: entry.CreatedAt,
		}); err != nil {
			r.logger.Warn("entry indexing failed", "entry_id", entry.ID, "error", err)
		}
	}

	return ToolOutcome{
		Output: fmt.Sprintf("Journal entry created: '%s'", in.Title),
		Mood:   mood,
	}
}

func (r *ToolRuntime) saveSessionSummary(ctx context.Context, sc *SessionContext, args json.RawMessage) ToolOutcome {
	var in struct {
		Summary     string `json:"summary"`
		KeyTopics   string `json:"key_topics"`
		GoalUpdates string `json:"goal_updates"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return ToolOutcome{Output: fmt.Sprintf("Invalid arguments: %v", err)}
	}

	topics := splitTopics(in.KeyTopics)
	if err := r.store.SaveConversationSummary(ctx, sc.ConversationID, in.Summary, topics, in.GoalUpdates); err != nil {
		r.logger.Error("session summary save failed", "conversation_id", sc.ConversationID, "error", err)
		return ToolOutcome{Output: "Failed to save the session summary"}
	}
	return ToolOutcome{Output: "Session summary saved"}
}

func (r *ToolRuntime) endConversation(args json.RawMessage) ToolOutcome {
	var in struct {
		FarewellMessage string `json:"farewell_message"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return ToolOutcome{Output: "Conversation ended", Ended: true}
	}
	return ToolOutcome{Output: "Conversation ended", Ended: true, Farewell: in.FarewellMessage}
}

func splitTopics(s string) []string {
	parts := strings.Split(s, ",")
	topics := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
