package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/journalbuddy/backend/pkg/core/llm"
	"github.com/journalbuddy/backend/pkg/core/types"
	"github.com/journalbuddy/backend/pkg/search"
	"github.com/journalbuddy/backend/pkg/store"
)

const summaryPrompt = `You are a thoughtful journaling companion reviewing a finished voice conversation.

Analyze this conversation transcript and produce a reflection summary.

---
TRANSCRIPT:
%s
---

Generate a summary in this exact format:

TITLE: [A meaningful 3-6 word title that captures the essence of this conversation]

CONTENT: [Write 1-2 paragraphs summarizing what the user shared. Be warm and personal, like a friend summarizing what they heard. Reference specific things they mentioned.]

MOOD: [One of: great, good, okay, bad, terrible]

MOOD_TREND: [One of: improving, stable, declining, mixed]

KEY_THEMES: [3-5 comma-separated themes that emerged, e.g., "work stress, family time, fitness progress"]

GOAL_PROGRESS: [Brief summary of any goal progress mentioned, or "No specific goal updates" if none]

Important:
- Be genuine and warm, not clinical
- Reference specific details from the conversation
- Keep the content focused and meaningful`

// SummaryResult is the parsed close-time summary.
type SummaryResult struct {
	Title        string
	Content      string
	Mood         store.Mood
	MoodTrend    string
	KeyThemes    []string
	GoalProgress string
}

// ParseSummary extracts the labeled sections from a model response.
// Missing or malformed sections fall back to safe defaults; this never
// fails, since summarization is best-effort.
func ParseSummary(response string) SummaryResult {
	sections := map[string][]string{}
	var current string

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		matched := false
		for _, label := range []string{"TITLE:", "CONTENT:", "MOOD:", "MOOD_TREND:", "KEY_THEMES:", "GOAL_PROGRESS:"} {
			if strings.HasPrefix(line, label) {
				current = label
				rest := strings.TrimSpace(strings.TrimPrefix(line, label))
				if rest != "" {
					sections[current] = append(sections[current], rest)
				}
				matched = true
				break
			}
		}
		if !matched && current != "" && line != "" {
			sections[current] = append(sections[current], line)
		}
	}

	join := func(label string) string {
		return strings.TrimSpace(strings.Join(sections[label], " "))
	}

	result := SummaryResult{
		Title:        join("TITLE:"),
		Content:      join("CONTENT:"),
		Mood:         store.ParseMood(strings.ToLower(join("MOOD:"))),
		MoodTrend:    strings.ToLower(join("MOOD_TREND:")),
		KeyThemes:    splitTopics(join("KEY_THEMES:")),
		GoalProgress: join("GOAL_PROGRESS:"),
	}
	if result.Title == "" {
		result.Title = "Journal Reflection"
	}
	switch result.MoodTrend {
	case "improving", "stable", "declining", "mixed":
	default:
		result.MoodTrend = "stable"
	}
	return result
}

// Summarizer performs the close-time summarization pass.
type Summarizer struct {
	client  llm.Client
	model   string
	store   store.Store
	indexer search.Indexer
	logger  *slog.Logger
}

// NewSummarizer wires a close-time summarizer. indexer may be nil.
func NewSummarizer(client llm.Client, model string, st store.Store, indexer search.Indexer, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{client: client, model: model, store: st, indexer: indexer, logger: logger}
}

// Summarize derives a summary from the conversation transcript.
func (s *Summarizer) Summarize(ctx context.Context, turns []types.Turn) (SummaryResult, error) {
	transcript := formatTranscript(turns)
	if transcript == "" {
		return SummaryResult{}, fmt.Errorf("empty transcript")
	}

	resp, err := s.client.Invoke(ctx, &llm.Request{
		Model:    s.model,
		Messages: []types.Message{types.User(fmt.Sprintf(summaryPrompt, transcript))},
	})
	if err != nil {
		return SummaryResult{}, fmt.Errorf("summarize conversation: %w", err)
	}
	return ParseSummary(resp.Text), nil
}

// Finalize runs the whole close-time pass: summarize, store the summary
// on the conversation row, and in journal mode create the derived entry
// if the session never made one. Every step is best-effort.
func (s *Summarizer) Finalize(ctx context.Context, sc *SessionContext, turns []types.Turn) {
	result, err := s.Summarize(ctx, turns)
	if err != nil {
		s.logger.Warn("close-time summarization skipped", "conversation_id", sc.ConversationID, "error", err)
		return
	}

	if err := s.store.SaveConversationSummary(ctx, sc.ConversationID, result.Content, result.KeyThemes, result.GoalProgress); err != nil {
		s.logger.Warn("conversation summary save failed", "conversation_id", sc.ConversationID, "error", err)
	}

	if !sc.Mode.IsJournal() || sc.EntryCreated() {
		return
	}

	entry := &store.Entry{
		UserID:         sc.UserID,
		ConversationID: sc.ConversationID,
		Title:          result.Title,
		Content:        result.Content,
		Mood:           result.Mood,
		MoodTrend:      result.MoodTrend,
		KeyThemes:      result.KeyThemes,
		GoalProgress:   result.GoalProgress,
	}
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		s.logger.Warn("derived entry creation failed", "conversation_id", sc.ConversationID, "error", err)
		return
	}
	sc.MarkEntryCreated(result.Mood)
	s.logger.Info("derived journal entry created", "entry_id", entry.ID)

	if err := s.store.RecordReward(ctx, sc.UserID, "journal_entry", entryRewardPoints); err != nil {
		s.logger.Warn("reward grant failed", "entry_id", entry.ID, "error", err)
	}
	if s.indexer != nil {
		if err := s.indexer.Index(ctx, search.IndexedEntry{
			EntryID:   entry.ID,
			UserID:    entry.UserID,
			Title:     entry.Title,
			Content:   entry.Content,
			CreatedAt: entry.CreatedAt,
		}); err != nil {
			s.logger.Warn("entry indexing failed", "entry_id", entry.ID, "error", err)
		}
	}
}

func formatTranscript(turns []types.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		speaker := "User"
		if t.Role == types.RoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, text)
	}
	return strings.TrimRight(b.String(), "\n")
}
