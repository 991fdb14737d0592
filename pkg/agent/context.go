// Package agent runs the tool-calling conversation loop for one
// journaling session.
package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/journalbuddy/backend/pkg/store"
)

// SessionContext carries per-session agent state: who is talking, which
// conversation this is, and the cached active goals the tools match
// against. It is owned by the session and passed by reference; there is
// no process-wide agent state.
type SessionContext struct {
	UserID         string
	ConversationID string
	UserName       string
	Mode           store.JournalMode

	mu           sync.Mutex
	goals        []store.Goal
	entryCreated bool
	lastMood     store.Mood
}

// NewSessionContext creates session state for one conversation.
func NewSessionContext(userID, conversationID, userName string, mode store.JournalMode) *SessionContext {
	return &SessionContext{
		UserID:         userID,
		ConversationID: conversationID,
		UserName:       userName,
		Mode:           mode,
	}
}

// RefreshGoals reloads the active-goal cache from the store.
func (sc *SessionContext) RefreshGoals(ctx context.Context, st store.Store) error {
	goals, err := st.ActiveGoals(ctx, sc.UserID)
	if err != nil {
		return err
	}
	sc.mu.Lock()
	sc.goals = goals
	sc.mu.Unlock()
	return nil
}

// Goals returns a snapshot of the cached active goals.
func (sc *SessionContext) Goals() []store.Goal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]store.Goal, len(sc.goals))
	copy(out, sc.goals)
	return out
}

// FindGoal matches a spoken goal title against the cache, case
// insensitively and by substring in either direction. Spoken titles
// rarely match stored descriptions verbatim.
func (sc *SessionContext) FindGoal(title string) (store.Goal, bool) {
	needle := strings.ToLower(strings.TrimSpace(title))
	if needle == "" {
		return store.Goal{}, false
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, g := range sc.goals {
		desc := strings.ToLower(g.Description)
		if strings.Contains(desc, needle) || strings.Contains(needle, desc) {
			return g, true
		}
	}
	return store.Goal{}, false
}

// SetGoalProgress updates the cached copy after a successful write.
func (sc *SessionContext) SetGoalProgress(goalID string, progress int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for i := range sc.goals {
		if sc.goals[i].ID == goalID {
			sc.goals[i].Progress = progress
			return
		}
	}
}

// MarkEntryCreated records that this session produced a journal entry,
// with the mood the user reported. The close-time summarizer skips
// entry creation when one already exists.
func (sc *SessionContext) MarkEntryCreated(mood store.Mood) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.entryCreated = true
	sc.lastMood = mood
}

// EntryCreated reports whether a journal entry exists for this session.
func (sc *SessionContext) EntryCreated() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.entryCreated
}

// LastMood returns the mood of the most recent entry, or "" if none.
func (sc *SessionContext) LastMood() store.Mood {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lastMood
}
