package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/journalbuddy/backend/pkg/core/llm"
	"github.com/journalbuddy/backend/pkg/search"
	"github.com/journalbuddy/backend/pkg/store"
)

// fakeStore is an in-memory store.Store recording what the agent wrote.
type fakeStore struct {
	mu sync.Mutex

	goals           []store.Goal
	entries         []store.Entry
	rewards         []store.Reward
	progressUpdates []store.GoalProgressUpdate
	summaries       map[string]string
	recent          []store.Entry

	failEntryCreate bool
	failReward      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{summaries: make(map[string]string)}
}

func (f *fakeStore) AuthenticateToken(context.Context, string) (string, error) {
	return "user-1", nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*store.User, error) {
	return &store.User{ID: id, Name: "Jess"}, nil
}

func (f *fakeStore) CreateConversation(_ context.Context, userID string, mode store.JournalMode) (*store.Conversation, error) {
	return &store.Conversation{ID: "conv-1", UserID: userID, Mode: mode, StartedAt: time.Now()}, nil
}

func (f *fakeStore) EndConversation(context.Context, string) error { return nil }

func (f *fakeStore) SaveConversationSummary(_ context.Context, id, summary string, keyTopics []string, goalUpdates string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[id] = summary
	return nil
}

func (f *fakeStore) AppendTurn(_ context.Context, conversationID, role, text string) (*store.Turn, error) {
	return &store.Turn{ID: store.NewID(), ConversationID: conversationID, Role: role, Text: text}, nil
}

func (f *fakeStore) ListTurns(context.Context, string) ([]store.Turn, error) { return nil, nil }

func (f *fakeStore) CreateEntry(_ context.Context, entry *store.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEntryCreate {
		return fmt.Errorf("entries table unavailable")
	}
	if entry.ID == "" {
		entry.ID = store.NewID()
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeStore) RecentEntries(context.Context, string, int) ([]store.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Entry(nil), f.recent...), nil
}

func (f *fakeStore) CreateGoal(_ context.Context, userID, description string) (*store.Goal, error) {
	g := store.Goal{ID: store.NewID(), UserID: userID, Description: description, Status: store.GoalActive}
	f.mu.Lock()
	f.goals = append(f.goals, g)
	f.mu.Unlock()
	return &g, nil
}

func (f *fakeStore) ActiveGoals(context.Context, string) ([]store.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Goal(nil), f.goals...), nil
}

func (f *fakeStore) UpdateGoalStatus(context.Context, string, store.GoalStatus) error { return nil }

func (f *fakeStore) UpdateGoalProgress(_ context.Context, goalID, conversationID string, progress int, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.goals {
		if f.goals[i].ID == goalID {
			previous := f.goals[i].Progress
			f.goals[i].Progress = progress
			f.progressUpdates = append(f.progressUpdates, store.GoalProgressUpdate{
				ID:               store.NewID(),
				GoalID:           goalID,
				ConversationID:   conversationID,
				PreviousProgress: previous,
				Progress:         progress,
				Note:             note,
			})
			return nil
		}
	}
	return fmt.Errorf("goal %s not found", goalID)
}

func (f *fakeStore) RecordReward(_ context.Context, userID, kind string, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReward {
		return fmt.Errorf("rewards table unavailable")
	}
	f.rewards = append(f.rewards, store.Reward{UserID: userID, Kind: kind, Points: points})
	return nil
}

var _ store.Store = (*fakeStore)(nil)

// fakeSearcher returns canned results.
type fakeSearcher struct {
	results []search.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, _, query string, _ int) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

// fakeIndexer records indexed entries.
type fakeIndexer struct {
	indexed []search.IndexedEntry
	err     error
}

func (f *fakeIndexer) Index(_ context.Context, entry search.IndexedEntry) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, entry)
	return nil
}

// fakeLLM replays scripted responses in order.
type fakeLLM struct {
	responses []scriptedResponse
	requests  []*llm.Request
}

type scriptedResponse struct {
	resp *llm.Response
	err  error
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Invoke(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return &llm.Response{}, nil
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next.resp, next.err
}
