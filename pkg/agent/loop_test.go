package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journalbuddy/backend/pkg/core/llm"
	"github.com/journalbuddy/backend/pkg/core/tokens"
	"github.com/journalbuddy/backend/pkg/core/types"
	"github.com/journalbuddy/backend/pkg/store"
)

func newTestLoop(client llm.Client, st *fakeStore) *Loop {
	rt := NewToolRuntime(st, nil, nil, nil)
	budgeter := tokens.NewBudgeter(tokens.HeuristicCounter{}, "llama-3.3-70b-versatile", 0)
	return NewLoop(client, "llama-3.3-70b-versatile", rt, st, nil, budgeter, nil)
}

func toolCallResponse(name string, args map[string]any, id string) *llm.Response {
	raw, _ := json.Marshal(args)
	return &llm.Response{ToolCalls: []types.ToolCall{{ID: id, Name: name, Arguments: raw}}}
}

type capturedEvents struct {
	texts     []string
	toolCalls []string
	moods     []store.Mood
}

func (c *capturedEvents) events() Events {
	return Events{
		OnText:     func(s string) { c.texts = append(c.texts, s) },
		OnToolCall: func(name, status string) { c.toolCalls = append(c.toolCalls, name+":"+status) },
		OnEmotion:  func(m store.Mood) { c.moods = append(c.moods, m) },
	}
}

func TestRespondPlainText(t *testing.T) {
	st := newFakeStore()
	client := &fakeLLM{responses: []scriptedResponse{
		{resp: &llm.Response{Text: "That sounds like a good day. What made it special?"}},
	}}
	loop := newTestLoop(client, st)
	sc := NewSessionContext("user-1", "conv-1", "Jess", store.ModeCheckIn)

	var captured capturedEvents
	out, err := loop.Respond(context.Background(), sc, nil, "Today was pretty good", captured.events())
	require.NoError(t, err)

	assert.Equal(t, "That sounds like a good day. What made it special?", out.Text)
	assert.False(t, out.Ended)
	assert.Equal(t, []string{out.Text}, captured.texts)

	// The single request carried system prompt + utterance.
	require.Len(t, client.requests, 1)
	msgs := client.requests[0].Messages
	require.NotEmpty(t, msgs)
	assert.Equal(t, types.RoleSystem, msgs[0].Role)
	assert.Equal(t, "Today was pretty good", msgs[len(msgs)-1].Content)
}

func TestRespondGoalUpdateThenEnd(t *testing.T) {
	st := newFakeStore()
	goal, err := st.CreateGoal(context.Background(), "user-1", "Run a half marathon")
	require.NoError(t, err)

	client := &fakeLLM{responses: []scriptedResponse{
		{resp: toolCallResponse("update_goal_progress", map[string]any{
			"goal_title": "half marathon", "new_progress": 60,
		}, "call-1")},
		{resp: toolCallResponse("end_conversation", map[string]any{
			"farewell_message": "Great progress today. Rest up!",
		}, "call-2")},
	}}
	loop := newTestLoop(client, st)
	sc := NewSessionContext("user-1", "conv-1", "Jess", store.ModeCheckIn)
	require.NoError(t, sc.RefreshGoals(context.Background(), st))

	var captured capturedEvents
	out, err := loop.Respond(context.Background(), sc, nil, "I ran 15k, call it 60 percent", captured.events())
	require.NoError(t, err)

	assert.True(t, out.Ended)
	assert.Equal(t, "Great progress today. Rest up!", out.Farewell)
	assert.Equal(t, []string{
		"update_goal_progress:started", "update_goal_progress:completed",
		"end_conversation:started", "end_conversation:completed",
	}, captured.toolCalls)
	require.Len(t, st.progressUpdates, 1)
	assert.Equal(t, goal.ID, st.progressUpdates[0].GoalID)

	// Second request carries the contiguous call/result pair.
	require.Len(t, client.requests, 2)
	msgs := client.requests[1].Messages
	n := len(msgs)
	require.GreaterOrEqual(t, n, 3)
	assert.Equal(t, types.RoleAssistant, msgs[n-2].Role)
	require.Len(t, msgs[n-2].ToolCalls, 1)
	assert.Equal(t, types.RoleTool, msgs[n-1].Role)
	assert.Equal(t, "call-1", msgs[n-1].ToolCallID)
}

func TestRespondModelFailureFallsBack(t *testing.T) {
	st := newFakeStore()
	client := &fakeLLM{responses: []scriptedResponse{
		{err: assert.AnError},
		{err: assert.AnError}, // retry also fails
	}}
	loop := newTestLoop(client, st)
	sc := NewSessionContext("user-1", "conv-1", "Jess", store.ModeCheckIn)

	var captured capturedEvents
	out, err := loop.Respond(context.Background(), sc, nil, "hello?", captured.events())
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, out.Text)
	assert.Equal(t, []string{FallbackReply}, captured.texts)
	assert.Len(t, client.requests, 2)
}

func TestRespondRetrySucceeds(t *testing.T) {
	st := newFakeStore()
	client := &fakeLLM{responses: []scriptedResponse{
		{err: assert.AnError},
		{resp: &llm.Response{Text: "Back with you. How was the afternoon?"}},
	}}
	loop := newTestLoop(client, st)
	sc := NewSessionContext("user-1", "conv-1", "Jess", store.ModeCheckIn)

	out, err := loop.Respond(context.Background(), sc, nil, "hello?", Events{})
	require.NoError(t, err)
	assert.Equal(t, "Back with you. How was the afternoon?", out.Text)
}

func TestRespondEmptyResponseFiller(t *testing.T) {
	st := newFakeStore()
	client := &fakeLLM{responses: []scriptedResponse{
		{resp: &llm.Response{}},
	}}
	loop := newTestLoop(client, st)
	sc := NewSessionContext("user-1", "conv-1", "Jess", store.ModeCheckIn)

	var captured capturedEvents
	out, err := loop.Respond(context.Background(), sc, nil, "mm", captured.events())
	require.NoError(t, err)
	assert.Equal(t, FillerReply, out.Text)
	assert.Equal(t, []string{FillerReply}, captured.texts)
}

func TestRespondIterationLimit(t *testing.T) {
	st := newFakeStore()
	_, err := st.CreateGoal(context.Background(), "user-1", "Meditate daily")
	require.NoError(t, err)

	// The model keeps calling tools forever.
	var responses []scriptedResponse
	for i := 0; i < maxIterations+2; i++ {
		responses = append(responses, scriptedResponse{
			resp: toolCallResponse("update_goal_progress", map[string]any{
				"goal_title": "meditate", "new_progress": 50,
			}, "call-x"),
		})
	}
	client := &fakeLLM{responses: responses}
	loop := newTestLoop(client, st)
	sc := NewSessionContext("user-1", "conv-1", "Jess", store.ModeCheckIn)
	require.NoError(t, sc.RefreshGoals(context.Background(), st))

	var captured capturedEvents
	out, err := loop.Respond(context.Background(), sc, nil, "update everything", captured.events())
	require.NoError(t, err)

	assert.Len(t, client.requests, maxIterations)
	assert.Contains(t, out.Text, FallbackReply)
	assert.Equal(t, FallbackReply, captured.texts[len(captured.texts)-1])
}

func TestRespondEmotionEvent(t *testing.T) {
	st := newFakeStore()
	client := &fakeLLM{responses: []scriptedResponse{
		{resp: toolCallResponse("create_journal_entry", map[string]any{
			"title": "Quiet Win", "content": "Finished the week strong.", "mood": "good",
		}, "call-1")},
		{resp: &llm.Response{Text: "Saved! Anything else on your mind?"}},
	}}
	loop := newTestLoop(client, st)
	sc := NewSessionContext("user-1", "conv-1", "Jess", store.ModeEvening)

	var captured capturedEvents
	out, err := loop.Respond(context.Background(), sc, nil, "that's everything, save it", captured.events())
	require.NoError(t, err)

	assert.Equal(t, []store.Mood{store.MoodGood}, captured.moods)
	assert.Equal(t, "Saved! Anything else on your mind?", out.Text)
	assert.True(t, sc.EntryCreated())
}

func TestRespondHistoryIncluded(t *testing.T) {
	st := newFakeStore()
	client := &fakeLLM{responses: []scriptedResponse{
		{resp: &llm.Response{Text: "Right, you mentioned the deadline."}},
	}}
	loop := newTestLoop(client, st)
	sc := NewSessionContext("user-1", "conv-1", "Jess", store.ModeCheckIn)

	history := []types.Turn{
		{Role: types.RoleUser, Text: "Work was stressful, big deadline"},
		{Role: types.RoleAssistant, Text: "What's the deadline for?"},
	}
	_, err := loop.Respond(context.Background(), sc, history, "The quarterly launch", Events{})
	require.NoError(t, err)

	msgs := client.requests[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "Work was stressful, big deadline", msgs[1].Content)
	assert.Equal(t, "What's the deadline for?", msgs[2].Content)
	assert.Equal(t, "The quarterly launch", msgs[3].Content)
}
