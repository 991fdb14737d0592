// Package store defines persistence for users, conversations, journal
// entries, and goals.
package store

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Mood is the self-reported mood attached to a journal entry.
type Mood string

const (
	MoodGreat    Mood = "great"
	MoodGood     Mood = "good"
	MoodOkay     Mood = "okay"
	MoodBad      Mood = "bad"
	MoodTerrible Mood = "terrible"
)

// ParseMood normalizes a mood string. Unknown values fall back to
// MoodOkay so a misbehaving model never blocks entry creation.
func ParseMood(s string) Mood {
	switch Mood(s) {
	case MoodGreat, MoodGood, MoodOkay, MoodBad, MoodTerrible:
		return Mood(s)
	default:
		return MoodOkay
	}
}

// JournalMode distinguishes the conversation framings: a free-form goal
// check-in or a structured morning/evening journal.
type JournalMode string

const (
	ModeCheckIn JournalMode = "checkin"
	ModeMorning JournalMode = "morning"
	ModeEvening JournalMode = "evening"
)

// ParseJournalMode normalizes a mode string, defaulting to check-in.
func ParseJournalMode(s string) JournalMode {
	switch JournalMode(s) {
	case ModeMorning, ModeEvening:
		return JournalMode(s)
	default:
		return ModeCheckIn
	}
}

// IsJournal reports whether the mode produces a journal entry.
func (m JournalMode) IsJournal() bool {
	return m == ModeMorning || m == ModeEvening
}

// GoalStatus tracks a goal's lifecycle.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalAbandoned GoalStatus = "abandoned"
)

// User is an account that owns journal data.
type User struct {
	ID        string
	Name      string
	Timezone  string
	CreatedAt time.Time
}

// Conversation is one voice journaling session.
type Conversation struct {
	ID          string
	UserID      string
	Mode        JournalMode
	StartedAt   time.Time
	EndedAt     *time.Time
	Summary     string
	KeyTopics   []string
	GoalUpdates string
}

// Turn is a single exchange half within a conversation.
type Turn struct {
	ID             string
	ConversationID string
	Role           string // "user" or "assistant"
	Text           string
	CreatedAt      time.Time
}

// Entry is a finished journal entry, usually distilled from a
// conversation when it closes.
type Entry struct {
	ID             string
	UserID         string
	ConversationID string
	Title          string
	Content        string
	Mood           Mood
	MoodTrend      string
	KeyThemes      []string
	GoalProgress   string
	CreatedAt      time.Time
}

// Goal is something the user is working toward across sessions.
// Progress runs 0 to 100.
type Goal struct {
	ID          string
	UserID      string
	Description string
	Status      GoalStatus
	Progress    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GoalProgressUpdate is an audit record of a progress change noted
// during a conversation. Each record keeps both sides of the change so
// the goal's history can be replayed.
type GoalProgressUpdate struct {
	ID               string
	GoalID           string
	ConversationID   string
	PreviousProgress int
	Progress         int
	Note             string
	CreatedAt        time.Time
}

// Reward records an engagement reward granted for journaling activity.
type Reward struct {
	ID        string
	UserID    string
	Kind      string
	Points    int
	CreatedAt time.Time
}

// Store is the persistence surface the conversation backend needs.
type Store interface {
	// AuthenticateToken resolves an API token to a user ID.
	AuthenticateToken(ctx context.Context, token string) (string, error)

	GetUser(ctx context.Context, id string) (*User, error)

	CreateConversation(ctx context.Context, userID string, mode JournalMode) (*Conversation, error)
	EndConversation(ctx context.Context, id string) error
	SaveConversationSummary(ctx context.Context, id, summary string, keyTopics []string, goalUpdates string) error
	AppendTurn(ctx context.Context, conversationID, role, text string) (*Turn, error)
	ListTurns(ctx context.Context, conversationID string) ([]Turn, error)

	CreateEntry(ctx context.Context, entry *Entry) error
	RecentEntries(ctx context.Context, userID string, limit int) ([]Entry, error)

	CreateGoal(ctx context.Context, userID, description string) (*Goal, error)
	ActiveGoals(ctx context.Context, userID string) ([]Goal, error)
	UpdateGoalStatus(ctx context.Context, goalID string, status GoalStatus) error

	// UpdateGoalProgress sets a goal's progress and appends an audit
	// row carrying the prior value, in the same transaction.
	UpdateGoalProgress(ctx context.Context, goalID, conversationID string, progress int, note string) error

	// RecordReward grants engagement points for a journaling action.
	RecordReward(ctx context.Context, userID, kind string, points int) error
}

// NewID returns a lexicographically sortable unique identifier.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
