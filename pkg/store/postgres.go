package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/journalbuddy/backend/pkg/core"
)

// PostgresStore implements Store over a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to Postgres and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool exposes the underlying pool, used for migrations.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// AuthenticateToken resolves an API token to its user and stamps the
// token's last use.
func (s *PostgresStore) AuthenticateToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx,
		`UPDATE api_tokens SET last_used_at = now() WHERE token = $1 RETURNING user_id`,
		token,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", core.NewAuthenticationError("unknown API token")
	}
	if err != nil {
		return "", fmt.Errorf("authenticate token: %w", err)
	}
	return userID, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, timezone, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Timezone, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.NewNotFoundError(fmt.Sprintf("user %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, userID string, mode JournalMode) (*Conversation, error) {
	conv := &Conversation{
		ID:        NewID(),
		UserID:    userID,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, user_id, mode, started_at) VALUES ($1, $2, $3, $4)`,
		conv.ID, conv.UserID, conv.Mode, conv.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// SaveConversationSummary writes the wrap-up fields onto the
// conversation row. Called by the summary tool or the close-time
// summarizer, whichever runs first wins by overwrite.
func (s *PostgresStore) SaveConversationSummary(ctx context.Context, id, summary string, keyTopics []string, goalUpdates string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET summary = $2, key_topics = $3, goal_updates = $4 WHERE id = $1`,
		id, summary, keyTopics, goalUpdates,
	)
	if err != nil {
		return fmt.Errorf("save conversation summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFoundError(fmt.Sprintf("conversation %s not found", id))
	}
	return nil
}

func (s *PostgresStore) EndConversation(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET ended_at = now() WHERE id = $1 AND ended_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFoundError(fmt.Sprintf("open conversation %s not found", id))
	}
	return nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, conversationID, role, text string) (*Turn, error) {
	turn := &Turn{
		ID:             NewID(),
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO turns (id, conversation_id, role, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		turn.ID, turn.ConversationID, turn.Role, turn.Text, turn.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("append turn: %w", err)
	}
	return turn, nil
}

func (s *PostgresStore) ListTurns(ctx context.Context, conversationID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, text, created_at
		 FROM turns WHERE conversation_id = $1 ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Text, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *PostgresStore) CreateEntry(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO entries
		 (id, user_id, conversation_id, title, content, mood, mood_trend, key_themes, goal_progress, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.ConversationID, entry.Title, entry.Content,
		entry.Mood, entry.MoodTrend, entry.KeyThemes, entry.GoalProgress, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentEntries(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, conversation_id, title, content, mood, mood_trend, key_themes, goal_progress, created_at
		 FROM entries WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ConversationID, &e.Title, &e.Content,
			&e.Mood, &e.MoodTrend, &e.KeyThemes, &e.GoalProgress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CreateGoal(ctx context.Context, userID, description string) (*Goal, error) {
	now := time.Now().UTC()
	goal := &Goal{
		ID:          NewID(),
		UserID:      userID,
		Description: description,
		Status:      GoalActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO goals (id, user_id, description, status, progress, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $6)`,
		goal.ID, goal.UserID, goal.Description, goal.Status, goal.CreatedAt, goal.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return goal, nil
}

func (s *PostgresStore) ActiveGoals(ctx context.Context, userID string) ([]Goal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, description, status, progress, created_at, updated_at
		 FROM goals WHERE user_id = $1 AND status = $2 ORDER BY created_at`,
		userID, GoalActive,
	)
	if err != nil {
		return nil, fmt.Errorf("active goals: %w", err)
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.Description, &g.Status, &g.Progress, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (s *PostgresStore) UpdateGoalStatus(ctx context.Context, goalID string, status GoalStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE goals SET status = $2, updated_at = now() WHERE id = $1`,
		goalID, status,
	)
	if err != nil {
		return fmt.Errorf("update goal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFoundError(fmt.Sprintf("goal %s not found", goalID))
	}
	return nil
}

// UpdateGoalProgress sets a goal's progress and appends an audit row
// recording the before and after values, in one transaction.
func (s *PostgresStore) UpdateGoalProgress(ctx context.Context, goalID, conversationID string, progress int, note string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous int
	err = tx.QueryRow(ctx,
		`SELECT progress FROM goals WHERE id = $1 FOR UPDATE`, goalID,
	).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NewNotFoundError(fmt.Sprintf("goal %s not found", goalID))
	}
	if err != nil {
		return fmt.Errorf("read goal progress: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE goals SET progress = $2, updated_at = now() WHERE id = $1`,
		goalID, progress,
	)
	if err != nil {
		return fmt.Errorf("update goal progress: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO goal_progress_updates
		 (id, goal_id, conversation_id, previous_progress, progress, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		NewID(), goalID, conversationID, previous, progress, note, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert goal progress audit: %w", err)
	}
	return tx.Commit(ctx)
}

// ListGoalProgress returns a goal's progress history, oldest first.
func (s *PostgresStore) ListGoalProgress(ctx context.Context, goalID string) ([]GoalProgressUpdate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, goal_id, COALESCE(conversation_id, ''), previous_progress, progress, note, created_at
		 FROM goal_progress_updates
		 WHERE goal_id = $1 ORDER BY created_at`,
		goalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list goal progress: %w", err)
	}
	defer rows.Close()

	var updates []GoalProgressUpdate
	for rows.Next() {
		var u GoalProgressUpdate
		if err := rows.Scan(&u.ID, &u.GoalID, &u.ConversationID, &u.PreviousProgress, &u.Progress, &u.Note, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan goal progress: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func (s *PostgresStore) RecordReward(ctx context.Context, userID, kind string, points int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rewards (id, user_id, kind, points, created_at) VALUES ($1, $2, $3, $4, $5)`,
		NewID(), userID, kind, points, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record reward: %w", err)
	}
	return nil
}
