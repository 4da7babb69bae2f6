// internal/results/store.go
//
// Persistence for finished sessions.
// Every game over produces one row in `results`, owned either by a user
// account or by an anonymous cookie ID. Inserting a user's result also
// bumps the per-user counters on `users` in the same transaction.

package results

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Result is one finished session.
type Result struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId,omitempty"`
	AnonymousID string    `json:"-"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
	Rounds      int       `json:"rounds"`
	WordsTyped  int       `json:"wordsTyped"`
	Bites       int       `json:"bites"`
}

// LBRow is a leaderboard entry.
type LBRow struct {
	Player     string    `json:"player"`
	WordsTyped int       `json:"wordsTyped"`
	Rounds     int       `json:"rounds"`
	EndedAt    time.Time `json:"endedAt"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Insert stores r, assigning an ID when empty, and returns the stored row.
func (s *Store) Insert(ctx context.Context, r Result) (Result, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return r, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO results (id, user_id, anonymous_id, started_at, ended_at, rounds, words_typed, bites)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, nullable(r.UserID), nullable(r.AnonymousID),
		formatTime(r.StartedAt), formatTime(r.EndedAt), r.Rounds, r.WordsTyped, r.Bites,
	)
	if err != nil {
		return r, err
	}
	if r.UserID != "" {
		if err := bumpUser(ctx, tx, r.UserID, 1, r.WordsTyped, r.WordsTyped); err != nil {
			return r, err
		}
	}
	return r, tx.Commit()
}

// Leaderboard returns the best results: most words typed, then fewest
// rounds, then earliest finish.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LBRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(u.username, 'guest'), r.words_typed, r.rounds, r.ended_at
		FROM results r
		LEFT JOIN users u ON u.id = r.user_id
		ORDER BY r.words_typed DESC, r.rounds ASC, r.ended_at ASC
		LIMIT ?`, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LBRow{}
	for rows.Next() {
		var r LBRow
		var ended string
		if err := rows.Scan(&r.Player, &r.WordsTyped, &r.Rounds, &ended); err != nil {
			return nil, err
		}
		r.EndedAt = parseTime(ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ForUser returns the most recent results of a user.
func (s *Store) ForUser(ctx context.Context, userID string, limit int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, ended_at, rounds, words_typed, bites
		FROM results
		WHERE user_id = ?
		ORDER BY ended_at DESC
		LIMIT ?`, userID, clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		r := Result{UserID: userID}
		var started, ended string
		if err := rows.Scan(&r.ID, &started, &ended, &r.Rounds, &r.WordsTyped, &r.Bites); err != nil {
			return nil, err
		}
		r.StartedAt, r.EndedAt = parseTime(started), parseTime(ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimAnonymous moves guest results to a user account and folds them into
// the user's counters. Returns the number of results claimed.
func (s *Store) ClaimAnonymous(ctx context.Context, anonID, userID string) (int, error) {
	if anonID == "" || userID == "" {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var n, total, best int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(1), COALESCE(SUM(words_typed), 0), COALESCE(MAX(words_typed), 0)
		FROM results WHERE anonymous_id = ? AND user_id IS NULL`, anonID,
	).Scan(&n, &total, &best); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE results SET user_id = ?, anonymous_id = NULL
		WHERE anonymous_id = ? AND user_id IS NULL`, userID, anonID,
	); err != nil {
		return 0, err
	}
	if err := bumpUser(ctx, tx, userID, n, total, best); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// bumpUser adds to sessions_played and total_words_typed and raises
// best_words_typed (within tx).
func bumpUser(ctx context.Context, tx *sql.Tx, userID string, sessions, words, best int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET sessions_played   = sessions_played + ?,
		    total_words_typed = total_words_typed + ?,
		    best_words_typed  = MAX(best_words_typed, ?)
		WHERE id = ?`, sessions, words, best, userID,
	)
	return err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// formatTime stores timestamps as RFC3339 UTC so they sort lexically.
func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
