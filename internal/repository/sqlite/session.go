package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/code-debugger/internal/apperror"
	"github.com/sakif/code-debugger/internal/model"
	"github.com/sakif/code-debugger/internal/repository"
)

// Compile-time check that *DB implements repository.SessionRepository.
var _ repository.SessionRepository = (*DB)(nil)

// Create inserts a new session.
//
// The ID is generated here (an xid: 20 URL-safe chars, sortable by creation
// time), and StartedAt is set if the caller left it zero. After Create the
// caller's struct carries both.
func (db *DB) Create(ctx context.Context, session *model.Session) error {
	session.ID = xid.New().String()
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	// Stored times are compared as text, so they must share one zone.
	session.StartedAt = session.StartedAt.UTC()
	session.Version = 0

	lists, err := encodeLists(session)
	if err != nil {
		return fmt.Errorf("sqlite: creating session: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, language, score, questions_attempted, questions_solved,
		                       total, queue, solved, unsolved, started_at, ended_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.Language,
		session.Score,
		session.QuestionsAttempted,
		session.QuestionsSolved,
		session.Total,
		lists.queue,
		lists.solved,
		lists.unsolved,
		session.StartedAt,
		nullTime(session.EndedAt),
		session.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session: %w", err)
	}
	return nil
}

// GetByID retrieves a session. A missing session is an apperror.NotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var (
		s                       model.Session
		queue, solved, unsolved string
		endedAt                 sql.NullTime
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, language, score, questions_attempted, questions_solved, total,
		        queue, solved, unsolved, started_at, ended_at, version
		 FROM sessions
		 WHERE id = ?`,
		id,
	).Scan(
		&s.ID,
		&s.Language,
		&s.Score,
		&s.QuestionsAttempted,
		&s.QuestionsSolved,
		&s.Total,
		&queue,
		&solved,
		&unsolved,
		&s.StartedAt,
		&endedAt,
		&s.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session %s: %w", id, err)
	}

	if err := decodeLists(&s, queue, solved, unsolved); err != nil {
		return nil, fmt.Errorf("sqlite: decoding session %s: %w", id, err)
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return &s, nil
}

// Update writes every mutable field of session back, guarded by Version.
//
// The WHERE clause matches the version the caller read. If someone else
// updated the row in between, nothing matches and the write is rejected
// with a Conflict; on success session.Version is incremented in place.
func (db *DB) Update(ctx context.Context, session *model.Session) error {
	lists, err := encodeLists(session)
	if err != nil {
		return fmt.Errorf("sqlite: updating session %s: %w", session.ID, err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE sessions
		 SET score = ?, questions_attempted = ?, questions_solved = ?,
		     queue = ?, solved = ?, unsolved = ?, ended_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		session.Score,
		session.QuestionsAttempted,
		session.QuestionsSolved,
		lists.queue,
		lists.solved,
		lists.unsolved,
		nullTime(session.EndedAt),
		session.ID,
		session.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating session %s: %w", session.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the row is gone or the version moved on. Tell them apart so
		// the caller can return 404 vs 409.
		if _, err := db.GetByID(ctx, session.ID); err != nil {
			return err
		}
		return apperror.Conflict("session", session.ID)
	}

	session.Version++
	return nil
}

// DeleteStartedBefore removes sessions started before cutoff. Their tokens
// have expired, so nobody can reach them any more. The started_at index
// keeps this a range scan.
func (db *DB) DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting sessions before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

type encodedLists struct {
	queue, solved, unsolved string
}

func encodeLists(s *model.Session) (encodedLists, error) {
	var out encodedLists
	for _, f := range []struct {
		dst *string
		src []string
	}{
		{&out.queue, s.Queue},
		{&out.solved, s.Solved},
		{&out.unsolved, s.Unsolved},
	} {
		src := f.src
		if src == nil {
			src = []string{} // store [] rather than null
		}
		b, err := json.Marshal(src)
		if err != nil {
			return encodedLists{}, err
		}
		*f.dst = string(b)
	}
	return out, nil
}

func decodeLists(s *model.Session, queue, solved, unsolved string) error {
	if err := json.Unmarshal([]byte(queue), &s.Queue); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := json.Unmarshal([]byte(solved), &s.Solved); err != nil {
		return fmt.Errorf("solved: %w", err)
	}
	if err := json.Unmarshal([]byte(unsolved), &s.Unsolved); err != nil {
		return fmt.Errorf("unsolved: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
