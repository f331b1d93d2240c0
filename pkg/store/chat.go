package store

import (
	"context"
	"fmt"

	"github.com/ferraz/docqa/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatMemory stores ordered conversation turns per session. Turn
// numbers are derived from the table inside the appending transaction,
// never from process memory, so they stay correct across workers.
type ChatMemory struct {
	pool *pgxpool.Pool
}

// AppendTurn assigns the next turn number for the session and persists
// the row, returning the assigned number. A per-session advisory lock
// serializes concurrent appends to the same session; different
// sessions never contend.
func (m *ChatMemory) AppendTurn(ctx context.Context, sessionID, role, content string) (int, error) {
	if role != models.RoleUser && role != models.RoleAssistant {
		return 0, fmt.Errorf("invalid role %q", role)
	}
	if sessionID == "" {
		return 0, fmt.Errorf("session id is required")
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, sessionID,
	); err != nil {
		return 0, fmt.Errorf("failed to lock session: %w", err)
	}

	var turn int
	err = tx.QueryRow(ctx,
		`INSERT INTO chat_history (session_id, turn, role, content)
		 SELECT $1, COALESCE(MAX(turn), 0) + 1, $2, $3
		 FROM chat_history WHERE session_id = $1
		 RETURNING turn`,
		sessionID, role, content,
	).Scan(&turn)
	if err != nil {
		return 0, fmt.Errorf("failed to append turn: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return turn, nil
}

// ReadHistory returns the most recent limit turns for the session in
// ascending turn order.
func (m *ChatMemory) ReadHistory(ctx context.Context, sessionID string, limit int) ([]models.ChatTurn, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := m.pool.Query(ctx,
		`SELECT session_id, turn, role, content, created_at FROM (
			SELECT session_id, turn, role, content, created_at
			FROM chat_history
			WHERE session_id = $1
			ORDER BY turn DESC
			LIMIT $2
		 ) recent
		 ORDER BY turn ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer rows.Close()

	var turns []models.ChatTurn
	for rows.Next() {
		var t models.ChatTurn
		if err := rows.Scan(&t.SessionID, &t.Turn, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

// ListSessions returns distinct sessions with their turn counts, most
// recently active first.
func (m *ChatMemory) ListSessions(ctx context.Context) ([]models.SessionInfo, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT session_id, COUNT(*), MAX(created_at)
		 FROM chat_history
		 GROUP BY session_id
		 ORDER BY MAX(created_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.SessionInfo
	for rows.Next() {
		var info models.SessionInfo
		if err := rows.Scan(&info.SessionID, &info.TurnCount, &info.LastTurn); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sessions = append(sessions, info)
	}

	return sessions, rows.Err()
}
