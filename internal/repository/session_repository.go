// internal/repository/session_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"haptic-service/internal/database"
	"haptic-service/internal/model"
)

const sessionColumns = `id, tool_port, tool_identity, tool_id, ibox_linked, status,
	started_at, ended_at, poll_cycles, force_cycles, copy_cycles,
	avg_frequency_hz, tool_failures, ibox_failures, created_at`

// sessionRepository implements SessionRepository on Postgres
type sessionRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB, logger *zap.Logger) SessionRepository {
	return &sessionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a running session
func (r *sessionRepository) Create(ctx context.Context, session *model.HapticSession) error {
	query := `
		INSERT INTO haptic_sessions (
			id, tool_port, tool_identity, tool_id, ibox_linked, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.ToolPort, session.ToolIdentity, session.ToolID,
		session.IBoxLinked, session.Status, session.StartedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create session", zap.Error(err))
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID
func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.HapticSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM haptic_sessions WHERE id = $1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// Finish stores the final counters of a session
func (r *sessionRepository) Finish(ctx context.Context, session *model.HapticSession) error {
	query := `
		UPDATE haptic_sessions SET
			status = $2, ended_at = $3, tool_id = $4, poll_cycles = $5,
			force_cycles = $6, copy_cycles = $7, avg_frequency_hz = $8,
			tool_failures = $9, ibox_failures = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		session.ID, session.Status, session.EndedAt, session.ToolID,
		session.PollCycles, session.ForceCycles, session.CopyCycles,
		session.AvgFrequencyHz, session.ToolFailures, session.IBoxFailures,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID)
	}

	return nil
}

// List returns one page of sessions, newest first, and the total count
func (r *sessionRepository) List(ctx context.Context, filter *SessionFilter) ([]*model.HapticSession, int, error) {
	filter.Normalize()

	conditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("started_at >= $%d", argIndex))
		args = append(args, *filter.StartDate)
		argIndex++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("started_at <= $%d", argIndex))
		args = append(args, *filter.EndDate)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM haptic_sessions " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM haptic_sessions %s ORDER BY started_at DESC LIMIT $%d OFFSET $%d`,
		sessionColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.HapticSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			r.logger.Error("Failed to scan session", zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, total, nil
}

// DeleteOlderThan removes finished sessions that ended before olderThan
func (r *sessionRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM haptic_sessions WHERE ended_at IS NOT NULL AND ended_at < $1`

	result, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old sessions: %w", err)
	}

	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*model.HapticSession, error) {
	s := &model.HapticSession{}
	var endedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.ToolPort, &s.ToolIdentity, &s.ToolID, &s.IBoxLinked, &s.Status,
		&s.StartedAt, &endedAt, &s.PollCycles, &s.ForceCycles, &s.CopyCycles,
		&s.AvgFrequencyHz, &s.ToolFailures, &s.IBoxFailures, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return s, nil
}
