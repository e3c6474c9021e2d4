// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"haptic-service/internal/model"
)

// memoryRepository keeps sessions in process when the database is disabled.
// It holds at most limit sessions and evicts the oldest finished ones.
type memoryRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*model.HapticSession
	limit    int
	logger   *zap.Logger
}

// NewMemoryRepository creates an in-process session repository
func NewMemoryRepository(limit int, logger *zap.Logger) SessionRepository {
	if limit <= 0 {
		limit = 256
	}
	return &memoryRepository{
		sessions: make(map[uuid.UUID]*model.HapticSession),
		limit:    limit,
		logger:   logger,
	}
}

// Create stores a copy of the session
func (r *memoryRepository) Create(ctx context.Context, session *model.HapticSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("session already exists: %s", session.ID)
	}

	stored := *session
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.sessions[session.ID] = &stored
	r.evict()
	return nil
}

// GetByID returns a copy of the stored session
func (r *memoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.HapticSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	out := *s
	return &out, nil
}

// Finish replaces the stored counters
func (r *memoryRepository) Finish(ctx context.Context, session *model.HapticSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[session.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID)
	}

	createdAt := stored.CreatedAt
	*stored = *session
	stored.CreatedAt = createdAt
	return nil
}

// List returns one page of sessions, newest first
func (r *memoryRepository) List(ctx context.Context, filter *SessionFilter) ([]*model.HapticSession, int, error) {
	filter.Normalize()

	r.mu.RLock()
	matched := make([]*model.HapticSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		if filter.matches(s) {
			out := *s
			matched = append(matched, &out)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := len(matched)
	from := (filter.Page - 1) * filter.PerPage
	if from >= total {
		return []*model.HapticSession{}, total, nil
	}
	to := from + filter.PerPage
	if to > total {
		to = total
	}
	return matched[from:to], total, nil
}

// DeleteOlderThan removes finished sessions that ended before olderThan
func (r *memoryRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, s := range r.sessions {
		if s.EndedAt != nil && s.EndedAt.Before(olderThan) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// evict drops the oldest finished sessions above the limit. Caller holds mu.
func (r *memoryRepository) evict() {
	if len(r.sessions) <= r.limit {
		return
	}

	finished := make([]*model.HapticSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.EndedAt != nil {
			finished = append(finished, s)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].StartedAt.Before(finished[j].StartedAt)
	})

	for _, s := range finished {
		if len(r.sessions) <= r.limit {
			break
		}
		delete(r.sessions, s.ID)
	}

	r.logger.Debug("Session history trimmed", zap.Int("remaining", len(r.sessions)))
}
