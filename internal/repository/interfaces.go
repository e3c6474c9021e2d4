// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"haptic-service/internal/model"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when no session has the requested id
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository defines haptic session data access operations
type SessionRepository interface {
	Create(ctx context.Context, session *model.HapticSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.HapticSession, error)
	Finish(ctx context.Context, session *model.HapticSession) error

	List(ctx context.Context, filter *SessionFilter) ([]*model.HapticSession, int, error)

	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

// SessionFilter represents session listing filters
type SessionFilter struct {
	Status    *model.SessionStatus `json:"status,omitempty"`
	StartDate *time.Time           `json:"start_date,omitempty"`
	EndDate   *time.Time           `json:"end_date,omitempty"`
	Page      int                  `json:"page"`
	PerPage   int                  `json:"per_page"`
}

// Normalize clamps paging to sane bounds
func (f *SessionFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
}

func (f *SessionFilter) matches(s *model.HapticSession) bool {
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.StartDate != nil && s.StartedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && s.StartedAt.After(*f.EndDate) {
		return false
	}
	return true
}
