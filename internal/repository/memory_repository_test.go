package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"haptic-service/internal/model"
)

func newSession(started time.Time, ended *time.Time) *model.HapticSession {
	status := model.SessionStatusRunning
	if ended != nil {
		status = model.SessionStatusCompleted
	}
	return &model.HapticSession{
		ID:        uuid.New(),
		ToolPort:  "COM3",
		Status:    status,
		StartedAt: started,
		EndedAt:   ended,
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	Convey("Given an in-process session repository", t, func() {
		repo := NewMemoryRepository(3, zap.NewNop())

		Convey("Created sessions can be read back and finished", func() {
			s := newSession(base, nil)
			So(repo.Create(ctx, s), ShouldBeNil)
			So(repo.Create(ctx, s), ShouldNotBeNil)

			got, err := repo.GetByID(ctx, s.ID)
			So(err, ShouldBeNil)
			So(got.Status, ShouldEqual, model.SessionStatusRunning)
			So(got.CreatedAt.IsZero(), ShouldBeFalse)

			end := base.Add(time.Minute)
			s.Status = model.SessionStatusCompleted
			s.EndedAt = &end
			s.PollCycles = 60000
			So(repo.Finish(ctx, s), ShouldBeNil)

			got, err = repo.GetByID(ctx, s.ID)
			So(err, ShouldBeNil)
			So(got.PollCycles, ShouldEqual, 60000)
			So(got.Duration(), ShouldEqual, time.Minute)
		})

		Convey("Unknown ids report ErrSessionNotFound", func() {
			_, err := repo.GetByID(ctx, uuid.New())
			So(errors.Is(err, ErrSessionNotFound), ShouldBeTrue)
			err = repo.Finish(ctx, newSession(base, nil))
			So(errors.Is(err, ErrSessionNotFound), ShouldBeTrue)
		})

		Convey("Listing is newest first and paged", func() {
			for i := 0; i < 3; i++ {
				end := base.Add(time.Duration(i)*time.Hour + time.Minute)
				So(repo.Create(ctx, newSession(base.Add(time.Duration(i)*time.Hour), &end)), ShouldBeNil)
			}

			page, total, err := repo.List(ctx, &SessionFilter{Page: 1, PerPage: 2})
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 3)
			So(len(page), ShouldEqual, 2)
			So(page[0].StartedAt.Equal(base.Add(2*time.Hour)), ShouldBeTrue)

			page, _, err = repo.List(ctx, &SessionFilter{Page: 2, PerPage: 2})
			So(err, ShouldBeNil)
			So(len(page), ShouldEqual, 1)
			So(page[0].StartedAt.Equal(base), ShouldBeTrue)

			page, _, err = repo.List(ctx, &SessionFilter{Page: 5, PerPage: 2})
			So(err, ShouldBeNil)
			So(page, ShouldBeEmpty)
		})

		Convey("Status filters apply", func() {
			end := base.Add(time.Minute)
			So(repo.Create(ctx, newSession(base, &end)), ShouldBeNil)
			So(repo.Create(ctx, newSession(base.Add(time.Hour), nil)), ShouldBeNil)

			running := model.SessionStatusRunning
			page, total, err := repo.List(ctx, &SessionFilter{Status: &running})
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 1)
			So(page[0].IsActive(), ShouldBeTrue)
		})

		Convey("The oldest finished sessions are evicted above the limit", func() {
			first := newSession(base, nil)
			endFirst := base.Add(time.Minute)
			first.EndedAt = &endFirst
			So(repo.Create(ctx, first), ShouldBeNil)
			for i := 1; i <= 3; i++ {
				So(repo.Create(ctx, newSession(base.Add(time.Duration(i)*time.Hour), nil)), ShouldBeNil)
			}

			_, err := repo.GetByID(ctx, first.ID)
			So(errors.Is(err, ErrSessionNotFound), ShouldBeTrue)
			_, total, _ := repo.List(ctx, &SessionFilter{})
			So(total, ShouldEqual, 3)
		})

		Convey("Old finished sessions are purged", func() {
			end := base.Add(time.Minute)
			So(repo.Create(ctx, newSession(base, &end)), ShouldBeNil)
			So(repo.Create(ctx, newSession(base, nil)), ShouldBeNil)

			removed, err := repo.DeleteOlderThan(ctx, base.Add(time.Hour))
			So(err, ShouldBeNil)
			So(removed, ShouldEqual, 1)
		})
	})
}
