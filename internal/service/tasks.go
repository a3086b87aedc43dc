package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"
)

var ErrTaskNotFound = fmt.Errorf("task %w", domain.ErrNotFound)

// TaskService moves a user's task record through pending, started and completed.
type TaskService struct {
	store  repository.Store
	points *PointsEngine
	audit  *AuditService
	log    *slog.Logger
	now    func() time.Time
}

func NewTaskService(store repository.Store, points *PointsEngine, audit *AuditService, log *slog.Logger) *TaskService {
	return &TaskService{store: store, points: points, audit: audit, log: log, now: time.Now}
}

// ListAvailable returns active tasks the user has not completed.
func (s *TaskService) ListAvailable(ctx context.Context, userID int64) ([]domain.AvailableTask, error) {
	tasks, err := s.store.ListAvailableTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.AvailableTask{}
	}
	return tasks, nil
}

func activeTask(ctx context.Context, q repository.TaskQueries, taskID int64) (*domain.Task, error) {
	t, err := q.GetTask(ctx, taskID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// Start moves the task to started. Starting a started task returns the
// existing record; starting a completed one fails with ErrAlreadyCompleted.
func (s *TaskService) Start(ctx context.Context, userID, taskID int64) (*domain.TaskCompletion, error) {
	var c *domain.TaskCompletion
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		if _, err := activeTask(ctx, q, taskID); err != nil {
			return err
		}

		existing, err := q.LockTaskCompletion(ctx, userID, taskID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if existing != nil {
			switch existing.Status {
			case domain.TaskStatusCompleted:
				return domain.ErrAlreadyCompleted
			case domain.TaskStatusStarted:
				c = existing
				return nil
			}
		}

		c, err = q.StartTaskCompletion(ctx, userID, taskID, s.now())
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, q, userID, domain.AuditActionTaskStarted, domain.AuditCategoryTask, map[string]any{"task_id": taskID})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Complete moves a started task to completed and awards its points times the
// user's pass power, snapshotting the award on the record.
func (s *TaskService) Complete(ctx context.Context, userID, taskID int64) (*domain.TaskCompletion, error) {
	var (
		c     *domain.TaskCompletion
		award Award
	)
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		task, err := activeTask(ctx, q, taskID)
		if err != nil {
			return err
		}

		c, err = q.LockTaskCompletion(ctx, userID, taskID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotStarted
		}
		if err != nil {
			return err
		}
		switch c.Status {
		case domain.TaskStatusCompleted:
			return domain.ErrAlreadyCompleted
		case domain.TaskStatusStarted:
		default:
			return domain.ErrNotStarted
		}

		if task.TaskType == domain.TaskTypeOnSite && task.Title == domain.ProfileTaskTitle {
			p, err := q.GetProfile(ctx, userID)
			if err != nil {
				return err
			}
			if !p.IsComplete() {
				return domain.ErrProfileIncomplete
			}
		}

		award, err = s.points.Award(ctx, q, userID, task.Points, RuleTask)
		if err != nil {
			return err
		}

		now := s.now()
		if err := q.FinishTaskCompletion(ctx, userID, taskID, award.Points, now); err != nil {
			return err
		}
		c.Status = domain.TaskStatusCompleted
		c.CompletedAt = &now
		c.AwardedPoints = award.Points
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.points.Publish(award)
	s.log.Info("task completed", "user_id", userID, "task_id", taskID, "points", award.Points)
	return c, nil
}

// CompleteProfileTask starts and completes the profile task for a user whose
// profile just became complete. It is a no-op when the task does not exist
// or is already done.
func (s *TaskService) CompleteProfileTask(ctx context.Context, userID int64) error {
	task, err := s.store.GetTaskByTitle(ctx, domain.ProfileTaskTitle)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := s.Start(ctx, userID, task.ID); err != nil {
		if errors.Is(err, domain.ErrAlreadyCompleted) || errors.Is(err, ErrTaskNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.Complete(ctx, userID, task.ID); err != nil && !errors.Is(err, domain.ErrAlreadyCompleted) {
		return err
	}
	return nil
}
