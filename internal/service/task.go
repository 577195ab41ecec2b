package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/deskkit/internal/apperror"
	"github.com/sakif/deskkit/internal/model"
	"github.com/sakif/deskkit/internal/repository"
	"github.com/sakif/deskkit/internal/store"
)

// TaskSchema stores tasks under the "tasks" key. There is no seed: a fresh
// list is empty.
var TaskSchema = store.Schema[model.Task]{
	Key:  repository.KeyTasks,
	Name: "task",
	ID:   func(t model.Task) int64 { return t.ID },
}

// TaskInput holds the user-editable fields of a task.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"` // YYYY-MM-DD or empty
}

// TaskService handles business logic for the to-do list.
type TaskService struct {
	tasks  *store.Collection[model.Task]
	now    func() time.Time
	logger *slog.Logger
}

// NewTaskService creates a TaskService over an opened task collection.
func NewTaskService(tasks *store.Collection[model.Task], logger *slog.Logger, opts ...Option) *TaskService {
	o := buildOptions(opts)
	return &TaskService{
		tasks:  tasks,
		now:    o.now,
		logger: logger,
	}
}

// ===== READS =====

// List returns every task in creation order.
func (s *TaskService) List() []model.Task {
	return s.tasks.All()
}

// Pending returns the tasks not yet completed.
func (s *TaskService) Pending() []model.Task {
	return s.tasks.Filter(func(t model.Task) bool { return !t.Completed })
}

// Completed returns the completed tasks.
func (s *TaskService) Completed() []model.Task {
	return s.tasks.Filter(func(t model.Task) bool { return t.Completed })
}

// Find returns the task with the given id, or apperror.ErrNotFound.
func (s *TaskService) Find(id int64) (model.Task, error) {
	t, ok := s.tasks.Find(id)
	if !ok {
		return model.Task{}, apperror.NotFound("task", id)
	}
	return t, nil
}

// Stats counts the tasks by state.
func (s *TaskService) Stats() model.TaskStats {
	var stats model.TaskStats
	for _, t := range s.tasks.All() {
		stats.Total++
		if t.Completed {
			stats.Completed++
		} else {
			stats.Pending++
		}
	}
	return stats
}

// ===== MUTATIONS =====

// Add validates the input and appends a new pending task.
func (s *TaskService) Add(ctx context.Context, in TaskInput) (model.Task, error) {
	in, err := validateTaskInput(in)
	if err != nil {
		return model.Task{}, err
	}

	task, err := s.tasks.Add(ctx, func(_ []model.Task, id int64) (model.Task, error) {
		return model.Task{
			ID:          id,
			Title:       in.Title,
			Description: in.Description,
			DueDate:     in.DueDate,
			Completed:   false,
			CreatedAt:   s.now().Format(taskStampLayout),
		}, nil
	})
	if err != nil {
		s.logger.Error("failed to add task",
			slog.String("title", in.Title),
			slog.String("error", err.Error()),
		)
		return model.Task{}, fmt.Errorf("adding task: %w", err)
	}

	s.logger.Info("task created",
		slog.Int64("id", task.ID),
		slog.String("title", task.Title),
	)

	return task, nil
}

// Update replaces the editable fields of a task after re-validating them.
// Completion state and timestamps are left alone.
func (s *TaskService) Update(ctx context.Context, id int64, in TaskInput) (model.Task, error) {
	in, err := validateTaskInput(in)
	if err != nil {
		return model.Task{}, err
	}

	task, err := s.tasks.Update(ctx, id, func(t *model.Task) error {
		t.Title = in.Title
		t.Description = in.Description
		t.DueDate = in.DueDate
		return nil
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("updating task %d: %w", id, err)
	}

	s.logger.Info("task updated", slog.Int64("id", id))
	return task, nil
}

// Delete removes a task. Deleting a missing task is not an error.
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	if err := s.tasks.Remove(ctx, id); err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}

	s.logger.Info("task deleted", slog.Int64("id", id))
	return nil
}

// ToggleCompletion flips a task between pending and completed.
// completedAt is stamped when the task becomes completed and cleared when it
// goes back to pending, so it is set exactly when Completed is true.
func (s *TaskService) ToggleCompletion(ctx context.Context, id int64) (model.Task, error) {
	task, err := s.tasks.Update(ctx, id, func(t *model.Task) error {
		t.Completed = !t.Completed
		if t.Completed {
			stamp := s.now().Format(taskStampLayout)
			t.CompletedAt = &stamp
		} else {
			t.CompletedAt = nil
		}
		return nil
	})
	if err != nil {
		return model.Task{}, fmt.Errorf("toggling task %d: %w", id, err)
	}

	s.logger.Info("task toggled",
		slog.Int64("id", id),
		slog.Bool("completed", task.Completed),
	)
	return task, nil
}

// ClearPending removes every pending task and returns how many went.
func (s *TaskService) ClearPending(ctx context.Context) (int, error) {
	return s.clearWhere(ctx, "pending", func(t model.Task) bool { return !t.Completed })
}

// ClearCompleted removes every completed task and returns how many went.
func (s *TaskService) ClearCompleted(ctx context.Context) (int, error) {
	return s.clearWhere(ctx, "completed", func(t model.Task) bool { return t.Completed })
}

func (s *TaskService) clearWhere(ctx context.Context, which string, pred func(model.Task) bool) (int, error) {
	n, err := s.tasks.RemoveWhere(ctx, pred)
	if err != nil {
		return 0, fmt.Errorf("clearing %s tasks: %w", which, err)
	}

	s.logger.Info("tasks cleared",
		slog.String("which", which),
		slog.Int("count", n),
	)
	return n, nil
}

// FormatDueDate renders a stored YYYY-MM-DD due date for display.
// Empty or malformed input renders as "".
func FormatDueDate(dueDate string) string {
	if dueDate == "" {
		return ""
	}
	d, err := time.Parse(dueDateLayout, dueDate)
	if err != nil {
		return ""
	}
	return d.Format(dueDateDisplayLayout)
}

// validateTaskInput trims the text fields and checks the title and due date.
func validateTaskInput(in TaskInput) (TaskInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.DueDate = strings.TrimSpace(in.DueDate)

	if in.Title == "" {
		return in, apperror.ValidationFailed("title", "Please fill out this field.")
	}
	if in.DueDate != "" {
		if _, err := time.Parse(dueDateLayout, in.DueDate); err != nil {
			return in, apperror.ValidationFailed("dueDate", "Please enter a valid date (YYYY-MM-DD)")
		}
	}

	return in, nil
}
