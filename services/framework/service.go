package framework

import (
	"context"
	"errors"
	"time"

	"validata-backend/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
	}
}

// CreateFramework creates a framework in PENDING_INFO with one task per
// template seed.
func (s *Service) CreateFramework(ctx context.Context, projectID, projectDescription, templateID string, seeds []TaskSeed) (*ValidationFramework, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if projectDescription == "" {
		return nil, errutil.BadRequest("project description is required", nil)
	}
	if len(seeds) == 0 {
		return nil, errutil.BadRequest("framework template has no tasks", nil)
	}

	fw := &ValidationFramework{
		ID:                 s.node.Generate().String(),
		ProjectID:          projectID,
		ProjectDescription: projectDescription,
		TemplateID:         templateID,
		Status:             StatusPendingInfo,
	}

	for _, seed := range seeds {
		fw.Tasks = append(fw.Tasks, ValidationTask{
			ID:          s.node.Generate().String(),
			FrameworkID: fw.ID,
			Category:    seed.Category,
			Title:       seed.Title,
			Description: seed.Description,
			HelpText:    seed.HelpText,
			Required:    seed.Required,
			Priority:    seed.Priority,
		})
	}

	if err := s.db.WithContext(ctx).Create(fw).Error; err != nil {
		zap.L().Error("failed to create framework", zap.Error(err))
		return nil, errutil.Internal("failed to create framework", err)
	}

	return fw, nil
}

// Get loads a framework without its tasks.
func (s *Service) Get(ctx context.Context, frameworkID string) (*ValidationFramework, error) {
	var fw ValidationFramework
	if err := s.db.WithContext(ctx).Where("id = ?", frameworkID).First(&fw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("framework not found", err)
		}
		return nil, errutil.Internal("failed to load framework", err)
	}
	return &fw, nil
}

// GetResearchInput loads everything a research run needs: the framework's
// tasks ordered by priority ascending and the linked project description.
func (s *Service) GetResearchInput(ctx context.Context, frameworkID string) ([]ValidationTask, string, error) {
	fw, err := s.Get(ctx, frameworkID)
	if err != nil {
		return nil, "", err
	}

	var tasks []ValidationTask
	if err := s.db.WithContext(ctx).
		Where("framework_id = ?", frameworkID).
		Order("priority asc").
		Find(&tasks).Error; err != nil {
		return nil, "", errutil.Internal("failed to load framework tasks", err)
	}

	return tasks, fw.ProjectDescription, nil
}

// ListTasks returns the framework's tasks in priority order.
func (s *Service) ListTasks(ctx context.Context, frameworkID string) ([]ValidationTask, error) {
	if _, err := s.Get(ctx, frameworkID); err != nil {
		return nil, err
	}

	var tasks []ValidationTask
	if err := s.db.WithContext(ctx).
		Where("framework_id = ?", frameworkID).
		Order("priority asc").
		Find(&tasks).Error; err != nil {
		return nil, errutil.Internal("failed to load framework tasks", err)
	}

	return tasks, nil
}

// CompleteTask records a task answer exactly once and promotes the
// framework to READY when every required task is answered.
func (s *Service) CompleteTask(ctx context.Context, frameworkID, taskID, answer string) (*ValidationTask, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("framework_id", frameworkID),
		zap.String("task_id", taskID),
	)

	if answer == "" {
		return nil, errutil.BadRequest("answer is required", nil)
	}

	var task ValidationTask
	if err := s.db.WithContext(ctx).
		Where("id = ? AND framework_id = ?", taskID, frameworkID).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("task not found", err)
		}
		return nil, errutil.Internal("failed to load task", err)
	}

	if task.Completed {
		return nil, errutil.Conflict("task is already completed", nil)
	}

	now := time.Now()
	task.Answer = &answer
	task.Completed = true
	task.CompletedAt = &now

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ValidationTask{}).
			Where("id = ?", task.ID).
			Updates(map[string]any{
				"answer":       answer,
				"completed":    true,
				"completed_at": now,
				"updated_at":   now,
			}).Error; err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&ValidationTask{}).
			Where("framework_id = ? AND required = ? AND completed = ?", frameworkID, true, false).
			Count(&remaining).Error; err != nil {
			return err
		}

		if remaining == 0 {
			return tx.Model(&ValidationFramework{}).
				Where("id = ? AND status = ?", frameworkID, StatusPendingInfo).
				Updates(map[string]any{
					"status":     StatusReady,
					"updated_at": now,
				}).Error
		}

		return nil
	}); err != nil {
		zapLog.Error("failed to complete task", zap.Error(err))
		return nil, errutil.Internal("failed to complete task", err)
	}

	zapLog.Info("task completed", zap.String("category", task.Category))
	return &task, nil
}

// CheckReadiness reports whether research can start and which required
// tasks are still unanswered.
func (s *Service) CheckReadiness(ctx context.Context, frameworkID string) (*Readiness, error) {
	if _, err := s.Get(ctx, frameworkID); err != nil {
		return nil, err
	}

	var pending []ValidationTask
	if err := s.db.WithContext(ctx).
		Where("framework_id = ? AND required = ? AND completed = ?", frameworkID, true, false).
		Order("priority asc").
		Find(&pending).Error; err != nil {
		return nil, errutil.Internal("failed to check readiness", err)
	}

	r := &Readiness{Ready: len(pending) == 0}
	for _, t := range pending {
		r.Missing = append(r.Missing, t.Title)
	}
	return r, nil
}

// UpdateStatus applies a partial update to the framework's lifecycle
// fields.
func (s *Service) UpdateStatus(ctx context.Context, frameworkID string, status Status, fields map[string]any) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := s.db.WithContext(ctx).
		Model(&ValidationFramework{}).
		Where("id = ?", frameworkID).
		Updates(updates)
	if res.Error != nil {
		return errutil.Internal("failed to update framework status", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("framework not found", nil)
	}
	return nil
}
