package research

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"validata-backend/pkg/config"
	"validata-backend/pkg/errutil"
	"validata-backend/pkg/task"
	"validata-backend/pkg/taskname"
	"validata-backend/services/framework"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FrameworkStore is the slice of the framework collaborator the research
// pipeline consumes.
type FrameworkStore interface {
	Get(ctx context.Context, frameworkID string) (*framework.ValidationFramework, error)
	GetResearchInput(ctx context.Context, frameworkID string) ([]framework.ValidationTask, string, error)
	UpdateStatus(ctx context.Context, frameworkID string, status framework.Status, fields map[string]any) error
}

// TaskRemover deletes a queued or archived task by queue and id.
// Satisfied by *asynq.Inspector.
type TaskRemover interface {
	DeleteTask(queue, id string) error
}

type Service struct {
	db         *gorm.DB
	frameworks FrameworkStore
	enqueuer   task.Enqueuer
	remover    TaskRemover
	node       *snowflake.Node
	config     *config.Config
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Frameworks *framework.Service
	Enqueuer   task.Enqueuer    `optional:"true"`
	Inspector  *asynq.Inspector `optional:"true"`
	Node       *snowflake.Node
	Config     *config.Config
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:         p.DB,
		frameworks: p.Frameworks,
		enqueuer:   p.Enqueuer,
		node:       p.Node,
		config:     p.Config,
	}
	if p.Inspector != nil {
		s.remover = p.Inspector
	}
	return s
}

// StartResearch enqueues the research job for a READY framework and flips
// it to IN_PROGRESS. A framework that previously FAILED may re-run; its
// unique job row is reset in place rather than duplicated.
func (s *Service) StartResearch(ctx context.Context, frameworkID string) (*ResearchJob, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(zap.String("framework_id", frameworkID))

	fw, err := s.frameworks.Get(ctx, frameworkID)
	if err != nil {
		return nil, err
	}

	switch fw.Status {
	case framework.StatusInProgress:
		return nil, errutil.Conflict("research already in progress", nil)
	case framework.StatusCompleted:
		return nil, errutil.Conflict("research already completed", nil)
	case framework.StatusPendingInfo:
		return nil, errutil.UnprocessableEntity("framework is not ready for research", nil)
	}

	// A FAILED run's exhausted task lingers in asynq's archive where its
	// deterministic id stays reserved; clear it so the re-run can enqueue.
	// Deleting an active task is refused by asynq, so a live run cannot be
	// clobbered here.
	if fw.Status == framework.StatusFailed && s.remover != nil {
		taskID := taskname.ResearchTaskID(frameworkID)
		if err := s.remover.DeleteTask("research", taskID); err != nil &&
			!errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			zapLog.Warn("failed to remove prior research task",
				zap.String("queue_task_id", taskID),
				zap.Error(err),
			)
		}
	}

	job, err := s.prepareJob(ctx, frameworkID)
	if err != nil {
		return nil, err
	}

	maxDuration := s.config.Research.MaxDuration
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}

	payload, err := json.Marshal(RunPayload{
		FrameworkID: frameworkID,
		MaxDuration: maxDuration,
	})
	if err != nil {
		return nil, errutil.Internal("failed to encode research payload", err)
	}

	// The queue-level timeout sits above the worker's own wall-clock race
	// so the worker times the run out first and records an error naming
	// the duration; asynq's deadline is only the backstop for a wedged
	// handler.
	info, err := s.enqueuer.Enqueue(ctx,
		asynq.NewTask(taskname.ResearchRun, payload),
		asynq.TaskID(taskname.ResearchTaskID(frameworkID)),
		asynq.Queue("research"),
		asynq.MaxRetry(2),
		asynq.Timeout(maxDuration+time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil, errutil.Conflict("research job already queued", err)
		}
		zapLog.Error("failed to enqueue research job", zap.Error(err))
		return nil, errutil.Internal("failed to enqueue research job", err)
	}

	now := time.Now()
	if err := s.frameworks.UpdateStatus(ctx, frameworkID, framework.StatusInProgress, map[string]any{
		"started_at": now,
	}); err != nil {
		return nil, err
	}

	zapLog.Info("research job enqueued",
		zap.String("job_id", job.ID),
		zap.String("queue_task_id", info.ID),
	)

	return job, nil
}

// prepareJob creates the framework's unique job row, or resets the
// existing one back to QUEUED for a re-run.
func (s *Service) prepareJob(ctx context.Context, frameworkID string) (*ResearchJob, error) {
	var job ResearchJob
	err := s.db.WithContext(ctx).Where("framework_id = ?", frameworkID).First(&job).Error

	switch {
	case err == nil:
		now := time.Now()
		updates := map[string]any{
			"status":        JobQueued,
			"progress":      0,
			"current_step":  "",
			"error":         "",
			"queue_task_id": "",
			"started_at":    nil,
			"completed_at":  nil,
			"updated_at":    now,
		}
		if err := s.db.WithContext(ctx).Model(&ResearchJob{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
			return nil, errutil.Internal("failed to reset research job", err)
		}
		job.Status = JobQueued
		job.Progress = 0
		job.CurrentStep = ""
		job.Error = ""
		job.QueueTaskID = ""
		job.StartedAt = nil
		job.CompletedAt = nil
		return &job, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		job = ResearchJob{
			ID:          s.node.Generate().String(),
			FrameworkID: frameworkID,
			Status:      JobQueued,
		}
		if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
			return nil, errutil.Internal("failed to create research job", err)
		}
		return &job, nil

	default:
		return nil, errutil.Internal("failed to load research job", err)
	}
}

// GetJob returns the durable job record clients poll for progress.
func (s *Service) GetJob(ctx context.Context, frameworkID string) (*ResearchJob, error) {
	var job ResearchJob
	if err := s.db.WithContext(ctx).Where("framework_id = ?", frameworkID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("research job not found", err)
		}
		return nil, errutil.Internal("failed to load research job", err)
	}
	return &job, nil
}

// GetReport returns the framework's report.
func (s *Service) GetReport(ctx context.Context, frameworkID string) (*ResearchReport, error) {
	var report ResearchReport
	if err := s.db.WithContext(ctx).Where("framework_id = ?", frameworkID).First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("research report not found", err)
		}
		return nil, errutil.Internal("failed to load research report", err)
	}
	return &report, nil
}

// UpdateJobStatus applies a partial update to the framework's job row.
func (s *Service) UpdateJobStatus(ctx context.Context, frameworkID string, status JobStatus, fields map[string]any) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := s.db.WithContext(ctx).
		Model(&ResearchJob{}).
		Where("framework_id = ?", frameworkID).
		Updates(updates)
	if res.Error != nil {
		return errutil.Internal("failed to update research job", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("research job not found", nil)
	}
	return nil
}

// UpsertReport stores the run result as the framework's report, replacing
// any previous one.
func (s *Service) UpsertReport(ctx context.Context, frameworkID string, result *ResearchResult) (*ResearchReport, error) {
	raw, err := json.Marshal(map[string]any{
		"problemEvidence":    result.ProblemEvidence,
		"competitorAnalysis": result.CompetitorAnalysis,
		"marketSignals":      result.MarketSignals,
		"allSources":         result.AllSources,
	})
	if err != nil {
		return nil, errutil.Internal("failed to encode report raw data", err)
	}

	bySection := func(stage StageResult, score SectionScore) ReportSection {
		return ReportSection{
			Score:       score.Score,
			KeyFindings: score.KeyFindings,
			Concerns:    score.Concerns,
			Content:     stage.Content,
			Sources:     stage.Sources,
		}
	}

	syn := result.Synthesis
	report := &ResearchReport{
		FrameworkID:        frameworkID,
		SummaryScore:       syn.SummaryScore,
		SummaryVerdict:     syn.SummaryVerdict,
		SummaryPoints:      syn.SummaryPoints,
		ProblemEvidence:    newJSONSection(bySection(result.ProblemEvidence, syn.Sections.ProblemEvidence)),
		CompetitorAnalysis: newJSONSection(bySection(result.CompetitorAnalysis, syn.Sections.CompetitorAnalysis)),
		MarketSignals:      newJSONSection(bySection(result.MarketSignals, syn.Sections.MarketSignals)),
		Recommendations:    syn.Recommendations,
		SourcesCount:       len(result.AllSources),
		RawData:            raw,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ResearchReport
		err := tx.Where("framework_id = ?", frameworkID).First(&existing).Error
		switch {
		case err == nil:
			report.ID = existing.ID
			report.CreatedAt = existing.CreatedAt
			return tx.Save(report).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			report.ID = s.node.Generate().String()
			return tx.Create(report).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, errutil.Internal("failed to store research report", err)
	}

	return report, nil
}
