package research

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"validata-backend/pkg/config"
	"validata-backend/pkg/errutil"
	"validata-backend/pkg/rediskey"
	"validata-backend/services/framework"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DefaultMaxDuration bounds a research run's wall clock when neither the
// payload nor the config overrides it.
const DefaultMaxDuration = 30 * time.Minute

const progressTTL = 24 * time.Hour

// ProgressWriter is the slice of the redis client used for queue-native
// progress snapshots.
type ProgressWriter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Task is the queue worker for research runs.
type Task struct {
	service      *Service
	frameworks   FrameworkStore
	orchestrator *Orchestrator
	progress     ProgressWriter
	config       *config.Config
}

type TaskParams struct {
	fx.In

	Service      *Service
	Frameworks   *framework.Service
	Orchestrator *Orchestrator
	Redis        *redis.Client
	Config       *config.Config
}

func NewTask(p TaskParams) *Task {
	return &Task{
		service:      p.Service,
		frameworks:   p.Frameworks,
		orchestrator: p.Orchestrator,
		progress:     p.Redis,
		config:       p.Config,
	}
}

// HandleResearchRun processes one research job end to end: loads the
// framework context, runs the orchestrator under a wall-clock timeout,
// persists the report, and drives both terminal state machines. A
// returned error hands retry control back to the queue.
func (s *Task) HandleResearchRun(ctx context.Context, t *asynq.Task) error {
	var payload RunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	queueTaskID, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.String("framework_id", payload.FrameworkID),
		zap.String("queue_task_id", queueTaskID),
		zap.Int("retry", retried),
	)
	zapLog.Info("start research run")

	tasks, projectDescription, err := s.frameworks.GetResearchInput(ctx, payload.FrameworkID)
	if err != nil {
		// A missing framework cannot succeed on redelivery, but the queue's
		// generic retry still applies; recording the failure is best-effort.
		zapLog.Error("failed to load research input", zap.Error(err))
		s.markFailed(ctx, payload.FrameworkID, err)
		return err
	}

	now := time.Now()
	if err := s.service.UpdateJobStatus(ctx, payload.FrameworkID, JobActive, map[string]any{
		"queue_task_id": queueTaskID,
		"started_at":    now,
		"current_step":  StepInitializing,
		"progress":      0,
		"error":         "",
	}); err != nil {
		zapLog.Error("failed to mark job active", zap.Error(err))
		return err
	}

	result, err := s.runWithTimeout(ctx, payload, projectDescription, tasks)
	if err != nil {
		zapLog.Error("research run failed", zap.Error(err))
		s.markFailed(ctx, payload.FrameworkID, err)
		return err
	}

	report, err := s.service.UpsertReport(ctx, payload.FrameworkID, result)
	if err != nil {
		zapLog.Error("failed to store report", zap.Error(err))
		s.markFailed(ctx, payload.FrameworkID, err)
		return err
	}

	// Best-effort read cache next to the progress snapshot; postgres holds
	// the authoritative copy.
	if blob, err := json.Marshal(report); err == nil {
		if err := s.progress.Set(ctx, rediskey.BuildResearchReportKey(payload.FrameworkID), blob, progressTTL).Err(); err != nil {
			zapLog.Warn("failed to cache report snapshot", zap.Error(err))
		}
	}

	// The report is durable before either COMPLETED flip, so a client
	// observing COMPLETED may assume the report exists.
	completedAt := time.Now()
	if err := s.service.UpdateJobStatus(ctx, payload.FrameworkID, JobCompleted, map[string]any{
		"progress":     100,
		"current_step": StepDone,
		"completed_at": completedAt,
	}); err != nil {
		zapLog.Error("failed to mark job completed", zap.Error(err))
		return err
	}
	if err := s.frameworks.UpdateStatus(ctx, payload.FrameworkID, framework.StatusCompleted, map[string]any{
		"completed_at": completedAt,
	}); err != nil {
		zapLog.Error("failed to mark framework completed", zap.Error(err))
		return err
	}

	zapLog.Info("research run completed",
		zap.Int("sources", len(result.AllSources)),
		zap.Int("summary_score", result.Synthesis.SummaryScore),
		zap.String("verdict", string(result.Synthesis.SummaryVerdict)),
	)
	return nil
}

// runWithTimeout races the orchestrator against the run's wall-clock
// budget. Losing work is detached, not cancelled: an in-flight external
// call may still finish in the background and its result is discarded.
func (s *Task) runWithTimeout(ctx context.Context, payload RunPayload, projectDescription string, tasks []framework.ValidationTask) (*ResearchResult, error) {
	maxDuration := payload.MaxDuration
	if maxDuration <= 0 {
		maxDuration = s.config.Research.MaxDuration
	}
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result *ResearchResult
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := s.orchestrator.ConductResearch(runCtx, projectDescription, tasks, s.progressFunc(payload.FrameworkID))
		done <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(maxDuration)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timer.C:
		return nil, errutil.Timeout(fmt.Sprintf("research run exceeded %s", maxDuration), nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// progressFunc translates each orchestrator checkpoint into two writes:
// the durable job row first (the authority on restart), then the
// queue-native redis snapshot.
func (s *Task) progressFunc(frameworkID string) ProgressFunc {
	return func(ctx context.Context, step string, progress int) error {
		if err := s.service.UpdateJobStatus(ctx, frameworkID, JobActive, map[string]any{
			"progress":     progress,
			"current_step": step,
		}); err != nil {
			return err
		}

		snapshot, err := json.Marshal(Progress{Progress: progress, CurrentStep: step})
		if err != nil {
			return err
		}

		if err := s.progress.Set(ctx, rediskey.BuildResearchProgressKey(frameworkID), snapshot, progressTTL).Err(); err != nil {
			// The durable row already reflects the checkpoint.
			zap.L().Warn("failed to write progress snapshot",
				zap.String("framework_id", frameworkID),
				zap.Error(err),
			)
		}

		return nil
	}
}

// markFailed records the failure on both state stores. Best-effort: if
// these writes fail the queue retry still fires, so the failure is not
// silently lost. The writes run on a detached context: the task context
// having expired is precisely the case that needs them recorded.
func (s *Task) markFailed(ctx context.Context, frameworkID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	completedAt := time.Now()

	if err := s.service.UpdateJobStatus(ctx, frameworkID, JobFailed, map[string]any{
		"error":        cause.Error(),
		"completed_at": completedAt,
	}); err != nil {
		zap.L().Error("failed to mark job failed",
			zap.String("framework_id", frameworkID),
			zap.Error(err),
		)
	}

	if err := s.frameworks.UpdateStatus(ctx, frameworkID, framework.StatusFailed, map[string]any{
		"completed_at": completedAt,
	}); err != nil {
		zap.L().Error("failed to mark framework failed",
			zap.String("framework_id", frameworkID),
			zap.Error(err),
		)
	}
}

var TaskModule = fx.Module("task.research",
	fx.Provide(NewTask),
)
