package research

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"validata-backend/pkg/config"
	"validata-backend/pkg/errutil"
	"validata-backend/pkg/taskname"
	"validata-backend/services/framework"
	"validata-backend/services/testutil"
)

type fakeFrameworkStore struct {
	framework *framework.ValidationFramework
	tasks     []framework.ValidationTask

	statusUpdates []framework.Status
	updateErr     error
}

func (f *fakeFrameworkStore) Get(ctx context.Context, frameworkID string) (*framework.ValidationFramework, error) {
	if f.framework == nil || f.framework.ID != frameworkID {
		return nil, errutil.NotFound("framework not found", nil)
	}
	fw := *f.framework
	return &fw, nil
}

func (f *fakeFrameworkStore) GetResearchInput(ctx context.Context, frameworkID string) ([]framework.ValidationTask, string, error) {
	if f.framework == nil || f.framework.ID != frameworkID {
		return nil, "", errutil.NotFound("framework not found", nil)
	}
	return f.tasks, f.framework.ProjectDescription, nil
}

func (f *fakeFrameworkStore) UpdateStatus(ctx context.Context, frameworkID string, status framework.Status, fields map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.statusUpdates = append(f.statusUpdates, status)
	f.framework.Status = status
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", f.err)
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: taskname.ResearchTaskID("fw-1"), Queue: "research"}, nil
}

type removedTask struct {
	queue string
	id    string
}

type fakeTaskRemover struct {
	removed []removedTask
	err     error
}

func (f *fakeTaskRemover) DeleteTask(queue, id string) error {
	f.removed = append(f.removed, removedTask{queue: queue, id: id})
	return f.err
}

func newTestService(t *testing.T, frameworks FrameworkStore, enqueuer *fakeEnqueuer) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &ResearchJob{}, &ResearchReport{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &Service{
		db:         db,
		frameworks: frameworks,
		enqueuer:   enqueuer,
		node:       node,
		config:     &config.Config{},
	}, db
}

func readyFramework() *framework.ValidationFramework {
	return &framework.ValidationFramework{
		ID:                 "fw-1",
		ProjectDescription: "SaaS inventory tool for bakeries",
		Status:             framework.StatusReady,
	}
}

func TestStartResearchEnqueuesAndFlipsFramework(t *testing.T) {
	store := &fakeFrameworkStore{framework: readyFramework()}
	enq := &fakeEnqueuer{}
	svc, db := newTestService(t, store, enq)

	job, err := svc.StartResearch(context.Background(), "fw-1")
	require.NoError(t, err)
	require.Equal(t, JobQueued, job.Status)
	require.Equal(t, "fw-1", job.FrameworkID)

	require.Len(t, enq.tasks, 1)
	require.Equal(t, taskname.ResearchRun, enq.tasks[0].Type())

	var payload RunPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "fw-1", payload.FrameworkID)
	require.Equal(t, DefaultMaxDuration, payload.MaxDuration)

	require.Equal(t, []framework.Status{framework.StatusInProgress}, store.statusUpdates)

	var count int64
	require.NoError(t, db.Model(&ResearchJob{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestStartResearchRejectsInProgress(t *testing.T) {
	fw := readyFramework()
	fw.Status = framework.StatusInProgress
	store := &fakeFrameworkStore{framework: fw}
	enq := &fakeEnqueuer{}
	svc, db := newTestService(t, store, enq)

	_, err := svc.StartResearch(context.Background(), "fw-1")
	require.Error(t, err)
	require.True(t, errutil.Is(err, errutil.StatusConflict))
	require.Contains(t, err.Error(), "research already in progress")

	require.Empty(t, enq.tasks)
	var count int64
	require.NoError(t, db.Model(&ResearchJob{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestStartResearchRejectsPendingInfo(t *testing.T) {
	fw := readyFramework()
	fw.Status = framework.StatusPendingInfo
	svc, _ := newTestService(t, &fakeFrameworkStore{framework: fw}, &fakeEnqueuer{})

	_, err := svc.StartResearch(context.Background(), "fw-1")
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))
}

func TestStartResearchFrameworkNotFound(t *testing.T) {
	svc, _ := newTestService(t, &fakeFrameworkStore{}, &fakeEnqueuer{})

	_, err := svc.StartResearch(context.Background(), "missing")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestStartResearchAfterFailureReusesJobRow(t *testing.T) {
	fw := readyFramework()
	fw.Status = framework.StatusFailed
	store := &fakeFrameworkStore{framework: fw}
	svc, db := newTestService(t, store, &fakeEnqueuer{})

	failedAt := time.Now().Add(-time.Hour)
	prior := &ResearchJob{
		ID:          "job-1",
		FrameworkID: "fw-1",
		Status:      JobFailed,
		Progress:    35,
		CurrentStep: StepCompetitors,
		Error:       "gemini unavailable",
		CompletedAt: &failedAt,
	}
	require.NoError(t, db.Create(prior).Error)

	job, err := svc.StartResearch(context.Background(), "fw-1")
	require.NoError(t, err)

	// Same row, reset in place.
	require.Equal(t, "job-1", job.ID)
	require.Equal(t, JobQueued, job.Status)
	require.Zero(t, job.Progress)
	require.Empty(t, job.Error)
	require.Nil(t, job.CompletedAt)

	var count int64
	require.NoError(t, db.Model(&ResearchJob{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestStartResearchAfterFailureClearsArchivedTask(t *testing.T) {
	fw := readyFramework()
	fw.Status = framework.StatusFailed
	store := &fakeFrameworkStore{framework: fw}
	enq := &fakeEnqueuer{}
	svc, db := newTestService(t, store, enq)

	remover := &fakeTaskRemover{}
	svc.remover = remover

	require.NoError(t, db.Create(&ResearchJob{ID: "job-1", FrameworkID: "fw-1", Status: JobFailed}).Error)

	// The exhausted task sits in asynq's archive under its deterministic
	// id; the re-run must clear it before enqueueing or the id conflicts.
	_, err := svc.StartResearch(context.Background(), "fw-1")
	require.NoError(t, err)
	require.Equal(t, []removedTask{{queue: "research", id: taskname.ResearchTaskID("fw-1")}}, remover.removed)
	require.Len(t, enq.tasks, 1)
}

func TestStartResearchRemoverNotFoundIgnored(t *testing.T) {
	fw := readyFramework()
	fw.Status = framework.StatusFailed
	store := &fakeFrameworkStore{framework: fw}
	enq := &fakeEnqueuer{}
	svc, db := newTestService(t, store, enq)

	svc.remover = &fakeTaskRemover{err: asynq.ErrTaskNotFound}

	require.NoError(t, db.Create(&ResearchJob{ID: "job-1", FrameworkID: "fw-1", Status: JobFailed}).Error)

	job, err := svc.StartResearch(context.Background(), "fw-1")
	require.NoError(t, err)
	require.Equal(t, JobQueued, job.Status)
	require.Len(t, enq.tasks, 1)
}

func TestStartResearchFirstRunSkipsRemover(t *testing.T) {
	store := &fakeFrameworkStore{framework: readyFramework()}
	svc, _ := newTestService(t, store, &fakeEnqueuer{})

	remover := &fakeTaskRemover{}
	svc.remover = remover

	_, err := svc.StartResearch(context.Background(), "fw-1")
	require.NoError(t, err)
	require.Empty(t, remover.removed)
}

func TestStartResearchDuplicateTaskIDConflict(t *testing.T) {
	store := &fakeFrameworkStore{framework: readyFramework()}
	svc, _ := newTestService(t, store, &fakeEnqueuer{err: asynq.ErrTaskIDConflict})

	_, err := svc.StartResearch(context.Background(), "fw-1")
	require.True(t, errutil.Is(err, errutil.StatusConflict))
	require.Contains(t, err.Error(), "already queued")
}

func TestUpdateJobStatusPartialUpdate(t *testing.T) {
	svc, db := newTestService(t, &fakeFrameworkStore{framework: readyFramework()}, &fakeEnqueuer{})
	require.NoError(t, db.Create(&ResearchJob{ID: "job-1", FrameworkID: "fw-1", Status: JobQueued}).Error)

	require.NoError(t, svc.UpdateJobStatus(context.Background(), "fw-1", JobActive, map[string]any{
		"progress":     35,
		"current_step": StepCompetitors,
	}))

	job, err := svc.GetJob(context.Background(), "fw-1")
	require.NoError(t, err)
	require.Equal(t, JobActive, job.Status)
	require.Equal(t, 35, job.Progress)
	require.Equal(t, StepCompetitors, job.CurrentStep)
}

func TestUpdateJobStatusNotFound(t *testing.T) {
	svc, _ := newTestService(t, &fakeFrameworkStore{}, &fakeEnqueuer{})

	err := svc.UpdateJobStatus(context.Background(), "missing", JobActive, nil)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestUpsertReportCreatesThenReplaces(t *testing.T) {
	svc, db := newTestService(t, &fakeFrameworkStore{framework: readyFramework()}, &fakeEnqueuer{})

	result := &ResearchResult{
		ProblemEvidence:    StageResult{Content: "p", Sources: []Source{{Title: "A", URL: "https://example.com/a"}}},
		CompetitorAnalysis: StageResult{Content: "c"},
		MarketSignals:      StageResult{Content: "m"},
		Synthesis:          *validSynthesis(),
		AllSources:         []Source{{Title: "A", URL: "https://example.com/a"}},
	}

	first, err := svc.UpsertReport(context.Background(), "fw-1", result)
	require.NoError(t, err)
	require.Equal(t, 7, first.SummaryScore)
	require.Equal(t, 1, first.SourcesCount)
	require.Equal(t, "p", first.ProblemEvidence.Data().Content)

	rerun := *result
	rerun.Synthesis = *FallbackSynthesis()
	second, err := svc.UpsertReport(context.Background(), "fw-1", &rerun)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 5, second.SummaryScore)

	var count int64
	require.NoError(t, db.Model(&ResearchReport{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestGetJobNotFound(t *testing.T) {
	svc, _ := newTestService(t, &fakeFrameworkStore{}, &fakeEnqueuer{})

	_, err := svc.GetJob(context.Background(), "missing")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}
