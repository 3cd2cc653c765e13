package research

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// JobStatus is the research job lifecycle state.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobActive    JobStatus = "ACTIVE"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

func (s JobStatus) String() string {
	switch s {
	case JobQueued, JobActive, JobCompleted, JobFailed:
		return string(s)
	default:
		return ""
	}
}

// Verdict is the synthesized overall call on the startup idea.
type Verdict string

const (
	VerdictStrong   Verdict = "STRONG"
	VerdictModerate Verdict = "MODERATE"
	VerdictWeak     Verdict = "WEAK"
)

func (v Verdict) Valid() bool {
	return v == VerdictStrong || v == VerdictModerate || v == VerdictWeak
}

// ResearchJob tracks one asynchronous research run for a framework.
// Exactly one row exists per framework; re-running after failure resets
// this row in place.
type ResearchJob struct {
	ID          string     `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
	FrameworkID string     `gorm:"column:framework_id;uniqueIndex" json:"framework_id"`
	Status      JobStatus  `gorm:"column:status" json:"status"`
	Progress    int        `gorm:"column:progress" json:"progress"`
	CurrentStep string     `gorm:"column:current_step" json:"current_step"`
	Error       string     `gorm:"column:error" json:"error,omitempty"`
	QueueTaskID string     `gorm:"column:queue_task_id" json:"queue_task_id,omitempty"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (ResearchJob) TableName() string {
	return "research_jobs"
}

// Source is one research citation.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ReportSection is one scored breakdown section of the final report.
type ReportSection struct {
	Score       int      `json:"score"`
	KeyFindings []string `json:"keyFindings"`
	Concerns    []string `json:"concerns"`
	Content     string   `json:"content"`
	Sources     []Source `json:"sources"`
}

// ResearchReport is the synthesized output of a research run, 1:1 with a
// framework. Replaced wholesale (upsert) on re-run.
type ResearchReport struct {
	ID                 string                                `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt          time.Time                             `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time                             `gorm:"column:updated_at" json:"updated_at"`
	FrameworkID        string                                `gorm:"column:framework_id;uniqueIndex" json:"framework_id"`
	SummaryScore       int                                   `gorm:"column:summary_score" json:"summary_score"`
	SummaryVerdict     Verdict                               `gorm:"column:summary_verdict" json:"summary_verdict"`
	SummaryPoints      datatypes.JSONSlice[string]           `gorm:"column:summary_points" json:"summary_points"`
	ProblemEvidence    datatypes.JSONType[ReportSection]     `gorm:"column:problem_evidence" json:"problem_evidence"`
	CompetitorAnalysis datatypes.JSONType[ReportSection]     `gorm:"column:competitor_analysis" json:"competitor_analysis"`
	MarketSignals      datatypes.JSONType[ReportSection]     `gorm:"column:market_signals" json:"market_signals"`
	Recommendations    datatypes.JSONSlice[string]           `gorm:"column:recommendations" json:"recommendations"`
	SourcesCount       int                                   `gorm:"column:sources_count" json:"sources_count"`
	RawData            datatypes.JSON                        `gorm:"column:raw_data" json:"raw_data,omitempty"`
}

func (ResearchReport) TableName() string {
	return "research_reports"
}

func newJSONSection(s ReportSection) datatypes.JSONType[ReportSection] {
	return datatypes.NewJSONType(s)
}

// StageResult is the output of one grounded research stage.
type StageResult struct {
	Content       string   `json:"content"`
	Sources       []Source `json:"sources"`
	SearchQueries []string `json:"searchQueries"`
}

// SectionScore is one section of the structured synthesis.
type SectionScore struct {
	Score       int      `json:"score"`
	KeyFindings []string `json:"keyFindings"`
	Concerns    []string `json:"concerns"`
}

// SynthesisSections groups the three per-topic synthesis sections.
type SynthesisSections struct {
	ProblemEvidence    SectionScore `json:"problemEvidence"`
	CompetitorAnalysis SectionScore `json:"competitorAnalysis"`
	MarketSignals      SectionScore `json:"marketSignals"`
}

// SynthesisResult is the schema-constrained output of the synthesis stage.
type SynthesisResult struct {
	SummaryScore    int               `json:"summaryScore"`
	SummaryVerdict  Verdict           `json:"summaryVerdict"`
	SummaryPoints   []string          `json:"summaryPoints"`
	Sections        SynthesisSections `json:"sections"`
	Recommendations []string          `json:"recommendations"`
}

// Validate enforces the synthesis schema bounds locally, independent of
// what the external model claims to have produced.
func (s *SynthesisResult) Validate() error {
	if s.SummaryScore < 1 || s.SummaryScore > 10 {
		return fmt.Errorf("summaryScore %d out of range 1-10", s.SummaryScore)
	}
	if !s.SummaryVerdict.Valid() {
		return fmt.Errorf("summaryVerdict %q is not one of STRONG, MODERATE, WEAK", s.SummaryVerdict)
	}
	if n := len(s.SummaryPoints); n < 3 || n > 5 {
		return fmt.Errorf("summaryPoints length %d out of range 3-5", n)
	}
	for name, sec := range map[string]SectionScore{
		"problemEvidence":    s.Sections.ProblemEvidence,
		"competitorAnalysis": s.Sections.CompetitorAnalysis,
		"marketSignals":      s.Sections.MarketSignals,
	} {
		if sec.Score < 1 || sec.Score > 10 {
			return fmt.Errorf("sections.%s.score %d out of range 1-10", name, sec.Score)
		}
	}
	if n := len(s.Recommendations); n < 3 || n > 5 {
		return fmt.Errorf("recommendations length %d out of range 3-5", n)
	}
	return nil
}

// ResearchResult is the complete output of one orchestrated run.
type ResearchResult struct {
	ProblemEvidence    StageResult     `json:"problemEvidence"`
	CompetitorAnalysis StageResult     `json:"competitorAnalysis"`
	MarketSignals      StageResult     `json:"marketSignals"`
	Synthesis          SynthesisResult `json:"synthesis"`
	AllSources         []Source        `json:"allSources"`
}

// RunPayload is the queue unit of work for one research run.
type RunPayload struct {
	FrameworkID string        `json:"framework_id"`
	MaxDuration time.Duration `json:"max_duration,omitempty"`
}

// Progress is the queue-native progress snapshot stored next to the
// durable job row.
type Progress struct {
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step"`
}
