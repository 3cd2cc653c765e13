package framework

import "time"

// Status is the validation framework lifecycle state.
type Status string

const (
	StatusPendingInfo Status = "PENDING_INFO"
	StatusReady       Status = "READY"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
)

func (s Status) String() string {
	switch s {
	case StatusPendingInfo, StatusReady, StatusInProgress, StatusCompleted, StatusFailed:
		return string(s)
	default:
		return ""
	}
}

// Terminal reports whether the framework reached an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidationFramework ties one project to one question template set and
// tracks the research lifecycle for that pairing.
type ValidationFramework struct {
	ID                 string     `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt          time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at" json:"updated_at"`
	ProjectID          string     `gorm:"column:project_id;index" json:"project_id"`
	ProjectDescription string     `gorm:"column:project_description" json:"project_description"`
	TemplateID         string     `gorm:"column:template_id" json:"template_id"`
	Status             Status     `gorm:"column:status" json:"status"`
	StartedAt          *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	Tasks []ValidationTask `gorm:"foreignKey:FrameworkID" json:"tasks,omitempty"`
}

func (ValidationFramework) TableName() string {
	return "validation_frameworks"
}

// ValidationTask is one template question a founder answers. Immutable
// after creation except for the answer/completion fields, which are set
// exactly once by task completion.
type ValidationTask struct {
	ID          string     `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
	FrameworkID string     `gorm:"column:framework_id;index" json:"framework_id"`
	Category    string     `gorm:"column:category" json:"category"`
	Title       string     `gorm:"column:title" json:"title"`
	Description string     `gorm:"column:description" json:"description"`
	HelpText    string     `gorm:"column:help_text" json:"help_text,omitempty"`
	Required    bool       `gorm:"column:required" json:"required"`
	Completed   bool       `gorm:"column:completed" json:"completed"`
	Answer      *string    `gorm:"column:answer" json:"answer,omitempty"`
	Priority    int        `gorm:"column:priority" json:"priority"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (ValidationTask) TableName() string {
	return "validation_tasks"
}

// Answered reports whether the task carries a usable completed answer.
func (t ValidationTask) Answered() bool {
	return t.Completed && t.Answer != nil && *t.Answer != ""
}

// TaskSeed is one question definition from a framework template.
type TaskSeed struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	HelpText    string `json:"help_text,omitempty"`
	Required    bool   `json:"required"`
	Priority    int    `json:"priority"`
}

// Readiness summarises whether a framework can start research.
type Readiness struct {
	Ready   bool     `json:"ready"`
	Missing []string `json:"missing,omitempty"`
}
