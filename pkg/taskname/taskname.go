package taskname

import "fmt"

const (
	// Research tasks
	ResearchRun = "research:run"
)

// ResearchTaskID derives the queue task ID for a framework's research run.
// The ID is deterministic so a second enqueue for the same framework is
// rejected by the queue's dedup-by-id semantics while the first is pending
// or active.
func ResearchTaskID(frameworkID string) string {
	return fmt.Sprintf("research-%s", frameworkID)
}
