package rediskey

import "fmt"

// Research keys (global convention across services)
const (
	ResearchProgressPrefix = "research:progress"
	ResearchReportPrefix   = "research:report"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildResearchProgressKey returns "research:progress:{frameworkID}"
func BuildResearchProgressKey(frameworkID string) string {
	return NamespaceKey(ResearchProgressPrefix, frameworkID)
}

// BuildResearchReportKey returns "research:report:{frameworkID}"
func BuildResearchReportKey(frameworkID string) string {
	return NamespaceKey(ResearchReportPrefix, frameworkID)
}
