package research

import (
	"fmt"
	"strings"

	"validata-backend/services/framework"
)

const problemEvidenceInstructions = `Research evidence that the problem this idea addresses is real and painful.
Look for: forum and community discussions where people describe the problem,
published research or industry reports quantifying it, and signals of how
people cope with it today (workarounds, spreadsheets, existing spend).
Summarize the strongest evidence and note where evidence is thin.`

const competitorInstructions = `Research the competitive landscape for this idea.
Look for: direct competitors solving the same problem, adjacent products users
repurpose for it, pricing and positioning of the main players, and gaps or
complaints users voice about existing options. Name specific companies and
products where possible.`

const marketSignalsInstructions = `Research market signals for this idea.
Look for: market size estimates and growth rates, recent funding activity in
the space, regulatory or technological shifts that expand or shrink the
opportunity, and search or adoption trends. Prefer recent, citable figures.`

// BuildTaskContext renders the founder's completed answers as a context
// block. Tasks without a completed answer are skipped; order is preserved
// from the input (callers pass tasks in priority order).
func BuildTaskContext(tasks []framework.ValidationTask) string {
	var b strings.Builder
	for _, t := range tasks {
		if !t.Answered() {
			continue
		}
		fmt.Fprintf(&b, "### %s\n%s\n\n", t.Title, *t.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildStagePrompt(projectDescription string, tasks []framework.ValidationTask, instructions string) string {
	var b strings.Builder
	b.WriteString("## Startup idea\n")
	b.WriteString(projectDescription)
	b.WriteString("\n\n")

	if ctx := BuildTaskContext(tasks); ctx != "" {
		b.WriteString("## Founder's validation answers\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}

	b.WriteString("## Research instructions\n")
	b.WriteString(instructions)
	return b.String()
}

// BuildProblemEvidencePrompt renders the problem-evidence stage prompt.
func BuildProblemEvidencePrompt(projectDescription string, tasks []framework.ValidationTask) string {
	return buildStagePrompt(projectDescription, tasks, problemEvidenceInstructions)
}

// BuildCompetitorPrompt renders the competitor-analysis stage prompt.
func BuildCompetitorPrompt(projectDescription string, tasks []framework.ValidationTask) string {
	return buildStagePrompt(projectDescription, tasks, competitorInstructions)
}

// BuildMarketSignalsPrompt renders the market-signals stage prompt.
func BuildMarketSignalsPrompt(projectDescription string, tasks []framework.ValidationTask) string {
	return buildStagePrompt(projectDescription, tasks, marketSignalsInstructions)
}

// BuildSynthesisPrompt renders the synthesis prompt embedding the three
// completed research stages.
func BuildSynthesisPrompt(projectDescription string, tasks []framework.ValidationTask, problemEvidence, competitorAnalysis, marketSignals string) string {
	var b strings.Builder
	b.WriteString("## Startup idea\n")
	b.WriteString(projectDescription)
	b.WriteString("\n\n")

	if ctx := BuildTaskContext(tasks); ctx != "" {
		b.WriteString("## Founder's validation answers\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}

	b.WriteString("## Problem evidence research\n")
	b.WriteString(problemEvidence)
	b.WriteString("\n\n## Competitor research\n")
	b.WriteString(competitorAnalysis)
	b.WriteString("\n\n## Market signals research\n")
	b.WriteString(marketSignals)
	b.WriteString("\n\n## Task\n")
	b.WriteString(`Score this startup idea from the research above. Be direct about
weaknesses; founders are better served by honest concerns than optimism.
Score each section 1-10, give an overall score 1-10 with a STRONG, MODERATE,
or WEAK verdict, 3-5 summary points, and 3-5 concrete recommendations.`)
	return b.String()
}
