package research

import (
	"context"

	"validata-backend/services/framework"

	"go.uber.org/zap"
)

// Progress checkpoints, one start/end pair per stage. The schedule is a
// public contract; clients polling progress observe exactly these values
// in this order.
const (
	progressProblemStart    = 10
	progressProblemDone     = 30
	progressCompetitorStart = 35
	progressCompetitorDone  = 60
	progressMarketStart     = 65
	progressMarketDone      = 80
	progressSynthesisStart  = 85
	progressSynthesisDone   = 100
)

// Step labels surfaced to polling clients.
const (
	StepInitializing = "Initializing research"
	StepProblem      = "Researching problem evidence"
	StepCompetitors  = "Analyzing competitors"
	StepMarket       = "Researching market signals"
	StepSynthesis    = "Synthesizing findings"
	StepDone         = "Research complete"
)

// ProgressFunc receives one ordered progress checkpoint. The orchestrator
// awaits it before continuing, so a failing callback aborts the run.
type ProgressFunc func(ctx context.Context, step string, progress int) error

// Orchestrator runs the four-stage research pipeline against an Agent.
type Orchestrator struct {
	agent Agent
}

func NewOrchestrator(agent Agent) *Orchestrator {
	return &Orchestrator{agent: agent}
}

// ConductResearch runs problem evidence, competitor, and market-signal
// research strictly in sequence, then synthesis, reporting progress at
// the fixed checkpoints. A failed research stage aborts the run; a failed
// synthesis degrades to a fixed fallback so a partially successful run
// still yields a storable report.
func (o *Orchestrator) ConductResearch(ctx context.Context, projectDescription string, tasks []framework.ValidationTask, onProgress ProgressFunc) (*ResearchResult, error) {
	problem, err := o.runStage(ctx, StepProblem, progressProblemStart, progressProblemDone, onProgress,
		BuildProblemEvidencePrompt(projectDescription, tasks))
	if err != nil {
		return nil, err
	}

	competitors, err := o.runStage(ctx, StepCompetitors, progressCompetitorStart, progressCompetitorDone, onProgress,
		BuildCompetitorPrompt(projectDescription, tasks))
	if err != nil {
		return nil, err
	}

	market, err := o.runStage(ctx, StepMarket, progressMarketStart, progressMarketDone, onProgress,
		BuildMarketSignalsPrompt(projectDescription, tasks))
	if err != nil {
		return nil, err
	}

	if err := onProgress(ctx, StepSynthesis, progressSynthesisStart); err != nil {
		return nil, err
	}

	synthesis, err := o.agent.GenerateSynthesis(ctx,
		BuildSynthesisPrompt(projectDescription, tasks, problem.Content, competitors.Content, market.Content))
	if err == nil && synthesis != nil {
		err = synthesis.Validate()
	}
	if err != nil || synthesis == nil {
		zap.L().Warn("synthesis failed, substituting fallback", zap.Error(err))
		synthesis = FallbackSynthesis()
	}

	if err := onProgress(ctx, StepDone, progressSynthesisDone); err != nil {
		return nil, err
	}

	return &ResearchResult{
		ProblemEvidence:    *problem,
		CompetitorAnalysis: *competitors,
		MarketSignals:      *market,
		Synthesis:          *synthesis,
		AllSources:         MergeSources(problem.Sources, competitors.Sources, market.Sources),
	}, nil
}

func (o *Orchestrator) runStage(ctx context.Context, step string, start, done int, onProgress ProgressFunc, prompt string) (*StageResult, error) {
	if err := onProgress(ctx, step, start); err != nil {
		return nil, err
	}

	result, err := o.agent.ResearchWithGrounding(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if err := onProgress(ctx, step, done); err != nil {
		return nil, err
	}

	return result, nil
}

// FallbackSynthesis is the fixed degrade-gracefully value substituted when
// structured synthesis fails for any reason.
func FallbackSynthesis() *SynthesisResult {
	section := SectionScore{
		Score:       5,
		KeyFindings: []string{"Automated synthesis was unavailable; review the section research content directly"},
		Concerns:    []string{"Structured synthesis failed for this run"},
	}

	return &SynthesisResult{
		SummaryScore:   5,
		SummaryVerdict: VerdictModerate,
		SummaryPoints: []string{
			"Automated synthesis was unavailable for this run",
			"Stage research completed; review each section's content directly",
			"Treat the overall score as a neutral placeholder, not an assessment",
		},
		Sections: SynthesisSections{
			ProblemEvidence:    section,
			CompetitorAnalysis: section,
			MarketSignals:      section,
		},
		Recommendations: []string{
			"Re-run research to obtain a scored synthesis",
			"Review the raw research content for each section",
			"Validate the strongest findings manually before acting on them",
		},
	}
}
