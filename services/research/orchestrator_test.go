package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"validata-backend/services/framework"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeAgent struct {
	stageFn     func(ctx context.Context, prompt string) (*StageResult, error)
	synthesisFn func(ctx context.Context, prompt string) (*SynthesisResult, error)

	stagePrompts    []string
	synthesisPrompt string
}

func (f *fakeAgent) ResearchWithGrounding(ctx context.Context, prompt string) (*StageResult, error) {
	f.stagePrompts = append(f.stagePrompts, prompt)
	if f.stageFn != nil {
		return f.stageFn(ctx, prompt)
	}
	return &StageResult{Content: "stage content"}, nil
}

func (f *fakeAgent) GenerateSynthesis(ctx context.Context, prompt string) (*SynthesisResult, error) {
	f.synthesisPrompt = prompt
	if f.synthesisFn != nil {
		return f.synthesisFn(ctx, prompt)
	}
	return validSynthesis(), nil
}

func validSynthesis() *SynthesisResult {
	section := SectionScore{Score: 7, KeyFindings: []string{"finding"}, Concerns: []string{"concern"}}
	return &SynthesisResult{
		SummaryScore:   7,
		SummaryVerdict: VerdictStrong,
		SummaryPoints:  []string{"one", "two", "three"},
		Sections: SynthesisSections{
			ProblemEvidence:    section,
			CompetitorAnalysis: section,
			MarketSignals:      section,
		},
		Recommendations: []string{"a", "b", "c"},
	}
}

type progressRecord struct {
	step     string
	progress int
}

func recordProgress(records *[]progressRecord) ProgressFunc {
	return func(ctx context.Context, step string, progress int) error {
		*records = append(*records, progressRecord{step: step, progress: progress})
		return nil
	}
}

func TestConductResearchProgressSchedule(t *testing.T) {
	agent := &fakeAgent{}
	o := NewOrchestrator(agent)

	var records []progressRecord
	result, err := o.ConductResearch(context.Background(), "idea", nil, recordProgress(&records))
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, records, 8)
	values := make([]int, 0, len(records))
	for _, r := range records {
		values = append(values, r.progress)
	}
	require.Equal(t, []int{10, 30, 35, 60, 65, 80, 85, 100}, values)

	require.Equal(t, StepProblem, records[0].step)
	require.Equal(t, StepCompetitors, records[2].step)
	require.Equal(t, StepMarket, records[4].step)
	require.Equal(t, StepSynthesis, records[6].step)
	require.Equal(t, StepDone, records[7].step)
}

func TestConductResearchStagesRunInOrder(t *testing.T) {
	agent := &fakeAgent{}
	o := NewOrchestrator(agent)

	_, err := o.ConductResearch(context.Background(), "idea", nil, recordProgress(new([]progressRecord)))
	require.NoError(t, err)

	require.Len(t, agent.stagePrompts, 3)
	require.Contains(t, agent.stagePrompts[0], "problem")
	require.Contains(t, agent.stagePrompts[1], "competitive landscape")
	require.Contains(t, agent.stagePrompts[2], "market signals")
	require.Contains(t, agent.synthesisPrompt, "stage content")
}

func TestConductResearchStageFailurePropagates(t *testing.T) {
	stageErr := errors.New("gemini unavailable: quota exhausted")
	agent := &fakeAgent{
		stageFn: func(ctx context.Context, prompt string) (*StageResult, error) {
			return nil, stageErr
		},
	}
	o := NewOrchestrator(agent)

	var records []progressRecord
	result, err := o.ConductResearch(context.Background(), "idea", nil, recordProgress(&records))
	require.Nil(t, result)
	require.Equal(t, stageErr, err)

	// Only the first stage's start checkpoint fired.
	require.Len(t, records, 1)
	require.Equal(t, 10, records[0].progress)
}

func TestConductResearchSecondStageFailureAbortsRun(t *testing.T) {
	calls := 0
	agent := &fakeAgent{
		stageFn: func(ctx context.Context, prompt string) (*StageResult, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("competitor stage failed")
			}
			return &StageResult{Content: "ok"}, nil
		},
	}
	o := NewOrchestrator(agent)

	_, err := o.ConductResearch(context.Background(), "idea", nil, recordProgress(new([]progressRecord)))
	require.EqualError(t, err, "competitor stage failed")
	require.Equal(t, 2, calls)
}

func TestConductResearchSynthesisErrorFallsBack(t *testing.T) {
	agent := &fakeAgent{
		synthesisFn: func(ctx context.Context, prompt string) (*SynthesisResult, error) {
			return nil, errors.New("schema violation")
		},
	}
	o := NewOrchestrator(agent)

	result, err := o.ConductResearch(context.Background(), "idea", nil, recordProgress(new([]progressRecord)))
	require.NoError(t, err)

	require.Equal(t, 5, result.Synthesis.SummaryScore)
	require.Equal(t, VerdictModerate, result.Synthesis.SummaryVerdict)
	require.Equal(t, *FallbackSynthesis(), result.Synthesis)
}

func TestConductResearchOutOfRangeSynthesisFallsBack(t *testing.T) {
	agent := &fakeAgent{
		synthesisFn: func(ctx context.Context, prompt string) (*SynthesisResult, error) {
			syn := validSynthesis()
			syn.SummaryScore = 15
			return syn, nil
		},
	}
	o := NewOrchestrator(agent)

	result, err := o.ConductResearch(context.Background(), "idea", nil, recordProgress(new([]progressRecord)))
	require.NoError(t, err)
	require.Equal(t, 5, result.Synthesis.SummaryScore)
	require.Equal(t, VerdictModerate, result.Synthesis.SummaryVerdict)
}

func TestConductResearchMergesSourcesAcrossStages(t *testing.T) {
	calls := 0
	agent := &fakeAgent{
		stageFn: func(ctx context.Context, prompt string) (*StageResult, error) {
			calls++
			switch calls {
			case 1:
				return &StageResult{Content: "p", Sources: []Source{
					{Title: "A", URL: "https://example.com/a"},
				}}, nil
			case 2:
				return &StageResult{Content: "c", Sources: []Source{
					{Title: "A dup", URL: "HTTP://Example.com/a/"},
					{Title: "B", URL: "https://example.com/b"},
				}}, nil
			default:
				return &StageResult{Content: "m", Sources: []Source{
					{Title: "C", URL: "https://example.com/c"},
				}}, nil
			}
		},
	}
	o := NewOrchestrator(agent)

	result, err := o.ConductResearch(context.Background(), "idea", nil, recordProgress(new([]progressRecord)))
	require.NoError(t, err)

	require.Equal(t, []Source{
		{Title: "A", URL: "https://example.com/a"},
		{Title: "B", URL: "https://example.com/b"},
		{Title: "C", URL: "https://example.com/c"},
	}, result.AllSources)
}

func TestConductResearchProgressCallbackErrorAborts(t *testing.T) {
	agent := &fakeAgent{}
	o := NewOrchestrator(agent)

	cbErr := errors.New("progress store down")
	_, err := o.ConductResearch(context.Background(), "idea", nil,
		func(ctx context.Context, step string, progress int) error {
			return cbErr
		})
	require.Equal(t, cbErr, err)
}

func TestSynthesisValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SynthesisResult)
	}{
		{"score too high", func(s *SynthesisResult) { s.SummaryScore = 15 }},
		{"score too low", func(s *SynthesisResult) { s.SummaryScore = 0 }},
		{"bad verdict", func(s *SynthesisResult) { s.SummaryVerdict = "MAYBE" }},
		{"too few points", func(s *SynthesisResult) { s.SummaryPoints = []string{"one"} }},
		{"too many points", func(s *SynthesisResult) {
			s.SummaryPoints = []string{"1", "2", "3", "4", "5", "6"}
		}},
		{"section score out of range", func(s *SynthesisResult) { s.Sections.MarketSignals.Score = 11 }},
		{"too few recommendations", func(s *SynthesisResult) { s.Recommendations = nil }},
	}

	require.NoError(t, validSynthesis().Validate())
	require.NoError(t, FallbackSynthesis().Validate())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			syn := validSynthesis()
			tc.mutate(syn)
			require.Error(t, syn.Validate())
		})
	}
}

func TestConductResearchPassesTaskContext(t *testing.T) {
	agent := &fakeAgent{}
	o := NewOrchestrator(agent)

	answer := "Independent bakery owners"
	tasks := []framework.ValidationTask{
		{Title: "Who is the customer?", Completed: true, Answer: &answer},
	}

	_, err := o.ConductResearch(context.Background(), "idea", tasks, recordProgress(new([]progressRecord)))
	require.NoError(t, err)

	for _, prompt := range agent.stagePrompts {
		require.Contains(t, prompt, answer)
	}
	require.Contains(t, agent.synthesisPrompt, answer)
}
