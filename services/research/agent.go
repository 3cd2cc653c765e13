package research

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// Agent is the external generative capability the orchestrator drives.
// Neither operation retries internally; callers own retry and fallback
// policy.
type Agent interface {
	// ResearchWithGrounding generates free text with web-search grounding.
	// A response without a usable candidate yields an empty result, not an
	// error; absence of grounding data is normal.
	ResearchWithGrounding(ctx context.Context, prompt string) (*StageResult, error)

	// GenerateSynthesis generates a schema-constrained synthesis. Any
	// failure (API error, malformed output, bounds violation) is an error;
	// there is no partial-success mode.
	GenerateSynthesis(ctx context.Context, prompt string) (*SynthesisResult, error)
}

type geminiAgent struct {
	client *genai.Client
	model  string
}

// NewGeminiAgent builds the Gemini-backed research agent.
func NewGeminiAgent(client *genai.Client, model string) Agent {
	return &geminiAgent{client: client, model: model}
}

func (a *geminiAgent) ResearchWithGrounding(ctx context.Context, prompt string) (*StageResult, error) {
	resp, err := a.client.Models.GenerateContent(ctx, a.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("grounded generation failed: %w", err)
	}

	out := &StageResult{}
	if resp == nil || len(resp.Candidates) == 0 {
		return out, nil
	}

	out.Content = resp.Text()

	if gm := resp.Candidates[0].GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			out.Sources = append(out.Sources, Source{
				Title: chunk.Web.Title,
				URL:   chunk.Web.URI,
			})
		}
		out.SearchQueries = gm.WebSearchQueries
	}

	return out, nil
}

func (a *geminiAgent) GenerateSynthesis(ctx context.Context, prompt string) (*SynthesisResult, error) {
	resp, err := a.client.Models.GenerateContent(ctx, a.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   synthesisSchema(),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("synthesis generation failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("synthesis returned no candidates")
	}

	var syn SynthesisResult
	if err := json.Unmarshal([]byte(resp.Text()), &syn); err != nil {
		return nil, fmt.Errorf("synthesis output is not valid JSON: %w", err)
	}

	if err := syn.Validate(); err != nil {
		return nil, fmt.Errorf("synthesis output violates schema: %w", err)
	}

	return &syn, nil
}

func sectionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score": {
				Type:    genai.TypeInteger,
				Minimum: genai.Ptr(1.0),
				Maximum: genai.Ptr(10.0),
			},
			"keyFindings": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"concerns": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"score", "keyFindings", "concerns"},
	}
}

func synthesisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summaryScore": {
				Type:    genai.TypeInteger,
				Minimum: genai.Ptr(1.0),
				Maximum: genai.Ptr(10.0),
			},
			"summaryVerdict": {
				Type: genai.TypeString,
				Enum: []string{string(VerdictStrong), string(VerdictModerate), string(VerdictWeak)},
			},
			"summaryPoints": {
				Type:     genai.TypeArray,
				Items:    &genai.Schema{Type: genai.TypeString},
				MinItems: genai.Ptr[int64](3),
				MaxItems: genai.Ptr[int64](5),
			},
			"sections": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"problemEvidence":    sectionSchema(),
					"competitorAnalysis": sectionSchema(),
					"marketSignals":      sectionSchema(),
				},
				Required: []string{"problemEvidence", "competitorAnalysis", "marketSignals"},
			},
			"recommendations": {
				Type:     genai.TypeArray,
				Items:    &genai.Schema{Type: genai.TypeString},
				MinItems: genai.Ptr[int64](3),
				MaxItems: genai.Ptr[int64](5),
			},
		},
		Required: []string{"summaryScore", "summaryVerdict", "summaryPoints", "sections", "recommendations"},
	}
}
