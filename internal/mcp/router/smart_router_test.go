package router

import (
	"testing"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

func TestSelectPrefersQualityUnderQualityPriority(t *testing.T) {
	r := New("gpt-4o-mini")
	model := r.Select(models.SelectionRequest{
		TaskType:            models.TaskCode,
		Complexity:          models.ComplexityHigh,
		Priority:            models.OptimizeQuality,
		PromptTokenEstimate: 500,
		OutputTokenEstimate: 500,
	})
	if model == "" {
		t.Fatalf("expected a model to be selected")
	}
}

func TestSelectRespectsPreferredProvider(t *testing.T) {
	r := New("gpt-4o-mini")
	model := r.Select(models.SelectionRequest{
		TaskType:          models.TaskGeneral,
		Complexity:        models.ComplexityLow,
		PreferredProvider: models.ProviderGemini,
		Priority:          models.OptimizeCost,
	})
	provider, ok := r.ProviderOf(model)
	if !ok {
		t.Fatalf("expected selected model %q to be known", model)
	}
	if provider != models.ProviderGemini {
		t.Fatalf("expected provider gemini, got %s", provider)
	}
}

func TestSelectFallsBackWhenNoCandidateEligible(t *testing.T) {
	r := New("gpt-4o-mini")
	model := r.Select(models.SelectionRequest{
		TaskType:             models.TaskGeneral,
		Complexity:           models.ComplexityHigh,
		RequiredCapabilities: []string{"a-capability-nothing-has"},
		Priority:             models.OptimizeQuality,
	})
	if model != "gpt-4o-mini" {
		t.Fatalf("expected fallback to default model, got %s", model)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	r := New("gpt-4o-mini")
	req := models.SelectionRequest{
		TaskType:            models.TaskGeneral,
		Complexity:          models.ComplexityMedium,
		Priority:            models.OptimizeCost,
		PromptTokenEstimate: 100,
		OutputTokenEstimate: 100,
	}
	first := r.Select(req)
	for i := 0; i < 10; i++ {
		if got := r.Select(req); got != first {
			t.Fatalf("expected deterministic selection, got %s then %s", first, got)
		}
	}
}

func TestOverrideChangesEligibility(t *testing.T) {
	r := New("gpt-4o-mini")
	low := 0.0
	r.Override("gpt-4o-mini", models.PartialModelMetadata{
		Capabilities: map[string]float64{models.CapCodeGeneration: low},
	})

	model := r.Select(models.SelectionRequest{
		TaskType:             models.TaskCode,
		Complexity:           models.ComplexityLow,
		RequiredCapabilities: []string{models.CapCodeGeneration},
		PreferredProvider:    models.ProviderOpenAI,
		Priority:             models.OptimizeCost,
	})
	if model == "gpt-4o-mini" {
		t.Fatalf("expected gpt-4o-mini to be ineligible after override, but it was selected")
	}
}

func TestPresetOrderingInvariant(t *testing.T) {
	presets := Presets()
	if len(presets) != 3 {
		t.Fatalf("expected 3 presets, got %d", len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i].Defaults.MinSimilarity <= presets[i-1].Defaults.MinSimilarity {
			t.Fatalf("expected strictly increasing minSimilarity across presets, got %v then %v",
				presets[i-1].Defaults.MinSimilarity, presets[i].Defaults.MinSimilarity)
		}
	}
	conservative := PresetByName(models.StrategyConservative)
	if conservative.CacheStrategy != models.CacheStrategyExact {
		t.Fatalf("expected conservative preset to be exact-only, got %s", conservative.CacheStrategy)
	}
}

func TestInferPriority(t *testing.T) {
	cases := []struct {
		meta models.RequestMetadata
		want models.Priority
	}{
		{models.RequestMetadata{Type: "interactive_chat"}, models.PriorityHigh},
		{models.RequestMetadata{Type: "batch_job"}, models.PriorityLow},
		{models.RequestMetadata{Type: "something_else"}, models.PriorityNormal},
		{models.RequestMetadata{Priority: "critical"}, models.PriorityHigh},
	}
	for _, c := range cases {
		if got := InferPriority(c.meta); got != c.want {
			t.Fatalf("InferPriority(%+v) = %s, want %s", c.meta, got, c.want)
		}
	}
}
