package split

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/strata/internal/dataset"
	"github.com/ppiankov/strata/internal/model"
)

const numberedOutput = `1. **Population in focus**: Adolescents aged 12-17 attending secondary schools
2. **Risk Factors**:
   - Academic pressure
   - Family conflict
3. **Symptoms**: Low mood, anhedonia and sleep disturbance
4. **Treatments/Interventions**:
   - Cognitive behavioral therapy
   - School-based mindfulness program
5. **Outcomes**: Significant improvement in depressive symptoms
**Chain of Thought**: The abstract describes a school trial.`

func TestSplitter_NumberedSections(t *testing.T) {
	s := NewSplitter()

	got := s.Extract(numberedOutput)
	want := map[string]string{
		model.ColPopulation:     "Adolescents aged 12-17 attending secondary schools",
		model.ColRiskFactors:    "Academic pressure; Family conflict",
		model.ColSymptoms:       "Low mood, anhedonia and sleep disturbance",
		model.ColTreatments:     "Cognitive behavioral therapy; School-based mindfulness program",
		model.ColOutcomes:       "Significant improvement in depressive symptoms",
		model.ColChainOfThought: "The abstract describes a school trial.",
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitter_EarliestKeywordWins(t *testing.T) {
	s := NewSplitter()

	got := s.Extract("Treatment outcomes: reduced anxiety after exposure therapy")
	if got[model.ColTreatments] == "" {
		t.Errorf("expected label to map to treatments, got %+v", got)
	}
	if got[model.ColOutcomes] != "" {
		t.Errorf("expected outcomes empty, got %q", got[model.ColOutcomes])
	}
}

func TestSplitter_ShortBodiesIgnored(t *testing.T) {
	s := NewSplitter()

	text := "Population: adults\nPopulation: Adults with type 2 diabetes\nReasoning: ok"
	got := s.Extract(text)

	if got[model.ColPopulation] != "Adults with type 2 diabetes" {
		t.Errorf("expected second population section, got %q", got[model.ColPopulation])
	}
	if got[model.ColChainOfThought] != "ok" {
		t.Errorf("expected chain of thought without length floor, got %q", got[model.ColChainOfThought])
	}
}

func TestSplitter_ContinuationLines(t *testing.T) {
	s := NewSplitter()

	text := "Intro line without label\n- Symptoms: persistent worry\n  about health and restlessness"
	got := s.Extract(text)

	if got[model.ColSymptoms] != "persistent worry about health and restlessness" {
		t.Errorf("unexpected symptoms: %q", got[model.ColSymptoms])
	}
}

func TestSplitter_BulletItemsWithColons(t *testing.T) {
	s := NewSplitter()

	text := strings.Join([]string{
		"1. Population: Nurses working rotating shifts in tertiary hospitals",
		"2. Risk Factors:",
		"   - Job strain and long working hours",
		"   - Treatment non-adherence: missed sessions reported",
		"   - Social isolation among participants",
		"3. Treatments:",
		"   - Cognitive behavioral therapy: 12 weekly sessions",
		"   - Mindfulness program for stress",
		"4. Outcomes: Reduced burnout scores at follow-up",
	}, "\n")

	got := s.Extract(text)
	want := map[string]string{
		model.ColPopulation:     "Nurses working rotating shifts in tertiary hospitals",
		model.ColRiskFactors:    "Job strain and long working hours; Treatment non-adherence: missed sessions reported; Social isolation among participants",
		model.ColSymptoms:       "",
		model.ColTreatments:     "Cognitive behavioral therapy: 12 weekly sessions; Mindfulness program for stress",
		model.ColOutcomes:       "Reduced burnout scores at follow-up",
		model.ColChainOfThought: "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitter_BulletedLabels(t *testing.T) {
	s := NewSplitter()

	text := strings.Join([]string{
		"- Population: Older adults in community care",
		"- Risk factors: bereavement and chronic illness",
		"- **Treatments**:",
		"  - Interpersonal psychotherapy",
		"  - Antidepressant medication",
		"- Outcomes: Improved mood after 12 weeks",
	}, "\n")

	got := s.Extract(text)
	if got[model.ColPopulation] != "Older adults in community care" {
		t.Errorf("unexpected population: %q", got[model.ColPopulation])
	}
	if got[model.ColRiskFactors] != "bereavement and chronic illness" {
		t.Errorf("unexpected risk factors: %q", got[model.ColRiskFactors])
	}
	if got[model.ColTreatments] != "Interpersonal psychotherapy; Antidepressant medication" {
		t.Errorf("unexpected treatments: %q", got[model.ColTreatments])
	}
	if got[model.ColOutcomes] != "Improved mood after 12 weeks" {
		t.Errorf("unexpected outcomes: %q", got[model.ColOutcomes])
	}
}

func TestSplitter_EmptyText(t *testing.T) {
	got := NewSplitter().Extract("")
	if len(got) != len(model.ExtractedFields) {
		t.Fatalf("expected %d fields, got %d", len(model.ExtractedFields), len(got))
	}
	for f, v := range got {
		if v != "" {
			t.Errorf("expected %s empty, got %q", f, v)
		}
	}
}

func TestSplit_Table(t *testing.T) {
	input := "pmid,title,gpt_output,population\n" +
		"1,Trial,\"Population: Older adults in primary care\nOutcomes: No significant change observed\",stale\n" +
		"2,Other,nan,\n"

	table, err := dataset.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	out, coverage, err := NewSplitter().Split(table)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	wantCols := []string{"pmid", "title", "gpt_output", "population", "risk_factors", "symptoms", "treatments", "outcomes", "chain_of_thought"}
	if diff := cmp.Diff(wantCols, out.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if got := out.Get(0, model.ColPopulation); got != "Older adults in primary care" {
		t.Errorf("expected population overwritten, got %q", got)
	}
	if got := out.Get(1, model.ColPopulation); got != "" {
		t.Errorf("expected empty population for nan output, got %q", got)
	}
	if table.Get(0, model.ColPopulation) != "stale" {
		t.Error("expected input table to be left untouched")
	}

	if len(coverage) != len(model.ExtractedFields) {
		t.Fatalf("expected coverage for every field, got %d", len(coverage))
	}
	if coverage[0].Field != model.ColPopulation || coverage[0].Count != 1 {
		t.Errorf("unexpected population coverage: %+v", coverage[0])
	}
}

func TestSplit_MissingColumn(t *testing.T) {
	table := dataset.New([]string{"pmid"})
	_, _, err := NewSplitter().Split(table)
	if !errors.Is(err, ErrNoGPTOutput) {
		t.Errorf("expected ErrNoGPTOutput, got %v", err)
	}
}
