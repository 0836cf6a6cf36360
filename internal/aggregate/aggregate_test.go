package aggregate

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/strata/internal/model"
	"github.com/spf13/afero"
)

func rec(pmid, stratum, year, risks, treatment, outcome string) model.NormalizedRecord {
	return model.NormalizedRecord{
		PMID:              pmid,
		Title:             "Study " + pmid,
		Year:              year,
		Journal:           "Journal " + pmid,
		StratumID:         stratum,
		TreatmentCategory: treatment,
		OutcomeDirection:  outcome,
		RiskFactors:       risks,
		Symptoms:          "Low mood",
	}
}

func fixture() []model.NormalizedRecord {
	return []model.NormalizedRecord{
		rec("1", "adults", "2015", "Stress; Poverty", "CBT", "improvement"),
		rec("1", "adults", "2015", "Stress; Poverty", "medication", "improvement"),
		rec("2", "adults", "2019", "stress", "CBT", "no_change"),
		rec("3", "adults", "n/a", "unknown", "unspecified", "unspecified"),
		rec("4", "children", "2020", "Bullying", "CBT", "improvement"),
	}
}

func TestApportion(t *testing.T) {
	tests := []struct {
		counts []int
		want   []float64
	}{
		{[]int{1, 1, 1}, []float64{33.34, 33.33, 33.33}},
		{[]int{2, 1}, []float64{66.67, 33.33}},
		{[]int{5}, []float64{100}},
		{[]int{0, 0}, []float64{0, 0}},
		{nil, []float64{}},
	}

	for _, tt := range tests {
		got := Apportion(tt.counts)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Apportion(%v) mismatch (-want +got):\n%s", tt.counts, diff)
		}
	}
}

func TestApportion_SumsToHundred(t *testing.T) {
	inputs := [][]int{
		{7, 3, 3, 1},
		{1, 1, 1, 1, 1, 1},
		{13, 11, 7, 5, 3, 2, 1},
		{999, 1},
		{2, 2, 2, 1, 1, 1, 1},
	}

	for _, counts := range inputs {
		units := 0
		for _, p := range Apportion(counts) {
			units += int(math.Round(p * 100))
		}
		if units != 10000 {
			t.Errorf("Apportion(%v) sums to %d hundredths, want 10000", counts, units)
		}
	}
}

func TestAggregate(t *testing.T) {
	res := NewAggregator(Options{MinStratumSize: 2}).Aggregate(fixture())

	if diff := cmp.Diff([]string{"children"}, res.Excluded); diff != "" {
		t.Errorf("excluded mismatch (-want +got):\n%s", diff)
	}
	if len(res.Summaries) != 1 {
		t.Fatalf("expected 1 reported stratum, got %d", len(res.Summaries))
	}

	s := res.Summaries[0]
	if s.StratumID != "adults" || s.Label != "Adults" {
		t.Errorf("unexpected stratum %s (%s)", s.StratumID, s.Label)
	}
	if s.TotalRecords != 4 || s.UniqueStudies != 3 || s.JournalsCount != 3 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.YearRange != "2015-2019" {
		t.Errorf("expected year range 2015-2019, got %s", s.YearRange)
	}
	if s.TopRiskFactor != "stress" || s.TopTreatment != "CBT" || s.TopOutcome != "improvement" {
		t.Errorf("unexpected tops: %s / %s / %s", s.TopRiskFactor, s.TopTreatment, s.TopOutcome)
	}
	if s.Components.AgeGroup != model.AgeAdults {
		t.Errorf("expected adults component, got %+v", s.Components)
	}

	wantRisks := []model.Frequency{
		{StratumID: "adults", Item: "stress", Count: 2, TotalStudies: 3, Percentage: 50, StudyPercentage: 66.67},
		{StratumID: "adults", Item: "poverty", Count: 1, TotalStudies: 3, Percentage: 25, StudyPercentage: 33.33},
		{StratumID: "adults", Item: "unknown", Count: 1, TotalStudies: 3, Percentage: 25, StudyPercentage: 33.33},
	}
	if diff := cmp.Diff(wantRisks, res.RiskFactors); diff != "" {
		t.Errorf("risk factors mismatch (-want +got):\n%s", diff)
	}

	var outcomes []string
	for _, f := range res.Outcomes {
		outcomes = append(outcomes, f.Item)
	}
	if diff := cmp.Diff([]string{"improvement", "no_change", "unspecified"}, outcomes); diff != "" {
		t.Errorf("outcome order mismatch (-want +got):\n%s", diff)
	}

	if len(res.TreatmentOutcomes) != 4 {
		t.Fatalf("expected 4 treatment/outcome pairs, got %d", len(res.TreatmentOutcomes))
	}
	first := res.TreatmentOutcomes[0]
	if first.Treatment != "CBT" || first.Outcome != "improvement" || first.Percentage != 25 {
		t.Errorf("unexpected first pair: %+v", first)
	}
}

func TestAggregate_MeaningfulOnly(t *testing.T) {
	res := NewAggregator(Options{MinStratumSize: 1, MeaningfulOnly: true}).Aggregate(fixture())

	for _, f := range ForStratum(res.RiskFactors, "adults") {
		if f.Item == "unknown" {
			t.Error("expected unknown risk factor dropped")
		}
	}
	for _, f := range res.Treatments {
		if f.Item == model.Unspecified {
			t.Error("expected unspecified treatment dropped")
		}
	}
	adults := ForStratum(res.RiskFactors, "adults")
	if len(adults) != 2 || adults[0].Percentage != 66.67 || adults[1].Percentage != 33.33 {
		t.Errorf("unexpected meaningful risk factors: %+v", adults)
	}
}

func TestAggregate_PercentagesSumPerStratum(t *testing.T) {
	res := NewAggregator(Options{MinStratumSize: 1}).Aggregate(fixture())

	for _, kind := range []model.TableKind{model.TableRiskFactors, model.TableSymptoms, model.TableTreatments, model.TableOutcomes} {
		sums := make(map[string]int)
		for _, f := range res.Frequencies(kind) {
			sums[f.StratumID] += int(math.Round(f.Percentage * 100))
		}
		for stratum, units := range sums {
			if units != 10000 {
				t.Errorf("%s/%s sums to %d hundredths", kind, stratum, units)
			}
		}
	}

	sums := make(map[string]int)
	for _, to := range res.TreatmentOutcomes {
		sums[to.StratumID] += int(math.Round(to.Percentage * 100))
	}
	for stratum, units := range sums {
		if units != 10000 {
			t.Errorf("treatment_outcomes/%s sums to %d hundredths", stratum, units)
		}
	}
}

func TestAggregate_DeterministicOutput(t *testing.T) {
	records := fixture()
	reversed := make([]model.NormalizedRecord, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}

	a := NewAggregator(Options{MinStratumSize: 1})
	fsA, fsB := afero.NewMemMapFs(), afero.NewMemMapFs()
	if _, err := a.Aggregate(records).Save(fsA, "tables"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := a.Aggregate(reversed).Save(fsB, "tables"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for _, kind := range model.AllTables {
		path := "tables/" + kind.FileName()
		first, err := afero.ReadFile(fsA, path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		second, err := afero.ReadFile(fsB, path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("%s differs between runs", kind.FileName())
		}
	}
}

func TestResults_SaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	res := NewAggregator(Options{MinStratumSize: 1}).Aggregate(fixture())

	paths, err := res.Save(fs, "out/tables")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(paths) != len(model.AllTables) {
		t.Errorf("expected %d files, got %d", len(model.AllTables), len(paths))
	}

	loaded, err := Load(fs, "out/tables")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	res.Excluded = nil
	if diff := cmp.Diff(res, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingSummary(t *testing.T) {
	if _, err := Load(afero.NewMemMapFs(), "nowhere"); err == nil {
		t.Error("expected error when stratum summary is missing")
	}
}

func TestTotals(t *testing.T) {
	freqs := []model.Frequency{
		{StratumID: "a", Item: "CBT", Count: 3},
		{StratumID: "a", Item: "exercise", Count: 1},
		{StratumID: "b", Item: "CBT", Count: 1},
		{StratumID: "b", Item: "medication", Count: 1},
	}

	want := []model.CategoryShare{
		{Name: "CBT", Count: 4, Percentage: 66.67},
		{Name: "exercise", Count: 1, Percentage: 16.67},
		{Name: "medication", Count: 1, Percentage: 16.66},
	}
	if diff := cmp.Diff(want, Totals(freqs)); diff != "" {
		t.Errorf("totals mismatch (-want +got):\n%s", diff)
	}
}

func TestIsMeaningless(t *testing.T) {
	for _, v := range []string{"", "Unspecified", " N/A ", "unknown factors", "None", "not reported"} {
		if !IsMeaningless(v) {
			t.Errorf("expected %q meaningless", v)
		}
	}
	for _, v := range []string{"stress", "national", "CBT"} {
		if IsMeaningless(v) {
			t.Errorf("expected %q meaningful", v)
		}
	}
}
