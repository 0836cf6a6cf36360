package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/strata/internal/dataset"
	"github.com/ppiankov/strata/internal/llm"
	"github.com/ppiankov/strata/internal/model"
	"github.com/ppiankov/strata/internal/report"
	"github.com/spf13/afero"
)

func gptOutput(population, risks, symptoms, treatments, outcomes string) string {
	return strings.Join([]string{
		"1. Population: " + population,
		"2. Risk factors: " + risks,
		"3. Symptoms: " + symptoms,
		"4. Treatments: " + treatments,
		"5. Outcomes: " + outcomes,
		"6. Chain of thought: extracted from abstract",
	}, "\n")
}

func writeInput(t *testing.T, fs afero.Fs, path string) {
	t.Helper()

	in := dataset.New([]string{"pmid", "title", "abstract", "year", "journal", "gpt_output"})
	in.Append([]string{"1", "CBT in diabetes", "a", "2018", "Diabetes Care",
		gptOutput("adults with type 2 diabetes", "poor glycemic control; social isolation", "depressed mood; fatigue", "cognitive behavioral therapy; sertraline medication", "significant improvement in depression scores")})
	in.Append([]string{"2", "Exercise and diabetes", "b", "2020", "diabetes care",
		gptOutput("adults with type 2 diabetes in primary care", "social isolation and loneliness", "fatigue and low energy", "aerobic exercise program", "reduced depressive symptoms")})
	in.Append([]string{"3", "Late-life depression", "c", "2016", "Age Ageing",
		gptOutput("older adults living in nursing homes", "bereavement and loss", "anhedonia and withdrawal", "interpersonal psychotherapy", "no significant difference")})
	in.Append([]string{"4", "Inpatient women", "d", "2022", "BMJ",
		gptOutput("women recruited from hospital wards", "trauma history exposure", "anxiety and insomnia", "mindfulness-based stress reduction", "mixed results across scales")})
	in.Append([]string{"", "", "e", "2021", "Unknown", gptOutput("adults", "x", "y", "z", "w")})

	if err := dataset.WriteCSV(fs, path, in); err != nil {
		t.Fatalf("write input: %v", err)
	}
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Analysis.MinStratumSize = 1
	return cfg
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
}

func TestRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/in/studies.csv")

	var progress bytes.Buffer
	p := New(fs, testConfig(), Options{Progress: &progress, Now: fixedNow})
	layout := LayoutFor(testConfig().Paths, "/out")

	run, err := p.Run(context.Background(), "/in/studies.csv", layout)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Split.Rows != 5 {
		t.Errorf("expected 5 split rows, got %d", run.Split.Rows)
	}
	if run.Normalized.SkippedRows != 1 {
		t.Errorf("expected 1 skipped row, got %d", run.Normalized.SkippedRows)
	}
	if got := run.Normalized.StrataCounts["adults_diabetes"]; got != 2 {
		t.Errorf("expected 2 studies in adults_diabetes, got %d", got)
	}
	if run.Report.Overview.TotalStudies != 4 {
		t.Errorf("expected 4 studies in report, got %d", run.Report.Overview.TotalStudies)
	}
	if run.Insights != nil || run.Report.Narratives != nil {
		t.Error("expected no narratives without a narrator")
	}
	if !strings.Contains(strings.ToLower(run.Summary), "adults") {
		t.Errorf("summary does not mention strata:\n%s", run.Summary)
	}

	for _, path := range []string{
		"/out/" + FileSplit,
		"/out/" + FileNormalized,
		filepath.Join(layout.Tables, model.TableStratumSummary.FileName()),
		filepath.Join(layout.Tables, model.TableTreatmentOutcomes.FileName()),
		filepath.Join(layout.Plots, "stratum_overview.html"),
		filepath.Join(layout.Report, report.FileReportJSON),
		filepath.Join(layout.Report, report.FileOutlineJSON),
		filepath.Join(layout.Report, report.FileReportHTML),
		filepath.Join(layout.Report, report.FileSummaryText),
	} {
		if ok, _ := afero.Exists(fs, path); !ok {
			t.Errorf("expected %s to exist", path)
		}
	}

	if !strings.Contains(progress.String(), "✓ Wrote /out/"+FileSplit) {
		t.Errorf("expected progress lines, got:\n%s", progress.String())
	}
}

func TestRun_Deterministic(t *testing.T) {
	outputs := make([]map[string]string, 2)
	for i := range outputs {
		fs := afero.NewMemMapFs()
		writeInput(t, fs, "/in/studies.csv")
		p := New(fs, testConfig(), Options{Now: fixedNow})
		if _, err := p.Run(context.Background(), "/in/studies.csv", LayoutFor(testConfig().Paths, "/out")); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}

		files := make(map[string]string)
		_ = afero.Walk(fs, "/out", func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			data, readErr := afero.ReadFile(fs, path)
			if readErr != nil {
				return readErr
			}
			files[path] = string(data)
			return nil
		})
		outputs[i] = files
	}

	if len(outputs[0]) == 0 {
		t.Fatal("expected output files")
	}
	if diff := cmp.Diff(outputs[0], outputs[1]); diff != "" {
		t.Errorf("outputs differ between runs (-first +second):\n%s", diff)
	}
}

type echoProvider struct{}

func (echoProvider) Name() string     { return "echo" }
func (echoProvider) Model() string    { return "echo-1" }
func (echoProvider) Endpoint() string { return "http://echo.local" }

func (echoProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Text: "narrative"}, nil
}

func TestRun_WithNarratives(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/in/studies.csv")

	narrator := llm.NewNarrator(echoProvider{}, llm.NarratorOptions{Workers: 2, TopStrata: 2})
	p := New(fs, testConfig(), Options{Now: fixedNow, Narrator: narrator})
	layout := LayoutFor(testConfig().Paths, "/out")

	run, err := p.Run(context.Background(), "/in/studies.csv", layout)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Insights == nil || len(run.Insights.Insights) != 2 {
		t.Fatalf("expected 2 insights, got %+v", run.Insights)
	}
	if run.Insights.Insights[0].StratumID != "adults_diabetes" {
		t.Errorf("expected largest stratum first, got %s", run.Insights.Insights[0].StratumID)
	}
	if run.Report.Narratives == nil || run.Report.Narratives.Comparative != "narrative" {
		t.Error("expected report to embed the narratives")
	}
	for _, name := range []string{report.FileInsightsJSON, report.FileInsightsMD} {
		if ok, _ := afero.Exists(fs, filepath.Join(layout.Report, name)); !ok {
			t.Errorf("expected %s to exist", name)
		}
	}
}

func TestRun_DropsEarlierNarratives(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/in/studies.csv")
	layout := LayoutFor(testConfig().Paths, "/out")

	narrator := llm.NewNarrator(echoProvider{}, llm.NarratorOptions{TopStrata: 2})
	withLLM := New(fs, testConfig(), Options{Now: fixedNow, Narrator: narrator})
	if _, err := withLLM.Run(context.Background(), "/in/studies.csv", layout); err != nil {
		t.Fatalf("Run with narratives failed: %v", err)
	}

	plain := New(fs, testConfig(), Options{Now: fixedNow})

	// The standalone report step picks up narratives saved next to it
	r, err := plain.Report(layout.Tables, layout.Plots, layout.Report)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if r.Narratives == nil || len(r.Narratives.Insights) != 2 {
		t.Fatalf("expected saved narratives in report, got %+v", r.Narratives)
	}

	run, err := plain.Run(context.Background(), "/in/studies.csv", layout)
	if err != nil {
		t.Fatalf("Run without narratives failed: %v", err)
	}
	if run.Insights != nil {
		t.Errorf("expected no insights, got %+v", run.Insights)
	}
	if run.Report.Narratives != nil {
		t.Errorf("expected report without narratives, got %+v", run.Report.Narratives)
	}
	for _, name := range []string{report.FileInsightsJSON, report.FileInsightsMD} {
		if ok, _ := afero.Exists(fs, filepath.Join(layout.Report, name)); ok {
			t.Errorf("expected %s from the earlier run to be removed", name)
		}
	}

	data, err := afero.ReadFile(fs, filepath.Join(layout.Report, report.FileReportJSON))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if strings.Contains(string(data), `"narratives"`) {
		t.Error("report.json still embeds narratives")
	}
}

func TestNarratives_Disabled(t *testing.T) {
	p := New(afero.NewMemMapFs(), testConfig(), Options{})
	if _, err := p.Narratives(context.Background(), "/t", "/r"); !errors.Is(err, llm.ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/in/studies.csv")
	p := New(fs, testConfig(), Options{})

	if _, err := p.Split("/in/studies.csv", "/out/split.csv"); err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	res, err := p.Load("/out/split.csv", true)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.Stats.TotalRecords != 5 {
		t.Errorf("expected 5 records, got %d", res.Stats.TotalRecords)
	}
	if res.Stats.YearRange() != "2016-2022" {
		t.Errorf("expected year range 2016-2022, got %s", res.Stats.YearRange())
	}
	if len(res.MissingColumns) != 0 {
		t.Errorf("expected no missing columns, got %v", res.MissingColumns)
	}
}

func TestLoad_StrictMissingColumns(t *testing.T) {
	fs := afero.NewMemMapFs()
	in := dataset.New([]string{"pmid", "title"})
	in.Append([]string{"1", "t"})
	_ = dataset.WriteCSV(fs, "/in.csv", in)

	p := New(fs, testConfig(), Options{})
	if _, err := p.Load("/in.csv", true); !errors.Is(err, dataset.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}

	res, err := p.Load("/in.csv", false)
	if err != nil {
		t.Fatalf("lenient Load failed: %v", err)
	}
	if len(res.MissingColumns) != len(dataset.RequiredColumns)-2 {
		t.Errorf("unexpected missing columns: %v", res.MissingColumns)
	}
}

func TestSplit_NoGPTOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	in := dataset.New([]string{"pmid"})
	_ = dataset.WriteCSV(fs, "/in.csv", in)

	p := New(fs, testConfig(), Options{})
	if _, err := p.Split("/in.csv", "/out.csv"); err == nil {
		t.Error("expected error for input without gpt_output")
	}
}

func TestLayoutFor(t *testing.T) {
	paths := model.DefaultConfig().Paths
	got := LayoutFor(paths, "")
	want := Layout{Root: "outputs", Tables: "outputs/tables", Plots: "outputs/plots", Report: "outputs/report"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LayoutFor mismatch (-want +got):\n%s", diff)
	}
}
