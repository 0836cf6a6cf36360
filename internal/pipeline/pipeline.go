package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/strata/internal/aggregate"
	"github.com/ppiankov/strata/internal/dataset"
	"github.com/ppiankov/strata/internal/llm"
	"github.com/ppiankov/strata/internal/logging"
	"github.com/ppiankov/strata/internal/model"
	"github.com/ppiankov/strata/internal/normalize"
	"github.com/ppiankov/strata/internal/report"
	"github.com/ppiankov/strata/internal/split"
	"github.com/ppiankov/strata/internal/viz"
	"github.com/spf13/afero"
)

// Intermediate files written by Run under the output root
const (
	FileSplit      = "split_records.csv"
	FileNormalized = "normalized_records.csv"
)

// Options configures a pipeline
type Options struct {
	Progress io.Writer        // Receives "✓ ..." lines; nil discards them
	Now      func() time.Time // Report timestamps; defaults to time.Now
	Narrator *llm.Narrator    // Nil skips narratives in Run
}

// Pipeline runs the split → normalize → analyze → visualize → report steps over a file system
type Pipeline struct {
	fs       afero.Fs
	cfg      *model.Config
	out      io.Writer
	now      func() time.Time
	narrator *llm.Narrator
}

// New creates a pipeline
func New(fs afero.Fs, cfg *model.Config, opts Options) *Pipeline {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		fs:       fs,
		cfg:      cfg,
		out:      opts.Progress,
		now:      opts.Now,
		narrator: opts.Narrator,
	}
}

// Layout is the directory structure of a run
type Layout struct {
	Root   string
	Tables string
	Plots  string
	Report string
}

// LayoutFor resolves the configured subdirectories under root
func LayoutFor(paths model.PathsConfig, root string) Layout {
	if root == "" {
		root = paths.OutputDir
	}
	return Layout{
		Root:   root,
		Tables: filepath.Join(root, paths.TablesDir),
		Plots:  filepath.Join(root, paths.PlotsDir),
		Report: filepath.Join(root, paths.ReportDir),
	}
}

func (p *Pipeline) wrote(path string) {
	fmt.Fprintf(p.out, "✓ Wrote %s\n", path)
}

// SplitResult describes a split step
type SplitResult struct {
	Rows     int
	Coverage []dataset.FieldCompleteness
}

// Split extracts the field columns from the gpt_output column of in and writes them to out
func (p *Pipeline) Split(in, out string) (*SplitResult, error) {
	t, err := dataset.ReadCSV(p.fs, in)
	if err != nil {
		return nil, err
	}

	result, coverage, err := split.NewSplitter().Split(t)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", in, err)
	}

	log := logging.L()
	for _, c := range coverage {
		log.Info("field coverage", "field", c.Field, "count", c.Count, "percent", c.Percentage)
	}

	if err := dataset.WriteCSV(p.fs, out, result); err != nil {
		return nil, err
	}
	p.wrote(out)

	return &SplitResult{Rows: result.Len(), Coverage: coverage}, nil
}

// LoadResult describes a loaded dataset
type LoadResult struct {
	Stats          dataset.Stats
	MissingColumns []string
	EmptyColumns   []string
}

// Load reads a split dataset and summarizes it. With strict set, missing
// required columns are an error; otherwise they are reported.
func (p *Pipeline) Load(path string, strict bool) (*LoadResult, error) {
	t, err := dataset.ReadCSV(p.fs, path)
	if err != nil {
		return nil, err
	}

	res := &LoadResult{}
	for _, col := range dataset.RequiredColumns {
		if !t.Has(col) {
			res.MissingColumns = append(res.MissingColumns, col)
		}
	}
	if strict {
		if err := t.Require(dataset.RequiredColumns...); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	log := logging.L()
	for _, col := range res.MissingColumns {
		log.Warn("missing required column", "column", col)
	}
	res.EmptyColumns = dataset.EmptyColumns(t, t.Columns)
	for _, col := range res.EmptyColumns {
		log.Warn("column has no values", "column", col)
	}

	res.Stats = dataset.Summarize(t, model.ExtractedFields)
	return res, nil
}

// Normalize assigns strata to the split dataset in and writes the long-format records to out
func (p *Pipeline) Normalize(in, out string) (*normalize.Result, error) {
	t, err := dataset.ReadCSV(p.fs, in)
	if err != nil {
		return nil, err
	}

	res := normalize.NewNormalizer().Normalize(t)
	if err := dataset.WriteCSV(p.fs, out, normalize.ToTable(res.Records)); err != nil {
		return nil, err
	}
	p.wrote(out)

	return res, nil
}

func (p *Pipeline) records(path string) ([]model.NormalizedRecord, error) {
	t, err := dataset.ReadCSV(p.fs, path)
	if err != nil {
		return nil, err
	}
	records, err := normalize.FromTable(t)
	if err != nil {
		return nil, fmt.Errorf("read normalized records %s: %w", path, err)
	}
	return records, nil
}

// Analyze aggregates normalized records from in and writes the stratum tables into dir
func (p *Pipeline) Analyze(in, dir string) (*aggregate.Results, error) {
	records, err := p.records(in)
	if err != nil {
		return nil, err
	}

	res := aggregate.NewAggregator(aggregate.Options{
		MinStratumSize: p.cfg.Analysis.MinStratumSize,
		MeaningfulOnly: p.cfg.Analysis.MeaningfulOnly,
	}).Aggregate(records)

	paths, err := res.Save(p.fs, dir)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		p.wrote(path)
	}

	return res, nil
}

// Visualize renders charts from the tables in tablesDir. The flow chart needs
// the normalized records; an empty recordsPath skips it.
func (p *Pipeline) Visualize(tablesDir, recordsPath, plotsDir string) ([]model.ChartRef, error) {
	res, err := aggregate.Load(p.fs, tablesDir)
	if err != nil {
		return nil, err
	}

	var records []model.NormalizedRecord
	if recordsPath != "" {
		records, err = p.records(recordsPath)
		if err != nil {
			return nil, err
		}
	}

	renderer := viz.NewRenderer(p.fs, viz.Options{
		TopStrata:      p.cfg.Charts.TopStrata,
		TopRiskFactors: p.cfg.Charts.TopRiskFactors,
		TopSymptoms:    p.cfg.Charts.TopSymptoms,
		AssetsHost:     p.cfg.Charts.AssetsHost,
	})
	refs, err := renderer.RenderAll(plotsDir, res, records)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		p.wrote(filepath.Join(plotsDir, ref.File))
	}

	return refs, nil
}

// build assembles the report model from tables and chart pages
func (p *Pipeline) build(tablesDir, plotsDir string) (*model.Report, *aggregate.Results, error) {
	res, err := aggregate.Load(p.fs, tablesDir)
	if err != nil {
		return nil, nil, err
	}

	charts, err := report.DiscoverCharts(p.fs, plotsDir)
	if err != nil {
		return nil, nil, err
	}

	r := report.Build(res, charts, report.Meta{
		GeneratedAt:    p.now(),
		MinStratumSize: p.cfg.Analysis.MinStratumSize,
		MeaningfulOnly: p.cfg.Analysis.MeaningfulOnly,
	})
	return r, res, nil
}

func (p *Pipeline) loadInsights(path string) (*model.InsightSet, error) {
	data, err := afero.ReadFile(p.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var set model.InsightSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &set, nil
}

// Report writes report.json, presentation_outline.json and report.html into
// reportDir, embedding any llm_insights.json already saved there
func (p *Pipeline) Report(tablesDir, plotsDir, reportDir string) (*model.Report, error) {
	set, err := p.loadInsights(filepath.Join(reportDir, report.FileInsightsJSON))
	if err != nil {
		return nil, err
	}
	return p.writeReport(tablesDir, plotsDir, reportDir, set)
}

func (p *Pipeline) writeReport(tablesDir, plotsDir, reportDir string, insights *model.InsightSet) (*model.Report, error) {
	r, _, err := p.build(tablesDir, plotsDir)
	if err != nil {
		return nil, err
	}
	r.Narratives = insights

	paths, err := report.Save(p.fs, reportDir, plotsDir, r)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		p.wrote(path)
	}

	return r, nil
}

// removeInsights deletes narrative files left in reportDir by an earlier run
func (p *Pipeline) removeInsights(reportDir string) error {
	for _, name := range []string{report.FileInsightsJSON, report.FileInsightsMD} {
		path := filepath.Join(reportDir, name)
		err := p.fs.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("remove stale %s: %w", path, err)
		}
		logging.L().Info("removed narratives from an earlier run", "path", path)
	}
	return nil
}

// Summary renders the executive summary; a non-empty out also writes it there
func (p *Pipeline) Summary(tablesDir, plotsDir, out string) (string, error) {
	r, res, err := p.build(tablesDir, plotsDir)
	if err != nil {
		return "", err
	}

	text, err := report.Summary(r, report.Tables(res))
	if err != nil {
		return "", err
	}

	if out != "" {
		if err := report.WriteFile(p.fs, out, []byte(text)); err != nil {
			return "", err
		}
		p.wrote(out)
	}
	return text, nil
}

// Narratives generates LLM insights for the strata in tablesDir and writes them into reportDir
func (p *Pipeline) Narratives(ctx context.Context, tablesDir, reportDir string) (*model.InsightSet, error) {
	if p.narrator == nil {
		return nil, llm.ErrDisabled
	}

	res, err := aggregate.Load(p.fs, tablesDir)
	if err != nil {
		return nil, err
	}

	set, err := p.narrator.Generate(ctx, res.Summaries)
	if err != nil {
		return nil, err
	}

	paths, err := report.SaveInsights(p.fs, reportDir, set)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		p.wrote(path)
	}

	return set, nil
}

// RunResult collects the outputs of a full run
type RunResult struct {
	Layout     Layout
	Split      *SplitResult
	Load       *LoadResult
	Normalized *normalize.Result
	Aggregates *aggregate.Results
	Charts     []model.ChartRef
	Insights   *model.InsightSet
	Report     *model.Report
	Summary    string
}

// Run executes every step on input under layout. Narratives run before the
// report so it can embed them; they only run when a narrator is configured.
// Without one, narrative files left by an earlier run are removed.
func (p *Pipeline) Run(ctx context.Context, input string, layout Layout) (*RunResult, error) {
	run := &RunResult{Layout: layout}
	splitPath := filepath.Join(layout.Root, FileSplit)
	normalizedPath := filepath.Join(layout.Root, FileNormalized)

	var err error
	if run.Split, err = p.Split(input, splitPath); err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	if run.Load, err = p.Load(splitPath, false); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if run.Normalized, err = p.Normalize(splitPath, normalizedPath); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if run.Aggregates, err = p.Analyze(normalizedPath, layout.Tables); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	if run.Charts, err = p.Visualize(layout.Tables, normalizedPath, layout.Plots); err != nil {
		return nil, fmt.Errorf("visualize: %w", err)
	}

	if p.narrator != nil {
		if run.Insights, err = p.Narratives(ctx, layout.Tables, layout.Report); err != nil {
			return nil, fmt.Errorf("narratives: %w", err)
		}
	} else if err := p.removeInsights(layout.Report); err != nil {
		return nil, fmt.Errorf("narratives: %w", err)
	}

	if run.Report, err = p.writeReport(layout.Tables, layout.Plots, layout.Report, run.Insights); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	summaryPath := filepath.Join(layout.Report, report.FileSummaryText)
	if run.Summary, err = p.Summary(layout.Tables, layout.Plots, summaryPath); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	return run, nil
}
