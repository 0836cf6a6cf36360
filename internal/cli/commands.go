package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ppiankov/strata/internal/cache"
	"github.com/ppiankov/strata/internal/dataset"
	"github.com/ppiankov/strata/internal/llm"
	"github.com/ppiankov/strata/internal/logging"
	"github.com/ppiankov/strata/internal/model"
	"github.com/ppiankov/strata/internal/normalize"
	"github.com/ppiankov/strata/internal/pipeline"
	"github.com/ppiankov/strata/internal/report"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	outFile     string
	tablesDir   string
	plotsDir    string
	reportDir   string
	recordsFile string
	saveSummary bool

	minStratumSize int
	meaningfulOnly bool

	llmEnabled  bool
	llmProvider string
	llmModel    string
	llmTop      int
)

func layout() pipeline.Layout {
	l := pipeline.LayoutFor(appConfig.Paths, outputDir)
	if tablesDir != "" {
		l.Tables = tablesDir
	}
	if plotsDir != "" {
		l.Plots = plotsDir
	}
	if reportDir != "" {
		l.Report = reportDir
	}
	return l
}

func newPipeline(cmd *cobra.Command, narrator *llm.Narrator) *pipeline.Pipeline {
	return pipeline.New(afero.NewOsFs(), appConfig, pipeline.Options{
		Progress: cmd.OutOrStdout(),
		Narrator: narrator,
	})
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func addDirFlags(cmd *cobra.Command, tables, plots, report bool) {
	if tables {
		cmd.Flags().StringVar(&tablesDir, "tables-dir", "", "aggregate tables directory (default: <output-dir>/tables)")
	}
	if plots {
		cmd.Flags().StringVar(&plotsDir, "plots-dir", "", "chart directory (default: <output-dir>/plots)")
	}
	if report {
		cmd.Flags().StringVar(&reportDir, "report-dir", "", "report directory (default: <output-dir>/report)")
	}
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&minStratumSize, "min-stratum-size", 0, "minimum unique studies per reported stratum (default: analysis.min_stratum_size)")
	cmd.Flags().BoolVar(&meaningfulOnly, "meaningful-only", false, "drop unspecified/unknown values before counting")
}

func addLLMFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&llmProvider, "provider", "", "LLM provider (openai, amplify, ollama)")
	cmd.Flags().StringVar(&llmModel, "model", "", "LLM model name")
	cmd.Flags().IntVar(&llmTop, "top", 0, "number of strata to narrate (default: llm.top_strata)")
}

// applyFlags copies changed command flags onto the loaded config
func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("min-stratum-size") {
		appConfig.Analysis.MinStratumSize = minStratumSize
	}
	if flags.Changed("meaningful-only") {
		appConfig.Analysis.MeaningfulOnly = meaningfulOnly
	}
	if flags.Changed("provider") {
		appConfig.LLM.Provider = llmProvider
	}
	if flags.Changed("model") {
		appConfig.LLM.Model = llmModel
	}
	if flags.Changed("top") {
		appConfig.LLM.TopStrata = llmTop
	}
	return validateConfig(appConfig)
}

// newNarrator builds the narrative generator from the LLM and cache config
func newNarrator(cfg *model.Config) (*llm.Narrator, error) {
	provider, err := llm.NewProvider(llm.ApplyEnv(llm.ConfigFromModel(cfg.LLM), os.Getenv))
	if errors.Is(err, llm.ErrDisabled) {
		return nil, fmt.Errorf("%w (set --provider or llm.provider)", err)
	}
	if err != nil {
		return nil, err
	}

	var c cache.Cache = cache.Nop{}
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(afero.NewOsFs(), cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	return llm.NewNarrator(provider, llm.NarratorOptionsFromModel(cfg.LLM, c)), nil
}

var splitCmd = &cobra.Command{
	Use:   "split <input.csv>",
	Short: "Split the gpt_output column into field columns",
	Long: `Split parses the LLM output of every study into population, risk factors,
symptoms, treatments, outcomes and chain of thought columns.

Example:
  strata split data/studies.csv
  strata split data/studies.csv --out outputs/split_records.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := orDefault(outFile, filepath.Join(layout().Root, pipeline.FileSplit))
		res, err := newPipeline(cmd, nil).Split(args[0], out)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\n%s\n", banner(fmt.Sprintf("Field coverage (%d rows)", res.Rows)))
		printCoverage(w, res.Coverage)
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <split.csv>",
	Short: "Validate a split dataset and print summary statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newPipeline(cmd, nil).Load(args[0], true)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, banner("Dataset summary"))
		fmt.Fprintln(w, field("Records", res.Stats.TotalRecords))
		fmt.Fprintln(w, field("Years", res.Stats.YearRange()))
		fmt.Fprintln(w, field("Unique journals", res.Stats.UniqueJournals))
		fmt.Fprintln(w)
		printCoverage(w, res.Stats.Completeness)
		for _, col := range res.EmptyColumns {
			fmt.Fprintln(w, warnStyle.Render("⚠ column has no values: "+col))
		}
		return nil
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <split.csv>",
	Short: "Assign strata and normalize treatments and outcomes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := orDefault(outFile, filepath.Join(layout().Root, pipeline.FileNormalized))
		res, err := newPipeline(cmd, nil).Normalize(args[0], out)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\n%s\n", banner("Normalization"))
		fmt.Fprintln(w, field("Input rows", res.InputRows))
		fmt.Fprintln(w, field("Skipped rows", res.SkippedRows))
		fmt.Fprintln(w, field("Records", len(res.Records)))
		fmt.Fprintln(w, field("Strata used", fmt.Sprintf("%d of %d", len(res.StrataCounts), normalize.StratumCount)))
		fmt.Fprintln(w)
		for i, id := range res.StrataByStudies() {
			if i == 10 {
				break
			}
			fmt.Fprintln(w, field(normalize.Label(id), fmt.Sprintf("%d studies", res.StrataCounts[id])))
		}
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <normalized.csv>",
	Short: "Aggregate normalized records into per-stratum tables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyFlags(cmd); err != nil {
			return err
		}

		res, err := newPipeline(cmd, nil).Analyze(args[0], layout().Tables)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\n%s\n", banner("Aggregation"))
		fmt.Fprintln(w, field("Reported strata", len(res.Summaries)))
		fmt.Fprintln(w, field("Excluded strata", len(res.Excluded)))
		fmt.Fprintln(w, field("Studies", res.TotalStudies()))
		fmt.Fprintln(w, field("Records", res.TotalRecords()))
		return nil
	},
}

var visualizeCmd = &cobra.Command{
	Use:   "visualize",
	Short: "Render charts from the aggregate tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := layout()

		records := recordsFile
		if records == "" {
			records = filepath.Join(l.Root, pipeline.FileNormalized)
			if _, err := os.Stat(records); err != nil {
				logging.L().Warn("normalized records not found, skipping population flow chart", "path", records)
				records = ""
			}
		}

		refs, err := newPipeline(cmd, nil).Visualize(l.Tables, records, l.Plots)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("✓ Rendered %d charts", len(refs))))
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the executive summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := layout()
		out := ""
		if saveSummary {
			out = filepath.Join(l.Report, report.FileSummaryText)
		}

		text, err := newPipeline(cmd, nil).Summary(l.Tables, l.Plots, out)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write report.json, presentation_outline.json and report.html",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := layout()
		r, err := newPipeline(cmd, nil).Report(l.Tables, l.Plots, l.Report)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\n%s\n", banner(r.Title))
		fmt.Fprintln(w, field("Strata", fmt.Sprintf("%d reported of %d defined", r.Overview.ReportedStrata, r.Overview.DefinedStrata)))
		fmt.Fprintln(w, field("Studies", r.Overview.TotalStudies))
		fmt.Fprintln(w, field("Years", r.Overview.YearRange))
		fmt.Fprintln(w, field("Charts", len(r.Charts)))
		return nil
	},
}

var narrativesCmd = &cobra.Command{
	Use:   "narratives",
	Short: "Generate optional LLM commentary for the largest strata",
	Long: `Narratives asks an LLM for insights on the largest strata and a comparison
across strata. Requests are retried, rate limited per host and cached.
Failed requests are recorded as unavailable; they do not fail the command.

Example:
  strata narratives --provider openai --model gpt-4o-mini
  AMPLIFY_API_KEY=... AMPLIFY_API_URL=https://.../chat strata narratives --provider amplify`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyFlags(cmd); err != nil {
			return err
		}
		narrator, err := newNarrator(appConfig)
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		l := layout()
		set, err := newPipeline(cmd, narrator).Narratives(ctx, l.Tables, l.Report)
		if err != nil {
			return err
		}
		printInsightStatus(cmd.OutOrStdout(), set)
		return nil
	},
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline <input.csv>",
	Short: "Run split, normalize, analyze, visualize, report and summary",
	Long: `Pipeline runs every step on a CSV with a gpt_output column and writes
all outputs under --output-dir (tables/, plots/, report/).

Example:
  strata pipeline data/studies.csv
  strata pipeline data/studies.csv -o results --min-stratum-size 5
  strata pipeline data/studies.csv --llm --provider amplify`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyFlags(cmd); err != nil {
			return err
		}

		var narrator *llm.Narrator
		if llmEnabled {
			n, err := newNarrator(appConfig)
			if err != nil {
				return err
			}
			narrator = n
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		w := cmd.OutOrStdout()
		l := layout()
		fmt.Fprintln(w, banner("Strata pipeline"))
		fmt.Fprintln(w, field("Input", args[0]))
		fmt.Fprintln(w, field("Output", l.Root))
		fmt.Fprintln(w, field("Min stratum size", appConfig.Analysis.MinStratumSize))
		fmt.Fprintln(w, field("Narratives", llmEnabled))
		fmt.Fprintln(w)

		run, err := newPipeline(cmd, narrator).Run(ctx, args[0], l)
		if err != nil {
			return err
		}

		fmt.Fprintln(w)
		fmt.Fprint(w, run.Summary)
		if run.Insights != nil {
			printInsightStatus(w, run.Insights)
		}
		return nil
	},
}

func printCoverage(w io.Writer, coverage []dataset.FieldCompleteness) {
	for _, c := range coverage {
		fmt.Fprintln(w, field(c.Field, fmt.Sprintf("%d (%.1f%%)", c.Count, c.Percentage)))
	}
}

func printInsightStatus(w io.Writer, set *model.InsightSet) {
	for _, in := range set.Insights {
		switch {
		case in.Error != "":
			fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("✗ %s: %s", in.StratumID, in.Error)))
		case in.Cached:
			fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("✓ %s (cached)", in.StratumID)))
		default:
			fmt.Fprintln(w, okStyle.Render("✓ "+in.StratumID))
		}
	}
}

func init() {
	splitCmd.Flags().StringVar(&outFile, "out", "", "output CSV (default: <output-dir>/"+pipeline.FileSplit+")")
	normalizeCmd.Flags().StringVar(&outFile, "out", "", "output CSV (default: <output-dir>/"+pipeline.FileNormalized+")")

	addDirFlags(analyzeCmd, true, false, false)
	addAnalysisFlags(analyzeCmd)

	addDirFlags(visualizeCmd, true, true, false)
	visualizeCmd.Flags().StringVar(&recordsFile, "records", "", "normalized records CSV for the flow chart (default: <output-dir>/"+pipeline.FileNormalized+")")

	addDirFlags(summaryCmd, true, true, true)
	summaryCmd.Flags().BoolVar(&saveSummary, "save", false, "also write analysis_summary.txt to the report directory")

	addDirFlags(reportCmd, true, true, true)

	addDirFlags(narrativesCmd, true, false, true)
	addLLMFlags(narrativesCmd)

	addAnalysisFlags(pipelineCmd)
	addLLMFlags(pipelineCmd)
	pipelineCmd.Flags().BoolVar(&llmEnabled, "llm", false, "also generate LLM narratives")

	rootCmd.AddCommand(splitCmd, loadCmd, normalizeCmd, analyzeCmd, visualizeCmd,
		summaryCmd, reportCmd, narrativesCmd, pipelineCmd)
}
