package viz

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/strata/internal/aggregate"
	"github.com/ppiankov/strata/internal/logging"
	"github.com/ppiankov/strata/internal/model"
	"github.com/spf13/afero"
)

// Options controls chart selection and sizing
type Options struct {
	TopStrata      int
	TopRiskFactors int
	TopSymptoms    int
	AssetsHost     string // Empty uses the go-echarts default CDN
}

// Chart is a rendered-on-demand chart page
type Chart struct {
	File     string
	Title    string
	renderer interface{ Render(w io.Writer) error }
}

// Render writes the chart page to w
func (c *Chart) Render(w io.Writer) error {
	return c.renderer.Render(w)
}

// Renderer builds and writes chart pages
type Renderer struct {
	fs   afero.Fs
	opts Options
}

// NewRenderer creates a new renderer writing to fs
func NewRenderer(fs afero.Fs, opts Options) *Renderer {
	if opts.TopStrata < 1 {
		opts.TopStrata = 5
	}
	if opts.TopRiskFactors < 1 {
		opts.TopRiskFactors = 10
	}
	if opts.TopSymptoms < 1 {
		opts.TopSymptoms = 8
	}
	return &Renderer{fs: fs, opts: opts}
}

// Charts builds every chart that has data. Charts without data are skipped
// with a warning. records may be nil, which skips the flow chart.
func (r *Renderer) Charts(res *aggregate.Results, records []model.NormalizedRecord) []*Chart {
	log := logging.L()
	candidates := []struct {
		file  string
		chart *Chart
	}{
		{FileStratumOverview, r.StratumOverview(res)},
		{FileTopRiskFactors, r.TopItems(FileTopRiskFactors, "Top Risk Factors by Population Stratum", res, res.RiskFactors, r.opts.TopRiskFactors)},
		{FileSymptoms, r.TopItems(FileSymptoms, "Symptom Patterns by Population Stratum", res, res.Symptoms, r.opts.TopSymptoms)},
		{FileTreatmentOutcomes, r.TreatmentOutcomeHeatmap(res)},
		{FilePopulationFlow, r.PopulationFlow(records)},
	}

	var out []*Chart
	for _, c := range candidates {
		if c.chart == nil {
			log.Warn("skipping chart, no data", "file", c.file)
			continue
		}
		out = append(out, c.chart)
	}
	return out
}

// RenderAll writes every chart with data into dir
func (r *Renderer) RenderAll(dir string, res *aggregate.Results, records []model.NormalizedRecord) ([]model.ChartRef, error) {
	if err := r.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create plots directory: %w", err)
	}

	var refs []model.ChartRef
	for _, c := range r.Charts(res, records) {
		if err := r.write(filepath.Join(dir, c.File), c); err != nil {
			return refs, err
		}
		refs = append(refs, model.ChartRef{Title: c.Title, File: c.File})
		logging.L().Debug("rendered chart", "file", c.File)
	}
	return refs, nil
}

func (r *Renderer) write(path string, c *Chart) (err error) {
	f, err := r.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	if err := c.Render(f); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}

func chartID(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

func px(n int) string {
	return strconv.Itoa(n) + "px"
}
