package report

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/gosimple/slug"
	"github.com/ppiankov/strata/internal/aggregate"
	"github.com/ppiankov/strata/internal/model"
	"github.com/ppiankov/strata/internal/normalize"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TableFile describes one written aggregate table
type TableFile struct {
	Name        string
	Description string
	Rows        int
}

var tableDescriptions = map[model.TableKind]string{
	model.TableStratumSummary:    "Overview of each population group",
	model.TableRiskFactors:       "Risk factors cited in each group",
	model.TableSymptoms:          "Symptoms reported in each group",
	model.TableTreatments:        "Treatment categories used in each group",
	model.TableOutcomes:          "Outcome directions reported in each group",
	model.TableTreatmentOutcomes: "Treatment and outcome combinations per group",
}

// Tables lists the aggregate tables of res with their row counts
func Tables(res *aggregate.Results) []TableFile {
	out := make([]TableFile, 0, len(model.AllTables))
	for _, kind := range model.AllTables {
		out = append(out, TableFile{
			Name:        kind.FileName(),
			Description: tableDescriptions[kind],
			Rows:        res.Table(kind).Len(),
		})
	}
	return out
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func textFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["pct"] = pct
	return funcs
}

func htmlFuncs() htmltemplate.FuncMap {
	funcs := sprig.HtmlFuncMap()
	funcs["pct"] = pct
	funcs["slug"] = slug.Make
	funcs["label"] = normalize.Label
	return funcs
}

type summaryData struct {
	*model.Report
	Largest             []model.StratumSummary
	Underrepresented    []string
	TopRiskFactors      []model.CategoryShare
	Tables              []TableFile
	Sparse              []string
	WellStudied         []string
	LeadingTreatment    *model.CategoryShare
	UnspecifiedOutcomes float64
}

// Summary renders the plain-text executive summary
func Summary(r *model.Report, tables []TableFile) (string, error) {
	tmpl, err := template.New("summary.txt.tmpl").Funcs(textFuncs()).ParseFS(templateFS, "templates/summary.txt.tmpl")
	if err != nil {
		return "", fmt.Errorf("parse summary template: %w", err)
	}

	data := summaryData{Report: r, Tables: tables}
	for i, s := range r.Strata {
		if i < 3 {
			data.Largest = append(data.Largest, s)
		}
		if s.UniqueStudies < adequateSample && len(data.Sparse) < 3 {
			data.Sparse = append(data.Sparse, s.Label)
		}
		if s.UniqueStudies >= wellStudied && len(data.WellStudied) < 3 {
			data.WellStudied = append(data.WellStudied, s.Label)
		}
	}
	for i, id := range r.Overview.UnderrepresentedStrata {
		if i == 3 {
			break
		}
		data.Underrepresented = append(data.Underrepresented, normalize.Label(id))
	}
	data.TopRiskFactors = limit(r.RiskFactors, 5)
	if len(r.Treatments) > 0 {
		data.LeadingTreatment = &r.Treatments[0]
	}
	for _, o := range r.Outcomes {
		if o.Name == model.Unspecified {
			data.UnspecifiedOutcomes = o.Percentage
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}

type distribution struct {
	Title  string
	Shares []model.CategoryShare
}

type htmlData struct {
	*model.Report
	Distributions []distribution
	ChartsBase    string
}

// HTML renders the report page. chartsBase is the path from the report
// directory to the plots directory.
func HTML(r *model.Report, chartsBase string) ([]byte, error) {
	tmpl, err := htmltemplate.New("report.html.tmpl").Funcs(htmlFuncs()).ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}

	data := htmlData{
		Report: r,
		Distributions: []distribution{
			{Title: "Top Risk Factors", Shares: r.RiskFactors},
			{Title: "Top Symptoms", Shares: r.Symptoms},
			{Title: "Treatment Categories", Shares: r.Treatments},
			{Title: "Outcome Directions", Shares: r.Outcomes},
		},
		ChartsBase: chartsBase,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report page: %w", err)
	}
	return buf.Bytes(), nil
}

// InsightsMarkdown renders narrative insights as a Markdown document
func InsightsMarkdown(set *model.InsightSet) (string, error) {
	funcs := textFuncs()
	funcs["label"] = normalize.Label
	tmpl, err := template.New("insights.md.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/insights.md.tmpl")
	if err != nil {
		return "", fmt.Errorf("parse insights template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, set); err != nil {
		return "", fmt.Errorf("render insights: %w", err)
	}
	return buf.String(), nil
}
