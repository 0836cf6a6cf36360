// Package report turns aggregate tables into summaries, JSON reports and
// an HTML overview page.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/strata/internal/aggregate"
	"github.com/ppiankov/strata/internal/dataset"
	"github.com/ppiankov/strata/internal/model"
	"github.com/ppiankov/strata/internal/normalize"
	"github.com/ppiankov/strata/internal/viz"
)

// Representation thresholds in unique studies
const (
	wellRepresented  = 10
	adequateSample   = 5
	wellStudied      = 20
	topCategoryItems = 10
)

// Meta carries run information that is not part of the tables
type Meta struct {
	Title          string
	GeneratedAt    time.Time
	MinStratumSize int
	MeaningfulOnly bool
}

// Build assembles the machine-readable report
func Build(res *aggregate.Results, charts []model.ChartRef, meta Meta) *model.Report {
	if meta.Title == "" {
		meta.Title = "Population-Stratum Analysis of Mental Health Literature"
	}

	r := &model.Report{
		Title:       meta.Title,
		GeneratedAt: meta.GeneratedAt.UTC(),
		Strata:      res.Summaries,
		RiskFactors: limit(aggregate.Totals(res.RiskFactors), topCategoryItems),
		Symptoms:    limit(aggregate.Totals(res.Symptoms), topCategoryItems),
		Treatments:  aggregate.Totals(res.Treatments),
		Outcomes:    aggregate.Totals(res.Outcomes),
		Charts:      charts,
		Methodology: model.Methodology{
			Steps: []string{
				"Split LLM output into population, risk factor, symptom, treatment and outcome fields",
				"Classify population text by age group, sex, clinical cohort and care setting",
				fmt.Sprintf("Assign each study to one of %d mutually exclusive strata", normalize.StratumCount),
				"Expand studies into one row per treatment and outcome item",
				fmt.Sprintf("Exclude strata with fewer than %d unique studies", meta.MinStratumSize),
				"Count distinct studies per item within each stratum",
			},
			MinStratumSize: meta.MinStratumSize,
			MeaningfulOnly: meta.MeaningfulOnly,
		},
	}

	r.Overview = model.Overview{
		DefinedStrata:  normalize.StratumCount,
		ReportedStrata: len(res.Summaries),
		TotalStudies:   res.TotalStudies(),
		TotalRecords:   res.TotalRecords(),
		YearRange:      overallYearRange(res.Summaries),
	}
	if len(res.Summaries) > 0 {
		r.Overview.LargestStratum = res.Summaries[0].StratumID
	}

	total := 0
	for _, s := range res.Summaries {
		total += s.UniqueStudies
		switch {
		case s.UniqueStudies >= wellRepresented:
			r.Quality.WellRepresented++
		case s.UniqueStudies < adequateSample:
			r.Quality.Underrepresented++
		}
		if s.UniqueStudies >= adequateSample {
			r.Quality.Adequate++
		}
		if s.UniqueStudies < wellRepresented {
			r.Overview.UnderrepresentedStrata = append(r.Overview.UnderrepresentedStrata, s.StratumID)
		}
	}
	if len(res.Summaries) > 0 {
		r.Quality.AvgStudiesPerStratum = float64(total) / float64(len(res.Summaries))
	}

	return r
}

// overallYearRange merges "min-max" ranges of the strata
func overallYearRange(summaries []model.StratumSummary) string {
	lo, hi := 0, 0
	for _, s := range summaries {
		a, b, ok := strings.Cut(s.YearRange, "-")
		if !ok {
			continue
		}
		first, err1 := strconv.Atoi(a)
		last, err2 := strconv.Atoi(b)
		if err1 != nil || err2 != nil {
			continue
		}
		if lo == 0 || first < lo {
			lo = first
		}
		if last > hi {
			hi = last
		}
	}
	return dataset.FormatYearRange(lo, hi)
}

func limit(shares []model.CategoryShare, n int) []model.CategoryShare {
	if len(shares) > n {
		return shares[:n]
	}
	return shares
}

// Outline builds the presentation outline from a report
func Outline(r *model.Report) []model.Slide {
	chart := func(file string) string {
		for _, c := range r.Charts {
			if c.File == file {
				return c.File
			}
		}
		return ""
	}

	var slides []model.Slide
	add := func(title, chartFile string, bullets ...string) {
		slides = append(slides, model.Slide{
			Number:  len(slides) + 1,
			Title:   title,
			Bullets: bullets,
			Chart:   chart(chartFile),
		})
	}

	o := r.Overview
	add(r.Title, "",
		fmt.Sprintf("%d studies across %d reported population strata", o.TotalStudies, o.ReportedStrata),
		"Publication years: "+o.YearRange,
	)
	add("Methodology", "", r.Methodology.Steps...)

	var largest []string
	for i, s := range r.Strata {
		if i == 3 {
			break
		}
		largest = append(largest, fmt.Sprintf("%s: %d studies", s.Label, s.UniqueStudies))
	}
	add("Population Strata", viz.FileStratumOverview, append(largest,
		fmt.Sprintf("%d of %d defined strata meet the minimum size", o.ReportedStrata, o.DefinedStrata))...)

	add("Risk Factors", viz.FileTopRiskFactors, shareBullets(r.RiskFactors, 5)...)
	add("Symptoms", viz.FileSymptoms, shareBullets(r.Symptoms, 5)...)
	add("Treatments and Outcomes", viz.FileTreatmentOutcomes,
		append(shareBullets(r.Treatments, 3), shareBullets(r.Outcomes, 3)...)...)
	add("Population Flow", viz.FilePopulationFlow,
		"Age group to treatment to outcome, weighted by studies")

	gaps := []string{
		fmt.Sprintf("%d strata have fewer than %d studies", len(o.UnderrepresentedStrata), wellRepresented),
	}
	for i, id := range o.UnderrepresentedStrata {
		if i == 3 {
			break
		}
		gaps = append(gaps, "Needs more research: "+normalize.Label(id))
	}
	add("Research Gaps", "", gaps...)

	return slides
}

func shareBullets(shares []model.CategoryShare, n int) []string {
	var out []string
	for i, s := range shares {
		if i == n {
			break
		}
		out = append(out, fmt.Sprintf("%s: %d (%.1f%%)", s.Name, s.Count, s.Percentage))
	}
	return out
}
