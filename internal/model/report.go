package model

import "time"

// Report is the comprehensive machine-readable analysis report
type Report struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`

	Overview Overview         `json:"overview"`
	Quality  QualityMetrics   `json:"quality"`
	Strata   []StratumSummary `json:"strata"`

	RiskFactors []CategoryShare `json:"top_risk_factors"` // Across all strata
	Symptoms    []CategoryShare `json:"top_symptoms"`
	Treatments  []CategoryShare `json:"treatments"`
	Outcomes    []CategoryShare `json:"outcomes"`

	Charts      []ChartRef  `json:"charts"`
	Methodology Methodology `json:"methodology"`

	Narratives *InsightSet `json:"narratives,omitempty"` // Optional LLM output (never affects statistics)
}

// Overview holds headline numbers for the run
type Overview struct {
	DefinedStrata          int      `json:"defined_strata"`  // Size of the closed taxonomy
	ReportedStrata         int      `json:"reported_strata"` // Strata passing the minimum-size filter
	TotalStudies           int      `json:"total_studies"`
	TotalRecords           int      `json:"total_records"`
	YearRange              string   `json:"year_range"`
	LargestStratum         string   `json:"largest_stratum,omitempty"`
	UnderrepresentedStrata []string `json:"underrepresented_strata,omitempty"` // < 10 studies
}

// QualityMetrics summarizes how well strata are represented
type QualityMetrics struct {
	WellRepresented      int     `json:"well_represented"` // >= 10 studies
	Adequate             int     `json:"adequate_sample"`  // >= 5 studies
	Underrepresented     int     `json:"underrepresented"` // < 5 studies
	AvgStudiesPerStratum float64 `json:"average_studies_per_stratum"`
}

// CategoryShare is one category with its overall count and share
type CategoryShare struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ChartRef points at a rendered chart page
type ChartRef struct {
	Title string `json:"title"`
	File  string `json:"file"` // Relative to the plots directory
}

// Methodology documents how the tables were produced
type Methodology struct {
	Steps          []string `json:"steps"`
	MinStratumSize int      `json:"min_stratum_size"`
	MeaningfulOnly bool     `json:"meaningful_only"`
}

// Slide is one entry of the presentation outline
type Slide struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Chart   string   `json:"chart,omitempty"`
}

// Insight is an LLM-generated narrative for one stratum
type Insight struct {
	StratumID string         `json:"stratum_id"`
	Rank      int            `json:"rank"`
	Text      string         `json:"insight"`
	Provider  string         `json:"provider,omitempty"`
	Model     string         `json:"model,omitempty"`
	Cached    bool           `json:"cached,omitempty"`
	Error     string         `json:"error,omitempty"`
	Data      StratumSummary `json:"data_summary"`
}

// InsightSet is the output of the narratives step
type InsightSet struct {
	Insights    []Insight `json:"individual_insights"`
	Comparative string    `json:"comparative_analysis"`
	Warnings    []string  `json:"warnings,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}
