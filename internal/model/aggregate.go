package model

// StratumSummary describes one stratum that passed the minimum-size filter
type StratumSummary struct {
	StratumID     string  `json:"stratum_id"`
	Label         string  `json:"label"`      // Human-readable stratum name
	Components    Profile `json:"components"` // Dimensions that define the stratum; others are unspecified
	TotalRecords  int     `json:"total_records"`
	UniqueStudies int     `json:"unique_studies"`
	YearRange     string  `json:"year_range"` // "2015-2023" or "unknown"
	JournalsCount int     `json:"journals_count"`
	TopRiskFactor string  `json:"top_risk_factor"`
	TopTreatment  string  `json:"top_treatment"`
	TopOutcome    string  `json:"top_outcome"`
}

// Frequency is a per-stratum count of one risk factor, symptom, treatment or outcome
type Frequency struct {
	StratumID       string  `json:"stratum_id"`
	Item            string  `json:"item"`
	Count           int     `json:"count"`            // Distinct studies (or study/category pairs) mentioning the item
	TotalStudies    int     `json:"total_studies"`    // Unique studies in the stratum
	Percentage      float64 `json:"percentage"`       // Share of all mentions in the stratum; sums to 100 per stratum
	StudyPercentage float64 `json:"study_percentage"` // Count / TotalStudies * 100
}

// TreatmentOutcome is a per-stratum count of one treatment/outcome combination
type TreatmentOutcome struct {
	StratumID       string  `json:"stratum_id"`
	Treatment       string  `json:"treatment_category"`
	Outcome         string  `json:"outcome_direction"`
	Count           int     `json:"count"`
	TotalStudies    int     `json:"total_studies"`
	Percentage      float64 `json:"percentage"`
	StudyPercentage float64 `json:"study_percentage"`
}

// TableKind names an aggregate table
type TableKind string

const (
	TableStratumSummary    TableKind = "stratum_summary"
	TableRiskFactors       TableKind = "risk_factors"
	TableSymptoms          TableKind = "symptoms"
	TableTreatments        TableKind = "treatments"
	TableOutcomes          TableKind = "outcomes"
	TableTreatmentOutcomes TableKind = "treatment_outcomes"
)

// FileName returns the CSV file name of the table
func (k TableKind) FileName() string {
	return string(k) + "_by_stratum.csv"
}

// AllTables lists every aggregate table in write order
var AllTables = []TableKind{
	TableStratumSummary,
	TableRiskFactors,
	TableSymptoms,
	TableTreatments,
	TableOutcomes,
	TableTreatmentOutcomes,
}
