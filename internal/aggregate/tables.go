package aggregate

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/ppiankov/strata/internal/dataset"
	"github.com/ppiankov/strata/internal/model"
	"github.com/spf13/afero"
)

// Column names of the aggregate tables
const (
	colRiskFactor = "risk_factor"
	colSymptom    = "symptom"
	colLabel      = "label"
	colCount      = "count"
	colTotal      = "total_studies"
	colPercentage = "percentage"
	colStudyPct   = "study_percentage"
	colRecords    = "total_records"
	colStudies    = "unique_studies"
	colYearRange  = "year_range"
	colJournals   = "journals_count"
	colTopRisk    = "top_risk_factor"
	colTopTreat   = "top_treatment"
	colTopOutcome = "top_outcome"
)

var summaryColumns = []string{
	model.ColStratumID, colLabel,
	model.ColAgeGroup, model.ColSex, model.ColClinicalCohort, model.ColSetting,
	colRecords, colStudies, colYearRange, colJournals,
	colTopRisk, colTopTreat, colTopOutcome,
}

var treatmentOutcomeColumns = []string{
	model.ColStratumID, model.ColTreatmentCategory, model.ColOutcomeDirection,
	colCount, colTotal, colPercentage, colStudyPct,
}

func itemColumn(kind model.TableKind) string {
	switch kind {
	case model.TableRiskFactors:
		return colRiskFactor
	case model.TableSymptoms:
		return colSymptom
	case model.TableTreatments:
		return model.ColTreatmentCategory
	case model.TableOutcomes:
		return model.ColOutcomeDirection
	default:
		return "item"
	}
}

func frequencyColumns(kind model.TableKind) []string {
	return []string{model.ColStratumID, itemColumn(kind), colCount, colTotal, colPercentage, colStudyPct}
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Frequencies returns the rows of a frequency table kind
func (r *Results) Frequencies(kind model.TableKind) []model.Frequency {
	switch kind {
	case model.TableRiskFactors:
		return r.RiskFactors
	case model.TableSymptoms:
		return r.Symptoms
	case model.TableTreatments:
		return r.Treatments
	case model.TableOutcomes:
		return r.Outcomes
	default:
		return nil
	}
}

func (r *Results) setFrequencies(kind model.TableKind, rows []model.Frequency) {
	switch kind {
	case model.TableRiskFactors:
		r.RiskFactors = rows
	case model.TableSymptoms:
		r.Symptoms = rows
	case model.TableTreatments:
		r.Treatments = rows
	case model.TableOutcomes:
		r.Outcomes = rows
	}
}

// Table renders one aggregate table
func (r *Results) Table(kind model.TableKind) *dataset.Table {
	switch kind {
	case model.TableStratumSummary:
		t := dataset.New(summaryColumns)
		for _, s := range r.Summaries {
			t.Append([]string{
				s.StratumID, s.Label,
				s.Components.AgeGroup, s.Components.Sex, s.Components.Condition, s.Components.Setting,
				strconv.Itoa(s.TotalRecords), strconv.Itoa(s.UniqueStudies), s.YearRange, strconv.Itoa(s.JournalsCount),
				s.TopRiskFactor, s.TopTreatment, s.TopOutcome,
			})
		}
		return t
	case model.TableTreatmentOutcomes:
		t := dataset.New(treatmentOutcomeColumns)
		for _, to := range r.TreatmentOutcomes {
			t.Append([]string{
				to.StratumID, to.Treatment, to.Outcome,
				strconv.Itoa(to.Count), strconv.Itoa(to.TotalStudies),
				formatPct(to.Percentage), formatPct(to.StudyPercentage),
			})
		}
		return t
	default:
		t := dataset.New(frequencyColumns(kind))
		for _, f := range r.Frequencies(kind) {
			t.Append([]string{
				f.StratumID, f.Item,
				strconv.Itoa(f.Count), strconv.Itoa(f.TotalStudies),
				formatPct(f.Percentage), formatPct(f.StudyPercentage),
			})
		}
		return t
	}
}

// Save writes every table as <dir>/<kind>_by_stratum.csv
func (r *Results) Save(fs afero.Fs, dir string) ([]string, error) {
	var paths []string
	for _, kind := range model.AllTables {
		path := filepath.Join(dir, kind.FileName())
		if err := dataset.WriteCSV(fs, path, r.Table(kind)); err != nil {
			return paths, fmt.Errorf("save %s table: %w", kind, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Load reads the tables written by Save. The stratum summary is required;
// other missing tables load as empty.
func Load(fs afero.Fs, dir string) (*Results, error) {
	res := &Results{}

	summary, err := dataset.ReadCSV(fs, filepath.Join(dir, model.TableStratumSummary.FileName()))
	if err != nil {
		return nil, err
	}
	if err := summary.Require(model.ColStratumID, colStudies); err != nil {
		return nil, fmt.Errorf("%s: %w", model.TableStratumSummary.FileName(), err)
	}
	for i := 0; i < summary.Len(); i++ {
		get := summary.Getter(i)
		s := model.StratumSummary{
			StratumID: get(model.ColStratumID),
			Label:     get(colLabel),
			Components: model.Profile{
				AgeGroup:  get(model.ColAgeGroup),
				Sex:       get(model.ColSex),
				Condition: get(model.ColClinicalCohort),
				Setting:   get(model.ColSetting),
			},
			YearRange:     get(colYearRange),
			TopRiskFactor: get(colTopRisk),
			TopTreatment:  get(colTopTreat),
			TopOutcome:    get(colTopOutcome),
		}
		if s.TotalRecords, err = atoi(get(colRecords)); err != nil {
			return nil, fmt.Errorf("stratum %s: %s: %w", s.StratumID, colRecords, err)
		}
		if s.UniqueStudies, err = atoi(get(colStudies)); err != nil {
			return nil, fmt.Errorf("stratum %s: %s: %w", s.StratumID, colStudies, err)
		}
		if s.JournalsCount, err = atoi(get(colJournals)); err != nil {
			return nil, fmt.Errorf("stratum %s: %s: %w", s.StratumID, colJournals, err)
		}
		res.Summaries = append(res.Summaries, s)
	}

	for _, kind := range []model.TableKind{model.TableRiskFactors, model.TableSymptoms, model.TableTreatments, model.TableOutcomes} {
		t, err := readOptional(fs, filepath.Join(dir, kind.FileName()))
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		rows, err := parseFrequencies(t, itemColumn(kind))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind.FileName(), err)
		}
		res.setFrequencies(kind, rows)
	}

	t, err := readOptional(fs, filepath.Join(dir, model.TableTreatmentOutcomes.FileName()))
	if err != nil {
		return nil, err
	}
	if t != nil {
		if res.TreatmentOutcomes, err = parseTreatmentOutcomes(t); err != nil {
			return nil, fmt.Errorf("%s: %w", model.TableTreatmentOutcomes.FileName(), err)
		}
	}

	return res, nil
}

func readOptional(fs afero.Fs, path string) (*dataset.Table, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !exists {
		return nil, nil
	}
	return dataset.ReadCSV(fs, path)
}

func parseFrequencies(t *dataset.Table, itemCol string) ([]model.Frequency, error) {
	if err := t.Require(model.ColStratumID, itemCol, colCount); err != nil {
		return nil, err
	}
	rows := make([]model.Frequency, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		get := t.Getter(i)
		f := model.Frequency{StratumID: get(model.ColStratumID), Item: get(itemCol)}
		var err error
		if f.Count, err = atoi(get(colCount)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if f.TotalStudies, err = atoi(get(colTotal)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if f.Percentage, err = atof(get(colPercentage)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if f.StudyPercentage, err = atof(get(colStudyPct)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, f)
	}
	return rows, nil
}

func parseTreatmentOutcomes(t *dataset.Table) ([]model.TreatmentOutcome, error) {
	if err := t.Require(treatmentOutcomeColumns[:4]...); err != nil {
		return nil, err
	}
	rows := make([]model.TreatmentOutcome, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		get := t.Getter(i)
		to := model.TreatmentOutcome{
			StratumID: get(model.ColStratumID),
			Treatment: get(model.ColTreatmentCategory),
			Outcome:   get(model.ColOutcomeDirection),
		}
		var err error
		if to.Count, err = atoi(get(colCount)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if to.TotalStudies, err = atoi(get(colTotal)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if to.Percentage, err = atof(get(colPercentage)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if to.StudyPercentage, err = atof(get(colStudyPct)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, to)
	}
	return rows, nil
}

// atoi treats an empty cell as zero
func atoi(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func atof(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
