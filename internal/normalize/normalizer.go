// Package normalize maps free-text study fields onto the closed population
// taxonomy and expands studies into long-format treatment/outcome rows.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/strata/internal/dataset"
	"github.com/ppiankov/strata/internal/logging"
	"github.com/ppiankov/strata/internal/model"
)

// inputColumns are read from the split dataset; absent ones default to empty
var inputColumns = []string{
	model.ColPMID,
	model.ColTitle,
	model.ColYear,
	model.ColJournal,
	model.ColPopulation,
	model.ColRiskFactors,
	model.ColSymptoms,
	model.ColTreatments,
	model.ColOutcomes,
}

// Result is the outcome of normalizing a dataset
type Result struct {
	Records        []model.NormalizedRecord
	InputRows      int
	SkippedRows    int
	MissingColumns []string
	StrataCounts   map[string]int // Distinct studies per stratum
}

// StrataByStudies returns stratum ids ordered by study count desc, then id
func (r *Result) StrataByStudies() []string {
	ids := make([]string, 0, len(r.StrataCounts))
	for id := range r.StrataCounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := r.StrataCounts[ids[i]], r.StrataCounts[ids[j]]
		if ci != cj {
			return ci > cj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Normalizer assigns strata and explodes studies into long format
type Normalizer struct{}

// NewNormalizer creates a new normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize converts a split dataset into long-format normalized records.
// Rows with neither pmid nor title are skipped with a warning.
func (n *Normalizer) Normalize(t *dataset.Table) *Result {
	log := logging.L()
	res := &Result{
		InputRows:    t.Len(),
		StrataCounts: make(map[string]int),
	}

	for _, col := range inputColumns {
		if !t.Has(col) {
			res.MissingColumns = append(res.MissingColumns, col)
			log.Warn("missing column, using empty values", "column", col)
		}
	}

	seen := make(map[string]map[string]struct{})
	for i := 0; i < t.Len(); i++ {
		get := t.Getter(i)
		study := model.StudyRecordFrom(func(col string) string {
			v := get(col)
			if dataset.IsEmptyValue(v) {
				return ""
			}
			return v
		})

		if study.PMID == "" && study.Title == "" {
			res.SkippedRows++
			log.Warn("skipping malformed row", "row", i+2, "reason", "no pmid or title")
			continue
		}

		records := n.Expand(study)
		res.Records = append(res.Records, records...)

		stratum := records[0].StratumID
		if seen[stratum] == nil {
			seen[stratum] = make(map[string]struct{})
		}
		seen[stratum][StudyKey(study.PMID, study.Title)] = struct{}{}
	}

	for id, studies := range seen {
		res.StrataCounts[id] = len(studies)
	}

	log.Info("normalized dataset",
		"input_rows", res.InputRows,
		"records", len(res.Records),
		"strata", len(res.StrataCounts),
		"skipped", res.SkippedRows)

	return res
}

// Expand produces one record per treatment item x outcome item of a study.
// A study with no treatment or outcome text still yields one record.
func (n *Normalizer) Expand(study model.StudyRecord) []model.NormalizedRecord {
	profile := ExtractProfile(study.Population)
	stratum := Assign(profile)
	risk := joinItems(SplitItems(study.RiskFactors))
	symptoms := joinItems(SplitItems(study.Symptoms))

	treatments := orEmpty(SplitItems(study.Treatments))
	outcomes := orEmpty(SplitItems(study.Outcomes))

	records := make([]model.NormalizedRecord, 0, len(treatments)*len(outcomes))
	for _, treatment := range treatments {
		category := CleanTreatment(treatment)
		for _, outcome := range outcomes {
			records = append(records, model.NormalizedRecord{
				PMID:              study.PMID,
				Title:             study.Title,
				Year:              study.Year,
				Journal:           study.Journal,
				StratumID:         stratum,
				Profile:           profile,
				TreatmentCategory: category,
				TreatmentNames:    treatment,
				OutcomeDirection:  CleanOutcome(outcome),
				RiskFactors:       risk,
				Symptoms:          symptoms,
			})
		}
	}
	return records
}

// SplitItems splits a ";"-separated list, dropping blank items
func SplitItems(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ";") {
		part = strings.Join(strings.Fields(part), " ")
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

// StudyKey identifies a study by pmid, falling back to its title
func StudyKey(pmid, title string) string {
	if pmid != "" {
		return "pmid:" + pmid
	}
	return "title:" + strings.ToLower(title)
}

func orEmpty(items []string) []string {
	if len(items) == 0 {
		return []string{""}
	}
	return items
}

func joinItems(items []string) string {
	return strings.Join(items, "; ")
}

// ToTable renders normalized records with the normalized column header
func ToTable(records []model.NormalizedRecord) *dataset.Table {
	t := dataset.New(model.NormalizedColumns)
	for _, r := range records {
		t.Append(r.Row())
	}
	return t
}

// FromTable reads normalized records back from a table
func FromTable(t *dataset.Table) ([]model.NormalizedRecord, error) {
	if err := t.Require(model.ColStratumID, model.ColTreatmentCategory, model.ColOutcomeDirection); err != nil {
		return nil, fmt.Errorf("normalized table: %w", err)
	}
	records := make([]model.NormalizedRecord, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		records = append(records, model.NormalizedRecordFrom(t.Getter(i)))
	}
	return records, nil
}
