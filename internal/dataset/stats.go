package dataset

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/strata/internal/model"
)

// RequiredColumns are the columns a split dataset must carry to be loaded
var RequiredColumns = []string{
	model.ColPMID,
	model.ColTitle,
	model.ColAbstract,
	model.ColYear,
	model.ColJournal,
	model.ColPopulation,
	model.ColRiskFactors,
	model.ColSymptoms,
	model.ColTreatments,
	model.ColOutcomes,
}

// FieldCompleteness counts non-empty values of one field
type FieldCompleteness struct {
	Field      string  `json:"field"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Stats summarizes a loaded dataset
type Stats struct {
	TotalRecords   int                 `json:"total_records"`
	YearMin        int                 `json:"year_min,omitempty"`
	YearMax        int                 `json:"year_max,omitempty"`
	UniqueJournals int                 `json:"unique_journals"`
	Completeness   []FieldCompleteness `json:"field_completeness"`
}

// YearRange formats the year span, or "unknown" when no year parsed
func (s Stats) YearRange() string {
	return FormatYearRange(s.YearMin, s.YearMax)
}

// FormatYearRange renders "min-max", or "unknown" when min is zero
func FormatYearRange(min, max int) string {
	if min == 0 {
		return "unknown"
	}
	return strconv.Itoa(min) + "-" + strconv.Itoa(max)
}

// ParseYear extracts a year from values such as "2019", "2019.0" or "2019-05-01"
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 1800 || y > 2200 {
		return 0, false
	}
	return y, true
}

// Summarize computes dataset statistics over the given text fields
func Summarize(t *Table, fields []string) Stats {
	stats := Stats{TotalRecords: t.Len()}

	journals := make(map[string]struct{})
	for i := 0; i < t.Len(); i++ {
		if y, ok := ParseYear(t.Get(i, model.ColYear)); ok {
			if stats.YearMin == 0 || y < stats.YearMin {
				stats.YearMin = y
			}
			if y > stats.YearMax {
				stats.YearMax = y
			}
		}
		if j := strings.TrimSpace(t.Get(i, model.ColJournal)); j != "" {
			journals[strings.ToLower(j)] = struct{}{}
		}
	}
	stats.UniqueJournals = len(journals)

	for _, f := range fields {
		if !t.Has(f) {
			continue
		}
		count := 0
		for i := 0; i < t.Len(); i++ {
			if !IsEmptyValue(t.Get(i, f)) {
				count++
			}
		}
		pct := 0.0
		if t.Len() > 0 {
			pct = float64(count) / float64(t.Len()) * 100
		}
		stats.Completeness = append(stats.Completeness, FieldCompleteness{
			Field:      f,
			Count:      count,
			Percentage: pct,
		})
	}

	return stats
}

// EmptyColumns returns the listed columns that have no non-empty value
func EmptyColumns(t *Table, cols []string) []string {
	var empty []string
	for _, c := range cols {
		if !t.Has(c) {
			continue
		}
		filled := false
		for i := 0; i < t.Len(); i++ {
			if !IsEmptyValue(t.Get(i, c)) {
				filled = true
				break
			}
		}
		if !filled {
			empty = append(empty, c)
		}
	}
	sort.Strings(empty)
	return empty
}

// IsEmptyValue treats blanks and spreadsheet NaN markers as missing
func IsEmptyValue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "null", "none":
		return true
	default:
		return false
	}
}
