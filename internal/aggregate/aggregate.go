// Package aggregate computes per-stratum frequency tables from normalized records.
package aggregate

import (
	"sort"
	"strings"

	"github.com/ppiankov/strata/internal/dataset"
	"github.com/ppiankov/strata/internal/logging"
	"github.com/ppiankov/strata/internal/model"
	"github.com/ppiankov/strata/internal/normalize"
)

// Options controls aggregation
type Options struct {
	MinStratumSize int  // Strata with fewer unique studies are excluded
	MeaningfulOnly bool // Drop placeholder values such as "unspecified" before counting
}

// Results holds every aggregate table of one run
type Results struct {
	Summaries         []model.StratumSummary
	RiskFactors       []model.Frequency
	Symptoms          []model.Frequency
	Treatments        []model.Frequency
	Outcomes          []model.Frequency
	TreatmentOutcomes []model.TreatmentOutcome
	Excluded          []string // Strata below the minimum size
}

// Aggregator groups normalized records by stratum and counts items
type Aggregator struct {
	opts Options
}

// NewAggregator creates a new aggregator
func NewAggregator(opts Options) *Aggregator {
	if opts.MinStratumSize < 1 {
		opts.MinStratumSize = 1
	}
	return &Aggregator{opts: opts}
}

var meaninglessValues = map[string]bool{
	"":                true,
	model.Unspecified: true,
	"not specified":   true,
	"unclear":         true,
	"unknown":         true,
	"not reported":    true,
	"nr":              true,
	"n/a":             true,
	"na":              true,
	"none":            true,
	"nan":             true,
}

// IsMeaningless reports whether v is a placeholder rather than a finding
func IsMeaningless(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return meaninglessValues[v] || strings.HasPrefix(v, "unknown") || strings.HasPrefix(v, "not specified")
}

// stratumData accumulates the distinct facts of one stratum
type stratumData struct {
	id       string
	records  int
	studies  map[string]struct{}
	journals map[string]struct{}
	yearMin  int
	yearMax  int

	risks      counter
	symptoms   counter
	treatments counter
	outcomes   counter
	pairs      map[[2]string]map[string]struct{}
}

// counter maps an item to the set of studies (or study facts) mentioning it
type counter map[string]map[string]struct{}

func (c counter) add(item, study string) {
	if c[item] == nil {
		c[item] = make(map[string]struct{})
	}
	c[item][study] = struct{}{}
}

func newStratumData(id string) *stratumData {
	return &stratumData{
		id:         id,
		studies:    make(map[string]struct{}),
		journals:   make(map[string]struct{}),
		risks:      make(counter),
		symptoms:   make(counter),
		treatments: make(counter),
		outcomes:   make(counter),
		pairs:      make(map[[2]string]map[string]struct{}),
	}
}

// Aggregate builds all tables from normalized records
func (a *Aggregator) Aggregate(records []model.NormalizedRecord) *Results {
	byStratum := make(map[string]*stratumData)
	for _, r := range records {
		d := byStratum[r.StratumID]
		if d == nil {
			d = newStratumData(r.StratumID)
			byStratum[r.StratumID] = d
		}
		a.collect(d, r)
	}

	var kept []*stratumData
	res := &Results{}
	for _, d := range byStratum {
		if len(d.studies) < a.opts.MinStratumSize {
			res.Excluded = append(res.Excluded, d.id)
			continue
		}
		kept = append(kept, d)
	}
	sort.Strings(res.Excluded)
	sort.Slice(kept, func(i, j int) bool {
		if len(kept[i].studies) != len(kept[j].studies) {
			return len(kept[i].studies) > len(kept[j].studies)
		}
		return kept[i].id < kept[j].id
	})

	for _, d := range kept {
		total := len(d.studies)
		risks := frequencies(d.id, d.risks, total)
		symptoms := frequencies(d.id, d.symptoms, total)
		treatments := frequencies(d.id, d.treatments, total)
		outcomes := frequencies(d.id, d.outcomes, total)

		res.RiskFactors = append(res.RiskFactors, risks...)
		res.Symptoms = append(res.Symptoms, symptoms...)
		res.Treatments = append(res.Treatments, treatments...)
		res.Outcomes = append(res.Outcomes, outcomes...)
		res.TreatmentOutcomes = append(res.TreatmentOutcomes, treatmentOutcomes(d, total)...)

		components := model.UnspecifiedProfile()
		if s, ok := normalize.Lookup(d.id); ok {
			components = s.Components
		}
		res.Summaries = append(res.Summaries, model.StratumSummary{
			StratumID:     d.id,
			Label:         normalize.Label(d.id),
			Components:    components,
			TotalRecords:  d.records,
			UniqueStudies: total,
			YearRange:     dataset.FormatYearRange(d.yearMin, d.yearMax),
			JournalsCount: len(d.journals),
			TopRiskFactor: top(risks),
			TopTreatment:  top(treatments),
			TopOutcome:    top(outcomes),
		})
	}

	logging.L().Info("aggregated strata",
		"records", len(records),
		"reported", len(res.Summaries),
		"excluded", len(res.Excluded),
		"min_size", a.opts.MinStratumSize)

	return res
}

func (a *Aggregator) collect(d *stratumData, r model.NormalizedRecord) {
	study := normalize.StudyKey(r.PMID, r.Title)
	d.records++
	d.studies[study] = struct{}{}

	if j := strings.TrimSpace(r.Journal); j != "" {
		d.journals[strings.ToLower(j)] = struct{}{}
	}
	if y, ok := dataset.ParseYear(r.Year); ok {
		if d.yearMin == 0 || y < d.yearMin {
			d.yearMin = y
		}
		if y > d.yearMax {
			d.yearMax = y
		}
	}

	for _, item := range normalize.SplitItems(r.RiskFactors) {
		if key := a.itemKey(item); key != "" {
			d.risks.add(key, study)
		}
	}
	for _, item := range normalize.SplitItems(r.Symptoms) {
		if key := a.itemKey(item); key != "" {
			d.symptoms.add(key, study)
		}
	}

	treatment := a.categoryKey(r.TreatmentCategory)
	outcome := a.categoryKey(r.OutcomeDirection)
	if treatment != "" {
		d.treatments.add(treatment, study)
	}
	if outcome != "" {
		d.outcomes.add(outcome, study)
	}
	if treatment != "" && outcome != "" {
		key := [2]string{treatment, outcome}
		if d.pairs[key] == nil {
			d.pairs[key] = make(map[string]struct{})
		}
		d.pairs[key][study] = struct{}{}
	}
}

// itemKey lower-cases free-text items so spelling variants in case merge
func (a *Aggregator) itemKey(item string) string {
	item = strings.ToLower(strings.Join(strings.Fields(item), " "))
	if item == "" || (a.opts.MeaningfulOnly && IsMeaningless(item)) {
		return ""
	}
	return item
}

func (a *Aggregator) categoryKey(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		category = model.Unspecified
	}
	if a.opts.MeaningfulOnly && IsMeaningless(category) {
		return ""
	}
	return category
}

type itemCount struct {
	name  string
	count int
}

func sortedCounts(c counter) []itemCount {
	out := make([]itemCount, 0, len(c))
	for name, studies := range c {
		out = append(out, itemCount{name: name, count: len(studies)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

func frequencies(stratum string, c counter, totalStudies int) []model.Frequency {
	items := sortedCounts(c)
	counts := make([]int, len(items))
	for i, it := range items {
		counts[i] = it.count
	}
	shares := Apportion(counts)

	out := make([]model.Frequency, len(items))
	for i, it := range items {
		out[i] = model.Frequency{
			StratumID:       stratum,
			Item:            it.name,
			Count:           it.count,
			TotalStudies:    totalStudies,
			Percentage:      shares[i],
			StudyPercentage: ratio(it.count, totalStudies),
		}
	}
	return out
}

func treatmentOutcomes(d *stratumData, totalStudies int) []model.TreatmentOutcome {
	out := make([]model.TreatmentOutcome, 0, len(d.pairs))
	for key, studies := range d.pairs {
		out = append(out, model.TreatmentOutcome{
			StratumID:    d.id,
			Treatment:    key[0],
			Outcome:      key[1],
			Count:        len(studies),
			TotalStudies: totalStudies,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Treatment != out[j].Treatment {
			return out[i].Treatment < out[j].Treatment
		}
		return out[i].Outcome < out[j].Outcome
	})

	counts := make([]int, len(out))
	for i := range out {
		counts[i] = out[i].Count
	}
	shares := Apportion(counts)
	for i := range out {
		out[i].Percentage = shares[i]
		out[i].StudyPercentage = ratio(out[i].Count, totalStudies)
	}
	return out
}

func top(freqs []model.Frequency) string {
	if len(freqs) == 0 {
		return ""
	}
	return freqs[0].Item
}

// ForStratum returns the rows of one stratum, preserving table order
func ForStratum(freqs []model.Frequency, stratum string) []model.Frequency {
	var out []model.Frequency
	for _, f := range freqs {
		if f.StratumID == stratum {
			out = append(out, f)
		}
	}
	return out
}

// Totals sums a frequency table across strata. Shares are apportioned so
// they sum to 100. The result is ordered by count desc, then name.
func Totals(freqs []model.Frequency) []model.CategoryShare {
	sums := make(map[string]int)
	for _, f := range freqs {
		sums[f.Item] += f.Count
	}
	out := make([]model.CategoryShare, 0, len(sums))
	for name, count := range sums {
		out = append(out, model.CategoryShare{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})

	counts := make([]int, len(out))
	for i := range out {
		counts[i] = out[i].Count
	}
	for i, share := range Apportion(counts) {
		out[i].Percentage = share
	}
	return out
}

// TotalStudies returns the number of studies across reported strata
func (r *Results) TotalStudies() int {
	n := 0
	for _, s := range r.Summaries {
		n += s.UniqueStudies
	}
	return n
}

// TotalRecords returns the number of normalized records across reported strata
func (r *Results) TotalRecords() int {
	n := 0
	for _, s := range r.Summaries {
		n += s.TotalRecords
	}
	return n
}
