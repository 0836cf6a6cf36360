// Package viz renders aggregate tables as self-contained HTML charts.
package viz

import (
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/ppiankov/strata/internal/aggregate"
	"github.com/ppiankov/strata/internal/model"
	"github.com/ppiankov/strata/internal/normalize"
)

// Chart file names
const (
	FileStratumOverview   = "stratum_overview.html"
	FileTopRiskFactors    = "top_risk_factors.html"
	FileSymptoms          = "symptoms_comparison.html"
	FileTreatmentOutcomes = "treatment_outcomes_heatmap.html"
	FilePopulationFlow    = "population_flow_sankey.html"
)

func (r *Renderer) initOpts(id, title string, height int) charts.GlobalOpts {
	initialization := opts.Initialization{
		PageTitle: title,
		ChartID:   id,
		Width:     "1200px",
		Height:    px(height),
	}
	if r.opts.AssetsHost != "" {
		initialization.AssetsHost = r.opts.AssetsHost
	}
	return charts.WithInitializationOpts(initialization)
}

// StratumOverview plots unique studies and records per reported stratum
func (r *Renderer) StratumOverview(res *aggregate.Results) *Chart {
	if len(res.Summaries) == 0 {
		return nil
	}

	// Horizontal bars draw bottom-up, so feed the largest stratum last
	n := len(res.Summaries)
	labels := make([]string, n)
	studies := make([]opts.BarData, n)
	records := make([]opts.BarData, n)
	for i, s := range res.Summaries {
		j := n - 1 - i
		labels[j] = s.Label
		studies[j] = opts.BarData{Name: s.StratumID, Value: s.UniqueStudies}
		records[j] = opts.BarData{Name: s.StratumID, Value: s.TotalRecords}
	}

	title := "Population Strata Overview"
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		r.initOpts("stratum_overview", title, 200+28*n),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Unique studies and normalized records per stratum",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Top: "bottom"}),
		charts.WithGridOpts(opts.Grid{Left: "22%"}),
	)
	bar.SetXAxis(labels).
		AddSeries("Unique studies", studies).
		AddSeries("Records", records)
	bar.XYReversal()

	return &Chart{File: FileStratumOverview, Title: title, renderer: bar}
}

// TopItems plots the most frequent items of the largest strata as grouped bars.
// Values are the share of the stratum's studies mentioning the item.
func (r *Renderer) TopItems(file, title string, res *aggregate.Results, freqs []model.Frequency, topItems int) *Chart {
	strata := res.Summaries
	if len(strata) > r.opts.TopStrata {
		strata = strata[:r.opts.TopStrata]
	}

	// Rank items by total count over the selected strata
	totals := make(map[string]int)
	for _, s := range strata {
		for _, f := range aggregate.ForStratum(freqs, s.StratumID) {
			totals[f.Item] += f.Count
		}
	}
	if len(totals) == 0 {
		return nil
	}
	items := rankKeys(totals)
	if len(items) > topItems {
		items = items[:topItems]
	}

	id := chartID(file)
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		r.initOpts(id, title, 600),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Percent of studies in each stratum",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Top: "bottom"}),
		charts.WithGridOpts(opts.Grid{Left: "22%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "% of studies"}),
	)

	// Reverse item order so the most frequent item is drawn on top
	axis := make([]string, len(items))
	for i, item := range items {
		axis[len(items)-1-i] = item
	}
	bar.SetXAxis(axis)

	for _, s := range strata {
		byItem := make(map[string]float64)
		for _, f := range aggregate.ForStratum(freqs, s.StratumID) {
			byItem[f.Item] = f.StudyPercentage
		}
		data := make([]opts.BarData, len(axis))
		for i, item := range axis {
			data[i] = opts.BarData{Name: item, Value: byItem[item]}
		}
		bar.AddSeries(s.Label, data)
	}
	bar.XYReversal()

	return &Chart{File: file, Title: title, renderer: bar}
}

// TreatmentOutcomeHeatmap plots study counts per treatment and outcome across strata
func (r *Renderer) TreatmentOutcomeHeatmap(res *aggregate.Results) *Chart {
	counts := make(map[[2]string]int)
	treatmentSet := make(map[string]bool)
	outcomeSet := make(map[string]bool)
	for _, to := range res.TreatmentOutcomes {
		counts[[2]string{to.Treatment, to.Outcome}] += to.Count
		treatmentSet[to.Treatment] = true
		outcomeSet[to.Outcome] = true
	}
	if len(counts) == 0 {
		return nil
	}

	treatments := ordered(normalize.TreatmentCategories(), treatmentSet)
	outcomes := ordered(normalize.OutcomeDirections(), outcomeSet)

	peak := 0
	var data []opts.HeatMapData
	for y, t := range treatments {
		for x, o := range outcomes {
			c := counts[[2]string{t, o}]
			if c > peak {
				peak = c
			}
			data = append(data, opts.HeatMapData{Name: t + " / " + o, Value: [3]interface{}{x, y, c}})
		}
	}

	title := "Treatment and Outcome Patterns"
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		r.initOpts("treatment_outcomes_heatmap", title, 200+40*len(treatments)),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Studies per treatment category and outcome direction",
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: labels(outcomes)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: labels(treatments)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Min:     0,
			Max:     float32(peak),
			InRange: &opts.VisualMapInRange{Color: []string{"#f7fbff", "#6baed6", "#08306b"}},
		}),
		charts.WithGridOpts(opts.Grid{Left: "15%"}),
	)
	hm.SetXAxis(labels(outcomes)).AddSeries("studies", data)

	return &Chart{File: FileTreatmentOutcomes, Title: title, renderer: hm}
}

// PopulationFlow draws age group -> treatment -> outcome flows from normalized
// records. Unspecified age groups and treatments are left out.
func (r *Renderer) PopulationFlow(records []model.NormalizedRecord) *Chart {
	ageTreat := make(map[[2]string]map[string]struct{})
	treatOutcome := make(map[[2]string]map[string]struct{})
	add := func(m map[[2]string]map[string]struct{}, key [2]string, study string) {
		if m[key] == nil {
			m[key] = make(map[string]struct{})
		}
		m[key][study] = struct{}{}
	}

	ages := make(map[string]bool)
	treatments := make(map[string]bool)
	outcomes := make(map[string]bool)
	for _, rec := range records {
		age, treatment := rec.Profile.AgeGroup, rec.TreatmentCategory
		if age == "" || age == model.Unspecified || treatment == "" || treatment == model.Unspecified {
			continue
		}
		outcome := rec.OutcomeDirection
		if outcome == "" {
			outcome = model.Unspecified
		}
		study := normalize.StudyKey(rec.PMID, rec.Title)
		add(ageTreat, [2]string{age, treatment}, study)
		add(treatOutcome, [2]string{treatment, outcome}, study)
		ages[age] = true
		treatments[treatment] = true
		outcomes[outcome] = true
	}
	if len(ageTreat) == 0 {
		return nil
	}

	ageOrder := ordered(model.AgeGroups, ages)
	treatOrder := ordered(normalize.TreatmentCategories(), treatments)
	outcomeOrder := ordered(normalize.OutcomeDirections(), outcomes)

	// Node names must be unique across layers
	ageNode := func(v string) string { return normalize.Label(v) + " (age)" }
	treatNode := func(v string) string { return label(v) + " (treatment)" }
	outcomeNode := func(v string) string { return normalize.Label(v) + " (outcome)" }

	var nodes []opts.SankeyNode
	for _, v := range ageOrder {
		nodes = append(nodes, opts.SankeyNode{Name: ageNode(v)})
	}
	for _, v := range treatOrder {
		nodes = append(nodes, opts.SankeyNode{Name: treatNode(v)})
	}
	for _, v := range outcomeOrder {
		nodes = append(nodes, opts.SankeyNode{Name: outcomeNode(v)})
	}

	var links []opts.SankeyLink
	for _, a := range ageOrder {
		for _, t := range treatOrder {
			if studies := ageTreat[[2]string{a, t}]; len(studies) > 0 {
				links = append(links, opts.SankeyLink{Source: ageNode(a), Target: treatNode(t), Value: float32(len(studies))})
			}
		}
	}
	for _, t := range treatOrder {
		for _, o := range outcomeOrder {
			if studies := treatOutcome[[2]string{t, o}]; len(studies) > 0 {
				links = append(links, opts.SankeyLink{Source: treatNode(t), Target: outcomeNode(o), Value: float32(len(studies))})
			}
		}
	}

	title := "Population Flow: Age Group to Treatment to Outcome"
	sankey := charts.NewSankey()
	sankey.SetGlobalOptions(
		r.initOpts("population_flow_sankey", title, 700),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Link width is the number of studies",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "item"}),
	)
	sankey.AddSeries("flow", nodes, links,
		charts.WithLineStyleOpts(opts.LineStyle{Color: "source", Curveness: 0.5}),
	)

	return &Chart{File: FilePopulationFlow, Title: title, renderer: sankey}
}

// ordered returns the present values in known order, then unknown values sorted
func ordered(known []string, present map[string]bool) []string {
	var out []string
	seen := make(map[string]bool, len(known))
	for _, v := range known {
		seen[v] = true
		if present[v] {
			out = append(out, v)
		}
	}
	var extra []string
	for v := range present {
		if !seen[v] {
			extra = append(extra, v)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// rankKeys orders keys by value desc, then key asc
func rankKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// label keeps acronyms such as CBT intact and title-cases the rest
func label(v string) string {
	if v != "" && v == strings.ToUpper(v) {
		return v
	}
	return normalize.Label(v)
}

func labels(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = label(v)
	}
	return out
}
