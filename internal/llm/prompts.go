package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/strata/internal/model"
)

const (
	stratumSystemPrompt     = "You are a mental health research analyst. Provide concise, evidence-based insights about population strata in clinical depression and anxiety research."
	comparativeSystemPrompt = "You are a research strategist analyzing mental health literature coverage."

	stratumMaxTokens     = 300
	comparativeMaxTokens = 350
	comparativeStrata    = 5
	riskFactorPromptLen  = 100
)

// StratumPrompt builds the per-stratum analysis request
func StratumPrompt(s model.StratumSummary) CompletionRequest {
	var b strings.Builder

	b.WriteString("Analyze this population stratum from mental health literature:\n\n")
	fmt.Fprintf(&b, "**Population Stratum**: %s (%s)\n", s.StratumID, s.Label)
	fmt.Fprintf(&b, "**Studies**: %d unique studies\n", s.UniqueStudies)
	fmt.Fprintf(&b, "**Time Period**: %s\n\n", orDefault(s.YearRange, "Unknown"))

	b.WriteString("**Key Data Points**:\n")
	fmt.Fprintf(&b, "- Top Risk Factor: %s\n", truncate(orDefault(s.TopRiskFactor, "Not specified"), riskFactorPromptLen))
	fmt.Fprintf(&b, "- Most Common Treatment: %s\n", orDefault(s.TopTreatment, "Not specified"))
	fmt.Fprintf(&b, "- Primary Outcome: %s\n\n", orDefault(s.TopOutcome, "Not specified"))

	b.WriteString("**Additional Context**:\n")
	fmt.Fprintf(&b, "Age group: %s; sex: %s; clinical cohort: %s; setting: %s; %d records across %d journals.\n\n",
		s.Components.AgeGroup, s.Components.Sex, s.Components.Condition, s.Components.Setting, s.TotalRecords, s.JournalsCount)

	b.WriteString("Please provide:\n")
	b.WriteString("1. **Key Clinical Insights** (2-3 sentences about what this data reveals)\n")
	b.WriteString("2. **Research Gaps** (1-2 sentences about missing information)\n")
	b.WriteString("3. **Clinical Implications** (1-2 sentences about practical applications)\n\n")
	b.WriteString("Keep response under 200 words, focused on actionable insights for researchers and clinicians.")

	return CompletionRequest{
		System:    stratumSystemPrompt,
		Prompt:    b.String(),
		MaxTokens: stratumMaxTokens,
	}
}

type comparisonEntry struct {
	Stratum      string        `json:"stratum"`
	Studies      int           `json:"studies"`
	TopTreatment string        `json:"top_treatment"`
	Components   model.Profile `json:"components"`
}

// ComparativePrompt builds the cross-stratum comparison request from the largest strata
func ComparativePrompt(summaries []model.StratumSummary) (CompletionRequest, error) {
	top := rankStrata(summaries)
	if len(top) > comparativeStrata {
		top = top[:comparativeStrata]
	}

	entries := make([]comparisonEntry, len(top))
	for i, s := range top {
		entries[i] = comparisonEntry{
			Stratum:      s.StratumID,
			Studies:      s.UniqueStudies,
			TopTreatment: s.TopTreatment,
			Components:   s.Components,
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return CompletionRequest{}, fmt.Errorf("marshal comparison data: %w", err)
	}

	prompt := "Compare these top population strata from mental health research:\n\n" +
		string(data) + "\n\n" +
		"Identify:\n" +
		"1. **Key Differences** in treatment patterns across populations\n" +
		"2. **Underrepresented Groups** that need more research\n" +
		"3. **Research Priorities** based on study distribution\n\n" +
		"Provide actionable insights for future research planning (under 250 words)."

	return CompletionRequest{
		System:    comparativeSystemPrompt,
		Prompt:    prompt,
		MaxTokens: comparativeMaxTokens,
	}, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
