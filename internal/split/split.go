// Package split parses the free-text LLM output column into structured fields.
package split

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ppiankov/strata/internal/dataset"
	"github.com/ppiankov/strata/internal/model"
)

// ErrNoGPTOutput is returned when the input table has no gpt_output column
var ErrNoGPTOutput = errors.New("input has no " + model.ColGPTOutput + " column")

// minFieldLength is the shortest body accepted for a field; shorter text is noise
const minFieldLength = 10

// labelKeywords maps section label keywords to output fields
var labelKeywords = []struct {
	field    string
	keywords []string
}{
	{model.ColPopulation, []string{"population", "participant", "subject", "cohort", "demographic"}},
	{model.ColRiskFactors, []string{"risk factor", "cause", "trigger", "predictor"}},
	{model.ColSymptoms, []string{"symptom", "manifestation", "presentation", "clinical feature"}},
	{model.ColTreatments, []string{"treatment", "intervention", "therap", "management", "approach"}},
	{model.ColOutcomes, []string{"outcome", "result", "effect", "finding", "conclusion"}},
	{model.ColChainOfThought, []string{"chain of thought", "reasoning", "rationale"}},
}

var (
	// "1. **Population**: adults", "- Risk factors: ...", "**Symptoms:** ..."
	sectionPattern = regexp.MustCompile(`^(?:\d+[.)]|[-*•])?\s*\**\s*([^:\n]{1,80}?)\s*\**\s*:\s*\**\s*(.*)$`)
	bulletPattern  = regexp.MustCompile(`^(?:\d+[.)]|[-*•])\s+(.*)$`)
	listPattern    = regexp.MustCompile(`^[-*•]\s+(.*)$`)
)

// Splitter extracts labelled sections from LLM output text
type Splitter struct {
	minLength int
}

// NewSplitter creates a new splitter
func NewSplitter() *Splitter {
	return &Splitter{minLength: minFieldLength}
}

type section struct {
	field string
	items []string
	// Opened by a bullet line; sibling bullets may then open sections too
	bulleted bool
}

func (s *section) add(text string) {
	text = clean(text)
	if text == "" {
		return
	}
	s.items = append(s.items, text)
}

func (s *section) extend(text string) {
	text = clean(text)
	if text == "" {
		return
	}
	if len(s.items) == 0 {
		s.items = append(s.items, text)
		return
	}
	s.items[len(s.items)-1] += " " + text
}

// Extract returns the field values found in text, keyed by column name.
// Every field in model.ExtractedFields is present in the result.
func (s *Splitter) Extract(text string) map[string]string {
	fields := make(map[string]string, len(model.ExtractedFields))
	for _, f := range model.ExtractedFields {
		fields[f] = ""
	}

	var current *section
	flush := func() {
		if current == nil {
			return
		}
		body := strings.Join(current.items, "; ")
		if fields[current.field] == "" && s.accept(current.field, body) {
			fields[current.field] = body
		}
		current = nil
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		item, bullet := listItem(line)
		if current != nil && bullet && !current.bulleted {
			current.add(item)
			continue
		}

		if m := sectionPattern.FindStringSubmatch(line); m != nil {
			if field := labelField(m[1]); field != "" {
				flush()
				current = &section{field: field, bulleted: listPattern.MatchString(line)}
				current.add(m[2])
				continue
			}
		}

		if current == nil {
			continue
		}
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			current.add(m[1])
			continue
		}
		current.extend(line)
	}
	flush()

	return fields
}

// listItem reports whether line is a -, * or • bullet that is not a bold label
func listItem(line string) (string, bool) {
	m := listPattern.FindStringSubmatch(line)
	if m == nil || strings.HasPrefix(m[1], "**") {
		return "", false
	}
	return m[1], true
}

func (s *Splitter) accept(field, body string) bool {
	if field == model.ColChainOfThought {
		return body != ""
	}
	return len(body) > s.minLength
}

// labelField returns the field whose keyword appears earliest in label
func labelField(label string) string {
	label = strings.ToLower(strings.Trim(label, "*_ "))
	best, bestPos := "", -1
	for _, group := range labelKeywords {
		for _, kw := range group.keywords {
			pos := strings.Index(label, kw)
			if pos < 0 {
				continue
			}
			if bestPos < 0 || pos < bestPos {
				best, bestPos = group.field, pos
			}
		}
	}
	return best
}

// clean collapses whitespace and trims bullet and bold markers
func clean(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = strings.ReplaceAll(text, "**", "")
	return strings.Trim(text, "-*• ")
}

// Split returns a copy of t with the extracted field columns filled from
// gpt_output, plus per-field coverage of the result.
func (s *Splitter) Split(t *dataset.Table) (*dataset.Table, []dataset.FieldCompleteness, error) {
	if !t.Has(model.ColGPTOutput) {
		return nil, nil, ErrNoGPTOutput
	}

	out := dataset.New(t.Columns)
	for _, row := range t.Rows {
		out.Append(row)
	}
	for _, f := range model.ExtractedFields {
		out.AddColumn(f)
	}

	for i := 0; i < out.Len(); i++ {
		text := out.Get(i, model.ColGPTOutput)
		if dataset.IsEmptyValue(text) {
			text = ""
		}
		for field, value := range s.Extract(text) {
			out.Set(i, field, value)
		}
	}

	stats := dataset.Summarize(out, model.ExtractedFields)
	return out, stats.Completeness, nil
}
