package normalize

import (
	"strings"

	"github.com/ppiankov/strata/internal/model"
)

// keyword is a lowercase search term. Stems match any word continuation
// ("adolescen" matches "adolescence"); plain keywords allow a plural "s".
type keyword struct {
	text string
	stem bool
}

// kw builds keywords from literals; a trailing "*" marks a stem
func kw(terms ...string) []keyword {
	out := make([]keyword, 0, len(terms))
	for _, t := range terms {
		if strings.HasSuffix(t, "*") {
			out = append(out, keyword{text: strings.TrimSuffix(t, "*"), stem: true})
			continue
		}
		out = append(out, keyword{text: t})
	}
	return out
}

// category is one value of a dimension and the keywords that select it
type category struct {
	name     string
	keywords []keyword
}

// Dimension is one axis of the population taxonomy
type Dimension struct {
	Name       string
	categories []category
}

// Match returns the category whose matching keyword is longest, or
// model.Unspecified. Ties go to the category listed first.
func (d *Dimension) Match(text string) string {
	text = strings.ToLower(text)
	best, bestLen := model.Unspecified, 0
	for _, c := range d.categories {
		for _, k := range c.keywords {
			if len(k.text) > bestLen && k.in(text) {
				best, bestLen = c.name, len(k.text)
			}
		}
	}
	return best
}

// Categories returns the category names in taxonomy order
func (d *Dimension) Categories() []string {
	names := make([]string, len(d.categories))
	for i, c := range d.categories {
		names[i] = c.name
	}
	return names
}

// in reports whether k occurs in text on word boundaries
func (k keyword) in(text string) bool {
	if k.text == "" {
		return false
	}
	for start := 0; start < len(text); {
		i := strings.Index(text[start:], k.text)
		if i < 0 {
			return false
		}
		i += start
		start = i + 1

		if isWordByte(k.text[0]) && i > 0 && isWordByte(text[i-1]) {
			continue
		}
		end := i + len(k.text)
		if !isWordByte(k.text[len(k.text)-1]) {
			return true
		}
		if k.stem {
			for end < len(text) && isWordByte(text[end]) {
				end++
			}
		} else if end < len(text) && text[end] == 's' {
			end++
		}
		if end == len(text) || !isWordByte(text[end]) {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b >= 0x80
}

// AgeDimension classifies age brackets
var AgeDimension = &Dimension{
	Name: model.ColAgeGroup,
	categories: []category{
		{model.AgeChildren, kw("child", "children", "childhood", "pediatric*", "paediatric*", "youth under", "elementary", "primary school", "school age", "school-age", "kid", "infant", "toddler", "boy", "girl")},
		{model.AgeAdolescents, kw("adolescen*", "teenager", "teen", "youth", "high school", "secondary school", "puberty", "young people", "juvenile")},
		{model.AgeAdults, kw("adult", "working age", "working-age", "college student", "university student", "undergraduate", "employee", "young adult", "middle-aged")},
		{model.AgeOlderAdults, kw("older adult", "older people", "older person", "elderly", "senior", "geriatric*", "aged 65", "65 and older", "retiree", "late life", "late-life", "nursing home")},
		{model.AgePerinatal, kw("perinatal", "pregnan*", "postpartum", "postnatal", "prenatal", "antenatal", "maternal", "peripartum", "new mother")},
	},
}

// SexDimension classifies the reported sex of participants. boy, girl and the
// pregnancy terms are shared with AgeDimension on purpose: they carry both an
// age and a sex signal, and each dimension matches independently.
var SexDimension = &Dimension{
	Name: model.ColSex,
	categories: []category{
		{model.SexMale, kw("male", "men", "man", "boy", "father", "paternal")},
		{model.SexFemale, kw("female", "women", "woman", "girl", "mother", "maternal", "pregnan*", "postpartum")},
		{model.SexMixed, kw("mixed-sex", "mixed sex", "both sexes", "both genders", "all genders", "men and women", "women and men", "males and females", "boys and girls")},
	},
}

// ConditionDimension classifies clinical cohorts
var ConditionDimension = &Dimension{
	Name: model.ColClinicalCohort,
	categories: []category{
		{model.ConditionDiabetes, kw("diabet*", "type 1 diabetes", "type 2 diabetes", "glucose", "insulin", "glycemic", "glycaemic")},
		{model.ConditionCancer, kw("cancer", "oncolog*", "tumor", "tumour", "chemotherapy", "radiotherapy", "carcinoma", "leukemia", "lymphoma")},
		{model.ConditionCardiovascular, kw("heart", "cardiac", "cardiovascular", "coronary", "hypertensi*", "stroke", "myocardial")},
		{model.ConditionChronicPain, kw("chronic pain", "pain", "fibromyalgia", "arthritis", "migraine", "back pain")},
		{model.ConditionGeneralPopulation, kw("general population", "population-based", "community-dwelling", "community sample", "nationally representative")},
	},
}

// SettingDimension classifies care settings
var SettingDimension = &Dimension{
	Name: model.ColSetting,
	categories: []category{
		{model.SettingPrimaryCare, kw("primary care", "general practice", "gp", "family practice", "clinic", "outpatient")},
		{model.SettingHospital, kw("hospital*", "inpatient", "medical center", "emergency department", "intensive care", "ward")},
		{model.SettingSchool, kw("school", "educational", "classroom", "university", "college", "campus")},
		{model.SettingCommunity, kw("community", "home-based", "neighborhood", "neighbourhood", "public health", "online community")},
	},
}

// ExtractProfile classifies a population description on all four dimensions
func ExtractProfile(population string) model.Profile {
	if strings.TrimSpace(population) == "" {
		return model.UnspecifiedProfile()
	}
	return model.Profile{
		AgeGroup:  AgeDimension.Match(population),
		Sex:       SexDimension.Match(population),
		Condition: ConditionDimension.Match(population),
		Setting:   SettingDimension.Match(population),
	}
}

// rule maps any of its keywords to a category
type rule struct {
	category string
	keywords []keyword
}

func firstRule(rules []rule, text, fallback string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return model.Unspecified
	}
	for _, r := range rules {
		for _, k := range r.keywords {
			if k.in(text) {
				return r.category
			}
		}
	}
	return fallback
}

// Treatment categories
const (
	TreatmentCBT           = "CBT"
	TreatmentACT           = "ACT"
	TreatmentDBT           = "DBT"
	TreatmentMindfulness   = "mindfulness"
	TreatmentMedication    = "medication"
	TreatmentExercise      = "exercise"
	TreatmentDigital       = "digital"
	TreatmentPsychotherapy = "psychotherapy"
	TreatmentOther         = "other"
)

// treatmentRules are checked in order; the first rule with a match wins
var treatmentRules = []rule{
	{TreatmentCBT, kw("cbt", "icbt", "cognitive behavio*", "cognitive-behavio*")},
	{TreatmentACT, kw("act", "acceptance and commitment", "acceptance-based")},
	{TreatmentDBT, kw("dbt", "dialectical behavio*")},
	{TreatmentMindfulness, kw("mindfulness", "mindful", "meditation", "mbsr", "mbct")},
	{TreatmentMedication, kw("medication", "pharmacotherap*", "pharmacolog*", "antidepressant", "ssri", "snri", "drug", "sertraline", "fluoxetine", "escitalopram")},
	{TreatmentExercise, kw("exercise", "physical activit*", "yoga", "walking", "aerobic")},
	{TreatmentDigital, kw("digital", "online", "internet", "web-based", "app", "smartphone", "mobile", "telehealth", "telemedicine")},
	{TreatmentPsychotherapy, kw("psychotherap*", "therapy", "counsel*", "psychoeducation*", "interpersonal", "psychological intervention", "psychosocial")},
}

// CleanTreatment maps a free-text treatment to a treatment category
func CleanTreatment(text string) string {
	return firstRule(treatmentRules, text, TreatmentOther)
}

// TreatmentCategories lists the treatment categories in rule order, then other
func TreatmentCategories() []string {
	out := make([]string, 0, len(treatmentRules)+1)
	for _, r := range treatmentRules {
		out = append(out, r.category)
	}
	return append(out, TreatmentOther)
}

// Outcome directions
const (
	OutcomeImprovement      = "improvement"
	OutcomeSymptomReduction = "symptom_reduction"
	OutcomeNoChange         = "no_change"
	OutcomeWorsened         = "worsened"
	OutcomeMixed            = "mixed_results"
)

// outcomeRules put null and mixed findings ahead of directional words so
// "no significant improvement" is not read as an improvement
var outcomeRules = []rule{
	{OutcomeNoChange, kw("no change", "unchanged", "no significant", "not significant", "no difference", "no effect", "did not differ", "non-significant")},
	{OutcomeMixed, kw("mixed", "variable", "inconsistent", "inconclusive")},
	{OutcomeWorsened, kw("worse*", "worsening", "deteriorat*", "exacerbat*")},
	{OutcomeImprovement, kw("improv*", "better", "positive", "benefit*", "enhanc*", "effective")},
	{OutcomeSymptomReduction, kw("reduc*", "decreas*", "lower*", "fewer", "alleviat*", "remission")},
}

// CleanOutcome maps a free-text outcome to an outcome direction
func CleanOutcome(text string) string {
	return firstRule(outcomeRules, text, model.Unspecified)
}

// OutcomeDirections lists the outcome directions in display order
func OutcomeDirections() []string {
	return []string{OutcomeImprovement, OutcomeSymptomReduction, OutcomeNoChange, OutcomeWorsened, OutcomeMixed, model.Unspecified}
}
