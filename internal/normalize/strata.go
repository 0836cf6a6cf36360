package normalize

import (
	"strings"

	"github.com/ppiankov/strata/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StratumCount is the size of the closed stratum enumeration
const StratumCount = 51

// Stratum is one label of the closed population enumeration
type Stratum struct {
	ID         string        `json:"stratum_id"`
	Label      string        `json:"label"`
	Components model.Profile `json:"components"` // Defining dimensions; the rest are unspecified
}

var (
	strata     = buildStrata()
	strataByID = indexStrata(strata)
)

// Assign maps a profile to its stratum id.
// Hierarchy: age > clinical condition > sex > setting.
func Assign(p model.Profile) string {
	age := known(p.AgeGroup, model.AgeGroups)
	condition := p.Condition
	if !model.IsClinical(condition) {
		condition = ""
	}
	sex := p.Sex
	if !model.IsBinarySex(sex) {
		sex = ""
	}

	switch {
	case age != "" && condition != "":
		return age + "_" + condition
	case age == model.AgePerinatal:
		return model.AgePerinatal
	case age != "" && sex != "":
		return age + "_" + sex
	case age != "":
		return age
	case condition != "" && sex != "":
		return sex + "_" + condition
	case condition != "":
		return condition
	case sex != "":
		return sex
	}

	switch p.Setting {
	case model.SettingPrimaryCare, model.SettingHospital, model.SettingSchool:
		return p.Setting
	}
	return model.StratumGeneralPopulation
}

func known(value string, allowed []string) string {
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return ""
}

// Strata returns the full enumeration in decision-table order
func Strata() []Stratum {
	return append([]Stratum(nil), strata...)
}

// Lookup returns the stratum with the given id
func Lookup(id string) (Stratum, bool) {
	s, ok := strataByID[id]
	return s, ok
}

// IsStratum reports whether id belongs to the enumeration
func IsStratum(id string) bool {
	_, ok := strataByID[id]
	return ok
}

// Label returns the display label of a stratum id; unknown ids are title-cased
func Label(id string) string {
	if s, ok := strataByID[id]; ok {
		return s.Label
	}
	return title(id)
}

func buildStrata() []Stratum {
	var out []Stratum
	add := func(p model.Profile) {
		id := Assign(p)
		out = append(out, Stratum{ID: id, Label: labelFor(p), Components: p})
	}
	profile := func(age, sex, condition, setting string) model.Profile {
		p := model.UnspecifiedProfile()
		if age != "" {
			p.AgeGroup = age
		}
		if sex != "" {
			p.Sex = sex
		}
		if condition != "" {
			p.Condition = condition
		}
		if setting != "" {
			p.Setting = setting
		}
		return p
	}

	clinical := []string{model.ConditionDiabetes, model.ConditionCancer, model.ConditionCardiovascular, model.ConditionChronicPain}
	binary := []string{model.SexMale, model.SexFemale}
	nonPerinatal := model.AgeGroups[:4]

	for _, age := range model.AgeGroups {
		for _, c := range clinical {
			add(profile(age, "", c, ""))
		}
	}
	add(profile(model.AgePerinatal, "", "", ""))
	for _, age := range nonPerinatal {
		for _, sex := range binary {
			add(profile(age, sex, "", ""))
		}
	}
	for _, age := range nonPerinatal {
		add(profile(age, "", "", ""))
	}
	for _, sex := range binary {
		for _, c := range clinical {
			add(profile("", sex, c, ""))
		}
	}
	for _, c := range clinical {
		add(profile("", "", c, ""))
	}
	for _, sex := range binary {
		add(profile("", sex, "", ""))
	}
	for _, setting := range []string{model.SettingPrimaryCare, model.SettingHospital, model.SettingSchool} {
		add(profile("", "", "", setting))
	}
	out = append(out, Stratum{
		ID:         model.StratumGeneralPopulation,
		Label:      "General Population",
		Components: profile("", "", model.ConditionGeneralPopulation, ""),
	})

	return out
}

func indexStrata(list []Stratum) map[string]Stratum {
	m := make(map[string]Stratum, len(list))
	for _, s := range list {
		m[s.ID] = s
	}
	return m
}

// labelFor renders the defining components, e.g. "Older Adults / Female"
func labelFor(p model.Profile) string {
	var parts []string
	for _, v := range []string{p.AgeGroup, p.Sex, p.Condition, p.Setting} {
		if v == "" || v == model.Unspecified {
			continue
		}
		parts = append(parts, title(v))
	}
	return strings.Join(parts, " / ")
}

// title renders a snake_case value as words; a Caser is not safe for
// concurrent use so one is built per call
func title(v string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(v, "_", " "))
}
