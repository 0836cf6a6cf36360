package normalize

import (
	"testing"

	"github.com/ppiankov/strata/internal/model"
)

func TestStrata_Enumeration(t *testing.T) {
	list := Strata()
	if len(list) != StratumCount {
		t.Fatalf("expected %d strata, got %d", StratumCount, len(list))
	}

	ids := make(map[string]bool)
	for _, s := range list {
		if ids[s.ID] {
			t.Errorf("duplicate stratum id %s", s.ID)
		}
		ids[s.ID] = true

		if got := Assign(s.Components); got != s.ID {
			t.Errorf("components of %s assign to %s", s.ID, got)
		}
		if s.Label == "" {
			t.Errorf("stratum %s has no label", s.ID)
		}
	}
}

func TestAssign_TotalAndSurjective(t *testing.T) {
	with := func(values []string) []string {
		return append(append([]string(nil), values...), model.Unspecified, "")
	}

	reached := make(map[string]bool)
	for _, age := range with(model.AgeGroups) {
		for _, sex := range with(model.Sexes) {
			for _, condition := range with(model.Conditions) {
				for _, setting := range with(model.Settings) {
					p := model.Profile{AgeGroup: age, Sex: sex, Condition: condition, Setting: setting}
					id := Assign(p)
					if !IsStratum(id) {
						t.Fatalf("profile %+v assigned unknown stratum %q", p, id)
					}
					reached[id] = true
				}
			}
		}
	}

	if len(reached) != StratumCount {
		t.Errorf("expected all %d strata reachable, got %d", StratumCount, len(reached))
	}
}

func TestAssign_Hierarchy(t *testing.T) {
	tests := []struct {
		profile model.Profile
		want    string
	}{
		{model.Profile{AgeGroup: model.AgeAdults, Sex: model.SexFemale, Condition: model.ConditionCancer, Setting: model.SettingHospital}, "adults_cancer"},
		{model.Profile{AgeGroup: model.AgePerinatal, Sex: model.SexFemale, Condition: model.Unspecified, Setting: model.SettingCommunity}, "perinatal"},
		{model.Profile{AgeGroup: model.AgeOlderAdults, Sex: model.SexMale, Condition: model.ConditionGeneralPopulation, Setting: model.Unspecified}, "older_adults_male"},
		{model.Profile{AgeGroup: model.AgeChildren, Sex: model.SexMixed, Condition: model.Unspecified, Setting: model.SettingSchool}, "children"},
		{model.Profile{AgeGroup: model.Unspecified, Sex: model.SexMale, Condition: model.ConditionCardiovascular, Setting: model.Unspecified}, "male_cardiovascular"},
		{model.Profile{AgeGroup: model.Unspecified, Sex: model.SexMixed, Condition: model.ConditionDiabetes, Setting: model.Unspecified}, "diabetes"},
		{model.Profile{AgeGroup: model.Unspecified, Sex: model.SexFemale, Condition: model.Unspecified, Setting: model.SettingHospital}, "female"},
		{model.Profile{AgeGroup: model.Unspecified, Sex: model.Unspecified, Condition: model.Unspecified, Setting: model.SettingHospital}, "hospital"},
		{model.Profile{AgeGroup: model.Unspecified, Sex: model.Unspecified, Condition: model.Unspecified, Setting: model.SettingCommunity}, model.StratumGeneralPopulation},
		{model.UnspecifiedProfile(), model.StratumGeneralPopulation},
	}

	for _, tt := range tests {
		if got := Assign(tt.profile); got != tt.want {
			t.Errorf("Assign(%+v) = %s, want %s", tt.profile, got, tt.want)
		}
	}
}

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"older_adults_female":          "Older Adults / Female",
		"adults_chronic_pain":          "Adults / Chronic Pain",
		"primary_care":                 "Primary Care",
		model.StratumGeneralPopulation: "General Population",
		"legacy_stratum":               "Legacy Stratum",
	}

	for id, want := range tests {
		if got := Label(id); got != want {
			t.Errorf("Label(%q) = %q, want %q", id, got, want)
		}
	}
}
