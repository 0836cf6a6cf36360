package model

// Unspecified marks a dimension or category with no matching keyword
const Unspecified = "unspecified"

// Age groups
const (
	AgeChildren    = "children"
	AgeAdolescents = "adolescents"
	AgeAdults      = "adults"
	AgeOlderAdults = "older_adults"
	AgePerinatal   = "perinatal"
)

// Sex categories
const (
	SexMale   = "male"
	SexFemale = "female"
	SexMixed  = "mixed"
)

// Clinical cohorts
const (
	ConditionDiabetes          = "diabetes"
	ConditionCancer            = "cancer"
	ConditionCardiovascular    = "cardiovascular"
	ConditionChronicPain       = "chronic_pain"
	ConditionGeneralPopulation = "general_population"
)

// Care settings
const (
	SettingPrimaryCare = "primary_care"
	SettingHospital    = "hospital"
	SettingSchool      = "school"
	SettingCommunity   = "community"
)

// StratumGeneralPopulation is the catch-all stratum
const StratumGeneralPopulation = "general_population"

// AgeGroups lists age groups in taxonomy order
var AgeGroups = []string{AgeChildren, AgeAdolescents, AgeAdults, AgeOlderAdults, AgePerinatal}

// Sexes lists sex categories in taxonomy order
var Sexes = []string{SexMale, SexFemale, SexMixed}

// Conditions lists clinical cohorts in taxonomy order
var Conditions = []string{
	ConditionDiabetes,
	ConditionCancer,
	ConditionCardiovascular,
	ConditionChronicPain,
	ConditionGeneralPopulation,
}

// Settings lists care settings in taxonomy order
var Settings = []string{SettingPrimaryCare, SettingHospital, SettingSchool, SettingCommunity}

// Profile holds the four taxonomy dimensions extracted from a population description
type Profile struct {
	AgeGroup  string `json:"age_group"`
	Sex       string `json:"sex"`
	Condition string `json:"clinical_cohort"`
	Setting   string `json:"setting"`
}

// UnspecifiedProfile returns a profile with every dimension unspecified
func UnspecifiedProfile() Profile {
	return Profile{
		AgeGroup:  Unspecified,
		Sex:       Unspecified,
		Condition: Unspecified,
		Setting:   Unspecified,
	}
}

// IsClinical reports whether the condition names a clinical cohort
func IsClinical(condition string) bool {
	switch condition {
	case ConditionDiabetes, ConditionCancer, ConditionCardiovascular, ConditionChronicPain:
		return true
	default:
		return false
	}
}

// IsBinarySex reports whether sex is male or female
func IsBinarySex(sex string) bool {
	return sex == SexMale || sex == SexFemale
}
