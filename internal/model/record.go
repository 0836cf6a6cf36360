package model

// Column names shared by the split, normalize and analyze steps
const (
	ColGPTOutput      = "gpt_output"
	ColPMID           = "pmid"
	ColTitle          = "title"
	ColAbstract       = "abstract"
	ColYear           = "year"
	ColJournal        = "journal"
	ColPopulation     = "population"
	ColRiskFactors    = "risk_factors"
	ColSymptoms       = "symptoms"
	ColTreatments     = "treatments"
	ColOutcomes       = "outcomes"
	ColChainOfThought = "chain_of_thought"

	ColStratumID         = "stratum_id"
	ColAgeGroup          = "age_group"
	ColSex               = "sex"
	ColClinicalCohort    = "clinical_cohort"
	ColSetting           = "setting"
	ColTreatmentCategory = "treatment_category"
	ColTreatmentNames    = "treatment_names"
	ColOutcomeDirection  = "outcome_direction"
)

// ExtractedFields lists the columns produced by the field splitter, in output order
var ExtractedFields = []string{
	ColPopulation,
	ColRiskFactors,
	ColSymptoms,
	ColTreatments,
	ColOutcomes,
	ColChainOfThought,
}

// StudyRecord is one source document after field splitting
type StudyRecord struct {
	PMID           string `json:"pmid"`
	Title          string `json:"title,omitempty"`
	Year           string `json:"year,omitempty"`
	Journal        string `json:"journal,omitempty"`
	Population     string `json:"population,omitempty"`
	RiskFactors    string `json:"risk_factors,omitempty"`
	Symptoms       string `json:"symptoms,omitempty"`
	Treatments     string `json:"treatments,omitempty"`
	Outcomes       string `json:"outcomes,omitempty"`
	ChainOfThought string `json:"chain_of_thought,omitempty"`
}

// StudyRecordFrom builds a record from a column accessor
func StudyRecordFrom(get func(col string) string) StudyRecord {
	return StudyRecord{
		PMID:           get(ColPMID),
		Title:          get(ColTitle),
		Year:           get(ColYear),
		Journal:        get(ColJournal),
		Population:     get(ColPopulation),
		RiskFactors:    get(ColRiskFactors),
		Symptoms:       get(ColSymptoms),
		Treatments:     get(ColTreatments),
		Outcomes:       get(ColOutcomes),
		ChainOfThought: get(ColChainOfThought),
	}
}

// NormalizedColumns is the header of the long-format normalized table
var NormalizedColumns = []string{
	ColPMID,
	ColTitle,
	ColYear,
	ColJournal,
	ColStratumID,
	ColAgeGroup,
	ColSex,
	ColClinicalCohort,
	ColSetting,
	ColTreatmentCategory,
	ColTreatmentNames,
	ColOutcomeDirection,
	ColRiskFactors,
	ColSymptoms,
}

// NormalizedRecord is one long-format row: study x treatment item x outcome item
type NormalizedRecord struct {
	PMID              string  `json:"pmid"`
	Title             string  `json:"title,omitempty"`
	Year              string  `json:"year,omitempty"`
	Journal           string  `json:"journal,omitempty"`
	StratumID         string  `json:"stratum_id"`
	Profile           Profile `json:"profile"`
	TreatmentCategory string  `json:"treatment_category"`
	TreatmentNames    string  `json:"treatment_names,omitempty"` // Raw treatment item as written
	OutcomeDirection  string  `json:"outcome_direction"`
	RiskFactors       string  `json:"risk_factors,omitempty"` // "; "-separated
	Symptoms          string  `json:"symptoms,omitempty"`     // "; "-separated
}

// Row renders the record in NormalizedColumns order
func (r NormalizedRecord) Row() []string {
	return []string{
		r.PMID,
		r.Title,
		r.Year,
		r.Journal,
		r.StratumID,
		r.Profile.AgeGroup,
		r.Profile.Sex,
		r.Profile.Condition,
		r.Profile.Setting,
		r.TreatmentCategory,
		r.TreatmentNames,
		r.OutcomeDirection,
		r.RiskFactors,
		r.Symptoms,
	}
}

// NormalizedRecordFrom builds a normalized record from a column accessor
func NormalizedRecordFrom(get func(col string) string) NormalizedRecord {
	return NormalizedRecord{
		PMID:      get(ColPMID),
		Title:     get(ColTitle),
		Year:      get(ColYear),
		Journal:   get(ColJournal),
		StratumID: get(ColStratumID),
		Profile: Profile{
			AgeGroup:  get(ColAgeGroup),
			Sex:       get(ColSex),
			Condition: get(ColClinicalCohort),
			Setting:   get(ColSetting),
		},
		TreatmentCategory: get(ColTreatmentCategory),
		TreatmentNames:    get(ColTreatmentNames),
		OutcomeDirection:  get(ColOutcomeDirection),
		RiskFactors:       get(ColRiskFactors),
		Symptoms:          get(ColSymptoms),
	}
}
