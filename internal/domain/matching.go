package domain

// TherapistProfile is the catalogue entry scored against a user.
type TherapistProfile struct {
	ID                   string   `json:"id" yaml:"id"`
	Name                 string   `json:"name" yaml:"name"`
	Specialties          []string `json:"specialties" yaml:"specialties"`
	Approaches           []string `json:"approaches" yaml:"approaches"`
	Languages            []string `json:"languages" yaml:"languages"`
	CulturalCompetencies []string `json:"cultural_competencies" yaml:"cultural_competencies"`
	YearsExperience      int      `json:"years_experience" yaml:"years_experience"`
	CommunicationStyle   string   `json:"communication_style" yaml:"communication_style"`
	Gender               string   `json:"gender,omitempty" yaml:"gender"`
	Persona              string   `json:"persona,omitempty" yaml:"persona"`
}

// Assessment is the user's intake questionnaire.
type Assessment struct {
	UserID                  string   `json:"user_id" yaml:"user_id"`
	PrimaryConcerns         []string `json:"primary_concerns" yaml:"primary_concerns"`
	Severity                string   `json:"severity" yaml:"severity"`
	PreferredApproaches     []string `json:"preferred_approaches" yaml:"preferred_approaches"`
	CommunicationPreference string   `json:"communication_preference" yaml:"communication_preference"`
	PreferredLanguage       string   `json:"preferred_language" yaml:"preferred_language"`
	CulturalBackground      []string `json:"cultural_background" yaml:"cultural_background"`
	GenderPreference        string   `json:"gender_preference" yaml:"gender_preference"`
	PreviousTherapy         bool     `json:"previous_therapy" yaml:"previous_therapy"`
}

// ClinicalProfile aggregates the user's history across sessions.
type ClinicalProfile struct {
	UserID                 string   `json:"user_id" yaml:"user_id"`
	ConditionHistory       []string `json:"condition_history" yaml:"condition_history"`
	SuccessfulApproaches   []string `json:"successful_approaches" yaml:"successful_approaches"`
	UnsuccessfulApproaches []string `json:"unsuccessful_approaches" yaml:"unsuccessful_approaches"`
	CrisisHistory          bool     `json:"crisis_history" yaml:"crisis_history"`
	SessionCount           int      `json:"session_count" yaml:"session_count"`
}

// CompatibilityScore is computed fresh per request and never stored as
// primary data.
type CompatibilityScore struct {
	TherapistID              string   `json:"therapist_id"`
	TherapistName            string   `json:"therapist_name,omitempty"`
	BaseScore                float64  `json:"base_score"`
	ClinicalMatch            float64  `json:"clinical_match"`
	CulturalMatch            float64  `json:"cultural_match"`
	ExperienceMatch          float64  `json:"experience_match"`
	CommunicationMatch       float64  `json:"communication_match"`
	RawScore                 float64  `json:"raw_score"`
	FinalScore               float64  `json:"final_score"`
	Reasoning                []string `json:"reasoning"`
	RecommendedInterventions []string `json:"recommended_interventions"`
}
