// Package matching scores therapists against a user's intake assessment
// and clinical history.
package matching

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/havenhealth/haven/internal/domain"
)

const (
	BaseScore = 0.7
	// MinScore and MaxScore bound every final score so no therapist is
	// shown as a perfect or a zero match.
	MinScore = 0.65
	MaxScore = 0.98

	clinicalWeight      = 0.4
	culturalWeight      = 0.2
	experienceWeight    = 0.2
	communicationWeight = 0.2

	neutral = 0.5
)

var concernInterventions = map[string]string{
	"anxiety":       "Cognitive restructuring for anxious thoughts",
	"depression":    "Behavioral activation scheduling",
	"trauma":        "Trauma-focused CBT",
	"ptsd":          "Prolonged exposure therapy",
	"stress":        "Mindfulness-based stress reduction",
	"grief":         "Grief processing and meaning reconstruction",
	"relationships": "Interpersonal effectiveness skills",
	"addiction":     "Motivational interviewing",
	"sleep":         "CBT for insomnia",
	"ocd":           "Exposure and response prevention",
	"self-esteem":   "Self-compassion exercises",
}

// compatibleStyles lists communication styles that suit each other
// without being identical.
var compatibleStyles = map[string][]string{
	"warm":       {"supportive", "empathetic", "gentle"},
	"supportive": {"warm", "empathetic", "gentle"},
	"empathetic": {"warm", "supportive"},
	"gentle":     {"warm", "supportive"},
	"direct":     {"structured", "solution-focused"},
	"structured": {"direct", "solution-focused"},
}

type scoreSheet struct {
	reasoning     []string
	interventions []string
}

func (s *scoreSheet) reason(format string, a ...any) {
	s.reasoning = append(s.reasoning, fmt.Sprintf(format, a...))
}

func (s *scoreSheet) recommend(intervention string) {
	if intervention != "" && !lo.Contains(s.interventions, intervention) {
		s.interventions = append(s.interventions, intervention)
	}
}

// Score is a pure function of its inputs. A nil assessment or clinical
// profile is treated as empty, which leaves the affected sub-scores near
// neutral.
func Score(therapist domain.TherapistProfile, assessment *domain.Assessment, clinical *domain.ClinicalProfile) domain.CompatibilityScore {
	if assessment == nil {
		assessment = &domain.Assessment{}
	}
	if clinical == nil {
		clinical = &domain.ClinicalProfile{}
	}

	sheet := &scoreSheet{}
	clinicalMatch := clinicalScore(therapist, assessment, clinical, sheet)
	culturalMatch := culturalScore(therapist, assessment, sheet)
	experienceMatch := experienceScore(therapist, assessment, clinical, sheet)
	communicationMatch := communicationScore(therapist, assessment, sheet)

	raw := BaseScore +
		clinicalWeight*clinicalMatch +
		culturalWeight*culturalMatch +
		experienceWeight*experienceMatch +
		communicationWeight*communicationMatch

	return domain.CompatibilityScore{
		TherapistID:              therapist.ID,
		TherapistName:            therapist.Name,
		BaseScore:                BaseScore,
		ClinicalMatch:            clinicalMatch,
		CulturalMatch:            culturalMatch,
		ExperienceMatch:          experienceMatch,
		CommunicationMatch:       communicationMatch,
		RawScore:                 raw,
		FinalScore:               lo.Clamp(raw, MinScore, MaxScore),
		Reasoning:                append([]string{}, sheet.reasoning...),
		RecommendedInterventions: append([]string{}, sheet.interventions...),
	}
}

func clinicalScore(t domain.TherapistProfile, a *domain.Assessment, c *domain.ClinicalProfile, sheet *scoreSheet) float64 {
	score := 0.3

	for _, concern := range a.PrimaryConcerns {
		if containsFold(t.Specialties, concern) {
			score += 0.3
			sheet.reason("Specializes in %s", strings.ToLower(concern))
			sheet.recommend(concernInterventions[normalize(concern)])
		}
	}
	for _, condition := range c.ConditionHistory {
		if containsFold(t.Specialties, condition) && !containsFold(a.PrimaryConcerns, condition) {
			score += 0.1
			sheet.reason("Has treated your history of %s", strings.ToLower(condition))
		}
	}
	for _, approach := range c.SuccessfulApproaches {
		if containsFold(t.Approaches, approach) {
			score += 0.2
			sheet.reason("Uses %s, which has helped you before", approach)
			sheet.recommend("Continue " + approach + " techniques")
		}
	}
	for _, approach := range c.UnsuccessfulApproaches {
		if containsFold(t.Approaches, approach) {
			score -= 0.15
			sheet.reason("Relies on %s, which did not work well for you", approach)
		}
	}
	for _, approach := range a.PreferredApproaches {
		if containsFold(t.Approaches, approach) {
			score += 0.1
			sheet.reason("Offers your preferred approach: %s", approach)
		}
	}
	if c.CrisisHistory {
		if containsFold(t.Specialties, "crisis intervention") {
			score += 0.2
			sheet.reason("Trained in crisis intervention")
		}
		sheet.recommend("Collaborative safety planning")
	}

	return lo.Clamp(score, 0, 1)
}

func culturalScore(t domain.TherapistProfile, a *domain.Assessment, sheet *scoreSheet) float64 {
	score := neutral

	if lang := strings.TrimSpace(a.PreferredLanguage); lang != "" {
		if containsFold(t.Languages, lang) {
			score += 0.3
			sheet.reason("Speaks %s", lang)
		} else {
			score -= 0.2
		}
	}
	matched := 0
	for _, background := range a.CulturalBackground {
		if containsFold(t.CulturalCompetencies, background) {
			matched++
			sheet.reason("Culturally experienced with %s clients", background)
		}
	}
	score += 0.2 * float64(min(matched, 2))

	if pref := normalize(a.GenderPreference); pref != "" && pref != "no preference" && pref != "any" {
		if normalize(t.Gender) == pref {
			score += 0.1
		} else {
			score -= 0.2
		}
	}

	return lo.Clamp(score, 0, 1)
}

func experienceScore(t domain.TherapistProfile, a *domain.Assessment, c *domain.ClinicalProfile, sheet *scoreSheet) float64 {
	score := neutral

	switch years := t.YearsExperience; {
	case years >= 10:
		score += 0.3
		sheet.reason("%d years of clinical experience", years)
	case years >= 5:
		score += 0.15
		sheet.reason("%d years of clinical experience", years)
	case years < 2:
		score -= 0.2
	}

	if normalize(a.Severity) == "severe" {
		if t.YearsExperience >= 10 {
			score += 0.1
		} else if t.YearsExperience < 5 {
			score -= 0.1
		}
	}
	if a.PreviousTherapy && c.SessionCount > 10 && t.YearsExperience >= 5 {
		score += 0.1
		sheet.reason("Suited to continuing long-term work")
	}

	return lo.Clamp(score, 0, 1)
}

func communicationScore(t domain.TherapistProfile, a *domain.Assessment, sheet *scoreSheet) float64 {
	pref := normalize(a.CommunicationPreference)
	style := normalize(t.CommunicationStyle)
	if pref == "" || style == "" {
		return neutral
	}

	score := neutral
	switch {
	case pref == style:
		score += 0.4
		sheet.reason("Communicates in the %s style you prefer", style)
	case lo.Contains(compatibleStyles[pref], style):
		score += 0.2
		sheet.reason("Has a %s style that fits your preference", style)
	default:
		score -= 0.1
	}
	return lo.Clamp(score, 0, 1)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsFold(list []string, want string) bool {
	want = normalize(want)
	if want == "" {
		return false
	}
	return lo.ContainsBy(list, func(item string) bool { return normalize(item) == want })
}
