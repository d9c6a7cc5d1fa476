package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
)

type reportPayload struct {
	PlantName       string   `json:"plantName"`
	DiseaseDetected bool     `json:"diseaseDetected"`
	DiseaseName     *string  `json:"diseaseName"`
	Confidence      float64  `json:"confidence"`
	Severity        string   `json:"severity"`
	Symptoms        []string `json:"symptoms"`
	Recommendations []string `json:"recommendations"`
	HealthScore     *int     `json:"healthScore"`
	Analysis        string   `json:"analysis"`
}

// ParseReport parses the upstream's JSON diagnosis into a Report, filling the
// defaults the original contract guarantees. It fails when the text is not a
// JSON object; callers downgrade to UnstructuredReport in that case.
func ParseReport(text string) (*diagnosis.Report, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var payload reportPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("diagnosis response is not valid JSON: %w", err)
	}

	rep := &diagnosis.Report{
		PlantName:       payload.PlantName,
		DiseaseDetected: payload.DiseaseDetected,
		Confidence:      payload.Confidence,
		Severity:        normalizeSeverity(payload.Severity),
		Symptoms:        payload.Symptoms,
		Recommendations: payload.Recommendations,
		Notes:           strings.TrimSpace(payload.Analysis),
	}

	if rep.PlantName == "" {
		rep.PlantName = "Unknown Plant"
	}
	if payload.DiseaseName != nil && payload.DiseaseDetected {
		rep.DiseaseName = *payload.DiseaseName
	}
	if rep.DiseaseDetected && rep.DiseaseName == "" {
		rep.DiseaseName = "Disease Detected"
	}
	if rep.Confidence <= 0 {
		rep.Confidence = 50
	}
	if rep.Confidence > 100 {
		rep.Confidence = 100
	}
	if rep.Symptoms == nil {
		rep.Symptoms = []string{}
	}
	if len(rep.Recommendations) == 0 {
		rep.Recommendations = []string{"Monitor plant condition", "Consult expert if symptoms worsen"}
	}

	if payload.HealthScore != nil && *payload.HealthScore >= 0 && *payload.HealthScore <= 100 {
		rep.HealthScore = *payload.HealthScore
	} else if rep.DiseaseDetected {
		rep.HealthScore = 100 - int(rep.Confidence)
		if rep.HealthScore < 0 {
			rep.HealthScore = 0
		}
	} else {
		rep.HealthScore = int(rep.Confidence)
		if rep.HealthScore > 100 {
			rep.HealthScore = 100
		}
	}

	return rep, nil
}

// UnstructuredReport wraps a reply that could not be parsed. Fields are left
// at explicit-unknown values; nothing is guessed from the text.
func UnstructuredReport(raw string) *diagnosis.Report {
	return &diagnosis.Report{
		PlantName:       "Unknown Plant",
		Severity:        diagnosis.SeverityMedium,
		Symptoms:        []string{},
		Recommendations: []string{"Monitor plant condition", "Consult expert if symptoms worsen"},
		Notes:           strings.TrimSpace(raw),
	}
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return diagnosis.SeverityLow
	case "high":
		return diagnosis.SeverityHigh
	default:
		return diagnosis.SeverityMedium
	}
}
