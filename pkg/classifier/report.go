package classifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
)

// Report shapes a dual-head prediction into the structured diagnosis the
// reporting surface expects. Severity tracks the disease head's confidence and
// the health score is its inverse.
func (r *Result) Report() *diagnosis.Report {
	speciesPct := round2(r.Species.Confidence * 100)
	diseasePct := round2(r.Disease.Confidence * 100)
	combinedPct := round2((speciesPct + diseasePct) / 2)

	severity := diagnosis.SeverityLow
	switch {
	case diseasePct >= 70:
		severity = diagnosis.SeverityHigh
	case diseasePct >= 40:
		severity = diagnosis.SeverityMedium
	}

	healthScore := 100 - int(diseasePct)
	if healthScore < 0 {
		healthScore = 0
	}

	diseaseLower := strings.ToLower(r.Disease.Label)
	healthy := strings.Contains(diseaseLower, "healthy") || strings.Contains(diseaseLower, "normal")

	rep := &diagnosis.Report{
		PlantName:         r.Species.Label,
		Confidence:        combinedPct,
		SpeciesConfidence: &speciesPct,
		DiseaseConfidence: &diseasePct,
		Severity:          severity,
		HealthScore:       healthScore,
	}

	if healthy {
		rep.DiseaseDetected = false
		rep.Symptoms = []string{}
		rep.Recommendations = []string{
			fmt.Sprintf("%s appears healthy", r.Species.Label),
			"Continue regular watering and care",
			"Monitor periodically for any changes",
			"Maintain good air circulation",
		}
		return rep
	}

	rep.DiseaseDetected = true
	rep.DiseaseName = r.Disease.Label
	rep.Symptoms = []string{
		"Disease symptoms detected",
		"Visual abnormalities present",
		fmt.Sprintf("Identified as %s", r.Disease.Label),
	}
	rep.Recommendations = []string{
		fmt.Sprintf("Disease detected: %s", r.Disease.Label),
		"Isolate affected plant to prevent spread",
		"Remove severely affected leaves",
		"Apply appropriate fungicide or treatment",
		"Monitor other plants for similar symptoms",
		"Consult plant expert if condition worsens",
	}
	return rep
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
