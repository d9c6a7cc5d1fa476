package diagnosis

import "time"

// Source identifies which engine produced an analysis.
type Source string

const (
	// SourcePrimary means the local classifier's prediction was accepted.
	SourcePrimary Source = "primary"
	// SourceFallback means the cloud analyzer's diagnosis replaced the
	// classifier's prediction entirely.
	SourceFallback Source = "fallback"
)

// Usage captures normalized token usage as reported by the upstream.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// IsZero reports whether no tokens were consumed.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0
}

// Normalize fills TotalTokens when the upstream only reported the split.
func (u Usage) Normalize() Usage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

// Severity levels for a detected disease.
const (
	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"
)

// Report is the structured diagnosis returned to the caller. Confidence and
// HealthScore are on the 0-100 scale the reporting surface expects.
type Report struct {
	PlantName         string   `json:"plantName"`
	DiseaseDetected   bool     `json:"diseaseDetected"`
	DiseaseName       string   `json:"diseaseName,omitempty"`
	Confidence        float64  `json:"confidence"`
	SpeciesConfidence *float64 `json:"speciesConfidence,omitempty"`
	DiseaseConfidence *float64 `json:"diseaseConfidence,omitempty"`
	Severity          string   `json:"severity"`
	Symptoms          []string `json:"symptoms"`
	Recommendations   []string `json:"recommendations"`
	HealthScore       int      `json:"healthScore"`
	// Notes carries the analyzer's raw commentary. When the upstream reply
	// could not be parsed into the fields above it holds the full raw text
	// and the other fields stay at their neutral defaults.
	Notes string `json:"notes,omitempty"`
}

// Outcome is the single decided result for one analysis request.
type Outcome struct {
	Source Source  `json:"source"`
	Report *Report `json:"report"`
	// Label and Confidence echo the classifier's prediction that drove the
	// decision. Confidence is in [0,1]; it is zero when the classifier was
	// unavailable.
	Label      string    `json:"label,omitempty"`
	Confidence float64   `json:"classifierConfidence"`
	Usage      Usage     `json:"usage"`
	Timestamp  time.Time `json:"timestamp"`
}
