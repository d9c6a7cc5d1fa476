package analyzer

import (
	"strings"
	"testing"

	"github.com/omanox-dev/plantgate/pkg/diagnosis"
)

func TestParseReportStrictJSON(t *testing.T) {
	text := `{
		"plantName": "Tomato",
		"diseaseDetected": true,
		"diseaseName": "Late Blight",
		"confidence": 88,
		"severity": "High",
		"symptoms": ["dark lesions", "white mold"],
		"recommendations": ["remove affected leaves", "apply copper fungicide"],
		"healthScore": 25,
		"analysis": "The leaves show classic late blight lesions."
	}`

	rep, err := ParseReport(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rep.PlantName != "Tomato" || rep.DiseaseName != "Late Blight" {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if rep.Confidence != 88 || rep.HealthScore != 25 {
		t.Fatalf("numeric fields mangled: %+v", rep)
	}
	if rep.Severity != diagnosis.SeverityHigh {
		t.Fatalf("unexpected severity %s", rep.Severity)
	}
	if rep.Notes != "The leaves show classic late blight lesions." {
		t.Fatalf("analysis text lost: %q", rep.Notes)
	}
}

func TestParseReportStripsFences(t *testing.T) {
	text := "```json\n{\"plantName\": \"Basil\", \"diseaseDetected\": false, \"confidence\": 92}\n```"
	rep, err := ParseReport(text)
	if err != nil {
		t.Fatalf("parse fenced reply: %v", err)
	}
	if rep.PlantName != "Basil" || rep.DiseaseDetected {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestParseReportDefaults(t *testing.T) {
	rep, err := ParseReport(`{"diseaseDetected": true}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rep.PlantName != "Unknown Plant" {
		t.Fatalf("missing plant name should default, got %q", rep.PlantName)
	}
	if rep.DiseaseName != "Disease Detected" {
		t.Fatalf("detected disease without a name should get the placeholder, got %q", rep.DiseaseName)
	}
	if rep.Confidence != 50 {
		t.Fatalf("missing confidence should default to 50, got %v", rep.Confidence)
	}
	if rep.Severity != diagnosis.SeverityMedium {
		t.Fatalf("unknown severity should default to medium, got %s", rep.Severity)
	}
	if rep.HealthScore != 50 {
		t.Fatalf("health score should derive from confidence, got %d", rep.HealthScore)
	}
	if len(rep.Recommendations) == 0 {
		t.Fatalf("recommendations should never be empty")
	}
	if rep.Symptoms == nil {
		t.Fatalf("symptoms should be an empty slice, not nil")
	}
}

func TestParseReportClampsConfidence(t *testing.T) {
	rep, err := ParseReport(`{"plantName": "Fern", "confidence": 250}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rep.Confidence != 100 {
		t.Fatalf("confidence should clamp to 100, got %v", rep.Confidence)
	}
}

func TestParseReportRejectsProse(t *testing.T) {
	_, err := ParseReport("The plant looks like a tomato with some kind of blight.")
	if err == nil {
		t.Fatalf("prose reply must not parse")
	}
}

func TestUnstructuredReportKeepsRawText(t *testing.T) {
	raw := "  I think this might be powdery mildew, but I'm not certain.  "
	rep := UnstructuredReport(raw)

	if rep.Notes != strings.TrimSpace(raw) {
		t.Fatalf("raw text must be preserved in notes, got %q", rep.Notes)
	}
	if rep.DiseaseDetected {
		t.Fatalf("nothing may be guessed from unparseable text: %+v", rep)
	}
	if rep.PlantName != "Unknown Plant" {
		t.Fatalf("plant name must stay explicitly unknown, got %q", rep.PlantName)
	}
}

func TestAnalysisPromptCarriesHint(t *testing.T) {
	prompt := AnalysisPrompt(Hint{Label: "Tomato - Early Blight", ConfidencePct: 22.5})
	if !strings.Contains(prompt, "Tomato - Early Blight") {
		t.Fatalf("prompt missing the low-confidence prediction:\n%s", prompt)
	}
	if !strings.Contains(prompt, "22.5%") {
		t.Fatalf("prompt missing the prediction confidence:\n%s", prompt)
	}
	if !strings.Contains(prompt, "plantName") || !strings.Contains(prompt, "healthScore") {
		t.Fatalf("prompt missing the response contract:\n%s", prompt)
	}
}

func TestAnalysisPromptWithoutHint(t *testing.T) {
	prompt := AnalysisPrompt(Hint{})
	if !strings.Contains(prompt, "no usable prediction") {
		t.Fatalf("hintless prompt should say the model produced nothing:\n%s", prompt)
	}
	if strings.Contains(prompt, "%!") {
		t.Fatalf("formatting artifact in prompt:\n%s", prompt)
	}
}
