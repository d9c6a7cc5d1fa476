package analyzer

import (
	"fmt"
	"strings"
)

// AnalysisPrompt builds the complete-takeover instruction. The upstream is
// asked for a single JSON object so the reply can be parsed strictly; a reply
// that ignores this contract is kept as raw text instead of being guessed at.
func AnalysisPrompt(hint Hint) string {
	var sb strings.Builder
	sb.WriteString("You are a plant disease expert. Analyze this plant image and provide a COMPLETE diagnosis.\n\n")

	if hint.Label != "" {
		fmt.Fprintf(&sb, "The local ML model predicted: %s with only %.1f%% confidence (very low - likely wrong).\n\n",
			hint.Label, hint.ConfidencePct)
	} else {
		sb.WriteString("The local ML model produced no usable prediction for this image.\n\n")
	}

	sb.WriteString(`Respond with ONLY a single JSON object (no markdown fences, no prose outside it) with exactly these fields:
{
  "plantName": "specific plant name or general type like Medicinal Herb or Leafy Vegetable",
  "diseaseDetected": true or false,
  "diseaseName": "disease name, or null when healthy",
  "confidence": your confidence 0-100,
  "severity": "Low" or "Medium" or "High",
  "symptoms": ["symptom 1", "symptom 2", "symptom 3"],
  "recommendations": ["action 1", "action 2", "action 3", "action 4"],
  "healthScore": integer 0-100,
  "analysis": "2-3 sentences explaining what you see and your diagnosis"
}

Be specific and practical.`)

	return sb.String()
}

// ChatSystemPrompt is the generic assistant framing used when no analysis
// context is available.
const ChatSystemPrompt = "You are a helpful plant-care assistant. Answer questions about plant health, diseases, watering, light, and general care. Be concise and practical."
