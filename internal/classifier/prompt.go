package classifier

import (
	"fmt"
	"strings"

	"gauntlet-service/internal/domain"
)

// BuildPrompt renders the answers into the instruction sent to the model.
func BuildPrompt(responses []domain.Response, userName string) string {
	if userName == "" {
		userName = "Anonymous"
	}
	lines := make([]string, 0, len(responses))
	for _, res := range responses {
		prompt := "Unknown question"
		if q, ok := domain.QuestionByID(res.QuestionID); ok {
			prompt = q.Prompt
		}
		parts := []string{fmt.Sprintf("Q%d: %s", res.QuestionID, prompt)}
		if res.SelectedOptionID != "" {
			parts = append(parts, "Choice="+strings.ToUpper(res.SelectedOptionID))
		}
		if res.TextValue != "" {
			parts = append(parts, fmt.Sprintf("Text=%q", res.TextValue))
		}
		if res.FollowUpValue != "" {
			parts = append(parts, fmt.Sprintf("FollowUp=%q", res.FollowUpValue))
		}
		lines = append(lines, strings.Join(parts, " | "))
	}

	return fmt.Sprintf(`Analyze the following %d responses from a Product Manager named %s going through "The PM Instincts Gauntlet".
This is a professional but fun assessment of intuition, pattern recognition, and risk appetite.

User Responses:
%s

Return only valid JSON with this exact structure:
{
  "archetype": "string",
  "description": "string",
  "traits": ["string", "string", "string"],
  "contextWhyItMatters": "string",
  "stats": {
    "growthFocus": 0-100 number,
    "riskTolerance": "Low" | "Medium" | "High",
    "dataDrivenScore": 1.0-10.0 number
  },
  "similarityPercentage": 10-40 number
}
`, len(responses), userName, strings.Join(lines, "\n"))
}
