package deliberation

import (
	"fmt"
	"strings"

	"github.com/quorumhq/quorum/pkg/models"
)

// answerFormat is appended to every round prompt so responses stay
// machine-parseable. The ballot parser tolerates deviations.
const answerFormat = `Answer with a JSON object on its own line:
{"choice": "<your choice>", "confidence": <0.0-1.0>, "rationale": "<one or two sentences>"}`

// maxSummaryLen caps each participant's line in the prior-round summary.
const maxSummaryLen = 200

// buildPrompt assembles the base prompt for a round. Round 1 carries the
// question alone; later rounds add a condensed summary of the prior round's
// positions and ask participants to reconsider.
func buildPrompt(index int, question string, prior []models.Position) string {
	var sb strings.Builder

	sb.WriteString("You are one of several independent reviewers deliberating the question below.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	if index > 1 && len(prior) > 0 {
		fmt.Fprintf(&sb, "Positions after round %d:\n", index-1)
		for _, p := range prior {
			sb.WriteString(summarizePosition(p))
			sb.WriteByte('\n')
		}
		sb.WriteString("\nConsider these positions. Hold or revise your own, and say why.\n\n")
	}

	sb.WriteString(answerFormat)
	return sb.String()
}

// summarizePosition renders one prior position as a single capped line.
func summarizePosition(p models.Position) string {
	snippet := firstSentence(p.Text)
	if len(snippet) > maxSummaryLen {
		snippet = snippet[:maxSummaryLen] + "..."
	}
	choice := p.Choice
	if choice == "" {
		choice = "(no clear choice)"
	}
	if snippet == "" {
		return fmt.Sprintf("- %s: %s", p.ParticipantID, choice)
	}
	return fmt.Sprintf("- %s: %s | %s", p.ParticipantID, choice, snippet)
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '\n' {
			return strings.TrimSpace(text[:i+1])
		}
	}
	return text
}
