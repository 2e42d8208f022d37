package generator

import (
	"fmt"
	"strings"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/domain"
)

// Delimiter separates candidates in the model's answer.
const Delimiter = "-----SPLIT-----"

// BuildPrompt renders the instruction sent to the model.
func BuildPrompt(p domain.Prompt) string {
	var sb strings.Builder
	sb.WriteString("You are an AI code completion engine integrated into a real-time collaborative code editor.\n")
	fmt.Fprintf(&sb, "Language: %s\n\n", p.Language)
	sb.WriteString("The following is the full code content of the editor.\n")
	fmt.Fprintf(&sb, "The cursor is at character offset %d (0-based) in the following code:\n\n", p.Offset)
	sb.WriteString("--- BEGIN CODE ---\n")
	sb.WriteString(p.Code)
	sb.WriteString("\n--- END CODE ---\n\n")
	sb.WriteString("Based on this context and cursor position, propose 3 short completion candidates\n")
	sb.WriteString("that would be appropriate to insert at the cursor.\n")
	sb.WriteString("Return ONLY the raw code snippets, separated by a special delimiter line:\n")
	fmt.Fprintf(&sb, "%q\n", Delimiter)
	sb.WriteString("Do NOT return explanations or markdown.\n")
	return sb.String()
}

// ParseSuggestions splits the model's answer on Delimiter, trims every
// candidate, drops empty ones and keeps at most domain.MaxSuggestions.
func ParseSuggestions(text string) []string {
	suggestions := make([]string, 0, 3)
	for _, part := range strings.Split(text, Delimiter) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		suggestions = append(suggestions, part)
		if len(suggestions) == domain.MaxSuggestions {
			break
		}
	}
	return suggestions
}
