package prompt

import (
	"fmt"
	"strings"
	"textdigest/internal/domain"
)

type template struct {
	instruction string
	answerLabel string
}

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var templates = map[domain.Style]template{
	domain.StyleGeneral: {
		instruction: "Provide a comprehensive yet concise summary of the following text. " +
			"Focus on the main ideas, key arguments, and important details:",
		answerLabel: "Summary:",
	},
	domain.StyleBulletPoints: {
		instruction: "Create a structured bullet-point summary of the following text. " +
			"Organize information hierarchically with main points and sub-points:",
		answerLabel: "Key Points:\n•",
	},
	domain.StyleExecutive: {
		instruction: "Create an executive summary suitable for business leaders. " +
			"Focus on key insights, actionable information, and strategic implications:",
		answerLabel: "Executive Summary:",
	},
	domain.StyleAcademic: {
		instruction: "Create an academic-style summary that highlights the main thesis, " +
			"methodology (if applicable), key findings, and conclusions:",
		answerLabel: "Academic Summary:",
	},
	domain.StyleTimeline: {
		instruction: "Extract and organize the chronological events or processes mentioned in the text:",
		answerLabel: "Timeline Summary:",
	},
	domain.StyleQuestions: {
		instruction: "Generate a summary in the form of key questions and answers based on the content:",
		answerLabel: "Q&A Summary:",
	},
}

// Build renders the instruction prompt for text. Unknown styles use the
// general template.
func Build(text string, style domain.Style, instructions string) string {
	t, ok := templates[style]
	if !ok {
		t = templates[domain.StyleGeneral]
	}

	var b strings.Builder
	b.WriteString(t.instruction)
	b.WriteString("\n\nText to summarize:\n")
	b.WriteString(text)
	b.WriteString("\n\n")

	if instructions = strings.TrimSpace(instructions); instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}

	b.WriteString(t.answerLabel)

	return b.String()
}

// Instructions returns the system-style instruction for backends that take
// the text separately from the instruction.
func Instructions(style domain.Style, extra string) string {
	t, ok := templates[style]
	if !ok {
		t = templates[domain.StyleGeneral]
	}

	instruction := strings.TrimSuffix(t.instruction, ":") + "."
	if extra = strings.TrimSpace(extra); extra != "" {
		instruction += "\n\n" + extra
	}

	return instruction
}

// WordLimit is the length instruction appended for a word budget.
func WordLimit(maxWords, minWords int) string {
	if maxWords <= 0 {
		return ""
	}

	limit := fmt.Sprintf("Please keep the summary to approximately %d words.", maxWords)
	if minWords > 0 && minWords < maxWords {
		limit += fmt.Sprintf(" Use at least %d words.", minWords)
	}

	return limit
}

// JoinInstructions joins non-empty instruction parts with blank lines.
func JoinInstructions(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	return strings.Join(nonEmpty, "\n\n")
}
