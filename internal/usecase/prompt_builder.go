package usecase

import "strings"

// PromptBuilder renders the grounded-answer prompt sent to the
// generative model. Extra instruction lines can be appended at
// construction (deployment-specific tone, language, and so on).
type PromptBuilder struct {
	additionalInstructions []string
}

// NewPromptBuilder creates a prompt builder with optional extra
// instructions appended after the fixed ones.
func NewPromptBuilder(additionalInstructions ...string) *PromptBuilder {
	return &PromptBuilder{additionalInstructions: additionalInstructions}
}

var groundingInstructions = []string{
	"You are an assistant that answers questions about a user's archived documents.",
	"Answer using ONLY the information in the context documents below.",
	"If the answer cannot be derived from the context, say so explicitly instead of guessing.",
	"Cite the documents you draw from by their number, e.g. [Document 2].",
	"If the documents contradict each other on a point, say which documents disagree.",
	"Be concise and professional.",
}

// Build renders the full prompt for the given query and context string.
func (b *PromptBuilder) Build(query, context string) string {
	var sb strings.Builder

	sb.WriteString("Instructions:\n")
	for _, inst := range groundingInstructions {
		sb.WriteString("- ")
		sb.WriteString(inst)
		sb.WriteString("\n")
	}
	for _, inst := range b.additionalInstructions {
		sb.WriteString("- ")
		sb.WriteString(inst)
		sb.WriteString("\n")
	}

	sb.WriteString("\nContext documents:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer:")

	return sb.String()
}
