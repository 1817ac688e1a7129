package llm

import (
	"strings"

	"github.com/sakif/text-summarizer/internal/model"
)

// styleDirectives tells the model what shape each summary style takes.
var styleDirectives = map[model.Style]string{
	model.StyleShort:    "Write a brief summary of two to four sentences that captures only the main point.",
	model.StyleDetailed: "Write a detailed summary that covers every major section, argument and conclusion, in well-organised paragraphs.",
	model.StyleBullet:   "Write the summary as a bulleted list of the key points, one idea per bullet, each starting with \"- \".",
	model.StyleCreative: "Write an engaging, narrative summary in a lively tone while staying faithful to the facts of the source.",
}

// BuildPrompt assembles the user message sent to the provider.
//
// The template is fixed and the source text goes last, verbatim, after a
// delimiter line, so the same inputs always yield the same prompt. Nothing is
// truncated; an over-long input is the provider's to reject.
func BuildPrompt(text string, style model.Style, language string) string {
	directive, ok := styleDirectives[style]
	if !ok {
		directive = styleDirectives[model.DefaultStyle]
	}
	if strings.TrimSpace(language) == "" {
		language = model.DefaultLanguage
	}

	var sb strings.Builder
	sb.WriteString("You are an expert assistant that summarizes documents accurately.\n")
	sb.WriteString(directive)
	sb.WriteString("\n")
	sb.WriteString("Write the summary in ")
	sb.WriteString(strings.TrimSpace(language))
	sb.WriteString(", whatever the language of the source.\n")
	sb.WriteString("Reply with the summary only.\n\n")
	sb.WriteString("Text to summarize:\n")
	sb.WriteString(text)
	return sb.String()
}
