package service

import "strings"

// InstructionWordLimit is the word count below which inline text sent with a
// document is read as an instruction about the document rather than as more
// content to summarize.
const InstructionWordLimit = 10

// ComposePayload merges the inline text and the extracted document text into
// the single text that gets summarized.
//
//	no document                  → text
//	document, no text            → document
//	document, 1-9 words of text  → "Instruction: <text>\n\nDocument:\n<document>"
//	document, 10+ words of text  → "<text>\n\n<document>"
func ComposePayload(text, docText string) string {
	text = strings.TrimSpace(text)
	docText = strings.TrimSpace(docText)

	switch {
	case docText == "":
		return text
	case text == "":
		return docText
	case len(strings.Fields(text)) < InstructionWordLimit:
		return "Instruction: " + text + "\n\nDocument:\n" + docText
	default:
		return text + "\n\n" + docText
	}
}
