package usecase

import (
	"regexp"
	"strings"
)

var (
	thinkBlockPattern     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	reasoningBlockPattern = regexp.MustCompile(`(?s)<reasoning>.*?</reasoning>`)
	blankRunPattern       = regexp.MustCompile(`\n{3,}`)
)

// StripThinkBlocks removes chain-of-thought spans some models emit before
// their actual answer, then collapses the blank-line runs left behind.
func StripThinkBlocks(text string) string {
	cleaned := thinkBlockPattern.ReplaceAllString(text, "")
	cleaned = reasoningBlockPattern.ReplaceAllString(cleaned, "")
	cleaned = blankRunPattern.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
