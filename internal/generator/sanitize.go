package generator

import "strings"

// Mass-mention tokens are neutralized with confusable characters before
// any generated text is broadcast: 'ο' is a Greek omicron, 'һ' a Cyrillic
// shha.
var massMentionReplacer = strings.NewReplacer(
	"@everyone", "@everyοne",
	"@here", "@һere",
)

// Sanitize neutralizes platform-level broadcast hazards in generated text.
func Sanitize(text string) string {
	return massMentionReplacer.Replace(text)
}
