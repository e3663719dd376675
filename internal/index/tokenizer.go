package index

import (
	"regexp"
	"strings"
)

// termPattern matches case-folded word terms: letter/digit runs with
// optional apostrophe contractions, consistent with the chunker's
// whitespace normalization.
var termPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// Terms tokenizes text into lower-cased terms for sparse scoring.
func Terms(text string) []string {
	return termPattern.FindAllString(strings.ToLower(text), -1)
}
