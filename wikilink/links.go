package wikilink

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	BracketStart = "[["
	BracketEnd   = "]]"
)

// CreateRelativeLink returns the link core that leads from page baseWord to
// page word. With downwardOnly, only links to subpages of baseWord are created.
// The boolean result is false when no link can be created.
func CreateRelativeLink(word, baseWord string, downwardOnly bool) (string, bool) {
	rel, ok := RelativePathByAbsPaths(Absolute(word), Absolute(baseWord), downwardOnly)
	if !ok {
		return "", false
	}
	return rel.LinkCore(), true
}

// CreateLink returns a bracketed link to page word, to be written in page
// baseWord. The link is relative unless forceAbsolute is set.
func CreateLink(word, baseWord string, forceAbsolute bool) string {
	if forceAbsolute || baseWord == "" {
		return BracketStart + Absolute(word).LinkCore() + BracketEnd
	}

	core, ok := CreateRelativeLink(word, baseWord, false)
	if !ok {
		// Link to the page itself
		core = "."
	}
	return BracketStart + core + BracketEnd
}

// CreateAbsoluteLinks returns one absolute bracketed link per line for each word.
// Absolute links remain valid when the page containing them is moved.
func CreateAbsoluteLinks(words []string) string {
	links := make([]string, len(words))
	for i, w := range words {
		links[i] = BracketStart + "//" + w + BracketEnd
	}
	return strings.Join(links, "\n")
}

// CreateLinkFromText turns arbitrary text into a wiki word, removing any
// brackets and leading '+' signs and upper-casing the first letter.
func CreateLinkFromText(text string, bracketed bool) string {
	text = strings.ReplaceAll(text, BracketStart, "")
	text = strings.ReplaceAll(text, BracketEnd, "")
	text = strings.TrimLeft(text, "+")
	text = strings.TrimSpace(text)

	if text == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(text)
	text = cases.Upper(language.Und).String(string(r)) + text[size:]

	if bracketed {
		text = BracketStart + text + BracketEnd
	}
	return text
}
