// Package difftok computes the differences between two versions of a text
// as a flat list of spans for display. The spans build a merged view of both
// texts: equal parts appear once, deleted parts of the old text and inserted
// parts of the new text appear one after the other.
package difftok

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// Kind is the kind of change of a Span.
type Kind int

const (
	Equal Kind = iota
	Insert
	Delete
)

func (k Kind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	}
	return "Invalid Kind (" + strconv.Itoa(int(k)) + ")"
}

// Granularity selects the units compared.
type Granularity int

const (
	ByChar Granularity = iota
	ByWord
)

// Span is a part of the merged view. Pos is the offset in code points of
// Text inside the merged view, that is, inside the concatenation of the Text
// of all spans.
type Span struct {
	Kind Kind
	Text string
	Pos  int
}

// Words are runs of letters, digits, underscores and apostrophes starting
// with a letter, digit or underscore
var wordDivider = regexp.MustCompile(`[\p{L}\p{N}_][\p{L}\p{N}_']*`)

// splitChars returns one token per code point
func splitChars(text string) []string {
	tokens := make([]string, 0, len(text))
	for _, r := range text {
		tokens = append(tokens, string(r))
	}
	return tokens
}

// splitWords returns the words and the text between them as separate tokens,
// so concatenating the tokens gives back the text
func splitWords(text string) []string {
	var tokens []string
	last := 0
	for _, loc := range wordDivider.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			tokens = append(tokens, text[last:loc[0]])
		}
		tokens = append(tokens, text[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		tokens = append(tokens, text[last:])
	}
	return tokens
}

// Tokenize compares fromText with toText and returns the spans of the merged view.
func Tokenize(fromText, toText string, granularity Granularity) []Span {

	split := splitChars
	if granularity == ByWord {
		split = splitWords
	}
	a := split(fromText)
	b := split(toText)

	// Disable the heuristic that treats popular tokens as junk: with single
	// characters as tokens almost every token is popular.
	m := difflib.NewMatcherWithJunk(a, b, false, nil)

	var spans []Span
	pos := 0

	emit := func(kind Kind, text string) {
		if text == "" {
			return
		}
		if kind != Equal {
			// Keep changed lines visible as indented continuation lines
			text = strings.ReplaceAll(text, "\n", "\n ")
		}
		spans = append(spans, Span{Kind: kind, Text: text, Pos: pos})
		pos += utf8.RuneCountInString(text)
	}

	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			emit(Equal, strings.Join(a[op.I1:op.I2], ""))
		case 'd':
			emit(Delete, strings.Join(a[op.I1:op.I2], ""))
		case 'i':
			emit(Insert, strings.Join(b[op.J1:op.J2], ""))
		case 'r':
			emit(Delete, strings.Join(a[op.I1:op.I2], ""))
			emit(Insert, strings.Join(b[op.J1:op.J2], ""))
		}
	}

	return spans
}

// ViewText returns the merged view, the concatenation of the text of the spans.
func ViewText(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Old returns the text of the spans that belong to the old version.
// Newlines of deleted spans are returned as shown in the view.
func Old(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		if s.Kind != Insert {
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

// New returns the text of the spans that belong to the new version.
func New(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		if s.Kind != Delete {
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}
