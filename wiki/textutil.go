package wiki

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func hasPrefixAt(text string, pos int, pre string) bool {
	return strings.HasPrefix(text[pos:], pre)
}

// atLineStart reports whether pos is at the start of the text or just after a newline
func atLineStart(text string, pos int) bool {
	return pos == 0 || text[pos-1] == '\n'
}

// skipBlanks returns the position of the first character at or after pos
// that is neither a space nor a tab
func skipBlanks(text string, pos int) int {
	for pos < len(text) && (text[pos] == ' ' || text[pos] == '\t') {
		pos++
	}
	return pos
}

// nothingLeft reports whether the text between the start of the line and pos
// is only made of spaces and tabs
func nothingLeft(text string, pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		switch text[i] {
		case '\n':
			return true
		case ' ', '\t':
		default:
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wordBoundaryBefore reports whether the rune before pos is not a word character
func wordBoundaryBefore(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	return !isWordRune(r)
}

// wordBoundaryAfter reports whether the rune at pos is not a word character
func wordBoundaryAfter(text string, pos int) bool {
	if pos >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[pos:])
	return !isWordRune(r)
}

// runeLen returns the size in bytes of the rune at pos
func runeLen(text string, pos int) int {
	_, size := utf8.DecodeRuneInString(text[pos:])
	return size
}

// scanUntil returns the position of the first occurrence of s at or after pos
func scanUntil(text string, pos int, s string) (int, bool) {
	i := strings.Index(text[pos:], s)
	if i < 0 {
		return pos, false
	}
	return pos + i, true
}

// keyComponents splits a dotted key like "todo.home.urgent"
func keyComponents(key string) []string {
	return strings.Split(key, ".")
}

// unescapeBackslash replaces each backslash and the character after it
// by that character
func unescapeBackslash(s string) string {
	return unescapeWith(s, '\\')
}

func unescapeWith(s string, esc byte) string {
	if strings.IndexByte(s, esc) < 0 {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == esc && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
