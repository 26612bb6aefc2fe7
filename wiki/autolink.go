package wiki

import (
	"regexp"
	"sort"
	"strings"
)

// An AutoLinkEntry links plain text matching Pattern to the page Word.
type AutoLinkEntry struct {
	Pattern *regexp.Regexp
	Word    string
}

var autoLinkSplitRE = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// Group 1 of the pattern is the linked text. The word boundaries are matched
// as characters, RE2 has no Unicode aware \b.
const (
	autoLinkBefore = `(?i)(?:^|[^\p{L}\p{N}_])(`
	autoLinkAfter  = `)(?:[^\p{L}\p{N}_]|$)`
)

// BuildAutoLinkRelaxInfo returns the entries used to link plain text to the
// given words in relax mode. The words are matched case insensitively with
// any run of non word characters between their parts. Longer words come first.
func BuildAutoLinkRelaxInfo(words []string) []AutoLinkEntry {
	sorted := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			sorted = append(sorted, w)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})

	entries := make([]AutoLinkEntry, 0, len(sorted))
	for _, w := range sorted {
		var parts []string
		for _, p := range autoLinkSplitRE.Split(w, -1) {
			if p != "" {
				parts = append(parts, regexp.QuoteMeta(p))
			}
		}
		if len(parts) == 0 {
			continue
		}
		pat := autoLinkBefore + strings.Join(parts, `[^\p{L}\p{N}_]+`) + autoLinkAfter
		entries = append(entries, AutoLinkEntry{Pattern: regexp.MustCompile(pat), Word: w})
	}
	return entries
}

// findAutoLink returns the earliest match of the entries in text. On a tie
// the first entry wins.
func findAutoLink(entries []AutoLinkEntry, text string) (start, end int, word string) {
	start = -1
	for _, e := range entries {
		loc := e.Pattern.FindStringSubmatchIndex(text)
		if loc == nil || loc[2] < 0 {
			continue
		}
		if start < 0 || loc[2] < start {
			start, end, word = loc[2], loc[3], e.Word
			if start == 0 {
				break
			}
		}
	}
	return start, end, word
}

// autoLink replaces the words found in plain text below n by wiki word nodes
func (st *State) autoLink(n *Node, entries []AutoLinkEntry) int {
	count := 0
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == NonTerminalNode:
			count += st.autoLink(c, entries)
		case c.Name == "plainText":
			count += st.autoLinkText(n, c, entries)
		}
		c = next
	}
	return count
}

func (st *State) autoLinkText(parent, plain *Node, entries []AutoLinkEntry) int {
	st.poll()
	text, pos := plain.Text, plain.Pos
	var out []*Node
	links := 0
	for text != "" {
		start, end, word := findAutoLink(entries, text)
		if start < 0 {
			out = append(out, newTerminal(text, pos, "plainText"))
			break
		}
		if start > 0 {
			out = append(out, newTerminal(text[:start], pos, "plainText"))
		}
		found := text[start:end]
		ww := newNonTerminal(pos+start, "wikiWord")
		ww.Length = len(found)
		ww.AppendChild(newTerminal(found, pos+start, "word"))
		ww.Attr = &WikiWordAttr{
			WikiWord: word,
			Title:    newTerminal(found, pos+start, "plainText"),
		}
		out = append(out, ww)
		links++
		pos += end
		text = text[end:]
	}
	if links == 0 {
		return 0
	}
	for _, m := range out {
		parent.InsertBefore(m, plain)
	}
	parent.RemoveChild(plain)
	return links
}
