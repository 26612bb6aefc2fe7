package wiki

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hesusruiz/wikicore/wikilink"
)

var urlSchemeRE = regexp.MustCompile(`\A(?:(?:https?|ftp|rel|wikirel)://|mailto:|Outlook:\S|wiki:/|file:/)`)

// scanURL matches a URL. Trailing punctuation followed by a quote, whitespace
// or the end of the line is not part of the URL.
func scanURL(st *State, pos int) (int, bool) {
	text := st.text
	loc := urlSchemeRE.FindStringIndex(text[pos:])
	if loc == nil {
		return pos, false
	}
	i := pos + loc[1]
	for i < len(text) {
		if j := skipURLPunctuation(text, i); j > i {
			if j == len(text) || text[j] == '"' || isSpaceAt(text, j) {
				break
			}
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '"' || r == '|' || r == ']' || r == '<' || r == '>' || unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i, true
}

func skipURLPunctuation(text string, i int) int {
	for i < len(text) && strings.IndexByte(".,;:!?)", text[i]) >= 0 {
		i++
	}
	return i
}

func isSpaceAt(text string, i int) bool {
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}

// A part of a page name can not start with .. and has none of the characters
// used by the link syntax
func scanWikiWordPart(text string, pos int) (int, bool) {
	if hasPrefixAt(text, pos, "..") {
		return pos, false
	}
	i := pos
	for i < len(text) {
		c := text[i]
		if c < 0x20 || strings.IndexByte(`\/[]|=:;#!`, c) >= 0 {
			break
		}
		i++
	}
	return i, i > pos
}

// scanWikiWordCore matches the target of a link: either a path going up like
// ../../Sub/Page or a page name optionally starting with one or two slashes.
func scanWikiWordCore(text string, pos int) (int, bool) {
	i := pos
	if hasPrefixAt(text, i, "..") {
		i += 2
		for hasPrefixAt(text, i, "/..") {
			i += 3
		}
	} else {
		for k := 0; k < 2 && i < len(text) && text[i] == '/'; k++ {
			i++
		}
		end, ok := scanWikiWordPart(text, i)
		if !ok {
			return pos, false
		}
		i = end
	}
	for i < len(text) && text[i] == '/' {
		end, ok := scanWikiWordPart(text, i+1)
		if !ok {
			break
		}
		i = end
	}
	return i, true
}

// scanFragment matches the search fragment of a link, up to the title or the
// end of the link. A backslash escapes the next character.
func scanFragment(st *State, pos int) (int, bool) {
	text := st.text
	i := pos
	for i < len(text) {
		if text[i] == '\\' && i+1 < len(text) {
			i++
			i += runeLen(text, i)
			continue
		}
		if text[i] == '|' || hasPrefixAt(text, i, "]]") {
			break
		}
		i += runeLen(text, i)
	}
	return i, i > pos
}

// actionCutRightWhitespace moves trailing whitespace of the link target into
// its own terminal
func actionCutRightWhitespace(st *State, pos int, t *Node) error {
	word := t.FirstChild
	trimmed := strings.TrimRight(word.Text, " \t\n\r")
	if trimmed == word.Text {
		return nil
	}
	if trimmed == "" {
		return errReject
	}
	rest := newTerminal(word.Text[len(trimmed):], word.Pos+len(trimmed), "")
	word.Text = trimmed
	word.Length = len(trimmed)
	t.AppendChild(rest)
	return nil
}

func actionFragment(unescape func(string) string) action {
	return func(st *State, pos int, t *Node) error {
		frag := t.FirstChild
		frag.Attr = &FragmentAttr{Unescaped: unescape(frag.Text)}
		return nil
	}
}

func actionModeAppendix(st *State, pos int, t *Node) error {
	a := &AppendixAttr{}
	for _, e := range t.ChildrenByName("entry") {
		key := e.ChildByName("key").Text
		key = strings.TrimSuffix(strings.TrimSuffix(key, ":"), "=")
		a.Entries = append(a.Entries, AppendixEntry{Key: key, Data: e.ChildByName("data").Text})
	}
	t.Attr = a
	return nil
}

// globalAppendix interprets the appendix keys valid for every construct
// with an appendix, except the ones in ignore
func globalAppendix(a *AppendixAttr, ignore ...string) {
	a.CSSClass, a.TextAlign = "", ""
outer:
	for _, e := range a.Entries {
		for _, k := range ignore {
			if e.Key == k {
				continue outer
			}
		}
		switch e.Key {
		case "s", "class":
			a.CSSClass = strings.ReplaceAll(e.Data, ",", " ")
		case "A", "align":
			switch e.Data {
			case "l", "c", "r", "left", "center", "right":
				a.TextAlign = e.Data
			}
		}
	}
}

// appendixOf returns the appendix of t, creating an empty one if there is none
func appendixOf(t *Node) *AppendixAttr {
	if n := t.ChildByName("urlModeAppendix"); n != nil {
		if a, ok := n.Attr.(*AppendixAttr); ok {
			return a
		}
	}
	return &AppendixAttr{}
}

func actionURLLink(st *State, pos int, t *Node) error {
	bracketed := t.Name != "urlLinkBare"
	t.Name = "urlLink"
	appendix := appendixOf(t)
	// Declare it a link and not an image
	appendix.Entries = append(appendix.Entries, AppendixEntry{Key: "l"})
	core := t.ChildByName("url")
	t.Attr = &URLLinkAttr{
		URL:       core.Text,
		Bracketed: bracketed,
		Core:      core,
		Title:     t.ChildByName("title"),
		Appendix:  appendix,
	}
	return nil
}

func actionImageURL(st *State, pos int, t *Node) error {
	t.Name = "urlLink"
	appendix := appendixOf(t)
	core := t.ChildByName("url")
	var classes []string

	for _, opt := range t.ChildrenByName("imageUrlOption") {
		if kw := opt.ChildByName("keyword"); kw != nil {
			switch kw.Text {
			case "left", "center", "right", "top", "middle", "bottom":
				appendix.Entries = append(appendix.Entries, AppendixEntry{Key: "align", Data: kw.Text})
			case "upright":
				appendix.Entries = append(appendix.Entries, AppendixEntry{Key: "upright", Data: "1"})
			}
			continue
		}
		if key := opt.ChildByName("key"); key != nil {
			if key.Text == "class" {
				classes = append(classes, opt.ChildByName("value").Text)
			}
			continue
		}
		if ps := opt.ChildByName("pixelsize"); ps != nil {
			appendix.Entries = append(appendix.Entries, AppendixEntry{Key: "r", Data: strings.ReplaceAll(ps.Text, "px", "")})
		}
	}

	// Declare it an image
	appendix.Entries = append(appendix.Entries, AppendixEntry{Key: "i"})

	t.Attr = &URLLinkAttr{
		URL:      core.Text,
		Image:    true,
		Core:     core,
		Title:    t.ChildByName("title"),
		Appendix: appendix,
		CSSClass: strings.Join(classes, " "),
	}
	return nil
}

// resolveWord returns the absolute page name a link points to
func resolveWord(st *State, link string) (string, bool) {
	word, err := wikilink.Resolve(link, st.opts.BasePage)
	if err != nil || word == "" {
		return "", false
	}
	return word, true
}

func actionWikiWordNcc(st *State, pos int, t *Node) error {
	link := "."
	if w := t.ChildByName("word"); w != nil {
		link = w.Text
	}
	word, ok := resolveWord(st, link)
	if !ok {
		return errReject
	}
	if bl := st.opts.NccWordBlacklisted; bl != nil && bl(word) {
		return errReject
	}

	attr := &WikiWordAttr{WikiWord: word, Title: t.ChildByName("title")}
	if trail := t.ChildByName("titleTrail"); trail != nil {
		var title *Node
		if attr.Title != nil {
			title = attr.Title.Clone()
		} else {
			title = newNonTerminal(t.Pos, "title")
			title.AppendChild(newTerminal(word, t.Pos, "plainText"))
		}
		title.AppendChild(newTerminal(trail.Text, trail.Pos, "plainText"))
		attr.Title = title
		trail.Name = ""
	}
	if frag := t.ChildByName("searchFragment"); frag != nil {
		if fa, ok := frag.Attr.(*FragmentAttr); ok {
			attr.SearchFragment = fa.Unescaped
		}
	}
	if anchor := t.ChildByName("anchorLink"); anchor != nil {
		attr.AnchorLink = anchor.Text
	}
	t.Attr = attr
	return nil
}

func actionWikiWordCc(st *State, pos int, t *Node) error {
	word, ok := resolveWord(st, t.ChildByName("word").Text)
	if !ok {
		return errReject
	}
	if bl := st.opts.CcWordBlacklisted; bl != nil && bl(word) {
		return errReject
	}
	attr := &WikiWordAttr{WikiWord: word}
	if frag := t.ChildByName("searchFragment"); frag != nil {
		if fa, ok := frag.Attr.(*FragmentAttr); ok {
			attr.SearchFragment = fa.Unescaped
		}
	}
	if anchor := t.ChildByName("anchorLink"); anchor != nil {
		attr.AnchorLink = anchor.Text
	}
	t.Attr = attr
	return nil
}

// A CamelCase word has upper case letters followed by lower case ones
// and then again upper case letters, or starts with two upper case letters
var camelCaseRE = regexp.MustCompile(`\A(?:\p{Lu}+\p{Ll}+\p{Lu}+[\p{L}\p{N}]*|\p{Lu}{2,}\p{Ll}+)`)

func scanCamelCase(st *State, pos int) (int, bool) {
	loc := camelCaseRE.FindStringIndex(st.text[pos:])
	if loc == nil {
		return pos, false
	}
	end := pos + loc[1]
	if !wordBoundaryAfter(st.text, end) {
		return pos, false
	}
	return end, true
}

func (g *grammar) buildLinks() {
	modeAppendixEntry := seq(
		reNamed(`[^\s;|\]=:]+[=:]|[^\s;|\]=:]`, "key"),
		reNamed(`[^\s;|\]]*`, "data")).
		named("entry")
	g.modeAppendix = seq(modeAppendixEntry, zeroOrMore(seq(lit(";"), modeAppendixEntry))).
		named("modeAppendix").
		onMatch(actionModeAppendix)
	urlModeAppendix := g.modeAppendix.copy().
		named("urlModeAppendix").
		onMatch(func(st *State, pos int, t *Node) error {
			globalAppendix(t.Attr.(*AppendixAttr), "s")
			return nil
		})

	url := fnNamed("url", scanURL).hint("hfrwmO")
	urlWithAppend := seq(url, optional(seq(lit(">"), urlModeAppendix)))

	urlBare := urlWithAppend.copy().named("urlLinkBare").onMatch(actionURLLink)

	urlBracketEnd := lit("]")
	g.endTokens["urlLinkBracketed"] = urlBracketEnd
	urlTitled := seq(lit("["), urlWithAppend,
		optional(seq(lit(" "), g.whitespace, g.titleContent)), g.whitespace, urlBracketEnd).
		named("urlLinkBracketed").
		onMatch(actionURLLink)

	g.urlRef = choice(urlTitled, urlBare)

	g.title = seq(re(`\|[ \t]*`), g.titleContent)

	imageURLOption := seq(lit("|"), choice(
		reNamed(`border|frameless|frame|upright|thumb|left|right|center|none|baseline|sub|super|top|text-top|middle|bottom|text-bottom`, "keyword"),
		reNamed(`[0-9]+px(?:x[0-9]+px)?`, "pixelsize"),
		seq(reNamed(`thumb|link|alt|page|class`, "key"), lit("="), reNamed(`[^\n\t\]|]*`, "value")))).
		named("imageUrlOption")

	g.imageURL = seq(g.bracketStart, urlWithAppend, g.whitespace, zeroOrMore(imageURLOption),
		optional(g.title), g.bracketEnd).
		named("imageUrl").
		onMatch(actionImageURL)
	g.endTokens["imageUrl"] = g.bracketEnd

	searchFragmentIntern := seq(lit("#"),
		fnNamed("searchFragment", scanFragment).onMatch(actionFragment(unescapeBackslash)))
	searchFragmentExtern := seq(lit("#"),
		reNamed(`(?:#.|[^ \t\n#])+`, "searchFragment").onMatch(actionFragment(func(s string) string {
			return unescapeWith(s, '#')
		})))
	anchorLink := seq(lit("!"), reNamed(`[A-Za-z0-9_]+`, "anchorLink"))
	titleTrail := reNamed(`[\p{L}\p{N}_]+`, "titleTrail")

	g.wikiWordNccCore = fnNamed("word", func(st *State, pos int) (int, bool) {
		return scanWikiWordCore(st.text, pos)
	})

	withWord := seq(g.bracketStart,
		g.wikiWordNccCore.copy().onMatch(actionCutRightWhitespace),
		optional(choice(searchFragmentIntern, anchorLink)), g.whitespace,
		optional(g.title), g.bracketEnd, optional(titleTrail))
	searchInPage := seq(g.bracketStart, searchFragmentIntern, g.whitespace,
		optional(g.title), g.bracketEnd, optional(titleTrail))

	g.wikiWord = choice(withWord, searchInPage).
		named("wikiWord").
		onMatch(actionWikiWordNcc)
	g.endTokens["wikiWord"] = g.bracketEnd

	g.wikiWordCc = seq(fnNamed("word", scanCamelCase),
		optional(choice(searchFragmentExtern, anchorLink))).
		named("wikiWord").
		when(func(st *State, pos int) bool {
			if !st.opts.WithCamelCase || !wordBoundaryBefore(st.text, pos) {
				return false
			}
			r, _ := utf8.DecodeRuneInString(st.text[pos:])
			return unicode.IsUpper(r)
		}).
		onMatch(actionWikiWordCc)

	g.extractableWikiWord = seq(choice(g.wikiWordNccCore, g.wikiWord), g.stringEnd)

	g.footnote = seq(g.bracketStart, reNamed(`[0-9]+`, "footnoteId"), g.bracketEnd).
		named("footnote").
		when(func(st *State, pos int) bool {
			return !st.opts.FootnotesAsWikiWords
		}).
		onMatch(func(st *State, pos int, t *Node) error {
			t.Attr = &FootnoteAttr{ID: t.ChildByName("footnoteId").Text}
			return nil
		})
}
