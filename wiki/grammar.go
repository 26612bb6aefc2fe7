package wiki

import (
	"sync"
)

// grammar holds the rules of the wiki language. It is built once and shared by
// all parses, the mutable part of a parse lives in State.
type grammar struct {
	// Terminators of content, by the name of the construct that needs them
	endTokens map[string]*rule

	stringEnd          *rule
	endToken           *rule
	endTokenInTable    *rule
	endTokenInTitle    *rule
	endTokenInCharAttr *rule

	whitespace     *rule
	whitespaceOrNl *rule
	bracketStart   *rule
	bracketEnd     *rule

	content                     *rule
	characterAttributionContent *rule
	titleContent                *rule
	headingContent              *rule
	todoContent                 *rule
	tableContentInCell          *rule

	escapedChar          *rule
	nowikiStandalone     *rule
	bold                 *rule
	italics              *rule
	script               *rule
	horizontalLine       *rule
	htmlTag              *rule
	htmlEntity           *rule
	htmlComment          *rule
	noExportSl           *rule
	suppressHighlighting *rule
	bodyHTMLTag          *rule

	heading                  *rule
	todoEntry                *rule
	todoEntryWithTermination *rule
	todoAsWhole              *rule

	newLinesParagraph             *rule
	newLineWhitespace             *rule
	preHTMLStart                  *rule
	preHTMLTag                    *rule
	preBySpace                    *rule
	bulletCombination             *rule
	bulletCombinationContinuation *rule

	tableMediaWiki *rule

	title               *rule
	modeAppendix        *rule
	urlRef              *rule
	imageURL            *rule
	wikiWordNccCore     *rule
	wikiWord            *rule
	wikiWordCc          *rule
	extractableWikiWord *rule
	footnote            *rule
	anchorDef           *rule
	attribute           *rule
	insertion           *rule

	text *rule
}

var (
	grammarOnce sync.Once
	theGrammar  *grammar
)

func getGrammar() *grammar {
	grammarOnce.Do(func() {
		theGrammar = newGrammar()
	})
	return theGrammar
}

func newGrammar() *grammar {
	g := &grammar{endTokens: make(map[string]*rule)}
	g.buildBasics()
	g.buildFormatting()
	g.buildHeadings()
	g.buildPre()
	g.buildLists()
	g.buildTables()
	g.buildLinks()
	g.buildAttributes()
	g.buildContent()
	return g
}

func (g *grammar) buildBasics() {
	g.stringEnd = fnNamed("stringEnd", func(st *State, pos int) (int, bool) {
		return pos, pos == len(st.text)
	})

	g.endToken = dynamic("endToken", func(st *State) *rule {
		name := st.innermost(func(name string) bool {
			_, ok := g.endTokens[name]
			return ok
		})
		if name == "" {
			return g.stringEnd
		}
		return g.endTokens[name]
	})

	g.whitespace = re(`[ \t]*`).hideEmpty()
	g.whitespaceOrNl = re(`[ \t\n]*`).hideEmpty()
	g.bracketStart = lit("[[")
	g.bracketEnd = lit("]]")

	g.content = forward("")
	g.characterAttributionContent = forward("")
	g.titleContent = forward("title")
	g.headingContent = forward("headingContent")
	g.todoContent = forward("value")
	g.tableContentInCell = forward("tableContentInCell").onMatch(helper(true))
}

func (g *grammar) buildFormatting() {
	g.escapedChar = seq(lit(`\`), reNamed(`.`, "plainText"))
	g.nowikiStandalone = re(`<nowiki ?/>`)

	italicsStart := lit("''").onStart(checkNotIn("italics"))
	italicsEnd := lit("''")
	g.italics = seq(italicsStart, g.characterAttributionContent, italicsEnd).named("italics")
	g.endTokens["italics"] = italicsEnd

	boldStart := lit("'''").onStart(checkNotIn("bold"))
	boldEnd := lit("'''")
	g.bold = seq(boldStart, g.characterAttributionContent, boldEnd).named("bold")
	g.endTokens["bold"] = boldEnd

	code := fnNamed("code", func(st *State, pos int) (int, bool) {
		return scanUntil(st.text, pos, "%>")
	})
	g.script = seq(lit("<%"), code, lit("%>")).named("script")

	g.horizontalLine = reNamed(`----+[ \t]*$`, "horizontalLine").
		onStart(func(st *State, pos int) error {
			if !nothingLeft(st.text, pos) {
				return errReject
			}
			return nil
		})

	g.htmlTag = reNamed(`</?[A-Za-z][A-Za-z0-9:]*(?:/| [^\n>]*)?>`, "htmlTag")
	g.htmlEntity = reNamed(`&(?:[A-Za-z0-9]{2,10}|#[0-9]{1,10}|#x[0-9a-fA-F]{1,8});`, "htmlEntity")
	g.htmlComment = reNamed(`<!-- .*? -->`, "htmlComment")

	noExportEnd := lit("</hide>")
	g.noExportSl = seq(lit("<hide>"), g.content, noExportEnd).named("noExportSl").
		onStart(checkNotIn("noExportSl")).
		onMatch(renameTo("noExport"))
	g.endTokens["noExportSl"] = noExportEnd

	nowikiText := fnNamed("plainText", func(st *State, pos int) (int, bool) {
		return scanUntil(st.text, pos, "</nowiki>")
	})
	g.suppressHighlighting = seq(lit("<nowiki>"), nowikiText, lit("</nowiki>")).named("suppressHighlighting")

	bodyText := fnNamed("bodyHtmlText", func(st *State, pos int) (int, bool) {
		return scanUntil(st.text, pos, "</body>")
	})
	g.bodyHTMLTag = seq(reNamed(`<body(?: [^\n>]*)?>`, "htmlTag"), bodyText, reNamed(`</body>`, "htmlTag")).
		named("bodyHtmlTag").
		onMatch(func(st *State, pos int, t *Node) error {
			t.Attr = &BodyHTMLAttr{Content: t.ChildByName("bodyHtmlText").Text}
			return nil
		})
}

func (g *grammar) buildHeadings() {
	headingStartTag := reNamed(`^={1,15}`, "headingStartTag")
	headingEnd := seq(reNamed(`={1,15}`, "headingEndTag"), g.whitespace, lit("\n"))
	g.endTokens["heading"] = headingEnd

	g.heading = seq(headingStartTag, optional(lit(" ")), g.headingContent, headingEnd).
		named("heading").
		validate(func(st *State, pos int, t *Node) error {
			c := t.ChildByName("headingContent")
			if c == nil || c.Length == 0 {
				return errReject
			}
			return nil
		}).
		onMatch(func(st *State, pos int, t *Node) error {
			start := t.ChildByName("headingStartTag").Length
			end := t.ChildByName("headingEndTag").Length
			level := start
			if end < level {
				level = end
			}
			t.Attr = &HeadingAttr{Level: level, Content: t.ChildByName("headingContent")}
			return nil
		})

	todoKey := reNamed(`\b(?:todo|done|wait|action|track|issue|question|project)(?:\.[^:\s]+)?`, "key")
	todoEnd := fn("todoEnd", func(st *State, pos int) (int, bool) {
		text := st.text
		switch {
		case pos == len(text):
			return pos, true
		case text[pos] == '\n' || text[pos] == '|':
			return pos + 1, true
		}
		return pos, false
	})
	g.endTokens["todoEntry"] = todoEnd

	g.todoEntry = seq(todoKey, reNamed(`:`, "todoDelimiter"), g.todoContent).
		named("todoEntry").
		onMatch(func(st *State, pos int, t *Node) error {
			key := t.ChildByName("key").Text
			t.Attr = &TodoAttr{
				Key:           key,
				KeyComponents: keyComponents(key),
				Delimiter:     t.ChildByName("todoDelimiter").Text,
				Value:         t.ChildByName("value"),
			}
			return nil
		})
	g.todoEntryWithTermination = seq(g.todoEntry, optional(lit("|")))
	g.todoAsWhole = seq(g.todoEntry, g.stringEnd)

	g.anchorDef = seq(re(`^[ \t]*anchor:[ \t]*`), reNamed(`[A-Za-z0-9_]+`, "anchor"), lit("\n")).
		named("anchorDef").
		onMatch(func(st *State, pos int, t *Node) error {
			t.Attr = &AnchorAttr{Anchor: t.ChildByName("anchor").Text}
			return nil
		})
}

// rejectInPre rejects rules that have a different meaning inside preformatted text
func rejectInPre(st *State, pos int) error {
	if st.lookupBool("inPre") {
		return errReject
	}
	return nil
}

// buildContent defines the content of the different contexts. Each content is
// a sequence of plain text and markup up to the terminator of the context.
func (g *grammar) buildContent() {
	g.endTokenInTable = choice(g.endToken, g.tableElement())
	g.endTokenInTitle = choice(g.endToken, lit("\n"))
	g.endTokenInCharAttr = choice(g.endToken, g.heading)

	contentOf := func(term *rule, candidates ...*rule) *rule {
		return zeroOrMore(seq(notAny(term), findFirst("plainText", term, candidates...)))
	}

	g.tableContentInCell.set(contentOf(g.endTokenInTable,
		g.bold, g.italics, g.noExportSl, g.suppressHighlighting, g.urlRef, g.imageURL,
		g.insertion, g.escapedChar, g.nowikiStandalone, g.footnote, g.wikiWord, g.wikiWordCc,
		g.newLinesParagraph, g.newLineWhitespace, g.bodyHTMLTag, g.htmlTag, g.htmlEntity,
		g.htmlComment, g.bulletCombination, g.bulletCombinationContinuation))

	g.titleContent.set(contentOf(g.endTokenInTitle,
		g.bold, g.italics, g.noExportSl, g.suppressHighlighting, g.urlRef, g.imageURL,
		g.insertion, g.escapedChar, g.nowikiStandalone, g.footnote, g.bodyHTMLTag,
		g.htmlTag, g.htmlEntity, g.htmlComment))

	g.headingContent.set(contentOf(g.endToken,
		g.bold, g.italics, g.noExportSl, g.suppressHighlighting, g.urlRef, g.imageURL,
		g.insertion, g.escapedChar, g.nowikiStandalone, g.footnote, g.wikiWord, g.wikiWordCc,
		g.bodyHTMLTag, g.htmlTag, g.htmlEntity, g.htmlComment))

	g.todoContent.set(oneOrMore(seq(notAny(g.endToken), findFirst("plainText", g.endToken,
		g.bold, g.italics, g.noExportSl, g.suppressHighlighting, g.urlRef, g.imageURL,
		g.attribute, g.insertion, g.escapedChar, g.nowikiStandalone, g.footnote, g.wikiWord,
		g.wikiWordCc, g.bodyHTMLTag, g.htmlTag, g.htmlEntity, g.htmlComment))))

	g.characterAttributionContent.set(contentOf(g.endTokenInCharAttr,
		g.bold, g.italics, g.noExportSl, g.suppressHighlighting, g.urlRef, g.imageURL,
		g.attribute, g.insertion, g.escapedChar, g.nowikiStandalone, g.footnote, g.wikiWord,
		g.wikiWordCc, g.newLinesParagraph, g.newLineWhitespace, g.todoEntryWithTermination,
		g.anchorDef, g.preBySpace, g.preHTMLTag, g.bodyHTMLTag, g.htmlTag, g.htmlEntity,
		g.htmlComment, g.tableMediaWiki))

	g.content.set(contentOf(g.endToken,
		g.bold, g.italics, g.noExportSl, g.suppressHighlighting, g.urlRef, g.imageURL,
		g.attribute, g.insertion, g.escapedChar, g.nowikiStandalone, g.footnote, g.wikiWord,
		g.wikiWordCc, g.newLinesParagraph, g.newLineWhitespace, g.heading,
		g.todoEntryWithTermination, g.anchorDef, g.preBySpace, g.preHTMLTag, g.bodyHTMLTag,
		g.htmlTag, g.htmlEntity, g.htmlComment, g.bulletCombination,
		g.bulletCombinationContinuation, g.tableMediaWiki, g.script, g.horizontalLine))
	g.content.validate(validateNonEmpty)

	g.text = seq(g.content, g.stringEnd)
}

// FoldingNodes are the names of the nodes an editor may fold.
var FoldingNodes = map[string]bool{
	"tableMediaWiki": true,
	"attribute":      true,
	"insertion":      true,
}
