package wiki

import (
	"golang.org/x/net/html"
)

// tableElement matches where a new cell, row or the table end starts. A !!
// starts a new header cell only inside a header cell.
func (g *grammar) tableElement() *rule {
	return fn("tableElement", func(st *State, pos int) (int, bool) {
		text := st.text
		if atLineStart(text, pos) {
			i := skipBlanks(text, pos)
			if i < len(text) && (text[i] == '|' || text[i] == '!') {
				return i + 1, true
			}
		}
		if hasPrefixAt(text, pos, "||") {
			return pos + 2, true
		}
		if hasPrefixAt(text, pos, "!!") && st.inHeaderCell() {
			return pos + 2, true
		}
		return pos, false
	})
}

// inHeaderCell reports whether the innermost table element is a header cell
func (st *State) inHeaderCell() bool {
	name := st.innermost(func(name string) bool {
		switch name {
		case "tableHeaderCell", "tableCell", "tableCaption", "tableMediaWiki":
			return true
		}
		return false
	})
	return name == "tableHeaderCell"
}

func actionHTMLAttributes(st *State, pos int, t *Node) error {
	var attrs []html.Attribute
	for _, a := range t.ChildrenByName("htmlAttribute") {
		attrs = append(attrs, html.Attribute{
			Key: a.ChildByName("htmlAttributeKey").Text,
			Val: a.ChildByName("htmlAttributeValue").Text,
		})
	}
	t.Attr = &HTMLAttributesAttr{Attributes: attrs}
	t.HelperNode = true
	t.HelperRecursive = false
	return nil
}

// wrapIn returns an action putting the children between synthetic tags, with
// the attributes found in the child named attrsName
func wrapIn(tag, attrsName string) action {
	return func(st *State, pos int, t *Node) error {
		wrapInTag(t, tag, htmlAttributes(t, attrsName))
		return nil
	}
}

func (g *grammar) buildTables() {
	valueQuoted := seq(lit(`"`), reNamed(`[^"\n\t]*`, "htmlAttributeValue"), lit(`"`))
	valueNotQuoted := reNamed(`[^"\n\t ]+`, "htmlAttributeValue")

	htmlAttribute := seq(g.whitespace, reNamed(`[A-Za-z0-9]+`, "htmlAttributeKey"),
		g.whitespace, lit("="), g.whitespace, choice(valueQuoted, valueNotQuoted)).
		named("htmlAttribute")

	genericHTMLAttributes := oneOrMore(htmlAttribute).
		named("genericHtmlAttributes").
		onMatch(actionHTMLAttributes)
	attributesAs := func(name string) *rule {
		return genericHTMLAttributes.copy().named(name)
	}

	attributeStop := seq(g.whitespace, lit("|"))

	tableStart := seq(re(`^[ \t]*\{\|`), g.whitespace,
		optional(attributesAs("tableHtmlAttributes")), g.whitespaceOrNl)

	tableEnd := re(`^[ \t]*\|\}[ \t]*(?:\n|$)`)
	g.endTokens["tableMediaWiki"] = tableEnd

	tableCaption := seq(re(`^[ \t]*\|\+`), g.whitespace,
		optional(seq(attributesAs("tableCaptionHtmlAttributes"), attributeStop)),
		g.whitespaceOrNl, g.tableContentInCell).
		named("tableCaption").
		onMatch(wrapIn("caption", "tableCaptionHtmlAttributes"))

	headerCellStart := fn("tableHeaderCellStart", func(st *State, pos int) (int, bool) {
		text := st.text
		if atLineStart(text, pos) {
			if i := skipBlanks(text, pos); i < len(text) && text[i] == '!' {
				return i + 1, true
			}
		}
		if hasPrefixAt(text, pos, "!!") {
			return pos + 2, true
		}
		return pos, false
	})
	cellRest := func() []*rule {
		return []*rule{g.whitespace,
			optional(seq(attributesAs("tableCellHtmlAttributes"), attributeStop)),
			g.whitespaceOrNl, g.tableContentInCell}
	}

	tableHeaderCell := seq(append([]*rule{headerCellStart}, cellRest()...)...).
		named("tableHeaderCell").
		onMatch(helper(true), wrapIn("th", "tableCellHtmlAttributes"))

	cellStart := fn("tableCellStart", func(st *State, pos int) (int, bool) {
		text := st.text
		if atLineStart(text, pos) {
			i := skipBlanks(text, pos)
			if i < len(text) && text[i] == '|' {
				if i+1 == len(text) || (text[i+1] != '}' && text[i+1] != '+' && text[i+1] != '-') {
					return i + 1, true
				}
			}
		}
		if hasPrefixAt(text, pos, "||") {
			return pos + 2, true
		}
		return pos, false
	})
	tableCell := seq(append([]*rule{cellStart}, cellRest()...)...).
		named("tableCell").
		onMatch(helper(true), wrapIn("td", "tableCellHtmlAttributes"))

	rowStart := seq(re(`^[ \t]*\|-`), g.whitespace,
		optional(attributesAs("tableRowHtmlAttributes")), g.whitespaceOrNl)
	cells := oneOrMore(choice(tableCell, tableHeaderCell))

	tableRow := seq(rowStart, cells).
		named("tableRow").
		onMatch(helper(true), wrapIn("tr", "tableRowHtmlAttributes"))
	tableFirstRow := seq(optional(rowStart), cells).
		named("tableRow").
		onMatch(helper(true), wrapIn("tr", "tableRowHtmlAttributes"))

	g.tableMediaWiki = seq(tableStart, optional(tableCaption), tableFirstRow,
		zeroOrMore(tableRow), tableEnd).
		named("tableMediaWiki").
		onMatch(helper(true), wrapIn("table", "tableHtmlAttributes"))
}
