package wiki

import (
	"strings"
)

func (g *grammar) buildPre() {
	fakeIndentation := re(`^[ \t]+$`)
	newLine := seq(lit("\n"), optional(fakeIndentation))

	g.newLinesParagraph = seq(newLine, oneOrMore(newLine)).
		named("newParagraph").
		onStart(rejectInPre)
	g.newLineWhitespace = newLine.copy().
		named("whitespace").
		onStart(rejectInPre)

	g.preHTMLStart = reNamed(`<pre(?: [^\n>]*)?>`, "htmlTag").
		onMatch(func(st *State, pos int, t *Node) error {
			st.subTopDict()["inPre"] = true
			return nil
		})
	preHTMLEnd := reNamed(`</pre(?: [^\n>]*)?>`, "htmlTag")
	g.endTokens["preHtmlTag"] = preHTMLEnd

	g.preHTMLTag = seq(g.preHTMLStart, g.content, preHTMLEnd).
		named("preHtmlTag").
		onMatch(helper(true))

	preBySpaceStart := re(`^ `).onMatch(func(st *State, pos int, t *Node) error {
		switch {
		case st.inNamed("preBySpace"):
			// A further line of the block, the space is just text
		case st.lookupBool("inPre"):
			return errReject
		default:
			st.subTopDict()["inPre"] = true
			space := t.FirstChild
			space.Name = "htmlEquivalent"
			space.Attr = &HTMLEquivalentAttr{Token: startTag("pre")}
		}
		return nil
	})

	blockEnd := fn("preBySpaceEnd", func(st *State, pos int) (int, bool) {
		text := st.text
		if pos == len(text) {
			return pos, true
		}
		return pos, atLineStart(text, pos) && text[pos] != ' '
	})
	preBySpaceEnd := choice(blockEnd, followedBy(g.preHTMLStart)).
		onMatch(func(st *State, pos int, t *Node) error {
			t.Name = "htmlEquivalent"
			t.Attr = &HTMLEquivalentAttr{Token: endTag("pre")}
			return nil
		})
	g.endTokens["preBySpace"] = preBySpaceEnd

	preBySpaceFirst := seq(preBySpaceStart, g.content, preBySpaceEnd).
		onStart(checkNotIn("preBySpace"))

	g.preBySpace = choice(preBySpaceFirst, preBySpaceStart).
		named("preBySpace").
		onMatch(helper(true))
}

func (g *grammar) buildLists() {
	bulletCombinationStart := reNamed(`^[*#;:]+`, "bulletCombinationStart").
		onMatch(actionBulletCombination)
	g.bulletCombinationContinuation = bulletCombinationStart.copy().
		named("bulletCombinationContinuation")

	bulletCombinationEnd := fnNamed("bulletCombinationEnd", func(st *State, pos int) (int, bool) {
		text := st.text
		if pos == len(text) {
			return pos, true
		}
		return pos, atLineStart(text, pos) && strings.IndexByte("*#:;", text[pos]) < 0
	}).onMatch(actionBulletCombinationEnd)
	g.endTokens["bulletCombination"] = bulletCombinationEnd

	g.bulletCombination = seq(bulletCombinationStart, g.content, bulletCombinationEnd).
		named("bulletCombination").
		onStart(checkNotIn("bulletCombination")).
		onMatch(helper(true))
}

const prevBulletsKey = "prevBulletCombinationNorm"

// normalizeBullets marks each definition list item with the ! standing for the
// enclosing dl tag
var normalizeBullets = strings.NewReplacer(":", "!:", ";", "!;")

// actionBulletCombination adds the synthetic tags that close the lists of the
// previous line not continued on this one and open the new ones.
func actionBulletCombination(st *State, pos int, t *Node) error {
	d := st.namedDict("bulletCombination")
	prev, _ := d[prevBulletsKey].(string)

	bullets := t.FirstChild
	bullets.HelperNode = true
	norm := normalizeBullets.Replace(bullets.Text)
	last := norm[len(norm)-1]
	d[prevBulletsKey] = norm

	i := 0
	for i < len(prev) && i < len(norm) && prev[i] == norm[i] {
		i++
	}
	closing, opening := prev[i:], norm[i:]

	at := bullets.End()
	add := func(n *Node) { t.AppendChild(n) }

	for j := len(closing) - 1; j >= 0; j-- {
		add(htmlEquivalent(at, endTag(bulletTags[closing[j]])))
	}
	lastOpened := ""
	for j := 0; j < len(opening); j++ {
		lastOpened = bulletTags[opening[j]]
		add(htmlEquivalent(at, startTag(lastOpened)))
	}

	switch last {
	case '*', '#':
		add(htmlEquivalent(at, emptyTag("li")))
	case ':', ';':
		// A new item of the same definition list
		tag := bulletTags[last]
		if lastOpened != tag {
			add(htmlEquivalent(at, endTag(tag)))
			add(htmlEquivalent(at, startTag(tag)))
		}
	}
	return nil
}

// actionBulletCombinationEnd closes all the lists still open
func actionBulletCombinationEnd(st *State, pos int, t *Node) error {
	prev, _ := st.namedDict("bulletCombination")[prevBulletsKey].(string)
	t.FirstChild.HelperNode = true
	for j := len(prev) - 1; j >= 0; j-- {
		t.AppendChild(htmlEquivalent(pos, endTag(bulletTags[prev[j]])))
	}
	return nil
}
