package wiki

import (
	"regexp"
)

const quoteKey = "attributeQuote"

var quoteRunRE = regexp.MustCompile(`\A(?:"+|'+|/+|\\+)`)

// sameCharRun returns the end of the run of the byte at pos
func sameCharRun(text string, pos int) int {
	i := pos
	for i < len(text) && text[i] == text[pos] {
		i++
	}
	return i
}

// storeQuote remembers the quote opening a value, so the matching closing
// quote can be found
func storeQuote(st *State, pos int) error {
	loc := quoteRunRE.FindStringIndex(st.text[pos:])
	if loc == nil {
		return errReject
	}
	st.top().values()[quoteKey] = st.text[pos : pos+loc[1]]
	return nil
}

func actionAttribute(st *State, pos int, t *Node) error {
	key := t.ChildByName("key").Text
	var values []string
	for _, v := range t.ChildrenByName("value") {
		values = append(values, v.Text)
	}
	t.Attr = &PropertyAttr{Key: key, KeyComponents: keyComponents(key), Values: values}
	return nil
}

func actionInsertion(st *State, pos int, t *Node) error {
	key := t.ChildByName("key").Text
	attr := &InsertionAttr{Key: key, KeyComponents: keyComponents(key)}
	for i, v := range t.ChildrenByName("value") {
		if i == 0 {
			attr.Value = v.Text
			continue
		}
		attr.Appendices = append(attr.Appendices, v.Text)
	}
	t.Attr = attr
	return nil
}

func (g *grammar) buildAttributes() {
	quoteStart := re(`"+|'+|/+|\\+`)
	quoteEnd := fn("quoteEnd", func(st *State, pos int) (int, bool) {
		v, ok := st.lookup(quoteKey)
		if !ok || pos >= len(st.text) {
			return pos, false
		}
		quote := v.(string)
		end := sameCharRun(st.text, pos)
		if st.text[pos:end] != quote {
			return pos, false
		}
		return end, true
	})
	quotedValue := findFirst("value", quoteEnd)

	valueQuoted := seq(quoteStart, quotedValue, quoteEnd).onStart(storeQuote)
	valueNotQuoted := reNamed(`(?:[ \t]*[\p{L}\p{N}_\-=:,.!?#%|/]+)*`, "value")

	value := seq(g.whitespace, choice(valueQuoted, valueNotQuoted))
	key := reNamed(`[\p{L}\p{N}_\-.]+`, "key")
	delimiter := re(`[ \t]*[=:]`)
	values := seq(value, zeroOrMore(seq(lit(";"), value)))

	g.attribute = seq(g.bracketStart, g.whitespace, key, delimiter, values, g.whitespace, g.bracketEnd).
		named("attribute").
		onMatch(actionAttribute)

	g.insertion = seq(g.bracketStart, lit(":"), g.whitespace, key, delimiter, values, g.whitespace, g.bracketEnd).
		named("insertion").
		onMatch(actionInsertion)
}
