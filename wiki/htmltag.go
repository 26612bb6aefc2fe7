package wiki

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// The names of the synthetic tags used for lists
var bulletTags = map[byte]string{
	'*': "ul",
	'#': "ol",
	';': "dt",
	':': "dd",
	'!': "dl",
}

func tagToken(typ html.TokenType, tag string, attrs []html.Attribute) html.Token {
	return html.Token{
		Type:     typ,
		DataAtom: atom.Lookup([]byte(tag)),
		Data:     tag,
		Attr:     attrs,
	}
}

// startTag returns a token like <tag attrs>
func startTag(tag string, attrs ...html.Attribute) html.Token {
	return tagToken(html.StartTagToken, tag, attrs)
}

// endTag returns a token like </tag>
func endTag(tag string) html.Token {
	return tagToken(html.EndTagToken, tag, nil)
}

// emptyTag returns a token like <tag/>
func emptyTag(tag string) html.Token {
	return tagToken(html.SelfClosingTagToken, tag, nil)
}

// htmlEquivalent returns a synthetic zero length node standing for tok at pos
func htmlEquivalent(pos int, tok html.Token) *Node {
	n := newTerminal("", pos, "htmlEquivalent")
	n.Attr = &HTMLEquivalentAttr{Token: tok}
	return n
}

// IsHTMLEquivalent reports whether n is a synthetic tag node and returns its token.
func IsHTMLEquivalent(n *Node) (html.Token, bool) {
	if n.Name != "htmlEquivalent" {
		return html.Token{}, false
	}
	a, ok := n.Attr.(*HTMLEquivalentAttr)
	if !ok {
		return html.Token{}, false
	}
	return a.Token, true
}

// htmlAttributes returns the attributes held by the child of t named name, if any
func htmlAttributes(t *Node, name string) []html.Attribute {
	n := t.ChildByName(name)
	if n == nil {
		return nil
	}
	if a, ok := n.Attr.(*HTMLAttributesAttr); ok {
		return a.Attributes
	}
	return nil
}

// wrapInTag puts synthetic start and end tags around the children of t
func wrapInTag(t *Node, tag string, attrs []html.Attribute) {
	t.PrependChild(htmlEquivalent(t.Pos, startTag(tag, attrs...)))
	t.AppendChild(htmlEquivalent(t.End(), endTag(tag)))
}
