// Package highlight turns syntax trees and diff spans into chroma token
// streams, so that any chroma formatter and style can render the styling
// hints of a page.
package highlight

import (
	"io"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	hlhtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/hesusruiz/wikicore/difftok"
	"github.com/hesusruiz/wikicore/wiki"
)

// DefaultStyle is used when no style name is given
const DefaultStyle = "monokai"

var nodeTokens = map[string]chroma.TokenType{
	"bold":                 chroma.GenericStrong,
	"italics":              chroma.GenericEmph,
	"heading":              chroma.GenericHeading,
	"wikiWord":             chroma.NameTag,
	"footnote":             chroma.NameLabel,
	"anchorDef":            chroma.NameLabel,
	"urlLink":              chroma.LiteralStringOther,
	"imageUrl":             chroma.LiteralStringOther,
	"attribute":            chroma.NameAttribute,
	"insertion":            chroma.NameBuiltin,
	"todoEntry":            chroma.Keyword,
	"script":               chroma.CommentPreproc,
	"htmlComment":          chroma.Comment,
	"htmlTag":              chroma.NameTag,
	"htmlEntity":           chroma.NameEntity,
	"horizontalLine":       chroma.Punctuation,
	"preBySpace":           chroma.LiteralString,
	"preHtmlTag":           chroma.LiteralString,
	"noExport":             chroma.CommentMultiline,
	"suppressHighlighting": chroma.Text,
	"tableMediaWiki":       chroma.GenericSubheading,
}

// TokenType returns the chroma token type used for nodes with the given name.
func TokenType(name string) (chroma.TokenType, bool) {
	t, ok := nodeTokens[name]
	return t, ok
}

// Tokens returns the terminals below root as chroma tokens. Every terminal
// takes the type of its innermost ancestor that has one, Text otherwise.
// Adjacent tokens of the same type are merged, and the token values
// concatenate to the plain text of root.
func Tokens(root *wiki.Node) []chroma.Token {
	var out []chroma.Token
	var visit func(n *wiki.Node, tt chroma.TokenType)
	visit = func(n *wiki.Node, tt chroma.TokenType) {
		if t, ok := nodeTokens[n.Name]; ok {
			tt = t
		}
		if n.Type == wiki.TerminalNode {
			if n.Text != "" {
				out = appendToken(out, chroma.Token{Type: tt, Value: n.Text})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, tt)
		}
	}
	visit(root, chroma.Text)
	return out
}

// DiffTokens maps the spans of a diff to inserted and deleted tokens.
func DiffTokens(spans []difftok.Span) []chroma.Token {
	var out []chroma.Token
	for _, s := range spans {
		tt := chroma.Text
		switch s.Kind {
		case difftok.Insert:
			tt = chroma.GenericInserted
		case difftok.Delete:
			tt = chroma.GenericDeleted
		}
		out = appendToken(out, chroma.Token{Type: tt, Value: s.Text})
	}
	return out
}

func appendToken(out []chroma.Token, tok chroma.Token) []chroma.Token {
	if tok.Value == "" {
		return out
	}
	if n := len(out); n > 0 && out[n-1].Type == tok.Type {
		out[n-1].Value += tok.Value
		return out
	}
	return append(out, tok)
}

// Format writes tokens to w with the named chroma formatter and style.
// Unknown names fall back to the chroma defaults.
func Format(w io.Writer, tokens []chroma.Token, formatterName, styleName string) error {
	f := formatters.Get(formatterName)
	return f.Format(w, style(styleName), chroma.Literator(tokens...))
}

// HTML writes tokens to w as inline-styled HTML spans, without the
// surrounding pre element.
func HTML(w io.Writer, tokens []chroma.Token, styleName string) error {
	f := hlhtml.New(hlhtml.Standalone(false), hlhtml.PreventSurroundingPre(true))
	return f.Format(w, style(styleName), chroma.Literator(tokens...))
}

func style(name string) *chroma.Style {
	if name == "" {
		name = DefaultStyle
	}
	return styles.Get(name)
}
