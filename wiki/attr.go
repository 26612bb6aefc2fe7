package wiki

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Attr is the data a grammar action attaches to a node. Each construct has its
// own concrete type.
type Attr interface {
	String() string
	nodes() []*Node
}

// HeadingAttr is attached to "heading" nodes.
type HeadingAttr struct {
	Level   int
	Content *Node
}

func (a *HeadingAttr) String() string { return fmt.Sprintf("level=%d", a.Level) }
func (a *HeadingAttr) nodes() []*Node { return []*Node{a.Content} }

// TodoAttr is attached to "todoEntry" nodes.
type TodoAttr struct {
	Key           string
	KeyComponents []string
	Delimiter     string
	Value         *Node
}

func (a *TodoAttr) String() string { return fmt.Sprintf("key=%q", a.Key) }
func (a *TodoAttr) nodes() []*Node { return []*Node{a.Value} }

// WikiWordAttr is attached to "wikiWord" nodes. WikiWord is the absolute name
// of the target page. Title is nil when the link shows the target itself.
type WikiWordAttr struct {
	WikiWord       string
	Title          *Node
	SearchFragment string
	AnchorLink     string
}

func (a *WikiWordAttr) String() string {
	s := fmt.Sprintf("wikiWord=%q", a.WikiWord)
	if a.SearchFragment != "" {
		s += fmt.Sprintf(" fragment=%q", a.SearchFragment)
	}
	if a.AnchorLink != "" {
		s += fmt.Sprintf(" anchor=%q", a.AnchorLink)
	}
	return s
}
func (a *WikiWordAttr) nodes() []*Node { return []*Node{a.Title} }

// AppendixEntry is one key/data pair of an appendix.
type AppendixEntry struct {
	Key  string
	Data string
}

// AppendixAttr is attached to appendix nodes. CSSClass and TextAlign are the
// values of the global appendix keys.
type AppendixAttr struct {
	Entries   []AppendixEntry
	CSSClass  string
	TextAlign string
}

func (a *AppendixAttr) String() string {
	parts := make([]string, len(a.Entries))
	for i, e := range a.Entries {
		parts[i] = e.Key + "=" + e.Data
	}
	return "entries=[" + strings.Join(parts, ";") + "]"
}
func (a *AppendixAttr) nodes() []*Node { return nil }

// Has reports whether key is one of the entry keys.
func (a *AppendixAttr) Has(key string) bool {
	for _, e := range a.Entries {
		if e.Key == key {
			return true
		}
	}
	return false
}

// URLLinkAttr is attached to "urlLink" nodes, both for plain URLs and images.
type URLLinkAttr struct {
	URL       string
	Bracketed bool
	Image     bool
	Core      *Node
	Title     *Node
	Appendix  *AppendixAttr
	CSSClass  string
}

func (a *URLLinkAttr) String() string {
	return fmt.Sprintf("url=%q bracketed=%v image=%v", a.URL, a.Bracketed, a.Image)
}
func (a *URLLinkAttr) nodes() []*Node { return []*Node{a.Core, a.Title} }

// PropertyAttr is attached to "attribute" nodes.
type PropertyAttr struct {
	Key           string
	KeyComponents []string
	Values        []string
}

func (a *PropertyAttr) String() string {
	return fmt.Sprintf("key=%q values=%q", a.Key, a.Values)
}
func (a *PropertyAttr) nodes() []*Node { return nil }

// InsertionAttr is attached to "insertion" nodes.
type InsertionAttr struct {
	Key           string
	KeyComponents []string
	Value         string
	Appendices    []string
}

func (a *InsertionAttr) String() string {
	return fmt.Sprintf("key=%q value=%q appendices=%q", a.Key, a.Value, a.Appendices)
}
func (a *InsertionAttr) nodes() []*Node { return nil }

// FootnoteAttr is attached to "footnote" nodes.
type FootnoteAttr struct {
	ID string
}

func (a *FootnoteAttr) String() string { return fmt.Sprintf("id=%q", a.ID) }
func (a *FootnoteAttr) nodes() []*Node { return nil }

// AnchorAttr is attached to "anchorDef" nodes.
type AnchorAttr struct {
	Anchor string
}

func (a *AnchorAttr) String() string { return fmt.Sprintf("anchor=%q", a.Anchor) }
func (a *AnchorAttr) nodes() []*Node { return nil }

// HTMLAttributesAttr holds the attributes of a table, row, caption or cell.
type HTMLAttributesAttr struct {
	Attributes []html.Attribute
}

func (a *HTMLAttributesAttr) String() string {
	parts := make([]string, len(a.Attributes))
	for i, at := range a.Attributes {
		parts[i] = at.Key + "=" + at.Val
	}
	return "attrs=[" + strings.Join(parts, " ") + "]"
}
func (a *HTMLAttributesAttr) nodes() []*Node { return nil }

// HTMLEquivalentAttr is attached to the synthetic "htmlEquivalent" nodes and
// holds the HTML tag they stand for.
type HTMLEquivalentAttr struct {
	Token html.Token
}

func (a *HTMLEquivalentAttr) String() string { return a.Token.String() }
func (a *HTMLEquivalentAttr) nodes() []*Node { return nil }

// BodyHTMLAttr is attached to "bodyHtmlTag" nodes.
type BodyHTMLAttr struct {
	Content string
}

func (a *BodyHTMLAttr) String() string { return fmt.Sprintf("content=%q", a.Content) }
func (a *BodyHTMLAttr) nodes() []*Node { return nil }

// FragmentAttr is attached to "searchFragment" terminals.
type FragmentAttr struct {
	Unescaped string
}

func (a *FragmentAttr) String() string { return fmt.Sprintf("unescaped=%q", a.Unescaped) }
func (a *FragmentAttr) nodes() []*Node { return nil }
