package wiki

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func tagNames(toks []html.Token) []string {
	var names []string
	for _, tok := range toks {
		switch tok.Type {
		case html.StartTagToken:
			names = append(names, tok.Data)
		case html.EndTagToken:
			names = append(names, "/"+tok.Data)
		case html.SelfClosingTagToken:
			names = append(names, tok.Data+"/")
		}
	}
	return names
}

func TestBulletTagBalance(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		opened int
	}{
		{"single", "* one", 1},
		{"deeper", "* one\n** two\n*** three\n* back", 3},
		{"mixed", "* one\n*# two\n# three\n#* four", 4},
		{"definitions", "; term\n: def\n: more\n;: both", 7},
		{"shrinking", "*#*# deep\n* up", 4},
		{"with markup", "* '''bold''' item\n** [[Link]]\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := mustParse(t, tt.text, nil)
			lists := root.FindAll("bulletCombination")
			require.Len(t, lists, 1, root.DumpString())
			assert.True(t, lists[0].HelperNode)
			opened := checkBalanced(t, htmlTokens(root))
			assert.Equal(t, tt.opened, opened)
			assert.Equal(t, tt.text, root.PlainText())
		})
	}
}

func TestBulletTags(t *testing.T) {
	root := mustParse(t, "* a\n*# b\n: c\n: d", nil)
	assert.Equal(t, []string{
		"ul", "li/",
		"ol", "li/",
		"/ol", "/ul", "dl", "dd",
		"/dd", "dd",
		"/dd", "/dl",
	}, tagNames(htmlTokens(root)))
}

func TestListEndsAtPlainLine(t *testing.T) {
	root := mustParse(t, "* a\n* b\nafter\n* c", nil)
	lists := root.FindAll("bulletCombination")
	require.Len(t, lists, 2)
	assert.NotContains(t, lists[0].PlainText(), "after")
	checkBalanced(t, htmlTokens(root))
}

func TestPreBySpace(t *testing.T) {
	root := mustParse(t, "text\n code ''here''\n more\n\nafter", nil)
	pres := root.FindAll("preBySpace")
	require.NotEmpty(t, pres)
	assert.True(t, pres[0].HelperNode)
	assert.Equal(t, []string{"pre", "/pre"}, tagNames(htmlTokens(pres[0])))
	assert.Empty(t, pres[0].FindAll("newParagraph"))
	assert.NotContains(t, pres[0].PlainText(), "after")
	assert.Contains(t, pres[0].PlainText(), " more")
}

func TestPreHTMLTag(t *testing.T) {
	root := mustParse(t, "<pre>\n\nkeep\n</pre>\n\nnext", nil)
	pres := root.FindAll("preHtmlTag")
	require.Len(t, pres, 1)
	assert.Empty(t, pres[0].FindAll("newParagraph"))
	assert.Len(t, root.FindAll("newParagraph"), 1)
}

const exampleTable = `{|
|+ Caption
|-
! H1 !! H2
|-
| a || b
|}`

func cellText(n *Node) string {
	return strings.TrimSpace(n.ChildByName("tableContentInCell").PlainText())
}

func TestTable(t *testing.T) {
	root := mustParse(t, exampleTable, nil)

	tables := root.FindAll("tableMediaWiki")
	require.Len(t, tables, 1, root.DumpString())
	table := tables[0]
	assert.True(t, table.HelperNode)

	caption := table.ChildByName("tableCaption")
	require.NotNil(t, caption)
	assert.Equal(t, "Caption", cellText(caption))

	rows := table.ChildrenByName("tableRow")
	require.Len(t, rows, 2)

	header := rows[0].ChildrenByName("tableHeaderCell")
	require.Len(t, header, 2)
	assert.Equal(t, "H1", cellText(header[0]))
	assert.Equal(t, "H2", cellText(header[1]))
	assert.Empty(t, rows[0].ChildrenByName("tableCell"))

	cells := rows[1].ChildrenByName("tableCell")
	require.Len(t, cells, 2)
	assert.Equal(t, "a", cellText(cells[0]))
	assert.Equal(t, "b", cellText(cells[1]))

	// Every construct is wrapped in its own tags
	wrapped := []struct {
		n   *Node
		tag string
	}{
		{table, "table"}, {caption, "caption"}, {rows[0], "tr"}, {rows[1], "tr"},
		{header[0], "th"}, {header[1], "th"}, {cells[0], "td"}, {cells[1], "td"},
	}
	for _, w := range wrapped {
		first, ok := IsHTMLEquivalent(w.n.FirstChild)
		require.True(t, ok, w.tag)
		assert.Equal(t, html.StartTagToken, first.Type)
		assert.Equal(t, w.tag, first.Data)
		last, ok := IsHTMLEquivalent(w.n.LastChild)
		require.True(t, ok, w.tag)
		assert.Equal(t, html.EndTagToken, last.Type)
		assert.Equal(t, w.tag, last.Data)
	}

	assert.Equal(t, 8, checkBalanced(t, htmlTokens(root)))
}

func TestTableAttributes(t *testing.T) {
	text := "{| class=\"wide\" border=1\n|- align=left\n| style=\"x\" | cell\n|}"
	root := mustParse(t, text, nil)
	table := root.FindAll("tableMediaWiki")[0]

	first, _ := IsHTMLEquivalent(table.FirstChild)
	assert.Equal(t, []html.Attribute{{Key: "class", Val: "wide"}, {Key: "border", Val: "1"}}, first.Attr)

	row := table.ChildByName("tableRow")
	first, _ = IsHTMLEquivalent(row.FirstChild)
	assert.Equal(t, []html.Attribute{{Key: "align", Val: "left"}}, first.Attr)

	cell := row.ChildByName("tableCell")
	first, _ = IsHTMLEquivalent(cell.FirstChild)
	assert.Equal(t, []html.Attribute{{Key: "style", Val: "x"}}, first.Attr)
	assert.Equal(t, "cell", cellText(cell))
}

func TestTableAfterText(t *testing.T) {
	root := mustParse(t, "text before\n{|\n| x\n|}\nafter", nil)
	require.Len(t, root.FindAll("tableMediaWiki"), 1)
	assert.Len(t, root.FindAll("tableCell"), 1)
	checkBalanced(t, htmlTokens(root))
}
