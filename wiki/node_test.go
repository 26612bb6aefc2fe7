package wiki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeEditing(t *testing.T) {
	parent := newNonTerminal(0, "parent")
	a := newTerminal("a", 0, "x")
	c := newTerminal("c", 2, "x")
	parent.AppendChild(a)
	parent.AppendChild(c)

	b := newTerminal("b", 1, "y")
	parent.InsertBefore(b, c)
	assert.Equal(t, []*Node{a, b, c}, parent.Children())
	assert.Equal(t, b, parent.ChildByName("y"))
	assert.Equal(t, []*Node{a, c}, parent.ChildrenByName("x"))

	parent.RemoveChild(b)
	assert.Nil(t, b.Parent)
	assert.Equal(t, []*Node{a, c}, parent.Children())

	start := newTerminal("", 0, "first")
	parent.PrependChild(start)
	assert.Equal(t, start, parent.FirstChild)

	assert.Panics(t, func() { parent.AppendChild(a) })
	assert.Panics(t, func() { parent.RemoveChild(b) })

	kids := parent.detachChildren()
	assert.Len(t, kids, 3)
	assert.Nil(t, parent.FirstChild)
	for _, k := range kids {
		assert.Nil(t, k.Parent)
		assert.Nil(t, k.NextSibling)
	}
}

func TestClone(t *testing.T) {
	root := mustParse(t, "[[Page|a ''b'']]", nil)
	title := root.FindAll("title")[0]
	clone := title.Clone()

	assert.Nil(t, clone.Parent)
	assert.Equal(t, title.DumpString(), clone.DumpString())
	require.NotNil(t, clone.FirstChild)
	assert.NotSame(t, title.FirstChild, clone.FirstChild)

	clone.FirstChild.Text = "changed"
	assert.Equal(t, "a ''b''", title.PlainText())
}

func TestNodeTypeString(t *testing.T) {
	assert.Equal(t, "Terminal Node", TerminalNode.String())
	assert.Equal(t, "NonTerminal Node", NonTerminalNode.String())
	assert.Equal(t, "Error Node", ErrorNode.String())
}
