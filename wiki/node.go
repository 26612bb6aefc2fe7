package wiki

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type TreeNode struct {
	Parent, FirstChild, LastChild, PrevSibling, NextSibling *Node
}

// InsertBefore inserts newChild as a child of n, immediately before oldChild
// in the sequence of n's children. oldChild may be nil, in which case newChild
// is appended to the end of n's children.
//
// It will panic if newChild already has a parent or siblings.
func (n *Node) InsertBefore(newChild, oldChild *Node) {
	if newChild.Parent != nil || newChild.PrevSibling != nil || newChild.NextSibling != nil {
		panic("InsertBefore called for an attached child Node")
	}
	var prev, next *Node
	if oldChild != nil {
		prev, next = oldChild.PrevSibling, oldChild
	} else {
		prev = n.LastChild
	}
	if prev != nil {
		prev.NextSibling = newChild
	} else {
		n.FirstChild = newChild
	}
	if next != nil {
		next.PrevSibling = newChild
	} else {
		n.LastChild = newChild
	}
	newChild.Parent = n
	newChild.PrevSibling = prev
	newChild.NextSibling = next
}

// AppendChild adds a node child as the last child of parent.
//
// It will panic if child already has a parent or siblings.
func (parent *Node) AppendChild(child *Node) {
	if child.Parent != nil || child.PrevSibling != nil || child.NextSibling != nil {
		panic("AppendChild called for an already attached child Node")
	}
	last := parent.LastChild
	if last != nil {
		last.NextSibling = child
	} else {
		parent.FirstChild = child
	}
	parent.LastChild = child

	child.Parent = parent
	child.PrevSibling = last
}

// PrependChild adds a node child as the first child of parent.
//
// It will panic if child already has a parent or siblings.
func (parent *Node) PrependChild(child *Node) {
	parent.InsertBefore(child, parent.FirstChild)
}

// RemoveChild removes a node child that is a child of n. Afterwards, child will have
// no parent and no siblings.
//
// It will panic if child's parent is not parent.
func (parent *Node) RemoveChild(child *Node) {
	if child.Parent != parent {
		panic("RemoveChild called for a non-child Node")
	}
	if parent.FirstChild == child {
		parent.FirstChild = child.NextSibling
	}
	if child.NextSibling != nil {
		child.NextSibling.PrevSibling = child.PrevSibling
	}
	if parent.LastChild == child {
		parent.LastChild = child.PrevSibling
	}
	if child.PrevSibling != nil {
		child.PrevSibling.NextSibling = child.NextSibling
	}

	child.Parent = nil
	child.PrevSibling = nil
	child.NextSibling = nil
}

// detachChildren removes all children of n and returns them in order
func (n *Node) detachChildren() []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		c.Parent, c.PrevSibling, c.NextSibling = nil, nil, nil
		out = append(out, c)
		c = next
	}
	n.FirstChild, n.LastChild = nil, nil
	return out
}

// A NodeType is the type of a Node.
type NodeType uint32

const (
	ErrorNode NodeType = iota
	TerminalNode
	NonTerminalNode
)

// String returns a string representation of the NodeType.
func (t NodeType) String() string {
	switch t {
	case ErrorNode:
		return "Error Node"
	case TerminalNode:
		return "Terminal Node"
	case NonTerminalNode:
		return "NonTerminal Node"
	}
	return "Invalid Node (" + strconv.Itoa(int(t)) + ")"
}

// Node is a node of the syntax tree. Pos and Length are counted in code points
// of the parsed text. A terminal node carries the Text it matched, a non-terminal
// one has children that cover its span without gaps or overlaps.
//
// Synthetic nodes created by the grammar (htmlEquivalent tags for lists, tables
// and preformatted blocks) are terminals of length zero.
type Node struct {
	TreeNode
	Type   NodeType
	Name   string
	Pos    int
	Length int
	Text   string

	// HelperNode asks generic consumers that do not know Name to descend into
	// the node anyway. With HelperRecursive they should do the same for all
	// descendants.
	HelperNode      bool
	HelperRecursive bool

	Attr Attr
}

func newTerminal(text string, pos int, name string) *Node {
	return &Node{Type: TerminalNode, Name: name, Pos: pos, Length: len(text), Text: text}
}

func newNonTerminal(pos int, name string) *Node {
	return &Node{Type: NonTerminalNode, Name: name, Pos: pos}
}

// End returns the position just after the node.
func (n *Node) End() int {
	return n.Pos + n.Length
}

// Children returns the children of n in order.
func (n *Node) Children() []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// ChildByName returns the first direct child of n with the given name, or nil.
func (n *Node) ChildByName(name string) *Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenByName returns the direct children of n with the given name.
func (n *Node) ChildrenByName(name string) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// FindAll returns all nodes below n (n excluded) with the given name, in
// document order.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	n.Walk(func(m *Node) bool {
		if m != n && m.Name == name {
			out = append(out, m)
		}
		return true
	})
	return out
}

// Walk visits n and its descendants depth-first in document order. Children
// of a node are skipped when visit returns false for it.
func (n *Node) Walk(visit func(*Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		c.Walk(visit)
	}
}

// PlainText returns the concatenated text of all terminals below n.
func (n *Node) PlainText() string {
	if n.Type == TerminalNode {
		return n.Text
	}
	var sb strings.Builder
	n.Walk(func(m *Node) bool {
		if m.Type == TerminalNode {
			sb.WriteString(m.Text)
		}
		return true
	})
	return sb.String()
}

// Clone returns a deep copy of n. The copy has no parent and no siblings.
// Attributes are shared with n.
func (n *Node) Clone() *Node {
	m := &Node{
		Type:            n.Type,
		Name:            n.Name,
		Pos:             n.Pos,
		Length:          n.Length,
		Text:            n.Text,
		HelperNode:      n.HelperNode,
		HelperRecursive: n.HelperRecursive,
		Attr:            n.Attr,
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		m.AppendChild(c.Clone())
	}
	return m
}

// String returns a one line representation of the Node.
func (n *Node) String() string {
	buf := bytes.NewBufferString(n.Name)
	if n.Name == "" {
		buf.WriteString("<unnamed>")
	}
	fmt.Fprintf(buf, " [%d:%d]", n.Pos, n.End())
	if n.Type == TerminalNode && n.Text != "" {
		buf.WriteByte(' ')
		buf.WriteString(strconv.Quote(n.Text))
	}
	if n.Attr != nil {
		buf.WriteByte(' ')
		buf.WriteString(n.Attr.String())
	}
	return buf.String()
}

// The indentation string
var aBigIndentationString = bytes.Repeat([]byte(" "), 200)

func indent(n int) []byte {
	if n > len(aBigIndentationString) {
		n = len(aBigIndentationString)
	}
	return aBigIndentationString[:n]
}

// Dump writes the tree below n to w, one node per line indented by depth.
func (n *Node) Dump(w io.Writer) error {
	return n.dump(w, 0)
}

func (n *Node) dump(w io.Writer, depth int) error {
	if _, err := w.Write(indent(depth * 2)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, n.String()+"\n"); err != nil {
		return err
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := c.dump(w, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// DumpString returns the output of Dump as a string.
func (n *Node) DumpString() string {
	var sb strings.Builder
	n.Dump(&sb)
	return sb.String()
}
