package wiki

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// AutoLinkMode selects how plain text is linked to existing pages.
type AutoLinkMode string

const (
	AutoLinkOff   AutoLinkMode = "off"
	AutoLinkRelax AutoLinkMode = "relax"
)

// FormatOptions controls what the parser recognises.
type FormatOptions struct {
	// Link CamelCase words
	WithCamelCase bool
	// [[123]] is a link to page 123 instead of a footnote
	FootnotesAsWikiWords bool

	AutoLinkMode AutoLinkMode
	// Built with BuildAutoLinkRelaxInfo
	AutoLinkRelaxInfo []AutoLinkEntry

	// The page being parsed, relative links are resolved against it
	BasePage string

	// Pages that must not be linked, by absolute name
	CcWordBlacklisted  func(word string) bool
	NccWordBlacklisted func(word string) bool

	// Return the text as a single plain text node
	NoFormat bool
}

// ErrCancelled is returned when the context of a parse is done before the
// parse finishes. The context error is wrapped too.
var ErrCancelled = errors.New("parse cancelled")

// errNoMatch is returned by the helpers parsing with a single rule
var errNoMatch = errors.New("no match")

// ParseError is returned when the text can not be parsed. Offset is the
// position in code points of the farthest point the parser reached.
type ParseError struct {
	Filename string
	Offset   int
	Line     int
	Column   int
	Rule     string
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s (rule %s)", e.Filename, e.Line, e.Column, e.Msg, e.Rule)
}

var logger = zap.NewNop().Sugar()

// SetLogger sets the logger used by the parser. A nil logger disables logging.
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	logger = l
}

// Parse parses text and returns the syntax tree, with root named "text".
// Positions and lengths of the nodes are in code points.
func Parse(ctx context.Context, text string, opts *FormatOptions) (*Node, error) {
	if opts == nil {
		opts = &FormatOptions{}
	}
	start := time.Now()

	root := newNonTerminal(0, "text")
	if text == "" {
		return root, nil
	}
	if opts.NoFormat {
		root.AppendChild(newTerminal(text, 0, "plainText"))
		convertPositions(root, text)
		return root, nil
	}

	st := newState(ctx, text, opts, getGrammar())
	nodes, err := st.runRule(st.g.text)
	if err != nil {
		if errors.Is(err, errNoMatch) {
			perr := st.parseError()
			logger.Debugw("parse failed", "offset", perr.Offset, "rule", perr.Rule)
			return nil, perr
		}
		return nil, err
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	if opts.AutoLinkMode == AutoLinkRelax && len(opts.AutoLinkRelaxInfo) > 0 {
		var links int
		err := st.guard(func() {
			links = st.autoLink(root, opts.AutoLinkRelaxInfo)
		})
		if err != nil {
			return nil, err
		}
		logger.Debugw("auto links added", "count", links)
	}

	convertPositions(root, text)
	logger.Debugw("page parsed", "page", opts.BasePage, "bytes", len(text), "elapsed", time.Since(start))
	return root, nil
}

// ParseOrLiteral is like Parse, but when the text can not be parsed it
// returns a tree with the text as a single plain text node.
// Cancellation is still reported as an error.
func ParseOrLiteral(ctx context.Context, text string, opts *FormatOptions) (*Node, error) {
	root, err := Parse(ctx, text, opts)
	var perr *ParseError
	if errors.As(err, &perr) {
		logger.Infow("page shown as literal text", "error", perr)
		lit := &FormatOptions{NoFormat: true}
		return Parse(ctx, text, lit)
	}
	return root, err
}

// ParseFile parses the contents of a file
func ParseFile(ctx context.Context, fileName string, opts *FormatOptions) (*Node, error) {
	src, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	root, err := Parse(ctx, string(src), opts)
	var perr *ParseError
	if errors.As(err, &perr) {
		perr.Filename = fileName
	}
	return root, err
}

// ParseTodoEntry parses text holding only a todo entry like "todo: call Bob"
// and returns the todoEntry node.
func ParseTodoEntry(ctx context.Context, text string, opts *FormatOptions) (*Node, error) {
	if opts == nil {
		opts = &FormatOptions{}
	}
	st := newState(ctx, text, opts, getGrammar())
	nodes, err := st.runRule(st.g.todoAsWhole)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Name == "todoEntry" {
			convertPositions(n, text)
			return n, nil
		}
	}
	return nil, errNoMatch
}

// ExtractWikiWordFromLink returns the absolute name of the page a link points
// to. The link can be a bare page name like "Sub/Page" or a bracketed wiki word.
func ExtractWikiWordFromLink(link string, opts *FormatOptions) (string, bool) {
	if opts == nil {
		opts = &FormatOptions{}
	}
	st := newState(context.Background(), link, opts, getGrammar())
	nodes, err := st.runRule(st.g.extractableWikiWord)
	if err != nil || len(nodes) == 0 {
		return "", false
	}
	switch n := nodes[0]; n.Name {
	case "word":
		return resolveWord(st, n.Text)
	case "wikiWord":
		if a, ok := n.Attr.(*WikiWordAttr); ok {
			return a.WikiWord, true
		}
	}
	return "", false
}

// CheckForInvalidWikiWord returns a message telling why word is not a valid
// page name, or "" when it is valid.
func CheckForInvalidWikiWord(word string) string {
	if word == "" {
		return "empty page name"
	}
	end, ok := scanWikiWordCore(word, 0)
	if !ok {
		return "not a page name"
	}
	if end < len(word) {
		r, _ := utf8.DecodeRuneInString(word[end:])
		return fmt.Sprintf("invalid character %q at position %d", r, utf8.RuneCountInString(word[:end]))
	}
	if strings.TrimSpace(word) != word {
		return "leading or trailing whitespace"
	}
	return ""
}

// CheckForInvalidWikiLink returns a message telling why link does not point to
// a page, or "" when it does.
func CheckForInvalidWikiLink(link string, opts *FormatOptions) string {
	if _, ok := ExtractWikiWordFromLink(link, opts); !ok {
		return "not a link to a page"
	}
	return ""
}

// guard runs f turning a cancellation of the parse into an error
func (st *State) guard(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(cancelled)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("%w: %w", ErrCancelled, c.err)
		}
	}()
	f()
	return nil
}

// runRule matches r at the start of the text
func (st *State) runRule(r *rule) ([]*Node, error) {
	if err := st.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	var (
		nodes []*Node
		ok    bool
	)
	err := st.guard(func() {
		nodes, _, ok = r.parse(st, 0)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoMatch
	}
	return nodes, nil
}

func (st *State) parseError() *ParseError {
	off := st.failPos
	if off < 0 {
		off = 0
	}
	before := st.text[:off]
	lineStart := strings.LastIndexByte(before, '\n') + 1
	return &ParseError{
		Offset: utf8.RuneCountInString(before),
		Line:   strings.Count(before, "\n") + 1,
		Column: utf8.RuneCountInString(before[lineStart:]) + 1,
		Rule:   st.failRule,
		Msg:    "unexpected text",
	}
}

// convertPositions turns the byte positions of the tree below root, and of the
// nodes its attributes refer to, into code point positions.
func convertPositions(root *Node, text string) {
	runeAt := make([]int, len(text)+1)
	n := 0
	for i, r := range text {
		size := utf8.RuneLen(r)
		if r == utf8.RuneError {
			size = 1
		}
		// Continuation bytes of a rune map to the rune
		for j := i; j < i+size && j < len(text); j++ {
			runeAt[j] = n
		}
		n++
	}
	runeAt[len(text)] = n

	visited := make(map[*Node]bool)
	var convert func(m *Node) int
	convert = func(m *Node) int {
		if visited[m] {
			return m.Length
		}
		visited[m] = true
		if m.Pos >= 0 && m.Pos < len(runeAt) {
			m.Pos = runeAt[m.Pos]
		}
		if m.Attr != nil {
			for _, a := range m.Attr.nodes() {
				if a != nil {
					convert(a)
				}
			}
		}
		if m.Type == TerminalNode {
			m.Length = utf8.RuneCountInString(m.Text)
			return m.Length
		}
		sum := 0
		for c := m.FirstChild; c != nil; c = c.NextSibling {
			sum += convert(c)
		}
		m.Length = sum
		return sum
	}
	convert(root)
}
