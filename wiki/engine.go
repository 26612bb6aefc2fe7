package wiki

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// errReject is returned by actions to make the rule fail
var errReject = errors.New("rule rejected")

type (
	// scanFunc matches a terminal at pos and returns its end
	scanFunc func(st *State, pos int) (int, bool)
	// matchFunc matches at pos and returns the nodes produced and the end
	matchFunc func(st *State, pos int) ([]*Node, int, bool)

	startAction func(st *State, pos int) error
	action      func(st *State, pos int, t *Node) error
)

// A rule is one element of the grammar. Terminal rules scan text and produce a
// single terminal node named after the rule. Non-terminal rules combine other
// rules.
//
// Named non-terminal rules and rules carrying actions open a frame while
// matching. Their result is a non-terminal node with the matched nodes as
// children. Actions run on that node and may change it. If it has no name
// after the actions, its children replace it in the result.
type rule struct {
	name  string
	label string

	scan  scanFunc
	match matchFunc

	// drop zero length terminals
	hideOnEmpty bool

	// Cheap preconditions checked before anything else
	lineStart bool
	wordStart bool
	first     string
	guard     func(st *State, pos int) bool

	startActions []startAction
	validations  []action
	actions      []action
}

func (r *rule) framed() bool {
	return (r.scan == nil && r.name != "") || len(r.startActions) > 0 || len(r.validations) > 0 || len(r.actions) > 0
}

func (r *rule) parse(st *State, pos int) ([]*Node, int, bool) {
	text := st.text
	if r.lineStart && !atLineStart(text, pos) {
		return nil, pos, false
	}
	if r.wordStart && !wordBoundaryBefore(text, pos) {
		return nil, pos, false
	}
	if r.first != "" && (pos >= len(text) || strings.IndexByte(r.first, text[pos]) < 0) {
		return nil, pos, false
	}
	if r.guard != nil && !r.guard(st, pos) {
		return nil, pos, false
	}

	if !r.framed() {
		nodes, end, ok := r.run(st, pos)
		if !ok {
			st.failed(r, pos)
		}
		return nodes, end, ok
	}

	st.push(r.name)
	defer st.pop()

	for _, a := range r.startActions {
		if a(st, pos) != nil {
			st.failed(r, pos)
			return nil, pos, false
		}
	}

	nodes, end, ok := r.run(st, pos)
	if !ok {
		st.failed(r, pos)
		return nil, pos, false
	}

	t := newNonTerminal(pos, "")
	if r.scan == nil {
		t.Name = r.name
	}
	t.Length = end - pos
	for _, n := range nodes {
		t.AppendChild(n)
	}

	for _, v := range r.validations {
		if v(st, pos, t) != nil {
			st.failed(r, pos)
			return nil, pos, false
		}
	}
	if st.noActions == 0 {
		for _, a := range r.actions {
			if a(st, pos, t) != nil {
				st.failed(r, pos)
				return nil, pos, false
			}
		}
	}

	if t.Name != "" {
		return []*Node{t}, end, true
	}
	return t.detachChildren(), end, true
}

func (r *rule) run(st *State, pos int) ([]*Node, int, bool) {
	if r.scan == nil {
		return r.match(st, pos)
	}
	end, ok := r.scan(st, pos)
	if !ok {
		return nil, pos, false
	}
	if end == pos && r.hideOnEmpty {
		return nil, pos, true
	}
	return []*Node{newTerminal(st.text[pos:end], pos, r.name)}, end, true
}

// Builder methods. They modify the rule in place and return it.

func (r *rule) named(name string) *rule {
	r.name = name
	if r.label == "" || r.label == "regex" {
		r.label = name
	}
	return r
}

func (r *rule) onStart(a ...startAction) *rule {
	r.startActions = append(r.startActions, a...)
	return r
}

func (r *rule) onMatch(a ...action) *rule {
	r.actions = append(r.actions, a...)
	return r
}

func (r *rule) validate(a ...action) *rule {
	r.validations = append(r.validations, a...)
	return r
}

func (r *rule) when(guard func(st *State, pos int) bool) *rule {
	r.guard = guard
	return r
}

func (r *rule) hint(first string) *rule {
	r.first = first
	return r
}

func (r *rule) hideEmpty() *rule {
	r.hideOnEmpty = true
	return r
}

// copy returns a shallow copy of r, so the copy can get its own name and actions
func (r *rule) copy() *rule {
	c := *r
	c.startActions = append([]startAction(nil), r.startActions...)
	c.validations = append([]action(nil), r.validations...)
	c.actions = append([]action(nil), r.actions...)
	return &c
}

// Terminal builders

// re returns a terminal rule matching the regular expression at the current
// position. A leading ^ means the match must start a line, and a leading \b
// that it must start a word.
func re(pattern string) *rule {
	return reNamed(pattern, "")
}

func reNamed(pattern, name string) *rule {
	r := &rule{name: name, label: name}
	if r.label == "" {
		r.label = "regex"
	}
	if strings.HasPrefix(pattern, "^") {
		r.lineStart = true
		pattern = pattern[1:]
	}
	if strings.HasPrefix(pattern, `\b`) {
		r.wordStart = true
		pattern = pattern[2:]
	}
	rx := regexp.MustCompile(`\A(?sm:` + pattern + `)`)
	r.first = literalFirst(pattern)
	r.scan = func(st *State, pos int) (int, bool) {
		loc := rx.FindStringIndex(st.text[pos:])
		if loc == nil {
			return pos, false
		}
		return pos + loc[1], true
	}
	return r
}

// lit matches s exactly
func lit(s string) *rule {
	return &rule{
		label: s,
		first: s[:1],
		scan: func(st *State, pos int) (int, bool) {
			if hasPrefixAt(st.text, pos, s) {
				return pos + len(s), true
			}
			return pos, false
		},
	}
}

func fn(label string, scan scanFunc) *rule {
	return &rule{label: label, scan: scan}
}

func fnNamed(name string, scan scanFunc) *rule {
	return &rule{name: name, label: name, scan: scan}
}

// literalFirst returns the byte every match of pattern starts with, or "" when
// it can not be told easily
func literalFirst(p string) string {
	if p == "" || topLevelAlternation(p) {
		return ""
	}
	var c byte
	rest := ""
	switch {
	case p[0] == '\\' && len(p) > 1 && strings.IndexByte(`\[](){}|.*+?^$-/!#%&'"<>=:;,`, p[1]) >= 0:
		c, rest = p[1], p[2:]
	case strings.IndexByte(`\[](){}|.*+?^$`, p[0]) >= 0:
		return ""
	case p[0] >= utf8.RuneSelf:
		return ""
	default:
		c, rest = p[0], p[1:]
	}
	if rest != "" && (rest[0] == '?' || rest[0] == '*' || strings.HasPrefix(rest, "{0")) {
		return ""
	}
	return string(c)
}

// topLevelAlternation reports whether p has a | outside of groups and classes
func topLevelAlternation(p string) bool {
	depth := 0
	inClass := false
	for i := 0; i < len(p); i++ {
		switch c := p[i]; {
		case c == '\\':
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == '|' && depth == 0:
			return true
		}
	}
	return false
}

// Combinators

func seq(rules ...*rule) *rule {
	r := &rule{label: "sequence"}
	if len(rules) > 0 {
		r.first = rules[0].first
		r.lineStart = rules[0].lineStart
	}
	r.match = func(st *State, pos int) ([]*Node, int, bool) {
		var out []*Node
		for _, sub := range rules {
			nodes, end, ok := sub.parse(st, pos)
			if !ok {
				return nil, pos, false
			}
			out = append(out, nodes...)
			pos = end
		}
		return out, pos, true
	}
	return r
}

func choice(rules ...*rule) *rule {
	r := &rule{label: "choice"}
	var first []string
	for _, sub := range rules {
		if sub.first == "" {
			first = nil
			break
		}
		first = append(first, sub.first)
	}
	r.first = strings.Join(first, "")
	r.match = func(st *State, pos int) ([]*Node, int, bool) {
		for _, sub := range rules {
			if nodes, end, ok := sub.parse(st, pos); ok {
				return nodes, end, true
			}
		}
		return nil, pos, false
	}
	return r
}

func repeat(sub *rule, least int) *rule {
	r := &rule{label: "repetition"}
	if least > 0 {
		r.first = sub.first
		r.lineStart = sub.lineStart
	}
	r.match = func(st *State, pos int) ([]*Node, int, bool) {
		var out []*Node
		count := 0
		for {
			nodes, end, ok := sub.parse(st, pos)
			if !ok || end == pos {
				break
			}
			out = append(out, nodes...)
			pos = end
			count++
		}
		if count < least {
			return nil, pos, false
		}
		return out, pos, true
	}
	return r
}

func zeroOrMore(sub *rule) *rule { return repeat(sub, 0) }

func oneOrMore(sub *rule) *rule { return repeat(sub, 1) }

func optional(sub *rule) *rule {
	return &rule{
		label: "optional",
		match: func(st *State, pos int) ([]*Node, int, bool) {
			if nodes, end, ok := sub.parse(st, pos); ok {
				return nodes, end, true
			}
			return nil, pos, true
		},
	}
}

func notAny(sub *rule) *rule {
	return &rule{
		label: "notAny",
		match: func(st *State, pos int) ([]*Node, int, bool) {
			return nil, pos, !st.lookahead(sub, pos)
		},
	}
}

func followedBy(sub *rule) *rule {
	return &rule{
		label: "followedBy",
		match: func(st *State, pos int) ([]*Node, int, bool) {
			return nil, pos, st.lookahead(sub, pos)
		},
	}
}

// forward returns a placeholder for a rule defined later with set
func forward(name string) *rule {
	r := &rule{name: name, label: name}
	r.match = func(st *State, pos int) ([]*Node, int, bool) {
		return nil, pos, false
	}
	return r
}

func (r *rule) set(inner *rule) *rule {
	r.match = func(st *State, pos int) ([]*Node, int, bool) {
		return inner.parse(st, pos)
	}
	return r
}

// dynamic resolves the rule to use at match time
func dynamic(label string, resolve func(st *State) *rule) *rule {
	return &rule{
		label: label,
		match: func(st *State, pos int) ([]*Node, int, bool) {
			return resolve(st).parse(st, pos)
		},
	}
}

// findFirst scans forward from the current position until term matches,
// trying the candidates at each position in order. The text skipped before
// a candidate matched or term was found becomes a terminal named textName.
//
// It fails only when it would match nothing without reaching term.
func findFirst(textName string, term *rule, candidates ...*rule) *rule {
	r := &rule{label: "findFirst"}
	r.match = func(st *State, pos int) ([]*Node, int, bool) {
		text := st.text
		start := pos
		plain := func() []*Node {
			if pos == start {
				return nil
			}
			return []*Node{newTerminal(text[start:pos], start, textName)}
		}
		for {
			st.poll()
			if term != nil && st.lookahead(term, pos) {
				return plain(), pos, true
			}
			if pos >= len(text) {
				return plain(), pos, pos > start
			}
			for _, c := range candidates {
				nodes, end, ok := c.parse(st, pos)
				if ok && end > pos {
					return append(plain(), nodes...), end, true
				}
			}
			pos += runeLen(text, pos)
		}
	}
	return r
}

// Common actions

// checkNotIn rejects the rule when it is nested in one of names
func checkNotIn(names ...string) startAction {
	return func(st *State, pos int) error {
		if st.inNamed(names...) {
			return errReject
		}
		return nil
	}
}

func validateNonEmpty(st *State, pos int, t *Node) error {
	if t.Length == 0 {
		return errReject
	}
	return nil
}

// helper marks the node, or its first child when it is not named
func helper(recursive bool) action {
	return func(st *State, pos int, t *Node) error {
		n := t
		if n.Name == "" && n.FirstChild != nil {
			n = n.FirstChild
		}
		n.HelperNode = true
		n.HelperRecursive = recursive
		return nil
	}
}

func renameTo(name string) action {
	return func(st *State, pos int, t *Node) error {
		t.Name = name
		return nil
	}
}
