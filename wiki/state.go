package wiki

import (
	"context"

	"github.com/emirpasic/gods/stacks/arraystack"
)

// How many scanning steps happen between two checks of the context
const pollInterval = 1024

// A frame is a scope opened by a rule while it is being matched. Named frames
// form the name stack used for nesting checks and end token resolution.
type frame struct {
	name string
	dict map[string]any
}

func (f *frame) values() map[string]any {
	if f.dict == nil {
		f.dict = make(map[string]any)
	}
	return f.dict
}

// State is the mutable context of one parse call.
type State struct {
	ctx  context.Context
	text string
	opts *FormatOptions
	g    *grammar

	frames *arraystack.Stack
	free   []*frame

	// Actions are disabled while checking lookaheads and terminators
	noActions int

	polls int

	// Farthest failure, for diagnostics
	failPos  int
	failRule string
}

// cancelled carries the context error out of the recursive descent
type cancelled struct {
	err error
}

func newState(ctx context.Context, text string, opts *FormatOptions, g *grammar) *State {
	st := &State{
		ctx:     ctx,
		text:    text,
		opts:    opts,
		g:       g,
		frames:  arraystack.New(),
		failPos: -1,
	}
	st.push("")
	return st
}

func (st *State) push(name string) *frame {
	var f *frame
	if n := len(st.free); n > 0 {
		f = st.free[n-1]
		st.free = st.free[:n-1]
		f.name = name
	} else {
		f = &frame{name: name}
	}
	st.frames.Push(f)
	return f
}

func (st *State) pop() {
	v, ok := st.frames.Pop()
	if !ok {
		panic("wiki: frame stack underflow")
	}
	f := v.(*frame)
	for k := range f.dict {
		delete(f.dict, k)
	}
	st.free = append(st.free, f)
}

func (st *State) top() *frame {
	v, _ := st.frames.Peek()
	return v.(*frame)
}

// eachFrame calls fn for the frames from the innermost to the outermost
// until fn returns false
func (st *State) eachFrame(fn func(f *frame) bool) {
	it := st.frames.Iterator()
	for it.Next() {
		if !fn(it.Value().(*frame)) {
			return
		}
	}
}

// inNamed reports whether a named frame with one of names is open, ignoring
// the innermost named frame
func (st *State) inNamed(names ...string) bool {
	skipped := false
	found := false
	st.eachFrame(func(f *frame) bool {
		if f.name == "" {
			return true
		}
		if !skipped {
			skipped = true
			return true
		}
		for _, n := range names {
			if f.name == n {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// innermost returns the name of the innermost named frame for which accept is true
func (st *State) innermost(accept func(name string) bool) string {
	name := ""
	st.eachFrame(func(f *frame) bool {
		if f.name != "" && accept(f.name) {
			name = f.name
			return false
		}
		return true
	})
	return name
}

// lookup searches key in the frames from the innermost one outwards
func (st *State) lookup(key string) (any, bool) {
	var v any
	found := false
	st.eachFrame(func(f *frame) bool {
		if f.dict == nil {
			return true
		}
		v, found = f.dict[key]
		return !found
	})
	return v, found
}

func (st *State) lookupBool(key string) bool {
	v, _ := st.lookup(key)
	b, _ := v.(bool)
	return b
}

// subTopDict returns the values of the frame just below the innermost one,
// that is, the scope of the rule that contains the running rule.
func (st *State) subTopDict() map[string]any {
	if st.frames.Size() < 2 {
		return st.top().values()
	}
	it := st.frames.Iterator()
	it.Next()
	it.Next()
	return it.Value().(*frame).values()
}

// namedDict returns the values of the innermost frame called name, or of the
// root frame if there is none
func (st *State) namedDict(name string) map[string]any {
	var found *frame
	st.eachFrame(func(f *frame) bool {
		found = f
		return f.name != name
	})
	return found.values()
}

// lookahead tries r at pos without consuming and without running actions
func (st *State) lookahead(r *rule, pos int) bool {
	st.noActions++
	_, _, ok := r.parse(st, pos)
	st.noActions--
	return ok
}

func (st *State) failed(r *rule, pos int) {
	if st.noActions > 0 || pos <= st.failPos {
		return
	}
	st.failPos = pos
	st.failRule = r.label
}

// poll aborts the parse when the context is done
func (st *State) poll() {
	st.polls++
	if st.polls%pollInterval != 0 {
		return
	}
	if err := st.ctx.Err(); err != nil {
		panic(cancelled{err})
	}
}
