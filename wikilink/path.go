// Package wikilink implements the path algebra of wiki-word links: relative
// links with upward hops ("../Sibling"), subpage links ("/Child"), and
// absolute links ("//Root/Page"), resolved against the page containing them.
package wikilink

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyResult is returned when a link resolves to no page at all, for
	// example ".." written in a top level page.
	ErrEmptyResult = errors.New("empty result")

	// ErrEscapesRoot is returned when a link goes up more levels than the
	// absolute page it is resolved against has.
	ErrEscapesRoot = errors.New("link escapes the root of the wiki")
)

// Path is a link target. UpwardCount == -1 means absolute, with Components
// counted from the root. Otherwise Components are appended after going up
// UpwardCount levels from the page containing the link, so 0 means a subpage
// of the current page and 1 a sibling.
type Path struct {
	UpwardCount int
	Components  []string
}

// Absolute returns an absolute path for a full page name like "A/B/C".
func Absolute(pageName string) Path {
	if pageName == "" {
		return Path{UpwardCount: -1}
	}
	return Path{UpwardCount: -1, Components: strings.Split(pageName, "/")}
}

// Parse parses the core of a link: the text between the brackets with any
// title, fragment or anchor already removed.
func Parse(link string) Path {

	if link == "." {
		return Path{UpwardCount: 0}
	}

	if strings.HasPrefix(link, "//") {
		return Absolute(link[2:])
	}

	if strings.HasPrefix(link, "/") {
		return Path{UpwardCount: 0, Components: split(link[1:])}
	}

	comps := split(link)
	for i, c := range comps {
		if c != ".." {
			return Path{UpwardCount: i + 1, Components: comps[i:]}
		}
	}

	// Only ".." components
	return Path{UpwardCount: len(comps)}
}

func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

// IsAbsolute reports whether the path starts at the root of the wiki.
func (p Path) IsAbsolute() bool {
	return p.UpwardCount == -1
}

// Clone returns a deep copy of p.
func (p Path) Clone() Path {
	c := Path{UpwardCount: p.UpwardCount}
	if p.Components != nil {
		c.Components = append([]string(nil), p.Components...)
	}
	return c
}

// JoinTo returns the path obtained by following other starting at p.
// Neither p nor other are modified.
func (p Path) JoinTo(other Path) (Path, error) {

	if other.IsAbsolute() {
		return other.Clone(), nil
	}

	result := p.Clone()

	if other.UpwardCount == 0 {
		result.Components = append(result.Components, other.Components...)
		return result, nil
	}

	if other.UpwardCount <= len(result.Components) {
		result.Components = result.Components[:len(result.Components)-other.UpwardCount]
		result.Components = append(result.Components, other.Components...)
		return result, nil
	}

	// Going further up than p has components
	if result.IsAbsolute() {
		return Path{}, ErrEscapesRoot
	}

	result.UpwardCount += other.UpwardCount - len(result.Components)
	result.Components = append([]string(nil), other.Components...)
	return result, nil
}

// Join modifies p so it is the result of following other starting at p.
func (p *Path) Join(other Path) error {
	r, err := p.JoinTo(other)
	if err != nil {
		return err
	}
	*p = r
	return nil
}

// LinkCore returns the textual link that Parse would read back as p.
func (p Path) LinkCore() string {
	comps := strings.Join(p.Components, "/")
	switch {
	case p.UpwardCount == -1:
		return "//" + comps
	case p.UpwardCount == 0:
		if len(p.Components) == 0 {
			return "."
		}
		return "/" + comps
	case len(p.Components) == 0:
		return strings.TrimSuffix(strings.Repeat("../", p.UpwardCount), "/")
	case p.UpwardCount == 1:
		return comps
	default:
		return strings.Repeat("../", p.UpwardCount-1) + comps
	}
}

// Name returns the components joined by slashes. For absolute paths it is
// the full page name.
func (p Path) Name() string {
	return strings.Join(p.Components, "/")
}

// IsAbsoluteLinkCore reports whether a link core denotes an absolute path.
func IsAbsoluteLinkCore(linkCore string) bool {
	return strings.HasPrefix(linkCore, "//")
}

// Resolve returns the absolute page name that link points to when it is
// written in page basePage. If basePage is empty, relative links are
// returned unchanged.
func Resolve(link, basePage string) (string, error) {

	target := Parse(link)

	if target.IsAbsolute() {
		if len(target.Components) == 0 {
			return "", ErrEmptyResult
		}
		return target.Name(), nil
	}

	if basePage == "" {
		return link, nil
	}

	resolved, err := Absolute(basePage).JoinTo(target)
	if err != nil {
		return "", err
	}
	if len(resolved.Components) == 0 {
		return "", ErrEmptyResult
	}
	return resolved.Name(), nil
}

// RelativePathByAbsPaths returns the relative path leading from the absolute
// path base to the absolute path target. If downwardOnly is true, a path
// is only returned when target is a strict descendant of base.
// The boolean result is false when no such path exists.
func RelativePathByAbsPaths(target, base Path, downwardOnly bool) (Path, bool) {

	if downwardOnly {
		if len(target.Components) <= len(base.Components) {
			return Path{}, false
		}
		for i, c := range base.Components {
			if target.Components[i] != c {
				return Path{}, false
			}
		}
		return Path{
			UpwardCount: 0,
			Components:  append([]string(nil), target.Components[len(base.Components):]...),
		}, true
	}

	// Strip the common prefix
	i := 0
	for i < len(target.Components) && i < len(base.Components) && target.Components[i] == base.Components[i] {
		i++
	}
	restTarget := target.Components[i:]
	restBase := base.Components[i:]

	if len(restBase) == 0 {
		if len(restTarget) == 0 {
			// Same page
			return Path{}, false
		}
		return Path{UpwardCount: 0, Components: append([]string(nil), restTarget...)}, true
	}

	return Path{UpwardCount: len(restBase), Components: append([]string(nil), restTarget...)}, true
}
