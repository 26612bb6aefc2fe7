package wikilink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		base    string
		want    string
		wantErr error
	}{
		{name: "self", link: ".", base: "A/B", want: "A/B"},
		{name: "parent", link: "..", base: "A/B", want: "A"},
		{name: "absolute", link: "//X/Y", base: "A/B", want: "X/Y"},
		{name: "sibling", link: "C", base: "A/B", want: "A/C"},
		{name: "subpage", link: "/C", base: "A/B", want: "A/B/C"},
		{name: "uncle", link: "../C", base: "A/B/D", want: "A/C"},
		{name: "top level sibling", link: "C", base: "A", want: "C"},
		{name: "nested sibling", link: "C/D", base: "A/B", want: "A/C/D"},
		{name: "no base page", link: "../C", base: "", want: "../C"},
		{name: "parent of top level", link: "..", base: "A", wantErr: ErrEmptyResult},
		{name: "escapes root", link: "../../C", base: "A", wantErr: ErrEscapesRoot},
		{name: "empty absolute", link: "//", base: "A", wantErr: ErrEmptyResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.link, tt.base)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		link string
		want Path
	}{
		{".", Path{UpwardCount: 0}},
		{"//A/B", Path{UpwardCount: -1, Components: []string{"A", "B"}}},
		{"/A", Path{UpwardCount: 0, Components: []string{"A"}}},
		{"A/B", Path{UpwardCount: 1, Components: []string{"A", "B"}}},
		{"../A", Path{UpwardCount: 2, Components: []string{"A"}}},
		{"../..", Path{UpwardCount: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			got := Parse(tt.link)
			assert.Equal(t, tt.want, got)
			// The link core reads back as the same path
			assert.Equal(t, tt.want, Parse(got.LinkCore()))
		})
	}
}

func TestJoinRelativeBase(t *testing.T) {
	// The deficit of components becomes extra upward hops
	base := Path{UpwardCount: 1, Components: []string{"B"}}
	got, err := base.JoinTo(Parse("../../C"))
	require.NoError(t, err)
	assert.Equal(t, Path{UpwardCount: 3, Components: []string{"C"}}, got)

	// The receiver is not modified by JoinTo, and is by Join
	assert.Equal(t, Path{UpwardCount: 1, Components: []string{"B"}}, base)
	require.NoError(t, base.Join(Parse("/D")))
	assert.Equal(t, Path{UpwardCount: 1, Components: []string{"B", "D"}}, base)
}

func TestJoinAbsoluteOther(t *testing.T) {
	base := Absolute("A/B")
	got, err := base.JoinTo(Parse("//Z"))
	require.NoError(t, err)
	assert.True(t, got.IsAbsolute())
	assert.Equal(t, "Z", got.Name())
}

func TestRelativePathByAbsPaths(t *testing.T) {
	tests := []struct {
		name         string
		target, base string
		downwardOnly bool
		want         string
		ok           bool
	}{
		{"child", "A/B/C", "A/B", true, "/C", true},
		{"not a descendant", "A/C", "A/B", true, "", false},
		{"same page downward", "A/B", "A/B", true, "", false},
		{"sibling", "A/C", "A/B", false, "C", true},
		{"parent", "A", "A/B", false, "..", true},
		{"cousin", "X/Y", "A/B", false, "../X/Y", true},
		{"same page", "A/B", "A/B", false, "", false},
		{"grandchild", "A/B/C/D", "A/B", false, "/C/D", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CreateRelativeLink(tt.target, tt.base, tt.downwardOnly)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)

			if ok {
				// Following the link from the base leads to the target
				resolved, err := Resolve(got, tt.base)
				require.NoError(t, err)
				assert.Equal(t, tt.target, resolved)
			}
		})
	}
}

func TestCreateLink(t *testing.T) {
	assert.Equal(t, "[[C]]", CreateLink("A/C", "A/B", false))
	assert.Equal(t, "[[//A/C]]", CreateLink("A/C", "A/B", true))
	assert.Equal(t, "[[.]]", CreateLink("A/B", "A/B", false))
	assert.Equal(t, "[[//A]]\n[[//B/C]]", CreateAbsoluteLinks([]string{"A", "B/C"}))
	assert.True(t, IsAbsoluteLinkCore("//A"))
	assert.False(t, IsAbsoluteLinkCore("/A"))
}

func TestCreateLinkFromText(t *testing.T) {
	assert.Equal(t, "[[Some page]]", CreateLinkFromText("++some page ", true))
	assert.Equal(t, "Émile", CreateLinkFromText("[[émile]]", false))
	assert.Equal(t, "", CreateLinkFromText(" [[]] ", true))
}
