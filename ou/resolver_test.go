package ou_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/ou"
)

func TestIsInSubtree(t *testing.T) {
	assert.True(t, ou.IsInSubtree("/a/b", "/a/b"), "a node is in its own subtree")
	assert.True(t, ou.IsInSubtree("/a/b/c", "/a/b"))
	assert.True(t, ou.IsInSubtree("/a/b/c/d", "/a"))

	assert.False(t, ou.IsInSubtree("/a/x", "/a/b"))
	assert.False(t, ou.IsInSubtree("/a/bx", "/a/b"), "sibling with shared prefix must not match")
	assert.False(t, ou.IsInSubtree("/a", "/a/b"), "ancestor is not in descendant subtree")
	assert.False(t, ou.IsInSubtree("", "/a"))
	assert.False(t, ou.IsInSubtree("/a", ""))
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{"/a/b", "/a"}, ou.Ancestors("/a/b/c"), "nearest ancestor first")
	assert.Equal(t, []string{"/a"}, ou.Ancestors("/a/b"))
	assert.Nil(t, ou.Ancestors("/a"), "a root has no ancestors")
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ou.ValidatePath("/a", 1))
	assert.NoError(t, ou.ValidatePath("/a/b/c", 3))

	tests := []struct {
		name  string
		path  string
		depth int
	}{
		{"missing leading separator", "a/b", 2},
		{"trailing separator", "/a/b/", 2},
		{"empty path", "", 0},
		{"empty segment", "/a//b", 3},
		{"non-monotonic depth", "/a/b/c", 2},
		{"cycle", "/a/b/a", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ou.ValidatePath(tt.path, tt.depth)
			assert.ErrorIs(t, err, arbiter_errors.ErrMalformedOUPath)
		})
	}
}

func TestHierarchyAddAndReparent(t *testing.T) {
	h := ou.NewHierarchy()

	require.NoError(t, h.Add(&model.OUNode{ID: "acme", TenantID: "t1"}, ""))
	require.NoError(t, h.Add(&model.OUNode{ID: "emea", TenantID: "t1"}, "acme"))
	require.NoError(t, h.Add(&model.OUNode{ID: "sales", TenantID: "t1"}, "emea"))
	require.NoError(t, h.Add(&model.OUNode{ID: "apac", TenantID: "t1"}, "acme"))

	sales, err := h.Get("sales")
	require.NoError(t, err)
	assert.Equal(t, "/acme/emea/sales", sales.Path)
	assert.Equal(t, 3, sales.Depth)

	// Duplicate ids and unknown parents are rejected at creation.
	assert.ErrorIs(t, h.Add(&model.OUNode{ID: "sales"}, "acme"), arbiter_errors.ErrOUConflict)
	assert.ErrorIs(t, h.Add(&model.OUNode{ID: "x"}, "nope"), arbiter_errors.ErrOUNotFound)

	// Moving emea under apac rewrites the whole subtree atomically.
	require.NoError(t, h.Reparent("emea", "apac"))

	emea, err := h.Get("emea")
	require.NoError(t, err)
	assert.Equal(t, "/acme/apac/emea", emea.Path)
	assert.Equal(t, 3, emea.Depth)

	sales, err = h.Get("sales")
	require.NoError(t, err)
	assert.Equal(t, "/acme/apac/emea/sales", sales.Path)
	assert.Equal(t, 4, sales.Depth)

	// A node may never be moved under its own descendant.
	assert.ErrorIs(t, h.Reparent("apac", "sales"), arbiter_errors.ErrMalformedOUPath)
}

func TestHierarchySubtree(t *testing.T) {
	h := ou.NewHierarchy()
	require.NoError(t, h.Add(&model.OUNode{ID: "root"}, ""))
	require.NoError(t, h.Add(&model.OUNode{ID: "a"}, "root"))
	require.NoError(t, h.Add(&model.OUNode{ID: "b"}, "a"))
	require.NoError(t, h.Add(&model.OUNode{ID: "c"}, "root"))

	members, err := h.Subtree("a")
	require.NoError(t, err)
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
