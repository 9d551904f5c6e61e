package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/structable/pkg/model"
)

func leafValue(value, hash string) *model.FacetTreeLevelValue {
	return &model.FacetTreeLevelValue{Value: value, Hash: hash}
}

// Builds the canonical five-level path used across the engine:
// species -> chain -> mhc.class -> gene -> epitope.
func testTree() *Tree {
	gil := leafValue("GILGFVFTL", "hash-gil")
	nlv := leafValue("NLVPMVATV", "hash-nlv")
	klg := leafValue("KLGGALQAK", "hash-klg")

	a02 := &model.FacetTreeLevelValue{Value: "A*02", Next: &model.FacetTreeLevel{
		Name:   "epitope",
		Values: []*model.FacetTreeLevelValue{gil, nlv},
	}}
	a03 := &model.FacetTreeLevelValue{Value: "A*03", Next: &model.FacetTreeLevel{
		Name:   "epitope",
		Values: []*model.FacetTreeLevelValue{klg},
	}}
	mhci := &model.FacetTreeLevelValue{Value: "MHCI", Next: &model.FacetTreeLevel{
		Name:   "gene",
		Values: []*model.FacetTreeLevelValue{a02, a03},
	}}
	tra := &model.FacetTreeLevelValue{Value: "TRA", Next: &model.FacetTreeLevel{
		Name:   "mhc.class",
		Values: []*model.FacetTreeLevelValue{mhci},
	}}
	human := &model.FacetTreeLevelValue{Value: "HomoSapiens", Next: &model.FacetTreeLevel{
		Name:   "chain",
		Values: []*model.FacetTreeLevelValue{tra},
	}}
	root := &model.FacetTreeLevel{Name: "species", Values: []*model.FacetTreeLevelValue{human}}
	return NewTree(root)
}

func TestNewTree_OpensTopLevel(t *testing.T) {
	tree := testTree()
	for _, v := range tree.Root.Values {
		assert.True(t, v.IsOpened)
		// Only the top level starts expanded.
		for _, child := range v.Next.Values {
			assert.False(t, child.IsOpened)
		}
	}
}

func TestIsSelected_DerivedFromLeaves(t *testing.T) {
	tree := testTree()
	human := tree.Root.Values[0]

	assert.False(t, IsSelected(human))

	for _, leaf := range tree.Leaves() {
		leaf.Value.IsSelected = true
	}
	assert.True(t, IsSelected(human))

	// One unselected leaf anywhere in the subtree flips every ancestor.
	tree.FindLeaf("hash-klg").Value.IsSelected = false
	assert.False(t, IsSelected(human))

	mhci := tree.ResolvePath("HomoSapiens", "TRA", "MHCI")
	require.NotNil(t, mhci)
	assert.False(t, IsSelected(mhci))

	a02 := tree.ResolvePath("HomoSapiens", "TRA", "MHCI", "A*02")
	require.NotNil(t, a02)
	assert.True(t, IsSelected(a02))
}

func TestSelectDiscard_FanOut(t *testing.T) {
	tree := testTree()
	a02 := tree.ResolvePath("HomoSapiens", "TRA", "MHCI", "A*02")
	require.NotNil(t, a02)

	Select(a02)
	selected := tree.SelectedLeaves()
	require.Len(t, selected, 2)
	assert.Equal(t, "hash-gil", selected[0].Hash)
	assert.Equal(t, "hash-nlv", selected[1].Hash)

	Discard(a02)
	assert.Empty(t, tree.SelectedLeaves())
}

func TestLeaves_DepthFirstOrder(t *testing.T) {
	tree := testTree()
	leaves := tree.Leaves()
	require.Len(t, leaves, 3)
	assert.Equal(t, "hash-gil", leaves[0].Hash)
	assert.Equal(t, "hash-nlv", leaves[1].Hash)
	assert.Equal(t, "hash-klg", leaves[2].Hash)
}

func TestFindLeaf(t *testing.T) {
	tree := testTree()
	leaf := tree.FindLeaf("hash-nlv")
	require.NotNil(t, leaf)
	assert.Equal(t, "NLVPMVATV", leaf.Value.Value)

	assert.Nil(t, tree.FindLeaf("missing"))
}

func TestResolvePath(t *testing.T) {
	tree := testTree()

	leaf := tree.ResolvePath("HomoSapiens", "TRA", "MHCI", "A*02", "GILGFVFTL")
	require.NotNil(t, leaf)
	assert.Equal(t, "hash-gil", leaf.Hash)
	assert.True(t, leaf.IsLeaf())

	// An absent intermediate level aborts the walk silently.
	assert.Nil(t, tree.ResolvePath("HomoSapiens", "TRB", "MHCI", "A*02", "GILGFVFTL"))
	assert.Nil(t, tree.ResolvePath("MusMusculus"))
}
