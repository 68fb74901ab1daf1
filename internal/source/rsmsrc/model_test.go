package rsmsrc

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/prcexport/pkg/formats"
	"github.com/Faultbox/prcexport/pkg/math"
	"github.com/Faultbox/prcexport/pkg/scene"
)

var identity3 = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}

// node returns a static node with an identity pose and no mesh.
func node(name, parent string) formats.RSMNode {
	return formats.RSMNode{
		Name:   name,
		Parent: parent,
		Matrix: identity3,
		Scale:  [3]float32{1, 1, 1},
	}
}

// withTriangle gives n a single triangle using its first texture slot.
func withTriangle(n formats.RSMNode, textures ...int32) formats.RSMNode {
	n.TextureIDs = textures
	n.Vertices = [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}}
	return n
}

func assertPoint(t *testing.T, want [3]float32, m math.Mat4, p [3]float32) {
	t.Helper()
	got := m.TransformPoint(math.V3(p))
	assert.InDelta(t, want[0], got.X, 1e-4, "x")
	assert.InDelta(t, want[1], got.Y, 1e-4, "y")
	assert.InDelta(t, want[2], got.Z, 1e-4, "z")
}

func childNamed(t *testing.T, n *scene.Node, name string) *scene.Node {
	t.Helper()
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "child not found", "%q has no child %q", n.Name, name)
	return nil
}

func TestFromRSMHierarchy(t *testing.T) {
	rsm := &formats.RSM{
		Alpha:    1,
		Textures: []string{"wall.bmp"},
		RootNode: "base",
		Nodes: []formats.RSMNode{
			withTriangle(node("base", ""), 0),
			withTriangle(node("door", "base"), 0),
			node("hinge", "door"),
			node("ghost", "nowhere"),
		},
	}

	root, err := FromRSM(rsm, "house.rsm", Options{})
	require.NoError(t, err)

	assert.Equal(t, scene.KindTransform, root.Kind)
	assert.Equal(t, "house.rsm", root.Name)
	assertPoint(t, [3]float32{1, -2, 3}, root.Matrix, [3]float32{1, 2, 3})

	require.Len(t, root.Children, 1)
	base := root.Children[0]
	assert.Equal(t, "base", base.Name)
	require.Len(t, base.Children, 2)

	mesh := childNamed(t, base, "base/mesh")
	require.Len(t, mesh.Children, 1)
	assert.Equal(t, scene.KindGeode, mesh.Children[0].Kind)

	door := childNamed(t, base, "door")
	hinge := childNamed(t, door, "hinge")
	assert.Empty(t, hinge.Children, "faceless nodes get no mesh transform")

	stats := scene.Collect(root)
	assert.Equal(t, 2, stats.Geometries)
}

func TestFromRSMNoRoot(t *testing.T) {
	rsm := &formats.RSM{Nodes: []formats.RSMNode{node("a", "b"), node("b", "a")}}
	_, err := FromRSM(rsm, "loop.rsm", Options{})
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestMeshMatrixAppliesToOwnMeshOnly(t *testing.T) {
	base := withTriangle(node("base", ""), 0)
	base.Offset = [3]float32{10, 0, 0}
	base.Matrix = [9]float32{2, 0, 0, 0, 2, 0, 0, 0, 2}
	base.Position = [3]float32{0, 5, 0}

	rsm := &formats.RSM{Alpha: 1, Textures: []string{"a.bmp"}, Nodes: []formats.RSMNode{base, node("child", "base")}}
	root, err := FromRSM(rsm, "m", Options{})
	require.NoError(t, err)

	b := root.Children[0]
	assertPoint(t, [3]float32{1, 6, 0}, b.Matrix, [3]float32{1, 1, 0})

	mesh := childNamed(t, b, "base/mesh")
	assertPoint(t, [3]float32{12, 2, 0}, mesh.Matrix, [3]float32{1, 1, 0})

	child := childNamed(t, b, "child")
	assert.True(t, child.Matrix.IsIdentity(1e-6))
}

func TestHierarchyMatrix(t *testing.T) {
	n := node("n", "")
	n.Position = [3]float32{1, 2, 3}
	n.RotAngle = math32.Pi / 2
	n.RotAxis = [3]float32{0, 3, 0}
	n.Scale = [3]float32{2, 2, 2}

	m := newConverter(Options{}).hierarchyMatrix(&n)
	assertPoint(t, [3]float32{1, 2, 1}, m, [3]float32{1, 0, 0})

	t.Run("degenerate axis ignored", func(t *testing.T) {
		n := node("n", "")
		n.RotAngle = 1
		m := newConverter(Options{}).hierarchyMatrix(&n)
		assert.True(t, m.IsIdentity(1e-6))
	})

	t.Run("rotation keys replace axis angle", func(t *testing.T) {
		n := node("n", "")
		n.RotAngle = math32.Pi
		n.RotAxis = [3]float32{1, 0, 0}
		n.RotKeys = []formats.RSMRotKeyframe{{Frame: 0, Quaternion: [4]float32{0, 0, 0, 1}}}
		m := newConverter(Options{}).hierarchyMatrix(&n)
		assert.True(t, m.IsIdentity(1e-6))
	})

	t.Run("keys sampled at anim time", func(t *testing.T) {
		n := node("n", "")
		n.PosKeys = []formats.RSMPosKeyframe{
			{Frame: 0, Position: [3]float32{0, 0, 0}},
			{Frame: 100, Position: [3]float32{10, 0, 0}},
		}
		n.ScaleKeys = []formats.RSMScaleKeyframe{
			{Frame: 0, Scale: [3]float32{1, 1, 1}},
			{Frame: 100, Scale: [3]float32{3, 3, 3}},
		}
		m := newConverter(Options{AnimTime: 50}).hierarchyMatrix(&n)
		assertPoint(t, [3]float32{7, 0, 0}, m, [3]float32{1, 0, 0})
	})
}

func TestMeshGroupsByTexture(t *testing.T) {
	n := node("n", "")
	n.TextureIDs = []int32{1, 0, 7}
	n.Vertices = [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}
	n.Faces = []formats.RSMFace{
		{VertexIDs: [3]uint16{0, 1, 2}, TextureID: 0},
		{VertexIDs: [3]uint16{1, 3, 2}, TextureID: 1, TwoSide: 1},
		{VertexIDs: [3]uint16{0, 1, 3}, TextureID: 0},
		{VertexIDs: [3]uint16{0, 2, 3}, TextureID: 2},
		{VertexIDs: [3]uint16{0, 2, 3}, TextureID: 9},
	}
	rsm := &formats.RSM{
		Alpha:    0.5,
		Textures: []string{`data\texture\stone.bmp`, `data\texture\wood.bmp`},
		Nodes:    []formats.RSMNode{n},
	}

	geode := newConverter(Options{}).mesh(rsm, &rsm.Nodes[0])
	require.NotNil(t, geode)
	require.Len(t, geode.Geometries, 3)

	indices := func(g *scene.Geometry) []uint16 {
		require.Len(t, g.PrimitiveSets, 1)
		d, ok := g.PrimitiveSets[0].(scene.DrawElementsUShort)
		require.True(t, ok)
		assert.Equal(t, scene.Triangles, d.Mode)
		return d.Indices
	}

	untex, stone, wood := geode.Geometries[0], geode.Geometries[1], geode.Geometries[2]
	assert.Equal(t, []uint16{0, 2, 3, 0, 2, 3}, indices(untex))
	assert.Equal(t, []uint16{1, 3, 2, 1, 2, 3}, indices(stone))
	assert.Equal(t, []uint16{0, 1, 2, 0, 1, 3}, indices(wood))

	assert.Equal(t, "untextured", untex.Material.Name)
	assert.Equal(t, "stone.bmp", stone.Material.Name)
	assert.Equal(t, "wood.bmp", wood.Material.Name)
	assert.Equal(t, scene.Color{1, 1, 1, 0.5}, wood.Material.Diffuse)

	for _, g := range geode.Geometries {
		assert.Equal(t, 4, g.Vertices.Len(), "geometries share the node's vertices")
	}
}

func TestMaterialsSharedAcrossNodes(t *testing.T) {
	rsm := &formats.RSM{
		Alpha:    1,
		Textures: []string{"a.bmp"},
		Nodes:    []formats.RSMNode{withTriangle(node("a", ""), 0), withTriangle(node("b", "a"), 0)},
	}
	root, err := FromRSM(rsm, "m", Options{})
	require.NoError(t, err)

	var mats []*scene.Material
	root.Walk(func(n *scene.Node, _ int) {
		for _, g := range n.Geometries {
			mats = append(mats, g.Material)
		}
	})
	require.Len(t, mats, 2)
	assert.Same(t, mats[0], mats[1])
}

func TestAnimationSampling(t *testing.T) {
	rot := []formats.RSMRotKeyframe{
		{Frame: 0, Quaternion: [4]float32{0, 0, 0, 1}},
		{Frame: 1000, Quaternion: [4]float32{0, 1, 0, 0}},
	}
	half := rotationAt(rot, 500).Mat4()
	assertPoint(t, [3]float32{0, 0, -1}, half, [3]float32{1, 0, 0})

	before := rotationAt(rot, -10).Mat4()
	assert.True(t, before.IsIdentity(1e-6))

	after := rotationAt(rot, 5000).Mat4()
	assertPoint(t, [3]float32{-1, 0, 0}, after, [3]float32{1, 0, 0})

	assert.True(t, rotationAt(nil, 10).Mat4().IsIdentity(1e-6))
	assert.Equal(t, [3]float32{1, 1, 1}, scaleAt(nil, 10))

	_, ok := positionAt(nil, 0)
	assert.False(t, ok)

	tests := []struct {
		name     string
		t        float32
		prev     int
		next     int
		wantFrac float32
	}{
		{"before first", -5, 0, 0, 0},
		{"on key", 100, 1, 2, 0},
		{"between", 150, 1, 2, 0.5},
		{"past last", 900, 2, 2, 0},
	}
	frames := []int32{0, 100, 200}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev, next, f := bracket(len(frames), func(i int) int32 { return frames[i] }, tt.t)
			assert.Equal(t, tt.prev, prev)
			assert.Equal(t, tt.next, next)
			assert.InDelta(t, tt.wantFrac, f, 1e-6)
		})
	}
}
