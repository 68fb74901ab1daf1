package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/Faultbox/prcexport/pkg/math"
	"github.com/Faultbox/prcexport/pkg/prc"
	"github.com/Faultbox/prcexport/pkg/scene"
)

var errDiskFull = errors.New("disk full")

type binding struct {
	group string
	mesh  prc.MeshHandle
	style prc.StyleHandle
}

// recordingSink records every call. failMaterialAt and failMeshAt make the
// n-th registration (1-based) fail.
type recordingSink struct {
	events    []string
	open      []string
	maxDepth  int
	materials []prc.Material
	meshes    []*prc.Tessellation
	bindings  []binding
	xforms    map[string]*math.Mat4
	finished  bool

	failMaterialAt int
	failMeshAt     int
	failFinish     bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{xforms: make(map[string]*math.Mat4)}
}

func (s *recordingSink) BeginGroup(name string, transform *math.Mat4) {
	s.events = append(s.events, "begin "+name)
	s.open = append(s.open, name)
	s.maxDepth = max(s.maxDepth, len(s.open))
	s.xforms[name] = transform
}

func (s *recordingSink) EndGroup() {
	s.events = append(s.events, "end "+s.open[len(s.open)-1])
	s.open = s.open[:len(s.open)-1]
}

func (s *recordingSink) RegisterMaterial(m prc.Material) (prc.StyleHandle, error) {
	if s.failMaterialAt == len(s.materials)+1 {
		return prc.NoStyle, errDiskFull
	}
	s.materials = append(s.materials, m)
	return prc.StyleHandle(len(s.materials)), nil
}

func (s *recordingSink) RegisterTessellation(t *prc.Tessellation) (prc.MeshHandle, error) {
	if s.failMeshAt == len(s.meshes)+1 {
		return 0, errDiskFull
	}
	s.meshes = append(s.meshes, t)
	return prc.MeshHandle(len(s.meshes)), nil
}

func (s *recordingSink) BindMesh(mesh prc.MeshHandle, style prc.StyleHandle) {
	s.bindings = append(s.bindings, binding{group: s.open[len(s.open)-1], mesh: mesh, style: style})
}

func (s *recordingSink) Finish() error {
	s.finished = true
	if s.failFinish {
		return errDiskFull
	}
	return nil
}

func (s *recordingSink) count(prefix string) int {
	n := 0
	for _, e := range s.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func triangle() *scene.Geometry {
	return &scene.Geometry{
		Vertices:      scene.Vec3Array{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		PrimitiveSets: []scene.PrimitiveSet{scene.DrawArrays{Mode: scene.Triangles, Count: 3}},
	}
}

func runExport(t *testing.T, sink *recordingSink, root *scene.Node) *Exporter {
	t.Helper()
	e, err := New(sink, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, e.Export(root))
	return e
}

func TestExportEmptyRoot(t *testing.T) {
	sink := newRecordingSink()
	runExport(t, sink, scene.NewGroup("root"))

	assert.Equal(t, []string{"begin root", "end root"}, sink.events)
	assert.Empty(t, sink.meshes)
	require.Len(t, sink.materials, 1, "only the default material")
	assert.Equal(t, DefaultMaterial(), sink.materials[0])
	assert.True(t, sink.finished)
}

func TestExportNilRoot(t *testing.T) {
	sink := newRecordingSink()
	runExport(t, sink, nil)

	assert.Empty(t, sink.events)
	assert.True(t, sink.finished)
}

func TestExportSkipsUnsupportedGeometry(t *testing.T) {
	g := scene.NewGeode("bad")
	g.Geometries = append(g.Geometries, &scene.Geometry{
		Vertices:      scene.RawArray{Count: 3, Layout: "vec3<int16>"},
		PrimitiveSets: []scene.PrimitiveSet{scene.DrawArrays{Mode: scene.Triangles, Count: 3}},
	})

	sink := newRecordingSink()
	e := runExport(t, sink, g)

	assert.Equal(t, []string{"begin bad", "end bad"}, sink.events)
	assert.Empty(t, sink.meshes)
	assert.Equal(t, 1, e.Stats().SkippedGeometries)
	assert.ErrorIs(t, e.Diagnostics(), ErrUnsupportedArrayType)
}

func TestExportGroupsBalanced(t *testing.T) {
	root := scene.NewGroup("root")
	a := scene.NewTransform("a", math.Translate(1, 2, 3))
	b := scene.NewGroup("b")
	leaf := scene.NewGeode("leaf")
	leaf.Geometries = []*scene.Geometry{triangle(), nil, triangle()}
	root.AddChild(a)
	a.AddChild(b)
	b.AddChild(leaf)
	root.AddChild(scene.NewGeode("empty"))

	sink := newRecordingSink()
	e := runExport(t, sink, root)

	assert.Equal(t, []string{
		"begin root", "begin a", "begin b", "begin leaf", "end leaf", "end b", "end a",
		"begin empty", "end empty", "end root",
	}, sink.events)
	assert.Equal(t, 4, sink.maxDepth)
	assert.Empty(t, sink.open)

	require.Len(t, sink.bindings, 2)
	assert.Equal(t, "leaf", sink.bindings[0].group)
	assert.Equal(t, 2, e.Stats().Meshes)
	assert.Equal(t, 5, e.Stats().Groups)
	assert.Equal(t, 2, e.Stats().Triangles)
}

func TestExportTransformMatrices(t *testing.T) {
	outer := scene.NewTransform("outer", math.Translate(10, 0, 0))
	inner := scene.NewTransform("inner", math.Scale(2, 2, 2))
	outer.AddChild(inner)

	sink := newRecordingSink()
	runExport(t, sink, outer)

	require.NotNil(t, sink.xforms["outer"])
	require.NotNil(t, sink.xforms["inner"])
	assert.Equal(t, math.Translate(10, 0, 0), *sink.xforms["outer"])
	assert.Equal(t, math.Scale(2, 2, 2), *sink.xforms["inner"], "local matrix, not composed")
}

func TestExportGroupHasNoTransform(t *testing.T) {
	sink := newRecordingSink()
	runExport(t, sink, scene.NewGroup("g"))
	assert.Nil(t, sink.xforms["g"])
}

func TestExportMaterialScoping(t *testing.T) {
	red := &scene.Material{Name: "red", Diffuse: scene.Color{1, 0, 0, 1}}
	blue := &scene.Material{Name: "blue", Diffuse: scene.Color{0, 0, 1, 1}}

	root := scene.NewGroup("root")

	a := scene.NewGroup("a")
	a.Material = red
	aLeaf := scene.NewGeode("a-leaf")
	aLeaf.Geometries = []*scene.Geometry{triangle()}
	a.AddChild(aLeaf)

	sibling := scene.NewGeode("sibling")
	blueGeom := triangle()
	blueGeom.Material = blue
	sibling.Geometries = []*scene.Geometry{blueGeom, triangle()}

	plain := scene.NewGeode("plain")
	plain.Geometries = []*scene.Geometry{triangle()}

	root.AddChild(a)
	root.AddChild(sibling)
	root.AddChild(plain)

	sink := newRecordingSink()
	runExport(t, sink, root)

	const (
		defaultStyle = prc.StyleHandle(1)
		redStyle     = prc.StyleHandle(2)
		blueStyle    = prc.StyleHandle(3)
	)
	require.Len(t, sink.materials, 3)
	assert.Equal(t, []binding{
		{group: "a-leaf", mesh: 1, style: redStyle},
		{group: "sibling", mesh: 2, style: blueStyle},
		{group: "sibling", mesh: 3, style: defaultStyle},
		{group: "plain", mesh: 4, style: defaultStyle},
	}, sink.bindings)
}

func TestExportMaterialMemo(t *testing.T) {
	shared := &scene.Material{Name: "shared", Diffuse: scene.Color{0.5, 0.5, 0.5, 1}}
	twin := &scene.Material{Name: "shared", Diffuse: scene.Color{0.5, 0.5, 0.5, 1}}

	root := scene.NewGroup("root")
	for _, m := range []*scene.Material{shared, shared, twin, shared} {
		g := scene.NewGeode("leaf")
		geom := triangle()
		geom.Material = m
		g.Geometries = []*scene.Geometry{geom}
		root.AddChild(g)
	}

	sink := newRecordingSink()
	e := runExport(t, sink, root)

	assert.Len(t, sink.materials, 3, "default plus one per distinct material")
	assert.Equal(t, 3, e.Stats().Styles)
	require.Len(t, sink.bindings, 4)
	assert.Equal(t, sink.bindings[0].style, sink.bindings[1].style)
	assert.Equal(t, sink.bindings[0].style, sink.bindings[3].style)
	assert.NotEqual(t, sink.bindings[0].style, sink.bindings[2].style)
}

func TestExportMaterialConversion(t *testing.T) {
	m := &scene.Material{
		Ambient:   scene.Color{0.1, 0.2, 0.3, 0.5},
		Diffuse:   scene.Color{1, 0, 0, 0.25},
		Shininess: 64,
	}
	g := scene.NewGeode("leaf")
	g.Material = m

	sink := newRecordingSink()
	runExport(t, sink, g)

	require.Len(t, sink.materials, 2)
	got := sink.materials[1]
	assert.InDelta(t, 0.2, got.Ambient.G, 1e-6)
	assert.InDelta(t, 0.25, got.Diffuse.A, 1e-6)
	assert.Equal(t, 1.0, got.Alpha, "alpha is opaque")
	assert.Equal(t, 64.0, got.Shininess)
}

func TestExportSinkFailures(t *testing.T) {
	build := func() *scene.Node {
		root := scene.NewGroup("root")
		mid := scene.NewGroup("mid")
		leaf := scene.NewGeode("leaf")
		geom := triangle()
		geom.Material = &scene.Material{Name: "m"}
		leaf.Geometries = []*scene.Geometry{geom}
		mid.AddChild(leaf)
		root.AddChild(mid)
		return root
	}

	tests := []struct {
		name  string
		setup func(*recordingSink)
	}{
		{"material", func(s *recordingSink) { s.failMaterialAt = 2 }},
		{"tessellation", func(s *recordingSink) { s.failMeshAt = 1 }},
		{"finish", func(s *recordingSink) { s.failFinish = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newRecordingSink()
			tt.setup(sink)

			e, err := New(sink, DefaultOptions())
			require.NoError(t, err)

			err = e.Export(build())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSinkFailure)
			assert.ErrorIs(t, err, errDiskFull)
			assert.Empty(t, sink.open, "groups closed on abort")
			assert.Equal(t, sink.count("begin"), sink.count("end"))
		})
	}
}

func TestExportAbortSkipsFinish(t *testing.T) {
	sink := newRecordingSink()
	sink.failMeshAt = 1
	g := scene.NewGeode("leaf")
	g.Geometries = []*scene.Geometry{triangle()}

	e, err := New(sink, DefaultOptions())
	require.NoError(t, err)
	require.Error(t, e.Export(g))
	assert.False(t, sink.finished)
}

func TestNewDefaultMaterialFailure(t *testing.T) {
	sink := newRecordingSink()
	sink.failMaterialAt = 1

	_, err := New(sink, DefaultOptions())
	assert.ErrorIs(t, err, ErrSinkFailure)
}

func TestExportTwice(t *testing.T) {
	sink := newRecordingSink()
	e := runExport(t, sink, scene.NewGroup("root"))
	assert.ErrorIs(t, e.Export(scene.NewGroup("root")), ErrExportFinished)
}

func TestExportDiagnosticsAggregate(t *testing.T) {
	g := scene.NewGeode("leaf")
	g.Geometries = []*scene.Geometry{
		{Vertices: scene.Vec2Array{{0, 0}}},
		{
			Vertices: scene.Vec3Array{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			PrimitiveSets: []scene.PrimitiveSet{
				scene.DrawArrays{Mode: scene.Points, Count: 3},
				scene.DrawElementsUByte{Mode: scene.Triangles, Indices: []uint8{0, 1, 7}},
				scene.DrawArrays{Mode: scene.Triangles, Count: 3},
			},
		},
	}

	sink := newRecordingSink()
	e := runExport(t, sink, g)

	assert.Len(t, sink.meshes, 1)
	assert.Equal(t, 2, e.Stats().SkippedPrimitiveSets)
	errs := multierr.Errors(e.Diagnostics())
	require.Len(t, errs, 2, "one skipped geometry, one warning group")
	assert.ErrorIs(t, errs[0], ErrUnsupportedArrayType)
	assert.ErrorIs(t, errs[1], ErrUnsupportedTopology)
	assert.ErrorIs(t, errs[1], ErrIndexOutOfRange)
}

func TestExportIntoDocument(t *testing.T) {
	root := scene.NewTransform("root", math.Translate(0, 0, 1))
	leaf := scene.NewGeode("leaf")
	leaf.Geometries = []*scene.Geometry{triangle()}
	root.AddChild(leaf)

	var buf bytes.Buffer
	doc := prc.NewDocument(&buf, prc.FormatYAML)
	e, err := New(doc, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, e.Export(root))
	assert.Zero(t, doc.Depth())

	c, err := prc.Decode(&buf, prc.FormatYAML)
	require.NoError(t, err)
	require.Len(t, c.Groups, 1)
	assert.Equal(t, "root", c.Groups[0].Name)
	assert.Len(t, c.Groups[0].Transform, 16)
	require.Len(t, c.Groups[0].Children, 1)
	assert.Equal(t, []prc.Binding{{Mesh: 1, Style: 1}}, c.Groups[0].Children[0].Meshes)
	require.Len(t, c.Tessellations, 1)
	assert.Equal(t, []uint32{0, 3, 6}, c.Tessellations[0].TriangulatedIndex)
	assert.Len(t, c.Styles, 1)
}
