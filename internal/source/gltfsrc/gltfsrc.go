// Package gltfsrc builds scene graphs from glTF 2.0 assets.
package gltfsrc

import (
	"errors"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/prcexport/internal/logger"
	"github.com/Faultbox/prcexport/pkg/math"
	"github.com/Faultbox/prcexport/pkg/scene"
)

// Errors returned while converting a document.
var (
	ErrBadIndex = errors.New("index out of range")
	ErrCycle    = errors.New("node hierarchy has a cycle")
	ErrNoScene  = errors.New("document has no scene")
)

const (
	attrPosition = "POSITION"
	attrNormal   = "NORMAL"
	attrTexCoord = "TEXCOORD_0"
)

// Load opens a .gltf or .glb file and converts its default scene.
func Load(path string) (*scene.Node, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	root, err := FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", path, err)
	}
	return root, nil
}

// converter holds per-document state. Materials are converted once per
// glTF material index so that primitives sharing one share the pointer.
type converter struct {
	doc       *gltf.Document
	materials map[int]*scene.Material
	visiting  map[int]bool
}

// FromDocument converts the document's default scene, or its first scene
// when none is marked default. A document without scenes exports every
// node that is nobody's child.
func FromDocument(doc *gltf.Document) (*scene.Node, error) {
	c := &converter{
		doc:       doc,
		materials: make(map[int]*scene.Material),
		visiting:  make(map[int]bool),
	}

	name, roots, err := c.sceneRoots()
	if err != nil {
		return nil, err
	}

	root := scene.NewGroup(name)
	for _, idx := range roots {
		n, err := c.node(idx)
		if err != nil {
			return nil, err
		}
		root.AddChild(n)
	}

	st := scene.Collect(root)
	logger.Debug("gltf scene converted",
		zap.String("scene", name),
		zap.Int("nodes", st.Nodes),
		zap.Int("geometries", st.Geometries),
		zap.Int("materials", st.Materials))
	return root, nil
}

func (c *converter) sceneRoots() (string, []int, error) {
	if len(c.doc.Scenes) > 0 {
		idx := 0
		if c.doc.Scene != nil {
			idx = *c.doc.Scene
		}
		if idx < 0 || idx >= len(c.doc.Scenes) {
			return "", nil, fmt.Errorf("scene %d: %w", idx, ErrBadIndex)
		}
		s := c.doc.Scenes[idx]
		return nameOr(s.Name, "scene"), s.Nodes, nil
	}

	if len(c.doc.Nodes) == 0 {
		return "", nil, ErrNoScene
	}
	child := make(map[int]bool)
	for _, n := range c.doc.Nodes {
		for _, ch := range n.Children {
			child[ch] = true
		}
	}
	var roots []int
	for i := range c.doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return "scene", roots, nil
}

func (c *converter) node(idx int) (*scene.Node, error) {
	if idx < 0 || idx >= len(c.doc.Nodes) {
		return nil, fmt.Errorf("node %d: %w", idx, ErrBadIndex)
	}
	if c.visiting[idx] {
		return nil, fmt.Errorf("node %d: %w", idx, ErrCycle)
	}
	c.visiting[idx] = true
	defer delete(c.visiting, idx)

	src := c.doc.Nodes[idx]
	name := nameOr(src.Name, fmt.Sprintf("node%d", idx))

	var n *scene.Node
	if m := localMatrix(src); m.IsIdentity(1e-6) {
		n = scene.NewGroup(name)
	} else {
		n = scene.NewTransform(name, m)
	}

	if src.Mesh != nil {
		g, err := c.mesh(*src.Mesh)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		n.AddChild(g)
	}

	for _, ch := range src.Children {
		cn, err := c.node(ch)
		if err != nil {
			return nil, err
		}
		n.AddChild(cn)
	}
	return n, nil
}

// localMatrix returns the node's matrix property when set, otherwise the
// composition translation · rotation · scale.
func localMatrix(n *gltf.Node) math.Mat4 {
	if n.Matrix != [16]float64{} && n.Matrix != gltf.DefaultMatrix {
		return math.FromFloat64(n.Matrix)
	}

	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()

	q := math.QuatFromArray([4]float32{float32(r[0]), float32(r[1]), float32(r[2]), float32(r[3])})
	return math.Translate(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul(q.Normalize().Mat4()).
		Mul(math.Scale(float32(s[0]), float32(s[1]), float32(s[2])))
}

func (c *converter) mesh(idx int) (*scene.Node, error) {
	if idx < 0 || idx >= len(c.doc.Meshes) {
		return nil, fmt.Errorf("mesh %d: %w", idx, ErrBadIndex)
	}
	m := c.doc.Meshes[idx]
	geode := scene.NewGeode(nameOr(m.Name, fmt.Sprintf("mesh%d", idx)))

	for i, p := range m.Primitives {
		g, err := c.primitive(p)
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", geode.Name, i, err)
		}
		geode.Geometries = append(geode.Geometries, g)
	}
	return geode, nil
}

func (c *converter) primitive(p *gltf.Primitive) (*scene.Geometry, error) {
	g := &scene.Geometry{}

	pos, ok := p.Attributes[attrPosition]
	if !ok {
		return nil, fmt.Errorf("missing %s attribute", attrPosition)
	}
	verts, err := c.array(pos)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", attrPosition, err)
	}
	g.Vertices = verts

	if idx, ok := p.Attributes[attrNormal]; ok {
		if g.Normals, err = c.array(idx); err != nil {
			return nil, fmt.Errorf("%s: %w", attrNormal, err)
		}
	}
	if idx, ok := p.Attributes[attrTexCoord]; ok {
		if g.TexCoords, err = c.array(idx); err != nil {
			return nil, fmt.Errorf("%s: %w", attrTexCoord, err)
		}
	}

	mode := primitiveMode(p.Mode)
	if p.Indices == nil {
		g.PrimitiveSets = []scene.PrimitiveSet{scene.DrawArrays{Mode: mode, Count: verts.Len()}}
	} else {
		ps, err := c.indices(*p.Indices, mode)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		g.PrimitiveSets = []scene.PrimitiveSet{ps}
	}

	if p.Material != nil {
		if g.Material, err = c.material(*p.Material); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (c *converter) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(c.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d: %w", idx, ErrBadIndex)
	}
	return c.doc.Accessors[idx], nil
}

// array reads a vertex attribute. Float layouts map onto the typed scene
// arrays; anything else, such as quantized positions, is kept as a
// RawArray so the exporter can report it.
func (c *converter) array(idx int) (scene.Array, error) {
	acr, err := c.accessor(idx)
	if err != nil {
		return nil, err
	}
	if acr.ComponentType != gltf.ComponentFloat {
		return scene.RawArray{
			Count:  acr.Count,
			Layout: fmt.Sprintf("%s<%s>", acr.Type, acr.ComponentType),
		}, nil
	}

	data, err := modeler.ReadAccessor(c.doc, acr, nil)
	if err != nil {
		return nil, err
	}
	switch v := data.(type) {
	case [][3]float32:
		return scene.Vec3Array(v), nil
	case [][2]float32:
		return scene.Vec2Array(v), nil
	case [][4]float32:
		return scene.Vec4Array(v), nil
	case []float32:
		return scene.FloatArray(v), nil
	}
	return scene.RawArray{Count: acr.Count, Layout: fmt.Sprintf("%T", data)}, nil
}

// indices reads an index accessor keeping its component width.
func (c *converter) indices(idx int, mode scene.Mode) (scene.PrimitiveSet, error) {
	acr, err := c.accessor(idx)
	if err != nil {
		return nil, err
	}
	data, err := modeler.ReadAccessor(c.doc, acr, nil)
	if err != nil {
		return nil, err
	}
	switch v := data.(type) {
	case []uint8:
		return scene.DrawElementsUByte{Mode: mode, Indices: v}, nil
	case []uint16:
		return scene.DrawElementsUShort{Mode: mode, Indices: v}, nil
	case []uint32:
		return scene.DrawElementsUInt{Mode: mode, Indices: v}, nil
	}
	return nil, fmt.Errorf("unsupported index layout %s<%s>", acr.Type, acr.ComponentType)
}

func primitiveMode(m gltf.PrimitiveMode) scene.Mode {
	switch m {
	case gltf.PrimitivePoints:
		return scene.Points
	case gltf.PrimitiveLines:
		return scene.Lines
	case gltf.PrimitiveLineLoop:
		return scene.LineLoop
	case gltf.PrimitiveLineStrip:
		return scene.LineStrip
	case gltf.PrimitiveTriangleStrip:
		return scene.TriangleStrip
	case gltf.PrimitiveTriangleFan:
		return scene.TriangleFan
	default:
		return scene.Triangles
	}
}

// material converts a metallic-roughness material to the fixed-function
// model. The specular color blends from a dielectric 4% toward the base
// color as metalness rises.
func (c *converter) material(idx int) (*scene.Material, error) {
	if m, ok := c.materials[idx]; ok {
		return m, nil
	}
	if idx < 0 || idx >= len(c.doc.Materials) {
		return nil, fmt.Errorf("material %d: %w", idx, ErrBadIndex)
	}
	src := c.doc.Materials[idx]

	base := [4]float64{1, 1, 1, 1}
	metallic, roughness := 1.0, 1.0
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		base = pbr.BaseColorFactorOrDefault()
		metallic = pbr.MetallicFactorOrDefault()
		roughness = pbr.RoughnessFactorOrDefault()
	}

	var specular scene.Color
	for i := 0; i < 3; i++ {
		specular[i] = float32(0.04*(1-metallic) + base[i]*metallic)
	}
	specular[3] = 1

	e := src.EmissiveFactor
	m := &scene.Material{
		Name:      nameOr(src.Name, fmt.Sprintf("material%d", idx)),
		Ambient:   scene.Color{0, 0, 0, 1},
		Diffuse:   scene.Color{float32(base[0]), float32(base[1]), float32(base[2]), float32(base[3])},
		Emissive:  scene.Color{float32(e[0]), float32(e[1]), float32(e[2]), 1},
		Specular:  specular,
		Shininess: float32((1 - roughness) * 128),
	}
	c.materials[idx] = m
	return m, nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
