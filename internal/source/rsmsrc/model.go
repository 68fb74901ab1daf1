// Package rsmsrc builds scene graphs from Ragnarok Online RSM models and
// RSW/GND maps.
package rsmsrc

import (
	"errors"
	"fmt"
	"path"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/prcexport/internal/logger"
	"github.com/Faultbox/prcexport/pkg/encoding"
	"github.com/Faultbox/prcexport/pkg/formats"
	"github.com/Faultbox/prcexport/pkg/math"
	"github.com/Faultbox/prcexport/pkg/scene"
)

// ErrNoRoot is returned for models without a usable root node.
var ErrNoRoot = errors.New("model has no root node")

// untextured keys faces whose texture reference does not resolve.
const untextured = -1

// Options control model conversion.
type Options struct {
	// AnimTime is the keyframe time, in milliseconds, of the exported pose.
	AnimTime float32
}

// converter shares materials between the nodes of one model, and between
// models of one map when reused.
type converter struct {
	opts      Options
	materials map[string]*scene.Material
}

func newConverter(opts Options) *converter {
	return &converter{opts: opts, materials: make(map[string]*scene.Material)}
}

// FromRSM converts a model into a node tree. The returned root flips Y
// into a Y-up frame; below it each RSM node becomes a transform holding
// its position, rotation and scale, which children inherit, and an inner
// transform with the offset and 3x3 matrix that apply to its own mesh only.
func FromRSM(rsm *formats.RSM, name string, opts Options) (*scene.Node, error) {
	return newConverter(opts).model(rsm, name)
}

func (c *converter) model(rsm *formats.RSM, name string) (*scene.Node, error) {
	root := rsm.Root()
	if root == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNoRoot)
	}

	top := scene.NewTransform(name, math.Scale(1, -1, 1))
	visited := make(map[string]bool)
	top.AddChild(c.node(rsm, root, visited))

	if skipped := len(rsm.Nodes) - len(visited); skipped > 0 {
		logger.Warn("rsm nodes unreachable from root",
			zap.String("model", name),
			zap.Int("skipped", skipped))
	}
	return top, nil
}

func (c *converter) node(rsm *formats.RSM, n *formats.RSMNode, visited map[string]bool) *scene.Node {
	visited[n.Name] = true

	out := scene.NewTransform(n.Name, c.hierarchyMatrix(n))

	if geode := c.mesh(rsm, n); geode != nil {
		mesh := math.Translate(n.Offset[0], n.Offset[1], n.Offset[2]).Mul(math.FromMat3(n.Matrix))
		out.AddChild(scene.NewTransform(n.Name+"/mesh", mesh, geode))
	}

	for _, child := range rsm.Children(n.Name) {
		if visited[child.Name] {
			continue
		}
		out.AddChild(c.node(rsm, child, visited))
	}
	return out
}

// hierarchyMatrix is position · rotation · scale at the configured time.
// Rotation keys replace the static axis-angle rotation.
func (c *converter) hierarchyMatrix(n *formats.RSMNode) math.Mat4 {
	pos := n.Position
	if p, ok := positionAt(n.PosKeys, c.opts.AnimTime); ok {
		pos = p
	}
	m := math.Translate(pos[0], pos[1], pos[2])

	switch {
	case len(n.RotKeys) > 0:
		m = m.Mul(rotationAt(n.RotKeys, c.opts.AnimTime).Mat4())
	case n.RotAngle != 0:
		if axis := math.V3(n.RotAxis); axis.Length() > 1e-6 {
			m = m.Mul(math.QuatFromAxisAngle(axis.Normalize(), n.RotAngle).Mat4())
		}
	}

	m = m.Mul(math.Scale(n.Scale[0], n.Scale[1], n.Scale[2]))
	if len(n.ScaleKeys) > 0 {
		s := scaleAt(n.ScaleKeys, c.opts.AnimTime)
		m = m.Mul(math.Scale(s[0], s[1], s[2]))
	}
	return m
}

// mesh groups the node's faces by texture: one geometry per texture over
// the node's full vertex array. Two-sided faces add the reversed triangle.
// Returns nil for nodes without faces.
func (c *converter) mesh(rsm *formats.RSM, n *formats.RSMNode) *scene.Node {
	if len(n.Faces) == 0 {
		return nil
	}

	byTexture := make(map[int][]uint16)
	for _, f := range n.Faces {
		tex := untextured
		if int(f.TextureID) < len(n.TextureIDs) {
			if id := int(n.TextureIDs[f.TextureID]); id >= 0 && id < len(rsm.Textures) {
				tex = id
			}
		}
		v := f.VertexIDs
		idx := append(byTexture[tex], v[0], v[1], v[2])
		if f.TwoSide != 0 {
			idx = append(idx, v[0], v[2], v[1])
		}
		byTexture[tex] = idx
	}

	textures := make([]int, 0, len(byTexture))
	for tex := range byTexture {
		textures = append(textures, tex)
	}
	sort.Ints(textures)

	verts := scene.Vec3Array(n.Vertices)
	geode := scene.NewGeode(n.Name)
	for _, tex := range textures {
		geode.Geometries = append(geode.Geometries, &scene.Geometry{
			Vertices:      verts,
			PrimitiveSets: []scene.PrimitiveSet{scene.DrawElementsUShort{Mode: scene.Triangles, Indices: byTexture[tex]}},
			Material:      c.material(textureName(rsm, tex), rsm.Alpha),
		})
	}
	return geode
}

func textureName(rsm *formats.RSM, tex int) string {
	if tex == untextured {
		return ""
	}
	return rsm.Textures[tex]
}

// material returns the shared material for a texture path. Colors come
// from the texture, so the material itself is a white diffuse.
func (c *converter) material(texture string, alpha float32) *scene.Material {
	key := fmt.Sprintf("%s@%.3f", texture, alpha)
	if m, ok := c.materials[key]; ok {
		return m
	}
	name := path.Base(encoding.NormalizeGRFPath(texture))
	if texture == "" {
		name = "untextured"
	}
	m := &scene.Material{
		Name:      name,
		Ambient:   scene.Color{0.3, 0.3, 0.3, alpha},
		Diffuse:   scene.Color{1, 1, 1, alpha},
		Emissive:  scene.Color{0, 0, 0, 1},
		Specular:  scene.Color{0, 0, 0, 1},
		Shininess: 0,
	}
	c.materials[key] = m
	return m
}
