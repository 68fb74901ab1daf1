// Package formats parses Ragnarok Online model and world files.
package formats

import (
	"errors"
	"fmt"
	"os"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
)

// Upper bounds on element counts, rejecting corrupt headers before they
// turn into huge allocations.
const (
	maxRSMTextures = 1000
	maxRSMNodes    = 10000
	maxRSMElements = 100000
	maxRSMKeys     = 10000
	maxRSMBoxes    = 1000
)

// RSMVersion represents the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSMShadingType represents the shading mode of a model.
type RSMShadingType int32

const (
	RSMShadingNone   RSMShadingType = 0
	RSMShadingFlat   RSMShadingType = 1
	RSMShadingSmooth RSMShadingType = 2
)

// String returns a human-readable shading type name.
func (s RSMShadingType) String() string {
	switch s {
	case RSMShadingNone:
		return "None"
	case RSMShadingFlat:
		return "Flat"
	case RSMShadingSmooth:
		return "Smooth"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// RSMTexCoord is a texture coordinate with its vertex color.
type RSMTexCoord struct {
	Color [4]uint8 // RGBA (v1.2+, white before)
	U, V  float32
}

// RSMFace is one triangle of a node mesh.
type RSMFace struct {
	VertexIDs   [3]uint16
	TexCoordIDs [3]uint16
	TextureID   uint16 // index into the node's TextureIDs
	TwoSide     int32
	SmoothGroup int32 // v1.2+
}

// RSMPosKeyframe is a position keyframe (before v1.5).
type RSMPosKeyframe struct {
	Frame    int32
	Position [3]float32
}

// RSMRotKeyframe is a rotation keyframe; Quaternion is x, y, z, w.
type RSMRotKeyframe struct {
	Frame      int32
	Quaternion [4]float32
}

// RSMScaleKeyframe is a scale keyframe (v1.5+).
type RSMScaleKeyframe struct {
	Frame int32
	Scale [3]float32
}

// RSMNode is one node of the model hierarchy.
type RSMNode struct {
	Name       string
	Parent     string  // empty for the root
	TextureIDs []int32 // indices into RSM.Textures

	Matrix   [9]float32 // 3x3, column-major
	Offset   [3]float32
	Position [3]float32
	RotAngle float32 // radians
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	PosKeys   []RSMPosKeyframe
	RotKeys   []RSMRotKeyframe
	ScaleKeys []RSMScaleKeyframe
}

// RSMVolumeBox is a collision box.
type RSMVolumeBox struct {
	Size     [3]float32
	Position [3]float32
	Rotation [3]float32
	Flag     int32 // v1.3+
}

// RSM is a parsed model file.
type RSM struct {
	Version     RSMVersion
	AnimLength  int32 // milliseconds
	Shading     RSMShadingType
	Alpha       float32 // 0-1
	Textures    []string
	RootNode    string
	Nodes       []RSMNode
	VolumeBoxes []RSMVolumeBox
}

// ParseRSM parses an RSM model. Versions 1.1 through 1.5 are supported;
// names are decoded from EUC-KR.
func ParseRSM(data []byte) (*RSM, error) {
	r := newBinReader(data)

	magic := r.take(4, "magic")
	if r.err != nil {
		return nil, r.err
	}
	if string(magic) != "GRSM" {
		return nil, ErrInvalidRSMMagic
	}

	rsm := &RSM{
		Version: RSMVersion{Major: r.u8("version"), Minor: r.u8("version")},
	}
	if r.err != nil {
		return nil, r.err
	}
	if rsm.Version.Major != 1 || rsm.Version.Minor < 1 || rsm.Version.Minor > 5 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	rsm.AnimLength = r.i32("anim length")
	rsm.Shading = RSMShadingType(r.i32("shading"))
	rsm.Alpha = 1
	if rsm.Version.AtLeast(1, 4) {
		rsm.Alpha = float32(r.u8("alpha")) / 255
	}
	r.skip(16, "reserved")

	rsm.Textures = make([]string, r.count("texture count", maxRSMTextures))
	for i := range rsm.Textures {
		rsm.Textures[i] = r.name(40, "texture name")
	}

	rsm.RootNode = r.name(40, "root node name")

	rsm.Nodes = make([]RSMNode, r.count("node count", maxRSMNodes))
	for i := range rsm.Nodes {
		parseRSMNode(r, rsm.Version, &rsm.Nodes[i])
		if r.err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, r.err)
		}
	}

	// Volume boxes are optional trailing data.
	if r.remaining() >= 4 {
		rsm.VolumeBoxes = make([]RSMVolumeBox, r.count("volume box count", maxRSMBoxes))
		for i := range rsm.VolumeBoxes {
			b := &rsm.VolumeBoxes[i]
			b.Size = r.vec3("box size")
			b.Position = r.vec3("box position")
			b.Rotation = r.vec3("box rotation")
			if rsm.Version.AtLeast(1, 3) {
				b.Flag = r.i32("box flag")
			}
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return rsm, nil
}

func parseRSMNode(r *binReader, v RSMVersion, n *RSMNode) {
	n.Name = r.name(40, "node name")
	n.Parent = r.name(40, "parent name")

	n.TextureIDs = make([]int32, r.count("node texture count", maxRSMTextures))
	for i := range n.TextureIDs {
		n.TextureIDs[i] = r.i32("texture id")
	}

	for i := range n.Matrix {
		n.Matrix[i] = r.f32("matrix")
	}
	n.Offset = r.vec3("offset")
	n.Position = r.vec3("position")
	n.RotAngle = r.f32("rotation angle")
	n.RotAxis = r.vec3("rotation axis")
	n.Scale = r.vec3("scale")

	n.Vertices = make([][3]float32, r.count("vertex count", maxRSMElements))
	for i := range n.Vertices {
		n.Vertices[i] = r.vec3("vertex")
	}

	n.TexCoords = make([]RSMTexCoord, r.count("texcoord count", maxRSMElements))
	for i := range n.TexCoords {
		tc := &n.TexCoords[i]
		tc.Color = [4]uint8{255, 255, 255, 255}
		if v.AtLeast(1, 2) {
			copy(tc.Color[:], r.take(4, "texcoord color"))
		}
		tc.U = r.f32("texcoord u")
		tc.V = r.f32("texcoord v")
	}

	n.Faces = make([]RSMFace, r.count("face count", maxRSMElements))
	for i := range n.Faces {
		f := &n.Faces[i]
		for j := range f.VertexIDs {
			f.VertexIDs[j] = r.u16("face vertex")
		}
		for j := range f.TexCoordIDs {
			f.TexCoordIDs[j] = r.u16("face texcoord")
		}
		f.TextureID = r.u16("face texture")
		r.skip(2, "face padding")
		f.TwoSide = r.i32("face two-side")
		if v.AtLeast(1, 2) {
			f.SmoothGroup = r.i32("face smooth group")
		}
	}

	if !v.AtLeast(1, 5) {
		n.PosKeys = make([]RSMPosKeyframe, r.count("position key count", maxRSMKeys))
		for i := range n.PosKeys {
			n.PosKeys[i] = RSMPosKeyframe{Frame: r.i32("key frame"), Position: r.vec3("key position")}
		}
	}

	n.RotKeys = make([]RSMRotKeyframe, r.count("rotation key count", maxRSMKeys))
	for i := range n.RotKeys {
		k := &n.RotKeys[i]
		k.Frame = r.i32("key frame")
		for j := range k.Quaternion {
			k.Quaternion[j] = r.f32("key quaternion")
		}
	}

	if v.AtLeast(1, 5) {
		n.ScaleKeys = make([]RSMScaleKeyframe, r.count("scale key count", maxRSMKeys))
		for i := range n.ScaleKeys {
			n.ScaleKeys[i] = RSMScaleKeyframe{Frame: r.i32("key frame"), Scale: r.vec3("key scale")}
		}
	}
}

// ParseRSMFile parses an RSM file from disk.
func ParseRSMFile(path string) (*RSM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSM file: %w", err)
	}
	return ParseRSM(data)
}

// TotalVertexCount returns the number of vertices across all nodes.
func (rsm *RSM) TotalVertexCount() int {
	total := 0
	for i := range rsm.Nodes {
		total += len(rsm.Nodes[i].Vertices)
	}
	return total
}

// TotalFaceCount returns the number of faces across all nodes.
func (rsm *RSM) TotalFaceCount() int {
	total := 0
	for i := range rsm.Nodes {
		total += len(rsm.Nodes[i].Faces)
	}
	return total
}

// NodeByName returns the first node called name, or nil.
func (rsm *RSM) NodeByName(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// Root returns the node named by RootNode. Files with a blank or dangling
// root name fall back to the first parentless node.
func (rsm *RSM) Root() *RSMNode {
	if n := rsm.NodeByName(rsm.RootNode); n != nil {
		return n
	}
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == "" {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// Children returns the nodes whose parent is name, skipping self-parented
// nodes.
func (rsm *RSM) Children(name string) []*RSMNode {
	var children []*RSMNode
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		if n.Parent == name && n.Name != name {
			children = append(children, n)
		}
	}
	return children
}

// HasAnimation reports whether any node has more than one keyframe on a
// track. A single key is a static pose.
func (rsm *RSM) HasAnimation() bool {
	if rsm.AnimLength <= 0 {
		return false
	}
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		if len(n.RotKeys) > 1 || len(n.PosKeys) > 1 || len(n.ScaleKeys) > 1 {
			return true
		}
	}
	return false
}
