package scene

import "fmt"

// Mode is the primitive topology of a PrimitiveSet.
type Mode int

const (
	Points Mode = iota
	Lines
	LineStrip
	LineLoop
	Triangles
	TriangleStrip
	TriangleFan
	Quads
	QuadStrip
	Polygon
)

var modeNames = [...]string{
	Points:        "Points",
	Lines:         "Lines",
	LineStrip:     "LineStrip",
	LineLoop:      "LineLoop",
	Triangles:     "Triangles",
	TriangleStrip: "TriangleStrip",
	TriangleFan:   "TriangleFan",
	Quads:         "Quads",
	QuadStrip:     "QuadStrip",
	Polygon:       "Polygon",
}

// String returns the mode name.
func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Geometry is a drawable: attribute arrays plus the primitive sets that
// index into them. Normals may hold one element per vertex or a single
// shared element. TexCoords is carried but not exported.
type Geometry struct {
	Vertices      Array
	Normals       Array
	TexCoords     Array
	PrimitiveSets []PrimitiveSet
	Material      *Material
}

// PrimitiveSet is one of DrawArrays, DrawArrayLengths or a DrawElements
// variant.
type PrimitiveSet interface {
	Topology() Mode
}

// DrawArrays draws Count consecutive vertices starting at First.
type DrawArrays struct {
	Mode  Mode
	First int
	Count int
}

// Topology returns the primitive mode.
func (d DrawArrays) Topology() Mode { return d.Mode }

// DrawArrayLengths draws consecutive runs of vertices. Run i starts where
// run i-1 ended, beginning at First.
type DrawArrayLengths struct {
	Mode    Mode
	First   int
	Lengths []int
}

// Topology returns the primitive mode.
func (d DrawArrayLengths) Topology() Mode { return d.Mode }

// DrawElementsUByte draws vertices by 8-bit index.
type DrawElementsUByte struct {
	Mode    Mode
	Indices []uint8
}

// Topology returns the primitive mode.
func (d DrawElementsUByte) Topology() Mode { return d.Mode }

// DrawElementsUShort draws vertices by 16-bit index.
type DrawElementsUShort struct {
	Mode    Mode
	Indices []uint16
}

// Topology returns the primitive mode.
func (d DrawElementsUShort) Topology() Mode { return d.Mode }

// DrawElementsUInt draws vertices by 32-bit index.
type DrawElementsUInt struct {
	Mode    Mode
	Indices []uint32
}

// Topology returns the primitive mode.
func (d DrawElementsUInt) Topology() Mode { return d.Mode }

// Widen converts any DrawElements variant to 32-bit indices. ok is false for
// primitive sets that are not index lists.
func Widen(ps PrimitiveSet) (DrawElementsUInt, bool) {
	switch d := ps.(type) {
	case DrawElementsUInt:
		return d, true
	case DrawElementsUShort:
		out := make([]uint32, len(d.Indices))
		for i, v := range d.Indices {
			out[i] = uint32(v)
		}
		return DrawElementsUInt{Mode: d.Mode, Indices: out}, true
	case DrawElementsUByte:
		out := make([]uint32, len(d.Indices))
		for i, v := range d.Indices {
			out[i] = uint32(v)
		}
		return DrawElementsUInt{Mode: d.Mode, Indices: out}, true
	}
	return DrawElementsUInt{}, false
}
