// Package prc models the tessellated B-rep container the exporter writes:
// grouped, styled triangle tessellations in the PRC 3D tessellation layout.
package prc

// Face tessellation data flags (PRC_FACETESSDATA_*). A TessFace carries one
// of these in UsedEntitiesFlag.
const (
	FacePolyface                  uint32 = 0x0001
	FaceTriangle                  uint32 = 0x0002
	FaceTriangleFan               uint32 = 0x0004
	FaceTriangleStripe            uint32 = 0x0008
	FacePolyfaceOneNormal         uint32 = 0x0010
	FaceTriangleOneNormal         uint32 = 0x0020
	FaceTriangleFanOneNormal      uint32 = 0x0040
	FaceTriangleStripeOneNormal   uint32 = 0x0080
	FacePolyfaceTextured          uint32 = 0x0100
	FaceTriangleTextured          uint32 = 0x0200
	FaceTriangleFanTextured       uint32 = 0x0400
	FaceTriangleStripeTextured    uint32 = 0x0800
	FacePolyfaceOneNormalTextured uint32 = 0x1000
)

// DefaultCreaseAngle is arccos(0.9) in degrees. It is set on tessellations
// that carry no normals so consumers facet-shade them.
const DefaultCreaseAngle = 25.8419

// Tessellation is the triangle-only representation of one geometry. All
// faces index into the single TriangulatedIndex buffer.
type Tessellation struct {
	Coordinates       []float64   `yaml:"coordinates" toml:"coordinates"`
	NormalCoordinate  []float64   `yaml:"normal_coordinate,omitempty" toml:"normal_coordinate,omitempty"`
	TextureCoordinate []float64   `yaml:"texture_coordinate,omitempty" toml:"texture_coordinate,omitempty"`
	CreaseAngle       float64     `yaml:"crease_angle,omitempty" toml:"crease_angle,omitempty"`
	Faces             []*TessFace `yaml:"faces" toml:"faces"`
	TriangulatedIndex []uint32    `yaml:"triangulated_index" toml:"triangulated_index"`
}

// TessFace is one contiguous run of the shared index buffer contributed by
// one primitive set.
type TessFace struct {
	UsedEntitiesFlag                 uint32   `yaml:"used_entities_flag" toml:"used_entities_flag"`
	StartTriangulated                uint32   `yaml:"start_triangulated" toml:"start_triangulated"`
	SizesTriangulated                []uint32 `yaml:"sizes_triangulated" toml:"sizes_triangulated"`
	NumberOfTextureCoordinateIndexes uint32   `yaml:"number_of_texture_coordinate_indexes" toml:"number_of_texture_coordinate_indexes"`
}

// VertexCount returns the number of positions.
func (t *Tessellation) VertexCount() int {
	return len(t.Coordinates) / 3
}

// HasNormals reports whether per-vertex normals are present.
func (t *Tessellation) HasNormals() bool {
	return len(t.NormalCoordinate) > 0
}

// HasTextures reports whether texture coordinates are present.
func (t *Tessellation) HasTextures() bool {
	return len(t.TextureCoordinate) > 0
}

// Layout returns the index layout faces of t use.
func (t *Tessellation) Layout() IndexLayout {
	return IndexLayout{Normals: t.HasNormals(), Textures: t.HasTextures()}
}

// VertexRefs returns how many vertex references a face's size list stands
// for: 3 per triangle for triangle faces, the explicit count for fan and
// strip faces.
func (f *TessFace) VertexRefs() int {
	switch {
	case f.UsedEntitiesFlag&(FaceTriangleFan|FaceTriangleStripe|FaceTriangleFanTextured|FaceTriangleStripeTextured) != 0:
		n := 0
		// [1, count] pairs
		for i := 1; i < len(f.SizesTriangulated); i += 2 {
			n += int(f.SizesTriangulated[i])
		}
		return n
	default:
		n := 0
		for _, s := range f.SizesTriangulated {
			n += 3 * int(s)
		}
		return n
	}
}
