package prc

// IndexLayout describes how one vertex reference is spelled in a
// TriangulatedIndex buffer. Each reference writes, in order: the normal
// index (if Normals), the texture index (if Textures), then the position
// index. Indices are pre-multiplied by their attribute stride: 3 for
// normals and positions, 2 for texture coordinates.
type IndexLayout struct {
	Normals  bool
	Textures bool
}

const (
	coordStride   = 3
	textureStride = 2
)

// Stride returns the number of buffer entries per vertex reference.
func (l IndexLayout) Stride() int {
	n := 1
	if l.Normals {
		n++
	}
	if l.Textures {
		n++
	}
	return n
}

// Append writes the entries for vertex v to buf.
func (l IndexLayout) Append(buf []uint32, v uint32) []uint32 {
	if l.Normals {
		buf = append(buf, coordStride*v)
	}
	if l.Textures {
		buf = append(buf, textureStride*v)
	}
	return append(buf, coordStride*v)
}

// Ref is a decoded vertex reference. Normal and Texture are -1 when the
// layout does not carry them.
type Ref struct {
	Normal   int
	Texture  int
	Position int
}

// Decode reads the vertex reference starting at buf[at] and returns element
// indices with the stride divided out.
func (l IndexLayout) Decode(buf []uint32, at int) Ref {
	r := Ref{Normal: -1, Texture: -1}
	if l.Normals {
		r.Normal = int(buf[at]) / coordStride
		at++
	}
	if l.Textures {
		r.Texture = int(buf[at]) / textureStride
		at++
	}
	r.Position = int(buf[at]) / coordStride
	return r
}
