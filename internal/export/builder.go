// Package export converts a scene graph into a PRC-style tessellated
// container: a depth-first walk emitting nested groups, styles and one
// triangle tessellation per geometry to a prc.Sink.
package export

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/prcexport/internal/logger"
	"github.com/Faultbox/prcexport/pkg/prc"
	"github.com/Faultbox/prcexport/pkg/scene"
)

// BuildOptions control tessellation assembly.
type BuildOptions struct {
	// CreaseAngle is set on tessellations without normals.
	CreaseAngle float64
	// DropInvalidNormals exports a geometry without normals when its normal
	// array has an unsupported layout, instead of skipping the geometry.
	DropInvalidNormals bool
}

// DefaultBuildOptions returns the standard options.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{CreaseAngle: prc.DefaultCreaseAngle}
}

// BuildStats describes the most recent BuildTessellation call.
type BuildStats struct {
	Faces                int
	Triangles            int
	SkippedPrimitiveSets int
}

// MeshBuilder turns geometries into tessellations. It keeps per-call state
// and is not safe for concurrent use; use one builder per worker.
type MeshBuilder struct {
	opts     BuildOptions
	stats    BuildStats
	warnings error
}

// NewMeshBuilder returns a builder using opts.
func NewMeshBuilder(opts BuildOptions) *MeshBuilder {
	return &MeshBuilder{opts: opts}
}

// Stats returns counters for the last build.
func (b *MeshBuilder) Stats() BuildStats {
	return b.stats
}

// Warnings returns the non-fatal problems of the last build, combined with
// multierr, or nil.
func (b *MeshBuilder) Warnings() error {
	return b.warnings
}

// tessState is the per-geometry conversion state. acc is the shared index
// accumulator: the number of TriangulatedIndex entries written so far.
type tessState struct {
	tess        *prc.Tessellation
	layout      prc.IndexLayout
	vertexCount int
	acc         uint32
}

// BuildTessellation converts g. It fails with ErrUnsupportedArrayType when
// the positions (or, unless DropInvalidNormals is set, the normals) are not
// 3-component arrays. Primitive sets that cannot be converted are skipped
// and reported through Warnings.
func (b *MeshBuilder) BuildTessellation(g *scene.Geometry) (*prc.Tessellation, error) {
	b.stats = BuildStats{}
	b.warnings = nil

	verts, ok := g.Vertices.(scene.Vec3Array)
	if !ok {
		return nil, fmt.Errorf("%w: vertices are %s", ErrUnsupportedArrayType, scene.Describe(g.Vertices))
	}

	tess := &prc.Tessellation{
		Coordinates: make([]float64, 0, 3*len(verts)),
	}
	for _, v := range verts {
		tess.Coordinates = append(tess.Coordinates, float64(v[0]), float64(v[1]), float64(v[2]))
	}

	if err := b.copyNormals(tess, g.Normals, len(verts)); err != nil {
		return nil, err
	}
	if !tess.HasNormals() {
		tess.CreaseAngle = b.opts.CreaseAngle
	}

	st := &tessState{
		tess:        tess,
		layout:      tess.Layout(),
		vertexCount: len(verts),
	}

	for i, ps := range g.PrimitiveSets {
		if err := b.convert(st, ps); err != nil {
			b.stats.SkippedPrimitiveSets++
			b.warnings = multierr.Append(b.warnings, fmt.Errorf("primitive set %d: %w", i, err))
			logger.Warn("primitive set skipped",
				zap.Int("primitiveSet", i),
				zap.String("type", fmt.Sprintf("%T", ps)),
				zap.Error(err))
		}
	}

	b.stats.Faces = len(tess.Faces)
	return tess, nil
}

// copyNormals fills NormalCoordinate. A normal array whose length differs
// from the vertex count is taken as one normal shared by the whole
// geometry and its first element is replicated per vertex.
func (b *MeshBuilder) copyNormals(tess *prc.Tessellation, normals scene.Array, vertexCount int) error {
	if normals == nil || normals.Len() == 0 {
		return nil
	}

	n, ok := normals.(scene.Vec3Array)
	if !ok {
		err := fmt.Errorf("%w: normals are %s", ErrUnsupportedArrayType, scene.Describe(normals))
		if !b.opts.DropInvalidNormals {
			return err
		}
		b.warnings = multierr.Append(b.warnings, err)
		logger.Warn("normals dropped", zap.Error(err))
		return nil
	}

	tess.NormalCoordinate = make([]float64, 0, 3*vertexCount)
	if len(n) == vertexCount {
		for _, v := range n {
			tess.NormalCoordinate = append(tess.NormalCoordinate, float64(v[0]), float64(v[1]), float64(v[2]))
		}
		return nil
	}

	shared := n[0]
	for i := 0; i < vertexCount; i++ {
		tess.NormalCoordinate = append(tess.NormalCoordinate, float64(shared[0]), float64(shared[1]), float64(shared[2]))
	}
	return nil
}

// convert dispatches one primitive set. DrawArrayLengths becomes one face
// per run; a failing run does not stop the following ones.
func (b *MeshBuilder) convert(st *tessState, ps scene.PrimitiveSet) error {
	if ps == nil {
		return ErrNilPrimitiveSet
	}
	switch p := ps.(type) {
	case scene.DrawArrays:
		_, err := b.convertRange(st, p.Mode, p.First, p.Count)
		return err
	case scene.DrawArrayLengths:
		var errs error
		first := p.First
		for _, n := range p.Lengths {
			if _, err := b.convertRange(st, p.Mode, first, n); err != nil {
				errs = multierr.Append(errs, err)
			}
			if n > 0 && first > math.MaxInt-n {
				first = math.MaxInt
				continue
			}
			first += n
		}
		return errs
	}

	if d, ok := scene.Widen(ps); ok {
		_, err := b.convertIndexed(st, d.Mode, d.Indices)
		return err
	}
	return fmt.Errorf("%w: %T", ErrUnsupportedTopology, ps)
}

// convertRange appends the face for vertices [first, first+count).
func (b *MeshBuilder) convertRange(st *tessState, mode scene.Mode, first, count int) (*prc.TessFace, error) {
	flag, err := faceFlag(mode, st.layout.Textures)
	if err != nil {
		return nil, err
	}
	if first < 0 || count < 0 || first > st.vertexCount || count > st.vertexCount-first {
		return nil, fmt.Errorf("%w: %d vertices from %d over %d vertices", ErrIndexOutOfRange, count, first, st.vertexCount)
	}

	idx := make([]uint32, count)
	for i := range idx {
		idx[i] = uint32(first + i)
	}
	return b.appendFace(st, mode, flag, idx, rangeQuad), nil
}

// convertIndexed appends the face for an explicit index list.
func (b *MeshBuilder) convertIndexed(st *tessState, mode scene.Mode, indices []uint32) (*prc.TessFace, error) {
	flag, err := faceFlag(mode, st.layout.Textures)
	if err != nil {
		return nil, err
	}
	for _, v := range indices {
		if int(v) >= st.vertexCount {
			return nil, fmt.Errorf("%w: index %d over %d vertices", ErrIndexOutOfRange, v, st.vertexCount)
		}
	}
	return b.appendFace(st, mode, flag, indices, indexedQuad), nil
}

// quadSplit lowers one quad to two triangles.
type quadSplit func(q0, q1, q2, q3 uint32) [6]uint32

// rangeQuad splits along the v0-v2 diagonal.
func rangeQuad(q0, q1, q2, q3 uint32) [6]uint32 {
	return [6]uint32{q0, q1, q2, q0, q2, q3}
}

// indexedQuad splits along the v1-v3 diagonal, unlike rangeQuad.
func indexedQuad(q0, q1, q2, q3 uint32) [6]uint32 {
	return [6]uint32{q0, q1, q3, q3, q1, q2}
}

// appendFace writes idx in mode's layout, appends the face and advances the
// accumulator by the entries written. Trailing indices that do not complete
// a triangle or quad are dropped.
func (b *MeshBuilder) appendFace(st *tessState, mode scene.Mode, flag uint32, idx []uint32, split quadSplit) *prc.TessFace {
	face := &prc.TessFace{
		UsedEntitiesFlag:  flag,
		StartTriangulated: st.acc,
	}
	if st.layout.Textures {
		face.NumberOfTextureCoordinateIndexes = 1
	}

	buf := st.tess.TriangulatedIndex
	before := len(buf)

	switch mode {
	case scene.Triangles:
		n := len(idx) / 3
		for _, v := range idx[:3*n] {
			buf = st.layout.Append(buf, v)
		}
		face.SizesTriangulated = []uint32{uint32(n)}
		b.stats.Triangles += n

	case scene.TriangleFan, scene.TriangleStrip:
		for _, v := range idx {
			buf = st.layout.Append(buf, v)
		}
		face.SizesTriangulated = []uint32{1, uint32(len(idx))}
		b.stats.Triangles += max(len(idx)-2, 0)

	case scene.Quads:
		k := len(idx) / 4
		for q := 0; q < k; q++ {
			tri := split(idx[4*q], idx[4*q+1], idx[4*q+2], idx[4*q+3])
			for _, v := range tri {
				buf = st.layout.Append(buf, v)
			}
		}
		face.SizesTriangulated = []uint32{uint32(2 * k)}
		b.stats.Triangles += 2 * k
	}

	st.tess.TriangulatedIndex = buf
	st.acc += uint32(len(buf) - before)
	st.tess.Faces = append(st.tess.Faces, face)
	return face
}

// faceFlag maps a topology to its face data flag. Quads are stored as
// triangles.
func faceFlag(mode scene.Mode, textured bool) (uint32, error) {
	switch mode {
	case scene.Triangles, scene.Quads:
		if textured {
			return prc.FaceTriangleTextured, nil
		}
		return prc.FaceTriangle, nil
	case scene.TriangleFan:
		if textured {
			return prc.FaceTriangleFanTextured, nil
		}
		return prc.FaceTriangleFan, nil
	case scene.TriangleStrip:
		if textured {
			return prc.FaceTriangleStripeTextured, nil
		}
		return prc.FaceTriangleStripe, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedTopology, mode)
}
