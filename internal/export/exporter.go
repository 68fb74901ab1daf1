package export

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/prcexport/internal/logger"
	"github.com/Faultbox/prcexport/pkg/math"
	"github.com/Faultbox/prcexport/pkg/prc"
	"github.com/Faultbox/prcexport/pkg/scene"
)

// Options configure an Exporter.
type Options struct {
	Build BuildOptions
	// DefaultMaterial is registered first and applies wherever the graph
	// sets no material.
	DefaultMaterial prc.Material
}

// DefaultOptions returns the standard exporter options.
func DefaultOptions() Options {
	return Options{
		Build:           DefaultBuildOptions(),
		DefaultMaterial: DefaultMaterial(),
	}
}

// DefaultMaterial is a neutral grey with a soft highlight.
func DefaultMaterial() prc.Material {
	return prc.Material{
		Ambient:   prc.RGBA{R: 0, G: 0, B: 0, A: 1},
		Diffuse:   prc.RGBA{R: 0.7, G: 0.7, B: 0.7, A: 1},
		Emissive:  prc.RGBA{R: 0, G: 0, B: 0, A: 1},
		Specular:  prc.RGBA{R: 0.3, G: 0.3, B: 0.3, A: 1},
		Alpha:     1,
		Shininess: 16,
	}
}

// Stats counts what an export emitted.
type Stats struct {
	Groups               int
	Meshes               int
	Styles               int
	Triangles            int
	SkippedGeometries    int
	SkippedPrimitiveSets int
}

// traversalContext is the state threaded through the walk: the style
// stack and the material memo, keyed by material identity.
type traversalContext struct {
	styles StyleStack
	memo   map[*scene.Material]prc.StyleHandle
}

// Exporter walks a scene graph into a prc.Sink. An Exporter runs one
// export; it is not safe for concurrent use.
type Exporter struct {
	sink    prc.Sink
	builder *MeshBuilder
	tc      *traversalContext
	diag    error
	stats   Stats
	done    bool
}

// New registers the default material with sink and returns an Exporter
// with that style pushed as the outermost level.
func New(sink prc.Sink, opts Options) (*Exporter, error) {
	e := &Exporter{
		sink:    sink,
		builder: NewMeshBuilder(opts.Build),
		tc: &traversalContext{
			memo: make(map[*scene.Material]prc.StyleHandle),
		},
	}

	h, err := sink.RegisterMaterial(opts.DefaultMaterial)
	if err != nil {
		return nil, fmt.Errorf("%w: registering default material: %w", ErrSinkFailure, err)
	}
	e.stats.Styles++
	e.tc.styles.Push()
	e.tc.styles.SetCurrent(h)

	return e, nil
}

// Export walks root depth-first and finishes the sink. Problems local to a
// geometry or primitive set are logged and collected in Diagnostics; only
// sink failures stop the walk, and they are returned wrapping
// ErrSinkFailure. A nil root exports an empty container.
func (e *Exporter) Export(root *scene.Node) error {
	if e.done {
		return ErrExportFinished
	}
	e.done = true

	if root != nil {
		if err := e.visit(e.tc, root); err != nil {
			return err
		}
	}

	if err := e.sink.Finish(); err != nil {
		return fmt.Errorf("%w: finish: %w", ErrSinkFailure, err)
	}

	logger.Info("export finished",
		zap.Int("groups", e.stats.Groups),
		zap.Int("meshes", e.stats.Meshes),
		zap.Int("styles", e.stats.Styles),
		zap.Int("triangles", e.stats.Triangles),
		zap.Int("skippedGeometries", e.stats.SkippedGeometries),
		zap.Int("skippedPrimitiveSets", e.stats.SkippedPrimitiveSets))
	return nil
}

// Diagnostics returns every non-fatal problem met so far, combined with
// multierr. Use multierr.Errors to list them.
func (e *Exporter) Diagnostics() error {
	return e.diag
}

// Stats returns the export counters.
func (e *Exporter) Stats() Stats {
	return e.stats
}

// visit handles one node. The deferred calls close the group and pop the
// style level on every return path, so nesting stays balanced even when a
// sink failure unwinds the walk.
func (e *Exporter) visit(tc *traversalContext, n *scene.Node) error {
	tc.styles.Push()
	defer tc.styles.Pop()

	if err := e.applyMaterial(tc, n.Material); err != nil {
		return err
	}

	var xf *math.Mat4
	switch n.Kind {
	case scene.KindTransform:
		m := n.Matrix
		xf = &m
	case scene.KindGroup, scene.KindGeode:
	default:
		logger.Warn("unknown node kind, exporting as group",
			zap.String("node", n.Name),
			zap.Stringer("kind", n.Kind))
	}

	e.sink.BeginGroup(n.Name, xf)
	e.stats.Groups++
	defer e.sink.EndGroup()

	if n.Kind == scene.KindGeode {
		for i, g := range n.Geometries {
			if g == nil {
				continue
			}
			if err := e.visitGeometry(tc, n, i, g); err != nil {
				return err
			}
		}
	}

	for _, c := range n.Children {
		if c == nil {
			continue
		}
		if err := e.visit(tc, c); err != nil {
			return err
		}
	}
	return nil
}

// visitGeometry exports one geometry of a geode under its own style level,
// so a geometry's material does not leak to its siblings.
func (e *Exporter) visitGeometry(tc *traversalContext, n *scene.Node, i int, g *scene.Geometry) error {
	tc.styles.Push()
	defer tc.styles.Pop()

	if err := e.applyMaterial(tc, g.Material); err != nil {
		return err
	}

	tess, err := e.builder.BuildTessellation(g)
	bs := e.builder.Stats()
	e.stats.SkippedPrimitiveSets += bs.SkippedPrimitiveSets
	if w := e.builder.Warnings(); w != nil {
		e.diag = multierr.Append(e.diag, fmt.Errorf("node %q geometry %d: %w", n.Name, i, w))
	}
	if err != nil {
		e.stats.SkippedGeometries++
		e.diag = multierr.Append(e.diag, fmt.Errorf("node %q geometry %d: %w", n.Name, i, err))
		logger.Warn("geometry skipped",
			zap.String("node", n.Name),
			zap.Int("geometry", i),
			zap.Error(err))
		return nil
	}

	mesh, err := e.sink.RegisterTessellation(tess)
	if err != nil {
		return fmt.Errorf("%w: registering tessellation of %q: %w", ErrSinkFailure, n.Name, err)
	}
	e.sink.BindMesh(mesh, tc.styles.Current())

	e.stats.Meshes++
	e.stats.Triangles += bs.Triangles
	logger.Debug("geometry exported",
		zap.String("node", n.Name),
		zap.Int("geometry", i),
		zap.Int("vertices", tess.VertexCount()),
		zap.Int("faces", bs.Faces),
		zap.Int("triangles", bs.Triangles))
	return nil
}

// applyMaterial makes m the current style, registering it on first sight.
// A nil material leaves the inherited style in place.
func (e *Exporter) applyMaterial(tc *traversalContext, m *scene.Material) error {
	if m == nil {
		return nil
	}
	h, err := e.styleFor(tc, m)
	if err != nil {
		return err
	}
	tc.styles.SetCurrent(h)
	return nil
}

// styleFor returns the memoized style of m. Materials are keyed by
// identity: equal values in distinct Materials get distinct styles.
func (e *Exporter) styleFor(tc *traversalContext, m *scene.Material) (prc.StyleHandle, error) {
	if h, ok := tc.memo[m]; ok {
		return h, nil
	}
	h, err := e.sink.RegisterMaterial(toPRC(m))
	if err != nil {
		return prc.NoStyle, fmt.Errorf("%w: registering material %q: %w", ErrSinkFailure, m.Name, err)
	}
	tc.memo[m] = h
	e.stats.Styles++
	return h, nil
}

// toPRC converts a scene material. Alpha is always opaque.
func toPRC(m *scene.Material) prc.Material {
	return prc.Material{
		Ambient:   rgba(m.Ambient),
		Diffuse:   rgba(m.Diffuse),
		Emissive:  rgba(m.Emissive),
		Specular:  rgba(m.Specular),
		Alpha:     1,
		Shininess: float64(m.Shininess),
	}
}

func rgba(c scene.Color) prc.RGBA {
	return prc.RGBA{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
}
