package rsmsrc

import (
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/prcexport/internal/logger"
	"github.com/Faultbox/prcexport/pkg/formats"
	"github.com/Faultbox/prcexport/pkg/math"
	"github.com/Faultbox/prcexport/pkg/scene"
)

// ModelLoader resolves a model path from a map's object list.
type ModelLoader func(name string) (*formats.RSM, error)

// FromWorld converts a map into one tree: the ground geode, if gnd is
// non-nil, followed by a placement transform per model object. Each model
// file is converted once and shared between its placements.
//
// Models that fail to load or convert are skipped. The root is returned
// together with the combined error of everything skipped, so callers can
// export a partial map.
func FromWorld(w *formats.RSW, gnd *formats.GND, load ModelLoader, opts Options) (*scene.Node, error) {
	c := newConverter(opts)
	root := scene.NewGroup("world")

	var offX, offZ float32
	if gnd != nil {
		root.AddChild(c.ground(gnd, "ground"))
		offX = float32(gnd.Width) * gnd.Zoom / 2
		offZ = float32(gnd.Height) * gnd.Zoom / 2
	}

	type cached struct {
		node *scene.Node
		err  error
	}
	models := make(map[string]cached)

	var errs error
	placed := 0
	for i, m := range w.Models() {
		entry, ok := models[m.ModelName]
		if !ok {
			entry.node, entry.err = c.loadModel(m.ModelName, load)
			models[m.ModelName] = entry
			if entry.err != nil {
				logger.Warn("skipping map model",
					zap.String("model", m.ModelName),
					zap.Error(entry.err))
				errs = multierr.Append(errs, entry.err)
			}
		}
		if entry.err != nil {
			continue
		}

		name := m.Name
		if name == "" {
			name = fmt.Sprintf("model%d", i)
		}
		root.AddChild(scene.NewTransform(name, placement(m, offX, offZ), entry.node))
		placed++
	}

	logger.Debug("map converted",
		zap.Int("placed", placed),
		zap.Int("models", len(models)),
		zap.Int("failed", len(multierr.Errors(errs))))
	return root, errs
}

func (c *converter) loadModel(name string, load ModelLoader) (*scene.Node, error) {
	rsm, err := load(name)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return c.model(rsm, name)
}

// placement maps an object's map-space position, rotation in degrees and
// scale into ground space. Map positions are centred on the ground and
// their Y axis points down.
func placement(m *formats.RSWModel, offX, offZ float32) math.Mat4 {
	t := math.Translate(m.Position[0]+offX, -m.Position[1], m.Position[2]+offZ)
	t = t.Mul(math.RotateAxis(math.Vec3{Y: 1}, radians(m.Rotation[1])))
	t = t.Mul(math.RotateAxis(math.Vec3{X: 1}, radians(m.Rotation[0])))
	t = t.Mul(math.RotateAxis(math.Vec3{Z: 1}, radians(m.Rotation[2])))
	return t.Mul(math.Scale(m.Scale[0], m.Scale[1], m.Scale[2]))
}

func radians(deg float32) float32 {
	return deg * math32.Pi / 180
}
