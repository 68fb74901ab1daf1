package rsmsrc

import (
	"sort"

	"github.com/Faultbox/prcexport/pkg/formats"
	"github.com/Faultbox/prcexport/pkg/scene"
)

// quadBatch accumulates the quads of one ground texture.
type quadBatch struct {
	verts   scene.Vec3Array
	uvs     scene.Vec2Array
	indices []uint32
}

// add appends one quad given corners in bottom-left, bottom-right,
// top-left, top-right order, the layout tiles and surfaces share.
func (b *quadBatch) add(corners [4][3]float32, s *formats.GNDSurface) {
	base := uint32(len(b.verts))
	for i, p := range corners {
		b.verts = append(b.verts, p)
		b.uvs = append(b.uvs, [2]float32{s.U[i], s.V[i]})
	}
	b.indices = append(b.indices, base, base+1, base+3, base+2)
}

// FromGround converts a ground mesh into a geode with one Quads geometry
// per texture. Tile tops, front walls and right walls are emitted where
// the tile references a surface. Altitudes grow downward in the file and
// are negated here; x and z advance by Zoom per tile.
func FromGround(gnd *formats.GND, name string) *scene.Node {
	c := newConverter(Options{})
	return c.ground(gnd, name)
}

func (c *converter) ground(gnd *formats.GND, name string) *scene.Node {
	batches := make(map[int]*quadBatch)
	emit := func(surface int32, corners [4][3]float32) {
		s := gnd.Surface(surface)
		if s == nil {
			return
		}
		tex := int(s.TextureID)
		if tex < 0 || tex >= len(gnd.Textures) {
			tex = untextured
		}
		b := batches[tex]
		if b == nil {
			b = &quadBatch{}
			batches[tex] = b
		}
		b.add(corners, s)
	}

	z := gnd.Zoom
	for y := 0; y < gnd.Height; y++ {
		for x := 0; x < gnd.Width; x++ {
			t := gnd.Tile(x, y)
			x0, x1 := float32(x)*z, float32(x+1)*z
			z0, z1 := float32(y)*z, float32(y+1)*z
			h := t.Altitude

			emit(t.TopSurface, [4][3]float32{
				{x0, -h[0], z0}, {x1, -h[1], z0},
				{x0, -h[2], z1}, {x1, -h[3], z1},
			})

			if n := gnd.Tile(x, y+1); n != nil {
				emit(t.FrontSurface, [4][3]float32{
					{x0, -h[2], z1}, {x1, -h[3], z1},
					{x0, -n.Altitude[0], z1}, {x1, -n.Altitude[1], z1},
				})
			}
			if n := gnd.Tile(x+1, y); n != nil {
				emit(t.RightSurface, [4][3]float32{
					{x1, -h[3], z1}, {x1, -h[1], z0},
					{x1, -n.Altitude[2], z1}, {x1, -n.Altitude[0], z0},
				})
			}
		}
	}

	textures := make([]int, 0, len(batches))
	for tex := range batches {
		textures = append(textures, tex)
	}
	sort.Ints(textures)

	geode := scene.NewGeode(name)
	for _, tex := range textures {
		b := batches[tex]
		texture := ""
		if tex != untextured {
			texture = gnd.Textures[tex]
		}
		geode.Geometries = append(geode.Geometries, &scene.Geometry{
			Vertices:      b.verts,
			TexCoords:     b.uvs,
			PrimitiveSets: []scene.PrimitiveSet{scene.DrawElementsUInt{Mode: scene.Quads, Indices: b.indices}},
			Material:      c.material(texture, 1),
		})
	}
	return geode
}
