package formats

import (
	"errors"
	"fmt"
	"os"
)

// GND format errors.
var (
	ErrInvalidGNDMagic       = errors.New("invalid GND magic: expected 'GRGN'")
	ErrUnsupportedGNDVersion = errors.New("unsupported GND version")
)

const (
	maxGNDSide     = 1024
	maxGNDTextures = 4096
	maxGNDSurfaces = 1 << 22
)

// GNDVersion represents the GND file version.
type GNDVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v GNDVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// GNDSurface is a textured quad referenced by tiles.
type GNDSurface struct {
	U         [4]float32
	V         [4]float32
	TextureID int16 // -1 = untextured
	Color     [4]uint8
}

// GNDTile is one cell of the ground grid. Altitudes are ordered
// bottom-left, bottom-right, top-left, top-right; surface IDs are -1 when
// the face is absent.
type GNDTile struct {
	Altitude     [4]float32
	TopSurface   int32
	FrontSurface int32
	RightSurface int32
}

// GND is a parsed ground mesh. Lightmaps are skipped.
type GND struct {
	Version  GNDVersion
	Width    int
	Height   int
	Zoom     float32 // tile edge length in world units
	Textures []string
	Surfaces []GNDSurface
	Tiles    []GNDTile
}

// Tile returns the tile at x, y, or nil outside the grid.
func (g *GND) Tile(x, y int) *GNDTile {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return nil
	}
	return &g.Tiles[y*g.Width+x]
}

// Surface returns the surface with the given ID, or nil for -1 and
// dangling IDs.
func (g *GND) Surface(id int32) *GNDSurface {
	if id < 0 || int(id) >= len(g.Surfaces) {
		return nil
	}
	return &g.Surfaces[id]
}

// ParseGND parses a ground file, versions 1.5 through 1.9.
func ParseGND(data []byte) (*GND, error) {
	r := newBinReader(data)

	magic := r.take(4, "magic")
	if r.err != nil {
		return nil, r.err
	}
	if string(magic) != "GRGN" {
		return nil, ErrInvalidGNDMagic
	}

	g := &GND{Version: GNDVersion{Major: r.u8("version"), Minor: r.u8("version")}}
	if r.err != nil {
		return nil, r.err
	}
	if g.Version.Major != 1 || g.Version.Minor < 5 || g.Version.Minor > 9 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGNDVersion, g.Version)
	}

	w, h := r.u32("width"), r.u32("height")
	g.Zoom = r.f32("zoom")
	if r.err != nil {
		return nil, r.err
	}
	if w == 0 || h == 0 || w > maxGNDSide || h > maxGNDSide {
		return nil, fmt.Errorf("invalid GND dimensions: %dx%d", w, h)
	}
	g.Width, g.Height = int(w), int(h)

	g.Textures = make([]string, r.count("texture count", maxGNDTextures))
	nameLen := r.count("texture name length", 256)
	for i := range g.Textures {
		g.Textures[i] = r.name(nameLen, "texture name")
	}

	lmCount := r.count("lightmap count", maxGNDSurfaces)
	lmW, lmH, lmCells := r.count("lightmap width", 64), r.count("lightmap height", 64), r.count("lightmap cells", 16)
	r.skip(lmCount*lmW*lmH*lmCells*4, "lightmaps")

	g.Surfaces = make([]GNDSurface, r.count("surface count", maxGNDSurfaces))
	for i := range g.Surfaces {
		s := &g.Surfaces[i]
		for j := range s.U {
			s.U[j] = r.f32("surface u")
		}
		for j := range s.V {
			s.V[j] = r.f32("surface v")
		}
		s.TextureID = int16(r.u16("surface texture"))
		r.skip(2, "surface lightmap")
		copy(s.Color[:], r.take(4, "surface color"))
	}

	g.Tiles = make([]GNDTile, g.Width*g.Height)
	for i := range g.Tiles {
		t := &g.Tiles[i]
		for j := range t.Altitude {
			t.Altitude[j] = r.f32("tile altitude")
		}
		t.TopSurface = r.i32("tile top")
		t.FrontSurface = r.i32("tile front")
		t.RightSurface = r.i32("tile right")
	}

	if r.err != nil {
		return nil, r.err
	}
	return g, nil
}

// ParseGNDFile parses a ground file from disk.
func ParseGNDFile(path string) (*GND, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading GND file: %w", err)
	}
	return ParseGND(data)
}
