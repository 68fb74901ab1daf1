package formats

import (
	"errors"
	"fmt"
	"os"
)

// RSW format errors.
var (
	ErrInvalidRSWMagic       = errors.New("invalid RSW magic: expected 'GRSW'")
	ErrUnsupportedRSWVersion = errors.New("unsupported RSW version")
	ErrUnknownObjectType     = errors.New("unknown RSW object type")
)

const maxRSWObjects = 100000

// RSWVersion represents the RSW file version.
type RSWVersion struct {
	Major       uint8
	Minor       uint8
	BuildNumber uint32 // v2.2+
}

// String returns the version as "Major.Minor" or "Major.Minor.Build".
func (v RSWVersion) String() string {
	if v.BuildNumber > 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.BuildNumber)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSWVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSWObjectType is the kind of a placed world object.
type RSWObjectType int32

const (
	RSWObjectModel  RSWObjectType = 1
	RSWObjectLight  RSWObjectType = 2
	RSWObjectSound  RSWObjectType = 3
	RSWObjectEffect RSWObjectType = 4
)

// String returns a human-readable object type name.
func (t RSWObjectType) String() string {
	switch t {
	case RSWObjectModel:
		return "Model"
	case RSWObjectLight:
		return "Light"
	case RSWObjectSound:
		return "Sound"
	case RSWObjectEffect:
		return "Effect"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// RSWModel is an RSM model placed in the world.
type RSWModel struct {
	Name      string
	AnimType  int32
	AnimSpeed float32
	BlockType int32
	ModelName string // RSM path relative to data\model\
	NodeName  string
	Position  [3]float32
	Rotation  [3]float32 // degrees around X, Y, Z
	Scale     [3]float32
}

// RSWObject is a placed world object. Only models keep their payload; the
// other kinds are parsed for their size and name.
type RSWObject struct {
	Type     RSWObjectType
	Name     string
	Position [3]float32
	Model    *RSWModel // set when Type == RSWObjectModel
}

// RSW is a parsed world file, reduced to what model placement needs.
type RSW struct {
	Version RSWVersion
	IniFile string
	GndFile string
	GatFile string // v1.4+
	SrcFile string // v1.4+
	Objects []RSWObject
}

// Models returns the placed models in file order.
func (w *RSW) Models() []*RSWModel {
	var models []*RSWModel
	for _, obj := range w.Objects {
		if obj.Model != nil {
			models = append(models, obj.Model)
		}
	}
	return models
}

// CountByType returns the number of objects of each type.
func (w *RSW) CountByType() map[RSWObjectType]int {
	counts := make(map[RSWObjectType]int)
	for _, obj := range w.Objects {
		counts[obj.Type]++
	}
	return counts
}

// ParseRSW parses a world file, versions 1.2 through 2.6.
func ParseRSW(data []byte) (*RSW, error) {
	r := newBinReader(data)

	magic := r.take(4, "magic")
	if r.err != nil {
		return nil, r.err
	}
	if string(magic) != "GRSW" {
		return nil, ErrInvalidRSWMagic
	}

	w := &RSW{Version: RSWVersion{Major: r.u8("version"), Minor: r.u8("version")}}
	if r.err != nil {
		return nil, r.err
	}
	v := &w.Version
	if !v.AtLeast(1, 2) || v.Major > 2 || (v.Major == 2 && v.Minor > 6) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSWVersion, *v)
	}

	switch {
	case v.AtLeast(2, 5):
		v.BuildNumber = r.u32("build number")
		r.skip(1, "render flag")
	case v.AtLeast(2, 2):
		v.BuildNumber = uint32(r.u8("build number"))
	}

	w.IniFile = r.name(40, "ini file")
	w.GndFile = r.name(40, "gnd file")
	if v.AtLeast(1, 4) {
		w.GatFile = r.name(40, "gat file")
		w.SrcFile = r.name(40, "src file")
	}

	// Water moved to the GND file in 2.6.
	if v.AtLeast(1, 3) && !v.AtLeast(2, 6) {
		r.skip(6*4, "water")
	}
	if v.AtLeast(1, 5) {
		r.skip(2*4+6*4, "light")
	}
	if v.AtLeast(1, 7) {
		r.skip(4, "shadow opacity")
	}
	if v.AtLeast(1, 6) {
		r.skip(4*4, "ground bounds")
	}

	n := r.u32("object count")
	if r.err == nil && n > maxRSWObjects {
		return nil, fmt.Errorf("object count %d exceeds %d", n, maxRSWObjects)
	}
	w.Objects = make([]RSWObject, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		obj, err := parseRSWObject(r, *v)
		if err != nil {
			return nil, fmt.Errorf("parsing object %d: %w", i, err)
		}
		w.Objects = append(w.Objects, obj)
	}

	if r.err != nil {
		return nil, r.err
	}
	return w, nil
}

func parseRSWObject(r *binReader, v RSWVersion) (RSWObject, error) {
	obj := RSWObject{Type: RSWObjectType(r.i32("object type"))}

	switch obj.Type {
	case RSWObjectModel:
		m := &RSWModel{}
		m.Name = r.name(40, "model name")
		m.AnimType = r.i32("anim type")
		m.AnimSpeed = r.f32("anim speed")
		m.BlockType = r.i32("block type")
		if v.AtLeast(2, 6) && v.BuildNumber >= 162 {
			r.skip(1, "collision flags")
		}
		m.ModelName = r.name(80, "model file")
		m.NodeName = r.name(80, "node name")
		m.Position = r.vec3("position")
		m.Rotation = r.vec3("rotation")
		m.Scale = r.vec3("scale")
		obj.Name, obj.Position, obj.Model = m.Name, m.Position, m

	case RSWObjectLight:
		obj.Name = r.name(80, "light name")
		obj.Position = r.vec3("light position")
		r.skip(3*4+4, "light color and range")

	case RSWObjectSound:
		obj.Name = r.name(80, "sound name")
		r.skip(80, "sound file")
		obj.Position = r.vec3("sound position")
		r.skip(4*4, "sound parameters")
		if v.AtLeast(2, 0) {
			r.skip(4, "sound cycle")
		}

	case RSWObjectEffect:
		obj.Name = r.name(80, "effect name")
		obj.Position = r.vec3("effect position")
		r.skip(2*4+4*4, "effect parameters")

	default:
		if r.err != nil {
			return RSWObject{}, r.err
		}
		return RSWObject{}, fmt.Errorf("%w: %d", ErrUnknownObjectType, obj.Type)
	}

	return obj, r.err
}

// ParseRSWFile parses a world file from disk.
func ParseRSWFile(path string) (*RSW, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSW file: %w", err)
	}
	return ParseRSW(data)
}
