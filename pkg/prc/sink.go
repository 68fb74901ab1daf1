package prc

import "github.com/Faultbox/prcexport/pkg/math"

// StyleHandle identifies a registered material. NoStyle is never returned
// by a sink.
type StyleHandle uint32

// MeshHandle identifies a registered tessellation.
type MeshHandle uint32

// NoStyle is the zero handle.
const NoStyle StyleHandle = 0

// RGBA is a color with float components.
type RGBA struct {
	R float64 `yaml:"r" toml:"r"`
	G float64 `yaml:"g" toml:"g"`
	B float64 `yaml:"b" toml:"b"`
	A float64 `yaml:"a" toml:"a"`
}

// Material is the shading description registered with a sink.
type Material struct {
	Ambient   RGBA    `yaml:"ambient" toml:"ambient"`
	Diffuse   RGBA    `yaml:"diffuse" toml:"diffuse"`
	Emissive  RGBA    `yaml:"emissive" toml:"emissive"`
	Specular  RGBA    `yaml:"specular" toml:"specular"`
	Alpha     float64 `yaml:"alpha" toml:"alpha"`
	Shininess float64 `yaml:"shininess" toml:"shininess"`
}

// Sink receives the exported container. Groups nest: every BeginGroup is
// matched by one EndGroup. Meshes are bound to the innermost open group.
type Sink interface {
	BeginGroup(name string, transform *math.Mat4)
	EndGroup()
	RegisterMaterial(m Material) (StyleHandle, error)
	RegisterTessellation(t *Tessellation) (MeshHandle, error)
	BindMesh(mesh MeshHandle, style StyleHandle)
	Finish() error
}
