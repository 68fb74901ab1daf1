package scene

import "fmt"

// Array is a per-vertex attribute array. The concrete type carries the
// element layout; consumers type-switch to accept the layouts they support.
type Array interface {
	Len() int
}

// Vec3Array holds 3-component float elements.
type Vec3Array [][3]float32

// Len returns the element count.
func (a Vec3Array) Len() int { return len(a) }

// Vec2Array holds 2-component float elements.
type Vec2Array [][2]float32

// Len returns the element count.
func (a Vec2Array) Len() int { return len(a) }

// Vec4Array holds 4-component float elements.
type Vec4Array [][4]float32

// Len returns the element count.
func (a Vec4Array) Len() int { return len(a) }

// FloatArray holds scalar float elements.
type FloatArray []float32

// Len returns the element count.
func (a FloatArray) Len() int { return len(a) }

// RawArray describes elements in a layout this package has no type for,
// such as quantized integer positions.
type RawArray struct {
	Count  int
	Layout string
}

// Len returns the element count.
func (a RawArray) Len() int { return a.Count }

// Describe returns a short layout name for diagnostics.
func Describe(a Array) string {
	switch v := a.(type) {
	case nil:
		return "none"
	case Vec3Array:
		return "vec3"
	case Vec2Array:
		return "vec2"
	case Vec4Array:
		return "vec4"
	case FloatArray:
		return "float"
	case RawArray:
		return v.Layout
	default:
		return fmt.Sprintf("%T", a)
	}
}
