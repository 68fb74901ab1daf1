package scene

// Color is a linear RGBA color.
type Color [4]float32

// Material is a fixed-function shading description. Exporters memoize by
// pointer identity, so two Materials with equal values are distinct styles.
type Material struct {
	Name      string
	Ambient   Color
	Diffuse   Color
	Emissive  Color
	Specular  Color
	Shininess float32
}
