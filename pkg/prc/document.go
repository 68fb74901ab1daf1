package prc

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/prcexport/pkg/math"
)

// Document errors.
var (
	ErrUnbalancedGroups = errors.New("unbalanced groups")
	ErrNoOpenGroup      = errors.New("no open group")
	ErrUnknownHandle    = errors.New("unknown handle")
	ErrUnknownFormat    = errors.New("unknown document format")
)

// ContainerVersion is written into every encoded document.
const ContainerVersion = 1

// Format selects the document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts "yaml", "yml" or "toml", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Group is one nesting level of the container.
type Group struct {
	Name      string    `yaml:"name" toml:"name"`
	Transform []float64 `yaml:"transform,omitempty" toml:"transform,omitempty"`
	Meshes    []Binding `yaml:"meshes,omitempty" toml:"meshes,omitempty"`
	Children  []*Group  `yaml:"children,omitempty" toml:"children,omitempty"`
}

// Binding attaches a registered mesh to a group with a style.
type Binding struct {
	Mesh  MeshHandle  `yaml:"mesh" toml:"mesh"`
	Style StyleHandle `yaml:"style" toml:"style"`
}

// Contents is the serializable form of a Document. Handles are 1-based
// positions in Styles and Tessellations.
type Contents struct {
	Version       int             `yaml:"version" toml:"version"`
	Styles        []Material      `yaml:"styles" toml:"styles"`
	Tessellations []*Tessellation `yaml:"tessellations" toml:"tessellations"`
	Groups        []*Group        `yaml:"groups" toml:"groups"`
}

// Document is an in-memory Sink. On Finish it checks the group protocol and
// encodes itself to its writer, if any. A Document is single-writer.
type Document struct {
	contents Contents
	open     []*Group
	w        io.Writer
	format   Format
	err      error
}

// NewDocument returns a Document that encodes to w in the given format on
// Finish. w may be nil to keep the document in memory only.
func NewDocument(w io.Writer, format Format) *Document {
	return &Document{
		contents: Contents{Version: ContainerVersion},
		w:        w,
		format:   format,
	}
}

// BeginGroup opens a group nested in the current one.
func (d *Document) BeginGroup(name string, transform *math.Mat4) {
	g := &Group{Name: name}
	if transform != nil {
		m := transform.Float64()
		g.Transform = m[:]
	}
	if len(d.open) == 0 {
		d.contents.Groups = append(d.contents.Groups, g)
	} else {
		parent := d.open[len(d.open)-1]
		parent.Children = append(parent.Children, g)
	}
	d.open = append(d.open, g)
}

// EndGroup closes the current group.
func (d *Document) EndGroup() {
	if len(d.open) == 0 {
		d.fail(fmt.Errorf("EndGroup: %w", ErrNoOpenGroup))
		return
	}
	d.open = d.open[:len(d.open)-1]
}

// RegisterMaterial appends a style and returns its handle.
func (d *Document) RegisterMaterial(m Material) (StyleHandle, error) {
	d.contents.Styles = append(d.contents.Styles, m)
	return StyleHandle(len(d.contents.Styles)), nil
}

// RegisterTessellation appends a tessellation and returns its handle.
func (d *Document) RegisterTessellation(t *Tessellation) (MeshHandle, error) {
	if t == nil {
		return 0, errors.New("nil tessellation")
	}
	d.contents.Tessellations = append(d.contents.Tessellations, t)
	return MeshHandle(len(d.contents.Tessellations)), nil
}

// BindMesh attaches mesh to the current group.
func (d *Document) BindMesh(mesh MeshHandle, style StyleHandle) {
	if len(d.open) == 0 {
		d.fail(fmt.Errorf("BindMesh: %w", ErrNoOpenGroup))
		return
	}
	if mesh == 0 || int(mesh) > len(d.contents.Tessellations) {
		d.fail(fmt.Errorf("BindMesh: %w: mesh %d", ErrUnknownHandle, mesh))
		return
	}
	if int(style) > len(d.contents.Styles) {
		d.fail(fmt.Errorf("BindMesh: %w: style %d", ErrUnknownHandle, style))
		return
	}
	g := d.open[len(d.open)-1]
	g.Meshes = append(g.Meshes, Binding{Mesh: mesh, Style: style})
}

// Finish validates the group protocol and writes the encoded document.
func (d *Document) Finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.open) != 0 {
		return fmt.Errorf("%w: %d still open", ErrUnbalancedGroups, len(d.open))
	}
	if d.w == nil {
		return nil
	}
	if err := Encode(d.w, d.format, &d.contents); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}

// Contents returns the document built so far.
func (d *Document) Contents() *Contents {
	return &d.contents
}

// Depth returns the number of open groups.
func (d *Document) Depth() int {
	return len(d.open)
}

func (d *Document) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Encode writes c to w.
func Encode(w io.Writer, f Format, c *Contents) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(c)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Decode reads a document previously written by Encode.
func Decode(r io.Reader, f Format) (*Contents, error) {
	c := &Contents{}
	switch f {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(c); err != nil {
			return nil, err
		}
	case FormatTOML:
		if err := toml.NewDecoder(r).Decode(c); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if c.Version != ContainerVersion {
		return nil, fmt.Errorf("unsupported container version %d", c.Version)
	}
	return c, nil
}
