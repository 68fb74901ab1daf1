package rsmsrc

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/Faultbox/prcexport/pkg/formats"
	"github.com/Faultbox/prcexport/pkg/scene"
)

// ErrUnsupportedFile is returned for names without a model, ground or
// world extension.
var ErrUnsupportedFile = errors.New("unsupported file type")

// ReadFunc returns the content of a slash-separated file name.
type ReadFunc func(name string) ([]byte, error)

// Loader converts files found through Read. A world's ground and models are
// resolved next to the world file, models under its model directory, which
// matches both extracted data folders and archive paths.
type Loader struct {
	Read    ReadFunc
	Options Options
	// NoGround leaves the ground out of world exports.
	NoGround bool
}

// Load converts an .rsm, .gnd or .rsw file. For worlds, the returned error
// may accompany a usable root; see FromWorld.
func (l *Loader) Load(name string) (*scene.Node, error) {
	name = slashPath(name)
	switch strings.ToLower(path.Ext(name)) {
	case ".rsm":
		rsm, err := l.model(name)
		if err != nil {
			return nil, err
		}
		return newConverter(l.Options).model(rsm, path.Base(name))
	case ".gnd":
		gnd, err := l.ground(name)
		if err != nil {
			return nil, err
		}
		return FromGround(gnd, path.Base(name)), nil
	case ".rsw":
		return l.world(name)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
}

func (l *Loader) world(name string) (*scene.Node, error) {
	data, err := l.Read(name)
	if err != nil {
		return nil, err
	}
	w, err := formats.ParseRSW(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	dir := path.Dir(name)
	var gnd *formats.GND
	if !l.NoGround && w.GndFile != "" {
		if gnd, err = l.ground(path.Join(dir, slashPath(w.GndFile))); err != nil {
			return nil, err
		}
	}

	load := func(model string) (*formats.RSM, error) {
		return l.model(path.Join(dir, "model", slashPath(model)))
	}
	root, err := FromWorld(w, gnd, load, l.Options)
	root.Name = path.Base(name)
	return root, err
}

func (l *Loader) model(name string) (*formats.RSM, error) {
	data, err := l.Read(name)
	if err != nil {
		return nil, err
	}
	rsm, err := formats.ParseRSM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return rsm, nil
}

func (l *Loader) ground(name string) (*formats.GND, error) {
	data, err := l.Read(name)
	if err != nil {
		return nil, err
	}
	gnd, err := formats.ParseGND(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return gnd, nil
}

// slashPath converts the backslash separators used inside RO files.
func slashPath(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}
