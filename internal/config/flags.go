package config

import (
	"flag"
	"strings"
)

// Flags are the command-line overrides shared by the export commands.
type Flags struct {
	fs *flag.FlagSet

	config             string
	debug              bool
	format             string
	output             string
	grf                string
	animTime           float64
	dropInvalidNormals bool
	noGround           bool
}

// BindFlags registers the override flags on fs. Read them after fs.Parse.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.config, "config", "", "Path to config file (.yaml or .toml)")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.format, "format", "", "Document format: yaml or toml")
	fs.StringVar(&f.output, "o", "", "Output file (default stdout)")
	fs.StringVar(&f.grf, "grf", "", "Comma-separated GRF archives, highest priority first")
	fs.Float64Var(&f.animTime, "anim-time", 0, "RSM keyframe time in milliseconds")
	fs.BoolVar(&f.dropInvalidNormals, "drop-invalid-normals", false, "Export meshes without normals instead of skipping them")
	fs.BoolVar(&f.noGround, "no-ground", false, "Leave the ground mesh out of map exports")
	return f
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	return f.config
}

// apply applies CLI flag overrides to the config. Only flags given on
// the command line override file values.
func (f *Flags) apply(cfg *Config) {
	set := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if f.debug {
		cfg.Logging.Level = "debug"
	}
	if f.format != "" {
		cfg.Output.Format = f.format
	}
	if f.output != "" {
		cfg.Output.Path = f.output
	}
	if f.grf != "" {
		cfg.Source.GRFPaths = splitList(f.grf)
	}
	if set["anim-time"] {
		cfg.Source.AnimTime = float32(f.animTime)
	}
	if set["drop-invalid-normals"] {
		cfg.Export.DropInvalidNormals = f.dropInvalidNormals
	}
	if f.noGround {
		cfg.Source.Ground = false
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
