package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/prcexport/internal/config"
	"github.com/Faultbox/prcexport/internal/export"
	"github.com/Faultbox/prcexport/internal/logger"
	"github.com/Faultbox/prcexport/internal/source/gltfsrc"
	"github.com/Faultbox/prcexport/internal/source/rsmsrc"
	"github.com/Faultbox/prcexport/pkg/grf"
	"github.com/Faultbox/prcexport/pkg/prc"
	"github.com/Faultbox/prcexport/pkg/scene"
)

// setup parses flags, loads the config and starts the logger. The caller
// must call logger.Sync.
func setup(name string, args []string) (*config.Config, *flag.FlagSet, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	flags := config.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	logger.Sugar.Debugf("config: %+v", cfg)
	return cfg, fs, nil
}

func cmdExport(args []string) error {
	cfg, fs, err := setup("export", args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if fs.NArg() != 1 {
		return errors.New("usage: prcexport export [options] <file>")
	}
	root, err := loadFile(cfg, fs.Arg(0))
	if root == nil {
		return err
	}
	warnPartial(err)

	_, err = exportScene(cfg, root)
	return err
}

func cmdExportGRF(args []string) error {
	cfg, fs, err := setup("export-grf", args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if fs.NArg() != 1 {
		return errors.New("usage: prcexport export-grf [options] <path>")
	}

	archives, err := grf.OpenSet(cfg.Source.GRFPaths...)
	if err != nil {
		return err
	}
	defer archives.Close()
	logger.Debug("archives opened", zap.Strings("grf", cfg.Source.GRFPaths))

	root, err := loader(cfg, archives.Read).Load(fs.Arg(0))
	if root == nil {
		return err
	}
	warnPartial(err)

	_, err = exportScene(cfg, root)
	return err
}

func cmdInfo(args []string) error {
	cfg, fs, err := setup("info", args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if fs.NArg() != 1 {
		return errors.New("usage: prcexport info [options] <path>")
	}
	target := fs.Arg(0)

	var root *scene.Node
	if _, statErr := os.Stat(target); statErr == nil {
		root, err = loadFile(cfg, target)
	} else {
		archives, openErr := grf.OpenSet(cfg.Source.GRFPaths...)
		if openErr != nil {
			return fmt.Errorf("%s not on disk and archives unavailable: %w", target, openErr)
		}
		defer archives.Close()
		root, err = loader(cfg, archives.Read).Load(target)
	}
	if root == nil {
		return err
	}
	problems := multierr.Errors(err)

	ex, err := export.New(prc.NewDocument(nil, prc.FormatYAML), exportOptions(cfg))
	if err != nil {
		return err
	}
	if err := ex.Export(root); err != nil {
		return err
	}
	problems = append(problems, multierr.Errors(ex.Diagnostics())...)

	printInfo(os.Stdout, target, scene.Collect(root), ex.Stats(), problems)
	return nil
}

func cmdConfig(args []string) error {
	cfg, _, err := setup("config", args)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !cfg.Output.Stdout() {
		return cfg.SaveTo(cfg.Output.Path)
	}
	data, err := cfg.Marshal(strings.EqualFold(cfg.Output.Format, "toml"))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// loadFile converts a scene file from disk by extension.
func loadFile(cfg *config.Config, path string) (*scene.Node, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		return gltfsrc.Load(path)
	}
	return loader(cfg, func(name string) ([]byte, error) {
		return os.ReadFile(filepath.FromSlash(name))
	}).Load(filepath.ToSlash(path))
}

func loader(cfg *config.Config, read rsmsrc.ReadFunc) *rsmsrc.Loader {
	return &rsmsrc.Loader{
		Read:     read,
		Options:  rsmsrc.Options{AnimTime: cfg.Source.AnimTime},
		NoGround: !cfg.Source.Ground,
	}
}

func exportOptions(cfg *config.Config) export.Options {
	opts := export.DefaultOptions()
	opts.Build.CreaseAngle = cfg.Export.CreaseAngle
	opts.Build.DropInvalidNormals = cfg.Export.DropInvalidNormals
	return opts
}

// exportScene writes root as a document to the configured output.
func exportScene(cfg *config.Config, root *scene.Node) (export.Stats, error) {
	format, err := prc.ParseFormat(cfg.Output.Format)
	if err != nil {
		return export.Stats{}, err
	}

	var (
		stats export.Stats
		diag  error
	)
	if cfg.Output.Stdout() {
		stats, diag, err = run(root, os.Stdout, format, exportOptions(cfg))
	} else {
		f, createErr := os.Create(cfg.Output.Path)
		if createErr != nil {
			return export.Stats{}, createErr
		}
		stats, diag, err = runAndClose(root, f, format, exportOptions(cfg))
	}
	if err != nil {
		return stats, err
	}

	if n := len(multierr.Errors(diag)); n > 0 {
		logger.Warn("export finished with skipped content", zap.Int("problems", n))
	}
	if !cfg.Output.Stdout() {
		logger.Info("document written", zap.String("path", cfg.Output.Path))
	}
	return stats, nil
}

// runAndClose is run followed by closing out. A failed close loses the
// tail of the document and is reported as a sink failure.
func runAndClose(root *scene.Node, out io.WriteCloser, format prc.Format, opts export.Options) (stats export.Stats, diag error, err error) {
	stats, diag, err = run(root, out, format, opts)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: closing output: %w", export.ErrSinkFailure, cerr)
	}
	return stats, diag, err
}

// run exports root into a document encoded to w. diag holds the
// non-fatal problems of the export.
func run(root *scene.Node, w io.Writer, format prc.Format, opts export.Options) (stats export.Stats, diag error, err error) {
	ex, err := export.New(prc.NewDocument(w, format), opts)
	if err != nil {
		return stats, nil, err
	}
	if err := ex.Export(root); err != nil {
		return ex.Stats(), ex.Diagnostics(), err
	}
	return ex.Stats(), ex.Diagnostics(), nil
}

// warnPartial logs the parts of a scene that could not be loaded.
func warnPartial(err error) {
	for _, e := range multierr.Errors(err) {
		logger.Warn("scene loaded partially", zap.Error(e))
	}
}

func printInfo(w io.Writer, target string, s scene.Stats, es export.Stats, problems []error) {
	fmt.Fprintf(w, "Scene:     %s\n", target)
	fmt.Fprintf(w, "Nodes:     %d (%d transforms, %d geodes, depth %d)\n", s.Nodes, s.Transforms, s.Geodes, s.MaxDepth)
	fmt.Fprintf(w, "Geometry:  %d geometries, %d primitive sets, %d vertices\n", s.Geometries, s.PrimitiveSets, s.Vertices)
	fmt.Fprintf(w, "Materials: %d\n", s.Materials)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export:")
	fmt.Fprintf(w, "  %-24s %d\n", "groups", es.Groups)
	fmt.Fprintf(w, "  %-24s %d\n", "meshes", es.Meshes)
	fmt.Fprintf(w, "  %-24s %d\n", "styles", es.Styles)
	fmt.Fprintf(w, "  %-24s %d\n", "triangles", es.Triangles)
	fmt.Fprintf(w, "  %-24s %d\n", "skipped geometries", es.SkippedGeometries)
	fmt.Fprintf(w, "  %-24s %d\n", "skipped primitive sets", es.SkippedPrimitiveSets)

	if len(problems) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Problems (%d):\n", len(problems))
	for _, p := range problems {
		fmt.Fprintf(w, "  %v\n", p)
	}
}
