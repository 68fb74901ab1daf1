// prcexport converts glTF and Ragnarok Online scenes into tessellated PRC
// container documents.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "export":
		err = cmdExport(args)
	case "export-grf", "grf":
		err = cmdExportGRF(args)
	case "info":
		err = cmdInfo(args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`prcexport - scene graph to PRC tessellation exporter

Usage:
  prcexport <command> [options]

Commands:
  export [options] <file>          Export a .gltf, .glb, .rsm, .gnd or .rsw file
  export-grf [options] <path>      Export a .rsm, .gnd or .rsw stored in GRF archives
  info [options] <path>            Show scene and export statistics (disk, then GRF)
  config [options]                 Print the effective configuration

Options:
  -config <file>          Config file (.yaml or .toml)
  -format yaml|toml       Document format
  -o <file>               Output file (default stdout)
  -grf a.grf,b.grf        GRF archives, highest priority first
  -anim-time <ms>         RSM keyframe time
  -drop-invalid-normals   Export meshes without normals instead of skipping them
  -no-ground              Leave the ground mesh out of map exports
  -debug                  Debug logging

Examples:
  prcexport export model.glb > model.yaml
  prcexport export -format toml -o house.toml data/model/house01.rsm
  prcexport export-grf -grf data.grf data/prontera.rsw -o prontera.yaml
  prcexport info -grf data.grf data/model/prontera/fountain.rsm`)
}
