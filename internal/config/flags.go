package config

import (
	"flag"
	"strings"
)

// stringList is a flag that may be repeated.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// Flags is the flag set of the bake command.
var Flags = flag.NewFlagSet("bake", flag.ContinueOnError)

var (
	flagConfig      = Flags.String("config", "", "Path to config file")
	flagWriteConfig = Flags.String("write-config", "", "Write the effective config to this path and exit")
	flagDebug       = Flags.Bool("debug", false, "Enable debug logging")
	flagLogFile     = Flags.String("log-file", "", "Also log to this file (rotated)")

	flagModel    = Flags.String("model", "", "RSM model file, or archive path with --grf/--data")
	flagMap      = Flags.String("map", "", "RSW map inside the archives")
	flagInstance = Flags.String("instance", "", "Model instance name in the map")
	flagOBJDir   = Flags.String("obj-dir", "", "Directory of per-frame OBJ files")
	flagGRF      stringList
	flagData     stringList

	flagStart = Flags.Int("start", 0, "First frame (inclusive)")
	flagEnd   = Flags.Int("end", 0, "Last frame (inclusive, default: end of the source)")
	flagFPS   = Flags.Float64("fps", 0, "Timeline frames per second")
	flagLoop  = Flags.Bool("loop", false, "Wrap time at the animation length")

	flagOut           = Flags.String("out", "", "Export directory")
	flagScale         = Flags.Float64("scale", 0, "Global scale of the exported mesh")
	flagNoAlpha       = Flags.Bool("no-alpha", false, "Write RGB images without alpha")
	flagNormalsFormat = Flags.String("normals-format", "", "Normal texture format: OPEN_EXR or TIFF")
)

func init() {
	Flags.Var(&flagGRF, "grf", "GRF archive (repeatable)")
	Flags.Var(&flagData, "data", "Loose data directory (repeatable)")
}

// ParseFlags parses the bake command's arguments.
func ParseFlags(args []string) error {
	return Flags.Parse(args)
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// WriteConfigPath returns the --write-config destination, if any.
func WriteConfigPath() string {
	return *flagWriteConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}

	if *flagModel != "" || *flagMap != "" || *flagInstance != "" || *flagOBJDir != "" {
		// A source given on the command line replaces the configured one
		cfg.Source.Model = *flagModel
		cfg.Source.Map = *flagMap
		cfg.Source.Instance = *flagInstance
		cfg.Source.OBJDir = *flagOBJDir
	}
	if len(flagGRF) > 0 {
		cfg.Source.GRFPaths = append([]string(nil), flagGRF...)
	}
	if len(flagData) > 0 {
		cfg.Source.DataDirs = append([]string(nil), flagData...)
	}

	if *flagStart > 0 {
		cfg.Bake.StartFrame = *flagStart
	}
	if *flagEnd > 0 {
		cfg.Bake.EndFrame = *flagEnd
	}
	if *flagFPS > 0 {
		cfg.Bake.FPS = *flagFPS
	}
	if *flagLoop {
		cfg.Bake.Loop = true
	}

	if *flagOut != "" {
		cfg.Output.ExportPath = *flagOut
	}
	if *flagScale > 0 {
		cfg.Output.GlobalScale = float32(*flagScale)
	}
	if *flagNoAlpha {
		cfg.Output.Alpha = false
	}
	if *flagNormalsFormat != "" {
		cfg.Output.NormalsFormat = strings.ToUpper(*flagNormalsFormat)
	}
}
