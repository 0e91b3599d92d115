// vatbake bakes Ragnarok Online model animations into vertex animation
// textures.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-vat/internal/assets"
	"github.com/Faultbox/midgard-vat/internal/config"
	"github.com/Faultbox/midgard-vat/internal/engine/model"
	"github.com/Faultbox/midgard-vat/internal/host"
	"github.com/Faultbox/midgard-vat/internal/logger"
	"github.com/Faultbox/midgard-vat/internal/sink"
	"github.com/Faultbox/midgard-vat/internal/vat"
	"github.com/Faultbox/midgard-vat/pkg/exr"
	"github.com/Faultbox/midgard-vat/pkg/formats"
)

// errUsage means the arguments were wrong and usage was already printed.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	var err error
	command, rest := args[0], args[1:]
	switch command {
	case "bake":
		err = cmdBake(rest, stdout)
	case "info":
		err = cmdInfo(rest, stdout, stderr)
	case "list", "ls":
		err = cmdList(rest, stdout, stderr)
	case "inspect":
		err = cmdInspect(rest, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `vatbake - vertex animation texture baker

Usage:
  vatbake <command> [options]

Commands:
  bake [flags]                       Bake a model, map instance or OBJ sequence
  info [-grf a.grf] <model>          Show model nodes and animation
  list [-grf a.grf] [pattern]        List models and maps in archives
  inspect <file.exr>                 Show an OpenEXR header

Examples:
  vatbake bake -model windmill.rsm -out ./windmill -end 120
  vatbake bake -grf data.grf -map prontera.rsw -instance fountain01 -out ./fountain
  vatbake bake -obj-dir ./flag_frames -out ./flag -normals-format TIFF
  vatbake info -grf data.grf "prontera\fountain.rsm"
  vatbake list -grf data.grf "*.rsw"
  vatbake inspect ./windmill/offsets.exr`)
}

func cmdBake(args []string, stdout io.Writer) error {
	if err := config.ParseFlags(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if p := config.WriteConfigPath(); p != "" {
		if err := cfg.SaveTo(p); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote config: %s\n", p)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.HasSource() {
		return fmt.Errorf("%w: %w", vat.ErrConfiguration, host.ErrNoSource)
	}
	req := requestFromConfig(cfg)
	if err := precheck(req); err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Log

	h, err := host.Load(sourceFromConfig(cfg), log.Named("host"))
	if err != nil {
		log.Error("loading source failed", zap.Error(err))
		return err
	}

	baker := &vat.Baker{
		Host:   h,
		Images: sink.NewImageFiles(log.Named("images")),
		Meshes: sink.NewGLTF(log.Named("gltf")),
		Log:    log.Named("bake"),
	}
	if req.EndFrame == 0 {
		req.EndFrame = host.DefaultEndFrame(h)
		log.Debug("end frame from source", zap.Int("end", req.EndFrame))
	}
	res, err := baker.Bake(req)
	if err != nil {
		log.Error("bake failed", zap.Error(err), zap.Bool("configuration", vat.IsConfigurationError(err)))
		return err
	}

	fmt.Fprintf(stdout, "Baked %s: %d vertices x %d frames\n", res.Object, res.VertexCount, res.FrameCount)
	fmt.Fprintf(stdout, "  %s\n  %s\n  %s\n", res.ModelPath, res.OffsetsPath, res.NormalsPath)
	return nil
}

func sourceFromConfig(cfg *config.Config) host.Source {
	src := host.Source{
		Model:    cfg.Source.Model,
		Map:      cfg.Source.Map,
		Instance: cfg.Source.Instance,
		OBJDir:   cfg.Source.OBJDir,
		Archives: cfg.Source.GRFPaths,
		DataDirs: cfg.Source.DataDirs,
		Timing:   host.Timing{FPS: cfg.Bake.FPS, Loop: cfg.Bake.Loop},
	}
	if t := cfg.Source.Transform; t != nil {
		src.Transform = &host.Transform{Position: t.Position, Rotation: t.Rotation, Scale: t.Scale}
	}
	return src
}

func requestFromConfig(cfg *config.Config) vat.Request {
	return vat.Request{
		StartFrame:    cfg.Bake.StartFrame,
		EndFrame:      cfg.Bake.EndFrame,
		ExportPath:    cfg.Output.ExportPath,
		GlobalScale:   cfg.Output.GlobalScale,
		Alpha:         cfg.Output.Alpha,
		NormalsFormat: cfg.Output.NormalsFormat,
	}
}

// precheck validates req before any source is opened. An unset end frame
// is only known once the source is loaded.
func precheck(req vat.Request) error {
	if req.EndFrame == 0 {
		req.EndFrame = max(req.StartFrame, vat.MinFrame)
	}
	return req.Validate()
}

// libraryFlags adds the repeatable -grf and -data flags to fs.
func libraryFlags(fs *flag.FlagSet) (grfs, dirs *[]string) {
	grfs, dirs = new([]string), new([]string)
	fs.Func("grf", "GRF archive (repeatable)", func(v string) error {
		*grfs = append(*grfs, v)
		return nil
	})
	fs.Func("data", "Loose data directory (repeatable)", func(v string) error {
		*dirs = append(*dirs, v)
		return nil
	})
	return grfs, dirs
}

func openLibrary(grfs, dirs []string) (*assets.Manager, error) {
	lib := assets.NewManager()
	for _, a := range grfs {
		if err := lib.AddArchive(a); err != nil {
			lib.Close()
			return nil, err
		}
	}
	for _, d := range dirs {
		if err := lib.AddDir(d); err != nil {
			lib.Close()
			return nil, err
		}
	}
	return lib, nil
}

func cmdInfo(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(stderr)
	grfs, dirs := libraryFlags(fs)
	start := fs.Int("start", 1, "First frame of the texture estimate")
	end := fs.Int("end", vat.DefaultEndFrame, "Last frame of the texture estimate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: vatbake info [-grf a.grf] [-data dir] <model>")
		return errUsage
	}

	name := fs.Arg(0)
	var rsm *formats.RSM
	var err error
	if len(*grfs) == 0 && len(*dirs) == 0 {
		rsm, err = formats.ParseRSMFile(name)
	} else {
		var lib *assets.Manager
		lib, err = openLibrary(*grfs, *dirs)
		if err != nil {
			return err
		}
		defer lib.Close()
		rsm, err = host.LoadRSM(lib, name)
	}
	if err != nil {
		return err
	}

	total, twoSided := model.CountFaces(rsm)
	fmt.Fprintf(stdout, "Model:     %s\n", name)
	fmt.Fprintf(stdout, "Version:   %s\n", rsm.Version)
	fmt.Fprintf(stdout, "Vertices:  %d\n", rsm.GetTotalVertexCount())
	fmt.Fprintf(stdout, "Faces:     %d (%d two-sided)\n", total, twoSided)
	fmt.Fprintf(stdout, "Animation: %d ms, animated: %v\n", rsm.AnimLength, model.HasAnimation(rsm))
	if *end >= *start {
		fmt.Fprintf(stdout, "Texture:   %dx%d for frames %d-%d\n",
			rsm.GetTotalVertexCount(), *end-*start+1, *start, *end)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Nodes:")
	printNodeTree(stdout, rsm)
	return nil
}

// printNodeTree prints nodes from the root down with children indented under
// their parent. Nodes the root does not reach follow at the top level.
func printNodeTree(w io.Writer, rsm *formats.RSM) {
	info := model.Nodes(rsm)
	index := make(map[*formats.RSMNode]int, len(rsm.Nodes))
	for i := range rsm.Nodes {
		index[&rsm.Nodes[i]] = i
	}

	printed := make([]bool, len(rsm.Nodes))
	var walk func(node *formats.RSMNode, depth int)
	walk = func(node *formats.RSMNode, depth int) {
		i := index[node]
		if printed[i] {
			return
		}
		printed[i] = true
		n := info[i]
		fmt.Fprintf(w, "  %-28s verts=%-5d faces=%-5d keys=%d/%d/%d\n",
			strings.Repeat("  ", depth)+n.Name, n.VertexCount, n.FaceCount,
			n.PosKeyCount, n.RotKeyCount, n.ScaleKeyCount)
		for _, child := range rsm.GetChildNodes(node.Name) {
			walk(child, depth+1)
		}
	}

	if root := rsm.GetRootNode(); root != nil {
		walk(root, 0)
	}
	for i := range rsm.Nodes {
		walk(&rsm.Nodes[i], 0)
	}
}

func cmdList(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	grfs, dirs := libraryFlags(fs)
	limit := fs.Int("n", 0, "Limit output to N files (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(*grfs) == 0 && len(*dirs) == 0 {
		fmt.Fprintln(stderr, "Usage: vatbake list -grf a.grf [-data dir] [pattern]")
		return errUsage
	}

	lib, err := openLibrary(*grfs, *dirs)
	if err != nil {
		return err
	}
	defer lib.Close()

	pattern := strings.ToLower(fs.Arg(0))
	names, err := lib.Match(pattern, ".rsm", ".rsm2", ".rsw")
	if err != nil {
		return err
	}
	for i, n := range names {
		if *limit > 0 && i >= *limit {
			break
		}
		fmt.Fprintln(stdout, n)
	}
	fmt.Fprintf(stderr, "\n(%d files matched)\n", len(names))
	return nil
}

func cmdInspect(args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: vatbake inspect <file.exr>")
		return errUsage
	}
	hdr, err := exr.ReadHeaderFile(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "File:        %s\n", args[0])
	fmt.Fprintf(stdout, "Size:        %dx%d\n", hdr.DataWindow.Width(), hdr.DataWindow.Height())
	fmt.Fprintf(stdout, "Compression: %d\n", hdr.Compression)
	fmt.Fprintln(stdout, "Channels:")
	for _, c := range hdr.Channels {
		fmt.Fprintf(stdout, "  %-4s %s\n", c.Name, c.Type)
	}
	return nil
}
