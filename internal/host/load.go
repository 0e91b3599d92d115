package host

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-vat/internal/assets"
	"github.com/Faultbox/midgard-vat/internal/vat"
	"github.com/Faultbox/midgard-vat/pkg/formats"
	"github.com/Faultbox/midgard-vat/pkg/math"
)

// ErrNoSource is returned when a Source names nothing to load.
var ErrNoSource = errors.New("no model, map instance or OBJ directory given")

// Transform places a model in the world. Rotation is in degrees; a zero
// scale component counts as 1.
type Transform struct {
	Position [3]float32
	Rotation [3]float32
	Scale    [3]float32
}

// Matrix returns the object-to-world matrix.
func (t Transform) Matrix() math.Mat4 {
	scale := math.V3(t.Scale)
	if scale.X == 0 {
		scale.X = 1
	}
	if scale.Y == 0 {
		scale.Y = 1
	}
	if scale.Z == 0 {
		scale.Z = 1
	}
	return math.Placement(math.V3(t.Position), math.V3(t.Rotation), scale)
}

// Source selects what a host is built from. Exactly one of OBJDir, Map with
// Instance, or Model is used, in that order.
type Source struct {
	// Model is an .rsm file on disk, or an archive path when archives or
	// data dirs are given.
	Model string

	// Map is an .rsw name inside the archives and Instance the name of a
	// model placement in it.
	Map      string
	Instance string

	// OBJDir holds one OBJ file per frame.
	OBJDir string

	Archives []string
	DataDirs []string

	Timing Timing

	// Transform overrides the world transform of Model and OBJDir sources.
	Transform *Transform
}

// Load builds the host described by src.
func Load(src Source, log *zap.Logger) (vat.Host, error) {
	if log == nil {
		log = zap.NewNop()
	}
	world := math.Identity()
	if src.Transform != nil {
		world = src.Transform.Matrix()
	}

	switch {
	case src.OBJDir != "":
		seq, err := LoadOBJSequence(src.OBJDir, world)
		if err != nil {
			return nil, err
		}
		log.Info("loaded OBJ sequence",
			zap.String("dir", src.OBJDir),
			zap.String("object", seq.object.Name()),
			zap.Int("frames", seq.FrameCount()))
		return seq, nil

	case src.Map != "" || src.Instance != "":
		if src.Map == "" || src.Instance == "" {
			return nil, fmt.Errorf("%w: a map source needs both map and instance", vat.ErrConfiguration)
		}
		lib, err := openLibrary(src)
		if err != nil {
			return nil, err
		}
		defer closeLibrary(lib, log)
		return loadMapInstance(lib, src, log)

	case src.Model != "":
		if len(src.Archives) == 0 && len(src.DataDirs) == 0 {
			rsm, err := formats.ParseRSMFile(src.Model)
			if err != nil {
				return nil, err
			}
			return newScene(modelName(src.Model), rsm, world, src.Timing, log)
		}
		lib, err := openLibrary(src)
		if err != nil {
			return nil, err
		}
		defer closeLibrary(lib, log)
		rsm, err := LoadRSM(lib, src.Model)
		if err != nil {
			return nil, err
		}
		return newScene(modelName(src.Model), rsm, world, src.Timing, log)
	}
	return nil, fmt.Errorf("%w: %w", vat.ErrConfiguration, ErrNoSource)
}

// DefaultEndFrame returns the last frame to bake from h when none is
// configured: the end of a bounded host such as an OBJ sequence, otherwise
// vat.DefaultEndFrame.
func DefaultEndFrame(h vat.Host) int {
	if d, ok := h.(vat.FrameDomain); ok {
		_, last := d.FrameRange()
		return last
	}
	return vat.DefaultEndFrame
}

func newScene(name string, rsm *formats.RSM, world math.Mat4, timing Timing, log *zap.Logger) (vat.Host, error) {
	scene, err := NewRSMScene(name, rsm, world, timing)
	if err != nil {
		return nil, err
	}
	log.Info("loaded model",
		zap.String("object", name),
		zap.String("version", rsm.Version.String()),
		zap.Int("nodes", len(rsm.Nodes)),
		zap.Int("vertices", rsm.GetTotalVertexCount()),
		zap.Int32("anim_length_ms", rsm.AnimLength))
	return scene, nil
}

func openLibrary(src Source) (*assets.Manager, error) {
	lib := assets.NewManager()
	for _, a := range src.Archives {
		if err := lib.AddArchive(a); err != nil {
			lib.Close()
			return nil, err
		}
	}
	for _, d := range src.DataDirs {
		if err := lib.AddDir(d); err != nil {
			lib.Close()
			return nil, err
		}
	}
	return lib, nil
}

// closeLibrary logs the library's cache use and releases its archives.
func closeLibrary(lib *assets.Manager, log *zap.Logger) {
	hits, misses := lib.Stats()
	log.Debug("asset library closed", zap.Int("cache_hits", hits), zap.Int("cache_misses", misses))
	lib.Close()
}

// LoadRSM reads and parses a model from lib. Bare names are looked up under
// data/model/.
func LoadRSM(lib *assets.Manager, name string) (*formats.RSM, error) {
	data, err := lib.Load(modelPath(name))
	if err != nil {
		return nil, err
	}
	rsm, err := formats.ParseRSM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return rsm, nil
}

func loadMapInstance(lib *assets.Manager, src Source, log *zap.Logger) (vat.Host, error) {
	mapPath := src.Map
	if !strings.Contains(strings.ReplaceAll(mapPath, `\`, "/"), "/") {
		mapPath = "data/" + mapPath
	}
	data, err := lib.Load(mapPath)
	if err != nil {
		return nil, err
	}
	rsw, err := formats.ParseRSW(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", src.Map, err)
	}
	placement := rsw.FindModel(src.Instance)
	if placement == nil {
		return nil, fmt.Errorf("%w: map %s has no model instance %q", vat.ErrConfiguration, src.Map, src.Instance)
	}

	rsm, err := LoadRSM(lib, placement.ModelName)
	if err != nil {
		return nil, err
	}
	world := math.Placement(math.V3(placement.Position), math.V3(placement.Rotation), math.V3(placement.Scale))
	log.Debug("map placement",
		zap.String("map", src.Map),
		zap.String("instance", src.Instance),
		zap.String("model", placement.ModelName))

	timing := src.Timing
	if timing.FPS <= 0 {
		timing.FPS = DefaultFPS
	}
	if placement.AnimSpeed > 0 {
		// Map instances play back at their own speed
		timing.FPS /= float64(placement.AnimSpeed)
	}
	return newScene(src.Instance, rsm, world, timing, log)
}

func modelPath(name string) string {
	p := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(strings.ToLower(p), "data/") {
		return p
	}
	return "data/model/" + p
}

func modelName(p string) string {
	base := path.Base(strings.ReplaceAll(p, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
