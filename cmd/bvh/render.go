package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/thisistherk/bvh"
	"github.com/thisistherk/bvh/mesh"
	"github.com/thisistherk/bvh/render"
	"github.com/thisistherk/bvh/types"
)

const degreesToRadians = math.Pi / 180.0

// Render an ambient occlusion image.
func renderScene(ctx *cli.Context) error {
	setupLogging(ctx)

	m, err := loadScene(ctx)
	if err != nil {
		return err
	}

	accel := bvh.NewSimple()

	start := time.Now()
	accel.Build(m.Accel())
	buildTime := time.Since(start)
	logger.Noticef("built BVH over %d triangles in %s", m.Triangles(), buildTime)

	camera, err := cameraForScene(ctx, m)
	if err != nil {
		return err
	}

	opts := render.Options{
		Width:   uint32(ctx.Int("width")),
		Height:  uint32(ctx.Int("height")),
		Workers: ctx.Int("workers"),
	}
	spp := ctx.Int("spp")

	logger.Noticef("rendering %dx%d ambient occlusion image with %d samples per pixel", opts.Width, opts.Height, spp)

	ao := render.NewAmbientOcclusion()
	ao.Begin(m, accel, camera, opts)

	start = time.Now()
	for ii := 0; ii < spp; ii++ {
		ao.Refine()
	}
	renderTime := time.Since(start)
	logger.Noticef("rendered in %s", renderTime)

	if err = writeImage(ctx, ao.Image()); err != nil {
		return err
	}

	displayTraceStats(buildTime, renderTime, ao.Stats())

	return nil
}

// Load the scene mesh and apply the optional ground plane.
func loadScene(ctx *cli.Context) (*mesh.Mesh, error) {
	if ctx.NArg() != 1 {
		return nil, errors.New("missing scene file argument")
	}
	path := scenePath(ctx.Args().First())

	start := time.Now()
	m, err := mesh.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if m.Triangles() == 0 {
		return nil, fmt.Errorf("no triangles in mesh: %s", path)
	}
	logger.Noticef("read %d triangles from %s in %s", m.Triangles(), path, time.Since(start))

	if axis := ctx.Int("plane"); axis >= 0 && axis <= 2 {
		m.AddPlane(axis, 5.0)
	}

	return m, nil
}

// Resolve a scene path, falling back to BVH_SCENE_DIR for relative paths
// that do not exist in the working directory.
func scenePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}

	if dir := os.Getenv("BVH_SCENE_DIR"); dir != "" {
		return filepath.Join(dir, path)
	}
	return path
}

// Build the camera from flags, deriving any missing piece from the mesh
// bounds the way the reference scenes do.
func cameraForScene(ctx *cli.Context, m *mesh.Mesh) (render.Camera, error) {
	camera := render.Camera{
		Fov: float32(ctx.Float64("fov")) * degreesToRadians,
	}

	axis := ctx.Int("plane")
	if axis < 0 || axis > 2 {
		axis = 1
	}

	camera.To = m.Centre()
	camera.From = camera.To.Add(types.XYZ(0.2, 0.3, 0.4).Mul(3.0 * m.Radius()))
	camera.Up = types.Vec3{}
	camera.Up[axis] = 1.0

	for _, spec := range []struct {
		flag string
		dst  *types.Vec3
	}{
		{"camera-from", &camera.From},
		{"camera-to", &camera.To},
		{"camera-up", &camera.Up},
	} {
		if val := ctx.String(spec.flag); val != "" {
			vec, err := parseVec3(val)
			if err != nil {
				return camera, fmt.Errorf("invalid %s: %s", spec.flag, err)
			}
			*spec.dst = vec
		}
	}

	return camera, nil
}

func parseVec3(val string) (types.Vec3, error) {
	var out types.Vec3

	fields := strings.Split(val, ",")
	if len(fields) != 3 {
		return out, fmt.Errorf("expected 3 comma-separated components; got %d", len(fields))
	}

	for ii, field := range fields {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
		if err != nil {
			return out, fmt.Errorf("could not parse component %q", field)
		}
		out[ii] = float32(parsed)
	}

	return out, nil
}

// Export the accumulated image, optionally resizing it first. The output
// format follows the file extension.
func writeImage(ctx *cli.Context, img *render.Image) error {
	var out image.Image = img.NRGBA()

	if scale := ctx.Float64("scale"); scale > 0 && scale != 1.0 {
		out = resize.Resize(uint(scale*float64(img.Width())), 0, out, resize.Lanczos3)
	}

	path := ctx.String("out")
	start := time.Now()
	if err := imaging.Save(out, path); err != nil {
		return err
	}
	logger.Noticef("wrote %s in %s", path, time.Since(start))

	return nil
}

func displayTraceStats(buildTime, renderTime time.Duration, stats render.Stats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Phase", "Rays", "Time", "Mrays/s"})
	table.Append([]string{"build", "", fmt.Sprintf("%s", buildTime), ""})
	table.Append([]string{
		"primary",
		fmt.Sprintf("%d", stats.PrimaryRays),
		fmt.Sprintf("%s", stats.PrimaryTime),
		fmt.Sprintf("%0.2f", raysPerSec(stats.PrimaryRays, stats.PrimaryTime)),
	})
	table.Append([]string{
		"shadow",
		fmt.Sprintf("%d", stats.ShadowRays),
		fmt.Sprintf("%s", stats.ShadowTime),
		fmt.Sprintf("%0.2f", raysPerSec(stats.ShadowRays, stats.ShadowTime)),
	})
	table.SetFooter([]string{"", "", "TOTAL", fmt.Sprintf("%s", renderTime)})

	table.Render()
	logger.Noticef("trace statistics\n%s", buf.String())
}

func raysPerSec(rays uint32, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(rays) * 1e-6 / elapsed.Seconds()
}
