// Package render produces ambient occlusion images by feeding ray batches
// through an accelerator. It doubles as the library's reference workload:
// for each sample, every image row traces one coherent primary batch and one
// shadow batch for shading.
package render

import (
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/thisistherk/bvh"
	"github.com/thisistherk/bvh/log"
	"github.com/thisistherk/bvh/mesh"
	"github.com/thisistherk/bvh/types"
)

// Pinhole camera. Fov is the horizontal field of view in radians.
type Camera struct {
	From types.Vec3
	To   types.Vec3
	Up   types.Vec3
	Fov  float32
}

type Options struct {
	// Frame dims.
	Width  uint32
	Height uint32

	// Number of concurrent row workers; 0 selects one per CPU.
	Workers int
}

// Accumulated trace statistics.
type Stats struct {
	PrimaryRays uint32
	PrimaryTime time.Duration

	ShadowRays uint32
	ShadowTime time.Duration
}

// AmbientOcclusion progressively renders a cosine-weighted occlusion image.
// Begin sets up the camera and buffers; each Refine adds one sample per
// pixel.
type AmbientOcclusion struct {
	logger log.Logger

	img *Image

	// Camera basis
	origin types.Vec3
	viewX  types.Vec3
	viewY  types.Vec3
	viewZ  types.Vec3

	msh   *mesh.Mesh
	accel bvh.Accelerator

	workers int
	sample  uint32

	statsMu sync.Mutex
	stats   Stats

	// Per-row trace buffers; rows never overlap so workers index disjoint
	// sub-slices
	rays    []bvh.Ray
	shadows []bvh.Ray
	hits    []bvh.Hit
	cols    []uint32
}

func NewAmbientOcclusion() *AmbientOcclusion {
	return &AmbientOcclusion{
		logger: log.New("render"),
	}
}

// Begin starts a fresh image. The accelerator must already be built over the
// mesh.
func (ao *AmbientOcclusion) Begin(m *mesh.Mesh, accel bvh.Accelerator, camera Camera, opts Options) {
	ao.img = NewImage(opts.Width, opts.Height)
	ao.msh = m
	ao.accel = accel

	ao.sample = 0
	ao.stats = Stats{}

	ao.workers = opts.Workers
	if ao.workers <= 0 {
		ao.workers = runtime.NumCPU()
	}

	// Camera basis from the view frustum
	scale := float32(math.Tan(float64(0.5 * camera.Fov)))
	aspect := float32(opts.Height) / float32(opts.Width)

	ao.origin = camera.From
	ao.viewZ = camera.To.Sub(camera.From).Normalize()
	ao.viewX = ao.viewZ.Cross(camera.Up).Normalize().Mul(scale)
	ao.viewY = ao.viewZ.Cross(ao.viewX).Normalize().Mul(aspect * scale)

	pixels := opts.Width * opts.Height
	ao.rays = make([]bvh.Ray, pixels)
	ao.shadows = make([]bvh.Ray, pixels)
	ao.hits = make([]bvh.Hit, pixels)
	ao.cols = make([]uint32, pixels)

	ao.logger.Debugf("begin %dx%d occlusion image with %d workers", opts.Width, opts.Height, ao.workers)
}

// Image being rendered.
func (ao *AmbientOcclusion) Image() *Image {
	return ao.img
}

// Accumulated statistics.
func (ao *AmbientOcclusion) Stats() Stats {
	ao.statsMu.Lock()
	defer ao.statsMu.Unlock()
	return ao.stats
}

// Refine adds one sample per pixel. Rows fan out across the worker pool;
// every row draws from its own random stream, so the accumulated image does
// not depend on scheduling.
func (ao *AmbientOcclusion) Refine() {
	s := ao.sample
	ao.sample++

	rows := make(chan uint32)

	var wg sync.WaitGroup
	for ii := 0; ii < ao.workers; ii++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				ao.refineRow(s, y)
			}
		}()
	}

	for y := uint32(0); y < ao.img.Height(); y++ {
		rows <- y
	}
	close(rows)
	wg.Wait()
}

func (ao *AmbientOcclusion) refineRow(sample, y uint32) {
	rnd := rand.New(rand.NewPCG(uint64(sample), uint64(y)))

	w := ao.img.Width()
	h := ao.img.Height()

	rays := ao.rays[y*w : (y+1)*w]
	hits := ao.hits[y*w : (y+1)*w]

	// Camera rays, jittered inside each pixel
	for x := uint32(0); x < w; x++ {
		fx := rnd.Float32()
		fy := rnd.Float32()

		sx := 2.0*(float32(x)+fx)/float32(w) - 1.0
		sy := 2.0*(float32(y)+fy)/float32(h) - 1.0

		d := ao.viewZ.Add(ao.viewX.Mul(sx)).Add(ao.viewY.Mul(sy)).Normalize()

		rays[x] = bvh.Ray{
			Origin: ao.origin,
			Dir:    d,
			MinT:   0,
			MaxT:   float32(math.Inf(1)),
		}
	}

	start := time.Now()
	ao.accel.Trace(rays, hits, bvh.TraceCoherent)
	primaryTime := time.Since(start)

	// One cosine-weighted hemisphere shadow ray per primary hit
	positions := ao.msh.Positions()
	indices := ao.msh.Indices()

	shadows := ao.shadows[y*w : (y+1)*w]
	cols := ao.cols[y*w : (y+1)*w]

	count := uint32(0)
	for x := uint32(0); x < w; x++ {
		hit := hits[x]
		if hit.Triangle == bvh.TriangleInvalid {
			continue
		}

		d := rays[x].Dir

		i0 := indices[3*hit.Triangle+0]
		i1 := indices[3*hit.Triangle+1]
		i2 := indices[3*hit.Triangle+2]

		p0 := types.XYZSlice(positions[3*i0:])
		p1 := types.XYZSlice(positions[3*i1:])
		p2 := types.XYZSlice(positions[3*i2:])

		v := hit.Barycentric[0]
		ww := hit.Barycentric[1]
		u := 1.0 - (v + ww)

		p := p0.Mul(u).Add(p1.Mul(v)).Add(p2.Mul(ww))

		n := p1.Sub(p0).Cross(p2.Sub(p0)).Normalize()
		if n.Dot(d) > 0 {
			n = n.Neg()
		}

		bx, by := basis(n)

		cosTheta := float32(math.Sqrt(float64(1.0 - rnd.Float32())))
		sinTheta := float32(math.Sqrt(float64(1.0 - cosTheta*cosTheta)))
		phi := 2.0 * math.Pi * rnd.Float64()
		cosPhi := float32(math.Cos(phi))
		sinPhi := float32(math.Sin(phi))

		r := bx.Mul(cosPhi * sinTheta).Add(by.Mul(sinPhi * sinTheta)).Add(n.Mul(cosTheta))

		shadows[count] = bvh.Ray{
			Origin: offsetOrigin(p, n),
			Dir:    r,
			MinT:   1.0e-4,
			MaxT:   float32(math.Inf(1)),
		}
		cols[count] = x
		count++
	}

	start = time.Now()
	ao.accel.Trace(shadows[:count], hits[:count], bvh.TraceShadow)
	shadowTime := time.Since(start)

	// Unoccluded samples contribute light
	for ii := uint32(0); ii < count; ii++ {
		if !hits[ii].Occluded() {
			ao.img.Add(cols[ii], y, 1.0)
		}
	}

	ao.statsMu.Lock()
	ao.stats.PrimaryRays += w
	ao.stats.PrimaryTime += primaryTime
	ao.stats.ShadowRays += count
	ao.stats.ShadowTime += shadowTime
	ao.statsMu.Unlock()
}

// Orthonormal basis around a normal.
func basis(n types.Vec3) (types.Vec3, types.Vec3) {
	var v types.Vec3
	if abs32(n[0]) > abs32(n[1]) {
		v = n.Cross(types.XYZ(0, 1, 0))
	} else {
		v = n.Cross(types.XYZ(1, 0, 0))
	}

	x := v.Cross(n).Normalize()
	y := n.Cross(x).Normalize()

	return x, y
}

// Offset a shadow ray origin along the normal to dodge self intersection
// (Ray Tracing Gems I, chapter 6). The offset is applied in integer ulps
// away from the surface, except near the origin where a fixed epsilon works
// better.
func offsetOrigin(p, n types.Vec3) types.Vec3 {
	const origin = 1.0 / 32.0
	const floatScale = 1.0 / 65536.0
	const intScale = 256.0

	var out types.Vec3
	for ii := 0; ii < 3; ii++ {
		off := int32(intScale * n[ii])
		if p[ii] < 0 {
			off = -off
		}

		bumped := math.Float32frombits(uint32(int32(math.Float32bits(p[ii])) + off))

		if abs32(p[ii]) < origin {
			out[ii] = p[ii] + floatScale*n[ii]
		} else {
			out[ii] = bumped
		}
	}

	return out
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
