// Package bvh provides a bounding volume hierarchy over indexed triangle
// meshes. An accelerator is built once from a mesh and then answers batched
// closest-hit and any-hit ray queries against it.
package bvh

import "github.com/thisistherk/bvh/types"

// Hit.Triangle value for rays that miss every primitive.
const TriangleInvalid = uint32(0xffffffff)

// Trace behaviour flags.
const (
	// Hint that the rays in the batch share a common origin or direction.
	// Advisory only; the Simple accelerator ignores it.
	TraceCoherent = uint32(0x0001)

	// Any-hit mode. Tracing stops at the first intersection found and the
	// resulting hit carries the occlusion sentinel instead of a triangle
	// index.
	TraceShadow = uint32(0x0002)
)

// An indexed triangle mesh. Positions holds 3*Vertices interleaved xyz
// floats and Indices holds 3*Triangles 0-based vertex indices.
//
// The mesh is borrowed for the duration of Build only. The accelerator keeps
// its own copy of the geometry, so the mesh may be released once Build
// returns.
type Mesh struct {
	Vertices  uint32
	Triangles uint32
	Positions []float32
	Indices   []uint32
}

// Fetch the three corner positions of a triangle.
func (m *Mesh) corners(tri uint32) (types.Vec3, types.Vec3, types.Vec3) {
	i0 := m.Indices[3*tri+0]
	i1 := m.Indices[3*tri+1]
	i2 := m.Indices[3*tri+2]

	return types.XYZSlice(m.Positions[3*i0:]),
		types.XYZSlice(m.Positions[3*i1:]),
		types.XYZSlice(m.Positions[3*i2:])
}

// A ray to trace. Dir need not be unit length but must be non-zero. MinT and
// MaxT bound the parametric intersection interval; MaxT may be +Inf.
//
// Trace shrinks MaxT in place as closer hits are found, so callers that want
// to reuse a batch must copy it first.
type Ray struct {
	Origin types.Vec3
	MinT   float32
	Dir    types.Vec3
	MaxT   float32
}

// The result of tracing a single ray. Triangle indexes the source mesh
// triangle list, or is TriangleInvalid on a miss. Barycentric holds the
// weights of the second and third triangle corner at the hit point; it is
// undefined when Triangle is TriangleInvalid.
//
// Shadow traces report occlusion only: Triangle is 0 when the ray was
// blocked and must not be interpreted as a triangle index.
type Hit struct {
	Triangle    uint32
	Barycentric [2]float32
}

// Occluded reports whether a shadow trace found any intersection.
func (h Hit) Occluded() bool {
	return h.Triangle != TriangleInvalid
}

// An Accelerator answers ray queries against a triangle mesh.
//
// Build indexes the given mesh, replacing any previously built state. Trace
// resolves each rays[i] into hits[i]; len(hits) must be at least len(rays).
// A built accelerator is read-only and may serve concurrent Trace calls as
// long as every caller passes its own ray and hit slices.
type Accelerator interface {
	Build(mesh *Mesh)
	Trace(rays []Ray, hits []Hit, flags uint32)
}
