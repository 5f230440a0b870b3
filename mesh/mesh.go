// Package mesh loads triangle soups from Wavefront OBJ files and adapts
// them to the accelerator's mesh view.
package mesh

import (
	"math"

	"github.com/thisistherk/bvh"
	"github.com/thisistherk/bvh/types"
)

// A triangle mesh assembled from positions and 0-based triangle indices.
type Mesh struct {
	// Bounding box of the loaded geometry (ground planes excluded)
	min types.Vec3
	max types.Vec3

	positions []float32
	indices   []uint32
}

func newMesh() *Mesh {
	inf := float32(math.Inf(1))
	return &Mesh{
		min: types.XYZ(inf, inf, inf),
		max: types.XYZ(-inf, -inf, -inf),
	}
}

// Vertex count.
func (m *Mesh) Vertices() uint32 {
	return uint32(len(m.positions) / 3)
}

// Triangle count.
func (m *Mesh) Triangles() uint32 {
	return uint32(len(m.indices) / 3)
}

// Interleaved xyz position data.
func (m *Mesh) Positions() []float32 {
	return m.positions
}

// Triangle index data.
func (m *Mesh) Indices() []uint32 {
	return m.indices
}

// Centre of the mesh bounds.
func (m *Mesh) Centre() types.Vec3 {
	return m.min.Add(m.max).Mul(0.5)
}

// Radius of the mesh bounding sphere.
func (m *Mesh) Radius() float32 {
	return m.max.Sub(m.min).Len() * 0.5
}

// Accel adapts the mesh to the accelerator's borrowed view. The returned
// value aliases the mesh storage.
func (m *Mesh) Accel() *bvh.Mesh {
	return &bvh.Mesh{
		Vertices:  m.Vertices(),
		Triangles: m.Triangles(),
		Positions: m.positions,
		Indices:   m.indices,
	}
}

// AddPlane appends a ground plane quad below the mesh. The plane sits at the
// low edge of the bounds on the given axis and extends size times the mesh
// extent on the other two. The mesh bounds are left untouched so cameras
// keep framing the original model.
func (m *Mesh) AddPlane(axis int, size float32) {
	x := (axis + 1) % 3
	y := (axis + 2) % 3

	delta := m.max.Sub(m.min)

	var dx, dy types.Vec3
	dx[x] = 0.5 * size * delta[x]
	dy[y] = 0.5 * size * delta[y]

	c := m.Centre()
	c[axis] = m.min[axis]

	first := m.Vertices()
	m.positions = append(m.positions,
		c[0]-dx[0]-dy[0], c[1]-dx[1]-dy[1], c[2]-dx[2]-dy[2],
		c[0]+dx[0]-dy[0], c[1]+dx[1]-dy[1], c[2]+dx[2]-dy[2],
		c[0]+dx[0]+dy[0], c[1]+dx[1]+dy[1], c[2]+dx[2]+dy[2],
		c[0]-dx[0]+dy[0], c[1]-dx[1]+dy[1], c[2]-dx[2]+dy[2],
	)

	m.addTriangle(first+0, first+1, first+2)
	m.addTriangle(first+0, first+2, first+3)
}

func (m *Mesh) addVertex(p types.Vec3) {
	m.min = types.MinVec3(m.min, p)
	m.max = types.MaxVec3(m.max, p)
	m.positions = append(m.positions, p[0], p[1], p[2])
}

func (m *Mesh) addTriangle(a, b, c uint32) {
	m.indices = append(m.indices, a, b, c)
}
