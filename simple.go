package bvh

import (
	"math"
	"time"

	"github.com/thisistherk/bvh/log"
	"github.com/thisistherk/bvh/types"
)

const (
	// Maximum number of triangles per leaf.
	maxNodeSize = 4

	// Number of strata used to discretize SAH split candidates.
	sahBins = 256

	invalidIndex = uint32(0xffffffff)
)

var posInf = float32(math.Inf(1))

// A node in the flattened tree. Parents always precede their children: the
// left child of node i is node i+1 and offset points at the right child.
// Leaf nodes have count > 0 and offset indexes their first owned triangle.
type node struct {
	min    types.Vec3
	max    types.Vec3
	offset uint32
	count  uint16
	axis   uint16
}

// A triangle owned by the accelerator. Corner positions are denormalized
// from the source mesh so leaf tests stay cache local; index is the
// triangle's position in the source mesh.
type triangle struct {
	p0    types.Vec3
	p1    types.Vec3
	p2    types.Vec3
	index uint32
}

// Per-triangle build summary.
type prim struct {
	min   types.Vec3
	max   types.Vec3
	mid   types.Vec3
	index uint32
}

// A pending [first, last) range of prims waiting to be split. min/max bound
// the range's centroids, not its geometry. parent is the node waiting for
// this range's node index as its right child, or invalidIndex.
type volume struct {
	first  uint32
	last   uint32
	parent uint32
	depth  int
	min    types.Vec3
	max    types.Vec3
}

func emptyVolume() volume {
	return volume{
		parent: invalidIndex,
		min:    types.XYZ(posInf, posInf, posInf),
		max:    types.XYZ(-posInf, -posInf, -posInf),
	}
}

// Geometric bounds accumulated while binning split candidates.
type aabb struct {
	min types.Vec3
	max types.Vec3
}

func emptyAabb() aabb {
	return aabb{
		min: types.XYZ(posInf, posInf, posInf),
		max: types.XYZ(-posInf, -posInf, -posInf),
	}
}

func (b *aabb) include(min, max types.Vec3) {
	b.min = types.MinVec3(b.min, min)
	b.max = types.MaxVec3(b.max, max)
}

func (b aabb) area() float32 {
	d := b.max.Sub(b.min)
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[2]*d[0])
}

// Statistics describing the most recent build.
type Stats struct {
	Triangles int
	Nodes     int
	Leafs     int
	MaxDepth  int
	BuildTime time.Duration
}

// Simple is a single-threaded BVH accelerator. It partitions triangles
// top-down with a binned surface area heuristic and traces rays with a
// stackful front-to-back descent.
type Simple struct {
	logger log.Logger

	nodes     []node
	triangles []triangle

	stats Stats
}

// Create an empty accelerator. Build must be called before Trace.
func NewSimple() *Simple {
	return &Simple{
		logger: log.New("bvh"),
	}
}

// Get statistics for the most recent build.
func (s *Simple) Stats() Stats {
	return s.stats
}

// Build indexes the mesh, replacing any previously built state. The mesh is
// only read while Build runs; the accelerator keeps its own geometry copy.
func (s *Simple) Build(mesh *Mesh) {
	start := time.Now()

	s.nodes = s.nodes[:0]
	s.triangles = s.triangles[:0]
	s.stats = Stats{Triangles: int(mesh.Triangles)}

	// A mesh without triangles builds no tree; every trace misses.
	if mesh.Triangles == 0 {
		s.stats.BuildTime = time.Since(start)
		return
	}

	if cap(s.triangles) < int(mesh.Triangles) {
		s.triangles = make([]triangle, 0, mesh.Triangles)
	}

	// Summarize each triangle and gather the root centroid bounds
	prims := make([]prim, mesh.Triangles)

	vol := emptyVolume()
	vol.first = 0
	vol.last = mesh.Triangles

	for ii := uint32(0); ii < mesh.Triangles; ii++ {
		v0, v1, v2 := mesh.corners(ii)

		p := prim{
			min:   types.MinVec3(v0, types.MinVec3(v1, v2)),
			max:   types.MaxVec3(v0, types.MaxVec3(v1, v2)),
			mid:   v0.Add(v1).Add(v2).Div(3),
			index: ii,
		}
		prims[ii] = p

		vol.min = types.MinVec3(vol.min, p.mid)
		vol.max = types.MaxVec3(vol.max, p.mid)
	}

	// Split each pending volume
	var pending []volume
	for {
		nodeIndex := uint32(len(s.nodes))
		s.nodes = append(s.nodes, node{
			min: types.XYZ(posInf, posInf, posInf),
			max: types.XYZ(-posInf, -posInf, -posInf),
		})

		// Patch the parent's right-child pointer now that the index is known
		if vol.parent != invalidIndex {
			s.nodes[vol.parent].offset = nodeIndex
		}
		if vol.depth > s.stats.MaxDepth {
			s.stats.MaxDepth = vol.depth
		}

		count := vol.last - vol.first
		if count > maxNodeSize {
			axis := types.MaxDim(vol.max.Sub(vol.min))
			s.nodes[nodeIndex].axis = uint16(axis)

			split, ok := binnedSplit(prims, vol, axis)

			left := emptyVolume()
			right := emptyVolume()

			l := vol.first
			if ok {
				// Partition prims around the split plane, accumulating the
				// children's centroid bounds as we go
				r := vol.last
				for l < r {
					if prims[l].mid[axis] < split {
						left.min = types.MinVec3(left.min, prims[l].mid)
						left.max = types.MaxVec3(left.max, prims[l].mid)

						l++
					} else {
						right.min = types.MinVec3(right.min, prims[l].mid)
						right.max = types.MaxVec3(right.max, prims[l].mid)

						r--
						prims[l], prims[r] = prims[r], prims[l]
					}
				}
			}

			if !ok || l == vol.first || l == vol.last {
				// Degenerate split - cut the range in half by index. The
				// children reuse the parent centroid bounds; their own splits
				// will re-bin over the full range.
				l = (vol.first + vol.last) / 2

				left.min = vol.min
				left.max = vol.max
				right.min = vol.min
				right.max = vol.max
			}

			left.first = vol.first
			left.last = l
			left.depth = vol.depth + 1

			right.first = l
			right.last = vol.last
			right.parent = nodeIndex
			right.depth = vol.depth + 1

			// Process the left child next; its node lands at nodeIndex+1 so
			// its parent pointer stays unset. The right child waits on the
			// stack until its index is known.
			vol = left
			pending = append(pending, right)
		} else {
			// Add triangles for this leaf and grow its bounds
			nd := &s.nodes[nodeIndex]
			nd.offset = uint32(len(s.triangles))
			nd.count = uint16(count)

			for ii := vol.first; ii < vol.last; ii++ {
				triIdx := prims[ii].index
				v0, v1, v2 := mesh.corners(triIdx)

				s.triangles = append(s.triangles, triangle{
					p0:    v0,
					p1:    v1,
					p2:    v2,
					index: triIdx,
				})

				nd.min = types.MinVec3(nd.min, types.MinVec3(v0, types.MinVec3(v1, v2)))
				nd.max = types.MaxVec3(nd.max, types.MaxVec3(v0, types.MaxVec3(v1, v2)))
			}
			s.stats.Leafs++

			if len(pending) == 0 {
				break
			}

			vol = pending[len(pending)-1]
			pending = pending[:len(pending)-1]
		}
	}

	// Propagate bounds from children to parents. Parents always precede
	// their children in the node list, so a single backwards pass suffices.
	for idx := len(s.nodes) - 1; idx >= 0; idx-- {
		if s.nodes[idx].count == 0 {
			left := idx + 1
			right := int(s.nodes[idx].offset)

			s.nodes[idx].min = types.MinVec3(s.nodes[left].min, s.nodes[right].min)
			s.nodes[idx].max = types.MaxVec3(s.nodes[left].max, s.nodes[right].max)
		}
	}

	s.stats.Nodes = len(s.nodes)
	s.stats.BuildTime = time.Since(start)

	s.logger.Debugf(
		"BVH build time: %d ms, maxDepth: %d, nodes: %d, leafs: %d\n",
		s.stats.BuildTime.Nanoseconds()/1e6,
		s.stats.MaxDepth, s.stats.Nodes, s.stats.Leafs,
	)
}

// Pick a SAH split coordinate for vol along axis by binning prim centroids.
// Returns ok == false when no candidate separates the range (all centroids
// in one stratum or a flat axis); the caller falls back to a median cut.
func binnedSplit(prims []prim, vol volume, axis int) (float32, bool) {
	cmin := vol.min[axis]
	extent := vol.max[axis] - vol.min[axis]
	if extent <= 0 {
		return 0, false
	}

	// The slack factor keeps the topmost centroid inside the last bin. A
	// subnormal extent can overflow the scale; treat that like a flat axis.
	scale := sahBins / (extent * 1.00001)
	if scale >= posInf {
		return 0, false
	}

	var binCount [sahBins]uint32
	var binBounds [sahBins]aabb
	for ii := range binBounds {
		binBounds[ii] = emptyAabb()
	}

	for ii := vol.first; ii < vol.last; ii++ {
		bin := int((prims[ii].mid[axis] - cmin) * scale)
		binCount[bin]++
		binBounds[bin].include(prims[ii].min, prims[ii].max)
	}

	// Suffix sums so each candidate's right half is O(1)
	var rightCount [sahBins]uint32
	var rightBounds [sahBins]aabb

	rightCount[sahBins-1] = binCount[sahBins-1]
	rightBounds[sahBins-1] = binBounds[sahBins-1]
	for ii := sahBins - 2; ii >= 0; ii-- {
		rightCount[ii] = rightCount[ii+1] + binCount[ii]

		rightBounds[ii] = rightBounds[ii+1]
		rightBounds[ii].include(binBounds[ii].min, binBounds[ii].max)
	}

	// Sweep the candidates left to right; the first minimal cost wins.
	// Candidates with an empty side score NaN and never get selected.
	bestCost := posInf
	bestSplit := -1

	leftCount := uint32(0)
	leftBounds := emptyAabb()
	for ii := 1; ii < sahBins; ii++ {
		leftCount += binCount[ii-1]
		leftBounds.include(binBounds[ii-1].min, binBounds[ii-1].max)

		cost := float32(leftCount)*leftBounds.area() + float32(rightCount[ii])*rightBounds[ii].area()
		if cost < bestCost {
			bestCost = cost
			bestSplit = ii
		}
	}

	if bestSplit < 0 {
		return 0, false
	}

	return cmin + float32(bestSplit)/scale, true
}

// Trace resolves each rays[i] into hits[i]. Closest-hit traces shrink the
// ray's MaxT in place as nearer intersections are found; shadow traces stop
// at the first intersection.
func (s *Simple) Trace(rays []Ray, hits []Hit, flags uint32) {
	shadow := flags&TraceShadow != 0

	stack := make([]uint32, 0, 128)

	for ii := range rays {
		hit := Hit{Triangle: TriangleInvalid}

		if len(s.nodes) == 0 {
			hits[ii] = hit
			continue
		}

		ray := &rays[ii]
		org := ray.Origin
		dir := ray.Dir

		invDir := types.XYZ(1/dir[0], 1/dir[1], 1/dir[2])
		wr := makeWoopRay(org, dir)

		stack = stack[:0]
		nodeIndex := uint32(0)
		for {
			nd := &s.nodes[nodeIndex]

			if rayVsBounds(org, invDir, ray.MinT, ray.MaxT, nd.min, nd.max) {
				count := uint32(nd.count)
				offset := nd.offset

				if count == 0 {
					// Descend near child first so closest-hit tightens MaxT
					// before the far side is visited
					if dir[nd.axis] > 0 {
						stack = append(stack, offset)
						nodeIndex++
					} else {
						stack = append(stack, nodeIndex+1)
						nodeIndex = offset
					}
					continue
				}

				for jj := uint32(0); jj < count; jj++ {
					tri := &s.triangles[offset+jj]

					if wr.intersect(ray.MinT, ray.MaxT, tri.p0, tri.p1, tri.p2, &hit.Barycentric, &ray.MaxT) {
						hit.Triangle = tri.index
						if shadow {
							// Occlusion only needs a yes/no answer
							hit.Triangle = 0
							stack = stack[:0]
							break
						}
					}
				}
			}

			if len(stack) == 0 {
				break
			}

			nodeIndex = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}

		hits[ii] = hit
	}
}
