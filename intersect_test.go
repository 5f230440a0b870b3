package bvh

import (
	"math"
	"testing"

	"github.com/thisistherk/bvh/types"
)

func TestRayVsBounds(t *testing.T) {
	bmin := types.XYZ(-1, -1, -1)
	bmax := types.XYZ(1, 1, 1)

	specs := []struct {
		desc string
		org  types.Vec3
		dir  types.Vec3
		exp  bool
	}{
		{"through the middle", types.XYZ(0, 0, -5), types.XYZ(0, 0, 1), true},
		{"diagonal hit", types.XYZ(-5, -5, -5), types.XYZ(1, 1, 1), true},
		{"offset miss", types.XYZ(0, 5, -5), types.XYZ(0, 0, 1), false},
		{"box behind origin", types.XYZ(0, 0, 5), types.XYZ(0, 0, 1), false},
		{"origin inside", types.XYZ(0.5, -0.5, 0), types.XYZ(1, 0, 0), true},
		{"axis-parallel inside slab", types.XYZ(0, 0.5, -5), types.XYZ(0, 0, 1), true},
		{"axis-parallel outside slab", types.XYZ(0, 2, -5), types.XYZ(0, 0, 1), false},
	}

	for _, spec := range specs {
		invDir := types.XYZ(1/spec.dir[0], 1/spec.dir[1], 1/spec.dir[2])
		got := rayVsBounds(spec.org, invDir, 0, float32(math.Inf(1)), bmin, bmax)
		if got != spec.exp {
			t.Fatalf("[%s] expected %t; got %t", spec.desc, spec.exp, got)
		}
	}
}

func TestRayVsBoundsHonorsInterval(t *testing.T) {
	bmin := types.XYZ(-1, -1, 4)
	bmax := types.XYZ(1, 1, 6)

	org := types.XYZ(0, 0, 0)
	invDir := types.XYZ(float32(math.Inf(1)), float32(math.Inf(1)), 1)

	if !rayVsBounds(org, invDir, 0, 10, bmin, bmax) {
		t.Fatal("expected hit with maxT beyond the box")
	}
	if rayVsBounds(org, invDir, 0, 3, bmin, bmax) {
		t.Fatal("expected miss with maxT in front of the box")
	}
	if rayVsBounds(org, invDir, 7, 10, bmin, bmax) {
		t.Fatal("expected miss with minT behind the box")
	}
}

func TestWoopRayPermutation(t *testing.T) {
	specs := []struct {
		dir        types.Vec3
		expZ       int
		expX, expY int
	}{
		{types.XYZ(1, 0.1, 0.1), 0, 1, 2},
		{types.XYZ(0.1, 1, 0.1), 1, 2, 0},
		{types.XYZ(0.1, 0.1, 1), 2, 0, 1},
		// Negative dominant axis swaps x and y to keep the winding
		{types.XYZ(0.1, 0.1, -1), 2, 1, 0},
		{types.XYZ(-1, 0.1, 0.1), 0, 2, 1},
	}

	for _, spec := range specs {
		wr := makeWoopRay(types.XYZ(0, 0, 0), spec.dir)
		if wr.zIndex != spec.expZ || wr.xIndex != spec.expX || wr.yIndex != spec.expY {
			t.Fatalf("expected permutation (%d %d %d) for dir %v; got (%d %d %d)",
				spec.expX, spec.expY, spec.expZ, spec.dir, wr.xIndex, wr.yIndex, wr.zIndex)
		}
	}
}

func TestWoopTriangleHit(t *testing.T) {
	p0 := types.XYZ(0, 0, 0)
	p1 := types.XYZ(1, 0, 0)
	p2 := types.XYZ(0, 1, 0)

	wr := makeWoopRay(types.XYZ(0.25, 0.25, -1), types.XYZ(0, 0, 1))

	var bary [2]float32
	maxT := float32(math.Inf(1))
	if !wr.intersect(0, maxT, p0, p1, p2, &bary, &maxT) {
		t.Fatal("expected hit")
	}

	if maxT < 1-1e-6 || maxT > 1+1e-6 {
		t.Fatalf("expected distance 1; got %f", maxT)
	}
	if math.Abs(float64(bary[0]-0.25)) > 1e-6 || math.Abs(float64(bary[1]-0.25)) > 1e-6 {
		t.Fatalf("expected barycentrics (0.25, 0.25); got %v", bary)
	}
}

func TestWoopTriangleInterval(t *testing.T) {
	p0 := types.XYZ(0, 0, 5)
	p1 := types.XYZ(1, 0, 5)
	p2 := types.XYZ(0, 1, 5)

	wr := makeWoopRay(types.XYZ(0.25, 0.25, 0), types.XYZ(0, 0, 1))

	var bary [2]float32
	d := float32(0)

	maxT := float32(4)
	if wr.intersect(0, maxT, p0, p1, p2, &bary, &d) {
		t.Fatal("expected miss with maxT in front of the triangle")
	}
	if wr.intersect(6, 10, p0, p1, p2, &bary, &d) {
		t.Fatal("expected miss with minT behind the triangle")
	}
	if !wr.intersect(0, 10, p0, p1, p2, &bary, &d) {
		t.Fatal("expected hit")
	}
}

func TestWoopTriangleNegativeDirection(t *testing.T) {
	p0 := types.XYZ(0, 0, 0)
	p1 := types.XYZ(1, 0, 0)
	p2 := types.XYZ(0, 1, 0)

	wr := makeWoopRay(types.XYZ(0.25, 0.25, 1), types.XYZ(0, 0, -1))

	var bary [2]float32
	maxT := float32(math.Inf(1))
	if !wr.intersect(0, maxT, p0, p1, p2, &bary, &maxT) {
		t.Fatal("expected hit against the backside")
	}
	if maxT < 1-1e-6 || maxT > 1+1e-6 {
		t.Fatalf("expected distance 1; got %f", maxT)
	}
	if math.Abs(float64(bary[0]-0.25)) > 1e-6 || math.Abs(float64(bary[1]-0.25)) > 1e-6 {
		t.Fatalf("expected barycentrics (0.25, 0.25); got %v", bary)
	}
}

func TestWoopDegenerateTriangle(t *testing.T) {
	// Collinear corners span no area; det must vanish and reject the hit
	p0 := types.XYZ(0, 0, 0)
	p1 := types.XYZ(1, 0, 0)
	p2 := types.XYZ(2, 0, 0)

	wr := makeWoopRay(types.XYZ(0.5, 0, -1), types.XYZ(0, 0, 1))

	var bary [2]float32
	maxT := float32(math.Inf(1))
	if wr.intersect(0, maxT, p0, p1, p2, &bary, &maxT) {
		t.Fatal("expected degenerate triangle to be skipped")
	}
}

func TestWoopSharedEdgeWatertight(t *testing.T) {
	// Two triangles split a quad along the diagonal. A ray through a point
	// exactly on the diagonal lands in the zero set of one edge function
	// per triangle; the double precision fallback must keep the edge from
	// leaking.
	quad := []types.Vec3{
		types.XYZ(0, 0, 0),
		types.XYZ(1, 0, 0),
		types.XYZ(1, 1, 0),
		types.XYZ(0, 1, 0),
	}

	wr := makeWoopRay(types.XYZ(0.5, 0.5, -1), types.XYZ(0, 0, 1))

	hits := 0
	var lastT float32
	for _, tri := range [][3]int{{0, 1, 2}, {0, 2, 3}} {
		var bary [2]float32
		d := float32(0)
		if wr.intersect(0, float32(math.Inf(1)), quad[tri[0]], quad[tri[1]], quad[tri[2]], &bary, &d) {
			hits++
			lastT = d
		}
	}

	if hits == 0 {
		t.Fatal("expected the shared edge to be watertight")
	}
	if lastT < 1-1e-6 || lastT > 1+1e-6 {
		t.Fatalf("expected edge hit at distance 1; got %f", lastT)
	}
}
