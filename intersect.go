package bvh

import "github.com/thisistherk/bvh/types"

// min32/max32 mirror the select semantics the slab test depends on: when one
// operand is NaN the first argument wins, so an origin sitting exactly on a
// slab plane does not poison the other axes. The min/max builtins propagate
// NaNs and cannot be used here.
func min32(a, b float32) float32 {
	if b < a {
		return b
	}
	return a
}

func max32(a, b float32) float32 {
	if a < b {
		return b
	}
	return a
}

// Slab test of a ray against an axis-aligned box over the interval
// [tmin, tmax]. invDir components may be ±Inf for zero direction axes.
func rayVsBounds(org, invDir types.Vec3, tmin, tmax float32, min, max types.Vec3) bool {
	tx1 := (min[0] - org[0]) * invDir[0]
	tx2 := (max[0] - org[0]) * invDir[0]

	tmin = max32(tmin, min32(tx1, tx2))
	tmax = min32(tmax, max32(tx1, tx2))

	ty1 := (min[1] - org[1]) * invDir[1]
	ty2 := (max[1] - org[1]) * invDir[1]

	tmin = max32(tmin, min32(ty1, ty2))
	tmax = min32(tmax, max32(ty1, ty2))

	tz1 := (min[2] - org[2]) * invDir[2]
	tz2 := (max[2] - org[2]) * invDir[2]

	tmin = max32(tmin, min32(tz1, tz2))
	tmax = min32(tmax, max32(tz1, tz2))

	return tmax >= tmin
}

// A ray prepared for the watertight triangle test of Woop, Benthin and Wald.
// The axes are permuted so the dominant direction axis maps to z and the
// shear coefficients flatten the direction onto that axis.
type woopRay struct {
	org    types.Vec3
	sx     float32
	sy     float32
	sz     float32
	xIndex int
	yIndex int
	zIndex int
}

func makeWoopRay(org, dir types.Vec3) woopRay {
	r := woopRay{org: org}

	r.zIndex = types.MaxDim(dir)
	r.xIndex = (r.zIndex + 1) % 3
	r.yIndex = (r.zIndex + 2) % 3

	// Swap to preserve winding when the dominant axis points backwards
	if dir[r.zIndex] < 0 {
		r.xIndex, r.yIndex = r.yIndex, r.xIndex
	}

	r.sx = dir[r.xIndex] / dir[r.zIndex]
	r.sy = dir[r.yIndex] / dir[r.zIndex]
	r.sz = 1.0 / dir[r.zIndex]

	return r
}

// Intersect the ray with a triangle over [minT, maxT]. On a hit the
// barycentric weights of p1 and p2 are stored in bary, the distance is
// written through d and the function returns true. Degenerate triangles
// (det == 0) never hit.
func (r woopRay) intersect(minT, maxT float32, p0, p1, p2 types.Vec3, bary *[2]float32, d *float32) bool {
	a := p0.Sub(r.org)
	b := p1.Sub(r.org)
	c := p2.Sub(r.org)

	ax := a[r.xIndex] - r.sx*a[r.zIndex]
	ay := a[r.yIndex] - r.sy*a[r.zIndex]
	bx := b[r.xIndex] - r.sx*b[r.zIndex]
	by := b[r.yIndex] - r.sy*b[r.zIndex]
	cx := c[r.xIndex] - r.sx*c[r.zIndex]
	cy := c[r.yIndex] - r.sy*c[r.zIndex]

	u := cx*by - cy*bx
	v := ax*cy - ay*cx
	w := bx*ay - by*ax

	// An exact zero means the edge function underflowed; redo all three in
	// double precision or edge-on rays can leak between adjacent triangles.
	if u == 0 || v == 0 || w == 0 {
		u = float32(float64(cx)*float64(by) - float64(cy)*float64(bx))
		v = float32(float64(ax)*float64(cy) - float64(ay)*float64(cx))
		w = float32(float64(bx)*float64(ay) - float64(by)*float64(ax))
	}

	if (u < 0 || v < 0 || w < 0) && (u > 0 || v > 0 || w > 0) {
		return false
	}

	det := u + v + w
	if det == 0 {
		return false
	}

	az := r.sz * a[r.zIndex]
	bz := r.sz * b[r.zIndex]
	cz := r.sz * c[r.zIndex]
	tScaled := u*az + v*bz + w*cz

	rcpDet := 1.0 / det
	t := tScaled * rcpDet
	if t < minT || t > maxT {
		return false
	}

	*d = t
	bary[0] = v * rcpDet
	bary[1] = w * rcpDet

	return true
}
