package software

import (
	"runtime"
	"sync"

	"github.com/chewxy/math32"

	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// body is one draw item with its mesh transformed to world space.
type body struct {
	item   *pipeline.DrawItem
	bounds scene.AABB
	cull   pipeline.CullMode

	pos []math.Vec3
	nrm []math.Vec3
	tan []math.Vec3
	bit []math.Vec3
	uv  []math.Vec2
	idx [][3]uint32
}

func newBody(item *pipeline.DrawItem, mesh *scene.Mesh, model math.Mat4, cull pipeline.CullMode) *body {
	normal := model.NormalMatrix()
	b := &body{
		item: item,
		cull: cull,
		pos:  make([]math.Vec3, len(mesh.Vertices)),
		nrm:  make([]math.Vec3, len(mesh.Vertices)),
		tan:  make([]math.Vec3, len(mesh.Vertices)),
		bit:  make([]math.Vec3, len(mesh.Vertices)),
		uv:   make([]math.Vec2, len(mesh.Vertices)),
		idx:  make([][3]uint32, mesh.TriangleCount()),
	}
	for i, v := range mesh.Vertices {
		b.pos[i] = model.MulPoint(v.Position)
		b.nrm[i] = normal.MulDir(v.Normal)
		b.tan[i] = model.MulDir(v.Tangent)
		b.bit[i] = model.MulDir(v.Bitangent)
		b.uv[i] = v.UV
		if i == 0 {
			b.bounds = scene.AABB{Min: b.pos[0], Max: b.pos[0]}
		} else {
			b.bounds = b.bounds.Extend(b.pos[i])
		}
	}
	for i := range b.idx {
		i0, i1, i2 := mesh.Triangle(i)
		b.idx[i] = [3]uint32{i0, i1, i2}
	}
	return b
}

// world is the set of bodies a pass ray-casts against.
type world struct {
	bodies []*body
}

// newWorld builds bodies for the items keep selects; nil keeps all.
// Each body culls the way its surface state does.
func newWorld(items []pipeline.DrawItem, keep func(*pipeline.DrawItem) bool) *world {
	w := &world{}
	for i := range items {
		it := &items[i]
		if keep != nil && !keep(it) {
			continue
		}
		o := it.Object
		w.bodies = append(w.bodies, newBody(it, o.Mesh, o.ModelMatrix(), pipeline.SurfaceState(o.Mesh.Closed).Cull))
	}
	return w
}

// hit is a ray/triangle intersection.
type hit struct {
	body  *body
	tri   int
	t     float32
	b1    float32
	b2    float32
	front bool
}

// bary interpolates a per-vertex attribute at the hit.
func bary[T interface {
	Mul(float32) T
	Add(T) T
}](h *hit, attr []T) T {
	i := h.body.idx[h.tri]
	b0 := 1 - h.b1 - h.b2
	return attr[i[0]].Mul(b0).Add(attr[i[1]].Mul(h.b1)).Add(attr[i[2]].Mul(h.b2))
}

// intersect is the Möller-Trumbore test. front is true when the triangle
// winds counter-clockwise as seen from the ray origin.
func intersect(origin, dir, p0, p1, p2 math.Vec3) (t, b1, b2 float32, front, ok bool) {
	const eps = 1e-9
	e1 := p1.Sub(p0)
	e2 := p2.Sub(p0)
	pv := dir.Cross(e2)
	det := e1.Dot(pv)
	if math32.Abs(det) < eps {
		return 0, 0, 0, false, false
	}
	inv := 1 / det
	tv := origin.Sub(p0)
	b1 = tv.Dot(pv) * inv
	if b1 < 0 || b1 > 1 {
		return 0, 0, 0, false, false
	}
	qv := tv.Cross(e1)
	b2 = dir.Dot(qv) * inv
	if b2 < 0 || b1+b2 > 1 {
		return 0, 0, 0, false, false
	}
	t = e2.Dot(qv) * inv
	return t, b1, b2, det > 0, true
}

func culled(mode pipeline.CullMode, front bool) bool {
	return (mode == pipeline.CullBack && !front) || (mode == pipeline.CullFront && front)
}

// query parameterizes a nearest-hit cast. A nil cull uses each body's
// own mode; accept, when set, rejects hits such as cut-out texels.
type query struct {
	tMin   float32
	tMax   float32
	cull   *pipeline.CullMode
	accept func(*hit) bool
}

// nearest returns the closest accepted hit along the ray.
func (w *world) nearest(origin, dir math.Vec3, q query) (hit, bool) {
	best := hit{t: q.tMax}
	found := false
	for _, b := range w.bodies {
		tn, tf, ok := b.bounds.IntersectRay(origin, dir)
		if !ok || tn > best.t || tf < q.tMin {
			continue
		}
		mode := b.cull
		if q.cull != nil {
			mode = *q.cull
		}
		for ti, tri := range b.idx {
			t, b1, b2, front, ok := intersect(origin, dir, b.pos[tri[0]], b.pos[tri[1]], b.pos[tri[2]])
			if !ok || t < q.tMin || t >= best.t || culled(mode, front) {
				continue
			}
			h := hit{body: b, tri: ti, t: t, b1: b1, b2: b2, front: front}
			if q.accept != nil && !q.accept(&h) {
				continue
			}
			best = h
			found = true
		}
	}
	return best, found
}

// all calls fn for every hit along the ray, unculled and unsorted.
func (b *body) all(origin, dir math.Vec3, fn func(t float32, front bool)) {
	if _, _, ok := b.bounds.IntersectRay(origin, dir); !ok {
		return
	}
	for _, tri := range b.idx {
		if t, _, _, front, ok := intersect(origin, dir, b.pos[tri[0]], b.pos[tri[1]], b.pos[tri[2]]); ok && t >= 0 {
			fn(t, front)
		}
	}
}

// camera generates per-pixel rays for a view.
type camera struct {
	view pipeline.View
	inv  math.Mat4
}

func newCamera(v pipeline.View) camera {
	return camera{view: v, inv: v.ViewProjection().Inverse()}
}

// ray returns the ray through pixel coordinates (px, py) of the view, its
// origin on the near plane, and the distance to the far plane.
func (c camera) ray(px, py float32) (origin, dir math.Vec3, far float32) {
	x := 2*px/float32(c.view.Width) - 1
	y := 2*py/float32(c.view.Height) - 1
	near := c.inv.MulVec(math.Vec4{X: x, Y: y, Z: -1, W: 1}).ToVec3DivW()
	farP := c.inv.MulVec(math.Vec4{X: x, Y: y, Z: 1, W: 1}).ToVec3DivW()
	d := farP.Sub(near)
	far = d.Length()
	return near, d.Div(far), far
}

// sampleOffsets are the subpixel positions of each MSAA sample.
func sampleOffsets(n int) [][2]float32 {
	switch n {
	case 1:
		return [][2]float32{{0.5, 0.5}}
	case 2:
		return [][2]float32{{0.75, 0.75}, {0.25, 0.25}}
	case 4:
		return [][2]float32{{0.375, 0.125}, {0.875, 0.375}, {0.125, 0.625}, {0.625, 0.875}}
	}
	out := make([][2]float32, n)
	for i := range out {
		out[i] = [2]float32{(float32(i) + 0.5) / float32(n), (float32((i*3)%n) + 0.5) / float32(n)}
	}
	return out
}

// parallelRows runs fn for every row, spread over the available CPUs.
// Rows write disjoint texels, so no further locking is needed.
func parallelRows(rows int, fn func(y int)) {
	workers := min(runtime.NumCPU(), rows)
	if workers <= 1 {
		for y := 0; y < rows; y++ {
			fn(y)
		}
		return
	}
	var wg sync.WaitGroup
	next := make(chan int)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range next {
				fn(y)
			}
		}()
	}
	for y := 0; y < rows; y++ {
		next <- y
	}
	close(next)
	wg.Wait()
}

// raySphere returns the nearest positive distance to a sphere.
func raySphere(origin, dir, centre math.Vec3, radius float32) (float32, bool) {
	oc := origin.Sub(centre)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	s := math32.Sqrt(disc)
	if t := -b - s; t >= 0 {
		return t, true
	}
	if t := -b + s; t >= 0 {
		return t, true
	}
	return 0, false
}
