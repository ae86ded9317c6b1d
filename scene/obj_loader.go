package scene

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chewxy/math32"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
)

// ModelResult is what a model loader hands back: one mesh per object or
// primitive, plus any materials the file declared keyed by name.
type ModelResult struct {
	Meshes    []*Mesh
	Materials map[string]*Material
	// MeshMaterial maps a mesh index to its material name ("" for none).
	MeshMaterial []string
}

// Merged concatenates every mesh into one, for layouts that place a whole
// model as a single object.
func (r *ModelResult) Merged(name string) *Mesh {
	var verts []core.Vertex
	var idx []uint32
	for _, m := range r.Meshes {
		base := uint32(len(verts))
		verts = append(verts, m.Vertices...)
		for i := 0; i < m.TriangleCount(); i++ {
			a, b, c := m.Triangle(i)
			idx = append(idx, base+a, base+b, base+c)
		}
	}
	return CreateMeshFromData(name, verts, idx)
}

// objFace is an already-triangulated face: 0-based position, UV and
// normal indices, -1 when absent.
type objFace struct {
	v, vt, vn [3]int
}

type objGroup struct {
	name     string
	material string
	faces    []objFace
}

type objParser struct {
	dir       string
	positions []math.Vec3
	normals   []math.Vec3
	uvs       []math.Vec2
	groups    []*objGroup
	materials map[string]*Material
}

// LoadOBJ parses a Wavefront .obj file. A companion .mtl file referenced by
// "mtllib" is loaded into the result's materials.
func LoadOBJ(path string) (*ModelResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj %q: %w", path, err)
	}
	defer f.Close()

	p := &objParser{dir: filepath.Dir(path), materials: map[string]*Material{}}
	if err := p.parse(f); err != nil {
		return nil, fmt.Errorf("obj %q: %w", path, err)
	}

	res := &ModelResult{Materials: p.materials}
	for _, g := range p.groups {
		if len(g.faces) == 0 {
			continue
		}
		res.Meshes = append(res.Meshes, p.build(g))
		res.MeshMaterial = append(res.MeshMaterial, g.material)
	}
	if len(res.Meshes) == 0 {
		return nil, fmt.Errorf("no geometry found in %q", path)
	}
	return res, nil
}

func (p *objParser) current() *objGroup {
	if len(p.groups) == 0 {
		p.groups = append(p.groups, &objGroup{name: "default"})
	}
	return p.groups[len(p.groups)-1]
}

func (p *objParser) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		args := fields[1:]

		switch fields[0] {
		case "v":
			if v, ok := parseFloats(args, 3); ok {
				p.positions = append(p.positions, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
			}
		case "vn":
			if v, ok := parseFloats(args, 3); ok {
				p.normals = append(p.normals, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
			}
		case "vt":
			if v, ok := parseFloats(args, 2); ok {
				p.uvs = append(p.uvs, math.Vec2{X: v[0], Y: v[1]})
			}
		case "o", "g":
			name := "default"
			if len(args) > 0 {
				name = args[0]
			}
			mat := p.current().material
			p.groups = append(p.groups, &objGroup{name: name, material: mat})
		case "usemtl":
			if len(args) > 0 {
				g := p.current()
				if len(g.faces) > 0 && g.material != args[0] {
					g = &objGroup{name: g.name + "_" + args[0]}
					p.groups = append(p.groups, g)
				}
				g.material = args[0]
			}
		case "mtllib":
			if len(args) > 0 {
				mats, err := loadMTL(filepath.Join(p.dir, args[0]), p.dir)
				if err != nil {
					return err
				}
				for k, m := range mats {
					p.materials[k] = m
				}
			}
		case "f":
			if len(args) < 3 {
				continue
			}
			refs := make([][3]int, len(args))
			for i, tok := range args {
				refs[i] = p.resolve(tok)
			}
			// Fan triangulation: 0-1-2, 0-2-3, ...
			g := p.current()
			for i := 1; i+1 < len(refs); i++ {
				a, b, c := refs[0], refs[i], refs[i+1]
				g.faces = append(g.faces, objFace{
					v:  [3]int{a[0], b[0], c[0]},
					vt: [3]int{a[1], b[1], c[1]},
					vn: [3]int{a[2], b[2], c[2]},
				})
			}
		}
	}
	return scanner.Err()
}

// resolve parses "v", "v/vt", "v//vn" or "v/vt/vn", turning 1-based and
// negative (relative) indices into 0-based ones.
func (p *objParser) resolve(tok string) [3]int {
	out := [3]int{-1, -1, -1}
	counts := [3]int{len(p.positions), len(p.uvs), len(p.normals)}
	for i, s := range strings.SplitN(tok, "/", 3) {
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		if n > 0 {
			out[i] = n - 1
		} else if n < 0 {
			out[i] = counts[i] + n
		}
	}
	return out
}

// build converts one group into a deduplicated mesh.
func (p *objParser) build(g *objGroup) *Mesh {
	type key struct{ v, vt, vn int }
	seen := map[key]uint32{}
	var vertices []core.Vertex
	var indices []uint32

	for _, f := range g.faces {
		for c := 0; c < 3; c++ {
			k := key{f.v[c], f.vt[c], f.vn[c]}
			idx, ok := seen[k]
			if !ok {
				v := core.Vertex{Normal: math.Vec3Up, Color: core.ColorWhite}
				if k.v >= 0 && k.v < len(p.positions) {
					v.Position = p.positions[k.v]
				}
				if k.vn >= 0 && k.vn < len(p.normals) {
					v.Normal = p.normals[k.vn]
				}
				if k.vt >= 0 && k.vt < len(p.uvs) {
					v.UV = p.uvs[k.vt]
				}
				idx = uint32(len(vertices))
				vertices = append(vertices, v)
				seen[k] = idx
			}
			indices = append(indices, idx)
		}
	}

	if len(p.normals) == 0 {
		generateNormals(vertices, indices)
	}
	m := CreateMeshFromData(g.name, vertices, indices)
	ComputeTangents(m)
	return m
}

// generateNormals writes area-weighted vertex normals.
func generateNormals(vertices []core.Vertex, indices []uint32) {
	accum := make([]math.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		v0 := vertices[i0].Position
		n := vertices[i1].Position.Sub(v0).Cross(vertices[i2].Position.Sub(v0))
		accum[i0] = accum[i0].Add(n)
		accum[i1] = accum[i1].Add(n)
		accum[i2] = accum[i2].Add(n)
	}
	for i := range vertices {
		if accum[i].LengthSqr() > 0 {
			vertices[i].Normal = accum[i].Normalize()
		}
	}
}

func parseFloats(args []string, n int) ([]float32, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return nil, false
		}
		out[i] = float32(f)
	}
	return out, true
}

// ── MTL loader ───────────────────────────────────────────────────────────────

// loadMTL maps the PBR extension of the MTL format onto Material: Kd, Pr,
// Pm, Ke and the matching map_* statements. Ns is converted to roughness
// when no Pr is given.
func loadMTL(path, dir string) (map[string]*Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mtl %q: %w", path, err)
	}
	defer f.Close()

	mats := map[string]*Material{}
	var cur *Material
	load := func(dst **Texture, args []string, srgb bool) error {
		if len(args) == 0 {
			return nil
		}
		tex, err := LoadTexture(filepath.Join(dir, args[len(args)-1]))
		if err != nil {
			return err
		}
		tex.SRGB = srgb
		*dst = tex
		return nil
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		args := fields[1:]
		if fields[0] == "newmtl" {
			if len(args) > 0 {
				cur = DefaultMaterial()
				cur.Name = args[0]
				mats[args[0]] = cur
			}
			continue
		}
		if cur == nil {
			continue
		}

		var err error
		switch fields[0] {
		case "Kd":
			if v, ok := parseFloats(args, 3); ok {
				cur.BaseColor = core.Color{R: v[0], G: v[1], B: v[2], A: 1}
			}
		case "Ke":
			if v, ok := parseFloats(args, 3); ok {
				cur.EmissiveColor = core.Color{R: v[0], G: v[1], B: v[2], A: 1}
			}
		case "Ns":
			if v, ok := parseFloats(args, 1); ok {
				cur.RoughnessValue = math32.Sqrt(2 / (math32.Max(v[0], 0) + 2))
			}
		case "Pr":
			if v, ok := parseFloats(args, 1); ok {
				cur.RoughnessValue = v[0]
			}
		case "Pm":
			if v, ok := parseFloats(args, 1); ok {
				cur.MetalnessValue = v[0]
			}
		case "map_Kd":
			err = load(&cur.Albedo, args, true)
		case "map_Bump", "bump", "norm":
			err = load(&cur.Normal, args, false)
		case "disp":
			err = load(&cur.Height, args, false)
		case "map_Ka":
			err = load(&cur.AO, args, false)
		case "map_Pr":
			err = load(&cur.Roughness, args, false)
		case "map_Pm":
			err = load(&cur.Metalness, args, false)
		case "map_Ke":
			err = load(&cur.Emissive, args, true)
		}
		if err != nil {
			return nil, fmt.Errorf("mtl %q material %q: %w", path, cur.Name, err)
		}
	}
	return mats, scanner.Err()
}
