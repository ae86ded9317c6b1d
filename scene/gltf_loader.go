package scene

import (
	"fmt"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/math"
)

// LoadGLTF opens a .glb or .gltf file. Node transforms are baked into the
// vertices so every returned mesh is in model space; materials are keyed
// by their glTF name (or "material_<i>").
func LoadGLTF(path string) (*ModelResult, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	dir := filepath.Dir(path)
	log := logger.Log.With(zap.String("model", path))

	// ── 1. Textures ───────────────────────────────────────────────────────────
	texCache := make([]*Texture, len(doc.Textures))
	for i, gt := range doc.Textures {
		if gt.Source == nil {
			continue
		}
		img := doc.Images[*gt.Source]

		var tex *Texture
		switch {
		case img.BufferView != nil:
			raw, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
			if err != nil {
				log.Warn("gltf image buffer view", zap.Int("image", *gt.Source), zap.Error(err))
				continue
			}
			name := img.Name
			if name == "" {
				name = fmt.Sprintf("gltf_img_%d", *gt.Source)
			}
			tex, err = decodeImageBytes(name, raw)
			if err != nil {
				log.Warn("gltf image decode", zap.Int("image", *gt.Source), zap.Error(err))
				continue
			}
		case img.URI != "" && !img.IsEmbeddedResource():
			tex, err = LoadTexture(filepath.Join(dir, img.URI))
			if err != nil {
				log.Warn("gltf image load", zap.String("uri", img.URI), zap.Error(err))
				continue
			}
		}
		texCache[i] = tex
	}
	texture := func(idx int, srgb bool) *Texture {
		if idx < 0 || idx >= len(texCache) || texCache[idx] == nil {
			return nil
		}
		t := *texCache[idx]
		t.SRGB = srgb
		return &t
	}

	// ── 2. Materials ─────────────────────────────────────────────────────────
	res := &ModelResult{Materials: map[string]*Material{}}
	matNames := make([]string, len(doc.Materials))
	for i, gm := range doc.Materials {
		mat := DefaultMaterial()
		mat.Name = gm.Name
		if mat.Name == "" {
			mat.Name = fmt.Sprintf("material_%d", i)
		}

		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			mat.BaseColor = core.Color{R: float32(cf[0]), G: float32(cf[1]), B: float32(cf[2]), A: float32(cf[3])}
			mat.RoughnessValue = float32(pbr.RoughnessFactorOrDefault())
			mat.MetalnessValue = float32(pbr.MetallicFactorOrDefault())
			if pbr.BaseColorTexture != nil {
				mat.Albedo = texture(pbr.BaseColorTexture.Index, true)
			}
			// glTF packs roughness in G and metalness in B; the shaders read R,
			// so the map is split into two single-channel textures.
			if pbr.MetallicRoughnessTexture != nil {
				if mr := texture(pbr.MetallicRoughnessTexture.Index, false); mr != nil {
					mat.Roughness = channelTexture(mr, 1)
					mat.Metalness = channelTexture(mr, 2)
				}
			}
		}
		if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
			mat.Normal = texture(*gm.NormalTexture.Index, false)
		}
		if gm.OcclusionTexture != nil && gm.OcclusionTexture.Index != nil {
			mat.AO = texture(*gm.OcclusionTexture.Index, false)
		}
		if gm.EmissiveTexture != nil {
			mat.Emissive = texture(gm.EmissiveTexture.Index, true)
		}
		ef := gm.EmissiveFactor
		mat.EmissiveColor = core.Color{R: float32(ef[0]), G: float32(ef[1]), B: float32(ef[2]), A: 1}

		matNames[i] = mat.Name
		res.Materials[mat.Name] = mat
	}

	// ── 3. Mesh primitives ────────────────────────────────────────────────────
	type prim struct {
		mesh     *Mesh
		material string
	}
	meshPrims := make([][]prim, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		for pi, p := range gm.Primitives {
			m, err := loadGLTFPrimitive(doc, gm.Name, pi, *p)
			if err != nil {
				log.Warn("gltf primitive", zap.Int("mesh", mi), zap.Int("primitive", pi), zap.Error(err))
				continue
			}
			name := ""
			if p.Material != nil && *p.Material < len(matNames) {
				name = matNames[*p.Material]
			}
			meshPrims[mi] = append(meshPrims[mi], prim{m, name})
		}
	}

	// ── 4. Node hierarchy, flattened ──────────────────────────────────────────
	var visit func(idx int, parent math.Mat4)
	visit = func(idx int, parent math.Mat4) {
		gn := doc.Nodes[idx]
		t := gn.TranslationOrDefault()
		sc := gn.ScaleOrDefault()
		r := gn.RotationOrDefault() // [x, y, z, w]
		local := math.Mat4TRS(
			math.Vec3{X: float32(t[0]), Y: float32(t[1]), Z: float32(t[2])},
			math.Quaternion{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])},
			math.Vec3{X: float32(sc[0]), Y: float32(sc[1]), Z: float32(sc[2])},
		)
		world := local.Mul(parent)

		if gn.Mesh != nil && *gn.Mesh < len(meshPrims) {
			for _, p := range meshPrims[*gn.Mesh] {
				res.Meshes = append(res.Meshes, bakeTransform(p.mesh, world))
				res.MeshMaterial = append(res.MeshMaterial, p.material)
			}
		}
		for _, c := range gn.Children {
			if c < len(doc.Nodes) {
				visit(c, world)
			}
		}
	}

	var roots []int
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		roots = doc.Scenes[*doc.Scene].Nodes
	} else {
		hasParent := make([]bool, len(doc.Nodes))
		for _, gn := range doc.Nodes {
			for _, c := range gn.Children {
				if c < len(hasParent) {
					hasParent[c] = true
				}
			}
		}
		for i := range doc.Nodes {
			if !hasParent[i] {
				roots = append(roots, i)
			}
		}
	}
	for _, r := range roots {
		if r < len(doc.Nodes) {
			visit(r, math.Mat4Identity())
		}
	}

	if len(res.Meshes) == 0 {
		return nil, fmt.Errorf("gltf %q: no geometry", path)
	}
	return res, nil
}

// loadGLTFPrimitive converts one glTF mesh primitive into a scene.Mesh.
func loadGLTFPrimitive(doc *gltf.Document, meshName string, primIdx int, prim gltf.Primitive) (*Mesh, error) {
	name := fmt.Sprintf("%s_p%d", meshName, primIdx)
	if meshName == "" {
		name = fmt.Sprintf("prim_%d", primIdx)
	}

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	var normals [][3]float32
	var uvs [][2]float32
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, _ = modeler.ReadNormal(doc, doc.Accessors[idx], nil)
	}
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, _ = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
	}

	verts := make([]core.Vertex, len(positions))
	for i, p := range positions {
		v := core.Vertex{
			Position: math.Vec3{X: p[0], Y: p[1], Z: p[2]},
			Normal:   math.Vec3Up,
			Color:    core.ColorWhite,
		}
		if i < len(normals) {
			n := normals[i]
			v.Normal = math.Vec3{X: n[0], Y: n[1], Z: n[2]}
		}
		if i < len(uvs) {
			// glTF puts v = 0 at the top of the image.
			v.UV = math.Vec2{X: uvs[i][0], Y: 1 - uvs[i][1]}
		}
		verts[i] = v
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	}

	m := CreateMeshFromData(name, verts, indices)
	if len(normals) == 0 {
		generateNormals(m.Vertices, m.Indices)
	}
	ComputeTangents(m)
	return m, nil
}

// bakeTransform returns a copy of m with positions and normals moved by world.
func bakeTransform(m *Mesh, world math.Mat4) *Mesh {
	normal := world.NormalMatrix()
	verts := make([]core.Vertex, len(m.Vertices))
	for i, v := range m.Vertices {
		v.Position = world.MulPoint(v.Position)
		v.Normal = normal.MulDir(v.Normal).Normalize()
		v.Tangent = world.MulDir(v.Tangent).Normalize()
		v.Bitangent = world.MulDir(v.Bitangent).Normalize()
		verts[i] = v
	}
	out := CreateMeshFromData(m.Name, verts, m.Indices)
	out.Closed = m.Closed
	return out
}

// channelTexture copies channel c of src into the R channel of a new texture.
func channelTexture(src *Texture, c int) *Texture {
	out := &Texture{Name: fmt.Sprintf("%s[%d]", src.Name, c), Width: src.Width, Height: src.Height}
	out.Pixels = make([]byte, len(src.Pixels))
	for i := 0; i+3 < len(src.Pixels); i += 4 {
		v := src.Pixels[i+c]
		out.Pixels[i], out.Pixels[i+1], out.Pixels[i+2], out.Pixels[i+3] = v, v, v, 255
	}
	return out
}
