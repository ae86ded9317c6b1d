package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
)

// LayoutFile is the YAML walkthrough description: camera start, sky,
// environment maps, materials, object templates, objects and lights.
// Paths are relative to the file. Environment names the map in use and
// defaults to the first.
type LayoutFile struct {
	Camera      CameraData              `yaml:"camera"`
	Sky          *Sky                    `yaml:"sky"`
	Environments []EnvironmentData       `yaml:"environments"`
	Environment  string                  `yaml:"environment"`
	Materials    []MaterialData          `yaml:"materials"`
	Templates    map[string]yaml.Node    `yaml:"templates"`
	Objects      []yaml.Node             `yaml:"objects"`
	Lights       []PointLight            `yaml:"lights"`
	ShadowLight  *int                    `yaml:"shadow_light"`
	Models       map[string]*ModelResult `yaml:"-"`
}

// CameraData stores the walkthrough's starting camera.
type CameraData struct {
	Position math.Vec3 `yaml:"position"`
	Yaw      float32   `yaml:"yaw"`
	Pitch    float32   `yaml:"pitch"`
	FOV      float32   `yaml:"fov"` // degrees
	Near     float32   `yaml:"near"`
	Far      float32   `yaml:"far"`
}

// MaterialData names the map files and constants of one material.
type MaterialData struct {
	Name      string      `yaml:"name"`
	Albedo    string      `yaml:"albedo"`
	Normal    string      `yaml:"normal"`
	Height    string      `yaml:"height"`
	AO        string      `yaml:"ao"`
	Roughness string      `yaml:"roughness"`
	Metalness string      `yaml:"metalness"`
	Emissive  string      `yaml:"emissive"`
	BaseColor *core.Color `yaml:"base_color"`
	RoughVal  *float32    `yaml:"roughness_value"`
	MetalVal  *float32    `yaml:"metalness_value"`
	AOVal     *float32    `yaml:"ao_value"`
	EmissCol  *core.Color `yaml:"emissive_color"`
}

// objectData is one placed object: a mesh reference plus its config.
// Template names an entry of LayoutFile.Templates used as the base.
type objectData struct {
	Template string  `yaml:"template"`
	Mesh     string  `yaml:"mesh"`
	MeshSize float32 `yaml:"mesh_size"`

	ObjectConfig `yaml:",inline"`
}

// Layout is a loaded walkthrough: the scene plus the starting camera.
type Layout struct {
	Scene  *Scene
	Camera *Camera
}

// LoadLayout reads a walkthrough file and builds its scene.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %q: %w", path, err)
	}
	var lf LayoutFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse layout %q: %w", path, err)
	}
	l, err := lf.Build(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("layout %q: %w", path, err)
	}
	return l, nil
}

// Build resolves materials, templates and meshes relative to dir.
func (lf *LayoutFile) Build(dir string) (*Layout, error) {
	s := NewScene()
	if lf.Sky != nil {
		s.Sky = *lf.Sky
	}
	for _, ed := range lf.Environments {
		if ed.Name == "" {
			ed.Name = strings.TrimSuffix(filepath.Base(ed.Path), filepath.Ext(ed.Path))
		}
		env, err := LoadEnvironment(ed.Name, filepath.Join(dir, ed.Path), ed.Intensity)
		if err != nil {
			return nil, err
		}
		if err := s.AddEnvironment(env); err != nil {
			return nil, err
		}
	}
	if lf.Environment != "" {
		if s.Environment = s.EnvironmentIndex(lf.Environment); s.Environment < 0 {
			return nil, fmt.Errorf("unknown environment %q", lf.Environment)
		}
	}

	for _, md := range lf.Materials {
		m, err := md.build(dir)
		if err != nil {
			return nil, err
		}
		s.AddMaterial(m)
	}

	templates := map[string]ObjectConfig{}
	for name, node := range lf.Templates {
		cfg := DefaultObjectConfig()
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		templates[name] = cfg
	}

	if lf.Models == nil {
		lf.Models = map[string]*ModelResult{}
	}
	for i := range lf.Objects {
		obj, err := lf.buildObject(&lf.Objects[i], templates, dir, s)
		if err != nil {
			return nil, err
		}
		if err := s.AddObject(obj); err != nil {
			return nil, err
		}
	}

	for i := range lf.Lights {
		l := lf.Lights[i]
		if l.Color == (core.Color{}) {
			l.Color = core.ColorWhite
		}
		s.AddLight(&l)
	}
	if lf.ShadowLight != nil {
		s.ShadowLight = *lf.ShadowLight
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	cam := NewCamera(math.Radians(45), 16.0/9.0, 0.01, 100)
	cam.Position = lf.Camera.Position
	cam.Yaw, cam.Pitch = lf.Camera.Yaw, lf.Camera.Pitch
	if lf.Camera.FOV > 0 {
		cam.FOV = math.Radians(lf.Camera.FOV)
	}
	if lf.Camera.Near > 0 {
		cam.NearPlane = lf.Camera.Near
	}
	if lf.Camera.Far > 0 {
		cam.FarPlane = lf.Camera.Far
	}
	return &Layout{Scene: s, Camera: cam}, nil
}

func (lf *LayoutFile) buildObject(node *yaml.Node, templates map[string]ObjectConfig, dir string, s *Scene) (*Object, error) {
	var head struct {
		Template string `yaml:"template"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, err
	}

	od := objectData{ObjectConfig: DefaultObjectConfig()}
	if head.Template != "" {
		base, ok := templates[head.Template]
		if !ok {
			return nil, fmt.Errorf("unknown template %q", head.Template)
		}
		if err := copier.CopyWithOption(&od.ObjectConfig, &base, copier.Option{DeepCopy: true}); err != nil {
			return nil, fmt.Errorf("template %q: %w", head.Template, err)
		}
	}
	if err := node.Decode(&od); err != nil {
		return nil, fmt.Errorf("object at line %d: %w", node.Line, err)
	}

	mesh, err := lf.resolveMesh(od.Mesh, od.MeshSize, dir, s)
	if err != nil {
		return nil, fmt.Errorf("object %q: %w", od.ID, err)
	}
	return NewObject(od.ObjectConfig, mesh)
}

// resolveMesh maps a mesh reference to geometry: the built-in primitives
// "sphere", "cube" and "plane", or an .obj/.gltf/.glb path. Model files
// are loaded once and their materials registered as "<file>/<name>".
func (lf *LayoutFile) resolveMesh(ref string, size float32, dir string, s *Scene) (*Mesh, error) {
	if size <= 0 {
		size = 1
	}
	switch ref {
	case "sphere":
		return CreateSphere(size/2, 32, 16), nil
	case "cube", "":
		return CreateCube(size), nil
	case "plane":
		return CreatePlane(size, size, 1), nil
	}

	path := filepath.Join(dir, ref)
	model, ok := lf.Models[path]
	if !ok {
		var err error
		switch strings.ToLower(filepath.Ext(ref)) {
		case ".obj":
			model, err = LoadOBJ(path)
		case ".gltf", ".glb":
			model, err = LoadGLTF(path)
		default:
			return nil, fmt.Errorf("unknown mesh %q", ref)
		}
		if err != nil {
			return nil, err
		}
		lf.Models[path] = model
		for name, m := range model.Materials {
			m.Name = ref + "/" + name
			s.AddMaterial(m)
		}
	}
	return model.Merged(ref), nil
}

func (md MaterialData) build(dir string) (*Material, error) {
	if md.Name == "" {
		return nil, fmt.Errorf("material without name")
	}
	m := DefaultMaterial()
	m.Name = md.Name

	maps := []struct {
		path string
		dst  **Texture
		srgb bool
	}{
		{md.Albedo, &m.Albedo, true},
		{md.Normal, &m.Normal, false},
		{md.Height, &m.Height, false},
		{md.AO, &m.AO, false},
		{md.Roughness, &m.Roughness, false},
		{md.Metalness, &m.Metalness, false},
		{md.Emissive, &m.Emissive, true},
	}
	for _, mp := range maps {
		if mp.path == "" {
			continue
		}
		tex, err := LoadTexture(filepath.Join(dir, mp.path))
		if err != nil {
			return nil, fmt.Errorf("material %q: %w", md.Name, err)
		}
		tex.SRGB = mp.srgb
		*mp.dst = tex
	}

	if md.BaseColor != nil {
		m.BaseColor = *md.BaseColor
	}
	if md.RoughVal != nil {
		m.RoughnessValue = *md.RoughVal
	}
	if md.MetalVal != nil {
		m.MetalnessValue = *md.MetalVal
	}
	if md.AOVal != nil {
		m.AOValue = *md.AOVal
	}
	if md.EmissCol != nil {
		m.EmissiveColor = *md.EmissCol
	}
	return m, nil
}
