package scene

import (
	"errors"
	"fmt"
)

// Scene is the per-session data model: objects, lights, materials and sky.
// It is mutated only between frames.
type Scene struct {
	Objects   []*Object
	Lights    []*PointLight
	Materials map[string]*Material
	Sky       Sky

	// Environments are converted into global probes at initialization;
	// Environment selects the one in use. With none, Sky is baked instead.
	Environments []*Environment
	Environment  int

	// ShadowLight indexes the light that currently casts shadows; -1 for none.
	ShadowLight int

	byID map[string]*Object
}

func NewScene() *Scene {
	return &Scene{
		Materials:   map[string]*Material{"default": DefaultMaterial()},
		Sky:         DefaultSky(),
		ShadowLight: -1,
		byID:        make(map[string]*Object),
	}
}

// AddObject registers o; ids must be unique.
func (s *Scene) AddObject(o *Object) error {
	if _, dup := s.byID[o.ID]; dup {
		return fmt.Errorf("%w: duplicate id %q", ErrInvalidObject, o.ID)
	}
	s.byID[o.ID] = o
	s.Objects = append(s.Objects, o)
	return nil
}

func (s *Scene) Object(id string) *Object {
	return s.byID[id]
}

// AddLight registers l. The first light added becomes the shadow light.
func (s *Scene) AddLight(l *PointLight) {
	s.Lights = append(s.Lights, l)
	if s.ShadowLight < 0 {
		s.ShadowLight = 0
	}
}

func (s *Scene) AddMaterial(m *Material) {
	s.Materials[m.Name] = m
}

// AddEnvironment registers env; names must be unique.
func (s *Scene) AddEnvironment(env *Environment) error {
	if s.EnvironmentIndex(env.Name) >= 0 {
		return fmt.Errorf("duplicate environment %q", env.Name)
	}
	s.Environments = append(s.Environments, env)
	return nil
}

// EnvironmentIndex returns the index of the environment called name, or -1.
func (s *Scene) EnvironmentIndex(name string) int {
	for i, e := range s.Environments {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Material resolves an id, falling back to the default material.
func (s *Scene) Material(id string) *Material {
	if m, ok := s.Materials[id]; ok {
		return m
	}
	return s.Materials["default"]
}

// Validate checks cross references between objects and materials.
func (s *Scene) Validate() error {
	var errs []error
	for _, o := range s.Objects {
		m, ok := s.Materials[o.MaterialID]
		if !ok {
			errs = append(errs, fmt.Errorf("object %q: unknown material %q", o.ID, o.MaterialID))
			continue
		}
		if o.HeightMap && m.Height == nil {
			errs = append(errs, fmt.Errorf("object %q: height_map set but material %q has no height map", o.ID, m.Name))
		}
		if o.NormalMap && m.Normal == nil {
			errs = append(errs, fmt.Errorf("object %q: normal_map set but material %q has no normal map", o.ID, m.Name))
		}
		if o.OpacityMap && m.Albedo == nil {
			errs = append(errs, fmt.Errorf("object %q: opacity_map set but material %q has no albedo map", o.ID, m.Name))
		}
		for _, w := range o.WallFilter {
			if wall := s.byID[w]; wall == nil || !wall.Wall {
				errs = append(errs, fmt.Errorf("object %q: wall_filter names %q which is not a wall", o.ID, w))
			}
		}
	}
	if len(s.Environments) > 0 && (s.Environment < 0 || s.Environment >= len(s.Environments)) {
		errs = append(errs, fmt.Errorf("environment %d out of range (%d environments)", s.Environment, len(s.Environments)))
	}
	for _, e := range s.Environments {
		if len(e.Texels) != e.Width*e.Height || e.Width <= 0 {
			errs = append(errs, fmt.Errorf("environment %q: %d texels for %dx%d", e.Name, len(e.Texels), e.Width, e.Height))
		}
	}
	if s.ShadowLight >= len(s.Lights) {
		errs = append(errs, fmt.Errorf("shadow light %d out of range (%d lights)", s.ShadowLight, len(s.Lights)))
	}
	return errors.Join(errs...)
}
