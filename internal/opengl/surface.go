package opengl

import (
	gl "github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// bindTexture binds h to unit, or unbinds the unit when ok is false.
func bindTexture(unit int32, target uint32, h core.Handle, ok bool) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	if ok {
		gl.BindTexture(target, uint32(h))
	} else {
		gl.BindTexture(target, 0)
	}
}

// materialSlots names the has-flag of each material map in unit order.
var materialSlots = [7]string{
	"hasAlbedoMap", "hasNormalMap", "hasHeightMap", "hasAOMap",
	"hasRoughnessMap", "hasMetalnessMap", "hasEmissiveMap",
}

// bindMaterial uploads and binds the material maps and sets the constants
// that stand in for absent ones.
func (d *Device) bindMaterial(p *program, m *scene.Material) {
	for unit, tex := range m.Textures() {
		var id uint32
		if tex != nil {
			var err error
			if id, err = d.res.uploadMaterialTexture(tex); err != nil {
				logger.Log.Warn("material map skipped", zap.String("material", m.Name), zap.Error(err))
			}
		}
		bindTexture(int32(unit), gl.TEXTURE_2D, core.Handle(id), id != 0)
		p.setBool(materialSlots[unit], id != 0)
	}
	c := m.BaseColor
	gl.Uniform4f(p.loc("baseColor"), c.R, c.G, c.B, c.A)
	p.setFloat("roughnessValue", m.RoughnessValue)
	p.setFloat("metalnessValue", m.MetalnessValue)
	p.setFloat("aoValue", m.AOValue)
	p.setVec3("emissiveColor", m.EmissiveColor.RGB())
}

// bindObject sets the transform and per-object flags.
func bindObject(p *program, o *scene.Object) {
	p.setMat4("model", o.ModelMatrix())
	p.setMat4("normalMatrix", o.NormalMatrix())
	p.setFloat("uvScale", o.UVScale)
	p.setBool("useNormalMap", o.NormalMap)
	p.setBool("opacityMap", o.OpacityMap)
	p.setBool("emissive", o.Emissive)
	p.setFloat("emissiveFactor", o.EmissiveFactor)
	p.setFloat("alpha", o.Alpha)
	p.setBool("receiveShadow", o.ReceiveShadow)
	p.setFloat("shadowDarkness", o.ShadowDarkness)
	p.setFloat("shadowBias", o.ShadowBias)
	p.setBool("bloom", o.Bloom)
	p.setFloat("bloomBrightness", o.BloomBrightness)
	p.setFloat("tessFactor", o.TessellationFactor)
	p.setFloat("displacement", o.DisplacementFactor)
}

// bindProbe binds a probe's convolved maps and the BRDF lookup; a probe
// that is not baked disables the ambient term.
func (d *Device) bindProbe(p *program, probe scene.Probe, brdf core.Handle) {
	pre, err := d.res.tex(probe.Prefiltered)
	_, brdfErr := d.res.tex(brdf)
	ok := probe.Baked() && err == nil && brdfErr == nil
	p.setBool("hasProbe", ok)
	bindTexture(unitIrradiance, gl.TEXTURE_CUBE_MAP, probe.Irradiance, ok)
	bindTexture(unitPrefiltered, gl.TEXTURE_CUBE_MAP, probe.Prefiltered, ok)
	bindTexture(unitBRDF, gl.TEXTURE_2D, brdf, ok)
	if ok {
		p.setFloat("prefilterLevels", float32(pre.levels))
	}
}

// bindParallax sets the probe box used to correct reflections of o.
func bindParallax(p *program, o *scene.Object) {
	p.setBool("parallax", o.ParallaxCubemap)
	if o.ParallaxCubemap {
		box := o.ProbeBox()
		p.setVec3("probeBoxMin", box.Min)
		p.setVec3("probeBoxMax", box.Max)
		p.setVec3("capturePos", o.CapturePosition())
	}
}

// bindShadow binds the shadow cubemap of the active shadow light.
func (d *Device) bindShadow(p *program, s pipeline.ShadowInfo) {
	_, err := d.res.tex(s.Map)
	on := s.Enabled && err == nil
	p.setBool("shadowEnabled", on)
	p.setInt("shadowLight", int32(s.Light))
	p.setVec3("shadowPos", s.Position)
	bindTexture(unitShadow, gl.TEXTURE_CUBE_MAP, s.Map, on)
}

// surfacePass draws items with the flat or displacement program of a
// pass. perProgram runs once when a program becomes current, perItem
// before each draw.
type surfacePass struct {
	flat     *program
	patch    *program
	viewProj math.Mat4
	// state overrides the per-mesh opaque state when set.
	state      *pipeline.RenderState
	eye        math.Vec3
	perProgram func(p *program)
	perItem    func(p *program, it *pipeline.DrawItem)
}

func (d *Device) drawSurfaces(sp surfacePass, items []pipeline.DrawItem) {
	var current *program
	for i := range items {
		it := &items[i]
		p := sp.flat
		if it.Variant == pipeline.VariantDisplacement && sp.patch != nil {
			p = sp.patch
		}
		if p != current {
			p.use()
			p.setMat4("viewProj", sp.viewProj)
			p.setVec3("eyePos", sp.eye)
			if sp.perProgram != nil {
				sp.perProgram(p)
			}
			current = p
		}
		if sp.state != nil {
			apply(*sp.state)
		} else {
			apply(pipeline.SurfaceState(it.Object.Mesh.Closed))
		}
		bindObject(p, it.Object)
		d.bindMaterial(p, it.Material)
		if sp.perItem != nil {
			sp.perItem(p, it)
		}
		d.meshes.draw(it.Object.Mesh, p == sp.patch)
	}
}
