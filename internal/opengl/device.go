// Package opengl is the OpenGL 4.1 core rendering device. Every pass of
// the rendering core is a GLSL program drawn into framebuffer objects
// allocated through the Resource Layer; the caller must keep the context
// current on the calling goroutine.
package opengl

import (
	"fmt"
	gomath "math"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"walkthrough-renderer/config"
	"walkthrough-renderer/core"
	"walkthrough-renderer/internal/logger"
	"walkthrough-renderer/pipeline"
	"walkthrough-renderer/scene"
)

// Texture units beyond the material maps.
const (
	unitEnvironment = 8
	unitIrradiance  = 9
	unitPrefiltered = 10
	unitBRDF        = 11
	unitShadow      = 12
	unitEquirect    = 13
)

// lightBinding is the uniform buffer binding point of the Lights block.
const lightBinding = 0

// samplerUnits assigns every sampler name used by the programs a unit.
// Programs ignore the names they do not declare.
var samplerUnits = map[string]int32{
	"albedoMap":    scene.UnitAlbedo,
	"normalMap":    scene.UnitNormal,
	"heightMap":    scene.UnitHeight,
	"aoMap":        scene.UnitAO,
	"roughnessMap": scene.UnitRoughness,
	"metalnessMap": scene.UnitMetalness,
	"emissiveMap":  scene.UnitEmissive,

	"environmentMap": unitEnvironment,
	"irradianceMap":  unitIrradiance,
	"prefilterMap":   unitPrefiltered,
	"brdfLUT":        unitBRDF,
	"shadowMap":      unitShadow,
	"equirectMap":    unitEquirect,

	"gPosition": pipeline.GPosition,
	"gNormal":   pipeline.GNormal,
	"gAlbedo":   pipeline.GAlbedo,
	"gMaterial": pipeline.GMaterial,
	"gEmissive": pipeline.GEmissive,

	"image":    0,
	"imageMS":  1,
	"bloomTex": 2,
	"bloomMS":  3,
	"colorMS":  0,
	"brightMS": 1,
}

// programs is every program the device draws with.
type programs struct {
	forward      *program
	forwardPatch *program
	gbuffer      *program
	gbufferPatch *program
	capture      *program
	shadow       *program
	sky          *program
	equirect     *program
	irradiance   *program
	prefilter    *program
	brdf         *program
	stencil      *program
	lamp         *program
	ambient      *program
	light        *program
	resolve      *program
	blur         *program
	composite    *program
}

func (ps *programs) all() []*program {
	return []*program{
		ps.forward, ps.forwardPatch, ps.gbuffer, ps.gbufferPatch, ps.capture, ps.shadow,
		ps.sky, ps.equirect, ps.irradiance, ps.prefilter, ps.brdf, ps.stencil, ps.lamp,
		ps.ambient, ps.light, ps.resolve, ps.blur, ps.composite,
	}
}

func buildPrograms() (*programs, error) {
	ps := &programs{}
	builds := []struct {
		dst   **program
		build func() (*program, error)
	}{
		{&ps.forward, func() (*program, error) { return newProgram("forward", surfaceVertSrc, forwardFragSrc) }},
		{&ps.forwardPatch, func() (*program, error) {
			return newPatchProgram("forward displacement", surfaceVertSrc, displaceTCSSrc, displaceTESSrc, forwardFragSrc)
		}},
		{&ps.gbuffer, func() (*program, error) { return newProgram("gbuffer", surfaceVertSrc, gbufferFragSrc) }},
		{&ps.gbufferPatch, func() (*program, error) {
			return newPatchProgram("gbuffer displacement", surfaceVertSrc, displaceTCSSrc, displaceTESSrc, gbufferFragSrc)
		}},
		{&ps.capture, func() (*program, error) { return newProgram("capture", surfaceVertSrc, captureFragSrc) }},
		{&ps.shadow, func() (*program, error) { return newProgram("shadow", surfaceVertSrc, shadowFragSrc) }},
		{&ps.sky, func() (*program, error) { return newProgram("sky", cubeVertSrc, skyFragSrc) }},
		{&ps.equirect, func() (*program, error) { return newProgram("equirect", cubeVertSrc, equirectFragSrc) }},
		{&ps.irradiance, func() (*program, error) { return newProgram("irradiance", cubeVertSrc, irradianceFragSrc) }},
		{&ps.prefilter, func() (*program, error) { return newProgram("prefilter", cubeVertSrc, prefilterFragSrc) }},
		{&ps.brdf, func() (*program, error) { return newProgram("brdf", fullscreenVertSrc, brdfFragSrc) }},
		{&ps.stencil, func() (*program, error) { return newProgram("stencil", volumeVertSrc, stencilFragSrc) }},
		{&ps.lamp, func() (*program, error) { return newProgram("lamp", volumeVertSrc, lampFragSrc) }},
		{&ps.ambient, func() (*program, error) { return newProgram("ambient", fullscreenVertSrc, ambientFragSrc) }},
		{&ps.light, func() (*program, error) { return newProgram("light", volumeVertSrc, lightFragSrc) }},
		{&ps.resolve, func() (*program, error) { return newProgram("resolve", fullscreenVertSrc, resolveFragSrc) }},
		{&ps.blur, func() (*program, error) { return newProgram("blur", fullscreenVertSrc, blurFragSrc) }},
		{&ps.composite, func() (*program, error) { return newProgram("composite", fullscreenVertSrc, compositeFragSrc) }},
	}
	for _, b := range builds {
		p, err := b.build()
		if err != nil {
			ps.destroy()
			return nil, err
		}
		p.samplers(samplerUnits)
		p.bindLights()
		*b.dst = p
	}
	return ps, nil
}

func (ps *programs) destroy() {
	for _, p := range ps.all() {
		p.destroy()
	}
}

// ── Light block ──────────────────────────────────────────────────────────────

// lightBuffer is the std140 Lights uniform block: MaxLights entries of
// two vec4 (position and radius, radiance) followed by the int count.
type lightBuffer struct {
	ubo  uint32
	data []float32
}

const lightStride = 8

func newLightBuffer() *lightBuffer {
	b := &lightBuffer{data: make([]float32, pipeline.MaxLights*lightStride+4)}
	gl.GenBuffers(1, &b.ubo)
	gl.BindBuffer(gl.UNIFORM_BUFFER, b.ubo)
	gl.BufferData(gl.UNIFORM_BUFFER, len(b.data)*4, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, lightBinding, b.ubo)
	return b
}

// upload replaces the block's contents; it is bound once per pass.
func (b *lightBuffer) upload(block pipeline.LightBlock) {
	clear(b.data)
	n := min(len(block.Lights), pipeline.MaxLights)
	for i, l := range block.Lights[:n] {
		o := i * lightStride
		b.data[o+0], b.data[o+1], b.data[o+2], b.data[o+3] = l.Position.X, l.Position.Y, l.Position.Z, l.Radius
		b.data[o+4], b.data[o+5], b.data[o+6] = l.Radiance.X, l.Radiance.Y, l.Radiance.Z
	}
	b.data[pipeline.MaxLights*lightStride] = gomath.Float32frombits(uint32(int32(n)))
	gl.BindBuffer(gl.UNIFORM_BUFFER, b.ubo)
	gl.BufferSubData(gl.UNIFORM_BUFFER, 0, len(b.data)*4, gl.Ptr(b.data))
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, lightBinding, b.ubo)
}

func (b *lightBuffer) destroy() {
	gl.DeleteBuffers(1, &b.ubo)
}

// ── Device ───────────────────────────────────────────────────────────────────

// Device is the OpenGL rendering device.
type Device struct {
	res    *resources
	meshes *meshes
	progs  *programs
	lights *lightBuffer
	sky    *skybox
	// quadVAO is the empty VAO for the fullscreen triangle.
	quadVAO uint32
	// volume is the light volume mesh; lamp the light marker.
	volume *scene.Mesh
	lamp   *scene.Mesh
	// presentFBO reads the presented texture for the blit to the window.
	presentFBO uint32
}

// New initializes the GL function pointers for the current context and
// compiles every program.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	logger.Log.Info("OpenGL device",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	progs, err := buildPrograms()
	if err != nil {
		return nil, fmt.Errorf("shader compile: %w", err)
	}
	gl.Enable(gl.TEXTURE_CUBE_MAP_SEAMLESS)

	d := &Device{
		res:    newResources(),
		meshes: newMeshes(),
		progs:  progs,
		lights: newLightBuffer(),
		sky:    newSkybox(),
		volume: scene.CreateSphere(1, 16, 8),
		lamp:   scene.CreateSphere(1, 12, 6),
	}
	gl.GenVertexArrays(1, &d.quadVAO)
	return d, nil
}

func (d *Device) Name() string { return "opengl" }

func (d *Device) Resources() pipeline.Resources { return d.res }

func (d *Device) NewBaker(cfg *config.Config) (pipeline.Baker, error) {
	return &baker{dev: d, cfg: cfg.IBL}, nil
}

func (d *Device) NewShadowCaster(cfg *config.Config) (pipeline.ShadowCaster, error) {
	sc, err := newShadowCaster(d, cfg.Shadow)
	if sc == nil {
		return nil, err
	}
	return sc, err
}

func (d *Device) NewLighting(cfg *config.Config) (pipeline.LightingPipeline, error) {
	switch cfg.PipelineType {
	case config.PipelineForward:
		return &forwardPipeline{dev: d, cfg: cfg}, nil
	case config.PipelineDeferred:
		return &deferredPipeline{dev: d, cfg: cfg}, nil
	}
	return nil, fmt.Errorf("unknown pipeline type %q", cfg.PipelineType)
}

func (d *Device) NewPostChain(cfg *config.Config) (pipeline.PostChain, error) {
	return &postChain{dev: d, cfg: cfg}, nil
}

// drawFullscreen issues the fullscreen triangle.
func (d *Device) drawFullscreen() {
	gl.BindVertexArray(d.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
}

// Present blits texture h onto the default framebuffer, scaled to
// width x height. Multisampled textures must match the window size.
func (d *Device) Present(h core.Handle, width, height int) error {
	t, err := d.res.tex(h)
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	if t.target == gl.TEXTURE_CUBE_MAP {
		return fmt.Errorf("present: %q is a cubemap", t.name)
	}
	if d.presentFBO == 0 {
		gl.GenFramebuffers(1, &d.presentFBO)
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, d.presentFBO)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, t.target, uint32(h), 0)
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ColorMask(true, true, true, true)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	filter := uint32(gl.LINEAR)
	if t.samples > 1 || (t.width == width && t.height == height) {
		filter = gl.NEAREST
	}
	gl.BlitFramebuffer(0, 0, int32(t.width), int32(t.height), 0, 0, int32(width), int32(height),
		gl.COLOR_BUFFER_BIT, filter)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return nil
}

// Destroy frees every GPU object the device still holds.
func (d *Device) Destroy() {
	d.progs.destroy()
	d.meshes.destroy()
	d.res.destroy()
	d.lights.destroy()
	d.sky.destroy()
	if d.presentFBO != 0 {
		gl.DeleteFramebuffers(1, &d.presentFBO)
		d.presentFBO = 0
	}
	if d.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &d.quadVAO)
		d.quadVAO = 0
	}
}
