package pipeline

import (
	"github.com/chewxy/math32"

	"walkthrough-renderer/math"
)

// CPU mirrors of the shading math in the GLSL programs. The software
// device shades with these and the tests pin them down.

// BlurWeights are the five taps of the separable blur, centre first.
var BlurWeights = [5]float32{0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216}

// ToneMap applies exposure tone mapping and gamma correction.
func ToneMap(hdr math.Vec3, exposure, gamma float32) math.Vec3 {
	m := func(c float32) float32 {
		return math32.Pow(1-math32.Exp(-c*exposure), 1/gamma)
	}
	return math.Vec3{X: m(hdr.X), Y: m(hdr.Y), Z: m(hdr.Z)}
}

// BrightOutput is the second shading output: the color weighted by the
// object's bloom brightness, or nothing when bloom is off for it.
func BrightOutput(color math.Vec3, bloom bool, brightness float32) math.Vec3 {
	if !bloom {
		return math.Vec3{}
	}
	return color.Mul(brightness)
}

// Attenuation is inverse-square falloff.
func Attenuation(distance float32) float32 {
	return 1 / (distance * distance)
}

// ShadowFactor is the fraction of a light reaching a fragment at distance
// from the light, given the distance stored in the shadow map.
func ShadowFactor(distance, stored, bias, darkness float32) float32 {
	if distance-bias > stored {
		return 1 - darkness
	}
	return 1
}

// FresnelSchlick is the Schlick approximation with base reflectance f0.
func FresnelSchlick(cosTheta float32, f0 math.Vec3) math.Vec3 {
	k := math32.Pow(math.Clamp(1-cosTheta, 0, 1), 5)
	return f0.Add(math.Vec3One.Sub(f0).Mul(k))
}

// FresnelSchlickRoughness damps the grazing term by roughness for ambient light.
func FresnelSchlickRoughness(cosTheta float32, f0 math.Vec3, roughness float32) math.Vec3 {
	k := math32.Pow(math.Clamp(1-cosTheta, 0, 1), 5)
	g := math.Splat(1 - roughness).Max(f0)
	return f0.Add(g.Sub(f0).Mul(k))
}

// DistributionGGX is the Trowbridge-Reitz normal distribution.
func DistributionGGX(nDotH, roughness float32) float32 {
	a := roughness * roughness
	a2 := a * a
	d := nDotH*nDotH*(a2-1) + 1
	return a2 / (math.Pi * d * d)
}

func geometrySchlickGGX(nDotV, k float32) float32 {
	return nDotV / (nDotV*(1-k) + k)
}

// GeometrySmith is the Smith shadowing term with the direct-lighting k.
func GeometrySmith(nDotV, nDotL, roughness float32) float32 {
	r := roughness + 1
	k := r * r / 8
	return geometrySchlickGGX(nDotV, k) * geometrySchlickGGX(nDotL, k)
}

// geometrySmithIBL uses the image-based k = a^2 / 2.
func geometrySmithIBL(nDotV, nDotL, roughness float32) float32 {
	k := roughness * roughness / 2
	return geometrySchlickGGX(nDotV, k) * geometrySchlickGGX(nDotL, k)
}

// BaseReflectance is F0: 0.04 for dielectrics, albedo for metals.
func BaseReflectance(albedo math.Vec3, metalness float32) math.Vec3 {
	return math.Splat(0.04).Lerp(albedo, metalness)
}

// DirectLight is the Cook-Torrance contribution of one light of incoming
// radiance along l, for a surface with normal n viewed along v.
func DirectLight(n, v, l, radiance, albedo math.Vec3, roughness, metalness float32) math.Vec3 {
	h := v.Add(l).Normalize()
	nDotV := math32.Max(n.Dot(v), 0)
	nDotL := math32.Max(n.Dot(l), 0)
	if nDotL == 0 {
		return math.Vec3{}
	}
	f0 := BaseReflectance(albedo, metalness)
	f := FresnelSchlick(math32.Max(h.Dot(v), 0), f0)
	ndf := DistributionGGX(math32.Max(n.Dot(h), 0), roughness)
	g := GeometrySmith(nDotV, nDotL, roughness)
	specular := f.Mul(ndf * g / (4*nDotV*nDotL + 0.0001))
	kD := math.Vec3One.Sub(f).Mul(1 - metalness)
	diffuse := kD.MulVec(albedo).Div(math.Pi)
	return diffuse.Add(specular).MulVec(radiance).Mul(nDotL)
}

// AmbientLight combines the diffuse irradiance and split-sum specular
// terms of a probe, scaled by ambient occlusion.
func AmbientLight(n, v, albedo, irradiance, prefiltered math.Vec3, brdf [2]float32, roughness, metalness, ao float32) math.Vec3 {
	f0 := BaseReflectance(albedo, metalness)
	f := FresnelSchlickRoughness(math32.Max(n.Dot(v), 0), f0, roughness)
	kD := math.Vec3One.Sub(f).Mul(1 - metalness)
	diffuse := kD.MulVec(irradiance).MulVec(albedo)
	specular := prefiltered.MulVec(f.Mul(brdf[0]).Add(math.Splat(brdf[1])))
	return diffuse.Add(specular).Mul(ao)
}

// Hammersley returns point i of an n-point low-discrepancy sequence.
func Hammersley(i, n uint32) (float32, float32) {
	bits := i
	bits = (bits << 16) | (bits >> 16)
	bits = ((bits & 0x55555555) << 1) | ((bits & 0xAAAAAAAA) >> 1)
	bits = ((bits & 0x33333333) << 2) | ((bits & 0xCCCCCCCC) >> 2)
	bits = ((bits & 0x0F0F0F0F) << 4) | ((bits & 0xF0F0F0F0) >> 4)
	bits = ((bits & 0x00FF00FF) << 8) | ((bits & 0xFF00FF00) >> 8)
	return float32(i) / float32(n), float32(bits) * 2.3283064365386963e-10
}

// ImportanceSampleGGX maps a sequence point to a half vector around n.
func ImportanceSampleGGX(xi0, xi1 float32, n math.Vec3, roughness float32) math.Vec3 {
	a := roughness * roughness
	phi := 2 * math.Pi * xi0
	cosTheta := math32.Sqrt((1 - xi1) / (1 + (a*a-1)*xi1))
	sinTheta := math32.Sqrt(1 - cosTheta*cosTheta)
	sinPhi, cosPhi := math32.Sincos(phi)
	h := math.Vec3{X: cosPhi * sinTheta, Y: sinPhi * sinTheta, Z: cosTheta}
	tangent, bitangent := TangentFrame(n)
	return tangent.Mul(h.X).Add(bitangent.Mul(h.Y)).Add(n.Mul(h.Z)).Normalize()
}

// TangentFrame builds an orthonormal tangent and bitangent around n.
func TangentFrame(n math.Vec3) (math.Vec3, math.Vec3) {
	up := math.Vec3{Z: 1}
	if math32.Abs(n.Z) >= 0.999 {
		up = math.Vec3{X: 1}
	}
	tangent := up.Cross(n).Normalize()
	return tangent, n.Cross(tangent)
}

// IntegrateBRDF returns the split-sum scale and bias for a view angle and
// roughness.
func IntegrateBRDF(nDotV, roughness float32, samples int) [2]float32 {
	v := math.Vec3{X: math32.Sqrt(1 - nDotV*nDotV), Z: nDotV}
	n := math.Vec3{Z: 1}
	var a, b float32
	for i := 0; i < samples; i++ {
		x0, x1 := Hammersley(uint32(i), uint32(samples))
		h := ImportanceSampleGGX(x0, x1, n, roughness)
		l := h.Mul(2 * v.Dot(h)).Sub(v).Normalize()
		nDotL := math32.Max(l.Z, 0)
		nDotH := math32.Max(h.Z, 0)
		vDotH := math32.Max(v.Dot(h), 0)
		if nDotL > 0 {
			g := geometrySmithIBL(nDotV, nDotL, roughness)
			gVis := g * vDotH / (nDotH * nDotV)
			fc := math32.Pow(1-vDotH, 5)
			a += (1 - fc) * gVis
			b += fc * gVis
		}
	}
	return [2]float32{a / float32(samples), b / float32(samples)}
}

// ParallaxCorrect intersects the reflection ray from pos along r with the
// probe box and returns the direction from the capture point to the hit.
func ParallaxCorrect(pos, r, boxMin, boxMax, capture math.Vec3) math.Vec3 {
	first := boxMax.Sub(pos).DivVec(r)
	second := boxMin.Sub(pos).DivVec(r)
	far := first.Max(second)
	dist := math32.Min(math32.Min(far.X, far.Y), far.Z)
	hit := pos.Add(r.Mul(dist))
	return hit.Sub(capture)
}

// EquirectUV maps a direction to equirectangular texture coordinates:
// u turns around the vertical axis from -X, v = 0 is straight down.
func EquirectUV(dir math.Vec3) (u, v float32) {
	d := dir.Normalize()
	u = math32.Atan2(d.Z, d.X)/(2*math.Pi) + 0.5
	v = math32.Asin(math.Clamp(d.Y, -1, 1))/math.Pi + 0.5
	return u, v
}
