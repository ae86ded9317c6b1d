package opengl

// GLSL sources. Programs are built from the shared chunks below; every
// complete source ends with a NUL for gl.Strs.

const glslVersion = "#version 410 core\n"

// ── Shared chunks ────────────────────────────────────────────────────────────

// lightsChunk is the std140 light block; see lightBuffer for the layout.
const lightsChunk = `
struct Light {
    vec4 positionRadius;
    vec4 radiance;
};
layout(std140) uniform Lights {
    Light lights[32];
    int   lightCount;
};
`

const pbrChunk = `
const float PI = 3.14159265359;

float distributionGGX(float nDotH, float roughness) {
    float a  = roughness * roughness;
    float a2 = a * a;
    float d  = nDotH * nDotH * (a2 - 1.0) + 1.0;
    return a2 / (PI * d * d);
}

float geometrySchlickGGX(float nDotV, float k) {
    return nDotV / (nDotV * (1.0 - k) + k);
}

float geometrySmith(float nDotV, float nDotL, float roughness) {
    float r = roughness + 1.0;
    float k = r * r / 8.0;
    return geometrySchlickGGX(nDotV, k) * geometrySchlickGGX(nDotL, k);
}

vec3 fresnelSchlick(float cosTheta, vec3 f0) {
    return f0 + (1.0 - f0) * pow(clamp(1.0 - cosTheta, 0.0, 1.0), 5.0);
}

vec3 fresnelSchlickRoughness(float cosTheta, vec3 f0, float roughness) {
    return f0 + (max(vec3(1.0 - roughness), f0) - f0) * pow(clamp(1.0 - cosTheta, 0.0, 1.0), 5.0);
}

struct Surface {
    vec3  pos;
    vec3  n;
    vec3  v;
    vec3  albedo;
    float roughness;
    float metalness;
    float ao;
    vec3  emissive;
};

vec3 directLight(Surface s, vec3 l, vec3 radiance) {
    vec3  h     = normalize(s.v + l);
    float nDotV = max(dot(s.n, s.v), 0.0);
    float nDotL = max(dot(s.n, l), 0.0);
    if (nDotL == 0.0) {
        return vec3(0.0);
    }
    vec3  f0  = mix(vec3(0.04), s.albedo, s.metalness);
    vec3  F   = fresnelSchlick(max(dot(h, s.v), 0.0), f0);
    float ndf = distributionGGX(max(dot(s.n, h), 0.0), s.roughness);
    float G   = geometrySmith(nDotV, nDotL, s.roughness);
    vec3  specular = F * (ndf * G / (4.0 * nDotV * nDotL + 0.0001));
    vec3  kD = (vec3(1.0) - F) * (1.0 - s.metalness);
    return (kD * s.albedo / PI + specular) * radiance * nDotL;
}
`

const shadowChunk = `
uniform samplerCube shadowMap;
uniform bool  shadowEnabled;
uniform int   shadowLight;
uniform vec3  shadowPos;

float shadowFactor(vec3 pos, float darkness, float bias) {
    vec3  d      = pos - shadowPos;
    float stored = texture(shadowMap, d).r;
    return length(d) - bias > stored ? 1.0 - darkness : 1.0;
}

vec3 pointLight(int i, Surface s, bool receive, float darkness, float bias) {
    vec3  d    = lights[i].positionRadius.xyz - s.pos;
    float dist = length(d);
    if (dist == 0.0) {
        return vec3(0.0);
    }
    vec3 radiance = lights[i].radiance.rgb / (dist * dist);
    vec3 c = directLight(s, d / dist, radiance);
    if (receive && shadowEnabled && shadowLight == i) {
        c *= shadowFactor(s.pos, darkness, bias);
    }
    return c;
}
`

const iblChunk = `
uniform samplerCube irradianceMap;
uniform samplerCube prefilterMap;
uniform sampler2D   brdfLUT;
uniform bool  hasProbe;
uniform float prefilterLevels;
uniform bool  parallax;
uniform vec3  probeBoxMin;
uniform vec3  probeBoxMax;
uniform vec3  capturePos;

vec3 ambientLight(Surface s) {
    if (!hasProbe) {
        return vec3(0.0);
    }
    vec3 r = reflect(-s.v, s.n);
    if (parallax) {
        vec3  first  = (probeBoxMax - s.pos) / r;
        vec3  second = (probeBoxMin - s.pos) / r;
        vec3  far    = max(first, second);
        float dist   = min(min(far.x, far.y), far.z);
        r = s.pos + r * dist - capturePos;
    }
    float nDotV = max(dot(s.n, s.v), 0.0);
    vec3  f0 = mix(vec3(0.04), s.albedo, s.metalness);
    vec3  F  = fresnelSchlickRoughness(nDotV, f0, s.roughness);
    vec3  kD = (vec3(1.0) - F) * (1.0 - s.metalness);
    vec3  irradiance  = texture(irradianceMap, s.n).rgb;
    vec3  prefiltered = textureLod(prefilterMap, r, s.roughness * (prefilterLevels - 1.0)).rgb;
    vec2  brdf = texture(brdfLUT, vec2(nDotV, s.roughness)).rg;
    vec3  diffuse  = kD * irradiance * s.albedo;
    vec3  specular = prefiltered * (F * brdf.x + brdf.y);
    return (diffuse + specular) * s.ao;
}
`

const skyChunk = `
uniform samplerCube environmentMap;
uniform bool  hasEnvironment;
uniform vec3  skyZenith;
uniform vec3  skyHorizon;
uniform vec3  skyGround;
uniform float skyIntensity;

vec3 skyColor(vec3 dir) {
    if (hasEnvironment) {
        return texture(environmentMap, dir).rgb;
    }
    float t = normalize(dir).y;
    vec3 c;
    if (t >= 0.0) {
        c = mix(skyHorizon, skyZenith, pow(t, 0.4));
    } else {
        c = mix(skyHorizon, skyGround, min(-t * 3.0, 1.0));
    }
    return c * skyIntensity;
}
`

// materialChunk evaluates the material at the interpolated surface point.
const materialChunk = `
in vec3 vWorldPos;
in vec3 vNormal;
in vec2 vUV;
in vec3 vTangent;
in vec3 vBitangent;

uniform sampler2D albedoMap;
uniform sampler2D normalMap;
uniform sampler2D aoMap;
uniform sampler2D roughnessMap;
uniform sampler2D metalnessMap;
uniform sampler2D emissiveMap;
uniform bool hasAlbedoMap;
uniform bool hasNormalMap;
uniform bool hasAOMap;
uniform bool hasRoughnessMap;
uniform bool hasMetalnessMap;
uniform bool hasEmissiveMap;

uniform vec4  baseColor;
uniform float roughnessValue;
uniform float metalnessValue;
uniform float aoValue;
uniform vec3  emissiveColor;
uniform bool  useNormalMap;
uniform bool  opacityMap;
uniform bool  emissive;
uniform float emissiveFactor;
uniform vec3  eyePos;

Surface evaluateSurface(out float alphaOut) {
    vec4 a = baseColor;
    if (hasAlbedoMap) {
        a *= texture(albedoMap, vUV);
    }
    if (opacityMap && hasAlbedoMap && a.a < 0.5) {
        discard;
    }
    alphaOut = a.a;

    vec3 n = normalize(vNormal);
    if (!gl_FrontFacing) {
        n = -n;
    }
    if (useNormalMap && hasNormalMap) {
        vec3 tn = texture(normalMap, vUV).rgb * 2.0 - 1.0;
        n = normalize(normalize(vTangent) * tn.x + normalize(vBitangent) * tn.y + n * tn.z);
    }

    Surface s;
    s.pos       = vWorldPos;
    s.n         = n;
    s.v         = normalize(eyePos - vWorldPos);
    s.albedo    = a.rgb;
    s.roughness = roughnessValue;
    s.metalness = metalnessValue;
    s.ao        = aoValue;
    s.emissive  = vec3(0.0);
    if (hasRoughnessMap) {
        s.roughness = texture(roughnessMap, vUV).r;
    }
    if (hasMetalnessMap) {
        s.metalness = texture(metalnessMap, vUV).r;
    }
    if (hasAOMap) {
        s.ao = texture(aoMap, vUV).r;
    }
    s.roughness = clamp(s.roughness, 0.04, 1.0);
    if (emissive) {
        vec3 e = emissiveColor;
        if (hasEmissiveMap) {
            e *= texture(emissiveMap, vUV).rgb;
        }
        s.emissive = e * emissiveFactor;
    }
    return s;
}
`

// ── Surface geometry stages ──────────────────────────────────────────────────

const surfaceVertSrc = glslVersion + `
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec3 inNormal;
layout(location = 2) in vec2 inUV;
layout(location = 4) in vec3 inTangent;
layout(location = 5) in vec3 inBitangent;

uniform mat4  model;
uniform mat4  normalMatrix;
uniform mat4  viewProj;
uniform float uvScale;

out vec3 vWorldPos;
out vec3 vNormal;
out vec2 vUV;
out vec3 vTangent;
out vec3 vBitangent;

void main() {
    vec4 world = model * vec4(inPosition, 1.0);
    vWorldPos  = world.xyz;
    vNormal    = mat3(normalMatrix) * inNormal;
    vTangent   = mat3(model) * inTangent;
    vBitangent = mat3(model) * inBitangent;
    vUV        = inUV * uvScale;
    gl_Position = viewProj * world;
}
` + "\x00"

// displaceTCSSrc picks the edge subdivision from camera distance bands.
const displaceTCSSrc = glslVersion + `
layout(vertices = 3) out;

in vec3 vWorldPos[];
in vec3 vNormal[];
in vec2 vUV[];
in vec3 vTangent[];
in vec3 vBitangent[];

out vec3 tcWorldPos[];
out vec3 tcNormal[];
out vec2 tcUV[];
out vec3 tcTangent[];
out vec3 tcBitangent[];

uniform vec3  eyePos;
uniform float tessFactor;

float level(float d) {
    float l = 5.0;
    if (d <= 2.0) {
        l = 175.0;
    } else if (d <= 4.0) {
        l = 80.0;
    } else if (d <= 6.0) {
        l = 20.0;
    } else if (d <= 8.0) {
        l = 10.0;
    }
    return max(l * tessFactor, 1.0);
}

void main() {
    tcWorldPos[gl_InvocationID]  = vWorldPos[gl_InvocationID];
    tcNormal[gl_InvocationID]    = vNormal[gl_InvocationID];
    tcUV[gl_InvocationID]        = vUV[gl_InvocationID];
    tcTangent[gl_InvocationID]   = vTangent[gl_InvocationID];
    tcBitangent[gl_InvocationID] = vBitangent[gl_InvocationID];

    if (gl_InvocationID == 0) {
        float d0 = distance(eyePos, vWorldPos[0]);
        float d1 = distance(eyePos, vWorldPos[1]);
        float d2 = distance(eyePos, vWorldPos[2]);
        gl_TessLevelOuter[0] = level(0.5 * (d1 + d2));
        gl_TessLevelOuter[1] = level(0.5 * (d2 + d0));
        gl_TessLevelOuter[2] = level(0.5 * (d0 + d1));
        gl_TessLevelInner[0] = gl_TessLevelOuter[2];
    }
}
` + "\x00"

const displaceTESSrc = glslVersion + `
layout(triangles, equal_spacing, ccw) in;

in vec3 tcWorldPos[];
in vec3 tcNormal[];
in vec2 tcUV[];
in vec3 tcTangent[];
in vec3 tcBitangent[];

out vec3 vWorldPos;
out vec3 vNormal;
out vec2 vUV;
out vec3 vTangent;
out vec3 vBitangent;

uniform mat4      viewProj;
uniform sampler2D heightMap;
uniform bool      hasHeightMap;
uniform float     displacement;

vec2 lerp2(vec2 a, vec2 b, vec2 c) {
    return gl_TessCoord.x * a + gl_TessCoord.y * b + gl_TessCoord.z * c;
}

vec3 lerp3(vec3 a, vec3 b, vec3 c) {
    return gl_TessCoord.x * a + gl_TessCoord.y * b + gl_TessCoord.z * c;
}

void main() {
    vUV        = lerp2(tcUV[0], tcUV[1], tcUV[2]);
    vNormal    = normalize(lerp3(tcNormal[0], tcNormal[1], tcNormal[2]));
    vTangent   = lerp3(tcTangent[0], tcTangent[1], tcTangent[2]);
    vBitangent = lerp3(tcBitangent[0], tcBitangent[1], tcBitangent[2]);
    vWorldPos  = lerp3(tcWorldPos[0], tcWorldPos[1], tcWorldPos[2]);
    if (hasHeightMap) {
        vWorldPos += vNormal * texture(heightMap, vUV).r * displacement;
    }
    gl_Position = viewProj * vec4(vWorldPos, 1.0);
}
` + "\x00"

// ── Surface fragment programs ────────────────────────────────────────────────

var forwardFragSrc = glslVersion + lightsChunk + pbrChunk + shadowChunk + iblChunk + materialChunk + `
uniform bool  receiveShadow;
uniform float shadowDarkness;
uniform float shadowBias;
uniform bool  bloom;
uniform float bloomBrightness;
uniform float alpha;

layout(location = 0) out vec4 outColor;
layout(location = 1) out vec4 outBright;

void main() {
    float a;
    Surface s = evaluateSurface(a);
    vec3 c = vec3(0.0);
    for (int i = 0; i < lightCount; i++) {
        c += pointLight(i, s, receiveShadow, shadowDarkness, shadowBias);
    }
    c += ambientLight(s) + s.emissive;
    outColor  = vec4(c, alpha);
    outBright = bloom ? vec4(c * bloomBrightness, 1.0) : vec4(0.0, 0.0, 0.0, 1.0);
}
` + "\x00"

// gbufferFragSrc writes the attributes in attachment order: position,
// normal, albedo, material, emissive.
var gbufferFragSrc = glslVersion + pbrChunk + materialChunk + `
uniform bool  receiveShadow;
uniform float shadowDarkness;
uniform float shadowBias;
uniform bool  bloom;
uniform float bloomBrightness;

layout(location = 0) out vec4 gPosition;
layout(location = 1) out vec4 gNormal;
layout(location = 2) out vec4 gAlbedo;
layout(location = 3) out vec4 gMaterial;
layout(location = 4) out vec4 gEmissive;

void main() {
    float a;
    Surface s = evaluateSurface(a);
    gPosition = vec4(s.pos, bloom ? 1.0 : 0.0);
    gNormal   = vec4(s.n, bloomBrightness);
    gAlbedo   = vec4(s.albedo, receiveShadow ? shadowDarkness : 0.0);
    gMaterial = vec4(s.roughness, s.metalness, s.ao, shadowBias);
    gEmissive = vec4(s.emissive, 1.0);
}
` + "\x00"

// captureFragSrc renders direct light and emission only, for probes.
var captureFragSrc = glslVersion + lightsChunk + pbrChunk + shadowChunk + materialChunk + `
layout(location = 0) out vec4 outColor;

void main() {
    float a;
    Surface s = evaluateSurface(a);
    vec3 c = vec3(0.0);
    for (int i = 0; i < lightCount; i++) {
        c += pointLight(i, s, false, 0.0, 0.0);
    }
    outColor = vec4(c + s.emissive, 1.0);
}
` + "\x00"

// shadowFragSrc stores the distance from the light in the red channel.
const shadowFragSrc = glslVersion + `
in vec3 vWorldPos;
in vec2 vUV;

uniform vec3      lightPos;
uniform sampler2D albedoMap;
uniform bool      hasAlbedoMap;
uniform bool      opacityMap;
uniform vec4      baseColor;

layout(location = 0) out vec4 outDistance;

void main() {
    if (opacityMap && hasAlbedoMap && (texture(albedoMap, vUV) * baseColor).a < 0.5) {
        discard;
    }
    outDistance = vec4(distance(vWorldPos, lightPos), 0.0, 0.0, 1.0);
}
` + "\x00"

// ── Sky, lamps and cube convolution ──────────────────────────────────────────

// cubeVertSrc draws the unit cube around the eye. The xyww trick puts every
// fragment on the far plane.
const cubeVertSrc = glslVersion + `
layout(location = 0) in vec3 inPosition;

uniform mat4 skyVP;

out vec3 fragDir;

void main() {
    fragDir = inPosition;
    vec4 pos = skyVP * vec4(inPosition, 1.0);
    gl_Position = pos.xyww;
}
` + "\x00"

var skyFragSrc = glslVersion + skyChunk + `
in vec3 fragDir;

layout(location = 0) out vec4 outColor;
layout(location = 1) out vec4 outBright;

void main() {
    outColor  = vec4(skyColor(fragDir), 1.0);
    outBright = vec4(0.0, 0.0, 0.0, 1.0);
}
` + "\x00"

// equirectFragSrc looks a cube direction up in an equirectangular map.
const equirectFragSrc = glslVersion + `
in vec3 fragDir;

uniform sampler2D equirectMap;

out vec4 outColor;

const vec2 invAtan = vec2(0.1591549, 0.3183099);

void main() {
    vec3 d = normalize(fragDir);
    vec2 uv = vec2(atan(d.z, d.x), asin(clamp(d.y, -1.0, 1.0))) * invAtan + 0.5;
    outColor = vec4(texture(equirectMap, uv).rgb, 1.0);
}
` + "\x00"

const irradianceFragSrc = glslVersion + `
in vec3 fragDir;

uniform samplerCube environmentMap;
uniform float sampleDelta;

out vec4 outColor;

const float PI = 3.14159265359;

void main() {
    vec3 n = normalize(fragDir);
    vec3 up = abs(n.z) >= 0.999 ? vec3(1.0, 0.0, 0.0) : vec3(0.0, 0.0, 1.0);
    vec3 right = normalize(cross(up, n));
    up = cross(n, right);

    vec3  sum   = vec3(0.0);
    float count = 0.0;
    for (float phi = 0.0; phi < 2.0 * PI; phi += sampleDelta) {
        for (float theta = 0.0; theta < 0.5 * PI; theta += sampleDelta) {
            vec3 dir = right * sin(theta) * cos(phi) + up * sin(theta) * sin(phi) + n * cos(theta);
            sum += textureLod(environmentMap, dir, 0.0).rgb * cos(theta) * sin(theta);
            count += 1.0;
        }
    }
    outColor = vec4(PI * sum / count, 1.0);
}
` + "\x00"

const importanceChunk = `
const float PI = 3.14159265359;

vec2 hammersley(uint i, uint n) {
    return vec2(float(i) / float(n), float(bitfieldReverse(i)) * 2.3283064365386963e-10);
}

vec3 importanceSampleGGX(vec2 xi, vec3 n, float roughness) {
    float a = roughness * roughness;
    float phi = 2.0 * PI * xi.x;
    float cosTheta = sqrt((1.0 - xi.y) / (1.0 + (a * a - 1.0) * xi.y));
    float sinTheta = sqrt(1.0 - cosTheta * cosTheta);
    vec3 h = vec3(cos(phi) * sinTheta, sin(phi) * sinTheta, cosTheta);
    vec3 up = abs(n.z) >= 0.999 ? vec3(1.0, 0.0, 0.0) : vec3(0.0, 0.0, 1.0);
    vec3 tangent = normalize(cross(up, n));
    vec3 bitangent = cross(n, tangent);
    return normalize(tangent * h.x + bitangent * h.y + n * h.z);
}
`

var prefilterFragSrc = glslVersion + importanceChunk + `
in vec3 fragDir;

uniform samplerCube environmentMap;
uniform float roughness;
uniform int   sampleCount;

out vec4 outColor;

void main() {
    vec3 n = normalize(fragDir);
    if (roughness == 0.0) {
        outColor = vec4(textureLod(environmentMap, n, 0.0).rgb, 1.0);
        return;
    }
    vec3  sum    = vec3(0.0);
    float weight = 0.0;
    uint  count  = uint(sampleCount);
    for (uint i = 0u; i < count; i++) {
        vec3 h = importanceSampleGGX(hammersley(i, count), n, roughness);
        vec3 l = normalize(2.0 * dot(n, h) * h - n);
        float nDotL = dot(n, l);
        if (nDotL > 0.0) {
            sum += textureLod(environmentMap, l, 0.0).rgb * nDotL;
            weight += nDotL;
        }
    }
    if (weight > 0.0) {
        sum /= weight;
    }
    outColor = vec4(sum, 1.0);
}
` + "\x00"

var brdfFragSrc = glslVersion + importanceChunk + `
in vec2 fragUV;

uniform int sampleCount;

out vec4 outColor;

float geometryIBL(float nDotV, float nDotL, float roughness) {
    float k = roughness * roughness / 2.0;
    float gv = nDotV / (nDotV * (1.0 - k) + k);
    float gL = nDotL / (nDotL * (1.0 - k) + k);
    return gv * gL;
}

void main() {
    float nDotV = fragUV.x;
    float roughness = fragUV.y;
    vec3 v = vec3(sqrt(1.0 - nDotV * nDotV), 0.0, nDotV);
    vec3 n = vec3(0.0, 0.0, 1.0);
    float a = 0.0;
    float b = 0.0;
    uint count = uint(sampleCount);
    for (uint i = 0u; i < count; i++) {
        vec3 h = importanceSampleGGX(hammersley(i, count), n, roughness);
        vec3 l = normalize(2.0 * dot(v, h) * h - v);
        float nDotL = max(l.z, 0.0);
        float nDotH = max(h.z, 0.0);
        float vDotH = max(dot(v, h), 0.0);
        if (nDotL > 0.0) {
            float gVis = geometryIBL(nDotV, nDotL, roughness) * vDotH / (nDotH * nDotV);
            float fc = pow(1.0 - vDotH, 5.0);
            a += (1.0 - fc) * gVis;
            b += fc * gVis;
        }
    }
    outColor = vec4(a / float(count), b / float(count), 0.0, 1.0);
}
` + "\x00"

// volumeVertSrc transforms light volumes and lamp spheres.
const volumeVertSrc = glslVersion + `
layout(location = 0) in vec3 inPosition;

uniform mat4 model;
uniform mat4 viewProj;

void main() {
    gl_Position = viewProj * model * vec4(inPosition, 1.0);
}
` + "\x00"

// stencilFragSrc writes nothing; the pass only updates the stencil.
const stencilFragSrc = glslVersion + `
void main() {}
` + "\x00"

const lampFragSrc = glslVersion + `
uniform vec3 lampColor;

layout(location = 0) out vec4 outColor;
layout(location = 1) out vec4 outBright;

void main() {
    outColor  = vec4(lampColor, 1.0);
    outBright = vec4(lampColor, 1.0);
}
` + "\x00"

// ── Full-screen passes ───────────────────────────────────────────────────────

// fullscreenVertSrc is a fullscreen triangle via gl_VertexID (no VBO needed).
const fullscreenVertSrc = glslVersion + `
out vec2 fragUV;
void main() {
    const vec2 pos[3] = vec2[3](
        vec2(-1.0, -1.0),
        vec2( 3.0, -1.0),
        vec2(-1.0,  3.0)
    );
    gl_Position = vec4(pos[gl_VertexID], 0.0, 1.0);
    fragUV      = pos[gl_VertexID] * 0.5 + 0.5;
}
` + "\x00"

const gbufferChunk = `
uniform sampler2D gPosition;
uniform sampler2D gNormal;
uniform sampler2D gAlbedo;
uniform sampler2D gMaterial;
uniform sampler2D gEmissive;
uniform vec3 eyePos;

Surface readSurface(ivec2 p, out float bloomFlag, out float brightness, out float darkness, out float bias) {
    vec4 pos = texelFetch(gPosition, p, 0);
    vec4 nrm = texelFetch(gNormal, p, 0);
    vec4 alb = texelFetch(gAlbedo, p, 0);
    vec4 mat = texelFetch(gMaterial, p, 0);
    Surface s;
    s.pos       = pos.xyz;
    s.n         = normalize(nrm.xyz);
    s.v         = normalize(eyePos - pos.xyz);
    s.albedo    = alb.rgb;
    s.roughness = mat.r;
    s.metalness = mat.g;
    s.ao        = mat.b;
    s.emissive  = vec3(0.0);
    bloomFlag  = pos.a;
    brightness = nrm.a;
    darkness   = alb.a;
    bias       = mat.a;
    return s;
}
`

// ambientFragSrc adds the global probe and emission to covered pixels and
// the sky to the rest.
var ambientFragSrc = glslVersion + pbrChunk + iblChunk + skyChunk + gbufferChunk + `
in vec2 fragUV;

uniform mat4 invViewProj;

layout(location = 0) out vec4 outColor;
layout(location = 1) out vec4 outBright;

void main() {
    ivec2 p  = ivec2(gl_FragCoord.xy);
    vec4  em = texelFetch(gEmissive, p, 0);
    if (em.a == 0.0) {
        vec4 near = invViewProj * vec4(fragUV * 2.0 - 1.0, -1.0, 1.0);
        vec4 far  = invViewProj * vec4(fragUV * 2.0 - 1.0, 1.0, 1.0);
        vec3 dir  = far.xyz / far.w - near.xyz / near.w;
        outColor  = vec4(skyColor(dir), 1.0);
        outBright = vec4(0.0);
        return;
    }
    float bloomFlag, brightness, darkness, bias;
    Surface s = readSurface(p, bloomFlag, brightness, darkness, bias);
    vec3 c = ambientLight(s) + em.rgb;
    outColor  = vec4(c, 1.0);
    outBright = bloomFlag > 0.0 ? vec4(c * brightness, 0.0) : vec4(0.0);
}
` + "\x00"

// lightFragSrc shades one light inside its stencil-masked volume.
var lightFragSrc = glslVersion + lightsChunk + pbrChunk + shadowChunk + gbufferChunk + `
uniform int lightIndex;

layout(location = 0) out vec4 outColor;
layout(location = 1) out vec4 outBright;

void main() {
    ivec2 p = ivec2(gl_FragCoord.xy);
    float bloomFlag, brightness, darkness, bias;
    Surface s = readSurface(p, bloomFlag, brightness, darkness, bias);
    vec4 l = lights[lightIndex].positionRadius;
    if (distance(s.pos, l.xyz) > l.w) {
        discard;
    }
    vec3 c = pointLight(lightIndex, s, darkness > 0.0, darkness, bias);
    outColor  = vec4(c, 0.0);
    outBright = bloomFlag > 0.0 ? vec4(c * brightness, 0.0) : vec4(0.0);
}
` + "\x00"

// resolveFragSrc averages every sample of both HDR outputs.
const resolveFragSrc = glslVersion + `
uniform sampler2DMS colorMS;
uniform sampler2DMS brightMS;
uniform int samples;

layout(location = 0) out vec4 outColor;
layout(location = 1) out vec4 outBright;

void main() {
    ivec2 p = ivec2(gl_FragCoord.xy);
    vec4 c = vec4(0.0);
    vec4 b = vec4(0.0);
    for (int i = 0; i < samples; i++) {
        c += texelFetch(colorMS, p, i);
        b += texelFetch(brightMS, p, i);
    }
    outColor  = c / float(samples);
    outBright = b / float(samples);
}
` + "\x00"

// sourceChunk reads a post input that may still be multisampled; those
// fetch sample 0.
const sourceChunk = `
uniform sampler2D   image;
uniform sampler2DMS imageMS;
uniform bool        imageMultisampled;

vec3 source(vec2 uv) {
    if (imageMultisampled) {
        ivec2 size = textureSize(imageMS);
        ivec2 p = clamp(ivec2(uv * vec2(size)), ivec2(0), size - 1);
        return texelFetch(imageMS, p, 0).rgb;
    }
    return texture(image, uv).rgb;
}
`

var blurFragSrc = glslVersion + sourceChunk + `
in vec2 fragUV;

uniform vec2 blurStep;

out vec4 outColor;

const float weights[5] = float[](0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216);

void main() {
    vec3 c = source(fragUV) * weights[0];
    for (int k = 1; k < 5; k++) {
        vec2 o = blurStep * float(k);
        c += (source(fragUV + o) + source(fragUV - o)) * weights[k];
    }
    outColor = vec4(c, 1.0);
}
` + "\x00"

var compositeFragSrc = glslVersion + sourceChunk + `
in vec2 fragUV;

uniform sampler2D   bloomTex;
uniform sampler2DMS bloomMS;
uniform bool  hasBloom;
uniform bool  bloomMultisampled;
uniform float exposure;
uniform float gamma;

out vec4 outColor;

void main() {
    vec3 hdr = source(fragUV);
    if (hasBloom) {
        if (bloomMultisampled) {
            ivec2 size = textureSize(bloomMS);
            hdr += texelFetch(bloomMS, clamp(ivec2(fragUV * vec2(size)), ivec2(0), size - 1), 0).rgb;
        } else {
            hdr += texture(bloomTex, fragUV).rgb;
        }
    }
    vec3 mapped = pow(vec3(1.0) - exp(-hdr * exposure), vec3(1.0 / gamma));
    outColor = vec4(mapped, 1.0);
}
` + "\x00"
