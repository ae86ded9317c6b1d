package pipeline

import (
	"github.com/chewxy/math32"

	"walkthrough-renderer/scene"
)

// ShadingVariant tags which surface program draws an object.
type ShadingVariant int

const (
	// VariantFlat draws triangles with the plain vertex/fragment program.
	VariantFlat ShadingVariant = iota
	// VariantDisplacement draws patches through the tessellation stages
	// and displaces them along the normal by the height map.
	VariantDisplacement
)

func (v ShadingVariant) String() string {
	if v == VariantDisplacement {
		return "displacement"
	}
	return "flat"
}

// VariantFor selects the program an object is drawn with.
func VariantFor(o *scene.Object) ShadingVariant {
	if o.HeightMap {
		return VariantDisplacement
	}
	return VariantFlat
}

// tessellationBands maps camera distance to a base tessellation level.
var tessellationBands = []struct {
	maxDistance float32
	level       float32
}{
	{2, 175},
	{4, 80},
	{6, 20},
	{8, 10},
}

// TessellationLevel is the patch subdivision for an edge at distance from
// the camera, scaled by the object's factor. It never drops below 1.
func TessellationLevel(distance, factor float32) float32 {
	level := float32(5)
	for _, b := range tessellationBands {
		if distance <= b.maxDistance {
			level = b.level
			break
		}
	}
	return math32.Max(level*factor, 1)
}
