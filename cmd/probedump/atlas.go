package main

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
)

// crossCells places each cube face in a 4x3 horizontal cross:
//
//	    +Y
//	-X  +Z  +X  -Z
//	    -Y
var crossCells = [math.CubeFaceCount]image.Point{
	math.FacePosX: {2, 1},
	math.FaceNegX: {0, 1},
	math.FacePosY: {1, 0},
	math.FaceNegY: {1, 2},
	math.FacePosZ: {1, 1},
	math.FaceNegZ: {3, 1},
}

// toneMapper converts one linear HDR texel to display values.
type toneMapper func(c core.Color) core.Color

func exposureMapper(exposure, gamma float32) toneMapper {
	return func(c core.Color) core.Color {
		v := pipeline.ToneMap(math.Vec3{X: c.R, Y: c.G, Z: c.B}, exposure, gamma)
		return core.Color{R: v.X, G: v.Y, B: v.Z, A: 1}
	}
}

// displayMapper passes through values that were already tone mapped.
func displayMapper(c core.Color) core.Color {
	c.A = 1
	return c
}

func to8(v float32) uint8 {
	return uint8(math.Saturate(v)*255 + 0.5)
}

// toNRGBA converts a read-back image, bottom row first, to a top-down
// 8-bit image.
func toNRGBA(im pipeline.Image, tm toneMapper) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, im.Width, im.Height))
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			c := tm(im.At(x, y))
			out.SetNRGBA(x, im.Height-1-y, color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: to8(c.A)})
		}
	}
	return out
}

// crossAtlas scales each face to cell x cell and lays the faces out as a
// horizontal cross.
func crossAtlas(faces [math.CubeFaceCount]image.Image, cell int) *image.NRGBA {
	atlas := image.NewNRGBA(image.Rect(0, 0, 4*cell, 3*cell))
	for f, img := range faces {
		if img == nil {
			continue
		}
		p := crossCells[f].Mul(cell)
		dst := image.Rectangle{Min: p, Max: p.Add(image.Pt(cell, cell))}
		draw.CatmullRom.Scale(atlas, dst, img, img.Bounds(), draw.Src, nil)
	}
	return atlas
}

// cubeAtlas reads every face of cube h at level and builds the cross.
func cubeAtlas(res pipeline.Resources, h core.Handle, level, cell int, tm toneMapper) (*image.NRGBA, error) {
	var faces [math.CubeFaceCount]image.Image
	for f := 0; f < math.CubeFaceCount; f++ {
		im, err := res.ReadCubeFace(h, math.CubeFace(f), level)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", f, err)
		}
		faces[f] = toNRGBA(im, tm)
	}
	return crossAtlas(faces, cell), nil
}

func writeWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("WebP encode %s: %w", path, err)
	}
	return f.Close()
}
