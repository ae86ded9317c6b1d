package main

import (
	"image"
	"image/color"
	"testing"

	"walkthrough-renderer/core"
	"walkthrough-renderer/math"
	"walkthrough-renderer/pipeline"
)

func TestToNRGBAFlipsRows(t *testing.T) {
	im := pipeline.Image{Width: 1, Height: 2, Pix: []core.Color{
		{R: 1, A: 1}, // bottom
		{B: 1, A: 1}, // top
	}}
	out := toNRGBA(im, displayMapper)

	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{B: 255, A: 255}) {
		t.Errorf("top row: expected blue, got %v", got)
	}
	if got := out.NRGBAAt(0, 1); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("bottom row: expected red, got %v", got)
	}
}

func TestExposureMapperClampsHDR(t *testing.T) {
	tm := exposureMapper(1, 2.2)
	c := tm(core.Color{R: 1000, G: 0, B: 0.5})
	if c.R > 1 || c.R < 0.99 {
		t.Errorf("bright channel: expected ~1, got %v", c.R)
	}
	if c.G != 0 {
		t.Errorf("black channel: expected 0, got %v", c.G)
	}
	if c.A != 1 {
		t.Errorf("alpha: expected 1, got %v", c.A)
	}
}

func TestCrossAtlasLayout(t *testing.T) {
	var faces [math.CubeFaceCount]image.Image
	for f := range faces {
		img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
		v := uint8(40 * (f + 1))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
		}
		faces[f] = img
	}

	const cell = 4
	atlas := crossAtlas(faces, cell)
	if b := atlas.Bounds(); b.Dx() != 4*cell || b.Dy() != 3*cell {
		t.Fatalf("atlas size: expected %dx%d, got %dx%d", 4*cell, 3*cell, b.Dx(), b.Dy())
	}
	for f, p := range crossCells {
		centre := p.Mul(cell).Add(image.Pt(cell/2, cell/2))
		want := uint8(40 * (f + 1))
		if got := atlas.NRGBAAt(centre.X, centre.Y).R; got != want {
			t.Errorf("face %d at %v: expected %d, got %d", f, p, want, got)
		}
	}
	if got := atlas.NRGBAAt(0, 0); got.A != 0 {
		t.Errorf("empty corner: expected transparent, got %v", got)
	}
}
