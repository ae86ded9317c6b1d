package scene

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"

	"walkthrough-renderer/core"
)

// Environment is an equirectangular radiance map converted into the global
// probe. Texels are linear, bottom row first, ready for upload.
type Environment struct {
	Name   string
	Width  int
	Height int
	Texels []core.Color
}

// EnvironmentData is one layout entry: a Radiance .hdr file, or any image
// LoadTexture reads (treated as sRGB), scaled by Intensity.
type EnvironmentData struct {
	Name      string  `yaml:"name"`
	Path      string  `yaml:"path"`
	Intensity float32 `yaml:"intensity"`
}

// LoadEnvironment reads an equirectangular map from path.
func LoadEnvironment(name, path string, intensity float32) (*Environment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open environment %q: %w", path, err)
	}
	defer f.Close()

	var w, h int
	var top []core.Color
	if strings.EqualFold(filepath.Ext(path), ".hdr") {
		w, h, top, err = readRadianceHDR(f)
	} else {
		var img image.Image
		if img, _, err = image.Decode(f); err == nil {
			tex := textureFromImage(path, img)
			tex.SRGB = true
			w, h, top = tex.Width, tex.Height, tex.linearTexels()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode environment %q: %w", path, err)
	}
	return newEnvironment(name, w, h, top, intensity), nil
}

// newEnvironment flips top-first texels to bottom-first and scales them.
func newEnvironment(name string, w, h int, top []core.Color, intensity float32) *Environment {
	if intensity <= 0 {
		intensity = 1
	}
	env := &Environment{Name: name, Width: w, Height: h, Texels: make([]core.Color, w*h)}
	for y := 0; y < h; y++ {
		src := top[(h-1-y)*w : (h-y)*w]
		dst := env.Texels[y*w : (y+1)*w]
		for x, c := range src {
			dst[x] = core.Color{R: c.R * intensity, G: c.G * intensity, B: c.B * intensity, A: 1}
		}
	}
	return env
}

// linearTexels decodes every pixel, top row first.
func (t *Texture) linearTexels() []core.Color {
	out := make([]core.Color, t.Width*t.Height)
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			out[y*t.Width+x] = t.texel(x, y)
		}
	}
	return out
}

// readRadianceHDR decodes a Radiance RGBE image, top row first. Scanlines
// may be flat or use the per-component run-length encoding.
func readRadianceHDR(r io.Reader) (int, int, []core.Color, error) {
	br := bufio.NewReader(r)
	magic, err := br.ReadString('\n')
	if err != nil || !strings.HasPrefix(magic, "#?") {
		return 0, 0, nil, fmt.Errorf("not a Radiance file")
	}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return 0, 0, nil, fmt.Errorf("header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if format, ok := strings.CutPrefix(line, "FORMAT="); ok && format != "32-bit_rle_rgbe" {
			return 0, 0, nil, fmt.Errorf("unsupported format %q", format)
		}
	}

	res, err := br.ReadString('\n')
	if err != nil {
		return 0, 0, nil, fmt.Errorf("resolution: %w", err)
	}
	var ys, xs string
	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(res), "%s %d %s %d", &ys, &h, &xs, &w); err != nil {
		return 0, 0, nil, fmt.Errorf("resolution %q: %w", strings.TrimSpace(res), err)
	}
	if ys != "-Y" || xs != "+X" || w <= 0 || h <= 0 {
		return 0, 0, nil, fmt.Errorf("unsupported orientation %q", strings.TrimSpace(res))
	}

	texels := make([]core.Color, w*h)
	scan := make([]byte, 4*w)
	for y := 0; y < h; y++ {
		if err := readScanline(br, scan, w); err != nil {
			return 0, 0, nil, fmt.Errorf("scanline %d: %w", y, err)
		}
		for x := 0; x < w; x++ {
			texels[y*w+x] = rgbe(scan[4*x : 4*x+4])
		}
	}
	return w, h, texels, nil
}

func readScanline(br *bufio.Reader, scan []byte, w int) error {
	if _, err := io.ReadFull(br, scan[:4]); err != nil {
		return err
	}
	if w < 8 || w > 0x7fff || scan[0] != 2 || scan[1] != 2 || scan[2]&0x80 != 0 {
		_, err := io.ReadFull(br, scan[4:])
		return err
	}
	if n := int(scan[2])<<8 | int(scan[3]); n != w {
		return fmt.Errorf("run-length width %d, image width %d", n, w)
	}
	for c := 0; c < 4; c++ {
		for x := 0; x < w; {
			n, err := br.ReadByte()
			if err != nil {
				return err
			}
			if n > 128 {
				count := int(n) - 128
				if count > w-x {
					return fmt.Errorf("run overflows scanline")
				}
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				for i := 0; i < count; i++ {
					scan[4*(x+i)+c] = v
				}
				x += count
				continue
			}
			count := int(n)
			if count == 0 || count > w-x {
				return fmt.Errorf("bad literal run %d", count)
			}
			for i := 0; i < count; i++ {
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				scan[4*(x+i)+c] = v
			}
			x += count
		}
	}
	return nil
}

// rgbe expands a shared-exponent pixel.
func rgbe(p []byte) core.Color {
	if p[3] == 0 {
		return core.Color{A: 1}
	}
	f := math32.Pow(2, float32(int(p[3])-(128+8)))
	return core.Color{R: float32(p[0]) * f, G: float32(p[1]) * f, B: float32(p[2]) * f, A: 1}
}
