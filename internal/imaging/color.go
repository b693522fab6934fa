package imaging

import (
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// statsSampleEdge bounds the number of pixels Summarize visits per axis.
const statsSampleEdge = 256

// Stats summarizes the overall tone of a bitmap. Clients that cannot render
// pixels use it to see the effect of an adjustment.
type Stats struct {
	// MeanHex is the average color as "#rrggbb".
	MeanHex string `json:"mean_hex"`

	// Lightness is the CIE L* of the average color, 0 (black) to 100 (white).
	Lightness float64 `json:"lightness"`

	// Opacity is the average alpha, 0 to 1.
	Opacity float64 `json:"opacity"`
}

// Summarize computes Stats over an evenly spaced grid of at most
// statsSampleEdge x statsSampleEdge pixels. Colors are averaged
// non-premultiplied so transparent regions do not darken the mean.
func Summarize(img image.Image) Stats {
	bounds := img.Bounds()
	stepX := max(1, bounds.Dx()/statsSampleEdge)
	stepY := max(1, bounds.Dy()/statsSampleEdge)

	var sumR, sumG, sumB, sumA, weight float64
	samples := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, a := img.At(x, y).RGBA()
			samples++
			if a == 0 {
				continue
			}
			af := float64(a) / 0xffff
			// RGBA() is premultiplied; dividing by alpha and weighting by it
			// cancels out, so the premultiplied sum is already alpha-weighted.
			sumR += float64(r) / 0xffff
			sumG += float64(g) / 0xffff
			sumB += float64(b) / 0xffff
			sumA += af
			weight += af
		}
	}

	if samples == 0 || weight == 0 {
		return Stats{MeanHex: "#000000"}
	}

	mean := colorful.Color{R: sumR / weight, G: sumG / weight, B: sumB / weight}.Clamped()
	l, _, _ := mean.Lab()
	return Stats{
		MeanHex:   mean.Hex(),
		Lightness: math.Round(l*1000) / 10,
		Opacity:   math.Round(sumA/float64(samples)*1000) / 1000,
	}
}
