package detector

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// MomoThreshold is the largest CIEDE2000 distance (L in 0..100) that still
// counts as the momo background tone.
const MomoThreshold = 10.0

// MomoColor is the background tone of the known scam screenshot.
var MomoColor = colorful.Color{R: 146.0 / 255.0, G: 74.0 / 255.0, B: 96.0 / 255.0}

// ColorMetric measures perceptual distance between two colours.
type ColorMetric interface {
	Distance(a, b colorful.Color) float64
}

// CIEDE2000 is the Delta E 2000 metric on the conventional 0..100 lightness scale.
type CIEDE2000 struct{}

// Distance implements ColorMetric.
func (CIEDE2000) Distance(a, b colorful.Color) float64 {
	// go-colorful works with L in 0..1.
	return a.DistanceCIEDE2000(b) * 100
}

// DominantColor returns the most frequent exact RGB colour of img. Equal counts
// resolve to the lexicographically smallest (R, G, B). The second result is
// false when the image has no pixels.
func DominantColor(img image.Image) (colorful.Color, bool) {
	bounds := img.Bounds()
	counts := make(map[[3]uint8]uint64)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			counts[[3]uint8{c.R, c.G, c.B}]++
		}
	}
	if len(counts) == 0 {
		return colorful.Color{}, false
	}

	var (
		best      [3]uint8
		bestCount uint64
	)
	for rgb, n := range counts {
		if n > bestCount || (n == bestCount && lessRGB(rgb, best)) {
			best, bestCount = rgb, n
		}
	}

	return colorful.Color{
		R: float64(best[0]) / 255.0,
		G: float64(best[1]) / 255.0,
		B: float64(best[2]) / 255.0,
	}, true
}

func lessRGB(a, b [3]uint8) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
