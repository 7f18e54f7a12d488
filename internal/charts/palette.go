package charts

import (
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Scale is a sequential colour scale sampled at evenly spaced stops.
type Scale []drawing.Color

var (
	YlOrRd = scaleFromHex("ffffcc", "ffeda0", "fed976", "feb24c", "fd8d3c", "fc4e2a", "e31a1c", "bd0026", "800026")
	Blues  = scaleFromHex("f7fbff", "deebf7", "c6dbef", "9ecae1", "6baed6", "4292c6", "2171b5", "08519c", "08306b")
)

func scaleFromHex(stops ...string) Scale {
	s := make(Scale, len(stops))
	for i, h := range stops {
		s[i] = drawing.ColorFromHex(h)
	}
	return s
}

// At returns the colour at t in [0, 1], interpolating between stops.
func (s Scale) At(t float64) drawing.Color {
	if math.IsNaN(t) || t <= 0 {
		return s[0]
	}
	if t >= 1 {
		return s[len(s)-1]
	}
	pos := t * float64(len(s)-1)
	i := int(pos)
	frac := pos - float64(i)
	if frac == 0 {
		return s[i]
	}
	a, b := s[i], s[i+1]
	return drawing.Color{
		R: lerp(a.R, b.R, frac),
		G: lerp(a.G, b.G, frac),
		B: lerp(a.B, b.B, frac),
		A: 255,
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// hex renders c as a CSS colour.
func hex(c drawing.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ink picks black or white text for legibility on c.
func ink(c drawing.Color) drawing.Color {
	luma := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
	if luma > 150 {
		return drawing.ColorBlack
	}
	return drawing.ColorWhite
}

// ratio is v / top clamped to [0, 1]; a zero top maps to 0.
func ratio(v, top float64) float64 {
	if top <= 0 || math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v/top, 0), 1)
}
