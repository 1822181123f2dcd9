package charts

import (
	"image/color"

	"penguinboard/pkg/penguins"
)

// Series colours used across every chart.
var palette = map[penguins.Species]color.RGBA{
	penguins.SpeciesAdelie:    {R: 0x1f, G: 0x4e, B: 0xd8, A: 0xff},
	penguins.SpeciesChinstrap: {R: 0x2e, G: 0xa0, B: 0x43, A: 0xff},
	penguins.SpeciesGentoo:    {R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
}

// neutral is the colour of unstacked series.
var neutral = color.RGBA{R: 0x4c, G: 0x72, B: 0xb0, A: 0xff}

// Color returns the series colour for species.
func Color(species penguins.Species) color.RGBA {
	if c, ok := palette[species]; ok {
		return c
	}
	return neutral
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		b[1+2*i] = digits[v>>4]
		b[2+2*i] = digits[v&0x0f]
	}
	return string(b)
}
