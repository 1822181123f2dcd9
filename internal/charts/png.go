package charts

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

var (
	pngBackground = color.RGBA{R: 0x2b, G: 0x3e, B: 0x50, A: 0xff}
	pngAxis       = color.RGBA{R: 0xab, G: 0xb6, B: 0xc2, A: 0xff}
)

// HistogramPNG rasterizes h without labels.
func HistogramPNG(h Histogram, frame Frame) ([]byte, error) {
	frame = frame.orDefault()
	img := newCanvas(frame)
	if !h.Empty() {
		top := float64(h.MaxCount())
		if top == 0 {
			top = 1
		}
		barW := frame.plotWidth() / float64(h.Bins())
		bottom := marginTop + int(frame.plotHeight())
		for i := 0; i < h.Bins(); i++ {
			x0 := marginLeft + int(float64(i)*barW)
			x1 := marginLeft + int(float64(i+1)*barW) - 1
			if x1 <= x0 {
				x1 = x0 + 1
			}
			base := 0
			for _, s := range h.Series {
				c := s.Counts[i]
				if c == 0 {
					continue
				}
				y1 := bottom - int(frame.plotHeight()*float64(base)/top)
				y0 := bottom - int(frame.plotHeight()*float64(base+c)/top)
				fill(img, image.Rect(x0, y0, x1, y1), s.Color)
				if h.Stacked {
					base += c
				}
			}
		}
	}
	return encode(img)
}

// ScatterPNG rasterizes s as species-coloured squares.
func ScatterPNG(s Scatter, frame Frame) ([]byte, error) {
	frame = frame.orDefault()
	img := newCanvas(frame)
	if len(s.Points) > 0 {
		minX, maxX, minY, maxY := s.Bounds()
		for _, p := range s.Points {
			cx := marginLeft + int(frame.plotWidth()*(p.X-minX)/(maxX-minX))
			cy := marginTop + int(frame.plotHeight()*(1-(p.Y-minY)/(maxY-minY)))
			fill(img, image.Rect(cx-2, cy-2, cx+3, cy+3), Color(p.Species))
		}
	}
	return encode(img)
}

func newCanvas(f Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{pngBackground}, image.Point{}, draw.Src)
	left, top := marginLeft, marginTop
	right, bottom := marginLeft+int(f.plotWidth()), marginTop+int(f.plotHeight())
	fill(img, image.Rect(left, bottom, right+1, bottom+1), pngAxis)
	fill(img, image.Rect(left-1, top, left, bottom+1), pngAxis)
	return img
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), &image.Uniform{c}, image.Point{}, draw.Src)
}

func encode(img image.Image) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
