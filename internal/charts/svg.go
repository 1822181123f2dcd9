package charts

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"penguinboard/pkg/penguins"
)

// Frame is the plotting area of a rendered chart.
type Frame struct {
	Width, Height int
}

// DefaultFrame is used when a zero Frame is passed.
var DefaultFrame = Frame{Width: 640, Height: 360}

const (
	marginLeft   = 56
	marginRight  = 16
	marginTop    = 32
	marginBottom = 44
)

func (f Frame) orDefault() Frame {
	if f.Width <= marginLeft+marginRight || f.Height <= marginTop+marginBottom {
		return DefaultFrame
	}
	return f
}

func (f Frame) plotWidth() float64  { return float64(f.Width - marginLeft - marginRight) }
func (f Frame) plotHeight() float64 { return float64(f.Height - marginTop - marginBottom) }

// HistogramSVG renders h as an inline SVG component.
func HistogramSVG(h Histogram, frame Frame) templ.Component {
	frame = frame.orDefault()
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		openSVG(&b, frame, "histogram")
		writeLabels(&b, frame, h.Title, h.XLabel, h.YLabel)
		if h.Empty() {
			writeEmpty(&b, frame)
		} else {
			top := float64(h.MaxCount())
			if top == 0 {
				top = 1
			}
			barW := frame.plotWidth() / float64(h.Bins())
			for i := 0; i < h.Bins(); i++ {
				base := 0
				for _, s := range h.Series {
					c := s.Counts[i]
					if c == 0 {
						continue
					}
					y0 := frame.plotHeight() * float64(base) / top
					hgt := frame.plotHeight() * float64(c) / top
					fmt.Fprintf(&b, `<rect class="bar" x="%s" y="%s" width="%s" height="%s" fill="%s"><title>%s [%s, %s): %d</title></rect>`,
						num(marginLeft+float64(i)*barW), num(float64(marginTop)+frame.plotHeight()-y0-hgt),
						num(max(barW-1, 1)), num(hgt), Hex(s.Color),
						templ.EscapeString(s.Name), num(h.Edges[i]), num(h.Edges[i+1]), c)
					if h.Stacked {
						base += c
					}
				}
			}
			writeAxisTicks(&b, frame, h.Edges[0], h.Edges[len(h.Edges)-1], 0, top)
			if h.Stacked {
				writeLegend(&b, frame, h.Series)
			}
		}
		b.WriteString(`</svg>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ScatterSVG renders s as an inline SVG component. With showSex, male points
// are squares, female points circles and unknown points diamonds.
func ScatterSVG(s Scatter, frame Frame, showSex bool) templ.Component {
	frame = frame.orDefault()
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		openSVG(&b, frame, "scatter")
		writeLabels(&b, frame, s.Title, s.XLabel, s.YLabel)
		if len(s.Points) == 0 {
			writeEmpty(&b, frame)
		} else {
			minX, maxX, minY, maxY := s.Bounds()
			for _, p := range s.Points {
				cx := marginLeft + frame.plotWidth()*(p.X-minX)/(maxX-minX)
				cy := float64(marginTop) + frame.plotHeight()*(1-(p.Y-minY)/(maxY-minY))
				writeMarker(&b, cx, cy, Hex(Color(p.Species)), markerFor(p.Sex, showSex))
			}
			writeAxisTicks(&b, frame, minX, maxX, minY, maxY)
			legend := make([]Series, 0, 3)
			for _, species := range s.Species() {
				legend = append(legend, Series{Name: string(species), Color: Color(species)})
			}
			writeLegend(&b, frame, legend)
		}
		b.WriteString(`</svg>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

type marker int

const (
	markerCircle marker = iota
	markerSquare
	markerDiamond
)

func markerFor(sex penguins.Sex, showSex bool) marker {
	if !showSex {
		return markerCircle
	}
	switch sex {
	case penguins.SexMale:
		return markerSquare
	case penguins.SexFemale:
		return markerCircle
	default:
		return markerDiamond
	}
}

func writeMarker(b *strings.Builder, cx, cy float64, fill string, m marker) {
	const r = 4.0
	switch m {
	case markerSquare:
		fmt.Fprintf(b, `<rect class="point sex-male" x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
			num(cx-r), num(cy-r), num(2*r), num(2*r), fill)
	case markerDiamond:
		fmt.Fprintf(b, `<polygon class="point sex-unknown" points="%s,%s %s,%s %s,%s %s,%s" fill="%s"/>`,
			num(cx), num(cy-r), num(cx+r), num(cy), num(cx), num(cy+r), num(cx-r), num(cy), fill)
	default:
		fmt.Fprintf(b, `<circle class="point" cx="%s" cy="%s" r="%s" fill="%s"/>`, num(cx), num(cy), num(r), fill)
	}
}

func openSVG(b *strings.Builder, f Frame, class string) {
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" class="chart %s" viewBox="0 0 %d %d" width="%d" height="%d" role="img">`,
		class, f.Width, f.Height, f.Width, f.Height)
	fmt.Fprintf(b, `<rect class="plot" x="%d" y="%d" width="%s" height="%s" fill="none" stroke="#4e5d6c"/>`,
		marginLeft, marginTop, num(f.plotWidth()), num(f.plotHeight()))
}

func writeLabels(b *strings.Builder, f Frame, title, x, y string) {
	fmt.Fprintf(b, `<text class="title" x="%d" y="20" text-anchor="middle">%s</text>`, f.Width/2, templ.EscapeString(title))
	fmt.Fprintf(b, `<text class="x-label" x="%s" y="%d" text-anchor="middle">%s</text>`,
		num(marginLeft+f.plotWidth()/2), f.Height-6, templ.EscapeString(x))
	fmt.Fprintf(b, `<text class="y-label" x="14" y="%s" text-anchor="middle" transform="rotate(-90 14 %s)">%s</text>`,
		num(float64(marginTop)+f.plotHeight()/2), num(float64(marginTop)+f.plotHeight()/2), templ.EscapeString(y))
}

func writeAxisTicks(b *strings.Builder, f Frame, minX, maxX, minY, maxY float64) {
	const ticks = 4
	for i := 0; i <= ticks; i++ {
		frac := float64(i) / ticks
		x := marginLeft + f.plotWidth()*frac
		fmt.Fprintf(b, `<text class="tick" x="%s" y="%d" text-anchor="middle">%s</text>`,
			num(x), marginTop+int(f.plotHeight())+16, num(minX+(maxX-minX)*frac))
		y := float64(marginTop) + f.plotHeight()*(1-frac)
		fmt.Fprintf(b, `<text class="tick" x="%d" y="%s" text-anchor="end">%s</text>`,
			marginLeft-4, num(y+4), num(minY+(maxY-minY)*frac))
	}
}

func writeLegend(b *strings.Builder, f Frame, series []Series) {
	for i, s := range series {
		y := marginTop + 8 + i*16
		x := f.Width - marginRight - 90
		fmt.Fprintf(b, `<g class="legend"><rect x="%d" y="%d" width="10" height="10" fill="%s"/><text x="%d" y="%d">%s</text></g>`,
			x, y, Hex(s.Color), x+14, y+9, templ.EscapeString(s.Name))
	}
}

func writeEmpty(b *strings.Builder, f Frame) {
	fmt.Fprintf(b, `<text class="empty" x="%d" y="%d" text-anchor="middle">No data for the current selection</text>`,
		f.Width/2, f.Height/2)
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
