// Package annotate draws reconciled element boxes over the original image
// so that misplaced boxes can be spotted by eye.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

var (
	colorVisual    = color.RGBA{R: 220, G: 38, B: 38, A: 255}
	colorTable     = color.RGBA{R: 22, G: 163, B: 74, A: 255}
	colorTableCell = color.RGBA{R: 134, G: 239, B: 172, A: 255}
	colorText      = color.RGBA{R: 37, G: 99, B: 235, A: 255}
	colorTitle     = color.RGBA{R: 147, G: 51, B: 234, A: 255}
	colorMargin    = color.RGBA{R: 234, G: 179, B: 8, A: 255}
	colorOther     = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// ColorFor returns the outline colour used for an element type
func ColorFor(t models.ElementType) color.RGBA {
	switch t {
	case models.TypeImage, models.TypeFigure, models.TypeChart:
		return colorVisual
	case models.TypeTable:
		return colorTable
	case models.TypeTableCell:
		return colorTableCell
	case models.TypeText:
		return colorText
	case models.TypeTitle:
		return colorTitle
	case models.TypeHeader, models.TypeFooter:
		return colorMargin
	default:
		return colorOther
	}
}

// ColorForSource returns ColorFor(t), lightened for boxes taken from the
// content listing
func ColorForSource(t models.ElementType, source models.SourceKind) color.RGBA {
	c := ColorFor(t)
	if source == models.SourceContentList {
		return lighten(c)
	}
	return c
}

func lighten(c color.RGBA) color.RGBA {
	up := func(v uint8) uint8 { return uint8(min(int(v)+50, 255)) }
	return color.RGBA{R: up(c.R), G: up(c.G), B: up(c.B), A: c.A}
}

// Options controls how boxes are drawn
type Options struct {
	// LineWidth is the outline thickness in pixels, 2 when zero
	LineWidth int
	// NoLabels disables the index labels
	NoLabels bool
	// Children also outlines nested elements, using their page-level box
	Children bool
}

// Draw outlines every element box on dst and labels it with its 1-based
// position. Boxes are expected in dst's pixel space. It returns the number
// of boxes drawn.
func Draw(dst draw.Image, elements []*models.Element, opts Options) int {
	width := opts.LineWidth
	if width <= 0 {
		width = 2
	}

	n := 0
	for _, el := range elements {
		if el == nil {
			continue
		}
		el.Walk(func(e *models.Element, depth int) {
			if depth > 0 && !opts.Children {
				return
			}
			n++
			box := e.BBox
			if depth > 0 {
				box = e.GlobalBox()
			}
			rect := toRect(box.Normalize())
			c := ColorForSource(e.Type, e.Source)
			outline(dst, rect, width, c)
			if !opts.NoLabels {
				label(dst, rect, strconv.Itoa(n), c)
			}
		})
	}
	return n
}

// Copy returns an RGBA copy of src that can be drawn on
func Copy(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

// WritePNG encodes img as PNG to w
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

type legendEntry struct {
	text  string
	color color.RGBA
}

var legendEntries = []legendEntry{
	{"image/figure/chart", colorVisual},
	{"table", colorTable},
	{"table cell", colorTableCell},
	{"text", colorText},
	{"text (content list)", lighten(colorText)},
	{"title", colorTitle},
	{"header/footer", colorMargin},
	{"other", colorOther},
}

const (
	legendPad    = 8
	legendRow    = 20
	legendSwatch = 14
)

// AddLegend returns a copy of img extended by a white strip along the bottom
// that names the colour of each element type. Entries wrap onto further rows
// when the image is too narrow.
func AddLegend(img image.Image) *image.RGBA {
	b := img.Bounds()
	d := &font.Drawer{Src: image.Black, Face: basicfont.Face7x13}

	type placed struct {
		entry legendEntry
		at    image.Point
	}
	var items []placed
	x, row := legendPad, 0
	for _, e := range legendEntries {
		w := legendSwatch + 4 + d.MeasureString(e.text).Ceil()
		if x > legendPad && x+w > b.Dx()-legendPad {
			x, row = legendPad, row+1
		}
		items = append(items, placed{entry: e, at: image.Pt(x, row*legendRow)})
		x += w + 2*legendPad
	}

	height := 2*legendPad + (row+1)*legendRow
	dst := image.NewRGBA(image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Max.Y+height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Src)

	d.Dst = dst
	ascent := d.Face.Metrics().Ascent
	for _, it := range items {
		origin := image.Pt(b.Min.X+it.at.X, b.Max.Y+legendPad+it.at.Y)
		swatch := image.Rect(origin.X, origin.Y+3, origin.X+legendSwatch, origin.Y+3+legendSwatch)
		draw.Draw(dst, swatch, image.NewUniform(it.entry.color), image.Point{}, draw.Src)
		outline(dst, swatch, 1, color.Black)

		d.Dot = fixed.Point26_6{
			X: fixed.I(swatch.Max.X + 4),
			Y: fixed.I(origin.Y+3) + ascent,
		}
		d.DrawString(it.entry.text)
	}
	return dst
}

func toRect(box models.BoundingBox) image.Rectangle {
	return image.Rect(int(box.X0), int(box.Y0), int(box.X1), int(box.Y1))
}

// outline strokes the inside edge of r, clipped to dst
func outline(dst draw.Image, r image.Rectangle, width int, c color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	w := min(width, r.Dx(), r.Dy())

	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y),
		image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

// label writes text on a filled tab at the top-left corner of r
func label(dst draw.Image, r image.Rectangle, text string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
	}

	adv := d.MeasureString(text).Ceil()
	metrics := face.Metrics()
	height := metrics.Height.Ceil()

	// Sit above the box when there is room, inside it otherwise
	top := r.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y
	}
	tab := image.Rect(r.Min.X, top, r.Min.X+adv+4, top+height)
	draw.Draw(dst, tab.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)

	d.Dot = fixed.Point26_6{
		X: fixed.I(tab.Min.X + 2),
		Y: fixed.I(top) + metrics.Ascent,
	}
	d.DrawString(text)
}
