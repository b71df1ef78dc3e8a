package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func rgba(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

func TestColorFor(t *testing.T) {
	tests := []struct {
		typ  models.ElementType
		want color.RGBA
	}{
		{models.TypeImage, colorVisual},
		{models.TypeChart, colorVisual},
		{models.TypeTable, colorTable},
		{models.TypeTableCell, colorTableCell},
		{models.TypeText, colorText},
		{models.TypeTitle, colorTitle},
		{models.TypeFooter, colorMargin},
		{models.TypeDiscarded, colorOther},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, ColorFor(tt.typ))
		})
	}
}

func TestColorForSource(t *testing.T) {
	assert.Equal(t, colorText, ColorForSource(models.TypeText, models.SourceLayout))
	assert.Equal(t, colorText, ColorForSource(models.TypeText, ""))
	assert.Equal(t, color.RGBA{R: 87, G: 149, B: 255, A: 255}, ColorForSource(models.TypeText, models.SourceContentList))
	assert.Equal(t, color.RGBA{R: 255, G: 88, B: 88, A: 255}, ColorForSource(models.TypeFigure, models.SourceContentList))
}

func TestDrawLightensContentListBoxes(t *testing.T) {
	img := blank(200, 100)
	elements := []*models.Element{
		{Type: models.TypeText, Source: models.SourceContentList, BBox: models.BoundingBox{X0: 20, Y0: 30, X1: 120, Y1: 90}},
	}
	Draw(img, elements, Options{NoLabels: true})
	assert.Equal(t, lighten(colorText), rgba(img.At(60, 30)))
}

func TestDrawOutlinesBoxes(t *testing.T) {
	img := blank(200, 100)
	elements := []*models.Element{
		{Type: models.TypeTable, BBox: models.BoundingBox{X0: 20, Y0: 30, X1: 120, Y1: 90}},
	}

	n := Draw(img, elements, Options{LineWidth: 3, NoLabels: true})
	assert.Equal(t, 1, n)

	assert.Equal(t, colorTable, rgba(img.At(60, 30)), "top edge")
	assert.Equal(t, colorTable, rgba(img.At(60, 89)), "bottom edge")
	assert.Equal(t, colorTable, rgba(img.At(22, 60)), "left edge")
	assert.Equal(t, colorTable, rgba(img.At(117, 60)), "right edge")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgba(img.At(60, 60)), "interior untouched")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgba(img.At(10, 10)), "outside untouched")
}

func TestDrawClipsAndSkipsChildrenByDefault(t *testing.T) {
	img := blank(100, 100)
	global := models.BoundingBox{X0: 40, Y0: 40, X1: 60, Y1: 60}
	elements := []*models.Element{
		{
			Type: models.TypeFigure,
			BBox: models.BoundingBox{X0: 50, Y0: 50, X1: 300, Y1: 300},
			Children: []*models.Element{
				{Type: models.TypeText, BBox: models.BoundingBox{X0: 0, Y0: 0, X1: 20, Y1: 20}, BBoxGlobal: &global},
			},
		},
		nil,
	}

	assert.Equal(t, 1, Draw(img, elements, Options{NoLabels: true}))
	assert.Equal(t, colorVisual, rgba(img.At(51, 70)))

	assert.Equal(t, 2, Draw(img, elements, Options{NoLabels: true, Children: true}))
	assert.Equal(t, colorText, rgba(img.At(40, 45)), "child drawn at its page-level box")
}

func TestDrawLabels(t *testing.T) {
	img := blank(200, 100)
	elements := []*models.Element{
		{Type: models.TypeText, BBox: models.BoundingBox{X0: 50, Y0: 40, X1: 150, Y1: 90}},
	}
	Draw(img, elements, Options{})

	// The label tab sits just above the box in the outline colour
	assert.Equal(t, colorText, rgba(img.At(51, 28)))
}

func TestCopyAndWritePNG(t *testing.T) {
	src := blank(8, 4)
	dst := Copy(src)
	assert.Equal(t, src.Bounds(), dst.Bounds())
	assert.NotSame(t, src, dst)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, dst))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), decoded.Bounds())
}

func TestAddLegend(t *testing.T) {
	src := blank(960, 100)
	src.Set(5, 5, colorTitle)

	out := AddLegend(src)
	b := out.Bounds()
	assert.Equal(t, 960, b.Dx())
	assert.Greater(t, b.Dy(), 100)

	assert.Equal(t, colorTitle, rgba(out.At(5, 5)), "page copied unchanged")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgba(out.At(b.Max.X-1, b.Max.Y-1)), "white strip")

	// First swatch sits at the left padding, inside its black border
	assert.Equal(t, colorVisual, rgba(out.At(legendPad+5, 100+legendPad+8)))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, rgba(out.At(legendPad, 100+legendPad+8)))
}

func TestAddLegendWrapsOnNarrowImages(t *testing.T) {
	wide := AddLegend(blank(2000, 50))
	narrow := AddLegend(blank(120, 50))

	assert.Equal(t, 50+2*legendPad+legendRow, wide.Bounds().Dy())
	assert.Equal(t, 50+2*legendPad+len(legendEntries)*legendRow, narrow.Bounds().Dy())
}
