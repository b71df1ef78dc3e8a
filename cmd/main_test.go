package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-bbox-reconcile/pkg/models"
	"github.com/kass/go-bbox-reconcile/pkg/pipeline"
	"github.com/kass/go-bbox-reconcile/pkg/reconcile"
	"github.com/kass/go-bbox-reconcile/pkg/slide"
)

const layoutDoc = `{
  "pdf_info": [
    {
      "page_idx": 0,
      "page_size": [720, 405],
      "para_blocks": [
        {"type": "title", "bbox": [12, 8, 707, 138], "lines": [{"spans": [{"type": "text", "content": "Results"}]}]}
      ]
    }
  ]
}`

const contentListDoc = `[
  {"type": "text", "text": "Results", "text_level": 1, "bbox": [16, 19, 981, 340], "page_idx": 0}
]`

// execute runs the root command with fresh flag values
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	sourceKind, inputFile, imagePath, imageSize = "layout", "", "", ""
	assumedExtent, allowUntrusted, outputFile, numWorkers = "1000x1000", false, "", 0
	fromSpace, referenceKind, referenceFile = "", "layout", ""
	backgroundPath, cleanPath = "", ""
	checkPage, annotatePage, drawChildren, withLegend = -1, 0, false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page_0.png")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, png.Encode(file, image.NewRGBA(image.Rect(0, 0, w, h))))
	return path
}

func TestParseBox(t *testing.T) {
	box, err := parseBox("12, 8,707,138")
	require.NoError(t, err)
	assert.Equal(t, models.BoundingBox{X0: 12, Y0: 8, X1: 707, Y1: 138}, box)

	_, err = parseBox("1,2,3")
	assert.ErrorIs(t, err, models.ErrBadBoxLength)

	_, err = parseBox("1,2,x,4")
	assert.Error(t, err)
}

func TestParseSpace(t *testing.T) {
	tests := []struct {
		in      string
		want    models.CoordinateSpace
		wantErr bool
	}{
		{"page:720x405", models.PageUnits{PageWidth: 720, PageHeight: 405}, false},
		{"normalized", models.Normalized{}, false},
		{"pixel:1920x1080", models.PixelSpace{Width: 1920, Height: 1080}, false},
		{"untrusted:1000x1000", models.Untrusted{AssumedWidth: 1000, AssumedHeight: 1000}, false},
		{"page", nil, true},
		{"inches:8x11", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSpace(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForPage(t *testing.T) {
	assert.Equal(t, "out/page_3.png", forPage("out/page_{page}.png", 3))
	assert.Equal(t, "same.png", forPage("same.png", 3))
}

func TestReconcileCommand(t *testing.T) {
	out, err := execute(t, "reconcile", "12,8,707,138", "--from", "page:720x405", "--size", "960x540")
	require.NoError(t, err)

	var res reconcile.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDeltaSlice(t, []float64{16, 10.666666666666666, 942.6666666666666, 184}, res.Box.Slice(), 1e-9)
	assert.False(t, res.Clamped)

	_, err = execute(t, "reconcile", "16,19,981,340", "--from", "untrusted:1000x1000", "--size", "960x540")
	assert.ErrorIs(t, err, reconcile.ErrUntrustedSource)
}

func TestConvertCommand(t *testing.T) {
	input := writeFile(t, "layout.json", layoutDoc)
	img := writePNG(t, 960, 540)

	out, err := execute(t, "convert", "-i", input, "--image", img)
	require.NoError(t, err)

	var results []pipeline.PageResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, models.PixelSpace{Width: 960, Height: 540}, results[0].Destination)
	require.Len(t, results[0].Elements, 1)
	assert.InDelta(t, 184, results[0].Elements[0].BBox.Y1, 1e-9)
}

func TestConvertCommandNeedsImageOrSize(t *testing.T) {
	input := writeFile(t, "layout.json", layoutDoc)
	_, err := execute(t, "convert", "-i", input)
	assert.ErrorContains(t, err, "--image or --size")
}

func TestCheckCommandFlagsInconsistentAxes(t *testing.T) {
	reference := writeFile(t, "layout.json", layoutDoc)
	candidate := writeFile(t, "content_list.json", contentListDoc)

	out, err := execute(t, "check", "--reference", reference, "-s", "content_list", "-i", candidate)
	assert.ErrorIs(t, err, errUntrustedAxes)

	var report reconcile.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Flagged)
}

func TestPlanCommand(t *testing.T) {
	input := writeFile(t, "layout.json", layoutDoc)
	img := writePNG(t, 960, 540)

	out, err := execute(t, "plan", "-i", input, "--image", img, "--background", img)
	require.NoError(t, err)

	var slides []slide.Slide
	require.NoError(t, json.Unmarshal([]byte(out), &slides))
	require.Len(t, slides, 1)
	require.Len(t, slides[0].Placements, 2)
	assert.Equal(t, slide.KindBackground, slides[0].Placements[0].Kind)
	assert.Equal(t, slide.Rect{Left: 32, Top: 21, Right: 1885, Bottom: 368}, slides[0].Placements[1].Rect)
}

func TestAnnotateCommand(t *testing.T) {
	input := writeFile(t, "layout.json", layoutDoc)
	img := writePNG(t, 960, 540)
	output := filepath.Join(t.TempDir(), "annotated.png")

	_, err := execute(t, "annotate", "-i", input, "--image", img, "-o", output)
	require.NoError(t, err)

	file, err := os.Open(output)
	require.NoError(t, err)
	defer file.Close()
	header, err := png.DecodeConfig(file)
	require.NoError(t, err)
	assert.Equal(t, 960, header.Width)
}

func TestAnnotateCommandLegend(t *testing.T) {
	input := writeFile(t, "layout.json", layoutDoc)
	img := writePNG(t, 960, 540)
	output := filepath.Join(t.TempDir(), "annotated.png")

	_, err := execute(t, "annotate", "-i", input, "--image", img, "-o", output, "--legend")
	require.NoError(t, err)

	file, err := os.Open(output)
	require.NoError(t, err)
	defer file.Close()
	header, err := png.DecodeConfig(file)
	require.NoError(t, err)
	assert.Equal(t, 960, header.Width)
	assert.Greater(t, header.Height, 540)
}

func TestWriteJSONToFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.json")
	out, err := execute(t, "reconcile", "12,8,707,138", "--from", "page:720x405", "--size", "960x540", "-o", output)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var res reconcile.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.InDelta(t, 184, res.Box.Y1, 1e-9)
}

type failingCloser struct{ err error }

func (c failingCloser) Close() error { return c.err }

func TestCloseOutput(t *testing.T) {
	diskFull := errors.New("no space left on device")

	var err error
	closeOutput(failingCloser{err: diskFull}, &err)
	assert.ErrorIs(t, err, diskFull)

	// an earlier error wins over the close error
	earlier := errors.New("encode failed")
	err = earlier
	closeOutput(failingCloser{err: diskFull}, &err)
	assert.Same(t, earlier, err)

	err = nil
	closeOutput(failingCloser{}, &err)
	assert.NoError(t, err)
}

func TestProbeCommand(t *testing.T) {
	img := writePNG(t, 64, 32)
	out, err := execute(t, "probe", img)
	require.NoError(t, err)
	assert.Contains(t, out, "png\t64x32")
}
