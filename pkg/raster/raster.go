// Package raster discovers the pixel space of the original image a caller
// wants to crop or annotate
package raster

import (
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	// Decoders registered with image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

// Info describes a probed image
type Info struct {
	Format string            `json:"format"`
	Space  models.PixelSpace `json:"space"`
}

// Probe reads only the header of the image at path
func Probe(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	info, err := ProbeReader(file)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// ProbeReader decodes the image configuration from r
func ProbeReader(r io.Reader) (Info, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return Info{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("image reports empty size %dx%d", cfg.Width, cfg.Height)
	}
	return Info{
		Format: format,
		Space:  models.PixelSpace{Width: float64(cfg.Width), Height: float64(cfg.Height)},
	}, nil
}

// ParseSize parses "WIDTHxHEIGHT" (e.g. "960x540")
func ParseSize(s string) (models.PixelSpace, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return models.PixelSpace{}, fmt.Errorf("invalid size %q, want WIDTHxHEIGHT", s)
	}

	w, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return models.PixelSpace{}, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	h, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return models.PixelSpace{}, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	if !finitePositive(w) || !finitePositive(h) {
		return models.PixelSpace{}, fmt.Errorf("size %q must be positive and finite", s)
	}
	return models.PixelSpace{Width: w, Height: h}, nil
}

// finitePositive is false for NaN as well
func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
