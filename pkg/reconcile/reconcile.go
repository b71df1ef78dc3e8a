// Package reconcile maps bounding boxes between the coordinate spaces emitted
// by layout extraction tools and the pixel space of the original raster image.
//
// The conversion is a per-axis scale followed by clamping to the destination
// bounds. The two axes are scaled independently and never forced to share a
// factor, so axis-inconsistent input stays visible to the caller.
package reconcile

import (
	"fmt"
	"math"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

// Convert maps box from source into destination pixels and clamps the result
// to [0, destination.Width] x [0, destination.Height].
//
// source may be PageUnits, Normalized or PixelSpace. Untrusted sources are
// refused here; use a Reconciler created WithUntrustedSources to opt in.
func Convert(box models.BoundingBox, source models.CoordinateSpace, destination models.PixelSpace) (models.BoundingBox, error) {
	if _, ok := source.(models.Untrusted); ok {
		return models.BoundingBox{}, fmt.Errorf("%w: %s", ErrUntrustedSource, source)
	}
	scaleX, scaleY, err := ScaleFactors(source, destination)
	if err != nil {
		return models.BoundingBox{}, err
	}
	out, _ := apply(box, scaleX, scaleY, destination)
	return out, nil
}

// ScaleFactors returns the independent X and Y factors that take a box from
// source into destination pixels
func ScaleFactors(source models.CoordinateSpace, destination models.PixelSpace) (scaleX, scaleY float64, err error) {
	if err := checkDimension("destination width", destination.Width); err != nil {
		return 0, 0, err
	}
	if err := checkDimension("destination height", destination.Height); err != nil {
		return 0, 0, err
	}

	switch s := source.(type) {
	case models.PageUnits:
		if err := checkDimension("page width", s.PageWidth); err != nil {
			return 0, 0, err
		}
		if err := checkDimension("page height", s.PageHeight); err != nil {
			return 0, 0, err
		}
		return destination.Width / s.PageWidth, destination.Height / s.PageHeight, nil

	case models.Normalized:
		// Normalized values are already fractions of the destination
		return destination.Width, destination.Height, nil

	case models.PixelSpace:
		if err := checkDimension("source width", s.Width); err != nil {
			return 0, 0, err
		}
		if err := checkDimension("source height", s.Height); err != nil {
			return 0, 0, err
		}
		return destination.Width / s.Width, destination.Height / s.Height, nil

	case models.Untrusted:
		if err := checkDimension("assumed width", s.AssumedWidth); err != nil {
			return 0, 0, err
		}
		if err := checkDimension("assumed height", s.AssumedHeight); err != nil {
			return 0, 0, err
		}
		return destination.Width / s.AssumedWidth, destination.Height / s.AssumedHeight, nil

	case nil:
		return 0, 0, fmt.Errorf("%w: nil source space", ErrUnknownSpace)

	default:
		return 0, 0, fmt.Errorf("%w: %T", ErrUnknownSpace, source)
	}
}

// apply scales and clamps box, reporting whether any coordinate was clamped
func apply(box models.BoundingBox, scaleX, scaleY float64, destination models.PixelSpace) (models.BoundingBox, bool) {
	x0, cx0 := clamp(box.X0*scaleX, destination.Width)
	y0, cy0 := clamp(box.Y0*scaleY, destination.Height)
	x1, cx1 := clamp(box.X1*scaleX, destination.Width)
	y1, cy1 := clamp(box.Y1*scaleY, destination.Height)

	return models.BoundingBox{X0: x0, Y0: y0, X1: x1, Y1: y1},
		cx0 || cy0 || cx1 || cy1
}

func clamp(v, upper float64) (float64, bool) {
	switch {
	case math.IsNaN(v):
		return 0, true
	case v < 0:
		return 0, true
	case v > upper:
		return upper, true
	}
	return v, false
}

func checkDimension(name string, v float64) error {
	// !(v > 0) also catches NaN
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s is %v", ErrInvalidDimensions, name, v)
	}
	return nil
}
