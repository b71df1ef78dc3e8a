package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrBadBoxLength is returned when a raw bbox does not hold exactly four numbers
var ErrBadBoxLength = errors.New("bbox must have exactly 4 values")

// BoundingBox represents a rectangle defined by its top-left (X0, Y0)
// and bottom-right (X1, Y1) corners
type BoundingBox struct {
	X0 float64
	Y0 float64
	X1 float64
	Y1 float64
}

// BoxFromSlice builds a BoundingBox from the [x0, y0, x1, y1] encoding
// shared by every source document
func BoxFromSlice(v []float64) (BoundingBox, error) {
	if len(v) != 4 {
		return BoundingBox{}, fmt.Errorf("%w: got %d", ErrBadBoxLength, len(v))
	}
	return BoundingBox{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}, nil
}

// Slice returns the box in [x0, y0, x1, y1] order
func (b BoundingBox) Slice() []float64 {
	return []float64{b.X0, b.Y0, b.X1, b.Y1}
}

// Width returns X1 - X0, which is negative for inverted boxes
func (b BoundingBox) Width() float64 {
	return b.X1 - b.X0
}

// Height returns Y1 - Y0, which is negative for inverted boxes
func (b BoundingBox) Height() float64 {
	return b.Y1 - b.Y0
}

// Area returns the box area, or 0 when the box is degenerate
func (b BoundingBox) Area() float64 {
	if b.IsDegenerate() {
		return 0
	}
	return b.Width() * b.Height()
}

// IsDegenerate reports whether the corners are inverted on either axis
func (b BoundingBox) IsDegenerate() bool {
	return b.X0 > b.X1 || b.Y0 > b.Y1
}

// Normalize swaps inverted corners so that X0 <= X1 and Y0 <= Y1
func (b BoundingBox) Normalize() BoundingBox {
	if b.X0 > b.X1 {
		b.X0, b.X1 = b.X1, b.X0
	}
	if b.Y0 > b.Y1 {
		b.Y0, b.Y1 = b.Y1, b.Y0
	}
	return b
}

// Intersects reports whether two boxes share any point, edges included
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return !(b.X1 < other.X0 || b.X0 > other.X1 ||
		b.Y1 < other.Y0 || b.Y0 > other.Y1)
}

// Intersection returns the overlapping region, or the zero box when
// the boxes do not intersect
func (b BoundingBox) Intersection(other BoundingBox) BoundingBox {
	if !b.Intersects(other) {
		return BoundingBox{}
	}
	return BoundingBox{
		X0: math.Max(b.X0, other.X0),
		Y0: math.Max(b.Y0, other.Y0),
		X1: math.Min(b.X1, other.X1),
		Y1: math.Min(b.Y1, other.Y1),
	}
}

// Coverage returns the share of other's area that lies inside b, in [0, 1]
func (b BoundingBox) Coverage(other BoundingBox) float64 {
	area := other.Area()
	if area == 0 {
		return 0
	}
	return b.Intersection(other).Area() / area
}

// Contains reports whether other lies entirely inside b
func (b BoundingBox) Contains(other BoundingBox) bool {
	return other.X0 >= b.X0 && other.X1 <= b.X1 &&
		other.Y0 >= b.Y0 && other.Y1 <= b.Y1
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%.2f, %.2f, %.2f, %.2f]", b.X0, b.Y0, b.X1, b.Y1)
}

// MarshalJSON encodes the box as [x0, y0, x1, y1]
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Slice())
}

// UnmarshalJSON decodes the [x0, y0, x1, y1] encoding
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode bbox: %w", err)
	}
	box, err := BoxFromSlice(raw)
	if err != nil {
		return err
	}
	*b = box
	return nil
}
