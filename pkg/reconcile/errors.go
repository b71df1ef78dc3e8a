package reconcile

import (
	"errors"
	"fmt"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

var (
	// ErrInvalidDimensions is returned when a reference width or height used
	// as a divisor, or a destination dimension, is not a positive finite number
	ErrInvalidDimensions = errors.New("invalid dimensions")

	// ErrUntrustedSource is returned for content-listing boxes unless the
	// caller opted in to untrusted sources
	ErrUntrustedSource = errors.New("untrusted coordinate source")

	// ErrUnknownSpace is returned for a coordinate space the converter does not handle
	ErrUnknownSpace = errors.New("unknown coordinate space")
)

// DegenerateBoxError is the advisory raised by CheckDegenerate. The
// converter itself never returns it.
type DegenerateBoxError struct {
	Box models.BoundingBox
}

func (e *DegenerateBoxError) Error() string {
	return fmt.Sprintf("degenerate box %s: corners are inverted", e.Box)
}

// CheckDegenerate returns a *DegenerateBoxError when x0 > x1 or y0 > y1
func CheckDegenerate(box models.BoundingBox) error {
	if box.IsDegenerate() {
		return &DegenerateBoxError{Box: box}
	}
	return nil
}

// AxisInconsistencyError reports that a candidate source implies different
// scale factors on the X and Y axes for the same element
type AxisInconsistencyError struct {
	ScaleX    float64
	ScaleY    float64
	Tolerance float64
}

func (e *AxisInconsistencyError) Error() string {
	return fmt.Sprintf("axis scales diverge: x=%.3f y=%.3f (tolerance %.1f%%), do not trust this source",
		e.ScaleX, e.ScaleY, e.Tolerance*100)
}
