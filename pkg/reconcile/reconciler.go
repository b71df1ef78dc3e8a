package reconcile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

// DefaultAxisTolerance is the relative divergence between implied X and Y
// scales above which a source is flagged
const DefaultAxisTolerance = 0.05

// Result is the detailed outcome of a single conversion
type Result struct {
	Box    models.BoundingBox `json:"bbox"`
	Input  models.BoundingBox `json:"input"`
	ScaleX float64            `json:"scale_x"`
	ScaleY float64            `json:"scale_y"`
	// Clamped means the scaled box exceeded the destination and was pulled
	// back inside. Informational only.
	Clamped bool `json:"clamped"`
	// Degenerate means the input corners were inverted. Advisory only.
	Degenerate bool `json:"degenerate"`
}

// Reconciler carries the configuration and logger for conversions. It holds
// no mutable state and is safe for concurrent use.
type Reconciler struct {
	logger         *zap.Logger
	allowUntrusted bool
	axisTolerance  float64
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLogger sets the logger used for warnings
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithUntrustedSources opts in to converting content-listing boxes. Every
// such conversion logs a warning that axis scale factors may diverge.
func WithUntrustedSources(allow bool) Option {
	return func(r *Reconciler) {
		r.allowUntrusted = allow
	}
}

// WithAxisTolerance sets the tolerance used by CheckAxes
func WithAxisTolerance(tolerance float64) Option {
	return func(r *Reconciler) {
		if tolerance > 0 {
			r.axisTolerance = tolerance
		}
	}
}

// NewReconciler creates a Reconciler
func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{
		logger:        zap.NewNop(),
		axisTolerance: DefaultAxisTolerance,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AllowsUntrusted reports whether the untrusted opt-in is active
func (r *Reconciler) AllowsUntrusted() bool {
	return r.allowUntrusted
}

// AxisTolerance returns the configured axis tolerance
func (r *Reconciler) AxisTolerance() float64 {
	return r.axisTolerance
}

// Convert behaves like the package-level Convert, but honours the
// untrusted-source opt-in
func (r *Reconciler) Convert(box models.BoundingBox, source models.CoordinateSpace, destination models.PixelSpace) (models.BoundingBox, error) {
	res, err := r.ConvertDetailed(box, source, destination)
	if err != nil {
		return models.BoundingBox{}, err
	}
	return res.Box, nil
}

// ConvertDetailed converts box and reports the scale factors used together
// with the clamping and degenerate-input findings
func (r *Reconciler) ConvertDetailed(box models.BoundingBox, source models.CoordinateSpace, destination models.PixelSpace) (Result, error) {
	if u, ok := source.(models.Untrusted); ok {
		if !r.allowUntrusted {
			return Result{}, fmt.Errorf("%w: %s", ErrUntrustedSource, source)
		}
		r.logger.Warn("Converting box from untrusted source, axis scale factors may diverge",
			zap.Stringer("box", box),
			zap.Float64("assumed_width", u.AssumedWidth),
			zap.Float64("assumed_height", u.AssumedHeight))
	}

	scaleX, scaleY, err := ScaleFactors(source, destination)
	if err != nil {
		return Result{}, err
	}

	out, clamped := apply(box, scaleX, scaleY, destination)
	res := Result{
		Box:        out,
		Input:      box,
		ScaleX:     scaleX,
		ScaleY:     scaleY,
		Clamped:    clamped,
		Degenerate: box.IsDegenerate(),
	}

	if clamped {
		r.logger.Debug("Box clamped to destination bounds",
			zap.Stringer("input", box),
			zap.Stringer("output", out),
			zap.Stringer("destination", destination))
	}
	return res, nil
}

// CheckAxes runs CheckAxisConsistency with the configured tolerance
func (r *Reconciler) CheckAxes(reference, candidate models.BoundingBox) error {
	return CheckAxisConsistency(reference, candidate, r.axisTolerance)
}
