package reconcile

import (
	"fmt"
	"math"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

// ImpliedScales returns the factors that would map reference onto candidate
// for the same element, taken at the far corner: candidate.X1/reference.X1
// and candidate.Y1/reference.Y1
func ImpliedScales(reference, candidate models.BoundingBox) (scaleX, scaleY float64, err error) {
	if err := checkDimension("reference x1", reference.X1); err != nil {
		return 0, 0, err
	}
	if err := checkDimension("reference y1", reference.Y1); err != nil {
		return 0, 0, err
	}
	return candidate.X1 / reference.X1, candidate.Y1 / reference.Y1, nil
}

// CheckAxisConsistency returns an *AxisInconsistencyError when the scales
// implied by candidate differ between axes by more than tolerance, measured
// as |scaleX/scaleY - 1|
func CheckAxisConsistency(reference, candidate models.BoundingBox, tolerance float64) error {
	scaleX, scaleY, err := ImpliedScales(reference, candidate)
	if err != nil {
		return err
	}
	if divergence(scaleX, scaleY) > tolerance {
		return &AxisInconsistencyError{ScaleX: scaleX, ScaleY: scaleY, Tolerance: tolerance}
	}
	return nil
}

func divergence(scaleX, scaleY float64) float64 {
	// A collapsed axis counts as total divergence
	if scaleX == 0 || scaleY == 0 {
		return 1
	}
	return math.Abs(scaleX/scaleY - 1)
}

// PairCheck is the outcome for one matched element
type PairCheck struct {
	Index      int                `json:"index"`
	Reference  models.BoundingBox `json:"reference"`
	Candidate  models.BoundingBox `json:"candidate"`
	ScaleX     float64            `json:"scale_x"`
	ScaleY     float64            `json:"scale_y"`
	Divergence float64            `json:"divergence"`
	Flagged    bool               `json:"flagged"`
	Err        string             `json:"error,omitempty"`
}

// Report summarises a source-against-source comparison
type Report struct {
	Tolerance float64     `json:"tolerance"`
	Pairs     []PairCheck `json:"pairs"`
	Flagged   int         `json:"flagged"`
	Skipped   int         `json:"skipped"`
}

// Trusted reports whether every comparable pair stayed within tolerance.
// A report with nothing comparable is not trusted.
func (r Report) Trusted() bool {
	return r.Flagged == 0 && len(r.Pairs) > r.Skipped
}

// CompareSources checks matched boxes of the same elements, element i of
// reference against element i of candidate. Pairs whose reference cannot
// produce a scale are recorded as skipped.
func CompareSources(reference, candidate []models.BoundingBox, tolerance float64) (Report, error) {
	if len(reference) != len(candidate) {
		return Report{}, fmt.Errorf("cannot compare %d reference boxes with %d candidate boxes",
			len(reference), len(candidate))
	}

	report := Report{
		Tolerance: tolerance,
		Pairs:     make([]PairCheck, 0, len(reference)),
	}
	for i := range reference {
		pc := PairCheck{Index: i, Reference: reference[i], Candidate: candidate[i]}

		scaleX, scaleY, err := ImpliedScales(reference[i], candidate[i])
		if err != nil {
			pc.Err = err.Error()
			report.Skipped++
			report.Pairs = append(report.Pairs, pc)
			continue
		}

		pc.ScaleX, pc.ScaleY = scaleX, scaleY
		pc.Divergence = divergence(scaleX, scaleY)
		if pc.Divergence > tolerance {
			pc.Flagged = true
			report.Flagged++
		}
		report.Pairs = append(report.Pairs, pc)
	}
	return report, nil
}
