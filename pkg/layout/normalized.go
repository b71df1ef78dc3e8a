package layout

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

type normalizedDoc struct {
	Pages []normalizedPage `json:"pages"`
}

type normalizedPage struct {
	PageIdx  int                 `json:"page_idx"`
	Elements []normalizedElement `json:"elements"`
}

type normalizedElement struct {
	Type      string    `json:"type"`
	BBox      []float64 `json:"bbox"`
	Content   string    `json:"content"`
	TextLevel int       `json:"text_level"`
	ImagePath string    `json:"image_path"`
}

// DecodeNormalized decodes the normalized-coordinate document. Elements with
// any value outside [0, 1] are skipped.
func (d *Decoder) DecodeNormalized(r io.Reader) ([]*models.Page, error) {
	var doc normalizedDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode normalized document: %w", err)
	}

	pages := make([]*models.Page, 0, len(doc.Pages))
	for _, np := range doc.Pages {
		page := &models.Page{
			Index:  np.PageIdx,
			Space:  models.Normalized{},
			Source: models.SourceNormalized,
		}

		for _, ne := range np.Elements {
			box, ok := d.boxOrWarn(ne.BBox, models.SourceNormalized, np.PageIdx, ne.Type)
			if !ok {
				continue
			}
			if !inUnitRange(box) {
				d.logger.Warn("Normalized bbox outside [0, 1], skipping element",
					zap.Int("page", np.PageIdx),
					zap.String("type", ne.Type),
					zap.Stringer("bbox", box))
				continue
			}

			page.Elements = append(page.Elements, &models.Element{
				Type:      elementType(ne.Type),
				Content:   ne.Content,
				TextLevel: ne.TextLevel,
				BBox:      box,
				ImagePath: ne.ImagePath,
				PageIndex: np.PageIdx,
				Source:    models.SourceNormalized,
			})
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func inUnitRange(b models.BoundingBox) bool {
	for _, v := range b.Slice() {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}
