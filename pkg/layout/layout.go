// Package layout decodes the three coordinate-bearing documents produced by
// the PDF/layout extraction tool into pages of models.Element:
//
//   - the layout description, boxes in page units with the page size alongside
//   - the normalized document, boxes as fractions in [0, 1]
//   - the content listing, boxes in an undocumented scale
//
// Boxes that are not exactly four numbers are skipped with a warning rather
// than failing the whole document.
package layout

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

// Decoder turns raw documents into pages
type Decoder struct {
	logger *zap.Logger
	// assumed reference extent handed to content-listing pages
	assumed models.Untrusted
}

// NewDecoder creates a decoder. A nil logger is replaced by a no-op logger.
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

// WithAssumedExtent sets the reference extent recorded on content-listing
// pages. The extent is not derivable from the document itself.
func (d *Decoder) WithAssumedExtent(width, height float64) *Decoder {
	d.assumed = models.Untrusted{AssumedWidth: width, AssumedHeight: height}
	return d
}

// Decode dispatches on the source kind
func (d *Decoder) Decode(kind models.SourceKind, r io.Reader) ([]*models.Page, error) {
	switch kind {
	case models.SourceLayout:
		return d.DecodeLayout(r)
	case models.SourceNormalized:
		return d.DecodeNormalized(r)
	case models.SourceContentList:
		return d.DecodeContentList(r)
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

// Load opens path and decodes it as kind
func (d *Decoder) Load(kind models.SourceKind, path string) ([]*models.Page, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s document: %w", kind, err)
	}
	defer file.Close()

	pages, err := d.Decode(kind, file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	d.logger.Debug("Document loaded",
		zap.String("path", path),
		zap.String("source", string(kind)),
		zap.Int("pages", len(pages)))
	return pages, nil
}

// boxOrWarn converts a raw bbox, logging and reporting false when unusable
func (d *Decoder) boxOrWarn(raw []float64, kind models.SourceKind, page int, typ string) (models.BoundingBox, bool) {
	box, err := models.BoxFromSlice(raw)
	if err != nil {
		d.logger.Warn("Invalid bbox, skipping element",
			zap.String("source", string(kind)),
			zap.Int("page", page),
			zap.String("type", typ),
			zap.Error(err))
		return models.BoundingBox{}, false
	}
	return box, true
}

// elementType maps the extraction tool's block types onto ours
func elementType(raw string) models.ElementType {
	switch strings.ToLower(raw) {
	case "title":
		return models.TypeTitle
	case "image", "image_body":
		return models.TypeImage
	case "figure":
		return models.TypeFigure
	case "chart", "diagram":
		return models.TypeChart
	case "table", "table_body":
		return models.TypeTable
	case "table_cell":
		return models.TypeTableCell
	case "header":
		return models.TypeHeader
	case "footer", "page_footnote", "page_number":
		return models.TypeFooter
	case "discarded":
		return models.TypeDiscarded
	default:
		return models.TypeText
	}
}
