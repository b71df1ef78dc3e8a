package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

type layoutDoc struct {
	PDFInfo []layoutPage `json:"pdf_info"`
}

type layoutPage struct {
	PageIdx         int           `json:"page_idx"`
	PageSize        []float64     `json:"page_size"`
	ParaBlocks      []layoutBlock `json:"para_blocks"`
	DiscardedBlocks []layoutBlock `json:"discarded_blocks"`
}

type layoutBlock struct {
	Type   string        `json:"type"`
	BBox   []float64     `json:"bbox"`
	Level  int           `json:"level,omitempty"`
	Lines  []layoutLine  `json:"lines"`
	Blocks []layoutBlock `json:"blocks"`
}

type layoutLine struct {
	Spans []layoutSpan `json:"spans"`
}

type layoutSpan struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	ImagePath string `json:"image_path"`
}

// DecodeLayout decodes the page-unit layout description. Each page carries
// its own page_size, which becomes the page's PageUnits space.
func (d *Decoder) DecodeLayout(r io.Reader) ([]*models.Page, error) {
	var doc layoutDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode layout document: %w", err)
	}

	pages := make([]*models.Page, 0, len(doc.PDFInfo))
	for _, lp := range doc.PDFInfo {
		if len(lp.PageSize) != 2 {
			return nil, fmt.Errorf("page %d: page_size must have 2 values, got %d", lp.PageIdx, len(lp.PageSize))
		}

		page := &models.Page{
			Index:  lp.PageIdx,
			Space:  models.PageUnits{PageWidth: lp.PageSize[0], PageHeight: lp.PageSize[1]},
			Source: models.SourceLayout,
		}

		for _, block := range lp.ParaBlocks {
			if el := d.layoutElement(block, lp.PageIdx, ""); el != nil {
				page.Elements = append(page.Elements, el)
			}
		}
		for _, block := range lp.DiscardedBlocks {
			if el := d.layoutElement(block, lp.PageIdx, models.TypeDiscarded); el != nil {
				page.Elements = append(page.Elements, el)
			}
		}

		d.logger.Debug("Layout page decoded",
			zap.Int("page", page.Index),
			zap.Stringer("space", page.Space),
			zap.Int("elements", len(page.Elements)))
		pages = append(pages, page)
	}
	return pages, nil
}

func (d *Decoder) layoutElement(block layoutBlock, pageIdx int, override models.ElementType) *models.Element {
	box, ok := d.boxOrWarn(block.BBox, models.SourceLayout, pageIdx, block.Type)
	if !ok {
		return nil
	}

	typ := elementType(block.Type)
	if override != "" {
		typ = override
	}

	el := &models.Element{
		Type:      typ,
		BBox:      box,
		PageIndex: pageIdx,
		Source:    models.SourceLayout,
	}
	if typ == models.TypeTitle {
		el.TextLevel = 1
	} else if block.Level > 0 {
		el.TextLevel = block.Level
	}

	var text []string
	collectBlock(block, &text, &el.ImagePath)
	el.Content = strings.TrimSpace(strings.Join(text, " "))
	return el
}

// collectBlock gathers span text and the first image path from a block and
// its nested body/caption blocks
func collectBlock(block layoutBlock, text *[]string, imagePath *string) {
	for _, line := range block.Lines {
		for _, span := range line.Spans {
			if span.ImagePath != "" && *imagePath == "" {
				*imagePath = span.ImagePath
			}
			if c := strings.TrimSpace(span.Content); c != "" {
				*text = append(*text, c)
			}
		}
	}
	for _, nested := range block.Blocks {
		collectBlock(nested, text, imagePath)
	}
}
