package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

type contentItem struct {
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	TextLevel int       `json:"text_level"`
	BBox      []float64 `json:"bbox"`
	PageIdx   int       `json:"page_idx"`
	ImgPath   string    `json:"img_path"`
}

// DecodeContentList decodes the flat content listing. Its boxes use an
// undocumented, possibly axis-inconsistent scale, so every page is tagged
// with an Untrusted space carrying the decoder's assumed extent. Converting
// those pages needs an explicit opt-in on the reconciler.
func (d *Decoder) DecodeContentList(r io.Reader) ([]*models.Page, error) {
	var items []contentItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode content list: %w", err)
	}

	byIndex := make(map[int]*models.Page)
	for _, item := range items {
		box, ok := d.boxOrWarn(item.BBox, models.SourceContentList, item.PageIdx, item.Type)
		if !ok {
			continue
		}

		page, found := byIndex[item.PageIdx]
		if !found {
			page = &models.Page{
				Index:  item.PageIdx,
				Space:  d.assumed,
				Source: models.SourceContentList,
			}
			byIndex[item.PageIdx] = page
		}

		typ := elementType(item.Type)
		if typ == models.TypeText && item.TextLevel == 1 {
			typ = models.TypeTitle
		}
		page.Elements = append(page.Elements, &models.Element{
			Type:      typ,
			Content:   strings.TrimSpace(item.Text),
			TextLevel: item.TextLevel,
			BBox:      box,
			ImagePath: item.ImgPath,
			PageIndex: item.PageIdx,
			Source:    models.SourceContentList,
		})
	}

	pages := make([]*models.Page, 0, len(byIndex))
	for _, page := range byIndex {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages, nil
}
