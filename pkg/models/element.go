package models

// ElementType is the layout category of an extracted element
type ElementType string

const (
	TypeText      ElementType = "text"
	TypeTitle     ElementType = "title"
	TypeImage     ElementType = "image"
	TypeFigure    ElementType = "figure"
	TypeChart     ElementType = "chart"
	TypeTable     ElementType = "table"
	TypeTableCell ElementType = "table_cell"
	TypeHeader    ElementType = "header"
	TypeFooter    ElementType = "footer"
	TypeDiscarded ElementType = "discarded"
)

// IsVisual reports whether the element is rendered from pixels rather than text
func (t ElementType) IsVisual() bool {
	switch t {
	case TypeImage, TypeFigure, TypeChart:
		return true
	}
	return false
}

// Flags carries advisory findings gathered during reconciliation
type Flags struct {
	Degenerate bool `json:"degenerate,omitempty"`
	Clamped    bool `json:"clamped,omitempty"`
	InTable    bool `json:"in_table,omitempty"`
}

// Element is one extracted layout element. BBox is local to the parent
// element; BBoxGlobal, when set, is relative to the whole page.
type Element struct {
	ID                  string       `json:"id"`
	Type                ElementType  `json:"type"`
	Content             string       `json:"content,omitempty"`
	TextLevel           int          `json:"text_level,omitempty"`
	BBox                BoundingBox  `json:"bbox"`
	BBoxGlobal          *BoundingBox `json:"bbox_global,omitempty"`
	ImagePath           string       `json:"image_path,omitempty"`
	InpaintedBackground string       `json:"inpainted_background,omitempty"`
	Children            []*Element   `json:"children,omitempty"`
	PageIndex           int          `json:"page_idx"`
	Source              SourceKind   `json:"source"`
	Flags               Flags        `json:"flags"`
}

// GlobalBox returns BBoxGlobal when present, BBox otherwise
func (e *Element) GlobalBox() BoundingBox {
	if e.BBoxGlobal != nil {
		return *e.BBoxGlobal
	}
	return e.BBox
}

// Walk visits e and all of its descendants depth-first
func (e *Element) Walk(fn func(el *Element, depth int)) {
	e.walk(fn, 0)
}

func (e *Element) walk(fn func(el *Element, depth int), depth int) {
	fn(e, depth)
	for _, child := range e.Children {
		if child != nil {
			child.walk(fn, depth+1)
		}
	}
}

// Page groups the elements of one source page together with the
// coordinate space their boxes are expressed in
type Page struct {
	Index    int             `json:"page_idx"`
	Space    CoordinateSpace `json:"-"`
	Source   SourceKind      `json:"source"`
	Elements []*Element      `json:"elements"`
}
