// Package slide plans where reconciled elements land on a slide canvas.
//
// The planner takes boxes already expressed in the original image's pixels,
// rescales them per axis onto the canvas and truncates to whole pixels. It
// decides, element by element, whether to emit editable text, a picture, or
// a placeholder. It writes no slide file.
package slide

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kass/go-bbox-reconcile/pkg/models"
	"github.com/kass/go-bbox-reconcile/pkg/reconcile"
)

const (
	DefaultCanvasWidth        = 1920
	DefaultCanvasHeight       = 1080
	DefaultDominantChildRatio = 0.85
)

// Kind is the kind of shape a placement becomes
type Kind string

const (
	KindBackground  Kind = "background"
	KindText        Kind = "text"
	KindImage       Kind = "image"
	KindPlaceholder Kind = "placeholder"
)

// Rect is a box in whole canvas pixels
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Placement is one shape on the slide
type Placement struct {
	Kind        Kind               `json:"kind"`
	ElementID   string             `json:"element_id,omitempty"`
	ElementType models.ElementType `json:"element_type,omitempty"`
	Rect        Rect               `json:"rect"`
	Text        string             `json:"text,omitempty"`
	// Level is "title" for bold headings, "default" for body text and
	// empty for table cells
	Level     string `json:"level,omitempty"`
	Align     string `json:"align,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
	Depth     int    `json:"depth"`
}

// Background names the candidate full-slide pictures. Clean is preferred
// when it exists; Original is the fallback.
type Background struct {
	Clean    string
	Original string
}

// Slide is the placement plan for one page
type Slide struct {
	Index      int               `json:"page_idx"`
	Canvas     models.PixelSpace `json:"canvas"`
	Placements []Placement       `json:"placements"`
}

// Planner builds slides. It is safe for concurrent use.
type Planner struct {
	canvas        models.PixelSpace
	dominantRatio float64
	fs            afero.Fs
	logger        *zap.Logger
}

// Option configures a Planner
type Option func(*Planner)

// WithCanvas sets the slide canvas size in pixels
func WithCanvas(canvas models.PixelSpace) Option {
	return func(p *Planner) {
		p.canvas = canvas
	}
}

// WithDominantChildRatio sets the share of a parent's area above which a
// single child makes the parent render as one picture
func WithDominantChildRatio(ratio float64) Option {
	return func(p *Planner) {
		if ratio > 0 {
			p.dominantRatio = ratio
		}
	}
}

// WithFs sets the filesystem used to check that pictures exist
func WithFs(fs afero.Fs) Option {
	return func(p *Planner) {
		if fs != nil {
			p.fs = fs
		}
	}
}

// WithLogger sets the planner logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPlanner creates a planner for a 1920x1080 canvas on the OS filesystem
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		canvas:        models.PixelSpace{Width: DefaultCanvasWidth, Height: DefaultCanvasHeight},
		dominantRatio: DefaultDominantChildRatio,
		fs:            afero.NewOsFs(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan lays out elements, whose boxes are in image pixels, on the canvas
func (p *Planner) Plan(pageIdx int, elements []*models.Element, image models.PixelSpace, bg Background) (Slide, error) {
	// Validates both spaces up front so the walk cannot fail half way
	if _, _, err := reconcile.ScaleFactors(image, p.canvas); err != nil {
		return Slide{}, fmt.Errorf("page %d: %w", pageIdx, err)
	}

	s := Slide{Index: pageIdx, Canvas: p.canvas}
	full := Rect{Right: int(p.canvas.Width), Bottom: int(p.canvas.Height)}

	switch {
	case p.exists(bg.Clean):
		s.Placements = append(s.Placements, Placement{Kind: KindBackground, Rect: full, ImagePath: bg.Clean})
	case p.exists(bg.Original):
		p.logger.Info("Using original image as background", zap.String("path", bg.Original))
		s.Placements = append(s.Placements, Placement{Kind: KindBackground, Rect: full, ImagePath: bg.Original})
	default:
		p.logger.Warn("No background image found", zap.Int("page", pageIdx))
	}

	w := walker{planner: p, image: image}
	w.walk(elements, 0)
	s.Placements = append(s.Placements, w.out...)

	p.logger.Debug("Slide planned",
		zap.Int("page", pageIdx),
		zap.Int("placements", len(s.Placements)))
	return s, nil
}

// ToCanvas rescales a box from image pixels to whole canvas pixels,
// truncating toward zero
func (p *Planner) ToCanvas(box models.BoundingBox, image models.PixelSpace) (Rect, error) {
	scaled, err := reconcile.Convert(box, image, p.canvas)
	if err != nil {
		return Rect{}, err
	}
	return Rect{
		Left:   int(scaled.X0),
		Top:    int(scaled.Y0),
		Right:  int(scaled.X1),
		Bottom: int(scaled.Y1),
	}, nil
}

// HasDominantChild reports whether any child covers more than the dominant
// ratio of parent's area
func (p *Planner) HasDominantChild(parent models.BoundingBox, children []*models.Element) bool {
	parentArea := parent.Area()
	if parentArea <= 0 {
		return false
	}
	for _, child := range children {
		if child == nil {
			continue
		}
		if child.GlobalBox().Area()/parentArea > p.dominantRatio {
			return true
		}
	}
	return false
}

func (p *Planner) exists(path string) bool {
	if path == "" {
		return false
	}
	ok, err := afero.Exists(p.fs, path)
	if err != nil {
		p.logger.Debug("Cannot stat image", zap.String("path", path), zap.Error(err))
		return false
	}
	return ok
}

type walker struct {
	planner *Planner
	image   models.PixelSpace
	out     []Placement
}

func (w *walker) walk(elements []*models.Element, depth int) {
	p := w.planner
	indent := strings.Repeat("  ", depth)

	for _, el := range elements {
		if el == nil {
			continue
		}

		// Top-level elements use their own box, children the page-level one
		box := el.BBox
		if depth > 0 {
			box = el.GlobalBox()
		}
		rect, err := p.ToCanvas(box, w.image)
		if err != nil {
			// Spaces were validated in Plan
			p.logger.Error("Failed to scale element", zap.String("element", el.ID), zap.Error(err))
			continue
		}

		base := Placement{ElementID: el.ID, ElementType: el.Type, Rect: rect, Depth: depth}

		switch {
		case el.Type == models.TypeText || el.Type == models.TypeTitle:
			text := strings.TrimSpace(el.Content)
			if text == "" {
				continue
			}
			base.Kind, base.Text, base.Level = KindText, text, "default"
			if el.Type == models.TypeTitle || el.TextLevel == 1 {
				base.Level = "title"
			}
			w.out = append(w.out, base)

		case el.Type == models.TypeTableCell:
			text := strings.TrimSpace(el.Content)
			if text == "" {
				continue
			}
			base.Kind, base.Text, base.Align = KindText, text, "center"
			w.out = append(w.out, base)

		case el.Type == models.TypeTable:
			if len(el.Children) > 0 && el.InpaintedBackground != "" {
				p.logger.Debug(indent+"Table rendered as editable cells",
					zap.String("element", el.ID),
					zap.Int("cells", len(el.Children)))
				w.addPicture(base, el.InpaintedBackground, false)
				w.walk(el.Children, depth+1)
			} else {
				w.addPicture(base, el.ImagePath, true)
			}

		case el.Type.IsVisual():
			recursive := len(el.Children) > 0 && el.InpaintedBackground != "" &&
				!p.HasDominantChild(box, el.Children)
			if recursive {
				p.logger.Debug(indent+"Visual element rendered recursively",
					zap.String("element", el.ID),
					zap.Int("children", len(el.Children)))
				w.addPicture(base, el.InpaintedBackground, false)
				w.walk(el.Children, depth+1)
			} else {
				w.addPicture(base, el.ImagePath, true)
			}

		default:
			p.logger.Debug(indent+"Skipping element", zap.String("type", string(el.Type)))
		}
	}
}

// addPicture emits an image placement when path exists. Otherwise it emits
// a placeholder when placeholder is set, or nothing.
func (w *walker) addPicture(base Placement, path string, placeholder bool) {
	if w.planner.exists(path) {
		base.Kind, base.ImagePath = KindImage, path
		w.out = append(w.out, base)
		return
	}
	if !placeholder {
		return
	}
	w.planner.logger.Warn("Image file not found, adding placeholder",
		zap.String("element", base.ElementID),
		zap.String("path", path))
	base.Kind = KindPlaceholder
	w.out = append(w.out, base)
}
