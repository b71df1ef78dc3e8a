// Package pipeline reconciles whole pages of extracted elements into the
// pixel space of their original images, several pages at a time.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kass/go-bbox-reconcile/pkg/index"
	"github.com/kass/go-bbox-reconcile/pkg/models"
	"github.com/kass/go-bbox-reconcile/pkg/reconcile"
)

const (
	DefaultWorkers           = 4
	DefaultTableCellCoverage = 0.9
)

// Job pairs a decoded page with the pixel space of its original image
type Job struct {
	Page        *models.Page
	Destination models.PixelSpace
}

// WarningKind classifies a per-element finding
type WarningKind string

const (
	WarnDegenerate WarningKind = "degenerate"
	WarnClamped    WarningKind = "clamped"
)

// Warning flags an element without blocking the page
type Warning struct {
	ElementID string             `json:"element_id"`
	Kind      WarningKind        `json:"kind"`
	Input     models.BoundingBox `json:"input"`
	Output    models.BoundingBox `json:"output"`
}

// PageResult holds one reconciled page
type PageResult struct {
	Index       int               `json:"page_idx"`
	Source      models.SourceKind `json:"source"`
	Destination models.PixelSpace `json:"destination"`
	Elements    []*models.Element `json:"elements"`
	Warnings    []Warning         `json:"warnings,omitempty"`
}

// Pipeline converts pages concurrently with a bounded number of workers
type Pipeline struct {
	reconciler   *reconcile.Reconciler
	logger       *zap.Logger
	workers      int
	cellCoverage float64
	newID        func() string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers bounds the number of pages processed at once
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the pipeline logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTableCellCoverage sets how much of a text element must lie inside a
// table region for it to be nested as a table cell
func WithTableCellCoverage(coverage float64) Option {
	return func(p *Pipeline) {
		if coverage > 0 && coverage <= 1 {
			p.cellCoverage = coverage
		}
	}
}

// New creates a pipeline around reconciler
func New(reconciler *reconcile.Reconciler, opts ...Option) *Pipeline {
	if reconciler == nil {
		reconciler = reconcile.NewReconciler()
	}
	p := &Pipeline{
		reconciler:   reconciler,
		logger:       zap.NewNop(),
		workers:      DefaultWorkers,
		cellCoverage: DefaultTableCellCoverage,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reconciles every job and returns the results ordered by page index.
// The first failing page cancels the pages not yet started.
func (p *Pipeline) Run(ctx context.Context, jobs []Job) ([]PageResult, error) {
	results := make([]PageResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := p.ReconcilePage(job)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].Index < results[b].Index })
	return results, nil
}

// ReconcilePage converts a single page. The input page is left untouched.
func (p *Pipeline) ReconcilePage(job Job) (PageResult, error) {
	page := job.Page
	if page == nil {
		return PageResult{}, fmt.Errorf("job has no page")
	}

	res := PageResult{
		Index:       page.Index,
		Source:      page.Source,
		Destination: job.Destination,
		Elements:    make([]*models.Element, 0, len(page.Elements)),
	}

	for _, el := range page.Elements {
		if el == nil {
			continue
		}
		converted, err := p.convertTree(el, page.Space, job.Destination, &res.Warnings)
		if err != nil {
			return PageResult{}, fmt.Errorf("page %d: %w", page.Index, err)
		}
		res.Elements = append(res.Elements, converted)
	}

	nested, err := p.nestTableCells(res.Elements, job.Destination)
	if err != nil {
		return PageResult{}, fmt.Errorf("page %d: %w", page.Index, err)
	}
	res.Elements = nested

	p.logger.Info("Page reconciled",
		zap.Int("page", res.Index),
		zap.String("source", string(res.Source)),
		zap.Stringer("destination", res.Destination),
		zap.Int("elements", len(res.Elements)),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

// convertTree returns a converted deep copy of el and its children
func (p *Pipeline) convertTree(el *models.Element, space models.CoordinateSpace, dst models.PixelSpace, warnings *[]Warning) (*models.Element, error) {
	out := *el
	out.Children = nil
	if out.ID == "" {
		out.ID = p.newID()
	}

	res, err := p.reconciler.ConvertDetailed(el.BBox, space, dst)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", out.ID, err)
	}
	out.BBox = res.Box
	out.Flags.Degenerate = res.Degenerate
	out.Flags.Clamped = res.Clamped

	if el.BBoxGlobal != nil {
		global, err := p.reconciler.ConvertDetailed(*el.BBoxGlobal, space, dst)
		if err != nil {
			return nil, fmt.Errorf("element %s global box: %w", out.ID, err)
		}
		out.BBoxGlobal = &global.Box
		out.Flags.Clamped = out.Flags.Clamped || global.Clamped
	}

	if out.Flags.Degenerate {
		*warnings = append(*warnings, Warning{ElementID: out.ID, Kind: WarnDegenerate, Input: el.BBox, Output: out.BBox})
	}
	if out.Flags.Clamped {
		*warnings = append(*warnings, Warning{ElementID: out.ID, Kind: WarnClamped, Input: el.BBox, Output: out.BBox})
	}

	for _, child := range el.Children {
		if child == nil {
			continue
		}
		converted, err := p.convertTree(child, space, dst, warnings)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, converted)
	}
	return &out, nil
}

// nestTableCells moves top-level text elements lying inside a childless
// table region under that table as table cells
func (p *Pipeline) nestTableCells(elements []*models.Element, dst models.PixelSpace) ([]*models.Element, error) {
	var tables []*models.Element
	for _, el := range elements {
		if el.Type == models.TypeTable && len(el.Children) == 0 {
			tables = append(tables, el)
		}
	}
	if len(tables) == 0 {
		return elements, nil
	}

	idx := index.NewElementIndex(dst)
	if err := idx.IndexElements(elements); err != nil {
		return nil, fmt.Errorf("failed to index elements: %w", err)
	}

	nested := make(map[*models.Element]struct{})
	for _, table := range tables {
		region := table.GlobalBox()
		inside, err := idx.QueryContained(region, p.cellCoverage)
		if err != nil {
			return nil, err
		}

		for _, el := range inside {
			if el == table || el.Type != models.TypeText {
				continue
			}
			if _, taken := nested[el]; taken {
				continue
			}
			nested[el] = struct{}{}

			global := el.BBox
			el.BBoxGlobal = &global
			el.BBox = models.BoundingBox{
				X0: global.X0 - region.X0,
				Y0: global.Y0 - region.Y0,
				X1: global.X1 - region.X0,
				Y1: global.Y1 - region.Y0,
			}
			el.Type = models.TypeTableCell
			el.Flags.InTable = true
			table.Children = append(table.Children, el)
		}

		if len(table.Children) > 0 {
			p.logger.Debug("Nested table cells",
				zap.String("table", table.ID),
				zap.Int("cells", len(table.Children)))
		}
	}

	kept := make([]*models.Element, 0, len(elements)-len(nested))
	for _, el := range elements {
		if _, ok := nested[el]; !ok {
			kept = append(kept, el)
		}
	}
	return kept, nil
}
