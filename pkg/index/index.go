// Package index implements an R-Tree over reconciled element boxes, split
// into vertical bands of the page that are searched in parallel
package index

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"

	"github.com/kass/go-bbox-reconcile/pkg/models"
)

const (
	tolerance   = 0.01
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// spatialElement wraps an element to implement rtreego.Spatial
type spatialElement struct {
	*models.Element
	box  models.BoundingBox
	rect *rtreego.Rect
}

func (se *spatialElement) Bounds() *rtreego.Rect {
	return se.rect
}

// ElementIndex is a thread-safe R-Tree index of element boxes in one pixel space
type ElementIndex struct {
	// Partitioned trees for parallel query execution
	partitions []*rtreego.Rtree
	numBands   int
	mu         sync.RWMutex
	itemCount  atomic.Int64

	canvas    models.PixelSpace
	bandWidth float64
}

// NewElementIndex creates an index over canvas with one band per CPU
func NewElementIndex(canvas models.PixelSpace) *ElementIndex {
	return NewElementIndexWithBands(canvas, runtime.NumCPU())
}

// NewElementIndexWithBands creates an index over canvas with numBands
// vertical bands
func NewElementIndexWithBands(canvas models.PixelSpace, numBands int) *ElementIndex {
	if numBands <= 0 {
		numBands = runtime.NumCPU()
	}

	partitions := make([]*rtreego.Rtree, numBands)
	for i := range partitions {
		partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}

	bandWidth := canvas.Width / float64(numBands)
	if !(bandWidth > 0) {
		bandWidth = math.Inf(1)
	}

	return &ElementIndex{
		partitions: partitions,
		numBands:   numBands,
		canvas:     canvas,
		bandWidth:  bandWidth,
	}
}

// IndexElements inserts elements by their page-level box. An element that
// spans several bands is stored in each of them.
func (x *ElementIndex) IndexElements(elements []*models.Element) error {
	if len(elements) == 0 {
		return nil
	}

	// Group elements by band
	banded := make([][]*spatialElement, x.numBands)
	var count int64
	for _, el := range elements {
		if el == nil {
			continue
		}

		box := el.GlobalBox().Normalize()
		rect, err := toRect(box)
		if err != nil {
			return fmt.Errorf("element %q: %w", el.ID, err)
		}

		item := &spatialElement{Element: el, box: box, rect: rect}
		first, last := x.bandRange(box.X0, box.X1)
		for b := first; b <= last; b++ {
			banded[b] = append(banded[b], item)
		}
		count++
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < x.numBands; i++ {
		if len(banded[i]) == 0 {
			continue
		}

		wg.Add(1)
		go func(band int, items []*spatialElement) {
			defer wg.Done()

			// Each band is updated independently
			for _, item := range items {
				x.partitions[band].Insert(item)
			}
		}(i, banded[i])
	}

	wg.Wait()
	x.itemCount.Add(count)
	return nil
}

// QueryBox returns every element whose box intersects box
func (x *ElementIndex) QueryBox(box models.BoundingBox) ([]*models.Element, error) {
	return x.search(box, func(item *spatialElement) bool {
		return item.box.Intersects(box)
	})
}

// QueryContained returns the elements whose own area is covered by box
// at least minCoverage (0..1)
func (x *ElementIndex) QueryContained(box models.BoundingBox, minCoverage float64) ([]*models.Element, error) {
	return x.search(box, func(item *spatialElement) bool {
		if item.box.Area() == 0 {
			return box.Contains(item.box)
		}
		return box.Coverage(item.box) >= minCoverage
	})
}

func (x *ElementIndex) search(box models.BoundingBox, keep func(*spatialElement) bool) ([]*models.Element, error) {
	box = box.Normalize()
	bounds, err := toRect(box)
	if err != nil {
		return nil, fmt.Errorf("invalid query box: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	first, last := x.bandRange(box.X0, box.X1)
	resultsChan := make(chan []*spatialElement, last-first+1)

	// Search bands in parallel
	for band := first; band <= last; band++ {
		go func(idx int) {
			results := x.partitions[idx].SearchIntersect(bounds)

			items := make([]*spatialElement, 0, len(results))
			for _, result := range results {
				item, ok := result.(*spatialElement)
				if !ok || item.Element == nil {
					continue
				}
				if keep(item) {
					items = append(items, item)
				}
			}
			resultsChan <- items
		}(band)
	}

	// Merge and de-duplicate elements stored in more than one band
	seen := make(map[*spatialElement]struct{})
	var merged []*spatialElement
	for i := first; i <= last; i++ {
		for _, item := range <-resultsChan {
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
			merged = append(merged, item)
		}
	}

	// Keep reading order stable: top to bottom, then left to right
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].box.Y0 != merged[j].box.Y0 {
			return merged[i].box.Y0 < merged[j].box.Y0
		}
		return merged[i].box.X0 < merged[j].box.X0
	})

	elements := make([]*models.Element, len(merged))
	for i, item := range merged {
		elements[i] = item.Element
	}
	return elements, nil
}

// Nearest returns up to n elements closest to the point (px, py). Distance
// is measured to the nearest edge, so elements containing the point come first.
func (x *ElementIndex) Nearest(px, py float64, n int) []*models.Element {
	if n <= 0 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	type nearestResult struct {
		item     *spatialElement
		distance float64
	}

	resultsChan := make(chan []nearestResult, x.numBands)
	for i := 0; i < x.numBands; i++ {
		go func(idx int) {
			results := x.partitions[idx].NearestNeighbors(n, rtreego.Point{px, py})

			nearest := make([]nearestResult, 0, len(results))
			for _, result := range results {
				item, ok := result.(*spatialElement)
				if !ok || item == nil {
					continue
				}
				nearest = append(nearest, nearestResult{
					item:     item,
					distance: distanceToBox(px, py, item.box),
				})
			}
			resultsChan <- nearest
		}(i)
	}

	seen := make(map[*spatialElement]struct{})
	var all []nearestResult
	for i := 0; i < x.numBands; i++ {
		for _, r := range <-resultsChan {
			if _, dup := seen[r.item]; dup {
				continue
			}
			seen[r.item] = struct{}{}
			all = append(all, r)
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].distance < all[j].distance })
	if len(all) > n {
		all = all[:n]
	}

	elements := make([]*models.Element, len(all))
	for i, r := range all {
		elements[i] = r.item.Element
	}
	return elements
}

// Count returns the number of indexed elements
func (x *ElementIndex) Count() int64 {
	return x.itemCount.Load()
}

// Canvas returns the pixel space the index covers
func (x *ElementIndex) Canvas() models.PixelSpace {
	return x.canvas
}

// Clear removes all elements from the index
func (x *ElementIndex) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()

	for i := 0; i < x.numBands; i++ {
		x.partitions[i] = rtreego.NewTree(dimensions, minChildren, maxChildren)
	}
	x.itemCount.Store(0)
}

// bandRange returns the first and last band overlapping [x0, x1]
func (x *ElementIndex) bandRange(x0, x1 float64) (int, int) {
	return x.band(x0), x.band(x1)
}

// band clamps in float space so that huge or infinite coordinates cannot
// overflow the int conversion
func (x *ElementIndex) band(v float64) int {
	f := v / x.bandWidth
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= float64(x.numBands) {
		return x.numBands - 1
	}
	return int(f)
}

// toRect converts a normalized box into an rtreego rectangle, padding zero
// extents so that lines and points can still be indexed
func toRect(box models.BoundingBox) (*rtreego.Rect, error) {
	w := math.Max(box.Width(), tolerance)
	h := math.Max(box.Height(), tolerance)
	return rtreego.NewRect(rtreego.Point{box.X0, box.Y0}, []float64{w, h})
}

func distanceToBox(px, py float64, box models.BoundingBox) float64 {
	dx := math.Max(0, math.Max(box.X0-px, px-box.X1))
	dy := math.Max(0, math.Max(box.Y0-py, py-box.Y1))
	return math.Hypot(dx, dy)
}
