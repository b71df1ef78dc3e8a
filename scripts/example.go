package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/kass/go-bbox-reconcile/pkg/index"
	"github.com/kass/go-bbox-reconcile/pkg/models"
	"github.com/kass/go-bbox-reconcile/pkg/reconcile"
)

func main() {
	// A 720x405 point page rendered to a 960x540 image
	page := models.PageUnits{PageWidth: 720, PageHeight: 405}
	image := models.PixelSpace{Width: 960, Height: 540}

	// Example 1: convert a page-unit title box
	fmt.Println("=== Page units to pixels ===")
	title := models.BoundingBox{X0: 12, Y0: 8, X1: 707, Y1: 138}
	box, err := reconcile.Convert(title, page, image)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  %s -> %s\n", title, box)

	// Example 2: normalized boxes scale by the image size directly
	fmt.Println("\n=== Normalized to pixels ===")
	norm := models.BoundingBox{X0: 0.1, Y0: 0.2, X1: 0.5, Y1: 0.6}
	box, err = reconcile.Convert(norm, models.Normalized{}, models.PixelSpace{Width: 1000, Height: 500})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  %s -> %s\n", norm, box)

	// Example 3: overflowing boxes are clamped, not rejected
	fmt.Println("\n=== Clamping ===")
	r := reconcile.NewReconciler()
	res, err := r.ConvertDetailed(models.BoundingBox{X0: 12, Y0: 8, X1: 729, Y1: 138}, page, image)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  %s clamped=%v\n", res.Box, res.Clamped)

	// Example 4: the content listing is refused unless opted in
	fmt.Println("\n=== Untrusted source ===")
	listing := models.Untrusted{AssumedWidth: 1000, AssumedHeight: 1000}
	candidate := models.BoundingBox{X0: 16, Y0: 19, X1: 981, Y1: 340}
	if _, err := r.Convert(candidate, listing, image); errors.Is(err, reconcile.ErrUntrustedSource) {
		fmt.Printf("  refused: %v\n", err)
	}

	// Example 5: compare the same element in both documents
	fmt.Println("\n=== Axis consistency ===")
	var axisErr *reconcile.AxisInconsistencyError
	if err := reconcile.CheckAxisConsistency(title, candidate, reconcile.DefaultAxisTolerance); errors.As(err, &axisErr) {
		fmt.Printf("  scale x %.3f, scale y %.3f: %v\n", axisErr.ScaleX, axisErr.ScaleY, err)
	}

	// Example 6: index converted elements and look them up
	fmt.Println("\n=== Element index ===")
	elements := []*models.Element{
		{ID: "title", Type: models.TypeTitle, BBox: models.BoundingBox{X0: 16, Y0: 10, X1: 942, Y1: 184}},
		{ID: "table", Type: models.TypeTable, BBox: models.BoundingBox{X0: 40, Y0: 200, X1: 600, Y1: 500}},
		{ID: "cell", Type: models.TypeText, BBox: models.BoundingBox{X0: 60, Y0: 220, X1: 200, Y1: 260}},
		{ID: "chart", Type: models.TypeChart, BBox: models.BoundingBox{X0: 620, Y0: 200, X1: 940, Y1: 500}},
	}
	idx := index.NewElementIndex(image)
	if err := idx.IndexElements(elements); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  Indexed %d elements\n", idx.Count())

	inside, err := idx.QueryContained(elements[1].BBox, 0.9)
	if err != nil {
		log.Fatal(err)
	}
	for _, el := range inside {
		fmt.Printf("  - %s lies inside the table region\n", el.ID)
	}

	for _, el := range idx.Nearest(700, 100, 2) {
		fmt.Printf("  - %s is near (700, 100)\n", el.ID)
	}
}
