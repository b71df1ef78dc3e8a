package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kass/go-bbox-reconcile/pkg/index"
	"github.com/kass/go-bbox-reconcile/pkg/models"
	"github.com/kass/go-bbox-reconcile/pkg/reconcile"
)

type BenchmarkResult struct {
	QueryType     string
	TotalQueries  int
	TotalDuration time.Duration
	AvgDuration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
}

// operation runs one query and reports how many results it produced
type operation func(r *rand.Rand) (int, error)

func main() {
	var (
		queryType   = flag.String("t", "convert", "Operation: convert, box, contained, nearest, mixed")
		numQueries  = flag.Int("n", 100000, "Number of operations to run")
		workers     = flag.Int("w", runtime.NumCPU(), "Number of concurrent workers")
		numElements = flag.Int("e", 10000, "Number of elements to index")
		pageWidth   = flag.Float64("page-width", 720, "Source page width in page units")
		pageHeight  = flag.Float64("page-height", 405, "Source page height in page units")
		imageWidth  = flag.Float64("image-width", 1920, "Destination image width in pixels")
		imageHeight = flag.Float64("image-height", 1080, "Destination image height in pixels")
		boxSize     = flag.Float64("box-size", 200, "Query box size in pixels")
		coverage    = flag.Float64("coverage", 0.9, "Minimum coverage for contained queries")
		k           = flag.Int("k", 10, "Number of nearest elements")
	)
	flag.Parse()

	page := models.PageUnits{PageWidth: *pageWidth, PageHeight: *pageHeight}
	image := models.PixelSpace{Width: *imageWidth, Height: *imageHeight}

	// Build the index from converted random elements
	log.Printf("Converting and indexing %d elements...\n", *numElements)
	elements, err := generateElements(*numElements, page, image)
	if err != nil {
		log.Fatalf("Failed to generate elements: %v", err)
	}
	idx := index.NewElementIndex(image)
	start := time.Now()
	if err := idx.IndexElements(elements); err != nil {
		log.Fatalf("Failed to index elements: %v", err)
	}
	log.Printf("Index built with %d elements in %v\n", idx.Count(), time.Since(start))

	randomBox := func(r *rand.Rand) models.BoundingBox {
		x := r.Float64() * (image.Width - *boxSize)
		y := r.Float64() * (image.Height - *boxSize)
		return models.BoundingBox{X0: x, Y0: y, X1: x + *boxSize, Y1: y + *boxSize}
	}

	ops := map[string]operation{
		"convert": func(r *rand.Rand) (int, error) {
			x, y := r.Float64()*page.PageWidth, r.Float64()*page.PageHeight
			_, err := reconcile.Convert(models.BoundingBox{X0: x, Y0: y, X1: x + 50, Y1: y + 20}, page, image)
			return 1, err
		},
		"box": func(r *rand.Rand) (int, error) {
			results, err := idx.QueryBox(randomBox(r))
			return len(results), err
		},
		"contained": func(r *rand.Rand) (int, error) {
			results, err := idx.QueryContained(randomBox(r), *coverage)
			return len(results), err
		},
		"nearest": func(r *rand.Rand) (int, error) {
			return len(idx.Nearest(r.Float64()*image.Width, r.Float64()*image.Height, *k)), nil
		},
	}

	log.Printf("Running %d %s operations with %d workers...\n", *numQueries, *queryType, *workers)

	var result BenchmarkResult
	switch *queryType {
	case "mixed":
		result = benchmarkMixed(ops, *numQueries, *workers)
	default:
		op, ok := ops[*queryType]
		if !ok {
			log.Fatalf("Unknown operation: %s", *queryType)
		}
		result = benchmark(*queryType, op, *numQueries, *workers)
	}

	// Print results
	fmt.Println("\n=== Benchmark Results ===")
	fmt.Printf("Operation: %s\n", result.QueryType)
	fmt.Printf("Total Operations: %d\n", result.TotalQueries)
	fmt.Printf("Total Duration: %v\n", result.TotalDuration)
	fmt.Printf("Average Duration: %v\n", result.AvgDuration)
	fmt.Printf("Operations/Second: %.2f\n", result.QueriesPerSec)
	fmt.Printf("Min Duration: %v\n", result.MinDuration)
	fmt.Printf("Max Duration: %v\n", result.MaxDuration)
	fmt.Printf("Total Results: %d\n", result.TotalResults)
	fmt.Printf("Avg Results/Operation: %.2f\n", result.AvgResults)
	fmt.Printf("Workers Used: %d\n", *workers)
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
}

// generateElements converts random page-unit boxes into image pixels
func generateElements(n int, page models.PageUnits, image models.PixelSpace) ([]*models.Element, error) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	elements := make([]*models.Element, n)
	for i := 0; i < n; i++ {
		x := r.Float64() * page.PageWidth
		y := r.Float64() * page.PageHeight
		box, err := reconcile.Convert(models.BoundingBox{
			X0: x, Y0: y,
			X1: x + r.Float64()*page.PageWidth/4,
			Y1: y + r.Float64()*page.PageHeight/10,
		}, page, image)
		if err != nil {
			return nil, err
		}
		elements[i] = &models.Element{ID: fmt.Sprintf("el_%d", i), Type: models.TypeText, BBox: box}
	}
	return elements, nil
}

func benchmark(name string, op operation, numQueries, workers int) BenchmarkResult {
	var (
		totalResults int64
		completed    int
		minDuration  = time.Hour
		maxDuration  time.Duration
		totalDur     time.Duration
		mu           sync.Mutex
	)

	startTime := time.Now()

	// Worker pool
	queryCh := make(chan int, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(rand.Int63()))

			for range queryCh {
				queryStart := time.Now()
				n, err := op(r)
				queryDuration := time.Since(queryStart)
				if err != nil {
					continue
				}
				atomic.AddInt64(&totalResults, int64(n))

				mu.Lock()
				completed++
				totalDur += queryDuration
				minDuration = min(minDuration, queryDuration)
				maxDuration = max(maxDuration, queryDuration)
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < numQueries; i++ {
		queryCh <- i
	}
	close(queryCh)

	wg.Wait()
	totalDuration := time.Since(startTime)

	result := BenchmarkResult{
		QueryType:     name,
		TotalQueries:  completed,
		TotalDuration: totalDuration,
		MinDuration:   minDuration,
		MaxDuration:   maxDuration,
		TotalResults:  totalResults,
	}
	if completed > 0 {
		result.AvgDuration = totalDur / time.Duration(completed)
		result.QueriesPerSec = float64(completed) / totalDuration.Seconds()
		result.AvgResults = float64(totalResults) / float64(completed)
	}
	return result
}

func benchmarkMixed(ops map[string]operation, numQueries, workers int) BenchmarkResult {
	names := []string{"convert", "box", "contained", "nearest"}
	perType := numQueries / len(names)

	log.Printf("Running mixed benchmark (%d operations of each type)...\n", perType)

	combined := BenchmarkResult{QueryType: "mixed", MinDuration: time.Hour}
	for _, name := range names {
		r := benchmark(name, ops[name], perType, workers)
		combined.TotalQueries += r.TotalQueries
		combined.TotalDuration += r.TotalDuration
		combined.TotalResults += r.TotalResults
		combined.MinDuration = min(combined.MinDuration, r.MinDuration)
		combined.MaxDuration = max(combined.MaxDuration, r.MaxDuration)
	}
	if combined.TotalQueries > 0 {
		combined.AvgDuration = combined.TotalDuration / time.Duration(combined.TotalQueries)
		combined.QueriesPerSec = float64(combined.TotalQueries) / combined.TotalDuration.Seconds()
		combined.AvgResults = float64(combined.TotalResults) / float64(combined.TotalQueries)
	}
	return combined
}
