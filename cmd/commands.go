package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kass/go-bbox-reconcile/pkg/annotate"
	"github.com/kass/go-bbox-reconcile/pkg/layout"
	"github.com/kass/go-bbox-reconcile/pkg/models"
	"github.com/kass/go-bbox-reconcile/pkg/pipeline"
	"github.com/kass/go-bbox-reconcile/pkg/raster"
	"github.com/kass/go-bbox-reconcile/pkg/reconcile"
	"github.com/kass/go-bbox-reconcile/pkg/slide"
)

// errUntrustedAxes is returned by check when a candidate fails
var errUntrustedAxes = errors.New("candidate source failed the axis consistency check")

func runConvert(cmd *cobra.Command, args []string) error {
	results, err := convertDocument(cmd)
	if err != nil {
		return err
	}
	return writeJSON(cmd, results)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	box, err := parseBox(args[0])
	if err != nil {
		return err
	}
	source, err := parseSpace(fromSpace)
	if err != nil {
		return err
	}
	dst, err := destinationFor(0, map[string]models.PixelSpace{})
	if err != nil {
		return err
	}

	res, err := newReconciler().ConvertDetailed(box, source, dst)
	if err != nil {
		return err
	}
	if err := reconcile.CheckDegenerate(box); err != nil {
		logger.Warn("Degenerate box", zap.Error(err))
	}
	return writeJSON(cmd, res)
}

func runCheck(cmd *cobra.Command, args []string) error {
	decoder, err := newDecoder()
	if err != nil {
		return err
	}

	refKind, err := models.ParseSourceKind(referenceKind)
	if err != nil {
		return err
	}
	candKind, err := models.ParseSourceKind(sourceKind)
	if err != nil {
		return err
	}

	refPages, err := decoder.Load(refKind, referenceFile)
	if err != nil {
		return err
	}
	candPages, err := decoder.Load(candKind, inputFile)
	if err != nil {
		return err
	}

	candByIndex := make(map[int]*models.Page, len(candPages))
	for _, p := range candPages {
		candByIndex[p.Index] = p
	}

	var reference, candidate []models.BoundingBox
	for _, ref := range refPages {
		if checkPage >= 0 && ref.Index != checkPage {
			continue
		}
		cand, ok := candByIndex[ref.Index]
		if !ok {
			logger.Warn("Page missing from candidate", zap.Int("page", ref.Index))
			continue
		}

		n := min(len(ref.Elements), len(cand.Elements))
		if len(ref.Elements) != len(cand.Elements) {
			logger.Warn("Element counts differ, comparing common prefix",
				zap.Int("page", ref.Index),
				zap.Int("reference", len(ref.Elements)),
				zap.Int("candidate", len(cand.Elements)))
		}
		for i := 0; i < n; i++ {
			reference = append(reference, ref.Elements[i].BBox)
			candidate = append(candidate, cand.Elements[i].BBox)
		}
	}

	report, err := reconcile.CompareSources(reference, candidate, cfg.Reconcile.AxisTolerance)
	if err != nil {
		return err
	}
	if err := writeJSON(cmd, report); err != nil {
		return err
	}

	logger.Info("Axis check complete",
		zap.Int("pairs", len(report.Pairs)),
		zap.Int("flagged", report.Flagged),
		zap.Int("skipped", report.Skipped))
	if !report.Trusted() {
		return errUntrustedAxes
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	results, err := convertDocument(cmd)
	if err != nil {
		return err
	}

	planner := slide.NewPlanner(
		slide.WithCanvas(cfg.Slide.Canvas()),
		slide.WithDominantChildRatio(cfg.Slide.DominantChildRatio),
		slide.WithFs(afero.NewOsFs()),
		slide.WithLogger(logger),
	)

	slides := make([]slide.Slide, 0, len(results))
	for _, res := range results {
		s, err := planner.Plan(res.Index, res.Elements, res.Destination, slide.Background{
			Clean:    forPage(cleanPath, res.Index),
			Original: forPage(backgroundPath, res.Index),
		})
		if err != nil {
			return err
		}
		slides = append(slides, s)
	}
	return writeJSON(cmd, slides)
}

func runAnnotate(cmd *cobra.Command, args []string) (err error) {
	path := forPage(imagePath, annotatePage)
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	src, _, err := image.Decode(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	pages, err := loadPages()
	if err != nil {
		return err
	}
	var page *models.Page
	for _, p := range pages {
		if p.Index == annotatePage {
			page = p
			break
		}
	}
	if page == nil {
		return fmt.Errorf("page %d not found in %s", annotatePage, inputFile)
	}

	b := src.Bounds()
	dst := models.PixelSpace{Width: float64(b.Dx()), Height: float64(b.Dy())}
	res, err := newPipeline().ReconcilePage(pipeline.Job{Page: page, Destination: dst})
	if err != nil {
		return err
	}

	canvas := annotate.Copy(src)
	n := annotate.Draw(canvas, res.Elements, annotate.Options{Children: drawChildren})
	if withLegend {
		canvas = annotate.AddLegend(canvas)
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer closeOutput(out, &err)
	if err := annotate.WritePNG(out, canvas); err != nil {
		return err
	}

	logger.Info("Annotated page",
		zap.Int("page", annotatePage),
		zap.Int("boxes", n),
		zap.String("output", outputFile))
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	for _, path := range args {
		info, err := raster.Probe(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%gx%g\n", path, info.Format, info.Space.Width, info.Space.Height)
	}
	return nil
}

// convertDocument decodes the input document and converts every page into
// the pixel space of its image
func convertDocument(cmd *cobra.Command) ([]pipeline.PageResult, error) {
	pages, err := loadPages()
	if err != nil {
		return nil, err
	}

	sizes := make(map[string]models.PixelSpace)
	jobs := make([]pipeline.Job, 0, len(pages))
	for _, page := range pages {
		dst, err := destinationFor(page.Index, sizes)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, pipeline.Job{Page: page, Destination: dst})
	}

	return newPipeline().Run(cmd.Context(), jobs)
}

func loadPages() ([]*models.Page, error) {
	kind, err := models.ParseSourceKind(sourceKind)
	if err != nil {
		return nil, err
	}
	decoder, err := newDecoder()
	if err != nil {
		return nil, err
	}
	return decoder.Load(kind, inputFile)
}

func newDecoder() (*layout.Decoder, error) {
	extent, err := raster.ParseSize(assumedExtent)
	if err != nil {
		return nil, fmt.Errorf("--assume: %w", err)
	}
	return layout.NewDecoder(logger).WithAssumedExtent(extent.Width, extent.Height), nil
}

func newReconciler() *reconcile.Reconciler {
	return reconcile.NewReconciler(
		reconcile.WithLogger(logger),
		reconcile.WithAxisTolerance(cfg.Reconcile.AxisTolerance),
		reconcile.WithUntrustedSources(allowUntrusted || cfg.Reconcile.AllowUntrusted),
	)
}

func newPipeline() *pipeline.Pipeline {
	workers := numWorkers
	if workers <= 0 {
		workers = cfg.Pipeline.Workers
	}
	return pipeline.New(newReconciler(),
		pipeline.WithWorkers(workers),
		pipeline.WithLogger(logger),
		pipeline.WithTableCellCoverage(cfg.Pipeline.TableCellCoverage),
	)
}

// destinationFor resolves the pixel space of a page from --size or by
// probing its image. Probed sizes are cached by path.
func destinationFor(page int, cache map[string]models.PixelSpace) (models.PixelSpace, error) {
	if imageSize != "" {
		return raster.ParseSize(imageSize)
	}
	if imagePath == "" {
		return models.PixelSpace{}, fmt.Errorf("either --image or --size is required")
	}

	path := forPage(imagePath, page)
	if space, ok := cache[path]; ok {
		return space, nil
	}
	info, err := raster.Probe(path)
	if err != nil {
		return models.PixelSpace{}, err
	}
	cache[path] = info.Space
	return info.Space, nil
}

// forPage substitutes the page index into a {page} path template
func forPage(tmpl string, page int) string {
	return strings.ReplaceAll(tmpl, "{page}", strconv.Itoa(page))
}

// parseBox parses "x0,y0,x1,y1"
func parseBox(s string) (models.BoundingBox, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return models.BoundingBox{}, fmt.Errorf("invalid box %q: %w", s, err)
		}
		values = append(values, v)
	}
	return models.BoxFromSlice(values)
}

// parseSpace parses a source space such as "page:720x405" or "normalized"
func parseSpace(s string) (models.CoordinateSpace, error) {
	kind, size, _ := strings.Cut(strings.TrimSpace(s), ":")
	if kind == "normalized" {
		return models.Normalized{}, nil
	}

	dims, err := raster.ParseSize(size)
	if err != nil {
		return nil, fmt.Errorf("space %q: %w", s, err)
	}
	switch kind {
	case "page":
		return models.PageUnits{PageWidth: dims.Width, PageHeight: dims.Height}, nil
	case "pixel":
		return dims, nil
	case "untrusted":
		return models.Untrusted{AssumedWidth: dims.Width, AssumedHeight: dims.Height}, nil
	default:
		return nil, fmt.Errorf("unknown space kind %q, want page, normalized, pixel or untrusted", kind)
	}
}

func writeJSON(cmd *cobra.Command, v any) (err error) {
	var w io.Writer = cmd.OutOrStdout()
	if outputFile != "" {
		file, cerr := os.Create(outputFile)
		if cerr != nil {
			return fmt.Errorf("failed to create output: %w", cerr)
		}
		defer closeOutput(file, &err)
		w = file
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// closeOutput closes an output file and reports the close error unless an
// earlier error is already being returned
func closeOutput(c io.Closer, errp *error) {
	if cerr := c.Close(); cerr != nil && *errp == nil {
		*errp = fmt.Errorf("failed to close output: %w", cerr)
	}
}
