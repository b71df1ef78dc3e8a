package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kass/go-bbox-reconcile/pkg/config"
)

var (
	// Global flags
	configFile string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bboxr",
	Short: "Reconcile layout bounding boxes with original image pixels",
	Long: `bboxr maps the bounding boxes emitted by a PDF/layout extraction tool
into the pixel space of the original page images.

Page-unit and normalized documents are converted with independent per-axis
scales and clamped to the image. The free-form content listing uses an
undocumented scale and is only converted with --allow-untrusted.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}

		level, err := cfg.Log.ZapLevel()
		if err != nil {
			return err
		}
		if verbose {
			level = zapcore.DebugLevel
		}

		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(level)
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert every element of a document into image pixels",
	Long: `Decode a layout, normalized or content-list document and convert every
element box into the pixel space of its page image. Pages are processed
concurrently and written as JSON in page order.`,
	RunE: runConvert,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile X0,Y0,X1,Y1",
	Short: "Convert a single box",
	Long: `Convert one box from a source space into a destination pixel space.

Source spaces:
  page:WxH       page units of a WxH page
  normalized     fractions in [0, 1]
  pixel:WxH      pixels of another WxH image
  untrusted:WxH  content-list scale, needs --allow-untrusted`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a candidate document's axes against a reference document",
	Long: `Compare the boxes of the same elements in two documents. For each pair the
implied X and Y scales are computed from the far corner; a pair whose scales
diverge by more than the axis tolerance is flagged. Exits non-zero when the
candidate should not be trusted.`,
	RunE: runCheck,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan slide placements for each page",
	RunE:  runPlan,
}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Draw converted boxes over a page image",
	RunE:  runAnnotate,
}

var probeCmd = &cobra.Command{
	Use:   "probe IMAGE...",
	Short: "Print the format and pixel size of images",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProbe,
}

var (
	sourceKind     string
	inputFile      string
	imagePath      string
	imageSize      string
	assumedExtent  string
	allowUntrusted bool
	outputFile     string
	numWorkers     int

	fromSpace string

	referenceKind string
	referenceFile string

	backgroundPath string
	cleanPath      string

	checkPage    int
	annotatePage int
	drawChildren bool
	withLegend   bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: bboxr.yaml in . or ./configs)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	for _, c := range []*cobra.Command{convertCmd, checkCmd, planCmd, annotateCmd} {
		c.Flags().StringVarP(&sourceKind, "source", "s", "layout", "Document kind: layout, normalized or content_list")
		c.Flags().StringVarP(&inputFile, "input", "i", "", "Document to decode")
		c.Flags().StringVar(&assumedExtent, "assume", "1000x1000", "Assumed WIDTHxHEIGHT extent of content-list boxes")
		_ = c.MarkFlagRequired("input")
	}
	for _, c := range []*cobra.Command{convertCmd, reconcileCmd, planCmd, annotateCmd} {
		c.Flags().StringVar(&imagePath, "image", "", "Page image; {page} is replaced by the page index")
		c.Flags().StringVar(&imageSize, "size", "", "Image size WIDTHxHEIGHT instead of probing --image")
		c.Flags().BoolVar(&allowUntrusted, "allow-untrusted", false, "Convert content-list boxes despite their undocumented scale")
	}
	for _, c := range []*cobra.Command{convertCmd, reconcileCmd, checkCmd, planCmd, annotateCmd} {
		c.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	}

	convertCmd.Flags().IntVarP(&numWorkers, "workers", "w", 0, "Pages converted at once (default: pipeline.workers)")
	planCmd.Flags().IntVarP(&numWorkers, "workers", "w", 0, "Pages converted at once (default: pipeline.workers)")

	reconcileCmd.Flags().StringVar(&fromSpace, "from", "", "Source space, e.g. page:720x405")
	_ = reconcileCmd.MarkFlagRequired("from")

	checkCmd.Flags().StringVar(&referenceKind, "reference-source", "layout", "Reference document kind")
	checkCmd.Flags().StringVar(&referenceFile, "reference", "", "Reference document")
	checkCmd.Flags().IntVarP(&checkPage, "page", "p", -1, "Only check this page")
	_ = checkCmd.MarkFlagRequired("reference")

	planCmd.Flags().StringVar(&backgroundPath, "background", "", "Fallback slide background; {page} is replaced by the page index")
	planCmd.Flags().StringVar(&cleanPath, "clean-background", "", "Preferred text-free slide background; {page} is replaced by the page index")

	annotateCmd.Flags().IntVarP(&annotatePage, "page", "p", 0, "Page to annotate")
	annotateCmd.Flags().BoolVar(&drawChildren, "children", false, "Also outline nested elements")
	annotateCmd.Flags().BoolVar(&withLegend, "legend", false, "Append a colour legend below the page")
	_ = annotateCmd.MarkFlagRequired("image")
	_ = annotateCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(convertCmd, reconcileCmd, checkCmd, planCmd, annotateCmd, probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
