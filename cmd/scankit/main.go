// Command scankit merges a folder of scanned images and PDFs into a single
// searchable PDF.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/takashi-oh/scankit/assemble"
	"github.com/takashi-oh/scankit/config"
	"github.com/takashi-oh/scankit/discover"
	"github.com/takashi-oh/scankit/observability"
	"github.com/takashi-oh/scankit/ocr"
	"github.com/takashi-oh/scankit/ocr/tesseract"
	"github.com/takashi-oh/scankit/recognize"
)

// Set by the release build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scankit",
		Short:         "Assemble scanned documents into one searchable PDF",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAssembleCmd(), newVersionCmd())
	return root
}

func newAssembleCmd() *cobra.Command {
	var (
		output     string
		language   string
		threshold  float64
		dpi        int
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "assemble <folder>",
		Short: "OCR every image in a folder and merge everything into one PDF",
		Long: `Assemble walks a folder of scanned pages, runs OCR over the images,
passes existing PDFs through, and merges everything into a single searchable
PDF ordered by file creation time. PDFs that lack a text layer are kept but
reported so they can be re-scanned.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, configPath, output, language, threshold)
			if err != nil {
				return err
			}
			return runAssemble(cmd, args[0], cfg, dpi, verbose)
		},
	}

	defaults := config.Default()
	cmd.Flags().StringVarP(&output, "output", "o", defaults.OutputName, "output file name, written inside the folder unless a path is given")
	cmd.Flags().StringVarP(&language, "lang", "l", defaults.Language, "recognition languages, '+'-joined")
	cmd.Flags().Float64Var(&threshold, "threshold", defaults.TextThreshold, "fraction of pages that must carry text for a PDF to count as searchable")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "scan resolution hint passed to the recognition engine (0 leaves the engine default)")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log per-file progress")
	return cmd
}

func resolveConfig(cmd *cobra.Command, configPath, output, language string, threshold float64) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	// Explicit flags win over the config file.
	if cmd.Flags().Changed("output") {
		cfg.OutputName = output
	}
	if cmd.Flags().Changed("lang") {
		cfg.Language = language
	}
	if cmd.Flags().Changed("threshold") {
		cfg.TextThreshold = threshold
	}
	return cfg, cfg.Validate()
}

func runAssemble(cmd *cobra.Command, folder string, cfg config.Config, dpi int, verbose bool) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlogLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	items, err := discover.Folder(folder)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("folder %s does not exist", folder)
	case errors.Is(err, discover.ErrNotDirectory):
		return fmt.Errorf("%s is not a folder", folder)
	case err != nil:
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no supported files found in %s", folder)
	}

	outputPath := cfg.OutputName
	if !filepath.IsAbs(outputPath) && filepath.Dir(outputPath) == "." {
		outputPath = filepath.Join(folder, outputPath)
	}

	var engineOpts []ocr.Option
	if dpi > 0 {
		engineOpts = append(engineOpts, ocr.WithDPI(dpi))
	}
	assembler := assemble.New(
		recognize.New(tesseract.New(),
			recognize.WithLogger(logger),
			recognize.WithEngineOptions(engineOpts...)),
		assemble.WithLogger(logger),
		assemble.WithThreshold(cfg.TextThreshold),
		assemble.WithProducer("scankit "+version),
		assemble.WithProgress(func(it discover.Item) {
			if verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "processing %s (%s)\n", it.Path, it.Kind)
			}
		}),
	)

	report, err := assembler.Assemble(cmd.Context(), items, outputPath, cfg.Language)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d pages)\n", report.Output, report.Pages)
	for _, d := range report.Degraded {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s has no usable text layer (%s)\n", d.Path, d.Reason)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scankit %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
