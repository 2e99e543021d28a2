// Package assemble drives the scan pipeline end to end: discovered items go
// through recognition or a text-layer check, their pages merge into a single
// document, and the combined result lands at the output path in one write.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/takashi-oh/scankit/discover"
	"github.com/takashi-oh/scankit/extractor"
	"github.com/takashi-oh/scankit/observability"
	"github.com/takashi-oh/scankit/pdf"
	"github.com/takashi-oh/scankit/writer"
)

// ErrNoInput reports that nothing was given to assemble. No output file is
// created in that case.
var ErrNoInput = errors.New("no input items")

// PageRecognizer turns an image file into searchable document pages.
type PageRecognizer interface {
	ToPages(ctx context.Context, path, language string) ([]pdf.Page, error)
}

// Document is an opened input document: its pages plus the text-layer
// measurement the degradation check needs.
type Document interface {
	Pages() []pdf.Page
	TextLayerVerdict(threshold float64) extractor.TextLayerVerdict
}

// DocumentOpener opens an existing document file for pass-through.
type DocumentOpener func(path string) (Document, error)

// Degraded records an input document without a usable text layer. Its pages
// still appear in the output; the record is the caller's signal to review.
type Degraded struct {
	Path   string
	Ratio  float64
	Reason string
}

// Report summarizes one assembly run.
type Report struct {
	RunID    string
	Output   string
	Pages    int
	Degraded []Degraded
}

// Assembler merges a folder's scans into one searchable document.
type Assembler struct {
	recognizer PageRecognizer
	open       DocumentOpener
	threshold  float64
	logger     observability.Logger
	producer   string
	onItem     func(item discover.Item)
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l observability.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithThreshold overrides the text-layer ratio below which a document counts
// as degraded.
func WithThreshold(threshold float64) Option {
	return func(a *Assembler) { a.threshold = threshold }
}

// WithDocumentOpener substitutes the pass-through document loader.
func WithDocumentOpener(open DocumentOpener) Option {
	return func(a *Assembler) {
		if open != nil {
			a.open = open
		}
	}
}

// WithProducer sets the Producer entry written to the output's Info
// dictionary.
func WithProducer(name string) Option {
	return func(a *Assembler) { a.producer = name }
}

// WithProgress registers a callback invoked before each item is processed.
func WithProgress(fn func(item discover.Item)) Option {
	return func(a *Assembler) { a.onItem = fn }
}

// New builds an Assembler around a recognizer.
func New(recognizer PageRecognizer, opts ...Option) *Assembler {
	a := &Assembler{
		recognizer: recognizer,
		open:       openDocumentFile,
		threshold:  extractor.DefaultTextThreshold,
		logger:     observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func openDocumentFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return extractor.Open(data)
}

// Assemble processes items in order and writes the combined document to
// outputPath. Output appears only after every item succeeded; any failure
// leaves the destination untouched.
func (a *Assembler) Assemble(ctx context.Context, items []discover.Item, outputPath, language string) (Report, error) {
	report := Report{RunID: uuid.NewString(), Output: outputPath}
	if len(items) == 0 {
		return report, ErrNoInput
	}

	log := a.logger.With(observability.String("run", report.RunID))
	out := writer.NewDocumentWriter()
	if a.producer != "" {
		out.SetProducer(a.producer)
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
		if a.onItem != nil {
			a.onItem(item)
		}

		pages, degraded, err := a.itemPages(ctx, item, language)
		if err != nil {
			log.Error("item failed",
				observability.String("path", item.Path),
				observability.Error("error", err))
			return report, err
		}
		if degraded != nil {
			log.Warn("document has no usable text layer",
				observability.String("path", item.Path),
				observability.Float64("ratio", degraded.Ratio))
			report.Degraded = append(report.Degraded, *degraded)
		}
		for _, p := range pages {
			if err := out.AddPage(p); err != nil {
				return report, fmt.Errorf("add page from %s: %w", item.Path, err)
			}
		}
		log.Debug("item assembled",
			observability.String("path", item.Path),
			observability.String("kind", item.Kind.String()),
			observability.Int("pages", len(pages)))
	}

	report.Pages = out.PageCount()
	if err := out.WriteFile(outputPath); err != nil {
		return report, fmt.Errorf("write %s: %w", outputPath, err)
	}
	log.Info("assembly complete",
		observability.String("output", outputPath),
		observability.Int("pages", report.Pages),
		observability.Int("degraded", len(report.Degraded)))
	return report, nil
}

func (a *Assembler) itemPages(ctx context.Context, item discover.Item, language string) ([]pdf.Page, *Degraded, error) {
	switch item.Kind {
	case discover.KindDocument:
		doc, err := a.open(item.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open document %s: %w", item.Path, err)
		}
		verdict := doc.TextLayerVerdict(a.threshold)
		var degraded *Degraded
		if !verdict.Present {
			degraded = &Degraded{
				Path:   item.Path,
				Ratio:  verdict.Ratio,
				Reason: fmt.Sprintf("text layer on %d of %d pages", verdict.PagesWithText, verdict.PageCount),
			}
		}
		return doc.Pages(), degraded, nil
	default:
		pages, err := a.recognizer.ToPages(ctx, item.Path, language)
		if err != nil {
			return nil, nil, err
		}
		return pages, nil, nil
	}
}
