// Package extract turns uploaded study documents into plain text.
//
// PDFs are structurally validated with pdfcpu in relaxed mode and their
// text layer is read page by page. Plain text and markdown are decoded
// as UTF-8. Pages are joined with blank lines. Optical character
// recognition is not performed, so image-only PDFs yield ErrNoText.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultMaxBytes caps the size of a document read into memory.
const DefaultMaxBytes = 64 << 20

const pageSeparator = "\n\n"

var disableConfigDir sync.Once

// Result is the text of one document.
type Result struct {
	Format Format
	// Pages holds the non-empty page texts in order. Text documents have one page.
	Pages []string
	Text  string
}

// Extractor reads document text.
type Extractor struct {
	maxBytes int64
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithMaxBytes sets the largest accepted document.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) error {
		if n <= 0 {
			return fmt.Errorf("max bytes must be positive, got %d", n)
		}
		e.maxBytes = n
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) error {
		e.logger = logger.With("component", "extractor")
		return nil
	}
}

// New creates an Extractor.
func New(opts ...Option) (*Extractor, error) {
	// pdfcpu would otherwise write a config file under the user's home
	disableConfigDir.Do(api.DisableConfigDir)

	e := &Extractor{
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default().With("component", "extractor"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Extract reads r fully and returns its text.
func (e *Extractor) Extract(ctx context.Context, r io.Reader, filename, contentType string) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if int64(len(data)) > e.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, filename, e.maxBytes)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPayload, filename)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, err := DetectFormat(filename, contentType, data[:min(len(data), 1024)])
	if err != nil {
		return nil, err
	}

	var pages []string
	switch format {
	case FormatPDF:
		pages, err = e.pdfPages(ctx, data)
	default:
		pages, err = textPages(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, filename)
	}

	e.logger.Debug("extracted document", "filename", filename, "format", format, "pages", len(pages))
	return &Result{
		Format: format,
		Pages:  pages,
		Text:   strings.Join(pages, pageSeparator),
	}, nil
}

func (e *Extractor) pdfPages(ctx context.Context, data []byte) (pages []string, err error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	// The pdf reader panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			e.logger.Warn("skipping unreadable page", "page", i, "err", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages, nil
}

func textPages(data []byte) ([]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrUnreadable)
	}
	text := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}
