// Package document extracts plain text from student submissions.
//
// Each supported format is handled by a Decoder; the Extractor only picks
// the decoder by file suffix. Decoders return text or an *ExtractError whose
// Kind is one of ErrUnreadable, ErrPasswordProtected or ErrNoText.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrUnsupportedFormat marks files no decoder handles. Callers skip them silently.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	// ErrUnreadable marks corrupt or unreadable containers.
	ErrUnreadable = errors.New("unreadable file")

	// ErrPasswordProtected marks encrypted files that do not open with an empty password.
	ErrPasswordProtected = errors.New("password-protected, skipped")

	// ErrNoText marks files that decode but contain no text.
	ErrNoText = errors.New("no extractable text")
)

// ExtractError describes a failed extraction.
type ExtractError struct {
	Path   string
	Kind   error  // ErrUnreadable, ErrPasswordProtected or ErrNoText
	Detail string // Optional hint, e.g. "possibly image-based"
	Err    error  // Underlying cause, may be nil
}

func (e *ExtractError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", filepath.Base(e.Path), msg)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *ExtractError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Reason returns a short machine-friendly label for the failure kind.
func (e *ExtractError) Reason() string {
	switch {
	case errors.Is(e.Kind, ErrPasswordProtected):
		return "password_protected"
	case errors.Is(e.Kind, ErrNoText):
		return "no_text"
	default:
		return "unreadable"
	}
}

// Decoder turns one document format into plain text.
type Decoder interface {
	// Name identifies the format, e.g. "docx".
	Name() string

	// Extensions lists the lower-case suffixes the decoder accepts, with the dot.
	Extensions() []string

	// Decode reads the file at path and returns its text.
	Decode(ctx context.Context, path string) (string, error)
}

// Extractor dispatches files to decoders by suffix.
type Extractor struct {
	decoders map[string]Decoder
	logger   *slog.Logger
}

// NewExtractor creates an extractor over the given decoders.
// With no decoders it registers the DOCX and PDF decoders.
func NewExtractor(logger *slog.Logger, decoders ...Decoder) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(decoders) == 0 {
		decoders = []Decoder{
			NewDocxDecoder(),
			NewPDFDecoder(logger),
		}
	}

	e := &Extractor{
		decoders: make(map[string]Decoder),
		logger:   logger,
	}
	for _, d := range decoders {
		for _, ext := range d.Extensions() {
			e.decoders[strings.ToLower(ext)] = d
		}
	}
	return e
}

// decoderFor returns the decoder registered for the file's suffix.
func (e *Extractor) decoderFor(path string) (Decoder, bool) {
	d, ok := e.decoders[strings.ToLower(filepath.Ext(path))]
	return d, ok
}

// Supports reports whether the file's suffix has a decoder.
func (e *Extractor) Supports(path string) bool {
	_, ok := e.decoderFor(path)
	return ok
}

// Extensions returns the supported suffixes, sorted.
func (e *Extractor) Extensions() []string {
	exts := make([]string, 0, len(e.decoders))
	for ext := range e.decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract returns the text of the file at path.
// Unknown suffixes return ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	d, ok := e.decoderFor(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}

	e.logger.Debug("reading document", "file", filepath.Base(path), "format", d.Name())
	return d.Decode(ctx, path)
}
