package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// pageSource is an opened PDF.
type pageSource interface {
	// Encrypted reports whether the document declares encryption.
	Encrypted() bool

	// Unlock attempts decryption with password.
	Unlock(password string) error

	// PageCount returns the number of pages.
	PageCount() int

	// PageText returns the text of a 1-indexed page.
	PageText(pageNr int) (string, error)

	Close() error
}

// PDFDecoder reads .pdf files page by page.
type PDFDecoder struct {
	open   func(path string) (pageSource, error)
	logger *slog.Logger
}

// NewPDFDecoder creates a PDF decoder backed by pdfcpu.
func NewPDFDecoder(logger *slog.Logger) *PDFDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFDecoder{open: openPDFCPU, logger: logger}
}

// Name returns the format name.
func (d *PDFDecoder) Name() string { return "pdf" }

// Extensions returns the accepted suffixes.
func (d *PDFDecoder) Extensions() []string { return []string{".pdf"} }

// Decode returns the text of every readable page joined by a blank line.
// Encrypted files get one empty-password attempt; pages that fail to
// extract are skipped with a warning.
func (d *PDFDecoder) Decode(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractError{Path: path, Kind: ErrUnreadable, Err: fmt.Errorf("pdf decoder panic: %v", r)}
		}
	}()

	src, err := d.open(path)
	if err != nil {
		return "", &ExtractError{Path: path, Kind: ErrUnreadable, Err: err}
	}
	defer src.Close()

	if src.Encrypted() {
		if err := src.Unlock(""); err != nil {
			return "", &ExtractError{Path: path, Kind: ErrPasswordProtected, Err: err}
		}
	}

	name := filepath.Base(path)
	var pages []string
	for pageNr := 1; pageNr <= src.PageCount(); pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		pageText, err := d.pageText(src, pageNr)
		if err != nil {
			d.logger.Warn("error extracting text from PDF page",
				"file", name,
				"page", pageNr,
				"error", err)
			continue
		}

		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			d.logger.Warn("no text on PDF page", "file", name, "page", pageNr)
			continue
		}
		pages = append(pages, pageText)
	}

	text = strings.TrimSpace(strings.Join(pages, "\n\n"))
	if text == "" {
		return "", &ExtractError{Path: path, Kind: ErrNoText, Detail: "possibly image-based"}
	}
	return text, nil
}

// pageText isolates a single page so a panic in one page does not lose the rest.
func (d *PDFDecoder) pageText(src pageSource, pageNr int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return src.PageText(pageNr)
}

// pdfcpuSource reads pages through pdfcpu.
type pdfcpuSource struct {
	path   string
	f      *os.File
	ctx    *model.Context
	locked bool // empty-password read was rejected

	fonts map[int]*pdfFont // by font dict object number
}

func openPDFCPU(path string) (pageSource, error) {
	src := &pdfcpuSource{path: path}
	err := src.read("")
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		src.locked = true
		return src, nil
	}
	if err != nil {
		src.Close()
		return nil, err
	}
	return src, nil
}

// read parses the file with the given password for both user and owner.
func (s *pdfcpuSource) read(password string) error {
	s.Close()

	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	s.f = f

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.UserPW = password
	conf.OwnerPW = password

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return fmt.Errorf("count pages: %w", err)
	}
	s.ctx = ctx
	s.fonts = make(map[int]*pdfFont)
	return nil
}

func (s *pdfcpuSource) Encrypted() bool {
	return s.locked || (s.ctx != nil && s.ctx.Encrypt != nil)
}

func (s *pdfcpuSource) Unlock(password string) error {
	if !s.locked {
		// pdfcpu already decrypted with the empty password while reading.
		if password == "" {
			return nil
		}
	}
	if err := s.read(password); err != nil {
		return err
	}
	s.locked = false
	return nil
}

func (s *pdfcpuSource) PageCount() int {
	if s.ctx == nil {
		return 0
	}
	return s.ctx.PageCount
}

func (s *pdfcpuSource) PageText(pageNr int) (string, error) {
	d, _, inherited, err := s.ctx.PageDict(pageNr, false)
	if err != nil {
		return "", err
	}
	content, err := s.ctx.PageContent(d, pageNr)
	if errors.Is(err, model.ErrNoContent) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var resources types.Dict
	if inherited != nil {
		resources = inherited.Resources
	}
	return scanContent(content, s.pageFonts(resources)), nil
}

// pageFonts resolves the fonts named in a page's resources.
func (s *pdfcpuSource) pageFonts(resources types.Dict) map[string]*pdfFont {
	if resources == nil {
		return nil
	}
	o, found := resources.Find("Font")
	if !found {
		return nil
	}
	fontDicts, err := s.ctx.DereferenceDict(o)
	if err != nil || fontDicts == nil {
		return nil
	}

	fonts := make(map[string]*pdfFont, len(fontDicts))
	for name, ref := range fontDicts {
		ir, indirect := ref.(types.IndirectRef)
		if indirect {
			if f, ok := s.fonts[ir.ObjectNumber.Value()]; ok {
				fonts[name] = f
				continue
			}
		}
		f := s.loadFont(ref)
		if indirect {
			s.fonts[ir.ObjectNumber.Value()] = f
		}
		fonts[name] = f
	}
	return fonts
}

// loadFont reads a font's type and ToUnicode CMap.
func (s *pdfcpuSource) loadFont(o types.Object) *pdfFont {
	f := &pdfFont{}
	d, err := s.ctx.DereferenceDict(o)
	if err != nil || d == nil {
		return f
	}
	if st := d.Subtype(); st != nil && *st == "Type0" {
		f.composite = true
	}

	tu, found := d.Find("ToUnicode")
	if !found {
		return f
	}
	sd, _, err := s.ctx.DereferenceStreamDict(tu)
	if err != nil || sd == nil {
		return f
	}
	if sd.Content == nil {
		if err := sd.Decode(); err != nil {
			return f
		}
	}
	f.toUnicode = parseCMap(sd.Content)
	return f
}

func (s *pdfcpuSource) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
