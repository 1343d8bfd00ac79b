package document

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBodyPart = "word/document.xml"
	wordMLNS     = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	markupCompNS = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// DocxDecoder reads Word .docx files.
type DocxDecoder struct{}

// NewDocxDecoder creates a DOCX decoder.
func NewDocxDecoder() *DocxDecoder {
	return &DocxDecoder{}
}

// Name returns the format name.
func (d *DocxDecoder) Name() string { return "docx" }

// Extensions returns the accepted suffixes.
func (d *DocxDecoder) Extensions() []string { return []string{".docx"} }

// Decode returns the document's non-blank paragraphs joined by a blank line.
func (d *DocxDecoder) Decode(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", &ExtractError{Path: path, Kind: ErrUnreadable, Err: err}
	}
	defer zr.Close()

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return "", &ExtractError{Path: path, Kind: ErrUnreadable, Err: fmt.Errorf("missing %s", docxBodyPart)}
	}

	rc, err := body.Open()
	if err != nil {
		return "", &ExtractError{Path: path, Kind: ErrUnreadable, Err: err}
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(rc)
	if err != nil {
		return "", &ExtractError{Path: path, Kind: ErrUnreadable, Err: err}
	}

	text := joinParagraphs(paragraphs)
	if text == "" {
		return "", &ExtractError{Path: path, Kind: ErrNoText}
	}
	return text, nil
}

// joinParagraphs drops blank paragraphs and joins the rest with a blank line.
// Kept paragraphs are not trimmed.
func joinParagraphs(paragraphs []string) string {
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "\n\n")
}

// readParagraphs streams WordprocessingML and returns the text of each w:p
// in document order. Runs, tabs and breaks inside a paragraph are
// concatenated; deleted revisions (w:delText) are ignored. Of an
// mc:AlternateContent pair only the mc:Choice copy is read.
func readParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		open       []*strings.Builder
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", docxBodyPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == markupCompNS && t.Name.Local == "Fallback" {
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("decode %s: %w", docxBodyPart, err)
				}
				continue
			}
			if t.Name.Space != wordMLNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				inText = true
			case "tab":
				if len(open) > 0 {
					open[len(open)-1].WriteByte('\t')
				}
			case "br", "cr":
				if len(open) > 0 {
					open[len(open)-1].WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordMLNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if len(open) == 0 {
					continue
				}
				paragraphs = append(paragraphs, open[len(open)-1].String())
				open = open[:len(open)-1]
			}
		case xml.CharData:
			if inText && len(open) > 0 {
				open[len(open)-1].Write(t)
			}
		}
	}

	return paragraphs, nil
}
