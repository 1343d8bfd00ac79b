package document

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// stubDecoder records the paths it was asked to decode.
type stubDecoder struct {
	name  string
	exts  []string
	text  string
	err   error
	calls []string
}

func (s *stubDecoder) Name() string         { return s.name }
func (s *stubDecoder) Extensions() []string { return s.exts }

func (s *stubDecoder) Decode(_ context.Context, path string) (string, error) {
	s.calls = append(s.calls, path)
	return s.text, s.err
}

func TestExtractor_Dispatch(t *testing.T) {
	docx := &stubDecoder{name: "docx", exts: []string{".docx"}, text: "from docx"}
	pdf := &stubDecoder{name: "pdf", exts: []string{".pdf"}, text: "from pdf"}
	ex := NewExtractor(nil, docx, pdf)

	tests := []struct {
		path string
		want string
	}{
		{"papers/jdoe_p1.docx", "from docx"},
		{"papers/jdoe_p1.DOCX", "from docx"},
		{"papers/asmith.pdf", "from pdf"},
		{"papers/asmith.Pdf", "from pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ex.Extract(context.Background(), tt.path)
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if len(docx.calls) != 2 || len(pdf.calls) != 2 {
		t.Errorf("unexpected call counts: docx=%d pdf=%d", len(docx.calls), len(pdf.calls))
	}
}

func TestExtractor_Unsupported(t *testing.T) {
	ex := NewExtractor(nil)

	for _, path := range []string{"notes.txt", "essay.doc", "README", "image.png"} {
		t.Run(path, func(t *testing.T) {
			if ex.Supports(path) {
				t.Errorf("Supports(%q) = true", path)
			}
			_, err := ex.Extract(context.Background(), path)
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("expected ErrUnsupportedFormat, got %v", err)
			}
		})
	}
}

func TestExtractor_DefaultDecoders(t *testing.T) {
	ex := NewExtractor(nil)

	if got, want := ex.Extensions(), []string{".docx", ".pdf"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Extensions() = %v, want %v", got, want)
	}
	if !ex.Supports("Paper.PDF") || !ex.Supports("paper.docx") {
		t.Error("default extractor should support .pdf and .docx in any case")
	}
}

func TestExtractError(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")

	tests := []struct {
		name       string
		err        *ExtractError
		wantReason string
		wantParts  []string
	}{
		{
			name:       "unreadable",
			err:        &ExtractError{Path: "/in/a.docx", Kind: ErrUnreadable, Err: cause},
			wantReason: "unreadable",
			wantParts:  []string{"a.docx", "unreadable file", "not a valid zip"},
		},
		{
			name:       "password",
			err:        &ExtractError{Path: "/in/b.pdf", Kind: ErrPasswordProtected},
			wantReason: "password_protected",
			wantParts:  []string{"b.pdf", "password-protected"},
		},
		{
			name:       "no text",
			err:        &ExtractError{Path: "/in/c.pdf", Kind: ErrNoText, Detail: "possibly image-based"},
			wantReason: "no_text",
			wantParts:  []string{"c.pdf", "no extractable text", "(possibly image-based)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Reason(); got != tt.wantReason {
				t.Errorf("Reason() = %q, want %q", got, tt.wantReason)
			}
			msg := tt.err.Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(msg, part) {
					t.Errorf("Error() = %q, missing %q", msg, part)
				}
			}
			if !errors.Is(tt.err, tt.err.Kind) {
				t.Error("errors.Is should match Kind")
			}
			if tt.err.Err != nil && !errors.Is(tt.err, tt.err.Err) {
				t.Error("errors.Is should match the cause")
			}
		})
	}
}
