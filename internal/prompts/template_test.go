package prompts

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "Dear student,", nil},
		{"single", "Dear {{.Student}},", []string{"Student"}},
		{"spaced and trimmed", "{{ .Student }} {{- .PaperText -}}", []string{"PaperText", "Student"}},
		{"dedup", "{{.Student}} and {{.Student}}", []string{"Student"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractVariables(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractVariables() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTemplate_FillDefault(t *testing.T) {
	tmpl, err := NewTemplate(DefaultAssignment())
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}

	out, err := tmpl.Fill("jdoe", "My essay about Dungy.")
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}

	for _, want := range []string{
		"Project 1: Analyzing a Text",
		"Thank you for sharing this essay with me.",
		"Dear jdoe,\n\nThank you for submitting your Project 1 analysis.",
		"salutation `Dear jdoe,`",
		"**Student Identifier:** jdoe",
		"**Student Paper Text:**\nMy essay about Dungy.",
		"**Overall Analysis & Argument:**",
		"Best regards,\n[Your Name]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(out, "{{") {
		t.Error("prompt still contains template actions")
	}
}

func TestTemplate_Deterministic(t *testing.T) {
	tmpl, err := NewTemplate(DefaultAssignment())
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}

	first, err := tmpl.Fill("asmith", "Bastian asks a question.")
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	second, err := tmpl.Fill("asmith", "Bastian asks a question.")
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if first != second {
		t.Error("identical inputs produced different prompts")
	}

	other, err := NewTemplate(DefaultAssignment())
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}
	third, _ := other.Fill("asmith", "Bastian asks a question.")
	if third != first {
		t.Error("a fresh template produced a different prompt")
	}
	if tmpl.Hash() != other.Hash() {
		t.Error("hash should depend only on template contents")
	}
}

func TestTemplate_PaperTextIsLiteral(t *testing.T) {
	tmpl, err := NewTemplate(DefaultAssignment())
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}

	paper := `I quote {{.Student}} and {student_identifier} and {{template "letter" .}} verbatim.`
	out, err := tmpl.Fill("kli", paper)
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if !strings.Contains(out, paper) {
		t.Error("paper text was altered by the fill")
	}
	if strings.Count(out, "**Overall Analysis & Argument:**") != 1 {
		t.Error("letter template expanded from paper text")
	}
}

func TestTemplate_StudentWithBraces(t *testing.T) {
	tmpl, err := NewTemplate(DefaultAssignment())
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}
	out, err := tmpl.Fill("{{.PaperText}}", "body")
	if err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if !strings.Contains(out, "Dear {{.PaperText}},") {
		t.Error("identifier should be inserted verbatim")
	}
}

func TestNewTemplate_Rejects(t *testing.T) {
	base := func() *Assignment {
		return &Assignment{
			Name:        "Essay 2",
			Description: "Write about anything.",
			Exemplar:    "Dear student, nice work.",
			Letter:      "Dear {{.Student}},\n\n[AI: feedback]",
		}
	}

	tests := []struct {
		name   string
		mutate func(a *Assignment)
	}{
		{"letter uses paper text", func(a *Assignment) { a.Letter = "Dear {{.Student}}, {{.PaperText}}" }},
		{"letter does not parse", func(a *Assignment) { a.Letter = "Dear {{.Student}" }},
		{"prompt unknown slot", func(a *Assignment) { a.Prompt = "{{.Grade}} {{.PaperText}}" }},
		{"prompt without paper", func(a *Assignment) { a.Prompt = "Review {{.Student}}." }},
		{"prompt does not parse", func(a *Assignment) { a.Prompt = "{{if}}" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base()
			tt.mutate(a)
			if _, err := NewTemplate(a); !errors.Is(err, ErrInvalidAssignment) {
				t.Errorf("expected ErrInvalidAssignment, got %v", err)
			}
		})
	}

	t.Run("nil", func(t *testing.T) {
		if _, err := NewTemplate(nil); !errors.Is(err, ErrInvalidAssignment) {
			t.Errorf("expected ErrInvalidAssignment, got %v", err)
		}
	})

	t.Run("custom prompt", func(t *testing.T) {
		a := base()
		a.Prompt = "{{.Assignment}}\n{{template \"letter\" .}}\n{{.PaperText}}"
		tmpl, err := NewTemplate(a)
		if err != nil {
			t.Fatalf("NewTemplate failed: %v", err)
		}
		out, _ := tmpl.Fill("bo", "text")
		want := "Write about anything.\nDear bo,\n\n[AI: feedback]\ntext"
		if out != want {
			t.Errorf("got %q, want %q", out, want)
		}
	})
}
