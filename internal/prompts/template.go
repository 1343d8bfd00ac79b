package prompts

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"
)

// Slot names available to prompt templates.
const (
	SlotAssignment = "Assignment"
	SlotExemplar   = "Exemplar"
	SlotStudent    = "Student"
	SlotPaperText  = "PaperText"
)

// letterTemplateName is the associated template the prompt includes with
// {{template "letter" .}}.
const letterTemplateName = "letter"

// variablePattern matches Go template variable references like {{.VarName}} or {{ .VarName }}
var variablePattern = regexp.MustCompile(`\{\{-?\s*\.([a-zA-Z_][a-zA-Z0-9_.]*)\s*-?\}\}`)

// ExtractVariables extracts template variable names from a Go template string.
// For example, "Dear {{.Student}}, re {{.PaperText}}" returns ["PaperText", "Student"].
func ExtractVariables(text string) []string {
	matches := variablePattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var vars []string

	for _, match := range matches {
		if len(match) > 1 {
			varName := match[1]
			if !seen[varName] {
				seen[varName] = true
				vars = append(vars, varName)
			}
		}
	}

	sort.Strings(vars)
	return vars
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// slots is the data a template is executed against.
type slots struct {
	Assignment string
	Exemplar   string
	Student    string
	PaperText  string
}

// Template assembles the per-file prompt for one assignment.
//
// All four slots are filled in a single execution, so values are inserted
// verbatim: placeholder-like text inside a student paper is never expanded.
type Template struct {
	assignment *Assignment
	tmpl       *template.Template
	hash       string
}

// NewTemplate parses the assignment's prompt and letter templates.
// The letter may reference only {{.Student}}; the prompt must place
// {{.PaperText}} somewhere in its output.
func NewTemplate(a *Assignment) (*Template, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: assignment is nil", ErrInvalidAssignment)
	}

	promptText := a.Prompt
	if strings.TrimSpace(promptText) == "" {
		promptText = DefaultPrompt()
	}

	for _, v := range ExtractVariables(a.Letter) {
		if v != SlotStudent {
			return nil, fmt.Errorf("%w: letter references {{.%s}}, only {{.%s}} is allowed",
				ErrInvalidAssignment, v, SlotStudent)
		}
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(promptText)
	if err != nil {
		return nil, fmt.Errorf("%w: parse prompt: %v", ErrInvalidAssignment, err)
	}
	if _, err := tmpl.New(letterTemplateName).Parse(a.Letter); err != nil {
		return nil, fmt.Errorf("%w: parse letter: %v", ErrInvalidAssignment, err)
	}

	t := &Template{
		assignment: a,
		tmpl:       tmpl,
		hash:       HashText(promptText + "\x00" + a.Letter + "\x00" + a.Description + "\x00" + a.Exemplar),
	}

	// Trial fill catches execution errors (unknown fields, bad actions) up front.
	const marker = "\x00paper-marker\x00"
	out, err := t.Fill("marker", marker)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(out, marker) {
		return nil, fmt.Errorf("%w: prompt never includes {{.%s}}", ErrInvalidAssignment, SlotPaperText)
	}

	return t, nil
}

// Fill returns the prompt for one student's paper. It is deterministic:
// identical inputs always produce byte-identical output.
func (t *Template) Fill(student, paperText string) (string, error) {
	var buf bytes.Buffer
	data := slots{
		Assignment: t.assignment.Description,
		Exemplar:   t.assignment.Exemplar,
		Student:    student,
		PaperText:  paperText,
	}
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: fill prompt: %v", ErrInvalidAssignment, err)
	}
	return buf.String(), nil
}

// Assignment returns the assignment the template was built from.
func (t *Template) Assignment() *Assignment {
	return t.assignment
}

// Hash identifies the template contents, for logging.
func (t *Template) Hash() string {
	return t.hash
}
