package prompts

import (
	_ "embed"
	"strings"
)

//go:embed builtin/prompt.tmpl
var defaultPrompt string

//go:embed builtin/project1_description.txt
var project1Description string

//go:embed builtin/project1_exemplar.txt
var project1Exemplar string

//go:embed builtin/project1_letter.tmpl
var project1Letter string

//go:embed builtin/assignment.schema.json
var assignmentSchema []byte

// DefaultPrompt returns the built-in instruction template.
func DefaultPrompt() string {
	return defaultPrompt
}

// DefaultAssignment returns the built-in Project 1 assignment.
func DefaultAssignment() *Assignment {
	return &Assignment{
		Name:        "Project 1: Analyzing a Text",
		Description: strings.TrimRight(project1Description, "\n"),
		Exemplar:    strings.TrimRight(project1Exemplar, "\n"),
		Letter:      strings.TrimRight(project1Letter, "\n"),
	}
}
