// Package prompts holds the assignment context and assembles the prompt sent
// to the generation service.
//
// An Assignment carries the rubric, a style exemplar and a section-by-section
// letter template. The built-in Project 1 assignment is used unless an
// assignment file is configured; files are YAML and validated against an
// embedded JSON schema before use.
package prompts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalidAssignment marks assignment files or templates that cannot be used.
var ErrInvalidAssignment = errors.New("invalid assignment")

// BuiltinSource is the Source of the built-in assignment.
const BuiltinSource = "built-in"

// Assignment is the static context shared by every file in a run.
type Assignment struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Exemplar    string `yaml:"exemplar" json:"exemplar"`
	Letter      string `yaml:"letter" json:"letter"`
	Prompt      string `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	// Source is the file the assignment was loaded from, or BuiltinSource.
	Source string `yaml:"-" json:"-"`
}

// Validate checks that the assignment's templates parse and fill.
func (a *Assignment) Validate() error {
	_, err := NewTemplate(a)
	return err
}

// ResolveAssignment returns the assignment at path, or the built-in one
// when path is empty.
func ResolveAssignment(path string) (*Assignment, error) {
	if path == "" {
		a := DefaultAssignment()
		a.Source = BuiltinSource
		return a, nil
	}
	return LoadAssignment(path)
}

// LoadAssignment reads and validates an assignment YAML file.
func LoadAssignment(path string) (*Assignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assignment: %w", err)
	}

	if err := validateAssignmentDoc(data); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	var a Assignment
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAssignment, filepath.Base(path), err)
	}
	a.Source = path

	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &a, nil
}

// WriteAssignment writes the assignment as YAML.
func WriteAssignment(path string, a *Assignment) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal assignment: %w", err)
	}

	header := []byte("# Assignment context for critique.\n# The letter may reference {{.Student}} only.\n\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return fmt.Errorf("write assignment: %w", err)
	}
	return nil
}

// validateAssignmentDoc checks raw YAML against the embedded schema.
func validateAssignmentDoc(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAssignment, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: file is empty", ErrInvalidAssignment)
	}

	// The validator works on JSON-decoded values.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAssignment, err)
	}
	var doc any
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAssignment, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("assignment.schema.json", bytes.NewReader(assignmentSchema)); err != nil {
		return fmt.Errorf("load assignment schema: %w", err)
	}
	schema, err := compiler.Compile("assignment.schema.json")
	if err != nil {
		return fmt.Errorf("compile assignment schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAssignment, err)
	}
	return nil
}
