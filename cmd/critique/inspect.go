package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/critique/internal/corpus"
	"github.com/jackzampolin/critique/internal/document"
)

// inspection is the structured form of inspect's output.
type inspection struct {
	File    string `json:"file" yaml:"file"`
	Student string `json:"student" yaml:"student"`
	Chars   int    `json:"chars" yaml:"chars"`
	Text    string `json:"text" yaml:"text"`
}

var inspectTextOnly bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the student identifier and extracted text for one paper",
	Long: `Derive the student identifier from a paper's file name and extract its
text exactly as 'critique run' would, without calling the generation
service. Useful for checking why a paper produced an error file.

Examples:
  critique inspect papers/jdoe_12345_67890_Essay.docx
  critique inspect -o yaml papers/asmith_Essay.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(logLevel)
		if err != nil {
			return err
		}

		path := args[0]
		name := filepath.Base(path)
		student := corpus.StudentID(name, logger)

		extractor := document.NewExtractor(logger)
		text, err := extractor.Extract(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("%s (student %s): %w", name, student, err)
		}

		out := cmd.OutOrStdout()
		if outputFormat != outputText {
			return encode(out, outputFormat, inspection{
				File:    name,
				Student: student,
				Chars:   len([]rune(text)),
				Text:    text,
			})
		}

		if !inspectTextOnly {
			fmt.Fprintf(out, "File:       %s\n", name)
			fmt.Fprintf(out, "Student:    %s\n", student)
			fmt.Fprintf(out, "Characters: %d\n\n", len([]rune(text)))
		}
		fmt.Fprintln(out, text)
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectTextOnly, "text-only", false, "print only the extracted text")
	rootCmd.AddCommand(inspectCmd)
}
