package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/critique/internal/config"
	"github.com/jackzampolin/critique/internal/home"
	"github.com/jackzampolin/critique/internal/prompts"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config and an editable assignment to the home directory",
	Long: `Create the critique home directory (default ~/.critique) containing:

  config.yaml      provider, folders and pacing settings
  assignment.yaml  the assignment description, exemplar and letter template

Edit assignment.yaml to describe a different assignment; 'critique run'
picks it up automatically. Existing files are kept unless --force is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if !h.Exists() {
			fmt.Fprintf(out, "Creating %s\n", h.Path())
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		if h.ConfigExists() && !initForce {
			fmt.Fprintf(out, "Keeping existing %s\n", h.ConfigPath())
		} else {
			if err := config.WriteDefault(h.ConfigPath()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s\n", h.ConfigPath())
		}

		if h.AssignmentExists() && !initForce {
			fmt.Fprintf(out, "Keeping existing %s\n", h.AssignmentPath())
		} else {
			if err := prompts.WriteAssignment(h.AssignmentPath(), prompts.DefaultAssignment()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s\n", h.AssignmentPath())
		}

		fmt.Fprintln(out, "\nSet your API key before running, e.g. export GOOGLE_API_KEY=...")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
	rootCmd.AddCommand(initCmd)
}
