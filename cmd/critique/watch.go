package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/critique/internal/batch"
)

var watchSettle time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate feedback for papers as they are added to the papers folder",
	Long: `Watch the papers folder and process each new .docx or .pdf file once it
has stopped changing. Papers already in the folder are left alone; use
'critique run' for those. Press Ctrl+C to stop and print the summary.

Examples:
  critique watch
  critique watch --papers inbox --settle 5s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}

		driver, err := buildDriver(cmd.Context(), s, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		summary, err := driver.Watch(cmd.Context(), watchSettle)
		if err != nil {
			return err
		}
		return printSummary(cmd.OutOrStdout(), summary)
	},
}

func init() {
	addBatchFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchSettle, "settle", batch.DefaultSettle, "how long a new file must stay unchanged before it is processed")

	rootCmd.AddCommand(watchCmd)
}
