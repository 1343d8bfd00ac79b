package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/critique/internal/config"
	"github.com/jackzampolin/critique/internal/home"
	"github.com/jackzampolin/critique/version"
)

var (
	cfgFile      string
	homeDir      string
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "critique",
	Short: "Draft instructor feedback letters for a folder of student papers",
	Long: `Critique reads student papers (.docx and .pdf) from a folder, asks a
generative model to draft a feedback letter for each one, and writes the
letters to an output folder for the instructor to review.

Each paper produces either <student>_feedback.txt or an error file named
<student>_ERROR_<category>.txt explaining what went wrong. Letters are
drafts: review and edit every one before sharing it.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validOutput(outputFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.critique/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "critique home directory (default: ~/.critique)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", outputText, "output format: text, yaml or json",
	)

	rootCmd.AddCommand(versionCmd)
}

// session bundles what every command that touches papers needs.
type session struct {
	home   *home.Dir
	cfg    *config.Config
	logger *slog.Logger
}

// loadSession resolves the home directory and configuration for cmd.
func loadSession(cmd *cobra.Command) (*session, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	mgr, err := config.NewManager(cfgFile, h.Path(), cmd.Flags())
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if used := mgr.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "file", used)
	}

	return &session{home: h, cfg: cfg, logger: logger}, nil
}

// assignmentPath returns the configured assignment file, falling back to the
// one in the home directory. Empty means the built-in assignment.
func (s *session) assignmentPath() string {
	if s.cfg.Paths.Assignment != "" {
		return s.cfg.Paths.Assignment
	}
	if s.home.AssignmentExists() {
		return s.home.AssignmentPath()
	}
	return ""
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("%w: unknown log level %q", config.ErrInvalidConfig, level)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}
