package corpus

import (
	"log/slog"
	"path/filepath"
	"strings"
)

// DefaultStudentID is used when a filename yields no usable identifier.
const DefaultStudentID = "Unknown_Student"

// StudentID derives the student identifier from a submission filename.
// LMS exports name files "username_ID_ID_OriginalName.ext", so the segment
// before the first underscore is the username. Falls back to the whole
// stem when there is no underscore, then to DefaultStudentID. A leading
// underscore yields DefaultStudentID. Never returns an empty string.
func StudentID(filename string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	id := stem
	if first, _, found := strings.Cut(stem, "_"); found {
		id = first
	}

	if id = strings.TrimSpace(id); id != "" {
		return id
	}

	logger.Warn("could not extract a valid identifier from filename, using default",
		"file", filename,
		"default", DefaultStudentID)
	return DefaultStudentID
}
