package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckExisting checks if any project file already exists in dir
// Returns an error if one does, nil otherwise
func CheckExisting(dir string) error {
	var existingFiles []string
	for _, file := range projectFiles {
		if _, err := os.Stat(filepath.Join(dir, file.Path)); err == nil {
			existingFiles = append(existingFiles, file.Path)
		}
	}

	if len(existingFiles) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("project already initialized\n\nFound existing")
	if len(existingFiles) == 1 {
		fmt.Fprintf(&b, ": %s\n", existingFiles[0])
	} else {
		b.WriteString(" files:\n")
		for _, file := range existingFiles {
			fmt.Fprintf(&b, "  - %s\n", file)
		}
	}
	b.WriteString("\nUse 'huddle init --force' to reinitialize (this will overwrite existing configuration)")

	return fmt.Errorf("%s", b.String())
}
