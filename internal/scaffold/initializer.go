// Package scaffold writes a starter huddle.yml and example scenario.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/huddle/internal/config"
	"github.com/dyluth/huddle/internal/scenario"
)

//go:embed templates/*
var templatesFS embed.FS

const (
	ConfigFile   = "huddle.yml"
	ScenarioFile = "scenario.yml"
)

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Template    string
	Permissions os.FileMode
}

var projectFiles = []FileInfo{
	{Path: ConfigFile, Template: "templates/huddle.yml.tmpl", Permissions: 0644},
	{Path: ScenarioFile, Template: "templates/scenario.yml.tmpl", Permissions: 0644},
}

// Initialize writes the project files into dir.
// If force is true, existing project files are replaced.
func Initialize(dir string, force bool) error {
	if force {
		if err := handleForce(dir); err != nil {
			return err
		}
	} else if err := CheckExisting(dir); err != nil {
		return err
	}

	for _, file := range projectFiles {
		content, err := templatesFS.ReadFile(file.Template)
		if err != nil {
			return fmt.Errorf("failed to read %s template: %w", file.Path, err)
		}
		path := filepath.Join(dir, file.Path)
		if err := os.WriteFile(path, content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	return validateCreatedFiles(dir)
}

// handleForce removes existing project files if --force was specified
func handleForce(dir string) error {
	for _, file := range projectFiles {
		path := filepath.Join(dir, file.Path)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fmt.Printf("⚠️  Removing existing %s...\n", file.Path)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", file.Path, err)
		}
	}
	return nil
}

// validateCreatedFiles loads the written files with the same code that
// 'huddle run' uses, so a broken template fails here first.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, ConfigFile)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", ConfigFile, err)
	}
	if _, err := scenario.Load(filepath.Join(dir, ScenarioFile)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", ScenarioFile, err)
	}
	return nil
}

// PrintSuccess prints the success message with created files
func PrintSuccess() {
	fmt.Println("\n✅ Successfully initialized huddle project!")
	fmt.Println("\nCreated:")
	for _, file := range projectFiles {
		fmt.Printf("  ✓ %s\n", file.Path)
	}
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Customize huddle.yml (profile, providers, event bus)")
	fmt.Println("  2. Edit scenario.yml to script your session")
	fmt.Println("  3. Run 'huddle run scenario.yml' to replay it")
}
