package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckExisting(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		wantErr  bool
		contains []string
	}{
		{name: "clean directory"},
		{
			name:     "config exists",
			existing: []string{ConfigFile},
			wantErr:  true,
			contains: []string{"Found existing: huddle.yml", "huddle init --force"},
		},
		{
			name:     "both files exist",
			existing: []string{ConfigFile, ScenarioFile},
			wantErr:  true,
			contains: []string{"Found existing files:", "  - huddle.yml", "  - scenario.yml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range tt.existing {
				if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
					t.Fatal(err)
				}
			}

			err := CheckExisting(dir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckExisting() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.contains {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not contain %q", err.Error(), want)
				}
			}
		})
	}
}
