package infra

import (
	"fmt"
	"os/exec"

	"github.com/isolson/remove-google-macos/internal/domain"
)

// FinderTrasher implements domain.Trasher using the Finder, so moved
// items land in the user's trash with the usual put-back metadata.
// Callers fall back to a manual move when Finder is unavailable (SSH
// session, headless run).
type FinderTrasher struct{}

// NewFinderTrasher creates the macOS native trash mover.
func NewFinderTrasher() domain.Trasher {
	return &FinderTrasher{}
}

// MoveToTrash asks the Finder to trash the path.
func (t *FinderTrasher) MoveToTrash(path string) error {
	script := fmt.Sprintf("tell application %s to delete POSIX file %s",
		appleScriptString("Finder"), appleScriptString(path))
	if err := exec.Command("osascript", "-e", script).Run(); err != nil {
		return fmt.Errorf("finder trash %s: %w", path, err)
	}
	return nil
}

// Ensure FinderTrasher implements domain.Trasher.
var _ domain.Trasher = (*FinderTrasher)(nil)
