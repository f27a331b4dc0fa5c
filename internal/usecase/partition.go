package usecase

import (
	"path/filepath"
	"strings"

	"github.com/isolson/remove-google-macos/internal/domain"
)

// PartitionPaths splits the paths of the given findings into the set
// movable by the current user and the set requiring elevation. A path
// is unprivileged only when it lives under the user's home AND its
// owning finding is not flagged for elevation; everything else joins
// the single elevated batch so the operator is prompted at most once
// per run.
func PartitionPaths(findings []*domain.Finding, home string) (unprivileged, privileged []string) {
	for _, f := range findings {
		for _, p := range f.Paths {
			if !f.RequiresElevation && underDir(p, home) {
				unprivileged = append(unprivileged, p)
			} else {
				privileged = append(privileged, p)
			}
		}
	}
	return unprivileged, privileged
}

// underDir reports whether path is dir or lives beneath it.
func underDir(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
