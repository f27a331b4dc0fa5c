// Package catalog holds the hand-curated registry of Google footprint
// locations on macOS: launchd services, applications with their data
// rules, shared infrastructure directories, and the restore tables that
// invert a removal. Pure data; the engine never discovers locations
// outside this registry.
package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/isolson/remove-google-macos/internal/domain"
)

// Catalog is process-wide immutable configuration, constructed once and
// passed into the engine. Construction failure is a packaging error and
// the only fatal condition in the system.
type Catalog struct {
	VendorName string

	// ServiceFilter matches vendor entries in the live launchd table,
	// case-insensitive substring.
	ServiceFilter string

	// ProcessNames are killed before any file is moved.
	ProcessNames []string

	// LibrarySubdirs are the per-user library locations scanned for
	// bundle-id prefix matches, relative to the home directory.
	LibrarySubdirs []string

	// GroupContainersDir holds shared app group containers, relative to home.
	GroupContainersDir string

	// SharedIdentifiers mark vendor-owned entries during the shared
	// sweep (substring, case-insensitive).
	SharedIdentifiers []string

	// BlockerPath is where the reinstall blocker is planted, ~ relative.
	BlockerPath string

	Services     []domain.ServiceDescriptor
	Applications []domain.ApplicationDescriptor
	SharedRules  []domain.SharedDataRule

	RestoreRules        []domain.RestoreRule
	PatternRestoreRules []domain.PatternRestoreRule
}

// NewGoogleCatalog builds the catalog for Google's macOS footprint:
// the Keystone/GoogleUpdater update machinery plus the commonly
// installed applications that feed it.
func NewGoogleCatalog() (*Catalog, error) {
	c := &Catalog{
		VendorName:    "Google",
		ServiceFilter: "google",
		ProcessNames: []string{
			"Google Chrome",
			"Google Drive",
			"GoogleSoftwareUpdate",
			"GoogleUpdater",
			"ksadmin",
			"ksfetch",
			"ksinstall",
		},
		LibrarySubdirs: []string{
			"Library/Application Support",
			"Library/Caches",
			"Library/Preferences",
			"Library/Logs",
			"Library/WebKit",
			"Library/HTTPStorages",
			"Library/Saved Application State",
		},
		GroupContainersDir: "Library/Group Containers",
		SharedIdentifiers:  []string{"google"},
		BlockerPath:        "~/Library/Google/GoogleSoftwareUpdate",

		Services: []domain.ServiceDescriptor{
			{ConfigPath: "~/Library/LaunchAgents/com.google.keystone.agent.plist", Domain: domain.DomainUser},
			{ConfigPath: "~/Library/LaunchAgents/com.google.keystone.xpcservice.plist", Domain: domain.DomainUser},
			{ConfigPath: "~/Library/LaunchAgents/com.google.GoogleUpdater.wake.plist", Domain: domain.DomainUser},
			{ConfigPath: "/Library/LaunchAgents/com.google.keystone.agent.plist", Domain: domain.DomainUser, RequiresElevation: true},
			{ConfigPath: "/Library/LaunchDaemons/com.google.keystone.daemon.plist", Domain: domain.DomainSystem, RequiresElevation: true},
		},

		Applications: []domain.ApplicationDescriptor{
			{
				DisplayName:       "Google Chrome",
				InstallPath:       "/Applications/Google Chrome.app",
				BundleIDPrefixes:  []string{"com.google.Chrome"},
				ExtraDataPaths:    []string{"~/Library/Application Support/Google/Chrome"},
				RequiresElevation: true,
			},
			{
				DisplayName:       "Google Chrome Canary",
				InstallPath:       "/Applications/Google Chrome Canary.app",
				BundleIDPrefixes:  []string{"com.google.Chrome.canary"},
				ExtraDataPaths:    []string{"~/Library/Application Support/Google/Chrome Canary"},
				RequiresElevation: true,
			},
			{
				DisplayName:       "Google Drive",
				InstallPath:       "/Applications/Google Drive.app",
				BundleIDPrefixes:  []string{"com.google.drivefs"},
				ExtraDataPaths:    []string{"~/Library/Application Support/Google/DriveFS"},
				RequiresElevation: true,
			},
			{
				DisplayName:       "Google Earth Pro",
				InstallPath:       "/Applications/Google Earth Pro.app",
				BundleIDPrefixes:  []string{"com.google.GoogleEarth"},
				ExtraDataPaths:    []string{"~/Library/Application Support/Google Earth"},
				RequiresElevation: true,
			},
		},

		SharedRules: []domain.SharedDataRule{
			{PathOrPrefix: "~/Library/Google"},
			{PathOrPrefix: "~/Library/Application Support/Google"},
			{PathOrPrefix: "~/Library/Caches/Google"},
			{PathOrPrefix: "~/Library/Preferences/Google"},
			{PathOrPrefix: "/Library/Google", RequiresElevation: true},
			{PathOrPrefix: "/Library/Application Support/Google", RequiresElevation: true},
		},

		RestoreRules: []domain.RestoreRule{
			{TrashBasename: "com.google.keystone.agent.plist", Destination: "~/Library/LaunchAgents/com.google.keystone.agent.plist"},
			{TrashBasename: "com.google.keystone.xpcservice.plist", Destination: "~/Library/LaunchAgents/com.google.keystone.xpcservice.plist"},
			{TrashBasename: "com.google.GoogleUpdater.wake.plist", Destination: "~/Library/LaunchAgents/com.google.GoogleUpdater.wake.plist"},
			{TrashBasename: "com.google.keystone.agent.plist", Destination: "/Library/LaunchAgents/com.google.keystone.agent.plist", RequiresElevation: true},
			{TrashBasename: "com.google.keystone.daemon.plist", Destination: "/Library/LaunchDaemons/com.google.keystone.daemon.plist", RequiresElevation: true},

			{TrashBasename: "Google Chrome.app", Destination: "/Applications/Google Chrome.app", RequiresElevation: true},
			{TrashBasename: "Google Chrome Canary.app", Destination: "/Applications/Google Chrome Canary.app", RequiresElevation: true},
			{TrashBasename: "Google Drive.app", Destination: "/Applications/Google Drive.app", RequiresElevation: true},
			{TrashBasename: "Google Earth Pro.app", Destination: "/Applications/Google Earth Pro.app", RequiresElevation: true},

			{TrashBasename: "Chrome", Destination: "~/Library/Application Support/Google/Chrome"},
			{TrashBasename: "Chrome Canary", Destination: "~/Library/Application Support/Google/Chrome Canary"},
			{TrashBasename: "DriveFS", Destination: "~/Library/Application Support/Google/DriveFS"},
			{TrashBasename: "Google Earth", Destination: "~/Library/Application Support/Google Earth"},

			{TrashBasename: "Google", Destination: "~/Library/Google"},
			{TrashBasename: "Google", Destination: "~/Library/Application Support/Google"},
			{TrashBasename: "Google", Destination: "~/Library/Caches/Google"},
			{TrashBasename: "Google", Destination: "~/Library/Preferences/Google"},
			{TrashBasename: "Google", Destination: "/Library/Google", RequiresElevation: true},
			{TrashBasename: "Google", Destination: "/Library/Application Support/Google", RequiresElevation: true},
		},

		// Data entries matched by bundle-id prefix have scan-time names.
		// Most specific pattern first; first match decides where a
		// trashed entry goes back to.
		PatternRestoreRules: []domain.PatternRestoreRule{
			{Pattern: "com.google.*.savedState", DestinationDir: "~/Library/Saved Application State"},
			{Pattern: "com.google.*.plist", DestinationDir: "~/Library/Preferences"},
			{Pattern: "group.com.google.*", DestinationDir: "~/Library/Group Containers"},
			{Pattern: "com.google.*", DestinationDir: "~/Library/Caches"},
		},
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate enforces the catalog's internal consistency: every path the
// remover can relocate must be recoverable through a restore rule.
// Statically declared paths need an exact rule; scan-time prefix
// matches need at least one covering pattern rule.
func (c *Catalog) Validate() error {
	exact := make(map[string]bool, len(c.RestoreRules))
	for _, r := range c.RestoreRules {
		exact[r.TrashBasename] = true
	}

	var static []string
	for _, s := range c.Services {
		static = append(static, s.ConfigPath)
	}
	for _, a := range c.Applications {
		static = append(static, a.InstallPath)
		static = append(static, a.ExtraDataPaths...)
	}
	for _, s := range c.SharedRules {
		static = append(static, s.PathOrPrefix)
	}

	for _, p := range static {
		if !exact[filepath.Base(p)] {
			return fmt.Errorf("catalog: removable path %q has no restore rule", p)
		}
	}

	for _, a := range c.Applications {
		for _, prefix := range a.BundleIDPrefixes {
			if !c.patternCovers(prefix) {
				return fmt.Errorf("catalog: bundle prefix %q has no pattern restore rule", prefix)
			}
		}
	}

	// Scan-time entries carry the base of their source directory in
	// their trash name, so those bases must be unambiguous.
	bases := make(map[string]string, len(c.LibrarySubdirs)+1)
	for _, dir := range c.ScanDirs() {
		base := filepath.Base(dir)
		if prev, dup := bases[base]; dup {
			return fmt.Errorf("catalog: scan dirs %q and %q share base name %q", prev, dir, base)
		}
		bases[base] = dir
	}

	if c.BlockerPath == "" {
		return fmt.Errorf("catalog: blocker path is empty")
	}
	return nil
}

// HasRestoreRule reports whether an exact restore rule exists for the
// given trash basename.
func (c *Catalog) HasRestoreRule(basename string) bool {
	for _, r := range c.RestoreRules {
		if r.TrashBasename == basename {
			return true
		}
	}
	return false
}

// ScanDirs returns every home-relative directory whose entries are
// matched by name at scan time: the library subdirs plus the group
// containers directory.
func (c *Catalog) ScanDirs() []string {
	dirs := make([]string, 0, len(c.LibrarySubdirs)+1)
	dirs = append(dirs, c.LibrarySubdirs...)
	return append(dirs, c.GroupContainersDir)
}

// patternCovers reports whether any pattern rule would match an entry
// created under the given bundle-id prefix.
func (c *Catalog) patternCovers(prefix string) bool {
	probe := prefix + ".probe"
	for _, r := range c.PatternRestoreRules {
		if ok, err := filepath.Match(r.Pattern, probe); err == nil && ok {
			return true
		}
	}
	return false
}

// MatchesShared reports whether an entry name identifies vendor-owned
// shared data.
func (c *Catalog) MatchesShared(name string) bool {
	lower := strings.ToLower(name)
	for _, id := range c.SharedIdentifiers {
		if strings.Contains(lower, id) {
			return true
		}
	}
	return false
}
