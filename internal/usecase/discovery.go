// Package usecase contains application business logic: scanning the
// catalog against the live system, partitioning by privilege, and the
// removal/restore executors.
package usecase

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/isolson/remove-google-macos/internal/catalog"
	"github.com/isolson/remove-google-macos/internal/domain"
)

// claimSet tracks paths already attributed to a Finding during one
// scan. Applications claim before the shared sweep runs, so shared
// infrastructure never double-reports data owned by a specific app.
type claimSet map[string]struct{}

func (c claimSet) claim(path string) { c[path] = struct{}{} }

func (c claimSet) claimed(path string) bool {
	_, ok := c[path]
	return ok
}

// ScannerImpl implements domain.Scanner. Read-only with respect to the
// filesystem; the only external query is the live launchd table.
type ScannerImpl struct {
	catalog *catalog.Catalog
	fs      domain.FileSystemManager
	svc     domain.ServiceManager
	logger  *zap.Logger
}

// NewScanner creates a scanner over the given catalog.
func NewScanner(
	cat *catalog.Catalog,
	fs domain.FileSystemManager,
	svc domain.ServiceManager,
	logger *zap.Logger,
) domain.Scanner {
	return &ScannerImpl{catalog: cat, fs: fs, svc: svc, logger: logger}
}

// Scan produces a fresh Finding list. Every scan rebuilds findings from
// scratch; partial filesystem failures are treated as "not present" and
// never abort the pass.
func (s *ScannerImpl) Scan() []domain.Finding {
	claims := make(claimSet)
	findings := make([]domain.Finding, 0, len(s.catalog.Applications)+2)

	findings = append(findings, s.scanServices(claims))

	for _, app := range s.catalog.Applications {
		findings = append(findings, s.scanApplication(app, claims))
	}

	// Shared sweep runs last: applications claim first, shared infra
	// claims the remainder.
	findings = append(findings, s.scanShared(claims))

	return findings
}

// scanServices aggregates every vendor service into one Finding. A
// service counts as present if its plist exists or its label is still
// loaded in the live table (the plist may already be deleted).
func (s *ScannerImpl) scanServices(claims claimSet) domain.Finding {
	f := domain.Finding{
		DisplayName: s.catalog.VendorName + " update services",
		Category:    domain.CategoryService,
	}

	home := s.fs.HomeDir()
	for _, svc := range s.catalog.Services {
		path := s.fs.ExpandHome(svc.ConfigPath)
		if !s.fs.Exists(path) {
			continue
		}
		f.Paths = append(f.Paths, path)
		claims.claim(path)
		f.SizeBytes += s.fs.SizeOf(path)
		if !strings.HasPrefix(path, home+string(filepath.Separator)) {
			f.RequiresElevation = true
		}
	}

	labels, err := s.svc.LoadedLabels(s.catalog.ServiceFilter)
	if err != nil {
		s.logger.Warn("service table query failed", zap.Error(err))
	}
	f.ServiceLabels = labels

	f.Exists = len(f.Paths) > 0 || len(f.ServiceLabels) > 0
	f.Selected = f.Exists
	switch {
	case !f.Exists:
		f.Detail = "not installed"
	case len(f.ServiceLabels) > 0:
		f.Detail = fmt.Sprintf("%d config file(s), %d loaded", len(f.Paths), len(f.ServiceLabels))
	default:
		f.Detail = fmt.Sprintf("%d config file(s)", len(f.Paths))
	}
	return f
}

// scanApplication probes one application descriptor: the install path,
// bundle-id prefix matches in the fixed library subdirs, the extra data
// paths, and matching group containers. Every matched data path is
// claimed so the shared sweep cannot re-report it.
func (s *ScannerImpl) scanApplication(app domain.ApplicationDescriptor, claims claimSet) domain.Finding {
	f := domain.Finding{
		DisplayName: app.DisplayName,
		Category:    domain.CategoryApplication,
	}

	appExists := s.fs.Exists(app.InstallPath)
	var appSize int64
	if appExists {
		appSize = s.fs.SizeOf(app.InstallPath)
	}

	dataPaths := s.matchDataPaths(app, claims)
	var dataSize int64
	for _, p := range dataPaths {
		dataSize += s.fs.SizeOf(p)
	}

	switch {
	case appExists && len(dataPaths) == 0:
		f.Exists = true
		f.Paths = []string{app.InstallPath}
		f.SizeBytes = appSize
		f.RequiresElevation = app.RequiresElevation
		f.Detail = fmt.Sprintf("app %s", HumanSize(appSize))

	case appExists && len(dataPaths) > 0:
		f.Exists = true
		f.Paths = append([]string{app.InstallPath}, dataPaths...)
		f.SizeBytes = appSize + dataSize
		f.RequiresElevation = app.RequiresElevation
		f.Detail = fmt.Sprintf("app %s + %s data", HumanSize(appSize), HumanSize(dataSize))

	case !appExists && len(dataPaths) > 0:
		// Orphaned data: the app is gone but its footprint remains.
		// Data lives under the user home, so no elevation is needed.
		f.Exists = true
		f.Paths = dataPaths
		f.SizeBytes = dataSize
		f.Detail = fmt.Sprintf("app removed, %s data remains", HumanSize(dataSize))

	default:
		f.Detail = "not installed"
	}
	f.Selected = f.Exists

	if appExists {
		claims.claim(app.InstallPath)
	}
	return f
}

// matchDataPaths collects the existing data paths belonging to one
// application and claims each of them.
func (s *ScannerImpl) matchDataPaths(app domain.ApplicationDescriptor, claims claimSet) []string {
	var paths []string
	home := s.fs.HomeDir()

	add := func(p string) {
		if claims.claimed(p) {
			return
		}
		claims.claim(p)
		paths = append(paths, p)
	}

	for _, subdir := range s.catalog.LibrarySubdirs {
		dir := filepath.Join(home, subdir)
		for _, name := range s.fs.ListDir(dir) {
			for _, prefix := range app.BundleIDPrefixes {
				if strings.HasPrefix(name, prefix) {
					add(filepath.Join(dir, name))
					break
				}
			}
		}
	}

	groupDir := filepath.Join(home, s.catalog.GroupContainersDir)
	for _, name := range s.fs.ListDir(groupDir) {
		for _, prefix := range app.BundleIDPrefixes {
			if strings.Contains(name, prefix) {
				add(filepath.Join(groupDir, name))
				break
			}
		}
	}

	for _, extra := range app.ExtraDataPaths {
		p := s.fs.ExpandHome(extra)
		if s.fs.Exists(p) {
			add(p)
		}
	}

	return paths
}

// scanShared collects vendor infrastructure not owned by any single
// application: the fixed shared rules plus unclaimed vendor-named
// entries in the library subdirs and group containers.
func (s *ScannerImpl) scanShared(claims claimSet) domain.Finding {
	f := domain.Finding{
		DisplayName: s.catalog.VendorName + " shared data",
		Category:    domain.CategoryData,
	}

	add := func(p string, elevated bool) {
		if claims.claimed(p) {
			return
		}
		claims.claim(p)
		f.Paths = append(f.Paths, p)
		f.SizeBytes += s.fs.SizeOf(p)
		if elevated {
			f.RequiresElevation = true
		}
	}

	for _, rule := range s.catalog.SharedRules {
		p := s.fs.ExpandHome(rule.PathOrPrefix)
		if s.fs.Exists(p) {
			add(p, rule.RequiresElevation)
		}
	}

	home := s.fs.HomeDir()
	for _, subdir := range s.catalog.ScanDirs() {
		dir := filepath.Join(home, subdir)
		for _, name := range s.fs.ListDir(dir) {
			if s.catalog.MatchesShared(name) {
				add(filepath.Join(dir, name), false)
			}
		}
	}

	f.Exists = len(f.Paths) > 0
	f.Selected = f.Exists
	if f.Exists {
		f.Detail = fmt.Sprintf("%d item(s), %s", len(f.Paths), HumanSize(f.SizeBytes))
	} else {
		f.Detail = "not installed"
	}
	return f
}

// HumanSize renders a byte count the way Finder does, trimming the
// fraction when it is zero ("2 MB", "1.5 GB").
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	s := fmt.Sprintf("%.1f", float64(n)/float64(div))
	s = strings.TrimSuffix(s, ".0")
	return fmt.Sprintf("%s %cB", s, "KMGTPE"[exp])
}
