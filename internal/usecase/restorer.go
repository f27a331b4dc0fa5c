package usecase

import (
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/isolson/remove-google-macos/internal/catalog"
	"github.com/isolson/remove-google-macos/internal/domain"
)

// RestorerImpl implements domain.Restorer: it reverses a removal by
// recovering trashed entries back to their canonical destinations and
// reactivating services. Like removal, every per-item operation is
// best-effort and only aggregate counters surface.
type RestorerImpl struct {
	catalog  *catalog.Catalog
	fs       domain.FileSystemManager
	svc      domain.ServiceManager
	runner   domain.ElevatedRunner
	logger   *zap.Logger
	trashDir string
}

// NewRestorer creates a restore executor reading from trashDir.
func NewRestorer(
	cat *catalog.Catalog,
	fs domain.FileSystemManager,
	svc domain.ServiceManager,
	runner domain.ElevatedRunner,
	trashDir string,
	logger *zap.Logger,
) domain.Restorer {
	return &RestorerImpl{
		catalog:  cat,
		fs:       fs,
		svc:      svc,
		runner:   runner,
		logger:   logger,
		trashDir: trashDir,
	}
}

// Restore recovers everything recognizable in the trash holding area.
// An empty trash is not an error: the run reports zero restores and
// touches nothing. Callers should rescan afterwards.
func (r *RestorerImpl) Restore() *domain.RestoreResult {
	start := time.Now()
	result := &domain.RestoreResult{ExecutedAt: start}

	// The blocker goes first: restored directories may need to be
	// created at the very path the placeholder occupies.
	r.clearBlocker(result)

	entries := r.fs.ListDir(r.trashDir)
	home := r.fs.HomeDir()
	consumed := make(map[string]bool)
	restoredDests := make(map[string]bool)

	var batch []domain.ElevatedCommand
	pendingElevated := 0

	recoverEntry := func(entry, dest string, elevated bool) {
		src := filepath.Join(r.trashDir, entry)
		if r.fs.Exists(dest) {
			// Never overwrite live data.
			r.logger.Info("destination already exists, skipping",
				zap.String("dest", dest))
			result.SkippedCount++
			return
		}
		if elevated || !underDir(dest, home) {
			batch = append(batch,
				domain.ElevatedCommand{Args: []string{"mkdir", "-p", filepath.Dir(dest)}},
				domain.ElevatedCommand{Args: []string{"mv", src, dest}},
			)
			pendingElevated++
			consumed[entry] = true
			restoredDests[dest] = true
			return
		}
		if err := r.fs.MkdirAll(filepath.Dir(dest)); err != nil {
			r.logger.Warn("cannot create parent", zap.String("dest", dest), zap.Error(err))
			result.ErrorCount++
			return
		}
		if err := r.fs.Move(src, dest); err != nil {
			r.logger.Warn("failed to restore path",
				zap.String("entry", entry),
				zap.String("dest", dest),
				zap.Error(err))
			result.ErrorCount++
			return
		}
		result.RestoredCount++
		consumed[entry] = true
		restoredDests[dest] = true
	}

	for _, rule := range r.catalog.RestoreRules {
		entry, ok := bestTrashMatch(entries, consumed, rule.TrashBasename)
		if !ok {
			continue
		}
		recoverEntry(entry, r.fs.ExpandHome(rule.Destination), rule.RequiresElevation)
	}

	// Data entries with scan-time names. Removal prefixes these with the
	// base of the directory they were found in, so they go back to that
	// exact directory. Entries without the marker (native-trashed, or
	// from an earlier build) fall back to the pattern table's fixed
	// destinations.
	for _, entry := range entries {
		if consumed[entry] {
			continue
		}
		base, _, _ := splitTrashName(entry)
		if tag, name, marked := splitOriginName(base); marked {
			if dir, known := r.originDir(tag); known && r.vendorEntryName(name) {
				recoverEntry(entry, filepath.Join(dir, name), false)
				continue
			}
		}
		for _, pr := range r.catalog.PatternRestoreRules {
			ok, err := filepath.Match(pr.Pattern, base)
			if err != nil || !ok {
				continue
			}
			recoverEntry(entry, filepath.Join(r.fs.ExpandHome(pr.DestinationDir), base), pr.RequiresElevation)
			break
		}
	}

	// Privileged service activation rides in the same batch, after the
	// moves that put its config file back.
	var userActivations []string
	for _, svc := range r.catalog.Services {
		path := r.fs.ExpandHome(svc.ConfigPath)
		if !r.fs.Exists(path) && !restoredDests[path] {
			continue
		}
		if svc.RequiresElevation {
			batch = append(batch, domain.ElevatedCommand{
				Args: []string{"launchctl", "load", path},
			})
		} else {
			userActivations = append(userActivations, path)
		}
	}

	if len(batch) > 0 {
		result.ElevatedRan = true
		if err := r.runner.RunBatch(batch); err != nil {
			r.logger.Warn("elevated batch failed", zap.Int("commands", len(batch)), zap.Error(err))
			result.ErrorCount++
		} else {
			result.ElevatedOK = true
			result.RestoredCount += pendingElevated
		}
	}

	for _, path := range userActivations {
		if err := r.svc.Activate(path); err != nil {
			// Best-effort: already-loaded services land here.
			r.logger.Warn("service activation failed", zap.String("path", path), zap.Error(err))
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// clearBlocker reverses the reinstall blocker: restore write permission
// first, then delete. A directory at the blocker path is real restored
// data, not a placeholder, and is left alone.
func (r *RestorerImpl) clearBlocker(result *domain.RestoreResult) {
	path := r.fs.ExpandHome(r.catalog.BlockerPath)
	if !r.fs.Exists(path) || r.fs.IsDir(path) {
		return
	}
	if err := r.fs.Chmod(path, 0o644); err != nil {
		r.logger.Warn("cannot unlock blocker", zap.String("path", path), zap.Error(err))
		result.ErrorCount++
		return
	}
	if err := r.fs.Remove(path); err != nil {
		r.logger.Warn("cannot remove blocker", zap.String("path", path), zap.Error(err))
		result.ErrorCount++
		return
	}
	// Planting creates the parent directory. If it is now empty, drop it
	// too so the trashed original can move back to that path.
	_ = r.fs.Remove(filepath.Dir(path))
	result.BlockerCleared = true
	r.logger.Info("reinstall blocker removed", zap.String("path", path))
}

// originDir resolves a source-directory marker back to the scanned
// directory it names, or reports that no scan dir carries that base.
func (r *RestorerImpl) originDir(tag string) (string, bool) {
	for _, sub := range r.catalog.ScanDirs() {
		if filepath.Base(sub) == tag {
			return filepath.Join(r.fs.HomeDir(), sub), true
		}
	}
	return "", false
}

// vendorEntryName reports whether a scan-time entry name is one the
// engine could have removed: a pattern-rule match or a shared-sweep
// name. Anything else in the trash is not ours to move.
func (r *RestorerImpl) vendorEntryName(name string) bool {
	for _, pr := range r.catalog.PatternRestoreRules {
		if ok, err := filepath.Match(pr.Pattern, name); err == nil && ok {
			return true
		}
	}
	return r.catalog.MatchesShared(name)
}

// bestTrashMatch finds the trash entry for a basename: the exact name
// or any all-digits suffixed variant. Among several suffixed matches
// the most recent (largest stamp) wins; the unsuffixed entry is treated
// as the oldest since it was the first occupant of the name.
func bestTrashMatch(entries []string, consumed map[string]bool, base string) (string, bool) {
	found := false
	var best string
	var bestStamp int64 = -1

	for _, entry := range entries {
		if consumed[entry] {
			continue
		}
		b, stamp, suffixed := splitTrashName(entry)
		if entry != base && (b != base || !suffixed) {
			continue
		}
		if !suffixed {
			stamp = -1
		}
		if !found || stamp > bestStamp {
			found = true
			best = entry
			bestStamp = stamp
		}
	}
	return best, found
}

// Ensure RestorerImpl implements domain.Restorer.
var _ domain.Restorer = (*RestorerImpl)(nil)
