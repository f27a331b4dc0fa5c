package usecase

import (
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/isolson/remove-google-macos/internal/catalog"
	"github.com/isolson/remove-google-macos/internal/domain"
)

// RemoverImpl implements domain.Remover: a sequential, best-effort
// state machine that stops processes, unloads services, and relocates
// paths into the trash holding area. No individual failure aborts the
// run; the result counters are the only feedback.
type RemoverImpl struct {
	catalog  *catalog.Catalog
	fs       domain.FileSystemManager
	svc      domain.ServiceManager
	proc     domain.ProcessManager
	trasher  domain.Trasher
	runner   domain.ElevatedRunner
	logger   *zap.Logger
	trashDir string

	// stamp supplies the per-run collision suffix. Overridable in tests.
	stamp func() int64
}

// NewRemover creates a removal executor staging into trashDir.
func NewRemover(
	cat *catalog.Catalog,
	fs domain.FileSystemManager,
	svc domain.ServiceManager,
	proc domain.ProcessManager,
	trasher domain.Trasher,
	runner domain.ElevatedRunner,
	trashDir string,
	logger *zap.Logger,
) domain.Remover {
	return &RemoverImpl{
		catalog:  cat,
		fs:       fs,
		svc:      svc,
		proc:     proc,
		trasher:  trasher,
		runner:   runner,
		logger:   logger,
		trashDir: trashDir,
		stamp:    func() int64 { return time.Now().Unix() },
	}
}

// Remove runs the removal sequence over the selected findings.
func (r *RemoverImpl) Remove(findings []*domain.Finding, plantBlocker bool) *domain.RemovalResult {
	start := time.Now()
	result := &domain.RemovalResult{ExecutedAt: start}

	selected := make([]*domain.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Selected && f.Exists {
			selected = append(selected, f)
		}
	}

	// Privileged service commands and privileged moves share one batch
	// so the operator sees at most one elevation prompt per run.
	var batch []domain.ElevatedCommand

	r.setPhase(domain.PhaseStoppingProcesses)
	r.stopProcesses(result)

	r.setPhase(domain.PhaseUnloadingServices)
	batch = r.unloadServices(selected, batch, result)

	r.setPhase(domain.PhaseRequestingPrivilege)
	unprivileged, privileged := PartitionPaths(selected, r.fs.HomeDir())

	r.setPhase(domain.PhaseMovingFiles)
	taken := r.trashOccupancy()
	stamp := r.stamp()

	for _, path := range unprivileged {
		if !r.fs.Exists(path) {
			continue
		}
		if err := r.moveOut(path, stamp, taken); err != nil {
			r.logger.Warn("failed to move path to trash",
				zap.String("path", path),
				zap.Error(err))
			result.ErrorCount++
			continue
		}
		result.MovedCount++
	}

	batchedMoves := 0
	for _, path := range privileged {
		if !r.fs.Exists(path) {
			continue
		}
		dest := trashDestName(r.trashBase(path), stamp, func(name string) bool { return taken[name] })
		taken[dest] = true
		batch = append(batch, domain.ElevatedCommand{
			Args: []string{"mv", path, filepath.Join(r.trashDir, dest)},
		})
		batchedMoves++
	}

	result.ElevatedCount = len(batch)
	if len(batch) > 0 {
		result.ElevatedRan = true
		if err := r.runner.RunBatch(batch); err != nil {
			// A dismissed prompt fails the whole batch; the run still
			// continues to the remaining best-effort steps.
			r.logger.Warn("elevated batch failed", zap.Int("commands", len(batch)), zap.Error(err))
			result.ErrorCount++
		} else {
			result.ElevatedOK = true
			result.MovedCount += batchedMoves
		}
	}

	if plantBlocker {
		result.BlockerPlanted = r.plantBlocker()
	}

	// The freshly planted blocker (and the parent directory created to
	// hold it) is ours, not vendor residue; it must not fail
	// verification of the paths it occupies.
	blockerPath := r.fs.ExpandHome(r.catalog.BlockerPath)
	ours := func(p string) bool {
		return result.BlockerPlanted && (p == blockerPath || p == filepath.Dir(blockerPath))
	}

	r.setPhase(domain.PhaseVerifying)
	for _, f := range selected {
		f.Removed = true
		for _, p := range f.Paths {
			if r.fs.Exists(p) && !ours(p) {
				f.Removed = false
				break
			}
		}
		if f.Removed {
			result.RemovedFindings++
		}
	}

	r.setPhase(domain.PhaseDone)
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (r *RemoverImpl) setPhase(phase domain.RemovalPhase) {
	r.logger.Info("removal phase", zap.String("phase", string(phase)))
}

// stopProcesses kills every process matching the vendor process list.
// A process that is not running is not an error.
func (r *RemoverImpl) stopProcesses(result *domain.RemovalResult) {
	for _, name := range r.catalog.ProcessNames {
		pids, err := r.proc.FindByName(name)
		if err != nil {
			r.logger.Warn("process lookup failed", zap.String("name", name), zap.Error(err))
			result.ErrorCount++
			continue
		}
		for _, pid := range pids {
			if err := r.proc.Kill(pid); err != nil {
				r.logger.Warn("failed to kill process",
					zap.String("name", name),
					zap.Int("pid", pid),
					zap.Error(err))
				result.ErrorCount++
				continue
			}
			result.KilledPIDs = append(result.KilledPIDs, pid)
		}
	}
}

// unloadServices deactivates unprivileged services directly and appends
// privileged deactivations to the elevated batch. The structured
// "bootout domain/label" form is preferred when a label can be read
// from the config; otherwise the unstructured unload form is used.
func (r *RemoverImpl) unloadServices(selected []*domain.Finding, batch []domain.ElevatedCommand, result *domain.RemovalResult) []domain.ElevatedCommand {
	var serviceFinding *domain.Finding
	for _, f := range selected {
		if f.Category == domain.CategoryService {
			serviceFinding = f
			break
		}
	}
	if serviceFinding == nil {
		return batch
	}

	inSelection := make(map[string]bool, len(serviceFinding.Paths))
	for _, p := range serviceFinding.Paths {
		inSelection[p] = true
	}

	coveredLabels := make(map[string]bool)
	for _, svc := range r.catalog.Services {
		path := r.fs.ExpandHome(svc.ConfigPath)
		if !inSelection[path] {
			continue
		}
		label := r.svc.ReadLabel(path)
		if label != "" {
			coveredLabels[label] = true
		}

		if svc.RequiresElevation {
			if label != "" {
				batch = append(batch, domain.ElevatedCommand{
					Args: []string{"launchctl", "bootout", r.svc.DomainTarget(svc.Domain) + "/" + label},
				})
			} else {
				batch = append(batch, domain.ElevatedCommand{
					Args: []string{"launchctl", "unload", path},
				})
			}
			continue
		}

		var err error
		if label != "" {
			err = r.svc.Deactivate(svc.Domain, label)
		} else {
			err = r.svc.Unload(path)
		}
		if err != nil {
			// Already-unloaded services land here; best-effort.
			r.logger.Warn("service deactivation failed",
				zap.String("path", path),
				zap.Error(err))
		} else {
			result.UnloadedCount++
		}
	}

	// Labels still loaded in memory with no config file on disk.
	for _, label := range serviceFinding.ServiceLabels {
		if coveredLabels[label] {
			continue
		}
		if err := r.svc.Deactivate(domain.DomainUser, label); err != nil {
			r.logger.Warn("orphan service deactivation failed",
				zap.String("label", label),
				zap.Error(err))
		} else {
			result.UnloadedCount++
		}
	}

	return batch
}

// moveOut relocates one unprivileged path: OS-native trash first, then
// a manual move into the trash directory with collision handling.
// Entries carrying a source-directory marker skip the native trash,
// which would keep the plain basename and lose the marker.
func (r *RemoverImpl) moveOut(path string, stamp int64, taken map[string]bool) error {
	base := r.trashBase(path)
	if base == filepath.Base(path) {
		if err := r.trasher.MoveToTrash(path); err == nil {
			taken[base] = true
			return nil
		}
	}

	dest := trashDestName(base, stamp, func(name string) bool { return taken[name] })
	if err := r.fs.MkdirAll(r.trashDir); err != nil {
		return err
	}
	if err := r.fs.Move(path, filepath.Join(r.trashDir, dest)); err != nil {
		return err
	}
	taken[dest] = true
	return nil
}

// trashBase picks the trash name for a path. Paths the restore tables
// already know keep their plain basename. A name matched at scan time
// inside one of the scanned directories is prefixed with that
// directory's base, so restore can route it back to where it came from
// instead of guessing a fixed destination.
func (r *RemoverImpl) trashBase(path string) string {
	name := filepath.Base(path)
	if r.catalog.HasRestoreRule(name) {
		return name
	}
	home := r.fs.HomeDir()
	parent := filepath.Dir(path)
	for _, sub := range r.catalog.ScanDirs() {
		if parent == filepath.Join(home, sub) {
			return originTrashName(filepath.Base(sub), name)
		}
	}
	return name
}

// trashOccupancy snapshots the names already present in the trash
// directory so collision suffixes stay unique within the run.
func (r *RemoverImpl) trashOccupancy() map[string]bool {
	taken := make(map[string]bool)
	for _, name := range r.fs.ListDir(r.trashDir) {
		taken[name] = true
	}
	return taken
}

// plantBlocker occupies the vendor updater's home directory path with a
// permission-locked empty file so a reinstalling service cannot
// recreate it as a writable directory. Never overwrites: if anything
// already sits at the path, it is left alone.
func (r *RemoverImpl) plantBlocker() bool {
	path := r.fs.ExpandHome(r.catalog.BlockerPath)
	if r.fs.Exists(path) {
		r.logger.Warn("blocker path already occupied, skipping", zap.String("path", path))
		return false
	}
	if err := r.fs.MkdirAll(filepath.Dir(path)); err != nil {
		r.logger.Warn("cannot create blocker parent", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := r.fs.WriteEmptyFile(path); err != nil {
		r.logger.Warn("cannot plant blocker", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := r.fs.Chmod(path, 0); err != nil {
		r.logger.Warn("cannot lock blocker permissions", zap.String("path", path), zap.Error(err))
		return false
	}
	r.logger.Info("reinstall blocker planted", zap.String("path", path))
	return true
}

// Ensure RemoverImpl implements domain.Remover.
var _ domain.Remover = (*RemoverImpl)(nil)
