package usecase

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/isolson/remove-google-macos/internal/domain"
)

// mockFileSystem implements domain.FileSystemManager for testing.
// State is configured through fields; mutating calls update the
// existing-path map so sequences like move-then-verify behave.
type mockFileSystem struct {
	home     string
	existing map[string]bool
	dirs     map[string]bool
	listings map[string][]string
	sizes    map[string]int64

	moveErr  error
	chmodErr error

	ops     []string // chronological log of mutating operations
	moved   [][2]string
	chmods  []string
	removed []string
	written []string
}

func newMockFileSystem(home string) *mockFileSystem {
	return &mockFileSystem{
		home:     home,
		existing: make(map[string]bool),
		dirs:     make(map[string]bool),
		listings: make(map[string][]string),
		sizes:    make(map[string]int64),
	}
}

func (m *mockFileSystem) addPath(path string, size int64) {
	m.existing[path] = true
	m.sizes[path] = size
}

func (m *mockFileSystem) addDir(path string) {
	m.existing[path] = true
	m.dirs[path] = true
}

func (m *mockFileSystem) Exists(path string) bool { return m.existing[path] }
func (m *mockFileSystem) IsDir(path string) bool  { return m.dirs[path] }
func (m *mockFileSystem) SizeOf(path string) int64 {
	return m.sizes[path]
}

func (m *mockFileSystem) ListDir(dir string) []string {
	names := append([]string{}, m.listings[dir]...)
	sort.Strings(names)
	return names
}

func (m *mockFileSystem) Move(src, dst string) error {
	if m.moveErr != nil {
		return m.moveErr
	}
	m.ops = append(m.ops, "move "+src+" -> "+dst)
	m.moved = append(m.moved, [2]string{src, dst})
	delete(m.existing, src)
	m.existing[dst] = true

	srcDir, srcName := filepath.Dir(src), filepath.Base(src)
	for i, name := range m.listings[srcDir] {
		if name == srcName {
			m.listings[srcDir] = append(m.listings[srcDir][:i], m.listings[srcDir][i+1:]...)
			break
		}
	}
	dstDir := filepath.Dir(dst)
	m.listings[dstDir] = append(m.listings[dstDir], filepath.Base(dst))
	return nil
}

func (m *mockFileSystem) MkdirAll(dir string) error {
	m.existing[dir] = true
	m.dirs[dir] = true
	return nil
}

func (m *mockFileSystem) Remove(path string) error {
	if !m.existing[path] {
		return errors.New("no such file")
	}
	m.ops = append(m.ops, "remove "+path)
	m.removed = append(m.removed, path)
	delete(m.existing, path)
	return nil
}

func (m *mockFileSystem) Chmod(path string, mode uint32) error {
	if m.chmodErr != nil {
		return m.chmodErr
	}
	m.ops = append(m.ops, "chmod "+path)
	m.chmods = append(m.chmods, path)
	return nil
}

func (m *mockFileSystem) WriteEmptyFile(path string) error {
	m.ops = append(m.ops, "write "+path)
	m.written = append(m.written, path)
	m.existing[path] = true
	return nil
}

func (m *mockFileSystem) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return m.home + path[1:]
	}
	if path == "~" {
		return m.home
	}
	return path
}

func (m *mockFileSystem) HomeDir() string { return m.home }

// mockServiceManager implements domain.ServiceManager for testing.
type mockServiceManager struct {
	loadedLabels []string
	loadedErr    error
	labels       map[string]string // config path -> label

	deactivateErr error
	unloadErr     error
	activateErr   error

	deactivated []string // "domain/label"
	unloaded    []string
	activated   []string
}

func (m *mockServiceManager) LoadedLabels(filter string) ([]string, error) {
	return m.loadedLabels, m.loadedErr
}

func (m *mockServiceManager) Deactivate(dom domain.ServiceDomain, label string) error {
	if m.deactivateErr != nil {
		return m.deactivateErr
	}
	m.deactivated = append(m.deactivated, m.DomainTarget(dom)+"/"+label)
	return nil
}

func (m *mockServiceManager) Unload(configPath string) error {
	if m.unloadErr != nil {
		return m.unloadErr
	}
	m.unloaded = append(m.unloaded, configPath)
	return nil
}

func (m *mockServiceManager) Activate(configPath string) error {
	if m.activateErr != nil {
		return m.activateErr
	}
	m.activated = append(m.activated, configPath)
	return nil
}

func (m *mockServiceManager) ReadLabel(configPath string) string {
	if m.labels == nil {
		return ""
	}
	return m.labels[configPath]
}

func (m *mockServiceManager) DomainTarget(dom domain.ServiceDomain) string {
	if dom == domain.DomainSystem {
		return "system"
	}
	return "gui/501"
}

// mockProcessManager implements domain.ProcessManager for testing.
type mockProcessManager struct {
	findResult map[string][]int
	findErr    error
	killErr    error
	killedPIDs []int
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.findResult[pattern], nil
}

func (m *mockProcessManager) Kill(pid int) error {
	if m.killErr != nil {
		return m.killErr
	}
	m.killedPIDs = append(m.killedPIDs, pid)
	return nil
}

// mockRunner implements domain.ElevatedRunner for testing. An optional
// onRun hook lets tests simulate the batch's filesystem effects.
type mockRunner struct {
	err     error
	batches [][]domain.ElevatedCommand
	onRun   func([]domain.ElevatedCommand)
}

func (m *mockRunner) RunBatch(commands []domain.ElevatedCommand) error {
	m.batches = append(m.batches, commands)
	if m.err != nil {
		return m.err
	}
	if m.onRun != nil {
		m.onRun(commands)
	}
	return nil
}

// mockTrasher implements domain.Trasher. With err set it forces the
// caller onto the manual-move fallback path.
type mockTrasher struct {
	err     error
	trashed []string
	onTrash func(path string)
}

func (m *mockTrasher) MoveToTrash(path string) error {
	if m.err != nil {
		return m.err
	}
	m.trashed = append(m.trashed, path)
	if m.onTrash != nil {
		m.onTrash(path)
	}
	return nil
}

var (
	_ = (domain.FileSystemManager)((*mockFileSystem)(nil))
	_ = (domain.ServiceManager)((*mockServiceManager)(nil))
	_ = (domain.ProcessManager)((*mockProcessManager)(nil))
	_ = (domain.ElevatedRunner)((*mockRunner)(nil))
	_ = (domain.Trasher)((*mockTrasher)(nil))
)
