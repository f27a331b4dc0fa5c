//go:build integration

package integration

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/isolson/remove-google-macos/internal/catalog"
	"github.com/isolson/remove-google-macos/internal/domain"
	"github.com/isolson/remove-google-macos/internal/infra"
	"github.com/isolson/remove-google-macos/internal/usecase"
)

// stubServiceManager keeps launchd out of the loop: the round-trip
// exercises real filesystem moves, not the live service table.
type stubServiceManager struct {
	deactivated []string
	activated   []string
}

func (s *stubServiceManager) LoadedLabels(filter string) ([]string, error) { return nil, nil }
func (s *stubServiceManager) Deactivate(dom domain.ServiceDomain, label string) error {
	s.deactivated = append(s.deactivated, label)
	return nil
}
func (s *stubServiceManager) Unload(configPath string) error { return nil }
func (s *stubServiceManager) Activate(configPath string) error {
	s.activated = append(s.activated, configPath)
	return nil
}
func (s *stubServiceManager) ReadLabel(configPath string) string {
	return "com.google.keystone.agent"
}
func (s *stubServiceManager) DomainTarget(dom domain.ServiceDomain) string {
	if dom == domain.DomainSystem {
		return "system"
	}
	return "gui/501"
}

type stubProcessManager struct{}

func (stubProcessManager) FindByName(pattern string) ([]int, error) { return nil, nil }
func (stubProcessManager) Kill(pid int) error                       { return nil }

// failingTrasher forces the manual trash-dir fallback so the round-trip
// goes through the collision-suffix naming code.
type failingTrasher struct{}

func (failingTrasher) MoveToTrash(path string) error {
	return os.ErrPermission
}

type stubRunner struct{ batches int }

func (r *stubRunner) RunBatch(commands []domain.ElevatedCommand) error {
	r.batches++
	return nil
}

// testCatalog keeps every path under the temp home so real filesystem
// operations never need elevation.
func testCatalog() *catalog.Catalog {
	c := &catalog.Catalog{
		VendorName:         "Google",
		ServiceFilter:      "google",
		ProcessNames:       []string{"ksfetch"},
		LibrarySubdirs:     []string{"Library/Caches", "Library/WebKit"},
		GroupContainersDir: "Library/Group Containers",
		SharedIdentifiers:  []string{"google"},
		BlockerPath:        "~/Library/Google/GoogleSoftwareUpdate",
		Services: []domain.ServiceDescriptor{
			{ConfigPath: "~/Library/LaunchAgents/com.google.keystone.agent.plist", Domain: domain.DomainUser},
		},
		Applications: []domain.ApplicationDescriptor{
			{
				DisplayName:      "Google Chrome",
				InstallPath:      "~/Applications/Google Chrome.app",
				BundleIDPrefixes: []string{"com.google.Chrome"},
				ExtraDataPaths:   []string{"~/Library/Application Support/Google/Chrome"},
			},
		},
		SharedRules: []domain.SharedDataRule{
			{PathOrPrefix: "~/Library/Google"},
		},
		RestoreRules: []domain.RestoreRule{
			{TrashBasename: "com.google.keystone.agent.plist", Destination: "~/Library/LaunchAgents/com.google.keystone.agent.plist"},
			{TrashBasename: "Google Chrome.app", Destination: "~/Applications/Google Chrome.app"},
			{TrashBasename: "Chrome", Destination: "~/Library/Application Support/Google/Chrome"},
			{TrashBasename: "Google", Destination: "~/Library/Google"},
		},
		PatternRestoreRules: []domain.PatternRestoreRule{
			{Pattern: "com.google.*", DestinationDir: "~/Library/Caches"},
		},
	}
	Expect(c.Validate()).To(Succeed())
	return c
}

var _ = Describe("Remove and restore round-trip", func() {
	var (
		home     string
		trashDir string
		fs       domain.FileSystemManager
		svc      *stubServiceManager
		runner   *stubRunner
		cat      *catalog.Catalog
		logger   *zap.Logger
	)

	seed := func(rel, content string) string {
		path := filepath.Join(home, rel)
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	scan := func() []*domain.Finding {
		findings := usecase.NewScanner(cat, fs, svc, logger).Scan()
		refs := make([]*domain.Finding, 0, len(findings))
		for i := range findings {
			findings[i].Selected = findings[i].Exists
			refs = append(refs, &findings[i])
		}
		return refs
	}

	remove := func(refs []*domain.Finding, blocker bool) *domain.RemovalResult {
		return usecase.NewRemover(cat, fs, svc, stubProcessManager{}, failingTrasher{}, runner, trashDir, logger).
			Remove(refs, blocker)
	}

	restore := func() *domain.RestoreResult {
		return usecase.NewRestorer(cat, fs, svc, runner, trashDir, logger).Restore()
	}

	BeforeEach(func() {
		var err error
		home, err = os.MkdirTemp("", "rgm-integration-*")
		Expect(err).NotTo(HaveOccurred())

		trashDir = filepath.Join(home, ".Trash")
		fs = infra.NewFileSystemManagerWithHome(home)
		svc = &stubServiceManager{}
		runner = &stubRunner{}
		cat = testCatalog()
		logger = zap.NewNop()

		seed("Library/LaunchAgents/com.google.keystone.agent.plist", "<plist/>")
		seed("Applications/Google Chrome.app/Contents/Info.plist", "chrome")
		seed("Library/Application Support/Google/Chrome/Default/Preferences", "profile")
		// Same basename in two library subdirs, the usual Chrome footprint.
		seed("Library/Caches/com.google.Chrome/index", "cache")
		seed("Library/WebKit/com.google.Chrome/store", "webkit")
		seed("Library/Google/GoogleSoftwareUpdate/ksadmin", "updater")
	})

	AfterEach(func() {
		os.RemoveAll(home)
	})

	Describe("Remove", func() {
		It("relocates every selected path into the trash holding area", func() {
			refs := scan()
			result := remove(refs, false)

			Expect(result.ErrorCount).To(BeZero())
			Expect(result.MovedCount).To(Equal(6))

			for _, rel := range []string{
				"Library/LaunchAgents/com.google.keystone.agent.plist",
				"Applications/Google Chrome.app",
				"Library/Application Support/Google/Chrome",
				"Library/Caches/com.google.Chrome",
				"Library/WebKit/com.google.Chrome",
				"Library/Google",
			} {
				Expect(filepath.Join(home, rel)).NotTo(BeAnExistingFile())
			}

			entries, err := os.ReadDir(trashDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(6))
		})

		It("deactivates the service before moving its config", func() {
			refs := scan()
			remove(refs, false)

			Expect(svc.deactivated).To(ContainElement("com.google.keystone.agent"))
		})

		It("never invokes elevation when all work is under the home directory", func() {
			refs := scan()
			remove(refs, false)

			Expect(runner.batches).To(BeZero())
		})

		It("plants a zero-byte locked blocker when asked", func() {
			refs := scan()
			result := remove(refs, true)

			Expect(result.BlockerPlanted).To(BeTrue())
			blocker := filepath.Join(home, "Library/Google/GoogleSoftwareUpdate")
			info, err := os.Stat(blocker)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeFalse())
			Expect(info.Size()).To(BeZero())
		})

		It("suffixes a colliding trash name instead of overwriting", func() {
			Expect(os.MkdirAll(trashDir, 0o755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(trashDir, "Google"), []byte("earlier removal"), 0o644)).To(Succeed())

			refs := scan()
			result := remove(refs, false)
			Expect(result.ErrorCount).To(BeZero())

			earlier, err := os.ReadFile(filepath.Join(trashDir, "Google"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(earlier)).To(Equal("earlier removal"))

			entries, err := os.ReadDir(trashDir)
			Expect(err).NotTo(HaveOccurred())
			var suffixed bool
			for _, e := range entries {
				if e.Name() != "Google" && filepath.Ext(e.Name()) == "" &&
					len(e.Name()) > len("Google_") && e.Name()[:len("Google_")] == "Google_" {
					suffixed = true
				}
			}
			Expect(suffixed).To(BeTrue(), "expected a Google_<stamp> entry")
		})
	})

	Describe("Restore", func() {
		It("puts everything back and reactivates the service", func() {
			refs := scan()
			Expect(remove(refs, true).ErrorCount).To(BeZero())

			result := restore()
			Expect(result.ErrorCount).To(BeZero())
			Expect(result.BlockerCleared).To(BeTrue())
			Expect(result.RestoredCount).To(Equal(6))
			Expect(svc.activated).To(HaveLen(1))

			content, err := os.ReadFile(filepath.Join(home, "Library/Application Support/Google/Chrome/Default/Preferences"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("profile"))

			entries, _ := os.ReadDir(trashDir)
			Expect(entries).To(BeEmpty())
		})

		It("returns same-named bundle data to the directory each entry came from", func() {
			refs := scan()
			Expect(remove(refs, false).ErrorCount).To(BeZero())
			Expect(restore().ErrorCount).To(BeZero())

			content, err := os.ReadFile(filepath.Join(home, "Library/Caches/com.google.Chrome/index"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("cache"))

			content, err = os.ReadFile(filepath.Join(home, "Library/WebKit/com.google.Chrome/store"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("webkit"))
		})

		It("rescan after restore sees the footprint again", func() {
			before := scan()
			var present int
			for _, f := range before {
				if f.Exists {
					present++
				}
			}

			Expect(remove(before, true).ErrorCount).To(BeZero())
			Expect(restore().ErrorCount).To(BeZero())

			after := scan()
			var back int
			for _, f := range after {
				if f.Exists {
					back++
				}
			}
			Expect(back).To(Equal(present))
		})

		It("restores the most recent copy when the name was suffixed", func() {
			Expect(os.MkdirAll(trashDir, 0o755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(trashDir, "Google"), []byte("stale"), 0o644)).To(Succeed())

			refs := scan()
			Expect(remove(refs, false).ErrorCount).To(BeZero())

			Expect(restore().ErrorCount).To(BeZero())

			// The fresh suffixed copy went back; the stale unsuffixed one stays.
			Expect(filepath.Join(home, "Library/Google/GoogleSoftwareUpdate/ksadmin")).To(BeAnExistingFile())
			Expect(filepath.Join(trashDir, "Google")).To(BeAnExistingFile())
		})

		It("is a no-op on an empty trash", func() {
			result := restore()
			Expect(result.RestoredCount).To(BeZero())
			Expect(result.ErrorCount).To(BeZero())
		})
	})
})
