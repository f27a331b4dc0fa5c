// Package main is the CLI entry point for rgm (remove Google from macOS).
// The CLI is a thin presentation surface over the engine: it issues
// scan/remove/restore calls, renders findings, and owns every
// confirmation prompt.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isolson/remove-google-macos/internal/catalog"
	"github.com/isolson/remove-google-macos/internal/domain"
	"github.com/isolson/remove-google-macos/internal/infra"
	"github.com/isolson/remove-google-macos/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var (
	jsonOutput  bool
	removeAll   bool
	skipConfirm bool
	noBlocker   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rgm",
	Short: "Find and remove Google software from this Mac",
	Long: `rgm locates Google's footprint on macOS - the Keystone/GoogleUpdater
background services, installed applications, and their data directories -
and removes the selected items into the trash, where they stay
recoverable. 'rgm restore' puts everything back.

Removal needs administrator rights only for system-rooted paths, and
prompts at most once per run.`,
	Version: Version,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Google services, applications, and data",
	Long:  `Walks the catalog against the live filesystem and service table and reports what exists, with sizes. Read-only.`,
	RunE:  runScan,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every location the catalog knows about",
	RunE:  runList,
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove selected Google items into the trash",
	Long: `Scans, lets you pick which findings to remove, then stops processes,
unloads services, and moves the selected paths into the trash. All
privileged operations are batched into a single elevation prompt.

Unless --no-blocker is given, a permission-locked placeholder is left
at the updater's home directory so it cannot silently reinstall.`,
	RunE: runRemove,
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore previously removed items from the trash",
	Long: `Finds recognizable entries in the trash (including collision-renamed
ones), moves them back to their canonical locations, removes the
reinstall blocker, and reloads services whose config files are back.`,
	RunE: runRestore,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

func init() {
	scanCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output findings as JSON")
	removeCmd.Flags().BoolVar(&removeAll, "all", false, "Remove everything found, skip selection")
	removeCmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "Skip confirmation prompt")
	removeCmd.Flags().BoolVar(&noBlocker, "no-blocker", false, "Do not plant the reinstall blocker")
	restoreCmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "Skip confirmation prompt")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(versionCmd)
}

// engine bundles the wired-up components for one invocation.
type engine struct {
	catalog  *catalog.Catalog
	scanner  domain.Scanner
	remover  domain.Remover
	restorer domain.Restorer
	logger   *zap.Logger
}

func newEngine() (*engine, error) {
	cat, err := catalog.NewGoogleCatalog()
	if err != nil {
		// The only fatal error in the system: a broken catalog is a
		// packaging bug, not a runtime condition.
		return nil, fmt.Errorf("catalog: %w", err)
	}

	logger := createLogger()
	fs := infra.NewFileSystemManager()
	svc := infra.NewLaunchdManager()
	proc := infra.NewProcessManager()
	trasher := infra.NewFinderTrasher()
	runner := infra.NewOsascriptRunner(logger)
	trashDir := filepath.Join(fs.HomeDir(), ".Trash")

	return &engine{
		catalog:  cat,
		scanner:  usecase.NewScanner(cat, fs, svc, logger),
		remover:  usecase.NewRemover(cat, fs, svc, proc, trasher, runner, trashDir, logger),
		restorer: usecase.NewRestorer(cat, fs, svc, runner, trashDir, logger),
		logger:   logger,
	}, nil
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	foundStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	notFoundStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	elevStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func runScan(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.logger.Sync() }()

	findings := eng.scanner.Scan()

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(findings)
	}

	printFindings(findings)
	return nil
}

func printFindings(findings []domain.Finding) {
	fmt.Println(titleStyle.Render("\nGoogle footprint on this Mac"))

	var total int64
	for _, f := range findings {
		marker := notFoundStyle.Render("absent ")
		if f.Exists {
			marker = foundStyle.Render("present")
			total += f.SizeBytes
		}
		line := fmt.Sprintf("  %s  %-28s %s", marker, f.DisplayName, f.Detail)
		if f.Exists && f.RequiresElevation {
			line += elevStyle.Render("  [admin]")
		}
		fmt.Println(line)
	}
	if total > 0 {
		fmt.Printf("\n  reclaimable: %s\n", usecase.HumanSize(total))
	}
	fmt.Println()
}

func runList(cmd *cobra.Command, args []string) error {
	cat, err := catalog.NewGoogleCatalog()
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	fmt.Println(titleStyle.Render("\nServices"))
	for _, s := range cat.Services {
		fmt.Printf("  %s (%s)\n", s.ConfigPath, s.Domain)
	}

	fmt.Println(titleStyle.Render("\nApplications"))
	for _, a := range cat.Applications {
		fmt.Printf("  %s\n", a.DisplayName)
		fmt.Printf("    install: %s\n", a.InstallPath)
		for _, p := range a.BundleIDPrefixes {
			fmt.Printf("    data:    %s*\n", p)
		}
		for _, p := range a.ExtraDataPaths {
			fmt.Printf("    data:    %s\n", p)
		}
	}

	fmt.Println(titleStyle.Render("\nShared data"))
	for _, s := range cat.SharedRules {
		fmt.Printf("  %s\n", s.PathOrPrefix)
	}

	fmt.Println(titleStyle.Render("\nProcesses"))
	for _, p := range cat.ProcessNames {
		fmt.Printf("  %s\n", p)
	}
	fmt.Println()
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.logger.Sync() }()

	findings := eng.scanner.Scan()
	printFindings(findings)

	refs := make([]*domain.Finding, 0, len(findings))
	for i := range findings {
		if findings[i].Exists {
			refs = append(refs, &findings[i])
		}
	}
	if len(refs) == 0 {
		fmt.Println("Nothing to remove.")
		return nil
	}

	if !removeAll {
		if err := selectFindings(refs); err != nil {
			return err
		}
	}

	selected := 0
	for _, f := range refs {
		if f.Selected {
			selected++
		}
	}
	if selected == 0 {
		fmt.Println("Nothing selected.")
		return nil
	}

	if !skipConfirm {
		ok, err := confirm(fmt.Sprintf("Move %d item(s) to the trash?", selected))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	result := eng.remover.Remove(refs, !noBlocker)

	fmt.Printf("\nKilled %d process(es), unloaded %d service(s), moved %d path(s)",
		len(result.KilledPIDs), result.UnloadedCount, result.MovedCount)
	if result.ErrorCount > 0 {
		fmt.Printf(", %d error(s) - see log", result.ErrorCount)
	}
	fmt.Println()
	if result.ElevatedRan && !result.ElevatedOK {
		fmt.Println("The elevated batch did not run; system-rooted items were left in place.")
	}
	if result.BlockerPlanted {
		fmt.Println("Reinstall blocker planted.")
	}
	fmt.Printf("%d of %d selected item(s) fully removed.\n", result.RemovedFindings, selected)
	return nil
}

// selectFindings shows a multiselect over the existing findings and
// updates their Selected flags.
func selectFindings(refs []*domain.Finding) error {
	options := make([]huh.Option[int], 0, len(refs))
	for i, f := range refs {
		label := fmt.Sprintf("%s  (%s)", f.DisplayName, f.Detail)
		options = append(options, huh.NewOption(label, i).Selected(f.Selected))
	}

	var picked []int
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[int]().
			Title("Select items to remove").
			Options(options...).
			Value(&picked),
	))
	if err := form.Run(); err != nil {
		return err
	}

	for _, f := range refs {
		f.Selected = false
	}
	for _, i := range picked {
		refs[i].Selected = true
	}
	return nil
}

func confirm(prompt string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(prompt).Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.logger.Sync() }()

	if !skipConfirm {
		ok, err := confirm("Restore previously removed Google items from the trash?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	result := eng.restorer.Restore()

	fmt.Printf("\nRestored %d item(s), skipped %d", result.RestoredCount, result.SkippedCount)
	if result.ErrorCount > 0 {
		fmt.Printf(", %d error(s) - see log", result.ErrorCount)
	}
	fmt.Println()
	if result.BlockerCleared {
		fmt.Println("Reinstall blocker removed.")
	}

	// Rescan so the reported state reflects the new reality.
	printFindings(eng.scanner.Scan())
	return nil
}

func createLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"/var/tmp/rgm.log"}
	config.ErrorOutputPaths = []string{"/var/tmp/rgm.error.log"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("rgm %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	}
}
