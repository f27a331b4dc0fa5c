package infra

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/isolson/remove-google-macos/internal/domain"
)

// LaunchdManagerImpl implements domain.ServiceManager via launchctl.
type LaunchdManagerImpl struct {
	uid int
}

// NewLaunchdManager creates a launchd service manager for the current user.
func NewLaunchdManager() domain.ServiceManager {
	return &LaunchdManagerImpl{uid: os.Getuid()}
}

// LoadedLabels returns the labels in the live service table whose name
// contains the filter (case-insensitive). A service can be loaded in
// memory with its plist already deleted, so this is checked separately
// from plist existence.
func (m *LaunchdManagerImpl) LoadedLabels(filter string) ([]string, error) {
	out, err := exec.Command("launchctl", "list").Output()
	if err != nil {
		return nil, fmt.Errorf("launchctl list: %w", err)
	}

	var labels []string
	filterLower := strings.ToLower(filter)
	for _, line := range strings.Split(string(out), "\n") {
		// Format: PID\tStatus\tLabel
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		label := fields[2]
		if strings.Contains(strings.ToLower(label), filterLower) {
			labels = append(labels, label)
		}
	}
	return labels, nil
}

// Deactivate boots a service out of its domain by label. This is the
// structured form, preferred when a label is known.
func (m *LaunchdManagerImpl) Deactivate(dom domain.ServiceDomain, label string) error {
	target := m.DomainTarget(dom) + "/" + label
	return exec.Command("launchctl", "bootout", target).Run()
}

// Unload is the unstructured fallback for a config file whose label
// cannot be read.
func (m *LaunchdManagerImpl) Unload(configPath string) error {
	return exec.Command("launchctl", "unload", configPath).Run()
}

// Activate loads a service from its config path.
// Note: `launchctl load` is deprecated but still works on macOS.
// Modern approach would use `launchctl bootstrap`, but `load` is
// simpler and sufficient for this use case.
func (m *LaunchdManagerImpl) Activate(configPath string) error {
	return exec.Command("launchctl", "load", configPath).Run()
}

var labelPattern = regexp.MustCompile(`(?s)<key>\s*Label\s*</key>\s*<string>\s*([^<]+?)\s*</string>`)

// ReadLabel extracts the Label from a launchd plist, or "" if the file
// cannot be read or holds no label (e.g. binary plist).
func (m *LaunchdManagerImpl) ReadLabel(configPath string) string {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return ""
	}
	match := labelPattern.FindSubmatch(content)
	if match == nil {
		return ""
	}
	return string(match[1])
}

// DomainTarget renders the launchctl domain target for bootout, e.g.
// "system" or "gui/501".
func (m *LaunchdManagerImpl) DomainTarget(dom domain.ServiceDomain) string {
	if dom == domain.DomainSystem {
		return "system"
	}
	return fmt.Sprintf("gui/%d", m.uid)
}

// Ensure LaunchdManagerImpl implements domain.ServiceManager.
var _ domain.ServiceManager = (*LaunchdManagerImpl)(nil)
