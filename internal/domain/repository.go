package domain

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error
}

// FileSystemManager handles filesystem operations.
// All probe methods swallow errors: a path that cannot be examined is
// treated as absent / zero-sized, never as a fatal condition.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// IsDir reports whether path exists and is a directory.
	IsDir(path string) bool

	// SizeOf returns the recursive byte size of path. A plain file
	// contributes its own size; unreadable subpaths contribute zero.
	SizeOf(path string) int64

	// ListDir returns the entry names in dir, or nil if unreadable.
	ListDir(dir string) []string

	// Move renames src to dst, falling back to copy+delete across
	// filesystems. Parent directories of dst must already exist.
	Move(src, dst string) error

	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error

	// Remove deletes a single file (not recursive).
	Remove(path string) error

	// Chmod changes the permission bits of path.
	Chmod(path string, mode uint32) error

	// WriteEmptyFile creates an empty regular file at path.
	WriteEmptyFile(path string) error

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string

	// HomeDir returns the user's home directory.
	HomeDir() string
}

// ServiceManager handles launchd service operations. Every method is
// best-effort from the caller's point of view: a service that is not
// loaded is a no-op, not an error condition worth aborting for.
type ServiceManager interface {
	// LoadedLabels returns the labels in the live service table whose
	// name contains the filter (case-insensitive).
	LoadedLabels(filter string) ([]string, error)

	// Deactivate boots a service out of its domain by label.
	Deactivate(domain ServiceDomain, label string) error

	// Unload is the unstructured fallback when no label can be read
	// from the config file.
	Unload(configPath string) error

	// Activate loads a service from its config path.
	Activate(configPath string) error

	// ReadLabel extracts the Label from a launchd plist, or "" if it
	// cannot be read.
	ReadLabel(configPath string) string

	// DomainTarget renders the launchctl target for a domain, e.g.
	// "system" or "gui/501". Needed when deactivation commands are
	// batched for the elevated runner.
	DomainTarget(domain ServiceDomain) string
}

// ElevatedRunner executes a batch of commands with administrator
// rights in a single invocation, prompting the operator at most once.
// A dismissed prompt fails the whole batch.
type ElevatedRunner interface {
	RunBatch(commands []ElevatedCommand) error
}

// Trasher moves a path into the OS trash facility.
// Implementation: Finder on macOS; callers fall back to a manual move
// into the trash directory when it fails.
type Trasher interface {
	MoveToTrash(path string) error
}

// Scanner walks the catalog against the live system and produces a
// fresh Finding list. Read-only with respect to the filesystem.
type Scanner interface {
	Scan() []Finding
}

// Remover relocates selected findings into the trash holding area.
// Findings are passed by pointer so the run can set their Removed flag
// after verification.
type Remover interface {
	Remove(findings []*Finding, plantBlocker bool) *RemovalResult
}

// Restorer recovers previously removed items from the trash holding
// area back to their canonical destinations.
type Restorer interface {
	Restore() *RestoreResult
}
