// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// Category classifies what kind of footprint a Finding represents.
type Category string

const (
	CategoryService     Category = "service"
	CategoryApplication Category = "application"
	CategoryData        Category = "data"
)

// ServiceDomain identifies which launchd domain a service lives in.
type ServiceDomain string

const (
	// DomainUser is the per-user gui domain (LaunchAgents).
	DomainUser ServiceDomain = "gui"
	// DomainSystem is the system domain (LaunchDaemons).
	DomainSystem ServiceDomain = "system"
)

// ServiceDescriptor is a persistent-service definition from the catalog:
// a login agent or system daemon the vendor installs.
type ServiceDescriptor struct {
	ConfigPath        string // plist path, ~ expandable
	Domain            ServiceDomain
	RequiresElevation bool
}

// ApplicationDescriptor describes an installed application and the rules
// for locating its per-user data.
type ApplicationDescriptor struct {
	DisplayName       string
	InstallPath       string
	BundleIDPrefixes  []string // matched against entry names in library subdirs
	ExtraDataPaths    []string // fixed data paths outside the prefix rules
	RequiresElevation bool
}

// SharedDataRule names vendor infrastructure not owned by any single
// application. Shared paths are claimed only after every application has
// claimed its own data.
type SharedDataRule struct {
	PathOrPrefix      string
	RequiresElevation bool
}

// Finding is one discovered, possibly-removable logical item.
// Findings are rebuilt from scratch on every scan and never persisted.
type Finding struct {
	DisplayName       string
	Category          Category
	Paths             []string
	ServiceLabels     []string // loaded launchd labels, service findings only
	Exists            bool
	Selected          bool
	Removed           bool
	SizeBytes         int64
	Detail            string
	RequiresElevation bool
}

// RestoreRule maps a recognizable trashed basename back to its canonical
// destination. Every path the remover can relocate must have one.
type RestoreRule struct {
	TrashBasename     string
	Destination       string // ~ expandable
	RequiresElevation bool
}

// PatternRestoreRule recovers data entries whose exact names are only
// known at scan time (bundle-id prefix matches). Pattern is a
// filepath.Match glob against the trashed basename with any collision
// suffix stripped; the first matching rule decides the destination
// directory.
type PatternRestoreRule struct {
	Pattern           string
	DestinationDir    string // ~ expandable
	RequiresElevation bool
}

// ElevatedCommand is one structured command destined for the single
// elevated batch. Serialization into a shell invocation happens in the
// infra layer, never here.
type ElevatedCommand struct {
	Args []string
}

// RemovalPhase tracks progress through a removal run.
type RemovalPhase string

const (
	PhaseReady               RemovalPhase = "ready"
	PhaseStoppingProcesses   RemovalPhase = "stopping_processes"
	PhaseUnloadingServices   RemovalPhase = "unloading_services"
	PhaseRequestingPrivilege RemovalPhase = "requesting_privilege"
	PhaseMovingFiles         RemovalPhase = "moving_files"
	PhaseVerifying           RemovalPhase = "verifying"
	PhaseDone                RemovalPhase = "done"
)

// RemovalResult captures what happened during a single removal run.
// Every step is best-effort; these counters are the only feedback.
type RemovalResult struct {
	KilledPIDs      []int
	UnloadedCount   int
	MovedCount      int
	ErrorCount      int
	ElevatedCount   int  // commands in the elevated batch
	ElevatedRan     bool // whether the batch was invoked at all
	ElevatedOK      bool
	BlockerPlanted  bool
	RemovedFindings int
	ExecutedAt      time.Time
	DurationMs      int64
}

// RestoreResult captures what happened during a restore run.
type RestoreResult struct {
	RestoredCount  int
	SkippedCount   int
	ErrorCount     int
	ElevatedRan    bool
	ElevatedOK     bool
	BlockerCleared bool
	ExecutedAt     time.Time
	DurationMs     int64
}
