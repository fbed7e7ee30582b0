package model

import (
	"encoding/json"
	"time"
)

// Audience restricts who a flag may be served to, before any rollout math.
type Audience string

const (
	AudienceAll             Audience = "all"
	AudienceRestrictedGroup Audience = "restricted-group"
	AudienceAdminOnly       Audience = "admin-only"
)

// Group is the session-level cohort reported by the auth layer.
type Group string

const (
	GroupGuest     Group = "guest"
	GroupMember    Group = "member"
	GroupBetaGroup Group = "betaGroup"
	GroupAdmin     Group = "admin"
)

// FlagDefinition is one entry of the flag catalog. Definitions are immutable
// after the catalog is loaded; a reload replaces the whole catalog.
type FlagDefinition struct {
	Key               string          `json:"key"`
	HumanName         string          `json:"humanName"`
	Enabled           bool            `json:"enabled"`
	Audience          Audience        `json:"audience"`
	RolloutPercentage int             `json:"rolloutPercentage"`
	Targeting         json.RawMessage `json:"targeting,omitempty"`
}

// UserContext identifies the current session. Set once at session start.
type UserContext struct {
	UserID string `json:"userId"`
	Group  Group  `json:"group"`
}

// UsageRecord is one fire-and-forget flag usage event.
type UsageRecord struct {
	Timestamp      time.Time      `json:"timestamp"`
	UserID         string         `json:"userId"`
	Group          Group          `json:"group"`
	FlagKey        string         `json:"flagKey"`
	Action         string         `json:"action"`
	CatalogVersion string         `json:"catalogVersion"`
	Context        map[string]any `json:"context,omitempty"`
}

// RuntimeSnapshot is a point-in-time reading of runtime resource counters.
// All fields are read before the snapshot is appended anywhere; a snapshot
// is never stored half-populated.
type RuntimeSnapshot struct {
	Timestamp             time.Time `json:"timestamp"`
	UsedHeapBytes         uint64    `json:"usedHeapBytes"`
	TotalHeapBytes        uint64    `json:"totalHeapBytes"`
	HeapLimitBytes        uint64    `json:"heapLimitBytes"`
	TrackedComponentCount int       `json:"trackedComponentCount"`
	ActiveListenerCount   int       `json:"activeListenerCount"`
	NodeCount             int       `json:"nodeCount"`
}

// Severity of a Finding, assigned once at creation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FindingKind is the closed set of leak and threat classes.
type FindingKind string

const (
	FindingHeapGrowth       FindingKind = "heap_growth"
	FindingHeapPressure     FindingKind = "heap_pressure"
	FindingListenerCount    FindingKind = "listener_count"
	FindingOrphanedListener FindingKind = "orphaned_listener"
	FindingNodeGrowth       FindingKind = "node_growth"
	FindingNodeCount        FindingKind = "node_count"
	FindingTimerCount       FindingKind = "timer_count"
	FindingIntervalCount    FindingKind = "interval_count"
	FindingStaleComponent   FindingKind = "stale_component"
	FindingInjectionInput   FindingKind = "injection_input"
	FindingRateLimited      FindingKind = "rate_limited"
	FindingMutationThreat   FindingKind = "mutation_threat"
)

// Finding is a structured record emitted by a detector.
type Finding struct {
	ID         string         `json:"id"`
	Kind       FindingKind    `json:"kind"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	Timestamp  time.Time      `json:"timestamp"`
	Details    map[string]any `json:"details,omitempty"`
	Resolved   bool           `json:"resolved"`
	AssignedTo string         `json:"assignedTo,omitempty"`
}

// CheckStatus is the outcome of one named readiness check.
type CheckStatus string

const (
	CheckPass          CheckStatus = "pass"
	CheckFail          CheckStatus = "fail"
	CheckWarning       CheckStatus = "warning"
	CheckNotConfigured CheckStatus = "not_configured"
)

// CheckResult is one named verification inside a report. A check marked
// Blocker alone prevents a positive verdict regardless of overall score.
type CheckResult struct {
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Status   CheckStatus `json:"status"`
	Severity Severity    `json:"severity"`
	Blocker  bool        `json:"blocker"`
	Message  string      `json:"message,omitempty"`
}

// ReportKind selects the check battery and pass threshold.
type ReportKind string

const (
	ReportTest           ReportKind = "test"
	ReportQA             ReportKind = "qa"
	ReportProduction     ReportKind = "production"
	ReportBetaCompletion ReportKind = "beta"
)

// Report is a write-once readiness snapshot.
type Report struct {
	ID              string        `json:"id"`
	Kind            ReportKind    `json:"kind"`
	Timestamp       time.Time     `json:"timestamp"`
	Version         string        `json:"version"`
	Score           float64       `json:"score"`
	Passed          bool          `json:"passed"`
	Checks          []CheckResult `json:"checks"`
	BlockingReasons []string      `json:"blockingReasons"`
	Recommendations []string      `json:"recommendations"`
}
