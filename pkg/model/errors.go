package model

// Error codes surfaced over the admin API. Kept as plain strings so they
// marshal directly into error payloads.
const (
	FlagNotFoundErrorCode   = "FLAG_NOT_FOUND"
	ParseErrorCode          = "PARSE_ERROR"
	InvalidCatalogErrorCode = "INVALID_CATALOG"
	ReportKindErrorCode     = "UNKNOWN_REPORT_KIND"
	AlertNotFoundErrorCode  = "ALERT_NOT_FOUND"
	GeneralErrorCode        = "GENERAL_ERROR"
)

// Evaluation reasons, in the resolution response.
const (
	StaticReason         = "STATIC"
	DisabledReason       = "DISABLED"
	AudienceReason       = "AUDIENCE_MISMATCH"
	TargetingMatchReason = "TARGETING_MATCH"
	RolloutReason        = "ROLLOUT"
	ErrorReason          = "ERROR"
)
