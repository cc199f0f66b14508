package core

import "time"

// ErrorDetail is the boundary error envelope's error object, modeled on the
// teacher's ACME ProblemDetails convention (type+detail) but keyed to this
// system's error-kind taxonomy instead.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the boundary response shape every JSON response carries:
// success plus, on failure, a typed error.
type Envelope struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// UploadResponse is returned from POST /upload/{ldif|masterlist|certificate}.
type UploadResponse struct {
	Envelope
	UploadID string `json:"uploadId,omitempty"`
}

// ProgressStage enumerates the ordered SSE transitions of one ingestion.
type ProgressStage string

const (
	StageConnected           ProgressStage = "connected"
	StageParsingStarted      ProgressStage = "PARSING_STARTED"
	StageParsingCompleted    ProgressStage = "PARSING_COMPLETED"
	StageValidationStarted   ProgressStage = "VALIDATION_STARTED"
	StageDBSavingStarted     ProgressStage = "DB_SAVING_STARTED"
	StageDBSavingCompleted   ProgressStage = "DB_SAVING_COMPLETED"
	StageLDAPSavingStarted   ProgressStage = "LDAP_SAVING_STARTED"
	StageLDAPSavingCompleted ProgressStage = "LDAP_SAVING_COMPLETED"
	StageCompleted           ProgressStage = "COMPLETED"
	StageFailed              ProgressStage = "FAILED"
)

// stagePercentage is the fixed percentage assigned to each stage
// transition.
var stagePercentage = map[ProgressStage]int{
	StageConnected:           0,
	StageParsingStarted:      10,
	StageParsingCompleted:    50,
	StageValidationStarted:   55,
	StageDBSavingStarted:     72,
	StageDBSavingCompleted:   85,
	StageLDAPSavingStarted:   87,
	StageLDAPSavingCompleted: 100,
	StageCompleted:           100,
	StageFailed:              0,
}

// Percentage returns the fixed completion percentage for the stage.
func (s ProgressStage) Percentage() int { return stagePercentage[s] }

// ProgressEvent is one SSE-shaped progress notification emitted by the
// ingestion pipeline. The boundary HTTP layer (out of scope here) is
// responsible for framing this as a text/event-stream message; this module
// only produces the events on a channel.
type ProgressEvent struct {
	UploadID           string                 `json:"uploadId"`
	Stage              ProgressStage          `json:"stage"`
	Percentage         int                    `json:"percentage"`
	ProcessedCount     int                    `json:"processedCount"`
	TotalCount         int                    `json:"totalCount"`
	CurrentCertificate map[string]string      `json:"currentCertificate,omitempty"`
	Statistics         map[string]int         `json:"statistics,omitempty"`
	ErrorMessage       string                 `json:"errorMessage,omitempty"`
	At                 time.Time              `json:"at"`
}

// PaVerifyRequest is the JSON body of POST /pa/verify.
type PaVerifyRequest struct {
	SOD         []byte            `json:"sod"`
	DataGroups  map[int][]byte    `json:"dataGroups"`
	DocumentNumber string         `json:"documentNumber,omitempty"`
	Country     string            `json:"country,omitempty"`
	RequesterID string            `json:"requesterId,omitempty"`
}

// PaVerifyResponse is the JSON body returned from POST /pa/verify.
type PaVerifyResponse struct {
	Envelope
	Verification *PaVerification `json:"verification,omitempty"`
}

// SyncStatusResponse is returned from GET /sync/status.
type SyncStatusResponse struct {
	Envelope
	LastRun   *ReconciliationSummary `json:"lastRun,omitempty"`
	InFlight  bool                   `json:"inFlight"`
}

// SyncReconcileResponse is returned from POST /sync/reconcile.
type SyncReconcileResponse struct {
	Envelope
	Summary *ReconciliationSummary `json:"summary,omitempty"`
}
