package history

import "time"

// Deployment statuses recorded in the audit trail.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// Record represents a single deployment attempt in the database.
type Record struct {
	ID              int64      `json:"id"`
	DeployID        string     `json:"deploy_id"`
	Status          string     `json:"status"` // success, failed, error, rejected
	Stage           *string    `json:"stage,omitempty"`
	ExitCode        *int       `json:"exit_code,omitempty"`
	Stderr          *string    `json:"stderr,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	RemoteAddr      string     `json:"remote_addr"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Summary is the payload served by the history endpoint.
type Summary struct {
	Latest *Record  `json:"latest,omitempty"`
	Recent []Record `json:"recent"`
}
