package reconmodel

import "time"

const (
	SyncStatusOK      = "ok"
	SyncStatusError   = "error"
	SyncStatusSkipped = "skipped"
)

// SyncState is one row per source key, holding the most recent sync
// snapshot. Read by sync_status() and the degraded-mode banner logic.
type SyncState struct {
	Source     string    `gorm:"primary_key;size:32" json:"source"`
	LastSyncAt time.Time `json:"last_sync_at"`
	LastCount  int       `json:"last_count"`
	Status     string    `gorm:"size:16;not null;default:ok" json:"status"`
	LastError  *string   `gorm:"type:text" json:"last_error"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SyncState) TableName() string { return "sync_state" }

const (
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusPartial = "partial"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusSkipped = "skipped"
)

// SyncRun records one scheduler cycle's outcome, supplementing the
// per-source SyncState snapshot with a history an operator can page
// through (see SPEC_FULL §12).
type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	Status        string     `gorm:"size:16;not null" json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	EmailCount    int        `json:"email_count"`
	InvoiceCount  int        `json:"invoice_count"`
	FundingCount  int        `json:"funding_count"`
	PaymentCount  int        `json:"payment_count"`
	LinksApplied  int        `json:"links_applied"`
	ErrorCount    int        `json:"error_count"`
	ErrorsJSON    []byte     `gorm:"type:json" json:"errors"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (SyncRun) TableName() string { return "sync_runs" }
