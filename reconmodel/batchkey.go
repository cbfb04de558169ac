package reconmodel

import "time"

type BatchStatus string

const (
	BatchStatusStarted   BatchStatus = "STARTED"
	BatchStatusSucceeded BatchStatus = "SUCCEEDED"
	BatchStatusFailed    BatchStatus = "FAILED"
)

// SyncBatchKey provides durable, store-backed idempotency for one
// adapter's fetch window within one sync cycle: (source, window_start,
// window_end). A crash mid-batch leaves it STARTED and the next cycle
// retries it instead of skipping it; a finished batch is skipped on
// replay. Unique constraint mirrors this codebase's handler-idempotency
// convention, keyed by source+window instead of business+handler+message.
type SyncBatchKey struct {
	ID          int         `gorm:"primary_key" json:"id"`
	Source      string      `gorm:"size:32;not null;index:uniq_sync_batch,unique" json:"source"`
	WindowStart time.Time   `gorm:"index:uniq_sync_batch,unique" json:"window_start"`
	WindowEnd   time.Time   `gorm:"index:uniq_sync_batch,unique" json:"window_end"`
	Status      BatchStatus `gorm:"size:20;not null;index" json:"status"`
	LastError   *string     `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SyncBatchKey) TableName() string { return "sync_batch_keys" }
