package reconstore

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
)

var ErrBatchInProgress = errors.New("sync batch already in progress")

// BeginSyncBatch inserts a STARTED row for (source, windowStart,
// windowEnd). If a SUCCEEDED row already exists, it returns (true, nil)
// meaning "skip safely" — this is the idempotency-ledger pattern used
// elsewhere in this codebase, keyed by source+window instead of
// business+handler+message (§4.5 idempotency bookkeeping).
func BeginSyncBatch(tx *gorm.DB, source string, windowStart, windowEnd time.Time) (skip bool, err error) {
	key := reconmodel.SyncBatchKey{
		Source:      source,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Status:      reconmodel.BatchStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, err
	}

	var existing reconmodel.SyncBatchKey
	if err := tx.Where("source = ? AND window_start = ? AND window_end = ?", source, windowStart, windowEnd).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case reconmodel.BatchStatusSucceeded:
		return true, nil
	case reconmodel.BatchStatusStarted:
		if time.Since(existing.UpdatedAt) < 5*time.Minute {
			return false, ErrBatchInProgress
		}
		return false, tx.Model(&reconmodel.SyncBatchKey{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"status": reconmodel.BatchStatusStarted, "last_error": nil}).Error
	default: // FAILED
		return false, tx.Model(&reconmodel.SyncBatchKey{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"status": reconmodel.BatchStatusStarted, "last_error": nil}).Error
	}
}

func MarkSyncBatchSucceeded(tx *gorm.DB, source string, windowStart, windowEnd time.Time) error {
	return tx.Model(&reconmodel.SyncBatchKey{}).
		Where("source = ? AND window_start = ? AND window_end = ?", source, windowStart, windowEnd).
		Updates(map[string]interface{}{"status": reconmodel.BatchStatusSucceeded, "last_error": nil}).Error
}

func MarkSyncBatchFailed(tx *gorm.DB, source string, windowStart, windowEnd time.Time, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return tx.Model(&reconmodel.SyncBatchKey{}).
		Where("source = ? AND window_start = ? AND window_end = ?", source, windowStart, windowEnd).
		Updates(map[string]interface{}{"status": reconmodel.BatchStatusFailed, "last_error": &msg}).Error
}
