package reconstore

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
)

// RecordSyncOK upserts a source's sync_state row after a successful
// fetch, matching sync_service's per-source "ok" bookkeeping.
func RecordSyncOK(tx *gorm.DB, source string, count int) error {
	return upsertSyncState(tx, source, count, reconmodel.SyncStatusOK, nil)
}

// RecordSyncError upserts a source's sync_state row after a failed
// fetch; the record is retained (not reset to zero) so degraded-mode
// reads still have a last-known count.
func RecordSyncError(tx *gorm.DB, source string, err error) error {
	msg := err.Error()
	return upsertSyncState(tx, source, 0, reconmodel.SyncStatusError, &msg)
}

func RecordSyncSkipped(tx *gorm.DB, source string) error {
	return upsertSyncState(tx, source, 0, reconmodel.SyncStatusSkipped, nil)
}

func upsertSyncState(tx *gorm.DB, source string, count int, status string, lastError *string) error {
	row := reconmodel.SyncState{
		Source:     source,
		LastSyncAt: time.Now().UTC(),
		LastCount:  count,
		Status:     status,
		LastError:  lastError,
	}
	columns := []string{"last_sync_at", "last_count", "status", "last_error"}
	if status == reconmodel.SyncStatusError {
		// Keep the last-known count from the previous successful sync.
		columns = []string{"last_sync_at", "status", "last_error"}
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error
}

func GetSyncState(tx *gorm.DB, source string) (*reconmodel.SyncState, error) {
	var s reconmodel.SyncState
	if err := tx.Where("source = ?", source).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func ListSyncStates(tx *gorm.DB) ([]reconmodel.SyncState, error) {
	var out []reconmodel.SyncState
	err := tx.Order("source").Find(&out).Error
	return out, err
}

// CreateSyncRun inserts a new running SyncRun row at cycle start.
func CreateSyncRun(tx *gorm.DB, startedAt time.Time) (*reconmodel.SyncRun, error) {
	run := reconmodel.SyncRun{Status: reconmodel.SyncRunStatusRunning, StartedAt: startedAt}
	if err := tx.Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// FinishSyncRun closes out a SyncRun with its final status and counts.
func FinishSyncRun(tx *gorm.DB, id uint, status string, counts map[string]int, runErrors []string) error {
	now := time.Now().UTC()
	errJSON, _ := json.Marshal(runErrors)
	return tx.Model(&reconmodel.SyncRun{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        status,
		"finished_at":   &now,
		"email_count":   counts["emails"],
		"invoice_count": counts["invoices"],
		"funding_count": counts["received_payments"],
		"payment_count": counts["outbound_payments"],
		"links_applied": counts["links_applied"],
		"error_count":   len(runErrors),
		"errors_json":   errJSON,
	}).Error
}

// ListSyncRuns returns recent sync runs, most recent first, for
// sync_history() (§12 supplement).
func ListSyncRuns(tx *gorm.DB, limit, offset int) ([]reconmodel.SyncRun, error) {
	var out []reconmodel.SyncRun
	err := tx.Order("id DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}
