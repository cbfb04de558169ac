package reconapi

import (
	"context"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
	"bitbucket.org/mmdatafocus/reconsvc/reconstore"
)

// listSyncStates and listSyncRuns thinly wrap the reconstore repository
// functions so SyncStatus/SyncHistory in queries.go stay in terms of a
// context-scoped *gorm.DB, matching the other read functions of this
// package.
func listSyncStates(ctx context.Context, db *gorm.DB) ([]reconmodel.SyncState, error) {
	return reconstore.ListSyncStates(db.WithContext(ctx))
}

func listSyncRuns(ctx context.Context, db *gorm.DB, limit, offset int) ([]reconmodel.SyncRun, error) {
	return reconstore.ListSyncRuns(db.WithContext(ctx), limit, offset)
}
