package reconapi

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
	"bitbucket.org/mmdatafocus/reconsvc/reconstore"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	if err := reconmodel.MigrateTables(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Use(reconstore.NewAuditGuardPlugin()); err != nil {
		t.Fatalf("install audit guard: %v", err)
	}
	return db
}

func seedRecord(t *testing.T, db *gorm.DB, nvc, matchStatus, tenant string, amount float64) {
	t.Helper()
	a := decimal.NewFromFloat(amount)
	rec := reconmodel.ReconciliationRecord{
		NvcCode:       nvc,
		MatchStatus:   matchStatus,
		InvoiceAmount: &a,
		InvoiceTenant: &tenant,
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("seed record %s: %v", nvc, err)
	}
}

func TestQueue_FiltersByMatchStatusAndTenant(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedRecord(t, db, "NVC-1", string(reconmodel.StatusAmountMismatch), "acme", 100)
	seedRecord(t, db, "NVC-2", string(reconmodel.StatusFull4Way), "acme", 200)
	seedRecord(t, db, "NVC-3", string(reconmodel.StatusAmountMismatch), "other", 300)

	page, err := Queue(ctx, db, QueueFilter{MatchStatus: string(reconmodel.StatusAmountMismatch), Tenant: "acme"}, "", 50, 0)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if page.Total != 1 || len(page.Records) != 1 || page.Records[0].NvcCode != "NVC-1" {
		t.Fatalf("Queue filter mismatch: total=%d records=%v", page.Total, page.Records)
	}
}

func TestQueue_DefaultSortSurfacesMismatchesBeforeResolved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedRecord(t, db, "NVC-RESOLVED", string(reconmodel.StatusResolved), "acme", 100)
	seedRecord(t, db, "NVC-MISMATCH", string(reconmodel.StatusAmountMismatch), "acme", 100)

	page, err := Queue(ctx, db, QueueFilter{}, "", 50, 0)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(page.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page.Records))
	}
	if page.Records[0].NvcCode != "NVC-MISMATCH" {
		t.Fatalf("expected amount_mismatch row first in default priority order, got %s", page.Records[0].NvcCode)
	}
}

func TestSummary_CountsPartitionAllRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedRecord(t, db, "NVC-1", string(reconmodel.StatusAmountMismatch), "acme", 100)
	seedRecord(t, db, "NVC-2", string(reconmodel.StatusFull4Way), "acme", 200)
	seedRecord(t, db, "NVC-3", string(reconmodel.StatusAmountMismatch), "acme", 300)

	s, err := Summary(ctx, db)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Total != 3 {
		t.Fatalf("Total = %d, want 3", s.Total)
	}
	var sum int64
	for _, c := range s.Counts {
		sum += c
	}
	if sum != s.Total {
		t.Fatalf("sum of bucket counts %d != Total %d", sum, s.Total)
	}
	if s.Counts[string(reconmodel.StatusAmountMismatch)] != 2 {
		t.Fatalf("amount_mismatch count = %d, want 2", s.Counts[string(reconmodel.StatusAmountMismatch)])
	}
}

func TestRecord_NotFoundReturnsGormError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := Record(ctx, db, "does-not-exist"); err != gorm.ErrRecordNotFound {
		t.Fatalf("Record on missing nvc: err = %v, want gorm.ErrRecordNotFound", err)
	}
}

func TestCrossSearch_UnknownSourceIsRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CrossSearch(ctx, db, CrossSearchParams{Source: "not-a-source"}); err != gorm.ErrInvalidField {
		t.Fatalf("CrossSearch unknown source: err = %v, want gorm.ErrInvalidField", err)
	}
}

func TestCrossSearch_InvoicesByAmountRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	invoices := []reconmodel.CachedInvoice{
		{NvcCode: "NVC-1", Amount: decimal.NewFromFloat(50), Tenant: "acme"},
		{NvcCode: "NVC-2", Amount: decimal.NewFromFloat(150), Tenant: "acme"},
	}
	for _, inv := range invoices {
		if err := db.Create(&inv).Error; err != nil {
			t.Fatalf("seed invoice: %v", err)
		}
	}

	min := 100.0
	res, err := CrossSearch(ctx, db, CrossSearchParams{Source: "invoices", AmountMin: &min})
	if err != nil {
		t.Fatalf("CrossSearch: %v", err)
	}
	out, ok := res.([]reconmodel.CachedInvoice)
	if !ok || len(out) != 1 || out[0].NvcCode != "NVC-2" {
		t.Fatalf("CrossSearch amount_min=100 = %v, want only NVC-2", res)
	}
}

func TestSyncStatus_ReflectsSeededSyncState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	state := reconmodel.SyncState{
		Source:     "emails",
		LastSyncAt: time.Now().UTC(),
		LastCount:  12,
		Status:     "ok",
	}
	if err := db.Create(&state).Error; err != nil {
		t.Fatalf("seed sync state: %v", err)
	}

	views, err := SyncStatus(ctx, db)
	if err != nil {
		t.Fatalf("SyncStatus: %v", err)
	}
	if len(views) != 1 || views[0].Source != "emails" || views[0].LastCount != 12 {
		t.Fatalf("SyncStatus = %+v, want one emails view with LastCount=12", views)
	}
}
