package reconengine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bitbucket.org/mmdatafocus/reconsvc/reconmatch"
	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
	"bitbucket.org/mmdatafocus/reconsvc/reconstore"
	"bitbucket.org/mmdatafocus/reconsvc/reconsync"
)

// newTestStore opens an in-memory sqlite database, migrates it, and
// installs the audit guard, mirroring reconstore.Open without touching
// disk — reconstore.New exists specifically for this.
func newTestStore(t *testing.T) *reconstore.Store {
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
	return reconstore.New(db)
}

func testTolerances() reconmatch.Tolerances {
	return reconmatch.Tolerances{
		AmountTolerance: decimal.NewFromFloat(0.01),
		DateWindowDays:  3,
		AutoMatchConf:   0.80,
		SuggestConf:     0.50,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store := newTestStore(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(store, testTolerances(), reconmatch.AliasTable{}, logger)
}

func TestApplyInvoiceThenOutbound_ReachesFull4WayViaRemittanceAndInbound(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	now := time.Now().UTC()

	// Leg 2: invoice.
	if applied, errs := e.ApplyInvoiceBatch(ctx, []reconsync.InvoiceRecord{
		{NvcCode: "NVC-1", Amount: decimal.NewFromFloat(500), Status: 1, Tenant: "acme", PayrunRef: "PR-1", Currency: "USD"},
	}); applied != 1 || len(errs) != 0 {
		t.Fatalf("ApplyInvoiceBatch: applied=%d errs=%v", applied, errs)
	}

	rec, err := reconstore.GetByNVC(ctx, e.Store.DB(), "NVC-1")
	if err != nil {
		t.Fatalf("GetByNVC: %v", err)
	}
	if rec.MatchStatus != string(reconmodel.StatusInvoiceOnly) {
		t.Fatalf("after invoice only, match_status = %s, want %s", rec.MatchStatus, reconmodel.StatusInvoiceOnly)
	}

	// Leg 1: remittance email with a matching line item.
	if applied, errs := e.ApplyEmailBatch(ctx, []reconsync.EmailRecord{
		{
			ID: "email-1", Source: "gmail", Subject: "remit", Sender: "agency@example.com",
			EmailDate:       now,
			RemittanceTotal: decimal.NewFromFloat(500),
			AgencyName:      "Acme Agency",
			Lines: []reconsync.RemittanceLine{
				{NvcCode: "NVC-1", Amount: decimal.NewFromFloat(500), Contractor: "Acme Agency"},
			},
		},
	}); applied != 1 || len(errs) != 0 {
		t.Fatalf("ApplyEmailBatch: applied=%d errs=%v", applied, errs)
	}

	rec, err = reconstore.GetByNVC(ctx, e.Store.DB(), "NVC-1")
	if err != nil {
		t.Fatalf("GetByNVC: %v", err)
	}
	if rec.MatchStatus != string(reconmodel.Status2WayMatched) {
		t.Fatalf("after remittance+invoice, match_status = %s, want %s", rec.MatchStatus, reconmodel.Status2WayMatched)
	}

	// Leg 4: outbound payment.
	if applied, errs := e.ApplyOutboundBatch(ctx, []reconsync.OutboundPaymentRecord{
		{
			Reference: "acme.NVC-1", Tenant: "acme", NvcCode: "NVC-1",
			Amount: decimal.NewFromFloat(500), Currency: "USD", Recipient: "Acme Agency",
			RecipientCountry: "US", Status: "paid", PaymentDate: now,
		},
	}); applied != 1 || len(errs) != 0 {
		t.Fatalf("ApplyOutboundBatch: applied=%d errs=%v", applied, errs)
	}

	rec, err = reconstore.GetByNVC(ctx, e.Store.DB(), "NVC-1")
	if err != nil {
		t.Fatalf("GetByNVC: %v", err)
	}
	if rec.MatchStatus != string(reconmodel.Status3WayNoFunding) {
		t.Fatalf("after remittance+invoice+payment, match_status = %s, want %s", rec.MatchStatus, reconmodel.Status3WayNoFunding)
	}

	// Leg 3: received payment, linked via the lump-sum pass, should
	// propagate and push the row to full_4way.
	if applied, errs := e.ApplyInboundBatch(ctx, []reconsync.InboundPaymentRecord{
		{
			ID: "rp-1", SubAccountID: "sub-1", Amount: decimal.NewFromFloat(500),
			Currency: "USD", PaymentDate: now, Status: "settled",
			PayerInfoRaw: "ACME AGENCY DES:PAYROLL ID:999 WIRE TYPE:CTX",
		},
	}); applied != 1 || len(errs) != 0 {
		t.Fatalf("ApplyInboundBatch: applied=%d errs=%v", applied, errs)
	}

	result, err := e.RunLumpSumPass(ctx, now.Add(-24*time.Hour), now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("RunLumpSumPass: %v", err)
	}
	if result.AutoLinked != 1 {
		t.Fatalf("RunLumpSumPass: AutoLinked = %d, want 1 (result=%+v)", result.AutoLinked, result)
	}
	if result.NVCsUpdated != 1 {
		t.Fatalf("RunLumpSumPass: NVCsUpdated = %d, want 1", result.NVCsUpdated)
	}

	rec, err = reconstore.GetByNVC(ctx, e.Store.DB(), "NVC-1")
	if err != nil {
		t.Fatalf("GetByNVC: %v", err)
	}
	if rec.MatchStatus != string(reconmodel.StatusFull4Way) {
		t.Fatalf("after lump-sum propagation, match_status = %s, want %s", rec.MatchStatus, reconmodel.StatusFull4Way)
	}
	if rec.ReceivedPaymentId == nil || *rec.ReceivedPaymentId != "rp-1" {
		t.Fatalf("expected received_payment_id to be propagated onto NVC-1, got %v", rec.ReceivedPaymentId)
	}
}

func TestRunLumpSumPass_WeakCandidateIsNotLinked(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	now := time.Now().UTC()

	if _, errs := e.ApplyEmailBatch(ctx, []reconsync.EmailRecord{
		{
			ID: "email-2", Source: "gmail", Subject: "remit", Sender: "agency@example.com",
			EmailDate: now, RemittanceTotal: decimal.NewFromFloat(1200), AgencyName: "Omnicom Media Group",
		},
	}); len(errs) != 0 {
		t.Fatalf("ApplyEmailBatch: errs=%v", errs)
	}

	if _, errs := e.ApplyInboundBatch(ctx, []reconsync.InboundPaymentRecord{
		{
			ID: "rp-2", SubAccountID: "sub-2", Amount: decimal.NewFromFloat(5000),
			Currency: "USD", PaymentDate: now.AddDate(0, 0, -30), Status: "settled",
			PayerInfoRaw: "UNRELATED ENTITY LLC",
		},
	}); len(errs) != 0 {
		t.Fatalf("ApplyInboundBatch: errs=%v", errs)
	}

	result, err := e.RunLumpSumPass(ctx, now.Add(-60*24*time.Hour), now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("RunLumpSumPass: %v", err)
	}
	if result.AutoLinked != 0 {
		t.Fatalf("expected no auto-link for a weak candidate, got AutoLinked=%d", result.AutoLinked)
	}
}

func TestReclassify_StickyResolvedSurvivesManualFlagUntilNewMismatch(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if _, errs := e.ApplyInvoiceBatch(ctx, []reconsync.InvoiceRecord{
		{NvcCode: "NVC-9", Amount: decimal.NewFromFloat(100), Status: 1, Tenant: "acme", Currency: "USD"},
	}); len(errs) != 0 {
		t.Fatalf("ApplyInvoiceBatch: errs=%v", errs)
	}

	db := e.Store.DB()
	if err := db.Model(&reconmodel.ReconciliationRecord{}).
		Where("nvc_code = ?", "NVC-9").
		Update("match_status", string(reconmodel.StatusResolved)).Error; err != nil {
		t.Fatalf("force resolved: %v", err)
	}

	if err := e.Reclassify(ctx, "NVC-9"); err != nil {
		t.Fatalf("Reclassify: %v", err)
	}
	rec, err := reconstore.GetByNVC(ctx, db, "NVC-9")
	if err != nil {
		t.Fatalf("GetByNVC: %v", err)
	}
	if rec.MatchStatus != string(reconmodel.StatusResolved) {
		t.Fatalf("resolved row with no conflicting legs should stay resolved, got %s", rec.MatchStatus)
	}

	// A remittance line disagreeing with the invoice amount should flip
	// the sticky-resolved row to amount_mismatch.
	if _, errs := e.ApplyEmailBatch(ctx, []reconsync.EmailRecord{
		{
			ID: "email-9", Source: "gmail", Subject: "remit", Sender: "x@example.com",
			EmailDate: time.Now().UTC(), RemittanceTotal: decimal.NewFromFloat(150),
			Lines: []reconsync.RemittanceLine{{NvcCode: "NVC-9", Amount: decimal.NewFromFloat(150)}},
		},
	}); len(errs) != 0 {
		t.Fatalf("ApplyEmailBatch: errs=%v", errs)
	}

	rec, err = reconstore.GetByNVC(ctx, db, "NVC-9")
	if err != nil {
		t.Fatalf("GetByNVC: %v", err)
	}
	if rec.MatchStatus != string(reconmodel.StatusAmountMismatch) {
		t.Fatalf("resolved row with a new disagreeing leg should flip to amount_mismatch, got %s", rec.MatchStatus)
	}
}
