// Package reconapi is the stateless read API plus the two manual
// mutations (§4.6, L6): pure Go functions over the store, independent
// of any transport. The gin wiring in http.go is ambient plumbing
// exposing these functions as JSON endpoints (§12 supplement); the
// domain logic lives in this file and mutations.go, not there.
package reconapi

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
)

// matchStatusPriority backs the default queue() sort order (§12
// supplement): mismatches and partial matches surface before fully
// matched or resolved rows, adapted from the original's
// CASE match_status WHEN ... ordering.
var matchStatusPriority = map[string]int{
	string(reconmodel.StatusAmountMismatch):      0,
	string(reconmodel.StatusIssue):               0,
	string(reconmodel.StatusRemittanceOnly):       1,
	string(reconmodel.StatusInvoiceOnly):          1,
	string(reconmodel.StatusPaymentOnly):          1,
	string(reconmodel.StatusUnmatched):            1,
	string(reconmodel.StatusInvoicePaymentOnly):   2,
	string(reconmodel.Status3WayAwaitingPayment):  2,
	string(reconmodel.Status3WayNoFunding):        2,
	string(reconmodel.Status2WayMatched):          2,
	string(reconmodel.StatusFull4Way):             3,
	string(reconmodel.StatusResolved):             3,
}

func queuePriorityCase() string {
	var b strings.Builder
	b.WriteString("CASE match_status ")
	for status, priority := range matchStatusPriority {
		b.WriteString("WHEN '")
		b.WriteString(status)
		b.WriteString("' THEN ")
		b.WriteString(itoa(priority))
		b.WriteString(" ")
	}
	b.WriteString("ELSE 1 END")
	return b.String()
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	return string(digits[n])
}

// QueueFilter narrows queue() by match_status, tenant, invoice status,
// and free text across nvc_code/tenant/contractor/payment recipient
// (§4.6).
type QueueFilter struct {
	MatchStatus   string
	Tenant        string
	InvoiceStatus *int
	Search        string
}

// QueuePage is one page of queue() results.
type QueuePage struct {
	Records []reconmodel.ReconciliationRecord `json:"records"`
	Total   int64                             `json:"total"`
}

// Queue lists reconciliation records filtered and paged per §4.6. When
// sort is empty, it falls back to the priority-ordered default (§12
// supplement) instead of an arbitrary or purely chronological one.
func Queue(ctx context.Context, db *gorm.DB, filter QueueFilter, sort string, limit, offset int) (QueuePage, error) {
	q := db.WithContext(ctx).Model(&reconmodel.ReconciliationRecord{})
	q = applyQueueFilter(q, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return QueuePage{}, err
	}

	if sort == "" {
		sort = queuePriorityCase() + " ASC, last_updated_at DESC"
	}
	if limit <= 0 {
		limit = 50
	}

	var records []reconmodel.ReconciliationRecord
	err := q.Order(sort).Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return QueuePage{}, err
	}
	return QueuePage{Records: records, Total: total}, nil
}

func applyQueueFilter(q *gorm.DB, filter QueueFilter) *gorm.DB {
	if filter.MatchStatus != "" {
		q = q.Where("match_status = ?", filter.MatchStatus)
	}
	if filter.Tenant != "" {
		q = q.Where("invoice_tenant = ?", filter.Tenant)
	}
	if filter.InvoiceStatus != nil {
		q = q.Where("invoice_status = ?", *filter.InvoiceStatus)
	}
	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		q = q.Where("nvc_code LIKE ? OR invoice_tenant LIKE ? OR remittance_contractor LIKE ? OR payment_recipient LIKE ?",
			term, term, term, term)
	}
	return q
}

// Record returns the single row with all four legs (§4.6 record(nvc)).
func Record(ctx context.Context, db *gorm.DB, nvc string) (*reconmodel.ReconciliationRecord, error) {
	var rec reconmodel.ReconciliationRecord
	err := db.WithContext(ctx).Where("nvc_code = ?", nvc).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SummaryResult holds a count per match_status bucket plus the total,
// so property 4 (counts partition all rows exactly) is directly
// checkable against the sum of Counts.
type SummaryResult struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64             `json:"total"`
}

// Summary returns counts per match_status (§4.6 summary()), including
// zero-count buckets for every status in the closed enumeration.
func Summary(ctx context.Context, db *gorm.DB) (SummaryResult, error) {
	out := SummaryResult{Counts: make(map[string]int64, len(reconmodel.AllStatuses()))}
	for _, s := range reconmodel.AllStatuses() {
		out.Counts[string(s)] = 0
	}

	type row struct {
		MatchStatus string
		Count       int64
	}
	var rows []row
	err := db.WithContext(ctx).Model(&reconmodel.ReconciliationRecord{}).
		Select("match_status, count(*) as count").
		Group("match_status").
		Scan(&rows).Error
	if err != nil {
		return out, err
	}
	for _, r := range rows {
		out.Counts[string(reconmodel.Normalize(reconmodel.Status(r.MatchStatus)))] += r.Count
		out.Total += r.Count
	}
	return out, nil
}

// CrossSearchParams narrows cross_search(q, source, amount_min,
// amount_max, tenant) (§4.6) to a single source's cache table.
type CrossSearchParams struct {
	Source    string // invoices | received_payments | outbound_payments | emails
	Query     string
	AmountMin *float64
	AmountMax *float64
	Tenant    string
}

// CrossSearch searches one source's cache by text and amount range.
func CrossSearch(ctx context.Context, db *gorm.DB, p CrossSearchParams) (interface{}, error) {
	d := db.WithContext(ctx)
	switch p.Source {
	case "invoices":
		q := d.Model(&reconmodel.CachedInvoice{})
		if p.Query != "" {
			q = q.Where("nvc_code LIKE ? OR tenant LIKE ?", like(p.Query), like(p.Query))
		}
		q = amountRange(q, "amount", p.AmountMin, p.AmountMax)
		if p.Tenant != "" {
			q = q.Where("tenant = ?", p.Tenant)
		}
		var out []reconmodel.CachedInvoice
		return out, q.Find(&out).Error
	case "received_payments":
		q := d.Model(&reconmodel.ReceivedPayment{})
		if p.Query != "" {
			q = q.Where("id LIKE ? OR payer_info_raw LIKE ? OR payer_normalized LIKE ?", like(p.Query), like(p.Query), like(p.Query))
		}
		q = amountRange(q, "amount", p.AmountMin, p.AmountMax)
		var out []reconmodel.ReceivedPayment
		return out, q.Find(&out).Error
	case "outbound_payments":
		q := d.Model(&reconmodel.CachedPayment{})
		if p.Query != "" {
			q = q.Where("nvc_code LIKE ? OR recipient LIKE ? OR reference LIKE ?", like(p.Query), like(p.Query), like(p.Query))
		}
		q = amountRange(q, "amount", p.AmountMin, p.AmountMax)
		if p.Tenant != "" {
			q = q.Where("tenant = ?", p.Tenant)
		}
		var out []reconmodel.CachedPayment
		return out, q.Find(&out).Error
	case "emails", "":
		q := d.Model(&reconmodel.CachedEmail{})
		if p.Query != "" {
			q = q.Where("subject LIKE ? OR sender LIKE ? OR agency_name LIKE ? OR id LIKE ?",
				like(p.Query), like(p.Query), like(p.Query), like(p.Query))
		}
		q = amountRange(q, "remittance_total", p.AmountMin, p.AmountMax)
		var out []reconmodel.CachedEmail
		return out, q.Find(&out).Error
	default:
		return nil, gorm.ErrInvalidField
	}
}

func like(s string) string { return "%" + s + "%" }

func amountRange(q *gorm.DB, column string, min, max *float64) *gorm.DB {
	if min != nil {
		q = q.Where(column+" >= ?", *min)
	}
	if max != nil {
		q = q.Where(column+" <= ?", *max)
	}
	return q
}

// SyncStatus returns the per-source {last_sync_at, last_count, status,
// error?} snapshot (§4.6 sync_status()), read from reconmodel.SyncState.
type SyncStatusView struct {
	Source     string     `json:"source"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	LastCount  int        `json:"last_count"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
}

func SyncStatus(ctx context.Context, db *gorm.DB) ([]SyncStatusView, error) {
	states, err := listSyncStates(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]SyncStatusView, 0, len(states))
	for _, s := range states {
		when := s.LastSyncAt
		out = append(out, SyncStatusView{
			Source:     s.Source,
			LastSyncAt: &when,
			LastCount:  s.LastCount,
			Status:     s.Status,
			Error:      s.LastError,
		})
	}
	return out, nil
}

// SyncHistory lists recent SyncRuns (§12 supplement sync_history), the
// scheduler's own audit trail distinct from SyncState's latest snapshot.
func SyncHistory(ctx context.Context, db *gorm.DB, limit, offset int) ([]reconmodel.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return listSyncRuns(ctx, db, limit, offset)
}

// OverviewResult aggregates counts/totals for a dashboard window (§4.6
// overview(window)), including per-tenant roll-ups.
type OverviewResult struct {
	WindowStart  time.Time          `json:"window_start"`
	WindowEnd    time.Time          `json:"window_end"`
	StatusCounts map[string]int64   `json:"status_counts"`
	TenantTotals []TenantTotal      `json:"tenant_totals"`
	Errors       []SyncStatusView   `json:"errors"`
}

type TenantTotal struct {
	Tenant string          `json:"tenant"`
	Count  int64           `json:"count"`
}

// Overview aggregates rows touched within [now-window, now] plus
// per-tenant roll-ups and the current sync error list, for the
// degraded-mode banner (§7).
func Overview(ctx context.Context, db *gorm.DB, window time.Duration) (OverviewResult, error) {
	now := time.Now().UTC()
	start := now.Add(-window)
	out := OverviewResult{WindowStart: start, WindowEnd: now, StatusCounts: map[string]int64{}}

	type statusRow struct {
		MatchStatus string
		Count       int64
	}
	var statusRows []statusRow
	err := db.WithContext(ctx).Model(&reconmodel.ReconciliationRecord{}).
		Where("last_updated_at BETWEEN ? AND ?", start, now).
		Select("match_status, count(*) as count").
		Group("match_status").
		Scan(&statusRows).Error
	if err != nil {
		return out, err
	}
	for _, r := range statusRows {
		out.StatusCounts[r.MatchStatus] = r.Count
	}

	type tenantRow struct {
		InvoiceTenant string
		Count         int64
	}
	var tenantRows []tenantRow
	err = db.WithContext(ctx).Model(&reconmodel.ReconciliationRecord{}).
		Where("last_updated_at BETWEEN ? AND ?", start, now).
		Where("invoice_tenant IS NOT NULL").
		Select("invoice_tenant, count(*) as count").
		Group("invoice_tenant").
		Scan(&tenantRows).Error
	if err != nil {
		return out, err
	}
	for _, r := range tenantRows {
		out.TenantTotals = append(out.TenantTotals, TenantTotal{Tenant: r.InvoiceTenant, Count: r.Count})
	}

	errs, err := SyncStatus(ctx, db)
	if err != nil {
		return out, err
	}
	for _, s := range errs {
		if s.Status != reconmodel.SyncStatusOK {
			out.Errors = append(out.Errors, s)
		}
	}
	return out, nil
}
