package reconstore

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
)

// UpsertCachedEmail creates or updates the fingerprint row for a
// remittance email (§3 CachedEmail lifecycle: created on first
// observation, updated on re-observation, never deleted).
func UpsertCachedEmail(tx *gorm.DB, email reconmodel.CachedEmail) (*reconmodel.CachedEmail, error) {
	email.FetchedAt = time.Now().UTC()
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source", "subject", "sender", "email_date", "fetched_at",
			"attachments_json", "remittance_total", "agency_name", "manual_review",
		}),
	}).Create(&email).Error
	if err != nil {
		return nil, err
	}
	return &email, nil
}

func MarshalAttachments(descriptors []string) []byte {
	b, _ := json.Marshal(descriptors)
	return b
}

func UpsertCachedInvoice(tx *gorm.DB, inv reconmodel.CachedInvoice) error {
	inv.FetchedAt = time.Now().UTC()
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "nvc_code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"amount", "status_code", "tenant", "payrun_ref", "currency", "fetched_at",
		}),
	}).Create(&inv).Error
}

func UpsertCachedPayrun(tx *gorm.DB, p reconmodel.CachedPayrun) error {
	p.FetchedAt = time.Now().UTC()
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant", "fetched_at"}),
	}).Create(&p).Error
}

func UpsertCachedPayment(tx *gorm.DB, p reconmodel.CachedPayment) error {
	p.FetchedAt = time.Now().UTC()
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "reference"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"nvc_code", "tenant", "amount", "currency", "recipient",
			"recipient_country", "status", "payment_date", "fetched_at",
		}),
	}).Create(&p).Error
}

func UpsertReceivedPayment(tx *gorm.DB, rp reconmodel.ReceivedPayment) error {
	rp.FetchedAt = time.Now().UTC()
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"sub_account_id", "amount", "currency", "payment_date", "status",
			"payer_info_raw", "payer_normalized", "fetched_at",
		}),
	}).Create(&rp).Error
}

// UnlinkedReceivedPayments returns received payments in [windowStart,
// windowEnd] that have not yet been linked to any cached email, the
// candidate pool for the lump-sum matcher pass.
func UnlinkedReceivedPayments(tx *gorm.DB, windowStart, windowEnd time.Time) ([]reconmodel.ReceivedPayment, error) {
	var out []reconmodel.ReceivedPayment
	err := tx.Where("payment_date BETWEEN ? AND ?", windowStart, windowEnd).
		Where("id NOT IN (SELECT received_payment_id FROM cached_emails WHERE received_payment_id IS NOT NULL)").
		Find(&out).Error
	return out, err
}

// UnlinkedRemittanceEmails returns cached emails in the window that are
// not yet linked to a received payment and are not flagged for manual
// review (manual_review emails never participate in lump-sum matching,
// per §8 boundary behaviour).
func UnlinkedRemittanceEmails(tx *gorm.DB, windowStart, windowEnd time.Time) ([]reconmodel.CachedEmail, error) {
	var out []reconmodel.CachedEmail
	err := tx.Where("email_date BETWEEN ? AND ?", windowStart, windowEnd).
		Where("received_payment_id IS NULL").
		Where("manual_review = ?", false).
		Find(&out).Error
	return out, err
}

// GetCachedEmail, GetCachedInvoice, GetCachedPayment, and
// GetReceivedPayment are the single-row lookups the manual associate()
// mutation (§4.6) and the suggestion endpoint (§4.6 suggestions(nvc))
// need to resolve a target_id back to its cached row.

func GetCachedEmail(tx *gorm.DB, id string) (*reconmodel.CachedEmail, error) {
	var out reconmodel.CachedEmail
	if err := tx.Where("id = ?", id).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func GetCachedInvoice(tx *gorm.DB, nvc string) (*reconmodel.CachedInvoice, error) {
	var out reconmodel.CachedInvoice
	if err := tx.Where("nvc_code = ?", nvc).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func GetCachedPayment(tx *gorm.DB, reference string) (*reconmodel.CachedPayment, error) {
	var out reconmodel.CachedPayment
	if err := tx.Where("reference = ?", reference).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func GetReceivedPayment(tx *gorm.DB, id string) (*reconmodel.ReceivedPayment, error) {
	var out reconmodel.ReceivedPayment
	if err := tx.Where("id = ?", id).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// UnclaimedCachedPayments returns outbound-payment cache rows within an
// amount window, optionally gated by tenant, for suggestions(nvc) when
// leg 4 is the missing leg (§4.6).
func UnclaimedCachedPayments(tx *gorm.DB, tenant string, amountMin, amountMax decimal.Decimal) ([]reconmodel.CachedPayment, error) {
	q := tx.Where("amount BETWEEN ? AND ?", amountMin, amountMax)
	if tenant != "" {
		q = q.Where("tenant = ?", tenant)
	}
	var out []reconmodel.CachedPayment
	err := q.Order("amount ASC").Limit(20).Find(&out).Error
	return out, err
}
