package reconstore

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
)

// GetOrCreateByNVC fetches the reconciliation row for nvc within tx,
// creating a bare row (first_seen_at set by the audit guard) if absent.
// Repository functions take an explicit *gorm.DB so the caller controls
// the transaction boundary (§4.5: one transaction per NVC).
func GetOrCreateByNVC(tx *gorm.DB, nvc string) (*reconmodel.ReconciliationRecord, error) {
	var rec reconmodel.ReconciliationRecord
	err := tx.Where("nvc_code = ?", nvc).First(&rec).Error
	if err == nil {
		return &rec, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	rec = reconmodel.ReconciliationRecord{NvcCode: nvc, MatchStatus: string(reconmodel.StatusUnmatched)}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByNVC is the read-side counterpart: returns gorm.ErrRecordNotFound
// if nvc has never been observed.
func GetByNVC(ctx context.Context, db *gorm.DB, nvc string) (*reconmodel.ReconciliationRecord, error) {
	var rec reconmodel.ReconciliationRecord
	err := db.WithContext(ctx).Where("nvc_code = ?", nvc).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertRemittanceLine writes leg 1 fields for one NVC line item parsed
// from a remittance email (§4.2 upsert_remittance_line).
type RemittanceLine struct {
	NvcCode     string
	Amount      decimal.Decimal
	Date        time.Time
	Source      string
	EmailID     string
	Contractor  string
}

func UpsertRemittanceLine(tx *gorm.DB, line RemittanceLine) (*reconmodel.ReconciliationRecord, error) {
	rec, err := GetOrCreateByNVC(tx, line.NvcCode)
	if err != nil {
		return nil, fmt.Errorf("upsert remittance line %s: %w", line.NvcCode, err)
	}
	amount := line.Amount
	date := line.Date
	src := line.Source
	email := line.EmailID
	contractor := line.Contractor

	updates := map[string]interface{}{
		"remittance_amount":     &amount,
		"remittance_date":       &date,
		"remittance_source":     &src,
		"remittance_email_id":   &email,
		"remittance_contractor": &contractor,
	}
	if err := tx.Model(rec).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetOrCreateByNVC(tx, line.NvcCode)
}

// UpsertInvoice writes leg 2 fields (§4.2 upsert_invoice).
type InvoiceUpdate struct {
	NvcCode   string
	Amount    decimal.Decimal
	Status    int
	Tenant    string
	PayrunRef string
	Currency  string
}

func UpsertInvoice(tx *gorm.DB, in InvoiceUpdate) (*reconmodel.ReconciliationRecord, error) {
	rec, err := GetOrCreateByNVC(tx, in.NvcCode)
	if err != nil {
		return nil, fmt.Errorf("upsert invoice %s: %w", in.NvcCode, err)
	}
	amount := in.Amount
	status := in.Status
	tenant := in.Tenant
	payrun := in.PayrunRef
	currency := in.Currency

	updates := map[string]interface{}{
		"invoice_amount":     &amount,
		"invoice_status":     &status,
		"invoice_tenant":     &tenant,
		"invoice_payrun_ref": &payrun,
		"invoice_currency":   &currency,
	}
	if err := tx.Model(rec).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetOrCreateByNVC(tx, in.NvcCode)
}

// UpsertOutboundPayment writes leg 4 fields (§4.2 upsert_outbound_payment).
type OutboundPaymentUpdate struct {
	NvcCode          string
	Amount           decimal.Decimal
	AccountID        string
	Date             time.Time
	Currency         string
	Status           string
	Recipient        string
	RecipientCountry string
}

func UpsertOutboundPayment(tx *gorm.DB, p OutboundPaymentUpdate) (*reconmodel.ReconciliationRecord, error) {
	rec, err := GetOrCreateByNVC(tx, p.NvcCode)
	if err != nil {
		return nil, fmt.Errorf("upsert outbound payment %s: %w", p.NvcCode, err)
	}
	amount := p.Amount
	account := p.AccountID
	date := p.Date
	currency := p.Currency
	status := p.Status
	recipient := p.Recipient
	country := p.RecipientCountry

	updates := map[string]interface{}{
		"payment_amount":            &amount,
		"payment_account_id":        &account,
		"payment_date":              &date,
		"payment_currency":          &currency,
		"payment_status":            &status,
		"payment_recipient":         &recipient,
		"payment_recipient_country": &country,
	}
	if err := tx.Model(rec).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetOrCreateByNVC(tx, p.NvcCode)
}

// SetMatchStatus persists the classifier's output for one NVC row.
func SetMatchStatus(tx *gorm.DB, nvc string, status reconmodel.Status, flags string) error {
	return tx.Model(&reconmodel.ReconciliationRecord{}).
		Where("nvc_code = ?", nvc).
		Updates(map[string]interface{}{
			"match_status": string(status),
			"match_flags":  flags,
		}).Error
}

// LinkReceivedPaymentToEmail records a lump-sum match decision on the
// email's cache row (§4.2 link_received_payment_to_email). Propagation
// to NVC rows is a separate step (PropagateFundingToNVCs) so the two
// responsibilities — "decide the link" and "fan it out" — stay testable
// independently.
func LinkReceivedPaymentToEmail(tx *gorm.DB, emailID, receivedPaymentID string, confidence float64, method string) error {
	return tx.Model(&reconmodel.CachedEmail{}).
		Where("id = ?", emailID).
		Updates(map[string]interface{}{
			"received_payment_id": receivedPaymentID,
			"link_match_status":   method,
			"link_confidence":     confidence,
		}).Error
}

// PropagateFundingToNVCs copies the linked received payment's amount/date
// onto every reconciliation row whose remittance_email_id matches email
// (§4.2 propagate_funding_to_nvcs, invariant (d)), and returns the set of
// affected NVC codes so the caller can reclassify them.
func PropagateFundingToNVCs(tx *gorm.DB, emailID string) ([]string, error) {
	var email reconmodel.CachedEmail
	if err := tx.Where("id = ?", emailID).First(&email).Error; err != nil {
		return nil, err
	}
	if email.ReceivedPaymentId == nil {
		return nil, fmt.Errorf("propagate funding: email %s has no linked received payment", emailID)
	}

	var rp reconmodel.ReceivedPayment
	if err := tx.Where("id = ?", *email.ReceivedPaymentId).First(&rp).Error; err != nil {
		return nil, err
	}

	var nvcs []string
	if err := tx.Model(&reconmodel.ReconciliationRecord{}).
		Where("remittance_email_id = ?", emailID).
		Pluck("nvc_code", &nvcs).Error; err != nil {
		return nil, err
	}
	if len(nvcs) == 0 {
		return nil, nil
	}

	amount := rp.Amount
	date := rp.PaymentDate
	id := rp.ID
	if err := tx.Model(&reconmodel.ReconciliationRecord{}).
		Where("remittance_email_id = ?", emailID).
		Updates(map[string]interface{}{
			"received_payment_id":     &id,
			"received_payment_amount": &amount,
			"received_payment_date":   &date,
		}).Error; err != nil {
		return nil, err
	}
	return nvcs, nil
}

// NullifyFundingLeg is the targeted nullify operation the design notes
// call for when "forgetting" a source (§4.5): it clears leg 3 on every
// row linked to email without deleting the rows themselves. The caller
// is responsible for the forced reclassification that follows.
func NullifyFundingLeg(tx *gorm.DB, emailID string) ([]string, error) {
	var nvcs []string
	if err := tx.Model(&reconmodel.ReconciliationRecord{}).
		Where("remittance_email_id = ?", emailID).
		Pluck("nvc_code", &nvcs).Error; err != nil {
		return nil, err
	}
	if len(nvcs) == 0 {
		return nil, nil
	}
	if err := tx.Model(&reconmodel.ReconciliationRecord{}).
		Where("remittance_email_id = ?", emailID).
		Updates(map[string]interface{}{
			"received_payment_id":     nil,
			"received_payment_amount": nil,
			"received_payment_date":   nil,
		}).Error; err != nil {
		return nil, err
	}
	return nvcs, nil
}

// AssociateReceivedPayment is the manual-association counterpart to the
// automatic lump-sum pass (§4.6 associate(), §9 open question (i)): it
// writes leg 3 directly onto nvc's row from an operator-chosen received
// payment, bypassing the email fan-out. Used when the fuzzy matcher
// missed a link (a split wire, an unusual payer string) and an operator
// resolves it by hand.
func AssociateReceivedPayment(tx *gorm.DB, nvc string, rp reconmodel.ReceivedPayment) error {
	if _, err := GetOrCreateByNVC(tx, nvc); err != nil {
		return fmt.Errorf("associate received payment %s: %w", nvc, err)
	}
	id := rp.ID
	amount := rp.Amount
	date := rp.PaymentDate
	return tx.Model(&reconmodel.ReconciliationRecord{}).
		Where("nvc_code = ?", nvc).
		Updates(map[string]interface{}{
			"received_payment_id":     &id,
			"received_payment_amount": &amount,
			"received_payment_date":   &date,
		}).Error
}

// AssociateRemittanceEmail is the manual-association counterpart for
// leg 1 (§4.6 associate()): it attributes an email's lump-sum total and
// date to nvc directly, for the case where the attachment parser missed
// a line item (a malformed row, an uncommon layout) and an operator
// points the NVC at the email by hand.
func AssociateRemittanceEmail(tx *gorm.DB, nvc string, email reconmodel.CachedEmail) error {
	if _, err := GetOrCreateByNVC(tx, nvc); err != nil {
		return fmt.Errorf("associate remittance email %s: %w", nvc, err)
	}
	src := email.Source
	id := email.ID
	updates := map[string]interface{}{
		"remittance_source":   &src,
		"remittance_email_id": &id,
	}
	if email.RemittanceTotal != nil {
		amount := *email.RemittanceTotal
		updates["remittance_amount"] = &amount
	}
	date := email.EmailDate
	updates["remittance_date"] = &date
	return tx.Model(&reconmodel.ReconciliationRecord{}).Where("nvc_code = ?", nvc).Updates(updates).Error
}

// AppendNote appends free text to nvc's Notes field (§4.6: both manual
// writes "append to notes/flag_notes as free text"), prefixed with a UTC
// timestamp so a row accumulates a readable history instead of losing
// the previous note on every mutation.
func AppendNote(tx *gorm.DB, nvc string, note string) error {
	rec, err := GetOrCreateByNVC(tx, nvc)
	if err != nil {
		return err
	}
	stamped := time.Now().UTC().Format(time.RFC3339) + " " + note
	combined := stamped
	if rec.Notes != nil && *rec.Notes != "" {
		combined = *rec.Notes + "\n" + stamped
	}
	return tx.Model(&reconmodel.ReconciliationRecord{}).Where("nvc_code = ?", nvc).Update("notes", &combined).Error
}

// SetFlag sets the manual triage flag (§4.6 flag(nvc, flag, notes)) and
// appends notes, timestamped, to flag_notes. Setting FlagResolved stamps
// resolved_at/resolved_by and writes match_status = resolved directly;
// the engine's Reclassify keeps that status (sticky per §4.5) until a
// later upsert invalidates the amount agreement. ClearFlag clears it.
func SetFlag(tx *gorm.DB, nvc string, flag reconmodel.Flag, notes string, by string) error {
	rec, err := GetOrCreateByNVC(tx, nvc)
	if err != nil {
		return err
	}
	f := string(flag)
	updates := map[string]interface{}{"flag": &f}
	if notes != "" {
		stamped := time.Now().UTC().Format(time.RFC3339) + " " + notes
		if rec.FlagNotes != nil && *rec.FlagNotes != "" {
			stamped = *rec.FlagNotes + "\n" + stamped
		}
		updates["flag_notes"] = &stamped
	}
	if flag == reconmodel.FlagResolved {
		now := time.Now().UTC()
		updates["resolved_at"] = &now
		if by != "" {
			updates["resolved_by"] = &by
		}
		updates["match_status"] = string(reconmodel.StatusResolved)
	}
	return tx.Model(&reconmodel.ReconciliationRecord{}).Where("nvc_code = ?", nvc).Updates(updates).Error
}

// ClearFlag removes the manual triage flag without touching match_status
// (§4.6: "set or clear the manual flag"). Clearing a resolved flag does
// not itself un-resolve the row; that only happens via the classifier's
// sticky-invalidation rule on the next upsert (§4.5).
func ClearFlag(tx *gorm.DB, nvc string) error {
	return tx.Model(&reconmodel.ReconciliationRecord{}).Where("nvc_code = ?", nvc).
		Updates(map[string]interface{}{"flag": nil}).Error
}
