package reconmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationRecord is the central entity, keyed by nvc_code. Leg
// fields are nullable: a row may exist with only one leg observed so far.
type ReconciliationRecord struct {
	ID      uint   `gorm:"primary_key" json:"id"`
	NvcCode string `gorm:"uniqueIndex;size:64;not null" json:"nvc_code"`

	// Leg 1: remittance (agency email line item)
	RemittanceAmount   *decimal.Decimal `gorm:"type:decimal(18,2)" json:"remittance_amount"`
	RemittanceDate     *time.Time       `json:"remittance_date"`
	RemittanceSource   *string          `gorm:"size:32" json:"remittance_source"`
	RemittanceEmailId  *string          `gorm:"index;size:128" json:"remittance_email_id"`
	RemittanceContractor *string        `gorm:"size:255" json:"remittance_contractor"`

	// Leg 2: invoice
	InvoiceAmount    *decimal.Decimal `gorm:"type:decimal(18,2)" json:"invoice_amount"`
	InvoiceStatus    *int             `json:"invoice_status"`
	InvoiceTenant    *string          `gorm:"index;size:128" json:"invoice_tenant"`
	InvoicePayrunRef *string          `gorm:"size:128" json:"invoice_payrun_ref"`
	InvoiceCurrency  *string          `gorm:"size:8" json:"invoice_currency"`

	// Leg 3: inbound funding, inherited via remittance email linkage
	ReceivedPaymentId     *string          `gorm:"index;size:128" json:"received_payment_id"`
	ReceivedPaymentAmount *decimal.Decimal `gorm:"type:decimal(18,2)" json:"received_payment_amount"`
	ReceivedPaymentDate   *time.Time       `json:"received_payment_date"`

	// Leg 4: outbound payment
	PaymentAmount           *decimal.Decimal `gorm:"type:decimal(18,2)" json:"payment_amount"`
	PaymentAccountId        *string          `gorm:"size:128" json:"payment_account_id"`
	PaymentDate             *time.Time       `json:"payment_date"`
	PaymentCurrency         *string          `gorm:"size:8" json:"payment_currency"`
	PaymentStatus           *string          `gorm:"size:32" json:"payment_status"`
	PaymentRecipient        *string          `gorm:"size:255" json:"payment_recipient"`
	PaymentRecipientCountry *string          `gorm:"size:8" json:"payment_recipient_country"`

	// Derived
	MatchStatus string `gorm:"index;size:32;not null;default:unmatched" json:"match_status"`
	MatchFlags  string `gorm:"type:text" json:"match_flags"` // JSON array of flag strings

	// Manual
	Flag        *string    `gorm:"size:32" json:"flag"`
	FlagNotes   *string    `gorm:"type:text" json:"flag_notes"`
	Notes       *string    `gorm:"type:text" json:"notes"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	ResolvedBy  *string    `gorm:"size:128" json:"resolved_by"`

	// Audit
	FirstSeenAt   time.Time `gorm:"not null" json:"first_seen_at"`
	LastUpdatedAt time.Time `gorm:"not null" json:"last_updated_at"`
}

func (ReconciliationRecord) TableName() string { return "reconciliation_records" }

// LegsPresent reports which of the four legs currently have data, used
// by the classifier's fallback enumeration (§4.3 step 4).
type LegsPresent struct {
	Remittance bool
	Invoice    bool
	Funding    bool
	Payment    bool
}

func (r *ReconciliationRecord) Legs() LegsPresent {
	return LegsPresent{
		Remittance: r.RemittanceAmount != nil,
		Invoice:    r.InvoiceAmount != nil,
		Funding:    r.ReceivedPaymentAmount != nil,
		Payment:    r.PaymentAmount != nil,
	}
}
