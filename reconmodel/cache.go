package reconmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// CachedEmail fingerprints a remittance email. Lifecycle: created on
// first observation, updated on re-observation, never deleted.
type CachedEmail struct {
	ID                string     `gorm:"primary_key;size:128" json:"id"`
	Source            string     `gorm:"index;size:32;not null" json:"source"`
	Subject           string     `gorm:"size:512" json:"subject"`
	Sender            string     `gorm:"size:255" json:"sender"`
	EmailDate         time.Time  `json:"email_date"`
	FetchedAt         time.Time  `json:"fetched_at"`
	AttachmentsJSON   []byte     `gorm:"type:json" json:"attachments"`
	RemittanceTotal   *decimal.Decimal `gorm:"type:decimal(18,2)" json:"remittance_total"`
	AgencyName        *string    `gorm:"index;size:255" json:"agency_name"`
	ManualReview      bool       `gorm:"not null;default:false" json:"manual_review"`
	ReceivedPaymentId *string    `gorm:"index;size:128" json:"received_payment_id"`
	LinkMatchStatus   *string    `gorm:"size:16" json:"link_match_status"` // auto|suggest
	LinkConfidence    *float64   `json:"link_confidence"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CachedEmail) TableName() string { return "cached_emails" }

// CachedInvoice mirrors the invoice source's row shape for read-API and
// cross_search use; its only role inside the engine is to feed upserts
// into ReconciliationRecord.
type CachedInvoice struct {
	NvcCode      string          `gorm:"primary_key;size:64" json:"nvc_code"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	StatusCode   int             `json:"status_code"`
	Tenant       string          `gorm:"index;size:128" json:"tenant"`
	PayrunRef    string          `gorm:"size:128" json:"payrun_ref"`
	Currency     string          `gorm:"size:8" json:"currency"`
	FetchedAt    time.Time       `json:"fetched_at"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CachedInvoice) TableName() string { return "cached_invoices" }

// CachedPayrun mirrors an upstream pay-run reference used for cross_search
// and suggestion tenant-gating.
type CachedPayrun struct {
	Ref       string    `gorm:"primary_key;size:128" json:"ref"`
	Tenant    string    `gorm:"index;size:128" json:"tenant"`
	FetchedAt time.Time `json:"fetched_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CachedPayrun) TableName() string { return "cached_payruns" }

// CachedPayment mirrors an outbound-payment source row.
type CachedPayment struct {
	Reference        string          `gorm:"primary_key;size:128" json:"reference"` // tenant.NVC_CODE
	NvcCode           string          `gorm:"index;size:64" json:"nvc_code"`
	Tenant            string          `gorm:"index;size:128" json:"tenant"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Currency          string          `gorm:"size:8" json:"currency"`
	Recipient         string          `gorm:"size:255" json:"recipient"`
	RecipientCountry  string          `gorm:"size:8" json:"recipient_country"`
	Status            string          `gorm:"size:32" json:"status"`
	PaymentDate        time.Time      `json:"payment_date"`
	FetchedAt          time.Time      `json:"fetched_at"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CachedPayment) TableName() string { return "cached_payments" }

// ReceivedPayment mirrors an inbound-funding source row (leg 3, pre-link).
type ReceivedPayment struct {
	ID            string          `gorm:"primary_key;size:128" json:"id"`
	SubAccountId  string          `gorm:"index;size:128" json:"sub_account_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Currency      string          `gorm:"size:8" json:"currency"`
	PaymentDate   time.Time       `json:"payment_date"`
	Status        string          `gorm:"size:32" json:"status"`
	PayerInfoRaw  string          `gorm:"type:text" json:"payer_info_raw"`
	PayerNormalized string        `gorm:"size:255" json:"payer_normalized"`
	FetchedAt     time.Time       `json:"fetched_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ReceivedPayment) TableName() string { return "received_payments" }
