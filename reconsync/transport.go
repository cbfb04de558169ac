// Package reconsync holds the four source adapters (§4.1). Each adapter
// is built against a small transport interface rather than a concrete
// email/DB/HTTP client — those transports are explicitly out of scope
// (§1) as external collaborators; only their contracts live here.
package reconsync

import (
	"context"
	"time"
)

// Window bounds a fetch to a lookback period; adapters must be
// idempotent within a window (re-fetching yields the same records
// modulo source-side updates).
type Window struct {
	Start time.Time
	End   time.Time
}

// RawEmail is one message as returned by the email transport, before
// attachment parsing.
type RawEmail struct {
	ID         string
	Source     string // oasys | d365_ach | ldn_gss
	Subject    string
	Sender     string
	EmailDate  time.Time
	Attachments []RawAttachment
}

type RawAttachment struct {
	Filename string
	Content  []byte
}

// EmailTransport fetches raw remittance emails for a window. The real
// implementation (Gmail API, IMAP, …) is an external collaborator; this
// interface is the only contract the adapter depends on.
type EmailTransport interface {
	FetchEmails(ctx context.Context, window Window) ([]RawEmail, error)
}

// RawInvoice is one invoice row as returned by the invoice transport.
type RawInvoice struct {
	NvcCode    string
	Amount     string // decimal string, parsed by the adapter
	StatusCode int
	Tenant     string
	PayrunRef  string
	Currency   string
}

type InvoiceTransport interface {
	FetchInvoices(ctx context.Context, window Window) ([]RawInvoice, error)
}

// RawReceivedPayment is one inbound-funding row.
type RawReceivedPayment struct {
	ID           string
	SubAccountID string
	Amount       string
	Currency     string
	PaymentDate  time.Time
	Status       string
	PayerInfoRaw string
}

type InboundFundingTransport interface {
	FetchReceivedPayments(ctx context.Context, window Window) ([]RawReceivedPayment, error)
}

// RawOutboundPayment is one outbound-payment row, keyed by a
// "tenant.NVC_CODE" reference string (§6).
type RawOutboundPayment struct {
	Reference        string
	Amount           string
	Currency         string
	Recipient        string
	RecipientCountry string
	Status           string
	PaymentDate      time.Time
}

type OutboundPaymentTransport interface {
	FetchOutboundPayments(ctx context.Context, window Window) ([]RawOutboundPayment, error)
}
