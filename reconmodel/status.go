package reconmodel

// Status is the closed classification of a ReconciliationRecord. Unknown
// values read back from storage (schema evolution) fall back to
// StatusUnmatched rather than panicking.
type Status string

const (
	StatusFull4Way             Status = "full_4way"
	Status3WayAwaitingPayment  Status = "3way_awaiting_payment"
	Status3WayNoFunding        Status = "3way_no_funding"
	Status2WayMatched          Status = "2way_matched"
	StatusAmountMismatch       Status = "amount_mismatch"
	StatusInvoicePaymentOnly   Status = "invoice_payment_only"
	StatusRemittanceOnly       Status = "remittance_only"
	StatusInvoiceOnly          Status = "invoice_only"
	StatusPaymentOnly          Status = "payment_only"
	StatusUnmatched            Status = "unmatched"
	StatusResolved             Status = "resolved"
	// StatusIssue is not part of the source enumeration in the narrative
	// spec, but §4.3/§8 require it as a distinct reporting bucket so a
	// Rejected/Cancelled invoice with an otherwise-agreeing amount does
	// not inflate the matched/mismatched counters.
	StatusIssue Status = "status_issue"
)

// Normalize maps any value not in the closed set to StatusUnmatched,
// the forward-compatible default branch described in the design notes.
func Normalize(s Status) Status {
	switch s {
	case StatusFull4Way, Status3WayAwaitingPayment, Status3WayNoFunding,
		Status2WayMatched, StatusAmountMismatch, StatusInvoicePaymentOnly,
		StatusRemittanceOnly, StatusInvoiceOnly, StatusPaymentOnly,
		StatusUnmatched, StatusResolved, StatusIssue:
		return s
	default:
		return StatusUnmatched
	}
}

// AllStatuses enumerates every bucket summary() must report on, including
// zero-count buckets, so property 4 (counts partition all rows) holds.
func AllStatuses() []Status {
	return []Status{
		StatusFull4Way, Status3WayAwaitingPayment, Status3WayNoFunding,
		Status2WayMatched, StatusAmountMismatch, StatusInvoicePaymentOnly,
		StatusRemittanceOnly, StatusInvoiceOnly, StatusPaymentOnly,
		StatusUnmatched, StatusResolved, StatusIssue,
	}
}

// InvoiceStatus is the numeric status code carried by the invoice source,
// mapped through the canonical table in §6.
type InvoiceStatus int

const (
	InvoiceStatusDraft InvoiceStatus = iota
	InvoiceStatusApproved
	InvoiceStatusProcessing
	InvoiceStatusInFlight
	InvoiceStatusPaid
	InvoiceStatusRejected
	InvoiceStatusCancelled
)

func (s InvoiceStatus) String() string {
	switch s {
	case InvoiceStatusDraft:
		return "Draft"
	case InvoiceStatusApproved:
		return "Approved"
	case InvoiceStatusProcessing:
		return "Processing"
	case InvoiceStatusInFlight:
		return "In Flight"
	case InvoiceStatusPaid:
		return "Paid"
	case InvoiceStatusRejected:
		return "Rejected"
	case InvoiceStatusCancelled:
		return "Cancelled"
	default:
		return "Draft"
	}
}

// IsStatusIssue reports whether this invoice status should override an
// otherwise-matched amount comparison to StatusIssue (§4.3 step 3).
func (s InvoiceStatus) IsStatusIssue() bool {
	return s == InvoiceStatusRejected || s == InvoiceStatusCancelled
}

// Flag is the manual triage flag an operator may set on a record.
type Flag string

const (
	FlagNeedsOutreach Flag = "needs_outreach"
	FlagInvestigating Flag = "investigating"
	FlagEscalated     Flag = "escalated"
	FlagResolved      Flag = "resolved"
)

// RemittanceSource enumerates the recognized email source keys.
type RemittanceSource string

const (
	RemittanceSourceOasys   RemittanceSource = "oasys"
	RemittanceSourceD365ACH RemittanceSource = "d365_ach"
	RemittanceSourceLdnGss  RemittanceSource = "ldn_gss"
)

// SyncSourceKey is the key under which each source reports its own
// sync_state row (§3 SyncState, §4.6 sync_status).
type SyncSourceKey string

const (
	SourceEmails           SyncSourceKey = "emails"
	SourceInvoices         SyncSourceKey = "invoices"
	SourceReceivedPayments SyncSourceKey = "received_payments"
	SourceOutboundPayments SyncSourceKey = "outbound_payments"
)
