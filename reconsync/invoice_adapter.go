package reconsync

import (
	"context"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/reconsvc/reconerrors"
)

// InvoiceRecord is the adapter's decoded output for one invoice row.
type InvoiceRecord struct {
	NvcCode   string
	Amount    decimal.Decimal
	Status    int
	Tenant    string
	PayrunRef string
	Currency  string
}

type InvoiceAdapter struct {
	Transport InvoiceTransport
	Retry     RetryPolicy
}

func NewInvoiceAdapter(t InvoiceTransport) *InvoiceAdapter {
	return &InvoiceAdapter{Transport: t, Retry: DefaultRetryPolicy()}
}

// Fetch returns decoded invoice rows plus per-row malformed errors for
// rows that failed to parse — the batch still proceeds with the rows
// that did decode (§4.1, §7 SourceMalformed is per-record, not fatal).
func (a *InvoiceAdapter) Fetch(ctx context.Context, window Window) ([]InvoiceRecord, []error) {
	var raw []RawInvoice
	err := a.Retry.WithRetry(ctx, "invoices", func(ctx context.Context) error {
		var fetchErr error
		raw, fetchErr = a.Transport.FetchInvoices(ctx, window)
		return fetchErr
	})
	if err != nil {
		return nil, []error{err}
	}

	var out []InvoiceRecord
	var malformed []error
	for _, r := range raw {
		amount, perr := decimal.NewFromString(r.Amount)
		if perr != nil || r.NvcCode == "" {
			malformed = append(malformed, reconerrors.NewSourceMalformed("invoices", perr))
			continue
		}
		out = append(out, InvoiceRecord{
			NvcCode:   r.NvcCode,
			Amount:    amount,
			Status:    r.StatusCode,
			Tenant:    r.Tenant,
			PayrunRef: r.PayrunRef,
			Currency:  r.Currency,
		})
	}
	return out, malformed
}
