package reconsync

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/reconsvc/reconerrors"
)

// OutboundPaymentRecord is the adapter's decoded output for one outbound
// payment (leg 4), with the NVC code and tenant extracted from the
// source's "tenant.NVC_CODE" reference string (§6).
type OutboundPaymentRecord struct {
	Reference        string
	Tenant           string
	NvcCode          string
	Amount           decimal.Decimal
	Currency         string
	Recipient        string
	RecipientCountry string
	Status           string
	PaymentDate      time.Time
}

type OutboundPaymentAdapter struct {
	Transport OutboundPaymentTransport
	Retry     RetryPolicy
}

func NewOutboundPaymentAdapter(t OutboundPaymentTransport) *OutboundPaymentAdapter {
	return &OutboundPaymentAdapter{Transport: t, Retry: DefaultRetryPolicy()}
}

// Fetch returns decoded outbound-payment rows plus per-row malformed
// errors for references that do not split into "tenant.NVC_CODE" (§7).
func (a *OutboundPaymentAdapter) Fetch(ctx context.Context, window Window) ([]OutboundPaymentRecord, []error) {
	var raw []RawOutboundPayment
	err := a.Retry.WithRetry(ctx, "outbound_payments", func(ctx context.Context) error {
		var fetchErr error
		raw, fetchErr = a.Transport.FetchOutboundPayments(ctx, window)
		return fetchErr
	})
	if err != nil {
		return nil, []error{err}
	}

	var out []OutboundPaymentRecord
	var malformed []error
	for _, r := range raw {
		tenant, nvc, ok := splitReference(r.Reference)
		amount, perr := decimal.NewFromString(r.Amount)
		if !ok || perr != nil {
			malformed = append(malformed, reconerrors.NewSourceMalformed("outbound_payments", perr))
			continue
		}
		out = append(out, OutboundPaymentRecord{
			Reference:        r.Reference,
			Tenant:           tenant,
			NvcCode:          nvc,
			Amount:           amount,
			Currency:         r.Currency,
			Recipient:        r.Recipient,
			RecipientCountry: r.RecipientCountry,
			Status:           r.Status,
			PaymentDate:      r.PaymentDate,
		})
	}
	return out, malformed
}

// splitReference extracts (tenant, nvc_code) from a "tenant.NVC_CODE"
// reference string, e.g. "omnicomtbwa.NVC7KVAR66CR" (§6). The NVC code
// is everything after the first dot, so an NVC code containing a dot is
// kept whole; a tenant name containing a dot is split at its first dot.
func splitReference(ref string) (tenant, nvc string, ok bool) {
	idx := strings.Index(ref, ".")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", false
	}
	return ref[:idx], ref[idx+1:], true
}
