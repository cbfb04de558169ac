package reconsync

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/reconsvc/reconerrors"
)

// InboundPaymentRecord is the adapter's decoded output for one received
// payment (leg 3, pre-link): a lump-sum inbound transfer with no NVC
// breakdown (§4.1, §6).
type InboundPaymentRecord struct {
	ID           string
	SubAccountID string
	Amount       decimal.Decimal
	Currency     string
	PaymentDate  time.Time
	Status       string
	PayerInfoRaw string
}

type InboundFundingAdapter struct {
	Transport InboundFundingTransport
	Retry     RetryPolicy
}

func NewInboundFundingAdapter(t InboundFundingTransport) *InboundFundingAdapter {
	return &InboundFundingAdapter{Transport: t, Retry: DefaultRetryPolicy()}
}

// Fetch returns decoded received-payment rows plus per-row malformed
// errors; the rest of the batch still applies (§7 SourceMalformed).
func (a *InboundFundingAdapter) Fetch(ctx context.Context, window Window) ([]InboundPaymentRecord, []error) {
	var raw []RawReceivedPayment
	err := a.Retry.WithRetry(ctx, "received_payments", func(ctx context.Context) error {
		var fetchErr error
		raw, fetchErr = a.Transport.FetchReceivedPayments(ctx, window)
		return fetchErr
	})
	if err != nil {
		return nil, []error{err}
	}

	var out []InboundPaymentRecord
	var malformed []error
	for _, r := range raw {
		amount, perr := decimal.NewFromString(r.Amount)
		if perr != nil || r.ID == "" {
			malformed = append(malformed, reconerrors.NewSourceMalformed("received_payments", perr))
			continue
		}
		out = append(out, InboundPaymentRecord{
			ID:           r.ID,
			SubAccountID: r.SubAccountID,
			Amount:       amount,
			Currency:     r.Currency,
			PaymentDate:  r.PaymentDate,
			Status:       r.Status,
			PayerInfoRaw: r.PayerInfoRaw,
		})
	}
	return out, malformed
}
