package reconengine

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/reconsvc/reconsync"
)

type fakeEmailTransport struct {
	rows []reconsync.RawEmail
	err  error
}

func (f *fakeEmailTransport) FetchEmails(ctx context.Context, window reconsync.Window) ([]reconsync.RawEmail, error) {
	return f.rows, f.err
}

type fakeInvoiceTransport struct {
	rows []reconsync.RawInvoice
	err  error
}

func (f *fakeInvoiceTransport) FetchInvoices(ctx context.Context, window reconsync.Window) ([]reconsync.RawInvoice, error) {
	return f.rows, f.err
}

type fakeInboundTransport struct {
	rows []reconsync.RawReceivedPayment
	err  error
}

func (f *fakeInboundTransport) FetchReceivedPayments(ctx context.Context, window reconsync.Window) ([]reconsync.RawReceivedPayment, error) {
	return f.rows, f.err
}

type fakeOutboundTransport struct {
	rows []reconsync.RawOutboundPayment
	err  error
}

func (f *fakeOutboundTransport) FetchOutboundPayments(ctx context.Context, window reconsync.Window) ([]reconsync.RawOutboundPayment, error) {
	return f.rows, f.err
}

func noRetry() reconsync.RetryPolicy {
	return reconsync.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, Factor: 1}
}

func TestRunCycle_IsolatesOneSourceFailureAndDegradesRatherThanAborts(t *testing.T) {
	e := newTestEngine(t)

	invoiceAdapter := &reconsync.InvoiceAdapter{
		Transport: &fakeInvoiceTransport{rows: []reconsync.RawInvoice{
			{NvcCode: "NVC-1", Amount: "100.00", StatusCode: 1, Tenant: "acme"},
		}},
		Retry: noRetry(),
	}
	outboundAdapter := &reconsync.OutboundPaymentAdapter{
		Transport: &fakeOutboundTransport{err: context.DeadlineExceeded},
		Retry:     noRetry(),
	}
	emailAdapter := &reconsync.EmailAdapter{Transport: &fakeEmailTransport{}, Retry: noRetry()}
	inboundAdapter := &reconsync.InboundFundingAdapter{Transport: &fakeInboundTransport{}, Retry: noRetry()}

	adapters := Adapters{
		Email:    emailAdapter,
		Invoice:  invoiceAdapter,
		Inbound:  inboundAdapter,
		Outbound: outboundAdapter,
	}

	now := time.Now().UTC()
	result := e.RunCycle(context.Background(), reconsync.Window{Start: now.Add(-24 * time.Hour), End: now}, adapters)

	if !result.Degraded {
		t.Fatalf("expected a degraded cycle when outbound_payments fails, got %+v", result)
	}
	if result.Counts["invoices"] != 1 {
		t.Fatalf("expected the invoices step to still apply its one row, counts=%v", result.Counts)
	}
	if len(result.Errors) == 0 {
		t.Fatalf("expected at least one recorded error for the failing source")
	}
}

func TestRunCycle_AllSourcesSucceedIsNotDegraded(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now().UTC()

	adapters := Adapters{
		Email:   &reconsync.EmailAdapter{Transport: &fakeEmailTransport{}, Retry: noRetry()},
		Invoice: &reconsync.InvoiceAdapter{Transport: &fakeInvoiceTransport{rows: []reconsync.RawInvoice{
			{NvcCode: "NVC-1", Amount: "100.00", StatusCode: 1, Tenant: "acme"},
		}}, Retry: noRetry()},
		Inbound:  &reconsync.InboundFundingAdapter{Transport: &fakeInboundTransport{}, Retry: noRetry()},
		Outbound: &reconsync.OutboundPaymentAdapter{Transport: &fakeOutboundTransport{}, Retry: noRetry()},
	}

	result := e.RunCycle(context.Background(), reconsync.Window{Start: now.Add(-24 * time.Hour), End: now}, adapters)
	if result.Degraded {
		t.Fatalf("expected a clean cycle, got degraded with errors=%v", result.Errors)
	}
	if result.Counts["invoices"] != 1 {
		t.Fatalf("expected invoices count 1, got counts=%v", result.Counts)
	}
}
