package reconsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/reconsvc/reconerrors"
)

type fakeInvoiceTransport struct {
	rows []RawInvoice
	err  error
}

func (f *fakeInvoiceTransport) FetchInvoices(ctx context.Context, window Window) ([]RawInvoice, error) {
	return f.rows, f.err
}

func TestInvoiceAdapter_MalformedRowIsSkippedButBatchProceeds(t *testing.T) {
	transport := &fakeInvoiceTransport{rows: []RawInvoice{
		{NvcCode: "NVC-1", Amount: "100.00", StatusCode: 1, Tenant: "acme"},
		{NvcCode: "", Amount: "200.00", StatusCode: 1, Tenant: "acme"},
		{NvcCode: "NVC-2", Amount: "not-a-number", StatusCode: 1, Tenant: "acme"},
	}}
	a := &InvoiceAdapter{Transport: transport, Retry: DefaultRetryPolicy()}

	records, malformed := a.Fetch(context.Background(), Window{})
	if len(records) != 1 || records[0].NvcCode != "NVC-1" {
		t.Fatalf("records = %+v, want exactly NVC-1", records)
	}
	if len(malformed) != 2 {
		t.Fatalf("malformed = %d, want 2", len(malformed))
	}
	for _, m := range malformed {
		if !errors.Is(m, reconerrors.ErrSourceMalformed) {
			t.Fatalf("malformed error %v does not wrap ErrSourceMalformed", m)
		}
	}
}

func TestInvoiceAdapter_TransportFailureExhaustsRetryAndReturnsSourceUnavailable(t *testing.T) {
	transport := &fakeInvoiceTransport{err: errors.New("connection refused")}
	a := &InvoiceAdapter{Transport: transport, Retry: RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Factor: 1}}

	records, errs := a.Fetch(context.Background(), Window{})
	if records != nil {
		t.Fatalf("records = %v, want nil on transport failure", records)
	}
	if len(errs) != 1 || !errors.Is(errs[0], reconerrors.ErrSourceUnavailable) {
		t.Fatalf("errs = %v, want a single ErrSourceUnavailable", errs)
	}
}

func TestInvoiceAdapter_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	transport := &countingInvoiceTransport{
		fn: func() ([]RawInvoice, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("transient")
			}
			return []RawInvoice{{NvcCode: "NVC-1", Amount: "50.00"}}, nil
		},
	}
	a := &InvoiceAdapter{Transport: transport, Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 1}}

	records, malformed := a.Fetch(context.Background(), Window{})
	if len(malformed) != 0 {
		t.Fatalf("malformed = %v, want none", malformed)
	}
	if len(records) != 1 || records[0].NvcCode != "NVC-1" {
		t.Fatalf("records = %+v, want one NVC-1 row after the transport recovers", records)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (one failure then a success)", calls)
	}
}

type countingInvoiceTransport struct {
	fn func() ([]RawInvoice, error)
}

func (c *countingInvoiceTransport) FetchInvoices(ctx context.Context, window Window) ([]RawInvoice, error) {
	return c.fn()
}
