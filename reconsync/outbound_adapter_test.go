package reconsync

import (
	"context"
	"testing"
)

func TestSplitReference(t *testing.T) {
	cases := []struct {
		ref        string
		tenant     string
		nvc        string
		ok         bool
	}{
		{"omnicomtbwa.NVC7KVAR66CR", "omnicomtbwa", "NVC7KVAR66CR", true},
		{"acme.media.NVC123", "acme", "media.NVC123", true},
		{"no-dot-reference", "", "", false},
		{".NVC123", "", "", false},
		{"acme.", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		tenant, nvc, ok := splitReference(tc.ref)
		if tenant != tc.tenant || nvc != tc.nvc || ok != tc.ok {
			t.Errorf("splitReference(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.ref, tenant, nvc, ok, tc.tenant, tc.nvc, tc.ok)
		}
	}
}

func TestOutboundPaymentAdapter_MalformedReferenceIsSkipped(t *testing.T) {
	transport := &fakeOutboundTransport{rows: []RawOutboundPayment{
		{Reference: "acme.NVC-1", Amount: "500.00", Currency: "USD"},
		{Reference: "no-dot-here", Amount: "500.00", Currency: "USD"},
		{Reference: "acme.NVC-2", Amount: "not-a-number", Currency: "USD"},
	}}
	a := &OutboundPaymentAdapter{Transport: transport, Retry: DefaultRetryPolicy()}

	records, malformed := a.Fetch(context.Background(), Window{})
	if len(records) != 1 || records[0].NvcCode != "NVC-1" || records[0].Tenant != "acme" {
		t.Fatalf("records = %+v, want exactly one NVC-1/acme row", records)
	}
	if len(malformed) != 2 {
		t.Fatalf("malformed = %d, want 2", len(malformed))
	}
}

type fakeOutboundTransport struct {
	rows []RawOutboundPayment
}

func (f *fakeOutboundTransport) FetchOutboundPayments(ctx context.Context, window Window) ([]RawOutboundPayment, error) {
	return f.rows, nil
}
