package reconmatch

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
)

func defaultTolerances() Tolerances {
	return Tolerances{
		AmountTolerance: decimal.NewFromFloat(0.01),
		DateWindowDays:  3,
		AutoMatchConf:   0.80,
		SuggestConf:     0.50,
	}
}

func amountPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestClassify_LegCombinations(t *testing.T) {
	tol := defaultTolerances()

	cases := []struct {
		name   string
		record *reconmodel.ReconciliationRecord
		want   reconmodel.Status
	}{
		{
			name:   "no legs",
			record: &reconmodel.ReconciliationRecord{},
			want:   reconmodel.StatusUnmatched,
		},
		{
			name:   "remittance only",
			record: &reconmodel.ReconciliationRecord{RemittanceAmount: amountPtr(100)},
			want:   reconmodel.StatusRemittanceOnly,
		},
		{
			name:   "invoice only",
			record: &reconmodel.ReconciliationRecord{InvoiceAmount: amountPtr(100)},
			want:   reconmodel.StatusInvoiceOnly,
		},
		{
			name:   "payment only",
			record: &reconmodel.ReconciliationRecord{PaymentAmount: amountPtr(100)},
			want:   reconmodel.StatusPaymentOnly,
		},
		{
			name: "invoice and payment, no remittance",
			record: &reconmodel.ReconciliationRecord{
				InvoiceAmount: amountPtr(100),
				PaymentAmount: amountPtr(100),
			},
			want: reconmodel.StatusInvoicePaymentOnly,
		},
		{
			name: "remittance and invoice agree, no funding or payment",
			record: &reconmodel.ReconciliationRecord{
				RemittanceAmount: amountPtr(100),
				InvoiceAmount:    amountPtr(100),
			},
			want: reconmodel.Status2WayMatched,
		},
		{
			name: "remittance and invoice mismatch",
			record: &reconmodel.ReconciliationRecord{
				RemittanceAmount: amountPtr(100),
				InvoiceAmount:    amountPtr(150),
			},
			want: reconmodel.StatusAmountMismatch,
		},
		{
			name: "three legs, funding present, no payment yet",
			record: &reconmodel.ReconciliationRecord{
				RemittanceAmount:      amountPtr(100),
				InvoiceAmount:         amountPtr(100),
				ReceivedPaymentAmount: amountPtr(100),
			},
			want: reconmodel.Status3WayAwaitingPayment,
		},
		{
			name: "three legs, payment present, no funding",
			record: &reconmodel.ReconciliationRecord{
				RemittanceAmount: amountPtr(100),
				InvoiceAmount:    amountPtr(100),
				PaymentAmount:    amountPtr(100),
			},
			want: reconmodel.Status3WayNoFunding,
		},
		{
			name: "all four legs agree",
			record: &reconmodel.ReconciliationRecord{
				RemittanceAmount:      amountPtr(100),
				InvoiceAmount:         amountPtr(100),
				ReceivedPaymentAmount: amountPtr(100),
				PaymentAmount:         amountPtr(100),
			},
			want: reconmodel.StatusFull4Way,
		},
		{
			name: "four legs, payment disagrees with remittance",
			record: &reconmodel.ReconciliationRecord{
				RemittanceAmount:      amountPtr(100),
				InvoiceAmount:         amountPtr(100),
				ReceivedPaymentAmount: amountPtr(100),
				PaymentAmount:         amountPtr(80),
			},
			want: reconmodel.StatusAmountMismatch,
		},
		{
			name: "four legs, cross currency skip falls back to awaiting payment",
			record: &reconmodel.ReconciliationRecord{
				RemittanceAmount:      amountPtr(100),
				InvoiceAmount:         amountPtr(100),
				InvoiceCurrency:       strPtr("USD"),
				ReceivedPaymentAmount: amountPtr(100),
				PaymentAmount:         amountPtr(100),
				PaymentCurrency:       strPtr("EUR"),
			},
			want: reconmodel.Status3WayAwaitingPayment,
		},
		{
			name: "invoice status issue overrides amount-agreeing classification",
			record: &reconmodel.ReconciliationRecord{
				RemittanceAmount: amountPtr(100),
				InvoiceAmount:    amountPtr(100),
				InvoiceStatus:    intPtr(5), // Rejected
			},
			want: reconmodel.StatusIssue,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Classify(tc.record, tol)
			if got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestReclassifySticky_ResolvedSurvivesUntilAmountMismatch(t *testing.T) {
	tol := defaultTolerances()

	rec := &reconmodel.ReconciliationRecord{
		RemittanceAmount: amountPtr(100),
		InvoiceAmount:    amountPtr(100),
		MatchStatus:      string(reconmodel.StatusResolved),
	}
	status, _ := ReclassifySticky(rec, tol)
	if status != reconmodel.StatusResolved {
		t.Fatalf("resolved row with agreeing amounts should stay resolved, got %s", status)
	}

	rec.InvoiceAmount = amountPtr(150)
	status, _ = ReclassifySticky(rec, tol)
	if status != reconmodel.StatusAmountMismatch {
		t.Fatalf("resolved row with disagreeing amounts should flip to amount_mismatch, got %s", status)
	}
}
