// Package reconmatch implements the stateless matching functions: the
// per-NVC leg classifier (§4.3) and the lump-sum-to-remittance fuzzy
// matcher (§4.4). Nothing here touches the store; classify and Score
// are pure functions over values, which is what makes property 1
// (classify(r) == stored match_status) checkable at all.
package reconmatch

import (
	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
)

// Tolerances bundles the configuration the classifier and lump-sum
// matcher need; all four values are environment-configured (§6), never
// hard-coded.
type Tolerances struct {
	AmountTolerance decimal.Decimal
	DateWindowDays  int
	AutoMatchConf   float64
	SuggestConf     float64
}

// Classify implements classify(record, tol) -> (status, flags) from §4.3.
// It never mutates r and never consults sticky state: callers wanting the
// "resolved survives unless amounts now disagree" rule (§4.5) apply that
// one rule themselves before/after calling Classify, since it is a
// property of the stored row's history, not of the leg values alone.
func Classify(r *reconmodel.ReconciliationRecord, tol Tolerances) (reconmodel.Status, []string) {
	legs := r.Legs()
	var flags []string

	switch {
	case legs.Remittance && legs.Invoice:
		amountsAgree := amountsMatch(r.RemittanceAmount, r.InvoiceAmount, tol.AmountTolerance)

		if r.InvoiceStatus != nil && reconmodel.InvoiceStatus(*r.InvoiceStatus).IsStatusIssue() && amountsAgree {
			// §4.3 step 3: status override. This takes priority over the
			// matched/mismatched classification below and must not also
			// bump those counters (enforced by the caller's summary()
			// aggregation, which buckets by this exact status).
			return reconmodel.StatusIssue, flags
		}

		if !amountsAgree {
			flags = append(flags, "amount_mismatch")
			return reconmodel.StatusAmountMismatch, flags
		}

		// Amounts agree: promote toward full_4way if legs 3 and 4 are
		// also present and leg 4 agrees with leg 1 (currency-gated).
		if legs.Funding && legs.Payment {
			paymentAgrees, skipped := currencyGatedMatch(r.RemittanceAmount, r.PaymentAmount, r.InvoiceCurrency, r.PaymentCurrency, tol.AmountTolerance)
			if skipped {
				flags = append(flags, "cross_currency_skip")
				return reconmodel.Status3WayAwaitingPayment, flags
			}
			if paymentAgrees {
				return reconmodel.StatusFull4Way, flags
			}
			flags = append(flags, "payment_amount_mismatch")
			return reconmodel.StatusAmountMismatch, flags
		}
		if legs.Funding && !legs.Payment {
			return reconmodel.Status3WayAwaitingPayment, flags
		}
		if !legs.Funding && legs.Payment {
			return reconmodel.Status3WayNoFunding, flags
		}
		return reconmodel.Status2WayMatched, flags

	case legs.Invoice && legs.Payment && !legs.Remittance:
		return reconmodel.StatusInvoicePaymentOnly, flags

	case legs.Remittance && !legs.Invoice && !legs.Funding && !legs.Payment:
		return reconmodel.StatusRemittanceOnly, flags

	case legs.Invoice && !legs.Remittance && !legs.Funding && !legs.Payment:
		return reconmodel.StatusInvoiceOnly, flags

	case legs.Payment && !legs.Remittance && !legs.Invoice && !legs.Funding:
		return reconmodel.StatusPaymentOnly, flags

	default:
		return reconmodel.StatusUnmatched, flags
	}
}

// ReclassifySticky applies the §4.5 stickiness rule on top of Classify:
// a manually `resolved` row stays resolved unless the fresh classification
// would be amount_mismatch, in which case the sticky terminal state is
// invalidated and the row flips to amount_mismatch. full_4way is sticky
// only in the sense that it is itself a terminal class Classify can
// re-derive; it carries no extra state beyond what Classify computes.
func ReclassifySticky(r *reconmodel.ReconciliationRecord, tol Tolerances) (reconmodel.Status, []string) {
	fresh, flags := Classify(r, tol)
	if reconmodel.Status(r.MatchStatus) == reconmodel.StatusResolved {
		if fresh == reconmodel.StatusAmountMismatch {
			return fresh, flags
		}
		return reconmodel.StatusResolved, flags
	}
	return fresh, flags
}

func amountsMatch(a, b *decimal.Decimal, tol decimal.Decimal) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Sub(*b).Abs().LessThanOrEqual(tol)
}

// currencyGatedMatch reports (agrees, skipped). skipped is true when a
// cross-currency comparison would be required and is therefore skipped
// per invariant (e); the caller falls back to the weakest class that
// does not require it.
func currencyGatedMatch(remit *decimal.Decimal, payment *decimal.Decimal, invoiceCcy, paymentCcy *string, tol decimal.Decimal) (agrees bool, skipped bool) {
	if remit == nil || payment == nil {
		return false, false
	}
	if invoiceCcy != nil && paymentCcy != nil && *invoiceCcy != "" && *paymentCcy != "" && *invoiceCcy != *paymentCcy {
		return false, true
	}
	return amountsMatch(remit, payment, tol), false
}
