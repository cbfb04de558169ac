package reconapi

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/reconmatch"
	"bitbucket.org/mmdatafocus/reconsvc/reconstore"
)

// Suggestion is one ranked candidate for a missing leg on an NVC row
// (§4.6 suggestions(nvc)): "potential partners for missing legs, ranked
// by the matcher's score (amount-window + tenant gate)".
type Suggestion struct {
	Leg        string  `json:"leg"` // received_payment | outbound_payment
	TargetID   string  `json:"target_id"`
	Score      float64 `json:"score"`
	Decision   string  `json:"decision"` // auto | suggest | unmatched
	AmountDiff string  `json:"amount_diff"`
}

// suggestionWindowMultiple widens the classifier's amount tolerance for
// the *candidate pool*, not for the decision itself: a suggestion list
// is meant to surface near-misses an operator can eyeball, so it casts
// a wider net than the auto-match threshold that governs the automatic
// passes.
const suggestionWindowMultiple = 50

// Suggestions ranks candidate partners for whichever of legs 3 and 4
// are missing on nvc's row. Leg 1 and leg 2 are not suggested: both are
// upserted directly from their own source by NVC code (§4.1), so a
// missing one means the source simply hasn't reported it yet, not that
// a fuzzy partner search would find it.
func Suggestions(ctx context.Context, db *gorm.DB, nvc string, tol reconmatch.Tolerances, aliases reconmatch.AliasTable) ([]Suggestion, error) {
	rec, err := reconstore.GetByNVC(ctx, db, nvc)
	if err != nil {
		return nil, err
	}
	legs := rec.Legs()

	var out []Suggestion
	tx := db.WithContext(ctx)

	if !legs.Funding && rec.RemittanceEmailId != nil {
		sugg, err := suggestFunding(tx, *rec.RemittanceEmailId, aliases, tol)
		if err != nil {
			return nil, err
		}
		out = append(out, sugg...)
	}

	if !legs.Payment && legs.Invoice && rec.InvoiceAmount != nil {
		sugg, err := suggestOutboundPayment(tx, *rec.InvoiceAmount, rec.InvoiceTenant, tol)
		if err != nil {
			return nil, err
		}
		out = append(out, sugg...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func suggestFunding(tx *gorm.DB, emailID string, aliases reconmatch.AliasTable, tol reconmatch.Tolerances) ([]Suggestion, error) {
	email, err := reconstore.GetCachedEmail(tx, emailID)
	if err != nil || email.RemittanceTotal == nil {
		return nil, nil
	}
	window := time.Duration(tol.DateWindowDays*4) * 24 * time.Hour
	candidates, err := reconstore.UnlinkedReceivedPayments(tx, email.EmailDate.Add(-window), email.EmailDate.Add(window))
	if err != nil {
		return nil, err
	}

	agencyName := ""
	if email.AgencyName != nil {
		agencyName = *email.AgencyName
	}

	var out []Suggestion
	for _, rp := range candidates {
		score := reconmatch.ScoreLumpSum(reconmatch.LumpSumCandidate{
			ReceivedPaymentAmount: rp.Amount,
			ReceivedPaymentDate:   rp.PaymentDate,
			PayerRaw:              rp.PayerInfoRaw,
			EmailID:               email.ID,
			EmailTotal:            *email.RemittanceTotal,
			EmailDate:             email.EmailDate,
			AgencyName:            agencyName,
		}, aliases, tol)
		if score.Total < tol.SuggestConf {
			continue
		}
		out = append(out, Suggestion{
			Leg:        "received_payment",
			TargetID:   rp.ID,
			Score:      score.Total,
			Decision:   string(score.Decision),
			AmountDiff: rp.Amount.Sub(*email.RemittanceTotal).Abs().StringFixed(2),
		})
	}
	return out, nil
}

func suggestOutboundPayment(tx *gorm.DB, target decimal.Decimal, tenant *string, tol reconmatch.Tolerances) ([]Suggestion, error) {
	window := tol.AmountTolerance.Mul(decimal.NewFromInt(suggestionWindowMultiple))
	if window.LessThan(decimal.NewFromFloat(5)) {
		window = decimal.NewFromFloat(5)
	}
	t := ""
	if tenant != nil {
		t = *tenant
	}
	candidates, err := reconstore.UnclaimedCachedPayments(tx, t, target.Sub(window), target.Add(window))
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	for _, p := range candidates {
		if p.NvcCode != "" {
			// Already claimed by another NVC via a prior upsert; not a
			// candidate for this row's suggestion list.
			continue
		}
		score := reconmatch.ScoreAmount(p.Amount, target)
		if score <= 0 {
			continue
		}
		decision := string(reconmatch.LinkUnmatched)
		switch {
		case score >= tol.AutoMatchConf:
			decision = string(reconmatch.LinkAuto)
		case score >= tol.SuggestConf:
			decision = string(reconmatch.LinkSuggest)
		}
		out = append(out, Suggestion{
			Leg:        "outbound_payment",
			TargetID:   p.Reference,
			Score:      score,
			Decision:   decision,
			AmountDiff: p.Amount.Sub(target).Abs().StringFixed(2),
		})
	}
	return out, nil
}
