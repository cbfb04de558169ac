package reconmatch

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	weightAmount = 0.5
	weightDate   = 0.2
	weightPayer  = 0.3
)

// LinkDecision is the outcome of scoring one (received payment, email)
// pair: LinkAuto at/above AutoMatchConf, LinkSuggest in [SuggestConf,
// AutoMatchConf), LinkUnmatched below SuggestConf.
type LinkDecision string

const (
	LinkAuto      LinkDecision = "auto"
	LinkSuggest   LinkDecision = "suggest"
	LinkUnmatched LinkDecision = "unmatched"
)

// LumpSumCandidate is the pair under evaluation for the leg 3 <-> leg 1
// fuzzy match (§4.4).
type LumpSumCandidate struct {
	ReceivedPaymentAmount decimal.Decimal
	ReceivedPaymentDate   time.Time
	PayerRaw              string

	EmailID     string
	EmailTotal  decimal.Decimal
	EmailDate   time.Time
	AgencyName  string
}

// LumpSumScore holds the weighted total plus each signal's sub-score, so
// callers (suggestions(), tests) can explain a match.
type LumpSumScore struct {
	Total       float64
	AmountScore float64
	DateScore   float64
	PayerScore  float64
	Decision    LinkDecision
}

// ScoreLumpSum computes the weighted score described in §4.4 and
// classifies it against the two configured thresholds.
func ScoreLumpSum(c LumpSumCandidate, aliases AliasTable, tol Tolerances) LumpSumScore {
	amountScore := scoreAmount(c.ReceivedPaymentAmount, c.EmailTotal)
	dateScore := scoreDate(c.ReceivedPaymentDate, c.EmailDate)
	payerScore := PayerNameScore(c.PayerRaw, c.AgencyName, aliases)

	total := weightAmount*amountScore + weightDate*dateScore + weightPayer*payerScore

	decision := LinkUnmatched
	switch {
	case total >= tol.AutoMatchConf:
		decision = LinkAuto
	case total >= tol.SuggestConf:
		decision = LinkSuggest
	}

	return LumpSumScore{
		Total:       total,
		AmountScore: amountScore,
		DateScore:   dateScore,
		PayerScore:  payerScore,
		Decision:    decision,
	}
}

// ScoreAmount exposes the §4.4 amount signal standalone, for the
// suggestions(nvc) endpoint's amount-window ranking of candidates that
// aren't a full lump-sum (payer/date) comparison — a missing leg 4
// candidate has no "email date" to score against, only an amount.
func ScoreAmount(a, b decimal.Decimal) float64 { return scoreAmount(a, b) }

// scoreAmount implements the §4.4 amount signal: exact within tolerance
// (here a fixed 0.01 relative-to-absolute floor, since the signal itself
// is independent of the classifier's configured AMOUNT_TOL) -> 1.0;
// within 1% -> 0.7; within 5% -> 0.3; else 0.0.
func scoreAmount(a, b decimal.Decimal) float64 {
	if b.IsZero() {
		if a.IsZero() {
			return 1.0
		}
		return 0.0
	}
	diffRatio := a.Sub(b).Abs().Div(b).Abs()
	diff := a.Sub(b).Abs()

	switch {
	case diff.LessThanOrEqual(decimal.NewFromFloat(0.01)):
		return 1.0
	case diffRatio.LessThanOrEqual(decimal.NewFromFloat(0.01)):
		return 0.7
	case diffRatio.LessThanOrEqual(decimal.NewFromFloat(0.05)):
		return 0.3
	default:
		return 0.0
	}
}

// scoreDate implements the §4.4 date signal: same day -> 1.0; +-1 day ->
// 0.8; +-3 days -> 0.5; +-7 days -> 0.2; else 0.0.
func scoreDate(a, b time.Time) float64 {
	days := math.Abs(a.Sub(b).Hours() / 24.0)
	switch {
	case days < 1:
		return 1.0
	case days <= 1:
		return 0.8
	case days <= 3:
		return 0.5
	case days <= 7:
		return 0.2
	default:
		return 0.0
	}
}
