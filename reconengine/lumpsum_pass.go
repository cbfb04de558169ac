package reconengine

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/reconmatch"
	"bitbucket.org/mmdatafocus/reconsvc/reconstore"
)

// LumpSumPassResult summarizes one RunLumpSumPass call, returned so the
// scheduler (§5 step 5) can fold it into the SyncRun's LinksApplied count.
type LumpSumPassResult struct {
	Considered  int
	AutoLinked  int
	Suggested   int
	NVCsUpdated int
}

// RunLumpSumPass is step 5 of the sync cycle (§5): link unmatched
// received payments to unmatched remittance emails within [windowStart,
// windowEnd], at or above AutoMatchConf, then propagate the linked
// funding to every NVC row fanned out from the linked email (§4.4,
// invariant (d)). It must run after the email and received-payment
// steps have both completed for the cycle; the caller is responsible
// for that ordering (§5), not this function.
//
// Each received payment links to at most one email and vice versa
// (§3 invariant (d), strict 1:1 per §9 open question (i)): once an
// email is linked within this pass it is removed from the candidate
// pool so a later, lower-scoring payment cannot steal it.
func (e *Engine) RunLumpSumPass(ctx context.Context, windowStart, windowEnd time.Time) (LumpSumPassResult, error) {
	var result LumpSumPassResult

	db := e.Store.WithContext(ctx)
	payments, err := reconstore.UnlinkedReceivedPayments(db, windowStart, windowEnd)
	if err != nil {
		return result, err
	}
	emails, err := reconstore.UnlinkedRemittanceEmails(db, windowStart, windowEnd)
	if err != nil {
		return result, err
	}

	available := make([]bool, len(emails))
	for i := range available {
		available[i] = true
	}

	for _, rp := range payments {
		result.Considered++
		bestIdx := -1
		var bestScore reconmatch.LumpSumScore

		for i, email := range emails {
			if !available[i] || email.RemittanceTotal == nil {
				continue
			}
			agencyName := ""
			if email.AgencyName != nil {
				agencyName = *email.AgencyName
			}
			score := reconmatch.ScoreLumpSum(reconmatch.LumpSumCandidate{
				ReceivedPaymentAmount: rp.Amount,
				ReceivedPaymentDate:   rp.PaymentDate,
				PayerRaw:              rp.PayerInfoRaw,
				EmailID:               email.ID,
				EmailTotal:            *email.RemittanceTotal,
				EmailDate:             email.EmailDate,
				AgencyName:            agencyName,
			}, e.Aliases, e.Tol)

			if bestIdx == -1 || score.Total > bestScore.Total {
				bestIdx = i
				bestScore = score
			}
		}

		if bestIdx == -1 {
			continue
		}
		switch bestScore.Decision {
		case reconmatch.LinkSuggest:
			result.Suggested++
		case reconmatch.LinkAuto:
			emailID := emails[bestIdx].ID
			nvcs, linkErr := e.linkAndPropagate(ctx, emailID, rp.ID, bestScore.Total)
			if linkErr != nil {
				e.logError("RunLumpSumPass", emailID, linkErr)
				continue
			}
			available[bestIdx] = false
			result.AutoLinked++
			result.NVCsUpdated += len(nvcs)
		}
	}

	return result, nil
}

// linkAndPropagate records the link decision, fans the funding fields
// out to every affected NVC, and reclassifies each one under its own
// lock — mirroring the per-NVC serialization the batch-apply paths use.
func (e *Engine) linkAndPropagate(ctx context.Context, emailID, receivedPaymentID string, confidence float64) ([]string, error) {
	var nvcs []string
	err := e.Store.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := reconstore.LinkReceivedPaymentToEmail(tx, emailID, receivedPaymentID, confidence, string(reconmatch.LinkAuto)); err != nil {
			return err
		}
		affected, err := reconstore.PropagateFundingToNVCs(tx, emailID)
		if err != nil {
			return err
		}
		nvcs = affected
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, nvc := range nvcs {
		if err := e.Reclassify(ctx, nvc); err != nil {
			e.logError("linkAndPropagate.reclassify", nvc, err)
		}
	}
	return nvcs, nil
}
