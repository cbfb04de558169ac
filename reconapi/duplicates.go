package reconapi

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/reconmatch"
	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
)

// defaultDuplicateThreshold is the fixed lexical-similarity cutoff for
// find_potential_duplicates() (§12 supplement): a grounded substitute for
// the original's embedding-based duplicate check, reusing the
// levenshtein/smetrics signal already wired for payer-name matching
// (§4.4) instead of an embedding model this pack does not carry.
const defaultDuplicateThreshold = 0.85

// DuplicatePair is one candidate pair of remittance emails whose subject
// text is lexically close enough to suspect a re-send or duplicate
// ingestion rather than two distinct remittances.
type DuplicatePair struct {
	EmailID      string  `json:"email_id"`
	OtherID      string  `json:"other_id"`
	Subject      string  `json:"subject"`
	OtherSubject string  `json:"other_subject"`
	Score        float64 `json:"score"`
}

// FindPotentialDuplicateEmails compares every pair of cached emails in
// [windowStart, windowEnd] that share the same sender by subject-text
// similarity, flagging pairs at or above threshold. Bounded to one window at a time — this is an
// operator-triggered lookup, not a per-cycle scan, so an O(n^2) pairwise
// comparison over a day's worth of emails is acceptable.
func FindPotentialDuplicateEmails(ctx context.Context, db *gorm.DB, windowStart, windowEnd time.Time, threshold float64) ([]DuplicatePair, error) {
	if threshold <= 0 {
		threshold = defaultDuplicateThreshold
	}
	var emails []reconmodel.CachedEmail
	if err := db.WithContext(ctx).
		Where("email_date BETWEEN ? AND ?", windowStart, windowEnd).
		Order("email_date ASC").
		Find(&emails).Error; err != nil {
		return nil, err
	}

	var out []DuplicatePair
	for i := 0; i < len(emails); i++ {
		for j := i + 1; j < len(emails); j++ {
			if emails[i].Sender != emails[j].Sender {
				continue
			}
			score := reconmatch.TextSimilarity(emails[i].Subject, emails[j].Subject)
			if score < threshold {
				continue
			}
			out = append(out, DuplicatePair{
				EmailID: emails[i].ID, OtherID: emails[j].ID,
				Subject: emails[i].Subject, OtherSubject: emails[j].Subject,
				Score: score,
			})
		}
	}
	return out, nil
}
