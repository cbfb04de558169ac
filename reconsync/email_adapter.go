package reconsync

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EmailRecord is the adapter's output for one fetched message: either
// parsed line items plus a lump-sum total and agency name, or
// ManualReview=true when the attachment format could not be decoded
// (§4.1).
type EmailRecord struct {
	ID              string
	Source          string
	Subject         string
	Sender          string
	EmailDate       time.Time
	FetchedAt       time.Time
	AttachmentNames []string
	Lines           []RemittanceLine
	RemittanceTotal decimal.Decimal
	AgencyName      string
	ManualReview    bool
}

// EmailAdapter fetches remittance emails and runs the parser per §4.1.
type EmailAdapter struct {
	Transport EmailTransport
	Retry     RetryPolicy
}

func NewEmailAdapter(t EmailTransport) *EmailAdapter {
	return &EmailAdapter{Transport: t, Retry: DefaultRetryPolicy()}
}

func (a *EmailAdapter) Fetch(ctx context.Context, window Window) ([]EmailRecord, error) {
	var raw []RawEmail
	err := a.Retry.WithRetry(ctx, "emails", func(ctx context.Context) error {
		var fetchErr error
		raw, fetchErr = a.Transport.FetchEmails(ctx, window)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]EmailRecord, 0, len(raw))
	for _, e := range raw {
		rec := EmailRecord{
			ID:        e.ID,
			Source:    e.Source,
			Subject:   e.Subject,
			Sender:    e.Sender,
			EmailDate: e.EmailDate,
			FetchedAt: now,
		}
		for _, att := range e.Attachments {
			rec.AttachmentNames = append(rec.AttachmentNames, att.Filename)
		}

		// ldn_gss never yields line items; it is always flagged for
		// manual review per §6.
		if e.Source == "ldn_gss" {
			rec.ManualReview = true
			out = append(out, rec)
			continue
		}

		parsed, ok := parseAttachments(e)
		if !ok {
			rec.ManualReview = true
			out = append(out, rec)
			continue
		}
		rec.Lines = parsed.Lines
		rec.RemittanceTotal = parsed.RemittanceTotal
		rec.AgencyName = parsed.AgencyName
		if rec.AgencyName == "" {
			rec.AgencyName = e.Sender
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseAttachments dispatches each attachment to the parser matching the
// email's source key and returns the first result that decodes to at
// least one line; later attachments are not read. The email falls back
// to manual review (§4.1) only when no attachment decodes.
func parseAttachments(e RawEmail) (ParsedRemittance, bool) {
	for _, att := range e.Attachments {
		name := strings.ToLower(att.Filename)
		switch {
		case e.Source == "oasys" || strings.HasSuffix(name, ".txt"):
			parsed, err := ParseOasysCSV(att.Content)
			if err == nil && len(parsed.Lines) > 0 {
				return parsed, true
			}
		case e.Source == "d365_ach" || strings.HasSuffix(name, ".csv"):
			parsed, err := ParseD365CSV(att.Content)
			if err == nil && len(parsed.Lines) > 0 {
				return parsed, true
			}
		}
	}
	return ParsedRemittance{}, false
}
