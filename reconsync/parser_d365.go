package reconsync

import (
	"encoding/csv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseD365CSV parses the D365_ACH structured-CSV format: named header
// columns, read permissively — a row that fails to decode is retained as
// a raw-line record (empty NvcCode, Notes carries the original text)
// in the parsed result rather than dropped (grounded in the original
// parser's DictReader-with-fallback behavior). The engine skips such
// rows when applying the email and does not store them.
func ParseD365CSV(raw []byte) (ParsedRemittance, error) {
	var out ParsedRemittance
	r := csv.NewReader(strings.NewReader(string(raw)))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return out, nil // empty/unreadable attachment: caller flags manual_review
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}

	get := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		nvc := get(row, "nvc_code")
		amountStr := get(row, "amount_paid")
		if amountStr == "" {
			amountStr = get(row, "amount")
		}
		if nvc == "" || amountStr == "" {
			// Unparseable row kept as a raw-line record for manual review
			// rather than silently dropped.
			out.Lines = append(out.Lines, RemittanceLine{
				Notes: strings.Join(row, ","),
			})
			continue
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(amountStr, ",", ""))
		if err != nil {
			out.Lines = append(out.Lines, RemittanceLine{Notes: strings.Join(row, ",")})
			continue
		}
		out.Lines = append(out.Lines, RemittanceLine{
			NvcCode:    nvc,
			Amount:     amount,
			Contractor: get(row, "contractor_name"),
			Notes:      get(row, "notes"),
		})
	}
	return out, nil
}
