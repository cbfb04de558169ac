package reconsync

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RemittanceLine is one NVC-coded line item parsed out of a remittance
// attachment (§4.1); the email-level lump sum and agency name are carried
// on ParsedRemittance.
type RemittanceLine struct {
	NvcCode    string
	Amount     decimal.Decimal
	Contractor string
	Notes      string
}

type ParsedRemittance struct {
	Lines           []RemittanceLine
	RemittanceTotal decimal.Decimal
	AgencyName      string
	PaymentDate     time.Time
}

// ParseOasysCSV parses the OASYS header-plus-tab-delimited-body format:
// metadata lines (Account Number:, Payment date: in YYYYMMDD, Payment
// Amount : with thousands separators) followed by a "Ref Number" header
// row and tab-separated line items. Grounded in the original parser's
// exact field order: pay_run_ref, nvc_code, contractor_name, company,
// invoice_date, original_amount, amount_paid, discount.
func ParseOasysCSV(raw []byte) (ParsedRemittance, error) {
	var out ParsedRemittance
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inBody := false
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if !inBody {
			switch {
			case strings.HasPrefix(trimmed, "Account Number:"):
				out.AgencyName = strings.TrimSpace(strings.TrimPrefix(trimmed, "Account Number:"))
			case strings.HasPrefix(trimmed, "Payment date:"):
				dateStr := strings.TrimSpace(strings.TrimPrefix(trimmed, "Payment date:"))
				if t, err := time.Parse("20060102", dateStr); err == nil {
					out.PaymentDate = t
				}
			case strings.HasPrefix(trimmed, "Payment Amount"):
				idx := strings.Index(trimmed, ":")
				if idx >= 0 {
					amtStr := strings.ReplaceAll(strings.TrimSpace(trimmed[idx+1:]), ",", "")
					if amt, err := decimal.NewFromString(amtStr); err == nil {
						out.RemittanceTotal = amt
					}
				}
			case strings.HasPrefix(trimmed, "Ref Number"):
				inBody = true
			}
			continue
		}

		if trimmed == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(fields[6], ",", "")))
		if err != nil {
			continue
		}
		out.Lines = append(out.Lines, RemittanceLine{
			NvcCode:    strings.TrimSpace(fields[1]),
			Amount:     amount,
			Contractor: strings.TrimSpace(fields[2]),
			Notes:      strings.TrimSpace(fields[3]),
		})
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("parse oasys csv: %w", err)
	}
	return out, nil
}

func parseFloatLoose(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}
