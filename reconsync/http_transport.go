package reconsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSourceConfig points one HTTP-based transport at a concrete
// endpoint. The email, invoice, inbound-funding, and outbound-payment
// transports are explicitly out of scope as external collaborators
// (§1) — only their Go contracts (EmailTransport, InvoiceTransport, …)
// are this module's concern. This file supplies one default
// implementation of those contracts, adapted from this codebase's
// existing rate-limited JSON API client pattern, so main() has a real
// transport to construct rather than a stub; a deployment with a
// different agency email system, invoice DB, or processor API swaps
// this file's clients for its own without touching reconengine.
type HTTPSourceConfig struct {
	BaseURL      string
	APIKeyHeader string
	APIKey       string
	Timeout      time.Duration
	RateLimitMin int // requests per minute; 0 disables limiting
}

// httpSourceClient is the shared low-level GET-JSON-decode client each
// of the four HTTP transports below wraps with its own response shape
// and row-mapping, mirroring pitixClient's getList (adapted here for
// the four recon source shapes instead of one sync-service API).
type httpSourceClient struct {
	cfg     HTTPSourceConfig
	http    *http.Client
	limiter <-chan time.Time
}

func newHTTPSourceClient(cfg HTTPSourceConfig) *httpSourceClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	c := &httpSourceClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
	if cfg.RateLimitMin > 0 {
		c.limiter = time.Tick(time.Minute / time.Duration(cfg.RateLimitMin))
	}
	return c
}

func (c *httpSourceClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.limiter != nil {
		<-c.limiter
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func windowParams(window Window) url.Values {
	v := url.Values{}
	v.Set("start", window.Start.UTC().Format(time.RFC3339))
	v.Set("end", window.End.UTC().Format(time.RFC3339))
	return v
}

// HTTPEmailTransport fetches remittance emails plus attachment bytes
// from a JSON endpoint (§6 email source contract).
type HTTPEmailTransport struct{ client *httpSourceClient }

func NewHTTPEmailTransport(cfg HTTPSourceConfig) *HTTPEmailTransport {
	return &HTTPEmailTransport{client: newHTTPSourceClient(cfg)}
}

type rawEmailWire struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Subject     string `json:"subject"`
	Sender      string `json:"sender"`
	EmailDate   string `json:"email_date"`
	Attachments []struct {
		Filename string `json:"filename"`
		Content  string `json:"content"` // raw attachment text, passed to the parser as-is
	} `json:"attachments"`
}

func (t *HTTPEmailTransport) FetchEmails(ctx context.Context, window Window) ([]RawEmail, error) {
	var wire []rawEmailWire
	if err := t.client.get(ctx, "/emails", windowParams(window), &wire); err != nil {
		return nil, err
	}
	out := make([]RawEmail, 0, len(wire))
	for _, w := range wire {
		date, _ := time.Parse(time.RFC3339, w.EmailDate)
		e := RawEmail{ID: w.ID, Source: w.Source, Subject: w.Subject, Sender: w.Sender, EmailDate: date}
		for _, a := range w.Attachments {
			e.Attachments = append(e.Attachments, RawAttachment{Filename: a.Filename, Content: []byte(a.Content)})
		}
		out = append(out, e)
	}
	return out, nil
}

// HTTPInvoiceTransport fetches invoice rows (§6 invoice source contract).
type HTTPInvoiceTransport struct{ client *httpSourceClient }

func NewHTTPInvoiceTransport(cfg HTTPSourceConfig) *HTTPInvoiceTransport {
	return &HTTPInvoiceTransport{client: newHTTPSourceClient(cfg)}
}

type rawInvoiceWire struct {
	NvcCode    string `json:"nvc_code"`
	Amount     string `json:"amount"`
	StatusCode int    `json:"status_code"`
	Tenant     string `json:"tenant"`
	PayrunRef  string `json:"payrun_ref"`
	Currency   string `json:"currency"`
}

func (t *HTTPInvoiceTransport) FetchInvoices(ctx context.Context, window Window) ([]RawInvoice, error) {
	var wire []rawInvoiceWire
	if err := t.client.get(ctx, "/invoices", windowParams(window), &wire); err != nil {
		return nil, err
	}
	out := make([]RawInvoice, 0, len(wire))
	for _, w := range wire {
		out = append(out, RawInvoice{
			NvcCode: w.NvcCode, Amount: w.Amount, StatusCode: w.StatusCode,
			Tenant: w.Tenant, PayrunRef: w.PayrunRef, Currency: w.Currency,
		})
	}
	return out, nil
}

// HTTPInboundFundingTransport fetches received-payment rows (§6 inbound
// funding source contract).
type HTTPInboundFundingTransport struct{ client *httpSourceClient }

func NewHTTPInboundFundingTransport(cfg HTTPSourceConfig) *HTTPInboundFundingTransport {
	return &HTTPInboundFundingTransport{client: newHTTPSourceClient(cfg)}
}

type rawReceivedPaymentWire struct {
	ID           string `json:"id"`
	SubAccountID string `json:"sub_account_id"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	PaymentDate  string `json:"payment_date"`
	Status       string `json:"status"`
	PayerInfoRaw string `json:"payer_info_raw"`
}

func (t *HTTPInboundFundingTransport) FetchReceivedPayments(ctx context.Context, window Window) ([]RawReceivedPayment, error) {
	var wire []rawReceivedPaymentWire
	if err := t.client.get(ctx, "/received-payments", windowParams(window), &wire); err != nil {
		return nil, err
	}
	out := make([]RawReceivedPayment, 0, len(wire))
	for _, w := range wire {
		date, _ := time.Parse(time.RFC3339, w.PaymentDate)
		out = append(out, RawReceivedPayment{
			ID: w.ID, SubAccountID: w.SubAccountID, Amount: w.Amount,
			Currency: w.Currency, PaymentDate: date, Status: w.Status, PayerInfoRaw: w.PayerInfoRaw,
		})
	}
	return out, nil
}

// HTTPOutboundPaymentTransport fetches outbound-payment rows (§6
// outbound payment source contract).
type HTTPOutboundPaymentTransport struct{ client *httpSourceClient }

func NewHTTPOutboundPaymentTransport(cfg HTTPSourceConfig) *HTTPOutboundPaymentTransport {
	return &HTTPOutboundPaymentTransport{client: newHTTPSourceClient(cfg)}
}

type rawOutboundPaymentWire struct {
	Reference        string `json:"reference"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Recipient        string `json:"recipient"`
	RecipientCountry string `json:"recipient_country"`
	Status           string `json:"status"`
	PaymentDate      string `json:"payment_date"`
}

func (t *HTTPOutboundPaymentTransport) FetchOutboundPayments(ctx context.Context, window Window) ([]RawOutboundPayment, error) {
	var wire []rawOutboundPaymentWire
	if err := t.client.get(ctx, "/outbound-payments", windowParams(window), &wire); err != nil {
		return nil, err
	}
	out := make([]RawOutboundPayment, 0, len(wire))
	for _, w := range wire {
		date, _ := time.Parse(time.RFC3339, w.PaymentDate)
		out = append(out, RawOutboundPayment{
			Reference: w.Reference, Amount: w.Amount, Currency: w.Currency,
			Recipient: w.Recipient, RecipientCountry: w.RecipientCountry, Status: w.Status, PaymentDate: date,
		})
	}
	return out, nil
}
