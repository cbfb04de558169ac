// Package reconengine is the reconciliation engine (§4.5, L4): the
// per-NVC upsert-and-reclassify orchestrator that sits between the
// source adapters (reconsync) and the local store (reconstore), calling
// the pure matcher (reconmatch) to derive each row's match_status. It
// is the hard-engineering core this spec calls out in §1: the per-NVC
// state machine, the idempotent upsert-and-reclassify logic, and the
// lump-sum-to-remittance linking pass.
package reconengine

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/config"
	"bitbucket.org/mmdatafocus/reconsvc/reconmatch"
	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
	"bitbucket.org/mmdatafocus/reconsvc/reconstore"
	"bitbucket.org/mmdatafocus/reconsvc/reconsync"
)

// Engine orchestrates upserts for all four legs plus the lump-sum
// matcher pass. It holds no business state of its own beyond the
// in-process per-NVC lock map; all durable state lives in Store.
type Engine struct {
	Store   *reconstore.Store
	Tol     reconmatch.Tolerances
	Aliases reconmatch.AliasTable
	Logger  *logrus.Logger

	locks *nvcLocks
}

func New(store *reconstore.Store, tol reconmatch.Tolerances, aliases reconmatch.AliasTable, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Engine{Store: store, Tol: tol, Aliases: aliases, Logger: logger, locks: newNVCLocks()}
}

// ApplyEmailBatch upserts the cache row for every fetched email, then —
// for any email that parsed successfully (ManualReview == false) — the
// per-NVC remittance lines it contains, reclassifying each affected NVC.
// A manual_review email contributes no NVC updates (§8 boundary
// behaviour) and never participates in the lump-sum pass (§4.4).
func (e *Engine) ApplyEmailBatch(ctx context.Context, records []reconsync.EmailRecord) (applied int, errs []error) {
	for _, rec := range records {
		err := e.Store.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			email := reconmodel.CachedEmail{
				ID:              rec.ID,
				Source:          rec.Source,
				Subject:         rec.Subject,
				Sender:          rec.Sender,
				EmailDate:       rec.EmailDate,
				AttachmentsJSON: reconstore.MarshalAttachments(rec.AttachmentNames),
				ManualReview:    rec.ManualReview,
			}
			if !rec.RemittanceTotal.IsZero() {
				total := rec.RemittanceTotal
				email.RemittanceTotal = &total
			}
			if rec.AgencyName != "" {
				name := rec.AgencyName
				email.AgencyName = &name
			}
			_, err := reconstore.UpsertCachedEmail(tx, email)
			return err
		})
		if err != nil {
			e.logError("ApplyEmailBatch", rec.ID, err)
			errs = append(errs, err)
			continue
		}
		applied++

		if rec.ManualReview {
			continue
		}
		for _, line := range rec.Lines {
			if line.NvcCode == "" {
				// Unparseable row (no NVC code): it contributes no
				// reconciliation update and is not persisted.
				continue
			}
			nvc := line.NvcCode
			lineErr := e.withNVCLock(nvc, func() error {
				return e.Store.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
					if _, err := reconstore.UpsertRemittanceLine(tx, reconstore.RemittanceLine{
						NvcCode:    nvc,
						Amount:     line.Amount,
						Date:       rec.EmailDate,
						Source:     rec.Source,
						EmailID:    rec.ID,
						Contractor: line.Contractor,
					}); err != nil {
						return err
					}
					return e.reclassify(tx, nvc)
				})
			})
			if lineErr != nil {
				e.logError("ApplyEmailBatch.line", nvc, lineErr)
				errs = append(errs, lineErr)
			}
		}
	}
	return applied, errs
}

// ApplyInvoiceBatch upserts leg 2 for each invoice row and reclassifies
// the NVC, one transaction per NVC under its lock (§4.5 step 2-3).
func (e *Engine) ApplyInvoiceBatch(ctx context.Context, records []reconsync.InvoiceRecord) (applied int, errs []error) {
	for _, rec := range records {
		nvc := rec.NvcCode
		err := e.withNVCLock(nvc, func() error {
			return e.Store.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if err := reconstore.UpsertCachedInvoice(tx, reconmodel.CachedInvoice{
					NvcCode:    nvc,
					Amount:     rec.Amount,
					StatusCode: rec.Status,
					Tenant:     rec.Tenant,
					PayrunRef:  rec.PayrunRef,
					Currency:   rec.Currency,
				}); err != nil {
					return err
				}
				if _, err := reconstore.UpsertInvoice(tx, reconstore.InvoiceUpdate{
					NvcCode:   nvc,
					Amount:    rec.Amount,
					Status:    rec.Status,
					Tenant:    rec.Tenant,
					PayrunRef: rec.PayrunRef,
					Currency:  rec.Currency,
				}); err != nil {
					return err
				}
				return e.reclassify(tx, nvc)
			})
		})
		if err != nil {
			e.logError("ApplyInvoiceBatch", nvc, err)
			errs = append(errs, err)
			continue
		}
		applied++
	}
	return applied, errs
}

// ApplyOutboundBatch upserts leg 4 for each outbound payment and
// reclassifies the NVC.
func (e *Engine) ApplyOutboundBatch(ctx context.Context, records []reconsync.OutboundPaymentRecord) (applied int, errs []error) {
	for _, rec := range records {
		nvc := rec.NvcCode
		err := e.withNVCLock(nvc, func() error {
			return e.Store.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if err := reconstore.UpsertCachedPayment(tx, reconmodel.CachedPayment{
					Reference:        rec.Reference,
					NvcCode:          nvc,
					Tenant:           rec.Tenant,
					Amount:           rec.Amount,
					Currency:         rec.Currency,
					Recipient:        rec.Recipient,
					RecipientCountry: rec.RecipientCountry,
					Status:           rec.Status,
					PaymentDate:      rec.PaymentDate,
				}); err != nil {
					return err
				}
				if _, err := reconstore.UpsertOutboundPayment(tx, reconstore.OutboundPaymentUpdate{
					NvcCode:          nvc,
					Amount:           rec.Amount,
					AccountID:        rec.Reference,
					Date:             rec.PaymentDate,
					Currency:         rec.Currency,
					Status:           rec.Status,
					Recipient:        rec.Recipient,
					RecipientCountry: rec.RecipientCountry,
				}); err != nil {
					return err
				}
				return e.reclassify(tx, nvc)
			})
		})
		if err != nil {
			e.logError("ApplyOutboundBatch", nvc, err)
			errs = append(errs, err)
			continue
		}
		applied++
	}
	return applied, errs
}

// ApplyInboundBatch upserts leg 3's pre-link cache rows. Received
// payments carry no NVC code (§4.4), so this never reclassifies a
// ReconciliationRecord directly; linking and propagation happen in the
// separate lump-sum pass (RunLumpSumPass) that must run after both the
// email and inbound-funding steps have completed for the cycle (§5).
func (e *Engine) ApplyInboundBatch(ctx context.Context, records []reconsync.InboundPaymentRecord) (applied int, errs []error) {
	for _, rec := range records {
		err := e.Store.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return reconstore.UpsertReceivedPayment(tx, reconmodel.ReceivedPayment{
				ID:              rec.ID,
				SubAccountId:    rec.SubAccountID,
				Amount:          rec.Amount,
				Currency:        rec.Currency,
				PaymentDate:     rec.PaymentDate,
				Status:          rec.Status,
				PayerInfoRaw:    rec.PayerInfoRaw,
				PayerNormalized: reconmatch.NormalizeAgencyName(reconmatch.CleanPayerField(rec.PayerInfoRaw)),
			})
		})
		if err != nil {
			e.logError("ApplyInboundBatch", rec.ID, err)
			errs = append(errs, err)
			continue
		}
		applied++
	}
	return applied, errs
}

// reclassify recomputes and persists match_status for nvc within tx,
// applying the §4.5 sticky-resolved rule on top of the pure classifier.
// Callers must already hold nvc's lock and be inside the record's
// transaction (§4.5 step 2-3).
func (e *Engine) reclassify(tx *gorm.DB, nvc string) error {
	rec, err := reconstore.GetOrCreateByNVC(tx, nvc)
	if err != nil {
		return err
	}
	status, flags := reconmatch.ReclassifySticky(rec, e.Tol)
	return reconstore.SetMatchStatus(tx, nvc, status, marshalFlags(flags))
}

// Reclassify is the exported, lock-and-transaction-wrapped counterpart
// of reclassify, used by callers outside a batch apply (the manual
// associate/flag mutations in reconapi, §4.6).
func (e *Engine) Reclassify(ctx context.Context, nvc string) error {
	return e.withNVCLock(nvc, func() error {
		return e.Store.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return e.reclassify(tx, nvc)
		})
	})
}

func marshalFlags(flags []string) string {
	if len(flags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(flags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func (e *Engine) logError(funcName, nvcOrID string, err error) {
	config.LogError(e.Logger, "reconengine", funcName, nvcOrID, nil, err)
}
