package reconapi

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/reconengine"
	"bitbucket.org/mmdatafocus/reconsvc/reconerrors"
	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
	"bitbucket.org/mmdatafocus/reconsvc/reconstore"
)

// AssociateSource enumerates the source caches a manual associate()
// call may point an NVC at (§4.6, §6).
type AssociateSource string

const (
	AssociateEmail           AssociateSource = "emails"
	AssociateInvoice         AssociateSource = "invoices"
	AssociateReceivedFunding AssociateSource = "received_payments"
	AssociateOutboundPayment AssociateSource = "outbound_payments"
)

// Associate manually links a remittance/invoice/payment cache row into
// nvc's reconciliation record (§4.6 associate(nvc, target_id, source)),
// then triggers reclassification. It is the operator-facing escape
// hatch for the cases the automatic matchers (reconmatch) missed — a
// garbled attachment, a payer string with no alias entry, a split wire
// (§9 open question (i)).
func Associate(ctx context.Context, db *gorm.DB, engine *reconengine.Engine, nvc string, targetID string, source AssociateSource) (*reconmodel.ReconciliationRecord, error) {
	if nvc == "" || targetID == "" {
		return nil, reconerrors.NewInvalidInput("nvc and target_id are required", nil)
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch source {
		case AssociateEmail:
			email, err := reconstore.GetCachedEmail(tx, targetID)
			if err != nil {
				return notFoundOrErr("email", targetID, err)
			}
			if err := reconstore.AssociateRemittanceEmail(tx, nvc, *email); err != nil {
				return err
			}
		case AssociateInvoice:
			// target_id for an invoice association is itself the NVC
			// code of the cached invoice row (§3: invoices are keyed
			// by NVC, not by a separate id), so the invoice being
			// associated must already carry the same NVC it is being
			// attached to.
			inv, err := reconstore.GetCachedInvoice(tx, targetID)
			if err != nil {
				return notFoundOrErr("invoice", targetID, err)
			}
			if _, err := reconstore.UpsertInvoice(tx, reconstore.InvoiceUpdate{
				NvcCode: nvc, Amount: inv.Amount, Status: inv.StatusCode,
				Tenant: inv.Tenant, PayrunRef: inv.PayrunRef, Currency: inv.Currency,
			}); err != nil {
				return err
			}
		case AssociateReceivedFunding:
			rp, err := reconstore.GetReceivedPayment(tx, targetID)
			if err != nil {
				return notFoundOrErr("received payment", targetID, err)
			}
			if err := reconstore.AssociateReceivedPayment(tx, nvc, *rp); err != nil {
				return err
			}
		case AssociateOutboundPayment:
			p, err := reconstore.GetCachedPayment(tx, targetID)
			if err != nil {
				return notFoundOrErr("outbound payment", targetID, err)
			}
			if _, err := reconstore.UpsertOutboundPayment(tx, reconstore.OutboundPaymentUpdate{
				NvcCode: nvc, Amount: p.Amount, AccountID: p.Reference, Date: p.PaymentDate,
				Currency: p.Currency, Status: p.Status, Recipient: p.Recipient, RecipientCountry: p.RecipientCountry,
			}); err != nil {
				return err
			}
		default:
			return reconerrors.NewInvalidInput(fmt.Sprintf("unknown associate source %q", source), nil)
		}
		return reconstore.AppendNote(tx, nvc, fmt.Sprintf("manually associated %s %s", source, targetID))
	})
	if err != nil {
		return nil, err
	}

	if err := engine.Reclassify(ctx, nvc); err != nil {
		return nil, err
	}
	return Record(ctx, db, nvc)
}

// Flag sets or clears the manual triage flag on nvc (§4.6 flag(nvc,
// flag, notes)). An empty flag clears it without disturbing
// match_status (§4.5: only a later upsert's reclassification can
// un-resolve a sticky resolved row). Setting FlagResolved stamps the
// sticky terminal state and survives subsequent upserts until amounts
// disagree (§4.5).
func Flag(ctx context.Context, db *gorm.DB, nvc string, flag reconmodel.Flag, notes string, by string) (*reconmodel.ReconciliationRecord, error) {
	if nvc == "" {
		return nil, reconerrors.NewInvalidInput("nvc is required", nil)
	}
	if flag != "" {
		switch flag {
		case reconmodel.FlagNeedsOutreach, reconmodel.FlagInvestigating, reconmodel.FlagEscalated, reconmodel.FlagResolved:
		default:
			return nil, reconerrors.NewInvalidInput(fmt.Sprintf("unknown flag %q", flag), nil)
		}
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if flag == "" {
			return reconstore.ClearFlag(tx, nvc)
		}
		return reconstore.SetFlag(tx, nvc, flag, notes, by)
	})
	if err != nil {
		return nil, err
	}
	return Record(ctx, db, nvc)
}

func notFoundOrErr(kind, id string, err error) error {
	if err == gorm.ErrRecordNotFound {
		return reconerrors.NewInvalidInput(fmt.Sprintf("%s %q not found", kind, id), nil)
	}
	return err
}
