package reconengine

import (
	"context"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
	"bitbucket.org/mmdatafocus/reconsvc/reconstore"
	"bitbucket.org/mmdatafocus/reconsvc/reconsync"
)

var tracer = otel.Tracer("bitbucket.org/mmdatafocus/reconsvc/reconengine")

// Adapters bundles the four source adapters the engine drives in one
// cycle. Each adapter is built by main() against a concrete transport
// (§1 places the transports themselves out of scope as external
// collaborators); the engine only calls Fetch.
type Adapters struct {
	Email    *reconsync.EmailAdapter
	Invoice  *reconsync.InvoiceAdapter
	Inbound  *reconsync.InboundFundingAdapter
	Outbound *reconsync.OutboundPaymentAdapter
}

// CycleResult summarizes one sync cycle for the scheduler's SyncRun
// bookkeeping (§3 SyncRun, §12 supplement).
type CycleResult struct {
	Counts   map[string]int
	Errors   []string
	Degraded bool
	LumpSum  LumpSumPassResult
}

// RunCycle executes the deterministic five-step sync cycle (§5): emails,
// invoices, received payments, and outbound payments — run sequentially
// here since their repository writes are serialized through the store
// regardless of call order — then the lump-sum matcher pass once both
// emails and received payments have completed. A failing source is
// isolated (§4.5 failure semantics): its error is recorded in sync_state
// and the cycle proceeds in degraded mode with the remaining sources.
func (e *Engine) RunCycle(ctx context.Context, window reconsync.Window, adapters Adapters) CycleResult {
	ctx, span := tracer.Start(ctx, "reconengine.RunCycle")
	defer span.End()

	result := CycleResult{Counts: map[string]int{}}

	e.runStep(ctx, string(reconmodel.SourceEmails), window, &result, func(ctx context.Context) (int, []error) {
		records, err := adapters.Email.Fetch(ctx, window)
		if err != nil {
			return 0, []error{err}
		}
		return e.ApplyEmailBatch(ctx, records)
	})
	e.runStep(ctx, string(reconmodel.SourceInvoices), window, &result, func(ctx context.Context) (int, []error) {
		records, fetchErrs := adapters.Invoice.Fetch(ctx, window)
		applied, applyErrs := e.ApplyInvoiceBatch(ctx, records)
		return applied, append(applyErrs, fetchErrs...)
	})
	e.runStep(ctx, string(reconmodel.SourceReceivedPayments), window, &result, func(ctx context.Context) (int, []error) {
		records, fetchErrs := adapters.Inbound.Fetch(ctx, window)
		applied, applyErrs := e.ApplyInboundBatch(ctx, records)
		return applied, append(applyErrs, fetchErrs...)
	})
	e.runStep(ctx, string(reconmodel.SourceOutboundPayments), window, &result, func(ctx context.Context) (int, []error) {
		records, fetchErrs := adapters.Outbound.Fetch(ctx, window)
		applied, applyErrs := e.ApplyOutboundBatch(ctx, records)
		return applied, append(applyErrs, fetchErrs...)
	})

	lumpSum, err := e.RunLumpSumPass(ctx, window.Start, window.End)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Degraded = true
	}
	result.LumpSum = lumpSum
	result.Counts["links_applied"] = lumpSum.AutoLinked

	return result
}

// runStep wraps one source's fetch-and-apply in the §4.5 idempotency
// bookkeeping: a batch already marked SUCCEEDED for this exact window is
// skipped; a batch that fails is marked FAILED so the next cycle retries
// it rather than silently skipping it (reconstore.BeginSyncBatch).
// Fetch/apply failures never abort the cycle: they are isolated to this
// source's sync_state row and the cycle proceeds to the next step.
func (e *Engine) runStep(ctx context.Context, source string, window reconsync.Window, result *CycleResult, fetchAndApply func(ctx context.Context) (int, []error)) {
	ctx, span := tracer.Start(ctx, "reconengine.step."+source)
	defer span.End()

	db := e.Store.WithContext(ctx)

	var skip bool
	err := db.Transaction(func(tx *gorm.DB) error {
		s, err := reconstore.BeginSyncBatch(tx, source, window.Start, window.End)
		skip = s
		return err
	})
	if err != nil {
		e.recordSourceFailure(ctx, source, err, result)
		return
	}
	if skip {
		return
	}

	applied, errs := fetchAndApply(ctx)
	result.Counts[source] = applied

	if len(errs) > 0 {
		for _, e2 := range errs {
			result.Errors = append(result.Errors, e2.Error())
		}
		result.Degraded = true
		combined := errs[0]
		if markErr := reconstore.MarkSyncBatchFailed(db, source, window.Start, window.End, combined); markErr != nil {
			e.logError("runStep.markFailed", source, markErr)
		}
		if recErr := reconstore.RecordSyncError(db, source, combined); recErr != nil {
			e.logError("runStep.recordError", source, recErr)
		}
		return
	}

	if err := reconstore.MarkSyncBatchSucceeded(db, source, window.Start, window.End); err != nil {
		e.logError("runStep.markSucceeded", source, err)
	}
	if err := reconstore.RecordSyncOK(db, source, applied); err != nil {
		e.logError("runStep.recordOK", source, err)
	}
}

func (e *Engine) recordSourceFailure(ctx context.Context, source string, err error, result *CycleResult) {
	result.Errors = append(result.Errors, err.Error())
	result.Degraded = true
	if recErr := reconstore.RecordSyncError(e.Store.WithContext(ctx), source, err); recErr != nil {
		result.Errors = append(result.Errors, recErr.Error())
	}
	e.logError("RunCycle", source, err)
}
