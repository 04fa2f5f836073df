// Package batch runs the extraction pipeline over an ordered account list:
// one authenticated session, then search, extract, reconcile and export per
// account. Account failures are isolated; only authentication is fatal.
package batch

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/browser"
	"github.com/grupomas/invoice-cli/internal/model"
	"github.com/grupomas/invoice-cli/internal/reconcile"
)

// Session is the authenticated portal surface the batch drives.
type Session interface {
	Page() browser.Page
	Close() error
}

// Authenticate opens the one session the whole batch reuses.
type Authenticate func(ctx context.Context) (Session, error)

// Searcher applies one account's filter criteria.
type Searcher interface {
	Apply(ctx context.Context, page browser.Page, accountID, dateFrom, dateTo string) error
}

// Extractor walks the paginated results into records.
type Extractor interface {
	Extract(ctx context.Context, page browser.Page, accountID string) ([]*model.InvoiceRecord, error)
}

// Enricher reconciles one record against its downloaded documents.
type Enricher interface {
	Enrich(ctx context.Context, rec *model.InvoiceRecord) []reconcile.Discrepancy
}

// Exporter writes one account's backup file.
type Exporter interface {
	WriteAccount(accountID string, records []*model.InvoiceRecord) error
}

// NewExporter builds the run-scoped exporter once the run ID is known.
type NewExporter func(runID string) Exporter

// Orchestrator owns the account loop.
type Orchestrator struct {
	authenticate Authenticate
	searcher     Searcher
	extractor    Extractor
	enricher     Enricher
	newExporter  NewExporter
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(auth Authenticate, s Searcher, ex Extractor, en Enricher, ne NewExporter) *Orchestrator {
	return &Orchestrator{
		authenticate: auth,
		searcher:     s,
		extractor:    ex,
		enricher:     en,
		newExporter:  ne,
	}
}

// Run processes every account in input order against one shared session.
// A failed login aborts the whole batch; anything after that only marks the
// affected account and moves on.
func (o *Orchestrator) Run(ctx context.Context, accounts []string, dateFrom, dateTo string) (*model.BatchResult, error) {
	runID := uuid.NewString()
	log := zap.L().With(
		zap.String("component", "batch"),
		zap.String("run_id", runID),
	)
	log.Info("batch started",
		zap.Int("accounts", len(accounts)),
		zap.String("date_from", dateFrom),
		zap.String("date_to", dateTo),
	)

	sess, err := o.authenticate(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "batch: authenticate")
	}
	defer sess.Close()

	result := &model.BatchResult{RunID: runID}
	exporter := o.newExporter(runID)

	for _, accountID := range accounts {
		if ctx.Err() != nil {
			return result, eris.Wrap(ctx.Err(), "batch: cancelled")
		}

		records, err := o.processAccount(ctx, sess.Page(), accountID, dateFrom, dateTo)
		if err != nil {
			log.Error("account failed",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
			result.Append(model.ErrorRecord(accountID, err.Error()))
			result.AccountsErrored++
			continue
		}
		if len(records) == 0 {
			log.Info("account matched no invoices", zap.String("account_id", accountID))
			result.Append(model.NoInvoicesRecord(accountID))
			result.AccountsEmpty++
			continue
		}

		result.Append(records...)
		result.AccountsOK++

		if err := exporter.WriteAccount(accountID, records); err != nil {
			log.Warn("account backup failed",
				zap.String("account_id", accountID),
				zap.Error(err),
			)
		}
	}

	log.Info("batch finished",
		zap.Int("records", len(result.Records)),
		zap.Int("accounts_ok", result.AccountsOK),
		zap.Int("accounts_empty", result.AccountsEmpty),
		zap.Int("accounts_errored", result.AccountsErrored),
	)
	return result, nil
}

// processAccount runs search, extraction and per-record reconciliation for
// one account on the shared page.
func (o *Orchestrator) processAccount(ctx context.Context, page browser.Page, accountID, dateFrom, dateTo string) ([]*model.InvoiceRecord, error) {
	if err := o.searcher.Apply(ctx, page, accountID, dateFrom, dateTo); err != nil {
		return nil, err
	}
	records, err := o.extractor.Extract(ctx, page, accountID)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if conflicts := o.enricher.Enrich(ctx, rec); len(conflicts) > 0 {
			zap.L().Info("reconciliation kept table values",
				zap.String("component", "batch"),
				zap.String("account_id", accountID),
				zap.String("invoice_number", rec.InvoiceNumber),
				zap.Int("discrepancies", len(conflicts)),
			)
		}
	}
	return records, nil
}
