package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/artifact"
	"github.com/grupomas/invoice-cli/internal/model"
)

// Reconciler enriches scraped records from the row's downloaded documents.
// The table scrape always has precedence; document sources only fill fields
// still at their default sentinel. Missing documents and failed sources are
// logged and skipped, never fatal.
type Reconciler struct {
	store     *artifact.Store
	extractor Extractor
}

// NewReconciler creates a reconciler. extractor may be nil to disable the
// AI document source.
func NewReconciler(store *artifact.Store, extractor Extractor) *Reconciler {
	return &Reconciler{store: store, extractor: extractor}
}

// Enrich merges the XML source, then the AI document source, into the
// record, and finally derives the billed month from the settled period end.
// It returns every discrepancy the merges surfaced.
func (r *Reconciler) Enrich(ctx context.Context, rec *model.InvoiceRecord) []Discrepancy {
	log := zap.L().With(
		zap.String("component", "reconcile"),
		zap.String("account_id", rec.AccountID),
		zap.String("invoice_number", rec.InvoiceNumber),
	)

	var all []Discrepancy

	if r.store.Exists(rec.AccountID, rec.InvoiceNumber, artifact.KindXML) {
		path := r.store.Path(rec.AccountID, rec.InvoiceNumber, artifact.KindXML)
		proposals, err := ParseXMLProposals(path)
		if err != nil {
			log.Warn("xml source skipped", zap.Error(err))
		} else {
			all = append(all, Merge(rec, proposals, SourceXML)...)
		}
	}

	if r.extractor != nil && r.store.Exists(rec.AccountID, rec.InvoiceNumber, artifact.KindPDF) {
		path := r.store.Path(rec.AccountID, rec.InvoiceNumber, artifact.KindPDF)
		proposals, err := r.extractor.Extract(ctx, path)
		if err != nil {
			log.Warn("ai source skipped", zap.Error(err))
		} else {
			all = append(all, Merge(rec, proposals, SourceAI)...)
		}
	}

	r.deriveBilledMonth(rec, log)
	return all
}

// deriveBilledMonth stamps the Spanish month name once a usable period end
// has settled. Records without one keep their billed-month default.
func (r *Reconciler) deriveBilledMonth(rec *model.InvoiceRecord, log *zap.Logger) {
	if rec.BilledMonth != "" {
		return
	}
	if rec.PeriodEnd == "" || rec.PeriodEnd == "N/A" {
		return
	}
	month, err := model.DeriveBilledMonth(rec.PeriodEnd)
	if err != nil {
		// An unparseable date leaves the field untouched.
		log.Warn("billed month not derivable", zap.String("period_end", rec.PeriodEnd))
		return
	}
	rec.BilledMonth = month
}
