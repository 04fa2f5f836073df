package portal

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/artifact"
	"github.com/grupomas/invoice-cli/internal/browser"
	"github.com/grupomas/invoice-cli/internal/config"
	"github.com/grupomas/invoice-cli/internal/model"
)

// Fixed column order of the results table.
const (
	colInvoiceNumber = iota
	colContract
	colIssueDate
	colPeriodStart
	colPeriodEnd
	colAmount
	colStatus
	colFractionated
	colInvoiceType
	minColumns
)

// Extractor walks the paginated results table, scraping each row into a
// fresh InvoiceRecord and triggering both per-row document downloads.
type Extractor struct {
	cfg        *config.Config
	correlator *Correlator
}

// NewExtractor creates the paginator/row extractor.
func NewExtractor(cfg *config.Config, correlator *Correlator) *Extractor {
	return &Extractor{cfg: cfg, correlator: correlator}
}

// Extract returns every result row across all pages, in page-then-row
// order. A single row's scrape failure skips that row; a download failure
// leaves that artifact absent; neither aborts the account.
func (e *Extractor) Extract(ctx context.Context, page browser.Page, accountID string) ([]*model.InvoiceRecord, error) {
	log := zap.L().With(
		zap.String("component", "portal.results"),
		zap.String("account_id", accountID),
	)
	sel := e.cfg.Selectors

	if err := page.WaitVisible(ctx, sel.ResultsTable, e.cfg.Timeouts.TableWait()); err != nil {
		return nil, eris.Wrap(err, "portal: results table absent")
	}

	var records []*model.InvoiceRecord
	seq := 0

	for pageNum := 1; ; pageNum++ {
		e.settleCells(ctx, page, log, pageNum)

		rowCount, err := page.Count(ctx, sel.ResultRows)
		if err != nil {
			return nil, eris.Wrapf(err, "portal: count rows on page %d", pageNum)
		}

		for i := 1; i <= rowCount; i++ {
			seq++
			rec, err := e.extractRow(ctx, page, accountID, i, seq)
			if err != nil {
				log.Warn("row skipped",
					zap.Int("page", pageNum),
					zap.Int("row", i),
					zap.Error(err),
				)
				continue
			}
			e.downloadRowDocuments(ctx, page, rec, i)
			records = append(records, rec)
		}

		log.Debug("page extracted", zap.Int("page", pageNum), zap.Int("rows", rowCount))

		if !e.advancePage(ctx, page, log, pageNum) {
			break
		}
	}

	log.Info("extraction finished", zap.Int("records", len(records)))
	return records, nil
}

// settleCells gives volatile cells a bounded chance to leave their loading
// placeholder state. Timing out here is non-fatal: extraction proceeds with
// whatever is rendered.
func (e *Extractor) settleCells(ctx context.Context, page browser.Page, log *zap.Logger, pageNum int) {
	sel := e.cfg.Selectors.LoadingCell
	if sel == "" {
		return
	}
	err := page.WaitFor(ctx, e.cfg.Timeouts.CellSettle(), func(ctx context.Context) (bool, error) {
		n, err := page.Count(ctx, sel)
		if err != nil {
			return false, nil
		}
		return n == 0, nil
	})
	if err != nil {
		log.Warn("cells still loading, extracting rendered state", zap.Int("page", pageNum))
	}
}

func (e *Extractor) extractRow(ctx context.Context, page browser.Page, accountID string, rowIndex, seq int) (*model.InvoiceRecord, error) {
	sel := e.cfg.Selectors

	cells, err := page.Texts(ctx, fmt.Sprintf(sel.RowCells, rowIndex))
	if err != nil {
		return nil, eris.Wrapf(ErrRowExtract, "row %d: %v", rowIndex, err)
	}
	if len(cells) < minColumns {
		return nil, eris.Wrapf(ErrRowExtract, "row %d: %d cells, want %d", rowIndex, len(cells), minColumns)
	}

	rec := model.NewInvoiceRecord(accountID, seq)
	rec.InvoiceNumber = cells[colInvoiceNumber]
	rec.Contract = cells[colContract]
	rec.IssueDate = cells[colIssueDate]
	rec.PeriodStart = cells[colPeriodStart]
	rec.PeriodEnd = cells[colPeriodEnd]
	rec.TableAmount = model.NormalizeAmount(cells[colAmount])
	rec.Status = cells[colStatus]
	rec.Fractionated = cells[colFractionated]
	rec.InvoiceType = cells[colInvoiceType]
	rec.DownloadToken = rowTrigger(sel.RowPDFLink, rowIndex)
	return rec, nil
}

// downloadRowDocuments triggers both kind-specific downloads. Each attempt
// is independent: one kind failing does not affect the row or the other
// kind.
func (e *Extractor) downloadRowDocuments(ctx context.Context, page browser.Page, rec *model.InvoiceRecord, rowIndex int) {
	sel := e.cfg.Selectors
	e.correlator.Fetch(ctx, page, rowTrigger(sel.RowXMLLink, rowIndex), rec.AccountID, rec.InvoiceNumber, artifact.KindXML)
	e.correlator.Fetch(ctx, page, rowTrigger(sel.RowPDFLink, rowIndex), rec.AccountID, rec.InvoiceNumber, artifact.KindPDF)
}

// advancePage activates the next-page control. It reports false when the
// control is disabled, missing, or the click times out; timing out
// terminates the loop rather than retrying.
func (e *Extractor) advancePage(ctx context.Context, page browser.Page, log *zap.Logger, pageNum int) bool {
	sel := e.cfg.Selectors

	if _, disabled, err := page.Attribute(ctx, sel.NextPage, "disabled"); err != nil || disabled {
		return false
	}

	clickCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.NextPage())
	defer cancel()
	if err := page.Click(clickCtx, sel.NextPage); err != nil {
		log.Warn("next page click failed, stopping pagination",
			zap.Int("page", pageNum),
			zap.Error(err),
		)
		return false
	}

	if err := page.WaitVisible(ctx, sel.ResultsTable, e.cfg.Timeouts.TableWait()); err != nil {
		log.Warn("next page did not render, stopping pagination", zap.Int("page", pageNum))
		return false
	}
	return true
}
