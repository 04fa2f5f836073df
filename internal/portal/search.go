package portal

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/browser"
	"github.com/grupomas/invoice-cli/internal/config"
)

// Searcher applies the per-account filter criteria to the portal's search
// surface. Every failure here is wrapped in ErrSearch and scoped to the
// account being processed; the caller must not retry automatically.
type Searcher struct {
	cfg *config.Config
}

// NewSearcher creates the account query executor.
func NewSearcher(cfg *config.Config) *Searcher {
	return &Searcher{cfg: cfg}
}

// Apply navigates to the search surface, fills the group, account, date
// range and result limit controls, submits, and waits for the results table
// to render.
func (s *Searcher) Apply(ctx context.Context, page browser.Page, accountID, dateFrom, dateTo string) error {
	log := zap.L().With(
		zap.String("component", "portal.search"),
		zap.String("account_id", accountID),
	)
	sel := s.cfg.Selectors

	if err := page.Navigate(ctx, s.cfg.Portal.SearchURL); err != nil {
		return searchErr(err, "navigate to search surface")
	}
	if err := page.WaitVisible(ctx, sel.FilterPanel, s.cfg.Timeouts.FilterReady()); err != nil {
		return searchErr(err, "filter panel not ready")
	}

	// Fixed group filter.
	if err := page.Click(ctx, sel.GroupSelect); err != nil {
		return searchErr(err, "open group filter")
	}
	if err := page.Click(ctx, fmt.Sprintf(sel.GroupOption, s.cfg.Search.Group)); err != nil {
		return searchErr(err, "select group")
	}

	// Account filter: type the id, then confirm the exact-text dropdown match.
	if err := page.Fill(ctx, sel.AccountInput, accountID); err != nil {
		return searchErr(err, "fill account filter")
	}
	option := fmt.Sprintf(sel.AccountOption, accountID)
	if err := page.WaitVisible(ctx, option, s.cfg.Timeouts.AccountOption()); err != nil {
		return searchErr(err, "account suggestion not offered")
	}
	if err := page.Click(ctx, option); err != nil {
		return searchErr(err, "confirm account suggestion")
	}

	// Date range.
	if err := page.Fill(ctx, sel.DateFromInput, dateFrom); err != nil {
		return searchErr(err, "fill date from")
	}
	if err := page.Fill(ctx, sel.DateToInput, dateTo); err != nil {
		return searchErr(err, "fill date to")
	}

	// Result limit.
	if err := page.Fill(ctx, sel.LimitInput, strconv.Itoa(s.cfg.Search.ResultLimit)); err != nil {
		return searchErr(err, "set result limit")
	}

	if err := page.Click(ctx, sel.SearchButton); err != nil {
		return searchErr(err, "submit search")
	}
	if err := page.WaitVisible(ctx, sel.ResultsTable, s.cfg.Timeouts.ResultsRender()); err != nil {
		return searchErr(err, "results table did not render")
	}

	log.Info("filters applied",
		zap.String("date_from", dateFrom),
		zap.String("date_to", dateTo),
		zap.Int("limit", s.cfg.Search.ResultLimit),
	)
	return nil
}

func searchErr(err error, step string) error {
	return eris.Wrapf(ErrSearch, "%s: %v", step, err)
}
