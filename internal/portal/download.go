package portal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/artifact"
	"github.com/grupomas/invoice-cli/internal/browser"
)

// Correlator binds a row's download trigger to the (account, invoice, kind)
// identity and the deterministic artifact path. Failures never escape this
// boundary: a timed-out or failed download simply leaves the artifact
// absent.
type Correlator struct {
	store   *artifact.Store
	timeout time.Duration
}

// NewCorrelator creates a download correlator writing into store.
func NewCorrelator(store *artifact.Store, timeout time.Duration) *Correlator {
	return &Correlator{store: store, timeout: timeout}
}

// Fetch clicks the kind-specific trigger inside the row, awaits the
// filesystem-materialized download, and moves it to its deterministic path.
// The boolean reports whether the artifact now exists.
func (c *Correlator) Fetch(ctx context.Context, page browser.Page, triggerSelector, accountID, invoiceNumber string, kind artifact.Kind) (string, bool) {
	log := zap.L().With(
		zap.String("component", "portal.download"),
		zap.String("account_id", accountID),
		zap.String("invoice_number", invoiceNumber),
		zap.String("kind", string(kind)),
	)

	dl, err := page.Download(ctx, triggerSelector, c.timeout)
	if err != nil {
		log.Warn("download failed, artifact absent", zap.Error(err))
		return "", false
	}

	path, err := c.store.Place(dl.Path, accountID, invoiceNumber, kind)
	if err != nil {
		log.Warn("could not persist download, artifact absent", zap.Error(err))
		return "", false
	}

	log.Debug("artifact stored",
		zap.String("path", path),
		zap.String("suggested_name", dl.SuggestedName),
	)
	return path, true
}

// rowTrigger renders a per-row trigger selector template with a 1-based row
// index.
func rowTrigger(template string, rowIndex int) string {
	return fmt.Sprintf(template, rowIndex)
}
