package export

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/model"
)

// Writer persists per-account CSV backups under {root}/{runID}/. Column
// order follows the record field table.
type Writer struct {
	root  string
	runID string
}

// NewWriter creates a CSV backup writer for one pipeline run.
func NewWriter(root, runID string) *Writer {
	return &Writer{root: root, runID: runID}
}

// Dir returns the run's export directory.
func (w *Writer) Dir() string {
	return filepath.Join(w.root, w.runID)
}

// Path returns the backup file location for one account.
func (w *Writer) Path(accountID string) string {
	return filepath.Join(w.Dir(), accountID+".csv")
}

// WriteAccount writes every record of one account, header included, to its
// backup file. An existing file from a previous attempt is overwritten.
func (w *Writer) WriteAccount(accountID string, records []*model.InvoiceRecord) error {
	if err := os.MkdirAll(w.Dir(), 0o755); err != nil {
		return eris.Wrap(err, "export: create run directory")
	}

	path := w.Path(accountID)
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create backup file")
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if err := cw.Write(model.Columns()); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, rec := range records {
		if err := cw.Write(model.Row(rec)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush backup")
	}

	zap.L().Info("account backup written",
		zap.String("component", "export"),
		zap.String("account_id", accountID),
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return nil
}
