// Package model defines the canonical invoice entity produced by the
// extraction pipeline and the static field table consulted by the merge
// routine and the CSV exporter.
package model

// InvoiceRecord is the canonical representation of one portal invoice after
// table extraction and document reconciliation. Every field has a declared
// default sentinel (see fields.go) distinguishing "never populated" from a
// populated falsy-looking value. Once a field leaves its sentinel it is never
// overwritten by a later enrichment stage.
type InvoiceRecord struct {
	// Identity.
	InvoiceNumber string
	AccountID     string
	Sequence      int

	// Billing period.
	IssueDate   string
	PeriodStart string
	PeriodEnd   string
	BilledMonth string

	// Table-sourced metadata.
	TableAmount   float64
	Contract      string
	Status        string
	Fractionated  string
	InvoiceType   string
	DownloadToken string

	// Consumption and power detail.
	Tariff           string
	SupplyAddress    string
	PowerP1          string
	PowerP2          string
	PowerP3          string
	PowerP4          string
	PowerP5          string
	PowerP6          string
	ConsumptionP1    string
	ConsumptionP2    string
	ConsumptionP3    string
	ConsumptionP4    string
	ConsumptionP5    string
	ConsumptionP6    string
	TotalConsumption string

	// Monetary breakdown.
	PowerAmount          string
	EnergyAmount         string
	ReactiveAmount       string
	ElectricityTaxAmount string
	MeterRentalAmount    string
	SocialBonusAmount    string
	VATAmount            string
	ServicesAmount       string
	DiscountAmount       string
	AdjustmentAmount     string
	OtherAmount          string
	TaxableBaseAmount    string
	DueDate              string
	TotalAmount          string
	CollectionDate       string

	// Error reporting.
	ErrorFlag   bool
	ErrorDetail string
}

// NewInvoiceRecord returns a record with every field at its declared default
// sentinel, then stamps the account identity and row sequence.
func NewInvoiceRecord(accountID string, sequence int) *InvoiceRecord {
	r := &InvoiceRecord{}
	for i := range fieldTable {
		fieldTable[i].Reset(r)
	}
	r.AccountID = accountID
	r.Sequence = sequence
	return r
}

// NoInvoicesRecord returns the sentinel record appended for an account whose
// search succeeded but matched zero invoices.
func NoInvoicesRecord(accountID string) *InvoiceRecord {
	r := NewInvoiceRecord(accountID, 0)
	r.BilledMonth = NoInvoicesMarker
	return r
}

// ErrorRecord returns the sentinel record appended for an account whose
// processing failed. The detail message is truncated so one account's stack
// trace cannot bloat the batch result.
func ErrorRecord(accountID, detail string) *InvoiceRecord {
	r := NewInvoiceRecord(accountID, 0)
	r.ErrorFlag = true
	r.ErrorDetail = truncate(detail, maxErrorDetail)
	return r
}

// maxErrorDetail caps the error detail stored on a sentinel record.
const maxErrorDetail = 500

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// BatchResult is the ordered output of one batch run. Record order mirrors
// account input order; within an account, page-then-row traversal order.
type BatchResult struct {
	RunID   string
	Records []*InvoiceRecord

	// Per-account outcome tallies.
	AccountsOK      int
	AccountsEmpty   int
	AccountsErrored int
}

// Append adds records preserving insertion order.
func (b *BatchResult) Append(recs ...*InvoiceRecord) {
	b.Records = append(b.Records, recs...)
}
