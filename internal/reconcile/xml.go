package reconcile

import (
	"encoding/xml"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// facturaeDoc maps the subset of a Facturae document the pipeline reads.
// Portal-issued files occasionally declare ISO-8859-1, so decoding goes
// through a charset-aware reader.
type facturaeDoc struct {
	XMLName  xml.Name `xml:"Facturae"`
	Invoices struct {
		Invoice []facturaeInvoice `xml:"Invoice"`
	} `xml:"Invoices"`
}

type facturaeInvoice struct {
	InvoiceHeader struct {
		InvoiceNumber string `xml:"InvoiceNumber"`
	} `xml:"InvoiceHeader"`
	InvoiceIssueData struct {
		IssueDate       string `xml:"IssueDate"`
		InvoicingPeriod struct {
			StartDate string `xml:"StartDate"`
			EndDate   string `xml:"EndDate"`
		} `xml:"InvoicingPeriod"`
	} `xml:"InvoiceIssueData"`
	TaxesOutputs struct {
		Tax []struct {
			TaxRate   string `xml:"TaxRate"`
			TaxAmount struct {
				TotalAmount string `xml:"TotalAmount"`
			} `xml:"TaxAmount"`
		} `xml:"Tax"`
	} `xml:"TaxesOutputs"`
	InvoiceTotals struct {
		TotalGrossAmountBeforeTaxes string `xml:"TotalGrossAmountBeforeTaxes"`
		InvoiceTotal                string `xml:"InvoiceTotal"`
	} `xml:"InvoiceTotals"`
	PaymentDetails struct {
		Installment []struct {
			InstallmentDueDate string `xml:"InstallmentDueDate"`
		} `xml:"Installment"`
	} `xml:"PaymentDetails"`
}

// ParseXMLProposals decodes a downloaded invoice XML and renders the fields
// it carries as merge proposals. Fields the document does not carry are
// simply absent from the map.
func ParseXMLProposals(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: open invoice xml")
	}
	defer f.Close()
	return decodeXMLProposals(f)
}

func decodeXMLProposals(r io.Reader) (map[string]string, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "reconcile: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var doc facturaeDoc
	if err := decoder.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "reconcile: decode invoice xml")
	}
	if len(doc.Invoices.Invoice) == 0 {
		return nil, eris.New("reconcile: invoice xml carries no invoice")
	}
	inv := doc.Invoices.Invoice[0]

	proposals := map[string]string{
		"invoice_number":      inv.InvoiceHeader.InvoiceNumber,
		"issue_date":          xmlDate(inv.InvoiceIssueData.IssueDate),
		"period_start":        xmlDate(inv.InvoiceIssueData.InvoicingPeriod.StartDate),
		"period_end":          xmlDate(inv.InvoiceIssueData.InvoicingPeriod.EndDate),
		"taxable_base_amount": inv.InvoiceTotals.TotalGrossAmountBeforeTaxes,
		"total_amount":        inv.InvoiceTotals.InvoiceTotal,
	}
	if taxes := inv.TaxesOutputs.Tax; len(taxes) > 0 {
		proposals["vat_amount"] = taxes[0].TaxAmount.TotalAmount
	}
	if inst := inv.PaymentDetails.Installment; len(inst) > 0 {
		proposals["due_date"] = xmlDate(inst[0].InstallmentDueDate)
	}
	return proposals, nil
}

// xmlDate reformats Facturae's ISO dates to the portal's DD/MM/YYYY form.
// Values that do not parse pass through untouched.
func xmlDate(v string) string {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return v
	}
	return t.Format("02/01/2006")
}
