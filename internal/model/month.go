package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// NoInvoicesMarker is stored in the billed-month field of the sentinel
// record appended for an account with zero matching invoices.
const NoInvoicesMarker = "SIN FACTURAS"

// UnknownMonth is used when a period-end date parses but carries a month
// outside 1..12, which time.Parse makes unreachable in practice.
const UnknownMonth = "DESCONOCIDO"

var monthNames = [13]string{
	"", "ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
	"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
}

// DeriveBilledMonth maps a period-end date to its Spanish month name. Both
// DD-MM-YYYY and DD/MM/YYYY delimiters are accepted.
func DeriveBilledMonth(periodEnd string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(periodEnd), "/", "-")
	t, err := time.Parse("02-01-2006", normalized)
	if err != nil {
		return "", eris.Wrapf(err, "model: parse period end %q", periodEnd)
	}
	m := int(t.Month())
	if m < 1 || m > 12 {
		return UnknownMonth, nil
	}
	return monthNames[m], nil
}
