package reconcile

import (
	"strings"

	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/model"
)

// Source identifies where a proposed field value came from.
type Source string

const (
	SourceXML Source = "xml"
	SourceAI  Source = "ai"
)

// Discrepancy records a proposal that conflicted with an already populated
// field. The current value always wins; the conflict is surfaced for audit.
type Discrepancy struct {
	Field    string
	Current  string
	Proposed string
	Source   Source
}

// Merge folds proposals into the record under sentinel precedence: a
// proposal only lands on a field still holding its default sentinel.
// Null-ish proposals are ignored. A proposal against a populated field is
// compared in canonical form; an exact match is a no-op, anything else is
// kept as-is and reported as a Discrepancy.
//
// Fields are visited in table order, so the returned discrepancies are
// deterministic.
func Merge(rec *model.InvoiceRecord, proposals map[string]string, source Source) []Discrepancy {
	log := zap.L().With(
		zap.String("component", "reconcile.merge"),
		zap.String("source", string(source)),
		zap.String("invoice_number", rec.InvoiceNumber),
	)

	var scratch model.InvoiceRecord
	var conflicts []Discrepancy

	for _, f := range model.Fields() {
		raw, ok := proposals[f.Key]
		if !ok || nullish(raw) {
			continue
		}

		field, _ := model.FieldByKey(f.Key)
		if err := field.Set(&scratch, raw); err != nil {
			log.Warn("unparseable proposal dropped",
				zap.String("field", f.Key),
				zap.String("value", raw),
			)
			continue
		}
		canonical := field.Get(&scratch)

		if field.IsDefault(rec) {
			_ = field.Set(rec, raw)
			continue
		}
		if current := field.Get(rec); current != canonical {
			conflicts = append(conflicts, Discrepancy{
				Field:    f.Key,
				Current:  current,
				Proposed: canonical,
				Source:   source,
			})
			log.Warn("conflicting proposal kept out",
				zap.String("field", f.Key),
				zap.String("current", current),
				zap.String("proposed", canonical),
			)
		}
	}
	return conflicts
}

// nullish reports values that carry no information: empty strings and the
// literal "null" some sources emit instead of omitting the field.
func nullish(v string) bool {
	t := strings.TrimSpace(v)
	return t == "" || strings.EqualFold(t, "null")
}
