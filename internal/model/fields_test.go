package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvoiceRecord_Defaults(t *testing.T) {
	r := NewInvoiceRecord("ES0031408000000000XY1F", 3)

	assert.Equal(t, "ES0031408000000000XY1F", r.AccountID)
	assert.Equal(t, 3, r.Sequence)
	assert.Equal(t, "", r.InvoiceNumber)
	assert.Equal(t, "N/A", r.IssueDate)
	assert.Equal(t, "N/A", r.PeriodEnd)
	assert.Equal(t, "", r.BilledMonth)
	assert.Equal(t, 0.0, r.TableAmount)
	assert.Equal(t, "N/A", r.Tariff)
	assert.Equal(t, "N/A", r.TotalAmount)
	assert.False(t, r.ErrorFlag)
}

func TestFieldTable_DefaultsConsistent(t *testing.T) {
	// A freshly reset record must report every field at its sentinel.
	r := &InvoiceRecord{}
	for _, f := range Fields() {
		f.Reset(r)
	}
	for _, f := range Fields() {
		assert.True(t, f.IsDefault(r), "field %s not at default after reset", f.Key)
	}
}

func TestFieldTable_KeysUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, f := range Fields() {
		assert.False(t, seen[f.Key], "duplicate field key %s", f.Key)
		seen[f.Key] = true
	}
}

func TestFieldByKey(t *testing.T) {
	f, ok := FieldByKey("tariff")
	require.True(t, ok)

	r := NewInvoiceRecord("ES0031408000000000XY1F", 1)
	require.NoError(t, f.Set(r, "3.0TD"))
	assert.Equal(t, "3.0TD", r.Tariff)
	assert.Equal(t, "3.0TD", f.Get(r))
	assert.False(t, f.IsDefault(r))

	_, ok = FieldByKey("no_such_field")
	assert.False(t, ok)
}

func TestFieldSet_FloatNormalizes(t *testing.T) {
	f, ok := FieldByKey("table_amount")
	require.True(t, ok)

	r := NewInvoiceRecord("ES0031408000000000XY1F", 1)
	require.NoError(t, f.Set(r, "4.697,73 €"))
	assert.InDelta(t, 4697.73, r.TableAmount, 0.0001)
}

func TestColumnsMatchRow(t *testing.T) {
	r := NewInvoiceRecord("ES0031408000000000XY1F", 1)
	cols := Columns()
	row := Row(r)
	require.Equal(t, len(cols), len(row))
	assert.Equal(t, "invoice_number", cols[0])
	assert.Equal(t, "error_detail", cols[len(cols)-1])
}

func TestExtractionSchema(t *testing.T) {
	schema := ExtractionSchema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.Len(t, required, len(Fields()))

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, len(Fields()))
	assert.Contains(t, props, "invoice_number")
	assert.Contains(t, props, "table_amount")
}

func TestErrorRecord_TruncatesDetail(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	r := ErrorRecord("ES0031408000000000XY1F", string(long))

	assert.True(t, r.ErrorFlag)
	assert.Len(t, r.ErrorDetail, 500)
}

func TestNoInvoicesRecord(t *testing.T) {
	r := NoInvoicesRecord("ES0031408000000000XY1F")

	assert.False(t, r.ErrorFlag)
	assert.Equal(t, NoInvoicesMarker, r.BilledMonth)
	assert.Equal(t, "ES0031408000000000XY1F", r.AccountID)
}
