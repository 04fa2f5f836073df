package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grupomas/invoice-cli/internal/model"
)

const mergeAccount = "ES0021000000000001AB0F"

func TestMerge_FillsDefaultFields(t *testing.T) {
	rec := model.NewInvoiceRecord(mergeAccount, 1)

	conflicts := Merge(rec, map[string]string{
		"tariff":       "2.0TD",
		"total_amount": "84.12",
		"due_date":     "15/03/2025",
	}, SourceXML)

	assert.Empty(t, conflicts)
	assert.Equal(t, "2.0TD", rec.Tariff)
	assert.Equal(t, "84.12", rec.TotalAmount)
	assert.Equal(t, "15/03/2025", rec.DueDate)
}

func TestMerge_SkipsNullishValues(t *testing.T) {
	rec := model.NewInvoiceRecord(mergeAccount, 1)

	conflicts := Merge(rec, map[string]string{
		"tariff":         "",
		"supply_address": "null",
		"power_p1":       "NULL",
		"power_p2":       "   ",
	}, SourceAI)

	assert.Empty(t, conflicts)
	assert.Equal(t, "N/A", rec.Tariff)
	assert.Equal(t, "N/A", rec.SupplyAddress)
	assert.Equal(t, "N/A", rec.PowerP1)
	assert.Equal(t, "N/A", rec.PowerP2)
}

func TestMerge_KeepsPopulatedFieldOnConflict(t *testing.T) {
	rec := model.NewInvoiceRecord(mergeAccount, 1)
	rec.IssueDate = "05/02/2025"

	conflicts := Merge(rec, map[string]string{"issue_date": "06/02/2025"}, SourceAI)

	require.Len(t, conflicts, 1)
	assert.Equal(t, "05/02/2025", rec.IssueDate)
	assert.Equal(t, Discrepancy{
		Field:    "issue_date",
		Current:  "05/02/2025",
		Proposed: "06/02/2025",
		Source:   SourceAI,
	}, conflicts[0])
}

func TestMerge_AgreementIsNotADiscrepancy(t *testing.T) {
	rec := model.NewInvoiceRecord(mergeAccount, 1)
	rec.IssueDate = "05/02/2025"

	conflicts := Merge(rec, map[string]string{"issue_date": "05/02/2025"}, SourceXML)
	assert.Empty(t, conflicts)
}

func TestMerge_ComparesCanonicalForms(t *testing.T) {
	rec := model.NewInvoiceRecord(mergeAccount, 1)
	rec.TableAmount = 1234.56

	// Same amount in portal notation is agreement, not conflict.
	conflicts := Merge(rec, map[string]string{"table_amount": "1.234,56 €"}, SourceXML)
	assert.Empty(t, conflicts)
	assert.Equal(t, 1234.56, rec.TableAmount)

	conflicts = Merge(rec, map[string]string{"table_amount": "999,99"}, SourceXML)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "999.99", conflicts[0].Proposed)
	assert.Equal(t, 1234.56, rec.TableAmount)
}

func TestMerge_DiscrepancyOrderFollowsFieldTable(t *testing.T) {
	rec := model.NewInvoiceRecord(mergeAccount, 1)
	rec.IssueDate = "05/02/2025"
	rec.PeriodEnd = "31/01/2025"
	rec.Tariff = "2.0TD"

	conflicts := Merge(rec, map[string]string{
		"tariff":     "3.0TD",
		"issue_date": "01/01/2020",
		"period_end": "01/01/2020",
	}, SourceAI)

	require.Len(t, conflicts, 3)
	assert.Equal(t, "issue_date", conflicts[0].Field)
	assert.Equal(t, "period_end", conflicts[1].Field)
	assert.Equal(t, "tariff", conflicts[2].Field)
}

func TestMerge_UnknownKeysIgnored(t *testing.T) {
	rec := model.NewInvoiceRecord(mergeAccount, 1)
	conflicts := Merge(rec, map[string]string{"no_such_field": "x"}, SourceAI)
	assert.Empty(t, conflicts)
}
