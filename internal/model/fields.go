package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind is the declared type of an InvoiceRecord field.
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindInt
	KindBool
)

// FieldDef describes one InvoiceRecord field: its wire key, type, default
// sentinel, and typed accessors. The merge routine consults this table
// instead of relying on runtime reflection, and the CSV exporter emits
// columns in table order.
type FieldDef struct {
	Key     string
	Kind    Kind
	Default string // canonical string form of the default sentinel

	Get func(r *InvoiceRecord) string
	Set func(r *InvoiceRecord, v string) error
}

// Reset writes the default sentinel back into the record.
func (f *FieldDef) Reset(r *InvoiceRecord) {
	// Defaults in the table are always valid for their own setter.
	_ = f.Set(r, f.Default)
}

// IsDefault reports whether the record still holds the field's sentinel.
func (f *FieldDef) IsDefault(r *InvoiceRecord) bool {
	return f.Get(r) == f.Default
}

func strField(key, def string, get func(r *InvoiceRecord) *string) FieldDef {
	return FieldDef{
		Key:     key,
		Kind:    KindString,
		Default: def,
		Get:     func(r *InvoiceRecord) string { return *get(r) },
		Set: func(r *InvoiceRecord, v string) error {
			*get(r) = strings.TrimSpace(v)
			return nil
		},
	}
}

// fieldTable is the authoritative ordered field set. Column order of the
// backup export and property order of the AI extraction schema both follow
// this table.
var fieldTable = []FieldDef{
	strField("invoice_number", "", func(r *InvoiceRecord) *string { return &r.InvoiceNumber }),
	strField("account_id", "", func(r *InvoiceRecord) *string { return &r.AccountID }),
	{
		Key:     "sequence",
		Kind:    KindInt,
		Default: "0",
		Get:     func(r *InvoiceRecord) string { return strconv.Itoa(r.Sequence) },
		Set: func(r *InvoiceRecord, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return eris.Wrapf(err, "model: field sequence: parse %q", v)
			}
			r.Sequence = n
			return nil
		},
	},

	strField("issue_date", "N/A", func(r *InvoiceRecord) *string { return &r.IssueDate }),
	strField("period_start", "N/A", func(r *InvoiceRecord) *string { return &r.PeriodStart }),
	strField("period_end", "N/A", func(r *InvoiceRecord) *string { return &r.PeriodEnd }),
	strField("billed_month", "", func(r *InvoiceRecord) *string { return &r.BilledMonth }),

	{
		Key:     "table_amount",
		Kind:    KindFloat,
		Default: "0",
		Get:     func(r *InvoiceRecord) string { return strconv.FormatFloat(r.TableAmount, 'f', -1, 64) },
		Set: func(r *InvoiceRecord, v string) error {
			r.TableAmount = NormalizeAmount(v)
			return nil
		},
	},
	strField("contract", "", func(r *InvoiceRecord) *string { return &r.Contract }),
	strField("status", "", func(r *InvoiceRecord) *string { return &r.Status }),
	strField("fractionated", "", func(r *InvoiceRecord) *string { return &r.Fractionated }),
	strField("invoice_type", "", func(r *InvoiceRecord) *string { return &r.InvoiceType }),
	strField("download_token", "", func(r *InvoiceRecord) *string { return &r.DownloadToken }),

	strField("tariff", "N/A", func(r *InvoiceRecord) *string { return &r.Tariff }),
	strField("supply_address", "N/A", func(r *InvoiceRecord) *string { return &r.SupplyAddress }),
	strField("power_p1", "N/A", func(r *InvoiceRecord) *string { return &r.PowerP1 }),
	strField("power_p2", "N/A", func(r *InvoiceRecord) *string { return &r.PowerP2 }),
	strField("power_p3", "N/A", func(r *InvoiceRecord) *string { return &r.PowerP3 }),
	strField("power_p4", "N/A", func(r *InvoiceRecord) *string { return &r.PowerP4 }),
	strField("power_p5", "N/A", func(r *InvoiceRecord) *string { return &r.PowerP5 }),
	strField("power_p6", "N/A", func(r *InvoiceRecord) *string { return &r.PowerP6 }),
	strField("consumption_p1", "N/A", func(r *InvoiceRecord) *string { return &r.ConsumptionP1 }),
	strField("consumption_p2", "N/A", func(r *InvoiceRecord) *string { return &r.ConsumptionP2 }),
	strField("consumption_p3", "N/A", func(r *InvoiceRecord) *string { return &r.ConsumptionP3 }),
	strField("consumption_p4", "N/A", func(r *InvoiceRecord) *string { return &r.ConsumptionP4 }),
	strField("consumption_p5", "N/A", func(r *InvoiceRecord) *string { return &r.ConsumptionP5 }),
	strField("consumption_p6", "N/A", func(r *InvoiceRecord) *string { return &r.ConsumptionP6 }),
	strField("total_consumption", "N/A", func(r *InvoiceRecord) *string { return &r.TotalConsumption }),

	strField("power_amount", "N/A", func(r *InvoiceRecord) *string { return &r.PowerAmount }),
	strField("energy_amount", "N/A", func(r *InvoiceRecord) *string { return &r.EnergyAmount }),
	strField("reactive_amount", "N/A", func(r *InvoiceRecord) *string { return &r.ReactiveAmount }),
	strField("electricity_tax_amount", "N/A", func(r *InvoiceRecord) *string { return &r.ElectricityTaxAmount }),
	strField("meter_rental_amount", "N/A", func(r *InvoiceRecord) *string { return &r.MeterRentalAmount }),
	strField("social_bonus_amount", "N/A", func(r *InvoiceRecord) *string { return &r.SocialBonusAmount }),
	strField("vat_amount", "N/A", func(r *InvoiceRecord) *string { return &r.VATAmount }),
	strField("services_amount", "N/A", func(r *InvoiceRecord) *string { return &r.ServicesAmount }),
	strField("discount_amount", "N/A", func(r *InvoiceRecord) *string { return &r.DiscountAmount }),
	strField("adjustment_amount", "N/A", func(r *InvoiceRecord) *string { return &r.AdjustmentAmount }),
	strField("other_amount", "N/A", func(r *InvoiceRecord) *string { return &r.OtherAmount }),
	strField("taxable_base_amount", "N/A", func(r *InvoiceRecord) *string { return &r.TaxableBaseAmount }),
	strField("due_date", "N/A", func(r *InvoiceRecord) *string { return &r.DueDate }),
	strField("total_amount", "N/A", func(r *InvoiceRecord) *string { return &r.TotalAmount }),
	strField("collection_date", "N/A", func(r *InvoiceRecord) *string { return &r.CollectionDate }),

	{
		Key:     "error_flag",
		Kind:    KindBool,
		Default: "false",
		Get:     func(r *InvoiceRecord) string { return strconv.FormatBool(r.ErrorFlag) },
		Set: func(r *InvoiceRecord, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return eris.Wrapf(err, "model: field error_flag: parse %q", v)
			}
			r.ErrorFlag = b
			return nil
		},
	},
	strField("error_detail", "", func(r *InvoiceRecord) *string { return &r.ErrorDetail }),
}

var fieldsByKey = func() map[string]*FieldDef {
	m := make(map[string]*FieldDef, len(fieldTable))
	for i := range fieldTable {
		m[fieldTable[i].Key] = &fieldTable[i]
	}
	return m
}()

// Fields returns the ordered field table.
func Fields() []FieldDef {
	return fieldTable
}

// FieldByKey returns the field definition for a wire key.
func FieldByKey(key string) (*FieldDef, bool) {
	f, ok := fieldsByKey[key]
	return f, ok
}

// Columns returns the field keys in table order, used as CSV headers.
func Columns() []string {
	cols := make([]string, len(fieldTable))
	for i := range fieldTable {
		cols[i] = fieldTable[i].Key
	}
	return cols
}

// Row renders the record as CSV cells in table order.
func Row(r *InvoiceRecord) []string {
	row := make([]string, len(fieldTable))
	for i := range fieldTable {
		row[i] = fieldTable[i].Get(r)
	}
	return row
}

// ExtractionSchema builds the JSON schema sent to the AI extraction source.
// Every field is required and nullable so the response always carries the
// full field set.
func ExtractionSchema() map[string]any {
	props := make(map[string]any, len(fieldTable))
	required := make([]string, 0, len(fieldTable))
	for i := range fieldTable {
		f := &fieldTable[i]
		var types []string
		switch f.Kind {
		case KindFloat:
			types = []string{"number", "string", "null"}
		case KindInt:
			types = []string{"integer", "null"}
		case KindBool:
			types = []string{"boolean", "null"}
		default:
			types = []string{"string", "null"}
		}
		props[f.Key] = map[string]any{"type": types}
		required = append(required, f.Key)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             required,
		"properties":           props,
	}
}
