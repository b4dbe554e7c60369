package pipeline

import (
	"fmt"

	"github.com/qinyiguo/DMS2.0/internal"
	"github.com/qinyiguo/DMS2.0/internal/schema"
	"github.com/qinyiguo/DMS2.0/internal/util"
)

// MissingRequired reports which required canonical fields have no resolved
// column. Evaluated once per batch: when non-empty, every row stages as an
// error row and nothing reaches the canonical table.
func MissingRequired(hm HeaderMap) []string {
	var missing []string
	for _, field := range schema.RequiredFields {
		if _, ok := hm.Columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// BuildLine validates one decoded row against the canonical schema and
// produces the canonical record. Required fields must be non-empty; numeric
// fields must parse when present. Any failure rejects the whole row.
func BuildLine(fields map[string]string) (internal.PartsSalesLine, error) {
	for _, field := range schema.RequiredFields {
		if fields[field] == "" {
			return internal.PartsSalesLine{}, fmt.Errorf("%s is required", field)
		}
	}

	line := internal.PartsSalesLine{
		BranchCode: fields[schema.FieldBranchCode],
		CheckoutNo: fields[schema.FieldCheckoutNo],
		ItemID:     fields[schema.FieldItemID],
		PartNo:     fields[schema.FieldPartNo],
		PartName:   util.OptString(fields[schema.FieldPartName]),
		Advisor:    util.OptString(fields[schema.FieldAdvisor]),
		SalesName:  util.OptString(fields[schema.FieldSalesName]),
	}

	numeric := map[string]**float64{
		schema.FieldQuantity:   &line.Quantity,
		schema.FieldSaleAmount: &line.SaleAmount,
		schema.FieldCostAmount: &line.CostAmount,
	}
	for _, field := range schema.NumericFields {
		raw := fields[field]
		if raw == "" {
			continue
		}
		parsed, err := util.ParseAmount(raw)
		if err != nil {
			return internal.PartsSalesLine{}, fmt.Errorf("%s: %w", field, err)
		}
		*numeric[field] = util.FloatPtr(parsed)
	}

	// The workorder key exists only when both parts of the composite exist.
	if wo := util.OptString(fields[schema.FieldWorkorderNo]); wo != nil {
		line.WorkorderNo = wo
		line.WorkorderKey = util.StringPtr(line.BranchCode + "-" + *wo)
	}

	return line, nil
}
