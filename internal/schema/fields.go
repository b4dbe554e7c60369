package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qinyiguo/DMS2.0/internal/util"
)

// Canonical field identifiers of the parts-sales report schema.
const (
	FieldBranchCode  = "branchCode"
	FieldCheckoutNo  = "checkoutNo"
	FieldItemID      = "itemId"
	FieldWorkorderNo = "workorderNo"
	FieldPartNo      = "partNo"
	FieldPartName    = "partName"
	FieldQuantity    = "quantity"
	FieldSaleAmount  = "saleAmount"
	FieldCostAmount  = "costAmount"
	FieldAdvisor     = "advisor"
	FieldSalesName   = "salesName"
)

// RequiredFields must resolve to a column for a batch to produce canonical
// rows, and must be non-empty per row.
var RequiredFields = []string{FieldBranchCode, FieldCheckoutNo, FieldItemID, FieldPartNo}

// NumericFields are optional but must parse as numbers when present.
var NumericFields = []string{FieldQuantity, FieldSaleAmount, FieldCostAmount}

// AliasTable maps canonical fields to the vendor header spellings accepted for
// each. New spellings are additive configuration, not code.
type AliasTable struct {
	fields  []string
	aliases map[string][]string
}

// DefaultAliases returns the built-in mapping for the spellings seen across
// dealer DMS exports so far.
func DefaultAliases() *AliasTable {
	t := &AliasTable{aliases: map[string][]string{}}
	t.add(FieldBranchCode, "據點", "據點代碼", "廠別")
	t.add(FieldCheckoutNo, "結帳單號", "結帳編號", "結帳單 號")
	t.add(FieldItemID, "項目ID", "項目編號", "項次ID")
	t.add(FieldWorkorderNo, "工單號", "工單號碼", "託工單號")
	t.add(FieldPartNo, "料號", "零件料號", "零件編號")
	t.add(FieldPartName, "品名", "零件名稱", "料品名稱")
	t.add(FieldQuantity, "數量", "銷售數量", "出庫數量")
	t.add(FieldSaleAmount, "銷售金額", "銷售金額：未稅", "金額")
	t.add(FieldCostAmount, "成本金額", "成本")
	t.add(FieldAdvisor, "服務顧問", "接待人員")
	t.add(FieldSalesName, "銷售人員", "業務人員", "零件銷售人員")
	return t
}

// LoadAliases builds the alias table, merging an optional YAML override file
// on top of the defaults. An empty path means defaults only.
func LoadAliases(path string) (*AliasTable, error) {
	t := DefaultAliases()
	if path == "" {
		return t, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	if err := t.MergeYAML(blob); err != nil {
		return nil, fmt.Errorf("parse mapping file %s: %w", path, err)
	}
	return t, nil
}

// MergeYAML merges `field: [alias, ...]` entries into the table. Aliases are
// appended; unknown canonical field names are rejected.
func (t *AliasTable) MergeYAML(blob []byte) error {
	var overrides map[string][]string
	if err := yaml.Unmarshal(blob, &overrides); err != nil {
		return err
	}
	for field, extra := range overrides {
		if _, ok := t.aliases[field]; !ok {
			return fmt.Errorf("unknown canonical field: %s", field)
		}
		t.add(field, extra...)
	}
	return nil
}

// Fields returns canonical field names in declaration order.
func (t *AliasTable) Fields() []string {
	return t.fields
}

// Aliases returns the accepted spellings for one canonical field.
func (t *AliasTable) Aliases(field string) []string {
	return t.aliases[field]
}

func (t *AliasTable) add(field string, spellings ...string) {
	if _, ok := t.aliases[field]; !ok {
		t.fields = append(t.fields, field)
	}
	for _, s := range spellings {
		if util.IsBlank(s) {
			continue
		}
		t.aliases[field] = append(t.aliases[field], s)
	}
}
