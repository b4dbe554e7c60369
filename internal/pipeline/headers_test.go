package pipeline

import (
	"reflect"
	"testing"

	"github.com/qinyiguo/DMS2.0/internal/schema"
)

func TestMapHeadersResolvesAliases(t *testing.T) {
	table := schema.DefaultAliases()
	raw := []string{"據點", "結帳單號", "項目ID", "料號", "數量"}

	hm := MapHeaders(raw, table)

	want := map[string]int{
		schema.FieldBranchCode: 0,
		schema.FieldCheckoutNo: 1,
		schema.FieldItemID:     2,
		schema.FieldPartNo:     3,
		schema.FieldQuantity:   4,
	}
	if !reflect.DeepEqual(hm.Columns, want) {
		t.Errorf("Columns = %v, want %v", hm.Columns, want)
	}
	if len(hm.Unknown) != 0 {
		t.Errorf("unexpected unknown headers: %v", hm.Unknown)
	}
}

func TestMapHeadersNormalizesBeforeMatching(t *testing.T) {
	table := schema.DefaultAliases()
	// Ideographic space and fullwidth colon in the raw header.
	hm := MapHeaders([]string{"結帳單　號", "銷售金額：未稅"}, table)

	if idx, ok := hm.Columns[schema.FieldCheckoutNo]; !ok || idx != 0 {
		t.Errorf("checkoutNo not resolved from spaced variant: %v", hm.Columns)
	}
	if idx, ok := hm.Columns[schema.FieldSaleAmount]; !ok || idx != 1 {
		t.Errorf("saleAmount not resolved from fullwidth-colon variant: %v", hm.Columns)
	}
}

func TestMapHeadersFirstWinsOnDuplicates(t *testing.T) {
	table := schema.DefaultAliases()
	// Both headers alias branchCode; the first column wins.
	hm := MapHeaders([]string{"據點", "廠別", "料號"}, table)

	if hm.Columns[schema.FieldBranchCode] != 0 {
		t.Errorf("duplicate resolution should keep column 0, got %d", hm.Columns[schema.FieldBranchCode])
	}
	// The losing duplicate is still a recognized spelling, not unknown.
	if len(hm.Unknown) != 0 {
		t.Errorf("losing duplicate reported unknown: %v", hm.Unknown)
	}
}

func TestMapHeadersUnknownDetection(t *testing.T) {
	table := schema.DefaultAliases()
	hm := MapHeaders([]string{"據點", "自訂欄位", "料號", "備註"}, table)

	got := hm.UnknownHeaders()
	want := []string{"自訂欄位", "備註"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnknownHeaders = %v, want %v", got, want)
	}
}

func TestMapHeadersEmptyHeaderIsUnknown(t *testing.T) {
	table := schema.DefaultAliases()
	hm := MapHeaders([]string{"據點", ""}, table)
	if _, ok := hm.Unknown[1]; !ok {
		t.Errorf("empty header should be unknown: %v", hm.Unknown)
	}
}

func TestSignatureIgnoresColumnOrder(t *testing.T) {
	a := Signature([]string{"據點", "料號", "數量"})
	b := Signature([]string{"數量", "據點", "料號"})
	if a != b {
		t.Error("signature should be invariant under column permutation")
	}

	c := Signature([]string{"據點", "料號"})
	if a == c {
		t.Error("different header sets should not collide")
	}
}
