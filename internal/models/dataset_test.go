package models

import (
	"reflect"
	"testing"
)

func TestTextCell(t *testing.T) {
	testCases := []struct {
		value   string
		present bool
	}{
		{"Ada", true},
		{"0", true},
		{"", false},
		{"   ", true},
		{"\t", true},
	}

	for _, tc := range testCases {
		if got := TextCell(tc.value); got.IsNull() == tc.present {
			t.Errorf("TextCell(%q).IsNull() = %v", tc.value, got.IsNull())
		}
	}
	if !NullCell().IsNull() {
		t.Error("NullCell should be null")
	}
}

func TestDataset(t *testing.T) {
	ds := NewDataset(3)
	if err := ds.AddColumn("Name", []Cell{TextCell("Ada"), NullCell(), TextCell("Grace")}); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	ds.AddNullColumn("Email")

	if err := ds.AddColumn("Short", []Cell{TextCell("x")}); err == nil {
		t.Error("AddColumn should reject a column with the wrong length")
	}

	if got := ds.ColumnNames(); !reflect.DeepEqual(got, []string{"Name", "Email"}) {
		t.Errorf("ColumnNames() = %v", got)
	}
	if _, ok := ds.Column("Email"); !ok {
		t.Error("Column(Email) not found")
	}
	if _, ok := ds.Column("email"); ok {
		t.Error("Column should match exact names only")
	}

	if got := ds.MissingInRow(0); got != 1 {
		t.Errorf("MissingInRow(0) = %d, want 1", got)
	}
	if got := ds.MissingInRow(1); got != 2 {
		t.Errorf("MissingInRow(1) = %d, want 2", got)
	}

	row := ds.Row(2)
	if len(row) != 2 || row[0].Value != "Grace" || !row[1].IsNull() {
		t.Errorf("Row(2) = %+v", row)
	}

	picked := ds.SelectRows([]int{2, 0})
	if picked.RowCount != 2 {
		t.Fatalf("SelectRows RowCount = %d", picked.RowCount)
	}
	name, _ := picked.Column("Name")
	if name.Cells[0].Value != "Grace" || name.Cells[1].Value != "Ada" {
		t.Errorf("SelectRows kept the wrong rows: %+v", name.Cells)
	}
}

func TestDataset_ZeroColumns(t *testing.T) {
	ds := NewDataset(4)
	if ds.MissingInRow(0) != 0 {
		t.Error("a row with no columns has nothing missing")
	}
	if got := ds.SelectRows([]int{0, 1}); got.RowCount != 2 || len(got.Columns) != 0 {
		t.Errorf("SelectRows on zero columns = %+v", got)
	}
}
