package pipeline

import (
	"testing"

	"consignrecon/internal"
)

func TestNormalizeLoad(t *testing.T) {
	mapping := internal.ColumnMapping{
		internal.FieldConsign:     "Consign No",
		internal.FieldCartonsSent: "Ctns",
		internal.FieldVariety:     "Var",
	}
	rows := []internal.RawRow{
		{"Consign No": internal.TextCell(" Z1C0801483 "), "Ctns": internal.TextCell("1,200 ctns"), "Var": internal.TextCell("APPLE")},
		{"Consign No": internal.NumberCell(801484), "Ctns": internal.NumberCell(12.5), "Var": internal.EmptyCell()},
		{"Consign No": internal.EmptyCell(), "Ctns": internal.TextCell("n/a"), "Var": internal.EmptyCell()},
		{"Consign No": internal.TextCell("Z1C0801485"), "Ctns": internal.NumberCell(-3)},
	}
	got := NormalizeLoad(rows, mapping)
	if len(got) != 3 {
		t.Fatalf("len=%d: %+v", len(got), got)
	}
	if got[0].Consign != "Z1C0801483" || got[0].Cartons != 1200 || got[0].Variety != "APPLE" || got[0].CartonType != "" {
		t.Fatalf("row 0: %+v", got[0])
	}
	if got[1].Consign != "801484" || got[1].Cartons != 13 {
		t.Fatalf("row 1: %+v", got[1])
	}
	if got[2].Cartons != 0 {
		t.Fatalf("negative cartons should clamp: %+v", got[2])
	}
}

func TestNormalizeSales(t *testing.T) {
	mapping := internal.ColumnMapping{
		internal.FieldSupplierRef: "Ref",
		internal.FieldReceived:    "Rcvd",
		internal.FieldSold:        "Sold",
		internal.FieldTotalValue:  "Nett",
	}
	rows := []internal.RawRow{
		{"Ref": internal.TextCell("REF1483"), "Rcvd": internal.NumberCell(100), "Sold": internal.NumberCell(95), "Nett": internal.TextCell("R 1,234.50")},
		{"Ref": internal.EmptyCell(), "Rcvd": internal.EmptyCell(), "Sold": internal.EmptyCell(), "Nett": internal.TextCell("-")},
		{"Ref": internal.TextCell("REF2"), "Nett": internal.NumberCell(-10)},
	}
	got := NormalizeSales(rows, mapping)
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	if got[0].Received != 100 || got[0].Sold != 95 || !got[0].TotalValue.Equal(dec("1234.50")) {
		t.Fatalf("row 0: %+v", got[0])
	}
	if !got[1].TotalValue.IsZero() {
		t.Fatalf("negative money should clamp: %s", got[1].TotalValue)
	}
}

func TestNormalizeMissingMappingDefaults(t *testing.T) {
	rows := []internal.RawRow{{"Consign": internal.TextCell("Z1C0801483")}}
	got := NormalizeLoad(rows, internal.ColumnMapping{internal.FieldConsign: "Consign"})
	if len(got) != 1 || got[0].Cartons != 0 || got[0].Variety != "" {
		t.Fatalf("got %+v", got)
	}
	if got := NormalizeSales(rows, internal.ColumnMapping{}); len(got) != 0 {
		t.Fatalf("unmapped rows should drop: %+v", got)
	}
}

func TestIsValidReference(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"REF1483", true},
		{"1483", true},
		{"DESTINATION: CAPE TOWN 12", false},
		{"destination: durban 4410", false},
		{"(Pre) 1483", false},
		{"(PRE)1483", false},
		{"TOTAL", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := IsValidReference(tt.ref, DefaultInvalidReferenceMarkers); got != tt.want {
				t.Fatalf("IsValidReference(%q)=%v", tt.ref, got)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	records := []internal.MatchedRecord{
		{ConsignNumber: "Z1C0801483", Status: internal.StatusMatched, Variety: "APPLE", Reconciled: true},
		{ConsignNumber: "Z1C0801999", Status: internal.StatusSplit, Variety: "PEAR"},
		{SupplierRef: "REF7777", Status: internal.StatusUnmatched},
	}
	yes, no := true, false
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"zero", Filter{}, 3},
		{"status", Filter{Status: internal.StatusSplit}, 1},
		{"reconciled", Filter{Reconciled: &yes}, 1},
		{"not reconciled", Filter{Reconciled: &no}, 2},
		{"query", Filter{Query: "pear"}, 1},
		{"query reference", Filter{Query: "7777"}, 1},
		{"combined", Filter{Status: internal.StatusMatched, Query: "pear"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Apply(records); len(got) != tt.want {
				t.Fatalf("got %d want %d", len(got), tt.want)
			}
		})
	}
	if s, ok := ParseStatus("SPLIT"); !ok || s != internal.StatusSplit {
		t.Fatalf("ParseStatus: %q %v", s, ok)
	}
	if _, ok := ParseStatus("bogus"); ok {
		t.Fatal("bogus status accepted")
	}
}
