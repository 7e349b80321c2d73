package pipeline

import (
	"strings"

	"consignrecon/internal"
	"consignrecon/internal/util"
)

var DefaultInvalidReferenceMarkers = []string{"DESTINATION:", "(Pre)"}

// NormalizeLoad applies a load mapping to every row. Unmapped fields default
// to "" or 0; rows that end up entirely empty are dropped.
func NormalizeLoad(rows []internal.RawRow, mapping internal.ColumnMapping) []internal.NormalizedLoadRecord {
	out := make([]internal.NormalizedLoadRecord, 0, len(rows))
	for _, row := range rows {
		rec := internal.NormalizedLoadRecord{
			Consign:    util.ParseText(cell(row, mapping, internal.FieldConsign)),
			Cartons:    util.ParseQty(cell(row, mapping, internal.FieldCartonsSent)),
			Variety:    util.ParseText(cell(row, mapping, internal.FieldVariety)),
			CartonType: util.ParseText(cell(row, mapping, internal.FieldCartonType)),
		}
		if rec == (internal.NormalizedLoadRecord{}) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// NormalizeSales applies a sales mapping to every row.
func NormalizeSales(rows []internal.RawRow, mapping internal.ColumnMapping) []internal.NormalizedSalesRecord {
	out := make([]internal.NormalizedSalesRecord, 0, len(rows))
	for _, row := range rows {
		rec := internal.NormalizedSalesRecord{
			SupplierRef: util.ParseText(cell(row, mapping, internal.FieldSupplierRef)),
			Received:    util.ParseQty(cell(row, mapping, internal.FieldReceived)),
			Sold:        util.ParseQty(cell(row, mapping, internal.FieldSold)),
			TotalValue:  util.ParseMoney(cell(row, mapping, internal.FieldTotalValue)),
		}
		if rec.SupplierRef == "" && rec.Received == 0 && rec.Sold == 0 && rec.TotalValue.IsZero() {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func cell(row internal.RawRow, mapping internal.ColumnMapping, f internal.Field) internal.CellValue {
	col, ok := mapping.Column(f)
	if !ok {
		return internal.EmptyCell()
	}
	return row[col]
}

// IsValidReference rejects sheet annotations that sit in the reference
// column ("DESTINATION: DURBAN", "(Pre) allocation") and references without
// any digit.
func IsValidReference(ref string, markers []string) bool {
	if !util.HasDigit(ref) {
		return false
	}
	upper := strings.ToUpper(ref)
	for _, m := range markers {
		if m != "" && strings.Contains(upper, strings.ToUpper(m)) {
			return false
		}
	}
	return true
}
