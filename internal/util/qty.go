package util

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"consignrecon/internal"
)

// StripNumeric keeps only 0-9, '.' and '-', so "R 1,234.50" becomes "1234.50".
func StripNumeric(input string) string {
	var b strings.Builder
	for _, r := range input {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseNumber coerces a cell to a float. Empty or unparseable cells are 0 with ok=false.
func ParseNumber(cell internal.CellValue) (float64, bool) {
	switch cell.Kind {
	case internal.CellNumber:
		if math.IsNaN(cell.Number) || math.IsInf(cell.Number, 0) {
			return 0, false
		}
		return cell.Number, true
	case internal.CellText:
		stripped := StripNumeric(cell.Text)
		if stripped == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(stripped, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// MaxQty is the largest quantity a cell may hold. Anything above it is read
// as garbage, like any other unparseable cell.
const MaxQty = math.MaxInt32

// ParseQty coerces a cell to a non-negative carton count, rounding half up.
func ParseQty(cell internal.CellValue) int {
	f, ok := ParseNumber(cell)
	if !ok || f <= 0 || f > MaxQty {
		return 0
	}
	return int(math.Floor(f + 0.5))
}

// ParseMoney coerces a cell to a non-negative decimal amount.
func ParseMoney(cell internal.CellValue) decimal.Decimal {
	var d decimal.Decimal
	switch cell.Kind {
	case internal.CellNumber:
		if _, ok := ParseNumber(cell); !ok {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(cell.Number)
	case internal.CellText:
		parsed, err := decimal.NewFromString(StripNumeric(cell.Text))
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseText renders a cell as trimmed text; numeric references keep their digits.
func ParseText(cell internal.CellValue) string {
	return NormalizeSpaces(cell.String())
}

// RoundShare returns round-half-up(value * part / whole) for non-negative
// inputs. The product is taken in decimal so large counts cannot overflow.
func RoundShare(value, part, whole int) int {
	if whole <= 0 || value <= 0 || part <= 0 {
		return 0
	}
	w := decimal.NewFromInt(int64(whole))
	q, r := decimal.NewFromInt(int64(value)).Mul(decimal.NewFromInt(int64(part))).QuoRem(w, 0)
	if r.Add(r).GreaterThanOrEqual(w) {
		q = q.Add(decimal.NewFromInt(1))
	}
	return int(q.IntPart())
}
