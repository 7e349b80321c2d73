package internal

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
)

// CellValue is one decoded spreadsheet cell. Only the field matching Kind is meaningful.
type CellValue struct {
	Kind   CellKind
	Text   string
	Number float64
	Date   time.Time
}

func EmptyCell() CellValue { return CellValue{Kind: CellEmpty} }

func TextCell(s string) CellValue { return CellValue{Kind: CellText, Text: s} }

func NumberCell(f float64) CellValue { return CellValue{Kind: CellNumber, Number: f} }

func DateCell(t time.Time) CellValue { return CellValue{Kind: CellDate, Date: t} }

func (c CellValue) IsEmpty() bool { return c.Kind == CellEmpty }

// String renders the cell the way a user would read it in the sheet.
func (c CellValue) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		return c.Date.Format("2006-01-02")
	default:
		return ""
	}
}

// ParseCell types a raw text cell: blank -> empty, plain number -> number, anything else -> text.
func ParseCell(raw string) CellValue {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\u00A0", " "))
	if s == "" {
		return EmptyCell()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return NumberCell(f)
	}
	return TextCell(s)
}

// RawRow maps header text to a cell for one data row.
type RawRow map[string]CellValue

// Sheet is what the row decoder hands to the core: ordered headers plus rows.
type Sheet struct {
	Source  string
	Name    string
	Headers []string
	Rows    []RawRow
}

type Field string

const (
	FieldConsign     Field = "consign"
	FieldSupplierRef Field = "supplierRef"
	FieldVariety     Field = "variety"
	FieldCartonType  Field = "cartonType"
	FieldCartonsSent Field = "cartonsSent"
	FieldReceived    Field = "received"
	FieldSold        Field = "sold"
	FieldTotalValue  Field = "totalValue"
)

var AllFields = []Field{
	FieldConsign, FieldSupplierRef, FieldVariety, FieldCartonType,
	FieldCartonsSent, FieldReceived, FieldSold, FieldTotalValue,
}

var (
	LoadFields  = []Field{FieldConsign, FieldVariety, FieldCartonType, FieldCartonsSent}
	SalesFields = []Field{FieldSupplierRef, FieldReceived, FieldSold, FieldTotalValue}
)

// ColumnMapping resolves semantic fields to actual header names. Absent fields are not in the map.
type ColumnMapping map[Field]string

func (m ColumnMapping) Column(f Field) (string, bool) {
	col, ok := m[f]
	return col, ok && col != ""
}

type ReportKind string

const (
	ReportLoad    ReportKind = "load"
	ReportSales   ReportKind = "sales"
	ReportUnknown ReportKind = "unknown"
)

type NormalizedLoadRecord struct {
	Consign    string
	Cartons    int
	Variety    string
	CartonType string
}

type NormalizedSalesRecord struct {
	SupplierRef string
	Received    int
	Sold        int
	TotalValue  decimal.Decimal
}

type MatchStatus string

const (
	StatusMatched   MatchStatus = "Matched"
	StatusUnmatched MatchStatus = "Unmatched"
	StatusSplit     MatchStatus = "Split"
)

type MatchReason string

const (
	ReasonQuantity MatchReason = "quantity"
	ReasonKey      MatchReason = "key"
	ReasonNone     MatchReason = "none"
)

type MatchedRecord struct {
	ConsignNumber      string           `json:"consignNumber"`
	SupplierRef        string           `json:"supplierRef"`
	Status             MatchStatus      `json:"status"`
	Variety            string           `json:"variety"`
	CartonType         string           `json:"cartonType"`
	CartonsSent        int              `json:"cartonsSent"`
	Received           int              `json:"received"`
	SoldOnMarket       int              `json:"soldOnMarket"`
	TotalValue         decimal.Decimal  `json:"totalValue"`
	ProportionalValue  *decimal.Decimal `json:"proportionalValue,omitempty"`
	Reconciled         bool             `json:"reconciled"`
	IsSplitTransaction bool             `json:"isSplitTransaction"`
	SplitGroupID       string           `json:"splitGroupId,omitempty"`
	MatchKey           string           `json:"matchKey,omitempty"`
	Reason             MatchReason      `json:"reason"`
}

func (r MatchedRecord) DeviationSentReceived() int { return r.CartonsSent - r.Received }

func (r MatchedRecord) DeviationReceivedSold() int { return r.Received - r.SoldOnMarket }

// EffectiveValue is the money attributable to this row: the proportional share for split rows.
func (r MatchedRecord) EffectiveValue() decimal.Decimal {
	if r.Status == StatusSplit && r.ProportionalValue != nil {
		return *r.ProportionalValue
	}
	return r.TotalValue
}

type Statistics struct {
	TotalRecords    int             `json:"totalRecords"`
	MatchedCount    int             `json:"matchedCount"`
	UnmatchedCount  int             `json:"unmatchedCount"`
	SplitCount      int             `json:"splitCount"`
	ReconciledCount int             `json:"reconciledCount"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	AverageValue    decimal.Decimal `json:"averageValue"`
	MatchRate       float64         `json:"matchRate"`
}

// RunSummary is the audit view of one analysis run. It never carries record-level data.
type RunSummary struct {
	TraceID   string
	LoadFile  string
	SalesFile string
	Stats     Statistics
	Timings   map[string]float64
	CreatedAt string
}
