package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"consignrecon/internal"
	"consignrecon/internal/util"
)

// splitNamespace seeds split group ids so the same consignment always gets the same id.
var splitNamespace = uuid.MustParse("6f1c6a3e-4d0b-5b8e-9a57-2f0c1d7e8a41")

type MatchConfig struct {
	// SplitTolerance is the allowed absolute deviation for a split row to count as reconciled.
	SplitTolerance          int
	InvalidReferenceMarkers []string
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{SplitTolerance: 1, InvalidReferenceMarkers: DefaultInvalidReferenceMarkers}
}

type Matcher struct {
	cfg    MatchConfig
	logger *slog.Logger
}

func NewMatcher(cfg MatchConfig, logger *slog.Logger) *Matcher {
	if cfg.SplitTolerance < 0 {
		cfg.SplitTolerance = 0
	}
	if cfg.InvalidReferenceMarkers == nil {
		cfg.InvalidReferenceMarkers = DefaultInvalidReferenceMarkers
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Matcher{cfg: cfg, logger: logger}
}

type loadGroup struct {
	consign string
	key     string
	splitID string
	members []internal.NormalizedLoadRecord
}

func (g *loadGroup) totalCartons() int {
	total := 0
	for _, m := range g.members {
		total += m.Cartons
	}
	return total
}

// salesIndex buckets valid sales records by the last four digits of their reference.
type salesIndex struct {
	byKey    map[string][]int
	consumed []bool
}

// Match joins load records against sales records. Load records sharing a
// consignment number form one group; a group is matched to at most one sales
// record, preferring an exact quantity match within the key bucket and
// otherwise taking the first record in the bucket no earlier group used.
// Sales records left over become their own unmatched rows.
func (m *Matcher) Match(loads []internal.NormalizedLoadRecord, sales []internal.NormalizedSalesRecord) ([]internal.MatchedRecord, error) {
	if loads == nil || sales == nil {
		return nil, &MatchInputError{Reason: "load and sales record sequences are required"}
	}
	for _, l := range loads {
		if l.Cartons < 0 {
			return nil, &MatchInputError{Reason: "negative cartons for consign " + l.Consign}
		}
	}
	for _, s := range sales {
		if s.Received < 0 || s.Sold < 0 || s.TotalValue.IsNegative() {
			return nil, &MatchInputError{Reason: "negative quantity for reference " + s.SupplierRef}
		}
	}

	ctx := context.Background()
	debug := m.logger.Enabled(ctx, slog.LevelDebug)

	groups := groupLoads(loads)
	index, valid := m.indexSales(sales)
	if debug {
		m.logger.Debug("matcher input", "load_records", len(loads), "load_groups", len(groups), "sales_records", len(sales), "valid_sales", valid)
	}

	out := make([]internal.MatchedRecord, 0, len(loads)+len(sales))
	for _, g := range groups {
		total := g.totalCartons()
		saleIdx, reason := index.pick(g.key, sales, total)
		if debug {
			m.logger.Debug("load group", "consign", g.consign, "key", g.key, "members", len(g.members), "cartons", total, "reason", reason)
		}
		if saleIdx < 0 {
			out = append(out, unmatchedGroup(g)...)
			continue
		}
		index.consumed[saleIdx] = true
		sale := sales[saleIdx]
		if len(g.members) == 1 {
			out = append(out, m.matchedSingle(g, sale, reason))
			continue
		}
		out = append(out, m.matchedSplit(g, sale, total, reason)...)
	}

	for i, sale := range sales {
		if index.consumed[i] || !m.validReference(sale.SupplierRef) {
			continue
		}
		out = append(out, internal.MatchedRecord{
			SupplierRef:  sale.SupplierRef,
			Status:       internal.StatusUnmatched,
			Received:     sale.Received,
			SoldOnMarket: sale.Sold,
			TotalValue:   sale.TotalValue,
			MatchKey:     util.LastFourDigits(sale.SupplierRef),
			Reason:       internal.ReasonNone,
		})
	}
	return out, nil
}

func (m *Matcher) validReference(ref string) bool {
	return IsValidReference(ref, m.cfg.InvalidReferenceMarkers)
}

// groupLoads keeps first-occurrence order. Records without a consignment
// number never group with each other.
func groupLoads(loads []internal.NormalizedLoadRecord) []*loadGroup {
	groups := []*loadGroup{}
	byConsign := map[string]*loadGroup{}
	for _, l := range loads {
		if l.Consign == "" {
			groups = append(groups, &loadGroup{members: []internal.NormalizedLoadRecord{l}})
			continue
		}
		g, ok := byConsign[l.Consign]
		if !ok {
			g = &loadGroup{consign: l.Consign, key: util.LastFourDigits(l.Consign)}
			byConsign[l.Consign] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, l)
	}
	for _, g := range groups {
		if len(g.members) > 1 {
			g.splitID = uuid.NewSHA1(splitNamespace, []byte(g.consign)).String()
		}
	}
	return groups
}

func (m *Matcher) indexSales(sales []internal.NormalizedSalesRecord) (*salesIndex, int) {
	idx := &salesIndex{byKey: map[string][]int{}, consumed: make([]bool, len(sales))}
	valid := 0
	for i, s := range sales {
		if !m.validReference(s.SupplierRef) {
			continue
		}
		key := util.LastFourDigits(s.SupplierRef)
		if key == "" {
			continue
		}
		idx.byKey[key] = append(idx.byKey[key], i)
		valid++
	}
	return idx, valid
}

// pick returns the sales index for a group, or -1.
func (idx *salesIndex) pick(key string, sales []internal.NormalizedSalesRecord, total int) (int, internal.MatchReason) {
	if key == "" {
		return -1, internal.ReasonNone
	}
	first := -1
	for _, i := range idx.byKey[key] {
		if idx.consumed[i] {
			continue
		}
		if sales[i].Received == total {
			return i, internal.ReasonQuantity
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		return -1, internal.ReasonNone
	}
	return first, internal.ReasonKey
}

func (m *Matcher) matchedSingle(g *loadGroup, sale internal.NormalizedSalesRecord, reason internal.MatchReason) internal.MatchedRecord {
	l := g.members[0]
	return internal.MatchedRecord{
		ConsignNumber: l.Consign,
		SupplierRef:   sale.SupplierRef,
		Status:        internal.StatusMatched,
		Variety:       l.Variety,
		CartonType:    l.CartonType,
		CartonsSent:   l.Cartons,
		Received:      sale.Received,
		SoldOnMarket:  sale.Sold,
		TotalValue:    sale.TotalValue,
		Reconciled:    l.Cartons == sale.Received && sale.Received == sale.Sold,
		MatchKey:      g.key,
		Reason:        reason,
	}
}

// matchedSplit distributes one sales record across the group by carton
// share. Quantities round half up; the money share stays exact. A group
// with no cartons at all shares equally.
func (m *Matcher) matchedSplit(g *loadGroup, sale internal.NormalizedSalesRecord, total int, reason internal.MatchReason) []internal.MatchedRecord {
	out := make([]internal.MatchedRecord, 0, len(g.members))
	for _, l := range g.members {
		part, whole := l.Cartons, total
		if total == 0 {
			part, whole = 1, len(g.members)
		}
		received := util.RoundShare(sale.Received, part, whole)
		sold := util.RoundShare(sale.Sold, part, whole)
		share := sale.TotalValue.Mul(decimal.NewFromInt(int64(part))).Div(decimal.NewFromInt(int64(whole)))

		rec := internal.MatchedRecord{
			ConsignNumber:      l.Consign,
			SupplierRef:        sale.SupplierRef,
			Status:             internal.StatusSplit,
			Variety:            l.Variety,
			CartonType:         l.CartonType,
			CartonsSent:        l.Cartons,
			Received:           received,
			SoldOnMarket:       sold,
			TotalValue:         sale.TotalValue,
			ProportionalValue:  &share,
			IsSplitTransaction: true,
			SplitGroupID:       g.splitID,
			MatchKey:           g.key,
			Reason:             reason,
		}
		rec.Reconciled = within(rec.DeviationSentReceived(), m.cfg.SplitTolerance) && within(rec.DeviationReceivedSold(), m.cfg.SplitTolerance)
		out = append(out, rec)
	}
	return out
}

func unmatchedGroup(g *loadGroup) []internal.MatchedRecord {
	out := make([]internal.MatchedRecord, 0, len(g.members))
	for _, l := range g.members {
		out = append(out, internal.MatchedRecord{
			ConsignNumber:      l.Consign,
			Status:             internal.StatusUnmatched,
			Variety:            l.Variety,
			CartonType:         l.CartonType,
			CartonsSent:        l.Cartons,
			TotalValue:         decimal.Zero,
			IsSplitTransaction: g.splitID != "",
			SplitGroupID:       g.splitID,
			MatchKey:           g.key,
			Reason:             internal.ReasonNone,
		})
	}
	return out
}

func within(v, tolerance int) bool {
	if v < 0 {
		v = -v
	}
	return v <= tolerance
}
