package pipeline

import (
	"strings"

	"consignrecon/internal"
)

// Filter narrows a record set for display or export. Zero values match everything.
type Filter struct {
	Status     internal.MatchStatus
	Reconciled *bool
	// Query is a case-insensitive substring over consign, reference, variety and carton type.
	Query string
}

func (f Filter) IsZero() bool {
	return f.Status == "" && f.Reconciled == nil && strings.TrimSpace(f.Query) == ""
}

func (f Filter) Match(r internal.MatchedRecord) bool {
	if f.Status != "" && !strings.EqualFold(string(f.Status), string(r.Status)) {
		return false
	}
	if f.Reconciled != nil && *f.Reconciled != r.Reconciled {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	for _, s := range []string{r.ConsignNumber, r.SupplierRef, r.Variety, r.CartonType} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func (f Filter) Apply(records []internal.MatchedRecord) []internal.MatchedRecord {
	if f.IsZero() {
		return records
	}
	out := make([]internal.MatchedRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// ParseStatus accepts matched, unmatched or split in any case; "" and "all" mean no filter.
func ParseStatus(s string) (internal.MatchStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", true
	case "matched":
		return internal.StatusMatched, true
	case "unmatched":
		return internal.StatusUnmatched, true
	case "split":
		return internal.StatusSplit, true
	}
	return "", false
}
