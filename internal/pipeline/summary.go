package pipeline

import (
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"consignrecon/internal"
)

// Printer renders statistics and records with locale-formatted numbers.
type Printer struct {
	p        *message.Printer
	currency string
}

func NewPrinter(locale, currency string) *Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Printer{p: message.NewPrinter(tag), currency: currency}
}

func (pr *Printer) Money(v float64) string {
	s := pr.p.Sprintf("%.2f", v)
	if pr.currency == "" {
		return s
	}
	return pr.currency + " " + s
}

func (pr *Printer) WriteSummary(w io.Writer, stats internal.Statistics) {
	pr.p.Fprintf(w, "Records:     %d\n", stats.TotalRecords)
	pr.p.Fprintf(w, "Matched:     %d\n", stats.MatchedCount)
	pr.p.Fprintf(w, "Split:       %d\n", stats.SplitCount)
	pr.p.Fprintf(w, "Unmatched:   %d\n", stats.UnmatchedCount)
	pr.p.Fprintf(w, "Reconciled:  %d\n", stats.ReconciledCount)
	pr.p.Fprintf(w, "Match rate:  %.1f%%\n", stats.MatchRate)
	fmt.Fprintf(w, "Total value: %s\n", pr.Money(stats.TotalValue.InexactFloat64()))
	fmt.Fprintf(w, "Average:     %s\n", pr.Money(stats.AverageValue.InexactFloat64()))
}

// WriteTable prints records in export column order.
func (pr *Printer) WriteTable(w io.Writer, records []internal.MatchedRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, h := range ExportColumns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, h)
	}
	fmt.Fprintln(tw)
	for _, r := range records {
		pr.p.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.ConsignNumber, r.SupplierRef, r.Status, r.Variety, r.CartonType,
			r.CartonsSent, r.Received, r.DeviationSentReceived(), r.SoldOnMarket, r.DeviationReceivedSold(),
			pr.Money(r.EffectiveValue().InexactFloat64()), yesNo(r.Reconciled))
	}
	return tw.Flush()
}

// RecordView is the JSON shape of a record, with deviations spelled out.
type RecordView struct {
	internal.MatchedRecord
	DeviationSentReceived int `json:"deviationSentReceived"`
	DeviationReceivedSold int `json:"deviationReceivedSold"`
}

func Views(records []internal.MatchedRecord) []RecordView {
	out := make([]RecordView, 0, len(records))
	for _, r := range records {
		out = append(out, RecordView{
			MatchedRecord:         r,
			DeviationSentReceived: r.DeviationSentReceived(),
			DeviationReceivedSold: r.DeviationReceivedSold(),
		})
	}
	return out
}
